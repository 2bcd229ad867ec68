package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event keys accepted by the check-in endpoints. Every key except EventGift
// is a program segment tracked in the check-in mapping; EventGift targets the
// gift_claimed flag on the ticket itself.
const (
	SegmentDay1        = "day1"
	SegmentDay2        = "day2"
	SegmentDinner      = "dinner"
	SegmentAzizi       = "azizi"
	SegmentBreakout    = "breakout"
	SegmentMasterclass = "masterclass"

	EventGift = "gift"
)

// Segments lists the program segments in display order.
var Segments = []string{
	SegmentDay1,
	SegmentDay2,
	SegmentDinner,
	SegmentAzizi,
	SegmentBreakout,
	SegmentMasterclass,
}

// Defaults applied when a source record leaves display fields empty.
const (
	DefaultFullName   = "Guest"
	DefaultTicketType = "General Admission"
)

// Ticket sources recorded on the row itself.
const (
	TicketSourcePurchase = "purchase"
	TicketSourcePayment  = "payment"
	TicketSourceSeed     = "seed"
)

// IsSegment reports whether key is one of the tracked program segments.
func IsSegment(key string) bool {
	for _, s := range Segments {
		if s == key {
			return true
		}
	}
	return false
}

// IsAllowedEvent reports whether key may be toggled.
func IsAllowedEvent(key string) bool {
	return key == EventGift || IsSegment(key)
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID            string    `bun:"id,pk" json:"id"`
	TicketNumber  string    `bun:"ticket_number,unique,notnull" json:"ticketNumber"`
	FullName      string    `bun:"full_name" json:"fullName"`
	Email         string    `bun:"email" json:"email"`
	TicketType    string    `bun:"ticket_type" json:"ticketType"`
	Source        string    `bun:"source" json:"source,omitempty"`
	GiftClaimed   bool      `bun:"gift_claimed,notnull,default:false" json:"giftClaimed"`
	ScanCount     int       `bun:"scan_count,notnull,default:0" json:"scanCount"`
	LastCheckinAt time.Time `bun:"last_checkin_at,nullzero" json:"lastCheckinAt,omitempty"`
	LastScanBy    string    `bun:"last_scan_by,nullzero" json:"lastScanBy,omitempty"`
	QRCode        []byte    `bun:"qr_code" json:"-"`
	IssuedAt      time.Time `bun:"issued_at,nullzero" json:"issuedAt,omitempty"`

	// CheckIn is assembled from ticket_checkins rows.
	CheckIn map[string]bool `bun:"-" json:"checkIn"`
}

// TicketCheckin is one entry of a ticket's check-in mapping. Writing a row
// touches exactly one segment of one ticket.
type TicketCheckin struct {
	bun.BaseModel `bun:"table:ticket_checkins"`

	TicketNumber string    `bun:"ticket_number,pk"`
	Segment      string    `bun:"segment,pk"`
	Checked      bool      `bun:"checked,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
	UpdatedBy    string    `bun:"updated_by,nullzero"`
}

// Normalize rewrites the identity fields into their canonical form and fills
// display defaults.
func (t *Ticket) Normalize() {
	t.TicketNumber = NormalizeTicketNumber(t.TicketNumber)
	t.Email = NormalizeEmail(t.Email)
	if t.FullName == "" {
		t.FullName = DefaultFullName
	}
	if t.TicketType == "" {
		t.TicketType = DefaultTicketType
	}
	if t.ID == "" {
		t.ID = t.TicketNumber
	}
}

// Flags returns the full check-in mapping with every segment present.
func (t *Ticket) Flags() map[string]bool {
	flags := make(map[string]bool, len(Segments))
	for _, s := range Segments {
		flags[s] = t.CheckIn[s]
	}
	return flags
}

// CheckedIn is true when any segment is checked.
func (t *Ticket) CheckedIn() bool {
	for _, v := range t.CheckIn {
		if v {
			return true
		}
	}
	return false
}

// CheckInWrite describes one merge-write against a ticket.
type CheckInWrite struct {
	TicketNumber string
	Event        string
	Status       bool
	Actor        string
	At           time.Time
}
