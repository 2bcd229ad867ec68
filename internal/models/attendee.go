package models

import "time"

// SeedAttendee is one entry of the static fallback list.
type SeedAttendee struct {
	TicketNumber string `yaml:"ticketNumber" json:"ticketNumber"`
	FullName     string `yaml:"fullName" json:"fullName"`
	Email        string `yaml:"email" json:"email"`
	TicketType   string `yaml:"ticketType" json:"ticketType"`
}

// ToTicket builds the ticket record that is upserted when a scan references a
// seeded attendee with no live record.
func (a SeedAttendee) ToTicket() *Ticket {
	t := &Ticket{
		TicketNumber: a.TicketNumber,
		FullName:     a.FullName,
		Email:        a.Email,
		TicketType:   a.TicketType,
		Source:       TicketSourceSeed,
	}
	t.Normalize()
	return t
}

// AttendeeRow is the display projection returned by the list endpoint.
type AttendeeRow struct {
	FullName     string     `json:"fullName"`
	Email        string     `json:"email"`
	TicketType   string     `json:"ticketType"`
	TicketNumber string     `json:"ticketNumber"`
	CheckedIn    bool       `json:"checkedIn"`
	LastScanAt   *time.Time `json:"lastScanAt"`
}

// StatusEntry is the value kept per ticket by the check-in status store.
type StatusEntry struct {
	Checked bool      `json:"checked"`
	At      time.Time `json:"at"`
	By      string    `json:"by,omitempty"`
}
