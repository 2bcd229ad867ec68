package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusSuccess   PaymentStatus = "success"
	StatusFailed    PaymentStatus = "failed"
	StatusRefunded  PaymentStatus = "refunded"
	StatusCancelled PaymentStatus = "cancelled"
)

// Payment is written by the purchase flow. Rows carrying a ticket number are
// a directory source for attendees that never got a tickets row.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentID    string        `bun:"payment_id,pk" json:"paymentId"`
	TicketNumber string        `bun:"ticket_number,nullzero" json:"ticketNumber,omitempty"`
	Email        string        `bun:"email" json:"email"`
	FullName     string        `bun:"full_name" json:"fullName"`
	TicketType   string        `bun:"ticket_type" json:"ticketType"`
	Amount       float64       `bun:"amount" json:"amount"`
	Currency     string        `bun:"currency" json:"currency"`
	Status       PaymentStatus `bun:"status" json:"status"`
	Reference    string        `bun:"reference,nullzero" json:"reference,omitempty"`
	CreatedAt    time.Time     `bun:"created_at,notnull" json:"createdAt"`
}

// ToTicket projects a payment into a ticket record for the directory.
func (p *Payment) ToTicket() *Ticket {
	t := &Ticket{
		TicketNumber: p.TicketNumber,
		FullName:     p.FullName,
		Email:        p.Email,
		TicketType:   p.TicketType,
		Source:       TicketSourcePayment,
	}
	t.Normalize()
	return t
}
