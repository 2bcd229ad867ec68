package models

import "time"

// PaymentSucceededEvent is consumed from the payment topic and turns into an
// issued ticket.
type PaymentSucceededEvent struct {
	PaymentID  string    `json:"payment_id"`
	Reference  string    `json:"reference,omitempty"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	TicketType string    `json:"ticket_type"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	PaidAt     time.Time `json:"paid_at"`
}

// ToPayment converts the event into the payment row persisted on issuance.
func (e PaymentSucceededEvent) ToPayment() Payment {
	created := e.PaidAt
	if created.IsZero() {
		created = time.Now()
	}
	return Payment{
		PaymentID:  e.PaymentID,
		Email:      NormalizeEmail(e.Email),
		FullName:   e.FullName,
		TicketType: e.TicketType,
		Amount:     e.Amount,
		Currency:   e.Currency,
		Status:     StatusSuccess,
		Reference:  e.Reference,
		CreatedAt:  created,
	}
}

// CheckinEvent is published after every successful toggle.
type CheckinEvent struct {
	TicketNumber string    `json:"ticketNumber"`
	Event        string    `json:"event"`
	Status       bool      `json:"status"`
	At           time.Time `json:"at"`
	By           string    `json:"by,omitempty"`
	Source       string    `json:"source"`
	FullName     string    `json:"fullName,omitempty"`
}
