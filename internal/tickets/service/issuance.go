package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ms-checkin/internal/apperr"
	"ms-checkin/internal/models"
	"ms-checkin/internal/utils"
	"strings"
)

const maxTicketNumberAttempts = 3

// IssueFromPayment creates the ticket for a successful payment. Replays of
// the same payment return the ticket issued the first time.
func (s *TicketService) IssueFromPayment(ctx context.Context, evt models.PaymentSucceededEvent) (*models.Ticket, error) {
	if strings.TrimSpace(evt.PaymentID) == "" {
		return nil, apperr.Validation("payment_id is required")
	}
	if existing, err := s.issuedFor(ctx, evt.PaymentID); err != nil || existing != nil {
		return existing, err
	}

	payment := evt.ToPayment()
	var lastErr error
	for attempt := 0; attempt < maxTicketNumberAttempts; attempt++ {
		ticket, err := s.buildTicket(payment)
		if err != nil {
			return nil, err
		}
		payment.TicketNumber = ticket.TicketNumber

		err = s.DB.SavePaymentWithTicket(ctx, payment, *ticket)
		if err == nil {
			s.Logger.LogCheckin("ISSUE", ticket.TicketNumber, fmt.Sprintf("issued for payment %s", payment.PaymentID))
			return ticket, nil
		}
		if errors.Is(err, apperr.ErrConflict) {
			// Another consumer recorded this payment first.
			return s.issuedFor(ctx, evt.PaymentID)
		}
		// Most likely a ticket number collision; draw a new number.
		s.Logger.Warn("ISSUE", fmt.Sprintf("Issuing for payment %s failed (attempt %d): %v", payment.PaymentID, attempt+1, err))
		lastErr = err
	}
	return nil, apperr.Storage("issue ticket", lastErr)
}

// issuedFor returns the ticket already issued for a payment, or nil.
func (s *TicketService) issuedFor(ctx context.Context, paymentID string) (*models.Ticket, error) {
	existing, err := s.DB.GetPaymentByID(ctx, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("lookup payment "+paymentID, err)
	}
	if existing.TicketNumber == "" {
		return nil, nil
	}
	ticket, err := s.DB.FindTicketByNumber(ctx, existing.TicketNumber)
	if err != nil {
		return nil, apperr.Storage("lookup ticket "+existing.TicketNumber, err)
	}
	return ticket, nil
}

func (s *TicketService) buildTicket(p models.Payment) (*models.Ticket, error) {
	ticket := &models.Ticket{
		TicketNumber: utils.GenerateTicketNumber(s.prefix(), p.FullName),
		FullName:     p.FullName,
		Email:        p.Email,
		TicketType:   p.TicketType,
		Source:       models.TicketSourcePurchase,
		IssuedAt:     s.now(),
	}
	ticket.Normalize()

	if s.QR != nil {
		qrBytes, err := s.QR.GenerateEncryptedQR(*ticket)
		if err != nil {
			return nil, fmt.Errorf("failed to generate QR: %w", err)
		}
		ticket.QRCode = qrBytes
	}
	return ticket, nil
}

func (s *TicketService) prefix() string {
	if s.TicketPrefix == "" {
		return "CONF"
	}
	return s.TicketPrefix
}

// RenderTicketPDF draws the printable ticket. Only tickets issued into the
// tickets table have a PDF; a missing QR image is generated and stored.
func (s *TicketService) RenderTicketPDF(ctx context.Context, ticketNumber string) ([]byte, error) {
	tn := models.NormalizeTicketNumber(ticketNumber)
	if tn == "" {
		return nil, apperr.Validation("ticketNumber is required")
	}
	if s.PDF == nil {
		return nil, fmt.Errorf("pdf rendering is not configured")
	}

	ticket, err := s.DB.FindTicketByNumber(ctx, tn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ticket %s", tn)
	}
	if err != nil {
		return nil, apperr.Storage("lookup ticket "+tn, err)
	}
	ticket.Normalize()

	if len(ticket.QRCode) == 0 && s.QR != nil {
		if ticket.IssuedAt.IsZero() {
			ticket.IssuedAt = s.now()
		}
		qrBytes, err := s.QR.GenerateEncryptedQR(*ticket)
		if err != nil {
			return nil, fmt.Errorf("failed to generate QR: %w", err)
		}
		ticket.QRCode = qrBytes
		if err := s.DB.UpdateTicketQR(ctx, tn, qrBytes); err != nil {
			s.Logger.Warn("ISSUE", fmt.Sprintf("Storing QR for %s failed: %v", tn, err))
		}
	}

	return s.PDF.Generate(*ticket, ticket.QRCode)
}
