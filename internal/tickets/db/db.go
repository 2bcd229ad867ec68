package db

import (
	"context"
	"database/sql"
	"fmt"
	"ms-checkin/internal/apperr"
	"ms-checkin/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- TICKETS ----------------

// GetTicketByID → direct document-id lookup. Returns sql.ErrNoRows when absent.
func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if err := attachCheckIns(ctx, d.Bun, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// FindTicketByNumber → field-equality query on ticket_number.
func (d *DB) FindTicketByNumber(ctx context.Context, ticketNumber string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_number = ?", ticketNumber).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if err := attachCheckIns(ctx, d.Bun, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// FindTicketByEmail → field-equality query on the lowercased email.
func (d *DB) FindTicketByEmail(ctx context.Context, email string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("lower(email) = ?", email).
		OrderExpr("ticket_number ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if err := attachCheckIns(ctx, d.Bun, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// InsertTicketIfAbsent writes the ticket only when no row with the same id or
// ticket number exists. The boolean reports whether this call created it.
func (d *DB) InsertTicketIfAbsent(ctx context.Context, ticket models.Ticket) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(&ticket).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateTicketQR stores a freshly rendered QR image.
func (d *DB) UpdateTicketQR(ctx context.Context, ticketNumber string, qr []byte) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("qr_code = ?", qr).
		Where("ticket_number = ?", ticketNumber).
		Exec(ctx)
	return err
}

// ListTickets → every ticket ordered for display. Check-in flags are not
// attached; the projection reads status from the status store.
func (d *DB) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		ExcludeColumn("qr_code").
		Order("full_name ASC", "ticket_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ---------------- CHECK-IN ----------------

// ApplyCheckIn performs the merge-write for one toggle inside a transaction:
// exactly one ticket_checkins row (or gift_claimed) changes, the advisory scan
// counter is incremented and the last-scan metadata is replaced.
func (d *DB) ApplyCheckIn(ctx context.Context, w models.CheckInWrite) (*models.Ticket, error) {
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if w.Event == models.EventGift {
			if _, err := tx.NewUpdate().
				Model((*models.Ticket)(nil)).
				Set("gift_claimed = ?", w.Status).
				Where("ticket_number = ?", w.TicketNumber).
				Exec(ctx); err != nil {
				return err
			}
		} else {
			row := models.TicketCheckin{
				TicketNumber: w.TicketNumber,
				Segment:      w.Event,
				Checked:      w.Status,
				UpdatedAt:    w.At,
				UpdatedBy:    w.Actor,
			}
			if _, err := tx.NewInsert().
				Model(&row).
				On("CONFLICT (ticket_number, segment) DO UPDATE").
				Set("checked = EXCLUDED.checked").
				Set("updated_at = EXCLUDED.updated_at").
				Set("updated_by = EXCLUDED.updated_by").
				Exec(ctx); err != nil {
				return err
			}
		}

		res, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("scan_count = scan_count + 1").
			Set("last_checkin_at = ?", w.At).
			Set("last_scan_by = ?", nullIfEmpty(w.Actor)).
			Where("ticket_number = ?", w.TicketNumber).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("ticket %s", w.TicketNumber)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return d.FindTicketByNumber(ctx, w.TicketNumber)
}

// CountTickets returns the number of ticket rows.
func (d *DB) CountTickets(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
}

// CountCheckInsBySegment returns, per segment, how many tickets are checked in.
func (d *DB) CountCheckInsBySegment(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Segment string `bun:"segment"`
		Total   int    `bun:"total"`
	}
	err := d.Bun.NewSelect().
		Model((*models.TicketCheckin)(nil)).
		Column("segment").
		ColumnExpr("count(*) AS total").
		Where("checked = ?", true).
		Group("segment").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(models.Segments))
	for _, s := range models.Segments {
		counts[s] = 0
	}
	for _, r := range rows {
		counts[r.Segment] = r.Total
	}
	return counts, nil
}

// CountGiftsClaimed returns the number of tickets with gift_claimed set.
func (d *DB) CountGiftsClaimed(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("gift_claimed = ?", true).
		Count(ctx)
}

// ---------------- PAYMENTS ----------------

// FindPaymentByNumber → field-equality query on payments.ticket_number.
func (d *DB) FindPaymentByNumber(ctx context.Context, ticketNumber string) (*models.Payment, error) {
	var payment models.Payment
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("ticket_number = ?", ticketNumber).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindPaymentByEmail → field-equality query on payments.email, restricted to
// payments that produced a ticket.
func (d *DB) FindPaymentByEmail(ctx context.Context, email string) (*models.Payment, error) {
	var payment models.Payment
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("lower(email) = ?", email).
		Where("ticket_number IS NOT NULL").
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByID → one payment by its gateway id.
func (d *DB) GetPaymentByID(ctx context.Context, paymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("payment_id = ?", paymentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// SavePaymentWithTicket stores the payment and its ticket in one transaction
// so a replayed payment event never yields two tickets.
func (d *DB) SavePaymentWithTicket(ctx context.Context, payment models.Payment, ticket models.Ticket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().Model(&payment).On("CONFLICT DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: payment %s already recorded", apperr.ErrConflict, payment.PaymentID)
		}
		if _, err := tx.NewInsert().Model(&ticket).Exec(ctx); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		return nil
	})
}

// attachCheckIns loads the check-in mapping of the given tickets.
func attachCheckIns(ctx context.Context, idb bun.IDB, tickets ...*models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	numbers := make([]string, 0, len(tickets))
	byNumber := make(map[string]*models.Ticket, len(tickets))
	for _, t := range tickets {
		t.CheckIn = make(map[string]bool, len(models.Segments))
		numbers = append(numbers, t.TicketNumber)
		byNumber[t.TicketNumber] = t
	}

	var rows []models.TicketCheckin
	err := idb.NewSelect().
		Model(&rows).
		Where("ticket_number IN (?)", bun.In(numbers)).
		Scan(ctx)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	for _, r := range rows {
		if t, ok := byNumber[r.TicketNumber]; ok {
			t.CheckIn[r.Segment] = r.Checked
		}
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
