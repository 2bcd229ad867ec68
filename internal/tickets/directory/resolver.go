package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ms-checkin/internal/apperr"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/seed"
	"strings"
)

// Source tells which store answered a lookup.
type Source string

const (
	SourceTickets  Source = "tickets"
	SourcePayments Source = "payments"
	SourceSeed     Source = "seed"
	// SourceUpserted is reported by the toggle flow when a payments or seed
	// hit was copied into the tickets table.
	SourceUpserted Source = "upserted"
)

// Lookups is the read side of the document store used by the resolver.
type Lookups interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	FindTicketByNumber(ctx context.Context, ticketNumber string) (*models.Ticket, error)
	FindTicketByEmail(ctx context.Context, email string) (*models.Ticket, error)
	FindPaymentByNumber(ctx context.Context, ticketNumber string) (*models.Payment, error)
	FindPaymentByEmail(ctx context.Context, email string) (*models.Payment, error)
}

type Resolver struct {
	DB     Lookups
	Seed   *seed.List
	Logger *logger.Logger
}

func NewResolver(db Lookups, seedList *seed.List, log *logger.Logger) *Resolver {
	if seedList == nil {
		seedList = seed.New(nil)
	}
	return &Resolver{DB: db, Seed: seedList, Logger: log}
}

// Resolve finds one attendee by ticket number or email. Sources are probed in
// order and the first hit wins; records from different sources are never
// merged. An empty result moves on to the next source, any other backend
// error stops the lookup.
func (r *Resolver) Resolve(ctx context.Context, query string) (Source, *models.Ticket, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil, apperr.Validation("ticket number or email is required")
	}

	if models.LooksLikeEmail(query) {
		return r.resolveEmail(ctx, models.NormalizeEmail(query))
	}
	return r.resolveNumber(ctx, models.NormalizeTicketNumber(query))
}

func (r *Resolver) resolveNumber(ctx context.Context, tn string) (Source, *models.Ticket, error) {
	if tn == "" {
		return "", nil, apperr.Validation("ticket number is required")
	}

	ticket, err := r.DB.GetTicketByID(ctx, tn)
	if hit, err := r.checkProbe("tickets.id", err); err != nil {
		return "", nil, err
	} else if hit {
		return SourceTickets, finish(ticket), nil
	}

	ticket, err = r.DB.FindTicketByNumber(ctx, tn)
	if hit, err := r.checkProbe("tickets.ticket_number", err); err != nil {
		return "", nil, err
	} else if hit {
		return SourceTickets, finish(ticket), nil
	}

	payment, err := r.DB.FindPaymentByNumber(ctx, tn)
	if hit, err := r.checkProbe("payments.ticket_number", err); err != nil {
		return "", nil, err
	} else if hit {
		return SourcePayments, payment.ToTicket(), nil
	}

	if a, ok := r.Seed.ByTicketNumber(tn); ok {
		return SourceSeed, a.ToTicket(), nil
	}

	return "", nil, apperr.NotFound("ticket %s", tn)
}

func (r *Resolver) resolveEmail(ctx context.Context, email string) (Source, *models.Ticket, error) {
	ticket, err := r.DB.FindTicketByEmail(ctx, email)
	if hit, err := r.checkProbe("tickets.email", err); err != nil {
		return "", nil, err
	} else if hit {
		return SourceTickets, finish(ticket), nil
	}

	payment, err := r.DB.FindPaymentByEmail(ctx, email)
	if hit, err := r.checkProbe("payments.email", err); err != nil {
		return "", nil, err
	} else if hit {
		return SourcePayments, payment.ToTicket(), nil
	}

	if a, ok := r.Seed.ByEmail(email); ok {
		return SourceSeed, a.ToTicket(), nil
	}

	return "", nil, apperr.NotFound("attendee %s", email)
}

// checkProbe reports whether a probe produced a record. sql.ErrNoRows is a
// miss, anything else aborts the lookup.
func (r *Resolver) checkProbe(probe string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	r.Logger.Error("DIRECTORY", fmt.Sprintf("Lookup %s failed: %v", probe, err))
	return false, apperr.Storage("lookup "+probe, err)
}

func finish(t *models.Ticket) *models.Ticket {
	t.Normalize()
	if t.CheckIn == nil {
		t.CheckIn = map[string]bool{}
	}
	return t
}
