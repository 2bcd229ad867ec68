package tickets

import (
	"context"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/seed"
	"ms-checkin/internal/tickets/directory"
	qr "ms-checkin/internal/tickets/qr_genrator"
	"ms-checkin/internal/tickets/status"
	"ms-checkin/internal/tickets/template"
	"time"
)

// TicketDBLayer is the document store behind the check-in flow.
type TicketDBLayer interface {
	directory.Lookups
	InsertTicketIfAbsent(ctx context.Context, ticket models.Ticket) (bool, error)
	ApplyCheckIn(ctx context.Context, w models.CheckInWrite) (*models.Ticket, error)
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	UpdateTicketQR(ctx context.Context, ticketNumber string, qr []byte) error
	CountTickets(ctx context.Context) (int, error)
	CountCheckInsBySegment(ctx context.Context) (map[string]int, error)
	CountGiftsClaimed(ctx context.Context) (int, error)
	GetPaymentByID(ctx context.Context, paymentID string) (*models.Payment, error)
	SavePaymentWithTicket(ctx context.Context, payment models.Payment, ticket models.Ticket) error
}

// Resolver finds an attendee across tickets, payments and the seed list.
type Resolver interface {
	Resolve(ctx context.Context, query string) (directory.Source, *models.Ticket, error)
}

// EventPublisher forwards toggle results to the message bus.
type EventPublisher interface {
	PublishCheckin(ctx context.Context, evt models.CheckinEvent) error
}

// EventEmitter forwards toggle results to live dashboard connections.
type EventEmitter interface {
	Emit(evt models.CheckinEvent)
}

type TicketService struct {
	DB        TicketDBLayer
	Directory Resolver
	Status    status.Store
	Seed      *seed.List
	Publisher EventPublisher
	Emitter   EventEmitter
	QR        *qr.QRGenerator
	PDF       *template.TicketPDFGenerator
	Logger    *logger.Logger

	// TicketPrefix is prepended to generated ticket numbers.
	TicketPrefix string
	// Now is replaced in tests.
	Now func() time.Time
}

func NewTicketService(db TicketDBLayer, resolver Resolver, store status.Store, seedList *seed.List, log *logger.Logger) *TicketService {
	if seedList == nil {
		seedList = seed.New(nil)
	}
	return &TicketService{
		DB:        db,
		Directory: resolver,
		Status:    store,
		Seed:      seedList,
		Logger:    log,
		Now:       time.Now,
	}
}

func (s *TicketService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
