package tickets_test

import (
	"context"
	"ms-checkin/internal/models"
	"ms-checkin/internal/tickets/status"
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockTicketDBLayer is a mock implementation of the TicketDBLayer interface
type MockTicketDBLayer struct {
	mock.Mock
}

func (m *MockTicketDBLayer) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) FindTicketByNumber(ctx context.Context, ticketNumber string) (*models.Ticket, error) {
	args := m.Called(ctx, ticketNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) FindTicketByEmail(ctx context.Context, email string) (*models.Ticket, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) FindPaymentByNumber(ctx context.Context, ticketNumber string) (*models.Payment, error) {
	args := m.Called(ctx, ticketNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockTicketDBLayer) FindPaymentByEmail(ctx context.Context, email string) (*models.Payment, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockTicketDBLayer) InsertTicketIfAbsent(ctx context.Context, ticket models.Ticket) (bool, error) {
	args := m.Called(ctx, ticket)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketDBLayer) ApplyCheckIn(ctx context.Context, w models.CheckInWrite) (*models.Ticket, error) {
	args := m.Called(ctx, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) UpdateTicketQR(ctx context.Context, ticketNumber string, qr []byte) error {
	args := m.Called(ctx, ticketNumber, qr)
	return args.Error(0)
}

func (m *MockTicketDBLayer) CountTickets(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockTicketDBLayer) CountCheckInsBySegment(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockTicketDBLayer) CountGiftsClaimed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockTicketDBLayer) GetPaymentByID(ctx context.Context, paymentID string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockTicketDBLayer) SavePaymentWithTicket(ctx context.Context, payment models.Payment, ticket models.Ticket) error {
	args := m.Called(ctx, payment, ticket)
	return args.Error(0)
}

// MockStatusStore is a mock implementation of status.Store
type MockStatusStore struct {
	mock.Mock
}

func (m *MockStatusStore) Get(ctx context.Context, ticketNumber string) (models.StatusEntry, bool, error) {
	args := m.Called(ctx, ticketNumber)
	return args.Get(0).(models.StatusEntry), args.Bool(1), args.Error(2)
}

func (m *MockStatusStore) All(ctx context.Context) (map[string]models.StatusEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.StatusEntry), args.Error(1)
}

func (m *MockStatusStore) Put(ctx context.Context, entries map[string]models.StatusEntry) (status.WriteResult, error) {
	args := m.Called(ctx, entries)
	return args.Get(0).(status.WriteResult), args.Error(1)
}

// recorder collects announced events for both the bus and the SSE side.
type recorder struct {
	mu        sync.Mutex
	published []models.CheckinEvent
	emitted   []models.CheckinEvent
	err       error
}

func (r *recorder) PublishCheckin(_ context.Context, evt models.CheckinEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, evt)
	return r.err
}

func (r *recorder) Emit(evt models.CheckinEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitted = append(r.emitted, evt)
}
