package ticket_api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"ms-checkin/internal/apperr"
	"ms-checkin/internal/auth"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/sse"
	"ms-checkin/internal/tickets/directory"
	tickets "ms-checkin/internal/tickets/service"
	"ms-checkin/internal/tickets/ticket_api"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCheckinService struct {
	mock.Mock
}

func (m *MockCheckinService) Toggle(ctx context.Context, req tickets.ToggleRequest) (*tickets.ToggleResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tickets.ToggleResult), args.Error(1)
}

func (m *MockCheckinService) Get(ctx context.Context, ticketNumber string) (*tickets.CheckinStatus, error) {
	args := m.Called(ctx, ticketNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tickets.CheckinStatus), args.Error(1)
}

func (m *MockCheckinService) BulkCheckIn(ctx context.Context, ticketNumbers []string, checker string) (*tickets.BulkResult, error) {
	args := m.Called(ctx, ticketNumbers, checker)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tickets.BulkResult), args.Error(1)
}

func (m *MockCheckinService) Scan(ctx context.Context, encryptedQR, event, actor string) (*tickets.ToggleResult, error) {
	args := m.Called(ctx, encryptedQR, event, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tickets.ToggleResult), args.Error(1)
}

func (m *MockCheckinService) ListAttendees(ctx context.Context) ([]models.AttendeeRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AttendeeRow), args.Error(1)
}

func (m *MockCheckinService) Stats(ctx context.Context) (*tickets.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tickets.Stats), args.Error(1)
}

func (m *MockCheckinService) Lookup(ctx context.Context, query string) (directory.Source, *models.Ticket, error) {
	args := m.Called(ctx, query)
	if args.Get(1) == nil {
		return "", nil, args.Error(2)
	}
	return args.Get(0).(directory.Source), args.Get(1).(*models.Ticket), args.Error(2)
}

func (m *MockCheckinService) RenderTicketPDF(ctx context.Context, ticketNumber string) ([]byte, error) {
	args := m.Called(ctx, ticketNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func newRouter(svc *MockCheckinService, emitter *sse.CheckinEventEmitter) http.Handler {
	h := ticket_api.NewHandler(svc, emitter, logger.NewNop())
	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestToggleEndpoint(t *testing.T) {
	svc := new(MockCheckinService)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.On("Toggle", mock.Anything, tickets.ToggleRequest{TicketNumber: "A-1", Event: "day1", Status: false, Actor: "gate"}).
		Return(&tickets.ToggleResult{
			TicketNumber: "A-1", Event: "day1", Status: false, At: at,
			Source: directory.SourceTickets, CheckIn: map[string]bool{"day1": false},
		}, nil)

	rec := do(t, newRouter(svc, nil), http.MethodPost, "/api/checkin/toggle",
		`{"ticketNumber":"A-1","event":"day1","status":false,"checker":"gate"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "A-1", body["ticketNumber"])
	assert.Equal(t, "tickets", body["source"])
	assert.Equal(t, false, body["status"])
	svc.AssertExpectations(t)
}

func TestToggleEndpointPrefersAuthenticatedActor(t *testing.T) {
	svc := new(MockCheckinService)
	svc.On("Toggle", mock.Anything, mock.MatchedBy(func(req tickets.ToggleRequest) bool {
		return req.Actor == "staff-7"
	})).Return(&tickets.ToggleResult{TicketNumber: "A-1"}, nil)

	h := ticket_api.NewHandler(svc, nil, logger.NewNop())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), auth.Claims{Subject: "s", PreferredUsername: "staff-7"})))
		})
	})
	r.Route("/api", h.RegisterRoutes)

	rec := do(t, r, http.MethodPost, "/api/checkin/toggle", `{"ticketNumber":"A-1","event":"gift","status":true,"checker":"ignored"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestToggleEndpointValidation(t *testing.T) {
	svc := new(MockCheckinService)
	router := newRouter(svc, nil)

	cases := map[string]string{
		"missing status":  `{"ticketNumber":"A-1","event":"day1"}`,
		"unknown event":   `{"ticketNumber":"A-1","event":"lunch","status":true}`,
		"missing ticket":  `{"event":"day1","status":true}`,
		"unknown field":   `{"ticketNumber":"A-1","event":"day1","status":true,"extra":1}`,
		"malformed json":  `{"ticketNumber":`,
		"empty body":      ``,
		"wrong type":      `{"ticketNumber":"A-1","event":"day1","status":"yes"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/checkin/toggle", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, decode(t, rec)["ok"])
		})
	}
	svc.AssertNotCalled(t, "Toggle", mock.Anything, mock.Anything)
}

func TestToggleEndpointErrorMapping(t *testing.T) {
	svc := new(MockCheckinService)
	svc.On("Toggle", mock.Anything, mock.MatchedBy(func(r tickets.ToggleRequest) bool { return r.TicketNumber == "NOPE" })).
		Return(nil, apperr.NotFound("ticket NOPE"))
	svc.On("Toggle", mock.Anything, mock.MatchedBy(func(r tickets.ToggleRequest) bool { return r.TicketNumber == "BOOM" })).
		Return(nil, apperr.Storage("apply checkin", assert.AnError))
	router := newRouter(svc, nil)

	rec := do(t, router, http.MethodPost, "/api/checkin/toggle", `{"ticketNumber":"NOPE","event":"day1","status":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "NOPE")

	rec = do(t, router, http.MethodPost, "/api/checkin/toggle", `{"ticketNumber":"BOOM","event":"day1","status":true}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestBulkEndpoint(t *testing.T) {
	svc := new(MockCheckinService)
	svc.On("BulkCheckIn", mock.Anything, []string{"A-1", "a-1 "}, "sup").
		Return(&tickets.BulkResult{Count: 1, StoredIn: "primary", FilePath: "/data/checkins.json", TicketNumbers: []string{"A-1"}}, nil)
	router := newRouter(svc, nil)

	rec := do(t, router, http.MethodPost, "/api/checkin/bulk", `{"ticketNumbers":["A-1","a-1 "],"checker":"sup"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, "primary", body["storedIn"])
	assert.Equal(t, "/data/checkins.json", body["filePath"])

	rec = do(t, router, http.MethodPost, "/api/checkin/bulk", `{"ticketNumbers":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEndpoint(t *testing.T) {
	svc := new(MockCheckinService)
	svc.On("ListAttendees", mock.Anything).Return([]models.AttendeeRow{
		{FullName: "Atin", TicketNumber: "CONF-ATIN12345", TicketType: "General Admission"},
	}, nil)

	rec := do(t, newRouter(svc, nil), http.MethodGet, "/api/checkin/list", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"rows":[{"fullName":"Atin","email":"","ticketType":"General Admission","ticketNumber":"CONF-ATIN12345","checkedIn":false,"lastScanAt":null}]}`, rec.Body.String())
}

func TestGetStatusEndpoint(t *testing.T) {
	svc := new(MockCheckinService)
	svc.On("Get", mock.Anything, "A-1").Return(&tickets.CheckinStatus{TicketNumber: "A-1", Source: directory.SourceSeed, Checked: true}, nil)

	rec := do(t, newRouter(svc, nil), http.MethodGet, "/api/checkin/A-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "seed", body["source"])
	assert.Equal(t, true, body["checked"])
}

func TestScanEndpoint(t *testing.T) {
	svc := new(MockCheckinService)
	svc.On("Scan", mock.Anything, "tok", "dinner", "door-3").Return(&tickets.ToggleResult{TicketNumber: "A-1", Event: "dinner", Status: true}, nil)

	rec := do(t, newRouter(svc, nil), http.MethodPost, "/api/checkin/scan", `{"encrypted_qr":"tok","event":"dinner","scanner":"door-3"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A-1", decode(t, rec)["ticketNumber"])
}

func TestLookupEndpoint(t *testing.T) {
	svc := new(MockCheckinService)
	svc.On("Lookup", mock.Anything, "ada@example.com").Return(directory.SourcePayments, &models.Ticket{TicketNumber: "A-1", Email: "ada@example.com"}, nil)
	svc.On("Lookup", mock.Anything, "").Return("", nil, apperr.Validation("ticket number or email is required"))
	router := newRouter(svc, nil)

	rec := do(t, router, http.MethodGet, "/api/attendees/lookup?q=ada@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "payments", body["source"])

	rec = do(t, router, http.MethodGet, "/api/attendees/lookup", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTicketPDFEndpoint(t *testing.T) {
	svc := new(MockCheckinService)
	svc.On("RenderTicketPDF", mock.Anything, "A-1").Return([]byte("%PDF-1.4"), nil)

	rec := do(t, newRouter(svc, nil), http.MethodGet, "/api/tickets/a-1/pdf", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "A-1.pdf")
}

func TestStreamEndpoint(t *testing.T) {
	emitter := sse.NewCheckinEventEmitter()
	srv := httptest.NewServer(newRouter(new(MockCheckinService), emitter))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/checkin/stream?event=day1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream;charset=UTF-8", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return emitter.ClientCount("day1") == 1 }, time.Second, 10*time.Millisecond)
	emitter.Emit(models.CheckinEvent{TicketNumber: "A-1", Event: "day1", Status: true})

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: checkin") {
			break
		}
	}
	data, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, data, `"ticketNumber":"A-1"`)

	rec := do(t, newRouter(new(MockCheckinService), emitter), http.MethodGet, "/api/checkin/stream?event=lunch", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
