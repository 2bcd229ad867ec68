package ticket_api

import (
	"context"
	"encoding/json"
	"fmt"
	"ms-checkin/internal/auth"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/sse"
	"ms-checkin/internal/tickets/directory"
	tickets "ms-checkin/internal/tickets/service"
	"ms-checkin/internal/utils"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// CheckinService is what the handlers need from the ticket service.
type CheckinService interface {
	Toggle(ctx context.Context, req tickets.ToggleRequest) (*tickets.ToggleResult, error)
	Get(ctx context.Context, ticketNumber string) (*tickets.CheckinStatus, error)
	BulkCheckIn(ctx context.Context, ticketNumbers []string, checker string) (*tickets.BulkResult, error)
	Scan(ctx context.Context, encryptedQR, event, actor string) (*tickets.ToggleResult, error)
	ListAttendees(ctx context.Context) ([]models.AttendeeRow, error)
	Stats(ctx context.Context) (*tickets.Stats, error)
	Lookup(ctx context.Context, query string) (directory.Source, *models.Ticket, error)
	RenderTicketPDF(ctx context.Context, ticketNumber string) ([]byte, error)
}

type Handler struct {
	TicketService CheckinService
	Emitter       *sse.CheckinEventEmitter
	Logger        *logger.Logger
}

func NewHandler(svc CheckinService, emitter *sse.CheckinEventEmitter, log *logger.Logger) *Handler {
	return &Handler{TicketService: svc, Emitter: emitter, Logger: log}
}

// RegisterRoutes mounts the check-in API on r (expected under /api).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/checkin", func(r chi.Router) {
		r.Get("/list", h.ListAttendees)
		r.Get("/stats", h.Stats)
		r.Get("/stream", h.Stream)
		r.Post("/toggle", h.Toggle)
		r.Post("/bulk", h.BulkCheckin)
		r.Post("/scan", h.Scan)
		r.Get("/{ticketNumber}", h.GetStatus)
	})
	r.Get("/attendees/lookup", h.Lookup)
	r.Get("/tickets/{ticketNumber}/pdf", h.TicketPDF)
}

// actor prefers the authenticated caller over a name sent in the body.
func actor(r *http.Request, fallback string) string {
	if a := auth.Actor(r.Context()); a != "" {
		return a
	}
	return strings.TrimSpace(fallback)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.Logger.Debug("API", fmt.Sprintf("%s %s failed: %v", r.Method, r.URL.Path, err))
	utils.WriteError(w, err)
}

// ListAttendees returns the attendee list with display status.
func (h *Handler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	rows, err := h.TicketService.ListAttendees(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "rows": rows})
}

// Toggle sets one event flag of one attendee.
// Expected POST body: {"ticketNumber": "...", "event": "day1", "status": true}
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if err := decodeAndValidate(r.Context(), w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.TicketService.Toggle(r.Context(), tickets.ToggleRequest{
		TicketNumber: req.TicketNumber,
		Event:        req.Event,
		Status:       *req.Status,
		Actor:        actor(r, req.Checker),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*tickets.ToggleResult
	}{OK: true, ToggleResult: res})
}

// BulkCheckin marks many tickets as checked in the status store.
func (h *Handler) BulkCheckin(w http.ResponseWriter, r *http.Request) {
	var req BulkCheckinRequest
	if err := decodeAndValidate(r.Context(), w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.TicketService.BulkCheckIn(r.Context(), req.TicketNumbers, actor(r, req.Checker))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*tickets.BulkResult
	}{OK: true, BulkResult: res})
}

// GetStatus reports the flags and display status of one ticket.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.TicketService.Get(r.Context(), chi.URLParam(r, "ticketNumber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*tickets.CheckinStatus
	}{OK: true, CheckinStatus: res})
}

// Scan checks in the holder of an encrypted ticket QR code.
// Expected POST body: {"encrypted_qr": "base64url", "event": "day1"}
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeAndValidate(r.Context(), w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.TicketService.Scan(r.Context(), req.EncryptedQR, req.Event, actor(r, req.Scanner))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*tickets.ToggleResult
	}{OK: true, ToggleResult: res})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.TicketService.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*tickets.Stats
	}{OK: true, Stats: stats})
}

// Lookup finds an attendee by ticket number or email: /attendees/lookup?q=
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	src, ticket, err := h.TicketService.Lookup(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"source":   src,
		"attendee": ticket,
	})
}

// TicketPDF streams the printable ticket.
func (h *Handler) TicketPDF(w http.ResponseWriter, r *http.Request) {
	ticketNumber := models.NormalizeTicketNumber(chi.URLParam(r, "ticketNumber"))
	pdf, err := h.TicketService.RenderTicketPDF(r.Context(), ticketNumber)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ticketNumber+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// Stream pushes check-in events to the door dashboard: /checkin/stream?event=day1
// Without an event parameter every check-in is streamed.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	event := strings.TrimSpace(r.URL.Query().Get("event"))
	if event != sse.AllEvents && !models.IsAllowedEvent(event) {
		utils.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("event %q is not allowed", event))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok || h.Emitter == nil {
		utils.WriteErrorMessage(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	setupSSEHeaders(w)
	ctx := r.Context()
	eventChan := h.Emitter.Subscribe(ctx, event)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"event\":%q}\n\n", event)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to check-in stream (event=%q)", event))

	for {
		select {
		case evt, ok := <-eventChan:
			if !ok {
				return
			}
			jsonData, err := json.Marshal(evt)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize checkin event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: checkin\ndata: %s\n\n", jsonData)
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from check-in stream (event=%q)", event))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
