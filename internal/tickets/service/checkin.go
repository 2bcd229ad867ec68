package tickets

import (
	"context"
	"errors"
	"fmt"
	"ms-checkin/internal/apperr"
	"ms-checkin/internal/models"
	"ms-checkin/internal/tickets/directory"
	"strings"
	"time"
)

const publishTimeout = 3 * time.Second

type ToggleRequest struct {
	TicketNumber string
	Event        string
	Status       bool
	Actor        string
}

type ToggleResult struct {
	TicketNumber string           `json:"ticketNumber"`
	Event        string           `json:"event"`
	Status       bool             `json:"status"`
	At           time.Time        `json:"at"`
	Source       directory.Source `json:"source"`
	FullName     string           `json:"fullName"`
	CheckIn      map[string]bool  `json:"checkIn"`
	GiftClaimed  bool             `json:"giftClaimed"`
	ScanCount    int              `json:"scanCount"`
}

// CheckinStatus is the read-only view of one attendee.
type CheckinStatus struct {
	TicketNumber string           `json:"ticketNumber"`
	Source       directory.Source `json:"source"`
	FullName     string           `json:"fullName"`
	Email        string           `json:"email"`
	TicketType   string           `json:"ticketType"`
	CheckIn      map[string]bool  `json:"checkIn"`
	GiftClaimed  bool             `json:"giftClaimed"`
	ScanCount    int              `json:"scanCount"`
	Checked      bool             `json:"checked"`
	LastScanAt   *time.Time       `json:"lastScanAt"`
}

type BulkResult struct {
	Count         int      `json:"count"`
	StoredIn      string   `json:"storedIn"`
	FilePath      string   `json:"filePath,omitempty"`
	TicketNumbers []string `json:"ticketNumbers"`
}

// Toggle sets one event flag of one attendee. Attendees found only in
// payments or the seed list are first copied into the tickets table. The
// write itself changes exactly one flag plus the advisory scan metadata, so
// repeating a toggle leaves the flags as they were.
func (s *TicketService) Toggle(ctx context.Context, req ToggleRequest) (*ToggleResult, error) {
	tn := models.NormalizeTicketNumber(req.TicketNumber)
	event := strings.TrimSpace(req.Event)
	if tn == "" {
		return nil, apperr.Validation("ticketNumber is required")
	}
	if !models.IsAllowedEvent(event) {
		return nil, apperr.Validation("event %q is not one of %s, %s", event, strings.Join(models.Segments, ", "), models.EventGift)
	}

	src, ticket, err := s.Directory.Resolve(ctx, tn)
	if err != nil {
		return nil, err
	}

	if src == directory.SourcePayments || src == directory.SourceSeed {
		created, err := s.DB.InsertTicketIfAbsent(ctx, *ticket)
		if err != nil {
			return nil, apperr.Storage("upsert ticket "+ticket.TicketNumber, err)
		}
		if created {
			s.Logger.LogCheckin("UPSERT", ticket.TicketNumber, fmt.Sprintf("created from %s", src))
		}
		src = directory.SourceUpserted
	}

	at := s.now()
	updated, err := s.DB.ApplyCheckIn(ctx, models.CheckInWrite{
		TicketNumber: ticket.TicketNumber,
		Event:        event,
		Status:       req.Status,
		Actor:        req.Actor,
		At:           at,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		s.Logger.Error("CHECKIN", fmt.Sprintf("Check-in write for %s failed: %v", ticket.TicketNumber, err))
		return nil, apperr.Storage("apply checkin", err)
	}

	// The status store only feeds the list view; the tickets table already
	// holds the authoritative flags.
	if _, err := s.Status.Put(ctx, map[string]models.StatusEntry{
		updated.TicketNumber: {Checked: updated.CheckedIn(), At: at, By: req.Actor},
	}); err != nil {
		s.Logger.Warn("CHECKIN", fmt.Sprintf("Status write-through for %s failed: %v", updated.TicketNumber, err))
	}

	s.Logger.LogCheckin("TOGGLE", updated.TicketNumber, fmt.Sprintf("%s=%t source=%s by=%s", event, req.Status, src, req.Actor))

	s.announce(ctx, models.CheckinEvent{
		TicketNumber: updated.TicketNumber,
		Event:        event,
		Status:       req.Status,
		At:           at,
		By:           req.Actor,
		Source:       string(src),
		FullName:     updated.FullName,
	})

	return &ToggleResult{
		TicketNumber: updated.TicketNumber,
		Event:        event,
		Status:       req.Status,
		At:           at,
		Source:       src,
		FullName:     updated.FullName,
		CheckIn:      updated.Flags(),
		GiftClaimed:  updated.GiftClaimed,
		ScanCount:    updated.ScanCount,
	}, nil
}

// announce is best effort: a failed publish never fails the toggle.
func (s *TicketService) announce(ctx context.Context, evt models.CheckinEvent) {
	if s.Emitter != nil {
		s.Emitter.Emit(evt)
	}
	if s.Publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Publisher.PublishCheckin(pubCtx, evt); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Checkin event for %s not published: %v", evt.TicketNumber, err))
	}
}

// Get resolves one attendee and reports its flags and display status.
func (s *TicketService) Get(ctx context.Context, ticketNumber string) (*CheckinStatus, error) {
	tn := models.NormalizeTicketNumber(ticketNumber)
	if tn == "" {
		return nil, apperr.Validation("ticketNumber is required")
	}

	src, ticket, err := s.Directory.Resolve(ctx, tn)
	if err != nil {
		return nil, err
	}

	entry, ok, err := s.Status.Get(ctx, ticket.TicketNumber)
	if err != nil {
		return nil, err
	}

	out := &CheckinStatus{
		TicketNumber: ticket.TicketNumber,
		Source:       src,
		FullName:     ticket.FullName,
		Email:        ticket.Email,
		TicketType:   ticket.TicketType,
		CheckIn:      ticket.Flags(),
		GiftClaimed:  ticket.GiftClaimed,
		ScanCount:    ticket.ScanCount,
	}
	if ok {
		out.Checked = entry.Checked
		if !entry.At.IsZero() {
			at := entry.At
			out.LastScanAt = &at
		}
	}
	return out, nil
}

// BulkCheckIn marks many tickets as checked in the status store with one
// timestamp and one write. Blank and duplicate numbers are dropped.
func (s *TicketService) BulkCheckIn(ctx context.Context, ticketNumbers []string, checker string) (*BulkResult, error) {
	seen := make(map[string]struct{}, len(ticketNumbers))
	unique := make([]string, 0, len(ticketNumbers))
	for _, raw := range ticketNumbers {
		tn := models.NormalizeTicketNumber(raw)
		if tn == "" {
			continue
		}
		if _, dup := seen[tn]; dup {
			continue
		}
		seen[tn] = struct{}{}
		unique = append(unique, tn)
	}
	if len(unique) == 0 {
		return nil, apperr.Validation("ticketNumbers must contain at least one ticket number")
	}

	at := s.now()
	entries := make(map[string]models.StatusEntry, len(unique))
	for _, tn := range unique {
		entries[tn] = models.StatusEntry{Checked: true, At: at, By: checker}
	}

	res, err := s.Status.Put(ctx, entries)
	if err != nil {
		s.Logger.Error("CHECKIN", fmt.Sprintf("Bulk check-in of %d tickets failed: %v", len(unique), err))
		return nil, err
	}
	s.Logger.LogCheckin("BULK", fmt.Sprintf("%d tickets", len(unique)), fmt.Sprintf("stored in %s by=%s", res.StoredIn, checker))

	return &BulkResult{
		Count:         len(unique),
		StoredIn:      res.StoredIn,
		FilePath:      res.FilePath,
		TicketNumbers: unique,
	}, nil
}

// Scan decrypts a ticket QR code and checks the holder into event.
func (s *TicketService) Scan(ctx context.Context, encryptedQR, event, actor string) (*ToggleResult, error) {
	if strings.TrimSpace(encryptedQR) == "" {
		return nil, apperr.Validation("encrypted_qr is required")
	}
	if !models.IsAllowedEvent(strings.TrimSpace(event)) {
		return nil, apperr.Validation("event %q is not allowed", event)
	}
	if s.QR == nil {
		return nil, fmt.Errorf("qr decoding is not configured")
	}
	payload, err := s.QR.Decrypt(strings.TrimSpace(encryptedQR))
	if err != nil {
		s.Logger.LogSecurity("QR_REJECTED", fmt.Sprintf("scan by %s rejected: %v", actor, err))
		return nil, err
	}
	return s.Toggle(ctx, ToggleRequest{
		TicketNumber: payload.TicketNumber,
		Event:        event,
		Status:       true,
		Actor:        actor,
	})
}

// Lookup resolves an attendee by ticket number or email without writing.
func (s *TicketService) Lookup(ctx context.Context, query string) (directory.Source, *models.Ticket, error) {
	src, ticket, err := s.Directory.Resolve(ctx, query)
	if err != nil {
		return "", nil, err
	}
	ticket.QRCode = nil
	return src, ticket, nil
}
