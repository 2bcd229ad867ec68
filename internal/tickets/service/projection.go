package tickets

import (
	"context"
	"fmt"
	"ms-checkin/internal/apperr"
	"ms-checkin/internal/models"
)

type Stats struct {
	TotalTickets  int            `json:"totalTickets"`
	Segments      map[string]int `json:"segments"`
	GiftClaimed   int            `json:"giftClaimed"`
	StatusChecked int            `json:"statusChecked"`
}

// ListAttendees returns every ticket row followed by the seed entries that
// have no ticket row yet, each joined with its display status. Tickets never
// seen by the status store show as not checked in.
func (s *TicketService) ListAttendees(ctx context.Context) ([]models.AttendeeRow, error) {
	tickets, err := s.DB.ListTickets(ctx)
	if err != nil {
		s.Logger.Error("LIST", fmt.Sprintf("Listing tickets failed: %v", err))
		return nil, apperr.Storage("list tickets", err)
	}
	statuses, err := s.Status.All(ctx)
	if err != nil {
		s.Logger.Error("LIST", fmt.Sprintf("Reading check-in status failed: %v", err))
		return nil, err
	}

	rows := make([]models.AttendeeRow, 0, len(tickets)+s.Seed.Len())
	present := make(map[string]struct{}, len(tickets))
	for i := range tickets {
		t := &tickets[i]
		t.Normalize()
		present[t.TicketNumber] = struct{}{}
		rows = append(rows, projectRow(t, statuses))
	}
	for _, a := range s.Seed.All() {
		if _, ok := present[a.TicketNumber]; ok {
			continue
		}
		rows = append(rows, projectRow(a.ToTicket(), statuses))
	}
	return rows, nil
}

func projectRow(t *models.Ticket, statuses map[string]models.StatusEntry) models.AttendeeRow {
	row := models.AttendeeRow{
		FullName:     t.FullName,
		Email:        t.Email,
		TicketType:   t.TicketType,
		TicketNumber: t.TicketNumber,
	}
	if e, ok := statuses[t.TicketNumber]; ok {
		row.CheckedIn = e.Checked
		if !e.At.IsZero() {
			at := e.At
			row.LastScanAt = &at
		}
	}
	return row
}

// Stats summarizes check-ins per segment for the door dashboard.
func (s *TicketService) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.DB.CountTickets(ctx)
	if err != nil {
		return nil, apperr.Storage("count tickets", err)
	}
	segments, err := s.DB.CountCheckInsBySegment(ctx)
	if err != nil {
		return nil, apperr.Storage("count checkins", err)
	}
	gifts, err := s.DB.CountGiftsClaimed(ctx)
	if err != nil {
		return nil, apperr.Storage("count gifts", err)
	}
	statuses, err := s.Status.All(ctx)
	if err != nil {
		return nil, err
	}

	checked := 0
	for _, e := range statuses {
		if e.Checked {
			checked++
		}
	}

	return &Stats{
		TotalTickets:  total,
		Segments:      segments,
		GiftClaimed:   gifts,
		StatusChecked: checked,
	}, nil
}
