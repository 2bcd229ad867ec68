package seed

import (
	"fmt"
	"ms-checkin/internal/models"
	"os"

	"gopkg.in/yaml.v3"
)

// List is the read-only fallback attendee list. It is built once at startup
// and never mutated, so it is safe for concurrent readers.
type List struct {
	ordered  []models.SeedAttendee
	byNumber map[string]int
	byEmail  map[string]int
}

type seedFile struct {
	Attendees []models.SeedAttendee `yaml:"attendees"`
}

// New normalizes the given attendees. When two entries share a ticket number
// the first one wins; entries without a ticket number are dropped.
func New(attendees []models.SeedAttendee) *List {
	l := &List{
		byNumber: make(map[string]int, len(attendees)),
		byEmail:  make(map[string]int, len(attendees)),
	}
	for _, a := range attendees {
		a.TicketNumber = models.NormalizeTicketNumber(a.TicketNumber)
		a.Email = models.NormalizeEmail(a.Email)
		if a.TicketNumber == "" {
			continue
		}
		if _, dup := l.byNumber[a.TicketNumber]; dup {
			continue
		}
		if a.FullName == "" {
			a.FullName = models.DefaultFullName
		}
		if a.TicketType == "" {
			a.TicketType = models.DefaultTicketType
		}
		idx := len(l.ordered)
		l.ordered = append(l.ordered, a)
		l.byNumber[a.TicketNumber] = idx
		if a.Email != "" {
			if _, seen := l.byEmail[a.Email]; !seen {
				l.byEmail[a.Email] = idx
			}
		}
	}
	return l
}

// Load reads a YAML (or JSON) file of the form `attendees: [...]`. An empty
// path yields an empty list.
func Load(path string) (*List, error) {
	if path == "" {
		return New(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return New(f.Attendees), nil
}

// ByTicketNumber looks up an attendee by ticket number in any form.
func (l *List) ByTicketNumber(raw string) (models.SeedAttendee, bool) {
	idx, ok := l.byNumber[models.NormalizeTicketNumber(raw)]
	if !ok {
		return models.SeedAttendee{}, false
	}
	return l.ordered[idx], true
}

// ByEmail returns the first attendee registered with the address.
func (l *List) ByEmail(raw string) (models.SeedAttendee, bool) {
	idx, ok := l.byEmail[models.NormalizeEmail(raw)]
	if !ok {
		return models.SeedAttendee{}, false
	}
	return l.ordered[idx], true
}

// All returns a copy of the list in file order.
func (l *List) All() []models.SeedAttendee {
	out := make([]models.SeedAttendee, len(l.ordered))
	copy(out, l.ordered)
	return out
}

func (l *List) Len() int { return len(l.ordered) }
