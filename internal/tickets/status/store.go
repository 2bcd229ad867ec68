package status

import (
	"context"
	"ms-checkin/internal/models"
)

// Where a write landed.
const (
	StoredInRedis   = "redis"
	StoredInPrimary = "primary"
	StoredInTmp     = "tmp"
)

// WriteResult reports where a Put was persisted. FilePath is only set by the
// file backend.
type WriteResult struct {
	StoredIn string `json:"storedIn"`
	FilePath string `json:"filePath,omitempty"`
}

// Store keeps the display-oriented check-in status per ticket number. Put is
// a merge: keys absent from the argument keep their current value.
type Store interface {
	Get(ctx context.Context, ticketNumber string) (models.StatusEntry, bool, error)
	All(ctx context.Context) (map[string]models.StatusEntry, error)
	Put(ctx context.Context, entries map[string]models.StatusEntry) (WriteResult, error)
}

// normalizeKeys rewrites keys into canonical ticket numbers and drops empty
// ones. Later duplicates overwrite earlier ones.
func normalizeKeys(entries map[string]models.StatusEntry) map[string]models.StatusEntry {
	out := make(map[string]models.StatusEntry, len(entries))
	for k, v := range entries {
		tn := models.NormalizeTicketNumber(k)
		if tn == "" {
			continue
		}
		out[tn] = v
	}
	return out
}
