package status

import (
	"context"
	"fmt"
	"ms-checkin/internal/apperr"
	"ms-checkin/internal/models"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	fieldChecked = "checked"
	fieldAt      = "at"
	fieldBy      = "by"
)

// RedisStore keeps one hash per ticket under <prefix><TICKET> and a set of
// known ticket numbers under <prefix>index. Ticket numbers are uppercase, so
// the index key never collides with a ticket key.
type RedisStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "checkin:status:"
	}
	return &RedisStore{Client: client, Prefix: prefix}
}

func (s *RedisStore) key(tn string) string { return s.Prefix + tn }

func (s *RedisStore) indexKey() string { return s.Prefix + "index" }

func (s *RedisStore) Get(ctx context.Context, ticketNumber string) (models.StatusEntry, bool, error) {
	tn := models.NormalizeTicketNumber(ticketNumber)
	if tn == "" {
		return models.StatusEntry{}, false, nil
	}
	fields, err := s.Client.HGetAll(ctx, s.key(tn)).Result()
	if err != nil {
		return models.StatusEntry{}, false, apperr.Storage("redis hgetall", err)
	}
	if len(fields) == 0 {
		return models.StatusEntry{}, false, nil
	}
	return decodeEntry(fields), true, nil
}

func (s *RedisStore) All(ctx context.Context) (map[string]models.StatusEntry, error) {
	members, err := s.Client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, apperr.Storage("redis smembers", err)
	}
	out := make(map[string]models.StatusEntry, len(members))
	if len(members) == 0 {
		return out, nil
	}

	cmds := make(map[string]*redis.StringStringMapCmd, len(members))
	_, err = s.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, tn := range members {
			cmds[tn] = pipe.HGetAll(ctx, s.key(tn))
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Storage("redis pipeline hgetall", err)
	}
	for tn, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		out[tn] = decodeEntry(fields)
	}
	return out, nil
}

// Put writes every entry in one MULTI/EXEC block. HSET only touches the named
// fields, and concurrent writers to the same ticket are last-write-wins.
func (s *RedisStore) Put(ctx context.Context, entries map[string]models.StatusEntry) (WriteResult, error) {
	entries = normalizeKeys(entries)
	if len(entries) == 0 {
		return WriteResult{StoredIn: StoredInRedis}, nil
	}

	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for tn, e := range entries {
			pipe.HSet(ctx, s.key(tn),
				fieldChecked, strconv.FormatBool(e.Checked),
				fieldAt, e.At.UTC().Format(time.RFC3339Nano),
				fieldBy, e.By,
			)
			pipe.SAdd(ctx, s.indexKey(), tn)
		}
		return nil
	})
	if err != nil {
		return WriteResult{}, apperr.Storage(fmt.Sprintf("redis write %d status entries", len(entries)), err)
	}
	return WriteResult{StoredIn: StoredInRedis}, nil
}

func decodeEntry(fields map[string]string) models.StatusEntry {
	var e models.StatusEntry
	e.Checked, _ = strconv.ParseBool(fields[fieldChecked])
	if at, err := time.Parse(time.RFC3339Nano, fields[fieldAt]); err == nil {
		e.At = at
	}
	e.By = fields[fieldBy]
	return e
}
