// Package snapshot keeps the best-effort record of a cart written right after
// a checkout session is created, for the post-payment landing page. Records
// are advisory and never flow back into a live cart.
package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"sentinelshop/internal/cart"
)

var ErrNotFound = errors.New("snapshot not found")

type Record struct {
	SessionID string               `json:"sessionId"`
	Items     map[string]cart.Line `json:"items"`
	Total     float64              `json:"total"`
	Count     int                  `json:"count"`
	Timestamp time.Time            `json:"timestamp"`
}

// NewRecord captures a cart view under the checkout session id.
func NewRecord(sessionID string, view cart.View, at time.Time) Record {
	return Record{
		SessionID: sessionID,
		Items:     view.Items,
		Total:     view.Total,
		Count:     view.Count,
		Timestamp: at.UTC(),
	}
}

type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, sessionID string) (Record, error)
	// Purge drops records written before the cutoff and reports how many.
	Purge(ctx context.Context, before time.Time) (int, error)
	Close() error
}

type Options struct {
	Backend   string
	DBPath    string
	RedisAddr string
	TTL       time.Duration
}

// Open builds the store selected by opts.Backend: sqlite (default), redis
// or memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "sqlite":
		return NewSQLiteStore(opts.DBPath, opts.TTL)
	case "redis":
		store, err := NewRedisStore(opts.RedisAddr, opts.TTL)
		if err != nil {
			return nil, err
		}
		if err := store.Initialize(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case "memory":
		return NewMemoryStore(opts.TTL), nil
	default:
		return nil, errors.Errorf("unknown snapshot backend %q", opts.Backend)
	}
}

func expired(ts time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(ts) > ttl
}
