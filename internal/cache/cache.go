// Package cache provides the namespaced TTL store backing idempotent result
// lookup, advisor suggestion reuse, rate limiting, and aggregate stats.
// Two implementations exist: Redis for deployments and an in-memory store
// for tests and single-process runs.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"prioritizer/internal/task"
)

// ErrNotFound is returned when a key is absent or its TTL has elapsed.
var ErrNotFound = errors.New("cache: entry not found")

// Key prefixes per entry class. Every key is built through one of these, so
// collisions across classes are impossible by construction.
const (
	PrefixPriorityResult = "pr:"
	PrefixSuggestion     = "suggest:"
	PrefixRateLimit      = "rate:"
	PrefixStats          = "stats:"
)

// Entry is the stored envelope for cached values.
type Entry struct {
	Data     json.RawMessage `json:"data"`
	CachedAt time.Time       `json:"cached_at"`
	TTL      int             `json:"ttl_seconds"`
}

// RateLimitResult reports the outcome of one sliding-window check.
type RateLimitResult struct {
	Allowed       bool `json:"allowed"`
	Remaining     int  `json:"remaining"`
	Limit         int  `json:"limit"`
	WindowSeconds int  `json:"window_seconds"`
	CurrentCount  int  `json:"current_count"`
}

// Stats are aggregate pipeline counters persisted for the health surface.
type Stats struct {
	ProcessedTasks uint64    `json:"processed_tasks"`
	BypassedTasks  uint64    `json:"bypassed_tasks"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Health reports store reachability and effectiveness. It is always a value,
// never an error: degraded stores answer with Healthy=false.
type Health struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	LastError string        `json:"last_error,omitempty"`
}

// Store is the cache contract used by the pipeline. All methods are safe for
// concurrent use. Implementations never block callers on degraded backends:
// rate limiting answers permissively and Health reports the failure instead.
type Store interface {
	SetPriorityResult(ctx context.Context, id string, res task.PriorityResult, ttl time.Duration) error
	GetPriorityResult(ctx context.Context, id string) (*task.PriorityResult, error)
	DeletePriorityResult(ctx context.Context, id string) error

	SetSuggestions(ctx context.Context, contentHash string, s []task.Suggestion, ttl time.Duration) error
	GetSuggestions(ctx context.Context, contentHash string) ([]task.Suggestion, error)

	// CheckRateLimit evaluates and records one attempt for the identifier in
	// a single atomic operation. The attempt is recorded whether or not it is
	// allowed.
	CheckRateLimit(ctx context.Context, identifier string, limit int, window time.Duration) (RateLimitResult, error)

	SetStats(ctx context.Context, stats Stats, ttl time.Duration) error
	GetStats(ctx context.Context) (*Stats, error)

	// PurgePrefix deletes every key under one of the class prefixes and
	// returns the number of entries removed. Used for compliance teardown.
	PurgePrefix(ctx context.Context, prefix string) (int, error)

	Health(ctx context.Context) Health
	Close() error
}

func marshalEntry(v any, ttl time.Duration) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Entry{
		Data:     data,
		CachedAt: time.Now().UTC(),
		TTL:      int(ttl.Seconds()),
	})
}

func unmarshalEntry(raw []byte, out any) error {
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return err
	}
	return json.Unmarshal(entry.Data, out)
}
