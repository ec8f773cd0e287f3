package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"prioritizer/internal/task"
)

// Memory implements Store with maps and a sliding window per identifier.
// It backs unit tests (with an injected clock) and single-process runs when
// Redis is not configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	windows map[string][]time.Time
	now     func() time.Time

	hits   uint64
	misses uint64
}

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

type MemoryOption func(*Memory)

// WithClock overrides the time source, letting tests advance TTLs.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) SetPriorityResult(_ context.Context, id string, res task.PriorityResult, ttl time.Duration) error {
	return m.set(PrefixPriorityResult+id, res, ttl)
}

func (m *Memory) GetPriorityResult(_ context.Context, id string) (*task.PriorityResult, error) {
	var res task.PriorityResult
	if err := m.get(PrefixPriorityResult+id, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (m *Memory) DeletePriorityResult(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, PrefixPriorityResult+id)
	return nil
}

func (m *Memory) SetSuggestions(_ context.Context, contentHash string, s []task.Suggestion, ttl time.Duration) error {
	return m.set(PrefixSuggestion+contentHash, s, ttl)
}

func (m *Memory) GetSuggestions(_ context.Context, contentHash string) ([]task.Suggestion, error) {
	var s []task.Suggestion
	if err := m.get(PrefixSuggestion+contentHash, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Memory) CheckRateLimit(_ context.Context, identifier string, limit int, window time.Duration) (RateLimitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-window)
	key := PrefixRateLimit + identifier

	kept := m.windows[key][:0]
	for _, ts := range m.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	count := len(kept)
	// The attempt is always recorded, allowed or not.
	m.windows[key] = append(kept, now)

	remaining := limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:       count < limit,
		Remaining:     remaining,
		Limit:         limit,
		WindowSeconds: int(window.Seconds()),
		CurrentCount:  count + 1,
	}, nil
}

func (m *Memory) SetStats(_ context.Context, stats Stats, ttl time.Duration) error {
	return m.set(PrefixStats+"pipeline", stats, ttl)
}

func (m *Memory) GetStats(_ context.Context) (*Stats, error) {
	var stats Stats
	if err := m.get(PrefixStats+"pipeline", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (m *Memory) PurgePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			deleted++
		}
	}
	for key := range m.windows {
		if strings.HasPrefix(key, prefix) {
			delete(m.windows, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) Health(_ context.Context) Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Health{Healthy: true, Hits: m.hits, Misses: m.misses}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) set(key string, v any, ttl time.Duration) error {
	raw, err := marshalEntry(v, ttl)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{raw: raw, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) get(key string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		m.misses++
		return ErrNotFound
	}
	if err := unmarshalEntry(entry.raw, out); err != nil {
		m.misses++
		return err
	}
	m.hits++
	return nil
}
