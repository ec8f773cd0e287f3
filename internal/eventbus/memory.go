package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const memoryBufferSize = 256

// MemoryBus is the in-process Bus used by tests and by deployments without
// brokers configured. It shares the dispatcher with the Kafka bus, so retry
// and dead-letter behavior is identical; only durability is absent.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   []*memorySub
	closed bool
	source string
	logger *slog.Logger
}

type memorySub struct {
	pattern string
	group   string
	ch      chan Envelope
}

func NewMemoryBus(source string, logger *slog.Logger) *MemoryBus {
	return &MemoryBus{source: source, logger: logger}
}

func (m *MemoryBus) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := StreamFor(subject); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	env := Envelope{
		ID:            uuid.NewString(),
		Subject:       subject,
		Data:          data,
		Timestamp:     time.Now().UTC(),
		Source:        m.source,
		SchemaVersion: "1.0",
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("publish %s: bus closed", subject)
	}

	// One send per channel: queue-group members share a channel, so the
	// group as a whole receives each envelope once.
	seen := make(map[chan Envelope]bool)
	for _, sub := range m.subs {
		if !matchSubject(sub.pattern, subject) || seen[sub.ch] {
			continue
		}
		seen[sub.ch] = true
		select {
		case sub.ch <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *MemoryBus) Subscribe(subject string, handler Handler, opts SubscribeOptions) (RunFunc, error) {
	if _, err := StreamFor(subject); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sub := &memorySub{pattern: subject, group: opts.QueueGroup}
	if opts.QueueGroup != "" {
		for _, existing := range m.subs {
			if existing.group == opts.QueueGroup && existing.pattern == subject {
				sub.ch = existing.ch
				break
			}
		}
	}
	if sub.ch == nil {
		sub.ch = make(chan Envelope, memoryBufferSize)
	}
	m.subs = append(m.subs, sub)

	d := newDispatcher(handler, m.Publish, m.logger)
	run := func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case env := <-sub.ch:
				if err := d.deliver(ctx, env); err != nil {
					return err
				}
			}
		}
	}
	return run, nil
}

func (m *MemoryBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// PublishJSON is a convenience for callers holding a struct rather than raw
// bytes. The Kafka bus gets the same helper through the orchestrator.
func PublishJSON(ctx context.Context, bus Bus, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", subject, err)
	}
	return bus.Publish(ctx, subject, data)
}
