package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvelope(subject string) Envelope {
	return Envelope{
		ID:            "env-1",
		Subject:       subject,
		Data:          json.RawMessage(`{"id":"t-1"}`),
		Timestamp:     time.Now().UTC(),
		Source:        "test",
		SchemaVersion: "1.0",
	}
}

func TestDispatcherAcksOnSuccess(t *testing.T) {
	d := newDispatcher(
		func(ctx context.Context, env Envelope) error { return nil },
		func(ctx context.Context, subject string, data []byte) error {
			t.Fatal("nothing should be dead-lettered")
			return nil
		},
		slog.New(slog.DiscardHandler),
	)

	require.NoError(t, d.deliver(context.Background(), testEnvelope("task.analyze")))
	assert.Equal(t, uint64(1), d.acked)
	assert.Equal(t, uint64(0), d.nacked)
	assert.Equal(t, uint64(0), d.deadlettered)
}

func TestDispatcherRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	d := newDispatcher(
		func(ctx context.Context, env Envelope) error {
			attempts++
			if attempts < 3 {
				return fmt.Errorf("transient failure %d", attempts)
			}
			return nil
		},
		func(ctx context.Context, subject string, data []byte) error {
			t.Fatal("nothing should be dead-lettered")
			return nil
		},
		slog.New(slog.DiscardHandler),
	)

	require.NoError(t, d.deliver(context.Background(), testEnvelope("task.analyze")))
	assert.Equal(t, 3, attempts, "at-least-once: two naks then one ack")
	assert.Equal(t, uint64(1), d.acked)
	assert.Equal(t, uint64(2), d.nacked)
	assert.Equal(t, uint64(0), d.deadlettered)
}

func TestDispatcherDeadLettersAfterBudget(t *testing.T) {
	var dl deadLetter
	d := newDispatcher(
		func(ctx context.Context, env Envelope) error { return fmt.Errorf("permanent failure") },
		func(ctx context.Context, subject string, data []byte) error {
			assert.Equal(t, SubjectDeadLetter, subject)
			return json.Unmarshal(data, &dl)
		},
		slog.New(slog.DiscardHandler),
	)

	// Settled, not an error: the transport must commit and move on.
	require.NoError(t, d.deliver(context.Background(), testEnvelope("task.analyze")))
	assert.Equal(t, uint64(0), d.acked)
	assert.Equal(t, uint64(maxDeliver), d.nacked)
	assert.Equal(t, uint64(1), d.deadlettered)

	assert.Equal(t, "env-1", dl.EnvelopeID)
	assert.Equal(t, "task.analyze", dl.Subject)
	assert.Equal(t, maxDeliver, dl.Deliveries)
	assert.Contains(t, dl.Error, "permanent failure")
}

func TestDispatcherStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := newDispatcher(
		func(ctx context.Context, env Envelope) error {
			cancel()
			return fmt.Errorf("failure while shutting down")
		},
		func(ctx context.Context, subject string, data []byte) error { return nil },
		slog.New(slog.DiscardHandler),
	)

	err := d.deliver(ctx, testEnvelope("task.analyze"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), d.deadlettered, "cancellation is not a handler failure")
}
