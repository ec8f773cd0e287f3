package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	// maxDeliver is the per-envelope delivery budget. The third failure
	// dead-letters the envelope instead of retrying again.
	maxDeliver = 3

	retryBackoff = 250 * time.Millisecond
)

// deadLetter is the payload published to SubjectDeadLetter when a handler
// exhausts its delivery budget.
type deadLetter struct {
	Subject    string    `json:"subject"`
	EnvelopeID string    `json:"envelope_id"`
	Error      string    `json:"error"`
	Deliveries int       `json:"deliveries"`
	FailedAt   time.Time `json:"failed_at"`
}

// publishFunc lets the dispatcher dead-letter through whichever bus owns it.
type publishFunc func(ctx context.Context, subject string, data []byte) error

// dispatcher applies the delivery contract shared by both bus
// implementations: invoke the handler, retry on error up to maxDeliver
// attempts, then dead-letter and move on. The envelope is considered settled
// either way, so the underlying transport can commit its position.
type dispatcher struct {
	handler Handler
	publish publishFunc
	logger  *slog.Logger

	acked        uint64
	nacked       uint64
	deadlettered uint64
}

func newDispatcher(handler Handler, publish publishFunc, logger *slog.Logger) *dispatcher {
	return &dispatcher{handler: handler, publish: publish, logger: logger}
}

// deliver runs the handler with retries. It returns nil once the envelope is
// settled (handled or dead-lettered) and an error only when ctx ends first.
func (d *dispatcher) deliver(ctx context.Context, env Envelope) error {
	var lastErr error
	for attempt := 1; attempt <= maxDeliver; attempt++ {
		if err := d.handler(ctx, env); err != nil {
			lastErr = err
			d.nacked++
			d.logger.Warn("handler failed, will retry",
				"subject", env.Subject,
				"envelope_id", env.ID,
				"attempt", attempt,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
			continue
		}
		d.acked++
		return nil
	}

	d.deadlettered++
	d.logger.Error("delivery budget exhausted, dead-lettering",
		"subject", env.Subject,
		"envelope_id", env.ID,
		"deliveries", maxDeliver,
		"error", lastErr,
	)
	payload, err := json.Marshal(deadLetter{
		Subject:    env.Subject,
		EnvelopeID: env.ID,
		Error:      lastErr.Error(),
		Deliveries: maxDeliver,
		FailedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil
	}
	if err := d.publish(ctx, SubjectDeadLetter, payload); err != nil {
		d.logger.Error("dead-letter publish failed, dropping envelope",
			"envelope_id", env.ID,
			"error", err,
		)
	}
	return nil
}
