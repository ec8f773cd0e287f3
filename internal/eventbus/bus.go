// Package eventbus carries task events between pipeline stages. Subjects are
// dot-separated and grouped into streams; the Kafka bus maps each stream to a
// topic and puts the subject in a record header, the memory bus keeps the
// same semantics in-process for tests and single-node runs.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNoStream is returned when a subject does not belong to any configured
// stream. Publishing to an unmapped subject is a programming error, not a
// transient condition.
var ErrNoStream = errors.New("eventbus: subject matches no stream")

// Well-known subjects.
const (
	SubjectTaskAnalyze      = "task.analyze"
	SubjectTaskUpdated      = "task.updated"
	SubjectTaskCompleted    = "task.completed"
	SubjectTaskBatchAnalyze = "task.batch.analyze"
	SubjectPriorityResult   = "priority.result"
	SubjectDeadLetter       = "system.events.deadletter"
)

// Envelope wraps every payload on the bus. ID doubles as the partition key,
// so redeliveries of the same envelope land on the same consumer.
type Envelope struct {
	ID            string          `json:"id"`
	Subject       string          `json:"subject"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	SchemaVersion string          `json:"schema_version"`
}

// Handler processes one delivered envelope. Returning an error triggers
// redelivery until the delivery budget is exhausted.
type Handler func(ctx context.Context, env Envelope) error

// RunFunc is a subscription's consume loop. It blocks until ctx is cancelled
// or the underlying transport fails; the supervisor owns running it.
type RunFunc func(ctx context.Context) error

// SubscribeOptions control delivery semantics.
type SubscribeOptions struct {
	// QueueGroup spreads deliveries across members of the same group.
	// Empty means every subscriber gets every message.
	QueueGroup string
	// Durable names the consumer so its position survives restarts.
	Durable string
}

// Bus is the transport contract shared by Kafka and the in-memory bus.
type Bus interface {
	// Publish sends data under subject. It returns only after the stream has
	// acknowledged the write.
	Publish(ctx context.Context, subject string, data []byte) error
	// Subscribe registers handler for subject (exact or trailing wildcard)
	// and returns the consume loop to run.
	Subscribe(subject string, handler Handler, opts SubscribeOptions) (RunFunc, error)
	Close() error
}

// Stream groups subjects into one ordered, retained log.
type Stream struct {
	Name     string
	Subjects []string
}

// Streams is the fixed topology. Every publishable subject must match exactly
// one entry here.
var Streams = []Stream{
	{
		Name: "priority-requests",
		Subjects: []string{
			SubjectTaskAnalyze,
			SubjectTaskAnalyze + ".*",
			SubjectTaskUpdated,
			SubjectTaskCompleted,
		},
	},
	{
		Name: "priority-results",
		Subjects: []string{
			SubjectPriorityResult,
			SubjectPriorityResult + ".*",
			SubjectTaskBatchAnalyze,
		},
	},
	{
		Name: "system-events",
		Subjects: []string{
			"system.events.*",
			"audit.*",
		},
	},
}

// StreamFor resolves the stream owning subject, or ErrNoStream.
func StreamFor(subject string) (Stream, error) {
	for _, s := range Streams {
		for _, pattern := range s.Subjects {
			if matchSubject(pattern, subject) {
				return s, nil
			}
		}
	}
	return Stream{}, ErrNoStream
}

// matchSubject supports exact subjects and a single trailing "*" wildcard
// that matches exactly one extra token.
func matchSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	if !strings.HasSuffix(pattern, ".*") {
		return false
	}
	prefix := strings.TrimSuffix(pattern, "*")
	rest, ok := strings.CutPrefix(subject, prefix)
	return ok && rest != "" && !strings.Contains(rest, ".")
}
