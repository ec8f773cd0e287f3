package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamFor(t *testing.T) {
	tests := []struct {
		subject string
		stream  string
	}{
		{"task.analyze", "priority-requests"},
		{"task.analyze.SECURITY", "priority-requests"},
		{"task.updated", "priority-requests"},
		{"task.completed", "priority-requests"},
		{"priority.result", "priority-results"},
		{"priority.result.SUPPORT", "priority-results"},
		{"task.batch.analyze", "priority-results"},
		{"system.events.metrics", "system-events"},
		{"system.events.deadletter", "system-events"},
		{"audit.access", "system-events"},
	}
	for _, tt := range tests {
		s, err := StreamFor(tt.subject)
		require.NoError(t, err, tt.subject)
		assert.Equal(t, tt.stream, s.Name, tt.subject)
	}
}

func TestStreamForUnmapped(t *testing.T) {
	for _, subject := range []string{
		"task.unknown",
		"priority",
		"task.analyze.a.b",
		"system.events.metrics.extra",
		"",
	} {
		_, err := StreamFor(subject)
		assert.ErrorIs(t, err, ErrNoStream, "subject %q", subject)
	}
}

func TestMatchSubject(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"task.analyze", "task.analyze", true},
		{"task.analyze", "task.analyzed", false},
		{"task.analyze.*", "task.analyze.SECURITY", true},
		{"task.analyze.*", "task.analyze", false},
		{"task.analyze.*", "task.analyze.a.b", false},
		{"priority.result.*", "priority.result.", false},
		{"audit.*", "audit.access", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchSubject(tt.pattern, tt.subject),
			"pattern %q subject %q", tt.pattern, tt.subject)
	}
}
