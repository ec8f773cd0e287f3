package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor() *Supervisor {
	return New(slog.New(slog.DiscardHandler))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestCompletedTask(t *testing.T) {
	sup := newTestSupervisor()
	defer sup.StopAll()

	sup.Start(context.Background(), "once", func(ctx context.Context) error {
		return nil
	}, false)

	waitFor(t, func() bool {
		return sup.Status()["once"] == StateCompleted
	})
}

func TestFailedTaskWithoutRestart(t *testing.T) {
	sup := newTestSupervisor()
	defer sup.StopAll()

	sup.Start(context.Background(), "flaky", func(ctx context.Context) error {
		return fmt.Errorf("boom")
	}, false)

	waitFor(t, func() bool {
		return sup.Status()["flaky"] == "failed: boom"
	})
}

func TestRestartOnFailure(t *testing.T) {
	sup := newTestSupervisor()
	defer sup.StopAll()

	var runs atomic.Int64
	sup.Start(context.Background(), "restarting", func(ctx context.Context) error {
		if runs.Add(1) < 2 {
			return fmt.Errorf("transient")
		}
		<-ctx.Done()
		return ctx.Err()
	}, true)

	waitFor(t, func() bool {
		return runs.Load() >= 2
	})
	assert.Equal(t, StateRunning, sup.Status()["restarting"])
}

func TestStopCancelsTask(t *testing.T) {
	sup := newTestSupervisor()
	defer sup.StopAll()

	started := make(chan struct{})
	sup.Start(context.Background(), "blocker", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, true)
	<-started

	sup.Stop("blocker")
	_, exists := sup.Status()["blocker"]
	assert.False(t, exists, "stopped task leaves the registry")
}

func TestStopUnknownIsNoop(t *testing.T) {
	sup := newTestSupervisor()
	sup.Stop("never-started")
}

func TestStartReplacesRunningTask(t *testing.T) {
	sup := newTestSupervisor()
	defer sup.StopAll()

	firstStopped := make(chan struct{})
	sup.Start(context.Background(), "worker", func(ctx context.Context) error {
		<-ctx.Done()
		close(firstStopped)
		return ctx.Err()
	}, true)

	sup.Start(context.Background(), "worker", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, true)

	select {
	case <-firstStopped:
	case <-time.After(5 * time.Second):
		t.Fatal("first task not cancelled by restart")
	}
	assert.Len(t, sup.Status(), 1)
}

func TestStopAllEmptiesRegistry(t *testing.T) {
	sup := newTestSupervisor()

	for i := range 3 {
		sup.Start(context.Background(), fmt.Sprintf("task-%d", i), func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, true)
	}
	require.Len(t, sup.Status(), 3)

	sup.StopAll()
	assert.Empty(t, sup.Status())
}

func TestStopAbandonsStuckTask(t *testing.T) {
	sup := New(slog.New(slog.DiscardHandler), WithStopTimeout(100*time.Millisecond))

	started := make(chan struct{})
	sup.Start(context.Background(), "stuck", func(ctx context.Context) error {
		close(started)
		select {}
	}, false)
	<-started

	done := make(chan struct{})
	go func() {
		sup.Stop("stuck")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a task that ignores cancellation")
	}
	_, exists := sup.Status()["stuck"]
	assert.False(t, exists, "abandoned task leaves the registry")
}

func TestStopAllAbandonsStuckTasks(t *testing.T) {
	sup := New(slog.New(slog.DiscardHandler), WithStopTimeout(100*time.Millisecond))

	started := make(chan struct{})
	sup.Start(context.Background(), "stuck", func(ctx context.Context) error {
		close(started)
		select {}
	}, false)
	sup.Start(context.Background(), "polite", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, true)
	<-started

	done := make(chan struct{})
	go func() {
		sup.StopAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StopAll blocked on a task that ignores cancellation")
	}
	assert.Empty(t, sup.Status())
}

func TestShutdownInterruptsRestartBackoff(t *testing.T) {
	sup := newTestSupervisor()

	sup.Start(context.Background(), "failing", func(ctx context.Context) error {
		return fmt.Errorf("always fails")
	}, true)

	// Give the task time to fail and enter its backoff wait.
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.StopAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StopAll blocked on restart backoff")
	}
}
