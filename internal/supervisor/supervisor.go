// Package supervisor runs named background loops, restarting the ones marked
// restartable when they fail. It is the single owner of subscription and
// reporter goroutines, so shutdown is one StopAll call.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task states reported by Status.
const (
	StateRunning   = "running"
	StateCompleted = "completed"
	StateCancelled = "cancelled"
)

const (
	restartBackoff     = time.Second
	defaultStopTimeout = 5 * time.Second
)

// RunFunc is a supervised loop. It should run until ctx is cancelled and
// return ctx.Err() in that case; any other error counts as a failure.
type RunFunc func(ctx context.Context) error

type entry struct {
	cancel context.CancelFunc
	state  string
	done   chan struct{}
}

// Supervisor tracks named tasks. All methods are safe for concurrent use.
type Supervisor struct {
	mu          sync.Mutex
	entries     map[string]*entry
	wg          sync.WaitGroup
	logger      *slog.Logger
	stopTimeout time.Duration
}

type Option func(*Supervisor)

// WithStopTimeout bounds how long Stop and StopAll wait for a task to exit
// before abandoning it.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.stopTimeout = d }
}

func New(logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		entries:     make(map[string]*entry),
		logger:      logger,
		stopTimeout: defaultStopTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches run under the given name. A task that is already running
// under that name is stopped first, so Start is also restart-by-name.
// With restartOnFailure set, a failing run is relaunched after a short
// backoff until the supervisor stops it.
func (s *Supervisor) Start(ctx context.Context, name string, run RunFunc, restartOnFailure bool) {
	s.Stop(name)

	taskCtx, cancel := context.WithCancel(ctx)
	e := &entry{cancel: cancel, state: StateRunning, done: make(chan struct{})}

	s.mu.Lock()
	s.entries[name] = e
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(e.done)
		s.loop(taskCtx, name, e, run, restartOnFailure)
	}()
}

func (s *Supervisor) loop(ctx context.Context, name string, e *entry, run RunFunc, restart bool) {
	for {
		err := run(ctx)

		switch {
		case ctx.Err() != nil:
			s.setState(e, StateCancelled)
			return
		case err == nil:
			s.logger.Info("task completed", "task", name)
			s.setState(e, StateCompleted)
			return
		case !restart:
			s.logger.Error("task failed", "task", name, "error", err)
			s.setState(e, fmt.Sprintf("failed: %v", err))
			return
		}

		s.logger.Error("task failed, restarting",
			"task", name,
			"error", err,
			"backoff", restartBackoff,
		)
		select {
		case <-ctx.Done():
			s.setState(e, StateCancelled)
			return
		case <-time.After(restartBackoff):
		}
	}
}

// Stop cancels the named task and waits up to the stop timeout for it to
// exit; a task that ignores cancellation is logged and abandoned. Stopping an
// unknown name is a no-op.
func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if ok {
		delete(s.entries, name)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	e.cancel()
	select {
	case <-e.done:
	case <-time.After(s.stopTimeout):
		s.logger.Error("task ignored cancellation, abandoning",
			"task", name,
			"timeout", s.stopTimeout,
		)
	}
}

// StopAll cancels every task and waits up to the stop timeout for all of
// them to settle. The registry is empty afterwards even when some tasks had
// to be abandoned.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}

	settled := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(settled)
	}()
	select {
	case <-settled:
	case <-time.After(s.stopTimeout):
		s.logger.Error("tasks still running after shutdown bound, abandoning",
			"timeout", s.stopTimeout,
		)
	}
}

// Status snapshots task states by name.
func (s *Supervisor) Status() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.entries))
	for name, e := range s.entries {
		out[name] = e.state
	}
	return out
}

func (s *Supervisor) setState(e *entry, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.state = state
}
