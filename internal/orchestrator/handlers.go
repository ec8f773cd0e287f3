package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"prioritizer/internal/eventbus"
	"prioritizer/internal/supervisor"
	"prioritizer/internal/task"
)

// UpdatedEvent is the payload on task.updated. Reanalysis only happens when
// the publisher explicitly asks for it.
type UpdatedEvent struct {
	Task               task.Event `json:"task"`
	RequiresReanalysis bool       `json:"requires_reanalysis"`
}

// CompletedEvent is the payload on task.completed.
type CompletedEvent struct {
	TaskID string `json:"task_id"`
}

// BatchEvent is the payload on task.batch.analyze.
type BatchEvent struct {
	BatchID string       `json:"batch_id"`
	Tasks   []task.Event `json:"tasks"`
}

// Subscriptions wires every pipeline handler to the bus and starts the
// consume loops plus the metrics reporter under sup. Loops restart on
// failure; the supervisor's StopAll tears everything down.
func (o *Orchestrator) Subscriptions(ctx context.Context, sup *supervisor.Supervisor) error {
	subs := []struct {
		name    string
		subject string
		handler eventbus.Handler
	}{
		{"consume-analyze", eventbus.SubjectTaskAnalyze, o.handleAnalyze},
		// Publishers may qualify the analyze subject with a category suffix;
		// both routes feed the same idempotent handler.
		{"consume-analyze-category", eventbus.SubjectTaskAnalyze + ".*", o.handleAnalyze},
		{"consume-updated", eventbus.SubjectTaskUpdated, o.handleUpdated},
		{"consume-completed", eventbus.SubjectTaskCompleted, o.handleCompleted},
		{"consume-batch", eventbus.SubjectTaskBatchAnalyze, o.handleBatch},
		{"consume-deadletter", eventbus.SubjectDeadLetter, o.handleDeadLetter},
	}

	for _, s := range subs {
		run, err := o.bus.Subscribe(s.subject, s.handler, eventbus.SubscribeOptions{
			QueueGroup: "prioritizer",
			Durable:    "prioritizer-" + s.name,
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", s.subject, err)
		}
		sup.Start(ctx, s.name, supervisor.RunFunc(run), true)
	}

	sup.Start(ctx, "metrics-reporter", o.reportMetrics, true)
	return nil
}

func (o *Orchestrator) handleAnalyze(ctx context.Context, env eventbus.Envelope) error {
	var ev task.Event
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		return fmt.Errorf("decode task event: %w", err)
	}
	_, err := o.Process(ctx, ev)
	return err
}

func (o *Orchestrator) handleUpdated(ctx context.Context, env eventbus.Envelope) error {
	var upd UpdatedEvent
	if err := json.Unmarshal(env.Data, &upd); err != nil {
		return fmt.Errorf("decode update event: %w", err)
	}
	if !upd.RequiresReanalysis {
		o.logger.Debug("update without reanalysis flag, ignoring", "task_id", upd.Task.ID)
		return nil
	}
	// Drop the cached result first so Process computes a fresh one.
	if err := o.cache.DeletePriorityResult(ctx, upd.Task.ID); err != nil {
		o.logger.Warn("stale result cleanup failed", "task_id", upd.Task.ID, "error", err)
	}
	_, err := o.Process(ctx, upd.Task)
	return err
}

func (o *Orchestrator) handleCompleted(ctx context.Context, env eventbus.Envelope) error {
	var done CompletedEvent
	if err := json.Unmarshal(env.Data, &done); err != nil {
		return fmt.Errorf("decode completion event: %w", err)
	}
	if err := o.cache.DeletePriorityResult(ctx, done.TaskID); err != nil {
		return fmt.Errorf("completion cleanup for %s: %w", done.TaskID, err)
	}
	o.logger.Info("task completed, cached result removed", "task_id", done.TaskID)
	return nil
}

// handleDeadLetter surfaces poison messages in metrics and logs. It never
// fails; a dead letter that cannot be decoded is still counted.
func (o *Orchestrator) handleDeadLetter(ctx context.Context, env eventbus.Envelope) error {
	o.metrics.DeadLetters.Inc()

	var dl struct {
		Subject    string `json:"subject"`
		EnvelopeID string `json:"envelope_id"`
		Error      string `json:"error"`
	}
	if err := json.Unmarshal(env.Data, &dl); err != nil {
		o.logger.Error("undecodable dead letter", "envelope_id", env.ID)
		return nil
	}
	o.logger.Error("envelope dead-lettered",
		"subject", dl.Subject,
		"envelope_id", dl.EnvelopeID,
		"error", dl.Error,
	)
	return nil
}

// handleBatch fans a batch out across a bounded worker pool. One failing
// task fails the whole delivery, so the batch is retried as a unit;
// Process-level idempotency makes the replays cheap.
func (o *Orchestrator) handleBatch(ctx context.Context, env eventbus.Envelope) error {
	var batch BatchEvent
	if err := json.Unmarshal(env.Data, &batch); err != nil {
		return fmt.Errorf("decode batch event: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.BatchWorkers)
	for _, ev := range batch.Tasks {
		g.Go(func() error {
			_, err := o.Process(ctx, ev)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("batch %s: %w", batch.BatchID, err)
	}
	o.logger.Info("batch processed", "batch_id", batch.BatchID, "tasks", len(batch.Tasks))
	return nil
}

// ProcessBatch is the synchronous batch entry point used by the HTTP
// surface. Results come back in input order.
func (o *Orchestrator) ProcessBatch(ctx context.Context, tasks []task.Event) ([]task.PriorityResult, error) {
	results := make([]task.PriorityResult, len(tasks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.BatchWorkers)
	for i, ev := range tasks {
		g.Go(func() error {
			res, err := o.Process(ctx, ev)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
