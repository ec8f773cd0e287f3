package orchestrator

import (
	"context"
	"time"

	"prioritizer/internal/cache"
	"prioritizer/internal/eventbus"
)

const metricsSubject = "system.events.metrics"

type metricsSnapshot struct {
	ProcessedTasks uint64    `json:"processed_tasks"`
	BypassedTasks  uint64    `json:"bypassed_tasks"`
	BypassRate     float64   `json:"bypass_rate"`
	ReportedAt     time.Time `json:"reported_at"`
}

// reportMetrics is the supervised loop that publishes pipeline counters to
// the system stream and persists aggregate stats for the health surface.
func (o *Orchestrator) reportMetrics(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.report(ctx)
		}
	}
}

func (o *Orchestrator) report(ctx context.Context) {
	processed := o.processed.Load()
	bypassed := o.bypassed.Load()

	snap := metricsSnapshot{
		ProcessedTasks: processed,
		BypassedTasks:  bypassed,
		ReportedAt:     time.Now().UTC(),
	}
	if processed > 0 {
		snap.BypassRate = float64(bypassed) / float64(processed)
	}

	if err := eventbus.PublishJSON(ctx, o.bus, metricsSubject, snap); err != nil {
		o.logger.Warn("metrics publish failed", "error", err)
	}
	stats := cache.Stats{
		ProcessedTasks: processed,
		BypassedTasks:  bypassed,
		UpdatedAt:      snap.ReportedAt,
	}
	if err := o.cache.SetStats(ctx, stats, o.cfg.StatsTTL); err != nil {
		o.logger.Warn("stats cache write failed", "error", err)
	}
}
