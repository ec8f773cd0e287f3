package orchestrator

import (
	"context"
	"time"
)

// Health statuses, ordered by severity.
const (
	StatusOK       = "OK"
	StatusDegraded = "DEGRADED"
	StatusCritical = "CRITICAL"
)

// busHealther is implemented by bus backends that can be pinged. The
// in-memory bus has nothing to ping and is always healthy.
type busHealther interface {
	Health(ctx context.Context) (time.Duration, error)
}

// HealthReport aggregates component health for the /healthz surface.
type HealthReport struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Processed  uint64            `json:"processed_tasks"`
	Bypassed   uint64            `json:"bypassed_tasks"`
}

// Health derives the aggregate status: any unreachable dependency (bus or
// cache) is CRITICAL; an advisor that is merely unconfigured only degrades,
// since the fallback tables keep the pipeline producing results.
func (o *Orchestrator) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:     StatusOK,
		Components: make(map[string]string),
		Processed:  o.processed.Load(),
		Bypassed:   o.bypassed.Load(),
	}

	if hb, ok := o.bus.(busHealther); ok {
		if _, err := hb.Health(ctx); err != nil {
			report.Components["bus"] = "unreachable: " + err.Error()
			report.Status = StatusCritical
		} else {
			report.Components["bus"] = "ok"
		}
	} else {
		report.Components["bus"] = "in-memory"
	}

	if ch := o.cache.Health(ctx); !ch.Healthy {
		report.Components["cache"] = "unreachable: " + ch.LastError
		report.Status = StatusCritical
	} else {
		report.Components["cache"] = "ok"
	}

	if !o.advisor.Configured() {
		report.Components["advisor"] = "unconfigured, using fallback tables"
		if report.Status == StatusOK {
			report.Status = StatusDegraded
		}
	} else {
		report.Components["advisor"] = "ok"
	}

	return report
}
