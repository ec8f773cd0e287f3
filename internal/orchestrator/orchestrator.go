// Package orchestrator drives the prioritization pipeline: analyze locally,
// route through the privacy gate, score, enrich non-sensitive tasks through
// the advisor, cache the result, and republish it on the bus.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"prioritizer/internal/advisor"
	"prioritizer/internal/analyzer"
	"prioritizer/internal/cache"
	"prioritizer/internal/eventbus"
	"prioritizer/internal/platform/metrics"
	"prioritizer/internal/privacy"
	"prioritizer/internal/scoring"
	"prioritizer/internal/task"
)

// Config carries the pipeline tunables.
type Config struct {
	BatchWorkers   int
	ResultTTL      time.Duration
	SuggestionTTL  time.Duration
	StatsTTL       time.Duration
	ReportInterval time.Duration
}

// Orchestrator owns the per-task pipeline and the event subscriptions that
// feed it. It is safe for concurrent use.
type Orchestrator struct {
	analyzer *analyzer.Analyzer
	gate     *privacy.Gate
	engine   *scoring.Engine
	advisor  advisor.Advisor
	cache    cache.Store
	bus      eventbus.Bus
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	cfg      Config

	processed atomic.Uint64
	bypassed  atomic.Uint64
}

func New(
	an *analyzer.Analyzer,
	gate *privacy.Gate,
	engine *scoring.Engine,
	adv advisor.Advisor,
	store cache.Store,
	bus eventbus.Bus,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = 5
	}
	return &Orchestrator{
		analyzer: an,
		gate:     gate,
		engine:   engine,
		advisor:  adv,
		cache:    store,
		bus:      bus,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("prioritizer/orchestrator"),
		cfg:      cfg,
	}
}

// Process runs the full pipeline for one task event. It always returns a
// terminal result: internal failures and panics degrade to the safe default
// instead of propagating.
func (o *Orchestrator) Process(ctx context.Context, ev task.Event) (res task.PriorityResult, err error) {
	ctx, span := o.tracer.Start(ctx, "task.process", trace.WithAttributes(
		attribute.String("task.id", ev.ID),
		attribute.String("task.category", string(ev.Category)),
	))
	defer span.End()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic, returning safe default",
				"task_id", ev.ID,
				"panic", r,
			)
			o.metrics.TasksFailed.Inc()
			res = scoring.SafeDefault(ev.ID, o.engine.Now())
			err = nil
		}
	}()

	// Idempotency: a cached result means this event was already processed.
	if cached, cerr := o.cache.GetPriorityResult(ctx, ev.ID); cerr == nil {
		o.logger.Debug("returning cached result", "task_id", ev.ID)
		return *cached, nil
	} else if !errors.Is(cerr, cache.ErrNotFound) {
		o.logger.Warn("cache lookup failed, reprocessing", "task_id", ev.ID, "error", cerr)
	}

	a := o.analyzer.Analyze(ev)

	if local, localRes := o.gate.Route(ev, a); local {
		res = *localRes
		o.bypassed.Add(1)
		o.metrics.TasksBypassed.Inc()
		o.publishPrivacyEvent(ctx, ev, a)
	} else {
		res = o.enrich(ctx, ev, a)
	}

	if err := o.cache.SetPriorityResult(ctx, ev.ID, res, o.cfg.ResultTTL); err != nil {
		o.logger.Warn("result cache write failed", "task_id", ev.ID, "error", err)
	}
	o.publishResult(ctx, ev, res)

	o.processed.Add(1)
	o.metrics.ObserveProcessed(string(res.UrgencyLevel), time.Since(start).Seconds())
	o.logger.Info("task prioritized",
		"task_id", ev.ID,
		"urgency_level", res.UrgencyLevel,
		"final_score", res.Metrics.FinalPriorityScore,
		"escalation", res.EscalationRecommended,
	)
	return res, nil
}

// enrich scores a non-sensitive task and augments it with advisor output,
// falling back to the deterministic tables whenever the advisor fails.
func (o *Orchestrator) enrich(ctx context.Context, ev task.Event, a analyzer.Result) task.PriorityResult {
	m, level, sla := o.engine.Score(ev, a)
	escalate := o.engine.Escalate(ev, m)

	return task.PriorityResult{
		RequestID:             ev.ID,
		UrgencyLevel:          level,
		Metrics:               m,
		Reasoning:             enrichedReasoning(m, a, level),
		AIConfidence:          math.Min(0.95, 0.85+a.Confidence*0.1),
		SuggestedSLAHours:     sla,
		Suggestions:           o.suggestionsFor(ctx, ev),
		EscalationRecommended: escalate,
		WorkaroundSuggestions: privacy.WorkaroundSuggestions(ev.Category, a.WorkaroundAvailable),
		NextActions:           privacy.NextActions(escalate, a.WorkaroundAvailable, sla, m.RiskScore),
		RiskAssessment:        o.riskAssessment(ctx, ev, m),
		ProcessedAt:           o.engine.Now(),
	}
}

// suggestionsFor serves advisor suggestions with a content-hash cache in
// front, so identical task text never costs a second external call.
func (o *Orchestrator) suggestionsFor(ctx context.Context, ev task.Event) []task.Suggestion {
	hash := contentHash(ev)
	if cached, err := o.cache.GetSuggestions(ctx, hash); err == nil {
		return cached
	}

	suggestions, err := o.advisor.Suggest(ctx, ev)
	if err != nil {
		if o.advisor.Configured() {
			o.logger.Warn("advisor suggestion call failed, using fallback",
				"task_id", ev.ID,
				"error", err,
			)
		}
		o.metrics.ObserveAdvisorCall("fallback")
		return advisor.FallbackSuggestions(ev.Category)
	}
	o.metrics.ObserveAdvisorCall("ok")

	if err := o.cache.SetSuggestions(ctx, hash, suggestions, o.cfg.SuggestionTTL); err != nil {
		o.logger.Warn("suggestion cache write failed", "task_id", ev.ID, "error", err)
	}
	return suggestions
}

func (o *Orchestrator) riskAssessment(ctx context.Context, ev task.Event, m task.PriorityMetrics) string {
	assessment, err := o.advisor.AssessRisk(ctx, ev, m)
	if err != nil {
		if o.advisor.Configured() {
			o.logger.Warn("advisor risk call failed, using fallback",
				"task_id", ev.ID,
				"error", err,
			)
		}
		return advisor.FallbackRiskAssessment(m.RiskScore)
	}
	return assessment
}

// privacyEvent is the audit record emitted when the gate forces local-only
// processing. It carries rule names only, never task text.
type privacyEvent struct {
	TaskID     string    `json:"task_id"`
	Reasons    []string  `json:"reasons"`
	DetectedAt time.Time `json:"detected_at"`
}

func (o *Orchestrator) publishPrivacyEvent(ctx context.Context, ev task.Event, a analyzer.Result) {
	event := privacyEvent{
		TaskID:     ev.ID,
		Reasons:    a.SensitiveReasons,
		DetectedAt: o.engine.Now(),
	}
	if err := eventbus.PublishJSON(ctx, o.bus, "system.events.privacy", event); err != nil {
		o.logger.Error("privacy event publish failed", "task_id", ev.ID, "error", err)
	}
}

// publishResult republishes the terminal result on the category-qualified
// result subject. Publish failures are logged, not propagated: the result is
// already cached and the caller already has it.
func (o *Orchestrator) publishResult(ctx context.Context, ev task.Event, res task.PriorityResult) {
	subject := fmt.Sprintf("%s.%s", eventbus.SubjectPriorityResult, ev.Category)
	if err := eventbus.PublishJSON(ctx, o.bus, subject, res); err != nil {
		o.logger.Error("result publish failed",
			"task_id", ev.ID,
			"subject", subject,
			"error", err,
		)
	}
}

func contentHash(ev task.Event) string {
	h := sha256.New()
	h.Write([]byte(ev.Title))
	h.Write([]byte{0})
	h.Write([]byte(ev.Description))
	h.Write([]byte{0})
	h.Write([]byte(ev.Category))
	return hex.EncodeToString(h.Sum(nil))
}

func enrichedReasoning(m task.PriorityMetrics, a analyzer.Result, level task.Urgency) string {
	return fmt.Sprintf(
		"AI-assisted analysis - priority score %.1f/10. "+
			"Time sensitivity %.1f/10, business impact %.1f/10, risk %.1f/10, role weight %.1f/5, analyzer confidence %.0f%%. "+
			"Classification: %s priority.",
		m.FinalPriorityScore, m.TimeSensitivityScore, m.BusinessImpactScore,
		m.RiskScore, m.RoleWeight, a.Confidence*100, level,
	)
}
