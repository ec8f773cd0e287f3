// Package privacy enforces the hard boundary for regulated personal data.
// When the analyzer flags a task as sensitive, the gate builds the complete
// assessment from local analysis alone. This package intentionally has no
// dependency on the advisor client, so no code path here can reach an
// external service.
package privacy

import (
	"fmt"
	"log/slog"
	"math"

	"prioritizer/internal/analyzer"
	"prioritizer/internal/scoring"
	"prioritizer/internal/task"
)

// LocalConfidence is the fixed confidence reported for local-only results.
// It is a constant of the local analysis, never derived from any external
// signal.
const LocalConfidence = 0.75

// Gate decides routing for analyzed tasks and produces local-only results.
type Gate struct {
	engine *scoring.Engine
	logger *slog.Logger
}

func New(engine *scoring.Engine, logger *slog.Logger) *Gate {
	return &Gate{engine: engine, logger: logger}
}

// Route returns (true, result) when the task must stay on the local-only
// path, and (false, nil) when it may be enriched externally. The detection is
// logged with the task ID and rule names for audit; task text itself is never
// logged.
func (g *Gate) Route(ev task.Event, a analyzer.Result) (bool, *task.PriorityResult) {
	if !a.IsSensitive {
		return false, nil
	}

	g.logger.Warn("sensitive content detected, routing to local-only processing",
		"task_id", ev.ID,
		"reasons", a.SensitiveReasons,
	)

	res := g.buildLocalResult(ev, a)
	return true, &res
}

// buildLocalResult mirrors the scoring engine's weighted formula but
// substitutes a risk-derived urgency for the externally-flavored one and
// canned suggestion tables for advisor output.
func (g *Gate) buildLocalResult(ev task.Event, a analyzer.Result) task.PriorityResult {
	urgency := math.Min(10, float64(a.RiskLevel)*1.2)
	businessImpact := float64(a.BusinessValue)
	risk := float64(a.RiskLevel)
	roleWeight := scoring.RoleWeight(ev.RequesterRole)
	timeSensitivity := g.engine.TimeSensitivity(ev)

	metrics := task.PriorityMetrics{
		UrgencyScore:          urgency,
		BusinessImpactScore:   businessImpact,
		RiskScore:             risk,
		RoleWeight:            roleWeight,
		TimeSensitivityScore:  timeSensitivity,
		EffortComplexityScore: math.Max(1, 10-a.EffortHours*0.5),
		FinalPriorityScore:    scoring.FinalScore(urgency, businessImpact, risk, roleWeight, timeSensitivity),
	}

	level := scoring.UrgencyFor(metrics.FinalPriorityScore)
	sla := scoring.SLAHours(level, ev.Category)
	escalate := g.engine.Escalate(ev, metrics)

	return task.PriorityResult{
		RequestID:             ev.ID,
		UrgencyLevel:          level,
		Metrics:               metrics,
		Reasoning:             localReasoning(metrics, a, level),
		AIConfidence:          LocalConfidence,
		SuggestedSLAHours:     sla,
		Suggestions:           localSuggestions(ev.Category),
		EscalationRecommended: escalate,
		WorkaroundSuggestions: WorkaroundSuggestions(ev.Category, a.WorkaroundAvailable),
		NextActions:           NextActions(escalate, a.WorkaroundAvailable, sla, metrics.RiskScore),
		RiskAssessment:        localRiskAssessment(a.RiskLevel),
		ProcessedAt:           g.engine.Now(),
	}
}

func localRiskAssessment(riskLevel int) string {
	switch {
	case riskLevel >= 8:
		return fmt.Sprintf("High risk situation requiring immediate attention. Risk level %d/10 indicates potential for significant business disruption.", riskLevel)
	case riskLevel >= 5:
		return fmt.Sprintf("Moderate risk that should be addressed promptly. Risk level %d/10 suggests potential for escalation if not resolved.", riskLevel)
	default:
		return fmt.Sprintf("Low to moderate risk issue. Risk level %d/10 can be handled through standard support channels.", riskLevel)
	}
}

func localReasoning(m task.PriorityMetrics, a analyzer.Result, level task.Urgency) string {
	return fmt.Sprintf(
		"Local-only analysis - priority score %.1f/10. "+
			"Time sensitivity %.1f/10, business impact %.1f/10, risk %.1f/10, role weight %.1f/5, confidence %.0f%%. "+
			"Classification: %s priority. "+
			"This task contained regulated personal data and was processed locally without external AI services.",
		m.FinalPriorityScore, m.TimeSensitivityScore, m.BusinessImpactScore,
		m.RiskScore, m.RoleWeight, a.Confidence*100, level,
	)
}
