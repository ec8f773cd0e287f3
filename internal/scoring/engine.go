// Package scoring turns analyzer output and task metadata into priority
// metrics, an urgency level, and a suggested SLA. The weighted formula here
// is the single source of truth for final scores; the privacy gate reuses it
// for the local-only path.
package scoring

import (
	"math"
	"time"

	"prioritizer/internal/analyzer"
	"prioritizer/internal/task"
)

// Fixed weights of the final priority score. Changing these breaks score
// parity with previously cached results, so they are constants, not config.
const (
	weightUrgency         = 0.30
	weightBusinessImpact  = 0.25
	weightRisk            = 0.20
	weightRoleWeight      = 0.15
	weightTimeSensitivity = 0.10
)

var roleWeights = map[task.Role]float64{
	task.RoleCEO:       5.0,
	task.RoleCFO:       4.5,
	task.RoleCTO:       4.5,
	task.RoleManager:   3.5,
	task.RoleITAdmin:   3.0,
	task.RoleDeveloper: 2.5,
	task.RoleEmployee:  2.0,
	task.RoleClient:    2.5,
}

var categoryUrgencyMultipliers = map[task.Category]float64{
	task.CategorySecurity:       1.5,
	task.CategoryInfrastructure: 1.3,
	task.CategoryMeetingPrep:    1.2,
	task.CategorySupport:        1.0,
	task.CategoryDevelopment:    0.8,
	task.CategoryMaintenance:    0.7,
	task.CategoryTraining:       0.6,
	task.CategoryCompliance:     0.9,
}

var baseSLAHours = map[task.Urgency]float64{
	task.UrgencyCritical: 1,
	task.UrgencyHigh:     4,
	task.UrgencyMedium:   24,
	task.UrgencyLow:      72,
}

var categorySLAMultipliers = map[task.Category]float64{
	task.CategorySecurity:       0.5,
	task.CategoryInfrastructure: 0.7,
	task.CategoryMeetingPrep:    0.3,
	task.CategorySupport:        1.0,
	task.CategoryDevelopment:    1.5,
	task.CategoryMaintenance:    2.0,
	task.CategoryTraining:       3.0,
	task.CategoryCompliance:     1.2,
}

// Engine computes priority metrics. The clock is injectable so tests can pin
// time-sensitivity buckets.
type Engine struct {
	now func() time.Time
}

type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score computes the full metric set, the urgency level, and the SLA for a
// non-sensitive task. All inputs come from the local analyzer, never from the
// caller.
func (e *Engine) Score(ev task.Event, a analyzer.Result) (task.PriorityMetrics, task.Urgency, float64) {
	timeSensitivity := e.TimeSensitivity(ev)
	roleWeight := RoleWeight(ev.RequesterRole)

	businessImpact := math.Min(10, float64(a.BusinessValue)+math.Log10(float64(a.AffectedUsers)))
	risk := math.Min(10, float64(a.RiskLevel)*categoryUrgencyMultiplier(ev.Category))
	urgency := math.Min(10, timeSensitivity*0.6+risk*0.4)
	effortComplexity := math.Max(1, 10-a.EffortHours*0.5)

	metrics := task.PriorityMetrics{
		UrgencyScore:          urgency,
		BusinessImpactScore:   businessImpact,
		RiskScore:             risk,
		RoleWeight:            roleWeight,
		TimeSensitivityScore:  timeSensitivity,
		EffortComplexityScore: effortComplexity,
		FinalPriorityScore:    FinalScore(urgency, businessImpact, risk, roleWeight, timeSensitivity),
	}

	level := UrgencyFor(metrics.FinalPriorityScore)
	return metrics, level, SLAHours(level, ev.Category)
}

// Now exposes the engine clock so collaborators stamp results consistently.
func (e *Engine) Now() time.Time {
	return e.now()
}

// TimeSensitivity buckets by hours until the meeting, then the deadline.
// A task with neither gets the floor score of 2.
func (e *Engine) TimeSensitivity(ev task.Event) float64 {
	now := e.now()

	if ev.MeetingTime != nil {
		switch hours := ev.MeetingTime.Sub(now).Hours(); {
		case hours <= 1:
			return 10
		case hours <= 4:
			return 8
		case hours <= 24:
			return 6
		default:
			return 4
		}
	}

	if ev.Deadline != nil {
		switch hours := ev.Deadline.Sub(now).Hours(); {
		case hours <= 2:
			return 9
		case hours <= 8:
			return 7
		case hours <= 48:
			return 5
		default:
			return 3
		}
	}

	return 2
}

// Escalate reports whether the task should be escalated to senior staff.
func (e *Engine) Escalate(ev task.Event, m task.PriorityMetrics) bool {
	return m.FinalPriorityScore >= 8.0 ||
		ev.Category == task.CategorySecurity ||
		ev.RequesterRole == task.RoleCEO ||
		ev.RequesterRole == task.RoleCFO ||
		ev.RequesterRole == task.RoleCTO ||
		m.RiskScore >= 8.0
}

// FinalScore applies the fixed weighted combination, clamped to [0,10].
func FinalScore(urgency, businessImpact, risk, roleWeight, timeSensitivity float64) float64 {
	score := urgency*weightUrgency +
		businessImpact*weightBusinessImpact +
		risk*weightRisk +
		roleWeight*weightRoleWeight +
		timeSensitivity*weightTimeSensitivity
	return math.Max(0, math.Min(10, score))
}

// UrgencyFor maps a final priority score onto the urgency thresholds.
func UrgencyFor(score float64) task.Urgency {
	switch {
	case score >= 8.0:
		return task.UrgencyCritical
	case score >= 6.0:
		return task.UrgencyHigh
	case score >= 3.0:
		return task.UrgencyMedium
	default:
		return task.UrgencyLow
	}
}

// SLAHours derives the suggested SLA from urgency and category.
func SLAHours(level task.Urgency, category task.Category) float64 {
	mult, ok := categorySLAMultipliers[category]
	if !ok {
		mult = 1.0
	}
	return baseSLAHours[level] * mult
}

// RoleWeight returns the requester's weight on the [0,5] scale.
// Unknown roles fall back to the employee baseline.
func RoleWeight(role task.Role) float64 {
	if w, ok := roleWeights[role]; ok {
		return w
	}
	return 2.0
}

func categoryUrgencyMultiplier(c task.Category) float64 {
	if m, ok := categoryUrgencyMultipliers[c]; ok {
		return m
	}
	return 1.0
}

// SafeDefault is the well-formed result returned when the pipeline hits an
// internal error. Callers always receive a terminal result, never a raw
// failure.
func SafeDefault(requestID string, now time.Time) task.PriorityResult {
	return task.PriorityResult{
		RequestID:    requestID,
		UrgencyLevel: task.UrgencyMedium,
		Metrics: task.PriorityMetrics{
			UrgencyScore:          5.0,
			BusinessImpactScore:   5.0,
			RiskScore:             5.0,
			RoleWeight:            2.0,
			TimeSensitivityScore:  5.0,
			EffortComplexityScore: 5.0,
			FinalPriorityScore:    5.0,
		},
		Reasoning:         "Error in priority processing, using default assessment.",
		AIConfidence:      0.1,
		SuggestedSLAHours: 24,
		NextActions:       []string{"Standard support process"},
		RiskAssessment:    "Unable to assess risk due to processing error.",
		ProcessedAt:       now,
	}
}
