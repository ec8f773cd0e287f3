// Package advisor wraps the external AI collaborator that enriches
// non-sensitive assessments with suggestions and a risk narrative. Every
// caller must treat it as unreliable: the deterministic fallback tables in
// this package are the contract of last resort.
package advisor

import (
	"context"
	"fmt"

	"prioritizer/internal/task"
)

// Advisor produces user-facing suggestions and a short risk assessment for a
// task. Implementations may call external services; callers bound each call
// with a context deadline and fall back on any error.
type Advisor interface {
	Suggest(ctx context.Context, ev task.Event) ([]task.Suggestion, error)
	AssessRisk(ctx context.Context, ev task.Event, metrics task.PriorityMetrics) (string, error)
	// Configured reports whether the advisor can reach an external service.
	// Unconfigured advisors degrade health to DEGRADED, not CRITICAL.
	Configured() bool
}

// MaxSuggestions bounds the list returned to callers regardless of source.
const MaxSuggestions = 5

var fallbackSuggestions = map[task.Category][]task.Suggestion{
	task.CategorySupport: {
		{
			Title:                   "Restart the application",
			Description:             "Close the application completely and restart it",
			Category:                task.SuggestionSelfHelp,
			EstimatedResolutionTime: "2 minutes",
			Confidence:              0.7,
		},
		{
			Title:                   "Check network connectivity",
			Description:             "Verify your internet connection is stable and working",
			Category:                task.SuggestionSelfHelp,
			EstimatedResolutionTime: "1 minute",
			Confidence:              0.6,
		},
	},
	task.CategorySecurity: {
		{
			Title:                   "Disconnect from network immediately",
			Description:             "Disconnect the affected device from the network to prevent spread",
			Category:                task.SuggestionEscalation,
			EstimatedResolutionTime: "30 seconds",
			Confidence:              0.9,
		},
		{
			Title:                   "Document the incident",
			Description:             "Take screenshots and note exact times for the security team",
			Category:                task.SuggestionPrevention,
			EstimatedResolutionTime: "5 minutes",
			Confidence:              0.8,
		},
	},
	task.CategoryMeetingPrep: {
		{
			Title:                   "Try alternative presentation software",
			Description:             "Open the file with another presentation tool",
			Category:                task.SuggestionWorkaround,
			EstimatedResolutionTime: "3 minutes",
			Confidence:              0.8,
		},
		{
			Title:                   "Use a backup device",
			Description:             "Try opening the presentation on a different computer",
			Category:                task.SuggestionWorkaround,
			EstimatedResolutionTime: "5 minutes",
			Confidence:              0.7,
		},
	},
}

// FallbackSuggestions returns the canned suggestion list for a category.
// Unknown categories get an empty list, which is a valid result.
func FallbackSuggestions(category task.Category) []task.Suggestion {
	src := fallbackSuggestions[category]
	out := make([]task.Suggestion, len(src))
	copy(out, src)
	return out
}

// FallbackRiskAssessment derives a deterministic narrative from the computed
// risk score when the external advisor is unavailable.
func FallbackRiskAssessment(riskScore float64) string {
	switch {
	case riskScore >= 8:
		return "High risk situation requiring immediate attention to prevent business disruption."
	case riskScore >= 5:
		return "Moderate risk that should be addressed promptly to avoid escalation."
	default:
		return "Low risk issue that can be handled through standard support channels."
	}
}

// Noop is an Advisor that always reports itself unconfigured and defers to
// the fallback tables. Used when no API key is present.
type Noop struct{}

func (Noop) Suggest(_ context.Context, _ task.Event) ([]task.Suggestion, error) {
	return nil, fmt.Errorf("advisor not configured")
}

func (Noop) AssessRisk(_ context.Context, _ task.Event, _ task.PriorityMetrics) (string, error) {
	return "", fmt.Errorf("advisor not configured")
}

func (Noop) Configured() bool { return false }
