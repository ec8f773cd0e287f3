package privacy

import (
	"fmt"

	"prioritizer/internal/task"
)

// Canned suggestion and action tables. These deliberately live here rather
// than in the advisor package: the gate must stay buildable and correct with
// the advisor absent entirely. The orchestrator's enrichment path shares the
// same tables, so both routes recommend identical actions for a given
// category.

const maxLocalSuggestions = 3

var localSuggestionTables = map[task.Category][]task.Suggestion{
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

var categoryWorkarounds = map[task.Category][]string{
	task.CategorySupport: {
		"Try using a different browser or device",
		"Clear browser cache and cookies",
	},
	task.CategoryInfrastructure: {
		"Use backup systems if available",
		"Implement manual processes temporarily",
	},
	task.CategoryMeetingPrep: {
		"Use alternative presentation software",
		"Present from a backup device",
	},
}

var genericWorkarounds = []string{
	"Check system status page for known issues",
	"Try alternative access methods",
}

func localSuggestions(category task.Category) []task.Suggestion {
	src := localSuggestionTables[category]
	if len(src) > maxLocalSuggestions {
		src = src[:maxLocalSuggestions]
	}
	out := make([]task.Suggestion, len(src))
	copy(out, src)
	return out
}

// WorkaroundSuggestions returns up to two workarounds for the category, or
// nil when the analyzer found none available.
func WorkaroundSuggestions(category task.Category, available bool) []string {
	if !available {
		return nil
	}
	src, ok := categoryWorkarounds[category]
	if !ok {
		src = genericWorkarounds
	}
	if len(src) > 2 {
		src = src[:2]
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// NextActions derives the recommended action list from the routing decision
// and scores. The SLA step is always present; the rest are conditional.
func NextActions(escalate, workaround bool, slaHours, riskScore float64) []string {
	var actions []string
	if escalate {
		actions = append(actions, "Escalate to senior IT staff immediately")
	}
	if workaround {
		actions = append(actions, "Provide workaround solution to minimize impact")
	}
	actions = append(actions, fmt.Sprintf("Begin resolution within %.1f hours", slaHours))
	if riskScore >= 7.0 {
		actions = append(actions, "Monitor for additional impact or escalation")
	}
	return actions
}
