// Package analyzer derives scoring inputs and a sensitivity verdict from raw
// task text. It performs no I/O and holds no mutable state: Analyze is a pure
// function of its arguments, which keeps reprocessing idempotent and the
// privacy decision reproducible for audit.
package analyzer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"prioritizer/internal/task"
)

// Result carries everything the analyzer can tell about a task without
// leaving the process. Bounds: BusinessValue and RiskLevel in [1,10],
// EffortHours in [0.1,20.0], AffectedUsers in [1,1000], Confidence in [0,1].
// SensitiveReasons is non-empty exactly when IsSensitive is true.
type Result struct {
	BusinessValue       int      `json:"business_value"`
	RiskLevel           int      `json:"risk_level"`
	EffortHours         float64  `json:"estimated_effort_hours"`
	WorkaroundAvailable bool     `json:"workaround_available"`
	AffectedUsers       int      `json:"affected_users_count"`
	IsSensitive         bool     `json:"is_sensitive"`
	SensitiveReasons    []string `json:"sensitive_reasons,omitempty"`
	Confidence          float64  `json:"confidence_score"`
}

// Analyzer evaluates task text against the package keyword tables.
// The zero value is not usable; call New.
type Analyzer struct{}

func New() *Analyzer {
	return &Analyzer{}
}

// Analyze computes all local metrics for a task event.
func (a *Analyzer) Analyze(ev task.Event) Result {
	fullText := ev.Title + " " + ev.Description + " " + ev.Context + " " + strings.Join(ev.Tags, " ")
	sensitive, reasons := DetectSensitive(fullText)

	return Result{
		BusinessValue:       a.businessValue(ev),
		RiskLevel:           a.riskLevel(ev),
		EffortHours:         a.effortHours(ev),
		WorkaroundAvailable: a.workaroundAvailable(ev),
		AffectedUsers:       a.affectedUsers(ev),
		IsSensitive:         sensitive,
		SensitiveReasons:    reasons,
		Confidence:          a.confidence(ev),
	}
}

// DetectSensitive matches text against the structured-data regexes and the
// sensitive keyword list. It returns one reason per matched rule; duplicates
// across rules are allowed and no ordering is guaranteed.
func DetectSensitive(text string) (bool, []string) {
	var reasons []string
	lower := strings.ToLower(text)

	for _, p := range sensitivePatterns {
		if p.re.MatchString(text) {
			reasons = append(reasons, "contains pattern: "+p.name)
		}
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			reasons = append(reasons, "contains keyword: "+kw)
		}
	}
	return len(reasons) > 0, reasons
}

func (a *Analyzer) businessValue(ev task.Event) int {
	text := loweredText(ev.Title, ev.Description, ev.Tags)

	score := 5.0
	score += roleValueAdjustments[ev.RequesterRole]
	score += categoryValueAdjustments[ev.Category]

	high := countMatches(text, highBusinessValueKeywords)
	medium := countMatches(text, mediumBusinessValueKeywords)
	score += math.Min(float64(high)*1.5, 3) // high-value keywords cap at +3
	score += math.Min(float64(medium)*0.5, 2)

	if anyTagIn(ev.Tags, urgentTags) {
		score += 2
	}
	return clampInt(int(score), 1, 10)
}

func (a *Analyzer) riskLevel(ev task.Event) int {
	text := loweredText(ev.Title, ev.Description, ev.Tags)

	score := 3.0
	score += categoryRiskAdjustments[ev.Category]

	high := countMatches(text, highRiskKeywords)
	medium := countMatches(text, mediumRiskKeywords)
	score += math.Min(float64(high)*2, 5) // high-risk keywords cap at +5
	score += math.Min(float64(medium), 3)

	if anyTagIn(ev.Tags, riskTags) {
		score += 2
	}
	return clampInt(int(score), 1, 10)
}

func (a *Analyzer) effortHours(ev task.Event) float64 {
	text := loweredText(ev.Title, ev.Description, ev.Tags)

	hours, ok := categoryEffortHours[ev.Category]
	if !ok {
		hours = 2.0
	}

	if high := countMatches(text, highEffortKeywords); high > 0 {
		hours *= 1 + float64(high)*0.5
	}
	if low := countMatches(text, lowEffortKeywords); low > 0 {
		hours *= math.Max(0.3, 1-float64(low)*0.2)
	}
	hours *= 1 + float64(countMatches(text, complexityKeywords))*0.3

	hours = math.Max(0.1, math.Min(20.0, hours))
	return math.Round(hours*10) / 10
}

func (a *Analyzer) workaroundAvailable(ev task.Event) bool {
	text := strings.ToLower(ev.Title + " " + ev.Description)

	mentions := countMatches(text, workaroundKeywords)
	blocking := countMatches(text, blockingKeywords)
	if blocking > mentions {
		return false
	}
	if workaroundCategories[ev.Category] {
		return true
	}
	return mentions > 0
}

func (a *Analyzer) affectedUsers(ev task.Event) int {
	text := loweredText(ev.Title, ev.Description, ev.Tags)

	for _, re := range affectedUsersPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				if n > 1000 {
					return 1000
				}
				return n
			}
		}
	}

	affected := 1
	for kw, count := range scaleKeywords {
		if strings.Contains(text, kw) && count > affected {
			affected = count
		}
	}
	if def := categoryAffectedDefaults[ev.Category]; def > affected {
		affected = def
	}
	return affected
}

func (a *Analyzer) confidence(ev task.Event) float64 {
	score := 0.5
	switch {
	case len(ev.Description) > 100:
		score += 0.2
	case len(ev.Description) > 50:
		score += 0.1
	}
	if len(strings.Fields(ev.Title)) >= 3 {
		score += 0.1
	}
	score += math.Min(float64(len(ev.Tags))*0.05, 0.2)

	score = math.Min(1.0, score)
	return math.Round(score*100) / 100
}

func loweredText(title, description string, tags []string) string {
	return strings.ToLower(title + " " + description + " " + strings.Join(tags, " "))
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func anyTagIn(tags, wanted []string) bool {
	for _, t := range tags {
		lower := strings.ToLower(t)
		for _, w := range wanted {
			if lower == w {
				return true
			}
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// String summarizes the analysis for log output without echoing task text.
func (r Result) String() string {
	return fmt.Sprintf("value=%d risk=%d effort=%.1fh users=%d sensitive=%t conf=%.2f",
		r.BusinessValue, r.RiskLevel, r.EffortHours, r.AffectedUsers, r.IsSensitive, r.Confidence)
}
