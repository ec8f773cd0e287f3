// Package task defines the wire and domain types shared across the
// prioritization pipeline: inbound task events, computed priority metrics,
// and the assessment result that is cached and republished.
package task

import "time"

// Role identifies who filed the task. Closed set, validated at the edge.
type Role string

const (
	RoleCEO       Role = "CEO"
	RoleCFO       Role = "CFO"
	RoleCTO       Role = "CTO"
	RoleManager   Role = "MANAGER"
	RoleDeveloper Role = "DEVELOPER"
	RoleITAdmin   Role = "IT_ADMIN"
	RoleClient    Role = "CLIENT"
	RoleEmployee  Role = "EMPLOYEE"
)

// Roles lists every valid requester role.
var Roles = []Role{
	RoleCEO, RoleCFO, RoleCTO, RoleManager,
	RoleDeveloper, RoleITAdmin, RoleClient, RoleEmployee,
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Category classifies the task. Closed set, validated at the edge.
type Category string

const (
	CategoryMeetingPrep    Category = "MEETING_PREP"
	CategoryInfrastructure Category = "INFRASTRUCTURE"
	CategorySecurity       Category = "SECURITY"
	CategorySupport        Category = "SUPPORT"
	CategoryDevelopment    Category = "DEVELOPMENT"
	CategoryMaintenance    Category = "MAINTENANCE"
	CategoryTraining       Category = "TRAINING"
	CategoryCompliance     Category = "COMPLIANCE"
)

// Categories lists every valid task category.
var Categories = []Category{
	CategoryMeetingPrep, CategoryInfrastructure, CategorySecurity,
	CategorySupport, CategoryDevelopment, CategoryMaintenance,
	CategoryTraining, CategoryCompliance,
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Urgency is the final classification derived from the priority score.
type Urgency string

const (
	UrgencyCritical Urgency = "CRITICAL"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyLow      Urgency = "LOW"
)

// Event is the immutable inbound task description. Scoring inputs
// (business value, risk, effort, affected users) are never taken from the
// caller; the local analyzer derives them from the text fields.
type Event struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      Category   `json:"category"`
	RequesterRole Role       `json:"requester_role"`
	RequesterName string     `json:"requester_name"`
	CreatedAt     time.Time  `json:"created_at"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	MeetingTime   *time.Time `json:"meeting_time,omitempty"`
	Context       string     `json:"context,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
}

// PriorityMetrics holds the individual scoring dimensions. FinalPriorityScore
// is always the fixed weighted combination of the other dimensions:
// urgency 0.30, business impact 0.25, risk 0.20, role weight 0.15,
// time sensitivity 0.10, clamped to [0,10].
type PriorityMetrics struct {
	UrgencyScore          float64 `json:"urgency_score"`
	BusinessImpactScore   float64 `json:"business_impact_score"`
	RiskScore             float64 `json:"risk_score"`
	RoleWeight            float64 `json:"role_weight"`
	TimeSensitivityScore  float64 `json:"time_sensitivity_score"`
	EffortComplexityScore float64 `json:"effort_complexity_score"`
	FinalPriorityScore    float64 `json:"final_priority_score"`
}

// Suggestion categories returned by the advisor and the fallback tables.
const (
	SuggestionSelfHelp   = "self_help"
	SuggestionWorkaround = "workaround"
	SuggestionEscalation = "escalation"
	SuggestionPrevention = "prevention"
)

// Suggestion is one actionable recommendation for the requester.
type Suggestion struct {
	Title                   string  `json:"title"`
	Description             string  `json:"description"`
	Category                string  `json:"category"`
	EstimatedResolutionTime string  `json:"estimated_resolution_time,omitempty"`
	Confidence              float64 `json:"confidence_level"`
}

// PriorityResult is the terminal assessment for a task event. It is created
// once per event, cached under the request ID, and superseded (never mutated)
// by reprocessing.
type PriorityResult struct {
	RequestID             string          `json:"request_id"`
	UrgencyLevel          Urgency         `json:"urgency_level"`
	Metrics               PriorityMetrics `json:"priority_metrics"`
	Reasoning             string          `json:"reasoning"`
	AIConfidence          float64         `json:"ai_confidence"`
	SuggestedSLAHours     float64         `json:"suggested_sla_hours"`
	Suggestions           []Suggestion    `json:"user_suggestions"`
	EscalationRecommended bool            `json:"escalation_recommended"`
	WorkaroundSuggestions []string        `json:"workaround_suggestions,omitempty"`
	NextActions           []string        `json:"next_actions,omitempty"`
	RiskAssessment        string          `json:"risk_assessment"`
	ProcessedAt           time.Time       `json:"processed_at"`
}
