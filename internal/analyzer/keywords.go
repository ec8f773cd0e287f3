package analyzer

import (
	"regexp"

	"prioritizer/internal/task"
)

// Keyword tables are read-only shared state; Analyze is safe for concurrent
// use. The lists are heuristics tuned against typical IT support traffic.
// A false positive on the sensitive side only forces the local-only path.

var highBusinessValueKeywords = []string{
	"revenue", "customer", "client", "sales", "order", "payment", "billing",
	"production", "critical", "essential", "business", "ceo", "cfo", "board",
	"meeting", "presentation", "financial", "quarterly", "annual", "report",
}

var mediumBusinessValueKeywords = []string{
	"manager", "team", "project", "deadline", "important", "urgent",
	"workflow", "process", "efficiency", "productivity",
}

var highRiskKeywords = []string{
	"security", "breach", "hack", "virus", "malware", "phishing", "attack",
	"data", "database", "server", "network", "infrastructure", "system",
	"failure", "down", "crash", "corruption", "loss", "deleted",
}

var mediumRiskKeywords = []string{
	"error", "bug", "issue", "problem", "broken", "not working",
	"slow", "performance", "timeout", "connection",
}

var highEffortKeywords = []string{
	"complete", "total", "entire", "rebuild", "reinstall", "migration",
	"upgrade", "implementation", "development", "complex", "multiple",
}

var lowEffortKeywords = []string{
	"quick", "simple", "restart", "reset", "toggle", "enable", "disable",
	"click", "check", "verify", "password", "login", "access",
}

var complexityKeywords = []string{
	"multiple", "several", "many", "all", "entire", "complete",
}

var workaroundKeywords = []string{
	"alternative", "backup", "temporary", "manual", "different",
	"another", "other", "instead", "bypass", "substitute",
}

var blockingKeywords = []string{
	"only", "sole", "single", "critical", "essential", "required",
	"mandatory", "must", "need", "broken", "corrupted", "deleted",
}

var urgentTags = []string{"urgent", "critical", "asap", "emergency", "immediate"}

var riskTags = []string{"security", "breach", "down", "failure", "critical", "emergency"}

var sensitiveKeywords = []string{
	"personal", "private", "confidential", "secret", "classified",
	"gdpr", "privacy", "sensitive", "restricted", "internal only",
	"salary", "wage", "medical", "health", "social security",
	"passport", "driver license", "national id",
}

// sensitivePattern pairs a stable rule name with its compiled regex. The name
// ends up in the audit log, so it must never contain matched input.
type sensitivePattern struct {
	name string
	re   *regexp.Regexp
}

var sensitivePatterns = []sensitivePattern{
	{"credit card number", regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
	{"national id number", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"email address", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"ip address", regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
	{"iban code", regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{4}\d{7}[A-Z0-9]{0,16}\b`)},
	{"inline password", regexp.MustCompile(`(?i)password[\s:=]+\S+`)},
	{"inline key", regexp.MustCompile(`(?i)key[\s:=]+\S+`)},
}

// affectedUsersPatterns extract an explicit headcount from the text, e.g.
// "40 users" or "12 employees". First match wins, capped at 1000.
var affectedUsersPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*users?`),
	regexp.MustCompile(`(\d+)\s*people`),
	regexp.MustCompile(`(\d+)\s*employees?`),
	regexp.MustCompile(`(\d+)\s*customers?`),
	regexp.MustCompile(`(\d+)\s*clients?`),
}

var scaleKeywords = map[string]int{
	"everyone":     100,
	"all":          50,
	"entire":       30,
	"whole":        30,
	"company":      100,
	"organization": 100,
	"department":   20,
	"team":         8,
	"group":        5,
	"multiple":     3,
	"several":      3,
	"many":         5,
}

var roleValueAdjustments = map[task.Role]float64{
	task.RoleCEO:       3,
	task.RoleCFO:       3,
	task.RoleCTO:       3,
	task.RoleManager:   2,
	task.RoleClient:    2,
	task.RoleITAdmin:   1,
	task.RoleDeveloper: 0,
	task.RoleEmployee:  0,
}

var categoryValueAdjustments = map[task.Category]float64{
	task.CategoryInfrastructure: 2,
	task.CategorySecurity:       2,
	task.CategoryMeetingPrep:    2,
	task.CategorySupport:        1,
	task.CategoryCompliance:     1,
	task.CategoryDevelopment:    0,
	task.CategoryMaintenance:    -1,
	task.CategoryTraining:       -1,
}

var categoryRiskAdjustments = map[task.Category]float64{
	task.CategorySecurity:       4,
	task.CategoryInfrastructure: 3,
	task.CategoryCompliance:     2,
	task.CategorySupport:        1,
	task.CategoryMeetingPrep:    1,
	task.CategoryDevelopment:    0,
	task.CategoryMaintenance:    0,
	task.CategoryTraining:       -1,
}

var categoryEffortHours = map[task.Category]float64{
	task.CategorySecurity:       3.0,
	task.CategoryInfrastructure: 4.0,
	task.CategoryDevelopment:    6.0,
	task.CategoryCompliance:     2.0,
	task.CategoryMeetingPrep:    0.5,
	task.CategorySupport:        1.0,
	task.CategoryMaintenance:    3.0,
	task.CategoryTraining:       1.5,
}

// Categories where some manual fallback usually exists.
var workaroundCategories = map[task.Category]bool{
	task.CategorySupport:     true,
	task.CategoryDevelopment: true,
	task.CategoryMaintenance: true,
}

var categoryAffectedDefaults = map[task.Category]int{
	task.CategoryInfrastructure: 50,
	task.CategorySecurity:       25,
	task.CategorySupport:        1,
	task.CategoryMeetingPrep:    1,
	task.CategoryDevelopment:    3,
	task.CategoryMaintenance:    10,
	task.CategoryTraining:       5,
	task.CategoryCompliance:     15,
}
