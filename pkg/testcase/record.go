package testcase

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Priority is the severity label of a generated test case.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// DefaultType is the category given to parsed records that do not carry one.
const DefaultType = "edge"

// Record is one validated test case.
type Record struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Priority        Priority `json:"priority"`
	Type            string   `json:"type"`
	Steps           []string `json:"steps"`
	ExpectedResults string   `json:"expectedResults"`
}

// Valid reports whether the record has everything a test case needs to be
// shown and exported.
func (r Record) Valid() bool {
	return r.ID != "" && r.Title != "" && len(r.Steps) > 0 && r.ExpectedResults != ""
}

// NormalizePriority keeps the first word of raw and title-cases it, so
// "critical", "HIGH" and "Medium - needs review" become Critical, High and
// Medium. Values outside the four levels fall back to Medium.
func NormalizePriority(raw string) Priority {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return PriorityMedium
	}
	word := strings.Trim(fields[0], "*_.,;:-")

	// Casers keep state, so each call gets its own.
	p := Priority(cases.Title(language.Und).String(word))
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityMedium
	}
}
