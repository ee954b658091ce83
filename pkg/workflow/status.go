package workflow

import "strings"

// SessionStatus is the backend's durable view of how far a session got.
type SessionStatus string

const (
	StatusUnknown              SessionStatus = ""
	StatusCreated              SessionStatus = "created"
	StatusRAGContextLoaded     SessionStatus = "rag_context_loaded"
	StatusRequirementsAnalyzed SessionStatus = "requirements_analyzed"
	StatusRequirementsEdited   SessionStatus = "requirements_edited"
	StatusTestCasesGenerated   SessionStatus = "test_cases_generated"
)

var knownStatuses = map[SessionStatus]struct{}{
	StatusCreated:              {},
	StatusRAGContextLoaded:     {},
	StatusRequirementsAnalyzed: {},
	StatusRequirementsEdited:   {},
	StatusTestCasesGenerated:   {},
}

// ParseSessionStatus normalises a raw backend status string. The backend has
// emitted both "rag_context_loaded" and "rag-context_loaded", so hyphens and
// spaces fold to underscores and case is ignored. Anything unrecognised
// returns StatusUnknown.
func ParseSessionStatus(raw string) SessionStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)

	status := SessionStatus(s)
	if _, ok := knownStatuses[status]; !ok {
		return StatusUnknown
	}
	return status
}

// StageForStatus maps a backend status onto the stage it implies. The second
// return value is false when the status carries no override, in which case
// the locally tracked stage stays as it is.
func StageForStatus(status SessionStatus) (Stage, bool) {
	switch status {
	case StatusCreated:
		return StageNoChat, true
	case StatusRAGContextLoaded:
		return StageAnalyze, true
	case StatusRequirementsAnalyzed:
		return StageEditAnalysis, true
	case StatusTestCasesGenerated:
		return StageComplete, true
	default:
		return "", false
	}
}
