package workflow

// Stage is the position of a session inside the guided test-generation flow.
// The order of the constants is used for display only; the flow can jump
// between any two stages when the backend status says so.
type Stage string

const (
	StageNoChat            Stage = "no-chat"
	StageContextFetched    Stage = "context-fetched"
	StageAnalyze           Stage = "analyze"
	StageEditAnalysis      Stage = "edit-analysis"
	StageGenerateTestCases Stage = "generate-testcases"
	StageComplete          Stage = "complete"
)

// Stages lists every stage in display order.
var Stages = []Stage{
	StageNoChat,
	StageContextFetched,
	StageAnalyze,
	StageEditAnalysis,
	StageGenerateTestCases,
	StageComplete,
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Index returns the display position of s, or -1 for unknown stages.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Description is the hint shown next to the session header.
func (s Stage) Description() string {
	switch s {
	case StageNoChat:
		return `Click "New Chat" to start`
	case StageContextFetched:
		return "Context retrieved - ready to start analysis"
	case StageAnalyze:
		return "Enter your analysis prompt"
	case StageEditAnalysis:
		return "Review and edit agent analysis"
	case StageGenerateTestCases:
		return "Ready to generate test cases"
	case StageComplete:
		return "Workflow complete"
	default:
		return ""
	}
}

func (s Stage) String() string {
	return string(s)
}
