package workflow

// Step is one of the four coarse progress markers shown above the chat.
type Step struct {
	ID       Stage  `json:"id"`
	Title    string `json:"title"`
	Active   bool   `json:"active"`
	Complete bool   `json:"complete"`
}

// stepGroups maps each display step to the stages during which it is lit.
var stepGroups = []struct {
	id     Stage
	title  string
	stages []Stage
}{
	{StageNoChat, "Fetch", []Stage{StageNoChat}},
	{StageContextFetched, "Analyze", []Stage{StageContextFetched, StageAnalyze}},
	{StageEditAnalysis, "Review", []Stage{StageEditAnalysis}},
	{StageGenerateTestCases, "Generate", []Stage{StageGenerateTestCases, StageComplete}},
}

// Steps renders the stepper for the current stage. A step is complete once
// the current stage has moved past every stage in its group.
func Steps(current Stage) []Step {
	idx := current.Index()
	steps := make([]Step, 0, len(stepGroups))
	for _, g := range stepGroups {
		step := Step{ID: g.id, Title: g.title}
		last := g.stages[len(g.stages)-1]
		for _, s := range g.stages {
			if s == current {
				step.Active = true
			}
		}
		if idx > last.Index() {
			step.Complete = true
		}
		if current == StageComplete && last == StageComplete {
			step.Complete = true
		}
		steps = append(steps, step)
	}
	return steps
}
