package workflow

import (
	"fmt"
	"sort"
)

// Trigger is a local event that moves the workflow to a fixed stage.
type Trigger string

const (
	TriggerContextFetched     Trigger = "context_fetched"
	TriggerStartAnalysis      Trigger = "start_analysis"
	TriggerAnalysisCompleted  Trigger = "analysis_completed"
	TriggerAnalysisSaved      Trigger = "analysis_saved"
	TriggerTestCasesGenerated Trigger = "test_cases_generated"
)

// Target returns the stage a trigger moves to.
func (t Trigger) Target() (Stage, error) {
	switch t {
	case TriggerContextFetched:
		return StageContextFetched, nil
	case TriggerStartAnalysis:
		return StageAnalyze, nil
	case TriggerAnalysisCompleted:
		return StageEditAnalysis, nil
	case TriggerAnalysisSaved:
		return StageGenerateTestCases, nil
	case TriggerTestCasesGenerated:
		return StageComplete, nil
	default:
		return "", fmt.Errorf("unknown workflow trigger %q", string(t))
	}
}

// Source tells where the current stage came from.
type Source string

const (
	SourceInitial Source = "initial"
	SourceLocal   Source = "local"
	SourceBackend Source = "backend"
)

// State is the derived workflow position of one session.
type State struct {
	Stage  Stage  `json:"stage"`
	Source Source `json:"source"`
	// Clock is the sequence number of the last event that changed Stage.
	Clock uint64 `json:"clock"`
}

// NewState returns the state every session starts in.
func NewState() State {
	return State{Stage: StageNoChat, Source: SourceInitial}
}

// Event is either a local trigger or a backend status observation, stamped
// with a per-session logical sequence number. Exactly one of Trigger and
// Status should be set.
type Event struct {
	Seq     uint64
	Trigger Trigger
	Status  SessionStatus
}

// LocalEvent builds a trigger event.
func LocalEvent(seq uint64, t Trigger) Event {
	return Event{Seq: seq, Trigger: t}
}

// StatusEvent builds a backend status event.
func StatusEvent(seq uint64, status SessionStatus) Event {
	return Event{Seq: seq, Status: status}
}

// IsLocal reports whether the event is a local trigger.
func (e Event) IsLocal() bool {
	return e.Trigger != ""
}

// Apply folds one event into the state. It never mutates its input.
//
// Events older than the state's clock are ignored, so whichever event carries
// the highest sequence number decides the stage. A status with no stage
// mapping, or an unknown trigger, leaves the state unchanged.
func Apply(st State, ev Event) State {
	if ev.Seq < st.Clock {
		return st
	}

	if ev.IsLocal() {
		target, err := ev.Trigger.Target()
		if err != nil {
			return st
		}
		return State{Stage: target, Source: SourceLocal, Clock: ev.Seq}
	}

	target, ok := StageForStatus(ev.Status)
	if !ok {
		return st
	}
	return State{Stage: target, Source: SourceBackend, Clock: ev.Seq}
}

// Replay applies events in sequence order, starting from NewState.
func Replay(events []Event) State {
	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Seq < ordered[j].Seq
	})

	st := NewState()
	for _, ev := range ordered {
		st = Apply(st, ev)
	}
	return st
}
