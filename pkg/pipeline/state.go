package pipeline

import "fmt"

// State is a lifecycle state. States are ordered: Idle < Ready < Paused <
// Playing.
type State int

const (
	// StateNone means "no state", used for the pending slot when nothing is
	// in progress.
	StateNone State = iota
	StateIdle
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "none"
	}
}

// ParseState parses the names returned by State.String.
func ParseState(s string) (State, error) {
	for st := StateIdle; st <= StatePlaying; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StateNone, fmt.Errorf("pipeline: unknown state %q", s)
}

// stepToward returns the state adjacent to cur in the direction of target.
func stepToward(cur, target State) State {
	switch {
	case cur < target:
		return cur + 1
	case cur > target:
		return cur - 1
	}
	return cur
}

// Transition is a single step between adjacent states.
type Transition struct {
	From, To State
}

// Upward reports whether the transition moves toward Playing.
func (t Transition) Upward() bool { return t.To > t.From }

func (t Transition) String() string {
	return t.From.String() + "->" + t.To.String()
}

// Common transitions, for switch statements in ChangeState.
var (
	IdleToReady     = Transition{StateIdle, StateReady}
	ReadyToPaused   = Transition{StateReady, StatePaused}
	PausedToPlaying = Transition{StatePaused, StatePlaying}
	PlayingToPaused = Transition{StatePlaying, StatePaused}
	PausedToReady   = Transition{StatePaused, StateReady}
	ReadyToIdle     = Transition{StateReady, StateIdle}
)

// StateChangeReturn is the result of a state change request.
type StateChangeReturn int

const (
	// Failure means the change could not be made.
	Failure StateChangeReturn = iota
	// Success means the change completed before returning.
	Success
	// Async means the change completes later; a StateChanged event reports
	// completion.
	Async
)

func (r StateChangeReturn) String() string {
	switch r {
	case Success:
		return "success"
	case Async:
		return "async"
	default:
		return "failure"
	}
}
