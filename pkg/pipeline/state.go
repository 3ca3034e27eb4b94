package pipeline

import "fmt"

// State is the lifecycle position of a Run.
type State int

const (
	NotStarted State = iota
	Gathering
	Writing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Gathering:
		return "gathering"
	case Writing:
		return "writing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

var transitions = map[State][]State{
	NotStarted: {Gathering, Writing, Completed, Failed},
	Gathering:  {Writing, Failed},
	Writing:    {Completed, Failed},
}

// Run is the state of one pipeline execution. Transitions only move forward.
type Run struct {
	Request  Request
	State    State
	Gathered string
	Report   string
}

func newRun(req Request) *Run {
	return &Run{Request: req, State: NotStarted}
}

// Advance moves the run to next, refusing backward or skipping moves that
// the state machine does not allow.
func (r *Run) Advance(next State) error {
	for _, allowed := range transitions[r.State] {
		if allowed == next {
			r.State = next
			return nil
		}
	}
	return fmt.Errorf("illegal transition from %s to %s", r.State, next)
}
