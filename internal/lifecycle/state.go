package lifecycle

import "fmt"

// State is a provisioning state.
type State string

const (
	StateRequested State = "Requested"
	StateValidated State = "Validated"
	StateReused    State = "Reused"
	StateBuilding  State = "Building"
	StateBuilt     State = "Built"
	StateRunning   State = "Running"
	StateCommitted State = "Committed"
	StateRejected  State = "Rejected"
	StateFailed    State = "Failed"
)

var transitions = map[State][]State{
	StateRequested: {StateValidated},
	StateValidated: {StateReused, StateBuilding},
	StateBuilding:  {StateBuilt},
	StateBuilt:     {StateRunning},
	StateRunning:   {StateCommitted},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateRejected || next == StateFailed {
		return true
	}
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// advance moves the result to next and records it in the trace.
func (r *Result) advance(next State) {
	if !r.State.CanTransition(next) {
		panic(fmt.Sprintf("lifecycle: illegal transition %s -> %s", r.State, next))
	}
	r.State = next
	r.Trace = append(r.Trace, next)
}
