package scheduler

import (
	"fmt"

	"twopc/stateSpace"
)

// The transitions of a system, as needed to follow a recorded path.
type Stepper[S any, A fmt.Stringer] interface {
	Actions(S) []A
	NextState(S, A) (S, bool)
}

// Follow the actions with the given ids from the initial state.
//
// Every action must be enabled in the state it is taken from.
// Returns the path followed, starting with the initial state.
// If an action can not be taken the path up to that point is returned together with
// ErrActionNotEnabled or ErrInapplicable.
func Replay[S any, A fmt.Stringer](m Stepper[S, A], init S, ids []string) ([]stateSpace.Step[S, A], error) {
	path := []stateSpace.Step[S, A]{{State: init}}
	current := init
	for i, id := range ids {
		a, ok := findAction(m.Actions(current), id)
		if !ok {
			return path, fmt.Errorf("step %v: %q: %w", i+1, id, ErrActionNotEnabled)
		}
		next, ok := m.NextState(current, a)
		if !ok {
			return path, fmt.Errorf("step %v: %q: %w", i+1, id, ErrInapplicable)
		}
		path = append(path, stateSpace.Step[S, A]{Action: a, State: next})
		current = next
	}
	return path, nil
}

func findAction[A fmt.Stringer](actions []A, id string) (A, bool) {
	for _, a := range actions {
		if a.String() == id {
			return a, true
		}
	}
	var zero A
	return zero, false
}
