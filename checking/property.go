// Package checking defines the properties a model checker evaluates on every
// state it visits.
package checking

// How the condition of a property is interpreted.
type Expectation uint8

const (
	// The condition must hold in every reachable state.
	// A state where it does not hold is a counterexample.
	ExpectAlways Expectation = iota
	// The condition must hold in at least one reachable state.
	// A state where it holds is an example.
	ExpectSometimes
	// The condition must hold in every terminal state, i.e. every state without successors.
	// A terminal state where it does not hold is a counterexample.
	ExpectEventually
)

func (e Expectation) String() string {
	switch e {
	case ExpectAlways:
		return "always"
	case ExpectSometimes:
		return "sometimes"
	case ExpectEventually:
		return "eventually"
	}
	return "unknown"
}

// Returns true if a discovery for this expectation means the property is violated.
func (e Expectation) DiscoveryIsFailure() bool {
	return e != ExpectSometimes
}

// A named condition over states of type S.
type Property[S any] struct {
	Expectation Expectation
	Name        string
	Condition   func(S) bool
}

// Create a property that must hold in every reachable state.
func Always[S any](name string, cond func(S) bool) Property[S] {
	return Property[S]{Expectation: ExpectAlways, Name: name, Condition: cond}
}

// Create a property that must hold in at least one reachable state.
func Sometimes[S any](name string, cond func(S) bool) Property[S] {
	return Property[S]{Expectation: ExpectSometimes, Name: name, Condition: cond}
}

// Create a property that must hold in every terminal state.
//
// Only states without successors are checked, so the property says nothing about runs that are cut short by a depth bound.
func Eventually[S any](name string, cond func(S) bool) Property[S] {
	return Property[S]{Expectation: ExpectEventually, Name: name, Condition: cond}
}

// Evaluate the property on a state.
//
// terminal is true if the state has no successors.
// Returns true if the state is a discovery for the property:
// a counterexample for Always and Eventually, an example for Sometimes.
func (p Property[S]) Discover(s S, terminal bool) bool {
	switch p.Expectation {
	case ExpectAlways:
		return !p.Condition(s)
	case ExpectSometimes:
		return p.Condition(s)
	case ExpectEventually:
		return terminal && !p.Condition(s)
	}
	return false
}

// Returns true if cond holds for all elements of states.
func ForAll[T any](states []T, cond func(T) bool) bool {
	for _, s := range states {
		if !cond(s) {
			return false
		}
	}
	return true
}
