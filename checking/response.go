package checking

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"twopc/stateSpace"
)

// CheckerResponse is a response returned by a model checker
//
// Contains the result of checking the system.
type CheckerResponse interface {
	// Create a response.
	//
	// Returns a boolean that is true if all properties hold, false otherwise.
	// Returns a string describing the response.
	// This includes the property that is violated and the path which caused it to be violated.
	Response() (bool, string)

	// Export the path which caused a property to be violated
	//
	// If a property was violated it returns the ids of the actions on the path, in order.
	// Otherwise it returns an empty slice.
	Export() []string
}

// A state found by evaluating a property, and the path that reaches it.
//
// For Always and Eventually properties the discovery is a counterexample.
// For Sometimes properties it is an example.
type Discovery[S any, A fmt.Stringer] struct {
	Property    string
	Expectation Expectation
	Path        []stateSpace.Step[S, A]
}

// Returns true if the discovery means the property is violated.
func (d Discovery[S, A]) IsFailure() bool {
	return d.Expectation.DiscoveryIsFailure()
}

// The discovered state.
func (d Discovery[S, A]) State() S {
	var s S
	if len(d.Path) > 0 {
		s = d.Path[len(d.Path)-1].State
	}
	return s
}

// Export the ids of the actions leading to the discovered state.
//
// The result can be replayed from the initial state of the path.
func (d Discovery[S, A]) Export() []string {
	ids := []string{}
	if len(d.Path) < 2 {
		return ids
	}
	for _, step := range d.Path[1:] {
		ids = append(ids, step.Action.String())
	}
	return ids
}

func (d Discovery[S, A]) String() string {
	kind := "Example"
	if d.IsFailure() {
		kind = "Counterexample"
	}
	var buffer bytes.Buffer
	wrt := tabwriter.NewWriter(&buffer, 4, 4, 1, ' ', 0)
	fmt.Fprintf(&buffer, "%v for %v property %q:\n", kind, d.Expectation, d.Property)
	for i, step := range d.Path {
		if i == 0 {
			fmt.Fprintf(wrt, "   \tinit\t%v\n", step.State)
			continue
		}
		fmt.Fprintf(wrt, "-> \t%v\t%v\n", step.Action, step.State)
	}
	wrt.Flush()
	return buffer.String()
}
