package checker

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"twopc/checking"
	"twopc/scheduler"
	"twopc/stateSpace"
)

// The result of checking a single property.
type PropertyResult[S any, A fmt.Stringer] struct {
	Name        string
	Expectation checking.Expectation
	// The first discovery of the property. nil if there is none.
	Discovery *checking.Discovery[S, A]
}

// Returns true if the property is not known to be violated.
//
// A Sometimes property without an example only fails if the whole state space has been explored.
func (pr PropertyResult[S, A]) Holds(complete bool) bool {
	if pr.Discovery != nil {
		return !pr.Discovery.IsFailure()
	}
	return pr.Expectation != checking.ExpectSometimes || !complete
}

func (pr PropertyResult[S, A]) verdict(complete bool) string {
	switch {
	case pr.Discovery != nil && pr.Discovery.IsFailure():
		return "violated"
	case pr.Discovery != nil:
		return "example found"
	case pr.Expectation == checking.ExpectSometimes && complete:
		return "no example exists"
	case pr.Expectation == checking.ExpectSometimes:
		return "no example found"
	case complete:
		return "holds"
	}
	return "no violation found"
}

// The result of a checker run. Implements checking.CheckerResponse.
type Report[S stateSpace.Fingerprinter, A fmt.Stringer] struct {
	RunID    string
	Strategy scheduler.Strategy
	// The seed of the random walks. Only set for scheduler.RandomWalk.
	Seed int64
	// The number of random walks completed. Only set for scheduler.RandomWalk.
	Runs int

	// Number of states computed, including states computed more than once.
	States       int64
	UniqueStates int
	MaxDepth     int
	Duration     time.Duration

	// True if every reachable state has been checked.
	Complete bool
	// Why the run stopped before the state space was explored. nil if it was not stopped by a bound.
	Stopped error

	// One result per property, in the order the properties are checked.
	Properties []PropertyResult[S, A]
}

// Returns true if no property is violated.
func (r *Report[S, A]) Passed() bool {
	for _, p := range r.Properties {
		if !p.Holds(r.Complete) {
			return false
		}
	}
	return true
}

// Returns the discovery of the named property.
func (r *Report[S, A]) Discovery(property string) (checking.Discovery[S, A], bool) {
	for _, p := range r.Properties {
		if p.Name == property && p.Discovery != nil {
			return *p.Discovery, true
		}
	}
	return checking.Discovery[S, A]{}, false
}

// Create a response.
//
// Returns true if all properties hold, and a description of the run including the path to every discovery.
func (r *Report[S, A]) Response() (bool, string) {
	var buffer bytes.Buffer
	wrt := tabwriter.NewWriter(&buffer, 4, 4, 1, ' ', 0)
	fmt.Fprintf(wrt, "Run:\t%v (%v)\n", r.RunID, r.Strategy)
	if r.Strategy == scheduler.RandomWalk {
		fmt.Fprintf(wrt, "Walks:\t%v (seed %v)\n", r.Runs, r.Seed)
	}
	fmt.Fprintf(wrt, "States:\t%v\n", r.States)
	fmt.Fprintf(wrt, "Unique states:\t%v\n", r.UniqueStates)
	fmt.Fprintf(wrt, "Max depth:\t%v\n", r.MaxDepth)
	fmt.Fprintf(wrt, "Duration:\t%v\n", r.Duration)
	fmt.Fprintf(wrt, "Complete:\t%v\n", r.Complete)
	if r.Stopped != nil {
		fmt.Fprintf(wrt, "Stopped:\t%v\n", r.Stopped)
	}
	for _, p := range r.Properties {
		fmt.Fprintf(wrt, "Property %q (%v):\t%v\n", p.Name, p.Expectation, p.verdict(r.Complete))
	}
	wrt.Flush()

	for _, p := range r.Properties {
		if p.Discovery != nil {
			buffer.WriteString("\n")
			buffer.WriteString(p.Discovery.String())
		}
	}
	return r.Passed(), buffer.String()
}

// Export the path to the first violated property as a slice of action ids.
//
// Returns an empty slice if no property is violated.
func (r *Report[S, A]) Export() []string {
	for _, p := range r.Properties {
		if p.Discovery != nil && p.Discovery.IsFailure() {
			return p.Discovery.Export()
		}
	}
	return []string{}
}
