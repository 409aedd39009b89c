package checking

import (
	"strings"
	"testing"

	"twopc/stateSpace"
)

type action string

func (a action) String() string {
	return string(a)
}

func TestDiscoveryExport(t *testing.T) {
	d := Discovery[int, action]{
		Property:    "small",
		Expectation: ExpectAlways,
		Path: []stateSpace.Step[int, action]{
			{State: 0},
			{Action: "inc", State: 1},
			{Action: "double", State: 2},
		},
	}
	ids := d.Export()
	if len(ids) != 2 || ids[0] != "inc" || ids[1] != "double" {
		t.Errorf("Expected the actions of the path. Got: %v", ids)
	}
	if d.State() != 2 {
		t.Errorf("Expected the last state of the path. Got: %v", d.State())
	}
	if !d.IsFailure() {
		t.Errorf("A discovery of an always property is a counterexample")
	}

	initial := Discovery[int, action]{Expectation: ExpectSometimes, Path: []stateSpace.Step[int, action]{{State: 0}}}
	if len(initial.Export()) != 0 {
		t.Errorf("A discovery in the initial state has no actions. Got: %v", initial.Export())
	}
	if initial.IsFailure() {
		t.Errorf("A discovery of a sometimes property is an example")
	}
}

func TestDiscoveryString(t *testing.T) {
	d := Discovery[int, action]{
		Property:    "small",
		Expectation: ExpectAlways,
		Path: []stateSpace.Step[int, action]{
			{State: 0},
			{Action: "inc", State: 1},
		},
	}
	out := d.String()
	if !strings.HasPrefix(out, "Counterexample for always property \"small\":\n") {
		t.Errorf("Unexpected header. Got: %v", out)
	}
	if !strings.Contains(out, "init") || !strings.Contains(out, "inc") {
		t.Errorf("Expected every step of the path. Got: %v", out)
	}
}
