package stateSpace

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

type counter int

func (c counter) Fingerprint() uint64 {
	return uint64(c)
}

func TestStateSpaceAdd(t *testing.T) {
	ss := New[counter, string]()
	root, added := ss.AddRoot(0)
	if !added {
		t.Fatalf("The initial state should be new")
	}
	one, _ := ss.Add(root, "inc", 1)
	two, _ := ss.Add(one, "inc", 2)
	ss.Add(root, "add 3", 3)

	if !root.IsRoot() {
		t.Fatalf("Initial state should be root node")
	}
	if two.IsRoot() {
		t.Fatalf("This should be a child node. IsRoot(): %v", two.IsRoot())
	}
	if ss.Len() != 4 {
		t.Fatalf("Added four states to the state space. Has length: %v", ss.Len())
	}
	if ss.MaxDepth() != 2 {
		t.Errorf("Expected max depth 2. Got: %v", ss.MaxDepth())
	}
	if len(ss.Children(root)) != 2 {
		t.Errorf("Added two children to the root. Got: %v", len(ss.Children(root)))
	}
	if two.Depth() != 2 || two.Parent() != one || two.Action() != "inc" {
		t.Errorf("Unexpected node. Got: depth %v, action %v", two.Depth(), two.Action())
	}
	if node, ok := ss.Get(3); !ok || node.State() != 3 {
		t.Errorf("State 3 should have been discovered")
	}
	if ss.Contains(4) {
		t.Errorf("State 4 has not been discovered")
	}
}

func TestStateSpaceKeepsFirstDiscovery(t *testing.T) {
	ss := New[counter, string]()
	root, _ := ss.AddRoot(0)
	one, _ := ss.Add(root, "inc", 1)
	ss.Add(one, "inc", 2)

	// Reaching 2 directly from the root does not change its parent.
	two, added := ss.Add(root, "add 2", 2)
	if added {
		t.Errorf("State 2 has already been discovered")
	}
	if two.Parent() != one || two.Action() != "inc" {
		t.Errorf("Expected the first discovery of the state. Got: parent %v, action %v", two.Parent().State(), two.Action())
	}
	if ss.Len() != 3 {
		t.Errorf("Duplicates should not be stored. Got length: %v", ss.Len())
	}
	if _, added := ss.AddRoot(0); added {
		t.Errorf("Initial state has already been discovered")
	}
	if len(ss.Roots()) != 1 {
		t.Errorf("Expected a single root. Got: %v", len(ss.Roots()))
	}
}

func TestPath(t *testing.T) {
	ss := New[counter, string]()
	root, _ := ss.AddRoot(0)
	one, _ := ss.Add(root, "inc", 1)
	three, _ := ss.Add(one, "add 2", 3)

	path := three.Path()
	expected := []Step[counter, string]{
		{Action: "", State: 0},
		{Action: "inc", State: 1},
		{Action: "add 2", State: 3},
	}
	if len(path) != len(expected) {
		t.Fatalf("Expected path of length %v. Got: %v", len(expected), path)
	}
	for i := range expected {
		if path[i] != expected[i] {
			t.Errorf("Unexpected step %v. Got: %v. Expected: %v", i, path[i], expected[i])
		}
	}
	if len(root.Path()) != 1 {
		t.Errorf("The path to an initial state contains only the state. Got: %v", root.Path())
	}
}

func TestConcurrentAdd(t *testing.T) {
	ss := New[counter, string]()
	root, _ := ss.AddRoot(0)

	wg := sync.WaitGroup{}
	newStates := make([]int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 1; j <= 100; j++ {
				if _, added := ss.Add(root, "set", counter(j)); added {
					newStates[worker]++
				}
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, n := range newStates {
		total += n
	}
	if total != 100 {
		t.Errorf("Every state should be reported as new exactly once. Got: %v", total)
	}
	if ss.Len() != 101 {
		t.Errorf("Expected 101 states. Got: %v", ss.Len())
	}
}

func TestExport(t *testing.T) {
	ss := New[counter, string]()
	root, _ := ss.AddRoot(0)
	ss.Add(root, "inc", 1)
	ss.Add(root, "dec", 255)

	buffer := bytes.Buffer{}
	ss.Export(&buffer)
	expected := "(\"inc 1\",\"dec ff\")\"init 0\";"
	if buffer.String() != expected {
		t.Errorf("Unexpected newick. Got: %v. Expected: %v", buffer.String(), expected)
	}

	buffer.Reset()
	ss.ExportDot(&buffer)
	dot := buffer.String()
	for _, line := range []string{
		"digraph statespace {",
		"  \"0\" [label=\"0\"];",
		"  \"0\" -> \"ff\" [label=\"dec\"];",
		"  \"ff\" [label=\"255\"];",
	} {
		if !strings.Contains(dot, line) {
			t.Errorf("Expected the dot export to contain %q. Got:\n%v", line, dot)
		}
	}
}
