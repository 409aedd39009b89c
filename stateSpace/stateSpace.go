// Package stateSpace stores the states discovered while exploring a model.
//
// Every state is stored once, keyed by its fingerprint, together with the
// state and action it was first reached from. The first-discovery links form a
// spanning tree of the explored graph, which is used to reconstruct the path
// to any state and can be exported in Newick or Graphviz format.
package stateSpace

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// A state that can be deduplicated by the StateSpace.
// Equal states must have equal fingerprints.
type Fingerprinter interface {
	Fingerprint() uint64
}

// A step of a path through the state space.
type Step[S, A any] struct {
	// The action that led to the state. The zero value for the first step of a path.
	Action A
	State  S
}

// A discovered state.
//
// All fields except the children are fixed when the node is created and can
// be read without holding the lock of the StateSpace.
type Node[S Fingerprinter, A any] struct {
	state       S
	fingerprint uint64
	parent      *Node[S, A]
	action      A
	depth       int

	children []*Node[S, A]
}

func (n *Node[S, A]) State() S {
	return n.state
}

func (n *Node[S, A]) Fingerprint() uint64 {
	return n.fingerprint
}

// The node this state was first reached from. nil for initial states.
func (n *Node[S, A]) Parent() *Node[S, A] {
	return n.parent
}

// The action this state was first reached by. The zero value for initial states.
func (n *Node[S, A]) Action() A {
	return n.action
}

// The number of actions on the path from an initial state.
func (n *Node[S, A]) Depth() int {
	return n.depth
}

func (n *Node[S, A]) IsRoot() bool {
	return n.parent == nil
}

// Returns the path from an initial state to this state.
func (n *Node[S, A]) Path() []Step[S, A] {
	path := make([]Step[S, A], n.depth+1)
	for current := n; current != nil; current = current.parent {
		path[current.depth] = Step[S, A]{Action: current.action, State: current.state}
	}
	return path
}

// The set of discovered states.
//
// Is safe to use from multiple goroutines.
type StateSpace[S Fingerprinter, A any] struct {
	sync.RWMutex

	nodes    map[uint64]*Node[S, A]
	roots    []*Node[S, A]
	maxDepth int
}

func New[S Fingerprinter, A any]() *StateSpace[S, A] {
	return &StateSpace[S, A]{
		nodes: make(map[uint64]*Node[S, A]),
	}
}

// Adds an initial state.
//
// Returns the node of the state and true if it had not been discovered before.
func (ss *StateSpace[S, A]) AddRoot(s S) (*Node[S, A], bool) {
	var zero A
	return ss.add(nil, zero, s)
}

// Adds a state reached from parent by the action.
//
// Returns the node of the state and true if it had not been discovered before.
// If the state is already known, its existing node is returned and the state space is unchanged.
func (ss *StateSpace[S, A]) Add(parent *Node[S, A], a A, s S) (*Node[S, A], bool) {
	return ss.add(parent, a, s)
}

func (ss *StateSpace[S, A]) add(parent *Node[S, A], a A, s S) (*Node[S, A], bool) {
	fp := s.Fingerprint()

	// Most successors have been seen before, so check with the read lock first.
	ss.RLock()
	existing, ok := ss.nodes[fp]
	ss.RUnlock()
	if ok {
		return existing, false
	}

	ss.Lock()
	defer ss.Unlock()
	if existing, ok := ss.nodes[fp]; ok {
		return existing, false
	}
	node := &Node[S, A]{
		state:       s,
		fingerprint: fp,
		parent:      parent,
		action:      a,
		children:    []*Node[S, A]{},
	}
	if parent == nil {
		ss.roots = append(ss.roots, node)
	} else {
		node.depth = parent.depth + 1
		parent.children = append(parent.children, node)
	}
	if node.depth > ss.maxDepth {
		ss.maxDepth = node.depth
	}
	ss.nodes[fp] = node
	return node, true
}

// Returns the node with the fingerprint.
func (ss *StateSpace[S, A]) Get(fp uint64) (*Node[S, A], bool) {
	ss.RLock()
	defer ss.RUnlock()
	node, ok := ss.nodes[fp]
	return node, ok
}

// Returns true if a state with the fingerprint has been discovered.
func (ss *StateSpace[S, A]) Contains(fp uint64) bool {
	_, ok := ss.Get(fp)
	return ok
}

// Returns the number of discovered states.
func (ss *StateSpace[S, A]) Len() int {
	ss.RLock()
	defer ss.RUnlock()
	return len(ss.nodes)
}

// Returns the largest depth of any discovered state.
func (ss *StateSpace[S, A]) MaxDepth() int {
	ss.RLock()
	defer ss.RUnlock()
	return ss.maxDepth
}

// Returns the initial states in the order they were added.
func (ss *StateSpace[S, A]) Roots() []*Node[S, A] {
	ss.RLock()
	defer ss.RUnlock()
	out := make([]*Node[S, A], len(ss.roots))
	copy(out, ss.roots)
	return out
}

// Returns the states first discovered from the node.
func (ss *StateSpace[S, A]) Children(n *Node[S, A]) []*Node[S, A] {
	ss.RLock()
	defer ss.RUnlock()
	out := make([]*Node[S, A], len(n.children))
	copy(out, n.children)
	return out
}

// Write the Newick representation of the discovery tree to the writer.
//
// Each node is labeled with the action that discovered it and its fingerprint.
// Several initial states are written as children of an unlabeled root.
func (ss *StateSpace[S, A]) Export(w io.Writer) {
	ss.RLock()
	defer ss.RUnlock()
	out := strings.Builder{}
	if len(ss.roots) == 1 {
		writeNewick(&out, ss.roots[0])
	} else {
		out.WriteString("(")
		for i, root := range ss.roots {
			if i > 0 {
				out.WriteString(",")
			}
			writeNewick(&out, root)
		}
		out.WriteString(")")
	}
	out.WriteString(";")
	fmt.Fprint(w, out.String())
}

func writeNewick[S Fingerprinter, A any](out *strings.Builder, n *Node[S, A]) {
	if len(n.children) > 0 {
		out.WriteString("(")
		for i, child := range n.children {
			if i > 0 {
				out.WriteString(",")
			}
			writeNewick(out, child)
		}
		out.WriteString(")")
	}
	out.WriteString(fmt.Sprintf("\"%v\"", label(n)))
}

// Write the discovery tree as a Graphviz digraph to the writer.
func (ss *StateSpace[S, A]) ExportDot(w io.Writer) {
	ss.RLock()
	defer ss.RUnlock()
	fmt.Fprintln(w, "digraph statespace {")
	var visit func(n *Node[S, A])
	visit = func(n *Node[S, A]) {
		fmt.Fprintf(w, "  \"%x\" [label=%q];\n", n.fingerprint, fmt.Sprint(n.state))
		for _, child := range n.children {
			fmt.Fprintf(w, "  \"%x\" -> \"%x\" [label=%q];\n", n.fingerprint, child.fingerprint, fmt.Sprint(child.action))
			visit(child)
		}
	}
	for _, root := range ss.roots {
		visit(root)
	}
	fmt.Fprintln(w, "}")
}

func label[S Fingerprinter, A any](n *Node[S, A]) string {
	if n.IsRoot() {
		return fmt.Sprintf("init %x", n.fingerprint)
	}
	return fmt.Sprintf("%v %x", n.action, n.fingerprint)
}
