package model

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"

	"golang.org/x/exp/slices"

	"twopc/transaction"
)

// The id of the fixed transaction coordinator.
const Coordinator = 0

// Returns true if the node is the transaction coordinator.
func IsCoordinator(id int) bool {
	return id == Coordinator
}

// The state of a single node.
type Node struct {
	// The only transaction on the node.
	tx transaction.Transaction

	// The actions that changed the transaction, in order.
	// Only written and read when crashed nodes recover. Empty in other crash modes.
	log []Action
}

// Create a node with the given transaction and log. The log is copied.
func NewNode(tx transaction.Transaction, log ...Action) Node {
	return Node{tx: tx, log: slices.Clone(log)}
}

func (n Node) Transaction() transaction.Transaction {
	return n.tx
}

// Returns a copy of the log of the node.
func (n Node) Log() []Action {
	return slices.Clone(n.log)
}

func (n Node) Equal(other Node) bool {
	return n.tx.Equal(other.tx) && slices.Equal(n.log, other.log)
}

func (n Node) String() string {
	return n.tx.String()
}

// Returns a node with the action appended to its log.
// The log of the receiver is never written.
func (n Node) logged(a Action) Node {
	n.log = append(slices.Clip(n.log), a)
	return n
}

func (n Node) appendBinary(b []byte) []byte {
	b = n.tx.AppendBinary(b)
	b = binary.AppendUvarint(b, uint64(len(n.log)))
	for _, a := range n.log {
		b = append(b, byte(a.Kind))
		b = binary.AppendVarint(b, int64(a.Node))
	}
	return b
}

// System is the global configuration: the state of every node, indexed by node id.
//
// System values are immutable. Transitions return a new System that shares
// unchanged nodes with its predecessor.
type System struct {
	nodes []Node
}

// Create a system from the given nodes. Node i gets id i.
func NewSystem(nodes ...Node) System {
	return System{nodes: slices.Clone(nodes)}
}

// The number of nodes in the system.
func (s System) Len() int {
	return len(s.nodes)
}

// Returns the node with the provided id. ok is false if there is no such node.
func (s System) Node(id int) (n Node, ok bool) {
	if id < 0 || id >= len(s.nodes) {
		return Node{}, false
	}
	return s.nodes[id], true
}

// Returns a copy of all nodes in id order.
func (s System) Nodes() []Node {
	return slices.Clone(s.nodes)
}

// Returns the state of the transaction on the node, or Inactive if there is no such node.
func (s System) State(id int) transaction.State {
	n, _ := s.Node(id)
	return n.tx.State()
}

func (s System) Equal(other System) bool {
	return slices.EqualFunc(s.nodes, other.nodes, Node.Equal)
}

// A 64 bit FNV-1a hash of the canonical encoding of the system.
//
// Equal systems have equal fingerprints.
func (s System) Fingerprint() uint64 {
	h := fnv.New64a()
	h.Write(s.AppendBinary(nil))
	return h.Sum64()
}

// Appends the canonical encoding of the system to b.
func (s System) AppendBinary(b []byte) []byte {
	b = binary.AppendUvarint(b, uint64(len(s.nodes)))
	for _, n := range s.nodes {
		b = n.appendBinary(b)
	}
	return b
}

func (s System) String() string {
	var out strings.Builder
	out.WriteString("[")
	for id, n := range s.nodes {
		if id > 0 {
			out.WriteString(" | ")
		}
		fmt.Fprintf(&out, "%v: %v", id, n)
	}
	out.WriteString("]")
	return out.String()
}

// Returns a new system where the node with the provided id is replaced.
func (s System) with(id int, n Node) System {
	nodes := slices.Clone(s.nodes)
	nodes[id] = n
	return System{nodes: nodes}
}
