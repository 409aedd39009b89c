// Package model describes a two-phase commit protocol as a finite state system.
//
// # The Algorithm
//
// Node 0 is the coordinator. A node joins the distributed transaction by
// asking the coordinator, which registers it as a participant and
// acknowledges the join. Once the coordinator decides to commit it prepares
// itself and asks every participant to prepare. If all participants report
// that they have prepared, the coordinator decides, and sends its decision to
// the participants. A participant that fails to prepare makes the coordinator
// roll back.
//
// The model offers every choice a node could make at once, including the
// adversarial ones: a coordinator may roll back after unanimous agreement, and
// a prepared participant may report either success or failure. A model checker
// explores all of them and verifies that the ACID property holds regardless.
package model

import (
	"fmt"

	"twopc/checking"
	"twopc/transaction"
)

// How a crash affects the state of a node.
type CrashMode uint8

const (
	// Volatile state is lost. The node is rebuilt from its log and every
	// transaction that has not prepared or decided is presumed aborted.
	CrashRecover CrashMode = iota
	// All state, including the log, is lost.
	CrashAmnesia
	// Nodes never crash.
	CrashNone
)

var crashModeNames = [...]string{
	CrashRecover: "recover",
	CrashAmnesia: "amnesia",
	CrashNone:    "none",
}

func (c CrashMode) String() string {
	if int(c) < len(crashModeNames) {
		return crashModeNames[c]
	}
	return "unknown"
}

// Parse the name of a crash mode as returned by CrashMode.String.
func ParseCrashMode(name string) (CrashMode, error) {
	for mode, modeName := range crashModeNames {
		if modeName == name {
			return CrashMode(mode), nil
		}
	}
	return 0, fmt.Errorf("model: unknown crash mode %q", name)
}

type Option interface{ modelOpt() }

type crashModeOption struct{ mode CrashMode }

func (crashModeOption) modelOpt() {}

// Configure how crashes are modeled.
//
// Default value is CrashRecover.
func WithCrashMode(mode CrashMode) Option {
	return crashModeOption{mode: mode}
}

// Model implements the state transitions of the protocol.
//
// A Model has no mutable state and can be used from multiple goroutines.
type Model struct {
	numNodes int
	crash    CrashMode
}

// Create a model of numNodes nodes. At least one node, the coordinator, is always present.
func New(numNodes int, opts ...Option) *Model {
	if numNodes < 1 {
		numNodes = 1
	}
	m := &Model{numNodes: numNodes, crash: CrashRecover}
	for _, opt := range opts {
		switch t := opt.(type) {
		case crashModeOption:
			m.crash = t.mode
		}
	}
	return m
}

func (m *Model) NumNodes() int {
	return m.numNodes
}

func (m *Model) CrashMode() CrashMode {
	return m.crash
}

// Returns the single initial configuration where every node is inactive.
func (m *Model) InitStates() []System {
	return []System{{nodes: make([]Node, m.numNodes)}}
}

// Returns the actions enabled in the system, node by node in id order.
func (m *Model) Actions(s System) []Action {
	actions := []Action{}
	for id, n := range s.nodes {
		actions = m.appendNodeActions(actions, id, n.tx)
	}
	return actions
}

func (m *Model) appendNodeActions(actions []Action, id int, tx transaction.Transaction) []Action {
	switch tx.State() {
	case transaction.Inactive:
		if IsCoordinator(id) {
			actions = append(actions, Start(id))
		} else {
			// Ask the coordinator to participate in the distributed transaction.
			actions = append(actions, RequestJoin(id))
		}
	case transaction.Active:
		if IsCoordinator(id) {
			// Acknowledge joins repeatedly.
			tx.ForEachParticipant(func(p int) {
				actions = append(actions, AckJoin(p))
			})
			// The coordinator decides when to start committing.
			actions = append(actions, RequestPrepare(id))
		}
		// A running transaction can be rolled back any time.
		actions = append(actions, Rollback(id))
	case transaction.Prepared:
		if IsCoordinator(id) {
			if tx.IsAllPrepared() {
				// Rolling back here emulates a coordinator voting against
				// the unanimous decision of the participants.
				actions = append(actions, Commit(id), Rollback(id))
			} else {
				// Ask again until every participant has answered.
				tx.ForEachParticipant(func(p int) {
					actions = append(actions, RequestPrepare(p))
				})
			}
		} else {
			// The vote of a participant can go either way.
			actions = append(actions, AckPrepare(id), AckPrepareFail())
		}
	case transaction.Committed:
		if IsCoordinator(id) {
			tx.ForEachParticipant(func(p int) {
				actions = append(actions, Commit(p))
			})
		}
	case transaction.RolledBack:
		if IsCoordinator(id) {
			tx.ForEachParticipant(func(p int) {
				actions = append(actions, Rollback(p))
			})
		}
	}

	if m.crash != CrashNone {
		// Any node can crash any time.
		actions = append(actions, Crash(id))
	}
	return actions
}

// Returns the system after applying the action.
//
// ok is false if the action is not applicable to the system, e.g. because it
// refers to a node that does not exist.
func (m *Model) NextState(s System, a Action) (next System, ok bool) {
	if _, ok := s.Node(a.Node); !ok && a.Kind != KindAckPrepareFail {
		return System{}, false
	}
	target := a.Target()
	n, ok := s.Node(target)
	if !ok {
		return System{}, false
	}

	if a.Kind == KindCrash {
		switch m.crash {
		case CrashAmnesia:
			return s.with(target, Node{}), true
		case CrashRecover:
			return s.with(target, recoverNode(target, n.log)), true
		}
		return System{}, false
	}

	tx, ok := apply(n.tx, a)
	if !ok {
		return System{}, false
	}
	if !tx.Equal(n.tx) {
		n.tx = tx
		// The log is only kept by nodes that recover from it.
		if m.crash == CrashRecover {
			n = n.logged(a)
		}
	}
	return s.with(target, n), true
}

// Applies the local effect of the action to the transaction of its target node.
//
// Returns false if the action is not applicable.
func apply(tx transaction.Transaction, a Action) (transaction.Transaction, bool) {
	switch a.Kind {
	case KindStart:
		if !tx.Start() {
			return tx, false
		}
	case KindRequestJoin:
		// Joins are only accepted until the coordinator begins voting.
		if IsCoordinator(a.Node) || (tx.State() != transaction.Inactive && tx.State() != transaction.Active) {
			return tx, false
		}
		tx.Start()
		tx.AddParticipant(a.Node)
	case KindAckJoin:
		tx.Start()
	case KindRequestPrepare:
		tx.Prepare()
	case KindAckPrepare:
		tx.ReportPrepared(a.Node)
	case KindAckPrepareFail:
		tx.Rollback()
	case KindCommit:
		tx.Commit()
	case KindRollback:
		tx.Rollback()
	default:
		return tx, false
	}
	return tx, true
}

// Rebuilds a crashed node from its log.
//
// The log is replayed through the same transitions that produced it, after
// which anything that has not been prepared by a participant or decided is
// rolled back. Replaying an empty log yields an inactive node.
func recoverNode(id int, log []Action) Node {
	n := Node{log: log}
	for _, a := range log {
		n.tx, _ = apply(n.tx, a)
	}

	state := n.tx.State()
	if state == transaction.Active || (state == transaction.Prepared && IsCoordinator(id)) {
		n.tx.Rollback()
		n = n.logged(Rollback(id))
	}
	return n
}

// Returns the properties that must hold for the model.
func (m *Model) Properties() []checking.Property[System] {
	return []checking.Property[System]{
		checking.Always("ACID", ACID),
	}
}
