package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownAction = errors.New("model: unknown action")

// The kind of an Action.
type ActionKind uint8

const (
	// Starts the transaction on the specified node.
	KindStart ActionKind = iota
	// The node asks the coordinator to participate in the distributed transaction.
	KindRequestJoin
	// The coordinator acknowledges the join request of the node.
	KindAckJoin
	// The node is asked to prepare the transaction.
	KindRequestPrepare
	// The node tells the coordinator that it has prepared the transaction.
	KindAckPrepare
	// A participant tells the coordinator that it failed to prepare.
	KindAckPrepareFail
	// Commits the transaction on the specified node.
	KindCommit
	// Rolls back the transaction on the specified node.
	KindRollback
	// Crashes the node.
	KindCrash
)

var kindNames = [...]string{
	KindStart:          "Start",
	KindRequestJoin:    "RequestJoin",
	KindAckJoin:        "AckJoin",
	KindRequestPrepare: "RequestPrepare",
	KindAckPrepare:     "AckPrepare",
	KindAckPrepareFail: "AckPrepareFail",
	KindCommit:         "Commit",
	KindRollback:       "Rollback",
	KindCrash:          "Crash",
}

func (k ActionKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// An Action is a step of the protocol.
//
// Node is the node id the action refers to. It is ignored for AckPrepareFail.
type Action struct {
	Kind ActionKind
	Node int
}

func Start(node int) Action          { return Action{Kind: KindStart, Node: node} }
func RequestJoin(node int) Action    { return Action{Kind: KindRequestJoin, Node: node} }
func AckJoin(node int) Action        { return Action{Kind: KindAckJoin, Node: node} }
func RequestPrepare(node int) Action { return Action{Kind: KindRequestPrepare, Node: node} }
func AckPrepare(node int) Action     { return Action{Kind: KindAckPrepare, Node: node} }
func AckPrepareFail() Action         { return Action{Kind: KindAckPrepareFail} }
func Commit(node int) Action         { return Action{Kind: KindCommit, Node: node} }
func Rollback(node int) Action       { return Action{Kind: KindRollback, Node: node} }
func Crash(node int) Action          { return Action{Kind: KindCrash, Node: node} }

// The id of the node whose state is changed by the action.
func (a Action) Target() int {
	switch a.Kind {
	case KindRequestJoin, KindAckPrepare, KindAckPrepareFail:
		return Coordinator
	}
	return a.Node
}

// A textual id that identifies the action. It can be parsed with ParseAction.
func (a Action) Id() string {
	if a.Kind == KindAckPrepareFail {
		return a.Kind.String()
	}
	return fmt.Sprintf("%v(%v)", a.Kind, a.Node)
}

func (a Action) String() string {
	return a.Id()
}

// Parse an action id as produced by Action.Id.
func ParseAction(id string) (Action, error) {
	id = strings.TrimSpace(id)
	if id == KindAckPrepareFail.String() {
		return AckPrepareFail(), nil
	}
	open := strings.IndexByte(id, '(')
	if open < 0 || !strings.HasSuffix(id, ")") {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, id)
	}
	node, err := strconv.Atoi(id[open+1 : len(id)-1])
	if err != nil {
		return Action{}, fmt.Errorf("%w: %q: %v", ErrUnknownAction, id, err)
	}
	name := id[:open]
	for kind, kindName := range kindNames {
		if kindName == name && ActionKind(kind) != KindAckPrepareFail {
			return Action{Kind: ActionKind(kind), Node: node}, nil
		}
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, id)
}
