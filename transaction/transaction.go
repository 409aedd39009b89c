// Package transaction implements the life cycle of the single transaction that
// runs on a node, together with the participant bookkeeping of a coordinator.
//
// A Transaction is a value. The participant registry is copied before it is
// written, so a copy of a Transaction can be mutated without affecting the
// value it was copied from. This lets a model checker keep any number of
// snapshots around without aliasing.
package transaction

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Transaction represents a database transaction on one node.
//
// The zero value is an inactive transaction with no participants.
type Transaction struct {
	state State

	// Node id -> prepared flag.
	// Only meaningful on the coordinator. Entries are never removed.
	participants map[int]bool
}

// Returns the state of the transaction.
func (t Transaction) State() State {
	return t.state
}

// Starts the transaction.
//
// Returns true if the transaction was started by this call.
func (t *Transaction) Start() bool {
	if t.state != Inactive {
		return false
	}
	t.state = Active
	return true
}

// Adds a participant to the transaction.
//
// Returns true if the participant was newly added.
func (t *Transaction) AddParticipant(id int) bool {
	if _, ok := t.participants[id]; ok {
		return false
	}
	t.participants = t.cloneParticipants()
	t.participants[id] = false
	return true
}

// Calls visit with the id of each participant in ascending order.
func (t Transaction) ForEachParticipant(visit func(id int)) {
	for _, id := range t.Participants() {
		visit(id)
	}
}

// Returns the ids of the participants in ascending order.
func (t Transaction) Participants() []int {
	ids := maps.Keys(t.participants)
	slices.Sort(ids)
	return ids
}

// Returns the number of registered participants.
func (t Transaction) NumParticipants() int {
	return len(t.participants)
}

// Reports whether the participant has prepared and whether it is registered at all.
func (t Transaction) IsPrepared(id int) (prepared, registered bool) {
	prepared, registered = t.participants[id]
	return prepared, registered
}

// Returns true if no registered participant is still unprepared.
//
// An empty registry is vacuously all prepared.
func (t Transaction) IsAllPrepared() bool {
	for _, prepared := range t.participants {
		if !prepared {
			return false
		}
	}
	return true
}

// Prepares the transaction for commit.
//
// Returns true if the transaction was prepared by this call.
func (t *Transaction) Prepare() bool {
	if t.state != Active {
		return false
	}
	t.state = Prepared
	return true
}

// Records that the participant has prepared the transaction.
//
// Only accepted while the transaction itself is prepared.
// Returns true if the flag of the participant changed.
func (t *Transaction) ReportPrepared(id int) bool {
	if t.state != Prepared {
		return false
	}
	prepared, ok := t.participants[id]
	if !ok || prepared {
		return false
	}
	t.participants = t.cloneParticipants()
	t.participants[id] = true
	return true
}

// Commits a prepared transaction. Has no effect in any other state.
func (t *Transaction) Commit() {
	if t.state == Prepared {
		t.state = Committed
	}
}

// Rolls back the transaction unless it has already reached a terminal state.
func (t *Transaction) Rollback() {
	if !t.state.IsTerminal() {
		t.state = RolledBack
	}
}

// Returns true if both transactions have the same state and registry.
func (t Transaction) Equal(other Transaction) bool {
	if t.state != other.state {
		return false
	}
	return maps.Equal(t.participants, other.participants)
}

// Appends a canonical encoding of the transaction to b.
//
// Two transactions have the same encoding iff they are Equal.
func (t Transaction) AppendBinary(b []byte) []byte {
	b = append(b, byte(t.state))
	b = binary.AppendUvarint(b, uint64(len(t.participants)))
	for _, id := range t.Participants() {
		b = binary.AppendVarint(b, int64(id))
		if t.participants[id] {
			b = append(b, 1)
		} else {
			b = append(b, 0)
		}
	}
	return b
}

func (t Transaction) String() string {
	if len(t.participants) == 0 {
		return t.state.String()
	}
	var out strings.Builder
	out.WriteString(t.state.String())
	out.WriteString(" {")
	for i, id := range t.Participants() {
		if i > 0 {
			out.WriteString(", ")
		}
		fmt.Fprintf(&out, "%v:%v", id, t.participants[id])
	}
	out.WriteString("}")
	return out.String()
}

func (t Transaction) cloneParticipants() map[int]bool {
	if t.participants == nil {
		return make(map[int]bool, 1)
	}
	return maps.Clone(t.participants)
}
