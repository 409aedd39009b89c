package model

import "twopc/transaction"

// ACID returns true if the nodes agree on the outcome of the transaction.
//
// Every node that has decided must have decided the same way, and if the
// coordinator has committed, every registered participant must have either
// committed or prepared for commit.
func ACID(s System) bool {
	decided, commit := false, false
	for _, n := range s.nodes {
		state := n.tx.State()
		if !state.IsTerminal() {
			continue
		}
		if !decided {
			decided, commit = true, state == transaction.Committed
			continue
		}
		if (state == transaction.Committed) != commit {
			return false
		}
	}

	coordinator, ok := s.Node(Coordinator)
	if !ok || coordinator.tx.State() != transaction.Committed {
		return true
	}
	for _, p := range coordinator.tx.Participants() {
		participant, ok := s.Node(p)
		if !ok {
			return false
		}
		if state := participant.tx.State(); state != transaction.Prepared && state != transaction.Committed {
			return false
		}
	}
	return true
}
