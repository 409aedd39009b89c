package transaction

import (
	"testing"
	"testing/quick"

	"golang.org/x/exp/slices"
)

func TestStart(t *testing.T) {
	var tx Transaction
	if tx.State() != Inactive {
		t.Errorf("Expected a new transaction to be inactive. Got %v", tx.State())
	}
	if !tx.Start() {
		t.Errorf("Expected the first call to Start to start the transaction")
	}
	if tx.Start() {
		t.Errorf("Expected repeated calls to Start to be no-ops")
	}
	if tx.State() != Active {
		t.Errorf("Expected the transaction to be active. Got %v", tx.State())
	}
}

var transitionTests = []struct {
	name     string
	ops      []func(*Transaction)
	expected State
}{
	{"prepare inactive", []func(*Transaction){prepare}, Inactive},
	{"prepare active", []func(*Transaction){start, prepare}, Prepared},
	{"prepare twice", []func(*Transaction){start, prepare, prepare}, Prepared},
	{"commit active", []func(*Transaction){start, commit}, Active},
	{"commit prepared", []func(*Transaction){start, prepare, commit}, Committed},
	{"rollback inactive", []func(*Transaction){rollback}, RolledBack},
	{"rollback active", []func(*Transaction){start, rollback}, RolledBack},
	{"rollback prepared", []func(*Transaction){start, prepare, rollback}, RolledBack},
	{"rollback committed", []func(*Transaction){start, prepare, commit, rollback}, Committed},
	{"commit rolled back", []func(*Transaction){start, prepare, rollback, commit}, RolledBack},
	{"start rolled back", []func(*Transaction){rollback, start}, RolledBack},
	{"prepare committed", []func(*Transaction){start, prepare, commit, prepare}, Committed},
}

func TestTransitions(t *testing.T) {
	for _, test := range transitionTests {
		var tx Transaction
		for _, op := range test.ops {
			op(&tx)
		}
		if tx.State() != test.expected {
			t.Errorf("Test %v: Unexpected state. Got %v. Expected %v", test.name, tx.State(), test.expected)
		}
	}
}

func TestPrepareReturnValue(t *testing.T) {
	var tx Transaction
	if tx.Prepare() {
		t.Errorf("Did not expect an inactive transaction to be prepared")
	}
	tx.Start()
	if !tx.Prepare() {
		t.Errorf("Expected the first call to Prepare to prepare the transaction")
	}
	if tx.Prepare() {
		t.Errorf("Expected repeated calls to Prepare to be no-ops")
	}
}

func TestAddParticipant(t *testing.T) {
	var tx Transaction
	if !tx.AddParticipant(2) {
		t.Errorf("Expected participant 2 to be newly added")
	}
	if !tx.AddParticipant(1) {
		t.Errorf("Expected participant 1 to be newly added")
	}
	if tx.AddParticipant(2) {
		t.Errorf("Did not expect participant 2 to be added twice")
	}
	if tx.NumParticipants() != 2 {
		t.Errorf("Unexpected number of participants. Got %v", tx.NumParticipants())
	}

	visited := []int{}
	tx.ForEachParticipant(func(id int) { visited = append(visited, id) })
	if !slices.Equal(visited, []int{1, 2}) {
		t.Errorf("Expected participants to be visited in ascending order. Got %v", visited)
	}
}

func TestIsAllPrepared(t *testing.T) {
	var tx Transaction
	if !tx.IsAllPrepared() {
		t.Errorf("Expected an empty registry to be vacuously all prepared")
	}

	tx.AddParticipant(1)
	tx.AddParticipant(2)
	if tx.IsAllPrepared() {
		t.Errorf("Did not expect unprepared participants to be all prepared")
	}

	tx.Start()
	tx.Prepare()
	tx.ReportPrepared(1)
	if tx.IsAllPrepared() {
		t.Errorf("Did not expect a partially prepared registry to be all prepared")
	}
	tx.ReportPrepared(2)
	if !tx.IsAllPrepared() {
		t.Errorf("Expected the registry to be all prepared")
	}
}

func TestReportPrepared(t *testing.T) {
	var tx Transaction
	tx.AddParticipant(1)
	tx.Start()
	if tx.ReportPrepared(1) {
		t.Errorf("Did not expect a report to be accepted while the transaction is active")
	}

	tx.Prepare()
	if tx.ReportPrepared(3) {
		t.Errorf("Did not expect a report from an unregistered participant to be accepted")
	}
	if _, registered := tx.IsPrepared(3); registered {
		t.Errorf("Did not expect an unregistered participant to be registered by a report")
	}
	if !tx.ReportPrepared(1) {
		t.Errorf("Expected the report of participant 1 to be accepted")
	}
	if tx.ReportPrepared(1) {
		t.Errorf("Did not expect the same report to be accepted twice")
	}
	if prepared, registered := tx.IsPrepared(1); !prepared || !registered {
		t.Errorf("Expected participant 1 to be registered and prepared. Got %v, %v", prepared, registered)
	}

	tx.Commit()
	if tx.ReportPrepared(1) {
		t.Errorf("Did not expect a report to be accepted after commit")
	}
}

func TestCopyOnWrite(t *testing.T) {
	var original Transaction
	original.AddParticipant(1)
	original.Start()
	original.Prepare()

	cp := original
	cp.AddParticipant(2)
	cp.ReportPrepared(1)
	cp.Commit()

	if original.State() != Prepared {
		t.Errorf("Expected the original to stay prepared. Got %v", original.State())
	}
	if original.NumParticipants() != 1 {
		t.Errorf("Expected the original registry to be unchanged. Got %v", original)
	}
	if prepared, _ := original.IsPrepared(1); prepared {
		t.Errorf("Expected the original flag of participant 1 to be unchanged")
	}
	if original.Equal(cp) {
		t.Errorf("Did not expect the copy to be equal to the original after mutation")
	}
}

func TestEqualAndEncoding(t *testing.T) {
	var a, b Transaction
	a.AddParticipant(1)
	a.AddParticipant(2)
	b.AddParticipant(2)
	b.AddParticipant(1)
	if !a.Equal(b) {
		t.Errorf("Expected registries built in different orders to be equal")
	}
	if string(a.AppendBinary(nil)) != string(b.AppendBinary(nil)) {
		t.Errorf("Expected equal transactions to have equal encodings")
	}

	var empty Transaction
	empty.AddParticipant(1)
	b.Start()
	if a.Equal(b) || string(a.AppendBinary(nil)) == string(b.AppendBinary(nil)) {
		t.Errorf("Expected transactions in different states to differ")
	}
	if (Transaction{}).Equal(empty) {
		t.Errorf("Expected a transaction with participants to differ from the zero value")
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []State{Inactive, Active, Prepared, Committed, RolledBack} {
		expected := s == Committed || s == RolledBack
		if s.IsTerminal() != expected {
			t.Errorf("Unexpected IsTerminal for %v. Got %v", s, s.IsTerminal())
		}
	}
}

// Applies a random sequence of operations and checks that a decided
// transaction never changes its decision and never leaves the terminal state.
func TestTerminalStability(t *testing.T) {
	ops := []func(*Transaction){start, prepare, commit, rollback, addOne, reportOne}
	check := func(seq []uint8) bool {
		var tx Transaction
		var decided State
		for _, code := range seq {
			ops[int(code)%len(ops)](&tx)
			if decided.IsTerminal() && tx.State() != decided {
				return false
			}
			if tx.State().IsTerminal() {
				decided = tx.State()
			}
		}
		return true
	}
	if err := quick.Check(check, &quick.Config{MaxCount: 2000}); err != nil {
		t.Errorf("Terminal state was not stable: %v", err)
	}
}

// Registry entries are never removed and flags never revert.
func TestRegistryMonotonic(t *testing.T) {
	check := func(seq []uint8) bool {
		var tx Transaction
		for _, code := range seq {
			before := tx
			id := int(code>>3) % 4
			switch code % 4 {
			case 0:
				tx.AddParticipant(id)
			case 1:
				tx.ReportPrepared(id)
			case 2:
				tx.Start()
			default:
				tx.Prepare()
			}
			if tx.NumParticipants() < before.NumParticipants() {
				return false
			}
			for _, p := range before.Participants() {
				was, _ := before.IsPrepared(p)
				is, registered := tx.IsPrepared(p)
				if !registered || (was && !is) {
					return false
				}
			}
		}
		return true
	}
	if err := quick.Check(check, &quick.Config{MaxCount: 2000}); err != nil {
		t.Errorf("Registry was not monotonic: %v", err)
	}
}

func start(tx *Transaction)     { tx.Start() }
func prepare(tx *Transaction)   { tx.Prepare() }
func commit(tx *Transaction)    { tx.Commit() }
func rollback(tx *Transaction)  { tx.Rollback() }
func addOne(tx *Transaction)    { tx.AddParticipant(1) }
func reportOne(tx *Transaction) { tx.ReportPrepared(1) }
