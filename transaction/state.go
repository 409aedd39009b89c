package transaction

// The state of a transaction on a single node.
type State uint8

const (
	// The transaction has not started.
	Inactive State = iota
	// The transaction is running.
	Active
	// The transaction is prepared for commit.
	Prepared
	// The transaction is committed.
	Committed
	// The transaction is rolled back.
	RolledBack
)

var stateNames = [...]string{
	Inactive:   "Inactive",
	Active:     "Active",
	Prepared:   "Prepared",
	Committed:  "Committed",
	RolledBack: "RolledBack",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Returns true if no protocol driven transition leaves the state.
func (s State) IsTerminal() bool {
	return s == Committed || s == RolledBack
}
