package checker

import (
	"encoding/json"
	"fmt"
	"io"

	"twopc/scheduler"
	"twopc/stateSpace"
)

// Write the action ids of a path as a JSON array.
func WriteTrace(w io.Writer, ids []string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ids); err != nil {
		return fmt.Errorf("checker: writing trace: %w", err)
	}
	return nil
}

// Read a trace written by WriteTrace.
func ReadTrace(r io.Reader) ([]string, error) {
	ids := []string{}
	if err := json.NewDecoder(r).Decode(&ids); err != nil {
		return nil, fmt.Errorf("checker: reading trace: %w", err)
	}
	return ids, nil
}

// Follow the trace from the initial states of the model.
//
// Every initial state is tried in order. Returns the path of the first one the
// whole trace can be followed from, or the error of the last one.
func Replay[S stateSpace.Fingerprinter, A fmt.Stringer](m Model[S, A], ids []string) ([]stateSpace.Step[S, A], error) {
	inits := m.InitStates()
	if len(inits) == 0 {
		return nil, ErrNoInitialStates
	}
	var (
		path []stateSpace.Step[S, A]
		err  error
	)
	for _, init := range inits {
		path, err = scheduler.Replay[S, A](m, init, ids)
		if err == nil {
			return path, nil
		}
	}
	return path, err
}
