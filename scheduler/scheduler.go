// Package scheduler decides the order in which a state space is explored.
package scheduler

import (
	"errors"
	"fmt"
)

// The order states are taken from the frontier.
type Strategy uint8

const (
	// Explore the most recently discovered state first.
	DepthFirst Strategy = iota
	// Explore states in the order they were discovered.
	BreadthFirst
	// Follow random paths from the initial states instead of exploring the state space exhaustively.
	RandomWalk
)

var strategyNames = [...]string{
	DepthFirst:   "dfs",
	BreadthFirst: "bfs",
	RandomWalk:   "random",
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return "unknown"
}

// Parse the name of a strategy as returned by Strategy.String.
func ParseStrategy(name string) (Strategy, error) {
	for s, strategyName := range strategyNames {
		if strategyName == name {
			return Strategy(s), nil
		}
	}
	return 0, fmt.Errorf("scheduler: unknown strategy %q", name)
}

var (
	ErrActionNotEnabled = errors.New("scheduler: action is not enabled")
	ErrInapplicable     = errors.New("scheduler: action is not applicable")
)
