// Package checker explores the state space of a model and checks its properties.
//
// The state space is explored by a pool of workers sharing a frontier of
// unexplored states and a store of discovered states. Every discovered state
// is checked against the properties of the model. A run ends when the state
// space has been explored, a bound is reached, a property is violated or the
// context is canceled.
package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"twopc/checking"
	"twopc/config"
	"twopc/metrics"
	"twopc/scheduler"
	"twopc/stateSpace"
)

// The operations the checker uses to explore a model.
type Model[S stateSpace.Fingerprinter, A fmt.Stringer] interface {
	// The states the system can start in.
	InitStates() []S
	// The actions that can be taken in the state.
	Actions(S) []A
	// The state after taking the action. false if the action is not applicable to the state.
	NextState(S, A) (S, bool)
	// The properties checked for every discovered state.
	Properties() []checking.Property[S]
}

var (
	ErrNoInitialStates = errors.New("checker: the model has no initial states")
	ErrStateLimit      = errors.New("checker: state limit reached")
)

// Checks the properties of a model.
//
// A Checker can be used for several runs, but only one run at a time.
type Checker[S stateSpace.Fingerprinter, A fmt.Stringer] struct {
	model Model[S, A]

	strategy        scheduler.Strategy
	maxDepth        int
	maxStates       int
	maxRuns         int
	workers         int
	seed            int64
	properties      []checking.Property[S]
	logger          *slog.Logger
	metrics         *metrics.CheckerMetrics
	runID           string
	progressEvery   int
	stopOnViolation bool
	export          []io.Writer

	current atomic.Pointer[run[S, A]]
}

// Create a checker for the model.
//
// See the Options for a full overview of possible options.
// Default values will be used if no value is provided.
func New[S stateSpace.Fingerprinter, A fmt.Stringer](m Model[S, A], opts ...Option) *Checker[S, A] {
	c := &Checker[S, A]{
		model: m,

		strategy: scheduler.DepthFirst,
		maxRuns:  10000,
		// Will not change GOMAXPROCS but only return the current value
		workers:         runtime.GOMAXPROCS(0),
		seed:            time.Now().UnixNano(),
		properties:      slices.Clone(m.Properties()),
		logger:          slog.Default(),
		progressEvery:   100000,
		stopOnViolation: true,
	}

	for _, opt := range opts {
		switch t := opt.(type) {
		case config.StrategyOption:
			c.strategy = t.Strategy
		case config.MaxDepthOption:
			c.maxDepth = t.MaxDepth
		case config.MaxStatesOption:
			c.maxStates = t.MaxStates
		case config.MaxRunsOption:
			c.maxRuns = t.MaxRuns
		case config.WorkersOption:
			c.workers = t.N
		case config.SeedOption:
			c.seed = t.Seed
		case config.PropertiesOption[S]:
			c.properties = append(c.properties, t.Properties...)
		case config.LoggerOption:
			c.logger = t.Logger
		case config.MetricsOption:
			c.metrics = t.Metrics
		case config.RunIDOption:
			c.runID = t.ID
		case config.ProgressOption:
			c.progressEvery = t.Every
		case config.StopOnViolationOption:
			c.stopOnViolation = t.Stop
		case config.ExportOption:
			c.export = append(c.export, t.W)
		}
	}
	if c.workers < 1 {
		c.workers = 1
	}
	if c.strategy == scheduler.RandomWalk && c.maxDepth <= 0 {
		c.maxDepth = 100
	}
	return c
}

// The properties checked by the checker, in the order they are reported.
func (c *Checker[S, A]) Properties() []checking.Property[S] {
	return slices.Clone(c.properties)
}

// Run the checker until the state space is explored or the run is stopped.
//
// Returns ErrNoInitialStates if the model has no initial states.
// If the context is canceled the partial report is returned together with the context error.
// A violated property is not an error. It is reported by the Report.
func (c *Checker[S, A]) Run(ctx context.Context) (*Report[S, A], error) {
	inits := c.model.InitStates()
	if len(inits) == 0 {
		return nil, ErrNoInitialStates
	}

	id := c.runID
	if id == "" {
		id = uuid.NewString()
	}
	r := newRun(ctx, c, id)
	c.current.Store(r)

	r.logger.Info("checker started", "strategy", c.strategy, "workers", c.workers, "properties", len(c.properties))
	c.metrics.RunStarted()
	start := time.Now()

	if c.strategy == scheduler.RandomWalk {
		r.walkAll(inits)
	} else {
		r.searchAll(inits)
	}
	r.finished.Store(true)

	report := r.report(time.Since(start))
	for _, w := range c.export {
		r.space.Export(w)
	}

	result := "passed"
	if ctx.Err() != nil {
		result = "canceled"
	} else if !report.Passed() {
		result = "failed"
	}
	c.metrics.RunFinished(result, report.Duration)
	r.logger.Info("checker finished",
		"result", result,
		"states", report.States,
		"unique", report.UniqueStates,
		"depth", report.MaxDepth,
		"duration", report.Duration,
	)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("checker: run %v: %w", id, err)
	}
	return report, nil
}

// The progress of the latest run.
type Status struct {
	RunID        string            `json:"run"`
	Running      bool              `json:"running"`
	States       int64             `json:"states"`
	UniqueStates int               `json:"unique"`
	MaxDepth     int               `json:"depth"`
	Discoveries  []DiscoveryStatus `json:"discoveries"`
}

type DiscoveryStatus struct {
	Property    string   `json:"property"`
	Expectation string   `json:"expectation"`
	Failure     bool     `json:"failure"`
	Fingerprint uint64   `json:"fingerprint,string"`
	Path        []string `json:"path"`
}

// Returns the progress of the latest run. The zero Status if no run has been started.
//
// Is safe to call while the checker is running.
func (c *Checker[S, A]) Status() Status {
	r := c.current.Load()
	if r == nil {
		return Status{Discoveries: []DiscoveryStatus{}}
	}
	status := Status{
		RunID:        r.id,
		Running:      !r.finished.Load(),
		States:       r.generated.Load(),
		UniqueStates: r.space.Len(),
		MaxDepth:     r.space.MaxDepth(),
		Discoveries:  []DiscoveryStatus{},
	}
	for _, d := range r.discovered() {
		status.Discoveries = append(status.Discoveries, DiscoveryStatus{
			Property:    d.Property,
			Expectation: d.Expectation.String(),
			Failure:     d.IsFailure(),
			Fingerprint: d.State().Fingerprint(),
			Path:        d.Export(),
		})
	}
	return status
}

// The state space discovered by the latest run. nil if no run has been started.
func (c *Checker[S, A]) StateSpace() *stateSpace.StateSpace[S, A] {
	r := c.current.Load()
	if r == nil {
		return nil
	}
	return r.space
}
