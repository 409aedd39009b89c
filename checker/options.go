package checker

import (
	"io"
	"log/slog"

	"twopc/checking"
	"twopc/config"
	"twopc/metrics"
	"twopc/scheduler"
)

// A option used to configure the Checker
type Option interface {
	// noop method
	CheckerOpt()
}

// Configure the order the state space is explored in.
//
// Default value is scheduler.DepthFirst.
// scheduler.RandomWalk does not explore the state space exhaustively, but follows MaxRuns random paths from the initial states.
func WithStrategy(s scheduler.Strategy) Option {
	return config.StrategyOption{Strategy: s}
}

// Configure the maximum depth explored.
//
// States at the maximum depth are checked but their successors are not computed.
// Default value is 0, meaning no bound, for exhaustive search and 100 for random walks.
//
// Note that Eventually properties can not be verified for paths that are cut short.
func MaxDepth(maxDepth int) Option {
	return config.MaxDepthOption{MaxDepth: maxDepth}
}

// Configure the maximum number of unique states discovered.
//
// The run stops with ErrStateLimit when the limit is reached.
// With several workers the limit may be exceeded by a few states.
// Default value is 0, meaning no bound.
func MaxStates(maxStates int) Option {
	return config.MaxStatesOption{MaxStates: maxStates}
}

// Configure the number of random walks.
//
// Only used by scheduler.RandomWalk.
// Default value is 10000
func MaxRuns(maxRuns int) Option {
	return config.MaxRunsOption{MaxRuns: maxRuns}
}

// Configure the number of goroutines exploring the state space.
//
// Default value is GOMAXPROCS
func Workers(n int) Option {
	return config.WorkersOption{N: n}
}

// Configure the seed of the random walks.
//
// Walks are only reproducible with a single worker.
// Default value is based on the current time.
func Seed(seed int64) Option {
	return config.SeedOption{Seed: seed}
}

// Check the properties in addition to the properties of the model.
func WithProperties[S any](properties ...checking.Property[S]) Option {
	return config.PropertiesOption[S]{Properties: properties}
}

// Default value is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return config.LoggerOption{Logger: l}
}

// Record the progress of runs in the collectors.
//
// Default value is no metrics.
func WithMetrics(m *metrics.CheckerMetrics) Option {
	return config.MetricsOption{Metrics: m}
}

// Configure the id used to identify the run in logs and reports.
//
// Default value is a random UUID, generated for every run.
func RunID(id string) Option {
	return config.RunIDOption{ID: id}
}

// Log the progress every n unique states.
//
// Default value is 100000. 0 disables progress logging.
func ProgressEvery(n int) Option {
	return config.ProgressOption{Every: n}
}

// Configure whether to stop the run when a property is violated.
//
// Default value is true.
func StopOnViolation(stop bool) Option {
	return config.StopOnViolationOption{Stop: stop}
}

// Export the discovered state space in Newick format to the writer after every run.
//
// Can be applied multiple times to add multiple io.writers.
func Export(w io.Writer) Option {
	return config.ExportOption{W: w}
}
