// Package config holds the option values used to configure a checker run.
package config

import (
	"io"
	"log/slog"

	"twopc/checking"
	"twopc/metrics"
	"twopc/scheduler"
)

type StrategyOption struct {
	Strategy scheduler.Strategy
}

func (so StrategyOption) CheckerOpt() {}

type MaxDepthOption struct{ MaxDepth int }

func (mdo MaxDepthOption) CheckerOpt() {}

type MaxStatesOption struct{ MaxStates int }

func (mso MaxStatesOption) CheckerOpt() {}

type MaxRunsOption struct{ MaxRuns int }

func (mro MaxRunsOption) CheckerOpt() {}

type WorkersOption struct{ N int }

func (wo WorkersOption) CheckerOpt() {}

type SeedOption struct{ Seed int64 }

func (so SeedOption) CheckerOpt() {}

// Configures properties checked in addition to the properties of the model.
type PropertiesOption[S any] struct {
	Properties []checking.Property[S]
}

func (po PropertiesOption[S]) CheckerOpt() {}

type LoggerOption struct {
	Logger *slog.Logger
}

func (lo LoggerOption) CheckerOpt() {}

type MetricsOption struct {
	Metrics *metrics.CheckerMetrics
}

func (mo MetricsOption) CheckerOpt() {}

type RunIDOption struct{ ID string }

func (ro RunIDOption) CheckerOpt() {}

type ProgressOption struct{ Every int }

func (po ProgressOption) CheckerOpt() {}

type StopOnViolationOption struct{ Stop bool }

func (so StopOnViolationOption) CheckerOpt() {}

// Configures an io.Writer that the discovered state space is exported to.
//
// Can be applied multiple times to add multiple writers.
type ExportOption struct {
	W io.Writer
}

func (eo ExportOption) CheckerOpt() {}
