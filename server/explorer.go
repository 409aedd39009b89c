// Package server lets users browse the state space of a model.
//
// The Explorer computes the successors of any state it has seen, either by
// browsing from an initial state or through the discoveries of a checker run,
// and reports the progress of that run. It is served over HTTP as a small web
// application with a JSON API, and over gRPC for the terminal browser.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"twopc/checker"
	"twopc/checking"
	"twopc/metrics"
	"twopc/stateSpace"
)

var ErrUnknownState = errors.New("server: unknown state")

// A state that can be browsed.
type State interface {
	stateSpace.Fingerprinter
	fmt.Stringer
}

// A state and the properties evaluated on it.
type StateView struct {
	Fingerprint uint64         `json:"fingerprint,string"`
	State       string         `json:"state"`
	Path        []string       `json:"path"`
	Properties  []PropertyView `json:"properties"`
	// The enabled actions. Only set when the successors are requested.
	Actions []ActionView `json:"actions,omitempty"`
}

type PropertyView struct {
	Name        string `json:"name"`
	Expectation string `json:"expectation"`
	// True if the state is a counterexample or example of the property.
	Discovery bool `json:"discovery"`
}

// An enabled action and the state it leads to.
type ActionView struct {
	Action     string `json:"action"`
	Applicable bool   `json:"applicable"`
	// Empty if the action is not applicable.
	Fingerprint string `json:"fingerprint,omitempty"`
	State       string `json:"state,omitempty"`
}

type Option interface{ serverOpt() }

type loggerOption struct{ logger *slog.Logger }

func (loggerOption) serverOpt() {}

// Default value is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return loggerOption{logger: l}
}

type metricsOption struct {
	metrics *metrics.ServerMetrics
	handler http.Handler
}

func (metricsOption) serverOpt() {}

// Record requests in the collectors, and serve handler on /metrics.
//
// Default value is no request metrics and metrics.Handler() on /metrics.
func WithMetrics(m *metrics.ServerMetrics, handler http.Handler) Option {
	return metricsOption{metrics: m, handler: handler}
}

// Browses the state space of a model.
//
// Is safe to use from multiple goroutines.
type Explorer[S State, A fmt.Stringer] struct {
	model   checker.Model[S, A]
	checker *checker.Checker[S, A]
	// The states seen while browsing, linked to the state they were first reached from.
	known *stateSpace.StateSpace[S, A]

	session        string
	logger         *slog.Logger
	metrics        *metrics.ServerMetrics
	metricsHandler http.Handler
}

// Create an explorer for the model.
//
// c is the checker whose progress and discoveries are reported. It may be nil.
func NewExplorer[S State, A fmt.Stringer](m checker.Model[S, A], c *checker.Checker[S, A], opts ...Option) *Explorer[S, A] {
	e := &Explorer[S, A]{
		model:          m,
		checker:        c,
		known:          stateSpace.New[S, A](),
		session:        uuid.NewString(),
		logger:         slog.Default(),
		metricsHandler: metrics.Handler(),
	}
	for _, opt := range opts {
		switch t := opt.(type) {
		case loggerOption:
			e.logger = t.logger
		case metricsOption:
			e.metrics = t.metrics
			if t.handler != nil {
				e.metricsHandler = t.handler
			}
		}
	}
	e.logger = e.logger.With("session", e.session)
	return e
}

// Returns the initial states of the model.
func (e *Explorer[S, A]) Init() []StateView {
	views := []StateView{}
	for _, s := range e.model.InitStates() {
		node, _ := e.known.AddRoot(s)
		views = append(views, e.view(node))
	}
	return views
}

// Returns the state with the fingerprint, its enabled actions and their successors.
//
// The state must be an initial state, a successor of a state returned earlier,
// or a state discovered by the checker. Otherwise ErrUnknownState is returned.
func (e *Explorer[S, A]) Successors(fp uint64) (StateView, error) {
	node, ok := e.lookup(fp)
	if !ok {
		return StateView{}, fmt.Errorf("%w: %v", ErrUnknownState, fp)
	}
	view := e.view(node)
	view.Actions = []ActionView{}
	s := node.State()
	for _, a := range e.model.Actions(s) {
		av := ActionView{Action: a.String()}
		if next, ok := e.model.NextState(s, a); ok {
			e.known.Add(node, a, next)
			av.Applicable = true
			av.Fingerprint = strconv.FormatUint(next.Fingerprint(), 10)
			av.State = next.String()
		}
		view.Actions = append(view.Actions, av)
	}
	return view, nil
}

// Returns the progress of the checker. The zero Status if there is no checker.
func (e *Explorer[S, A]) Status() checker.Status {
	if e.checker == nil {
		return checker.Status{Discoveries: []checker.DiscoveryStatus{}}
	}
	return e.checker.Status()
}

// Write the state space discovered by the checker as a Graphviz digraph.
// Writes the states seen while browsing if the checker has not been run.
func (e *Explorer[S, A]) ExportDot(w io.Writer) {
	if e.checker != nil {
		if space := e.checker.StateSpace(); space != nil {
			space.ExportDot(w)
			return
		}
	}
	e.known.ExportDot(w)
}

// Find a known state.
// States discovered by the checker are copied to the known states together with their path.
func (e *Explorer[S, A]) lookup(fp uint64) (*stateSpace.Node[S, A], bool) {
	if node, ok := e.known.Get(fp); ok {
		return node, true
	}
	if e.checker == nil {
		return nil, false
	}
	space := e.checker.StateSpace()
	if space == nil {
		return nil, false
	}
	discovered, ok := space.Get(fp)
	if !ok {
		return nil, false
	}
	path := discovered.Path()
	node, _ := e.known.AddRoot(path[0].State)
	for _, step := range path[1:] {
		node, _ = e.known.Add(node, step.Action, step.State)
	}
	return node, true
}

func (e *Explorer[S, A]) properties() []checking.Property[S] {
	if e.checker != nil {
		return e.checker.Properties()
	}
	return e.model.Properties()
}

func (e *Explorer[S, A]) view(node *stateSpace.Node[S, A]) StateView {
	s := node.State()
	view := StateView{
		Fingerprint: node.Fingerprint(),
		State:       s.String(),
		Path:        []string{},
		Properties:  []PropertyView{},
	}
	for _, step := range node.Path()[1:] {
		view.Path = append(view.Path, step.Action.String())
	}
	for _, p := range e.properties() {
		view.Properties = append(view.Properties, PropertyView{
			Name:        p.Name,
			Expectation: p.Expectation.String(),
			// Whether the state is terminal is not known here.
			Discovery: p.Discover(s, false),
		})
	}
	return view
}
