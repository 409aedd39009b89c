package checker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"twopc/checking"
	"twopc/scheduler"
	"twopc/stateSpace"
)

type successor[S, A any] struct {
	action      A
	state       S
	fingerprint uint64
}

// The shared state of a single run of the checker.
type run[S stateSpace.Fingerprinter, A fmt.Stringer] struct {
	c      *Checker[S, A]
	ctx    context.Context
	id     string
	logger *slog.Logger
	space  *stateSpace.StateSpace[S, A]

	// Number of states computed, including states computed more than once.
	generated atomic.Int64
	// Number of states added to the state space.
	unique atomic.Int64
	// Number of random walks started and completed.
	started, walks atomic.Int64
	// A state was not expanded because of the depth bound.
	cut      atomic.Bool
	halted   atomic.Bool
	finished atomic.Bool

	// One flag and discovery per property. The flag is set after the discovery is stored.
	found       []atomic.Bool
	mu          sync.Mutex
	discoveries []*checking.Discovery[S, A]
	stopped     error

	// Called once when the run is halted. Set before the workers are started.
	onHalt func()
}

func newRun[S stateSpace.Fingerprinter, A fmt.Stringer](ctx context.Context, c *Checker[S, A], id string) *run[S, A] {
	return &run[S, A]{
		c:           c,
		ctx:         ctx,
		id:          id,
		logger:      c.logger.With("run", id),
		space:       stateSpace.New[S, A](),
		found:       make([]atomic.Bool, len(c.properties)),
		discoveries: make([]*checking.Discovery[S, A], len(c.properties)),
	}
}

// Stop the run. err is reported as the reason, unless a reason has already been given.
func (r *run[S, A]) halt(err error) {
	r.mu.Lock()
	if err != nil && r.stopped == nil {
		r.stopped = err
	}
	r.mu.Unlock()
	if r.halted.Swap(true) {
		return
	}
	if r.onHalt != nil {
		r.onHalt()
	}
}

func (r *run[S, A]) stopping() bool {
	return r.halted.Load() || r.ctx.Err() != nil
}

// Exhaustively explore the state space from the initial states.
func (r *run[S, A]) searchAll(inits []S) {
	frontier := scheduler.NewFrontier[*stateSpace.Node[S, A]](r.c.strategy)
	r.onHalt = frontier.Close
	stop := context.AfterFunc(r.ctx, frontier.Close)
	defer stop()

	for _, s := range inits {
		r.generated.Add(1)
		if node, added := r.space.AddRoot(s); added {
			r.added()
			frontier.Push(node)
		}
	}

	wg := sync.WaitGroup{}
	for i := 0; i < r.c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				node, ok := frontier.Pop()
				if !ok {
					return
				}
				r.explore(node, frontier)
				frontier.Done()
			}
		}()
	}
	wg.Wait()
}

// Check the state of the node and add its undiscovered successors to the frontier.
func (r *run[S, A]) explore(node *stateSpace.Node[S, A], frontier *scheduler.Frontier[*stateSpace.Node[S, A]]) {
	if r.stopping() {
		return
	}
	if r.c.maxDepth > 0 && node.Depth() >= r.c.maxDepth {
		if len(r.c.model.Actions(node.State())) > 0 {
			r.cut.Store(true)
		}
		r.evaluate(node, false)
		return
	}

	successors := r.successors(node.State())
	r.evaluate(node, isTerminal(node.Fingerprint(), successors))

	children := make([]*stateSpace.Node[S, A], 0, len(successors))
	for _, succ := range successors {
		if r.limitReached(succ.fingerprint) {
			r.halt(ErrStateLimit)
			break
		}
		if child, added := r.space.Add(node, succ.action, succ.state); added {
			r.added()
			children = append(children, child)
		}
	}
	frontier.Push(children...)
	r.c.metrics.Explored(len(successors), int(r.unique.Load()), r.space.MaxDepth())
}

// Follow random paths from the initial states until MaxRuns walks have been started.
func (r *run[S, A]) walkAll(inits []S) {
	random := scheduler.NewRandom(r.c.seed)
	wg := sync.WaitGroup{}
	for i := 0; i < r.c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !r.stopping() && r.started.Add(1) <= int64(r.c.maxRuns) {
				r.walk(random.Walker(), inits)
				r.walks.Add(1)
			}
		}()
	}
	wg.Wait()
}

// Follow a single random path until it reaches a terminal state or the depth bound.
func (r *run[S, A]) walk(w *scheduler.Walker, inits []S) {
	init, _ := scheduler.Choose(w, inits)
	r.generated.Add(1)
	node, added := r.space.AddRoot(init)
	if added {
		r.added()
	}

	for steps := 0; !r.stopping(); steps++ {
		if steps >= r.c.maxDepth {
			r.cut.Store(true)
			r.evaluate(node, false)
			return
		}
		successors := r.successors(node.State())
		terminal := isTerminal(node.Fingerprint(), successors)
		r.evaluate(node, terminal)
		r.c.metrics.Explored(len(successors), int(r.unique.Load()), r.space.MaxDepth())
		if terminal {
			return
		}

		succ, _ := scheduler.Choose(w, successors)
		if r.limitReached(succ.fingerprint) {
			r.halt(ErrStateLimit)
			return
		}
		next, added := r.space.Add(node, succ.action, succ.state)
		if added {
			r.added()
		}
		node = next
	}
}

// Returns the states reachable from s by a single applicable action.
func (r *run[S, A]) successors(s S) []successor[S, A] {
	actions := r.c.model.Actions(s)
	out := make([]successor[S, A], 0, len(actions))
	for _, a := range actions {
		next, ok := r.c.model.NextState(s, a)
		if !ok {
			continue
		}
		out = append(out, successor[S, A]{action: a, state: next, fingerprint: next.Fingerprint()})
	}
	r.generated.Add(int64(len(out)))
	return out
}

// A state is terminal if every action leads back to the state itself.
func isTerminal[S, A any](fp uint64, successors []successor[S, A]) bool {
	for _, succ := range successors {
		if succ.fingerprint != fp {
			return false
		}
	}
	return true
}

// Returns true if adding the state with the fingerprint would exceed MaxStates.
func (r *run[S, A]) limitReached(fp uint64) bool {
	if r.c.maxStates <= 0 || int(r.unique.Load()) < r.c.maxStates {
		return false
	}
	return !r.space.Contains(fp)
}

func (r *run[S, A]) added() {
	n := r.unique.Add(1)
	if r.c.progressEvery > 0 && n%int64(r.c.progressEvery) == 0 {
		r.logger.Info("progress",
			"states", r.generated.Load(),
			"unique", n,
			"depth", r.space.MaxDepth(),
		)
	}
}

// Check the properties that have not been discovered yet.
func (r *run[S, A]) evaluate(node *stateSpace.Node[S, A], terminal bool) {
	for i, p := range r.c.properties {
		if r.found[i].Load() {
			continue
		}
		if p.Discover(node.State(), terminal) {
			r.record(i, node)
		}
	}
}

func (r *run[S, A]) record(i int, node *stateSpace.Node[S, A]) {
	p := r.c.properties[i]

	r.mu.Lock()
	if r.discoveries[i] != nil {
		r.mu.Unlock()
		return
	}
	d := &checking.Discovery[S, A]{
		Property:    p.Name,
		Expectation: p.Expectation,
		Path:        node.Path(),
	}
	r.discoveries[i] = d
	r.found[i].Store(true)
	all := true
	for _, other := range r.discoveries {
		all = all && other != nil
	}
	r.mu.Unlock()

	r.c.metrics.Discovered(p.Name, p.Expectation.String())
	if d.IsFailure() {
		r.logger.Warn("property violated", "property", p.Name, "depth", node.Depth())
		if r.c.stopOnViolation {
			r.halt(nil)
		}
	} else {
		r.logger.Info("example found", "property", p.Name, "depth", node.Depth())
	}
	// Nothing more can be learned from the run.
	if all {
		r.halt(nil)
	}
}

// Returns the discoveries made so far, in the order of the properties.
func (r *run[S, A]) discovered() []checking.Discovery[S, A] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []checking.Discovery[S, A]{}
	for _, d := range r.discoveries {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

func (r *run[S, A]) report(duration time.Duration) *Report[S, A] {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &Report[S, A]{
		RunID:        r.id,
		Strategy:     r.c.strategy,
		States:       r.generated.Load(),
		UniqueStates: r.space.Len(),
		MaxDepth:     r.space.MaxDepth(),
		Duration:     duration,
		Stopped:      r.stopped,
		Complete:     r.c.strategy != scheduler.RandomWalk && !r.halted.Load() && !r.cut.Load() && r.ctx.Err() == nil,
		Properties:   make([]PropertyResult[S, A], 0, len(r.c.properties)),
	}
	if r.c.strategy == scheduler.RandomWalk {
		report.Seed = r.c.seed
		report.Runs = int(r.walks.Load())
	}
	for i, p := range r.c.properties {
		report.Properties = append(report.Properties, PropertyResult[S, A]{
			Name:        p.Name,
			Expectation: p.Expectation,
			Discovery:   r.discoveries[i],
		})
	}
	return report
}
