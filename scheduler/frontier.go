package scheduler

import "sync"

// The unexplored states, shared by the workers exploring a state space.
//
// A worker takes an item with Pop, adds the successors it discovers with Push
// and calls Done when it has finished with the item. The exploration is
// complete when the frontier is empty and no worker holds an item.
type Frontier[T any] struct {
	// Used to wait for a change in f.ongoing, f.items or f.closed.
	// The condition is len(f.items) == 0 and f.ongoing > 0
	cond *sync.Cond

	strategy Strategy
	items    []T
	// The index of the first item, used by breadth first search.
	head int

	// Number of items taken by a worker and not yet done.
	ongoing int
	closed  bool
}

// Create a frontier that hands out items in the order given by the strategy.
//
// RandomWalk is served depth first. The walk itself is done by a Walker.
func NewFrontier[T any](strategy Strategy) *Frontier[T] {
	return &Frontier[T]{
		cond:     sync.NewCond(new(sync.Mutex)),
		strategy: strategy,
		items:    []T{},
	}
}

// Add items to the frontier.
func (f *Frontier[T]) Push(items ...T) {
	if len(items) == 0 {
		return
	}
	f.cond.L.Lock()
	defer f.cond.L.Unlock()

	wasEmpty := f.len() == 0
	f.items = append(f.items, items...)
	if wasEmpty {
		f.cond.Broadcast()
	}
}

// Take the next item from the frontier.
//
// Blocks until an item is available. Returns false if the exploration is
// complete, i.e. the frontier is empty and every taken item is done, or if the
// frontier is closed.
// Every item returned must be followed by a call to Done.
func (f *Frontier[T]) Pop() (T, bool) {
	f.cond.L.Lock()
	defer f.cond.L.Unlock()

	// If there are no available items wait until there are.
	// If at the same time no worker holds an item, no new items can be added
	// and the state space has been explored.
	for f.len() == 0 && f.ongoing > 0 && !f.closed {
		f.cond.Wait()
	}
	var item T
	if f.closed || f.len() == 0 {
		return item, false
	}

	if f.strategy == BreadthFirst {
		item = f.items[f.head]
		f.items[f.head] = *new(T)
		f.head++
		if f.head == len(f.items) {
			f.items = f.items[:0]
			f.head = 0
		}
	} else {
		item = f.items[len(f.items)-1]
		f.items = f.items[:len(f.items)-1]
	}
	f.ongoing++
	return item, true
}

// Finish an item returned by Pop.
func (f *Frontier[T]) Done() {
	f.cond.L.Lock()
	defer f.cond.L.Unlock()

	f.ongoing--
	f.cond.Broadcast()
}

// Stop handing out items. Blocked and future calls to Pop return false.
func (f *Frontier[T]) Close() {
	f.cond.L.Lock()
	defer f.cond.L.Unlock()

	f.closed = true
	f.cond.Broadcast()
}

// The number of items waiting to be explored.
func (f *Frontier[T]) Len() int {
	f.cond.L.Lock()
	defer f.cond.L.Unlock()
	return f.len()
}

func (f *Frontier[T]) len() int {
	return len(f.items) - f.head
}
