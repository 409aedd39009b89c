package scheduler

import (
	"math/rand"
	"sync"
)

// Hands out seeded Walkers.
//
// It is useful for testing a random selection of the state space when the state space is to large to perform an exhaustive search.
// It provides no guarantee that all errors have been found.
// The same seed yields the same sequence of walkers, and therefore the same walks.
type Random struct {
	sync.Mutex
	rand *rand.Rand
}

// Create a new Random scheduler
//
// The seed is used to generate seeds for the walkers.
func NewRandom(seed int64) *Random {
	return &Random{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// Create a walker for a single run.
//
// Is safe to call from multiple goroutines.
func (r *Random) Walker() *Walker {
	r.Lock()
	defer r.Unlock()
	return &Walker{rand: rand.New(rand.NewSource(r.rand.Int63()))}
}

// Chooses the next step of a random walk. Used by a single goroutine.
type Walker struct {
	rand *rand.Rand
}

// Returns a uniformly chosen element of items. ok is false if items is empty.
func Choose[T any](w *Walker, items []T) (item T, ok bool) {
	if len(items) == 0 {
		return item, false
	}
	return items[w.rand.Intn(len(items))], true
}
