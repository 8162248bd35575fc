package engine

import (
	"math/rand/v2"
	"sync"
)

// RandomDie rolls a seeded pseudo-random die. It is safe for concurrent use.
type RandomDie struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomDie returns a die seeded with seed. A zero seed picks a random one.
func NewRandomDie(seed uint64) *RandomDie {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomDie{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Roll returns a value in [min, max]
func (d *RandomDie) Roll(min, max int) int {
	if max <= min {
		return min
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return min + d.rng.IntN(max-min+1)
}
