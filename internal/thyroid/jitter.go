package thyroid

import (
	"math/rand"
	"sync"
	"time"
)

// Jitter adds uniform noise of total width amplitude around a value. It is
// seeded explicitly so that runs can be reproduced.
type Jitter struct {
	mu        sync.Mutex
	rng       *rand.Rand
	amplitude float64
}

// NewJitter returns a Jitter seeded with seed, or with the current time when
// seed is 0.
func NewJitter(seed int64, amplitude float64) *Jitter {
	return &Jitter{rng: newRand(seed), amplitude: amplitude}
}

// Apply returns v plus noise drawn from [-amplitude/2, +amplitude/2).
func (j *Jitter) Apply(v float64) float64 {
	if j == nil || j.amplitude == 0 {
		return v
	}
	j.mu.Lock()
	noise := (j.rng.Float64() - 0.5) * j.amplitude
	j.mu.Unlock()
	return v + noise
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
