// Package entropy provides the pseudorandom sources every randomized decision
// in the engine is derived from.
package entropy

import (
	"fmt"
	"math"
	"sync"
)

// Epsilon is the width below which a floating-point range or weight sum is
// treated as empty.
const Epsilon = 1e-9

// Generator produces uniformly distributed values in [0, 1).
type Generator interface {
	Float64() float64
}

// IntInRange returns a uniform integer in [min, max] (both inclusive).
// Equal bounds return max; inverted bounds are a programming error.
func IntInRange(g Generator, min, max int) int {
	if max == min {
		return max
	}
	if max < min {
		panic(fmt.Sprintf("entropy: invalid integer range [%d, %d]", min, max))
	}
	v := min + int(g.Float64()*float64(max-min+1))
	if v > max {
		v = max
	}
	return v
}

// FloatInRange returns a uniform float in [min, max]. Bounds closer than
// Epsilon collapse to max; inverted bounds are a programming error.
func FloatInRange(g Generator, min, max float64) float64 {
	if math.Abs(max-min) < Epsilon {
		return max
	}
	if max < min {
		panic(fmt.Sprintf("entropy: invalid float range [%g, %g]", min, max))
	}
	return min + g.Float64()*(max-min)
}

// Bool returns true with probability one half.
func Bool(g Generator) bool {
	return g.Float64() > 0.5
}

// Locked serializes access to a Generator so one instance can be shared by
// several goroutines. Sharing gives up run-to-run determinism.
type Locked struct {
	mu  sync.Mutex
	gen Generator
}

func NewLocked(gen Generator) *Locked {
	return &Locked{gen: gen}
}

func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen.Float64()
}
