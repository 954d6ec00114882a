package evo

import "revolver/internal/entropy"

// Factory builds a random chromosome. It is the only capability every
// chromosome type must provide; copying a value is enough to reproduce it.
type Factory[C any] func(gen entropy.Generator) C

// Mutable chromosomes produce a randomly altered copy of themselves. The
// receiver must be left untouched.
type Mutable[C any] interface {
	Mutate(gen entropy.Generator) C
}

// OnePointCrossoverable chromosomes swap tails with a partner at one point.
type OnePointCrossoverable[C any] interface {
	OnePointCrossover(gen entropy.Generator, other C) (C, C)
}

// TwoPointCrossoverable chromosomes swap the segment between two points.
type TwoPointCrossoverable[C any] interface {
	TwoPointCrossover(gen entropy.Generator, other C) (C, C)
}
