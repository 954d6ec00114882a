package evo

import (
	"context"

	"revolver/internal/entropy"
)

// bitGenome is a small fixed-length chromosome used across the evo tests.
type bitGenome []int

func randomBitGenome(length int) Factory[bitGenome] {
	return func(gen entropy.Generator) bitGenome {
		out := make(bitGenome, length)
		for i := range out {
			if entropy.Bool(gen) {
				out[i] = 1
			}
		}
		return out
	}
}

func (g bitGenome) Mutate(gen entropy.Generator) bitGenome {
	out := append(bitGenome(nil), g...)
	i := entropy.IntInRange(gen, 0, len(out)-1)
	out[i] = 1 - out[i]
	return out
}

func (g bitGenome) OnePointCrossover(gen entropy.Generator, other bitGenome) (bitGenome, bitGenome) {
	idx := entropy.IntInRange(gen, 0, min(len(g), len(other))-1)
	first := append(append(bitGenome(nil), g[:idx]...), other[idx:]...)
	second := append(append(bitGenome(nil), other[:idx]...), g[idx:]...)
	return first, second
}

func (g bitGenome) ones() int {
	n := 0
	for _, b := range g {
		n += b
	}
	return n
}

func countOnes(_ context.Context, g bitGenome) (float64, error) {
	return float64(g.ones()) / float64(len(g)), nil
}

// sequence replays fixed draws, then repeats the last one.
type sequence struct {
	values []float64
	next   int
}

func (s *sequence) Float64() float64 {
	v := s.values[min(s.next, len(s.values)-1)]
	s.next++
	return v
}

// scoredPool builds a stable pool whose chromosome i is i with the given
// fitness values.
func scoredPool(fitness ...float64) *MatingPool[int] {
	individuals := make([]Individual[int], len(fitness))
	for i, f := range fitness {
		individuals[i] = ScoredIndividual(i, f)
	}
	return NewMatingPoolWith(individuals...)
}

func reproducingPool(fitness ...float64) *MatingPool[int] {
	pool := scoredPool(fitness...)
	pool.BeginReproduction()
	return pool
}

func countSelections(selection Selection, gen entropy.Generator, pool FitnessView, draws int) []int {
	counts := make([]int, pool.Size())
	for i := 0; i < draws; i++ {
		counts[selection.Select(gen, pool, 1)[0]]++
	}
	return counts
}
