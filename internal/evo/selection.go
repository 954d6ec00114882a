package evo

import (
	"fmt"

	"revolver/internal/entropy"
)

// Selection picks k population indices. Duplicates are allowed; order carries
// no meaning. Asking for more individuals than exist panics.
type Selection interface {
	Name() string
	Select(gen entropy.Generator, pool FitnessView, k int) []int
}

// RandomSelection draws indices uniformly, ignoring fitness.
type RandomSelection struct{}

func (RandomSelection) Name() string {
	return "random"
}

func (RandomSelection) Select(gen entropy.Generator, pool FitnessView, k int) []int {
	checkSelectionSize(pool, k)
	out := make([]int, k)
	for i := range out {
		out[i] = entropy.IntInRange(gen, 0, pool.Size()-1)
	}
	return out
}

// RouletteSelection picks proportionally to raw fitness. When the fitness sum
// is numerically zero it degrades to uniform selection.
type RouletteSelection struct{}

func (RouletteSelection) Name() string {
	return "roulette"
}

func (RouletteSelection) Select(gen entropy.Generator, pool FitnessView, k int) []int {
	checkSelectionSize(pool, k)
	sum := pool.FitnessSum()
	out := make([]int, k)
	for i := range out {
		if sum >= entropy.Epsilon {
			out[i] = rouletteIndex(entropy.FloatInRange(gen, 0, sum), pool)
		} else {
			out[i] = entropy.IntInRange(gen, 0, pool.Size()-1)
		}
	}
	return out
}

func rouletteIndex(draw float64, pool FitnessView) int {
	acc := 0.0
	for i := 0; i < pool.Size(); i++ {
		next := acc + pool.FitnessAt(i)
		if draw >= acc && draw < next {
			return i
		}
		acc = next
	}
	return pool.Size() - 1
}

// RankSelection spins the same wheel as RouletteSelection, but the individual
// ranked r (1 = worst) weighs r. A population whose fitness sums to zero, or
// whose fitness values are all equal, has no meaningful ranking and is
// sampled uniformly.
type RankSelection struct{}

func (RankSelection) Name() string {
	return "rank"
}

func (RankSelection) Select(gen entropy.Generator, pool FitnessView, k int) []int {
	checkSelectionSize(pool, k)
	n := float64(pool.Size())
	sum := n * (n + 1) / 2
	ranked := pool.Size() > 0 && pool.FitnessSum() >= entropy.Epsilon &&
		pool.FitnessAt(pool.RankedIndex(pool.Size()-1))-pool.FitnessAt(pool.RankedIndex(0)) >= entropy.Epsilon
	out := make([]int, k)
	for i := range out {
		if ranked {
			out[i] = rankIndex(entropy.FloatInRange(gen, 0, sum), pool)
		} else {
			out[i] = entropy.IntInRange(gen, 0, pool.Size()-1)
		}
	}
	return out
}

func rankIndex(draw float64, pool FitnessView) int {
	acc := 0.0
	for rank := 0; rank < pool.Size(); rank++ {
		next := acc + float64(rank+1)
		if draw >= acc && draw < next {
			return pool.RankedIndex(rank)
		}
		acc = next
	}
	return pool.RankedIndex(pool.Size() - 1)
}

// TournamentSelection runs one tournament per pick: Order contestants are
// drawn uniformly and the fittest wins, the first drawn winning ties.
type TournamentSelection struct {
	Order int
}

func (TournamentSelection) Name() string {
	return "tournament"
}

func (s TournamentSelection) Select(gen entropy.Generator, pool FitnessView, k int) []int {
	checkSelectionSize(pool, k)
	if s.Order <= 0 {
		panic(fmt.Sprintf("evo: tournament order must be > 0, got %d", s.Order))
	}
	order := s.Order
	if order > pool.Size() {
		order = pool.Size()
	}
	out := make([]int, k)
	for i := range out {
		contestants := RandomSelection{}.Select(gen, pool, order)
		winner := contestants[0]
		for _, c := range contestants[1:] {
			if pool.FitnessAt(c) > pool.FitnessAt(winner) {
				winner = c
			}
		}
		out[i] = winner
	}
	return out
}

// BestSelection deterministically returns the k fittest indices.
type BestSelection struct{}

func (BestSelection) Name() string {
	return "best"
}

func (BestSelection) Select(_ entropy.Generator, pool FitnessView, k int) []int {
	checkSelectionSize(pool, k)
	out := make([]int, k)
	size := pool.Size()
	for i := range out {
		out[i] = pool.RankedIndex(size - k + i)
	}
	return out
}

// WorstSelection deterministically returns the k least fit indices.
type WorstSelection struct{}

func (WorstSelection) Name() string {
	return "worst"
}

func (WorstSelection) Select(_ entropy.Generator, pool FitnessView, k int) []int {
	checkSelectionSize(pool, k)
	out := make([]int, k)
	for i := range out {
		out[i] = pool.RankedIndex(i)
	}
	return out
}

func checkSelectionSize(pool FitnessView, k int) {
	if k < 0 || k > pool.Size() {
		panic(fmt.Sprintf("evo: cannot select %d individuals from a population of %d", k, pool.Size()))
	}
	if k > 0 && pool.Size() == 0 {
		panic("evo: cannot select from an empty population")
	}
}
