package evo

import (
	"fmt"

	"revolver/internal/entropy"
)

// Operator reads the current generation of a reproducing pool and appends
// zero or more offspring to its staging buffer. It must never modify the
// current generation.
type Operator[C any] interface {
	Name() string
	Apply(gen entropy.Generator, pool *MatingPool[C])
}

// OperatorFunc adapts a function to Operator.
type OperatorFunc[C any] struct {
	Label string
	Fn    func(gen entropy.Generator, pool *MatingPool[C])
}

func (o OperatorFunc[C]) Name() string {
	return o.Label
}

func (o OperatorFunc[C]) Apply(gen entropy.Generator, pool *MatingPool[C]) {
	requireReproducing(pool, o.Label)
	o.Fn(gen, pool)
}

// Reproduction clones Count selected individuals, fitness included, into the
// next generation.
type Reproduction[C any] struct {
	Selection Selection
	Count     int
}

func NewReproduction[C any](selection Selection, count int) *Reproduction[C] {
	if selection == nil {
		panic("evo: reproduction requires a selection")
	}
	if count <= 0 {
		panic(fmt.Sprintf("evo: reproduction count must be > 0, got %d", count))
	}
	return &Reproduction[C]{Selection: selection, Count: count}
}

// NewElitism reproduces the count fittest individuals unchanged, which keeps
// the best fitness from regressing between generations.
func NewElitism[C any](count int) *Reproduction[C] {
	return NewReproduction[C](BestSelection{}, count)
}

func (r *Reproduction[C]) Name() string {
	return "reproduction(" + r.Selection.Name() + ")"
}

func (r *Reproduction[C]) Apply(gen entropy.Generator, pool *MatingPool[C]) {
	requireReproducing(pool, r.Name())
	selected := selectExactly(gen, r.Selection, pool, r.Count)
	for _, index := range selected {
		pool.AddOffspring(pool.At(index))
	}
}

// Mutation replaces one selected individual with a mutated, unscored copy.
type Mutation[C Mutable[C]] struct {
	Selection Selection
}

func NewMutation[C Mutable[C]](selection Selection) *Mutation[C] {
	if selection == nil {
		panic("evo: mutation requires a selection")
	}
	return &Mutation[C]{Selection: selection}
}

func (m *Mutation[C]) Name() string {
	return "mutation(" + m.Selection.Name() + ")"
}

func (m *Mutation[C]) Apply(gen entropy.Generator, pool *MatingPool[C]) {
	requireReproducing(pool, m.Name())
	selected := selectExactly(gen, m.Selection, pool, 1)
	parent := pool.At(selected[0]).Chromosome
	pool.AddOffspring(NewIndividual(parent.Mutate(gen)))
}

// OnePointCrossover mates two selected parents and stages both children.
type OnePointCrossover[C OnePointCrossoverable[C]] struct {
	Selection Selection
}

func NewOnePointCrossover[C OnePointCrossoverable[C]](selection Selection) *OnePointCrossover[C] {
	if selection == nil {
		panic("evo: crossover requires a selection")
	}
	return &OnePointCrossover[C]{Selection: selection}
}

func (o *OnePointCrossover[C]) Name() string {
	return "one_point_crossover(" + o.Selection.Name() + ")"
}

func (o *OnePointCrossover[C]) Apply(gen entropy.Generator, pool *MatingPool[C]) {
	requireReproducing(pool, o.Name())
	selected := selectExactly(gen, o.Selection, pool, 2)
	first := pool.At(selected[0]).Chromosome
	second := pool.At(selected[1]).Chromosome
	childA, childB := first.OnePointCrossover(gen, second)
	pool.AddOffspring(NewIndividual(childA))
	pool.AddOffspring(NewIndividual(childB))
}

// TwoPointCrossover swaps the middle segment of two selected parents.
type TwoPointCrossover[C TwoPointCrossoverable[C]] struct {
	Selection Selection
}

func NewTwoPointCrossover[C TwoPointCrossoverable[C]](selection Selection) *TwoPointCrossover[C] {
	if selection == nil {
		panic("evo: crossover requires a selection")
	}
	return &TwoPointCrossover[C]{Selection: selection}
}

func (o *TwoPointCrossover[C]) Name() string {
	return "two_point_crossover(" + o.Selection.Name() + ")"
}

func (o *TwoPointCrossover[C]) Apply(gen entropy.Generator, pool *MatingPool[C]) {
	requireReproducing(pool, o.Name())
	selected := selectExactly(gen, o.Selection, pool, 2)
	first := pool.At(selected[0]).Chromosome
	second := pool.At(selected[1]).Chromosome
	childA, childB := first.TwoPointCrossover(gen, second)
	pool.AddOffspring(NewIndividual(childA))
	pool.AddOffspring(NewIndividual(childB))
}

func selectExactly[C any](gen entropy.Generator, selection Selection, pool *MatingPool[C], k int) []int {
	selected := selection.Select(gen, pool, k)
	if len(selected) != k {
		panic(fmt.Sprintf("evo: selection %s returned %d indices, want %d", selection.Name(), len(selected), k))
	}
	return selected
}

func requireReproducing[C any](pool *MatingPool[C], operator string) {
	if !pool.Reproducing() {
		panic(fmt.Sprintf("evo: operator %s applied outside the reproducing state", operator))
	}
}
