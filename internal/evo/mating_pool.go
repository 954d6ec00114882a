package evo

import (
	"fmt"
	"sort"
)

// FitnessView is the read-only slice of a population that selection
// strategies work on.
type FitnessView interface {
	Size() int
	FitnessAt(index int) float64
	FitnessSum() float64
	// RankedIndex maps a rank (0 = worst) onto a population index.
	RankedIndex(rank int) int
}

// MatingPool owns the current generation and, while reproducing, the next
// generation being assembled.
//
// The pool is Stable until BeginReproduction and Reproducing until either
// CancelReproduction or AdvanceGeneration. Staging methods panic outside the
// Reproducing state. Statistics always describe the current generation and
// are computed at most once per generation.
type MatingPool[C any] struct {
	population  []Individual[C]
	staging     []Individual[C]
	reproducing bool
	generation  int

	sorted      []int
	fitnessSum  *float64
	bestFitness *float64
}

func NewMatingPool[C any]() *MatingPool[C] {
	return &MatingPool[C]{}
}

// NewMatingPoolWith starts a pool whose current generation is the given
// individuals, e.g. a restored snapshot.
func NewMatingPoolWith[C any](individuals ...Individual[C]) *MatingPool[C] {
	population := make([]Individual[C], len(individuals))
	copy(population, individuals)
	return &MatingPool[C]{population: population}
}

func (p *MatingPool[C]) Generation() int {
	return p.generation
}

func (p *MatingPool[C]) Reproducing() bool {
	return p.reproducing
}

func (p *MatingPool[C]) Size() int {
	return len(p.population)
}

// At returns the individual at index in the current generation.
func (p *MatingPool[C]) At(index int) Individual[C] {
	return p.population[index]
}

// Population returns a copy of the current generation.
func (p *MatingPool[C]) Population() []Individual[C] {
	out := make([]Individual[C], len(p.population))
	copy(out, p.population)
	return out
}

func (p *MatingPool[C]) FitnessAt(index int) float64 {
	return p.population[index].MustFitness()
}

func (p *MatingPool[C]) BeginReproduction() {
	if p.reproducing {
		panic("evo: BeginReproduction called while already reproducing")
	}
	p.staging = make([]Individual[C], 0, len(p.population))
	p.reproducing = true
}

func (p *MatingPool[C]) CancelReproduction() {
	p.mustReproduce("CancelReproduction")
	p.staging = nil
	p.reproducing = false
}

// AdvanceGeneration promotes the staged offspring to the current generation.
func (p *MatingPool[C]) AdvanceGeneration() {
	p.mustReproduce("AdvanceGeneration")
	p.population = p.staging
	p.staging = nil
	p.reproducing = false
	p.generation++

	p.sorted = nil
	p.fitnessSum = nil
	p.bestFitness = nil
}

func (p *MatingPool[C]) AddOffspring(individual Individual[C]) {
	p.mustReproduce("AddOffspring")
	p.staging = append(p.staging, individual)
}

func (p *MatingPool[C]) OffspringAt(index int) Individual[C] {
	p.mustReproduce("OffspringAt")
	return p.staging[index]
}

func (p *MatingPool[C]) RemoveOffspringAt(index int) {
	p.mustReproduce("RemoveOffspringAt")
	p.staging = append(p.staging[:index], p.staging[index+1:]...)
}

func (p *MatingPool[C]) OffspringSize() int {
	p.mustReproduce("OffspringSize")
	return len(p.staging)
}

// SortedIndices returns population indices ordered by ascending fitness,
// ties kept in index order.
func (p *MatingPool[C]) SortedIndices() []int {
	sorted := p.sortedIndices()
	out := make([]int, len(sorted))
	copy(out, sorted)
	return out
}

func (p *MatingPool[C]) RankedIndex(rank int) int {
	return p.sortedIndices()[rank]
}

func (p *MatingPool[C]) FitnessSum() float64 {
	if p.fitnessSum == nil {
		sum := 0.0
		for i := range p.population {
			sum += p.population[i].MustFitness()
		}
		p.fitnessSum = &sum
	}
	return *p.fitnessSum
}

func (p *MatingPool[C]) AverageFitness() float64 {
	if len(p.population) == 0 {
		return 0
	}
	return p.FitnessSum() / float64(len(p.population))
}

func (p *MatingPool[C]) BestFitness() float64 {
	if p.bestFitness == nil {
		if len(p.population) == 0 {
			return 0
		}
		best := p.population[0].MustFitness()
		for i := 1; i < len(p.population); i++ {
			if f := p.population[i].MustFitness(); f > best {
				best = f
			}
		}
		p.bestFitness = &best
	}
	return *p.bestFitness
}

func (p *MatingPool[C]) WorstFitness() float64 {
	if len(p.population) == 0 {
		return 0
	}
	return p.population[p.sortedIndices()[0]].MustFitness()
}

// BestIndividual returns the lowest-indexed individual with the best fitness.
func (p *MatingPool[C]) BestIndividual() (Individual[C], bool) {
	if len(p.population) == 0 {
		return Individual[C]{}, false
	}
	best := p.BestFitness()
	for i := range p.population {
		if p.population[i].MustFitness() == best {
			return p.population[i], true
		}
	}
	return Individual[C]{}, false
}

// WorstIndividual returns the lowest-indexed individual with the worst fitness.
func (p *MatingPool[C]) WorstIndividual() (Individual[C], bool) {
	if len(p.population) == 0 {
		return Individual[C]{}, false
	}
	return p.population[p.sortedIndices()[0]], true
}

func (p *MatingPool[C]) sortedIndices() []int {
	if p.sorted == nil {
		indices := make([]int, len(p.population))
		fitness := make([]float64, len(p.population))
		for i := range indices {
			indices[i] = i
			fitness[i] = p.population[i].MustFitness()
		}
		sort.SliceStable(indices, func(a, b int) bool {
			return fitness[indices[a]] < fitness[indices[b]]
		})
		p.sorted = indices
	}
	return p.sorted
}

func (p *MatingPool[C]) setFitness(index int, fitness float64) {
	p.population[index].fitness = fitness
	p.population[index].scored = true
}

func (p *MatingPool[C]) mustReproduce(method string) {
	if !p.reproducing {
		panic(fmt.Sprintf("evo: %s requires the reproducing state", method))
	}
}
