package evo

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Evaluator assigns a fitness to every unscored individual of the pool's
// current generation. onEvaluated is called once per index, including
// individuals that were already scored, and always from the caller's
// goroutine.
type Evaluator[C any] interface {
	Evaluate(ctx context.Context, pool *MatingPool[C], onEvaluated func(index int)) error
}

// ChromosomeEvaluator scores a single chromosome. Higher is better.
type ChromosomeEvaluator[C any] interface {
	EvaluateChromosome(ctx context.Context, chromosome C) (float64, error)
}

type EvaluatorFunc[C any] func(ctx context.Context, chromosome C) (float64, error)

func (f EvaluatorFunc[C]) EvaluateChromosome(ctx context.Context, chromosome C) (float64, error) {
	return f(ctx, chromosome)
}

// SequentialEvaluator scores individuals one after another in index order.
type SequentialEvaluator[C any] struct {
	Chromosome ChromosomeEvaluator[C]
}

func NewSequentialEvaluator[C any](evaluator ChromosomeEvaluator[C]) *SequentialEvaluator[C] {
	return &SequentialEvaluator[C]{Chromosome: evaluator}
}

func (e *SequentialEvaluator[C]) Evaluate(ctx context.Context, pool *MatingPool[C], onEvaluated func(index int)) error {
	if e.Chromosome == nil {
		return errors.New("sequential evaluator requires a chromosome evaluator")
	}
	for i := 0; i < pool.Size(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := scoreIndividual(ctx, e.Chromosome, pool, i); err != nil {
			return err
		}
		if onEvaluated != nil {
			onEvaluated(i)
		}
	}
	return nil
}

func scoreIndividual[C any](ctx context.Context, evaluator ChromosomeEvaluator[C], pool *MatingPool[C], index int) error {
	individual := pool.population[index]
	if individual.scored {
		return nil
	}
	fitness, err := evaluator.EvaluateChromosome(ctx, individual.Chromosome)
	if err != nil {
		return fmt.Errorf("evaluate individual %d: %w", index, err)
	}
	pool.setFitness(index, fitness)
	return nil
}

// CyclicEvaluator scores a chromosome several times and averages the best
// (or, with UseWorst, the worst) Select results. It suits noisy fitness
// functions.
type CyclicEvaluator[C any] struct {
	Inner    ChromosomeEvaluator[C]
	Attempts int
	Select   int
	UseWorst bool
}

func NewCyclicEvaluator[C any](inner ChromosomeEvaluator[C], attempts, selected int, useWorst bool) (*CyclicEvaluator[C], error) {
	if inner == nil {
		return nil, errors.New("cyclic evaluator requires an inner evaluator")
	}
	if attempts <= 0 {
		return nil, fmt.Errorf("cyclic evaluator attempts must be > 0, got %d", attempts)
	}
	if selected <= 0 || selected > attempts {
		return nil, fmt.Errorf("cyclic evaluator select must be in [1,%d], got %d", attempts, selected)
	}
	return &CyclicEvaluator[C]{Inner: inner, Attempts: attempts, Select: selected, UseWorst: useWorst}, nil
}

func (e *CyclicEvaluator[C]) EvaluateChromosome(ctx context.Context, chromosome C) (float64, error) {
	results := make([]float64, 0, e.Attempts)
	for attempt := 0; attempt < e.Attempts; attempt++ {
		fitness, err := e.Inner.EvaluateChromosome(ctx, chromosome)
		if err != nil {
			return 0, fmt.Errorf("attempt %d: %w", attempt, err)
		}
		results = append(results, fitness)
	}
	if e.UseWorst {
		sort.Float64s(results)
	} else {
		sort.Sort(sort.Reverse(sort.Float64Slice(results)))
	}
	sum := 0.0
	for _, fitness := range results[:e.Select] {
		sum += fitness
	}
	return sum / float64(e.Select), nil
}
