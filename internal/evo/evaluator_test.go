package evo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revolver/internal/entropy"
)

func unscoredBitPool(gen entropy.Generator, size, length int) *MatingPool[bitGenome] {
	factory := randomBitGenome(length)
	individuals := make([]Individual[bitGenome], size)
	for i := range individuals {
		individuals[i] = NewIndividual(factory(gen))
	}
	return NewMatingPoolWith(individuals...)
}

func fitnessValues[C any](pool *MatingPool[C]) []float64 {
	out := make([]float64, pool.Size())
	for i := range out {
		out[i] = pool.FitnessAt(i)
	}
	return out
}

func TestSequentialEvaluatorScoresInOrder(t *testing.T) {
	pool := unscoredBitPool(entropy.NewMersenneTwister(1), 8, 10)
	var order []int
	err := NewSequentialEvaluator[bitGenome](EvaluatorFunc[bitGenome](countOnes)).
		Evaluate(context.Background(), pool, func(i int) { order = append(order, i) })
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
	for i := 0; i < pool.Size(); i++ {
		assert.Equal(t, float64(pool.At(i).Chromosome.ones())/10, pool.FitnessAt(i))
	}
}

func TestSequentialEvaluatorSkipsScoredIndividuals(t *testing.T) {
	pool := NewMatingPoolWith(ScoredIndividual(bitGenome{1, 1}, 42), NewIndividual(bitGenome{1, 0}))
	var calls int
	evaluator := EvaluatorFunc[bitGenome](func(ctx context.Context, g bitGenome) (float64, error) {
		calls++
		return countOnes(ctx, g)
	})
	var reported []int
	require.NoError(t, NewSequentialEvaluator[bitGenome](evaluator).
		Evaluate(context.Background(), pool, func(i int) { reported = append(reported, i) }))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{0, 1}, reported)
	assert.Equal(t, []float64{42, 0.5}, fitnessValues(pool))
}

func TestParallelEvaluatorMatchesSequential(t *testing.T) {
	for _, lanes := range []int{1, 3, 8, 64} {
		sequential := unscoredBitPool(entropy.NewMersenneTwister(77), 100, 16)
		parallel := unscoredBitPool(entropy.NewMersenneTwister(77), 100, 16)

		require.NoError(t, NewSequentialEvaluator[bitGenome](EvaluatorFunc[bitGenome](countOnes)).
			Evaluate(context.Background(), sequential, nil))

		seen := make(map[int]int)
		err := NewParallelEvaluator(lanes, SharedLanes[bitGenome](EvaluatorFunc[bitGenome](countOnes))).
			Evaluate(context.Background(), parallel, func(i int) { seen[i]++ })
		require.NoError(t, err, "lanes=%d", lanes)

		assert.Equal(t, fitnessValues(sequential), fitnessValues(parallel), "lanes=%d", lanes)
		assert.Len(t, seen, 100)
		for i, n := range seen {
			assert.Equal(t, 1, n, "index %d reported %d times", i, n)
		}
	}
}

func TestParallelEvaluatorBuildsOneEvaluatorPerLane(t *testing.T) {
	pool := unscoredBitPool(entropy.NewMersenneTwister(3), 20, 4)
	var built atomic.Int32
	evaluator := NewParallelEvaluator(4, func(int) ChromosomeEvaluator[bitGenome] {
		built.Add(1)
		return EvaluatorFunc[bitGenome](countOnes)
	})
	require.NoError(t, evaluator.Evaluate(context.Background(), pool, nil))
	assert.Equal(t, int32(4), built.Load())

	// Lanes never outnumber individuals.
	small := unscoredBitPool(entropy.NewMersenneTwister(3), 2, 4)
	built.Store(0)
	require.NoError(t, evaluator.Evaluate(context.Background(), small, nil))
	assert.Equal(t, int32(2), built.Load())
}

func TestEvaluatorErrorsPropagate(t *testing.T) {
	boom := errors.New("simulator crashed")
	failing := EvaluatorFunc[bitGenome](func(_ context.Context, g bitGenome) (float64, error) {
		if g.ones() == 0 {
			return 0, boom
		}
		return 1, nil
	})
	pool := func() *MatingPool[bitGenome] {
		return NewMatingPoolWith(NewIndividual(bitGenome{1}), NewIndividual(bitGenome{0}), NewIndividual(bitGenome{1}))
	}

	err := NewSequentialEvaluator[bitGenome](failing).Evaluate(context.Background(), pool(), nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "evaluate individual 1")

	err = NewParallelEvaluator(2, SharedLanes[bitGenome](failing)).Evaluate(context.Background(), pool(), nil)
	require.ErrorIs(t, err, boom)
}

func TestEvaluatorsHonorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool := unscoredBitPool(entropy.NewMersenneTwister(1), 10, 4)

	err := NewSequentialEvaluator[bitGenome](EvaluatorFunc[bitGenome](countOnes)).Evaluate(ctx, pool, nil)
	require.ErrorIs(t, err, context.Canceled)

	err = NewParallelEvaluator(2, SharedLanes[bitGenome](EvaluatorFunc[bitGenome](countOnes))).Evaluate(ctx, pool, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCyclicEvaluatorAveragesSelectedAttempts(t *testing.T) {
	var attempt int
	noisy := EvaluatorFunc[int](func(context.Context, int) (float64, error) {
		attempt++
		return []float64{3, 9, 1, 7, 5}[(attempt-1)%5], nil
	})

	best, err := NewCyclicEvaluator[int](noisy, 5, 2, false)
	require.NoError(t, err)
	got, err := best.EvaluateChromosome(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)

	worst, err := NewCyclicEvaluator[int](noisy, 5, 3, true)
	require.NoError(t, err)
	got, err = worst.EvaluateChromosome(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	_, err = NewCyclicEvaluator[int](noisy, 2, 3, false)
	require.Error(t, err)
	_, err = NewCyclicEvaluator[int](noisy, 0, 0, false)
	require.Error(t, err)
	_, err = NewCyclicEvaluator[int](nil, 1, 1, false)
	require.Error(t, err)
}
