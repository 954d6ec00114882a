package evo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revolver/internal/entropy"
)

func TestSelectionsAreUniformForEqualFitness(t *testing.T) {
	const (
		size  = 10
		draws = 100000
	)
	fitness := make([]float64, size)
	for i := range fitness {
		fitness[i] = 0.5
	}
	pool := scoredPool(fitness...)
	expected := float64(draws) / size

	for _, selection := range []Selection{RandomSelection{}, RouletteSelection{}, RankSelection{}} {
		t.Run(selection.Name(), func(t *testing.T) {
			counts := countSelections(selection, entropy.NewMersenneTwister(4242), pool, draws)
			for i, count := range counts {
				assert.InDelta(t, expected, float64(count), expected*0.1, "index %d", i)
			}
		})
	}
}

func TestRouletteZeroSumFallsBackToUniform(t *testing.T) {
	pool := scoredPool(0, 0, 0, 0)
	counts := countSelections(RouletteSelection{}, entropy.NewMersenneTwister(7), pool, 40000)
	for i, count := range counts {
		assert.InDelta(t, 10000, count, 1000, "index %d", i)
	}
}

func TestRouletteFavorsFitness(t *testing.T) {
	pool := scoredPool(1, 3)
	counts := countSelections(RouletteSelection{}, entropy.NewMersenneTwister(11), pool, 40000)
	assert.InDelta(t, 10000, counts[0], 1000)
	assert.InDelta(t, 30000, counts[1], 1000)
}

func TestRouletteIntervals(t *testing.T) {
	pool := scoredPool(1, 2, 3)
	// Sum is 6: [0,1) -> 0, [1,3) -> 1, [3,6) -> 2.
	cases := []struct {
		draw float64
		want int
	}{
		{0, 0},
		{0.999, 0},
		{1, 1},
		{2.999, 1},
		{3, 2},
		{6, 2},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, rouletteIndex(tc.draw, pool), "draw %v", tc.draw)
	}
}

func TestRankSelectionWeightsByRank(t *testing.T) {
	// Ranked ascending: index 2 (r=1), index 0 (r=2), index 1 (r=3).
	pool := scoredPool(0.5, 0.9, 0.1)
	assert.Equal(t, 2, rankIndex(0.5, pool))
	assert.Equal(t, 0, rankIndex(1, pool))
	assert.Equal(t, 1, rankIndex(3, pool))
	assert.Equal(t, 1, rankIndex(6, pool), "a draw equal to the weight sum lands on the best")

	counts := countSelections(RankSelection{}, entropy.NewMersenneTwister(3), pool, 60000)
	assert.InDelta(t, 10000, counts[2], 1000)
	assert.InDelta(t, 20000, counts[0], 1000)
	assert.InDelta(t, 30000, counts[1], 1000)
}

func TestTournamentSelection(t *testing.T) {
	pool := scoredPool(0.1, 0.4, 0.9, 0.4)

	// Contestants drawn from sequence values map to indices 1, 3, 2, 0.
	gen := &sequence{values: []float64{0.3, 0.8, 0.6, 0.1}}
	got := TournamentSelection{Order: 4}.Select(gen, pool, 1)
	assert.Equal(t, []int{2}, got)

	// Tied contestants resolve to the first drawn.
	gen = &sequence{values: []float64{0.8, 0.3}}
	got = TournamentSelection{Order: 2}.Select(gen, pool, 1)
	assert.Equal(t, []int{3}, got)

	// Order larger than the population is clamped.
	got = TournamentSelection{Order: 50}.Select(entropy.NewMersenneTwister(1), pool, 2)
	assert.Len(t, got, 2)

	assert.Panics(t, func() { TournamentSelection{}.Select(entropy.NewMersenneTwister(1), pool, 1) })
}

func TestBestAndWorstSelection(t *testing.T) {
	pool := scoredPool(0.3, 0.9, 0.1, 0.7)
	gen := entropy.NewMersenneTwister(1)

	assert.Equal(t, []int{3, 1}, BestSelection{}.Select(gen, pool, 2))
	assert.Equal(t, []int{2, 0}, WorstSelection{}.Select(gen, pool, 2))
	assert.Empty(t, BestSelection{}.Select(gen, pool, 0))
}

func TestSelectionSizeViolationsPanic(t *testing.T) {
	pool := scoredPool(0.3, 0.9)
	gen := entropy.NewMersenneTwister(1)
	for _, selection := range []Selection{
		RandomSelection{}, RouletteSelection{}, RankSelection{},
		TournamentSelection{Order: 2}, BestSelection{}, WorstSelection{},
	} {
		require.Panics(t, func() { selection.Select(gen, pool, 3) }, selection.Name())
		require.Panics(t, func() { selection.Select(gen, pool, -1) }, selection.Name())
	}
	require.Panics(t, func() { RandomSelection{}.Select(gen, NewMatingPool[int](), 1) })
}
