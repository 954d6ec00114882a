package evo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revolver/internal/entropy"
)

func bitConfig(seed uint32, generations int) Config[bitGenome] {
	fill := NewPipeline[bitGenome]().ThenNode(
		NewChanceNode[bitGenome]().
			Branch(NewReproduction[bitGenome](RouletteSelection{}, 1), 0.5).
			Branch(NewMutation[bitGenome](TournamentSelection{Order: 3}), 0.3).
			Branch(NewOnePointCrossover[bitGenome](RankSelection{}), 0.2),
	)
	return Config[bitGenome]{
		Generator:      entropy.NewMersenneTwister(seed),
		Factory:        randomBitGenome(12),
		PopulationSize: 30,
		Setup:          NewPipeline[bitGenome]().Then(NewElitism[bitGenome](1)),
		Fill:           fill,
		Evaluator:      NewSequentialEvaluator[bitGenome](EvaluatorFunc[bitGenome](countOnes)),
		Termination:    MaxGenerations[bitGenome](generations),
		Fingerprint:    func(g bitGenome) string { return fmt.Sprint([]int(g)) },
	}
}

func TestNewAlgorithmValidatesConfig(t *testing.T) {
	valid := bitConfig(1, 5)
	mutations := map[string]func(*Config[bitGenome]){
		"generator":   func(c *Config[bitGenome]) { c.Generator = nil },
		"factory":     func(c *Config[bitGenome]) { c.Factory = nil },
		"population":  func(c *Config[bitGenome]) { c.PopulationSize = 0 },
		"fill":        func(c *Config[bitGenome]) { c.Fill = nil },
		"empty fill":  func(c *Config[bitGenome]) { c.Fill = NewPipeline[bitGenome]() },
		"evaluator":   func(c *Config[bitGenome]) { c.Evaluator = nil },
		"termination": func(c *Config[bitGenome]) { c.Termination = nil },
	}
	for name, mutate := range mutations {
		cfg := valid
		mutate(&cfg)
		if _, err := NewAlgorithm(cfg); err == nil {
			t.Fatalf("expected %s validation error", name)
		}
	}
	if _, err := NewAlgorithm(valid); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestAlgorithmElitismKeepsBestFitnessMonotone(t *testing.T) {
	cfg := bitConfig(4242, 40)
	var best []float64
	cfg.Hooks.GenerationAdvanced = func(_ context.Context, pool *MatingPool[bitGenome]) {
		best = append(best, pool.BestFitness())
	}
	algorithm, err := NewAlgorithm(cfg)
	require.NoError(t, err)
	require.NoError(t, algorithm.Run(context.Background()))

	require.Len(t, best, 40)
	for i := 1; i < len(best); i++ {
		require.GreaterOrEqual(t, best[i], best[i-1], "generation %d regressed", i+1)
	}
	assert.Equal(t, 40, algorithm.Pool().Generation())
	assert.GreaterOrEqual(t, algorithm.Pool().Size(), 30)

	history := algorithm.History()
	require.Len(t, history, 40)
	assert.Equal(t, 1, history[0].Generation)
	assert.Equal(t, 30, history[0].Evaluations)
	assert.Equal(t, best[len(best)-1], history[len(history)-1].Best)
	assert.Positive(t, history[0].Distinct)
	assert.Equal(t, history[len(history)-1].Evaluations, algorithm.Evaluations())
}

func TestAlgorithmIsDeterministicForSeed(t *testing.T) {
	run := func() []GenerationStats {
		algorithm, err := NewAlgorithm(bitConfig(99, 15))
		require.NoError(t, err)
		require.NoError(t, algorithm.Run(context.Background()))
		return algorithm.History()
	}
	assert.Equal(t, run(), run())
}

func TestAlgorithmToleratesEmptyFillPasses(t *testing.T) {
	idle := OperatorFunc[bitGenome]{Label: "idle", Fn: func(entropy.Generator, *MatingPool[bitGenome]) {}}
	cfg := bitConfig(11, 5)
	cfg.PopulationSize = 20
	cfg.Fill = NewPipeline[bitGenome]().ThenNode(
		NewChanceNode[bitGenome]().
			Branch(NewReproduction[bitGenome](RandomSelection{}, 1), 0.5).
			Branch(idle, 0.5),
	)
	algorithm, err := NewAlgorithm(cfg)
	require.NoError(t, err)
	require.NotPanics(t, func() {
		require.NoError(t, algorithm.Run(context.Background()))
	})
	assert.GreaterOrEqual(t, algorithm.Pool().Size(), 20)
	assert.GreaterOrEqual(t, algorithm.Pool().Generation(), 5)
}

func TestAlgorithmPanicsOnBarrenFill(t *testing.T) {
	idle := OperatorFunc[bitGenome]{Label: "idle", Fn: func(entropy.Generator, *MatingPool[bitGenome]) {}}
	cfg := bitConfig(11, 2)
	cfg.Fill = NewPipeline[bitGenome]().Then(idle)
	algorithm, err := NewAlgorithm(cfg)
	require.NoError(t, err)
	assert.Panics(t, func() { _ = algorithm.Run(context.Background()) })
}

func TestAlgorithmRunsOnlyOnce(t *testing.T) {
	algorithm, err := NewAlgorithm(bitConfig(1, 2))
	require.NoError(t, err)
	require.NoError(t, algorithm.Run(context.Background()))
	require.ErrorIs(t, algorithm.Run(context.Background()), ErrAlreadyRun)
}

func TestAlgorithmHookOrder(t *testing.T) {
	cfg := bitConfig(1, 2)
	var events []string
	record := func(name string) func(context.Context, *MatingPool[bitGenome]) {
		return func(context.Context, *MatingPool[bitGenome]) { events = append(events, name) }
	}
	var individuals int
	cfg.Hooks = Hooks[bitGenome]{
		RunStarted:         record("start"),
		RunFinished:        record("finish"),
		GenerationAdvanced: record("generation"),
		EvaluationStarted:  record("eval"),
		EvaluationFinished: func(context.Context, *MatingPool[bitGenome], int) {
			events = append(events, "evaluated")
		},
		IndividualEvaluated: func(context.Context, *MatingPool[bitGenome], int) { individuals++ },
	}
	algorithm, err := NewAlgorithm(cfg)
	require.NoError(t, err)
	require.NoError(t, algorithm.Run(context.Background()))

	assert.Equal(t, []string{
		"start",
		"eval", "evaluated", "generation",
		"eval", "evaluated", "generation",
		"finish",
	}, events)
	assert.GreaterOrEqual(t, individuals, 60)
}

func TestAlgorithmPropagatesEvaluatorError(t *testing.T) {
	boom := errors.New("fitness backend unavailable")
	cfg := bitConfig(1, 10)
	calls := 0
	cfg.Evaluator = NewSequentialEvaluator[bitGenome](EvaluatorFunc[bitGenome](func(context.Context, bitGenome) (float64, error) {
		calls++
		if calls > 40 {
			return 0, boom
		}
		return 1, nil
	}))
	var finished, aborted bool
	cfg.Hooks.RunFinished = func(context.Context, *MatingPool[bitGenome]) { finished = true }
	cfg.Hooks.RunAborted = func(_ context.Context, _ *MatingPool[bitGenome], err error) {
		aborted = errors.Is(err, boom)
	}

	algorithm, err := NewAlgorithm(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, algorithm.Run(context.Background()), boom)
	assert.False(t, finished)
	assert.True(t, aborted)
}

func TestAlgorithmStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := bitConfig(1, 1000)
	cfg.Hooks.GenerationAdvanced = func(_ context.Context, pool *MatingPool[bitGenome]) {
		if pool.Generation() == 3 {
			cancel()
		}
	}
	algorithm, err := NewAlgorithm(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, algorithm.Run(ctx), context.Canceled)
	assert.Equal(t, 3, algorithm.Pool().Generation())
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := bitConfig(1, 2)
	cfg.Hooks = ChainHooks(LoggingHooks[bitGenome](logger), Hooks[bitGenome]{})
	algorithm, err := NewAlgorithm(cfg)
	require.NoError(t, err)
	require.NoError(t, algorithm.Run(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "msg=\"run started\"")
	assert.Contains(t, out, "msg=\"generation advanced\" generation=2")
	assert.Contains(t, out, "msg=\"evaluation finished\"")
	assert.Contains(t, out, "msg=\"run finished\"")
	assert.Equal(t, 2, strings.Count(out, "generation advanced"))
}
