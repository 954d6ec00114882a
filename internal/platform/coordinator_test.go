package platform

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revolver/internal/evo"
	"revolver/internal/model"
	"revolver/internal/problem"
	"revolver/internal/stats"
	"revolver/internal/storage"
)

func newTestCoordinator(t *testing.T, artifactsDir string) *Coordinator {
	t.Helper()
	var tick atomic.Int64
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	c := NewCoordinator(Config{
		Store:        storage.NewMemoryStore(),
		ArtifactsDir: artifactsDir,
		Now: func() time.Time {
			return start.Add(time.Duration(tick.Add(1)) * time.Second)
		},
	})
	require.NoError(t, c.Init(context.Background()))
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

// endless never reaches its fitness goal, so only cancellation or the
// generation cap stop it.
var endless = problem.Settings{Population: 20, Length: 32, FitnessGoal: 2, MaxGenerations: 500}

func TestRunPersistsEverything(t *testing.T) {
	ctx := context.Background()
	artifactsDir := t.TempDir()
	c := newTestCoordinator(t, artifactsDir)

	var generations int
	out, err := c.Run(ctx, RunConfig{
		RunID:        "run-1",
		Problem:      "maxone",
		OnGeneration: func(evo.GenerationStats) { generations++ },
	})
	require.NoError(t, err)

	record := out.Record
	assert.Equal(t, "run-1", record.ID)
	assert.Equal(t, "maxone", record.Problem)
	assert.Equal(t, model.RunStatusCompleted, record.Status)
	assert.True(t, record.Solved)
	assert.Equal(t, "1111111111", record.BestDisplay)
	assert.Equal(t, uint32(4242), record.Seed)
	assert.Equal(t, out.Result.Generations, record.Generations)
	assert.Equal(t, generations, record.Generations)
	assert.True(t, record.FinishedAt.After(record.StartedAt))

	store := c.Store()
	stored, ok, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record.BestFitness, stored.BestFitness)
	assert.JSONEq(t, string(record.Settings), string(stored.Settings))

	history, ok, err := store.GetFitnessHistory(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, history, record.Generations)
	assert.Equal(t, 1.0, history[len(history)-1])

	diagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, diagnostics, record.Generations)
	assert.Equal(t, 1, diagnostics[0].Generation)
	assert.Equal(t, record.Evaluations, diagnostics[len(diagnostics)-1].Evaluations)

	snapshot, ok, err := store.GetPopulation(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, snapshot.Individuals, 200)
	assert.Equal(t, 1, snapshot.Individuals[0].Rank)
	assert.Equal(t, "1111111111", snapshot.Individuals[0].Display)

	require.Equal(t, filepath.Join(artifactsDir, "run-1"), out.ArtifactsDir)
	top, ok, err := stats.ReadTopIndividuals(artifactsDir, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, top, topIndividualCount)
	series, ok, err := stats.ReadFitnessHistory(artifactsDir, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, history, series)

	index, err := stats.ListRunIndex(artifactsDir)
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, "run-1", index[0].RunID)
	assert.True(t, index[0].Solved)
	assert.Empty(t, c.ActiveRuns())
}

func TestRunGeneratesRunID(t *testing.T) {
	c := newTestCoordinator(t, "")
	out, err := c.Run(context.Background(), RunConfig{
		Problem:  "knapsack",
		Settings: problem.Settings{MaxGenerations: 3},
	})
	require.NoError(t, err)
	assert.Len(t, out.Record.ID, 36)
	assert.Empty(t, out.ArtifactsDir)

	runs, err := c.Store().ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, out.Record.ID, runs[0].ID)
}

func TestRunRequiresInit(t *testing.T) {
	c := NewCoordinator(Config{Store: storage.NewMemoryStore()})
	_, err := c.Run(context.Background(), RunConfig{Problem: "maxone"})
	require.ErrorIs(t, err, ErrNotInitialized)

	require.Error(t, NewCoordinator(Config{}).Init(context.Background()))
}

func TestRunUnknownProblem(t *testing.T) {
	c := newTestCoordinator(t, "")
	_, err := c.Run(context.Background(), RunConfig{Problem: "tsp"})
	require.ErrorIs(t, err, problem.ErrProblemNotFound)
}

func TestCancelledRunIsRecordedAsAborted(t *testing.T) {
	c := newTestCoordinator(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := c.Run(ctx, RunConfig{RunID: "run-cancelled", Problem: "maxone", Settings: endless})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.RunStatusAborted, out.Record.Status)

	stored, ok, err := c.Store().GetRun(context.Background(), "run-cancelled")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.RunStatusAborted, stored.Status)
	assert.Contains(t, stored.Error, "context canceled")

	_, ok, err = c.Store().GetPopulation(context.Background(), "run-cancelled")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStopRunCancelsActiveRun(t *testing.T) {
	c := newTestCoordinator(t, "")
	var active []string
	_, err := c.Run(context.Background(), RunConfig{
		RunID:    "run-stop",
		Problem:  "maxone",
		Settings: endless,
		OnGeneration: func(s evo.GenerationStats) {
			if s.Generation == 3 {
				active = c.ActiveRuns()
				require.NoError(t, c.StopRun("run-stop"))
			}
		},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"run-stop"}, active)
	assert.Empty(t, c.ActiveRuns())

	require.ErrorIs(t, c.StopRun("run-stop"), ErrRunNotActive)
	require.Error(t, c.StopRun(""))
}

func TestDuplicateActiveRunIsRejected(t *testing.T) {
	c := newTestCoordinator(t, "")
	var nestedErr error
	_, err := c.Run(context.Background(), RunConfig{
		RunID:    "run-dup",
		Problem:  "maxone",
		Settings: problem.Settings{MaxGenerations: 2, Length: 32, FitnessGoal: 2},
		OnGeneration: func(s evo.GenerationStats) {
			if s.Generation == 1 {
				_, nestedErr = c.Run(context.Background(), RunConfig{RunID: "run-dup", Problem: "maxone"})
			}
		},
	})
	require.NoError(t, err)
	require.ErrorIs(t, nestedErr, ErrRunActive)
}

func TestStopCancelsRunsAndClosesStore(t *testing.T) {
	c := newTestCoordinator(t, "")
	_, err := c.Run(context.Background(), RunConfig{
		RunID:    "run-shutdown",
		Problem:  "maxone",
		Settings: endless,
		OnGeneration: func(s evo.GenerationStats) {
			if s.Generation == 2 {
				require.NoError(t, c.Stop())
			}
		},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.Started())
}

func TestBenchmark(t *testing.T) {
	artifactsDir := t.TempDir()
	c := newTestCoordinator(t, artifactsDir)

	var finished []int
	exp, err := c.Benchmark(context.Background(), BenchmarkConfig{
		ID:       "bench-1",
		Problem:  "maxone",
		Settings: problem.Settings{Population: 50, MaxGenerations: 200, Seed: 10},
		Runs:     3,
		OnRun:    func(index int, _ stats.BenchmarkRun) { finished = append(finished, index) },
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, finished)
	require.Len(t, exp.Runs, 3)
	for i, run := range exp.Runs {
		assert.Equal(t, uint32(10+i), run.Seed)
	}
	assert.Equal(t, 3, exp.Stats.TotalRuns)
	assert.Equal(t, exp.Stats.SuccessRuns, countSuccess(exp.Runs))
	assert.NotEmpty(t, exp.StartedAtUTC)
	assert.NotEmpty(t, exp.CompletedAtUTC)

	stored, ok, err := stats.ReadBenchmarkExperiment(artifactsDir, "bench-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, exp.Stats, stored.Stats)

	runs, err := c.Store().ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	_, err = c.Benchmark(context.Background(), BenchmarkConfig{Problem: "maxone"})
	require.Error(t, err)
}

func countSuccess(runs []stats.BenchmarkRun) int {
	n := 0
	for _, run := range runs {
		if run.Success {
			n++
		}
	}
	return n
}

func TestConversions(t *testing.T) {
	history := []evo.GenerationStats{
		{Generation: 1, Size: 2, Best: 0.5, Average: 0.25, Worst: 0, Evaluations: 2, Distinct: 2},
		{Generation: 2, Size: 2, Best: 0.75, Average: 0.5, Worst: 0.25, Evaluations: 3, Distinct: 1},
	}
	assert.Equal(t, []float64{0.5, 0.75}, BestByGeneration(history))
	diagnostics := ToModelDiagnostics(history)
	assert.Equal(t, model.GenerationDiagnostics{
		Generation: 2, Size: 2, BestFitness: 0.75, AverageFitness: 0.5, WorstFitness: 0.25, Evaluations: 3, Distinct: 1,
	}, diagnostics[1])

	records := ToModelIndividuals([]problem.Individual{
		{Chromosome: []byte(`[1]`), Display: "1", Fitness: 1},
		{Chromosome: []byte(`[0]`), Display: "0", Fitness: 0},
	})
	assert.Equal(t, 2, records[1].Rank)
	assert.Equal(t, "[0]", string(records[1].Chromosome))
}
