package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"revolver/internal/evo"
	"revolver/internal/problem"
	"revolver/internal/stats"
)

type BenchmarkConfig struct {
	// ID defaults to a fresh UUID.
	ID      string
	Problem string
	Notes   string
	// Settings apply to every run; run i uses seed Settings.Seed+i, starting
	// from the problem's default seed when Settings.Seed is zero.
	Settings problem.Settings
	Runs     int
	// OnRun is called after each run finishes.
	OnRun func(index int, run stats.BenchmarkRun)
	// OnGeneration is forwarded to every run.
	OnGeneration func(index int, stats evo.GenerationStats)
}

// Benchmark repeats a problem over consecutive seeds and aggregates how
// reliably and how quickly it solves.
func (c *Coordinator) Benchmark(ctx context.Context, cfg BenchmarkConfig) (stats.BenchmarkExperiment, error) {
	if cfg.Runs <= 0 {
		return stats.BenchmarkExperiment{}, fmt.Errorf("benchmark runs must be > 0")
	}
	p, err := problem.Resolve(cfg.Problem)
	if err != nil {
		return stats.BenchmarkExperiment{}, err
	}
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	base := cfg.Settings.WithDefaults(p.Defaults())
	encoded, err := json.Marshal(base)
	if err != nil {
		return stats.BenchmarkExperiment{}, fmt.Errorf("encode settings: %w", err)
	}

	exp := stats.BenchmarkExperiment{
		ID:           id,
		Problem:      p.Name(),
		Notes:        cfg.Notes,
		StartedAtUTC: c.now().UTC().Format(time.RFC3339Nano),
		Settings:     encoded,
		Runs:         make([]stats.BenchmarkRun, 0, cfg.Runs),
	}
	for i := 0; i < cfg.Runs; i++ {
		settings := base
		settings.Seed = base.Seed + uint32(i)
		runCfg := RunConfig{Problem: p.Name(), Settings: settings}
		if cfg.OnGeneration != nil {
			index := i
			runCfg.OnGeneration = func(s evo.GenerationStats) { cfg.OnGeneration(index, s) }
		}
		out, err := c.Run(ctx, runCfg)
		if err != nil {
			return stats.BenchmarkExperiment{}, fmt.Errorf("benchmark run %d: %w", i, err)
		}
		run := stats.BenchmarkRun{
			RunID:       out.Record.ID,
			Seed:        out.Record.Seed,
			Generations: out.Record.Generations,
			Evaluations: out.Record.Evaluations,
			Success:     out.Record.Solved,
			FinalBest:   out.Record.BestFitness,
		}
		exp.Runs = append(exp.Runs, run)
		if cfg.OnRun != nil {
			cfg.OnRun(i, run)
		}
	}
	exp.CompletedAtUTC = c.now().UTC().Format(time.RFC3339Nano)
	exp.Stats = stats.BuildBenchmarkStats(exp.Runs)

	if c.artifactsDir != "" {
		if _, err := stats.WriteBenchmarkExperiment(c.artifactsDir, exp); err != nil {
			return stats.BenchmarkExperiment{}, fmt.Errorf("write benchmark %s: %w", id, err)
		}
	}
	c.logger.Info("benchmark finished",
		"benchmark_id", id,
		"problem", p.Name(),
		"runs", exp.Stats.TotalRuns,
		"success_rate", exp.Stats.SuccessRate,
	)
	return exp, nil
}
