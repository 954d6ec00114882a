package evo

import (
	"context"
	"log/slog"
)

// Hooks observe a run. Every hook is optional and runs synchronously on the
// goroutine that called Algorithm.Run.
type Hooks[C any] struct {
	RunStarted          func(ctx context.Context, pool *MatingPool[C])
	RunFinished         func(ctx context.Context, pool *MatingPool[C])
	RunAborted          func(ctx context.Context, pool *MatingPool[C], err error)
	GenerationAdvanced  func(ctx context.Context, pool *MatingPool[C])
	EvaluationStarted   func(ctx context.Context, pool *MatingPool[C])
	EvaluationFinished  func(ctx context.Context, pool *MatingPool[C], evaluated int)
	IndividualEvaluated func(ctx context.Context, pool *MatingPool[C], index int)
}

// ChainHooks fans every event out to each of hooks in order.
func ChainHooks[C any](hooks ...Hooks[C]) Hooks[C] {
	return Hooks[C]{
		RunStarted: func(ctx context.Context, pool *MatingPool[C]) {
			for _, h := range hooks {
				if h.RunStarted != nil {
					h.RunStarted(ctx, pool)
				}
			}
		},
		RunFinished: func(ctx context.Context, pool *MatingPool[C]) {
			for _, h := range hooks {
				if h.RunFinished != nil {
					h.RunFinished(ctx, pool)
				}
			}
		},
		RunAborted: func(ctx context.Context, pool *MatingPool[C], err error) {
			for _, h := range hooks {
				if h.RunAborted != nil {
					h.RunAborted(ctx, pool, err)
				}
			}
		},
		GenerationAdvanced: func(ctx context.Context, pool *MatingPool[C]) {
			for _, h := range hooks {
				if h.GenerationAdvanced != nil {
					h.GenerationAdvanced(ctx, pool)
				}
			}
		},
		EvaluationStarted: func(ctx context.Context, pool *MatingPool[C]) {
			for _, h := range hooks {
				if h.EvaluationStarted != nil {
					h.EvaluationStarted(ctx, pool)
				}
			}
		},
		EvaluationFinished: func(ctx context.Context, pool *MatingPool[C], evaluated int) {
			for _, h := range hooks {
				if h.EvaluationFinished != nil {
					h.EvaluationFinished(ctx, pool, evaluated)
				}
			}
		},
		IndividualEvaluated: func(ctx context.Context, pool *MatingPool[C], index int) {
			for _, h := range hooks {
				if h.IndividualEvaluated != nil {
					h.IndividualEvaluated(ctx, pool, index)
				}
			}
		},
	}
}

// LoggingHooks reports run progress on logger, or slog.Default when nil.
func LoggingHooks[C any](logger *slog.Logger) Hooks[C] {
	if logger == nil {
		logger = slog.Default()
	}
	return Hooks[C]{
		RunStarted: func(ctx context.Context, _ *MatingPool[C]) {
			logger.InfoContext(ctx, "run started")
		},
		RunFinished: func(ctx context.Context, pool *MatingPool[C]) {
			logger.InfoContext(ctx, "run finished",
				slog.Int("generation", pool.Generation()),
				slog.Float64("best", pool.BestFitness()),
			)
		},
		RunAborted: func(ctx context.Context, pool *MatingPool[C], err error) {
			logger.WarnContext(ctx, "run aborted",
				slog.Int("generation", pool.Generation()),
				slog.String("error", err.Error()),
			)
		},
		GenerationAdvanced: func(ctx context.Context, pool *MatingPool[C]) {
			logger.InfoContext(ctx, "generation advanced",
				slog.Int("generation", pool.Generation()),
				slog.Int("size", pool.Size()),
				slog.Float64("best", pool.BestFitness()),
				slog.Float64("average", pool.AverageFitness()),
				slog.Float64("worst", pool.WorstFitness()),
			)
		},
		EvaluationStarted: func(ctx context.Context, pool *MatingPool[C]) {
			logger.DebugContext(ctx, "evaluation started",
				slog.Int("generation", pool.Generation()),
				slog.Int("size", pool.Size()),
			)
		},
		EvaluationFinished: func(ctx context.Context, pool *MatingPool[C], evaluated int) {
			logger.DebugContext(ctx, "evaluation finished",
				slog.Int("generation", pool.Generation()),
				slog.Int("evaluated", evaluated),
			)
		},
	}
}
