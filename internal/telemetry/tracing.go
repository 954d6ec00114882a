package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"revolver/internal/evo"
)

const tracerName = "revolver/internal/telemetry"

// Tracer returns the tracer registered on the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// TracingHooks records one span per run with a child span per evaluation
// pass and an event per generation. A nil tracer yields empty hooks.
func TracingHooks[C any](tracer trace.Tracer, problem string) evo.Hooks[C] {
	if tracer == nil {
		return evo.Hooks[C]{}
	}
	var (
		runCtx   context.Context
		runSpan  trace.Span
		evalSpan trace.Span
	)
	return evo.Hooks[C]{
		RunStarted: func(ctx context.Context, _ *evo.MatingPool[C]) {
			runCtx, runSpan = tracer.Start(ctx, "revolver.run",
				trace.WithAttributes(attribute.String("revolver.problem", problem)))
		},
		RunFinished: func(_ context.Context, pool *evo.MatingPool[C]) {
			if runSpan == nil {
				return
			}
			runSpan.SetAttributes(
				attribute.Int("revolver.generations", pool.Generation()),
				attribute.Float64("revolver.best_fitness", pool.BestFitness()),
			)
			runSpan.SetStatus(codes.Ok, "")
			runSpan.End()
		},
		RunAborted: func(_ context.Context, pool *evo.MatingPool[C], err error) {
			if evalSpan != nil {
				evalSpan.End()
				evalSpan = nil
			}
			if runSpan == nil {
				return
			}
			runSpan.SetAttributes(attribute.Int("revolver.generations", pool.Generation()))
			runSpan.RecordError(err)
			runSpan.SetStatus(codes.Error, err.Error())
			runSpan.End()
		},
		GenerationAdvanced: func(_ context.Context, pool *evo.MatingPool[C]) {
			if runSpan == nil {
				return
			}
			runSpan.AddEvent("generation", trace.WithAttributes(
				attribute.Int("revolver.generation", pool.Generation()),
				attribute.Float64("revolver.best_fitness", pool.BestFitness()),
				attribute.Float64("revolver.average_fitness", pool.AverageFitness()),
			))
		},
		EvaluationStarted: func(ctx context.Context, pool *evo.MatingPool[C]) {
			parent := ctx
			if runCtx != nil {
				parent = runCtx
			}
			_, evalSpan = tracer.Start(parent, "revolver.evaluate",
				trace.WithAttributes(
					attribute.String("revolver.problem", problem),
					attribute.Int("revolver.generation", pool.Generation()),
					attribute.Int("revolver.size", pool.Size()),
				))
		},
		EvaluationFinished: func(_ context.Context, _ *evo.MatingPool[C], evaluated int) {
			if evalSpan == nil {
				return
			}
			evalSpan.SetAttributes(attribute.Int("revolver.evaluated", evaluated))
			evalSpan.End()
			evalSpan = nil
		},
	}
}
