package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"revolver/internal/entropy"
	"revolver/internal/evo"
)

type flag bool

func (f flag) Mutate(entropy.Generator) flag { return !f }

func runFlags(t *testing.T, hooks evo.Hooks[flag], evaluator evo.Evaluator[flag], generations int) error {
	t.Helper()
	algorithm, err := evo.NewAlgorithm(evo.Config[flag]{
		Generator:      entropy.NewMersenneTwister(1),
		Factory:        func(gen entropy.Generator) flag { return flag(entropy.Bool(gen)) },
		PopulationSize: 4,
		Fill:           evo.NewPipeline[flag]().Then(evo.NewMutation[flag](evo.RandomSelection{})),
		Evaluator:      evaluator,
		Termination:    evo.MaxGenerations[flag](generations),
		Hooks:          hooks,
	})
	require.NoError(t, err)
	return algorithm.Run(context.Background())
}

func flagFitness() evo.Evaluator[flag] {
	return evo.NewSequentialEvaluator[flag](evo.EvaluatorFunc[flag](func(_ context.Context, f flag) (float64, error) {
		if f {
			return 1, nil
		}
		return 0.5, nil
	}))
}

func TestMetricsHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	require.NoError(t, runFlags(t, MetricsHooks[flag](metrics, "flags"), flagFitness(), 3))

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.generation.WithLabelValues("flags")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("flags", "finished")))
	// Seed pass scores 4, each later pass scores the 4 fresh mutants.
	assert.Equal(t, 12.0, testutil.ToFloat64(metrics.evaluations.WithLabelValues("flags")))
	best := testutil.ToFloat64(metrics.bestFitness.WithLabelValues("flags"))
	assert.Contains(t, []float64{0.5, 1}, best)
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.evaluationSeconds))
}

func TestMetricsHooksRecordAbort(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	failing := evo.NewSequentialEvaluator[flag](evo.EvaluatorFunc[flag](func(context.Context, flag) (float64, error) {
		return 0, errors.New("boom")
	}))
	require.Error(t, runFlags(t, MetricsHooks[flag](metrics, "flags"), failing, 3))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("flags", "aborted")))
}

func TestNilTelemetryYieldsEmptyHooks(t *testing.T) {
	assert.Nil(t, MetricsHooks[flag](nil, "x").RunStarted)
	assert.Nil(t, TracingHooks[flag](nil, "x").RunStarted)
}

func TestTracingHooks(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	hooks := TracingHooks[flag](provider.Tracer("test"), "flags")
	require.NoError(t, runFlags(t, hooks, flagFitness(), 2))

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "revolver.evaluate", spans[0].Name())
	assert.Equal(t, "revolver.evaluate", spans[1].Name())
	run := spans[2]
	assert.Equal(t, "revolver.run", run.Name())
	assert.Equal(t, codes.Ok, run.Status().Code)
	assert.Len(t, run.Events(), 2)
	for _, child := range spans[:2] {
		assert.Equal(t, run.SpanContext().SpanID(), child.Parent().SpanID())
	}
}

func TestTracingHooksRecordAbort(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	failing := evo.NewSequentialEvaluator[flag](evo.EvaluatorFunc[flag](func(context.Context, flag) (float64, error) {
		return 0, errors.New("simulator offline")
	}))
	require.Error(t, runFlags(t, TracingHooks[flag](provider.Tracer("test"), "flags"), failing, 2))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	run := spans[1]
	assert.Equal(t, "revolver.run", run.Name())
	assert.Equal(t, codes.Error, run.Status().Code)
	assert.Contains(t, run.Status().Description, "simulator offline")
}
