// Package telemetry exports run progress as Prometheus metrics and
// OpenTelemetry spans. Both are exposed as evo.Hooks so they plug into any
// algorithm alongside logging.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"revolver/internal/evo"
)

const namespace = "revolver"

// Metrics holds the collectors shared by every run in a process. Series are
// labelled by problem name.
type Metrics struct {
	generation        *prometheus.GaugeVec
	bestFitness       *prometheus.GaugeVec
	averageFitness    *prometheus.GaugeVec
	worstFitness      *prometheus.GaugeVec
	evaluations       *prometheus.CounterVec
	evaluationSeconds *prometheus.HistogramVec
	runs              *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg, or on the default registerer
// when reg is nil. Registering twice on the same registry panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := []string{"problem"}
	return &Metrics{
		generation: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Current generation of the active run.",
		}, labels),
		bestFitness: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Best fitness in the current generation.",
		}, labels),
		averageFitness: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "average_fitness",
			Help:      "Average fitness in the current generation.",
		}, labels),
		worstFitness: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worst_fitness",
			Help:      "Worst fitness in the current generation.",
		}, labels),
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Chromosome evaluations performed.",
		}, labels),
		evaluationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_pass_seconds",
			Help:      "Wall time of one evaluation pass over a generation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, labels),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by outcome.",
		}, []string{"problem", "outcome"}),
	}
}

// MetricsHooks feeds m from one run of the named problem. A nil m yields
// empty hooks.
func MetricsHooks[C any](m *Metrics, problem string) evo.Hooks[C] {
	if m == nil {
		return evo.Hooks[C]{}
	}
	var passStarted time.Time
	return evo.Hooks[C]{
		RunFinished: func(context.Context, *evo.MatingPool[C]) {
			m.runs.WithLabelValues(problem, "finished").Inc()
		},
		RunAborted: func(context.Context, *evo.MatingPool[C], error) {
			m.runs.WithLabelValues(problem, "aborted").Inc()
		},
		GenerationAdvanced: func(_ context.Context, pool *evo.MatingPool[C]) {
			m.generation.WithLabelValues(problem).Set(float64(pool.Generation()))
			m.bestFitness.WithLabelValues(problem).Set(pool.BestFitness())
			m.averageFitness.WithLabelValues(problem).Set(pool.AverageFitness())
			m.worstFitness.WithLabelValues(problem).Set(pool.WorstFitness())
		},
		EvaluationStarted: func(context.Context, *evo.MatingPool[C]) {
			passStarted = time.Now()
		},
		EvaluationFinished: func(_ context.Context, _ *evo.MatingPool[C], evaluated int) {
			m.evaluations.WithLabelValues(problem).Add(float64(evaluated))
			m.evaluationSeconds.WithLabelValues(problem).Observe(time.Since(passStarted).Seconds())
		},
	}
}
