package evo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"revolver/internal/entropy"
)

var ErrAlreadyRun = errors.New("algorithm already run")

// maxEmptyFillPasses bounds consecutive fill passes that add no offspring.
const maxEmptyFillPasses = 10000

type Config[C any] struct {
	Generator      entropy.Generator
	Factory        Factory[C]
	PopulationSize int
	// Setup, when set, runs once at the start of every reproduction phase,
	// typically for elitism.
	Setup *Pipeline[C]
	// Fill runs repeatedly until the next generation holds at least
	// PopulationSize offspring.
	Fill        *Pipeline[C]
	Evaluator   Evaluator[C]
	Termination Condition[C]
	Hooks       Hooks[C]
	// Fingerprint, when set, lets per-generation stats count distinct
	// chromosomes.
	Fingerprint func(C) string
}

type algorithmState int

const (
	stateIdle algorithmState = iota
	stateRunning
	stateFinished
)

// Algorithm drives one evolutionary run. It is single use.
type Algorithm[C any] struct {
	cfg  Config[C]
	pool *MatingPool[C]

	mu          sync.Mutex
	state       algorithmState
	evaluations int
	history     []GenerationStats
}

func NewAlgorithm[C any](cfg Config[C]) (*Algorithm[C], error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("entropy generator is required")
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("chromosome factory is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Fill == nil || cfg.Fill.Len() == 0 {
		return nil, fmt.Errorf("fill pipeline is required")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if cfg.Termination == nil {
		return nil, fmt.Errorf("termination condition is required")
	}
	return &Algorithm[C]{cfg: cfg, pool: NewMatingPool[C]()}, nil
}

// Pool exposes the mating pool. It must not be modified while Run is active.
func (a *Algorithm[C]) Pool() *MatingPool[C] {
	return a.pool
}

// Evaluations is the number of chromosome evaluations performed so far.
func (a *Algorithm[C]) Evaluations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.evaluations
}

// History returns the stats of every evaluated generation, seed included.
func (a *Algorithm[C]) History() []GenerationStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]GenerationStats, len(a.history))
	copy(out, a.history)
	return out
}

// Run seeds a random population and evolves it until the termination
// condition holds. Cancellation is observed between generations and inside
// evaluation passes.
func (a *Algorithm[C]) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.state != stateIdle {
		a.mu.Unlock()
		return ErrAlreadyRun
	}
	a.state = stateRunning
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.state = stateFinished
		a.mu.Unlock()
	}()

	hooks := a.cfg.Hooks
	if hooks.RunStarted != nil {
		hooks.RunStarted(ctx, a.pool)
	}

	a.seed()
	if err := a.evaluate(ctx); err != nil {
		return a.abort(ctx, err)
	}
	if hooks.GenerationAdvanced != nil {
		hooks.GenerationAdvanced(ctx, a.pool)
	}

	for !a.cfg.Termination.ShouldTerminate(a.pool) {
		if err := ctx.Err(); err != nil {
			return a.abort(ctx, err)
		}
		a.reproduce()
		if err := a.evaluate(ctx); err != nil {
			return a.abort(ctx, err)
		}
		if hooks.GenerationAdvanced != nil {
			hooks.GenerationAdvanced(ctx, a.pool)
		}
	}

	if hooks.RunFinished != nil {
		hooks.RunFinished(ctx, a.pool)
	}
	return nil
}

func (a *Algorithm[C]) seed() {
	if a.pool.Reproducing() {
		a.pool.CancelReproduction()
	}
	a.pool.BeginReproduction()
	for a.pool.OffspringSize() < a.cfg.PopulationSize {
		a.pool.AddOffspring(NewIndividual(a.cfg.Factory(a.cfg.Generator)))
	}
	a.pool.AdvanceGeneration()
}

func (a *Algorithm[C]) reproduce() {
	if a.pool.Reproducing() {
		a.pool.CancelReproduction()
	}
	a.pool.BeginReproduction()
	if a.cfg.Setup != nil {
		a.cfg.Setup.Execute(a.cfg.Generator, a.pool)
	}
	empty := 0
	for a.pool.OffspringSize() < a.cfg.PopulationSize {
		before := a.pool.OffspringSize()
		a.cfg.Fill.Execute(a.cfg.Generator, a.pool)
		if a.pool.OffspringSize() > before {
			empty = 0
			continue
		}
		// Passes may add nothing; only a pipeline that never adds is fatal.
		empty++
		if empty >= maxEmptyFillPasses {
			panic(fmt.Sprintf("evo: fill pipeline produced no offspring in %d consecutive passes", empty))
		}
	}
	a.pool.AdvanceGeneration()
}

func (a *Algorithm[C]) evaluate(ctx context.Context) error {
	hooks := a.cfg.Hooks
	pending := 0
	for i := 0; i < a.pool.Size(); i++ {
		if !a.pool.At(i).Scored() {
			pending++
		}
	}

	if hooks.EvaluationStarted != nil {
		hooks.EvaluationStarted(ctx, a.pool)
	}
	var onEvaluated func(int)
	if hooks.IndividualEvaluated != nil {
		onEvaluated = func(index int) { hooks.IndividualEvaluated(ctx, a.pool, index) }
	}
	if err := a.cfg.Evaluator.Evaluate(ctx, a.pool, onEvaluated); err != nil {
		return err
	}

	a.mu.Lock()
	a.evaluations += pending
	a.history = append(a.history, Summarize(a.pool, a.evaluations, a.cfg.Fingerprint))
	a.mu.Unlock()

	if hooks.EvaluationFinished != nil {
		hooks.EvaluationFinished(ctx, a.pool, pending)
	}
	return nil
}

func (a *Algorithm[C]) abort(ctx context.Context, err error) error {
	if a.cfg.Hooks.RunAborted != nil {
		a.cfg.Hooks.RunAborted(ctx, a.pool, err)
	}
	return err
}
