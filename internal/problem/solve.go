package problem

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"revolver/internal/entropy"
	"revolver/internal/evo"
	"revolver/internal/telemetry"
)

// evolvable is what the generic driver needs from a chromosome type.
type evolvable[C any] interface {
	evo.Mutable[C]
	evo.OnePointCrossoverable[C]
	evo.TwoPointCrossoverable[C]
}

// solveTarget binds a chromosome type to a concrete problem.
type solveTarget[C evolvable[C]] struct {
	name      string
	factory   evo.Factory[C]
	evaluator evo.ChromosomeEvaluator[C]
	display   func(C) string
	// solved reports whether the final best individual is a known optimum.
	solved func(best C, fitness float64) bool
}

// solve runs one evolution of target with fully defaulted settings.
func solve[C evolvable[C]](ctx context.Context, settings Settings, obs Observer, target solveTarget[C]) (Result, error) {
	if err := settings.Validate(); err != nil {
		return Result{}, fmt.Errorf("%s settings: %w", target.name, err)
	}
	setup, fill, err := buildPipelines[C](settings)
	if err != nil {
		return Result{}, fmt.Errorf("%s pipeline: %w", target.name, err)
	}

	var algorithm *evo.Algorithm[C]
	hooks := []evo.Hooks[C]{
		evo.LoggingHooks[C](obs.Logger),
		telemetry.MetricsHooks[C](obs.Metrics, target.name),
		telemetry.TracingHooks[C](obs.Tracer, target.name),
	}
	if obs.OnGeneration != nil {
		hooks = append(hooks, evo.Hooks[C]{
			GenerationAdvanced: func(_ context.Context, pool *evo.MatingPool[C]) {
				obs.OnGeneration(evo.Summarize(pool, algorithm.Evaluations(), target.display))
			},
		})
	}

	algorithm, err = evo.NewAlgorithm(evo.Config[C]{
		Generator:      entropy.NewMersenneTwister(settings.Seed),
		Factory:        target.factory,
		PopulationSize: settings.Population,
		Setup:          setup,
		Fill:           fill,
		Evaluator:      buildEvaluator(settings.Workers, target.evaluator),
		Termination:    buildTermination[C](settings),
		Hooks:          evo.ChainHooks(hooks...),
		Fingerprint:    target.display,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s algorithm: %w", target.name, err)
	}
	if err := algorithm.Run(ctx); err != nil {
		return Result{}, fmt.Errorf("run %s: %w", target.name, err)
	}
	return collectResult(algorithm, settings, target)
}

func buildPipelines[C evolvable[C]](settings Settings) (*evo.Pipeline[C], *evo.Pipeline[C], error) {
	var setup *evo.Pipeline[C]
	if settings.Elitism > 0 {
		setup = evo.NewPipeline[C]().Then(evo.NewElitism[C](settings.Elitism))
	}

	params := evo.SelectionParams{TournamentOrder: settings.Selections.TournamentOrder}
	node := evo.NewChanceNode[C]()
	if w := settings.Weights.Reproduction; w > 0 {
		selection, err := evo.ResolveSelection(settings.Selections.Reproduction, params)
		if err != nil {
			return nil, nil, err
		}
		node.Branch(evo.NewReproduction[C](selection, 1), w)
	}
	if w := settings.Weights.Mutation; w > 0 {
		selection, err := evo.ResolveSelection(settings.Selections.Mutation, params)
		if err != nil {
			return nil, nil, err
		}
		node.Branch(evo.NewMutation[C](selection), w)
	}
	if w := settings.Weights.Crossover; w > 0 {
		selection, err := evo.ResolveSelection(settings.Selections.Crossover, params)
		if err != nil {
			return nil, nil, err
		}
		if settings.Crossover == CrossoverTwoPoint {
			node.Branch(evo.NewTwoPointCrossover[C](selection), w)
		} else {
			node.Branch(evo.NewOnePointCrossover[C](selection), w)
		}
	}
	return setup, evo.NewPipeline[C]().ThenNode(node), nil
}

func buildEvaluator[C any](workers int, evaluator evo.ChromosomeEvaluator[C]) evo.Evaluator[C] {
	if workers <= 1 {
		return evo.NewSequentialEvaluator(evaluator)
	}
	return evo.NewParallelEvaluator(workers, evo.SharedLanes(evaluator))
}

func buildTermination[C any](settings Settings) evo.Condition[C] {
	conditions := []evo.Condition[C]{evo.MaxGenerations[C](settings.MaxGenerations)}
	if settings.FitnessGoal > 0 {
		conditions = append(conditions, evo.FitnessThreshold[C](settings.FitnessGoal, evo.BestFitness))
	}
	if settings.AverageGoal > 0 {
		conditions = append(conditions, evo.FitnessThreshold[C](settings.AverageGoal, evo.AverageFitness))
	}
	if !settings.Deadline.IsZero() {
		conditions = append(conditions, evo.AfterDate[C](settings.Deadline))
	}
	return evo.Any(conditions...)
}

func collectResult[C evolvable[C]](algorithm *evo.Algorithm[C], settings Settings, target solveTarget[C]) (Result, error) {
	pool := algorithm.Pool()
	population := make([]Individual, 0, pool.Size())
	for index := 0; index < pool.Size(); index++ {
		individual := pool.At(index)
		encoded, err := json.Marshal(individual.Chromosome)
		if err != nil {
			return Result{}, fmt.Errorf("encode chromosome %d: %w", index, err)
		}
		population = append(population, Individual{
			Chromosome: encoded,
			Display:    target.display(individual.Chromosome),
			Fitness:    individual.MustFitness(),
		})
	}
	// Fittest first, lower indices ahead on ties.
	sort.SliceStable(population, func(i, j int) bool {
		return population[i].Fitness > population[j].Fitness
	})

	result := Result{
		Problem:     target.name,
		Settings:    settings,
		Generations: pool.Generation(),
		Evaluations: algorithm.Evaluations(),
		History:     algorithm.History(),
		Population:  population,
	}
	if best, ok := pool.BestIndividual(); ok {
		encoded, err := json.Marshal(best.Chromosome)
		if err != nil {
			return Result{}, fmt.Errorf("encode best chromosome: %w", err)
		}
		fitness := best.MustFitness()
		result.Best = Individual{Chromosome: encoded, Display: target.display(best.Chromosome), Fitness: fitness}
		if target.solved != nil {
			result.Solved = target.solved(best.Chromosome, fitness)
		}
	}
	return result, nil
}
