package problem

import (
	"context"
	"fmt"

	"revolver/internal/chromosome"
	"revolver/internal/evo"
)

const defaultMaxOneLength = 10

// MaxOne evolves a bit string towards all ones. Fitness is the share of set
// bits.
type MaxOne struct{}

func (MaxOne) Name() string {
	return "maxone"
}

func (MaxOne) Description() string {
	return "maximize the number of set bits in a fixed-length bit string"
}

func (MaxOne) Defaults() Settings {
	return Settings{
		Population:     200,
		MaxGenerations: 1000,
		FitnessGoal:    1,
		Seed:           4242,
		Elitism:        1,
		Weights:        Weights{Reproduction: 0.5, Mutation: 0.3, Crossover: 0.2},
		Selections: Selections{
			Reproduction:    "random",
			Mutation:        "roulette",
			Crossover:       "tournament",
			TournamentOrder: 5,
		},
		Crossover: CrossoverOnePoint,
		Length:    defaultMaxOneLength,
	}
}

// MaxOneFitness scores a bit string.
func MaxOneFitness(_ context.Context, bits chromosome.Array[bool]) (float64, error) {
	if bits.Len() == 0 {
		return 0, fmt.Errorf("empty bit string")
	}
	return float64(chromosome.Ones(bits)) / float64(bits.Len()), nil
}

func (m MaxOne) Run(ctx context.Context, settings Settings, obs Observer) (Result, error) {
	settings = settings.WithDefaults(m.Defaults())
	if settings.Length <= 0 {
		return Result{}, fmt.Errorf("maxone length must be > 0")
	}
	if settings.Crossover == CrossoverTwoPoint && settings.Length < 2 {
		return Result{}, fmt.Errorf("two-point crossover needs a length of at least 2")
	}
	layout := chromosome.FixedLayout(settings.Length, chromosome.Bool())
	return solve(ctx, settings, obs, solveTarget[chromosome.Array[bool]]{
		name:      m.Name(),
		factory:   layout.Factory(),
		evaluator: evo.EvaluatorFunc[chromosome.Array[bool]](MaxOneFitness),
		display:   chromosome.BitString,
		solved: func(best chromosome.Array[bool], _ float64) bool {
			return chromosome.Ones(best) == best.Len()
		},
	})
}
