// Package problem hosts ready-to-run optimization problems built on the evo
// engine, and a registry to look them up by name.
package problem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"revolver/internal/evo"
	"revolver/internal/telemetry"
)

var (
	ErrProblemExists   = errors.New("problem already registered")
	ErrProblemNotFound = errors.New("problem not found")
)

type Problem interface {
	Name() string
	Description() string
	// Defaults are the settings the problem is tuned for.
	Defaults() Settings
	Run(ctx context.Context, settings Settings, obs Observer) (Result, error)
}

// Weights are the relative odds of each fill operator. A zero weight drops
// the operator.
type Weights struct {
	Reproduction float64 `json:"reproduction" yaml:"reproduction"`
	Mutation     float64 `json:"mutation" yaml:"mutation"`
	Crossover    float64 `json:"crossover" yaml:"crossover"`
}

// Selections name the selection strategy feeding each fill operator.
type Selections struct {
	Reproduction    string `json:"reproduction" yaml:"reproduction"`
	Mutation        string `json:"mutation" yaml:"mutation"`
	Crossover       string `json:"crossover" yaml:"crossover"`
	TournamentOrder int    `json:"tournament_order" yaml:"tournament_order"`
}

const (
	CrossoverOnePoint = "one_point"
	CrossoverTwoPoint = "two_point"
)

// Off turns off a numeric setting whose zero value would otherwise take the
// problem default. It applies to Elitism, Workers, FitnessGoal and
// AverageGoal.
const Off = -1

// Settings tune a run. Zero fields take the problem default. Seed 0 selects
// the default seed.
type Settings struct {
	Population     int        `json:"population" yaml:"population"`
	MaxGenerations int        `json:"max_generations" yaml:"max_generations"`
	FitnessGoal    float64    `json:"fitness_goal,omitempty" yaml:"fitness_goal,omitempty"`
	AverageGoal    float64    `json:"average_goal,omitempty" yaml:"average_goal,omitempty"`
	Deadline       time.Time  `json:"deadline,omitzero" yaml:"deadline,omitempty"`
	Seed           uint32     `json:"seed" yaml:"seed"`
	Workers        int        `json:"workers" yaml:"workers"`
	Elitism        int        `json:"elitism" yaml:"elitism"`
	Weights        Weights    `json:"weights" yaml:"weights"`
	Selections     Selections `json:"selections" yaml:"selections"`
	Crossover      string     `json:"crossover" yaml:"crossover"`
	// Length sizes the chromosome where the problem allows it.
	Length int `json:"length,omitempty" yaml:"length,omitempty"`
}

// WithDefaults fills every zero field from defaults. Off fields stay Off, so
// merging twice gives the same settings.
func (s Settings) WithDefaults(defaults Settings) Settings {
	if s.Population == 0 {
		s.Population = defaults.Population
	}
	if s.MaxGenerations == 0 {
		s.MaxGenerations = defaults.MaxGenerations
	}
	if s.FitnessGoal == 0 {
		s.FitnessGoal = defaults.FitnessGoal
	}
	if s.AverageGoal == 0 {
		s.AverageGoal = defaults.AverageGoal
	}
	if s.Deadline.IsZero() {
		s.Deadline = defaults.Deadline
	}
	if s.Seed == 0 {
		s.Seed = defaults.Seed
	}
	if s.Workers == 0 {
		s.Workers = defaults.Workers
	}
	if s.Elitism == 0 {
		s.Elitism = defaults.Elitism
	}
	if s.Weights == (Weights{}) {
		s.Weights = defaults.Weights
	}
	if s.Selections.Reproduction == "" {
		s.Selections.Reproduction = defaults.Selections.Reproduction
	}
	if s.Selections.Mutation == "" {
		s.Selections.Mutation = defaults.Selections.Mutation
	}
	if s.Selections.Crossover == "" {
		s.Selections.Crossover = defaults.Selections.Crossover
	}
	if s.Selections.TournamentOrder == 0 {
		s.Selections.TournamentOrder = defaults.Selections.TournamentOrder
	}
	if s.Crossover == "" {
		s.Crossover = defaults.Crossover
	}
	if s.Length == 0 {
		s.Length = defaults.Length
	}
	return s
}

func (s Settings) Validate() error {
	if s.Population <= 0 {
		return fmt.Errorf("population must be > 0")
	}
	if s.MaxGenerations <= 0 {
		return fmt.Errorf("max generations must be > 0")
	}
	if (s.Elitism < 0 && s.Elitism != Off) || s.Elitism > s.Population {
		return fmt.Errorf("elitism must be in [0, population] or Off")
	}
	if s.Workers < 0 && s.Workers != Off {
		return fmt.Errorf("workers must be >= 0 or Off")
	}
	if s.FitnessGoal < 0 && s.FitnessGoal != Off {
		return fmt.Errorf("fitness goal must be >= 0 or Off")
	}
	if s.AverageGoal < 0 && s.AverageGoal != Off {
		return fmt.Errorf("average goal must be >= 0 or Off")
	}
	w := s.Weights
	if w.Reproduction < 0 || w.Mutation < 0 || w.Crossover < 0 {
		return fmt.Errorf("operator weights must be >= 0")
	}
	if w.Reproduction+w.Mutation+w.Crossover <= 0 {
		return fmt.Errorf("at least one operator weight must be positive")
	}
	switch s.Crossover {
	case CrossoverOnePoint, CrossoverTwoPoint:
	default:
		return fmt.Errorf("unsupported crossover %q", s.Crossover)
	}
	return nil
}

// Observer carries the optional sinks a run reports to.
type Observer struct {
	Logger       *slog.Logger
	Metrics      *telemetry.Metrics
	Tracer       trace.Tracer
	OnGeneration func(evo.GenerationStats)
}

// Individual is a chromosome detached from its Go type.
type Individual struct {
	Chromosome json.RawMessage `json:"chromosome"`
	Display    string          `json:"display"`
	Fitness    float64         `json:"fitness"`
}

type Result struct {
	Problem     string                `json:"problem"`
	Settings    Settings              `json:"settings"`
	Generations int                   `json:"generations"`
	Evaluations int                   `json:"evaluations"`
	Best        Individual            `json:"best"`
	Solved      bool                  `json:"solved"`
	History     []evo.GenerationStats `json:"history"`
	// Population is the final generation, fittest first.
	Population []Individual `json:"population"`
}

var registry = struct {
	mu sync.RWMutex
	m  map[string]Problem
}{
	m: builtinProblems(),
}

func builtinProblems() map[string]Problem {
	return map[string]Problem{
		"maxone":   MaxOne{},
		"knapsack": NewKnapsack(ReferenceInstance()),
	}
}

func Register(p Problem) error {
	if p == nil {
		return errors.New("problem is required")
	}
	if p.Name() == "" {
		return errors.New("problem name is required")
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.m[p.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrProblemExists, p.Name())
	}
	registry.m[p.Name()] = p
	return nil
}

func Resolve(name string) (Problem, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	p, ok := registry.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProblemNotFound, name)
	}
	return p, nil
}

// List returns every registered problem ordered by name.
func List() []Problem {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make([]Problem, 0, len(registry.m))
	for _, p := range registry.m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func resetRegistryForTests() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.m = builtinProblems()
}
