package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"revolver/pkg/revolver"
)

// runFile is the YAML document accepted by --config. JSON documents parse
// as well.
type runFile struct {
	RunID    string            `yaml:"run_id"`
	Problem  string            `yaml:"problem"`
	Timeout  time.Duration     `yaml:"timeout"`
	Runs     int               `yaml:"runs"`
	Notes    string            `yaml:"notes"`
	Settings revolver.Settings `yaml:"settings"`
}

func loadRunFile(path string) (runFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return runFile{}, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f runFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return runFile{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if f.Timeout < 0 {
		return runFile{}, fmt.Errorf("parse config %s: timeout must be >= 0", path)
	}
	return f, nil
}

// settingsFlags binds the evolution settings to command flags. Only flags
// given on the command line override the config file.
type settingsFlags struct {
	configPath string
	problem    string
	timeout    time.Duration
	settings   revolver.Settings
}

func (s *settingsFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&s.configPath, "config", "", "YAML run config path")
	flags.StringVar(&s.problem, "problem", "maxone", "problem name")
	flags.DurationVar(&s.timeout, "timeout", 0, "deadline measured from command start (0 disables)")
	flags.IntVar(&s.settings.Population, "pop", 0, "population size (0 uses the problem default)")
	flags.IntVar(&s.settings.MaxGenerations, "gens", 0, "maximum generations")
	flags.Float64Var(&s.settings.FitnessGoal, "fitness-goal", 0, "stop once the best fitness reaches this value (0 disables)")
	flags.Float64Var(&s.settings.AverageGoal, "average-goal", 0, "stop once the average fitness reaches this value (0 disables)")
	flags.Uint32Var(&s.settings.Seed, "seed", 0, "random seed")
	flags.IntVar(&s.settings.Workers, "workers", 0, "parallel evaluation workers (0 evaluates sequentially)")
	flags.IntVar(&s.settings.Elitism, "elitism", 0, "fittest individuals copied into each generation (0 disables)")
	flags.IntVar(&s.settings.Length, "length", 0, "chromosome length where the problem allows it")
	flags.StringVar(&s.settings.Crossover, "crossover", "", "crossover: one_point|two_point")
	flags.Float64Var(&s.settings.Weights.Reproduction, "w-reproduction", 0, "reproduction operator weight")
	flags.Float64Var(&s.settings.Weights.Mutation, "w-mutation", 0, "mutation operator weight")
	flags.Float64Var(&s.settings.Weights.Crossover, "w-crossover", 0, "crossover operator weight")
	flags.StringVar(&s.settings.Selections.Reproduction, "sel-reproduction", "", "selection feeding reproduction")
	flags.StringVar(&s.settings.Selections.Mutation, "sel-mutation", "", "selection feeding mutation")
	flags.StringVar(&s.settings.Selections.Crossover, "sel-crossover", "", "selection feeding crossover")
	flags.IntVar(&s.settings.Selections.TournamentOrder, "tournament-order", 0, "tournament size")
}

// resolve merges the config file, when given, with the flags set on cmd.
func (s *settingsFlags) resolve(cmd *cobra.Command) (runFile, error) {
	var f runFile
	if s.configPath != "" {
		loaded, err := loadRunFile(s.configPath)
		if err != nil {
			return runFile{}, err
		}
		f = loaded
	}
	if f.Problem == "" || cmd.Flags().Changed("problem") {
		f.Problem = s.problem
	}
	if cmd.Flags().Changed("timeout") {
		f.Timeout = s.timeout
	}

	changed := cmd.Flags().Changed
	out, in := &f.Settings, s.settings
	if changed("pop") {
		out.Population = in.Population
	}
	if changed("gens") {
		out.MaxGenerations = in.MaxGenerations
	}
	if changed("fitness-goal") {
		out.FitnessGoal = offIfZero(in.FitnessGoal)
	}
	if changed("average-goal") {
		out.AverageGoal = offIfZero(in.AverageGoal)
	}
	if changed("seed") {
		out.Seed = in.Seed
	}
	if changed("workers") {
		out.Workers = offIfZero(in.Workers)
	}
	if changed("elitism") {
		out.Elitism = offIfZero(in.Elitism)
	}
	if changed("length") {
		out.Length = in.Length
	}
	if changed("crossover") {
		out.Crossover = in.Crossover
	}
	if changed("w-reproduction") {
		out.Weights.Reproduction = in.Weights.Reproduction
	}
	if changed("w-mutation") {
		out.Weights.Mutation = in.Weights.Mutation
	}
	if changed("w-crossover") {
		out.Weights.Crossover = in.Weights.Crossover
	}
	if changed("sel-reproduction") {
		out.Selections.Reproduction = in.Selections.Reproduction
	}
	if changed("sel-mutation") {
		out.Selections.Mutation = in.Selections.Mutation
	}
	if changed("sel-crossover") {
		out.Selections.Crossover = in.Selections.Crossover
	}
	if changed("tournament-order") {
		out.Selections.TournamentOrder = in.Selections.TournamentOrder
	}
	return f, nil
}

// offIfZero maps an explicit zero flag to revolver.Off so the problem
// default does not replace it.
func offIfZero[T int | float64](v T) T {
	if v == 0 {
		return revolver.Off
	}
	return v
}
