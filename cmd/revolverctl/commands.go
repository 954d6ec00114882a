package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"revolver/internal/stats"
	"revolver/pkg/revolver"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		settings    settingsFlags
		runID       string
		showHistory bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve one problem and persist the run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := settings.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("run-id") || f.RunID == "" {
				f.RunID = runID
			}
			return c.withClient(cmd.Context(), func(ctx context.Context, client *revolver.Client) error {
				req := revolver.RunRequest{
					RunID:    f.RunID,
					Problem:  f.Problem,
					Settings: f.Settings,
					Timeout:  f.Timeout,
				}
				var bar *progressLine
				if c.progress() {
					bar = newProgressLine(c.stderr)
					req.OnGeneration = bar.update
				}
				summary, err := client.Run(ctx, req)
				bar.done()
				if err != nil {
					return err
				}

				fmt.Fprintf(c.stdout, "run completed run_id=%s problem=%s pop=%d gens=%d seed=%d\n",
					summary.RunID, summary.Problem, summary.Settings.Population, summary.Generations, summary.Settings.Seed)
				if showHistory {
					for i, best := range summary.BestByGeneration {
						fmt.Fprintf(c.stdout, "generation=%d best_fitness=%.6f\n", i+1, best)
					}
				}
				fmt.Fprintf(c.stdout, "final_best_fitness=%.6f best=%s solved=%t evaluations=%d\n",
					summary.FinalBestFitness, summary.BestDisplay, summary.Solved, summary.Evaluations)
				if summary.ArtifactsDir != "" {
					fmt.Fprintf(c.stdout, "artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
				}
				return nil
			})
		},
	}
	settings.register(cmd)
	cmd.Flags().StringVar(&runID, "run-id", "", "explicit run id (defaults to a fresh UUID)")
	cmd.Flags().BoolVar(&showHistory, "history", false, "print the best fitness of every generation")
	return cmd
}

func newBenchmarkCmd(c *cli) *cobra.Command {
	var (
		settings settingsFlags
		id       string
		notes    string
		runs     int
	)
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Repeat a problem over consecutive seeds and report how reliably it solves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := settings.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("runs") || f.Runs == 0 {
				f.Runs = runs
			}
			if cmd.Flags().Changed("notes") || f.Notes == "" {
				f.Notes = notes
			}
			if f.Timeout > 0 {
				f.Settings.Deadline = time.Now().Add(f.Timeout)
			}
			return c.withClient(cmd.Context(), func(ctx context.Context, client *revolver.Client) error {
				req := revolver.BenchmarkRequest{
					ID:       id,
					Problem:  f.Problem,
					Notes:    f.Notes,
					Settings: f.Settings,
					Runs:     f.Runs,
				}
				if !c.quiet {
					req.OnRun = func(index int, run stats.BenchmarkRun) {
						fmt.Fprintf(c.stderr, "run %d/%d seed=%d generations=%d evaluations=%s success=%t\n",
							index+1, f.Runs, run.Seed, run.Generations, humanize.Comma(int64(run.Evaluations)), run.Success)
					}
				}
				exp, err := client.Benchmark(ctx, req)
				if err != nil {
					return err
				}
				s := exp.Stats
				fmt.Fprintf(c.stdout, "benchmark id=%s problem=%s runs=%d success_runs=%d success_rate=%.4f avg_evaluations=%.2f std_evaluations=%.2f min_evaluations=%.0f max_evaluations=%.0f avg_generations=%.2f final_best_mean=%.6f final_best_std=%.6f\n",
					exp.ID, exp.Problem, s.TotalRuns, s.SuccessRuns, s.SuccessRate, s.AvgEvaluations, s.StdEvaluations,
					s.MinEvaluations, s.MaxEvaluations, s.AvgGenerations, s.FinalBestMean, s.FinalBestStd)
				for _, run := range exp.Runs {
					fmt.Fprintf(c.stdout, "run_id=%s seed=%d generations=%d evaluations=%d success=%t final_best=%.6f\n",
						run.RunID, run.Seed, run.Generations, run.Evaluations, run.Success, run.FinalBest)
				}
				return nil
			})
		},
	}
	settings.register(cmd)
	cmd.Flags().StringVar(&id, "id", "", "experiment id (defaults to a fresh UUID)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes stored with the experiment")
	cmd.Flags().IntVar(&runs, "runs", 10, "number of seeded runs")
	return cmd
}

func newRunsCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd.Context(), func(ctx context.Context, client *revolver.Client) error {
				items, err := client.Runs(ctx, revolver.RunsRequest{Limit: limit})
				if err != nil {
					return err
				}
				for _, item := range items {
					printRunItem(c, item)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum runs to list (0 uses the default)")
	return cmd
}

func newShowCmd(c *cli) *cobra.Command {
	var (
		sel       runSelector
		artifacts bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored record of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd.Context(), func(ctx context.Context, client *revolver.Client) error {
				item, err := client.RunRecord(ctx, sel.runID, sel.latest)
				if err != nil {
					return err
				}
				printRunItem(c, item)
				if !artifacts {
					return nil
				}
				report, err := client.Artifacts(ctx, item.RunID, false)
				if err != nil {
					return err
				}
				printArtifacts(c, report)
				return nil
			})
		},
	}
	sel.register(cmd, false)
	cmd.Flags().BoolVar(&artifacts, "artifacts", false, "also print the config and top individuals from the artifacts directory")
	return cmd
}

func printArtifacts(c *cli, report revolver.RunArtifacts) {
	cfg := report.Config
	fmt.Fprintf(c.stdout, "config run_id=%s problem=%s population_size=%d max_generations=%d seed=%d workers=%d elitism=%d generations=%d\n",
		cfg.RunID, cfg.Problem, cfg.PopulationSize, cfg.MaxGenerations, cfg.Seed, cfg.Workers, cfg.Elitism, len(report.Diagnostics))
	if len(cfg.Settings) > 0 {
		fmt.Fprintf(c.stdout, "settings=%s\n", cfg.Settings)
	}
	for _, ind := range report.TopIndividuals {
		fmt.Fprintf(c.stdout, "top rank=%d fitness=%.6f display=%s\n", ind.Rank, ind.Fitness, ind.Display)
	}
}

func printRunItem(c *cli, item revolver.RunItem) {
	age := item.StartedAtUTC
	if started, err := time.Parse(time.RFC3339, item.StartedAtUTC); err == nil {
		age = humanize.Time(started)
	}
	fmt.Fprintf(c.stdout, "run_id=%s started_at=%s age=%q duration=%s problem=%s status=%s seed=%d generations=%d evaluations=%d final_best_fitness=%.6f best=%s solved=%t\n",
		item.RunID, item.StartedAtUTC, age, item.Duration.Round(time.Millisecond), item.Problem, item.Status, item.Seed,
		item.Generations, item.Evaluations, item.FinalBestFitness, item.BestDisplay, item.Solved)
	if item.Error != "" {
		fmt.Fprintf(c.stdout, "run_id=%s error=%q\n", item.RunID, item.Error)
	}
}

// runSelector names a stored run by id or as the latest one.
type runSelector struct {
	runID  string
	latest bool
	limit  int
}

func (s *runSelector) register(cmd *cobra.Command, withLimit bool) {
	cmd.Flags().StringVar(&s.runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&s.latest, "latest", false, "use the most recently started run")
	if withLimit {
		cmd.Flags().IntVar(&s.limit, "limit", 0, "maximum rows (0 prints all)")
	}
}

func newFitnessCmd(c *cli) *cobra.Command {
	var sel runSelector
	cmd := &cobra.Command{
		Use:   "fitness",
		Short: "Print the best fitness of every generation of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd.Context(), func(ctx context.Context, client *revolver.Client) error {
				history, err := client.FitnessHistory(ctx, revolver.FitnessHistoryRequest{
					RunID: sel.runID, Latest: sel.latest, Limit: sel.limit,
				})
				if err != nil {
					return err
				}
				for i, best := range history {
					fmt.Fprintf(c.stdout, "generation=%d best_fitness=%.6f\n", i+1, best)
				}
				return nil
			})
		},
	}
	sel.register(cmd, true)
	return cmd
}

func newDiagnosticsCmd(c *cli) *cobra.Command {
	var sel runSelector
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Print per-generation statistics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd.Context(), func(ctx context.Context, client *revolver.Client) error {
				diagnostics, err := client.Diagnostics(ctx, revolver.DiagnosticsRequest{
					RunID: sel.runID, Latest: sel.latest, Limit: sel.limit,
				})
				if err != nil {
					return err
				}
				for _, d := range diagnostics {
					fmt.Fprintf(c.stdout, "generation=%d size=%d best=%.6f mean=%.6f min=%.6f evaluations=%d distinct=%d\n",
						d.Generation, d.Size, d.BestFitness, d.AverageFitness, d.WorstFitness, d.Evaluations, d.Distinct)
				}
				return nil
			})
		},
	}
	sel.register(cmd, true)
	return cmd
}

func newPopulationCmd(c *cli) *cobra.Command {
	var (
		sel        runSelector
		chromosome bool
	)
	cmd := &cobra.Command{
		Use:   "population",
		Short: "Print the final generation of a run, fittest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd.Context(), func(ctx context.Context, client *revolver.Client) error {
				individuals, err := client.Population(ctx, revolver.PopulationRequest{
					RunID: sel.runID, Latest: sel.latest, Limit: sel.limit,
				})
				if err != nil {
					return err
				}
				for _, individual := range individuals {
					if chromosome {
						fmt.Fprintf(c.stdout, "rank=%d fitness=%.6f display=%s chromosome=%s\n",
							individual.Rank, individual.Fitness, individual.Display, individual.Chromosome)
						continue
					}
					fmt.Fprintf(c.stdout, "rank=%d fitness=%.6f display=%s\n", individual.Rank, individual.Fitness, individual.Display)
				}
				return nil
			})
		},
	}
	sel.register(cmd, true)
	cmd.Flags().BoolVar(&chromosome, "chromosome", false, "also print the encoded chromosome")
	return cmd
}

func newExportCmd(c *cli) *cobra.Command {
	var (
		sel    runSelector
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the artifacts of a run to an export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd.Context(), func(ctx context.Context, client *revolver.Client) error {
				exported, err := client.Export(ctx, revolver.ExportRequest{RunID: sel.runID, Latest: sel.latest, OutDir: outDir})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
				return nil
			})
		},
	}
	sel.register(cmd, false)
	cmd.Flags().StringVar(&outDir, "out", "", "export directory (defaults to --exports-dir)")
	return cmd
}

func newExperimentsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "experiments",
		Short: "List recorded benchmark experiments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd.Context(), func(ctx context.Context, client *revolver.Client) error {
				experiments, err := client.Experiments(ctx)
				if err != nil {
					return err
				}
				for _, exp := range experiments {
					fmt.Fprintf(c.stdout, "id=%s problem=%s started_at=%s runs=%d success_rate=%.4f avg_evaluations=%.2f\n",
						exp.ID, exp.Problem, exp.StartedAtUTC, exp.Stats.TotalRuns, exp.Stats.SuccessRate, exp.Stats.AvgEvaluations)
				}
				return nil
			})
		},
	}
}

func newProblemsCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "problems",
		Short: "List the registered problems and their default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd.Context(), func(_ context.Context, client *revolver.Client) error {
				problems := client.Problems()
				if asJSON {
					enc := json.NewEncoder(c.stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(problems)
				}
				for _, p := range problems {
					d := p.Defaults
					fmt.Fprintf(c.stdout, "problem=%s pop=%d gens=%d seed=%d elitism=%d crossover=%s description=%q\n",
						p.Name, d.Population, d.MaxGenerations, d.Seed, d.Elitism, d.Crossover, p.Description)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print problems as JSON")
	return cmd
}
