// Package revolver is the public entry point for running, benchmarking and
// inspecting evolutionary runs.
package revolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"revolver/internal/evo"
	"revolver/internal/model"
	"revolver/internal/platform"
	"revolver/internal/problem"
	"revolver/internal/stats"
	"revolver/internal/storage"
	"revolver/internal/telemetry"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultProblem      = "maxone"
	defaultRunsLimit    = 20
)

type (
	Settings        = problem.Settings
	Weights         = problem.Weights
	Selections      = problem.Selections
	GenerationStats = evo.GenerationStats
)

// Off turns off elitism, parallel workers or a fitness goal in Settings.
const Off = problem.Off

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
	// Registerer receives the run metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	Tracer     trace.Tracer
}

type Client struct {
	store       storage.Store
	coordinator *platform.Coordinator

	artifactsDir string
	exportsDir   string
}

type ProblemInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Defaults    Settings `json:"defaults"`
}

type RunRequest struct {
	RunID    string
	Problem  string
	Settings Settings
	// Timeout sets the run deadline relative to the start of the run.
	Timeout      time.Duration
	OnGeneration func(GenerationStats)
}

type RunSummary struct {
	RunID            string
	Problem          string
	ArtifactsDir     string
	Generations      int
	Evaluations      int
	BestByGeneration []float64
	FinalBestFitness float64
	BestDisplay      string
	Solved           bool
	Settings         Settings
}

type BenchmarkRequest struct {
	ID       string
	Problem  string
	Notes    string
	Settings Settings
	Runs     int
	OnRun    func(index int, run stats.BenchmarkRun)
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	StartedAtUTC     string
	Duration         time.Duration
	Problem          string
	Status           string
	Error            string
	Seed             uint32
	Generations      int
	Evaluations      int
	FinalBestFitness float64
	BestDisplay      string
	Solved           bool
}

// RunArtifacts is what a run left in the artifacts directory.
type RunArtifacts struct {
	Config         stats.RunConfig
	TopIndividuals []model.IndividualRecord
	Diagnostics    []model.GenerationDiagnostics
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type PopulationRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = storage.DefaultStorePath(storeKind)
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath, opts.Logger)
	if err != nil {
		return nil, err
	}

	var metrics *telemetry.Metrics
	if opts.Registerer != nil {
		metrics = telemetry.NewMetrics(opts.Registerer)
	}

	return &Client{
		store: store,
		coordinator: platform.NewCoordinator(platform.Config{
			Store:        store,
			ArtifactsDir: artifactsDir,
			Logger:       opts.Logger,
			Metrics:      metrics,
			Tracer:       opts.Tracer,
		}),
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return c.coordinator.Stop()
}

func (c *Client) Init(ctx context.Context) error {
	return c.coordinator.Init(ctx)
}

// Problems lists the registered problems by name.
func (c *Client) Problems() []ProblemInfo {
	problems := problem.List()
	out := make([]ProblemInfo, 0, len(problems))
	for _, p := range problems {
		out = append(out, ProblemInfo{Name: p.Name(), Description: p.Description(), Defaults: p.Defaults()})
	}
	return out
}

func (r RunRequest) normalize(now time.Time) (RunRequest, error) {
	if r.Problem == "" {
		r.Problem = defaultProblem
	}
	if r.Timeout < 0 {
		return RunRequest{}, errors.New("timeout must be >= 0")
	}
	if r.Timeout > 0 {
		deadline := now.Add(r.Timeout)
		if r.Settings.Deadline.IsZero() || deadline.Before(r.Settings.Deadline) {
			r.Settings.Deadline = deadline
		}
	}
	return r, nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req, err := req.normalize(time.Now())
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	out, err := c.coordinator.Run(ctx, platform.RunConfig{
		RunID:        req.RunID,
		Problem:      req.Problem,
		Settings:     req.Settings,
		OnGeneration: req.OnGeneration,
	})
	if err != nil {
		return RunSummary{}, err
	}
	return RunSummary{
		RunID:            out.Record.ID,
		Problem:          out.Record.Problem,
		ArtifactsDir:     out.ArtifactsDir,
		Generations:      out.Record.Generations,
		Evaluations:      out.Record.Evaluations,
		BestByGeneration: platform.BestByGeneration(out.Result.History),
		FinalBestFitness: out.Record.BestFitness,
		BestDisplay:      out.Record.BestDisplay,
		Solved:           out.Record.Solved,
		Settings:         out.Result.Settings,
	}, nil
}

func (c *Client) Benchmark(ctx context.Context, req BenchmarkRequest) (stats.BenchmarkExperiment, error) {
	if req.Problem == "" {
		req.Problem = defaultProblem
	}
	if err := c.Init(ctx); err != nil {
		return stats.BenchmarkExperiment{}, err
	}
	return c.coordinator.Benchmark(ctx, platform.BenchmarkConfig{
		ID:       req.ID,
		Problem:  req.Problem,
		Notes:    req.Notes,
		Settings: req.Settings,
		Runs:     req.Runs,
		OnRun:    req.OnRun,
	})
}

// Experiments lists the recorded benchmark experiments, newest first.
func (c *Client) Experiments(_ context.Context) ([]stats.BenchmarkExperiment, error) {
	return stats.ListBenchmarkExperiments(c.artifactsDir)
}

// StopRun cancels a run started by this client that is still in progress.
func (c *Client) StopRun(runID string) error {
	return c.coordinator.StopRun(runID)
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if req.Limit == 0 {
		req.Limit = defaultRunsLimit
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, min(len(records), req.Limit))
	for i := len(records) - 1; i >= 0 && len(out) < req.Limit; i-- {
		out = append(out, toRunItem(records[i]))
	}
	return out, nil
}

// RunRecord returns the stored summary of one run.
func (c *Client) RunRecord(ctx context.Context, runID string, latest bool) (RunItem, error) {
	record, err := c.resolveRun(ctx, runID, latest, "run record")
	if err != nil {
		return RunItem{}, err
	}
	return toRunItem(record), nil
}

// Artifacts reads the config, top individuals and diagnostics a run wrote to
// the artifacts directory.
func (c *Client) Artifacts(ctx context.Context, runID string, latest bool) (RunArtifacts, error) {
	record, err := c.resolveRun(ctx, runID, latest, "artifacts")
	if err != nil {
		return RunArtifacts{}, err
	}
	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, record.ID)
	if err != nil {
		return RunArtifacts{}, err
	}
	if !ok {
		return RunArtifacts{}, fmt.Errorf("artifacts not found for run id: %s", record.ID)
	}
	top, _, err := stats.ReadTopIndividuals(c.artifactsDir, record.ID)
	if err != nil {
		return RunArtifacts{}, err
	}
	diagnostics, _, err := stats.ReadGenerationDiagnostics(c.artifactsDir, record.ID)
	if err != nil {
		return RunArtifacts{}, err
	}
	return RunArtifacts{Config: cfg, TopIndividuals: top, Diagnostics: diagnostics}, nil
}

func toRunItem(r model.RunRecord) RunItem {
	return RunItem{
		RunID:            r.ID,
		StartedAtUTC:     r.StartedAt.UTC().Format(time.RFC3339),
		Duration:         r.FinishedAt.Sub(r.StartedAt),
		Problem:          r.Problem,
		Status:           r.Status,
		Error:            r.Error,
		Seed:             r.Seed,
		Generations:      r.Generations,
		Evaluations:      r.Evaluations,
		FinalBestFitness: r.BestFitness,
		BestDisplay:      r.BestDisplay,
		Solved:           r.Solved,
	}
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	record, err := c.resolveRun(ctx, req.RunID, req.Latest, "fitness history")
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", record.ID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	record, err := c.resolveRun(ctx, req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", record.ID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

// Population returns the final generation of a run, fittest first.
func (c *Client) Population(ctx context.Context, req PopulationRequest) ([]model.IndividualRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	record, err := c.resolveRun(ctx, req.RunID, req.Latest, "population")
	if err != nil {
		return nil, err
	}
	snapshot, ok, err := c.store.GetPopulation(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("population not found for run id: %s", record.ID)
	}
	individuals := snapshot.Individuals
	if req.Limit > 0 && len(individuals) > req.Limit {
		individuals = individuals[:req.Limit]
	}
	out := make([]model.IndividualRecord, len(individuals))
	copy(out, individuals)
	return out, nil
}

// resolveRun finds the run named by runID, or the most recently started run
// when latest is set.
func (c *Client) resolveRun(ctx context.Context, runID string, latest bool, what string) (model.RunRecord, error) {
	if runID != "" && latest {
		return model.RunRecord{}, errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return model.RunRecord{}, fmt.Errorf("%s requires run id or latest", what)
	}
	if err := c.Init(ctx); err != nil {
		return model.RunRecord{}, err
	}

	if latest {
		records, err := c.store.ListRuns(ctx)
		if err != nil {
			return model.RunRecord{}, err
		}
		if len(records) == 0 {
			return model.RunRecord{}, errors.New("no runs available")
		}
		return records[len(records)-1], nil
	}

	record, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return record, nil
}
