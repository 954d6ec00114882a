package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"revolver/internal/evo"
	"revolver/internal/model"
	"revolver/internal/problem"
	"revolver/internal/stats"
	"revolver/internal/storage"
	"revolver/internal/telemetry"
)

const topIndividualCount = 5

var (
	ErrNotInitialized = errors.New("coordinator is not initialized")
	ErrRunActive      = errors.New("run already active")
	ErrRunNotActive   = errors.New("run not active")
)

type Config struct {
	Store storage.Store
	// ArtifactsDir receives per-run artifact directories and the run index.
	// Empty disables artifacts.
	ArtifactsDir string
	Logger       *slog.Logger
	Metrics      *telemetry.Metrics
	Tracer       trace.Tracer
	Now          func() time.Time
}

// Coordinator runs registered problems and persists what they produce.
type Coordinator struct {
	store        storage.Store
	artifactsDir string
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	tracer       trace.Tracer
	now          func() time.Time

	mu      sync.RWMutex
	started bool
	runs    map[string]context.CancelFunc
}

func NewCoordinator(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store:        cfg.Store,
		artifactsDir: cfg.ArtifactsDir,
		logger:       logger,
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
		now:          now,
		runs:         make(map[string]context.CancelFunc),
	}
}

func (c *Coordinator) Init(ctx context.Context) error {
	if c.store == nil {
		return fmt.Errorf("store is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.started = true
	return nil
}

func (c *Coordinator) Started() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Stop cancels every active run and closes the store.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	for _, cancel := range c.runs {
		cancel()
	}
	c.runs = make(map[string]context.CancelFunc)
	wasStarted := c.started
	c.started = false
	c.mu.Unlock()

	if !wasStarted {
		return nil
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Coordinator) Store() storage.Store {
	return c.store
}

type RunConfig struct {
	// RunID defaults to a fresh UUID.
	RunID        string
	Problem      string
	Settings     problem.Settings
	OnGeneration func(evo.GenerationStats)
}

type RunResult struct {
	Record model.RunRecord
	Result problem.Result
	// ArtifactsDir is empty when artifacts are disabled.
	ArtifactsDir string
}

// Run evolves one problem to completion. Aborted runs are still recorded,
// with their error, before the error is returned.
func (c *Coordinator) Run(ctx context.Context, cfg RunConfig) (RunResult, error) {
	if !c.Started() {
		return RunResult{}, ErrNotInitialized
	}
	p, err := problem.Resolve(cfg.Problem)
	if err != nil {
		return RunResult{}, err
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := c.registerRun(runID, cancel); err != nil {
		return RunResult{}, err
	}
	defer c.unregisterRun(runID)

	settings := cfg.Settings.WithDefaults(p.Defaults())
	encodedSettings, err := json.Marshal(settings)
	if err != nil {
		return RunResult{}, fmt.Errorf("encode settings: %w", err)
	}
	record := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Problem:         p.Name(),
		Seed:            settings.Seed,
		Settings:        encodedSettings,
		StartedAt:       c.now().UTC(),
	}

	logger := c.logger.With("run_id", runID, "problem", p.Name())
	result, runErr := p.Run(runCtx, cfg.Settings, problem.Observer{
		Logger:       logger,
		Metrics:      c.metrics,
		Tracer:       c.tracer,
		OnGeneration: cfg.OnGeneration,
	})
	record.FinishedAt = c.now().UTC()

	if runErr != nil {
		record.Status = model.RunStatusAborted
		record.Error = runErr.Error()
		if err := c.store.SaveRun(context.WithoutCancel(ctx), record); err != nil {
			logger.Warn("persist aborted run", "error", err)
		}
		return RunResult{Record: record}, runErr
	}

	record.Status = model.RunStatusCompleted
	record.Generations = result.Generations
	record.Evaluations = result.Evaluations
	record.BestFitness = result.Best.Fitness
	record.BestDisplay = result.Best.Display
	record.Solved = result.Solved

	if err := c.persist(ctx, record, result); err != nil {
		return RunResult{}, fmt.Errorf("persist run %s: %w", runID, err)
	}
	out := RunResult{Record: record, Result: result}
	if c.artifactsDir != "" {
		dir, err := c.writeArtifacts(record, result)
		if err != nil {
			return RunResult{}, fmt.Errorf("write artifacts for run %s: %w", runID, err)
		}
		out.ArtifactsDir = dir
	}
	logger.Info("run persisted",
		"generations", record.Generations,
		"evaluations", record.Evaluations,
		"best_fitness", record.BestFitness,
		"solved", record.Solved,
	)
	return out, nil
}

func (c *Coordinator) persist(ctx context.Context, record model.RunRecord, result problem.Result) error {
	if err := c.store.SaveRun(ctx, record); err != nil {
		return err
	}
	if err := c.store.SaveFitnessHistory(ctx, record.ID, BestByGeneration(result.History)); err != nil {
		return err
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, record.ID, ToModelDiagnostics(result.History)); err != nil {
		return err
	}
	return c.store.SavePopulation(ctx, model.PopulationSnapshot{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           record.ID,
		Generation:      result.Generations,
		Individuals:     ToModelIndividuals(result.Population),
	})
}

func (c *Coordinator) writeArtifacts(record model.RunRecord, result problem.Result) (string, error) {
	individuals := ToModelIndividuals(result.Population)
	if len(individuals) > topIndividualCount {
		individuals = individuals[:topIndividualCount]
	}
	dir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          record.ID,
			Problem:        record.Problem,
			PopulationSize: result.Settings.Population,
			MaxGenerations: result.Settings.MaxGenerations,
			Seed:           result.Settings.Seed,
			Workers:        result.Settings.Workers,
			Elitism:        result.Settings.Elitism,
			Settings:       record.Settings,
		},
		Diagnostics:      ToModelDiagnostics(result.History),
		FinalBestFitness: record.BestFitness,
		TopIndividuals:   individuals,
	})
	if err != nil {
		return "", err
	}
	err = stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            record.ID,
		Problem:          record.Problem,
		PopulationSize:   result.Settings.Population,
		Generations:      record.Generations,
		Evaluations:      record.Evaluations,
		Seed:             record.Seed,
		Workers:          result.Settings.Workers,
		Elitism:          result.Settings.Elitism,
		Solved:           record.Solved,
		FinalBestFitness: record.BestFitness,
		CreatedAtUTC:     record.StartedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}
	return dir, nil
}

// StopRun cancels an active run.
func (c *Coordinator) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	c.mu.RLock()
	cancel, ok := c.runs[runID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	cancel()
	return nil
}

func (c *Coordinator) ActiveRuns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.runs))
	for id := range c.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Coordinator) registerRun(runID string, cancel context.CancelFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return ErrNotInitialized
	}
	if _, exists := c.runs[runID]; exists {
		return fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	c.runs[runID] = cancel
	return nil
}

func (c *Coordinator) unregisterRun(runID string) {
	c.mu.Lock()
	delete(c.runs, runID)
	c.mu.Unlock()
}

// BestByGeneration extracts the best fitness of every generation.
func BestByGeneration(history []evo.GenerationStats) []float64 {
	out := make([]float64, 0, len(history))
	for _, s := range history {
		out = append(out, s.Best)
	}
	return out
}

func ToModelDiagnostics(history []evo.GenerationStats) []model.GenerationDiagnostics {
	out := make([]model.GenerationDiagnostics, 0, len(history))
	for _, s := range history {
		out = append(out, model.GenerationDiagnostics{
			Generation:     s.Generation,
			Size:           s.Size,
			BestFitness:    s.Best,
			AverageFitness: s.Average,
			WorstFitness:   s.Worst,
			Evaluations:    s.Evaluations,
			Distinct:       s.Distinct,
		})
	}
	return out
}

// ToModelIndividuals ranks a population that is already ordered fittest
// first.
func ToModelIndividuals(population []problem.Individual) []model.IndividualRecord {
	out := make([]model.IndividualRecord, 0, len(population))
	for i, individual := range population {
		out = append(out, model.IndividualRecord{
			Rank:       i + 1,
			Chromosome: append([]byte(nil), individual.Chromosome...),
			Display:    individual.Display,
			Fitness:    individual.Fitness,
		})
	}
	return out
}
