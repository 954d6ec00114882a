package stats

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"revolver/internal/model"
)

const (
	runIndexFile              = "run_index.json"
	configFile                = "config.json"
	fitnessHistoryFile        = "fitness_history.csv"
	generationDiagnosticsFile = "generation_diagnostics.csv"
	topIndividualsFile        = "top_individuals.json"
)

var fitnessHistoryHeader = []string{"generation", "best_fitness", "average_fitness", "worst_fitness"}

var diagnosticsHeader = []string{"generation", "size", "best_fitness", "average_fitness", "worst_fitness", "evaluations", "distinct"}

type RunConfig struct {
	RunID          string          `json:"run_id"`
	Problem        string          `json:"problem"`
	Store          string          `json:"store,omitempty"`
	PopulationSize int             `json:"population_size"`
	MaxGenerations int             `json:"max_generations"`
	Seed           uint32          `json:"seed"`
	Workers        int             `json:"workers"`
	Elitism        int             `json:"elitism"`
	Settings       json.RawMessage `json:"settings,omitempty"`
}

type RunArtifacts struct {
	Config           RunConfig                     `json:"config"`
	Diagnostics      []model.GenerationDiagnostics `json:"generation_diagnostics"`
	FinalBestFitness float64                       `json:"final_best_fitness"`
	TopIndividuals   []model.IndividualRecord      `json:"top_individuals"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Problem          string  `json:"problem"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Evaluations      int     `json:"evaluations"`
	Seed             uint32  `json:"seed"`
	Workers          int     `json:"workers"`
	Elitism          int     `json:"elitism"`
	Solved           bool    `json:"solved"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeFitnessHistory(filepath.Join(runDir, fitnessHistoryFile), artifacts.Diagnostics); err != nil {
		return "", err
	}
	if err := writeDiagnostics(filepath.Join(runDir, generationDiagnosticsFile), artifacts.Diagnostics); err != nil {
		return "", err
	}
	top := artifacts.TopIndividuals
	if top == nil {
		top = []model.IndividualRecord{}
	}
	if err := writeJSON(filepath.Join(runDir, topIndividualsFile), top); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// readRunIndex returns the indexed runs in append order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	var entries []RunIndexEntry
	ok, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries)
	if err != nil {
		return nil, err
	}
	if !ok || entries == nil {
		return []RunIndexEntry{}, nil
	}
	return entries, nil
}

// ListRunIndex returns the indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win on equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory to outDir/runID.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{configFile, fitnessHistoryFile, generationDiagnosticsFile, topIndividualsFile}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

// ReadRunConfig returns the stored run config with Settings compacted.
func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	if err != nil || !ok {
		return RunConfig{}, ok, err
	}
	if len(cfg.Settings) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, cfg.Settings); err != nil {
			return RunConfig{}, false, fmt.Errorf("run config settings: %w", err)
		}
		cfg.Settings = compact.Bytes()
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadTopIndividuals(baseDir, runID string) ([]model.IndividualRecord, bool, error) {
	var top []model.IndividualRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, topIndividualsFile), &top)
	if err != nil || !ok {
		return nil, ok, err
	}
	return top, true, nil
}

// ReadFitnessHistory returns the best fitness of every generation.
func ReadFitnessHistory(baseDir, runID string) ([]float64, bool, error) {
	rows, ok, err := readCSV(filepath.Join(baseDir, runID, fitnessHistoryFile), len(fitnessHistoryHeader))
	if err != nil || !ok {
		return nil, ok, err
	}
	series := make([]float64, 0, len(rows))
	for _, record := range rows {
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	rows, ok, err := readCSV(filepath.Join(baseDir, runID, generationDiagnosticsFile), len(diagnosticsHeader))
	if err != nil || !ok {
		return nil, ok, err
	}
	diagnostics := make([]model.GenerationDiagnostics, 0, len(rows))
	for _, record := range rows {
		var (
			d    model.GenerationDiagnostics
			errs [7]error
		)
		d.Generation, errs[0] = strconv.Atoi(record[0])
		d.Size, errs[1] = strconv.Atoi(record[1])
		d.BestFitness, errs[2] = strconv.ParseFloat(record[2], 64)
		d.AverageFitness, errs[3] = strconv.ParseFloat(record[3], 64)
		d.WorstFitness, errs[4] = strconv.ParseFloat(record[4], 64)
		d.Evaluations, errs[5] = strconv.Atoi(record[5])
		d.Distinct, errs[6] = strconv.Atoi(record[6])
		for _, err := range errs {
			if err != nil {
				return nil, false, fmt.Errorf("generation diagnostics row %s: %w", record[0], err)
			}
		}
		diagnostics = append(diagnostics, d)
	}
	return diagnostics, true, nil
}

func writeFitnessHistory(path string, diagnostics []model.GenerationDiagnostics) error {
	rows := make([][]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		rows = append(rows, []string{
			strconv.Itoa(d.Generation),
			formatFloat(d.BestFitness),
			formatFloat(d.AverageFitness),
			formatFloat(d.WorstFitness),
		})
	}
	return writeCSV(path, fitnessHistoryHeader, rows)
}

func writeDiagnostics(path string, diagnostics []model.GenerationDiagnostics) error {
	rows := make([][]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		rows = append(rows, []string{
			strconv.Itoa(d.Generation),
			strconv.Itoa(d.Size),
			formatFloat(d.BestFitness),
			formatFloat(d.AverageFitness),
			formatFloat(d.WorstFitness),
			strconv.Itoa(d.Evaluations),
			strconv.Itoa(d.Distinct),
		})
	}
	return writeCSV(path, diagnosticsHeader, rows)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return file.Sync()
}

// readCSV returns the rows after the header. Every row must carry at least
// columns fields.
func readCSV(path string, columns int) ([][]string, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return [][]string{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < columns {
		return nil, false, fmt.Errorf("%s header must have at least %d columns", filepath.Base(path), columns)
	}

	rows := make([][]string, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < columns {
			return nil, false, fmt.Errorf("%s row must have at least %d columns", filepath.Base(path), columns)
		}
		rows = append(rows, record)
	}
	return rows, true, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
