package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

const benchmarkExperimentsDir = "experiments"

// BenchmarkRun is one seeded run of a benchmark experiment.
type BenchmarkRun struct {
	RunID       string  `json:"run_id"`
	Seed        uint32  `json:"seed"`
	Generations int     `json:"generations"`
	Evaluations int     `json:"evaluations"`
	Success     bool    `json:"success"`
	FinalBest   float64 `json:"final_best"`
}

type BenchmarkStats struct {
	TotalRuns      int     `json:"total_runs"`
	SuccessRuns    int     `json:"success_runs"`
	SuccessRate    float64 `json:"success_rate"`
	AvgEvaluations float64 `json:"avg_evaluations"`
	StdEvaluations float64 `json:"std_evaluations"`
	MinEvaluations float64 `json:"min_evaluations"`
	MaxEvaluations float64 `json:"max_evaluations"`
	AvgGenerations float64 `json:"avg_generations"`
	FinalBestMean  float64 `json:"final_best_mean"`
	FinalBestStd   float64 `json:"final_best_std"`
}

type BenchmarkExperiment struct {
	ID             string          `json:"id"`
	Problem        string          `json:"problem"`
	Notes          string          `json:"notes,omitempty"`
	StartedAtUTC   string          `json:"started_at_utc,omitempty"`
	CompletedAtUTC string          `json:"completed_at_utc,omitempty"`
	Settings       json.RawMessage `json:"settings,omitempty"`
	Runs           []BenchmarkRun  `json:"runs"`
	Stats          BenchmarkStats  `json:"stats"`
}

// BuildBenchmarkStats aggregates runs. Evaluation figures cover successful
// runs only.
func BuildBenchmarkStats(runs []BenchmarkRun) BenchmarkStats {
	result := BenchmarkStats{TotalRuns: len(runs)}
	if len(runs) == 0 {
		return result
	}

	successValues := make([]float64, 0, len(runs))
	finals := make([]float64, 0, len(runs))
	generations := 0.0
	for _, run := range runs {
		finals = append(finals, run.FinalBest)
		generations += float64(run.Generations)
		if run.Success {
			result.SuccessRuns++
			successValues = append(successValues, float64(run.Evaluations))
		}
	}
	result.SuccessRate = float64(result.SuccessRuns) / float64(result.TotalRuns)
	result.AvgGenerations = generations / float64(len(runs))
	result.FinalBestMean, result.FinalBestStd = meanStd(finals)

	if len(successValues) > 0 {
		result.AvgEvaluations, result.StdEvaluations = meanStd(successValues)
		result.MinEvaluations = successValues[0]
		result.MaxEvaluations = successValues[0]
		for _, value := range successValues[1:] {
			if value < result.MinEvaluations {
				result.MinEvaluations = value
			}
			if value > result.MaxEvaluations {
				result.MaxEvaluations = value
			}
		}
	}
	return result
}

// meanStd returns the mean and population standard deviation of values.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func WriteBenchmarkExperiment(baseDir string, exp BenchmarkExperiment) (string, error) {
	if exp.ID == "" {
		return "", fmt.Errorf("experiment id is required")
	}
	path := benchmarkExperimentPath(baseDir, exp.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if exp.Runs == nil {
		exp.Runs = []BenchmarkRun{}
	}
	if err := writeJSON(path, exp); err != nil {
		return "", err
	}
	return path, nil
}

func ReadBenchmarkExperiment(baseDir, id string) (BenchmarkExperiment, bool, error) {
	if id == "" {
		return BenchmarkExperiment{}, false, fmt.Errorf("experiment id is required")
	}
	var exp BenchmarkExperiment
	ok, err := readJSON(benchmarkExperimentPath(baseDir, id), &exp)
	if err != nil || !ok {
		return BenchmarkExperiment{}, ok, err
	}
	return exp, true, nil
}

// ListBenchmarkExperiments returns stored experiments, newest first.
func ListBenchmarkExperiments(baseDir string) ([]BenchmarkExperiment, error) {
	root := filepath.Join(baseDir, benchmarkExperimentsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []BenchmarkExperiment{}, nil
		}
		return nil, err
	}

	exps := make([]BenchmarkExperiment, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		exp, ok, err := ReadBenchmarkExperiment(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		exps = append(exps, exp)
	}
	sort.Slice(exps, func(i, j int) bool {
		switch {
		case exps[i].StartedAtUTC == exps[j].StartedAtUTC:
			return exps[i].ID < exps[j].ID
		case exps[i].StartedAtUTC == "":
			return false
		case exps[j].StartedAtUTC == "":
			return true
		default:
			return exps[i].StartedAtUTC > exps[j].StartedAtUTC
		}
	})
	return exps, nil
}

func benchmarkExperimentPath(baseDir, id string) string {
	return filepath.Join(baseDir, benchmarkExperimentsDir, id, "experiment.json")
}
