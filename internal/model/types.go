package model

import (
	"encoding/json"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

const (
	RunStatusCompleted = "completed"
	RunStatusAborted   = "aborted"
)

// RunRecord summarizes one evolution run.
type RunRecord struct {
	VersionedRecord
	ID          string          `json:"id"`
	Problem     string          `json:"problem"`
	Seed        uint32          `json:"seed"`
	Settings    json.RawMessage `json:"settings"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Generations int             `json:"generations"`
	Evaluations int             `json:"evaluations"`
	BestFitness float64         `json:"best_fitness"`
	BestDisplay string          `json:"best_display"`
	Solved      bool            `json:"solved"`
}

type GenerationDiagnostics struct {
	Generation     int     `json:"generation"`
	Size           int     `json:"size"`
	BestFitness    float64 `json:"best_fitness"`
	AverageFitness float64 `json:"average_fitness"`
	WorstFitness   float64 `json:"worst_fitness"`
	Evaluations    int     `json:"evaluations"`
	Distinct       int     `json:"distinct"`
}

type IndividualRecord struct {
	Rank       int             `json:"rank"`
	Chromosome json.RawMessage `json:"chromosome"`
	Display    string          `json:"display"`
	Fitness    float64         `json:"fitness"`
}

// PopulationSnapshot is the final generation of a run, fittest first.
type PopulationSnapshot struct {
	VersionedRecord
	RunID       string             `json:"run_id"`
	Generation  int                `json:"generation"`
	Individuals []IndividualRecord `json:"individuals"`
}
