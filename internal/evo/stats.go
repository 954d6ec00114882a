package evo

// GenerationStats summarizes one evaluated generation.
type GenerationStats struct {
	Generation  int     `json:"generation"`
	Size        int     `json:"size"`
	Best        float64 `json:"best_fitness"`
	Average     float64 `json:"average_fitness"`
	Worst       float64 `json:"worst_fitness"`
	Evaluations int     `json:"evaluations"`
	Distinct    int     `json:"distinct"`
}

// Summarize reads the statistics of the pool's current generation.
// evaluations is the running evaluation count to record; fingerprint, when
// set, is used to count distinct chromosomes.
func Summarize[C any](pool *MatingPool[C], evaluations int, fingerprint func(C) string) GenerationStats {
	stats := GenerationStats{
		Generation:  pool.Generation(),
		Size:        pool.Size(),
		Evaluations: evaluations,
	}
	if pool.Size() == 0 {
		return stats
	}
	stats.Best = pool.BestFitness()
	stats.Average = pool.AverageFitness()
	stats.Worst = pool.WorstFitness()
	if fingerprint != nil {
		seen := make(map[string]struct{}, pool.Size())
		for i := 0; i < pool.Size(); i++ {
			seen[fingerprint(pool.At(i).Chromosome)] = struct{}{}
		}
		stats.Distinct = len(seen)
	}
	return stats
}
