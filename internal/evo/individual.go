package evo

// Individual is one chromosome plus its fitness once evaluated.
type Individual[C any] struct {
	Chromosome C
	fitness    float64
	scored     bool
}

// NewIndividual wraps a freshly produced chromosome with no fitness.
func NewIndividual[C any](chromosome C) Individual[C] {
	return Individual[C]{Chromosome: chromosome}
}

// ScoredIndividual wraps a chromosome whose fitness is already known.
func ScoredIndividual[C any](chromosome C, fitness float64) Individual[C] {
	return Individual[C]{Chromosome: chromosome, fitness: fitness, scored: true}
}

func (i Individual[C]) Fitness() (float64, bool) {
	return i.fitness, i.scored
}

func (i Individual[C]) Scored() bool {
	return i.scored
}

// MustFitness returns the fitness and panics when the individual was never
// evaluated.
func (i Individual[C]) MustFitness() float64 {
	if !i.scored {
		panic("evo: fitness read before the individual was evaluated")
	}
	return i.fitness
}
