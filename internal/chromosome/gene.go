package chromosome

import (
	"fmt"

	"revolver/internal/entropy"
)

// Gene draws one random gene value.
type Gene[E any] func(gen entropy.Generator) E

func Bool() Gene[bool] {
	return entropy.Bool
}

// Float draws uniformly from [0, 1).
func Float() Gene[float64] {
	return func(gen entropy.Generator) float64 { return gen.Float64() }
}

func FloatRange(min, max float64) Gene[float64] {
	if max < min {
		panic(fmt.Sprintf("chromosome: invalid float gene range [%g, %g]", min, max))
	}
	return func(gen entropy.Generator) float64 { return entropy.FloatInRange(gen, min, max) }
}

func IntRange(min, max int) Gene[int] {
	if max < min {
		panic(fmt.Sprintf("chromosome: invalid int gene range [%d, %d]", min, max))
	}
	return func(gen entropy.Generator) int { return entropy.IntInRange(gen, min, max) }
}

// Discrete picks uniformly among a fixed set of values.
func Discrete[E any](values ...E) Gene[E] {
	if len(values) == 0 {
		panic("chromosome: discrete gene needs at least one value")
	}
	choices := make([]E, len(values))
	copy(choices, values)
	return func(gen entropy.Generator) E {
		return choices[entropy.IntInRange(gen, 0, len(choices)-1)]
	}
}
