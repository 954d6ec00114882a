package entropy

import "math/rand"

// MathRand adapts a math/rand source to Generator.
type MathRand struct {
	rng *rand.Rand
}

func NewMathRand(seed int64) *MathRand {
	return &MathRand{rng: rand.New(rand.NewSource(seed))}
}

// FromRand wraps an existing *rand.Rand. The caller keeps ownership.
func FromRand(rng *rand.Rand) *MathRand {
	return &MathRand{rng: rng}
}

func (m *MathRand) Float64() float64 {
	return m.rng.Float64()
}
