// Package chromosome provides a ready-made array chromosome whose genes are
// drawn by a pluggable generator. It supports every capability the engine
// knows: random construction, mutation, and one- and two-point crossover.
package chromosome

import (
	"encoding/json"
	"fmt"
	"strings"

	"revolver/internal/entropy"
	"revolver/internal/evo"
)

// Layout describes how arrays of a kind are built: a length range and the
// generator used for fresh genes.
type Layout[E any] struct {
	MinLength int
	MaxLength int
	Gene      Gene[E]
}

// FixedLayout builds arrays of exactly length genes.
func FixedLayout[E any](length int, gene Gene[E]) *Layout[E] {
	return NewLayout(length, length, gene)
}

// NewLayout panics on an invalid length range or a nil gene generator.
func NewLayout[E any](minLength, maxLength int, gene Gene[E]) *Layout[E] {
	if minLength <= 0 || maxLength < minLength {
		panic(fmt.Sprintf("chromosome: invalid length range [%d, %d]", minLength, maxLength))
	}
	if gene == nil {
		panic("chromosome: gene generator is required")
	}
	return &Layout[E]{MinLength: minLength, MaxLength: maxLength, Gene: gene}
}

// Random builds an array with a uniform length in [MinLength, MaxLength] and
// freshly drawn genes.
func (l *Layout[E]) Random(gen entropy.Generator) Array[E] {
	size := entropy.IntInRange(gen, l.MinLength, l.MaxLength)
	genes := make([]E, size)
	for i := range genes {
		genes[i] = l.Gene(gen)
	}
	return Array[E]{layout: l, genes: genes}
}

func (l *Layout[E]) Factory() evo.Factory[Array[E]] {
	return l.Random
}

// New wraps explicit gene values.
func (l *Layout[E]) New(values ...E) Array[E] {
	genes := make([]E, len(values))
	copy(genes, values)
	return Array[E]{layout: l, genes: genes}
}

// Decode reads an array written by Array.MarshalJSON. The length must fit
// the layout.
func (l *Layout[E]) Decode(data []byte) (Array[E], error) {
	var values []E
	if err := json.Unmarshal(data, &values); err != nil {
		return Array[E]{}, fmt.Errorf("decode chromosome: %w", err)
	}
	if len(values) < l.MinLength || len(values) > l.MaxLength {
		return Array[E]{}, fmt.Errorf("decode chromosome: length %d outside [%d, %d]", len(values), l.MinLength, l.MaxLength)
	}
	return Array[E]{layout: l, genes: values}, nil
}

// Array is an immutable gene sequence. Every operation returns new arrays.
type Array[E any] struct {
	layout *Layout[E]
	genes  []E
}

func (a Array[E]) Len() int {
	return len(a.genes)
}

func (a Array[E]) At(i int) E {
	return a.genes[i]
}

func (a Array[E]) Values() []E {
	out := make([]E, len(a.genes))
	copy(out, a.genes)
	return out
}

// Mutate replaces one uniformly chosen gene with a fresh one.
func (a Array[E]) Mutate(gen entropy.Generator) Array[E] {
	if len(a.genes) == 0 {
		panic("chromosome: cannot mutate an empty array")
	}
	index := entropy.IntInRange(gen, 0, len(a.genes)-1)
	out := a.Values()
	out[index] = a.layout.Gene(gen)
	return Array[E]{layout: a.layout, genes: out}
}

// OnePointCrossover cuts both parents at one index in [0, shorter length-1]
// and swaps their tails.
func (a Array[E]) OnePointCrossover(gen entropy.Generator, other Array[E]) (Array[E], Array[E]) {
	shorter := min(len(a.genes), len(other.genes))
	if shorter == 0 {
		panic("chromosome: cannot cross over an empty array")
	}
	cut := entropy.IntInRange(gen, 0, shorter-1)

	first := make([]E, 0, len(other.genes))
	first = append(first, a.genes[:cut]...)
	first = append(first, other.genes[cut:]...)

	second := make([]E, 0, len(a.genes))
	second = append(second, other.genes[:cut]...)
	second = append(second, a.genes[cut:]...)

	return Array[E]{layout: a.layout, genes: first}, Array[E]{layout: a.layout, genes: second}
}

// TwoPointCrossover swaps the segment [lo, hi) between both parents, where
// 0 <= lo < hi <= shorter length-1.
func (a Array[E]) TwoPointCrossover(gen entropy.Generator, other Array[E]) (Array[E], Array[E]) {
	maxIndex := min(len(a.genes), len(other.genes)) - 1
	if maxIndex < 1 {
		panic("chromosome: two-point crossover needs arrays of at least two genes")
	}
	lo := entropy.IntInRange(gen, 0, maxIndex-1)
	hi := entropy.IntInRange(gen, lo+1, maxIndex)

	first := make([]E, 0, len(a.genes))
	first = append(first, a.genes[:lo]...)
	first = append(first, other.genes[lo:hi]...)
	first = append(first, a.genes[hi:]...)

	second := make([]E, 0, len(other.genes))
	second = append(second, other.genes[:lo]...)
	second = append(second, a.genes[lo:hi]...)
	second = append(second, other.genes[hi:]...)

	return Array[E]{layout: a.layout, genes: first}, Array[E]{layout: a.layout, genes: second}
}

func (a Array[E]) MarshalJSON() ([]byte, error) {
	if a.genes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.genes)
}

func (a Array[E]) String() string {
	parts := make([]string, len(a.genes))
	for i, g := range a.genes {
		parts[i] = fmt.Sprint(g)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// BitString renders a bool array as 0s and 1s.
func BitString(a Array[bool]) string {
	var b strings.Builder
	b.Grow(a.Len())
	for _, bit := range a.genes {
		if bit {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Ones counts the set genes of a bool array.
func Ones(a Array[bool]) int {
	n := 0
	for _, bit := range a.genes {
		if bit {
			n++
		}
	}
	return n
}
