package problem

import (
	"context"
	"fmt"

	"revolver/internal/chromosome"
	"revolver/internal/evo"
)

type Item struct {
	Size  float64 `json:"size"`
	Value float64 `json:"value"`
}

type Instance struct {
	Capacity float64 `json:"capacity"`
	Items    []Item  `json:"items"`
}

// ReferenceInstance is the classic ten-item instance with capacity 165. Its
// unique optimum packs items 0-3 and 5 for a value of 309.
func ReferenceInstance() Instance {
	return Instance{
		Capacity: 165,
		Items: []Item{
			{Size: 23, Value: 92},
			{Size: 31, Value: 57},
			{Size: 29, Value: 49},
			{Size: 44, Value: 68},
			{Size: 53, Value: 60},
			{Size: 38, Value: 43},
			{Size: 63, Value: 67},
			{Size: 85, Value: 84},
			{Size: 89, Value: 87},
			{Size: 82, Value: 72},
		},
	}
}

// maxExhaustiveItems bounds the instance size for which the optimum is
// computed by enumeration.
const maxExhaustiveItems = 20

// Knapsack evolves a packing as one bit per item. Overweight packings score
// zero; the rest score their value over the total value of all items.
type Knapsack struct {
	instance   Instance
	totalValue float64
}

func NewKnapsack(instance Instance) *Knapsack {
	total := 0.0
	for _, item := range instance.Items {
		total += item.Value
	}
	return &Knapsack{instance: instance, totalValue: total}
}

func (k *Knapsack) Name() string {
	return "knapsack"
}

func (k *Knapsack) Description() string {
	return fmt.Sprintf("0/1 knapsack over %d items with capacity %g", len(k.instance.Items), k.instance.Capacity)
}

func (k *Knapsack) Instance() Instance {
	return k.instance
}

func (k *Knapsack) Defaults() Settings {
	return Settings{
		Population:     200,
		MaxGenerations: 100,
		Seed:           4242,
		Elitism:        1,
		Weights:        Weights{Reproduction: 0.8, Mutation: 0.1, Crossover: 0.1},
		Selections: Selections{
			Reproduction:    "random",
			Mutation:        "roulette",
			Crossover:       "tournament",
			TournamentOrder: 5,
		},
		Crossover: CrossoverOnePoint,
	}
}

func (k *Knapsack) Fitness(_ context.Context, packing chromosome.Array[bool]) (float64, error) {
	if packing.Len() != len(k.instance.Items) {
		return 0, fmt.Errorf("packing has %d genes, instance has %d items", packing.Len(), len(k.instance.Items))
	}
	if k.totalValue <= 0 {
		return 0, nil
	}
	size, value := k.measure(packing.Values())
	if size > k.instance.Capacity {
		return 0, nil
	}
	return value / k.totalValue, nil
}

func (k *Knapsack) measure(packing []bool) (size, value float64) {
	for i, packed := range packing {
		if packed {
			size += k.instance.Items[i].Size
			value += k.instance.Items[i].Value
		}
	}
	return size, value
}

// Optimum enumerates every packing of small instances. ok is false when the
// instance is too large to enumerate.
func (k *Knapsack) Optimum() (packing []bool, value float64, ok bool) {
	n := len(k.instance.Items)
	if n == 0 || n > maxExhaustiveItems {
		return nil, 0, false
	}
	current := make([]bool, n)
	for mask := 0; mask < 1<<n; mask++ {
		for i := range current {
			current[i] = mask&(1<<i) != 0
		}
		size, v := k.measure(current)
		if size <= k.instance.Capacity && v > value {
			value = v
			packing = append(packing[:0], current...)
		}
	}
	return packing, value, packing != nil
}

func (k *Knapsack) Run(ctx context.Context, settings Settings, obs Observer) (Result, error) {
	settings = settings.WithDefaults(k.Defaults())
	items := len(k.instance.Items)
	if items == 0 {
		return Result{}, fmt.Errorf("knapsack instance has no items")
	}
	if settings.Length != 0 && settings.Length != items {
		return Result{}, fmt.Errorf("knapsack length is fixed at %d items", items)
	}
	if settings.Crossover == CrossoverTwoPoint && items < 2 {
		return Result{}, fmt.Errorf("two-point crossover needs at least 2 items")
	}
	settings.Length = items

	var solved func(chromosome.Array[bool], float64) bool
	if _, optimum, ok := k.Optimum(); ok {
		solved = func(best chromosome.Array[bool], fitness float64) bool {
			_, value := k.measure(best.Values())
			return fitness > 0 && value >= optimum
		}
	}

	layout := chromosome.FixedLayout(items, chromosome.Bool())
	return solve(ctx, settings, obs, solveTarget[chromosome.Array[bool]]{
		name:      k.Name(),
		factory:   layout.Factory(),
		evaluator: evo.EvaluatorFunc[chromosome.Array[bool]](k.Fitness),
		display:   chromosome.BitString,
		solved:    solved,
	})
}
