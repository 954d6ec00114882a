package evo

import "time"

// Condition decides, at a generation boundary, whether a run should stop.
type Condition[C any] interface {
	ShouldTerminate(pool *MatingPool[C]) bool
}

// ConditionFunc adapts a predicate to Condition.
type ConditionFunc[C any] func(pool *MatingPool[C]) bool

func (f ConditionFunc[C]) ShouldTerminate(pool *MatingPool[C]) bool {
	return f(pool)
}

// MaxGenerations stops once the pool reaches the given generation count.
func MaxGenerations[C any](n int) Condition[C] {
	return ConditionFunc[C](func(pool *MatingPool[C]) bool {
		return pool.Generation() >= n
	})
}

type FitnessKind int

const (
	BestFitness FitnessKind = iota
	AverageFitness
)

func (k FitnessKind) String() string {
	switch k {
	case BestFitness:
		return "best"
	case AverageFitness:
		return "average"
	default:
		return "unknown"
	}
}

// FitnessThreshold stops once the best or average fitness reaches value.
func FitnessThreshold[C any](value float64, kind FitnessKind) Condition[C] {
	return ConditionFunc[C](func(pool *MatingPool[C]) bool {
		if kind == AverageFitness {
			return pool.AverageFitness() >= value
		}
		return pool.BestFitness() >= value
	})
}

// AfterDate stops once the wall clock has passed deadline.
func AfterDate[C any](deadline time.Time) Condition[C] {
	return afterDateWithClock[C](deadline, time.Now)
}

func afterDateWithClock[C any](deadline time.Time, now func() time.Time) Condition[C] {
	return ConditionFunc[C](func(*MatingPool[C]) bool {
		return now().After(deadline)
	})
}

// And and Or always evaluate both operands.
func And[C any](a, b Condition[C]) Condition[C] {
	return ConditionFunc[C](func(pool *MatingPool[C]) bool {
		left := a.ShouldTerminate(pool)
		right := b.ShouldTerminate(pool)
		return left && right
	})
}

func Or[C any](a, b Condition[C]) Condition[C] {
	return ConditionFunc[C](func(pool *MatingPool[C]) bool {
		left := a.ShouldTerminate(pool)
		right := b.ShouldTerminate(pool)
		return left || right
	})
}

func Not[C any](a Condition[C]) Condition[C] {
	return ConditionFunc[C](func(pool *MatingPool[C]) bool {
		return !a.ShouldTerminate(pool)
	})
}

// Any folds conditions with Or. It panics on an empty list.
func Any[C any](conditions ...Condition[C]) Condition[C] {
	if len(conditions) == 0 {
		panic("evo: Any requires at least one condition")
	}
	out := conditions[0]
	for _, c := range conditions[1:] {
		out = Or(out, c)
	}
	return out
}

// All folds conditions with And. It panics on an empty list.
func All[C any](conditions ...Condition[C]) Condition[C] {
	if len(conditions) == 0 {
		panic("evo: All requires at least one condition")
	}
	out := conditions[0]
	for _, c := range conditions[1:] {
		out = And(out, c)
	}
	return out
}
