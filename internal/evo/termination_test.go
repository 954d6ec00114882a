package evo

import (
	"testing"
	"time"
)

type countingCondition struct {
	result bool
	calls  int
}

func (c *countingCondition) ShouldTerminate(*MatingPool[int]) bool {
	c.calls++
	return c.result
}

func TestMaxGenerations(t *testing.T) {
	pool := scoredPool(0.5)
	cond := MaxGenerations[int](2)
	for gen := 0; gen < 2; gen++ {
		if cond.ShouldTerminate(pool) {
			t.Fatalf("terminated early at generation %d", pool.Generation())
		}
		pool.BeginReproduction()
		pool.AddOffspring(ScoredIndividual(0, 0.5))
		pool.AdvanceGeneration()
	}
	if !cond.ShouldTerminate(pool) {
		t.Fatalf("expected termination at generation %d", pool.Generation())
	}
}

func TestFitnessThreshold(t *testing.T) {
	pool := scoredPool(0.2, 1.0)
	if !FitnessThreshold[int](1.0, BestFitness).ShouldTerminate(pool) {
		t.Fatal("expected best fitness threshold to be met")
	}
	if FitnessThreshold[int](1.0, AverageFitness).ShouldTerminate(pool) {
		t.Fatal("average fitness 0.6 must not meet 1.0")
	}
	if !FitnessThreshold[int](0.5, AverageFitness).ShouldTerminate(pool) {
		t.Fatal("expected average fitness threshold to be met")
	}
}

func TestAfterDate(t *testing.T) {
	deadline := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := deadline.Add(-time.Second)
	cond := afterDateWithClock[int](deadline, func() time.Time { return now })
	pool := scoredPool(0)

	if cond.ShouldTerminate(pool) {
		t.Fatal("terminated before deadline")
	}
	now = deadline.Add(time.Millisecond)
	if !cond.ShouldTerminate(pool) {
		t.Fatal("expected termination after deadline")
	}
	if !AfterDate[int](time.Now().Add(-time.Hour)).ShouldTerminate(pool) {
		t.Fatal("expected past deadline to terminate")
	}
}

func TestConditionAlgebraEvaluatesBothOperands(t *testing.T) {
	pool := scoredPool(0)
	tests := []struct {
		name  string
		build func(a, b Condition[int]) Condition[int]
		a, b  bool
		want  bool
	}{
		{name: "and true true", build: And[int], a: true, b: true, want: true},
		{name: "and false true", build: And[int], a: false, b: true, want: false},
		{name: "or true false", build: Or[int], a: true, b: false, want: true},
		{name: "or false false", build: Or[int], a: false, b: false, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := &countingCondition{result: tc.a}
			b := &countingCondition{result: tc.b}
			if got := tc.build(a, b).ShouldTerminate(pool); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
			if a.calls != 1 || b.calls != 1 {
				t.Fatalf("expected both operands evaluated once, got a=%d b=%d", a.calls, b.calls)
			}
		})
	}
}

func TestNotAnyAll(t *testing.T) {
	pool := scoredPool(0)
	yes := ConditionFunc[int](func(*MatingPool[int]) bool { return true })
	no := ConditionFunc[int](func(*MatingPool[int]) bool { return false })

	if Not[int](yes).ShouldTerminate(pool) {
		t.Fatal("not(true) must be false")
	}
	if !Any[int](no, no, yes).ShouldTerminate(pool) {
		t.Fatal("any with one true must be true")
	}
	if All[int](yes, no, yes).ShouldTerminate(pool) {
		t.Fatal("all with one false must be false")
	}
	if !All[int](yes).ShouldTerminate(pool) {
		t.Fatal("all(true) must be true")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for empty Any")
		}
	}()
	Any[int]()
}
