package evo

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ParallelEvaluator spreads one evaluation pass over several lanes. Each lane
// owns its ChromosomeEvaluator, so evaluators holding scratch state need no
// locking of their own. Lanes claim indices from a shared cursor and write
// only the fitness slot they claimed.
type ParallelEvaluator[C any] struct {
	Lanes   int
	NewLane func(lane int) ChromosomeEvaluator[C]
}

// NewParallelEvaluator builds an evaluator with the given lane count; lanes
// <= 0 means one lane per CPU.
func NewParallelEvaluator[C any](lanes int, newLane func(lane int) ChromosomeEvaluator[C]) *ParallelEvaluator[C] {
	if lanes <= 0 {
		lanes = runtime.NumCPU()
	}
	return &ParallelEvaluator[C]{Lanes: lanes, NewLane: newLane}
}

// SharedLanes returns a lane factory handing the same evaluator to every
// lane. The evaluator must be safe for concurrent use.
func SharedLanes[C any](evaluator ChromosomeEvaluator[C]) func(int) ChromosomeEvaluator[C] {
	return func(int) ChromosomeEvaluator[C] { return evaluator }
}

func (e *ParallelEvaluator[C]) Evaluate(ctx context.Context, pool *MatingPool[C], onEvaluated func(index int)) error {
	if e.NewLane == nil {
		return errors.New("parallel evaluator requires a lane factory")
	}
	size := pool.Size()
	if size == 0 {
		return nil
	}
	lanes := e.Lanes
	if lanes <= 0 {
		lanes = runtime.NumCPU()
	}
	if lanes > size {
		lanes = size
	}

	var (
		mu     sync.Mutex
		cursor int
	)
	claim := func() (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		if cursor >= size {
			return 0, false
		}
		index := cursor
		cursor++
		return index, true
	}

	done := make(chan int, size)
	g, gctx := errgroup.WithContext(ctx)
	for lane := 0; lane < lanes; lane++ {
		evaluator := e.NewLane(lane)
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				index, ok := claim()
				if !ok {
					return nil
				}
				if err := scoreIndividual(gctx, evaluator, pool, index); err != nil {
					return err
				}
				done <- index
			}
		})
	}

	var waitErr error
	go func() {
		waitErr = g.Wait()
		close(done)
	}()
	for index := range done {
		if onEvaluated != nil {
			onEvaluated(index)
		}
	}
	return waitErr
}
