package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrSelectionExists   = errors.New("selection already registered")
	ErrSelectionNotFound = errors.New("selection not found")
)

// SelectionParams carries the tunables a named selection may need.
type SelectionParams struct {
	TournamentOrder int
}

type SelectionFactory func(params SelectionParams) (Selection, error)

var selectionRegistry = struct {
	mu sync.RWMutex
	m  map[string]SelectionFactory
}{
	m: builtinSelections(),
}

func builtinSelections() map[string]SelectionFactory {
	return map[string]SelectionFactory{
		"random":   func(SelectionParams) (Selection, error) { return RandomSelection{}, nil },
		"roulette": func(SelectionParams) (Selection, error) { return RouletteSelection{}, nil },
		"rank":     func(SelectionParams) (Selection, error) { return RankSelection{}, nil },
		"best":     func(SelectionParams) (Selection, error) { return BestSelection{}, nil },
		"worst":    func(SelectionParams) (Selection, error) { return WorstSelection{}, nil },
		"tournament": func(params SelectionParams) (Selection, error) {
			if params.TournamentOrder <= 0 {
				return nil, fmt.Errorf("tournament order must be > 0, got %d", params.TournamentOrder)
			}
			return TournamentSelection{Order: params.TournamentOrder}, nil
		},
	}
}

// RegisterSelection makes a custom selection resolvable by name.
func RegisterSelection(name string, factory SelectionFactory) error {
	if name == "" {
		return errors.New("selection name is required")
	}
	if factory == nil {
		return errors.New("selection factory is required")
	}

	selectionRegistry.mu.Lock()
	defer selectionRegistry.mu.Unlock()

	if _, exists := selectionRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrSelectionExists, name)
	}
	selectionRegistry.m[name] = factory
	return nil
}

func ResolveSelection(name string, params SelectionParams) (Selection, error) {
	selectionRegistry.mu.RLock()
	factory, ok := selectionRegistry.m[name]
	selectionRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSelectionNotFound, name)
	}
	selection, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("build selection %s: %w", name, err)
	}
	return selection, nil
}

func ListSelections() []string {
	selectionRegistry.mu.RLock()
	defer selectionRegistry.mu.RUnlock()

	names := make([]string, 0, len(selectionRegistry.m))
	for name := range selectionRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetSelectionRegistryForTests() {
	selectionRegistry.mu.Lock()
	defer selectionRegistry.mu.Unlock()
	selectionRegistry.m = builtinSelections()
}
