package evo

import (
	"errors"
	"testing"

	"revolver/internal/entropy"
)

type firstSelection struct{}

func (firstSelection) Name() string { return "first" }

func (firstSelection) Select(_ entropy.Generator, _ FitnessView, k int) []int {
	return make([]int, k)
}

func TestResolveBuiltinSelections(t *testing.T) {
	resetSelectionRegistryForTests()
	t.Cleanup(resetSelectionRegistryForTests)

	for _, name := range []string{"random", "roulette", "rank", "best", "worst"} {
		selection, err := ResolveSelection(name, SelectionParams{})
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		if selection.Name() != name {
			t.Fatalf("resolved %s, got %s", name, selection.Name())
		}
	}

	selection, err := ResolveSelection("tournament", SelectionParams{TournamentOrder: 5})
	if err != nil {
		t.Fatalf("resolve tournament: %v", err)
	}
	if got := selection.(TournamentSelection).Order; got != 5 {
		t.Fatalf("unexpected tournament order: %d", got)
	}
	if _, err := ResolveSelection("tournament", SelectionParams{}); err == nil {
		t.Fatal("expected tournament without order to fail")
	}
}

func TestResolveUnknownSelection(t *testing.T) {
	resetSelectionRegistryForTests()
	t.Cleanup(resetSelectionRegistryForTests)

	if _, err := ResolveSelection("lottery", SelectionParams{}); !errors.Is(err, ErrSelectionNotFound) {
		t.Fatalf("expected ErrSelectionNotFound, got: %v", err)
	}
}

func TestRegisterSelection(t *testing.T) {
	resetSelectionRegistryForTests()
	t.Cleanup(resetSelectionRegistryForTests)

	factory := func(SelectionParams) (Selection, error) { return firstSelection{}, nil }
	if err := RegisterSelection("first", factory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := RegisterSelection("first", factory); !errors.Is(err, ErrSelectionExists) {
		t.Fatalf("expected ErrSelectionExists, got: %v", err)
	}
	if err := RegisterSelection("", factory); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := RegisterSelection("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}

	names := ListSelections()
	want := []string{"best", "first", "random", "rank", "roulette", "tournament", "worst"}
	if len(names) != len(want) {
		t.Fatalf("unexpected selections: %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected selections order: %v", names)
		}
	}
}
