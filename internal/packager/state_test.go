package packager

import (
	"testing"

	"github.com/davidrichards/ram/internal/core"
)

func TestTransition_ValidAndInvalid(t *testing.T) {
	k := PackageKey{Type: core.Style, Name: "site"}
	state := PassState{k: StateUnchecked}

	for _, step := range [][2]PackageState{
		{StateUnchecked, StateStale},
		{StateStale, StateBuilding},
		{StateBuilding, StatePersisted},
	} {
		if err := Transition(state, k, step[0], step[1]); err != nil {
			t.Fatalf("expected %s -> %s to be valid, got %v", step[0], step[1], err)
		}
	}

	// Terminal states never move.
	if err := Transition(state, k, StatePersisted, StateBuilding); err == nil {
		t.Fatalf("expected error")
	}

	// Fresh packages are never built.
	state[k] = StateFresh
	if err := Transition(state, k, StateFresh, StateBuilding); err == nil {
		t.Fatalf("expected error")
	}

	// Stale must pass through BUILDING.
	state[k] = StateStale
	if err := Transition(state, k, StateStale, StatePersisted); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTransition_RejectsUnexpectedPriorState(t *testing.T) {
	k := PackageKey{Type: core.Script, Name: "app"}
	state := PassState{k: StateFresh}
	if err := Transition(state, k, StateUnchecked, StateStale); err == nil {
		t.Fatalf("expected error")
	}
	if state[k] != StateFresh {
		t.Fatalf("state must not change on a rejected transition")
	}
}

func TestTransition_UnknownPackage(t *testing.T) {
	if err := Transition(PassState{}, PackageKey{Type: core.Script, Name: "x"}, StateUnchecked, StateStale); err == nil {
		t.Fatalf("expected error")
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []PackageState{StateFresh, StatePersisted, StateFailed} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []PackageState{StateUnchecked, StateStale, StateBuilding} {
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
