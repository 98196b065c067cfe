package packager

import (
	"fmt"

	"github.com/davidrichards/ram/internal/core"
)

// PackageState is the per-pass state of one package.
//
//	UNCHECKED -> FRESH
//	UNCHECKED -> STALE -> BUILDING -> PERSISTED
//
// FAILED is reachable from UNCHECKED (the staleness check itself failed)
// and from BUILDING (compressor or writer failure).
type PackageState string

const (
	StateUnchecked PackageState = "UNCHECKED"
	StateFresh     PackageState = "FRESH"
	StateStale     PackageState = "STALE"
	StateBuilding  PackageState = "BUILDING"
	StatePersisted PackageState = "PERSISTED"
	StateFailed    PackageState = "FAILED"
)

// PackageKey identifies a package across both artifact namespaces.
type PackageKey struct {
	Type core.ArtifactType
	Name string
}

func (k PackageKey) String() string { return fmt.Sprintf("%s:%s", k.Type, k.Name) }

// PassState holds the state of every selected package in one pass.
type PassState map[PackageKey]PackageState

// IsTerminal reports whether the state ends the package's pass.
func IsTerminal(s PackageState) bool {
	switch s {
	case StateFresh, StatePersisted, StateFailed:
		return true
	default:
		return false
	}
}

// Transition performs a validated transition for a single package.
//
// The caller supplies the expected prior state (from) so that an
// out-of-order call is reported instead of silently applied. The map is
// mutated if and only if the transition is valid.
func Transition(state PassState, key PackageKey, from, to PackageState) error {
	cur, ok := state[key]
	if !ok {
		return fmt.Errorf("unknown package in state: %s", key)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %s: expected %s, got %s", key, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %s: %s -> %s", key, from, to)
	}
	state[key] = to
	return nil
}

func isAllowedTransition(from, to PackageState) bool {
	switch from {
	case StateUnchecked:
		return to == StateFresh || to == StateStale || to == StateFailed
	case StateStale:
		return to == StateBuilding
	case StateBuilding:
		return to == StatePersisted || to == StateFailed
	default:
		return false
	}
}
