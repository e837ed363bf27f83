// Package history reconstructs human-readable device history from the
// append-only snapshot log: a state-interval timeline and a grouped,
// field-level change log. Reconstruction is pure and deterministic; empty or
// malformed input yields empty output, never an error.
package history

import (
	"strings"

	"inventorycore/pkg/domain"
)

// Placeholder is rendered wherever a referenced entity cannot be resolved.
const Placeholder = "N/A"

// Unassigned labels timeline intervals during which the device had no
// assignee.
const Unassigned = "Unassigned"

// Resolver maps stored entity identifiers to display strings at
// reconstruction time. Returning false means the referenced entity no longer
// exists; callers substitute Placeholder.
type Resolver interface {
	ResolveDisplayName(kind domain.EntityType, id string) (string, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(kind domain.EntityType, id string) (string, bool)

// ResolveDisplayName implements Resolver.
func (f ResolverFunc) ResolveDisplayName(kind domain.EntityType, id string) (string, bool) {
	return f(kind, id)
}

func resolveRef(r Resolver, kind domain.EntityType, id *string) string {
	if id == nil || *id == "" {
		return Placeholder
	}
	if name, ok := r.ResolveDisplayName(kind, *id); ok && strings.TrimSpace(name) != "" {
		return name
	}
	return Placeholder
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}
