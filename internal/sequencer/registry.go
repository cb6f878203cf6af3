// Package sequencer maintains the registry of attack recipes and drives
// their execution, in order, against a chosen batch.
package sequencer

import (
	"fmt"

	"github.com/rawblock/gravelpit/pkg/models"
)

// Registry holds the known attack recipes by name.
type Registry struct {
	recipes map[string]models.AttackRecipe
	order   []string // default execution order, configuration-provided
}

// NewRegistry builds a Registry from recipes, preserving order as the
// default attacksRemaining sequence for newly initialized batches.
func NewRegistry(order []string, recipes []models.AttackRecipe) *Registry {
	r := &Registry{recipes: make(map[string]models.AttackRecipe, len(recipes)), order: order}
	for _, recipe := range recipes {
		r.recipes[recipe.Name] = recipe
	}
	return r
}

// Lookup returns the recipe by name, or false if no such recipe is
// registered — surfacing the "partition ordering" invariant violation to
// the caller rather than panicking.
func (r *Registry) Lookup(name string) (models.AttackRecipe, bool) {
	recipe, ok := r.recipes[name]
	return recipe, ok
}

// DefaultOrder returns a copy of the configured default attack order.
func (r *Registry) DefaultOrder() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Validate checks that every name in names maps to a defined recipe,
// enforcing the partition-ordering invariant at the registry boundary.
func (r *Registry) Validate(names []string) error {
	for _, name := range names {
		if _, ok := r.recipes[name]; !ok {
			return fmt.Errorf("attack %q has no recipe in the sequencer registry", name)
		}
	}
	return nil
}
