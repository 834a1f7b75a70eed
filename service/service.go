// Package service defines the external evaluation interfaces used by
// the validation phases and their default implementations.
package service

import "context"

// FHIRPathEvaluator evaluates FHIRPath expressions against resources.
// Invariant checks use it to decide whether a constraint holds.
type FHIRPathEvaluator interface {
	// Evaluate evaluates an expression against a resource.
	// Returns true if the constraint is satisfied.
	Evaluate(ctx context.Context, expression string, resource any) (bool, error)
}
