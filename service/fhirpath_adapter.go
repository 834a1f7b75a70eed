package service

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gofhir/fhirpath"
	"github.com/gofhir/fhirpath/types"

	"github.com/fhirflat/fhirflat/cache"
)

// FHIRPathAdapter adapts the fhirpath package to the FHIRPathEvaluator
// interface. Compiled expressions are kept in an LRU cache because the
// same handful of invariants runs once per row.
type FHIRPathAdapter struct {
	cache *cache.Cache[string, *fhirpath.Expression]
}

// NewFHIRPathAdapter creates a new FHIRPath adapter.
// cacheSize bounds the compiled expression cache; zero or negative
// falls back to a small default.
func NewFHIRPathAdapter(cacheSize int) *FHIRPathAdapter {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	return &FHIRPathAdapter{
		cache: cache.New[string, *fhirpath.Expression](cacheSize),
	}
}

// Evaluate evaluates a FHIRPath expression against a resource.
// Returns true if the constraint is satisfied (expression evaluates to
// true or non-empty), false otherwise.
//
// Non-boolean results are converted using FHIRPath truthiness rules:
// - Empty collection = false
// - Single boolean = that boolean's value
// - Non-empty collection = true
func (a *FHIRPathAdapter) Evaluate(ctx context.Context, expression string, resource any) (bool, error) {
	resourceBytes, err := a.toJSON(resource)
	if err != nil {
		return false, fmt.Errorf("failed to convert resource to JSON: %w", err)
	}

	compiled, err := a.getOrCompile(expression)
	if err != nil {
		return false, fmt.Errorf("failed to compile FHIRPath expression '%s': %w", expression, err)
	}

	result, err := compiled.Evaluate(resourceBytes)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate FHIRPath expression '%s': %w", expression, err)
	}

	return a.toBool(result), nil
}

// toJSON converts a resource to JSON bytes.
func (a *FHIRPathAdapter) toJSON(resource any) ([]byte, error) {
	switch v := resource.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

// getOrCompile returns a cached compiled expression or compiles a new one.
func (a *FHIRPathAdapter) getOrCompile(expression string) (*fhirpath.Expression, error) {
	return a.cache.GetOrFetch(expression, func() (*fhirpath.Expression, error) {
		return fhirpath.Compile(expression)
	})
}

// toBool converts a FHIRPath result collection to a boolean.
func (a *FHIRPathAdapter) toBool(result types.Collection) bool {
	if len(result) == 0 {
		return false
	}

	if len(result) == 1 {
		if b, ok := result[0].(types.Boolean); ok {
			return b.Bool()
		}
	}

	return true
}

// CacheSize returns the number of cached expressions.
func (a *FHIRPathAdapter) CacheSize() int {
	return a.cache.Len()
}

// ClearCache clears the expression cache.
func (a *FHIRPathAdapter) ClearCache() {
	a.cache.Clear()
}

// Verify interface compliance
var _ FHIRPathEvaluator = (*FHIRPathAdapter)(nil)
