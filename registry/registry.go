package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fhirflat/fhirflat/cache"
)

// ErrUnknownResource is wrapped by Lookup errors for unknown types.
var ErrUnknownResource = fmt.Errorf("unknown resource type")

// Registry resolves resource specs by type name. Lookups are
// case-insensitive so flat file names (lowercased) resolve too.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*ResourceSpec

	lookups *cache.Cache[string, *ResourceSpec]
}

// New creates a Registry pre-loaded with the built-in resource specs.
func New() *Registry {
	r := &Registry{
		specs:   make(map[string]*ResourceSpec, len(builtinSpecs)),
		lookups: cache.New[string, *ResourceSpec](64),
	}
	for _, s := range builtinSpecs {
		r.specs[strings.ToLower(s.Type)] = s
	}
	return r
}

// Register adds or replaces a resource spec.
func (r *Registry) Register(spec *ResourceSpec) {
	r.mu.Lock()
	r.specs[strings.ToLower(spec.Type)] = spec
	r.mu.Unlock()
	r.lookups.Clear()
}

// Lookup returns the spec for a resource type name, case-insensitively.
func (r *Registry) Lookup(resourceType string) (*ResourceSpec, error) {
	if spec, ok := r.lookups.Get(resourceType); ok {
		return spec, nil
	}

	r.mu.RLock()
	spec, ok := r.specs[strings.ToLower(resourceType)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resourceType)
	}

	r.lookups.Set(resourceType, spec)
	return spec, nil
}

// Known reports whether a resource type is registered.
func (r *Registry) Known(resourceType string) bool {
	_, err := r.Lookup(resourceType)
	return err == nil
}

// Types returns the canonical names of all registered resource types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		types = append(types, s.Type)
	}
	sort.Strings(types)
	return types
}

// defaultRegistry serves package-level lookups.
var defaultRegistry = New()

// Default returns the shared registry of built-in specs.
func Default() *Registry {
	return defaultRegistry
}

// Lookup resolves a resource type against the default registry.
func Lookup(resourceType string) (*ResourceSpec, error) {
	return defaultRegistry.Lookup(resourceType)
}
