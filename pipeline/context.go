// Package pipeline provides the validation pipeline infrastructure.
package pipeline

import (
	"sync"
	"time"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/registry"
)

// Context holds all state needed during validation of a single resource.
// It is passed through all validation phases and provides shared access to
// the resource data, the resource spec, and the accumulated result.
//
// Context instances are pooled for efficiency. Use AcquireContext() and
// Release() to manage them properly.
type Context struct {
	// FlatRow is the flat column map the resource was built from, if any.
	// Phases use it to point diagnostics back at source columns.
	FlatRow map[string]any

	// ResourceMap is the expanded resource as a nested map
	ResourceMap map[string]any

	// ResourceType is the FHIR resource type (e.g., "Patient", "Encounter")
	ResourceType ff.ResourceType

	// ResourceID is the resource ID if present
	ResourceID string

	// Spec describes the fields, extensions, and invariants of the
	// resource type being validated
	Spec *registry.ResourceSpec

	// Row is the source row number in the input file (1-based, 0 if unknown)
	Row int

	// Result accumulates validation issues
	Result *ff.Result

	// DateLayout is the reference layout raw date columns were parsed with
	DateLayout string

	// Timezone is the location applied to dates without an offset
	Timezone *time.Location

	// Options holds validation options
	Options *ContextOptions

	// mu protects concurrent access during parallel phase execution
	mu sync.RWMutex

	// Metadata for tracking
	metadata map[string]any
}

// ContextOptions holds validation options accessible during validation.
type ContextOptions struct {
	ValidateReferences bool
	ValidateInvariants bool
	StrictMode         bool
	MaxErrors          int
}

// contextPool holds reusable Context instances.
var contextPool = sync.Pool{
	New: func() any {
		return &Context{
			metadata: make(map[string]any, 8),
		}
	},
}

// AcquireContext gets a Context from the pool.
// Call Release() when done to return it to the pool.
func AcquireContext() *Context {
	ctx := contextPool.Get().(*Context)
	ctx.Reset()
	return ctx
}

// Release returns the Context to the pool.
// After calling Release, the Context should not be used.
func (c *Context) Release() {
	if c == nil {
		return
	}

	// Don't return contexts with oversized metadata maps
	if len(c.metadata) <= 64 {
		contextPool.Put(c)
	}
}

// ReleaseContext returns a Context to the pool.
func ReleaseContext(ctx *Context) {
	ctx.Release()
}

// Reset clears the context for reuse.
func (c *Context) Reset() {
	c.FlatRow = nil
	c.ResourceMap = nil
	c.ResourceType = ""
	c.ResourceID = ""
	c.Spec = nil
	c.Row = 0
	c.Result = nil
	c.DateLayout = ""
	c.Timezone = nil
	c.Options = nil

	// Clear the map without reallocating
	for k := range c.metadata {
		delete(c.metadata, k)
	}
}

// SetMetadata stores a value in the context metadata.
// Thread-safe for use during parallel phase execution.
func (c *Context) SetMetadata(key string, value any) {
	c.mu.Lock()
	c.metadata[key] = value
	c.mu.Unlock()
}

// GetMetadata retrieves a value from the context metadata.
func (c *Context) GetMetadata(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.metadata[key]
	c.mu.RUnlock()
	return v, ok
}

// Field returns the top-level element with the given name from the
// resource map, or nil if absent.
func (c *Context) Field(name string) any {
	if c.ResourceMap == nil {
		return nil
	}
	return c.ResourceMap[name]
}
