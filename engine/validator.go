// Package engine provides the resource validation engine.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/expand"
	"github.com/fhirflat/fhirflat/phase"
	"github.com/fhirflat/fhirflat/pipeline"
	"github.com/fhirflat/fhirflat/registry"
	"github.com/fhirflat/fhirflat/service"
)

// Validator is the main resource validator.
// It expands flat rows into FHIR resources and runs the validation
// pipeline over them.
type Validator struct {
	// Configuration
	options *ff.Options

	// Services
	registry  *registry.Registry
	evaluator service.FHIRPathEvaluator

	// Pipeline
	pipe *pipeline.Pipeline

	// Metrics
	metrics *ff.Metrics

	// timezone resolved from the configured timezone name
	timezone *time.Location

	// Worker pool for batch validation
	workerPool     chan struct{}
	workerPoolOnce sync.Once
}

// New creates a new Validator with the specified options.
func New(opts ...ff.Option) (*Validator, error) {
	options := ff.DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	tz, err := time.LoadLocation(options.TimezoneName)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", options.TimezoneName, err)
	}

	v := &Validator{
		options:  options,
		registry: registry.Default(),
		metrics:  ff.NewMetrics(),
		timezone: tz,
	}

	if options.ValidateInvariants {
		v.evaluator = service.NewFHIRPathAdapter(options.ExprCacheSize)
	}

	v.buildPipeline()

	return v, nil
}

// buildPipeline constructs the validation pipeline based on options.
func (v *Validator) buildPipeline() {
	pipelineOpts := &pipeline.PipelineOptions{
		ParallelExecution: v.options.ParallelPhases,
		MaxErrors:         v.options.MaxErrors,
		FailFast:          v.options.MaxErrors == 1,
		CollectMetrics:    true,
	}

	v.pipe = pipeline.NewPipeline(pipelineOpts)
	v.pipe.SetMetrics(v.metrics)

	v.addPhases()
}

// addPhases adds validation phases to the pipeline based on configuration.
func (v *Validator) addPhases() {
	// Structure, required, and primitives validation (always enabled)
	v.pipe.RegisterConfig(pipeline.PhaseIDStructure, phase.StructurePhaseConfig())
	v.pipe.RegisterConfig(pipeline.PhaseIDRequired, phase.RequiredPhaseConfig())
	v.pipe.RegisterConfig(pipeline.PhaseIDPrimitives, phase.PrimitivesPhaseConfig())

	// Cardinality validation
	v.pipe.RegisterConfig(pipeline.PhaseIDCardinality, phase.CardinalityPhaseConfig())

	// Reference validation
	if v.options.ValidateReferences {
		v.pipe.RegisterConfig(pipeline.PhaseIDReferences, phase.ReferencesPhaseConfig(v.registry))
	}

	// FHIRPath invariant validation
	if v.options.ValidateInvariants && v.evaluator != nil {
		v.pipe.RegisterConfig(pipeline.PhaseIDInvariants, phase.InvariantsPhaseConfig(v.evaluator))
	}
}

// SetRegistry replaces the resource registry.
func (v *Validator) SetRegistry(reg *registry.Registry) {
	v.registry = reg
	v.buildPipeline()
}

// SetFHIRPathEvaluator sets the FHIRPath evaluator for invariant validation.
func (v *Validator) SetFHIRPathEvaluator(eval service.FHIRPathEvaluator) {
	v.evaluator = eval
	v.buildPipeline()
}

// Validate validates a JSON-encoded FHIR resource.
func (v *Validator) Validate(ctx context.Context, resource []byte) (*ff.Result, error) {
	start := time.Now()

	var resourceMap map[string]any
	if err := json.Unmarshal(resource, &resourceMap); err != nil {
		result := ff.AcquireResult()
		result.AddError(ff.IssueTypeStructure, fmt.Sprintf("Invalid JSON: %v", err), "")
		v.metrics.RecordConversion(time.Since(start), false)
		return result, nil
	}

	return v.ValidateMap(ctx, resourceMap)
}

// ValidateMap validates a FHIR resource that's already been parsed to a map.
func (v *Validator) ValidateMap(ctx context.Context, resourceMap map[string]any) (*ff.Result, error) {
	start := time.Now()

	resourceType, ok := resourceMap["resourceType"].(string)
	if !ok || resourceType == "" {
		result := ff.AcquireResult()
		result.AddError(ff.IssueTypeStructure, "Resource must have a 'resourceType' element", "")
		v.metrics.RecordConversion(time.Since(start), false)
		return result, nil
	}

	spec, err := v.registry.Lookup(resourceType)
	if err != nil {
		result := ff.AcquireResult()
		result.AddError(ff.IssueTypeNotSupported,
			fmt.Sprintf("Resource type %q is not supported", resourceType), "resourceType")
		v.metrics.RecordConversion(time.Since(start), false)
		return result, nil
	}

	pctx := pipeline.AcquireContext()
	pctx.ResourceType = ff.ResourceType(resourceType)
	pctx.ResourceMap = resourceMap
	pctx.Spec = spec
	pctx.Result = ff.AcquireResult()
	pctx.Result.ResourceType = resourceType
	pctx.DateLayout = v.options.DateLayout
	pctx.Timezone = v.timezone
	pctx.Options = v.contextOptions()

	if v.options.Validate {
		v.pipe.Execute(ctx, pctx)
	}

	result := pctx.Result
	pctx.Result = nil // Don't release the result with the context
	pipeline.ReleaseContext(pctx)

	valid := !result.HasErrors()
	v.metrics.RecordConversion(time.Since(start), valid)
	v.metrics.RecordResource(resourceType, time.Since(start), !valid)
	return result, nil
}

// ValidateFlat expands a flat row into a FHIR resource and validates
// it. The expanded resource is returned alongside the result so the
// caller can serialize it when validation passes.
func (v *Validator) ValidateFlat(ctx context.Context, flat map[string]any, resourceType string) (map[string]any, *ff.Result, error) {
	start := time.Now()

	spec, err := v.registry.Lookup(resourceType)
	if err != nil {
		result := ff.AcquireResult()
		result.AddError(ff.IssueTypeNotSupported,
			fmt.Sprintf("Resource type %q is not supported", resourceType), "resourceType")
		return nil, result, nil
	}

	resourceMap, issues := expand.Resource(flat, spec)

	pctx := pipeline.AcquireContext()
	pctx.FlatRow = flat
	pctx.ResourceType = ff.ResourceType(spec.Type)
	pctx.ResourceMap = resourceMap
	pctx.Spec = spec
	pctx.Result = ff.AcquireResult()
	pctx.Result.ResourceType = spec.Type
	pctx.Result.AddIssues(issues)
	pctx.DateLayout = v.options.DateLayout
	pctx.Timezone = v.timezone
	pctx.Options = v.contextOptions()

	if v.options.Validate {
		v.pipe.Execute(ctx, pctx)
	}

	result := pctx.Result
	pctx.Result = nil
	pipeline.ReleaseContext(pctx)

	valid := !result.HasErrors()
	v.metrics.RecordConversion(time.Since(start), valid)
	v.metrics.RecordResource(spec.Type, time.Since(start), !valid)
	return resourceMap, result, nil
}

// ValidateBatch validates multiple resources in parallel.
func (v *Validator) ValidateBatch(ctx context.Context, resources [][]byte) []*ff.Result {
	results := make([]*ff.Result, len(resources))

	v.workerPoolOnce.Do(func() {
		workers := v.options.WorkerCount
		if workers <= 0 {
			workers = 4
		}
		v.workerPool = make(chan struct{}, workers)
	})

	var wg sync.WaitGroup
	for i, resource := range resources {
		wg.Add(1)
		go func(idx int, res []byte) {
			defer wg.Done()

			v.workerPool <- struct{}{}
			defer func() { <-v.workerPool }()

			result, err := v.Validate(ctx, res)
			if err != nil {
				result = ff.AcquireResult()
				result.AddError(ff.IssueTypeProcessing, err.Error(), "")
			}
			results[idx] = result
		}(i, resource)
	}

	wg.Wait()
	return results
}

// contextOptions derives the per-context options from the validator options.
func (v *Validator) contextOptions() *pipeline.ContextOptions {
	return &pipeline.ContextOptions{
		ValidateReferences: v.options.ValidateReferences,
		ValidateInvariants: v.options.ValidateInvariants,
		StrictMode:         v.options.StrictMode,
		MaxErrors:          v.options.MaxErrors,
	}
}

// Timezone returns the location resolved from the configured timezone name.
func (v *Validator) Timezone() *time.Location {
	return v.timezone
}

// Metrics returns the validator's metrics.
func (v *Validator) Metrics() *ff.Metrics {
	return v.metrics
}

// Options returns the validator's options.
func (v *Validator) Options() *ff.Options {
	return v.options
}

// Registry returns the resource registry in use.
func (v *Validator) Registry() *registry.Registry {
	return v.registry
}

// Close releases resources held by the validator.
func (v *Validator) Close() error {
	// Nothing to clean up currently
	return nil
}
