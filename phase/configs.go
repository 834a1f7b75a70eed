package phase

import (
	"github.com/fhirflat/fhirflat/pipeline"
	"github.com/fhirflat/fhirflat/registry"
	"github.com/fhirflat/fhirflat/service"
)

// StructurePhaseConfig returns the standard configuration for the structure phase.
func StructurePhaseConfig() *pipeline.PhaseConfig {
	return &pipeline.PhaseConfig{
		Phase:    NewStructurePhase(),
		Priority: pipeline.PriorityFirst,
		Parallel: false,
		Required: true,
		Enabled:  true,
	}
}

// RequiredPhaseConfig returns the standard configuration for the required phase.
func RequiredPhaseConfig() *pipeline.PhaseConfig {
	return &pipeline.PhaseConfig{
		Phase:    NewRequiredPhase(),
		Priority: pipeline.PriorityEarly,
		Parallel: true,
		Required: true,
		Enabled:  true,
	}
}

// PrimitivesPhaseConfig returns the standard configuration for the primitives phase.
func PrimitivesPhaseConfig() *pipeline.PhaseConfig {
	return &pipeline.PhaseConfig{
		Phase:    NewPrimitivesPhase(),
		Priority: pipeline.PriorityEarly,
		Parallel: true,
		Required: true,
		Enabled:  true,
	}
}

// CardinalityPhaseConfig returns the standard configuration for the cardinality phase.
func CardinalityPhaseConfig() *pipeline.PhaseConfig {
	return &pipeline.PhaseConfig{
		Phase:    NewCardinalityPhase(),
		Priority: pipeline.PriorityEarly,
		Parallel: true,
		Required: false,
		Enabled:  true,
	}
}

// ReferencesPhaseConfig returns the standard configuration for the references phase.
func ReferencesPhaseConfig(reg *registry.Registry) *pipeline.PhaseConfig {
	return &pipeline.PhaseConfig{
		Phase:    NewReferencesPhase(reg),
		Priority: pipeline.PriorityNormal,
		Parallel: true,
		Required: false,
		Enabled:  true,
	}
}

// InvariantsPhaseConfig returns the standard configuration for the invariants phase.
func InvariantsPhaseConfig(evaluator service.FHIRPathEvaluator) *pipeline.PhaseConfig {
	return &pipeline.PhaseConfig{
		Phase:    NewInvariantsPhase(evaluator),
		Priority: pipeline.PriorityLate,
		Parallel: false,
		Required: false,
		Enabled:  true,
	}
}
