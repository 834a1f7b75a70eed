package phase

import (
	"context"
	"fmt"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/pipeline"
	"github.com/fhirflat/fhirflat/service"
)

// InvariantsPhase evaluates the FHIRPath invariants declared by the
// resource spec. A failing expression yields an error, or a warning
// when the invariant is marked advisory. Evaluation failures surface
// as warnings so a broken expression never rejects data.
type InvariantsPhase struct {
	evaluator service.FHIRPathEvaluator
}

// NewInvariantsPhase creates a new invariants validation phase.
func NewInvariantsPhase(evaluator service.FHIRPathEvaluator) *InvariantsPhase {
	return &InvariantsPhase{evaluator: evaluator}
}

// Name returns the phase name.
func (p *InvariantsPhase) Name() string {
	return "invariants"
}

// Validate evaluates all invariants for the resource.
func (p *InvariantsPhase) Validate(ctx context.Context, pctx *pipeline.Context) []ff.Issue {
	var issues []ff.Issue

	if p.evaluator == nil || pctx.Spec == nil || pctx.ResourceMap == nil {
		return issues
	}

	for _, inv := range pctx.Spec.Invariants {
		select {
		case <-ctx.Done():
			return issues
		default:
		}

		ok, err := p.evaluator.Evaluate(ctx, inv.Expression, pctx.ResourceMap)
		if err != nil {
			issues = append(issues, ff.Warning(ff.IssueTypeProcessing).
				Diagnostics(fmt.Sprintf("Invariant %s could not be evaluated: %v", inv.Key, err)).
				Phase(p.Name()).
				Invariant(inv.Key).
				Build())
			continue
		}
		if ok {
			continue
		}

		severity := ff.SeverityError
		if inv.Warning {
			severity = ff.SeverityWarning
		}
		issues = append(issues, ff.NewIssue(severity, ff.IssueTypeInvariant).
			Diagnostics(fmt.Sprintf("Invariant %s failed: %s", inv.Key, inv.Human)).
			Phase(p.Name()).
			Invariant(inv.Key).
			Build())
	}

	return issues
}
