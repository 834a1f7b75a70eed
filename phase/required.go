package phase

import (
	"context"
	"fmt"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/pipeline"
)

// RequiredPhase checks that all required elements are populated.
// Defaults applied during expansion satisfy the check, so a missing
// status column on an Encounter passes once the default lands.
type RequiredPhase struct{}

// NewRequiredPhase creates a new required-elements validation phase.
func NewRequiredPhase() *RequiredPhase {
	return &RequiredPhase{}
}

// Name returns the phase name.
func (p *RequiredPhase) Name() string {
	return "required"
}

// Validate performs required-element validation.
func (p *RequiredPhase) Validate(ctx context.Context, pctx *pipeline.Context) []ff.Issue {
	var issues []ff.Issue

	select {
	case <-ctx.Done():
		return issues
	default:
	}

	if pctx.Spec == nil || pctx.ResourceMap == nil {
		return issues
	}

	for _, name := range pctx.Spec.Required() {
		if fieldPresent(pctx.ResourceMap[name]) {
			continue
		}
		issues = append(issues, ErrorIssue(
			ff.IssueTypeRequired,
			fmt.Sprintf("Required element %q is missing", name),
			name,
			p.Name(),
		))
	}

	return issues
}
