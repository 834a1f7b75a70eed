package phase

import (
	"context"
	"fmt"
	"strings"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/pipeline"
)

// CardinalityPhase validates element cardinality. It checks that:
// - Single-valued elements are not arrays
// - At most one variant of a choice group is populated
type CardinalityPhase struct{}

// NewCardinalityPhase creates a new cardinality validation phase.
func NewCardinalityPhase() *CardinalityPhase {
	return &CardinalityPhase{}
}

// Name returns the phase name.
func (p *CardinalityPhase) Name() string {
	return "cardinality"
}

// Validate performs cardinality validation.
func (p *CardinalityPhase) Validate(ctx context.Context, pctx *pipeline.Context) []ff.Issue {
	var issues []ff.Issue

	select {
	case <-ctx.Done():
		return issues
	default:
	}

	if pctx.Spec == nil || pctx.ResourceMap == nil {
		return issues
	}

	seenGroups := make(map[string]bool, 2)

	for i := range pctx.Spec.Fields {
		field := &pctx.Spec.Fields[i]
		value, ok := pctx.ResourceMap[field.Name]
		if !ok || !fieldPresent(value) {
			continue
		}

		if _, isList := value.([]any); isList && !field.List {
			issues = append(issues, ErrorIssue(
				ff.IssueTypeCardinality,
				fmt.Sprintf("Element %q allows a single value but holds a list", field.Name),
				field.Name,
				p.Name(),
			))
		}

		if group := choiceGroup(field.Name); group != "" && !seenGroups[group] {
			seenGroups[group] = true
			if variants := choiceVariants(pctx.ResourceMap, pctx.Spec, group); len(variants) > 1 {
				issues = append(issues, ErrorIssue(
					ff.IssueTypeCardinality,
					fmt.Sprintf("Choice group %q holds multiple variants: %s",
						group, strings.Join(variants, ", ")),
					group,
					p.Name(),
				))
			}
		}
	}

	return issues
}
