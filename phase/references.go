package phase

import (
	"context"
	"fmt"
	"strings"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/pipeline"
	"github.com/fhirflat/fhirflat/registry"
)

// ReferencesPhase validates literal references. It checks that:
// - References take the relative Type/id form
// - The referenced type is a known resource type
// - The referenced type is allowed by the field's target list
type ReferencesPhase struct {
	registry *registry.Registry
}

// NewReferencesPhase creates a new reference validation phase.
// A nil registry falls back to the built-in resource registry.
func NewReferencesPhase(reg *registry.Registry) *ReferencesPhase {
	if reg == nil {
		reg = registry.Default()
	}
	return &ReferencesPhase{registry: reg}
}

// Name returns the phase name.
func (p *ReferencesPhase) Name() string {
	return "references"
}

// Validate performs reference validation.
func (p *ReferencesPhase) Validate(ctx context.Context, pctx *pipeline.Context) []ff.Issue {
	var issues []ff.Issue

	select {
	case <-ctx.Done():
		return issues
	default:
	}

	if pctx.Spec == nil || pctx.ResourceMap == nil {
		return issues
	}

	for i := range pctx.Spec.Fields {
		field := &pctx.Spec.Fields[i]
		value, ok := pctx.ResourceMap[field.Name]
		if !ok || !fieldPresent(value) {
			continue
		}

		switch field.Kind {
		case registry.KindReference:
			for _, entry := range elements(value) {
				issues = append(issues, p.checkReference(field.Name, entry, field.Targets)...)
			}
		case registry.KindBackbone:
			for _, entry := range elements(value) {
				m, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				for name, v := range m {
					element, known := field.Element(name)
					if !known || element.Kind != registry.KindReference {
						continue
					}
					for _, ref := range elements(v) {
						issues = append(issues, p.checkReference(
							joinPath(field.Name, name), ref, element.Targets)...)
					}
				}
			}
		}
	}

	return issues
}

// checkReference validates a single reference value.
func (p *ReferencesPhase) checkReference(path string, value any, targets []string) []ff.Issue {
	var ref string
	switch v := value.(type) {
	case string:
		ref = v
	case map[string]any:
		ref, _ = v["reference"].(string)
	default:
		return []ff.Issue{ErrorIssue(
			ff.IssueTypeReference,
			fmt.Sprintf("Reference at %s must be a string or Reference object", path),
			path,
			p.Name(),
		)}
	}

	if ref == "" {
		return []ff.Issue{ErrorIssue(
			ff.IssueTypeReference,
			fmt.Sprintf("Reference at %s is empty", path),
			path,
			p.Name(),
		)}
	}

	refType, id, ok := strings.Cut(ref, "/")
	if !ok || refType == "" || id == "" || strings.Contains(id, "/") {
		return []ff.Issue{ErrorIssue(
			ff.IssueTypeReference,
			fmt.Sprintf("Reference %q at %s is not in Type/id form", ref, path),
			path,
			p.Name(),
		)}
	}

	if _, err := p.registry.Lookup(refType); err != nil {
		return []ff.Issue{ErrorIssue(
			ff.IssueTypeReference,
			fmt.Sprintf("Reference %q at %s points at unknown resource type %q", ref, path, refType),
			path,
			p.Name(),
		)}
	}

	if len(targets) > 0 {
		allowed := false
		for _, t := range targets {
			if t == refType {
				allowed = true
				break
			}
		}
		if !allowed {
			return []ff.Issue{ErrorIssue(
				ff.IssueTypeReference,
				fmt.Sprintf("Reference %q at %s targets %s, which is not permitted here", ref, path, refType),
				path,
				p.Name(),
			)}
		}
	}

	if !ValidateID(id) {
		return []ff.Issue{ErrorIssue(
			ff.IssueTypeReference,
			fmt.Sprintf("Reference %q at %s has an invalid id", ref, path),
			path,
			p.Name(),
		)}
	}

	return nil
}
