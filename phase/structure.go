package phase

import (
	"context"
	"fmt"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/pipeline"
	"github.com/fhirflat/fhirflat/registry"
)

// StructurePhase validates the element tree of an expanded resource.
// It checks that:
// - The resource declares a known resourceType matching its spec
// - Every top-level element is defined by the spec
// - Excluded narrative elements did not leak into the resource
// - The id, if present, is a well-formed FHIR id
type StructurePhase struct{}

// NewStructurePhase creates a new structure validation phase.
func NewStructurePhase() *StructurePhase {
	return &StructurePhase{}
}

// Name returns the phase name.
func (p *StructurePhase) Name() string {
	return "structure"
}

// Validate performs structure validation.
func (p *StructurePhase) Validate(ctx context.Context, pctx *pipeline.Context) []ff.Issue {
	var issues []ff.Issue

	select {
	case <-ctx.Done():
		return issues
	default:
	}

	declared := GetResourceType(pctx.ResourceMap)
	if declared == "" {
		issues = append(issues, ErrorIssue(
			ff.IssueTypeRequired,
			"Resource must have a resourceType",
			"resourceType",
			p.Name(),
		))
		return issues
	}

	if pctx.Spec == nil {
		issues = append(issues, ErrorIssue(
			ff.IssueTypeNotSupported,
			fmt.Sprintf("Resource type %q is not supported", declared),
			"resourceType",
			p.Name(),
		))
		return issues
	}

	if declared != pctx.Spec.Type {
		issues = append(issues, ErrorIssue(
			ff.IssueTypeStructure,
			fmt.Sprintf("Declared resourceType %q does not match expected %q", declared, pctx.Spec.Type),
			"resourceType",
			p.Name(),
		))
	}

	if id := GetResourceID(pctx.ResourceMap); id != "" && !ValidateID(id) {
		issues = append(issues, ErrorIssue(
			ff.IssueTypeValue,
			fmt.Sprintf("Resource id %q is not a valid FHIR id", id),
			"id",
			p.Name(),
		))
	}

	for name, value := range pctx.ResourceMap {
		select {
		case <-ctx.Done():
			return issues
		default:
		}

		switch name {
		case "resourceType", "id", "extension":
			continue
		}

		if pctx.Spec.Excluded(name) {
			issues = append(issues, ErrorIssue(
				ff.IssueTypeStructure,
				fmt.Sprintf("Element %q is excluded from the flat representation", name),
				name,
				p.Name(),
			))
			continue
		}

		field, known := pctx.Spec.Field(name)
		if !known {
			// Restored defaults are not spec fields but always well formed.
			if _, isDefault := pctx.Spec.Defaults[name]; isDefault {
				continue
			}
			sev := ff.SeverityWarning
			if pctx.Options != nil && pctx.Options.StrictMode {
				sev = ff.SeverityError
			}
			issues = append(issues, BaseIssue(
				sev,
				ff.IssueTypeStructure,
				fmt.Sprintf("Element %q is not defined for %s", name, pctx.Spec.Type),
				name,
				p.Name(),
			))
			continue
		}

		if field.Kind == registry.KindBackbone {
			issues = append(issues, p.checkBackbone(name, value, field)...)
		}
	}

	return issues
}

// checkBackbone validates that backbone entries only carry known elements.
func (p *StructurePhase) checkBackbone(path string, value any, field *registry.FieldSpec) []ff.Issue {
	var issues []ff.Issue

	for _, entry := range elements(value) {
		m, ok := entry.(map[string]any)
		if !ok {
			issues = append(issues, ErrorIssue(
				ff.IssueTypeStructure,
				fmt.Sprintf("Element %q must be an object", path),
				path,
				p.Name(),
			))
			continue
		}

		for key := range m {
			if key == "extension" {
				continue
			}
			if _, ok := field.Element(key); !ok {
				issues = append(issues, WarningIssue(
					ff.IssueTypeStructure,
					fmt.Sprintf("Element %q is not defined within %s", key, path),
					joinPath(path, key),
					p.Name(),
				))
			}
		}
	}

	return issues
}
