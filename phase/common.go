// Package phase implements the validation phases run by the pipeline.
package phase

import (
	"strings"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/registry"
)

// BaseIssue creates a base issue with common fields set.
func BaseIssue(severity ff.IssueSeverity, code ff.IssueType, diagnostics, path, phase string) ff.Issue {
	return ff.Issue{
		Severity:    severity,
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  []string{path},
		Phase:       phase,
	}
}

// ErrorIssue creates an error issue.
func ErrorIssue(code ff.IssueType, diagnostics, path, phase string) ff.Issue {
	return BaseIssue(ff.SeverityError, code, diagnostics, path, phase)
}

// WarningIssue creates a warning issue.
func WarningIssue(code ff.IssueType, diagnostics, path, phase string) ff.Issue {
	return BaseIssue(ff.SeverityWarning, code, diagnostics, path, phase)
}

// InformationIssue creates an informational issue.
func InformationIssue(code ff.IssueType, diagnostics, path, phase string) ff.Issue {
	return BaseIssue(ff.SeverityInformation, code, diagnostics, path, phase)
}

// GetResourceType extracts the resourceType from a resource map.
func GetResourceType(resource map[string]any) string {
	if rt, ok := resource["resourceType"].(string); ok {
		return rt
	}
	return ""
}

// GetResourceID extracts the id from a resource map.
func GetResourceID(resource map[string]any) string {
	if id, ok := resource["id"].(string); ok {
		return id
	}
	return ""
}

// ValidateID validates a FHIR id value.
// FHIR ids must match pattern: [A-Za-z0-9\-\.]{1,64}
func ValidateID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if !((c >= 'A' && c <= 'Z') ||
			(c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') ||
			c == '-' || c == '.') {
			return false
		}
	}
	return true
}

// joinPath joins path segments.
func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// fieldPresent reports whether a value counts as populated.
// Empty strings, nil entries, and empty collections do not.
func fieldPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// elements returns the value as a slice, wrapping scalars.
func elements(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	if v == nil {
		return nil
	}
	return []any{v}
}

// choiceGroup returns the value[x] group name for a choice field,
// e.g. "valueQuantity" belongs to group "value".
func choiceGroup(name string) string {
	for _, prefix := range []string{"value", "effective", "onset", "occurrence"} {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			rest := name[len(prefix):]
			if rest[0] >= 'A' && rest[0] <= 'Z' {
				return prefix
			}
		}
	}
	return ""
}

// choiceVariants returns the populated value[x] style fields of a group.
func choiceVariants(resource map[string]any, spec *registry.ResourceSpec, group string) []string {
	var found []string
	for i := range spec.Fields {
		name := spec.Fields[i].Name
		if choiceGroup(name) == group && fieldPresent(resource[name]) {
			found = append(found, name)
		}
	}
	return found
}
