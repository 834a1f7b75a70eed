// Package flatten converts FHIR resource maps into their flat, dotted-column
// representation. It is the inverse of package expand.
package flatten

import (
	"fmt"
	"time"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/registry"
)

// Resource flattens one FHIR resource map into a flat row.
//
// Nested elements become dotted columns; codings collapse into "system|code"
// strings with display text in a parallel .text column; references condense
// to "Type/id"; lists with more than one entry are preserved whole under a
// "_dense" column. Excluded elements and fixed defaults are dropped.
func Resource(resource map[string]any, spec *registry.ResourceSpec) (map[string]any, []ff.Issue) {
	var issues []ff.Issue

	flat := make(map[string]any)
	flat["resourceType"] = spec.Type

	for name, value := range resource {
		if name == "resourceType" || value == nil {
			continue
		}
		if spec.Excluded(name) {
			continue
		}
		if _, isDefault := spec.Defaults[name]; isDefault {
			continue
		}

		if name == "extension" {
			extIssues := flattenExtensions(flat, "extension", value)
			issues = append(issues, extIssues...)
			continue
		}

		issues = append(issues, flattenValue(flat, name, value)...)
	}

	return flat, issues
}

// flattenValue writes one element into the flat row under the given prefix.
func flattenValue(flat map[string]any, prefix string, value any) []ff.Issue {
	switch v := value.(type) {
	case map[string]any:
		return flattenMap(flat, prefix, v)
	case []any:
		return flattenList(flat, prefix, v)
	case time.Time:
		flat[prefix] = v.Format(time.RFC3339)
		return nil
	default:
		flat[prefix] = v
		return nil
	}
}

// flattenMap handles nested FHIR structures, with special cases for
// codeableConcepts and references.
func flattenMap(flat map[string]any, prefix string, m map[string]any) []ff.Issue {
	// codeableConcept: collapse coding into .code/.text columns.
	if coding, ok := m["coding"].([]any); ok {
		text, _ := m["text"].(string)
		flattenCoding(flat, prefix, coding, text)
		return nil
	}

	// Reference: condense to the bare "Type/id" string. Display text is
	// dropped, it can carry identifying information.
	if ref, ok := m["reference"]; ok {
		flat[prefix] = ref
		return nil
	}

	var issues []ff.Issue
	for k, v := range m {
		if v == nil {
			continue
		}
		issues = append(issues, flattenValue(flat, prefix+"."+k, v)...)
	}
	return issues
}

// flattenList explodes single-entry lists in place and parks longer lists
// whole under a _dense column for lossless round-tripping.
func flattenList(flat map[string]any, prefix string, list []any) []ff.Issue {
	switch len(list) {
	case 0:
		return nil
	case 1:
		return flattenValue(flat, prefix, list[0])
	default:
		if strings, ok := stringList(list); ok {
			flat[prefix] = strings
			return nil
		}
		flat[prefix+"_dense"] = list
		return nil
	}
}

// stringList returns the list as []string when every entry is a string.
func stringList(list []any) ([]string, bool) {
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// flattenCoding turns a coding list into parallel code and text columns.
//
//	[{"system": "http://loinc.org", "code": "1234", "display": "Test"}]
//
// becomes "<prefix>.code" = "http://loinc.org|1234" and "<prefix>.text" =
// "Test". A populated concept-level text overrides the display.
func flattenCoding(flat map[string]any, prefix string, coding []any, text string) {
	codes := make([]string, 0, len(coding))
	names := make([]string, 0, len(coding))

	for _, c := range coding {
		entry, ok := c.(map[string]any)
		if !ok {
			continue
		}
		system, _ := entry["system"].(string)
		code := codeString(entry["code"])
		if system != "" && code != "" {
			codes = append(codes, system+"|"+code)
		}
		display, _ := entry["display"].(string)
		names = append(names, display)
	}

	if len(codes) == 1 {
		flat[prefix+".code"] = codes[0]
	} else if len(codes) > 1 {
		flat[prefix+".code"] = codes
	}

	if text != "" {
		flat[prefix+".text"] = text
		return
	}
	if len(names) == 1 {
		flat[prefix+".text"] = names[0]
	} else if len(names) > 1 {
		flat[prefix+".text"] = names
	}
}

// codeString renders a code cell, collapsing integral floats.
func codeString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		if c == float64(int64(c)) {
			return fmt.Sprintf("%d", int64(c))
		}
		return fmt.Sprintf("%v", c)
	default:
		return fmt.Sprintf("%v", c)
	}
}
