// Package expand rebuilds FHIR resource maps from their flat, dotted-column
// representation. It is the inverse of package flatten.
package expand

import (
	"fmt"
	"sort"
	"strings"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/registry"
)

// GroupKeys finds dotted keys and groups them by their first segment.
//
//	["code.code", "code.text", "value.code", "fruitcake"]
//
// returns
//
//	{"code": ["code.code", "code.text"], "value": ["value.code"]}
func GroupKeys(data map[string]any) map[string][]string {
	groups := make(map[string][]string)
	for k := range data {
		if i := strings.IndexByte(k, '.'); i > 0 {
			head := k[:i]
			groups[head] = append(groups[head], k)
		}
	}
	for _, keys := range groups {
		sort.Strings(keys)
	}
	return groups
}

// StepDown strips the first dotted segment from every key.
func StepDown(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if i := strings.IndexByte(k, '.'); i > 0 {
			out[k[i+1:]] = v
		} else {
			out[k] = v
		}
	}
	return out
}

// Resource expands one flat row into a FHIR resource map using the resource
// spec. Defaults are restored, references wrapped, and list-typed fields
// wrapped into lists. Issues describe anything that could not be expanded.
func Resource(flat map[string]any, spec *registry.ResourceSpec) (map[string]any, []ff.Issue) {
	var issues []ff.Issue

	data := make(map[string]any, len(flat))
	for k, v := range flat {
		if v == nil {
			continue
		}
		data[k] = v
	}

	// _dense columns hold pre-built FHIR structures; restore their real names.
	for k, v := range data {
		if name, ok := strings.CutSuffix(k, "_dense"); ok {
			delete(data, k)
			data[name] = v
		}
	}

	expanded, expIssues := expandConcepts(data, fieldResolver{spec: spec})
	issues = append(issues, expIssues...)

	// Scalar reference fields arrive as bare "Type/id" strings.
	for name, v := range expanded {
		f, ok := spec.Field(name)
		if !ok {
			continue
		}
		if f.Kind == registry.KindReference {
			expanded[name] = wrapReference(v)
		}
		if f.List {
			if _, isList := expanded[name].([]any); !isList {
				expanded[name] = []any{expanded[name]}
			}
		}
	}

	for name, value := range spec.Defaults {
		if _, present := expanded[name]; !present {
			expanded[name] = value
		}
	}

	expanded["resourceType"] = spec.Type
	return expanded, issues
}

// wrapReference turns "Patient/p1" into {"reference": "Patient/p1"}.
// Values that are already maps (from _dense columns) pass through.
func wrapReference(v any) any {
	switch ref := v.(type) {
	case string:
		return map[string]any{"reference": ref}
	case []any:
		out := make([]any, len(ref))
		for i, item := range ref {
			out[i] = wrapReference(item)
		}
		return out
	default:
		return v
	}
}

// resolver finds the datatype context for a grouped key.
type resolver interface {
	resolve(name string) (*registry.FieldSpec, bool)
	isList(name string) bool
	extensionSpec(url string) (*registry.ExtensionSpec, bool)
}

// fieldResolver resolves against a resource spec's top-level fields.
type fieldResolver struct {
	spec *registry.ResourceSpec
}

func (r fieldResolver) resolve(name string) (*registry.FieldSpec, bool) {
	if name == "extension" {
		return nil, true
	}
	return r.spec.Field(name)
}

func (r fieldResolver) isList(name string) bool {
	if f, ok := r.spec.Field(name); ok {
		return f.List
	}
	return name == "extension"
}

func (r fieldResolver) extensionSpec(url string) (*registry.ExtensionSpec, bool) {
	return r.spec.Extension(url)
}

// backboneResolver resolves against a backbone element's children.
type backboneResolver struct {
	field *registry.FieldSpec
}

func (r backboneResolver) resolve(name string) (*registry.FieldSpec, bool) {
	return r.field.Element(name)
}

func (r backboneResolver) isList(name string) bool {
	if f, ok := r.field.Element(name); ok {
		return f.List
	}
	return false
}

func (r backboneResolver) extensionSpec(string) (*registry.ExtensionSpec, bool) {
	return nil, false
}

// expandConcepts combines dotted keys back into nested FHIR structures.
// Direct port of the recursive regrouping the flat form is defined by.
func expandConcepts(data map[string]any, res resolver) (map[string]any, []ff.Issue) {
	var issues []ff.Issue

	groups := GroupKeys(data)

	// Deterministic iteration keeps issue ordering stable.
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(data))

	// Ungrouped keys carry over as-is.
	for k, v := range data {
		if !strings.Contains(k, ".") {
			out[k] = v
		}
	}

	for _, name := range names {
		keys := groups[name]
		group := make(map[string]any, len(keys))
		for _, k := range keys {
			group[k] = data[k]
		}
		stripped := StepDown(group)

		field, known := res.resolve(name)
		if !known {
			issues = append(issues, ff.Error(ff.IssueTypeStructure).
				Diagnostics(fmt.Sprintf("field %q is not part of the resource", name)).
				At(keys[0]).Build())
			continue
		}

		if name == "extension" {
			ext, extIssues := expandExtensions(stripped, res)
			issues = append(issues, extIssues...)
			if len(ext) > 0 {
				out["extension"] = ext
			}
			continue
		}

		value, vIssues := expandField(name, stripped, field)
		issues = append(issues, vIssues...)
		if value == nil {
			continue
		}
		if res.isList(name) {
			if _, isList := value.([]any); !isList {
				value = []any{value}
			}
		}
		out[name] = value
	}

	return out, issues
}

// expandField builds the FHIR structure for one grouped field.
func expandField(name string, group map[string]any, field *registry.FieldSpec) (any, []ff.Issue) {
	switch field.Kind {
	case registry.KindCodeableConcept:
		return buildCodeableConcept(group), nil
	case registry.KindQuantity:
		return buildQuantity(group), nil
	case registry.KindRange:
		return buildRange(group)
	case registry.KindPeriod:
		return buildPeriod(group), nil
	case registry.KindReference:
		// "subject.reference" style nesting collapses to the bare string.
		if ref, ok := group["reference"]; ok {
			return wrapReference(ref), nil
		}
		return wrapReference(group), nil
	case registry.KindBackbone:
		nested, issues := expandConcepts(group, backboneResolver{field: field})
		// References within backbones arrive bare too.
		for childName, v := range nested {
			if child, ok := field.Element(childName); ok && child.Kind == registry.KindReference {
				nested[childName] = wrapReference(v)
			}
		}
		if len(nested) == 0 {
			return nil, issues
		}
		return nested, issues
	default:
		return nil, []ff.Issue{
			ff.Error(ff.IssueTypeStructure).
				Diagnostics(fmt.Sprintf("field %q of kind %s cannot carry nested columns", name, field.Kind)).
				At(name).Build(),
		}
	}
}
