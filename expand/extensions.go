package expand

import (
	"fmt"
	"sort"
	"strings"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/registry"
)

// expandExtensions turns "extension.<url>..." columns back into a FHIR
// extension list. Simple extensions become {url, value[x]}, complex ones
// nest a further extension list.
func expandExtensions(data map[string]any, res resolver) ([]any, []ff.Issue) {
	var issues []ff.Issue

	groups := GroupKeys(data)

	urls := make(map[string]map[string]any)
	for url, keys := range groups {
		sub := make(map[string]any, len(keys))
		for _, k := range keys {
			sub[k] = data[k]
		}
		urls[url] = StepDown(sub)
	}
	// Bare keys hold the value directly, e.g. "approximateDate".
	for k, v := range data {
		if !strings.Contains(k, ".") {
			urls[k] = map[string]any{"": v}
		}
	}

	names := make([]string, 0, len(urls))
	for url := range urls {
		names = append(names, url)
	}
	sort.Strings(names)

	var out []any
	for _, url := range names {
		spec, ok := res.extensionSpec(url)
		if !ok {
			issues = append(issues, ff.Warning(ff.IssueTypeExtension).
				Diagnostics(fmt.Sprintf("extension %q is not recognised for this resource", url)).
				At("extension."+url).Build())
			continue
		}

		ext, extIssues := buildExtension(spec, urls[url])
		issues = append(issues, extIssues...)
		if ext != nil {
			out = append(out, ext)
		}
	}

	return out, issues
}

// buildExtension constructs one extension from its stripped columns.
func buildExtension(spec *registry.ExtensionSpec, group map[string]any) (map[string]any, []ff.Issue) {
	if len(spec.Nested) > 0 {
		return buildNestedExtension(spec, group)
	}

	value := singleValue(group)
	if value == nil {
		return nil, nil
	}

	valueKey, converted, issues := extensionValue(spec, value, group)
	if valueKey == "" {
		return nil, issues
	}
	return map[string]any{"url": spec.URL, valueKey: converted}, issues
}

// buildNestedExtension handles complex extensions such as timingPhaseDetail.
func buildNestedExtension(spec *registry.ExtensionSpec, group map[string]any) (map[string]any, []ff.Issue) {
	var issues []ff.Issue

	groups := GroupKeys(group)
	subURLs := make(map[string]map[string]any)
	for url, keys := range groups {
		sub := make(map[string]any, len(keys))
		for _, k := range keys {
			sub[k] = group[k]
		}
		subURLs[url] = StepDown(sub)
	}
	for k, v := range group {
		if !strings.Contains(k, ".") && k != "" {
			subURLs[k] = map[string]any{"": v}
		}
	}

	names := make([]string, 0, len(subURLs))
	for url := range subURLs {
		names = append(names, url)
	}
	sort.Strings(names)

	var children []any
	for _, url := range names {
		var childSpec *registry.ExtensionSpec
		for i := range spec.Nested {
			if spec.Nested[i].URL == url {
				childSpec = &spec.Nested[i]
				break
			}
		}
		if childSpec == nil {
			issues = append(issues, ff.Warning(ff.IssueTypeExtension).
				Diagnostics(fmt.Sprintf("extension %q has no sub-extension %q", spec.URL, url)).
				At("extension."+spec.URL+"."+url).Build())
			continue
		}

		child, childIssues := buildExtension(childSpec, subURLs[url])
		issues = append(issues, childIssues...)
		if child != nil {
			children = append(children, child)
		}
	}

	if len(children) == 0 {
		return nil, issues
	}
	return map[string]any{"url": spec.URL, "extension": children}, issues
}

// singleValue unwraps a bare-value group ({"": v}) or returns nil when the
// group still carries dotted structure.
func singleValue(group map[string]any) any {
	if v, ok := group[""]; ok && len(group) == 1 {
		return v
	}
	return group
}

// extensionValue picks the value[x] key for a simple extension and converts
// the flat data to the FHIR shape the kind demands.
func extensionValue(spec *registry.ExtensionSpec, value any, group map[string]any) (string, any, []ff.Issue) {
	switch spec.Kind {
	case registry.KindCodeableConcept:
		cc := buildCodeableConcept(mapOrWrap(value, group))
		if cc == nil {
			return "", nil, nil
		}
		return "valueCodeableConcept", cc, nil
	case registry.KindQuantity:
		q := buildQuantity(mapOrWrap(value, group))
		if q == nil {
			return "", nil, nil
		}
		return "valueQuantity", q, nil
	case registry.KindRange:
		r, issues := buildRange(mapOrWrap(value, group))
		if r == nil {
			return "", nil, issues
		}
		return "valueRange", r, issues
	case registry.KindPeriod:
		p := buildPeriod(mapOrWrap(value, group))
		if p == nil {
			return "", nil, nil
		}
		return "valuePeriod", p, nil
	case registry.KindDecimal:
		return "valueDecimal", quantityValue(value), nil
	case registry.KindInteger:
		return "valueInteger", value, nil
	case registry.KindBoolean:
		return "valueBoolean", value, nil
	case registry.KindDate:
		return "valueDate", value, nil
	case registry.KindDateTime:
		return "valueDateTime", value, nil
	case registry.KindString:
		return "valueString", value, nil
	default:
		return "", nil, []ff.Issue{
			ff.Error(ff.IssueTypeExtension).
				Diagnostics(fmt.Sprintf("extension %q has unsupported kind %s", spec.URL, spec.Kind)).
				At("extension." + spec.URL).Build(),
		}
	}
}

// mapOrWrap hands structured groups through and ignores bare values that
// cannot form the requested datatype.
func mapOrWrap(value any, group map[string]any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	out := make(map[string]any, len(group))
	for k, v := range group {
		if k != "" {
			out[k] = v
		}
	}
	return out
}
