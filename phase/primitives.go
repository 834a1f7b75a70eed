package phase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/pipeline"
	"github.com/fhirflat/fhirflat/registry"
)

// dateLayouts are the accepted layouts for a FHIR date, from full
// precision down to year only.
var dateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// dateTimeLayouts are the accepted layouts for a FHIR dateTime.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// PrimitivesPhase validates primitive value formats against the
// declared field kinds. It checks that:
// - Dates and dateTimes parse with a FHIR layout
// - Codes carry no stray whitespace
// - Integers, decimals, and booleans hold values of their kind
// - Codings, quantities, ranges, and periods are internally well formed
type PrimitivesPhase struct{}

// NewPrimitivesPhase creates a new primitives validation phase.
func NewPrimitivesPhase() *PrimitivesPhase {
	return &PrimitivesPhase{}
}

// Name returns the phase name.
func (p *PrimitivesPhase) Name() string {
	return "primitives"
}

// Validate performs primitive type validation.
func (p *PrimitivesPhase) Validate(ctx context.Context, pctx *pipeline.Context) []ff.Issue {
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
		select {
		case <-ctx.Done():
			return issues
		default:
		}

		field := &pctx.Spec.Fields[i]
		value, ok := pctx.ResourceMap[field.Name]
		if !ok || !fieldPresent(value) {
			continue
		}

		for _, entry := range elements(value) {
			issues = append(issues, p.checkValue(field.Name, entry, field)...)
		}
	}

	return issues
}

// checkValue validates a single value against its field kind.
func (p *PrimitivesPhase) checkValue(path string, value any, field *registry.FieldSpec) []ff.Issue {
	switch field.Kind {
	case registry.KindDate:
		return p.checkDate(path, value)
	case registry.KindDateTime:
		return p.checkDateTime(path, value)
	case registry.KindCode:
		return p.checkCode(path, value)
	case registry.KindInteger:
		return p.checkInteger(path, value)
	case registry.KindDecimal:
		return p.checkDecimal(path, value)
	case registry.KindBoolean:
		return p.checkBoolean(path, value)
	case registry.KindCodeableConcept:
		return p.checkConcept(path, value)
	case registry.KindQuantity:
		return p.checkQuantity(path, value)
	case registry.KindRange:
		return p.checkRange(path, value)
	case registry.KindPeriod:
		return p.checkPeriod(path, value)
	case registry.KindBackbone:
		return p.checkBackbone(path, value, field)
	}
	return nil
}

func (p *PrimitivesPhase) checkDate(path string, value any) []ff.Issue {
	s, ok := value.(string)
	if !ok {
		return p.typeError(path, value, "date")
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return nil
		}
	}
	return []ff.Issue{ErrorIssue(
		ff.IssueTypeValue,
		fmt.Sprintf("Value %q at %s is not a valid date", s, path),
		path,
		p.Name(),
	)}
}

func (p *PrimitivesPhase) checkDateTime(path string, value any) []ff.Issue {
	s, ok := value.(string)
	if !ok {
		return p.typeError(path, value, "dateTime")
	}
	for _, layout := range dateTimeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return nil
		}
	}
	return []ff.Issue{ErrorIssue(
		ff.IssueTypeValue,
		fmt.Sprintf("Value %q at %s is not a valid dateTime", s, path),
		path,
		p.Name(),
	)}
}

func (p *PrimitivesPhase) checkCode(path string, value any) []ff.Issue {
	s, ok := value.(string)
	if !ok {
		return p.typeError(path, value, "code")
	}
	if s == "" || s != strings.TrimSpace(s) || strings.Contains(s, "  ") {
		return []ff.Issue{ErrorIssue(
			ff.IssueTypeValue,
			fmt.Sprintf("Value %q at %s is not a valid code", s, path),
			path,
			p.Name(),
		)}
	}
	return nil
}

func (p *PrimitivesPhase) checkInteger(path string, value any) []ff.Issue {
	switch v := value.(type) {
	case int, int32, int64:
		return nil
	case float64:
		if v == float64(int64(v)) {
			return nil
		}
	case string:
		if d, err := decimal.NewFromString(v); err == nil && d.IsInteger() {
			return nil
		}
	}
	return p.typeError(path, value, "integer")
}

func (p *PrimitivesPhase) checkDecimal(path string, value any) []ff.Issue {
	switch v := value.(type) {
	case int, int32, int64, float32, float64:
		return nil
	case string:
		if _, err := decimal.NewFromString(v); err == nil {
			return nil
		}
	}
	return p.typeError(path, value, "decimal")
}

func (p *PrimitivesPhase) checkBoolean(path string, value any) []ff.Issue {
	switch v := value.(type) {
	case bool:
		return nil
	case string:
		if v == "true" || v == "false" {
			return nil
		}
	}
	return p.typeError(path, value, "boolean")
}

// checkConcept validates a CodeableConcept map. Codings must carry
// both system and code; text-only concepts pass with an information
// issue so unmapped free text stays visible.
func (p *PrimitivesPhase) checkConcept(path string, value any) []ff.Issue {
	m, ok := value.(map[string]any)
	if !ok {
		return p.typeError(path, value, "CodeableConcept")
	}

	var issues []ff.Issue
	codings, hasCoding := m["coding"].([]any)

	if !hasCoding || len(codings) == 0 {
		if _, hasText := m["text"].(string); hasText {
			issues = append(issues, InformationIssue(
				ff.IssueTypeCodeInvalid,
				fmt.Sprintf("Concept at %s has free text but no coding", path),
				path,
				p.Name(),
			))
			return issues
		}
		issues = append(issues, ErrorIssue(
			ff.IssueTypeCodeInvalid,
			fmt.Sprintf("Concept at %s has neither coding nor text", path),
			path,
			p.Name(),
		))
		return issues
	}

	for i, c := range codings {
		coding, ok := c.(map[string]any)
		if !ok {
			issues = append(issues, ErrorIssue(
				ff.IssueTypeStructure,
				fmt.Sprintf("Coding at %s must be an object", path),
				path,
				p.Name(),
			))
			continue
		}
		system, _ := coding["system"].(string)
		code, _ := coding["code"].(string)
		if system == "" || code == "" {
			issues = append(issues, ErrorIssue(
				ff.IssueTypeCodeInvalid,
				fmt.Sprintf("Coding %d at %s must carry both system and code", i, path),
				path,
				p.Name(),
			))
		}
	}

	return issues
}

func (p *PrimitivesPhase) checkQuantity(path string, value any) []ff.Issue {
	m, ok := value.(map[string]any)
	if !ok {
		return p.typeError(path, value, "Quantity")
	}

	var issues []ff.Issue

	v, hasValue := m["value"]
	if !hasValue {
		issues = append(issues, ErrorIssue(
			ff.IssueTypeRequired,
			fmt.Sprintf("Quantity at %s has no value", path),
			path,
			p.Name(),
		))
	} else {
		issues = append(issues, p.checkDecimal(joinPath(path, "value"), v)...)
	}

	code, hasCode := m["code"].(string)
	system, _ := m["system"].(string)
	if hasCode && code != "" && system == "" {
		issues = append(issues, ErrorIssue(
			ff.IssueTypeCodeInvalid,
			fmt.Sprintf("Quantity at %s has a code but no system", path),
			path,
			p.Name(),
		))
	}

	return issues
}

func (p *PrimitivesPhase) checkRange(path string, value any) []ff.Issue {
	m, ok := value.(map[string]any)
	if !ok {
		return p.typeError(path, value, "Range")
	}

	var issues []ff.Issue
	for _, bound := range []string{"low", "high"} {
		if q, ok := m[bound]; ok {
			issues = append(issues, p.checkQuantity(joinPath(path, bound), q)...)
		}
	}
	return issues
}

func (p *PrimitivesPhase) checkPeriod(path string, value any) []ff.Issue {
	m, ok := value.(map[string]any)
	if !ok {
		return p.typeError(path, value, "Period")
	}

	var issues []ff.Issue
	for _, bound := range []string{"start", "end"} {
		if v, ok := m[bound]; ok {
			issues = append(issues, p.checkDateTime(joinPath(path, bound), v)...)
		}
	}
	return issues
}

func (p *PrimitivesPhase) checkBackbone(path string, value any, field *registry.FieldSpec) []ff.Issue {
	m, ok := value.(map[string]any)
	if !ok {
		return nil // structure phase reports malformed backbones
	}

	var issues []ff.Issue
	for name, v := range m {
		element, known := field.Element(name)
		if !known {
			continue
		}
		for _, entry := range elements(v) {
			issues = append(issues, p.checkValue(joinPath(path, name), entry, element)...)
		}
	}
	return issues
}

func (p *PrimitivesPhase) typeError(path string, value any, want string) []ff.Issue {
	return []ff.Issue{ErrorIssue(
		ff.IssueTypeValue,
		fmt.Sprintf("Value of type %T at %s is not a valid %s", value, path, want),
		path,
		p.Name(),
	)}
}
