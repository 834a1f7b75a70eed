package phase

import (
	"context"
	"testing"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/pipeline"
	"github.com/fhirflat/fhirflat/registry"
)

func mustSpec(t *testing.T, resourceType string) *registry.ResourceSpec {
	t.Helper()
	spec, err := registry.Lookup(resourceType)
	if err != nil {
		t.Fatalf("Lookup(%q) failed: %v", resourceType, err)
	}
	return spec
}

func TestStructurePhase_Name(t *testing.T) {
	p := NewStructurePhase()
	if p.Name() != "structure" {
		t.Errorf("Name() = %q; want %q", p.Name(), "structure")
	}
}

func TestStructurePhase_MissingResourceType(t *testing.T) {
	p := NewStructurePhase()
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceMap: map[string]any{},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if issues[0].Code != ff.IssueTypeRequired {
		t.Errorf("Code = %v; want %v", issues[0].Code, ff.IssueTypeRequired)
	}
}

func TestStructurePhase_UnknownResourceType(t *testing.T) {
	p := NewStructurePhase()
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceType: "Basic",
		ResourceMap: map[string]any{
			"resourceType": "Basic",
		},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if issues[0].Code != ff.IssueTypeNotSupported {
		t.Errorf("Code = %v; want %v", issues[0].Code, ff.IssueTypeNotSupported)
	}
}

func TestStructurePhase_ValidEncounter(t *testing.T) {
	p := NewStructurePhase()
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceType: "Encounter",
		Spec:         mustSpec(t, "Encounter"),
		ResourceMap: map[string]any{
			"resourceType": "Encounter",
			"id":           "enc-001",
			"class": []any{map[string]any{
				"coding": []any{map[string]any{"system": "http://terminology.hl7.org/CodeSystem/v3-ActCode", "code": "IMP"}},
			}},
			"subject": "Patient/pat-001",
		},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 0 {
		t.Errorf("Expected 0 issues for valid encounter, got %d: %v", len(issues), issues)
	}
}

func TestStructurePhase_TypeMismatch(t *testing.T) {
	p := NewStructurePhase()
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceType: "Encounter",
		Spec:         mustSpec(t, "Encounter"),
		ResourceMap: map[string]any{
			"resourceType": "Patient",
			"id":           "123",
		},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if issues[0].Code != ff.IssueTypeStructure {
		t.Errorf("Code = %v; want %v", issues[0].Code, ff.IssueTypeStructure)
	}
}

func TestStructurePhase_InvalidID(t *testing.T) {
	p := NewStructurePhase()
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceType: "Patient",
		Spec:         mustSpec(t, "Patient"),
		ResourceMap: map[string]any{
			"resourceType": "Patient",
			"id":           "not valid!",
		},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d: %v", len(issues), issues)
	}
	if issues[0].Code != ff.IssueTypeValue {
		t.Errorf("Code = %v; want %v", issues[0].Code, ff.IssueTypeValue)
	}
}

func TestStructurePhase_UnknownElement(t *testing.T) {
	p := NewStructurePhase()
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceType: "Patient",
		Spec:         mustSpec(t, "Patient"),
		ResourceMap: map[string]any{
			"resourceType": "Patient",
			"id":           "123",
			"favoriteFood": "pizza",
		},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if issues[0].Severity != ff.SeverityWarning {
		t.Errorf("Severity = %v; want %v", issues[0].Severity, ff.SeverityWarning)
	}
}

func TestStructurePhase_UnknownElementStrictMode(t *testing.T) {
	p := NewStructurePhase()
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceType: "Patient",
		Spec:         mustSpec(t, "Patient"),
		Options:      &pipeline.ContextOptions{StrictMode: true},
		ResourceMap: map[string]any{
			"resourceType": "Patient",
			"id":           "123",
			"favoriteFood": "pizza",
		},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if issues[0].Severity != ff.SeverityError {
		t.Errorf("Severity = %v; want %v", issues[0].Severity, ff.SeverityError)
	}
}

func TestStructurePhase_ExcludedElement(t *testing.T) {
	p := NewStructurePhase()
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceType: "Patient",
		Spec:         mustSpec(t, "Patient"),
		ResourceMap: map[string]any{
			"resourceType": "Patient",
			"id":           "123",
			"name":         []any{map[string]any{"family": "Smith"}},
		},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if issues[0].Code != ff.IssueTypeStructure {
		t.Errorf("Code = %v; want %v", issues[0].Code, ff.IssueTypeStructure)
	}
	if issues[0].Severity != ff.SeverityError {
		t.Errorf("Severity = %v; want %v", issues[0].Severity, ff.SeverityError)
	}
}

func TestStructurePhase_BackboneUnknownChild(t *testing.T) {
	p := NewStructurePhase()
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceType: "Encounter",
		Spec:         mustSpec(t, "Encounter"),
		ResourceMap: map[string]any{
			"resourceType": "Encounter",
			"id":           "enc-001",
			"class": []any{map[string]any{
				"coding": []any{map[string]any{"system": "s", "code": "c"}},
			}},
			"admission": map[string]any{
				"admitSource": map[string]any{"text": "referral"},
				"wardName":    "B2",
			},
		},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d: %v", len(issues), issues)
	}
	if issues[0].Severity != ff.SeverityWarning {
		t.Errorf("Severity = %v; want %v", issues[0].Severity, ff.SeverityWarning)
	}
	if got := issues[0].Expression[0]; got != "admission.wardName" {
		t.Errorf("Expression = %q; want %q", got, "admission.wardName")
	}
}

func TestStructurePhase_BackboneNotObject(t *testing.T) {
	p := NewStructurePhase()
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceType: "Encounter",
		Spec:         mustSpec(t, "Encounter"),
		ResourceMap: map[string]any{
			"resourceType": "Encounter",
			"id":           "enc-001",
			"class": []any{map[string]any{
				"coding": []any{map[string]any{"system": "s", "code": "c"}},
			}},
			"diagnosis": []any{"not-an-object"},
		},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d: %v", len(issues), issues)
	}
	if issues[0].Severity != ff.SeverityError {
		t.Errorf("Severity = %v; want %v", issues[0].Severity, ff.SeverityError)
	}
}
