package phase

import (
	"context"
	"testing"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/pipeline"
)

func TestReferencesPhase_Name(t *testing.T) {
	p := NewReferencesPhase(nil)
	if p.Name() != "references" {
		t.Errorf("Name() = %q; want %q", p.Name(), "references")
	}
}

func referencesContext(t *testing.T, subject any) *pipeline.Context {
	t.Helper()
	return &pipeline.Context{
		ResourceType: "Encounter",
		Spec:         mustSpec(t, "Encounter"),
		ResourceMap: map[string]any{
			"resourceType": "Encounter",
			"id":           "e1",
			"class": []any{map[string]any{
				"coding": []any{map[string]any{"system": "s", "code": "IMP"}},
			}},
			"subject": subject,
		},
	}
}

func TestReferencesPhase_Forms(t *testing.T) {
	p := NewReferencesPhase(nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		subject    any
		wantIssues int
	}{
		{"relative string", "Patient/p1", 0},
		{"reference object", map[string]any{"reference": "Patient/p1"}, 0},
		{"bare id", "p1", 1},
		{"empty", map[string]any{"display": "John"}, 1},
		{"absolute url", "http://example.org/fhir/Patient/p1", 1},
		{"unknown type", "Spaceship/s1", 1},
		{"wrong target", "Organization/org1", 1},
		{"invalid id", "Patient/not valid", 1},
		{"not a reference", 42, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pctx := referencesContext(t, tt.subject)

			issues := p.Validate(ctx, pctx)

			if len(issues) != tt.wantIssues {
				t.Errorf("Expected %d issues, got %d: %v", tt.wantIssues, len(issues), issues)
			}
			if tt.wantIssues > 0 && issues[0].Code != ff.IssueTypeReference {
				t.Errorf("Code = %v; want %v", issues[0].Code, ff.IssueTypeReference)
			}
		})
	}
}

func TestReferencesPhase_UnrestrictedTargets(t *testing.T) {
	p := NewReferencesPhase(nil)
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceType: "Encounter",
		Spec:         mustSpec(t, "Encounter"),
		ResourceMap: map[string]any{
			"resourceType": "Encounter",
			"id":           "e1",
			"class": []any{map[string]any{
				"coding": []any{map[string]any{"system": "s", "code": "IMP"}},
			}},
			"basedOn": []any{"Procedure/proc1", "Condition/cond1"},
		},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 0 {
		t.Errorf("Expected 0 issues, got %d: %v", len(issues), issues)
	}
}

func TestReferencesPhase_BackboneReferences(t *testing.T) {
	p := NewReferencesPhase(nil)
	ctx := context.Background()

	pctx := &pipeline.Context{
		ResourceType: "Encounter",
		Spec:         mustSpec(t, "Encounter"),
		ResourceMap: map[string]any{
			"resourceType": "Encounter",
			"id":           "e1",
			"class": []any{map[string]any{
				"coding": []any{map[string]any{"system": "s", "code": "IMP"}},
			}},
			"location": []any{map[string]any{
				"location": "Patient/p1",
				"status":   "active",
			}},
		},
	}

	issues := p.Validate(ctx, pctx)

	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d: %v", len(issues), issues)
	}
	if got := issues[0].Expression[0]; got != "location.location" {
		t.Errorf("Expression = %q; want %q", got, "location.location")
	}
}
