// Package registry holds the per-resource schemas the flat representation
// is expanded against and validated with.
package registry

import (
	"strings"
	"sync"
)

// Kind classifies the FHIR datatype of a field in the flat representation.
type Kind string

// Field kinds.
const (
	KindCode            Kind = "code"
	KindString          Kind = "string"
	KindInteger         Kind = "integer"
	KindDecimal         Kind = "decimal"
	KindBoolean         Kind = "boolean"
	KindDate            Kind = "date"
	KindDateTime        Kind = "dateTime"
	KindCodeableConcept Kind = "codeableConcept"
	KindQuantity        Kind = "quantity"
	KindRange           Kind = "range"
	KindPeriod          Kind = "period"
	KindReference       Kind = "reference"
	KindBackbone        Kind = "backbone"
)

// FieldSpec describes one field of a resource in its flat form.
type FieldSpec struct {
	// Name is the FHIR element name (e.g. "actualPeriod", "valueQuantity").
	Name string

	// Kind is the FHIR datatype of the field.
	Kind Kind

	// List is true when the element carries a list of values.
	List bool

	// Required is true when a valid resource must carry the field.
	Required bool

	// Targets restricts reference fields to these resource types.
	// Empty means any known type.
	Targets []string

	// Elements holds the nested field specs of a backbone element.
	Elements []FieldSpec
}

// ExtensionSpec describes an extension the resource's flat form may carry
// under "extension.<url>".
type ExtensionSpec struct {
	// URL is the short extension name used in flat columns.
	URL string

	// Kind is the value[x] datatype of a simple extension.
	Kind Kind

	// Nested holds sub-extension specs for complex extensions.
	// A nested extension has no Kind of its own.
	Nested []ExtensionSpec

	// Once is true when the extension may appear at most once.
	Once bool
}

// Invariant is a resource-level FHIRPath constraint.
type Invariant struct {
	// Key identifies the invariant (e.g. "enc-1").
	Key string

	// Expression is the FHIRPath expression that must hold.
	Expression string

	// Human is the human-readable description reported on violation.
	Human string

	// Warning downgrades a violation from error to warning.
	Warning bool
}

// ResourceSpec is the schema for one resource type's flat form.
type ResourceSpec struct {
	// Type is the FHIR resource type name.
	Type string

	// Fields lists the elements present in the flat representation.
	Fields []FieldSpec

	// Extensions lists the extensions the flat form may carry.
	Extensions []ExtensionSpec

	// Defaults maps element names to the fixed values restored on
	// expansion. These fields are required in FHIR but dropped from the
	// flat form because they never vary.
	Defaults map[string]any

	// Exclusions are elements cleared before flattening (identifying or
	// administrative content that never reaches the flat form).
	Exclusions []string

	// Invariants are resource-level FHIRPath constraints.
	Invariants []Invariant

	indexOnce  sync.Once
	fieldIndex map[string]*FieldSpec
}

// baseExclusions are stripped from every resource's flat form.
var baseExclusions = []string{
	"meta", "implicitRules", "language", "text", "contained", "modifierExtension",
}

// Field returns the spec for the named element. The index builds on
// first use and is safe to share across goroutines.
func (s *ResourceSpec) Field(name string) (*FieldSpec, bool) {
	s.indexOnce.Do(s.buildIndex)
	f, ok := s.fieldIndex[name]
	return f, ok
}

func (s *ResourceSpec) buildIndex() {
	s.fieldIndex = make(map[string]*FieldSpec, len(s.Fields))
	for i := range s.Fields {
		s.fieldIndex[s.Fields[i].Name] = &s.Fields[i]
	}
}

// Extension returns the spec for the named extension url.
func (s *ResourceSpec) Extension(url string) (*ExtensionSpec, bool) {
	for i := range s.Extensions {
		if s.Extensions[i].URL == url {
			return &s.Extensions[i], true
		}
	}
	return nil, false
}

// Required returns the names of all required fields.
func (s *ResourceSpec) Required() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Excluded reports whether the named element is cleared before flattening.
func (s *ResourceSpec) Excluded(name string) bool {
	for _, e := range baseExclusions {
		if e == name {
			return true
		}
	}
	for _, e := range s.Exclusions {
		if e == name {
			return true
		}
	}
	return false
}

// FileName returns the flat file base name for this resource type,
// the lowercased type name (e.g. "encounter").
func (s *ResourceSpec) FileName() string {
	return strings.ToLower(s.Type)
}

// Element looks up a field spec within a backbone element's children.
func (f *FieldSpec) Element(name string) (*FieldSpec, bool) {
	for i := range f.Elements {
		if f.Elements[i].Name == name {
			return &f.Elements[i], true
		}
	}
	return nil, false
}
