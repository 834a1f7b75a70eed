package fhirflat

// Version is the fhirflat library version.
const Version = "0.1.0"

// ResourceType names a FHIR resource type supported by the flat form.
type ResourceType string

// Supported resource types.
const (
	Patient                  ResourceType = "Patient"
	Encounter                ResourceType = "Encounter"
	Observation              ResourceType = "Observation"
	Condition                ResourceType = "Condition"
	Procedure                ResourceType = "Procedure"
	Immunization             ResourceType = "Immunization"
	Location                 ResourceType = "Location"
	Organization             ResourceType = "Organization"
	MedicationAdministration ResourceType = "MedicationAdministration"
	MedicationStatement      ResourceType = "MedicationStatement"
	DiagnosticReport         ResourceType = "DiagnosticReport"
	ResearchSubject          ResourceType = "ResearchSubject"
	Specimen                 ResourceType = "Specimen"
)

// String returns the resource type string.
func (r ResourceType) String() string {
	return string(r)
}

// IsValid returns true if this is a supported resource type.
func (r ResourceType) IsValid() bool {
	switch r {
	case Patient, Encounter, Observation, Condition, Procedure, Immunization,
		Location, Organization, MedicationAdministration, MedicationStatement,
		DiagnosticReport, ResearchSubject, Specimen:
		return true
	default:
		return false
	}
}

// ResourceTypes returns all supported resource types.
func ResourceTypes() []ResourceType {
	return []ResourceType{
		Patient, Encounter, Observation, Condition, Procedure, Immunization,
		Location, Organization, MedicationAdministration, MedicationStatement,
		DiagnosticReport, ResearchSubject, Specimen,
	}
}
