package registry

// Shared extension specs. These mirror the ISARIC clinical extensions the
// flat form carries under "extension.<url>" columns.
var (
	extTimingPhase = ExtensionSpec{URL: "timingPhase", Kind: KindCodeableConcept, Once: true}

	extTimingPhaseDetail = ExtensionSpec{
		URL:  "timingPhaseDetail",
		Once: true,
		Nested: []ExtensionSpec{
			{URL: "timingPhase", Kind: KindCodeableConcept},
			{URL: "timingDetail", Kind: KindRange},
		},
	}

	extRelativePeriod = ExtensionSpec{
		URL:  "relativePeriod",
		Once: true,
		Nested: []ExtensionSpec{
			{URL: "relativeStart", Kind: KindDecimal},
			{URL: "relativeEnd", Kind: KindDecimal},
		},
	}

	extApproximateDate = ExtensionSpec{URL: "approximateDate", Kind: KindString}
	extAge             = ExtensionSpec{URL: "age", Kind: KindQuantity, Once: true}
	extBirthSex        = ExtensionSpec{URL: "birthSex", Kind: KindCodeableConcept, Once: true}
	extRace            = ExtensionSpec{URL: "race", Kind: KindCodeableConcept, Once: true}
	extPresenceAbsence = ExtensionSpec{URL: "presenceAbsence", Kind: KindCodeableConcept, Once: true}
	extPrespecQuery    = ExtensionSpec{URL: "prespecifiedQuery", Kind: KindBoolean, Once: true}
	extDuration        = ExtensionSpec{URL: "duration", Kind: KindQuantity, Once: true}
)

// builtinSpecs holds the schemas for every supported resource type.
var builtinSpecs = []*ResourceSpec{
	{
		Type: "Patient",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString, Required: true},
			{Name: "gender", Kind: KindCode},
			{Name: "birthDate", Kind: KindDate},
			{Name: "deceasedBoolean", Kind: KindBoolean},
			{Name: "deceasedDateTime", Kind: KindDateTime},
			{Name: "maritalStatus", Kind: KindCodeableConcept},
			{Name: "generalPractitioner", Kind: KindReference, List: true, Targets: []string{"Organization"}},
			{Name: "managingOrganization", Kind: KindReference, Targets: []string{"Organization"}},
		},
		Extensions: []ExtensionSpec{extAge, extBirthSex, extRace},
		Exclusions: []string{
			"identifier", "active", "name", "telecom", "address", "photo",
			"contact", "communication", "link",
		},
	},
	{
		Type: "Encounter",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString, Required: true},
			{Name: "class", Kind: KindCodeableConcept, List: true, Required: true},
			{Name: "priority", Kind: KindCodeableConcept},
			{Name: "type", Kind: KindCodeableConcept, List: true},
			{Name: "serviceType", Kind: KindCodeableConcept, List: true},
			{Name: "subject", Kind: KindReference, Targets: []string{"Patient"}},
			{Name: "episodeOfCare", Kind: KindReference, List: true},
			{Name: "basedOn", Kind: KindReference, List: true},
			{Name: "careTeam", Kind: KindReference, List: true},
			{Name: "partOf", Kind: KindReference, Targets: []string{"Encounter"}},
			{Name: "serviceProvider", Kind: KindReference, Targets: []string{"Organization"}},
			{Name: "actualPeriod", Kind: KindPeriod},
			{Name: "plannedStartDate", Kind: KindDateTime},
			{Name: "plannedEndDate", Kind: KindDateTime},
			{Name: "length", Kind: KindQuantity},
			{Name: "diagnosis", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "condition", Kind: KindBackbone, List: true, Elements: []FieldSpec{
					{Name: "concept", Kind: KindCodeableConcept},
					{Name: "reference", Kind: KindReference, Targets: []string{"Condition"}},
				}},
				{Name: "use", Kind: KindCodeableConcept, List: true},
			}},
			{Name: "reason", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "use", Kind: KindCodeableConcept, List: true},
				{Name: "value", Kind: KindCodeableConcept, List: true},
			}},
			{Name: "admission", Kind: KindBackbone, Elements: []FieldSpec{
				{Name: "origin", Kind: KindReference},
				{Name: "destination", Kind: KindReference},
				{Name: "admitSource", Kind: KindCodeableConcept},
				{Name: "reAdmission", Kind: KindCodeableConcept},
				{Name: "dischargeDisposition", Kind: KindCodeableConcept},
			}},
			{Name: "location", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "location", Kind: KindReference, Targets: []string{"Location"}},
				{Name: "status", Kind: KindCode},
			}},
		},
		Extensions: []ExtensionSpec{extTimingPhase, extTimingPhaseDetail, extRelativePeriod},
		Defaults:   map[string]any{"status": "completed"},
		Exclusions: []string{
			"identifier", "participant", "appointment", "account",
			"dietPreference", "specialArrangement", "specialCourtesy",
		},
		Invariants: []Invariant{
			{
				Key:        "enc-flat-1",
				Expression: "actualPeriod.start.empty() or actualPeriod.end.empty() or actualPeriod.start <= actualPeriod.end",
				Human:      "actualPeriod must not end before it starts",
			},
		},
	},
	{
		Type: "Observation",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString},
			{Name: "category", Kind: KindCodeableConcept, List: true},
			{Name: "code", Kind: KindCodeableConcept, Required: true},
			{Name: "subject", Kind: KindReference, Targets: []string{"Patient"}},
			{Name: "encounter", Kind: KindReference, Targets: []string{"Encounter"}},
			{Name: "effectiveDateTime", Kind: KindDateTime},
			{Name: "effectivePeriod", Kind: KindPeriod},
			{Name: "valueQuantity", Kind: KindQuantity},
			{Name: "valueCodeableConcept", Kind: KindCodeableConcept},
			{Name: "valueInteger", Kind: KindInteger},
			{Name: "valueString", Kind: KindString},
			{Name: "valueBoolean", Kind: KindBoolean},
			{Name: "valueDateTime", Kind: KindDateTime},
			{Name: "interpretation", Kind: KindCodeableConcept, List: true},
			{Name: "method", Kind: KindCodeableConcept},
			{Name: "bodySite", Kind: KindCodeableConcept},
			{Name: "specimen", Kind: KindReference, Targets: []string{"Specimen"}},
			{Name: "referenceRange", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "low", Kind: KindQuantity},
				{Name: "high", Kind: KindQuantity},
				{Name: "normalValue", Kind: KindCodeableConcept},
				{Name: "type", Kind: KindCodeableConcept},
			}},
			{Name: "component", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "code", Kind: KindCodeableConcept},
				{Name: "valueQuantity", Kind: KindQuantity},
				{Name: "valueCodeableConcept", Kind: KindCodeableConcept},
				{Name: "valueInteger", Kind: KindInteger},
				{Name: "valueString", Kind: KindString},
			}},
		},
		Extensions: []ExtensionSpec{extTimingPhase, extTimingPhaseDetail, extApproximateDate},
		Defaults:   map[string]any{"status": "final"},
		Exclusions: []string{
			"identifier", "basedOn", "partOf", "focus", "issued", "performer",
		},
		Invariants: []Invariant{
			{
				Key:        "obs-flat-1",
				Expression: "valueQuantity.empty() or valueCodeableConcept.empty()",
				Human:      "an observation cannot carry both a quantity and a coded value",
			},
		},
	},
	{
		Type: "Condition",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString},
			{Name: "verificationStatus", Kind: KindCodeableConcept},
			{Name: "category", Kind: KindCodeableConcept, List: true},
			{Name: "severity", Kind: KindCodeableConcept},
			{Name: "code", Kind: KindCodeableConcept},
			{Name: "bodySite", Kind: KindCodeableConcept, List: true},
			{Name: "subject", Kind: KindReference, Required: true, Targets: []string{"Patient"}},
			{Name: "encounter", Kind: KindReference, Targets: []string{"Encounter"}},
			{Name: "onsetDateTime", Kind: KindDateTime},
			{Name: "onsetAge", Kind: KindQuantity},
			{Name: "abatementDateTime", Kind: KindDateTime},
			{Name: "recordedDate", Kind: KindDateTime},
			{Name: "stage", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "summary", Kind: KindCodeableConcept},
				{Name: "type", Kind: KindCodeableConcept},
			}},
		},
		Extensions: []ExtensionSpec{extPresenceAbsence, extPrespecQuery, extTimingPhase},
		Defaults: map[string]any{
			"clinicalStatus": map[string]any{
				"coding": []any{map[string]any{
					"system": "http://terminology.hl7.org/CodeSystem/condition-clinical",
					"code":   "unknown",
				}},
			},
		},
		Exclusions: []string{"identifier", "participant", "recorder", "asserter"},
	},
	{
		Type: "Procedure",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString},
			{Name: "category", Kind: KindCodeableConcept},
			{Name: "code", Kind: KindCodeableConcept},
			{Name: "subject", Kind: KindReference, Required: true, Targets: []string{"Patient"}},
			{Name: "encounter", Kind: KindReference, Targets: []string{"Encounter"}},
			{Name: "occurrenceDateTime", Kind: KindDateTime},
			{Name: "occurrencePeriod", Kind: KindPeriod},
			{Name: "bodySite", Kind: KindCodeableConcept, List: true},
			{Name: "outcome", Kind: KindCodeableConcept},
			{Name: "reason", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "concept", Kind: KindCodeableConcept},
				{Name: "reference", Kind: KindReference},
			}},
		},
		Extensions: []ExtensionSpec{extTimingPhase, extTimingPhaseDetail, extRelativePeriod, extDuration},
		Defaults:   map[string]any{"status": "completed"},
		Exclusions: []string{"identifier", "performer", "recorder", "reported", "location"},
	},
	{
		Type: "Immunization",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString},
			{Name: "vaccineCode", Kind: KindCodeableConcept, Required: true},
			{Name: "manufacturer", Kind: KindReference, Targets: []string{"Organization"}},
			{Name: "patient", Kind: KindReference, Required: true, Targets: []string{"Patient"}},
			{Name: "encounter", Kind: KindReference, Targets: []string{"Encounter"}},
			{Name: "occurrenceDateTime", Kind: KindDateTime},
			{Name: "location", Kind: KindReference, Targets: []string{"Location"}},
			{Name: "site", Kind: KindCodeableConcept},
			{Name: "route", Kind: KindCodeableConcept},
			{Name: "doseQuantity", Kind: KindQuantity},
			{Name: "protocolApplied", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "targetDisease", Kind: KindCodeableConcept, List: true},
				{Name: "doseNumber", Kind: KindString},
			}},
		},
		Extensions: []ExtensionSpec{extTimingPhase},
		Defaults:   map[string]any{"status": "completed"},
		Exclusions: []string{"identifier", "performer", "reaction", "note", "supportingInformation"},
	},
	{
		Type: "Location",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString},
			{Name: "status", Kind: KindCode},
			{Name: "name", Kind: KindString},
			{Name: "description", Kind: KindString},
			{Name: "mode", Kind: KindCode},
			{Name: "type", Kind: KindCodeableConcept, List: true},
			{Name: "form", Kind: KindCodeableConcept},
			{Name: "managingOrganization", Kind: KindReference, Targets: []string{"Organization"}},
			{Name: "partOf", Kind: KindReference, Targets: []string{"Location"}},
		},
		Exclusions: []string{"identifier", "contact", "address", "position", "hoursOfOperation"},
	},
	{
		Type: "Organization",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString},
			{Name: "active", Kind: KindBoolean},
			{Name: "type", Kind: KindCodeableConcept, List: true},
			{Name: "name", Kind: KindString},
			{Name: "description", Kind: KindString},
			{Name: "partOf", Kind: KindReference, Targets: []string{"Organization"}},
		},
		Exclusions: []string{"identifier", "alias", "contact", "endpoint", "qualification"},
	},
	{
		Type: "MedicationAdministration",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString},
			{Name: "category", Kind: KindCodeableConcept, List: true},
			{Name: "medication", Kind: KindBackbone, Elements: []FieldSpec{
				{Name: "concept", Kind: KindCodeableConcept},
				{Name: "reference", Kind: KindReference},
			}},
			{Name: "subject", Kind: KindReference, Required: true, Targets: []string{"Patient"}},
			{Name: "encounter", Kind: KindReference, Targets: []string{"Encounter"}},
			{Name: "occurenceDateTime", Kind: KindDateTime},
			{Name: "occurencePeriod", Kind: KindPeriod},
			{Name: "dosage", Kind: KindBackbone, Elements: []FieldSpec{
				{Name: "text", Kind: KindString},
				{Name: "site", Kind: KindCodeableConcept},
				{Name: "route", Kind: KindCodeableConcept},
				{Name: "method", Kind: KindCodeableConcept},
				{Name: "dose", Kind: KindQuantity},
			}},
		},
		Extensions: []ExtensionSpec{extTimingPhase, extDuration},
		Defaults:   map[string]any{"status": "completed"},
		Exclusions: []string{"identifier", "performer", "device", "note", "eventHistory"},
	},
	{
		Type: "MedicationStatement",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString},
			{Name: "category", Kind: KindCodeableConcept, List: true},
			{Name: "medication", Kind: KindBackbone, Elements: []FieldSpec{
				{Name: "concept", Kind: KindCodeableConcept},
				{Name: "reference", Kind: KindReference},
			}},
			{Name: "subject", Kind: KindReference, Required: true, Targets: []string{"Patient"}},
			{Name: "encounter", Kind: KindReference, Targets: []string{"Encounter"}},
			{Name: "effectiveDateTime", Kind: KindDateTime},
			{Name: "effectivePeriod", Kind: KindPeriod},
			{Name: "dateAsserted", Kind: KindDateTime},
			{Name: "reason", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "concept", Kind: KindCodeableConcept},
				{Name: "reference", Kind: KindReference},
			}},
			{Name: "dosage", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "text", Kind: KindString},
				{Name: "site", Kind: KindCodeableConcept},
				{Name: "route", Kind: KindCodeableConcept},
			}},
		},
		Extensions: []ExtensionSpec{extTimingPhase},
		Defaults:   map[string]any{"status": "recorded"},
		Exclusions: []string{"identifier", "informationSource", "derivedFrom", "note"},
	},
	{
		Type: "DiagnosticReport",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString},
			{Name: "category", Kind: KindCodeableConcept, List: true},
			{Name: "code", Kind: KindCodeableConcept, Required: true},
			{Name: "subject", Kind: KindReference, Targets: []string{"Patient"}},
			{Name: "encounter", Kind: KindReference, Targets: []string{"Encounter"}},
			{Name: "effectiveDateTime", Kind: KindDateTime},
			{Name: "effectivePeriod", Kind: KindPeriod},
			{Name: "result", Kind: KindReference, List: true, Targets: []string{"Observation"}},
			{Name: "conclusion", Kind: KindString},
			{Name: "conclusionCode", Kind: KindCodeableConcept, List: true},
		},
		Extensions: []ExtensionSpec{extTimingPhase},
		Defaults:   map[string]any{"status": "final"},
		Exclusions: []string{"identifier", "basedOn", "performer", "specimen", "media", "composition"},
	},
	{
		Type: "ResearchSubject",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString},
			{Name: "progress", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "type", Kind: KindCodeableConcept},
				{Name: "subjectState", Kind: KindCodeableConcept},
				{Name: "startDate", Kind: KindDateTime},
				{Name: "endDate", Kind: KindDateTime},
			}},
			{Name: "period", Kind: KindPeriod},
			{Name: "study", Kind: KindReference, Required: true},
			{Name: "subject", Kind: KindReference, Required: true, Targets: []string{"Patient"}},
			{Name: "assignedComparisonGroup", Kind: KindString},
			{Name: "actualComparisonGroup", Kind: KindString},
			{Name: "consent", Kind: KindReference, List: true},
		},
		Defaults:   map[string]any{"status": "active"},
		Exclusions: []string{"identifier"},
	},
	{
		Type: "Specimen",
		Fields: []FieldSpec{
			{Name: "id", Kind: KindString},
			{Name: "type", Kind: KindCodeableConcept},
			{Name: "subject", Kind: KindReference, Targets: []string{"Patient"}},
			{Name: "receivedTime", Kind: KindDateTime},
			{Name: "collection", Kind: KindBackbone, Elements: []FieldSpec{
				{Name: "collectedDateTime", Kind: KindDateTime},
				{Name: "duration", Kind: KindQuantity},
				{Name: "quantity", Kind: KindQuantity},
				{Name: "method", Kind: KindCodeableConcept},
				{Name: "bodySite", Kind: KindBackbone, Elements: []FieldSpec{
					{Name: "concept", Kind: KindCodeableConcept},
				}},
				{Name: "fastingStatusCodeableConcept", Kind: KindCodeableConcept},
			}},
			{Name: "processing", Kind: KindBackbone, List: true, Elements: []FieldSpec{
				{Name: "description", Kind: KindString},
				{Name: "method", Kind: KindCodeableConcept},
				{Name: "timeDateTime", Kind: KindDateTime},
			}},
			{Name: "condition", Kind: KindCodeableConcept, List: true},
			{Name: "note", Kind: KindString},
		},
		Exclusions: []string{"identifier", "accessionIdentifier", "container", "request"},
	},
}
