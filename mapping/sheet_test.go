package mapping

import (
	"strings"
	"testing"
)

const encounterSheet = `raw_variable,raw_response,id,subject,admission.admitSource.code,admission.admitSource.system
subjid,,<FIELD>,Patient/ + <subjid>,,
admit_src,home,,,hosp-trans,http://terminology.hl7.org/CodeSystem/admit-source
,gp,,,gp,http://terminology.hl7.org/CodeSystem/admit-source
,,,,other,http://terminology.hl7.org/CodeSystem/admit-source
`

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"one-to-one", OneToOne, false},
		{"1:1", OneToOne, false},
		{"", OneToOne, false},
		{"One-To-Many", OneToMany, false},
		{"1:m", OneToMany, false},
		{"1:n", OneToMany, false},
		{"many-to-many", OneToOne, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v; wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSheet(t *testing.T) {
	sheet, err := ParseSheet("Encounter", OneToOne, strings.NewReader(encounterSheet))
	if err != nil {
		t.Fatalf("ParseSheet failed: %v", err)
	}

	if sheet.Resource != "Encounter" {
		t.Errorf("Resource = %q; want %q", sheet.Resource, "Encounter")
	}
	if len(sheet.Entries) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(sheet.Entries))
	}

	vars := sheet.Variables()
	if len(vars) != 2 {
		t.Fatalf("Expected 2 variables, got %d: %v", len(vars), vars)
	}
	if vars[0] != "subjid" || vars[1] != "admit_src" {
		t.Errorf("Variables = %v; want [subjid admit_src]", vars)
	}
}

func TestParseSheet_ForwardFill(t *testing.T) {
	sheet, err := ParseSheet("Encounter", OneToOne, strings.NewReader(encounterSheet))
	if err != nil {
		t.Fatalf("ParseSheet failed: %v", err)
	}

	// Blank raw_variable cells inherit the variable above them.
	for i := 1; i < 4; i++ {
		if sheet.Entries[i].RawVariable != "admit_src" {
			t.Errorf("Entries[%d].RawVariable = %q; want %q", i, sheet.Entries[i].RawVariable, "admit_src")
		}
	}
}

func TestParseSheet_NoHeader(t *testing.T) {
	_, err := ParseSheet("Encounter", OneToOne, strings.NewReader(""))
	if err == nil {
		t.Error("Expected error for empty sheet")
	}
}

func TestParseSheet_MissingVariableColumn(t *testing.T) {
	_, err := ParseSheet("Encounter", OneToOne, strings.NewReader("foo,bar\n1,2\n"))
	if err == nil {
		t.Error("Expected error for sheet without raw_variable column")
	}
}

func TestParseSheet_ResponseCodeStripped(t *testing.T) {
	const raw = `raw_variable,raw_response,gender
sex,"1, Male",male
sex,"2, Female",female
`
	sheet, err := ParseSheet("Patient", OneToOne, strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseSheet failed: %v", err)
	}

	entry, ok := sheet.Lookup("sex", "2")
	if !ok {
		t.Fatal("Lookup(sex, 2) not found")
	}
	if entry.Fields["gender"] != "female" {
		t.Errorf("gender = %q; want female", entry.Fields["gender"])
	}
}

func TestParseSheet_Duplicates(t *testing.T) {
	const identical = `raw_variable,raw_response,gender
sex,m,male
sex,m,male
`
	sheet, err := ParseSheet("Patient", OneToOne, strings.NewReader(identical))
	if err != nil {
		t.Fatalf("Identical duplicates should be tolerated: %v", err)
	}
	if got := len(sheet.byVariable["sex"]); got != 1 {
		t.Errorf("Expected 1 indexed entry, got %d", got)
	}

	const conflicting = `raw_variable,raw_response,gender
sex,m,male
sex,m,female
`
	if _, err := ParseSheet("Patient", OneToOne, strings.NewReader(conflicting)); err == nil {
		t.Error("Expected error for conflicting duplicate entries")
	}
}

func TestSheet_Covers(t *testing.T) {
	sheet, err := ParseSheet("Encounter", OneToOne, strings.NewReader(encounterSheet))
	if err != nil {
		t.Fatalf("ParseSheet failed: %v", err)
	}

	tests := []struct {
		column string
		want   bool
	}{
		{"admit_src", true}, // mapped variable
		{"subjid", true},    // referenced through templates
		{"heart_rate", false},
	}
	for _, tt := range tests {
		if got := sheet.Covers(tt.column); got != tt.want {
			t.Errorf("Covers(%q) = %v; want %v", tt.column, got, tt.want)
		}
	}
}

func TestSheet_Lookup(t *testing.T) {
	sheet, err := ParseSheet("Encounter", OneToOne, strings.NewReader(encounterSheet))
	if err != nil {
		t.Fatalf("ParseSheet failed: %v", err)
	}

	tests := []struct {
		variable string
		response string
		wantCode string
		wantOK   bool
	}{
		{"admit_src", "home", "hosp-trans", true},
		{"admit_src", "gp", "gp", true},
		{"admit_src", "ambulance", "other", true}, // falls back to generic
		{"heart_rate", "80", "", false},
	}

	for _, tt := range tests {
		entry, ok := sheet.Lookup(tt.variable, tt.response)
		if ok != tt.wantOK {
			t.Errorf("Lookup(%q, %q) ok = %v; want %v", tt.variable, tt.response, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if got := entry.Fields["admission.admitSource.code"]; got != tt.wantCode {
			t.Errorf("Lookup(%q, %q) code = %q; want %q", tt.variable, tt.response, got, tt.wantCode)
		}
	}
}
