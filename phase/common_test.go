package phase

import "testing"

func TestValidateID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"abc123", true},
		{"ABC-123.v2", true},
		{"a", true},
		{"", false},
		{"has space", false},
		{"under_score", false},
		{"slash/y", false},
		{string(make([]byte, 65)), false},
	}

	for _, tt := range tests {
		if got := ValidateID(tt.id); got != tt.want {
			t.Errorf("ValidateID(%q) = %v; want %v", tt.id, got, tt.want)
		}
	}
}

func TestChoiceGroup(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"valueQuantity", "value"},
		{"valueString", "value"},
		{"effectiveDateTime", "effective"},
		{"onsetAge", "onset"},
		{"occurrenceDateTime", "occurrence"},
		{"value", ""},
		{"subject", ""},
		{"valueless", ""},
	}

	for _, tt := range tests {
		if got := choiceGroup(tt.name); got != tt.want {
			t.Errorf("choiceGroup(%q) = %q; want %q", tt.name, got, tt.want)
		}
	}
}

func TestFieldPresent(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"string", "x", true},
		{"empty string", "", false},
		{"nil", nil, false},
		{"empty list", []any{}, false},
		{"list", []any{1}, true},
		{"empty map", map[string]any{}, false},
		{"map", map[string]any{"a": 1}, true},
		{"zero int", 0, true},
		{"false", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fieldPresent(tt.value); got != tt.want {
				t.Errorf("fieldPresent(%v) = %v; want %v", tt.value, got, tt.want)
			}
		})
	}
}
