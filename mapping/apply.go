package mapping

import (
	"fmt"
	"strings"
	"time"

	ff "github.com/fhirflat/fhirflat"
)

// fieldPlaceholder substitutes the raw response value of the mapped
// variable.
const fieldPlaceholder = "<FIELD>"

// ApplyOptions carries the conversion settings used while evaluating
// templates.
type ApplyOptions struct {
	// DateLayout is the Go reference layout raw date columns use.
	DateLayout string

	// Timezone is applied to dates that carry no offset.
	Timezone *time.Location
}

// Apply maps one raw data row onto flat column maps. One-to-one
// sheets yield at most a single map; one-to-many sheets yield one map
// per mapped variable with a populated response.
func (s *Sheet) Apply(row map[string]string, opts *ApplyOptions) ([]map[string]any, []ff.Issue) {
	if s.Mode == OneToMany {
		return s.applyOneToMany(row, opts)
	}
	return s.applyOneToOne(row, opts)
}

func (s *Sheet) applyOneToOne(row map[string]string, opts *ApplyOptions) ([]map[string]any, []ff.Issue) {
	flat := make(map[string]any)
	var issues []ff.Issue

	for _, variable := range s.Variables() {
		response, present := row[variable]
		if !present || response == "" {
			continue
		}

		entry, ok := s.Lookup(variable, response)
		if !ok {
			issues = append(issues, ff.Warning(ff.IssueTypeMapping).
				Diagnostics(fmt.Sprintf("No mapping for %s response %q", variable, response)).
				At(variable).
				Build())
			continue
		}

		issues = append(issues, s.applyEntry(flat, entry, row, response, opts)...)
	}

	if len(flat) == 0 {
		return nil, issues
	}
	return []map[string]any{flat}, issues
}

func (s *Sheet) applyOneToMany(row map[string]string, opts *ApplyOptions) ([]map[string]any, []ff.Issue) {
	var flats []map[string]any
	var issues []ff.Issue

	for _, variable := range s.Variables() {
		response, present := row[variable]
		if !present || response == "" {
			continue
		}

		entry, ok := s.Lookup(variable, response)
		if !ok {
			issues = append(issues, ff.Warning(ff.IssueTypeMapping).
				Diagnostics(fmt.Sprintf("No mapping for %s response %q", variable, response)).
				At(variable).
				Build())
			continue
		}

		flat := make(map[string]any)
		issues = append(issues, s.applyEntry(flat, entry, row, response, opts)...)
		if len(flat) > 0 {
			flats = append(flats, flat)
		}
	}

	return flats, issues
}

// applyEntry evaluates every template of the entry into the flat map.
// Writing the same value to a column twice keeps the single copy; a
// second, different value for one column is a conflict and errors.
func (s *Sheet) applyEntry(flat map[string]any, entry *Entry, row map[string]string, response string, opts *ApplyOptions) []ff.Issue {
	var issues []ff.Issue

	for column, template := range entry.Fields {
		value, err := evaluate(template, row, response)
		if err != nil {
			issues = append(issues, ff.Warning(ff.IssueTypeMapping).
				Diagnostics(err.Error()).
				At(column).
				Build())
			continue
		}
		if value == "" {
			continue
		}

		if isDateColumn(column) && opts != nil {
			normalized, err := normalizeDate(value, opts)
			if err != nil {
				issues = append(issues, ff.Warning(ff.IssueTypeValue).
					Diagnostics(fmt.Sprintf("Column %s: %v", column, err)).
					At(column).
					Build())
			} else {
				value = normalized
			}
		}

		if existing, ok := flat[column]; ok {
			if existing == value {
				continue
			}
			issues = append(issues, ff.Error(ff.IssueTypeMapping).
				Diagnostics(fmt.Sprintf("Column %s mapped to conflicting values %q and %q", column, existing, value)).
				At(column).
				Build())
			continue
		}
		flat[column] = value
	}

	return issues
}

// evaluate expands a mapping template against a data row.
// Supported forms:
//   - <FIELD> for the raw response of the mapped variable
//   - <name> for the value of another column in the row
//   - a + b concatenation of any of the above and literals
//   - anything else is a literal
func evaluate(template string, row map[string]string, response string) (string, error) {
	parts := strings.Split(template, "+")
	results := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case part == fieldPlaceholder:
			results = append(results, response)
		case strings.HasPrefix(part, "<") && strings.HasSuffix(part, ">"):
			column := strings.TrimSuffix(strings.TrimPrefix(part, "<"), ">")
			value, ok := row[column]
			if !ok {
				return "", fmt.Errorf("template references missing column %q", column)
			}
			results = append(results, value)
		default:
			results = append(results, part)
		}
	}

	if len(results) == 1 {
		return results[0], nil
	}

	// Reference templates like Patient/ + <id> join without spaces.
	if strings.Contains(results[0], "/") {
		return strings.Join(results, ""), nil
	}
	return strings.Join(results, " "), nil
}

// isDateColumn reports whether a flat column holds a date and should
// be normalized with the configured layout and timezone.
func isDateColumn(column string) bool {
	lower := strings.ToLower(column)
	if strings.Contains(lower, "date") {
		return true
	}
	return strings.HasSuffix(lower, "period.start") || strings.HasSuffix(lower, "period.end")
}

// dateTimeSuffixes are clock layouts tried after the date layout when
// the raw value carries a time of day.
var dateTimeSuffixes = []string{" 15:04:05", " 15:04", "T15:04:05", "T15:04"}

// normalizeDate parses a raw date with the configured layout and
// re-renders it in ISO form. Values carrying a time of day keep it,
// stamped with the configured timezone.
func normalizeDate(value string, opts *ApplyOptions) (string, error) {
	layout := opts.DateLayout
	if layout == "" {
		layout = ff.DefaultDateLayout
	}
	tz := opts.Timezone
	if tz == nil {
		tz = time.UTC
	}

	if t, err := time.ParseInLocation(layout, value, tz); err == nil {
		return t.Format("2006-01-02"), nil
	}

	for _, suffix := range dateTimeSuffixes {
		if t, err := time.ParseInLocation(layout+suffix, value, tz); err == nil {
			return t.Format(time.RFC3339), nil
		}
	}

	return "", fmt.Errorf("value %q does not match layout %q", value, layout)
}
