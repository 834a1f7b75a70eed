// Package mapping loads mapping sheets and turns raw data rows into
// flat column maps. A mapping sheet is a CSV table with one tab per
// resource type: each row pairs a raw variable (and optionally one of
// its responses) with the flat columns it populates.
package mapping

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Mode selects how a sheet maps data rows onto resources.
type Mode int

const (
	// OneToOne produces a single resource per data row.
	OneToOne Mode = iota

	// OneToMany produces one resource per mapped raw variable,
	// melting wide rows into multiple resources.
	OneToMany
)

// ParseMode parses a mode name from the index tab.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "one-to-one", "1:1", "":
		return OneToOne, nil
	case "one-to-many", "1:m", "1:n":
		return OneToMany, nil
	default:
		return OneToOne, fmt.Errorf("mapping: unknown mode %q", s)
	}
}

// String returns the canonical mode name.
func (m Mode) String() string {
	if m == OneToMany {
		return "one-to-many"
	}
	return "one-to-one"
}

// Entry is one mapping sheet row. It binds a raw variable, and
// optionally one specific response value, to flat column templates.
type Entry struct {
	// RawVariable is the source column name in the data file.
	RawVariable string

	// RawResponse is the specific response this entry applies to.
	// Empty means the entry applies to any response.
	RawResponse string

	// Fields maps flat column names to value templates.
	Fields map[string]string
}

// Generic reports whether the entry applies to any response value.
func (e *Entry) Generic() bool {
	return e.RawResponse == ""
}

// Sheet holds all mapping entries for one resource type.
type Sheet struct {
	// Resource is the resource type the sheet maps to.
	Resource string

	// Mode selects one-to-one or one-to-many application.
	Mode Mode

	// Entries lists the mapping rows in sheet order.
	Entries []Entry

	// byVariable indexes entries by raw variable name.
	byVariable map[string][]*Entry

	// referenced holds data columns used through <column> templates.
	referenced map[string]bool
}

// reserved sheet columns that never become flat columns.
const (
	colRawVariable = "raw_variable"
	colRawResponse = "raw_response"
)

// ParseSheet reads a mapping tab. The first record is the header; it
// must contain raw_variable, and every other column names a flat
// column. Blank raw_variable cells inherit the value above them, so
// a variable with several responses is written once.
func ParseSheet(resource string, mode Mode, r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("mapping: sheet %s has no header: %w", resource, err)
	}

	varIdx, respIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case colRawVariable:
			varIdx = i
		case colRawResponse:
			respIdx = i
		}
	}
	if varIdx < 0 {
		return nil, fmt.Errorf("mapping: sheet %s has no %s column", resource, colRawVariable)
	}

	sheet := &Sheet{
		Resource:   resource,
		Mode:       mode,
		byVariable: make(map[string][]*Entry),
		referenced: make(map[string]bool),
	}

	lastVariable := ""
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mapping: sheet %s: %w", resource, err)
		}

		cell := func(i int) string {
			if i < 0 || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		variable := cell(varIdx)
		if variable == "" {
			variable = lastVariable
		}
		if variable == "" {
			continue // leading blank rows
		}
		lastVariable = variable

		entry := Entry{
			RawVariable: variable,
			RawResponse: normalizeResponse(cell(respIdx)),
			Fields:      make(map[string]string),
		}
		for i, name := range header {
			if i == varIdx || i == respIdx {
				continue
			}
			column := strings.TrimSpace(name)
			if column == "" {
				continue
			}
			if value := cell(i); value != "" {
				entry.Fields[column] = value
			}
		}
		if len(entry.Fields) == 0 {
			continue
		}

		sheet.Entries = append(sheet.Entries, entry)
	}

	seen := make(map[string]*Entry, len(sheet.Entries))
	for i := range sheet.Entries {
		e := &sheet.Entries[i]

		key := e.RawVariable + "\x00" + e.RawResponse
		if prev, dup := seen[key]; dup {
			// Identical duplicates are tolerated; conflicting ones are not.
			if !sameFields(prev.Fields, e.Fields) {
				return nil, fmt.Errorf("mapping: sheet %s: conflicting entries for %s response %q",
					resource, e.RawVariable, e.RawResponse)
			}
			continue
		}
		seen[key] = e

		sheet.byVariable[e.RawVariable] = append(sheet.byVariable[e.RawVariable], e)
		for _, template := range e.Fields {
			for _, column := range referencedColumns(template) {
				sheet.referenced[column] = true
			}
		}
	}

	return sheet, nil
}

// normalizeResponse strips a "code, label" response cell to its code.
func normalizeResponse(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// sameFields reports whether two template maps are identical.
func sameFields(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// referencedColumns lists the <column> placeholders of a template.
func referencedColumns(template string) []string {
	var columns []string
	for _, part := range strings.Split(template, "+") {
		part = strings.TrimSpace(part)
		if part == fieldPlaceholder {
			continue
		}
		if strings.HasPrefix(part, "<") && strings.HasSuffix(part, ">") {
			columns = append(columns, strings.TrimSuffix(strings.TrimPrefix(part, "<"), ">"))
		}
	}
	return columns
}

// Lookup finds the entry for a raw variable and response. An exact
// response match wins over the generic entry.
func (s *Sheet) Lookup(variable, response string) (*Entry, bool) {
	entries := s.byVariable[variable]
	var generic *Entry
	for _, e := range entries {
		if e.RawResponse == response {
			return e, true
		}
		if e.Generic() && generic == nil {
			generic = e
		}
	}
	if generic != nil {
		return generic, true
	}
	return nil, false
}

// Covers reports whether the sheet maps or references a data column.
func (s *Sheet) Covers(column string) bool {
	if _, ok := s.byVariable[column]; ok {
		return true
	}
	return s.referenced[column]
}

// Variables returns the raw variable names the sheet maps, in sheet order.
func (s *Sheet) Variables() []string {
	seen := make(map[string]bool, len(s.byVariable))
	var names []string
	for i := range s.Entries {
		name := s.Entries[i].RawVariable
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
