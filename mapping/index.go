package mapping

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Tab describes one mapping tab listed in the index.
type Tab struct {
	// Resource is the resource type the tab maps.
	Resource string

	// GID is the sheet tab identifier used for CSV export, or the
	// file base name for directory sources.
	GID string

	// Mode is the mapping mode declared for the tab.
	Mode Mode
}

// Index is the first tab of a mapping workbook. It lists the resource
// tabs, their identifiers, and their mapping modes.
type Index struct {
	Tabs []Tab
}

// IndexGID is the tab identifier of the index tab itself.
const IndexGID = "0"

// ParseIndex reads the index tab. Expected columns are resource,
// gid, and mode; header names are matched case-insensitively.
func ParseIndex(r io.Reader) (*Index, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("mapping: index has no header: %w", err)
	}

	resIdx, gidIdx, modeIdx := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "resource", "resource_type":
			resIdx = i
		case "gid", "sheet", "tab":
			gidIdx = i
		case "mode", "mapping", "mapping_mode":
			modeIdx = i
		}
	}
	if resIdx < 0 {
		return nil, fmt.Errorf("mapping: index has no resource column")
	}

	idx := &Index{}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mapping: index: %w", err)
		}

		cell := func(i int) string {
			if i < 0 || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		resource := cell(resIdx)
		if resource == "" {
			continue
		}

		mode, err := ParseMode(cell(modeIdx))
		if err != nil {
			return nil, fmt.Errorf("mapping: index entry %s: %w", resource, err)
		}

		idx.Tabs = append(idx.Tabs, Tab{
			Resource: resource,
			GID:      cell(gidIdx),
			Mode:     mode,
		})
	}

	if len(idx.Tabs) == 0 {
		return nil, fmt.Errorf("mapping: index lists no tabs")
	}

	return idx, nil
}

// Tab finds an index entry by resource type, case-insensitively.
func (idx *Index) Tab(resource string) (*Tab, bool) {
	for i := range idx.Tabs {
		if strings.EqualFold(idx.Tabs[i].Resource, resource) {
			return &idx.Tabs[i], true
		}
	}
	return nil, false
}
