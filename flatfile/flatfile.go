// Package flatfile reads and writes the columnar parquet files that
// hold flat resources. Each resource type gets one file named after
// the lowercased type, e.g. encounter.parquet.
package flatfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	ff "github.com/fhirflat/fhirflat"
)

// ErrNoRows is returned when a write is attempted with no rows.
var ErrNoRows = errors.New("flatfile: no rows to write")

// columnKind is the inferred physical type of a flat column.
type columnKind int

const (
	kindUnknown columnKind = iota
	kindString
	kindInt
	kindFloat
	kindBool
)

// Extension is the file extension used for flat files.
const Extension = ".parquet"

// FileName returns the flat file name for a resource type.
func FileName(resourceType string) string {
	return strings.ToLower(resourceType) + Extension
}

// ErrorFileName returns the rejected-rows sidecar name for a resource type.
func ErrorFileName(resourceType string) string {
	return strings.ToLower(resourceType) + "_errors.csv"
}

// normalize converts a cell value into one of the physical column
// types. Lists and maps collapse to their JSON encoding so the column
// stays scalar.
func normalize(v any) (any, columnKind, error) {
	switch t := v.(type) {
	case nil:
		return nil, kindUnknown, nil
	case string:
		return t, kindString, nil
	case bool:
		return t, kindBool, nil
	case int:
		return int64(t), kindInt, nil
	case int32:
		return int64(t), kindInt, nil
	case int64:
		return t, kindInt, nil
	case float32:
		return float64(t), kindFloat, nil
	case float64:
		return t, kindFloat, nil
	case decimal.Decimal:
		if t.IsInteger() {
			return t.IntPart(), kindInt, nil
		}
		f, _ := t.Float64()
		return f, kindFloat, nil
	case time.Time:
		return t.Format(time.RFC3339), kindString, nil
	case []any, []string, map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, kindUnknown, err
		}
		return string(b), kindString, nil
	default:
		return nil, kindUnknown, fmt.Errorf("unsupported value type %T", v)
	}
}

// inferColumns determines the column set and physical types across
// all rows. A column holding both ints and floats promotes to float.
// Any other type mix is reported and the column falls back to string.
func inferColumns(rows []map[string]any) (map[string]columnKind, []ff.Issue) {
	kinds := make(map[string]columnKind)
	var issues []ff.Issue

	for i, row := range rows {
		for name, value := range row {
			nv, kind, err := normalize(value)
			if err != nil {
				issues = append(issues, ff.Error(ff.IssueTypeValue).
					Diagnostics(fmt.Sprintf("Column %q: %v", name, err)).
					At(name).
					Row(i + 1).
					Build())
				continue
			}
			if nv == nil {
				continue
			}

			prev, seen := kinds[name]
			switch {
			case !seen || prev == kindUnknown:
				kinds[name] = kind
			case prev == kind:
			case (prev == kindInt && kind == kindFloat) || (prev == kindFloat && kind == kindInt):
				kinds[name] = kindFloat
			default:
				issues = append(issues, ff.Error(ff.IssueTypeValue).
					Diagnostics(fmt.Sprintf("Column %q holds mixed types", name)).
					At(name).
					Row(i + 1).
					Build())
				kinds[name] = kindString
			}
		}
	}

	return kinds, issues
}

// buildSchema constructs a parquet schema with one optional leaf per column.
func buildSchema(resourceType string, kinds map[string]columnKind) *parquet.Schema {
	group := parquet.Group{}
	for name, kind := range kinds {
		var node parquet.Node
		switch kind {
		case kindInt:
			node = parquet.Int(64)
		case kindFloat:
			node = parquet.Leaf(parquet.DoubleType)
		case kindBool:
			node = parquet.Leaf(parquet.BooleanType)
		default:
			node = parquet.String()
		}
		group[name] = parquet.Optional(node)
	}
	return parquet.NewSchema(strings.ToLower(resourceType), group)
}

// coerce converts a normalized cell to the column's final kind.
func coerce(v any, kind columnKind) any {
	if v == nil {
		return nil
	}
	switch kind {
	case kindFloat:
		if i, ok := v.(int64); ok {
			return float64(i)
		}
	case kindString:
		switch t := v.(type) {
		case string:
			return t
		default:
			return fmt.Sprintf("%v", t)
		}
	}
	return v
}

// WriteFile writes flat rows for one resource type to a parquet file.
// Returns issues raised while shaping columns; the file is still
// written with the affected columns coerced to strings.
func WriteFile(path, resourceType string, rows []map[string]any) ([]ff.Issue, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	kinds, issues := inferColumns(rows)
	schema := buildSchema(resourceType, kinds)

	// Deterministic column order comes from the schema; rows are
	// shaped to hold every column so the writer sees uniform maps.
	shaped := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out := make(map[string]any, len(kinds))
		for name, kind := range kinds {
			value, ok := row[name]
			if !ok {
				continue
			}
			nv, _, err := normalize(value)
			if err != nil || nv == nil {
				continue
			}
			out[name] = coerce(nv, kind)
		}
		shaped = append(shaped, out)
	}

	f, err := os.Create(path)
	if err != nil {
		return issues, fmt.Errorf("flatfile: create %s: %w", path, err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[map[string]any](f, schema,
		parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(shaped); err != nil {
		return issues, fmt.Errorf("flatfile: write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return issues, fmt.Errorf("flatfile: close %s: %w", path, err)
	}

	return issues, nil
}

// ReadFile reads all rows from a flat parquet file.
// Absent optional cells are dropped from the returned maps.
func ReadFile(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("flatfile: open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("flatfile: stat %s: %w", path, err)
	}

	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("flatfile: parse %s: %w", path, err)
	}

	reader := parquet.NewGenericReader[map[string]any](pf, pf.Schema())
	defer reader.Close()

	var rows []map[string]any
	buf := make([]map[string]any, 64)
	for {
		for i := range buf {
			buf[i] = make(map[string]any)
		}
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			rows = append(rows, dropNil(buf[i]))
		}
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}

	return rows, nil
}

// dropNil removes cells left empty by optional columns.
func dropNil(row map[string]any) map[string]any {
	for k, v := range row {
		if v == nil {
			delete(row, k)
		}
	}
	return row
}

// Columns returns the sorted column names of a flat file.
func Columns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("flatfile: open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("flatfile: stat %s: %w", path, err)
	}

	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("flatfile: parse %s: %w", path, err)
	}

	fields := pf.Schema().Fields()
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ListFiles returns the flat parquet files directly under a folder,
// sorted by name.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("flatfile: read folder %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == Extension {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ResourceTypeOf derives the resource type a flat file holds from its
// base name, e.g. "encounter.parquet" yields "encounter".
func ResourceTypeOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, Extension)
}
