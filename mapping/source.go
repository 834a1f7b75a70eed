package mapping

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fhirflat/fhirflat/cache"
)

// Source fetches mapping tabs as CSV.
type Source interface {
	// Fetch returns the raw CSV bytes of a tab by its identifier.
	Fetch(ctx context.Context, gid string) ([]byte, error)
}

// SheetSource downloads tabs from the Google Sheets CSV export
// endpoint. Fetched tabs are cached so repeated loads of the same
// workbook hit the network once.
type SheetSource struct {
	baseURL string
	sheetID string
	client  *http.Client
	cache   *cache.Cache[string, []byte]
}

// NewSheetSource creates a source for one workbook.
// baseURL defaults to the public Google Sheets endpoint when empty.
func NewSheetSource(baseURL, sheetID string, timeout time.Duration, cacheSize int) *SheetSource {
	if baseURL == "" {
		baseURL = "https://docs.google.com/spreadsheets/d"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cacheSize <= 0 {
		cacheSize = 32
	}
	return &SheetSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		sheetID: sheetID,
		client:  &http.Client{Timeout: timeout},
		cache:   cache.New[string, []byte](cacheSize),
	}
}

// Fetch downloads a tab, consulting the cache first.
func (s *SheetSource) Fetch(ctx context.Context, gid string) ([]byte, error) {
	return s.cache.GetOrFetch(gid, func() ([]byte, error) {
		return s.download(ctx, gid)
	})
}

func (s *SheetSource) download(ctx context.Context, gid string) ([]byte, error) {
	u := fmt.Sprintf("%s/%s/export?format=csv&gid=%s",
		s.baseURL, url.PathEscape(s.sheetID), url.QueryEscape(gid))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("mapping: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mapping: fetch tab %s: %w", gid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapping: fetch tab %s: unexpected status %s", gid, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mapping: read tab %s: %w", gid, err)
	}
	return body, nil
}

// DirSource reads mapping tabs from CSV files in a local folder.
// The tab identifier is the file base name without extension; the
// index lives in index.csv.
type DirSource struct {
	dir string
}

// NewDirSource creates a directory-backed source.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Fetch reads a tab file from the folder.
func (s *DirSource) Fetch(_ context.Context, gid string) ([]byte, error) {
	name := gid
	if name == IndexGID || name == "" {
		name = "index"
	}
	path := filepath.Join(s.dir, name+".csv")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: read %s: %w", path, err)
	}
	return data, nil
}

// Library holds the parsed mapping sheets of one workbook, keyed by
// lowercased resource type.
type Library struct {
	sheets map[string]*Sheet
	index  *Index
}

// Load fetches the index tab and every resource tab it lists.
func Load(ctx context.Context, src Source) (*Library, error) {
	raw, err := src.Fetch(ctx, IndexGID)
	if err != nil {
		return nil, err
	}

	index, err := ParseIndex(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	lib := &Library{
		sheets: make(map[string]*Sheet, len(index.Tabs)),
		index:  index,
	}

	for _, tab := range index.Tabs {
		raw, err := src.Fetch(ctx, tab.GID)
		if err != nil {
			return nil, err
		}
		sheet, err := ParseSheet(tab.Resource, tab.Mode, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		lib.sheets[strings.ToLower(tab.Resource)] = sheet
	}

	return lib, nil
}

// Sheet returns the mapping sheet for a resource type.
func (l *Library) Sheet(resource string) (*Sheet, bool) {
	s, ok := l.sheets[strings.ToLower(resource)]
	return s, ok
}

// UnmappedColumns returns the data columns no sheet in the workbook maps
// or references, sorted.
func (l *Library) UnmappedColumns(columns []string) []string {
	var unmapped []string
	for _, column := range columns {
		covered := false
		for _, sheet := range l.sheets {
			if sheet.Covers(column) {
				covered = true
				break
			}
		}
		if !covered {
			unmapped = append(unmapped, column)
		}
	}
	sort.Strings(unmapped)
	return unmapped
}

// Resources returns the resource types the library maps, in index order.
func (l *Library) Resources() []string {
	names := make([]string, 0, len(l.index.Tabs))
	for _, tab := range l.index.Tabs {
		names = append(names, tab.Resource)
	}
	return names
}
