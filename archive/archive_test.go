package archive

import (
	"archive/tar"
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"zip", FormatZip, false},
		{"ZIP", FormatZip, false},
		{"tar", FormatTar, false},
		{"tar.gz", FormatTarGz, false},
		{"tgz", FormatTarGz, false},
		{"gz", FormatTarGz, false},
		{"tar.zst", FormatTarZs, false},
		{"zstd", FormatTarZs, false},
		{"rar", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v; wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func makeOutputFolder(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "fhirflat_output")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	for _, name := range []string{"encounter.parquet", "patient.parquet"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("PAR1-test-content"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	return dir
}

func TestCompress_Zip(t *testing.T) {
	dir := makeOutputFolder(t)

	out, err := Compress(dir, FormatZip)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if filepath.Ext(out) != ".zip" {
		t.Errorf("Archive path = %q; want .zip extension", out)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 2 {
		t.Fatalf("Archive holds %d entries; want 2", len(zr.File))
	}
	// Entries live under the folder name.
	if zr.File[0].Name != "fhirflat_output/encounter.parquet" {
		t.Errorf("Entry = %q", zr.File[0].Name)
	}
}

func TestCompress_Tar(t *testing.T) {
	dir := makeOutputFolder(t)

	out, err := Compress(dir, FormatTar)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	names := readTarNames(t, f)
	if len(names) != 2 {
		t.Fatalf("Archive holds %d entries; want 2: %v", len(names), names)
	}
}

func TestCompress_TarGz(t *testing.T) {
	dir := makeOutputFolder(t)

	out, err := Compress(dir, FormatTarGz)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	defer gr.Close()

	names := readTarNames(t, gr)
	if len(names) != 2 {
		t.Fatalf("Archive holds %d entries; want 2: %v", len(names), names)
	}
}

func TestCompress_TarZst(t *testing.T) {
	dir := makeOutputFolder(t)

	out, err := Compress(dir, FormatTarZs)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd.NewReader failed: %v", err)
	}
	defer zr.Close()

	names := readTarNames(t, zr)
	if len(names) != 2 {
		t.Fatalf("Archive holds %d entries; want 2: %v", len(names), names)
	}
}

func TestCompress_MissingFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nowhere")

	if _, err := Compress(dir, FormatZip); err == nil {
		t.Error("Expected error for missing folder")
	}
	// Failed compressions must not leave a partial archive behind.
	if _, err := os.Stat(dir + ".zip"); !os.IsNotExist(err) {
		t.Error("Partial archive left behind")
	}
}

func readTarNames(t *testing.T, r io.Reader) []string {
	t.Helper()
	tr := tar.NewReader(r)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar.Next failed: %v", err)
		}
		names = append(names, hdr.Name)
	}
	return names
}
