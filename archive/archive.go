// Package archive bundles an output folder into a single compressed
// file after validation passes.
package archive

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format names a supported archive format.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTar   Format = "tar"
	FormatTarGz Format = "tar.gz"
	FormatTarZs Format = "tar.zst"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zip":
		return FormatZip, nil
	case "tar":
		return FormatTar, nil
	case "tar.gz", "tgz", "gzip", "gz":
		return FormatTarGz, nil
	case "tar.zst", "zst", "zstd":
		return FormatTarZs, nil
	default:
		return "", fmt.Errorf("archive: unsupported format %q", s)
	}
}

// Extension returns the file extension for the format, dot included.
func (f Format) Extension() string {
	return "." + string(f)
}

// Compress packs the files directly under dir into an archive next to
// it, named after the folder. Returns the archive path.
func Compress(dir string, format Format) (string, error) {
	dir = filepath.Clean(dir)
	out := dir + format.Extension()

	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", out, err)
	}
	defer f.Close()

	switch format {
	case FormatZip:
		err = writeZip(f, dir)
	case FormatTar:
		err = writeTar(f, dir)
	case FormatTarGz:
		gw := gzip.NewWriter(f)
		if err = writeTar(gw, dir); err == nil {
			err = gw.Close()
		}
	case FormatTarZs:
		var zw *zstd.Encoder
		zw, err = zstd.NewWriter(f)
		if err == nil {
			if err = writeTar(zw, dir); err == nil {
				err = zw.Close()
			}
		}
	default:
		err = fmt.Errorf("archive: unsupported format %q", format)
	}

	if err != nil {
		os.Remove(out)
		return "", err
	}
	return out, nil
}

// entries lists the regular files directly under dir.
func entries(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", dir, err)
	}
	var names []string
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		names = append(names, item.Name())
	}
	return names, nil
}

func writeZip(w io.Writer, dir string) error {
	names, err := entries(dir)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	base := filepath.Base(dir)

	for _, name := range names {
		src, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("archive: open %s: %w", name, err)
		}
		dst, err := zw.Create(base + "/" + name)
		if err != nil {
			src.Close()
			return fmt.Errorf("archive: add %s: %w", name, err)
		}
		if _, err := io.Copy(dst, src); err != nil {
			src.Close()
			return fmt.Errorf("archive: write %s: %w", name, err)
		}
		src.Close()
	}

	return zw.Close()
}

func writeTar(w io.Writer, dir string) error {
	names, err := entries(dir)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(w)
	base := filepath.Base(dir)

	for _, name := range names {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("archive: stat %s: %w", name, err)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("archive: header %s: %w", name, err)
		}
		hdr.Name = base + "/" + name

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("archive: add %s: %w", name, err)
		}

		src, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("archive: open %s: %w", name, err)
		}
		if _, err := io.Copy(tw, src); err != nil {
			src.Close()
			return fmt.Errorf("archive: write %s: %w", name, err)
		}
		src.Close()
	}

	return tw.Close()
}
