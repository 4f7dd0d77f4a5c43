package download

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Format is an archive type.
type Format int

const (
	Zip Format = iota
	TarGzip
	TarBzip2
	TarXz
	TarZstd
)

var formatExtensions = []struct {
	format Format
	ext    string
}{
	{Zip, ".zip"},
	{TarGzip, ".tar.gz"},
	{TarGzip, ".tgz"},
	{TarBzip2, ".tar.bz2"},
	{TarXz, ".tar.xz"},
	{TarZstd, ".tar.zst"},
}

// FormatOf derives the archive format from a file name or URL.
func FormatOf(name string) (Format, error) {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	for _, fe := range formatExtensions {
		if strings.HasSuffix(name, fe.ext) {
			return fe.format, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Extension returns the canonical file extension of the format.
func (f Format) Extension() string {
	for _, fe := range formatExtensions {
		if fe.format == f {
			return fe.ext
		}
	}
	return ""
}

// ExtractFile unpacks the archive at path into destDir.
func ExtractFile(path string, format Format, destDir string) error {
	if format == Zip {
		return unzip(path, destDir)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader
	switch format {
	case TarGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("create gzip decoder: %w", err)
		}
		defer gz.Close()
		r = gz
	case TarBzip2:
		r = bzip2.NewReader(f)
	case TarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("create xz decoder: %w", err)
		}
		r = xr
	case TarZstd:
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("create zstd decoder: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return ErrUnsupportedFormat
	}
	return untar(r, destDir)
}

func untar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}
		destPath, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}
		mode := os.FileMode(header.Mode).Perm()

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, mode|0o700); err != nil {
				return fmt.Errorf("create directory %s: %w", destPath, err)
			}
		case tar.TypeReg:
			if err := writeFile(destPath, tr, mode); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(header.Linkname, destPath); err != nil {
				return fmt.Errorf("create symlink %s: %w", destPath, err)
			}
		}
	}
}

func unzip(path, destDir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		destPath, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeFile(destPath, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(destPath string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", destPath, err)
	}
	if mode == 0 {
		mode = 0o644
	}
	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", destPath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write file %s: %w", destPath, err)
	}
	return f.Close()
}

// safeJoin rejects entries that would land outside destDir.
func safeJoin(destDir, name string) (string, error) {
	destPath := filepath.Join(destDir, name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	return destPath, nil
}
