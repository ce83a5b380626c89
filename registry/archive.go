package registry

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// DefaultMaxExtractSize bounds the total bytes Pull writes to disk.
const DefaultMaxExtractSize int64 = 1 << 30

// packDir writes every regular file under dir into a zstd-compressed tar.
// Entries are ordered by path and carry no ownership or timestamps, so the
// same tree always packs to the same digest.
func packDir(dir string) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(zw)

	files := 0
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("%s: not a regular file", path)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     filepath.ToSlash(rel),
			Mode:     0o644,
			Size:     int64(len(data)),
			ModTime:  time.Unix(0, 0),
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
		files++
		return nil
	})
	if walkErr != nil {
		zw.Close()
		return nil, fmt.Errorf("pack %s: %w", dir, walkErr)
	}
	if files == 0 {
		zw.Close()
		return nil, fmt.Errorf("pack %s: no files", dir)
	}
	if err := tw.Close(); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unpack extracts a zstd-compressed tar into dest. Only regular files and
// directories are accepted and every name must stay inside dest.
func unpack(r io.Reader, dest string, maxSize int64) (int, error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	var written int64
	files := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return files, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
		name := strings.TrimSuffix(hdr.Name, "/")
		if !fs.ValidPath(name) || name == "." {
			return files, fmt.Errorf("%w: unsafe path %q", ErrInvalidArtifact, hdr.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, err
			}
			continue
		case tar.TypeReg:
		default:
			return files, fmt.Errorf("%w: unsupported entry %q", ErrInvalidArtifact, hdr.Name)
		}

		if hdr.Size < 0 || written+hdr.Size > maxSize {
			return files, fmt.Errorf("%w: exceeds %d bytes", ErrInvalidArtifact, maxSize)
		}
		if err := writeFile(target, tr, hdr.Size); err != nil {
			return files, err
		}
		written += hdr.Size
		files++
	}
}

func writeFile(path string, r io.Reader, size int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) //nolint:gosec // path validated by caller
	if err != nil {
		return err
	}
	if _, err := io.CopyN(f, r, size); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, path, err)
	}
	return f.Close()
}
