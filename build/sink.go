package build

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/meigma/zipgrid/dataset"
)

// Sink receives generated documents by slash-separated name.
// Implementations must be safe for concurrent use.
type Sink interface {
	WriteFile(ctx context.Context, name string, data []byte) error
}

// DirSink writes documents under a directory, creating subdirectories as
// needed. Each file is written to a temporary name and renamed into place.
type DirSink struct {
	Dir string
}

// WriteFile writes data to Dir/name.
func (s DirSink) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !fs.ValidPath(name) || name == "." {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	path := filepath.Join(s.Dir, filepath.FromSlash(name))
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".build-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// MemSink collects documents in memory. It also implements
// dataset.Fetcher, so a built dataset can be served directly.
type MemSink struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

var (
	_ Sink            = (*MemSink)(nil)
	_ dataset.Fetcher = (*MemSink)(nil)
)

// NewMemSink returns an empty MemSink.
func NewMemSink() *MemSink {
	return &MemSink{docs: make(map[string][]byte)}
}

// WriteFile stores a copy of data under name.
func (s *MemSink) WriteFile(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = slices.Clone(data)
	return nil
}

// Fetch returns the document stored under name.
func (s *MemSink) Fetch(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[name]
	if !ok {
		return nil, &fs.PathError{Op: "fetch", Path: name, Err: fs.ErrNotExist}
	}
	return data, nil
}

// Names returns the stored document names in sorted order.
func (s *MemSink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.docs))
}
