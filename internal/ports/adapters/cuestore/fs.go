package cuestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/forPelevin/lipsync/internal/types"
)

// FS keeps one JSON document per key in a directory.
type FS struct {
	dir string
}

func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCacheUnreachable, err)
	}
	return &FS{dir: dir}, nil
}

func (s *FS) path(key string) string { return filepath.Join(s.dir, key+".json") }

func (s *FS) Get(_ context.Context, key string) ([]types.MouthCue, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCacheUnreachable, err)
	}
	return decode(b)
}

// Put writes to a temp file and renames it over the entry, so readers see
// either the old or the new document and concurrent writers never interleave.
func (s *FS) Put(_ context.Context, key string, cues []types.MouthCue) error {
	b, err := encode(cues)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path(key), b)
}

func (s *FS) Close() error { return nil }

func writeFileAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrCacheWrite, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", types.ErrCacheWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrCacheWrite, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", types.ErrCacheWrite, err)
	}
	return nil
}
