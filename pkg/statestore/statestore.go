// Package statestore persists opaque state blobs on the local filesystem.
// Writes go through a temp file and rename so a power cut mid-write leaves
// the previous blob intact.
package statestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Save(blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("statestore: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return fmt.Errorf("statestore: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("statestore: rename: %w", err)
	}
	return nil
}

// Load returns (nil, false, nil) when no blob has been saved yet.
func (s *FileStore) Load() ([]byte, bool, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("statestore: read: %w", err)
	}
	return b, true, nil
}
