// ABOUTME: JSON file Store that writes snapshots atomically via temp file and rename
// ABOUTME: Missing or malformed files load as empty state

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists snapshots as a JSON document on disk.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The parent directory is
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the snapshot. A missing file yields an empty snapshot; a
// malformed one yields an empty snapshot and an error describing why.
func (s *FileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return NewSnapshot(), fmt.Errorf("reading state file: %w", err)
	}

	snap := NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return NewSnapshot(), fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	if snap.ActiveProvider == nil {
		snap.ActiveProvider = make(map[string]string)
	}
	if snap.ActiveModel == nil {
		snap.ActiveModel = make(map[string]map[string]string)
	}
	if snap.Sessions == nil {
		snap.Sessions = make(map[string]map[string]string)
	}
	return snap, nil
}

// Save writes the snapshot to a temp file in the same directory, syncs it and
// renames it over the target.
func (s *FileStore) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
