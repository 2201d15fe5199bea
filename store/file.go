// Package store provides durable session.Store implementations: a JSON file
// store for single-user tools and a SQLite-backed store for hosts that
// already carry a database.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pushercoin/go-session"
)

// FileStore persists the session snapshot as a JSON file. Writes go through
// a temp file and rename so a crash never leaves a half-written snapshot.
type FileStore struct {
	path string
}

var _ session.Store = (*FileStore)(nil)

// NewFileStore creates a store writing to path. The parent directory must
// exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored snapshot. A missing file means no snapshot and is
// not an error.
func (s *FileStore) Load(ctx context.Context) (*session.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read session snapshot")
	}

	var snapshot session.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode session snapshot")
	}

	return &snapshot, nil
}

// Save writes the snapshot atomically with owner-only permissions.
func (s *FileStore) Save(ctx context.Context, snapshot *session.Snapshot) error {
	if snapshot == nil {
		return s.Clear(ctx)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session snapshot")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to create snapshot temp file")
	}

	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to write session snapshot")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to write session snapshot")
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to set snapshot permissions")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to store session snapshot")
	}

	return nil
}

// Clear removes the snapshot file. Removing an absent file is a no-op.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to clear session snapshot")
	}
	return nil
}
