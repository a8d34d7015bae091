package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a blocked lock attempt is retried
const lockRetryDelay = 50 * time.Millisecond

// FileStore keeps the ledger as a JSON array of identifiers. Writes go to a
// temporary file that is renamed over the target, and every access holds an
// exclusive lock on path + ".lock" so two processes never interleave.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore creates a store backed by path. The parent directory is
// created on first flush.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the JSON file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", s.lock.Path())
	}
	defer s.lock.Unlock()
	return fn()
}

// Load reads the identifiers. A missing file is an empty ledger.
func (s *FileStore) Load(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.withLock(ctx, func() error {
		data, err := os.ReadFile(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("decode %s: %w", s.path, err)
		}
		return nil
	})
	return ids, err
}

// Flush replaces the file with ids
func (s *FileStore) Flush(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	return s.withLock(ctx, func() error {
		tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmp.Name(), s.path)
	})
}

// Close is a no-op; the lock is only held during Load and Flush
func (s *FileStore) Close() error {
	return nil
}
