package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// StoredObject describes a blob persisted by the store.
type StoredObject struct {
	Location string
	Size     int64
}

// LocalBlobStore keeps submission artifacts on disk under a base directory.
// Locations handed out are paths relative to the base directory so that
// archive rows stay valid if the directory is remounted elsewhere.
type LocalBlobStore struct {
	baseDir string
}

// NewLocalBlobStore ensures the base directory exists and returns a handle.
func NewLocalBlobStore(baseDir string) (*LocalBlobStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalBlobStore{baseDir: baseDir}, nil
}

// Store copies the local file into the store and reports its location and
// size. The namespace becomes a subdirectory of the location, keeping
// identically named files from different callers apart.
func (s *LocalBlobStore) Store(localPath, namespace string) (StoredObject, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return StoredObject{}, fmt.Errorf("open upload source: %w", err)
	}
	defer src.Close() //nolint:errcheck

	location := filepath.Join(namespace, filepath.Base(localPath))
	target := s.resolve(location)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return StoredObject{}, fmt.Errorf("create blob directory: %w", err)
	}
	dst, err := os.Create(target)
	if err != nil {
		return StoredObject{}, fmt.Errorf("create blob file: %w", err)
	}
	defer dst.Close() //nolint:errcheck

	size, err := io.Copy(dst, src)
	if err != nil {
		_ = os.Remove(target)
		return StoredObject{}, fmt.Errorf("write blob file: %w", err)
	}
	return StoredObject{Location: location, Size: size}, nil
}

// Delete removes a batch of stored blobs. Missing blobs are not an error;
// the first real failure is returned after attempting every location.
func (s *LocalBlobStore) Delete(locations []string) error {
	var firstErr error
	for _, location := range locations {
		if location == "" {
			continue
		}
		if err := os.Remove(s.resolve(location)); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("delete blob %s: %w", location, err)
			}
		}
	}
	return firstErr
}

// Open returns a read-only handle for a stored blob.
func (s *LocalBlobStore) Open(location string) (*os.File, error) {
	file, err := os.Open(s.resolve(location))
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return file, nil
}

// Path exposes the absolute path of a location (useful for debugging).
func (s *LocalBlobStore) Path(location string) string {
	return s.resolve(location)
}

func (s *LocalBlobStore) resolve(location string) string {
	if filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(s.baseDir, location)
}
