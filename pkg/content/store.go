// Package content provides content-addressed access to local binary files.
//
// Icon bytes are identified by a BLAKE3 fingerprint. The engine compares
// fingerprints to decide whether binary content changed; the actual bytes are
// only read or written when an upload or download is performed.
package content

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"
)

// Store abstracts the local filesystem for binary content.
type Store interface {
	// ReadBytes reads the full content at path.
	ReadBytes(path string) ([]byte, error)

	// WriteBytes writes content to path, creating parent directories.
	WriteBytes(path string, data []byte) error

	// Fingerprint returns the stable content fingerprint of data.
	Fingerprint(data []byte) string
}

// FileStore is the Store implementation backed by the local filesystem.
type FileStore struct{}

// NewFileStore returns a filesystem-backed content store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// ReadBytes reads the full content at path.
func (s *FileStore) ReadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteBytes writes content to path, creating parent directories as needed.
func (s *FileStore) WriteBytes(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Fingerprint returns the hex-encoded BLAKE3 digest of data.
func (s *FileStore) Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintFile reads path and returns its fingerprint.
func (s *FileStore) FingerprintFile(path string) (string, error) {
	data, err := s.ReadBytes(path)
	if err != nil {
		return "", err
	}
	return s.Fingerprint(data), nil
}
