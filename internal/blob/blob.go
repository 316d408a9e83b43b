// Package blob stores named JSON documents in a directory, one file per name.
// It backs the save-data and load-data endpoints.
package blob

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var (
	// ErrNotFound is returned by Load when no document has the name.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidName is returned for names that are not file-safe.
	ErrInvalidName = errors.New("invalid blob name")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store is a directory of <name>.json files.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory holding the documents.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for name.
func (s *Store) Path(name string) (string, error) {
	if !validName.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}

// Save writes data as pretty-printed JSON under name, replacing any previous
// document.
func (s *Store) Save(name string, data any) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

// Load returns the raw JSON stored under name.
func (s *Store) Load(name string) (json.RawMessage, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("failed to load %s: file is not valid JSON", name)
	}
	return data, nil
}
