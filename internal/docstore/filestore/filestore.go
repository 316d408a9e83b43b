// Package filestore persists document collections as JSON files on disk,
// one file per collection, rewritten atomically after every mutation.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jackzampolin/spellbook/internal/docstore"
)

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store is a docstore.Store backed by a directory of JSON files.
type Store struct {
	*docstore.Memory
	dir string
}

// Open loads every collection file found in dir, creating dir if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	mem := docstore.NewMemory()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".json")
		if entry.IsDir() || !ok || !collectionName.MatchString(name) {
			continue
		}
		docs, err := readCollection(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load collection %s: %w", name, err)
		}
		mem.Load(name, docs)
	}

	s := &Store{Memory: mem, dir: dir}
	mem.SetPersist(s.write)
	return s, nil
}

// Dir returns the directory holding the collection files.
func (s *Store) Dir() string {
	return s.dir
}

// Collection returns the named collection. Names must be file-safe.
func (s *Store) Collection(name string) docstore.Collection {
	if !collectionName.MatchString(name) {
		return invalidCollection{name: name}
	}
	return s.Memory.Collection(name)
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *Store) write(collection string, docs []docstore.Document) error {
	if docs == nil {
		docs = []docstore.Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", collection, err)
	}

	tmp, err := os.CreateTemp(s.dir, collection+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", collection, err)
	}
	if err := os.Rename(tmpName, s.path(collection)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", collection, err)
	}
	return nil
}

func readCollection(path string) ([]docstore.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var docs []docstore.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return docs, nil
}

// invalidCollection fails every operation for a name that cannot be a file.
type invalidCollection struct{ name string }

func (c invalidCollection) err(op string) error {
	return docstore.Wrap(op, c.name, fmt.Errorf("invalid collection name %q", c.name))
}

func (c invalidCollection) Name() string { return c.name }

func (c invalidCollection) Find(context.Context, docstore.Filter, ...docstore.Sort) ([]docstore.Document, error) {
	return nil, c.err("find")
}

func (c invalidCollection) FindOne(context.Context, docstore.Filter, ...docstore.Sort) (docstore.Document, error) {
	return nil, c.err("find")
}

func (c invalidCollection) Upsert(context.Context, ...docstore.Document) ([]string, error) {
	return nil, c.err("upsert")
}

func (c invalidCollection) Remove(context.Context, string) error { return c.err("remove") }

func (c invalidCollection) Count(context.Context, docstore.Filter) (int, error) {
	return 0, c.err("count")
}
