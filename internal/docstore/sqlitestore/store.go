// Package sqlitestore keeps document collections in a single SQLite table,
// one JSON body per row.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/jackzampolin/spellbook/internal/docstore"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`

// Store is a docstore.Store persisted in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "spellbook.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers and keeps transactions simple.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Collection returns the named collection.
func (s *Store) Collection(name string) docstore.Collection {
	return &collection{db: s.db, name: name}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type collection struct {
	db   *sql.DB
	name string
}

func (c *collection) Name() string { return c.name }

func (c *collection) Find(ctx context.Context, filter docstore.Filter, sorts ...docstore.Sort) ([]docstore.Document, error) {
	docs, err := c.load(ctx, c.db, filter)
	if err != nil {
		return nil, docstore.Wrap("find", c.name, err)
	}
	docstore.SortDocuments(docs, sorts)
	return docs, nil
}

func (c *collection) FindOne(ctx context.Context, filter docstore.Filter, sorts ...docstore.Sort) (docstore.Document, error) {
	docs, err := c.Find(ctx, filter, sorts...)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (c *collection) Count(ctx context.Context, filter docstore.Filter) (int, error) {
	docs, err := c.Find(ctx, filter)
	return len(docs), err
}

func (c *collection) Upsert(ctx context.Context, docs ...docstore.Document) (ids []string, retErr error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, docstore.Wrap("upsert", c.name, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	ids = make([]string, 0, len(docs))
	for _, doc := range docs {
		id, err := c.write(ctx, tx, doc)
		if err != nil {
			return nil, docstore.Wrap("upsert", c.name, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, docstore.Wrap("upsert", c.name, err)
	}
	return ids, nil
}

func (c *collection) Remove(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, c.name, id); err != nil {
		return docstore.Wrap("remove", c.name, err)
	}
	return nil
}

// Replace deletes every match of filter and inserts doc in one transaction.
func (c *collection) Replace(ctx context.Context, filter docstore.Filter, doc docstore.Document) (id string, retErr error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", docstore.Wrap("replace", c.name, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	matches, err := c.load(ctx, tx, filter)
	if err != nil {
		return "", docstore.Wrap("replace", c.name, err)
	}
	for _, old := range matches {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, c.name, old.ID()); err != nil {
			return "", docstore.Wrap("replace", c.name, err)
		}
	}

	insert := doc.Clone()
	delete(insert, docstore.IDField)
	id, err = c.write(ctx, tx, insert)
	if err != nil {
		return "", docstore.Wrap("replace", c.name, err)
	}
	if err := tx.Commit(); err != nil {
		return "", docstore.Wrap("replace", c.name, err)
	}
	return id, nil
}

func (c *collection) write(ctx context.Context, q queryer, doc docstore.Document) (string, error) {
	body := doc.Clone()
	if body == nil {
		body = docstore.Document{}
	}
	id := body.ID()
	if id == "" {
		id = uuid.NewString()
	}
	delete(body, docstore.IDField)

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`, c.name, id, string(data))
	if err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return id, nil
}

func (c *collection) load(ctx context.Context, q queryer, filter docstore.Filter) ([]docstore.Document, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, body FROM documents WHERE collection = ? ORDER BY rowid`, c.name)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []docstore.Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var doc docstore.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		if doc == nil {
			doc = docstore.Document{}
		}
		doc[docstore.IDField] = id
		if filter.Match(doc) {
			docs = append(docs, doc)
		}
	}
	return docs, rows.Err()
}
