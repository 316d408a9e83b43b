package docstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a document lookup by storage id finds nothing.
var ErrNotFound = errors.New("document not found")

// StoreError wraps every failure coming out of a backend.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Wrap returns err wrapped in a StoreError, or nil if err is nil.
// Errors that are already StoreErrors pass through unchanged.
func Wrap(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Collection: collection, Err: err}
}

// Collection is a named set of documents.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Find returns every document matching filter, ordered by sorts.
	Find(ctx context.Context, filter Filter, sorts ...Sort) ([]Document, error)

	// FindOne returns the first document matching filter, or nil if none match.
	FindOne(ctx context.Context, filter Filter, sorts ...Sort) (Document, error)

	// Upsert inserts documents without a storage id and replaces those with one.
	// It returns the storage ids in input order.
	Upsert(ctx context.Context, docs ...Document) ([]string, error)

	// Remove deletes the document with the given storage id.
	// Removing an id that does not exist is not an error.
	Remove(ctx context.Context, id string) error

	// Count returns the number of documents matching filter.
	Count(ctx context.Context, filter Filter) (int, error)
}

// Replacer is implemented by collections that can delete and insert in one
// atomic step.
type Replacer interface {
	Replace(ctx context.Context, filter Filter, doc Document) (string, error)
}

// Store opens collections by name.
type Store interface {
	Collection(name string) Collection
	Close() error
}

// Replace deletes every document matching filter and inserts doc.
// When the collection implements Replacer the two steps are atomic. Otherwise
// they run one after the other and a concurrent writer on the same documents
// can observe, or lose, the intermediate state.
func Replace(ctx context.Context, c Collection, filter Filter, doc Document) (string, error) {
	if r, ok := c.(Replacer); ok {
		return r.Replace(ctx, filter, doc)
	}

	existing, err := c.Find(ctx, filter)
	if err != nil {
		return "", err
	}
	for _, old := range existing {
		if err := c.Remove(ctx, old.ID()); err != nil {
			return "", err
		}
	}

	insert := doc.Clone()
	delete(insert, IDField)
	ids, err := c.Upsert(ctx, insert)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// Clear removes every document in the collection and returns how many were removed.
func Clear(ctx context.Context, c Collection) (int, error) {
	docs, err := c.Find(ctx, All())
	if err != nil {
		return 0, err
	}
	for _, doc := range docs {
		if err := c.Remove(ctx, doc.ID()); err != nil {
			return 0, err
		}
	}
	return len(docs), nil
}
