package defra

import (
	"context"
	"fmt"

	"github.com/jackzampolin/spellbook/internal/docstore"
)

// Field is one scalar or list field of a DefraDB collection type.
type Field struct {
	Name string
	Type string // String, Int, Float or Boolean
	List bool
}

// CollectionSpec maps a docstore collection onto a DefraDB type.
type CollectionSpec struct {
	Name   string // docstore collection, e.g. "formulas"
	Type   string // GraphQL type, e.g. "Formula"
	Fields []Field
}

// Store implements docstore.Store on top of a DefraDB node. Every collection
// must be described by a CollectionSpec whose type has already been added.
type Store struct {
	client *Client
	specs  map[string]CollectionSpec
}

var _ docstore.Store = (*Store)(nil)

// NewStore creates a Store for the given collections.
func NewStore(client *Client, specs ...CollectionSpec) *Store {
	s := &Store{client: client, specs: make(map[string]CollectionSpec, len(specs))}
	for _, spec := range specs {
		s.specs[spec.Name] = spec
	}
	return s
}

// Client returns the underlying GraphQL client.
func (s *Store) Client() *Client {
	return s.client
}

// Collection returns the named collection. Unknown names yield a collection
// whose every operation fails.
func (s *Store) Collection(name string) docstore.Collection {
	spec, ok := s.specs[name]
	if !ok {
		return &collection{client: s.client, spec: CollectionSpec{Name: name}, missing: true}
	}
	return &collection{client: s.client, spec: spec}
}

// Close is a no-op; the container outlives the store.
func (s *Store) Close() error { return nil }

// Ping reports whether the DefraDB node is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

type collection struct {
	client  *Client
	spec    CollectionSpec
	missing bool
}

func (c *collection) Name() string { return c.spec.Name }

func (c *collection) check(op string) error {
	if c.missing {
		return docstore.Wrap(op, c.spec.Name, fmt.Errorf("no defra type registered for collection"))
	}
	return nil
}

func (c *collection) Find(ctx context.Context, filter docstore.Filter, sorts ...docstore.Sort) ([]docstore.Document, error) {
	if err := c.check("find"); err != nil {
		return nil, err
	}

	q := NewQuery(c.spec.Type).Schema(c.spec.Fields...).Where(filter).Fields(c.fieldNames()...)
	if len(sorts) > 0 {
		dir := "ASC"
		if sorts[0].Desc {
			dir = "DESC"
		}
		q.OrderBy(sorts[0].Field, dir)
	}

	resp, err := q.Execute(ctx, c.client)
	if err != nil {
		return nil, docstore.Wrap("find", c.spec.Name, err)
	}
	if err := resp.Err(); err != nil {
		return nil, docstore.Wrap("find", c.spec.Name, err)
	}

	raw, _ := resp.Data[c.spec.Type].([]any)
	docs := make([]docstore.Document, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		doc := toDocument(m)
		if filter.Match(doc) {
			docs = append(docs, doc)
		}
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

// Upsert creates documents without a storage id and overwrites the others.
// DefraDB derives document ids itself, so an id it has never issued fails.
func (c *collection) Upsert(ctx context.Context, docs ...docstore.Document) ([]string, error) {
	if err := c.check("upsert"); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id := doc.ID()
		if id == "" {
			created, err := c.client.Create(ctx, c.spec.Type, c.project(doc, false))
			if err != nil {
				return ids, docstore.Wrap("upsert", c.spec.Name, err)
			}
			ids = append(ids, created)
			continue
		}
		if err := ValidateID(id); err != nil {
			return ids, docstore.Wrap("upsert", c.spec.Name, err)
		}
		if err := c.client.Update(ctx, c.spec.Type, id, c.project(doc, true)); err != nil {
			return ids, docstore.Wrap("upsert", c.spec.Name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *collection) Remove(ctx context.Context, id string) error {
	if err := c.check("remove"); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return docstore.Wrap("remove", c.spec.Name, err)
	}
	existing, err := c.FindOne(ctx, docstore.Eq(docstore.IDField, id))
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return docstore.Wrap("remove", c.spec.Name, c.client.Delete(ctx, c.spec.Type, id))
}

// project keeps the declared fields of doc. With clear set, absent fields are
// sent as null so an update replaces the whole document.
func (c *collection) project(doc docstore.Document, clear bool) map[string]any {
	out := make(map[string]any, len(c.spec.Fields))
	for _, f := range c.spec.Fields {
		v, ok := doc[f.Name]
		if ok && v != nil {
			if f.Type == "Int" {
				if n, isInt := coerce("Int", v); isInt {
					v = n
				}
			}
			out[f.Name] = v
			continue
		}
		if clear {
			out[f.Name] = nil
		}
	}
	return out
}

func (c *collection) fieldNames() []string {
	names := make([]string, 0, len(c.spec.Fields)+1)
	names = append(names, "_docID")
	for _, f := range c.spec.Fields {
		names = append(names, f.Name)
	}
	return names
}

// toDocument renames _docID and drops null fields so documents look the same
// as those from the other backends.
func toDocument(m map[string]any) docstore.Document {
	doc := make(docstore.Document, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if k == "_docID" {
			doc[docstore.IDField] = v
			continue
		}
		doc[k] = v
	}
	return doc
}
