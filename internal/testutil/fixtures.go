package testutil

import (
	"context"
	"testing"

	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/types"
)

// Catalog is a small set of catalog records used across package tests.
type Catalog struct {
	Models   []types.Model
	Tags     []types.Tag
	Snippets []types.Snippet
	Formulas []types.Formula
}

// SampleCatalog returns the catalog used by the end-to-end scenarios:
// formula f1 "A #{color} cat", tag t1/color and snippet s1 "orange".
// Snippet s2 is tagged by slug instead of tag id.
func SampleCatalog() Catalog {
	return Catalog{
		Models: []types.Model{
			{ModelID: "m1", Name: "Flux", Version: "1.0", SortOrder: 1, IsActive: true},
			{ModelID: "m2", Name: "SDXL", Version: "1.0", SortOrder: 2, IsActive: true},
			{ModelID: "m3", Name: "Retired", Version: "0.1", SortOrder: 0, IsActive: false},
		},
		Tags: []types.Tag{
			{TagID: "t1", Slug: "color", DisplayName: "Color", SortOrder: 1},
			{TagID: "t2", Slug: "size", DisplayName: "Size", SortOrder: 2},
		},
		Snippets: []types.Snippet{
			{SnippetID: "s1", ShortName: "orange", Content: "orange", TagIDs: []string{"t1"}, UpdatedAt: "2024-01-01T00:00:00.000Z"},
			{SnippetID: "s2", ShortName: "blue", Content: "blue", TagIDs: []string{"color"}, UpdatedAt: "2024-01-02T00:00:00.000Z"},
			{SnippetID: "s3", ShortName: "huge", Content: "huge", TagIDs: []string{"t2"}, UpdatedAt: "2024-01-01T00:00:00.000Z"},
		},
		Formulas: []types.Formula{
			{FormulaID: "f1", Title: "Cat", Content: "A #{color} cat", ModelIDs: []string{"m1"}, CreatedAt: "2024-01-01T00:00:00.000Z", UpdatedAt: "2024-01-01T00:00:00.000Z"},
			{FormulaID: "f2", Title: "Dog", Content: "A #{size} dog", ModelIDs: []string{"m2"}, CreatedAt: "2024-01-02T00:00:00.000Z", UpdatedAt: "2024-01-02T00:00:00.000Z"},
		},
	}
}

// NewStore returns an in-memory store loaded with catalog.
func NewStore(t testing.TB, catalog Catalog) *docstore.Memory {
	t.Helper()
	store := docstore.NewMemory()
	load(t, store, types.CollectionModels, catalog.Models)
	load(t, store, types.CollectionTags, catalog.Tags)
	load(t, store, types.CollectionSnippets, catalog.Snippets)
	load(t, store, types.CollectionFormulas, catalog.Formulas)
	return store
}

func load[T any](t testing.TB, store *docstore.Memory, collection string, records []T) {
	t.Helper()
	docs := make([]docstore.Document, 0, len(records))
	for _, r := range records {
		doc, err := docstore.Encode(r)
		if err != nil {
			t.Fatalf("encode %s fixture: %v", collection, err)
		}
		docs = append(docs, doc)
	}
	store.Load(collection, docs)
}

// Count returns the number of documents in a collection, failing the test on error.
func Count(t testing.TB, store docstore.Store, collection string) int {
	t.Helper()
	n, err := store.Collection(collection).Count(context.Background(), docstore.All())
	if err != nil {
		t.Fatalf("count %s: %v", collection, err)
	}
	return n
}

// CountingStore wraps a Store and counts mutating calls.
type CountingStore struct {
	docstore.Store
	Mutations int
}

// Collection returns a collection whose writes are counted.
func (s *CountingStore) Collection(name string) docstore.Collection {
	return &countingCollection{Collection: s.Store.Collection(name), store: s}
}

type countingCollection struct {
	docstore.Collection
	store *CountingStore
}

func (c *countingCollection) Upsert(ctx context.Context, docs ...docstore.Document) ([]string, error) {
	c.store.Mutations++
	return c.Collection.Upsert(ctx, docs...)
}

func (c *countingCollection) Remove(ctx context.Context, id string) error {
	c.store.Mutations++
	return c.Collection.Remove(ctx, id)
}

func (c *countingCollection) Replace(ctx context.Context, filter docstore.Filter, doc docstore.Document) (string, error) {
	c.store.Mutations++
	return docstore.Replace(ctx, c.Collection, filter, doc)
}
