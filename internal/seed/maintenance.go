package seed

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/formula"
	"github.com/jackzampolin/spellbook/internal/settings"
	"github.com/jackzampolin/spellbook/internal/types"
)

// Deduplicate keeps one document per business id in collection: the one with the
// latest updatedAt, where a missing updatedAt is the oldest. Documents without
// the field are left alone. It returns how many documents were removed.
func (im *Importer) Deduplicate(ctx context.Context, collection, field string) (int, error) {
	coll := im.store.Collection(collection)
	docs, err := coll.Find(ctx, docstore.All())
	if err != nil {
		return 0, fmt.Errorf("failed to deduplicate %s: %w", collection, err)
	}

	groups := make(map[string][]docstore.Document)
	var order []string
	for _, doc := range docs {
		id := doc.String(field)
		if id == "" {
			im.logger.Warn("document without business id", "collection", collection, "field", field, "id", doc.ID())
			continue
		}
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], doc)
	}

	removed := 0
	for _, id := range order {
		group := groups[id]
		if len(group) < 2 {
			continue
		}
		slices.SortStableFunc(group, func(a, b docstore.Document) int {
			return types.ParseTime(b.String("updatedAt")).Compare(types.ParseTime(a.String("updatedAt")))
		})
		for _, dup := range group[1:] {
			if err := coll.Remove(ctx, dup.ID()); err != nil {
				return removed, fmt.Errorf("failed to deduplicate %s: %w", collection, err)
			}
			removed++
		}
	}

	if removed > 0 {
		im.logger.Info("duplicates removed", "collection", collection, "removed", removed)
	}
	return removed, nil
}

// DeduplicateAll deduplicates every catalog collection and the settings. A
// failing collection is logged and the rest still run; the failures are joined
// into the returned error.
func (im *Importer) DeduplicateAll(ctx context.Context) (map[string]int, error) {
	removed := make(map[string]int)
	var errs []error
	for _, name := range append(slices.Clone(ImportOrder), types.CollectionSettings) {
		n, err := im.Deduplicate(ctx, name, types.BusinessKeys[name])
		removed[name] = n
		if err != nil {
			im.logger.Error("deduplication failed", "collection", name, "error", err)
			errs = append(errs, err)
		}
	}
	im.notify()
	return removed, errors.Join(errs...)
}

// Reset removes every catalog document and the settings singleton, so the next
// Run performs a full import. It returns how many documents each collection lost.
func (im *Importer) Reset(ctx context.Context) (map[string]int, error) {
	removed := make(map[string]int)
	for _, name := range ImportOrder {
		n, err := docstore.Clear(ctx, im.store.Collection(name))
		removed[name] = n
		if err != nil {
			return removed, fmt.Errorf("failed to clear %s: %w", name, err)
		}
	}
	if err := im.settings.Delete(ctx); err != nil {
		return removed, err
	}
	im.logger.Warn("catalog reset", "removed", removed)
	im.notify()
	return removed, nil
}

// Export returns the stored catalog as a seed. Storage ids and importer
// bookkeeping are left out, so the result can seed another store.
func (im *Importer) Export(ctx context.Context) (*Seed, error) {
	out := &Seed{Settings: map[string]any{}}
	for _, name := range ImportOrder {
		docs, err := im.store.Collection(name).Find(ctx, docstore.All())
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", name, err)
		}
		records := make([]docstore.Document, 0, len(docs))
		for _, doc := range docs {
			delete(doc, docstore.IDField)
			records = append(records, doc)
		}
		switch name {
		case types.CollectionModels:
			out.Models = records
		case types.CollectionTags:
			out.Tags = records
		case types.CollectionSnippets:
			out.Snippets = records
		case types.CollectionFormulas:
			out.Formulas = records
		}
	}

	stored, err := im.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	out.Version = stored.Version()
	for k, v := range stored {
		switch k {
		case settings.KeyInitialized, settings.KeyInitDate, settings.KeyVersion, settings.KeyLastUpdated:
			continue
		}
		out.Settings[k] = v
	}
	return out, nil
}

// DanglingSnippet is a snippet none of whose tag references resolve.
type DanglingSnippet struct {
	SnippetID string   `json:"snippetId"`
	TagIDs    []string `json:"tagIds"`
}

// UnknownMarkers lists the marker slugs of a formula that match no tag.
type UnknownMarkers struct {
	FormulaID string   `json:"formulaId"`
	Slugs     []string `json:"slugs"`
}

// IntegrityReport describes the consistency of the catalog.
type IntegrityReport struct {
	Counts           map[string]int    `json:"counts"`
	DanglingSnippets []DanglingSnippet `json:"danglingSnippets"`
	UnknownMarkers   []UnknownMarkers  `json:"unknownMarkers"`
}

// OK reports whether no problems were found.
func (r *IntegrityReport) OK() bool {
	return len(r.DanglingSnippets) == 0 && len(r.UnknownMarkers) == 0
}

// CheckIntegrity reports snippets that cannot be reached from any tag and
// formula markers that name no tag. A tag reference resolves when it equals a
// tag's id, slug or storage id.
func (im *Importer) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{
		Counts:           make(map[string]int),
		DanglingSnippets: []DanglingSnippet{},
		UnknownMarkers:   []UnknownMarkers{},
	}

	load := func(name string) ([]docstore.Document, error) {
		docs, err := im.store.Collection(name).Find(ctx, docstore.All())
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", name, err)
		}
		report.Counts[name] = len(docs)
		return docs, nil
	}

	if _, err := load(types.CollectionModels); err != nil {
		return nil, err
	}
	tagDocs, err := load(types.CollectionTags)
	if err != nil {
		return nil, err
	}
	snippetDocs, err := load(types.CollectionSnippets)
	if err != nil {
		return nil, err
	}
	formulaDocs, err := load(types.CollectionFormulas)
	if err != nil {
		return nil, err
	}

	refs := make(map[string]bool)
	slugs := make(map[string]bool)
	for _, doc := range tagDocs {
		for _, key := range []string{doc.String(types.FieldTagID), doc.String("slug"), doc.ID()} {
			if key != "" {
				refs[key] = true
			}
		}
		slugs[doc.String("slug")] = true
		slugs[doc.String(types.FieldTagID)] = true
	}

	snippets, err := docstore.DecodeAll[types.Snippet](snippetDocs)
	if err != nil {
		return nil, err
	}
	for _, s := range snippets {
		if !slices.ContainsFunc(s.TagIDs, func(id string) bool { return refs[id] }) {
			report.DanglingSnippets = append(report.DanglingSnippets, DanglingSnippet{SnippetID: s.SnippetID, TagIDs: s.TagIDs})
		}
	}

	formulas, err := docstore.DecodeAll[types.Formula](formulaDocs)
	if err != nil {
		return nil, err
	}
	for _, f := range formulas {
		var unknown []string
		for _, slug := range formula.Slugs(f.Content) {
			if !slugs[slug] {
				unknown = append(unknown, slug)
			}
		}
		if len(unknown) > 0 {
			report.UnknownMarkers = append(report.UnknownMarkers, UnknownMarkers{FormulaID: f.FormulaID, Slugs: unknown})
		}
	}
	return report, nil
}
