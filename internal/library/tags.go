package library

import (
	"context"
	"fmt"

	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/formula"
	"github.com/jackzampolin/spellbook/internal/types"
)

// NewTagSortOrder places tags created on the fly after curated ones.
const NewTagSortOrder = 999

// TagBySlug returns the tag with the exact slug, or nil if there is none.
// Found tags are cached until InvalidateTags or the cache TTL.
func (l *Library) TagBySlug(ctx context.Context, slug string) (*types.Tag, error) {
	if tag, ok := l.tags.Get(slug); ok {
		return &tag, nil
	}

	doc, err := l.collection(types.CollectionTags).FindOne(ctx, docstore.Eq("slug", slug))
	if err != nil {
		return nil, fmt.Errorf("failed to get tag %q: %w", slug, err)
	}
	tag, err := decodeOne[types.Tag](doc)
	if err != nil || tag == nil {
		return nil, err
	}
	l.tags.Add(slug, *tag)
	return tag, nil
}

// ResolveTag finds a tag by slug and falls back to a tag id match, the way
// markers written with a tag id still resolve. It returns nil when neither matches.
func (l *Library) ResolveTag(ctx context.Context, key string) (*types.Tag, error) {
	tag, err := l.TagBySlug(ctx, key)
	if err != nil || tag != nil {
		return tag, err
	}
	return l.TagByID(ctx, key)
}

// TagByID returns the tag with the business id, or nil if there is none.
func (l *Library) TagByID(ctx context.Context, tagID string) (*types.Tag, error) {
	doc, err := l.collection(types.CollectionTags).FindOne(ctx, docstore.Eq(types.FieldTagID, tagID))
	if err != nil {
		return nil, fmt.Errorf("failed to get tag %s: %w", tagID, err)
	}
	return decodeOne[types.Tag](doc)
}

// ListTags returns every tag ordered by sortOrder and display name.
func (l *Library) ListTags(ctx context.Context) ([]types.Tag, error) {
	docs, err := l.collection(types.CollectionTags).Find(ctx, docstore.All(),
		docstore.Asc("sortOrder"), docstore.Asc("displayName"))
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return docstore.DecodeAll[types.Tag](docs)
}

// EnsureTags returns the tag for every input, creating the ones whose slug does
// not exist yet. Duplicate slugs in inputs yield one tag.
func (l *Library) EnsureTags(ctx context.Context, inputs []formula.TagInput) ([]types.Tag, error) {
	var (
		out     []types.Tag
		seen    = make(map[string]bool)
		created int
	)
	for _, in := range inputs {
		if in.Slug == "" || seen[in.Slug] {
			continue
		}
		seen[in.Slug] = true

		existing, err := l.TagBySlug(ctx, in.Slug)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			out = append(out, *existing)
			continue
		}

		tag := types.Tag{
			TagID:       NewID("tag"),
			Slug:        in.Slug,
			DisplayName: in.DisplayName,
			SortOrder:   NewTagSortOrder,
			CreatedAt:   types.Now(),
		}
		if tag.DisplayName == "" {
			tag.DisplayName = in.Slug
		}
		doc, err := docstore.Encode(tag)
		if err != nil {
			return nil, err
		}
		ids, err := l.collection(types.CollectionTags).Upsert(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to create tag %q: %w", in.Slug, err)
		}
		tag.ID = ids[0]
		out = append(out, tag)
		created++
	}

	if created > 0 {
		l.InvalidateTags()
		l.logger.Info("tags created", "count", created)
	}
	return out, nil
}

// InvalidateTags drops every cached tag. Call it after writing the tags collection
// outside of this Library.
func (l *Library) InvalidateTags() {
	l.tags.Purge()
}
