package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/formula"
	"github.com/jackzampolin/spellbook/internal/types"
)

// snippetOrder is pinned first, then most recently updated.
var snippetOrder = []docstore.Sort{docstore.Desc("isTop"), docstore.Desc("updatedAt")}

// SnippetsForTag returns every snippet associated with tag. A snippet matches when
// its tagIds contain the tag's business id, its slug, or its storage id; each
// snippet appears once however many of these it carries.
func (l *Library) SnippetsForTag(ctx context.Context, tag types.Tag) ([]types.Snippet, error) {
	var branches []docstore.Filter
	for _, key := range []string{tag.TagID, tag.Slug, tag.ID} {
		if key != "" {
			branches = append(branches, docstore.ElemEq("tagIds", key))
		}
	}
	if len(branches) == 0 {
		return []types.Snippet{}, nil
	}

	docs, err := l.collection(types.CollectionSnippets).Find(ctx, docstore.Or(branches...), snippetOrder...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snippets for tag %s: %w", tag.Slug, err)
	}
	return docstore.DecodeAll[types.Snippet](docs)
}

// SnippetByID returns the snippet with the business id, or docstore.ErrNotFound.
func (l *Library) SnippetByID(ctx context.Context, snippetID string) (*types.Snippet, error) {
	doc, err := l.collection(types.CollectionSnippets).FindOne(ctx, docstore.Eq(types.FieldSnippetID, snippetID))
	if err != nil {
		return nil, fmt.Errorf("failed to get snippet %s: %w", snippetID, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("snippet %s: %w", snippetID, docstore.ErrNotFound)
	}
	return decodeOne[types.Snippet](doc)
}

// SnippetInput is one snippet in an add request.
type SnippetInput struct {
	ShortName string `json:"shortName"`
	Content   string `json:"content"`
}

// AddSnippets creates one snippet per item with non-empty content, tagged with
// every tag named in tagInput. Missing tags are created first.
func (l *Library) AddSnippets(ctx context.Context, tagInput string, items []SnippetInput) ([]types.Snippet, error) {
	inputs := formula.ParseTagInput(tagInput)
	if len(inputs) == 0 {
		return nil, &ValidationError{Field: "tags", Message: "enter at least one tag"}
	}

	var valid []SnippetInput
	for _, item := range items {
		item.Content = strings.TrimSpace(item.Content)
		item.ShortName = strings.TrimSpace(item.ShortName)
		if item.Content == "" {
			continue
		}
		if item.ShortName == "" {
			item.ShortName = item.Content
		}
		valid = append(valid, item)
	}
	if len(valid) == 0 {
		return nil, &ValidationError{Field: "content", Message: "enter at least one snippet"}
	}

	tags, err := l.EnsureTags(ctx, inputs)
	if err != nil {
		return nil, err
	}
	tagIDs := make([]string, 0, len(tags))
	for _, tag := range tags {
		tagIDs = append(tagIDs, tag.TagID)
	}

	now := types.Now()
	snippets := make([]types.Snippet, 0, len(valid))
	docs := make([]docstore.Document, 0, len(valid))
	for _, item := range valid {
		s := types.Snippet{
			SnippetID: NewID("snippet"),
			ShortName: item.ShortName,
			Content:   item.Content,
			TagIDs:    tagIDs,
			CreatedAt: now,
			UpdatedAt: now,
		}
		doc, err := docstore.Encode(s)
		if err != nil {
			return nil, err
		}
		snippets = append(snippets, s)
		docs = append(docs, doc)
	}

	ids, err := l.collection(types.CollectionSnippets).Upsert(ctx, docs...)
	if err != nil {
		return nil, fmt.Errorf("failed to save snippets: %w", err)
	}
	for i := range snippets {
		snippets[i].ID = ids[i]
	}

	l.logger.Info("snippets added", "count", len(snippets), "tags", len(tagIDs))
	return snippets, nil
}
