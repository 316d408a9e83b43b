// Package editor validates and saves user-edited formulas.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/spellbook/internal/formula"
	"github.com/jackzampolin/spellbook/internal/library"
	"github.com/jackzampolin/spellbook/internal/session"
	"github.com/jackzampolin/spellbook/internal/types"
)

// ErrOverwriteDeclined is returned when a title collision was not confirmed.
// Nothing is written in that case.
var ErrOverwriteDeclined = errors.New("overwrite declined")

// ValidationError reports an empty required field.
type ValidationError = library.ValidationError

// CollisionError describes another formula that already uses the draft's title.
type CollisionError struct {
	Existing types.Formula
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("formula %s already uses the title %q", e.Existing.FormulaID, e.Existing.Title)
}

// Confirmer decides whether a colliding formula may be overwritten.
type Confirmer interface {
	ConfirmOverwrite(ctx context.Context, existing types.Formula) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, existing types.Formula) (bool, error)

func (f ConfirmFunc) ConfirmOverwrite(ctx context.Context, existing types.Formula) (bool, error) {
	return f(ctx, existing)
}

// Answer returns a Confirmer that always gives ok.
func Answer(ok bool) Confirmer {
	return ConfirmFunc(func(context.Context, types.Formula) (bool, error) { return ok, nil })
}

// Draft is the edit form.
type Draft struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	ModelIDs    []string `json:"modelIds"`
}

// DraftFrom fills the edit form from a stored formula, upgrading legacy
// "#tag" placeholders to markers.
func DraftFrom(f types.Formula) Draft {
	return Draft{
		Title:       f.Title,
		Content:     formula.EditableContent(f.Content),
		Description: f.Description,
		Author:      f.Author,
		ModelIDs:    append([]string(nil), f.ModelIDs...),
	}
}

// Editor saves drafts into the library.
type Editor struct {
	lib    *library.Library
	logger *slog.Logger
}

// New creates an Editor.
func New(lib *library.Library, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{lib: lib, logger: logger}
}

// Save validates d and stores it as a formula.
//
// The target business id is, in order: the id of another formula with the same
// title once confirm agrees to overwrite it, the session's current formula, or a
// new id. Every record with the target id is replaced and its createdAt kept.
// Tags named by markers in the content are created when missing, after the
// formula itself is stored.
//
// On success the saved formula becomes the session's current formula in compose
// mode. sess may be nil to create a formula outside a session.
func (e *Editor) Save(ctx context.Context, sess *session.Session, d Draft, confirm Confirmer) (*types.Formula, error) {
	title := strings.TrimSpace(d.Title)
	content := strings.TrimSpace(d.Content)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if content == "" {
		return nil, &ValidationError{Field: "content", Message: "must not be empty"}
	}

	var current *types.Formula
	if sess != nil {
		current = sess.Current()
	}
	currentID := ""
	if current != nil {
		currentID = current.FormulaID
	}

	existing, err := e.lib.FormulaByTitleExcluding(ctx, title, currentID)
	if err != nil {
		return nil, err
	}

	f := types.Formula{
		Title:       title,
		Content:     content,
		Description: strings.TrimSpace(d.Description),
		Author:      strings.TrimSpace(d.Author),
		ModelIDs:    append([]string{}, d.ModelIDs...),
		UpdatedAt:   types.Now(),
	}
	if current != nil {
		f.IsTop = current.IsTop
	}

	switch {
	case existing != nil:
		ok := false
		if confirm != nil {
			if ok, err = confirm.ConfirmOverwrite(ctx, *existing); err != nil {
				return nil, err
			}
		}
		if !ok {
			return nil, fmt.Errorf("%w: %w", ErrOverwriteDeclined, &CollisionError{Existing: *existing})
		}
		f.FormulaID = existing.FormulaID
		f.CreatedAt = existing.CreatedAt
	case current != nil:
		f.FormulaID = current.FormulaID
		f.CreatedAt = current.CreatedAt
	default:
		f.FormulaID = library.NewID("formula")
		f.CreatedAt = f.UpdatedAt
	}

	saved, err := e.lib.ReplaceFormula(ctx, f)
	if err != nil {
		return nil, err
	}
	// Markers without a tag record still parse to their slug, so a failure
	// here does not undo the save.
	if err := e.ensureTags(ctx, content); err != nil {
		e.logger.Warn("failed to create tags for saved formula", "formula_id", saved.FormulaID, "error", err)
	}
	if sess != nil {
		sess.FormulaSaved(*saved)
	}
	return saved, nil
}

func (e *Editor) ensureTags(ctx context.Context, content string) error {
	slugs := formula.Slugs(content)
	if len(slugs) == 0 {
		return nil
	}
	inputs := make([]formula.TagInput, 0, len(slugs))
	for _, slug := range slugs {
		tag, err := e.lib.ResolveTag(ctx, slug)
		if err != nil {
			return err
		}
		if tag == nil {
			inputs = append(inputs, formula.TagInput{DisplayName: slug, Slug: slug})
		}
	}
	if len(inputs) == 0 {
		return nil
	}
	_, err := e.lib.EnsureTags(ctx, inputs)
	return err
}
