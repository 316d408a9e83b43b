// Package session holds the per-user selection state: the current formula, the
// focused tag, the tag to snippet selections and the view mode.
//
// All state changes go through the transition methods on Session. Reads return
// copies, so callers cannot mutate a session behind its lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/formula"
	"github.com/jackzampolin/spellbook/internal/types"
)

var (
	// ErrNoFormula is returned by transitions that need a selected formula.
	ErrNoFormula = errors.New("no formula selected")

	// ErrNoTag is returned by SelectSnippet before any tag is focused.
	ErrNoTag = errors.New("no tag selected")

	// ErrUnknownMode is returned for a mode name that is not compose, manual or edit.
	ErrUnknownMode = errors.New("unknown mode")

	// ErrSuperseded is returned by a SelectTag call overtaken by a later
	// SelectTag or SelectFormula. Its results were discarded.
	ErrSuperseded = errors.New("tag selection superseded")
)

// Mode is the view mode of a session with a selected formula.
type Mode string

const (
	ModeCompose Mode = "compose"
	ModeManual  Mode = "manual"
	ModeEdit    Mode = "edit"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCompose, ModeManual, ModeEdit:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Catalog is the read access a session needs.
type Catalog interface {
	formula.TagResolver
	ResolveTag(ctx context.Context, key string) (*types.Tag, error)
	SnippetsForTag(ctx context.Context, tag types.Tag) ([]types.Snippet, error)
}

// Focus is the tag whose snippets are being browsed. Slug is the marker slug the
// user picked and the key its selection is stored under.
type Focus struct {
	Slug string    `json:"slug"`
	Tag  types.Tag `json:"tag"`
}

// Session is one user's selection state.
type Session struct {
	id      string
	catalog Catalog

	mu         sync.Mutex
	formula    *types.Formula
	mode       Mode
	focus      *Focus
	snippets   []types.Snippet
	selections formula.Selections
	manualText string
	tagSeq     uint64
	touched    time.Time
}

// New creates a session with no formula selected.
func New(id string, catalog Catalog) *Session {
	return &Session{
		id:         id,
		catalog:    catalog,
		selections: make(formula.Selections),
		touched:    time.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// SelectFormula makes f the current formula in compose mode and clears the
// focused tag and every selection. Pending SelectTag calls are superseded.
func (s *Session) SelectFormula(f types.Formula) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.formula = &f
	s.mode = ModeCompose
	s.focus = nil
	s.snippets = nil
	s.selections = make(formula.Selections)
	s.manualText = ""
	s.tagSeq++
	s.touch()
}

// SelectTag focuses the tag named by slug and loads its snippets. The tag is
// resolved by slug, then by tag id. An unknown tag leaves the session unchanged
// and returns an error wrapping docstore.ErrNotFound.
//
// Lookups run without holding the session lock. When another SelectTag or
// SelectFormula starts before this one finishes, this call's results are
// dropped and ErrSuperseded is returned.
func (s *Session) SelectTag(ctx context.Context, slug string) ([]types.Snippet, error) {
	s.mu.Lock()
	if s.formula == nil {
		s.mu.Unlock()
		return nil, ErrNoFormula
	}
	s.tagSeq++
	seq := s.tagSeq
	s.mu.Unlock()

	tag, err := s.catalog.ResolveTag(ctx, slug)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, fmt.Errorf("tag %q: %w", slug, docstore.ErrNotFound)
	}
	snippets, err := s.catalog.SnippetsForTag(ctx, *tag)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.tagSeq {
		return nil, ErrSuperseded
	}
	s.focus = &Focus{Slug: slug, Tag: *tag}
	s.snippets = snippets
	s.touch()
	return cloneSnippets(snippets), nil
}

// SelectSnippet records snippet as the selection for the focused tag, replacing
// any earlier choice. The tag stays focused.
func (s *Session) SelectSnippet(snippet types.Snippet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.formula == nil {
		return ErrNoFormula
	}
	if s.focus == nil {
		return ErrNoTag
	}
	s.selections[s.focus.Slug] = snippet
	s.touch()
	return nil
}

// SwitchMode changes the view mode. Selections are kept. Switching to the current
// mode does nothing. Entering manual mode starts the editable text from the
// composed prompt.
func (s *Session) SwitchMode(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.formula == nil {
		return ErrNoFormula
	}
	if mode == s.mode {
		return nil
	}
	s.mode = mode
	if mode == ModeManual {
		s.manualText = formula.Compose(s.formula.Content, s.selections)
	}
	s.touch()
	return nil
}

// SetManualText replaces the hand-edited prompt. It is only valid in manual mode.
func (s *Session) SetManualText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.formula == nil {
		return ErrNoFormula
	}
	if s.mode != ModeManual {
		return fmt.Errorf("manual text can only be set in %s mode, session is in %s mode", ModeManual, s.mode)
	}
	s.manualText = text
	s.touch()
	return nil
}

// FormulaSaved makes a freshly saved formula current and returns to compose mode.
// Selections survive, since the saved formula is usually an edit of the old one.
func (s *Session) FormulaSaved(f types.Formula) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formula = &f
	s.mode = ModeCompose
	s.manualText = ""
	s.touch()
}

// Current returns a copy of the current formula, or nil.
func (s *Session) Current() *types.Formula {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.formula == nil {
		return nil
	}
	f := *s.formula
	return &f
}

// Mode returns the current mode, or "" when no formula is selected.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Compose returns the current formula with selections substituted, or "" when
// no formula is selected.
func (s *Session) Compose() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.formula == nil {
		return ""
	}
	return formula.Compose(s.formula.Content, s.selections)
}

// PromptText returns the text to copy or submit: the hand-edited text in manual
// mode, otherwise the composed prompt.
func (s *Session) PromptText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptLocked()
}

func (s *Session) promptLocked() string {
	if s.formula == nil {
		return ""
	}
	if s.mode == ModeManual {
		return s.manualText
	}
	return formula.Compose(s.formula.Content, s.selections)
}

// Unresolved lists marker slugs of the current formula without a selection.
func (s *Session) Unresolved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.formula == nil {
		return []string{}
	}
	return formula.Unresolved(s.formula.Content, s.selections)
}

// Segments parses the current formula and resolves its tags.
func (s *Session) Segments(ctx context.Context) ([]formula.Segment, error) {
	f := s.Current()
	if f == nil {
		return nil, ErrNoFormula
	}
	return formula.Parse(ctx, f.Content, s.catalog)
}

// View is a snapshot of a session.
type View struct {
	ID         string                   `json:"id"`
	Mode       Mode                     `json:"mode,omitempty"`
	Formula    *types.Formula           `json:"formula,omitempty"`
	Focus      *Focus                   `json:"focus,omitempty"`
	Snippets   []types.Snippet          `json:"snippets"`
	Selections map[string]types.Snippet `json:"selections"`
	Unresolved []string                 `json:"unresolved"`
	ManualText string                   `json:"manualText,omitempty"`
	Prompt     string                   `json:"prompt"`
}

// View returns a snapshot of the session state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:         s.id,
		Mode:       s.mode,
		Snippets:   cloneSnippets(s.snippets),
		Selections: make(map[string]types.Snippet, len(s.selections)),
		Unresolved: []string{},
		ManualText: s.manualText,
		Prompt:     s.promptLocked(),
	}
	for slug, snippet := range s.selections {
		v.Selections[slug] = snippet
	}
	if s.formula != nil {
		f := *s.formula
		v.Formula = &f
		v.Unresolved = formula.Unresolved(f.Content, s.selections)
	}
	if s.focus != nil {
		focus := *s.focus
		v.Focus = &focus
	}
	return v
}

// LastActive returns the time of the last transition.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

func (s *Session) touch() {
	s.touched = time.Now()
}

func cloneSnippets(in []types.Snippet) []types.Snippet {
	out := make([]types.Snippet, len(in))
	copy(out, in)
	return out
}
