package editor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/library"
	"github.com/jackzampolin/spellbook/internal/session"
	"github.com/jackzampolin/spellbook/internal/testutil"
	"github.com/jackzampolin/spellbook/internal/types"
)

type fixture struct {
	store  *testutil.CountingStore
	lib    *library.Library
	editor *Editor
	sess   *session.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &testutil.CountingStore{Store: testutil.NewStore(t, testutil.SampleCatalog())}
	lib, err := library.New(library.Config{Store: store})
	if err != nil {
		t.Fatalf("library.New() error = %v", err)
	}
	return &fixture{
		store:  store,
		lib:    lib,
		editor: New(lib, nil),
		sess:   session.New("edit", lib),
	}
}

func (f *fixture) selectFormula(t *testing.T, id string) types.Formula {
	t.Helper()
	formula, err := f.lib.FormulaByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FormulaByID(%s) error = %v", id, err)
	}
	f.sess.SelectFormula(*formula)
	f.sess.SwitchMode(session.ModeEdit)
	return *formula
}

func (f *fixture) formulas(t *testing.T, id string) []docstore.Document {
	t.Helper()
	docs, err := f.store.Collection(types.CollectionFormulas).Find(context.Background(), docstore.Eq("formulaId", id))
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	return docs
}

func TestSave_Validation(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
		field string
	}{
		{"empty title", Draft{Title: "  ", Content: "x"}, "title"},
		{"empty content", Draft{Title: "x", Content: "\n\t"}, "content"},
		{"title checked first", Draft{}, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.editor.Save(context.Background(), f.sess, tt.draft, Answer(true))
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("Save() error = %v, want ValidationError on %s", err, tt.field)
			}
			if f.store.Mutations != 0 {
				t.Errorf("Mutations = %d, want 0", f.store.Mutations)
			}
		})
	}
}

func TestSave_CollisionDeclined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.selectFormula(t, "f1")

	asked := 0
	decline := ConfirmFunc(func(_ context.Context, existing types.Formula) (bool, error) {
		asked++
		if existing.FormulaID != "f2" {
			t.Errorf("asked about %s, want f2", existing.FormulaID)
		}
		return false, nil
	})

	_, err := f.editor.Save(ctx, f.sess, Draft{Title: "Dog", Content: "A #{mood} cat"}, decline)
	if !errors.Is(err, ErrOverwriteDeclined) {
		t.Fatalf("Save() error = %v, want ErrOverwriteDeclined", err)
	}
	var ce *CollisionError
	if !errors.As(err, &ce) || ce.Existing.FormulaID != "f2" {
		t.Errorf("Save() error = %v, want CollisionError for f2", err)
	}
	if asked != 1 {
		t.Errorf("confirmer asked %d times", asked)
	}
	if f.store.Mutations != 0 {
		t.Errorf("Mutations = %d, want 0", f.store.Mutations)
	}
	if f.sess.Mode() != session.ModeEdit {
		t.Errorf("Mode() = %s, want edit", f.sess.Mode())
	}

	// A nil confirmer declines as well.
	if _, err := f.editor.Save(ctx, f.sess, Draft{Title: "Dog", Content: "x"}, nil); !errors.Is(err, ErrOverwriteDeclined) {
		t.Errorf("Save(nil confirmer) error = %v", err)
	}
	if f.store.Mutations != 0 {
		t.Errorf("Mutations = %d, want 0", f.store.Mutations)
	}
}

func TestSave_CollisionConfirmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.selectFormula(t, "f1")

	saved, err := f.editor.Save(ctx, f.sess, Draft{Title: " Dog ", Content: "A #{size} wolf", ModelIDs: []string{"m1"}}, Answer(true))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.FormulaID != "f2" || saved.CreatedAt != "2024-01-02T00:00:00.000Z" || saved.Title != "Dog" {
		t.Errorf("saved = %+v", saved)
	}

	f2 := f.formulas(t, "f2")
	if len(f2) != 1 || f2[0].String("content") != "A #{size} wolf" {
		t.Errorf("stored f2 = %v", f2)
	}
	if len(f.formulas(t, "f1")) != 1 {
		t.Error("the formula being edited should be left in place")
	}
	if cur := f.sess.Current(); cur == nil || cur.FormulaID != "f2" {
		t.Errorf("current formula = %+v", cur)
	}
}

func TestSave_EditCurrentPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Pin f1 so isTop carries through the edit.
	formulas := f.store.Collection(types.CollectionFormulas)
	doc, _ := formulas.FindOne(ctx, docstore.Eq("formulaId", "f1"))
	doc["isTop"] = true
	doc["author"] = "old author"
	formulas.Upsert(ctx, doc)
	f.selectFormula(t, "f1")
	f.store.Mutations = 0

	saved, err := f.editor.Save(ctx, f.sess, Draft{Title: "Cat", Content: "A #{color} kitten"}, nil)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.FormulaID != "f1" || saved.CreatedAt != "2024-01-01T00:00:00.000Z" || !saved.IsTop {
		t.Errorf("saved = %+v", saved)
	}
	if saved.UpdatedAt <= saved.CreatedAt {
		t.Errorf("UpdatedAt %q not after CreatedAt %q", saved.UpdatedAt, saved.CreatedAt)
	}

	stored := f.formulas(t, "f1")
	if len(stored) != 1 {
		t.Fatalf("stored %d records for f1, want 1", len(stored))
	}
	if author, _ := stored[0]["author"].(string); author != "" {
		t.Errorf("stale author %q survived the save", author)
	}
	if f.sess.Mode() != session.ModeCompose || f.sess.Compose() != "A  random color  kitten" {
		t.Errorf("session after save: mode %s, prompt %q", f.sess.Mode(), f.sess.Compose())
	}
}

func TestSave_NewFormulaCreatesTags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	saved, err := f.editor.Save(ctx, nil, Draft{Title: "Bird", Content: "A #{mood} #{color} bird"}, nil)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasPrefix(saved.FormulaID, "formula-") || saved.CreatedAt == "" || saved.ModelIDs == nil {
		t.Errorf("saved = %+v", saved)
	}
	if n := testutil.Count(t, f.store, types.CollectionFormulas); n != 3 {
		t.Errorf("formula count = %d, want 3", n)
	}

	mood, err := f.lib.TagBySlug(ctx, "mood")
	if err != nil || mood == nil {
		t.Fatalf("tag mood not created: %v", err)
	}
	if n := testutil.Count(t, f.store, types.CollectionTags); n != 3 {
		t.Errorf("tag count = %d, want 3", n)
	}
}

// faultyStore fails writes to one collection.
type faultyStore struct {
	docstore.Store
	broken string
}

func (s *faultyStore) Collection(name string) docstore.Collection {
	c := s.Store.Collection(name)
	if name == s.broken {
		return faultyCollection{c}
	}
	return c
}

var errWrite = errors.New("write failed")

type faultyCollection struct{ docstore.Collection }

func (faultyCollection) Upsert(context.Context, ...docstore.Document) ([]string, error) {
	return nil, errWrite
}

func (faultyCollection) Replace(context.Context, docstore.Filter, docstore.Document) (string, error) {
	return "", errWrite
}

func newFaultyEditor(t *testing.T, broken string) (*Editor, *library.Library, docstore.Store) {
	t.Helper()
	store := &faultyStore{Store: testutil.NewStore(t, testutil.SampleCatalog()), broken: broken}
	lib, err := library.New(library.Config{Store: store})
	if err != nil {
		t.Fatalf("library.New() error = %v", err)
	}
	return New(lib, nil), lib, store
}

func TestSave_FailedReplaceCreatesNoTags(t *testing.T) {
	ctx := context.Background()
	ed, lib, store := newFaultyEditor(t, types.CollectionFormulas)

	_, err := ed.Save(ctx, nil, Draft{Title: "Bird", Content: "A #{mood} bird"}, nil)
	if !errors.Is(err, errWrite) {
		t.Fatalf("Save() error = %v, want %v", err, errWrite)
	}
	if n := testutil.Count(t, store, types.CollectionTags); n != 2 {
		t.Errorf("tag count = %d, want 2", n)
	}
	if tag, _ := lib.TagBySlug(ctx, "mood"); tag != nil {
		t.Errorf("tag mood created by a failed save: %+v", tag)
	}
}

func TestSave_TagFailureKeepsFormula(t *testing.T) {
	ctx := context.Background()
	ed, lib, store := newFaultyEditor(t, types.CollectionTags)

	saved, err := ed.Save(ctx, nil, Draft{Title: "Bird", Content: "A #{mood} bird"}, nil)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if n := testutil.Count(t, store, types.CollectionFormulas); n != 3 {
		t.Errorf("formula count = %d, want 3", n)
	}
	if got, err := lib.FormulaByID(ctx, saved.FormulaID); err != nil || got.Content != "A #{mood} bird" {
		t.Errorf("FormulaByID() = %+v, %v", got, err)
	}
}

func TestDraftFrom(t *testing.T) {
	d := DraftFrom(types.Formula{Title: "Old", Content: "a #color cat", ModelIDs: []string{"m1"}})
	if d.Content != "a #{color} cat" || d.Title != "Old" || len(d.ModelIDs) != 1 {
		t.Errorf("DraftFrom() = %+v", d)
	}
}
