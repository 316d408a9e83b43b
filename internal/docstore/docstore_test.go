package docstore

import (
	"context"
	"errors"
	"testing"
)

func TestFilter_Match(t *testing.T) {
	doc := Document{
		"_id":    "abc",
		"slug":   "color",
		"rank":   float64(3),
		"isTop":  true,
		"tagIds": []any{"t1", "color"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"all", All(), true},
		{"zero value", Filter{}, true},
		{"eq string", Eq("slug", "color"), true},
		{"eq string miss", Eq("slug", "Color"), false},
		{"eq int against float", Eq("rank", 3), true},
		{"eq bool", Eq("isTop", true), true},
		{"eq missing field", Eq("nope", "x"), false},
		{"eq type mismatch", Eq("rank", "3"), false},
		{"ne differs", Ne("slug", "size"), true},
		{"ne equal", Ne("slug", "color"), false},
		{"ne missing field", Ne("nope", "x"), true},
		{"in scalar", In("slug", "size", "color"), true},
		{"in scalar miss", In("slug", "size"), false},
		{"in array field", In("tagIds", "t9", "t1"), true},
		{"elem eq", ElemEq("tagIds", "color"), true},
		{"elem eq miss", ElemEq("tagIds", "t2"), false},
		{"elem eq on scalar", ElemEq("slug", "color"), false},
		{"or", Or(Eq("slug", "size"), ElemEq("tagIds", "t1")), true},
		{"or none", Or(Eq("slug", "size"), ElemEq("tagIds", "t2")), false},
		{"empty or", Or(), false},
		{"and", And(Eq("slug", "color"), Eq("isTop", true)), true},
		{"and partial", And(Eq("slug", "color"), Eq("isTop", false)), false},
		{"empty and", And(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(doc); got != tt.want {
				t.Errorf("%s.Match() = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestFilter_MatchStringSlice(t *testing.T) {
	doc := Document{"tagIds": []string{"a", "b"}}
	if !ElemEq("tagIds", "b").Match(doc) {
		t.Error("expected []string element match")
	}
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{"_id": "1", "isTop": false, "updatedAt": "2024-01-02T00:00:00.000Z"},
		{"_id": "2", "isTop": true, "updatedAt": "2024-01-01T00:00:00.000Z"},
		{"_id": "3", "isTop": false, "updatedAt": "2024-01-03T00:00:00.000Z"},
		{"_id": "4", "isTop": true, "updatedAt": "2024-01-05T00:00:00.000Z"},
		{"_id": "5", "isTop": false},
	}

	SortDocuments(docs, []Sort{Desc("isTop"), Desc("updatedAt")})

	want := []string{"4", "2", "3", "1", "5"}
	for i, id := range want {
		if docs[i].ID() != id {
			t.Fatalf("position %d: got %s, want %s (order %v)", i, docs[i].ID(), id, ids(docs))
		}
	}
}

func TestSortDocuments_MixedKinds(t *testing.T) {
	docs := []Document{
		{"_id": "s", "v": "a"},
		{"_id": "n", "v": float64(1)},
		{"_id": "m"},
		{"_id": "b", "v": true},
	}
	SortDocuments(docs, []Sort{Asc("v")})

	want := []string{"m", "b", "n", "s"}
	for i, id := range want {
		if docs[i].ID() != id {
			t.Fatalf("got order %v, want %v", ids(docs), want)
		}
	}
}

func TestMemory_UpsertFindRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	c := store.Collection("tags")

	created, err := c.Upsert(ctx, Document{"tagId": "t1", "slug": "color"}, Document{"tagId": "t2", "slug": "size"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(created) != 2 || created[0] == "" || created[0] == created[1] {
		t.Fatalf("expected two distinct ids, got %v", created)
	}

	doc, err := c.FindOne(ctx, Eq("slug", "color"))
	if err != nil {
		t.Fatalf("FindOne() error = %v", err)
	}
	if doc == nil || doc.ID() != created[0] {
		t.Fatalf("FindOne() = %v, want id %s", doc, created[0])
	}

	// Mutating the returned copy must not leak into the store.
	doc["slug"] = "changed"
	again, _ := c.FindOne(ctx, Eq("tagId", "t1"))
	if again.String("slug") != "color" {
		t.Errorf("store mutated through returned document: %v", again)
	}

	// Upsert with an existing id replaces the stored document.
	if _, err := c.Upsert(ctx, Document{"_id": created[0], "tagId": "t1", "slug": "hue"}); err != nil {
		t.Fatalf("Upsert(replace) error = %v", err)
	}
	n, _ := c.Count(ctx, All())
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
	replaced, _ := c.FindOne(ctx, Eq("tagId", "t1"))
	if replaced.String("slug") != "hue" {
		t.Errorf("slug = %q, want hue", replaced.String("slug"))
	}

	if err := c.Remove(ctx, created[0]); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := c.Remove(ctx, "missing"); err != nil {
		t.Errorf("Remove(missing) error = %v", err)
	}
	missing, err := c.FindOne(ctx, Eq("tagId", "t1"))
	if err != nil || missing != nil {
		t.Errorf("FindOne after remove = %v, %v; want nil, nil", missing, err)
	}
}

func TestMemory_FindPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	c := NewMemory().Collection("x")
	for _, id := range []string{"c", "a", "b"} {
		if _, err := c.Upsert(ctx, Document{"_id": id}); err != nil {
			t.Fatal(err)
		}
	}
	docs, _ := c.Find(ctx, All())
	if got := ids(docs); got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Errorf("order = %v, want [c a b]", got)
	}
}

func TestMemory_Replace(t *testing.T) {
	ctx := context.Background()
	c := NewMemory().Collection("formulas")
	c.Upsert(ctx,
		Document{"formulaId": "f1", "title": "old", "stale": "yes"},
		Document{"formulaId": "f1", "title": "dupe"},
		Document{"formulaId": "f2", "title": "other"},
	)

	id, err := Replace(ctx, c, Eq("formulaId", "f1"), Document{"_id": "ignored", "formulaId": "f1", "title": "new"})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if id == "" || id == "ignored" {
		t.Errorf("Replace() id = %q, want a fresh id", id)
	}

	docs, _ := c.Find(ctx, Eq("formulaId", "f1"))
	if len(docs) != 1 {
		t.Fatalf("expected 1 f1 document, got %d", len(docs))
	}
	if _, ok := docs[0]["stale"]; ok {
		t.Error("stale field survived replace")
	}
	if n, _ := c.Count(ctx, All()); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

// plainCollection hides the Replacer implementation.
type plainCollection struct{ Collection }

func TestReplace_Fallback(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory().Collection("formulas")
	inner.Upsert(ctx, Document{"formulaId": "f1", "title": "old"})
	c := plainCollection{inner}

	if _, ok := Collection(c).(Replacer); ok {
		t.Fatal("test wrapper should not implement Replacer")
	}
	if _, err := Replace(ctx, c, Eq("formulaId", "f1"), Document{"formulaId": "f1", "title": "new"}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	docs, _ := c.Find(ctx, All())
	if len(docs) != 1 || docs[0].String("title") != "new" {
		t.Errorf("after fallback replace got %v", docs)
	}
}

func TestMemory_PersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	c := store.Collection("tags")
	c.Upsert(ctx, Document{"tagId": "t1"})

	boom := errors.New("disk full")
	store.SetPersist(func(string, []Document) error { return boom })

	_, err := c.Upsert(ctx, Document{"tagId": "t2"})
	var se *StoreError
	if !errors.As(err, &se) || !errors.Is(err, boom) {
		t.Fatalf("Upsert() error = %v, want StoreError wrapping %v", err, boom)
	}
	if n, _ := c.Count(ctx, All()); n != 1 {
		t.Errorf("Count() = %d after failed upsert, want 1", n)
	}

	doc, _ := c.FindOne(ctx, All())
	if err := c.Remove(ctx, doc.ID()); err == nil {
		t.Error("expected Remove() to fail")
	}
	if n, _ := c.Count(ctx, All()); n != 1 {
		t.Errorf("Count() = %d after failed remove, want 1", n)
	}
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewMemory().Collection("tags")
	if _, err := c.Find(ctx, All()); !errors.Is(err, context.Canceled) {
		t.Errorf("Find() error = %v, want context.Canceled", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	type rec struct {
		ID    string   `json:"_id,omitempty"`
		Name  string   `json:"name"`
		Tags  []string `json:"tags"`
		Order int      `json:"order"`
	}

	doc, err := Encode(rec{Name: "n", Tags: []string{"a"}, Order: 2})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, ok := doc[IDField]; ok {
		t.Error("empty id should be omitted")
	}
	if _, ok := doc["order"].(float64); !ok {
		t.Errorf("order encoded as %T, want float64", doc["order"])
	}

	doc[IDField] = "x"
	got, err := DecodeAll[rec]([]Document{doc})
	if err != nil {
		t.Fatalf("DecodeAll() error = %v", err)
	}
	if got[0].ID != "x" || got[0].Tags[0] != "a" || got[0].Order != 2 {
		t.Errorf("decoded %+v", got[0])
	}
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}
