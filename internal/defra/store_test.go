package defra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackzampolin/spellbook/internal/docstore"
)

var formulaSpec = CollectionSpec{
	Name: "formulas",
	Type: "Formula",
	Fields: []Field{
		{Name: "formulaId", Type: "String"},
		{Name: "title", Type: "String"},
		{Name: "modelIds", Type: "String", List: true},
		{Name: "isTop", Type: "Boolean"},
		{Name: "sortOrder", Type: "Float"},
	},
}

// fakeDefra answers reads with a fixed document list and acknowledges writes.
type fakeDefra struct {
	t      *testing.T
	docs   []map[string]any
	errMsg string

	mu      sync.Mutex
	queries []string
	created int
}

func (f *fakeDefra) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req GQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		f.t.Errorf("bad request body: %v", err)
	}
	f.mu.Lock()
	f.queries = append(f.queries, req.Query)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.errMsg != "" {
		json.NewEncoder(w).Encode(GQLResponse{Errors: []GQLError{{Message: f.errMsg}}})
		return
	}

	var data map[string]any
	switch {
	case strings.HasPrefix(req.Query, "mutation { create_Formula"):
		f.mu.Lock()
		f.created++
		id := "bae-new-" + string(rune('0'+f.created))
		f.mu.Unlock()
		data = map[string]any{"create_Formula": []any{map[string]any{"_docID": id}}}
	case strings.HasPrefix(req.Query, "mutation"):
		data = map[string]any{}
	default:
		docs := make([]any, len(f.docs))
		for i, d := range f.docs {
			docs[i] = d
		}
		data = map[string]any{"Formula": docs}
	}
	json.NewEncoder(w).Encode(GQLResponse{Data: data})
}

func (f *fakeDefra) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func newTestStore(t *testing.T, fake *fakeDefra) *Store {
	t.Helper()
	fake.t = t
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return NewStore(NewClient(server.URL), formulaSpec)
}

func TestStore_Find(t *testing.T) {
	fake := &fakeDefra{docs: []map[string]any{
		{"_docID": "bae-1", "formulaId": "f1", "title": "Low", "isTop": true, "sortOrder": 1.0, "modelIds": nil},
		{"_docID": "bae-2", "formulaId": "f2", "title": "Hidden", "isTop": false, "sortOrder": 9.0},
		{"_docID": "bae-3", "formulaId": "f3", "title": "High", "isTop": true, "sortOrder": 5.0},
	}}
	store := newTestStore(t, fake)
	coll := store.Collection("formulas")

	docs, err := coll.Find(context.Background(), docstore.Eq("isTop", true), docstore.Desc("sortOrder"))
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}

	// The server ignores the filter here, so matching and ordering are local.
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID())
	}
	if strings.Join(ids, ",") != "bae-3,bae-1" {
		t.Errorf("ids = %v, want [bae-3 bae-1]", ids)
	}
	if _, ok := docs[1]["modelIds"]; ok {
		t.Error("null field should be dropped")
	}
	if _, ok := docs[0]["_docID"]; ok {
		t.Error("_docID should be renamed to _id")
	}

	want := `query($v0: Boolean) { Formula(filter: {isTop: {_eq: $v0}}, order: {sortOrder: DESC}) { _docID formulaId title modelIds isTop sortOrder } }`
	if got := fake.recorded()[0]; got != want {
		t.Errorf("query = %s\nwant    %s", got, want)
	}

	n, err := coll.Count(context.Background(), docstore.All())
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v; want 3", n, err)
	}

	one, err := coll.FindOne(context.Background(), docstore.Eq("formulaId", "f2"))
	if err != nil || one.String("title") != "Hidden" {
		t.Errorf("FindOne() = %v, %v", one, err)
	}
	none, err := coll.FindOne(context.Background(), docstore.Eq("formulaId", "nope"))
	if err != nil || none != nil {
		t.Errorf("FindOne(missing) = %v, %v; want nil, nil", none, err)
	}
}

func TestStore_Upsert(t *testing.T) {
	fake := &fakeDefra{}
	coll := newTestStore(t, fake).Collection("formulas")

	ids, err := coll.Upsert(context.Background(),
		docstore.Document{"formulaId": "f1", "title": "Portrait", "modelIds": []any{"m1"}, "isTop": true, "extra": "x", "sortOrder": nil},
		docstore.Document{"_id": "bae-7", "formulaId": "f2", "title": "T"},
	)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "bae-new-1" || ids[1] != "bae-7" {
		t.Errorf("ids = %v", ids)
	}

	want := []string{
		`mutation { create_Formula(input: {formulaId: "f1", isTop: true, modelIds: ["m1"], title: "Portrait"}) { _docID } }`,
		`mutation { update_Formula(docID: "bae-7", input: {formulaId: "f2", isTop: null, modelIds: null, sortOrder: null, title: "T"}) { _docID } }`,
	}
	got := fake.recorded()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("query %d = %s\nwant      %s", i, got[i], want[i])
		}
	}

	if _, err := coll.Upsert(context.Background(), docstore.Document{"_id": `bad"id`}); err == nil {
		t.Error("expected error for unsafe id")
	}
}

func TestStore_Remove(t *testing.T) {
	fake := &fakeDefra{docs: []map[string]any{{"_docID": "bae-1", "formulaId": "f1"}}}
	coll := newTestStore(t, fake).Collection("formulas")
	ctx := context.Background()

	if err := coll.Remove(ctx, "bae-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := coll.Remove(ctx, "bae-9"); err != nil {
		t.Fatalf("Remove(missing) error = %v", err)
	}

	var deletes []string
	for _, q := range fake.recorded() {
		if strings.HasPrefix(q, "mutation { delete_") {
			deletes = append(deletes, q)
		}
	}
	if len(deletes) != 1 || deletes[0] != `mutation { delete_Formula(docID: "bae-1") { _docID } }` {
		t.Errorf("deletes = %v", deletes)
	}

	if err := coll.Remove(ctx, "bad id"); err == nil {
		t.Error("expected error for unsafe id")
	}
}

func TestStore_Errors(t *testing.T) {
	t.Run("unknown collection", func(t *testing.T) {
		store := newTestStore(t, &fakeDefra{})
		_, err := store.Collection("widgets").Find(context.Background(), docstore.All())
		var se *docstore.StoreError
		if !errors.As(err, &se) || se.Collection != "widgets" {
			t.Errorf("Find() error = %v, want StoreError for widgets", err)
		}
	})

	t.Run("graphql error", func(t *testing.T) {
		store := newTestStore(t, &fakeDefra{errMsg: "boom"})
		_, err := store.Collection("formulas").Find(context.Background(), docstore.All())
		var se *docstore.StoreError
		if !errors.As(err, &se) || se.Op != "find" || !strings.Contains(err.Error(), "boom") {
			t.Errorf("Find() error = %v", err)
		}
		if _, err := store.Collection("formulas").Upsert(context.Background(), docstore.Document{"formulaId": "f1"}); err == nil {
			t.Error("expected upsert error")
		}
	})

	t.Run("replace falls back to find and remove", func(t *testing.T) {
		fake := &fakeDefra{docs: []map[string]any{{"_docID": "bae-1", "formulaId": "f1"}}}
		coll := newTestStore(t, fake).Collection("formulas")
		id, err := docstore.Replace(context.Background(), coll, docstore.Eq("formulaId", "f1"), docstore.Document{"_id": "bae-1", "formulaId": "f1", "title": "New"})
		if err != nil {
			t.Fatalf("Replace() error = %v", err)
		}
		if id != "bae-new-1" {
			t.Errorf("id = %q, want bae-new-1", id)
		}
	})
}

func TestStore_Ping(t *testing.T) {
	var unhealthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	store := NewStore(NewClient(server.URL), formulaSpec)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	unhealthy.Store(true)
	if err := store.Ping(context.Background()); !errors.Is(err, ErrUnhealthy) {
		t.Errorf("Ping() error = %v, want ErrUnhealthy", err)
	}
}
