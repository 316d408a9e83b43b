package schema

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jackzampolin/spellbook/internal/defra"
	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/types"
)

func TestAll(t *testing.T) {
	schemas, err := All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(schemas) != len(types.BusinessKeys) {
		t.Fatalf("got %d schemas, want one per collection (%d)", len(schemas), len(types.BusinessKeys))
	}

	for i, s := range schemas {
		if i > 0 && schemas[i-1].Order > s.Order {
			t.Errorf("schemas out of order at %s", s.Name)
		}
		if !strings.Contains(s.SDL, "type "+s.Name+" {") {
			t.Errorf("%s SDL doesn't define type %s", s.Name, s.Name)
		}
		key, ok := types.BusinessKeys[s.Collection]
		if !ok {
			t.Errorf("%s maps to unknown collection %q", s.Name, s.Collection)
			continue
		}
		if !strings.Contains(s.SDL, key+": String @index") {
			t.Errorf("%s SDL does not index business key %s", s.Name, key)
		}
	}
}

func TestGet(t *testing.T) {
	t.Run("existing schema", func(t *testing.T) {
		s, err := Get("Tag")
		if err != nil {
			t.Fatalf("Get(Tag) error = %v", err)
		}
		if s.Collection != types.CollectionTags {
			t.Errorf("expected collection tags, got %s", s.Collection)
		}
		if s.SDL == "" {
			t.Error("SDL is empty")
		}
	})

	t.Run("non-existent schema", func(t *testing.T) {
		if _, err := Get("NonExistent"); err == nil {
			t.Error("expected error for non-existent schema")
		}
	})
}

func TestParseFields(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		fields, err := ParseFields(`
# comment
type Thing {
  id: String! @index
  tags: [String!] # trailing
  weight: Float
  count: Int
  enabled: Boolean
}
`)
		if err != nil {
			t.Fatalf("ParseFields() error = %v", err)
		}
		want := []defra.Field{
			{Name: "id", Type: "String"},
			{Name: "tags", Type: "String", List: true},
			{Name: "weight", Type: "Float"},
			{Name: "count", Type: "Int"},
			{Name: "enabled", Type: "Boolean"},
		}
		if len(fields) != len(want) {
			t.Fatalf("got %d fields, want %d", len(fields), len(want))
		}
		for i := range want {
			if fields[i] != want[i] {
				t.Errorf("field %d = %+v, want %+v", i, fields[i], want[i])
			}
		}
	})

	bad := map[string]string{
		"relation":     "type A {\n  b: B\n}",
		"no fields":    "type A {\n}",
		"outside type": "x: String",
		"malformed":    "type A {\n  nonsense\n}",
	}
	for name, sdl := range bad {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseFields(sdl); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSpecs(t *testing.T) {
	specs, err := Specs()
	if err != nil {
		t.Fatalf("Specs() error = %v", err)
	}
	byName := map[string]defra.CollectionSpec{}
	for _, s := range specs {
		byName[s.Name] = s
	}

	formulas, ok := byName[types.CollectionFormulas]
	if !ok || formulas.Type != "Formula" {
		t.Fatalf("formulas spec = %+v", formulas)
	}
	var modelIDs *defra.Field
	for i := range formulas.Fields {
		if formulas.Fields[i].Name == "modelIds" {
			modelIDs = &formulas.Fields[i]
		}
	}
	if modelIDs == nil || !modelIDs.List {
		t.Errorf("modelIds should be a list field, got %+v", modelIDs)
	}
}

func TestInitialize(t *testing.T) {
	t.Run("successful initialization", func(t *testing.T) {
		var (
			mu   sync.Mutex
			sdls []string
		)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v0/schema" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			sdls = append(sdls, string(body))
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		if err := Initialize(context.Background(), defra.NewClient(server.URL), slog.Default()); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		if len(sdls) != len(registry) {
			t.Errorf("applied %d schemas, want %d", len(sdls), len(registry))
		}
		if !strings.Contains(sdls[0], "type Model") {
			t.Errorf("first schema applied = %q, want Model", sdls[0])
		}
	})

	t.Run("handles already exists error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("collection already exists. Name: Formula"))
		}))
		defer server.Close()

		if err := Initialize(context.Background(), defra.NewClient(server.URL), slog.Default()); err != nil {
			t.Errorf("Initialize() should handle already exists, got error = %v", err)
		}
	})

	t.Run("fails on other errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("invalid schema syntax"))
		}))
		defer server.Close()

		if err := Initialize(context.Background(), defra.NewClient(server.URL), slog.Default()); err == nil {
			t.Error("Initialize() should fail on syntax error")
		}
	})
}

func TestOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v0/schema" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"Tag": [{"_docID": "bae-1", "tagId": "t1", "slug": "style"}]}}`))
	}))
	defer server.Close()

	store, err := Open(context.Background(), defra.NewClient(server.URL), slog.Default())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	n, err := store.Collection(types.CollectionTags).Count(context.Background(), docstore.All())
	if err != nil || n != 1 {
		t.Errorf("Count() = %d, %v; want 1", n, err)
	}
}

func TestIsAlreadyExistsError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"already exists", errWithMsg("collection already exists. Name: Tag"), true},
		{"already exists variant", errWithMsg("schema already exists"), true},
		{"other error", errWithMsg("invalid syntax"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAlreadyExistsError(tt.err); got != tt.want {
				t.Errorf("isAlreadyExistsError() = %v, want %v", got, tt.want)
			}
		})
	}
}

// errWithMsg creates a simple error with a message
type errWithMsg string

func (e errWithMsg) Error() string { return string(e) }
