package defra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy_500", http.StatusInternalServerError, true},
		{"unhealthy_503", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health-check" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			err := NewClient(server.URL).HealthCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnhealthy) {
				t.Errorf("HealthCheck() error = %v, want ErrUnhealthy", err)
			}
		})
	}
}

func TestClient_HealthCheck_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewClient(server.URL).HealthCheck(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestClient_Execute(t *testing.T) {
	var got GQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/graphql" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content-type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"Formula": [{"_docID": "bae-1", "title": "Portrait"}]}}`))
	}))
	defer server.Close()

	vars := map[string]any{"id": "f1"}
	resp, err := NewClient(server.URL).Execute(context.Background(), `query($id: String) { Formula(filter: {formulaId: {_eq: $id}}) { title } }`, vars)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Error() != "" {
		t.Errorf("unexpected GraphQL error: %s", resp.Error())
	}
	if resp.Data == nil {
		t.Error("expected data in response")
	}
	if got.Variables["id"] != "f1" {
		t.Errorf("variables not sent: %+v", got.Variables)
	}
}

func TestClient_Execute_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   bool
		wantGQLEr string
	}{
		{"graphql error", http.StatusOK, `{"errors": [{"message": "field not found"}]}`, false, "field not found"},
		{"server error", http.StatusInternalServerError, `boom`, true, ""},
		{"empty body", http.StatusOK, ``, true, ""},
		{"not json", http.StatusOK, `<html>`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp, err := NewClient(server.URL).Execute(context.Background(), `{ Invalid }`, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && resp.Error() != tt.wantGQLEr {
				t.Errorf("resp.Error() = %q, want %q", resp.Error(), tt.wantGQLEr)
			}
		})
	}
}

func TestClient_Execute_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"data": {}}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewClient(server.URL).Execute(ctx, `{ Formula { title } }`, nil); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestClient_AddSchema(t *testing.T) {
	var receivedSchema string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/schema" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "text/plain" {
			t.Errorf("unexpected content-type: %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		receivedSchema = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	schema := `type Tag { tagId: String }`
	if err := NewClient(server.URL).AddSchema(context.Background(), schema); err != nil {
		t.Fatalf("AddSchema() error = %v", err)
	}
	if receivedSchema != schema {
		t.Errorf("schema mismatch: got %q, want %q", receivedSchema, schema)
	}
}

func TestClient_AddSchema_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid schema syntax"))
	}))
	defer server.Close()

	err := NewClient(server.URL).AddSchema(context.Background(), `invalid {`)
	if err == nil || !strings.Contains(err.Error(), "invalid schema syntax") {
		t.Errorf("AddSchema() error = %v, want body in message", err)
	}
}

// mutationServer answers every request with body and records the queries.
func mutationServer(t *testing.T, body string) (*httptest.Server, *[]string) {
	t.Helper()
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		queries = append(queries, req.Query)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &queries
}

func TestClient_Create(t *testing.T) {
	server, queries := mutationServer(t, `{"data": {"create_Snippet": [{"_docID": "bae-abc123"}]}}`)

	docID, err := NewClient(server.URL).Create(context.Background(), "Snippet", map[string]any{
		"snippetId": "s1",
		"tagIds":    []string{"t1", "t2"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if docID != "bae-abc123" {
		t.Errorf("unexpected docID: %s", docID)
	}
	want := `mutation { create_Snippet(input: {snippetId: "s1", tagIds: ["t1", "t2"]}) { _docID } }`
	if (*queries)[0] != want {
		t.Errorf("query = %s\nwant    %s", (*queries)[0], want)
	}
}

func TestClient_Create_GraphQLError(t *testing.T) {
	server, _ := mutationServer(t, `{"errors": [{"message": "collection not found"}]}`)

	_, err := NewClient(server.URL).Create(context.Background(), "Snippet", map[string]any{"snippetId": "s1"})
	if !errors.Is(err, ErrGraphQL) || !strings.Contains(err.Error(), "collection not found") {
		t.Errorf("Create() error = %v", err)
	}
}

func TestClient_Create_NoDocID(t *testing.T) {
	server, _ := mutationServer(t, `{"data": {"create_Snippet": []}}`)

	if _, err := NewClient(server.URL).Create(context.Background(), "Snippet", map[string]any{"snippetId": "s1"}); err == nil {
		t.Error("Create() without a _docID in the response should fail")
	}
}

func TestGQLResponse_Err(t *testing.T) {
	if err := (&GQLResponse{}).Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}

	resp := &GQLResponse{Errors: []GQLError{{Message: "a"}, {Message: "b"}}}
	err := resp.Err()
	if !errors.Is(err, ErrGraphQL) {
		t.Fatalf("Err() = %v, want ErrGraphQL", err)
	}
	if !strings.HasSuffix(err.Error(), ": a; b") {
		t.Errorf("Err() = %q, want both messages", err)
	}
}

func TestClient_UpdateDelete(t *testing.T) {
	server, queries := mutationServer(t, `{"data": {}}`)
	client := NewClient(server.URL)

	if err := client.Update(context.Background(), "Tag", "bae-1", map[string]any{"slug": "style", "parentId": nil}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := client.Delete(context.Background(), "Tag", "bae-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	want := []string{
		`mutation { update_Tag(docID: "bae-1", input: {parentId: null, slug: "style"}) { _docID } }`,
		`mutation { delete_Tag(docID: "bae-1") { _docID } }`,
	}
	for i, q := range want {
		if (*queries)[i] != q {
			t.Errorf("query %d = %s\nwant      %s", i, (*queries)[i], q)
		}
	}
}

func TestClient_URLNormalization(t *testing.T) {
	if c := NewClient("http://localhost:9181/"); c.url != "http://localhost:9181" {
		t.Errorf("URL not normalized: %s", c.url)
	}
	if c := NewClient("http://localhost:9181"); c.url != "http://localhost:9181" {
		t.Errorf("URL changed unexpectedly: %s", c.url)
	}
}

func TestMapToGraphQLInput(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
		want  string
	}{
		{"string value", map[string]any{"title": "Test"}, `{title: "Test"}`},
		{"escaped string", map[string]any{"content": "a \"b\"\n"}, `{content: "a \"b\"\n"}`},
		{"int value", map[string]any{"count": 42}, `{count: 42}`},
		{"float value", map[string]any{"sortOrder": 1.5}, `{sortOrder: 1.5}`},
		{"bool value", map[string]any{"isTop": true}, `{isTop: true}`},
		{"null value", map[string]any{"parentId": nil}, `{parentId: null}`},
		{"list value", map[string]any{"modelIds": []any{"m1", "m2"}}, `{modelIds: ["m1", "m2"]}`},
		{"sorted keys", map[string]any{"b": 1, "a": 2, "c": 3}, `{a: 2, b: 1, c: 3}`},
		{"empty map", map[string]any{}, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mapToGraphQLInput(tt.input)
			if err != nil {
				t.Fatalf("mapToGraphQLInput() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("mapToGraphQLInput() = %v, want %v", got, tt.want)
			}
		})
	}
}
