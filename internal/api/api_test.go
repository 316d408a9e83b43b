package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ok":
			if r.Method == http.MethodPost && r.Header.Get("Content-Type") != "application/json" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"status":"ok","method":"` + r.Method + `"}`))
		case "/plain-error":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"formula not found"}`))
		case "/legacy-error":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success":false,"error":"disk full","message":"failed to save data"}`))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL + "/")

	var resp struct {
		Status string `json:"status"`
		Method string `json:"method"`
	}
	if err := c.Post(ctx, "/ok", map[string]string{"a": "b"}, &resp); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if resp.Status != "ok" || resp.Method != http.MethodPost {
		t.Errorf("Post() response = %+v", resp)
	}
	if err := c.Put(ctx, "/ok", nil, &resp); err != nil || resp.Method != http.MethodPut {
		t.Errorf("Put() = %+v, %v", resp, err)
	}
	if err := c.Get(ctx, "/empty", &resp); err != nil {
		t.Errorf("Get(empty) error = %v", err)
	}

	tests := []struct {
		path string
		code int
		msg  string
	}{
		{"/plain-error", http.StatusNotFound, "formula not found"},
		{"/legacy-error", http.StatusInternalServerError, "failed to save data: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := c.Get(ctx, tt.path, nil)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("Get() error = %v, want StatusError", err)
			}
			if se.Code != tt.code || se.Message != tt.msg {
				t.Errorf("StatusError = %+v, want %d %q", se, tt.code, tt.msg)
			}
		})
	}
}

func TestClient_Download(t *testing.T) {
	const body = `{"version": 1, "formulas": []}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	var buf bytes.Buffer
	n, err := c.Download(context.Background(), "/export", &buf)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if buf.String() != body || n != int64(len(body)) {
		t.Errorf("Download() = %d bytes %q, want the body verbatim", n, buf.String())
	}

	buf.Reset()
	_, err = c.Download(context.Background(), "/missing", &buf)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("Download(missing) error = %v, want 404 StatusError", err)
	}
	if buf.Len() != 0 {
		t.Errorf("error body leaked into writer: %q", buf.String())
	}
}

func TestOutputTo(t *testing.T) {
	data := struct {
		FormulaID string `json:"formulaId"`
		IsTop     bool   `json:"isTop"`
	}{"f1", true}

	var buf bytes.Buffer
	if err := OutputTo(&buf, OutputFormatYAML, data); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); !strings.Contains(got, "formulaId: f1") || !strings.Contains(got, "isTop: true") {
		t.Errorf("yaml output = %q", got)
	}

	buf.Reset()
	if err := OutputTo(&buf, OutputFormatJSON, data); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); !strings.Contains(got, `"formulaId": "f1"`) {
		t.Errorf("json output = %q", got)
	}

	if err := OutputTo(&buf, "xml", data); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSetOutputFormat(t *testing.T) {
	defer SetOutputFormat("yaml")
	if err := SetOutputFormat("json"); err != nil || GetOutputFormat() != OutputFormatJSON {
		t.Errorf("SetOutputFormat(json) = %v, format %s", err, GetOutputFormat())
	}
	if err := SetOutputFormat("toml"); err == nil {
		t.Error("expected error for toml")
	}
}

type fakeEndpoint struct {
	method, path, group string
	init                bool
	noCommand           bool
}

func (e *fakeEndpoint) Route() (string, string, http.HandlerFunc) {
	return e.method, e.path, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(e.path))
	}
}

func (e *fakeEndpoint) RequiresInit() bool { return e.init }
func (e *fakeEndpoint) Group() string      { return e.group }

func (e *fakeEndpoint) Command(func() string) *cobra.Command {
	if e.noCommand {
		return nil
	}
	return &cobra.Command{Use: strings.TrimPrefix(e.path, "/")}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.DescribeGroup("formulas", "Formula commands")
	r.Register(&fakeEndpoint{method: "GET", path: "/health"})
	r.Register(&fakeEndpoint{method: "GET", path: "/list", group: "formulas", init: true})
	r.Register(&fakeEndpoint{method: "GET", path: "/get", group: "formulas", init: true})
	r.Register(&fakeEndpoint{method: "GET", path: "/static", noCommand: true})

	blocked := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}
	mux := http.NewServeMux()
	r.RegisterRoutes(mux, blocked)

	for path, want := range map[string]int{"/health": 200, "/list": 503, "/static": 200} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, want)
		}
	}

	root := r.BuildCommands(func() string { return "" })
	names := map[string]*cobra.Command{}
	for _, c := range root.Commands() {
		names[c.Name()] = c
	}
	if _, ok := names["health"]; !ok {
		t.Error("health command missing at top level")
	}
	if _, ok := names["static"]; ok {
		t.Error("endpoint without command should not appear")
	}
	group, ok := names["formulas"]
	if !ok {
		t.Fatal("formulas group missing")
	}
	if group.Short != "Formula commands" || len(group.Commands()) != 2 {
		t.Errorf("formulas group = %q with %d commands", group.Short, len(group.Commands()))
	}
}
