package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDomainCounters(t *testing.T) {
	r := NewRecorder()
	r.Composition()
	r.Composition()
	r.Handoff("prompt_saved")
	r.Handoff("app_not_installed")
	r.Handoff("prompt_saved")
	r.Import("full")
	r.FormulaSave("declined")

	if got := testutil.ToFloat64(r.compositions); got != 2 {
		t.Errorf("compositions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.handoffs.WithLabelValues("prompt_saved")); got != 2 {
		t.Errorf("handoffs{prompt_saved} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.imports.WithLabelValues("full")); got != 1 {
		t.Errorf("imports{full} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.formulaSaves.WithLabelValues("declined")); got != 1 {
		t.Errorf("formula_saves{declined} = %v, want 1", got)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Composition()
	r.Handoff("x")
	r.Import("none")
	r.FormulaSave("saved")

	h := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestMiddleware(t *testing.T) {
	r := NewRecorder()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/formulas/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("GET /missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.Handle("GET /metrics", r.Handler())
	srv := httptest.NewServer(r.Middleware(mux))
	defer srv.Close()

	for _, path := range []string{"/api/formulas/f1", "/api/formulas/f2", "/missing"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	if got := testutil.ToFloat64(r.requests.WithLabelValues("GET /api/formulas/{id}", "GET", "200")); got != 2 {
		t.Errorf("requests{formulas} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.requests.WithLabelValues("GET /missing", "GET", "404")); got != 1 {
		t.Errorf("requests{missing} = %v, want 1", got)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"spellbook_http_requests_total", "spellbook_http_request_duration_seconds", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("/metrics output missing %s", name)
		}
	}
}
