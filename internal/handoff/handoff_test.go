package handoff

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newClient(t *testing.T, appURL string) *Client {
	t.Helper()
	c := New(Config{
		AppURL:     appURL,
		StoreURL:   "store://catimg",
		PromptPath: filepath.Join(t.TempDir(), "prompt.json"),
		Timeout:    time.Second,
	})
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Reason
		written bool
	}{
		{"installed", http.StatusOK, "<html><title>catimg</title></html>", ReasonPromptSaved, true},
		{"server error", http.StatusBadGateway, "", ReasonNotInstalled, false},
		{"not installed title", http.StatusOK, "<html><title>无法打开</title></html>", ReasonNotInstalled, false},
		{"not installed text", http.StatusOK, "<p>应用未安装, 请前往应用商店安装</p>", ReasonNotInstalled, false},
		{"forbidden image", http.StatusOK, `<img src="/state_forbidden.svg">`, ReasonNotInstalled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var agent string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				agent = r.UserAgent()
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newClient(t, srv.URL)
			res, err := c.Submit(context.Background(), "  A orange cat \n")
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if res.Reason != tt.want {
				t.Errorf("Reason = %q, want %q", res.Reason, tt.want)
			}
			wantURL := "store://catimg"
			if tt.want == ReasonPromptSaved {
				wantURL = srv.URL
			}
			if res.RedirectURL != wantURL {
				t.Errorf("RedirectURL = %q, want %q", res.RedirectURL, wantURL)
			}
			if agent != DefaultUserAgent {
				t.Errorf("User-Agent = %q", agent)
			}

			data, err := os.ReadFile(c.PromptPath())
			if !tt.written {
				if err == nil {
					t.Error("prompt file written for an app that is not installed")
				}
				return
			}
			if err != nil {
				t.Fatalf("prompt file not written: %v", err)
			}
			var p Prompt
			if err := json.Unmarshal(data, &p); err != nil {
				t.Fatal(err)
			}
			if p.Prompt != "A orange cat" || p.Timestamp != 1700000000000 {
				t.Errorf("prompt file = %+v", p)
			}
		})
	}
}

func TestSubmit_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res, err := newClient(t, url).Submit(context.Background(), "x")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Reason != ReasonNotInstalled {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonNotInstalled)
	}
}

func TestSubmit_EndlessProbePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := []byte(strings.Repeat("<p>catimg</p>", 256))
		for r.Context().Err() == nil {
			if _, err := w.Write(chunk); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	res, err := newClient(t, srv.URL).Submit(context.Background(), "x")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Reason != ReasonPromptSaved {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonPromptSaved)
	}
}

func TestSubmit_MarkerPastProbeLimit(t *testing.T) {
	body := strings.Repeat(" ", maxProbeBody) + notInstalledMarkers[0]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	res, err := newClient(t, srv.URL).Submit(context.Background(), "x")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Reason != ReasonPromptSaved {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonPromptSaved)
	}
}

func TestSubmit_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newClient(t, srv.URL)
	c.cfg.Timeout = 50 * time.Millisecond
	res, err := c.Submit(context.Background(), "x")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Reason != ReasonNotInstalled {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonNotInstalled)
	}
}

func TestSubmit_WriteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Config{
		AppURL:     srv.URL,
		PromptPath: filepath.Join(t.TempDir(), "missing", "dir", "prompt.json"),
	})
	if _, err := c.Submit(context.Background(), "x"); err == nil {
		t.Error("Submit() should fail when the prompt file cannot be written")
	}
}

func TestDefaultPromptPath(t *testing.T) {
	t.Setenv(DeployUIDEnv, "alice")
	if got := DefaultPromptPath(); got != "/lzcapp/run/mnt/home/alice/.catimg_prompt.json" {
		t.Errorf("DefaultPromptPath() = %q", got)
	}
	t.Setenv(DeployUIDEnv, "")
	if got := DefaultPromptPath(); got != "/lzcapp/run/mnt/home/default/.catimg_prompt.json" {
		t.Errorf("DefaultPromptPath() = %q", got)
	}
}
