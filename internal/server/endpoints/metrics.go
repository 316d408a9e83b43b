package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/spellbook/internal/svcctx"
)

// MetricsEndpoint serves Prometheus metrics.
type MetricsEndpoint struct{}

func (e *MetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/metrics", e.handler
}

func (e *MetricsEndpoint) RequiresInit() bool { return false }

func (e *MetricsEndpoint) Command(_ func() string) *cobra.Command {
	return nil // scraped, not called from the CLI
}

func (e *MetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	rec := svcctx.MetricsFrom(r.Context())
	if rec == nil {
		http.Error(w, "metrics not available", http.StatusServiceUnavailable)
		return
	}
	rec.Handler().ServeHTTP(w, r)
}
