package endpoints

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/spellbook/internal/api"
	"github.com/jackzampolin/spellbook/internal/seed"
	"github.com/jackzampolin/spellbook/internal/svcctx"
)

// DedupeResponse counts the documents removed per collection.
type DedupeResponse struct {
	Removed map[string]int `json:"removed"`
	Errors  string         `json:"errors,omitempty"`
}

// DedupeEndpoint handles POST /api/maintenance/dedupe.
type DedupeEndpoint struct{}

func (e *DedupeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/maintenance/dedupe", e.handler
}

func (e *DedupeEndpoint) RequiresInit() bool { return true }
func (e *DedupeEndpoint) Group() string      { return "maintenance" }

// handler godoc
//
//	@Summary		Remove duplicate records
//	@Description	Keep the most recently updated document per business id in every collection. Failures of single collections are reported next to the counts.
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	DedupeResponse
//	@Router			/api/maintenance/dedupe [post]
func (e *DedupeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	importer := svcctx.ImporterFrom(r.Context())
	if importer == nil {
		writeError(w, http.StatusInternalServerError, "importer not available")
		return
	}
	removed, err := importer.DeduplicateAll(r.Context())
	resp := DedupeResponse{Removed: removed}
	if err != nil {
		resp.Errors = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *DedupeEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Remove duplicate records",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DedupeResponse
			if err := client.Post(cmd.Context(), "/api/maintenance/dedupe", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// IntegrityResponse is an integrity report with its verdict.
type IntegrityResponse struct {
	OK bool `json:"ok"`
	*seed.IntegrityReport
}

// IntegrityEndpoint handles GET /api/maintenance/integrity.
type IntegrityEndpoint struct{}

func (e *IntegrityEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/maintenance/integrity", e.handler
}

func (e *IntegrityEndpoint) RequiresInit() bool { return true }
func (e *IntegrityEndpoint) Group() string      { return "maintenance" }

// handler godoc
//
//	@Summary		Check catalog integrity
//	@Description	Report snippets no tag reaches and formula markers that name no tag
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	IntegrityResponse
//	@Failure		502	{object}	ErrorResponse
//	@Router			/api/maintenance/integrity [get]
func (e *IntegrityEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	importer := svcctx.ImporterFrom(r.Context())
	if importer == nil {
		writeError(w, http.StatusInternalServerError, "importer not available")
		return
	}
	report, err := importer.CheckIntegrity(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IntegrityResponse{OK: report.OK(), IntegrityReport: report})
}

func (e *IntegrityEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "Check catalog integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]any
			if err := client.Get(cmd.Context(), "/api/maintenance/integrity", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ResetResponse reports a reset followed by a fresh import.
type ResetResponse struct {
	Removed map[string]int `json:"removed"`
	Import  *seed.Result   `json:"import"`
}

// ResetEndpoint handles POST /api/maintenance/reset.
type ResetEndpoint struct{}

func (e *ResetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/maintenance/reset", e.handler
}

func (e *ResetEndpoint) RequiresInit() bool { return true }
func (e *ResetEndpoint) Group() string      { return "maintenance" }

// handler godoc
//
//	@Summary		Reset the catalog
//	@Description	Delete every record and the settings, then import the seed data again
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	ResetResponse
//	@Failure		502	{object}	ErrorResponse
//	@Router			/api/maintenance/reset [post]
func (e *ResetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	importer := svcctx.ImporterFrom(r.Context())
	if importer == nil {
		writeError(w, http.StatusInternalServerError, "importer not available")
		return
	}
	removed, err := importer.Reset(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	result, err := importer.Run(r.Context())
	if err != nil {
		writeServiceError(w, fmt.Errorf("reimport after reset: %w", err))
		return
	}
	svcctx.MetricsFrom(r.Context()).Import(string(result.Mode))
	if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
		logger.Warn("catalog reset", "removed", removed, "mode", result.Mode, "source", result.Source)
	}
	writeJSON(w, http.StatusOK, ResetResponse{Removed: removed, Import: result})
}

func (e *ResetEndpoint) Command(getServerURL func() string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all data and import the seed again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset deletes every formula, tag, snippet and model; pass --yes to confirm")
			}
			client := api.NewClient(getServerURL())
			var resp ResetResponse
			if err := client.Post(cmd.Context(), "/api/maintenance/reset", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

// ExportEndpoint handles GET /api/export.
type ExportEndpoint struct{}

func (e *ExportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/export", e.handler
}

func (e *ExportEndpoint) RequiresInit() bool { return true }
func (e *ExportEndpoint) Group() string      { return "maintenance" }

// handler godoc
//
//	@Summary		Export the catalog
//	@Description	The stored catalog as a seed document that can be used as init.json
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	seed.Seed
//	@Failure		502	{object}	ErrorResponse
//	@Router			/api/export [get]
func (e *ExportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	importer := svcctx.ImporterFrom(r.Context())
	if importer == nil {
		writeError(w, http.StatusInternalServerError, "importer not available")
		return
	}
	data, err := importer.Export(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="init.json"`)
	writeJSON(w, http.StatusOK, data)
}

func (e *ExportEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outputFile string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as seed data",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if outputFile == "" {
				var v any
				if err := client.Get(cmd.Context(), "/api/export", &v); err != nil {
					return err
				}
				return api.Output(v)
			}

			f, err := os.Create(outputFile)
			if err != nil {
				return err
			}
			n, err := client.Download(cmd.Context(), "/api/export", f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(outputFile)
				return fmt.Errorf("failed to export to %s: %w", outputFile, err)
			}
			fmt.Printf("Exported %d bytes to %s\n", n, outputFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputFile, "file", "f", "", "Write the seed JSON to a file")
	return cmd
}
