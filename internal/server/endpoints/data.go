package endpoints

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/spellbook/internal/api"
	"github.com/jackzampolin/spellbook/internal/blob"
	"github.com/jackzampolin/spellbook/internal/svcctx"
)

// InitDataEndpoint handles GET /api/init-data.
//
// The payload is the current catalog in seed format, so another instance can
// use this server as its seed source.
type InitDataEndpoint struct{}

func (e *InitDataEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/init-data", e.handler
}

func (e *InitDataEndpoint) RequiresInit() bool { return true }
func (e *InitDataEndpoint) Group() string      { return "data" }

// handler godoc
//
//	@Summary		Get initialization data
//	@Description	Current models, tags, snippets, formulas and settings as a seed document
//	@Tags			data
//	@Produce		json
//	@Success		200	{object}	Envelope
//	@Failure		500	{object}	Envelope
//	@Router			/api/init-data [get]
func (e *InitDataEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	importer := svcctx.ImporterFrom(r.Context())
	if importer == nil {
		writeEnvelopeError(w, http.StatusInternalServerError, "importer not available", nil)
		return
	}
	data, err := importer.Export(r.Context())
	if err != nil {
		writeEnvelopeError(w, http.StatusInternalServerError, "failed to read initialization data", err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Timestamp: timestamp()})
}

func (e *InitDataEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Fetch the initialization data (seed format)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp Envelope
			if err := client.Get(cmd.Context(), "/api/init-data", &resp); err != nil {
				return err
			}
			return api.Output(resp.Data)
		},
	}
}

// SaveDataRequest is the request body for POST /api/save-data.
type SaveDataRequest struct {
	Filename string          `json:"filename"`
	Data     json.RawMessage `json:"data" swaggertype:"object"`
}

// SaveDataEndpoint handles POST /api/save-data.
type SaveDataEndpoint struct{}

func (e *SaveDataEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/save-data", e.handler
}

func (e *SaveDataEndpoint) RequiresInit() bool { return true }
func (e *SaveDataEndpoint) Group() string      { return "data" }

// handler godoc
//
//	@Summary		Save a JSON blob
//	@Description	Write data to <filename>.json in the data directory
//	@Tags			data
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveDataRequest	true	"Blob name and data"
//	@Success		200		{object}	Envelope
//	@Failure		400		{object}	Envelope
//	@Failure		500		{object}	Envelope
//	@Router			/api/save-data [post]
func (e *SaveDataEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SaveDataRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Filename == "" || len(req.Data) == 0 || bytes.Equal(req.Data, []byte("null")) {
		writeEnvelopeError(w, http.StatusBadRequest, "missing required parameters: filename and data", nil)
		return
	}

	blobs := svcctx.BlobsFrom(r.Context())
	if blobs == nil {
		writeEnvelopeError(w, http.StatusInternalServerError, "blob store not available", nil)
		return
	}
	if err := blobs.Save(req.Filename, req.Data); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, blob.ErrInvalidName) {
			status = http.StatusBadRequest
		}
		writeEnvelopeError(w, status, "failed to save data", err)
		return
	}

	writeJSON(w, http.StatusOK, Envelope{
		Success:   true,
		Message:   fmt.Sprintf("data saved to %s.json", req.Filename),
		Timestamp: timestamp(),
	})
}

func (e *SaveDataEndpoint) Command(getServerURL func() string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a JSON file as a named blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			if !json.Valid(raw) {
				return fmt.Errorf("%s is not valid JSON", file)
			}
			client := api.NewClient(getServerURL())
			var resp Envelope
			req := SaveDataRequest{Filename: args[0], Data: raw}
			if err := client.Post(cmd.Context(), "/api/save-data", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file to upload")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// LoadDataEndpoint handles GET /api/load-data/{filename}.
type LoadDataEndpoint struct{}

func (e *LoadDataEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/load-data/{filename}", e.handler
}

func (e *LoadDataEndpoint) RequiresInit() bool { return true }
func (e *LoadDataEndpoint) Group() string      { return "data" }

// handler godoc
//
//	@Summary	Load a JSON blob
//	@Tags		data
//	@Produce	json
//	@Param		filename	path		string	true	"Blob name without .json"
//	@Success	200			{object}	Envelope
//	@Failure	400			{object}	Envelope
//	@Failure	404			{object}	Envelope
//	@Failure	500			{object}	Envelope
//	@Router		/api/load-data/{filename} [get]
func (e *LoadDataEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	blobs := svcctx.BlobsFrom(r.Context())
	if blobs == nil {
		writeEnvelopeError(w, http.StatusInternalServerError, "blob store not available", nil)
		return
	}

	data, err := blobs.Load(name)
	switch {
	case errors.Is(err, blob.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Envelope{Success: false, Error: "file not found", Filename: name})
		return
	case errors.Is(err, blob.ErrInvalidName):
		writeEnvelopeError(w, http.StatusBadRequest, "invalid filename", err)
		return
	case err != nil:
		writeEnvelopeError(w, http.StatusInternalServerError, "failed to read data", err)
		return
	}

	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Filename: name, Timestamp: timestamp()})
}

func (e *LoadDataEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "load <name>",
		Short: "Load a named JSON blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp Envelope
			if err := client.Get(cmd.Context(), "/api/load-data/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp.Data)
		},
	}
}
