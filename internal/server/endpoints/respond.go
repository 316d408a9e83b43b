package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackzampolin/spellbook/internal/blob"
	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/editor"
	"github.com/jackzampolin/spellbook/internal/library"
	"github.com/jackzampolin/spellbook/internal/session"
	"github.com/jackzampolin/spellbook/internal/settings"
)

// maxBodyBytes matches the 10mb JSON limit of the data endpoints.
const maxBodyBytes = 10 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var se *docstore.StoreError
	switch {
	case library.IsValidation(err),
		errors.Is(err, session.ErrNoFormula),
		errors.Is(err, session.ErrNoTag),
		errors.Is(err, session.ErrUnknownMode),
		errors.Is(err, blob.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, docstore.ErrNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, blob.ErrNotFound),
		errors.Is(err, settings.ErrNoDefault):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrOverwriteDeclined),
		errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.As(err, &se):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with the status statusFor picks.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// Envelope is the {success, data, message} wrapper of the data endpoints the
// web page has always used.
type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Filename  string `json:"filename,omitempty"`
	IsDefault bool   `json:"isDefault,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// writeEnvelopeError writes a failed envelope. message carries the cause.
func writeEnvelopeError(w http.ResponseWriter, status int, summary string, err error) {
	env := Envelope{Success: false, Error: summary}
	if err != nil {
		env.Message = err.Error()
	}
	writeJSON(w, status, env)
}
