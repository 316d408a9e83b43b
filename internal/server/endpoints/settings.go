package endpoints

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/spellbook/internal/api"
	"github.com/jackzampolin/spellbook/internal/settings"
	"github.com/jackzampolin/spellbook/internal/svcctx"
	"github.com/jackzampolin/spellbook/internal/types"
)

// SettingResponse contains a single settings value.
type SettingResponse struct {
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Default bool   `json:"default,omitempty"`
}

// UpdateSettingRequest is the request body for updating a setting.
type UpdateSettingRequest struct {
	Value any `json:"value"`
}

// settingKey reads and validates the {key...} path value.
func settingKey(r *http.Request) (string, error) {
	key, err := url.PathUnescape(r.PathValue("key"))
	if err != nil {
		return "", fmt.Errorf("invalid key encoding")
	}
	if key == "" {
		return "", fmt.Errorf("key must not be empty")
	}
	return key, nil
}

// ListSettingsEndpoint handles GET /api/settings.
type ListSettingsEndpoint struct{}

func (e *ListSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings", e.handler
}

func (e *ListSettingsEndpoint) RequiresInit() bool { return true }
func (e *ListSettingsEndpoint) Group() string      { return "settings" }

// handler godoc
//
//	@Summary		List all settings
//	@Description	Stored settings merged over the defaults. isDefault is set when nothing is stored yet.
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	Envelope
//	@Failure		500	{object}	Envelope
//	@Router			/api/settings [get]
func (e *ListSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.SettingsFrom(r.Context())
	if store == nil {
		writeEnvelopeError(w, http.StatusInternalServerError, "settings store not available", nil)
		return
	}

	exists, err := store.Exists(r.Context())
	if err != nil {
		writeEnvelopeError(w, http.StatusInternalServerError, "failed to read settings", err)
		return
	}
	values, err := store.Effective(r.Context())
	if err != nil {
		writeEnvelopeError(w, http.StatusInternalServerError, "failed to read settings", err)
		return
	}

	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: values, IsDefault: !exists})
}

func (e *ListSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp Envelope
			if err := client.Get(cmd.Context(), "/api/settings", &resp); err != nil {
				return err
			}
			return api.Output(resp.Data)
		},
	}
}

// SaveSettingsEndpoint handles POST /api/settings.
type SaveSettingsEndpoint struct{}

func (e *SaveSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/settings", e.handler
}

func (e *SaveSettingsEndpoint) RequiresInit() bool { return true }
func (e *SaveSettingsEndpoint) Group() string      { return "settings" }

// handler godoc
//
//	@Summary		Save settings
//	@Description	Merge the posted object into the stored settings. Import bookkeeping keys are ignored.
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		object	true	"Settings"
//	@Success		200		{object}	Envelope
//	@Failure		400		{object}	Envelope
//	@Failure		500		{object}	Envelope
//	@Router			/api/settings [post]
func (e *SaveSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var posted settings.Values
	if err := decodeBody(w, r, &posted); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if posted == nil {
		writeEnvelopeError(w, http.StatusBadRequest, "settings must be a JSON object", nil)
		return
	}
	maps.DeleteFunc(posted, func(k string, _ any) bool { return settings.IsBookkeeping(k) })
	posted["updatedAt"] = types.Now()

	store := svcctx.SettingsFrom(r.Context())
	if store == nil {
		writeEnvelopeError(w, http.StatusInternalServerError, "settings store not available", nil)
		return
	}
	values, err := store.Update(r.Context(), func(v settings.Values) { maps.Copy(v, posted) })
	if err != nil {
		writeEnvelopeError(w, http.StatusInternalServerError, "failed to save settings", err)
		return
	}

	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "settings saved", Data: values})
}

func (e *SaveSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var values string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Merge a JSON object into the settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var body map[string]any
			if err := json.Unmarshal([]byte(values), &body); err != nil {
				return fmt.Errorf("--values must be a JSON object: %w", err)
			}
			client := api.NewClient(getServerURL())
			var resp Envelope
			if err := client.Post(cmd.Context(), "/api/settings", body, &resp); err != nil {
				return err
			}
			return api.Output(resp.Data)
		},
	}
	cmd.Flags().StringVar(&values, "values", "", `JSON object, e.g. '{"theme":"light"}'`)
	_ = cmd.MarkFlagRequired("values")
	return cmd
}

// GetSettingEndpoint handles GET /api/settings/{key...}.
type GetSettingEndpoint struct{}

func (e *GetSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings/{key...}", e.handler
}

func (e *GetSettingEndpoint) RequiresInit() bool { return true }
func (e *GetSettingEndpoint) Group() string      { return "settings" }

// handler godoc
//
//	@Summary		Get a setting
//	@Description	Get a single setting by key, falling back to its default
//	@Tags			settings
//	@Produce		json
//	@Param			key	path		string	true	"Setting key (URL-encoded)"
//	@Success		200	{object}	SettingResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings/{key} [get]
func (e *GetSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, err := settingKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := svcctx.SettingsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "settings store not available")
		return
	}

	stored, err := store.Load(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if v, ok := stored[key]; ok {
		writeJSON(w, http.StatusOK, SettingResponse{Key: key, Value: v})
		return
	}
	if v, ok := settings.DefaultEntries[key]; ok {
		writeJSON(w, http.StatusOK, SettingResponse{Key: key, Value: v, Default: true})
		return
	}
	writeError(w, http.StatusNotFound, "setting not found")
}

func (e *GetSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a setting by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingResponse
			if err := client.Get(cmd.Context(), "/api/settings/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// UpdateSettingEndpoint handles PUT /api/settings/{key...}.
type UpdateSettingEndpoint struct{}

func (e *UpdateSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/settings/{key...}", e.handler
}

func (e *UpdateSettingEndpoint) RequiresInit() bool { return true }
func (e *UpdateSettingEndpoint) Group() string      { return "settings" }

// handler godoc
//
//	@Summary	Update a setting
//	@Tags		settings
//	@Accept		json
//	@Produce	json
//	@Param		key		path		string					true	"Setting key (URL-encoded)"
//	@Param		body	body		UpdateSettingRequest	true	"New value"
//	@Success	200		{object}	SettingResponse
//	@Failure	400		{object}	ErrorResponse
//	@Failure	500		{object}	ErrorResponse
//	@Router		/api/settings/{key} [put]
func (e *UpdateSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, err := settingKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if settings.IsBookkeeping(key) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is maintained by the importer", key))
		return
	}

	var req UpdateSettingRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := svcctx.SettingsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "settings store not available")
		return
	}
	if err := store.Set(r.Context(), key, req.Value); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SettingResponse{Key: key, Value: req.Value})
}

func (e *UpdateSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Update a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Values that are not valid JSON are sent as strings.
			var parsed any
			if err := json.Unmarshal([]byte(value), &parsed); err != nil {
				parsed = value
			}
			client := api.NewClient(getServerURL())
			var resp SettingResponse
			path := "/api/settings/" + url.PathEscape(args[0])
			if err := client.Put(cmd.Context(), path, UpdateSettingRequest{Value: parsed}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "New value (JSON or string)")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

// ResetSettingEndpoint handles POST /api/settings/reset/{key...}.
type ResetSettingEndpoint struct{}

func (e *ResetSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/settings/reset/{key...}", e.handler
}

func (e *ResetSettingEndpoint) RequiresInit() bool { return true }
func (e *ResetSettingEndpoint) Group() string      { return "settings" }

// handler godoc
//
//	@Summary	Reset a setting to its default
//	@Tags		settings
//	@Produce	json
//	@Param		key	path		string	true	"Setting key (URL-encoded)"
//	@Success	200	{object}	SettingResponse
//	@Failure	400	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Failure	500	{object}	ErrorResponse
//	@Router		/api/settings/reset/{key} [post]
func (e *ResetSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, err := settingKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := svcctx.SettingsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "settings store not available")
		return
	}
	value, err := store.Reset(r.Context(), key)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SettingResponse{Key: key, Value: value, Default: true})
}

func (e *ResetSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <key>",
		Short: "Reset a setting to its default value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingResponse
			path := "/api/settings/reset/" + url.PathEscape(args[0])
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
