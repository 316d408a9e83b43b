package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/spellbook/internal/api"
	"github.com/jackzampolin/spellbook/internal/editor"
	"github.com/jackzampolin/spellbook/internal/library"
	"github.com/jackzampolin/spellbook/internal/session"
	"github.com/jackzampolin/spellbook/internal/svcctx"
	"github.com/jackzampolin/spellbook/internal/types"
)

// sessionFrom looks up the {id} session, writing the error response when it
// cannot.
func sessionFrom(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusInternalServerError, "session manager not available")
		return nil, false
	}
	sess, err := sessions.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return sess, true
}

func sessionPath(id string, parts ...string) string {
	p := "/api/sessions/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// viewCommand builds a command that posts body to a session route and prints
// the resulting view.
func viewCommand(getServerURL func() string, use, short, route string, nargs int, body func(args []string) any) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp session.View
			if err := client.Post(cmd.Context(), sessionPath(args[0], route), body(args), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CreateSessionEndpoint handles POST /api/sessions.
type CreateSessionEndpoint struct{}

func (e *CreateSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions", e.handler
}

func (e *CreateSessionEndpoint) RequiresInit() bool { return true }
func (e *CreateSessionEndpoint) Group() string      { return "sessions" }

// handler godoc
//
//	@Summary	Start a composer session
//	@Tags		sessions
//	@Produce	json
//	@Success	201	{object}	session.View
//	@Router		/api/sessions [post]
func (e *CreateSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusInternalServerError, "session manager not available")
		return
	}
	writeJSON(w, http.StatusCreated, sessions.Create().View())
}

func (e *CreateSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Start a composer session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp session.View
			if err := client.Post(cmd.Context(), "/api/sessions", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetSessionEndpoint handles GET /api/sessions/{id}.
type GetSessionEndpoint struct{}

func (e *GetSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sessions/{id}", e.handler
}

func (e *GetSessionEndpoint) RequiresInit() bool { return true }
func (e *GetSessionEndpoint) Group() string      { return "sessions" }

// handler godoc
//
//	@Summary	Get a session
//	@Tags		sessions
//	@Produce	json
//	@Param		id	path		string	true	"Session id"
//	@Success	200	{object}	session.View
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/sessions/{id} [get]
func (e *GetSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (e *GetSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp session.View
			if err := client.Get(cmd.Context(), sessionPath(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DeleteSessionEndpoint handles DELETE /api/sessions/{id}.
type DeleteSessionEndpoint struct{}

func (e *DeleteSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/sessions/{id}", e.handler
}

func (e *DeleteSessionEndpoint) RequiresInit() bool { return true }
func (e *DeleteSessionEndpoint) Group() string      { return "sessions" }

// handler godoc
//
//	@Summary	End a session
//	@Tags		sessions
//	@Param		id	path	string	true	"Session id"
//	@Success	204
//	@Router		/api/sessions/{id} [delete]
func (e *DeleteSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusInternalServerError, "session manager not available")
		return
	}
	sessions.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), sessionPath(args[0])); err != nil {
				return err
			}
			fmt.Printf("Session %s ended\n", args[0])
			return nil
		},
	}
}

// SelectFormulaRequest selects a formula by business id.
type SelectFormulaRequest struct {
	FormulaID string `json:"formulaId"`
}

// SelectFormulaEndpoint handles POST /api/sessions/{id}/formula.
type SelectFormulaEndpoint struct{}

func (e *SelectFormulaEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/formula", e.handler
}

func (e *SelectFormulaEndpoint) RequiresInit() bool { return true }
func (e *SelectFormulaEndpoint) Group() string      { return "sessions" }

// handler godoc
//
//	@Summary		Select a formula
//	@Description	Make the formula current in compose mode, clearing every selection
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Session id"
//	@Param			body	body		SelectFormulaRequest	true	"Formula"
//	@Success		200		{object}	session.View
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/sessions/{id}/formula [post]
func (e *SelectFormulaEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SelectFormulaRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}
	f, err := lib.FormulaByID(r.Context(), req.FormulaID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sess.SelectFormula(*f)
	writeJSON(w, http.StatusOK, sess.View())
}

func (e *SelectFormulaEndpoint) Command(getServerURL func() string) *cobra.Command {
	return viewCommand(getServerURL, "formula <session-id> <formula-id>", "Select a formula", "formula", 2,
		func(args []string) any { return SelectFormulaRequest{FormulaID: args[1]} })
}

// SelectTagRequest focuses a tag by marker slug.
type SelectTagRequest struct {
	Slug string `json:"slug"`
}

// SelectTagEndpoint handles POST /api/sessions/{id}/tag.
type SelectTagEndpoint struct{}

func (e *SelectTagEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/tag", e.handler
}

func (e *SelectTagEndpoint) RequiresInit() bool { return true }
func (e *SelectTagEndpoint) Group() string      { return "sessions" }

// handler godoc
//
//	@Summary		Focus a tag
//	@Description	Load the snippets of the tag named by a marker slug. A later selection wins; an overtaken request gets 409.
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Session id"
//	@Param			body	body		SelectTagRequest	true	"Tag"
//	@Success		200		{object}	session.View
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/api/sessions/{id}/tag [post]
func (e *SelectTagEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SelectTagRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if _, err := sess.SelectTag(r.Context(), req.Slug); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (e *SelectTagEndpoint) Command(getServerURL func() string) *cobra.Command {
	return viewCommand(getServerURL, "tag <session-id> <slug>", "Focus a tag and list its snippets", "tag", 2,
		func(args []string) any { return SelectTagRequest{Slug: args[1]} })
}

// SelectSnippetRequest selects a snippet by business id.
type SelectSnippetRequest struct {
	SnippetID string `json:"snippetId"`
}

// SelectSnippetEndpoint handles POST /api/sessions/{id}/snippet.
type SelectSnippetEndpoint struct{}

func (e *SelectSnippetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/snippet", e.handler
}

func (e *SelectSnippetEndpoint) RequiresInit() bool { return true }
func (e *SelectSnippetEndpoint) Group() string      { return "sessions" }

// handler godoc
//
//	@Summary		Select a snippet
//	@Description	Use the snippet for the focused tag, replacing any earlier choice
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Session id"
//	@Param			body	body		SelectSnippetRequest	true	"Snippet"
//	@Success		200		{object}	session.View
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/sessions/{id}/snippet [post]
func (e *SelectSnippetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SelectSnippetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}
	snippet, err := lib.SnippetByID(r.Context(), req.SnippetID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := sess.SelectSnippet(*snippet); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (e *SelectSnippetEndpoint) Command(getServerURL func() string) *cobra.Command {
	return viewCommand(getServerURL, "snippet <session-id> <snippet-id>", "Select a snippet for the focused tag", "snippet", 2,
		func(args []string) any { return SelectSnippetRequest{SnippetID: args[1]} })
}

// SwitchModeRequest names a view mode: compose, manual or edit.
type SwitchModeRequest struct {
	Mode string `json:"mode"`
}

// SwitchModeEndpoint handles POST /api/sessions/{id}/mode.
type SwitchModeEndpoint struct{}

func (e *SwitchModeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/mode", e.handler
}

func (e *SwitchModeEndpoint) RequiresInit() bool { return true }
func (e *SwitchModeEndpoint) Group() string      { return "sessions" }

// handler godoc
//
//	@Summary	Switch view mode
//	@Tags		sessions
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Session id"
//	@Param		body	body		SwitchModeRequest	true	"Mode"
//	@Success	200		{object}	session.View
//	@Failure	400		{object}	ErrorResponse
//	@Router		/api/sessions/{id}/mode [post]
func (e *SwitchModeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SwitchModeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if err := sess.SwitchMode(mode); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (e *SwitchModeEndpoint) Command(getServerURL func() string) *cobra.Command {
	return viewCommand(getServerURL, "mode <session-id> <compose|manual|edit>", "Switch the view mode", "mode", 2,
		func(args []string) any { return SwitchModeRequest{Mode: args[1]} })
}

// ManualTextRequest replaces the hand-edited prompt.
type ManualTextRequest struct {
	Text string `json:"text"`
}

// ManualTextEndpoint handles PUT /api/sessions/{id}/manual.
type ManualTextEndpoint struct{}

func (e *ManualTextEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/sessions/{id}/manual", e.handler
}

func (e *ManualTextEndpoint) RequiresInit() bool { return true }
func (e *ManualTextEndpoint) Group() string      { return "sessions" }

// handler godoc
//
//	@Summary	Edit the prompt by hand
//	@Tags		sessions
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Session id"
//	@Param		body	body		ManualTextRequest	true	"Text"
//	@Success	200		{object}	session.View
//	@Failure	400		{object}	ErrorResponse
//	@Failure	409		{object}	ErrorResponse
//	@Router		/api/sessions/{id}/manual [put]
func (e *ManualTextEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ManualTextRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if mode := sess.Mode(); mode != "" && mode != session.ModeManual {
		writeError(w, http.StatusConflict, fmt.Sprintf("session is in %s mode", mode))
		return
	}
	if err := sess.SetManualText(req.Text); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (e *ManualTextEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "manual <session-id> <text>",
		Short: "Replace the hand-edited prompt (manual mode)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp session.View
			if err := client.Put(cmd.Context(), sessionPath(args[0], "manual"), ManualTextRequest{Text: args[1]}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// PromptResponse is the text to copy or submit.
type PromptResponse struct {
	Prompt     string       `json:"prompt"`
	Mode       session.Mode `json:"mode,omitempty"`
	Unresolved []string     `json:"unresolved"`
}

// PromptEndpoint handles GET /api/sessions/{id}/prompt.
type PromptEndpoint struct{}

func (e *PromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sessions/{id}/prompt", e.handler
}

func (e *PromptEndpoint) RequiresInit() bool { return true }
func (e *PromptEndpoint) Group() string      { return "sessions" }

// handler godoc
//
//	@Summary		Get the composed prompt
//	@Description	The hand-edited text in manual mode, otherwise the formula with selections substituted
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session id"
//	@Success		200	{object}	PromptResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/sessions/{id}/prompt [get]
func (e *PromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	view := sess.View()
	if view.Formula == nil {
		writeServiceError(w, session.ErrNoFormula)
		return
	}
	svcctx.MetricsFrom(r.Context()).Composition()
	writeJSON(w, http.StatusOK, PromptResponse{Prompt: view.Prompt, Mode: view.Mode, Unresolved: view.Unresolved})
}

func (e *PromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <session-id>",
		Short: "Print the composed prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PromptResponse
			if err := client.Get(cmd.Context(), sessionPath(args[0], "prompt"), &resp); err != nil {
				return err
			}
			fmt.Println(resp.Prompt)
			return nil
		},
	}
}

// SaveFormulaRequest is the edit form. Overwrite confirms replacing another
// formula with the same title.
type SaveFormulaRequest struct {
	editor.Draft
	Overwrite bool `json:"overwrite"`
}

// SaveFormulaResponse is the saved formula and the updated session.
type SaveFormulaResponse struct {
	Formula types.Formula `json:"formula"`
	Session session.View  `json:"session"`
}

// CollisionResponse is returned when the title is taken and overwrite was not
// confirmed.
type CollisionResponse struct {
	Error    string        `json:"error"`
	Field    string        `json:"field"`
	Existing types.Formula `json:"existing"`
}

// SaveFormulaEndpoint handles POST /api/sessions/{id}/save.
type SaveFormulaEndpoint struct{}

func (e *SaveFormulaEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/save", e.handler
}

func (e *SaveFormulaEndpoint) RequiresInit() bool { return true }
func (e *SaveFormulaEndpoint) Group() string      { return "sessions" }

// handler godoc
//
//	@Summary		Save the edited formula
//	@Description	Saves over the session's current formula, or creates a new one. A title used by another formula needs overwrite=true.
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Session id"
//	@Param			body	body		SaveFormulaRequest	true	"Draft"
//	@Success		200		{object}	SaveFormulaResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	CollisionResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/sessions/{id}/save [post]
func (e *SaveFormulaEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SaveFormulaRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	ed := svcctx.EditorFrom(r.Context())
	if ed == nil {
		writeError(w, http.StatusInternalServerError, "editor not available")
		return
	}
	rec := svcctx.MetricsFrom(r.Context())

	saved, err := ed.Save(r.Context(), sess, req.Draft, editor.Answer(req.Overwrite))
	var collision *editor.CollisionError
	switch {
	case err == nil:
		rec.FormulaSave("saved")
	case errors.As(err, &collision):
		rec.FormulaSave("declined")
		writeJSON(w, http.StatusConflict, CollisionResponse{
			Error:    fmt.Sprintf("a formula titled %q already exists", collision.Existing.Title),
			Field:    "title",
			Existing: collision.Existing,
		})
		return
	case library.IsValidation(err):
		rec.FormulaSave("invalid")
		writeServiceError(w, err)
		return
	default:
		rec.FormulaSave("error")
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SaveFormulaResponse{Formula: *saved, Session: sess.View()})
}

func (e *SaveFormulaEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req SaveFormulaRequest
	cmd := &cobra.Command{
		Use:   "save <session-id>",
		Short: "Save a formula from the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SaveFormulaResponse
			if err := client.Post(cmd.Context(), sessionPath(args[0], "save"), req, &resp); err != nil {
				return err
			}
			return api.Output(resp.Formula)
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "Formula title")
	cmd.Flags().StringVar(&req.Content, "content", "", "Formula content with #{slug} markers")
	cmd.Flags().StringVar(&req.Description, "description", "", "Description")
	cmd.Flags().StringVar(&req.Author, "author", "", "Author")
	cmd.Flags().StringSliceVar(&req.ModelIDs, "models", nil, "Model ids")
	cmd.Flags().BoolVar(&req.Overwrite, "overwrite", false, "Replace another formula with the same title")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

// HandoffResponse tells the page which URL to open next.
type HandoffResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Error       string `json:"error,omitempty"`
}

// submitPrompt forwards text to the image app and writes the result.
func submitPrompt(w http.ResponseWriter, r *http.Request, text string) {
	client := svcctx.HandoffFrom(r.Context())
	if client == nil {
		writeJSON(w, http.StatusInternalServerError, HandoffResponse{Message: "failed", Error: "hand-off not configured"})
		return
	}
	result, err := client.Submit(r.Context(), text)
	if err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Error("prompt hand-off failed", "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, HandoffResponse{Message: "failed", Error: err.Error()})
		return
	}
	svcctx.MetricsFrom(r.Context()).Handoff(string(result.Reason))
	writeJSON(w, http.StatusOK, HandoffResponse{
		Success:     true,
		Message:     result.Message(),
		RedirectURL: result.RedirectURL,
		Reason:      string(result.Reason),
	})
}

// SubmitEndpoint handles POST /api/sessions/{id}/submit.
type SubmitEndpoint struct{}

func (e *SubmitEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/submit", e.handler
}

func (e *SubmitEndpoint) RequiresInit() bool { return true }
func (e *SubmitEndpoint) Group() string      { return "sessions" }

// handler godoc
//
//	@Summary		Send the prompt to the image app
//	@Description	Redirects to the app store when the image app is not installed
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session id"
//	@Success		200	{object}	HandoffResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	HandoffResponse
//	@Router			/api/sessions/{id}/submit [post]
func (e *SubmitEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if sess.Current() == nil {
		writeServiceError(w, session.ErrNoFormula)
		return
	}
	svcctx.MetricsFrom(r.Context()).Composition()
	submitPrompt(w, r, sess.PromptText())
}

func (e *SubmitEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <session-id>",
		Short: "Send the session's prompt to the image app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HandoffResponse
			if err := client.Post(cmd.Context(), sessionPath(args[0], "submit"), nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CatimgPromptRequest is the body of the original hand-off endpoint.
type CatimgPromptRequest struct {
	Prompt string `json:"prompt"`
}

// CatimgPromptEndpoint handles POST /api/catimg/prompt.
type CatimgPromptEndpoint struct{}

func (e *CatimgPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/catimg/prompt", e.handler
}

func (e *CatimgPromptEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Send a prompt to the image app
//	@Tags		handoff
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CatimgPromptRequest	true	"Prompt"
//	@Success	200		{object}	HandoffResponse
//	@Failure	500		{object}	HandoffResponse
//	@Router		/api/catimg/prompt [post]
func (e *CatimgPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CatimgPromptRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, HandoffResponse{Message: "invalid request", Error: err.Error()})
		return
	}
	submitPrompt(w, r, req.Prompt)
}

func (e *CatimgPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "catimg <prompt>",
		Short: "Send a prompt to the image app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HandoffResponse
			if err := client.Post(cmd.Context(), "/api/catimg/prompt", CatimgPromptRequest{Prompt: args[0]}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
