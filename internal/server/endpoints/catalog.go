package endpoints

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/spellbook/internal/api"
	"github.com/jackzampolin/spellbook/internal/formula"
	"github.com/jackzampolin/spellbook/internal/library"
	"github.com/jackzampolin/spellbook/internal/svcctx"
	"github.com/jackzampolin/spellbook/internal/types"
)

// ModelsResponse lists active models.
type ModelsResponse struct {
	Models []types.Model `json:"models"`
}

// ListModelsEndpoint handles GET /api/models.
type ListModelsEndpoint struct{}

func (e *ListModelsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/models", e.handler
}

func (e *ListModelsEndpoint) RequiresInit() bool { return true }
func (e *ListModelsEndpoint) Group() string      { return "models" }

// handler godoc
//
//	@Summary	List active models
//	@Tags		catalog
//	@Produce	json
//	@Success	200	{object}	ModelsResponse
//	@Failure	502	{object}	ErrorResponse
//	@Router		/api/models [get]
func (e *ListModelsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}
	models, err := lib.ActiveModels(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ModelsResponse{Models: models})
}

func (e *ListModelsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active models",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ModelsResponse
			if err := client.Get(cmd.Context(), "/api/models", &resp); err != nil {
				return err
			}
			return api.Output(resp.Models)
		},
	}
}

// FormulasResponse lists formulas.
type FormulasResponse struct {
	Formulas []types.Formula `json:"formulas"`
	Total    int             `json:"total"`
}

// ListFormulasEndpoint handles GET /api/formulas.
type ListFormulasEndpoint struct{}

func (e *ListFormulasEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/formulas", e.handler
}

func (e *ListFormulasEndpoint) RequiresInit() bool { return true }
func (e *ListFormulasEndpoint) Group() string      { return "formulas" }

// handler godoc
//
//	@Summary		List formulas
//	@Description	Pinned formulas first, then most recently updated
//	@Tags			catalog
//	@Produce		json
//	@Param			modelId	query		string	false	"Keep formulas for this model"
//	@Param			search	query		string	false	"Case-insensitive text search"
//	@Success		200		{object}	FormulasResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/formulas [get]
func (e *ListFormulasEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}
	q := library.FormulaQuery{
		ModelID: r.URL.Query().Get("modelId"),
		Search:  r.URL.Query().Get("search"),
	}
	formulas, err := lib.ListFormulas(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FormulasResponse{Formulas: formulas, Total: len(formulas)})
}

func (e *ListFormulasEndpoint) Command(getServerURL func() string) *cobra.Command {
	var modelID, search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List formulas",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if modelID != "" {
				params.Set("modelId", modelID)
			}
			if search != "" {
				params.Set("search", search)
			}
			path := "/api/formulas"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}
			client := api.NewClient(getServerURL())
			var resp FormulasResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&modelID, "model", "", "Filter by model id")
	cmd.Flags().StringVar(&search, "search", "", "Search title, content and description")
	return cmd
}

// GetFormulaEndpoint handles GET /api/formulas/{id}.
type GetFormulaEndpoint struct{}

func (e *GetFormulaEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/formulas/{id}", e.handler
}

func (e *GetFormulaEndpoint) RequiresInit() bool { return true }
func (e *GetFormulaEndpoint) Group() string      { return "formulas" }

// handler godoc
//
//	@Summary	Get a formula
//	@Tags		catalog
//	@Produce	json
//	@Param		id	path		string	true	"Formula business id"
//	@Success	200	{object}	types.Formula
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/formulas/{id} [get]
func (e *GetFormulaEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}
	f, err := lib.FormulaByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (e *GetFormulaEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <formula-id>",
		Short: "Get a formula",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp types.Formula
			if err := client.Get(cmd.Context(), "/api/formulas/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SegmentsResponse is a formula's content split into text and tag segments.
type SegmentsResponse struct {
	FormulaID string            `json:"formulaId"`
	Segments  []formula.Segment `json:"segments"`
	Slugs     []string          `json:"slugs"`
}

// FormulaSegmentsEndpoint handles GET /api/formulas/{id}/segments.
type FormulaSegmentsEndpoint struct{}

func (e *FormulaSegmentsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/formulas/{id}/segments", e.handler
}

func (e *FormulaSegmentsEndpoint) RequiresInit() bool { return true }
func (e *FormulaSegmentsEndpoint) Group() string      { return "formulas" }

// handler godoc
//
//	@Summary		Parse a formula
//	@Description	Split the formula content into text and tag segments, resolving each tag
//	@Tags			catalog
//	@Produce		json
//	@Param			id	path		string	true	"Formula business id"
//	@Success		200	{object}	SegmentsResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/formulas/{id}/segments [get]
func (e *FormulaSegmentsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}
	f, err := lib.FormulaByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	segments, err := formula.Parse(r.Context(), f.Content, lib)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SegmentsResponse{
		FormulaID: f.FormulaID,
		Segments:  segments,
		Slugs:     formula.Slugs(f.Content),
	})
}

func (e *FormulaSegmentsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "segments <formula-id>",
		Short: "Show the text and tag segments of a formula",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SegmentsResponse
			path := "/api/formulas/" + url.PathEscape(args[0]) + "/segments"
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// TagsResponse lists tags.
type TagsResponse struct {
	Tags []types.Tag `json:"tags"`
}

// ListTagsEndpoint handles GET /api/tags.
type ListTagsEndpoint struct{}

func (e *ListTagsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tags", e.handler
}

func (e *ListTagsEndpoint) RequiresInit() bool { return true }
func (e *ListTagsEndpoint) Group() string      { return "tags" }

// handler godoc
//
//	@Summary	List tags
//	@Tags		catalog
//	@Produce	json
//	@Success	200	{object}	TagsResponse
//	@Failure	502	{object}	ErrorResponse
//	@Router		/api/tags [get]
func (e *ListTagsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}
	tags, err := lib.ListTags(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

func (e *ListTagsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TagsResponse
			if err := client.Get(cmd.Context(), "/api/tags", &resp); err != nil {
				return err
			}
			return api.Output(resp.Tags)
		},
	}
}

// TagSnippetsResponse is a tag with its snippets.
type TagSnippetsResponse struct {
	Tag      types.Tag       `json:"tag"`
	Snippets []types.Snippet `json:"snippets"`
}

// TagSnippetsEndpoint handles GET /api/tags/{slug}/snippets.
type TagSnippetsEndpoint struct{}

func (e *TagSnippetsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tags/{slug}/snippets", e.handler
}

func (e *TagSnippetsEndpoint) RequiresInit() bool { return true }
func (e *TagSnippetsEndpoint) Group() string      { return "tags" }

// handler godoc
//
//	@Summary		List a tag's snippets
//	@Description	The tag is looked up by slug, then by tag id
//	@Tags			catalog
//	@Produce		json
//	@Param			slug	path		string	true	"Tag slug or id"
//	@Success		200		{object}	TagSnippetsResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/tags/{slug}/snippets [get]
func (e *TagSnippetsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}
	slug := r.PathValue("slug")
	tag, err := lib.ResolveTag(r.Context(), slug)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if tag == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("tag %q not found", slug))
		return
	}
	snippets, err := lib.SnippetsForTag(r.Context(), *tag)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TagSnippetsResponse{Tag: *tag, Snippets: snippets})
}

func (e *TagSnippetsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "snippets <slug>",
		Short: "List the snippets of a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TagSnippetsResponse
			path := "/api/tags/" + url.PathEscape(args[0]) + "/snippets"
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// AddSnippetsRequest is the request body for POST /api/snippets.
type AddSnippetsRequest struct {
	// Tags uses the "#{Display|slug}" syntax or whitespace separated slugs.
	Tags  string                 `json:"tags"`
	Items []library.SnippetInput `json:"items"`
}

// SnippetsResponse lists created snippets.
type SnippetsResponse struct {
	Snippets []types.Snippet `json:"snippets"`
}

// AddSnippetsEndpoint handles POST /api/snippets.
type AddSnippetsEndpoint struct{}

func (e *AddSnippetsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/snippets", e.handler
}

func (e *AddSnippetsEndpoint) RequiresInit() bool { return true }
func (e *AddSnippetsEndpoint) Group() string      { return "snippets" }

// handler godoc
//
//	@Summary		Add snippets
//	@Description	Create snippets under the named tags, creating missing tags
//	@Tags			catalog
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AddSnippetsRequest	true	"Tags and items"
//	@Success		201		{object}	SnippetsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/snippets [post]
func (e *AddSnippetsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req AddSnippetsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}
	snippets, err := lib.AddSnippets(r.Context(), req.Tags, req.Items)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SnippetsResponse{Snippets: snippets})
}

func (e *AddSnippetsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tags, shortName string
	cmd := &cobra.Command{
		Use:   "add <content>...",
		Short: "Add snippets under one or more tags",
		Long: `Add one snippet per content argument.

Tags use the "#{Display Name|slug}" syntax or plain space separated slugs.
Missing tags are created.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := AddSnippetsRequest{Tags: tags}
			for _, content := range args {
				req.Items = append(req.Items, library.SnippetInput{ShortName: shortName, Content: content})
			}
			client := api.NewClient(getServerURL())
			var resp SnippetsResponse
			if err := client.Post(cmd.Context(), "/api/snippets", req, &resp); err != nil {
				return err
			}
			return api.Output(resp.Snippets)
		},
	}
	cmd.Flags().StringVar(&tags, "tags", "", "Tags for the new snippets")
	cmd.Flags().StringVar(&shortName, "name", "", "Short name (defaults to the content)")
	_ = cmd.MarkFlagRequired("tags")
	return cmd
}
