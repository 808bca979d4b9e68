package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/claimline/internal/apperr"
	"github.com/starford/claimline/internal/batch"
	"github.com/starford/claimline/internal/render"
	"github.com/starford/claimline/internal/timelines"
)

const maxDocumentBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *timelines.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *timelines.Service) *Handler {
	return &Handler{svc: svc}
}

// sourcePath extracts the source path from the URL (everything after
// /timelines/). Supports encoded slashes (e.g. sub%2Fa.json).
func sourcePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// readDocument reads a claims document request body.
func readDocument(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("document too large or unreadable"))
		return nil, false
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("request body is required"))
		return nil, false
	}
	return data, true
}

// renderOptions overlays query parameters on the configured options.
func renderOptions(base render.Options, q url.Values) (render.Options, error) {
	opts := base
	if v := q.Get("theme"); v != "" {
		opts.Theme = v
	}
	if v := q.Get("title"); v != "" {
		opts.Title = v
	}
	for name, dst := range map[string]*int{"width": &opts.Width, "height": &opts.Height} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return opts, fmt.Errorf("%w: %s must be an integer", apperr.ErrInvalidInput, name)
			}
			*dst = n
		}
	}
	if v := q.Get("interactive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("%w: interactive must be a boolean", apperr.ErrInvalidInput)
		}
		opts.Interactive = b
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return opts, nil
}

// ListTimelines handles GET /api/timelines.
//
//	@Summary		List rendered timelines with optional pagination and filtering
//	@Tags			timelines
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			kind	query		string	false	"Filter by item kind"
//	@Param			sort	query		string	false	"Sort field"	Enums(source, rendered, items, recent)
//	@Success		200		{object}	TimelineListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines [get]
func (h *Handler) ListTimelines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	sort := q.Get("sort")
	switch sort {
	case "", "source", "rendered", "items", "recent":
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown sort "+strconv.Quote(sort)))
		return
	}

	items, total, err := h.svc.List(r.Context(), limit, offset, q.Get("kind"), sort)
	if err != nil {
		writeError(w, "list timelines", err)
		return
	}
	writeJSON(w, http.StatusOK, TimelineListResponse{Timelines: items, Total: total})
}

// GetTimeline handles GET /api/timelines/*.
//
//	@Summary		Get the catalog entry of one input file
//	@Tags			timelines
//	@Produce		json
//	@Param			path	path		string	true	"Source path relative to the input folder"
//	@Success		200		{object}	TimelineItem
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines/{path} [get]
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	source := sourcePath(r)
	if source == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	item, err := h.svc.Timeline(r.Context(), source)
	if err != nil {
		writeError(w, "get timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Search handles GET /api/timelines/search.
//
//	@Summary		Search timelines by item label
//	@Tags			timelines
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Runs handles GET /api/runs.
//
//	@Summary		List recent batch runs, newest first
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Max runs"
//	@Success		200		{object}	RunsResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// Scan handles GET /api/scan.
//
//	@Summary		Classify the files of the input folder
//	@Tags			processing
//	@Produce		json
//	@Success		200	{object}	ScanResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scan [get]
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Scan(r.Context())
	if err != nil {
		writeError(w, "scan", err)
		return
	}
	if entries == nil {
		entries = []batch.ScanEntry{}
	}
	valid := 0
	for _, e := range entries {
		if e.Valid {
			valid++
		}
	}
	writeJSON(w, http.StatusOK, ScanResponse{Root: h.svc.InputRoot(), Files: entries, Valid: valid})
}

// Normalize handles POST /api/normalize.
//
//	@Summary		Normalize a claims document into timeline items
//	@Tags			processing
//	@Accept			json
//	@Produce		json
//	@Param			body	body		object	true	"Claims document"
//	@Success		200		{object}	TimelineDocument
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/normalize [post]
func (h *Handler) Normalize(w http.ResponseWriter, r *http.Request) {
	data, ok := readDocument(w, r)
	if !ok {
		return
	}
	doc, err := h.svc.Normalize(r.Context(), data)
	if err != nil {
		writeError(w, "normalize", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Render handles POST /api/render.
//
//	@Summary		Render a claims document as a self-contained HTML timeline
//	@Tags			processing
//	@Accept			json
//	@Produce		html
//	@Param			body		body		object	true	"Claims document"
//	@Param			theme		query		string	false	"Color theme"	Enums(light, dark)
//	@Param			title		query		string	false	"Page title"
//	@Param			width		query		int		false	"Chart width in pixels"
//	@Param			height		query		int		false	"Chart height in pixels"
//	@Param			interactive	query		bool	false	"Include filtering script"
//	@Success		200			{string}	string	"HTML document"
//	@Failure		400			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render [post]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	opts, err := renderOptions(h.svc.RenderOptions(), r.URL.Query())
	if err != nil {
		writeError(w, "render", err)
		return
	}
	data, ok := readDocument(w, r)
	if !ok {
		return
	}
	html, doc, err := h.svc.RenderDocument(r.Context(), data, &opts)
	if err != nil {
		writeError(w, "render", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Timeline-Items", strconv.Itoa(doc.Summary.TotalItems))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

// Batch handles POST /api/batch.
//
//	@Summary		Render every valid file of the input folder
//	@Tags			processing
//	@Produce		json
//	@Success		200	{object}	BatchResult
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/batch [post]
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RunBatch(r.Context())
	if err != nil {
		writeError(w, "batch", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Sync handles POST /api/sync.
//
//	@Summary		Re-render changed inputs and drop stale artifacts
//	@Tags			processing
//	@Produce		json
//	@Success		200	{object}	SyncStats
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Sync(r.Context())
	if err != nil {
		writeError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
