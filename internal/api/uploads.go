package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/claimline/internal/timelines"
)

const maxUploadBytes = 50 << 20 // 50 MB

// UploadHandler accepts claims files into the input folder and serves the
// rendered artifacts.
type UploadHandler struct {
	svc *timelines.Service
}

// NewUploadHandler creates a handler backed by svc.
func NewUploadHandler(svc *timelines.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// Upload handles POST /api/uploads (multipart/form-data, field "file").
//
//	@Summary		Upload a claims file and render it
//	@Tags			uploads
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"Claims JSON file"
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/uploads [post]
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}

	doc, err := h.svc.Import(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, "upload", err)
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Filename: header.Filename,
		Size:     int64(len(data)),
		Items:    doc.Summary.TotalItems,
		URL:      "/view/" + strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename)) + h.svc.Suffix(),
	})
}

// ServeView handles GET /view/*: rendered HTML artifacts from the output
// folder. Only .html files are served.
func (h *UploadHandler) ServeView(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if rel == "" || !strings.EqualFold(filepath.Ext(rel), ".html") {
		http.NotFound(w, r)
		return
	}
	abs, err := h.svc.ResolveOutput(rel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
