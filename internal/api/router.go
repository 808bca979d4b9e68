package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/claimline/internal/timelines"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *timelines.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	uh := NewUploadHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Catalog.
	r.Get("/timelines", h.ListTimelines)
	r.Get("/timelines/search", h.Search)
	r.Get("/timelines/*", h.GetTimeline)
	r.Get("/runs", h.Runs)

	// Processing.
	r.Get("/scan", h.Scan)
	r.Post("/normalize", h.Normalize)
	r.Post("/render", h.Render)
	r.Post("/batch", h.Batch)
	r.Post("/sync", h.Sync)

	// Claims upload into the input folder.
	r.Post("/uploads", uh.Upload)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
