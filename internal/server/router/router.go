// Package router wires up all API routes and applies the middleware chain
// (RequestID → Metrics → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/organizerlabs/smart-search-organizer/internal/server/handler"
	"github.com/organizerlabs/smart-search-organizer/pkg/health"
	"github.com/organizerlabs/smart-search-organizer/pkg/metrics"
	"github.com/organizerlabs/smart-search-organizer/pkg/middleware"
)

// New builds the full HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/v1/documents            create document
//	GET    /api/v1/documents            list documents (?folder=)
//	GET    /api/v1/documents/{id}       get document (records access)
//	PUT    /api/v1/documents/{id}       partial update
//	DELETE /api/v1/documents/{id}       delete document
//	POST   /api/v1/documents/{id}/move  move document to folder
//	POST   /api/v1/folders              create folder chain
//	GET    /api/v1/folders              list folders (DFS order)
//	DELETE /api/v1/folders              delete folder (?path=)
//	GET    /api/v1/search               ranked search (?q=&limit=&mode=)
//	GET    /api/v1/autocomplete         prefix completion (?prefix=&limit=)
//	GET    /api/v1/cache/stats          result cache statistics
//	POST   /api/v1/cache/invalidate     clear result caches
//	GET    /api/v1/stats                engine counters
//	GET    /health/live                 liveness probe
//	GET    /health/ready                readiness probe
func New(h *handler.Handler, checker *health.Checker, m *metrics.Metrics, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux.HandleFunc("POST /api/v1/documents", h.CreateDocument)
	mux.HandleFunc("GET /api/v1/documents", h.ListDocuments)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("PUT /api/v1/documents/{id}", h.UpdateDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.DeleteDocument)
	mux.HandleFunc("POST /api/v1/documents/{id}/move", h.MoveDocument)

	mux.HandleFunc("POST /api/v1/folders", h.CreateFolder)
	mux.HandleFunc("GET /api/v1/folders", h.ListFolders)
	mux.HandleFunc("DELETE /api/v1/folders", h.DeleteFolder)

	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/autocomplete", h.Autocomplete)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)

	var chain http.Handler = mux
	chain = middleware.Timeout(requestTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)
	return chain
}
