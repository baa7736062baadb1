// Package handler implements the REST API over the content engine. Handlers
// decode and validate requests, call the engine, translate error kinds to
// HTTP statuses, and record metrics and analytics events.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/organizerlabs/smart-search-organizer/internal/analytics"
	"github.com/organizerlabs/smart-search-organizer/internal/engine"
	"github.com/organizerlabs/smart-search-organizer/internal/engine/index"
	servercache "github.com/organizerlabs/smart-search-organizer/internal/server/cache"
	apperrors "github.com/organizerlabs/smart-search-organizer/pkg/errors"
	"github.com/organizerlabs/smart-search-organizer/pkg/logger"
	"github.com/organizerlabs/smart-search-organizer/pkg/metrics"
)

// Handler holds the dependencies of every route. shared is nil when the
// Redis query cache is disabled; tracker is a Noop when Kafka is disabled.
type Handler struct {
	engine  *engine.Manager
	shared  *servercache.QueryCache
	tracker analytics.Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Handler. shared may be nil.
func New(eng *engine.Manager, shared *servercache.QueryCache, tracker analytics.Tracker, m *metrics.Metrics) *Handler {
	if tracker == nil {
		tracker = analytics.Noop{}
	}
	return &Handler{
		engine:  eng,
		shared:  shared,
		tracker: tracker,
		metrics: m,
		logger:  slog.Default().With("component", "api-handler"),
	}
}

type createDocumentRequest struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Tags       []string `json:"tags"`
	FolderPath string   `json:"folder_path"`
}

type moveDocumentRequest struct {
	FolderPath string `json:"folder_path"`
}

type createFolderRequest struct {
	Path string `json:"path"`
}

// CreateDocument handles POST /api/v1/documents.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	doc, err := h.engine.AddDocument(req.Title, req.Body, req.Tags, req.FolderPath)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.metrics.DocsIndexedTotal.Inc()
	h.updateGauges()
	h.tracker.Track(analytics.EventDocumentAdd, analytics.DocumentEvent{
		DocID:      doc.ID,
		FolderPath: doc.FolderPath,
		Timestamp:  time.Now().UTC(),
	})
	logger.FromContext(r.Context()).Info("document created",
		"doc_id", doc.ID, "folder", doc.FolderPath)
	h.writeJSON(w, http.StatusCreated, doc)
}

// ListDocuments handles GET /api/v1/documents with an optional ?folder=
// filter.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.URL.Query().Get("folder"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

// GetDocument handles GET /api/v1/documents/{id}. Reading a document records
// an access, which feeds the recency and usage ranking components.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := h.engine.GetDocument(id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.tracker.Track(analytics.EventDocumentView, analytics.DocumentEvent{
		DocID:      doc.ID,
		FolderPath: doc.FolderPath,
		Timestamp:  time.Now().UTC(),
	})
	h.writeJSON(w, http.StatusOK, doc)
}

// UpdateDocument handles PUT /api/v1/documents/{id} with a partial body.
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var upd engine.DocumentUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	doc, err := h.engine.UpdateDocument(r.PathValue("id"), upd)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.metrics.DocsIndexedTotal.Inc()
	h.updateGauges()
	h.writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/v1/documents/{id}.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.engine.DeleteDocument(id); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.metrics.DocsDeletedTotal.Inc()
	h.updateGauges()
	h.tracker.Track(analytics.EventDocumentDel, analytics.DocumentEvent{
		DocID:     id,
		Timestamp: time.Now().UTC(),
	})
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// MoveDocument handles POST /api/v1/documents/{id}/move.
func (h *Handler) MoveDocument(w http.ResponseWriter, r *http.Request) {
	var req moveDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	doc, err := h.engine.MoveDocument(r.PathValue("id"), req.FolderPath)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// CreateFolder handles POST /api/v1/folders. Idempotent.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	info, err := h.engine.CreateFolder(req.Path)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.updateGauges()
	h.tracker.Track(analytics.EventFolderChange, analytics.FolderEvent{
		Path:      info.Path,
		Action:    "create",
		Timestamp: time.Now().UTC(),
	})
	h.writeJSON(w, http.StatusCreated, info)
}

// DeleteFolder handles DELETE /api/v1/folders?path=.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'path' is required")
		return
	}
	if err := h.engine.DeleteFolder(path); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.updateGauges()
	h.tracker.Track(analytics.EventFolderChange, analytics.FolderEvent{
		Path:      path,
		Action:    "delete",
		Timestamp: time.Now().UTC(),
	})
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListFolders handles GET /api/v1/folders, returning folders in depth-first
// order.
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders := h.engine.ListFolders()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"folders": folders,
		"count":   len(folders),
	})
}

// Search handles GET /api/v1/search?q=&limit=&mode=. When the shared Redis
// cache is enabled it is consulted first; the engine's own LRU always runs
// underneath.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	mode := h.engine.DefaultMode()
	if modeStr := r.URL.Query().Get("mode"); modeStr != "" {
		parsed, err := index.ParseMode(modeStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "mode must be AND or OR")
			return
		}
		mode = parsed
	}

	var result *engine.SearchResult
	var cacheHit bool
	var err error
	if h.shared != nil {
		var localHit, sharedHit bool
		result, sharedHit, err = h.shared.GetOrCompute(ctx, h.engine.Generation(), query, mode.String(), limit,
			func() (*engine.SearchResult, error) {
				res, hit, searchErr := h.engine.Search(query, limit, mode)
				localHit = hit
				return res, searchErr
			})
		cacheHit = sharedHit || localHit
	} else {
		result, cacheHit, err = h.engine.Search(query, limit, mode)
	}
	if err != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		h.writeAppError(w, r, err)
		return
	}

	elapsed := time.Since(start)
	cacheStatus := "miss"
	resultType := "miss"
	if cacheHit {
		cacheStatus = "hit"
		resultType = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(result.Results)))

	log.Info("search completed",
		"query", query,
		"mode", result.Mode,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", elapsed.Milliseconds(),
	)
	h.tracker.Track(analytics.EventSearch, analytics.SearchEvent{
		Query:      query,
		Mode:       result.Mode,
		TopK:       limit,
		TotalHits:  result.TotalHits,
		Returned:   len(result.Results),
		CacheHit:   cacheHit,
		DurationMS: float64(elapsed.Microseconds()) / 1000,
		Timestamp:  time.Now().UTC(),
	})

	h.writeJSON(w, http.StatusOK, result)
}

// Autocomplete handles GET /api/v1/autocomplete?prefix=&limit=.
func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'prefix' is required")
		return
	}
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	suggestions, err := h.engine.Autocomplete(prefix, limit)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.metrics.AutocompleteTotal.Inc()
	h.tracker.Track(analytics.EventAutocomplete, analytics.AutocompleteEvent{
		Prefix:      prefix,
		Suggestions: len(suggestions),
		Timestamp:   time.Now().UTC(),
	})
	h.writeJSON(w, http.StatusOK, map[string]any{
		"prefix":      prefix,
		"suggestions": suggestions,
	})
}

// CacheStats handles GET /api/v1/cache/stats, combining the engine's LRU
// counters with the shared cache's when enabled.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"engine": h.engine.CacheSnapshot()}
	if h.shared != nil {
		hits, misses := h.shared.Stats()
		resp["shared"] = map[string]int64{"hits": hits, "misses": misses}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearCache()
	if h.shared != nil {
		if err := h.shared.Invalidate(r.Context()); err != nil {
			h.logger.Error("shared cache invalidation failed", "error", err)
			h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// Stats handles GET /api/v1/stats with engine-wide counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// updateGauges refreshes the live-state gauges after a mutation.
func (h *Handler) updateGauges() {
	snap := h.engine.Snapshot()
	h.metrics.DocumentsLive.Set(float64(snap.Documents))
	h.metrics.IndexTermsLive.Set(float64(snap.Terms))
	h.metrics.FoldersLive.Set(float64(snap.Folders))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps an engine error to its HTTP status and serialises the
// message, logging unexpected kinds at error level.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := "internal error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	h.writeError(w, status, message)
}
