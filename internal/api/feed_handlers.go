package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/driftline/driftline/internal/feed"
)

// ViewerIDHeader carries the authenticated viewer's ID. The edge proxy is
// responsible for authenticating the caller and setting this header;
// requests without it are treated as anonymous where the surface allows it.
const ViewerIDHeader = "X-Viewer-ID"

// searchScanLimit caps how many recent posts are scanned for textual
// matches before the ranking stage takes over.
const searchScanLimit = 2000

// FeedHandler serves the feed and search ranking endpoints.
type FeedHandler struct {
	engine *feed.Engine
	posts  feed.PostStore
	logger *slog.Logger
}

// NewFeedHandler creates a feed handler over the given engine and post store.
func NewFeedHandler(engine *feed.Engine, posts feed.PostStore, logger *slog.Logger) *FeedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandler{
		engine: engine,
		posts:  posts,
		logger: logger,
	}
}

// HandleHomeFeed handles GET /feed/home.
// Requires a viewer; supports page and limit query parameters.
func (h *FeedHandler) HandleHomeFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewerID := viewerFrom(r)
	if viewerID == feed.AnonymousViewer {
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeMissingViewer, "Home feed requires a viewer")
		return
	}

	page, limit, ok := h.pagination(w, r)
	if !ok {
		return
	}

	result, err := h.engine.RankHomeFeed(ctx, viewerID, page, limit)
	if err != nil {
		h.logger.Error("home feed ranking failed", "viewer_id", viewerID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to rank home feed")
		return
	}

	WriteJSON(w, ctx, http.StatusOK, result)
}

// HandleExploreFeed handles GET /feed/explore.
// The viewer is optional; anonymous callers receive the public stream.
func (h *FeedHandler) HandleExploreFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, limit, ok := h.pagination(w, r)
	if !ok {
		return
	}

	result, err := h.engine.RankExploreFeed(ctx, viewerFrom(r), page, limit)
	if err != nil {
		h.logger.Error("explore feed ranking failed", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to rank explore feed")
		return
	}

	WriteJSON(w, ctx, http.StatusOK, result)
}

// HandleSearchPosts handles GET /search/posts?q=...
// Recent posts are scanned for textual matches, then re-ranked by the
// blended text and social score. The viewer is optional.
func (h *FeedHandler) HandleSearchPosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeMissingQuery, "Query parameter q is required")
		return
	}

	page, limit, ok := h.pagination(w, r)
	if !ok {
		return
	}

	// Text matching runs over the recent public corpus. Storage failure is
	// fail-open: an empty corpus yields an empty result, not an error.
	matches, err := h.posts.ListRecentPublic(ctx, nil, searchScanLimit)
	if err != nil {
		h.logger.Warn("search corpus scan degraded", "error", err)
		matches = nil
	}

	result, err := h.engine.RankSearchResults(ctx, viewerFrom(r), query, matches, page, limit)
	if err != nil {
		h.logger.Error("search ranking failed", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to rank search results")
		return
	}

	WriteJSON(w, ctx, http.StatusOK, result)
}

// viewerFrom resolves the viewer identity from the request headers.
func viewerFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ViewerIDHeader))
}

// pagination parses and validates page and limit query parameters. On a
// validation failure it writes the error response and returns ok=false.
func (h *FeedHandler) pagination(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	page, err := positiveIntParam(r, "page", 1)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "page must be a positive integer")
		return 0, 0, false
	}

	limit, err = positiveIntParam(r, "limit", feed.DefaultPageLimit)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
		return 0, 0, false
	}

	return page, limit, true
}

// positiveIntParam parses a positive integer query parameter with a default.
func positiveIntParam(r *http.Request, name string, defaultVal int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
