package feed

import (
	"context"
	"log/slog"
)

// Candidate pool bounds shared by both generators.
const (
	// DefaultMaxCandidates caps the raw candidate pool per ranking call.
	DefaultMaxCandidates = 400
	// DefaultMinCandidates is the floor below which the home generator
	// widens to its fallback query.
	DefaultMinCandidates = 50
	// exploreWidenThreshold is the floor below which the explore generator
	// drops the follow-exclusion and re-queries. Availability beats
	// discovery purity: a thin explore feed is worse than a familiar one.
	exploreWidenThreshold = 5
	// maxAuthorSetSize caps the home author set for query cost control.
	maxAuthorSetSize = 100
)

// candidateQuery produces a raw post pool.
type candidateQuery func(ctx context.Context) ([]*Post, error)

// twoStageStrategy runs a primary candidate query and widens to a fallback
// when the primary errors or returns fewer than minResults posts. Both
// generators share this shape so each stage can be exercised independently.
type twoStageStrategy struct {
	surface    string
	primary    candidateQuery
	fallback   candidateQuery
	minResults int
	logger     *slog.Logger
	metrics    *Metrics
}

// run executes the strategy. It is fail-open end to end: if both stages
// fail, the result is an empty pool, never an error.
func (s *twoStageStrategy) run(ctx context.Context) []*Post {
	posts, err := s.primary(ctx)
	if err != nil {
		s.logger.Warn("primary candidate query failed, widening",
			"surface", s.surface,
			"error", err)
		posts = nil
	}

	if len(posts) >= s.minResults {
		return posts
	}

	if s.fallback == nil {
		return posts
	}

	s.metrics.IncFallback(s.surface)
	s.logger.Debug("widening candidate pool",
		"surface", s.surface,
		"primary_count", len(posts),
		"min_results", s.minResults)

	widened, err := s.fallback(ctx)
	if err != nil {
		s.logger.Warn("fallback candidate query failed",
			"surface", s.surface,
			"error", err)
		return posts
	}

	// The widened query supersedes the primary pool; it is a re-query, not
	// a union, so ordering stays a single created_at descending stream.
	if len(widened) > len(posts) {
		return widened
	}
	return posts
}

// homeCandidates builds the home-feed candidate strategy for a viewer:
// posts from the viewer, their followees, and their followers, capped at
// maxAuthorSetSize authors. A viewer with no connections skips straight to
// the author-agnostic public query.
func (e *Engine) homeCandidates(ctx context.Context, viewerID string) *twoStageStrategy {
	authors := e.homeAuthorSet(ctx, viewerID)

	publicQuery := func(ctx context.Context) ([]*Post, error) {
		return e.posts.ListRecentPublic(ctx, nil, e.params.MaxCandidates)
	}

	// Zero connections: the author-set query would only return the viewer's
	// own posts, so serve the public stream directly.
	if len(authors) <= 1 {
		return &twoStageStrategy{
			surface:    SurfaceHome,
			primary:    publicQuery,
			minResults: 0,
			logger:     e.logger,
			metrics:    e.metrics,
		}
	}

	return &twoStageStrategy{
		surface: SurfaceHome,
		primary: func(ctx context.Context) ([]*Post, error) {
			return e.posts.ListByAuthors(ctx, authors, viewerID, e.params.MaxCandidates)
		},
		fallback:   publicQuery,
		minResults: e.params.MinCandidates,
		logger:     e.logger,
		metrics:    e.metrics,
	}
}

// homeAuthorSet computes {viewer} ∪ followees ∪ followers, capped for query
// cost control. Graph read failures degrade to whatever resolved.
func (e *Engine) homeAuthorSet(ctx context.Context, viewerID string) []string {
	authors := []string{viewerID}
	seen := map[string]bool{viewerID: true}

	followees, err := e.follows.Followees(ctx, viewerID)
	if err != nil {
		e.logger.Warn("followee lookup degraded", "viewer_id", viewerID, "error", err)
	}
	followers, err := e.follows.Followers(ctx, viewerID)
	if err != nil {
		e.logger.Warn("follower lookup degraded", "viewer_id", viewerID, "error", err)
	}

	for _, id := range append(followees, followers...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		authors = append(authors, id)
		if len(authors) >= maxAuthorSetSize {
			break
		}
	}
	return authors
}

// exploreCandidates builds the explore-feed candidate strategy: recent
// public posts excluding the viewer and their followed authors, so explore
// introduces new accounts. An anonymous viewer receives the unfiltered
// public stream. If the filtered query comes back nearly empty the
// follow-exclusion is dropped and the query re-runs.
func (e *Engine) exploreCandidates(ctx context.Context, viewerID string) *twoStageStrategy {
	if viewerID == AnonymousViewer {
		return &twoStageStrategy{
			surface: SurfaceExplore,
			primary: func(ctx context.Context) ([]*Post, error) {
				return e.posts.ListRecentPublic(ctx, nil, e.params.MaxCandidates)
			},
			minResults: 0,
			logger:     e.logger,
			metrics:    e.metrics,
		}
	}

	excluded := []string{viewerID}
	followees, err := e.follows.Followees(ctx, viewerID)
	if err != nil {
		e.logger.Warn("explore follow-exclusion degraded", "viewer_id", viewerID, "error", err)
	} else {
		excluded = append(excluded, followees...)
	}

	return &twoStageStrategy{
		surface: SurfaceExplore,
		primary: func(ctx context.Context) ([]*Post, error) {
			return e.posts.ListRecentPublic(ctx, excluded, e.params.MaxCandidates)
		},
		fallback: func(ctx context.Context) ([]*Post, error) {
			// Keep excluding the viewer's own posts; explore never shows
			// the viewer to themselves.
			return e.posts.ListRecentPublic(ctx, []string{viewerID}, e.params.MaxCandidates)
		},
		minResults: exploreWidenThreshold,
		logger:     e.logger,
		metrics:    e.metrics,
	}
}
