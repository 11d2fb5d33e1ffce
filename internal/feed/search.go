package feed

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/driftline/driftline/internal/tracing"
)

// Text relevance scoring constants.
const (
	// substringBaseRelevance is awarded for any case-insensitive substring hit.
	substringBaseRelevance = 0.8
	// repeatRelevanceStep is added per occurrence beyond the first.
	repeatRelevanceStep = 0.1
	// hashtagExactRelevance is the floor for an exact hashtag match.
	hashtagExactRelevance = 0.9
)

// Blend weights for the final search score. Text match dominates so a
// strong textual hit from a stranger still outranks a weak hit from a
// followee.
const (
	// TextBlendWeight scales the text relevance component.
	TextBlendWeight = 0.6
	// SocialBlendWeight scales the social composite component.
	SocialBlendWeight = 0.4
)

// TextRelevance scores how well a post's text matches a query, in [0, 1].
// Any case-insensitive substring occurrence scores the base relevance, with
// a small bonus per repeat occurrence. A query in hashtag form that exactly
// matches one of the post's hashtags scores at least the hashtag floor.
// A post with no occurrence scores zero.
func TextRelevance(query string, post *Post) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || post == nil {
		return 0
	}

	text := strings.ToLower(post.Text)

	score := 0.0
	if count := strings.Count(text, query); count > 0 {
		score = substringBaseRelevance + repeatRelevanceStep*float64(count-1)
	}

	if strings.HasPrefix(query, "#") && len(query) > 1 {
		for _, t := range ExtractTags(post.Text) {
			if t == query && score < hashtagExactRelevance {
				score = hashtagExactRelevance
				break
			}
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// RankSearchResults re-ranks text-matched posts for a viewer. The matches
// are scored for text relevance, the strongest matches (up to the candidate
// cap) run through the social scoring pipeline with the search weight set,
// and the final ordering blends both: text relevance weighted at
// TextBlendWeight and the social composite at SocialBlendWeight. Posts with
// no textual occurrence of the query and posts carrying moderation labels
// are dropped before any social scoring.
func (e *Engine) RankSearchResults(ctx context.Context, viewerID, query string, matches []*Post, page, limit int) (*FeedPage, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "rank_search_results")
	defer endSpan(nil)
	tracing.SetAttributes(ctx,
		attribute.Int("search.matches", len(matches)),
		attribute.Int("feed.page", page))

	start := time.Now()
	page, limit = normalizePage(page, limit)

	ctx, cancel := context.WithTimeout(ctx, e.params.Timeout)
	defer cancel()

	candidates, textScores := e.searchCandidates(query, matches)
	e.metrics.ObservePoolSize(SurfaceSearch, len(candidates))

	ranked := e.scoreAndOrder(ctx, SurfaceSearch, viewerID, candidates, e.weights.Search)

	for _, rp := range ranked {
		rp.Score = TextBlendWeight*textScores[rp.Post.ID] + SocialBlendWeight*rp.Score
	}
	sortRanked(ranked)
	EnforceDiversity(ranked, e.weights.Search.DiversityRunCap, e.weights.Search.DiversityPenalty)

	status := StatusSuccess
	if ctx.Err() != nil {
		status = StatusPartial
	}
	e.metrics.IncRankCalls(SurfaceSearch, status)
	e.metrics.ObserveRankDuration(SurfaceSearch, time.Since(start).Seconds())
	e.logger.Debug("search ranking complete",
		"viewer_id", viewerID,
		"matches", len(matches),
		"candidates", len(candidates),
		"ranked", len(ranked),
		"status", status)

	return &FeedPage{
		Posts: paginate(ranked, page, limit),
		Page:  page,
		Limit: limit,
	}, nil
}

// searchCandidates filters matches down to scoreable search candidates:
// moderation-labeled posts are excluded, zero-relevance posts are dropped,
// and the survivors are ordered by text relevance descending (ties by input
// order) before the candidate cap applies. Returns the candidate slice and
// a post-ID index of text relevance scores.
func (e *Engine) searchCandidates(query string, matches []*Post) ([]*Post, map[string]float64) {
	type scoredMatch struct {
		post      *Post
		relevance float64
		index     int
	}

	scored := make([]scoredMatch, 0, len(matches))
	for i, p := range matches {
		if p == nil || p.HasLabel(LabelHidden) || p.HasLabel(LabelSpam) || p.HasLabel(LabelFlagged) {
			continue
		}
		relevance := TextRelevance(query, p)
		if relevance <= 0 {
			continue
		}
		scored = append(scored, scoredMatch{post: p, relevance: relevance, index: i})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].relevance != scored[j].relevance {
			return scored[i].relevance > scored[j].relevance
		}
		return scored[i].index < scored[j].index
	})

	if len(scored) > e.params.MaxCandidates {
		scored = scored[:e.params.MaxCandidates]
	}

	candidates := make([]*Post, len(scored))
	textScores := make(map[string]float64, len(scored))
	for i, sm := range scored {
		candidates[i] = sm.post
		textScores[sm.post.ID] = sm.relevance
	}
	return candidates, textScores
}
