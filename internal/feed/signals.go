package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/driftline/driftline/internal/ranking"
)

// Signal computation windows. These are static configuration, tunable via
// Params but never mutated at runtime.
const (
	// DefaultRelationshipWindow bounds the interaction-boost lookback.
	DefaultRelationshipWindow = 30 * 24 * time.Hour
	// DefaultEngagementWindow bounds the engagement counts from post creation.
	DefaultEngagementWindow = 7 * 24 * time.Hour
)

// Scorer computes the five per-post signals from the storage collaborators.
// Every lookup is fail-open: a storage error yields the signal's neutral
// value and is logged, never surfaced to the ranking caller.
type Scorer struct {
	follows      FollowStore
	interactions InteractionStore
	negatives    NegativeSignalStore

	relationshipWindow time.Duration
	engagementWindow   time.Duration
	recencyHalfLife    float64

	logger *slog.Logger
	now    func() time.Time
}

// NewScorer creates a signal scorer over the given stores.
func NewScorer(follows FollowStore, interactions InteractionStore, negatives NegativeSignalStore, params Params, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		follows:            follows,
		interactions:       interactions,
		negatives:          negatives,
		relationshipWindow: params.RelationshipWindow,
		engagementWindow:   params.EngagementWindow,
		recencyHalfLife:    params.RecencyHalfLifeHours,
		logger:             logger,
		now:                time.Now,
	}
}

// Relationship computes the social-graph proximity signal for a viewer and
// author. Self-authored posts score exactly 1.0. An anonymous viewer has no
// graph, so the no-relation base applies with no boost.
func (s *Scorer) Relationship(ctx context.Context, viewerID, authorID string) float64 {
	if viewerID == authorID && viewerID != AnonymousViewer {
		return ranking.RelationshipScore(ranking.RelationSelf, 0)
	}
	if viewerID == AnonymousViewer {
		return ranking.RelationshipScore(ranking.RelationNone, 0)
	}

	relation := ranking.RelationNone
	viewerFollows, err := s.follows.IsFollowing(ctx, viewerID, authorID)
	if err != nil {
		s.logger.Warn("relationship lookup degraded", "viewer_id", viewerID, "author_id", authorID, "error", err)
		viewerFollows = false
	}
	authorFollows, err := s.follows.IsFollowing(ctx, authorID, viewerID)
	if err != nil {
		authorFollows = false
	}

	switch {
	case viewerFollows && authorFollows:
		relation = ranking.RelationMutual
	case viewerFollows || authorFollows:
		relation = ranking.RelationFollows
	}

	var boost float64
	since := s.now().Add(-s.relationshipWindow)
	counts, err := s.interactions.CountsByUserForAuthor(ctx, viewerID, authorID, since)
	if err != nil {
		s.logger.Debug("interaction boost degraded to zero", "viewer_id", viewerID, "author_id", authorID, "error", err)
	} else {
		boost = ranking.InteractionBoost(counts.Reactions, counts.Comments)
	}

	return ranking.RelationshipScore(relation, boost)
}

// Engagement computes the engagement-velocity signal for a post, counting
// interactions within the engagement window from post creation. The counts
// are returned alongside the score for response enrichment.
func (s *Scorer) Engagement(ctx context.Context, post *Post) (float64, PostCounts) {
	since := post.CreatedAt
	if cutoff := s.now().Add(-s.engagementWindow); cutoff.After(since) {
		since = cutoff
	}

	counts, err := s.interactions.CountsForPost(ctx, post.ID, since)
	if err != nil {
		s.logger.Debug("engagement counts degraded to zero", "post_id", post.ID, "error", err)
		return 0, PostCounts{}
	}

	hours := s.now().Sub(post.CreatedAt).Hours()
	return ranking.EngagementScore(counts.Reactions, counts.Comments, counts.Views, hours), counts
}

// Personalization computes the topical-interest signal by matching the
// post's tags against the viewer's interest profile.
func (s *Scorer) Personalization(post *Post, profile InterestProfile) float64 {
	return ranking.PersonalizationScore(ExtractTags(post.Text), profile)
}

// Recency computes the exponential time-decay signal for a post.
func (s *Scorer) Recency(post *Post) float64 {
	hours := s.now().Sub(post.CreatedAt).Hours()
	return ranking.RecencyScore(hours, s.recencyHalfLife)
}

// NegativeFeedback computes the suppression signal in [-1, 0] for a viewer
// and post. An anonymous viewer can still see globally-reported posts
// suppressed via the report threshold.
func (s *Scorer) NegativeFeedback(ctx context.Context, viewerID, postID string) float64 {
	var viewerFlagged bool
	if viewerID != AnonymousViewer {
		flagged, err := s.negatives.HasSignal(ctx, viewerID, postID)
		if err != nil {
			s.logger.Debug("negative signal lookup degraded", "viewer_id", viewerID, "post_id", postID, "error", err)
		} else {
			viewerFlagged = flagged
		}
	}

	reports, err := s.negatives.ReportCount(ctx, postID)
	if err != nil {
		s.logger.Debug("report count lookup degraded", "post_id", postID, "error", err)
		reports = 0
	}

	return ranking.NegativeFeedbackScore(viewerFlagged, reports)
}

// Score computes all five signals for one candidate.
func (s *Scorer) Score(ctx context.Context, viewerID string, post *Post, profile InterestProfile) (ranking.SignalValues, PostCounts) {
	engagement, counts := s.Engagement(ctx, post)
	return ranking.SignalValues{
		Relationship:     s.Relationship(ctx, viewerID, post.AuthorID),
		Engagement:       engagement,
		Personalization:  s.Personalization(post, profile),
		Recency:          s.Recency(post),
		NegativeFeedback: s.NegativeFeedback(ctx, viewerID, post.ID),
	}, counts
}
