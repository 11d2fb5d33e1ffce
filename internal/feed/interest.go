package feed

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

// Per-tag affinity weights accumulated into an interest profile, by
// interaction kind. A comment is a stronger interest signal than a reaction,
// which in turn beats a passive view.
const (
	interestReactionWeight = 2.0
	interestCommentWeight  = 3.0
	interestViewWeight     = 0.5
)

// DefaultInterestLookback is the default window of interactions considered
// when building an interest profile.
const DefaultInterestLookback = 30 * 24 * time.Hour

// ProfileBuilder derives a viewer's interest profile from their recent
// interaction history. Profiles are built fresh per ranking call; an
// optional cache may memoize them between calls.
type ProfileBuilder struct {
	posts        PostStore
	interactions InteractionStore
	cache        ProfileCache
	lookback     time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewProfileBuilder creates a profile builder. cache may be nil to disable
// memoization; lookback <= 0 falls back to the 30-day default.
func NewProfileBuilder(posts PostStore, interactions InteractionStore, cache ProfileCache, lookback time.Duration, logger *slog.Logger) *ProfileBuilder {
	if cache == nil {
		cache = NoopProfileCache{}
	}
	if lookback <= 0 {
		lookback = DefaultInterestLookback
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileBuilder{
		posts:        posts,
		interactions: interactions,
		cache:        cache,
		lookback:     lookback,
		logger:       logger,
		now:          time.Now,
	}
}

// Build returns the viewer's interest profile: topic tag -> accumulated
// affinity weight. Tags are extracted from the text of posts the viewer
// reacted to, commented on, or viewed within the lookback window, and
// weights are additive across events. No normalization happens here;
// normalization is applied at scoring time.
//
// Build never returns an error: any read failure degrades to an empty
// profile so personalization falls back to its neutral defaults.
func (b *ProfileBuilder) Build(ctx context.Context, viewerID string) InterestProfile {
	if viewerID == AnonymousViewer {
		return InterestProfile{}
	}

	if cached, ok := b.cache.Get(ctx, viewerID); ok {
		return cached
	}

	since := b.now().Add(-b.lookback)
	events, err := b.interactions.ListByUser(ctx, viewerID, since)
	if err != nil {
		b.logger.Warn("interest profile degraded to empty",
			"viewer_id", viewerID,
			"error", err)
		return InterestProfile{}
	}

	profile := InterestProfile{}
	for _, event := range events {
		var weight float64
		switch event.Kind {
		case InteractionReaction:
			weight = interestReactionWeight
		case InteractionComment:
			weight = interestCommentWeight
		case InteractionView:
			weight = interestViewWeight
		default:
			continue
		}

		post, err := b.posts.GetByID(ctx, event.PostID)
		if err != nil {
			// The post may have been deleted since the interaction; skip it
			// rather than failing the whole profile.
			continue
		}

		for _, tag := range ExtractTags(post.Text) {
			profile[tag] += weight
		}
	}

	b.cache.Set(ctx, viewerID, profile)
	return profile
}

// ExtractTags returns the case-folded hashtags found in text, one entry per
// occurrence. A tag is a '#' followed by letters, digits, or underscores.
func ExtractTags(text string) []string {
	var tags []string
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '#' {
			continue
		}

		end := i + 1
		for end < len(runes) && isTagRune(runes[end]) {
			end++
		}

		if end > i+1 {
			tags = append(tags, strings.ToLower(string(runes[i:end])))
		}
		i = end - 1
	}
	return tags
}

// isTagRune reports whether r may appear in a hashtag after the '#'.
func isTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
