package ranking

import (
	"math"
)

// Relation describes the follow-graph relationship between a viewer and a
// post author, from the viewer's perspective.
type Relation int

const (
	// RelationNone means neither side follows the other.
	RelationNone Relation = iota
	// RelationFollows means at least one side follows the other.
	RelationFollows
	// RelationMutual means both sides follow each other.
	RelationMutual
	// RelationSelf means the viewer is the author.
	RelationSelf
)

// Base relationship scores per relation tier.
const (
	relationshipSelf    = 1.0
	relationshipMutual  = 0.9
	relationshipFollows = 0.7
	relationshipNone    = 0.1

	// relationshipCeiling caps all non-self relationship scores so that a
	// heavily-interacted-with stranger never outranks the viewer's own posts.
	relationshipCeiling = 0.95

	// relationshipBoostCap caps the interaction boost added on top of the
	// relation-tier base.
	relationshipBoostCap = 0.25
)

// InteractionBoost computes the relationship boost earned from the viewer's
// recent reactions and comments on an author's posts.
// Formula: min(0.02*reactions + 0.05*comments, 0.25)
func InteractionBoost(reactions, comments int64) float64 {
	boost := 0.02*float64(reactions) + 0.05*float64(comments)
	if boost > relationshipBoostCap {
		boost = relationshipBoostCap
	}
	return boost
}

// RelationshipScore computes the social-graph proximity signal in [0, 1].
// A viewer's own posts always score exactly 1.0. All other tiers start from
// a fixed base and add the interaction boost, clamped to 0.95.
func RelationshipScore(relation Relation, boost float64) float64 {
	if relation == RelationSelf {
		return relationshipSelf
	}

	var base float64
	switch relation {
	case RelationMutual:
		base = relationshipMutual
	case RelationFollows:
		base = relationshipFollows
	default:
		base = relationshipNone
	}

	score := base + boost
	if score > relationshipCeiling {
		score = relationshipCeiling
	}
	return score
}

// EngagementScore computes the engagement-velocity signal in [0, 1].
// Raw engagement is weighted (2x reactions, 3x comments, 0.1x views), then
// divided by an age-normalization factor of max(1, hours/24) and scaled down
// by 10 before clamping. Velocity, not raw totals: a recent post with modest
// engagement outranks an old post with large but stale totals.
func EngagementScore(reactions, comments, views int64, hoursSincePost float64) float64 {
	raw := 2.0*float64(reactions) + 3.0*float64(comments) + 0.1*float64(views)

	ageNorm := hoursSincePost / 24.0
	if ageNorm < 1.0 {
		ageNorm = 1.0
	}

	return clamp01(raw / ageNorm / 10.0)
}

// Personalization defaults for posts that carry no usable topic signal.
const (
	// personalizationUntagged keeps untagged posts from being starved.
	personalizationUntagged = 0.3
	// personalizationNoMatch applies when a post's tags miss the profile.
	personalizationNoMatch = 0.2
)

// PersonalizationScore computes the topical-interest signal in [0, 1] by
// matching a post's tags against the viewer's interest profile.
// Untagged posts score a mild 0.3 default; tagged posts with no profile
// overlap score 0.2; otherwise the matched tag weights are averaged and
// scaled down by 10.
func PersonalizationScore(tags []string, profile map[string]float64) float64 {
	if len(tags) == 0 {
		return personalizationUntagged
	}

	var sum float64
	var matched int
	for _, tag := range tags {
		if weight, ok := profile[tag]; ok {
			sum += weight
			matched++
		}
	}

	if matched == 0 {
		return personalizationNoMatch
	}

	return clamp01(sum / float64(matched) / 10.0)
}

// DefaultRecencyHalfLifeHours is the default half-life for the recency decay.
const DefaultRecencyHalfLifeHours = 24.0

// RecencyScore computes the time-decay signal in [0, 1].
// Formula: exp(-hours_since_post / half_life). The score is exactly 1.0 for
// a brand-new post and strictly decreasing with age; it never goes negative.
func RecencyScore(hoursSincePost, halfLifeHours float64) float64 {
	if halfLifeHours <= 0 {
		halfLifeHours = DefaultRecencyHalfLifeHours
	}
	if hoursSincePost < 0 {
		hoursSincePost = 0
	}

	return clamp01(math.Exp(-hoursSincePost / halfLifeHours))
}

// GlobalReportThreshold is the number of reports, from any users, at which a
// post earns a global negative-feedback penalty regardless of the viewer.
const GlobalReportThreshold = 5

// NegativeFeedbackScore computes the suppression signal in [-1, 0].
// A viewer who hid, reported, or marked the post not-interested forces -1.0;
// a post with at least GlobalReportThreshold reports from anyone scores -0.5;
// otherwise 0. This is the only signal allowed to be negative.
func NegativeFeedbackScore(viewerFlagged bool, reportCount int64) float64 {
	if viewerFlagged {
		return -1.0
	}
	if reportCount >= GlobalReportThreshold {
		return -0.5
	}
	return 0.0
}

// SuppressionThreshold is the unfloored negative-feedback score at or below
// which a post is removed from the result entirely.
const SuppressionThreshold = -0.5

// SignalValues holds the five raw per-post signals feeding a composite score.
type SignalValues struct {
	Relationship     float64 // Social-graph proximity [0, 1]
	Engagement       float64 // Engagement velocity [0, 1]
	Personalization  float64 // Topical interest [0, 1]
	Recency          float64 // Time decay [0, 1]
	NegativeFeedback float64 // Suppression signal [-1, 0]
}

// Suppressed reports whether the unfloored negative-feedback signal removes
// the post from consideration regardless of its other scores.
func (v SignalValues) Suppressed() bool {
	return v.NegativeFeedback <= SuppressionThreshold
}

// CompositeScore computes the final weighted score for one candidate.
// Every signal, including negative feedback, is floored at 0 before
// weighting, so the (negative) negative-feedback coefficient can never boost
// a post through double negation. Exclusion of severely flagged posts happens
// via SignalValues.Suppressed, not via this term.
func CompositeScore(v SignalValues, w SurfaceWeights) float64 {
	return w.Relationship*floor0(v.Relationship) +
		w.Engagement*floor0(v.Engagement) +
		w.Personalization*floor0(v.Personalization) +
		w.Recency*floor0(v.Recency) +
		w.NegativeFeedback*floor0(v.NegativeFeedback)
}

// clamp01 clamps a value to the [0, 1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// floor0 floors a value at 0.
func floor0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
