// Package ranking provides centralized feed ranking component calculations
// with calibration support for the home, explore, and search surfaces.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	// Calculate per-post signals
//	signals := ranking.SignalValues{
//		Relationship:     ranking.RelationshipScore(ranking.RelationMutual, boost),
//		Engagement:       ranking.EngagementScore(reactions, comments, views, hoursSincePost),
//		Personalization:  ranking.PersonalizationScore(tags, profile),
//		Recency:          ranking.RecencyScore(hoursSincePost, halfLifeHours),
//		NegativeFeedback: ranking.NegativeFeedbackScore(viewerFlagged, reportCount),
//	}
//	score := ranking.CompositeScore(signals, weights.Home)
//
// Signal Functions:
//
// All signal functions return values in the [0, 1] range except
// NegativeFeedbackScore, which returns values in [-1, 0]. Inside
// CompositeScore every signal is floored at 0 before weighting; the raw
// (unfloored) negative-feedback value is used separately by callers to
// exclude severely flagged posts from the result entirely.
//
// Calibration:
//
// The calibration system allows deploy-time tuning of ranking weights via
// JSON configuration files loaded at startup. This enables A/B testing and
// optimization without code changes (but requires a redeploy or restart to
// pick up new configuration). See configs/ranking.calibration.json for the
// default configuration.
package ranking
