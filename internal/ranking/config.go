package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// SurfaceWeights defines the ranking coefficients for one feed surface.
// The five signal weights are applied in CompositeScore; DiversityPenalty and
// DiversityRunCap tune the post-sort same-author penalty pass.
type SurfaceWeights struct {
	Relationship     float64 `json:"relationship"`      // Weight for social-graph proximity
	Engagement       float64 `json:"engagement"`        // Weight for engagement velocity
	Personalization  float64 `json:"personalization"`   // Weight for topical interest
	Recency          float64 `json:"recency"`           // Weight for time decay
	NegativeFeedback float64 `json:"negative_feedback"` // Weight for suppression; negative by convention
	DiversityPenalty float64 `json:"diversity_penalty"` // Multiplier applied to runs of same-author posts
	DiversityRunCap  int     `json:"diversity_run_cap"` // Consecutive same-author posts before penalizing
}

// Weights holds the ranking weight configuration for all feed surfaces.
type Weights struct {
	Home    SurfaceWeights `json:"home"`    // Followed-graph feed weights
	Explore SurfaceWeights `json:"explore"` // Discovery feed weights
	Search  SurfaceWeights `json:"search"`  // Post-search re-ranking weights
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configurations
}

// DefaultWeights returns the default ranking weight configuration.
//
// Home prioritizes who the viewer knows: relationship dominates, with recency
// keeping the feed fresh. Explore de-emphasizes relationship (candidates are
// strangers by construction) in favor of engagement velocity and topical
// interest. Search leans on recency and engagement since textual relevance is
// blended in separately after the social score is computed.
//
// The negative-feedback weight is negative in every profile; combined with
// the floor-at-zero inside CompositeScore it contributes nothing to the sum
// and exists so calibration files can tune it without a code change.
func DefaultWeights() *Weights {
	return &Weights{
		Home: SurfaceWeights{
			Relationship:     0.35,
			Engagement:       0.20,
			Personalization:  0.15,
			Recency:          0.30,
			NegativeFeedback: -1.0,
			DiversityPenalty: 0.9,
			DiversityRunCap:  3,
		},
		Explore: SurfaceWeights{
			Relationship:     0.05,
			Engagement:       0.30,
			Personalization:  0.30,
			Recency:          0.35,
			NegativeFeedback: -1.0,
			DiversityPenalty: 0.9,
			DiversityRunCap:  3,
		},
		Search: SurfaceWeights{
			Relationship:     0.15,
			Engagement:       0.25,
			Personalization:  0.20,
			Recency:          0.40,
			NegativeFeedback: -1.0,
			DiversityPenalty: 0.9,
			DiversityRunCap:  3,
		},
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// If the file doesn't exist or can't be read, returns default weights with an
// error. Partial configurations are merged with defaults for graceful
// degradation.
//
// Parameters:
//   - filePath: Path to the calibration JSON file
//
// Returns the loaded weights and any error encountered.
// On error, returns default weights to ensure graceful degradation.
func LoadCalibration(filePath string) (*Weights, error) {
	// Return defaults if no file path provided
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	// Merge loaded weights with defaults to handle partial configurations
	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with default weights.
// Only non-zero values from the override are applied, which allows partial
// overrides in the calibration file. A zero coefficient cannot be expressed
// in the file; disable a signal by setting a negligible value instead.
//
// Parameters:
//   - base: The base weights to start from (typically defaults)
//   - override: The override weights to merge in
//
// Returns a new Weights struct with merged values.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	// Guard against nil base to avoid panics; fall back to defaults.
	if base == nil {
		return DefaultWeights()
	}

	// If there is no override provided, return a copy of the base.
	if override == nil {
		result := *base
		return &result
	}

	result := *base // Copy base
	result.Home = mergeSurface(base.Home, override.Home)
	result.Explore = mergeSurface(base.Explore, override.Explore)
	result.Search = mergeSurface(base.Search, override.Search)

	return &result
}

// mergeSurface applies non-zero override fields over a base surface profile.
func mergeSurface(base, override SurfaceWeights) SurfaceWeights {
	result := base
	if override.Relationship != 0 {
		result.Relationship = override.Relationship
	}
	if override.Engagement != 0 {
		result.Engagement = override.Engagement
	}
	if override.Personalization != 0 {
		result.Personalization = override.Personalization
	}
	if override.Recency != 0 {
		result.Recency = override.Recency
	}
	if override.NegativeFeedback != 0 {
		result.NegativeFeedback = override.NegativeFeedback
	}
	if override.DiversityPenalty != 0 {
		result.DiversityPenalty = override.DiversityPenalty
	}
	if override.DiversityRunCap != 0 {
		result.DiversityRunCap = override.DiversityRunCap
	}
	return result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string
	overrides = append(overrides, surfaceOverrides("home", defaults.Home, loaded.Home)...)
	overrides = append(overrides, surfaceOverrides("explore", defaults.Explore, loaded.Explore)...)
	overrides = append(overrides, surfaceOverrides("search", defaults.Search, loaded.Search)...)

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}

// surfaceOverrides describes the differences between two surface profiles.
func surfaceOverrides(surface string, defaults, loaded SurfaceWeights) []string {
	var overrides []string
	diff := func(field string, before, after float64) {
		if before != after {
			overrides = append(overrides, fmt.Sprintf("%s.%s: %.2f -> %.2f", surface, field, before, after))
		}
	}
	diff("relationship", defaults.Relationship, loaded.Relationship)
	diff("engagement", defaults.Engagement, loaded.Engagement)
	diff("personalization", defaults.Personalization, loaded.Personalization)
	diff("recency", defaults.Recency, loaded.Recency)
	diff("negative_feedback", defaults.NegativeFeedback, loaded.NegativeFeedback)
	diff("diversity_penalty", defaults.DiversityPenalty, loaded.DiversityPenalty)
	if defaults.DiversityRunCap != loaded.DiversityRunCap {
		overrides = append(overrides, fmt.Sprintf("%s.diversity_run_cap: %d -> %d", surface, defaults.DiversityRunCap, loaded.DiversityRunCap))
	}
	return overrides
}
