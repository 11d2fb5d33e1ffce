package ranking

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultWeights verifies the default profiles carry sane values.
func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()

	surfaces := map[string]SurfaceWeights{
		"home":    w.Home,
		"explore": w.Explore,
		"search":  w.Search,
	}

	for name, sw := range surfaces {
		if sw.NegativeFeedback >= 0 {
			t.Errorf("%s: negative feedback weight should be negative, got %f", name, sw.NegativeFeedback)
		}
		if sw.DiversityRunCap != 3 {
			t.Errorf("%s: expected diversity run cap 3, got %d", name, sw.DiversityRunCap)
		}
		if sw.DiversityPenalty != 0.9 {
			t.Errorf("%s: expected diversity penalty 0.9, got %f", name, sw.DiversityPenalty)
		}
		positive := sw.Relationship + sw.Engagement + sw.Personalization + sw.Recency
		if positive <= 0.9 || positive > 1.1 {
			t.Errorf("%s: positive weights should roughly sum to 1.0, got %f", name, positive)
		}
	}

	// Home leans on relationship; explore must not.
	if w.Home.Relationship <= w.Explore.Relationship {
		t.Error("home should weight relationship more heavily than explore")
	}
}

// TestLoadCalibration_MissingFile verifies graceful degradation to defaults.
func TestLoadCalibration_MissingFile(t *testing.T) {
	w, err := LoadCalibration("/nonexistent/calibration.json")
	if err == nil {
		t.Error("expected error for missing file")
	}
	if w == nil {
		t.Fatal("expected default weights, got nil")
	}
	if w.Home != DefaultWeights().Home {
		t.Error("expected default home weights on load failure")
	}
}

// TestLoadCalibration_EmptyPath returns defaults without error.
func TestLoadCalibration_EmptyPath(t *testing.T) {
	w, err := LoadCalibration("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *w != *DefaultWeights() {
		t.Error("expected default weights for empty path")
	}
}

// TestLoadCalibration_PartialOverride verifies partial files merge over defaults.
func TestLoadCalibration_PartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.json")

	content := `{
		"version": "2",
		"weights": {
			"home": {"relationship": 0.5, "diversity_run_cap": 2},
			"explore": {"recency": 0.5}
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write calibration file: %v", err)
	}

	w, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if w.Home.Relationship != 0.5 {
		t.Errorf("expected overridden home relationship 0.5, got %f", w.Home.Relationship)
	}
	if w.Home.DiversityRunCap != 2 {
		t.Errorf("expected overridden run cap 2, got %d", w.Home.DiversityRunCap)
	}
	// Untouched fields keep defaults.
	if w.Home.Engagement != DefaultWeights().Home.Engagement {
		t.Errorf("expected default home engagement, got %f", w.Home.Engagement)
	}
	if w.Explore.Recency != 0.5 {
		t.Errorf("expected overridden explore recency 0.5, got %f", w.Explore.Recency)
	}
	if w.Search != DefaultWeights().Search {
		t.Error("search profile should be untouched by partial override")
	}
}

// TestLoadCalibration_MalformedJSON degrades to defaults with an error.
func TestLoadCalibration_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	w, err := LoadCalibration(path)
	if err == nil {
		t.Error("expected parse error")
	}
	if w == nil || *w != *DefaultWeights() {
		t.Error("expected default weights on parse failure")
	}
}

// TestMergeCalibration_NilHandling tests nil base and override guards.
func TestMergeCalibration_NilHandling(t *testing.T) {
	if w := MergeCalibration(nil, nil); *w != *DefaultWeights() {
		t.Error("nil base should fall back to defaults")
	}

	base := DefaultWeights()
	merged := MergeCalibration(base, nil)
	if *merged != *base {
		t.Error("nil override should return a copy of base")
	}
	merged.Home.Relationship = 99
	if base.Home.Relationship == 99 {
		t.Error("merge result must be a copy, not an alias of base")
	}
}
