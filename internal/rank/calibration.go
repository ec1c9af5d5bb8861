package rank

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Weights defines the scoring weights for the in-process ranker. The
// components are expected to be normalized to [0, 1]; boosts are applied
// additively on top of the weighted sum.
type Weights struct {
	TextMatch float64 `json:"text_match"` // Weight for text relevance (default: 0.7)
	Fairness  float64 `json:"fairness"`   // Weight for seeded fairness score (default: 0.3)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// DefaultWeights returns the default scoring weight configuration.
// Text match dominates so targeted queries stay targeted; the fairness
// term keeps exposure spread across equally relevant listings.
func DefaultWeights() *Weights {
	return &Weights{
		TextMatch: 0.7,
		Fairness:  0.3,
	}
}

// LoadCalibration loads scoring weights from a JSON calibration file.
// Partial configurations are merged with defaults; on any error the
// defaults are returned alongside the error so callers can degrade
// gracefully.
func LoadCalibration(filePath string) (*Weights, error) {
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

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with base weights. Only
// non-zero override values are applied, which allows partial overrides in
// the calibration file.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base
	if override.TextMatch != 0 {
		result.TextMatch = override.TextMatch
	}
	if override.Fairness != 0 {
		result.Fairness = override.Fairness
	}
	return &result
}

func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.TextMatch != defaults.TextMatch {
		overrides = append(overrides, fmt.Sprintf("text_match: %.2f -> %.2f",
			defaults.TextMatch, loaded.TextMatch))
	}
	if loaded.Fairness != defaults.Fairness {
		overrides = append(overrides, fmt.Sprintf("fairness: %.2f -> %.2f",
			defaults.Fairness, loaded.Fairness))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides", "overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
