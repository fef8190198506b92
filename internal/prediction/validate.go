package prediction

import (
	"fmt"
	"math"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

// ValidatePredictions asserts the structural invariants of a forecast:
// every metric has one timepoint per week in ascending order, values and
// bounds are finite and within [0,100], and low <= value <= high.
// Violations are defects and classify as ErrInvariantViolation.
func ValidatePredictions(preds *types.LongitudinalPredictions) error {
	if preds == nil {
		return fmt.Errorf("nil predictions: %w", types.ErrInvariantViolation)
	}
	for _, m := range preds.Metrics {
		if base, ok := preds.Baseline[m]; ok {
			if err := checkPoint(base); err != nil {
				return err
			}
		}
		points := preds.Timepoint[m]
		if len(points) != len(preds.Weeks) {
			return fmt.Errorf("%s has %d timepoints for %d weeks: %w", m, len(points), len(preds.Weeks), types.ErrInvariantViolation)
		}
		for i, p := range points {
			if p.Week != preds.Weeks[i] {
				return fmt.Errorf("%s timepoint %d is week %d, want %d: %w", m, i, p.Week, preds.Weeks[i], types.ErrInvariantViolation)
			}
			if i > 0 && p.Week <= points[i-1].Week {
				return fmt.Errorf("%s weeks not ascending at %d: %w", m, p.Week, types.ErrInvariantViolation)
			}
			if err := checkPoint(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkPoint(p types.MetricPrediction) error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"value", p.Value},
		{"confidence_low", p.ConfidenceLow},
		{"confidence_high", p.ConfidenceHigh},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 || f.v > 100 {
			return &types.InvariantError{Metric: p.Metric, Field: fmt.Sprintf("%s@%d", f.name, p.Week), Value: f.v, Min: 0, Max: 100}
		}
	}
	if p.ConfidenceLow > p.Value || p.Value > p.ConfidenceHigh {
		return &types.InvariantError{Metric: p.Metric, Field: fmt.Sprintf("value@%d", p.Week), Value: p.Value, Min: p.ConfidenceLow, Max: p.ConfidenceHigh}
	}
	return nil
}

// ValidateMilestones asserts milestones are sorted by week, at most one per
// metric, and each falls on a predicted week of a predicted metric.
func ValidateMilestones(milestones []types.TreatmentMilestone, preds *types.LongitudinalPredictions) error {
	if preds == nil {
		return fmt.Errorf("nil predictions: %w", types.ErrInvariantViolation)
	}
	seen := make(map[types.Metric]bool)
	for i, ms := range milestones {
		if i > 0 && ms.Week < milestones[i-1].Week {
			return fmt.Errorf("milestones not sorted at week %d: %w", ms.Week, types.ErrInvariantViolation)
		}
		if seen[ms.Metric] {
			return fmt.Errorf("duplicate milestone for %s: %w", ms.Metric, types.ErrInvariantViolation)
		}
		seen[ms.Metric] = true

		found := false
		for _, p := range preds.Timepoint[ms.Metric] {
			if p.Week == ms.Week {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("milestone week %d not predicted for %s: %w", ms.Week, ms.Metric, types.ErrInvariantViolation)
		}
	}
	return nil
}
