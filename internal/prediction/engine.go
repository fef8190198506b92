// Package prediction produces longitudinal forecasts at fixed report weeks
// and detects treatment milestones from them.
package prediction

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/curve"
	"github.com/hyperengineering/digitaltwin/internal/types"
)

// DefaultWeeks is the standard forecast horizon list.
var DefaultWeeks = []int{2, 4, 8, 12, 24}

// ValidateWeeks checks that weeks is non-empty, positive, and strictly
// ascending.
func ValidateWeeks(weeks []int) error {
	if len(weeks) == 0 {
		return errors.New("prediction weeks must not be empty")
	}
	for i, w := range weeks {
		if w <= 0 {
			return fmt.Errorf("prediction week %d must be positive", w)
		}
		if i > 0 && w <= weeks[i-1] {
			return fmt.Errorf("prediction weeks must be strictly ascending: %d after %d", w, weeks[i-1])
		}
	}
	return nil
}

// Engine samples fitted curves at the configured forecast weeks.
type Engine struct {
	curves *curve.Engine
	weeks  []int
}

// NewEngine creates a prediction engine over the given curve engine.
func NewEngine(c *curve.Engine, weeks []int) (*Engine, error) {
	if c == nil {
		return nil, errors.New("curve engine is required")
	}
	if err := ValidateWeeks(weeks); err != nil {
		return nil, err
	}
	w := make([]int, len(weeks))
	copy(w, weeks)
	return &Engine{curves: c, weeks: w}, nil
}

// Weeks returns a copy of the forecast weeks.
func (e *Engine) Weeks() []int {
	w := make([]int, len(e.weeks))
	copy(w, e.weeks)
	return w
}

// Horizon returns the final forecast week.
func (e *Engine) Horizon() int {
	return e.weeks[len(e.weeks)-1]
}

// GeneratePredictions fits curves for the assessment and samples them at
// every forecast week. Callers must have established data sufficiency
// already; a nil assessment is rejected with ErrInsufficientData.
func (e *Engine) GeneratePredictions(assessment *types.BaselineData, history []types.CalibrationEntry, asOf time.Time) (*types.LongitudinalPredictions, error) {
	fit, err := e.curves.Fit(assessment, history, asOf)
	if err != nil {
		return nil, err
	}
	if len(fit.Failures) > 0 {
		return nil, fmt.Errorf("fit %s: %w", fit.Failures[0].Metric, fit.Failures[0].Err)
	}
	return e.FromCurves(fit.Curves)
}

// FromCurves samples already-fitted curves at week 0 and every forecast week.
func (e *Engine) FromCurves(curves []curve.Curve) (*types.LongitudinalPredictions, error) {
	preds := &types.LongitudinalPredictions{
		Weeks:     e.Weeks(),
		Baseline:  make(map[types.Metric]types.MetricPrediction, len(curves)),
		Timepoint: make(map[types.Metric][]types.PredictionTimepoint, len(curves)),
	}

	for _, c := range curves {
		base, err := e.curves.GeneratePrediction(c.Params, 0)
		if err != nil {
			return nil, fmt.Errorf("predict %s week 0: %w", c.Metric, err)
		}
		points := make([]types.PredictionTimepoint, 0, len(e.weeks))
		for _, w := range e.weeks {
			p, err := e.curves.GeneratePrediction(c.Params, w)
			if err != nil {
				return nil, fmt.Errorf("predict %s week %d: %w", c.Metric, w, err)
			}
			points = append(points, p)
		}
		preds.Metrics = append(preds.Metrics, c.Metric)
		preds.Baseline[c.Metric] = base
		preds.Timepoint[c.Metric] = points
	}

	if err := ValidatePredictions(preds); err != nil {
		return nil, err
	}
	return preds, nil
}

// CalculateMilestones emits, per metric, the first forecast week whose
// severity level is at least one better than week 0. Metrics that never
// improve emit nothing. Output is sorted by week, then by metric order.
func CalculateMilestones(preds *types.LongitudinalPredictions) []types.TreatmentMilestone {
	if preds == nil {
		return nil
	}
	var milestones []types.TreatmentMilestone
	for _, m := range preds.Metrics {
		base, ok := preds.Baseline[m]
		if !ok {
			continue
		}
		for _, p := range preds.Timepoint[m] {
			if p.SeverityLevel < base.SeverityLevel {
				milestones = append(milestones, types.TreatmentMilestone{
					Week:      p.Week,
					Metric:    m,
					FromLabel: base.Interpretation,
					ToLabel:   p.Interpretation,
				})
				break
			}
		}
	}

	order := make(map[types.Metric]int, len(preds.Metrics))
	for i, m := range preds.Metrics {
		order[m] = i
	}
	sort.SliceStable(milestones, func(i, j int) bool {
		if milestones[i].Week != milestones[j].Week {
			return milestones[i].Week < milestones[j].Week
		}
		return order[milestones[i].Metric] < order[milestones[j].Metric]
	})
	return milestones
}
