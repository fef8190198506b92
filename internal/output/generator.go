// Package output assembles the DigitalTwinCurveOutput report: the baseline,
// endpoint, timeline, and chart-series views plus data-quality metadata.
package output

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/aggregator"
	"github.com/hyperengineering/digitaltwin/internal/curve"
	"github.com/hyperengineering/digitaltwin/internal/prediction"
	"github.com/hyperengineering/digitaltwin/internal/types"
)

// Config holds the report shape settings.
type Config struct {
	PredictionWeeks   []int
	ChartHorizonWeeks int
	// MinCalibrations gates analysis; below it no curve is produced.
	MinCalibrations int
	// FullConfidenceCalibrations is the history length below which a report
	// is marked partial for sparse history.
	FullConfidenceCalibrations int
}

// DefaultConfig returns the standard report shape.
func DefaultConfig() Config {
	return Config{
		PredictionWeeks:            prediction.DefaultWeeks,
		ChartHorizonWeeks:          24,
		MinCalibrations:            7,
		FullConfidenceCalibrations: 14,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := prediction.ValidateWeeks(c.PredictionWeeks); err != nil {
		return err
	}
	last := c.PredictionWeeks[len(c.PredictionWeeks)-1]
	if c.ChartHorizonWeeks < last {
		return fmt.Errorf("chart horizon (%d weeks) must cover the last prediction week (%d)", c.ChartHorizonWeeks, last)
	}
	if c.MinCalibrations < 1 {
		return errors.New("min calibrations must be at least 1")
	}
	if c.FullConfidenceCalibrations < c.MinCalibrations {
		return errors.New("full confidence calibrations must be >= min calibrations")
	}
	return nil
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the clock used for the GeneratedAt stamp.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// Generator produces curve reports. It holds no per-request state and is
// safe for concurrent use.
type Generator struct {
	curves      *curve.Engine
	predictions *prediction.Engine
	cfg         Config
	now         func() time.Time
}

// New creates a Generator over the curve engine.
func New(curves *curve.Engine, cfg Config, opts ...Option) (*Generator, error) {
	if curves == nil {
		return nil, errors.New("curve engine is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	preds, err := prediction.NewEngine(curves, cfg.PredictionWeeks)
	if err != nil {
		return nil, err
	}
	g := &Generator{curves: curves, predictions: preds, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the generator configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// GenerateCurveOutput builds the report for data. It never fails: when data
// is insufficient the predictive views are absent and the quality level is
// insufficient; when a computation fails the report degrades to partial with
// the failure listed among the quality issues.
func (g *Generator) GenerateCurveOutput(data *types.AggregatedUserData) *types.DigitalTwinCurveOutput {
	if data == nil {
		data = &types.AggregatedUserData{}
	}

	out := &types.DigitalTwinCurveOutput{
		Meta: types.OutputMeta{
			GeneratedAt:       g.now().UTC(),
			AsOf:              data.AsOf,
			SchemaVersion:     types.SchemaVersion,
			PredictionWeeks:   g.predictions.Weeks(),
			ChartHorizonWeeks: g.cfg.ChartHorizonWeeks,
			DataQuality: types.DataQuality{
				CalibrationCount: len(data.Calibrations),
				MalformedRecords: data.Malformed.Total(),
				TrackedMetrics:   []types.Metric{},
			},
		},
		Narrative: types.NarrativeAbsent(),
	}
	quality := &out.Meta.DataQuality

	out.Baseline = g.baselineView(data.Baseline, quality)

	status := aggregator.CheckSufficiency(data, g.cfg.MinCalibrations)
	if !status.Sufficient {
		quality.Level = types.QualityInsufficient
		for _, m := range status.Missing {
			quality.Issues = append(quality.Issues, types.QualityIssue{Code: m.Code, Detail: m.Detail})
		}
		return out
	}

	if err := g.predict(data, out); err != nil {
		slog.Error("curve computation failed",
			"component", "output",
			"user_id", data.UserID,
			"error", err,
		)
		clearPredictive(out)
		quality.Issues = append(quality.Issues, types.QualityIssue{
			Code:   types.IssueComputationError,
			Detail: err.Error(),
		})
	}

	g.gradeQuality(data, out)
	return out
}

// predict fills the predictive views. Panics inside the numeric pipeline
// are recovered and reported as errors.
func (g *Generator) predict(data *types.AggregatedUserData, out *types.DigitalTwinCurveOutput) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during curve generation: %v", r)
		}
	}()

	quality := &out.Meta.DataQuality

	fit, err := g.curves.Fit(data.Baseline, data.Calibrations, data.AsOf)
	if err != nil {
		return fmt.Errorf("fit curves: %w", err)
	}
	for _, f := range fit.Failures {
		quality.Issues = append(quality.Issues, types.QualityIssue{
			Code:   types.IssueComputationError,
			Metric: f.Metric,
			Detail: f.Err.Error(),
		})
	}
	if len(fit.Curves) == 0 {
		return errors.New("no metric could be fitted")
	}

	preds, err := g.predictions.FromCurves(fit.Curves)
	if err != nil {
		return fmt.Errorf("sample predictions: %w", err)
	}
	milestones := prediction.CalculateMilestones(preds)
	if err := prediction.ValidateMilestones(milestones, preds); err != nil {
		return fmt.Errorf("milestones: %w", err)
	}

	series := make(map[types.Metric][]types.ChartDataPoint, len(fit.Curves))
	endpoints := make(map[types.Metric]types.Endpoint, len(fit.Curves))
	horizon := g.predictions.Horizon()
	for _, c := range fit.Curves {
		points, err := g.chartSeries(c.Params)
		if err != nil {
			return fmt.Errorf("chart series %s: %w", c.Metric, err)
		}
		series[c.Metric] = points

		timepoints := preds.Timepoint[c.Metric]
		last := timepoints[len(timepoints)-1]
		endpoints[c.Metric] = types.Endpoint{
			Week:           last.Week,
			Value:          last.Value,
			RawScore:       last.RawScore,
			ConfidenceLow:  last.ConfidenceLow,
			ConfidenceHigh: last.ConfidenceHigh,
			Interpretation: last.Interpretation,
			Delta:          round2(last.Value - preds.Baseline[c.Metric].Value),
		}
		quality.TrackedMetrics = append(quality.TrackedMetrics, c.Metric)
	}

	params := fit.Params()
	summary := &types.Summary{
		OverallImprovement: g.curves.CalculateOverallImprovement(params, horizon),
		ConsistencyScore:   curve.CalculateConsistencyScore(data.Calibrations),
	}
	if days, ok := g.curves.CalculateDaysToFirstResult(params, horizon); ok {
		summary.DaysToFirstResult = &days
	}

	out.Series = series
	out.Endpoints = endpoints
	out.Timeline = milestones
	if out.Timeline == nil {
		out.Timeline = []types.TreatmentMilestone{}
	}
	out.Checkpoints = preds.Timepoint
	out.Summary = summary
	return nil
}

// chartSeries samples p weekly from 0 through the chart horizon.
func (g *Generator) chartSeries(p types.CurveParams) ([]types.ChartDataPoint, error) {
	points := make([]types.ChartDataPoint, 0, g.cfg.ChartHorizonWeeks+1)
	for w := 0; w <= g.cfg.ChartHorizonWeeks; w++ {
		mp, err := g.curves.GeneratePrediction(p, w)
		if err != nil {
			return nil, err
		}
		points = append(points, types.ChartDataPoint{
			Week:           w,
			Value:          mp.Value,
			ConfidenceLow:  mp.ConfidenceLow,
			ConfidenceHigh: mp.ConfidenceHigh,
		})
	}
	return points, nil
}

// baselineView renders the week-0 snapshot. Scores the engine cannot place
// are left out and reported as computation issues.
func (g *Generator) baselineView(b *types.BaselineData, quality *types.DataQuality) *types.BaselineView {
	if b == nil || len(b.Scores) == 0 {
		return nil
	}
	view := &types.BaselineView{
		AssessmentID: b.AssessmentID,
		AssessedAt:   b.AssessedAt,
		Metrics:      make(map[types.Metric]types.BaselineMetric, len(b.Scores)),
	}
	for _, m := range g.curves.Metrics() {
		score, ok := b.Scores[m]
		if !ok {
			continue
		}
		s, _ := g.curves.Scale(m)
		if !s.Contains(score.Score) {
			quality.Issues = append(quality.Issues, types.QualityIssue{
				Code:   types.IssueComputationError,
				Metric: m,
				Detail: fmt.Sprintf("baseline score %v outside %s range", score.Score, s.ID),
			})
			continue
		}
		view.Metrics[m] = types.BaselineMetric{
			Scale:          score.Scale,
			RawScore:       types.RawScore(score.Score),
			Week0Value:     round2(s.Normalize(score.Score)),
			Interpretation: s.Interpret(score.Score).Label,
		}
	}
	return view
}

// gradeQuality adds the partial-data issues and sets the final level.
func (g *Generator) gradeQuality(data *types.AggregatedUserData, out *types.DigitalTwinCurveOutput) {
	quality := &out.Meta.DataQuality

	if n := data.Malformed.Total(); n > 0 {
		quality.Issues = append(quality.Issues, types.QualityIssue{
			Code:   types.IssueMalformedRecords,
			Detail: fmt.Sprintf("%d stored records were skipped", n),
		})
	}
	for _, m := range g.curves.Metrics() {
		if !data.Baseline.Has(m) {
			quality.Issues = append(quality.Issues, types.QualityIssue{
				Code:   types.IssueMissingMetric,
				Metric: m,
				Detail: "no baseline score",
			})
		}
	}
	if n := len(data.Calibrations); n < g.cfg.FullConfidenceCalibrations {
		quality.Issues = append(quality.Issues, types.QualityIssue{
			Code:   types.IssueSparseHistory,
			Detail: fmt.Sprintf("%d of %d check-ins for full confidence", n, g.cfg.FullConfidenceCalibrations),
		})
	}

	if !out.HasPredictions() || len(quality.Issues) > 0 {
		quality.Level = types.QualityPartial
	} else {
		quality.Level = types.QualitySufficient
	}
}

func clearPredictive(out *types.DigitalTwinCurveOutput) {
	out.Endpoints = nil
	out.Timeline = nil
	out.Series = nil
	out.Checkpoints = nil
	out.Summary = nil
	out.Meta.DataQuality.TrackedMetrics = []types.Metric{}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
