package curve

import (
	"sort"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

// Curve is one metric's fitted model together with the inputs behind it.
type Curve struct {
	Metric types.Metric       `json:"metric"`
	Params types.CurveParams  `json:"params"`
	Trend  types.TrendInputs  `json:"trend"`
	Shocks []types.ShockEvent `json:"shocks,omitempty"`
}

// MetricFailure records a metric whose curve could not be computed.
type MetricFailure struct {
	Metric types.Metric
	Err    error
}

// FitResult is the outcome of fitting every metric with a baseline score.
type FitResult struct {
	Week0    types.Week0Values
	Curves   []Curve
	Shocks   []types.ShockEvent
	Failures []MetricFailure
}

// Params returns the fitted parameters in canonical metric order.
func (r FitResult) Params() []types.CurveParams {
	out := make([]types.CurveParams, len(r.Curves))
	for i, c := range r.Curves {
		out[i] = c.Params
	}
	return out
}

// Fit runs the full curve pipeline: week-0 values, shock detection, trend
// extraction, and curve parameters for every metric with a baseline score.
// A metric that fails is reported in Failures and skipped; the remaining
// metrics are still fitted. A nil baseline fits nothing and returns
// ErrInsufficientData.
func (e *Engine) Fit(baseline *types.BaselineData, calibrations []types.CalibrationEntry, asOf time.Time) (FitResult, error) {
	if baseline == nil {
		return FitResult{}, types.ErrInsufficientData
	}

	entries := sortedByDate(calibrations)
	result := FitResult{}

	week0, err := e.CalculateWeek0Values(baseline)
	if err != nil {
		return FitResult{}, err
	}
	result.Week0 = week0
	result.Shocks = e.DetectShockEvents(entries)

	for _, m := range e.Metrics() {
		w0, ok := week0[m]
		if !ok {
			continue
		}
		trend := e.ExtractTrendInputs(m, entries, result.Shocks, asOf)
		params, err := e.CalculateCurveParams(w0, trend, result.Shocks, baseline.AssessedAt)
		if err != nil {
			result.Failures = append(result.Failures, MetricFailure{Metric: m, Err: err})
			continue
		}
		var own []types.ShockEvent
		for _, s := range result.Shocks {
			if s.Metric == m {
				own = append(own, s)
			}
		}
		result.Curves = append(result.Curves, Curve{
			Metric: m,
			Params: params,
			Trend:  trend,
			Shocks: own,
		})
	}
	return result, nil
}

func sortedByDate(entries []types.CalibrationEntry) []types.CalibrationEntry {
	out := make([]types.CalibrationEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
