package curve

import (
	"fmt"
	"math"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

// HalfWidth returns the confidence half-width at week. It grows linearly with
// the forecast horizon, faster for sparse, stale, or noisy history, and is
// bounded by MinHalfWidth and MaxHalfWidth.
func (e *Engine) HalfWidth(p types.CurveParams, week int) float64 {
	n := math.Max(1, float64(p.SampleCount))
	sample := 1 + 4/math.Sqrt(n)
	recency := 1 + math.Max(0, p.RecencyDays)/e.cfg.RecencyHalfLifeDays
	noise := 1 + math.Sqrt(math.Max(0, p.Variance))/20
	w := e.cfg.MinHalfWidth + e.cfg.GrowthPerWeek*float64(max(0, week))*sample*recency*noise
	if math.IsNaN(w) {
		return e.cfg.MaxHalfWidth
	}
	return clamp(w, e.cfg.MinHalfWidth, e.cfg.MaxHalfWidth)
}

// GeneratePrediction samples p at week and attaches a confidence interval and
// a clinical interpretation. The interval keeps its full width and is shifted
// to stay inside [0,100], so low <= value <= high always holds.
func (e *Engine) GeneratePrediction(p types.CurveParams, week int) (types.MetricPrediction, error) {
	s, ok := e.Scale(p.Metric)
	if !ok {
		return types.MetricPrediction{}, fmt.Errorf("no scale for metric %q", p.Metric)
	}

	value, err := e.PredictValue(p, float64(week))
	if err != nil {
		return types.MetricPrediction{}, err
	}

	// The band is placed from the rounded half-width so its width is 2*half.
	mid := round2(value)
	half := round2(e.HalfWidth(p, week))
	low, high := round2(mid-half), round2(mid+half)
	if low < 0 {
		low, high = 0, round2(2*half)
	}
	if high > 100 {
		low, high = round2(100-2*half), 100
	}
	if low > mid || mid > high {
		if _, err := e.guard(p.Metric, "confidence_interval", mid, low, high); err != nil {
			return types.MetricPrediction{}, err
		}
		low, high = math.Min(low, mid), math.Max(high, mid)
	}

	raw := s.Denormalize(value)
	band := s.Interpret(raw)
	return types.MetricPrediction{
		Metric:         p.Metric,
		Week:           week,
		Value:          mid,
		RawScore:       types.RawScore(round2(raw)),
		ConfidenceLow:  low,
		ConfidenceHigh: high,
		Interpretation: band.Label,
		SeverityLevel:  band.Level,
	}, nil
}

// round2 rounds to two decimals for presentation.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
