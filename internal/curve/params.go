package curve

import (
	"fmt"
	"math"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/scales"
	"github.com/hyperengineering/digitaltwin/internal/types"
)

// CalculateWeek0Values normalizes each baseline score the engine has a scale
// for. Metrics without a baseline score are omitted.
func (e *Engine) CalculateWeek0Values(baseline *types.BaselineData) (types.Week0Values, error) {
	values := make(types.Week0Values)
	if baseline == nil {
		return values, nil
	}
	for _, m := range e.Metrics() {
		score, ok := baseline.Scores[m]
		if !ok {
			continue
		}
		s := e.cfg.Scales[m]
		raw, err := e.guard(m, "baseline_score", score.Score, s.Min, s.Max)
		if err != nil {
			return nil, err
		}
		values[m] = scales.AdaptiveNormalize(raw, s.Min, s.Max)
	}
	return values, nil
}

// CalculateCurveParams fits metric trend.Metric's curve. The asymptotic
// target moves from week0 toward 100 for an improving trend and toward 0 for
// a worsening one; a flat or empty trend keeps target = week0 with rate 0.
// Shocks are placed on the week axis relative to origin (the baseline
// assessment date) and never move the target.
func (e *Engine) CalculateCurveParams(week0 float64, trend types.TrendInputs, shocks []types.ShockEvent, origin time.Time) (types.CurveParams, error) {
	m := trend.Metric
	w0, err := e.guard(m, "week0", week0, 0, 100)
	if err != nil {
		return types.CurveParams{}, err
	}

	params := types.CurveParams{
		Metric:      m,
		Week0:       w0,
		Target:      w0,
		SampleCount: trend.SampleCount,
		RecencyDays: trend.RecencyDays,
		Variance:    trend.Variance,
	}

	if trend.SampleCount > 0 && trend.Direction != types.TrendFlat {
		pull := e.cfg.MaxPull * math.Tanh(trend.Slope/e.cfg.TrendSaturation)
		if pull > 0 {
			params.Target = w0 + pull*(100-w0)
		} else {
			params.Target = w0 + pull*w0
		}
		params.Rate = e.cfg.BaseRate * e.densityFactor(trend.SampleCount) * e.recencyFactor(trend.RecencyDays)
	}

	if params.Target, err = e.guard(m, "target", params.Target, 0, 100); err != nil {
		return types.CurveParams{}, err
	}
	if params.Rate, err = e.guard(m, "rate", params.Rate, 0, math.MaxFloat64); err != nil {
		return types.CurveParams{}, err
	}

	for _, s := range shocks {
		if s.Metric != m {
			continue
		}
		params.Shocks = append(params.Shocks, types.ShockOffset{
			Week:      weeksBetween(origin, s.Date),
			Magnitude: s.Signed(),
		})
	}
	return params, nil
}

func (e *Engine) densityFactor(n int) float64 {
	return clamp(float64(n)/float64(e.cfg.DensityFullAt), e.cfg.MinRateFactor, 1)
}

func (e *Engine) recencyFactor(days float64) float64 {
	return clamp(math.Pow(0.5, days/e.cfg.RecencyHalfLifeDays), e.cfg.MinRateFactor, 1)
}

// PredictExponentialValue evaluates target + (week0 - target)·exp(-rate·week),
// clamped to [0,100]. The curve approaches the target monotonically and
// never overshoots it. Negative weeks and rates are treated as zero.
func PredictExponentialValue(p types.CurveParams, week float64) float64 {
	if week < 0 || math.IsNaN(week) {
		week = 0
	}
	rate := p.Rate
	if rate < 0 || math.IsNaN(rate) {
		rate = 0
	}
	v := p.Target + (p.Week0-p.Target)*math.Exp(-rate*week)
	if math.IsNaN(v) {
		v = p.Week0
	}
	lo, hi := math.Min(p.Week0, p.Target), math.Max(p.Week0, p.Target)
	return clamp(clamp(v, lo, hi), 0, 100)
}

// ShockPerturbation is the total transient offset shocks add at week. Each
// shock contributes weight·magnitude at its own week and decays linearly to
// zero over recovery weeks.
func ShockPerturbation(p types.CurveParams, week, recovery, weight float64) float64 {
	var total float64
	for _, s := range p.Shocks {
		t := week - s.Week
		if t < 0 || t > recovery {
			continue
		}
		total += weight * s.Magnitude * (1 - t/recovery)
	}
	return total
}

// PredictValue evaluates the curve at week including shock perturbations.
func (e *Engine) PredictValue(p types.CurveParams, week float64) (float64, error) {
	v := PredictExponentialValue(p, week)
	v += ShockPerturbation(p, week, e.cfg.ShockRecoveryWeeks, e.cfg.ShockWeight)
	// A perturbation may legitimately push past the scale; only non-finite
	// values are defects.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return e.guard(p.Metric, fmt.Sprintf("value@%g", week), v, 0, 100)
	}
	return clamp(v, 0, 100), nil
}
