package curve

import (
	"math"
	"sort"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

// DetectShockEvents finds calibration entries whose signal deviates from the
// mean of their neighbours by at least ShockThreshold signal points. The most
// recent entry is compared against the entries before it alone; the first
// entry is never a shock. Entries must be sorted by date ascending. Results are ordered by date, then by
// canonical metric order.
func (e *Engine) DetectShockEvents(entries []types.CalibrationEntry) []types.ShockEvent {
	var shocks []types.ShockEvent
	threshold := e.cfg.ShockThreshold * 10
	k := e.cfg.ShockNeighbors

	for _, m := range e.Metrics() {
		pts := series(m, entries)
		for i := range pts {
			lo := max(0, i-k)
			hi := min(len(pts)-1, i+k)
			var sum float64
			var n int
			for j := lo; j <= hi; j++ {
				if j == i {
					continue
				}
				sum += pts[j].value
				n++
			}
			// The last point has one-sided context; the first has none worth
			// trusting.
			if n < 2 || i == 0 {
				continue
			}
			dev := pts[i].value - sum/float64(n)
			if math.Abs(dev) < threshold {
				continue
			}
			dir := types.ShockPositive
			if dev < 0 {
				dir = types.ShockNegative
			}
			shocks = append(shocks, types.ShockEvent{
				Date:      pts[i].date,
				Metric:    m,
				Magnitude: math.Abs(dev),
				Direction: dir,
			})
		}
	}

	order := metricOrder()
	sort.SliceStable(shocks, func(i, j int) bool {
		if !shocks[i].Date.Equal(shocks[j].Date) {
			return shocks[i].Date.Before(shocks[j].Date)
		}
		return order[shocks[i].Metric] < order[shocks[j].Metric]
	})
	return shocks
}

// ExtractTrendInputs computes metric m's trend from entries (sorted by date
// ascending), ignoring shock points so a one-day dip does not bend the whole
// curve. asOf anchors the recency measure.
func (e *Engine) ExtractTrendInputs(m types.Metric, entries []types.CalibrationEntry, shocks []types.ShockEvent, asOf time.Time) types.TrendInputs {
	trend := types.TrendInputs{
		Metric:      m,
		Direction:   types.TrendFlat,
		SampleCount: len(entries),
	}
	if len(entries) == 0 {
		return trend
	}

	shocked := make(map[time.Time]bool)
	for _, s := range shocks {
		if s.Metric == m {
			shocked[s.Date] = true
		}
	}

	var xs, ys []float64
	for _, p := range series(m, entries) {
		if shocked[p.date] {
			continue
		}
		xs = append(xs, p.day)
		ys = append(ys, p.value)
	}

	last := entries[len(entries)-1]
	trend.LastValue = Signal(m, last)
	trend.RecencyDays = math.Max(0, daysBetween(last.Date, asOf))

	slope, variance := leastSquares(xs, ys)
	trend.Slope = slope * 7
	trend.Variance = variance

	switch {
	case trend.Slope >= e.cfg.FlatSlope:
		trend.Direction = types.TrendImproving
	case trend.Slope <= -e.cfg.FlatSlope:
		trend.Direction = types.TrendWorsening
	}
	return trend
}

// leastSquares returns the OLS slope of ys over xs and the residual variance.
// Fewer than two points, or no spread in xs, yields a zero slope.
func leastSquares(xs, ys []float64) (slope, variance float64) {
	n := float64(len(xs))
	if len(xs) < 2 {
		return 0, 0
	}

	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/n, sy/n

	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - mx
		sxx += dx * dx
		sxy += dx * (ys[i] - my)
	}
	if sxx > 0 {
		slope = sxy / sxx
	}

	intercept := my - slope*mx
	var ss float64
	for i := range xs {
		r := ys[i] - (intercept + slope*xs[i])
		ss += r * r
	}
	return slope, ss / n
}

func metricOrder() map[types.Metric]int {
	order := make(map[types.Metric]int, len(types.AllMetrics))
	for i, m := range types.AllMetrics {
		order[m] = i
	}
	return order
}
