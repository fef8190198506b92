package curve

import (
	"math"
	"sort"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

// CalculateOverallImprovement is the mean normalized delta between week 0
// and horizonWeek across all curves. Zero curves yield 0.
func (e *Engine) CalculateOverallImprovement(curves []types.CurveParams, horizonWeek int) float64 {
	if len(curves) == 0 {
		return 0
	}
	var total float64
	for _, p := range curves {
		v, err := e.PredictValue(p, float64(horizonWeek))
		if err != nil {
			v = p.Week0
		}
		total += v - p.Week0
	}
	return round2(total / float64(len(curves)))
}

// CalculateDaysToFirstResult returns the earliest week, in days, at which any
// curve reaches a better severity band than its week-0 band. ok is false
// when no curve improves within horizonWeeks.
func (e *Engine) CalculateDaysToFirstResult(curves []types.CurveParams, horizonWeeks int) (days int, ok bool) {
	for week := 1; week <= horizonWeeks; week++ {
		for _, p := range curves {
			s, found := e.Scale(p.Metric)
			if !found {
				continue
			}
			v, err := e.PredictValue(p, float64(week))
			if err != nil {
				continue
			}
			if s.InterpretValue(v).Level < s.InterpretValue(p.Week0).Level {
				return week * 7, true
			}
		}
	}
	return 0, false
}

// CalculateConsistencyScore grades check-in regularity on 0-100. Coverage is
// the share of days in the span that have an entry; regularity penalizes
// uneven gaps between entries. Fewer than two entries score 0.
func CalculateConsistencyScore(entries []types.CalibrationEntry) float64 {
	if len(entries) < 2 {
		return 0
	}

	days := make([]time.Time, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		key := e.Date.UTC().Format(types.DateLayout)
		if seen[key] {
			continue
		}
		seen[key] = true
		days = append(days, e.Date.UTC().Truncate(24*time.Hour))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	if len(days) < 2 {
		return 0
	}

	span := daysBetween(days[0], days[len(days)-1]) + 1
	coverage := float64(len(days)) / span

	gaps := make([]float64, len(days)-1)
	var sum float64
	for i := 1; i < len(days); i++ {
		gaps[i-1] = daysBetween(days[i-1], days[i])
		sum += gaps[i-1]
	}
	mean := sum / float64(len(gaps))
	var ss float64
	for _, g := range gaps {
		ss += (g - mean) * (g - mean)
	}
	cv := math.Sqrt(ss/float64(len(gaps))) / mean
	regularity := clamp(1-cv, 0, 1)

	return round2(100 * clamp(0.6*coverage+0.4*regularity, 0, 1))
}
