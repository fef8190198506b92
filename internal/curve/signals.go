package curve

import (
	"time"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

// Signal maps a calibration entry onto the 0-100 "higher is better" axis for
// metric m. Stress is inverted because a higher self-rated stress is worse.
func Signal(m types.Metric, e types.CalibrationEntry) float64 {
	var v float64
	switch m {
	case types.MetricAnxiety:
		v = (e.Mood + (10 - e.Stress)) / 2
	case types.MetricDepression:
		v = (e.Mood + e.Energy) / 2
	case types.MetricInsomnia:
		v = e.SleepQuality
	case types.MetricStress:
		v = 10 - e.Stress
	}
	return clamp(v*10, 0, 100)
}

type point struct {
	date  time.Time
	day   float64
	value float64
}

// series extracts metric m's signal from entries, which must be sorted by
// date ascending. day is measured from the first entry.
func series(m types.Metric, entries []types.CalibrationEntry) []point {
	if len(entries) == 0 {
		return nil
	}
	first := entries[0].Date
	pts := make([]point, len(entries))
	for i, e := range entries {
		pts[i] = point{
			date:  e.Date,
			day:   daysBetween(first, e.Date),
			value: Signal(m, e),
		}
	}
	return pts
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

func weeksBetween(from, to time.Time) float64 {
	return daysBetween(from, to) / 7
}
