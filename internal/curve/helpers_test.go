package curve

import (
	"testing"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

var baseDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Strict = true
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func anxietyBaseline(score float64) *types.BaselineData {
	return &types.BaselineData{
		AssessmentID: "assessment-1",
		AssessedAt:   baseDate,
		Scores: map[types.Metric]types.ScaleScore{
			types.MetricAnxiety: {Scale: "GAD7", Score: score, RecordedAt: baseDate},
		},
	}
}

// dailyEntries builds n entries starting the day after baseDate, letting fn
// fill in the signals for index i.
func dailyEntries(n int, fn func(i int) types.CalibrationEntry) []types.CalibrationEntry {
	out := make([]types.CalibrationEntry, n)
	for i := range out {
		e := fn(i)
		e.Date = baseDate.AddDate(0, 0, i+1)
		out[i] = e
	}
	return out
}

func flatEntries(n int) []types.CalibrationEntry {
	return dailyEntries(n, func(int) types.CalibrationEntry {
		return types.CalibrationEntry{Mood: 5, Stress: 5, SleepQuality: 5, Energy: 5}
	})
}

// improvingEntries rises linearly in mood and falls linearly in stress.
func improvingEntries(n int) []types.CalibrationEntry {
	return dailyEntries(n, func(i int) types.CalibrationEntry {
		f := float64(i) / float64(n-1)
		return types.CalibrationEntry{Mood: 2 + 7*f, Stress: 8 - 6*f, SleepQuality: 5, Energy: 5}
	})
}

func findCurve(t *testing.T, r FitResult, m types.Metric) Curve {
	t.Helper()
	for _, c := range r.Curves {
		if c.Metric == m {
			return c
		}
	}
	t.Fatalf("no curve for %s", m)
	return Curve{}
}
