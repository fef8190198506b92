package curve

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

func TestFit_NilBaseline(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Fit(nil, flatEntries(10), baseDate)
	if !errors.Is(err, types.ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

func TestFit_ZeroCalibrationsIsFlatLine(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.Fit(anxietyBaseline(12), nil, baseDate)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	c := findCurve(t, result, types.MetricAnxiety)
	if c.Params.Rate != 0 {
		t.Errorf("rate = %v, want 0", c.Params.Rate)
	}
	if c.Params.Target != c.Params.Week0 {
		t.Errorf("target = %v, want week0 %v", c.Params.Target, c.Params.Week0)
	}
}

func TestFit_FlatTrendScenario(t *testing.T) {
	// Given: anxiety at the GAD-7 midpoint and ten identical check-ins
	e := newTestEngine(t)
	entries := flatEntries(10)
	asOf := entries[len(entries)-1].Date

	// When: the curve is fitted
	result, err := e.Fit(anxietyBaseline(10.5), entries, asOf)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// Then: rate is ~0, target ~ week0, and the endpoint stays at baseline
	c := findCurve(t, result, types.MetricAnxiety)
	if math.Abs(c.Params.Rate) > 1e-9 {
		t.Errorf("rate = %v, want ~0", c.Params.Rate)
	}
	if math.Abs(c.Params.Target-c.Params.Week0) > 1e-9 {
		t.Errorf("target = %v, want ~week0 %v", c.Params.Target, c.Params.Week0)
	}
	if math.Abs(c.Params.Week0-50) > 1e-9 {
		t.Errorf("week0 = %v, want 50", c.Params.Week0)
	}
	end, err := e.GeneratePrediction(c.Params, 24)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(end.Value-c.Params.Week0) > 0.01 {
		t.Errorf("endpoint = %v, want ~%v", end.Value, c.Params.Week0)
	}
	if len(result.Shocks) != 0 {
		t.Errorf("shocks = %d, want 0", len(result.Shocks))
	}
}

func TestFit_ImprovingTrendScenario(t *testing.T) {
	// Given: severe anxiety and twenty check-ins that steadily improve
	e := newTestEngine(t)
	entries := improvingEntries(20)
	asOf := entries[len(entries)-1].Date

	// When: the curve is fitted
	result, err := e.Fit(anxietyBaseline(18), entries, asOf)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	c := findCurve(t, result, types.MetricAnxiety)

	// Then: the target sits above week0 and a better band is reached early
	if c.Params.Target <= c.Params.Week0 {
		t.Errorf("target %v <= week0 %v", c.Params.Target, c.Params.Week0)
	}
	if c.Trend.Direction != types.TrendImproving {
		t.Errorf("direction = %s, want improving", c.Trend.Direction)
	}
	if c.Params.Rate <= 0 {
		t.Errorf("rate = %v, want > 0", c.Params.Rate)
	}
	days, ok := e.CalculateDaysToFirstResult(result.Params(), 24)
	if !ok {
		t.Fatal("CalculateDaysToFirstResult found no improvement")
	}
	if days != 14 {
		t.Errorf("days to first result = %d, want 14", days)
	}
	if imp := e.CalculateOverallImprovement(result.Params(), 24); imp <= 0 {
		t.Errorf("overall improvement = %v, want > 0", imp)
	}
}

func TestFit_WorseningTrendPullsTargetDown(t *testing.T) {
	e := newTestEngine(t)
	entries := dailyEntries(20, func(i int) types.CalibrationEntry {
		f := float64(i) / 19
		return types.CalibrationEntry{Mood: 8 - 6*f, Stress: 2 + 6*f, SleepQuality: 5, Energy: 5}
	})
	result, err := e.Fit(anxietyBaseline(5), entries, entries[19].Date)
	if err != nil {
		t.Fatal(err)
	}
	c := findCurve(t, result, types.MetricAnxiety)
	if c.Params.Target >= c.Params.Week0 {
		t.Errorf("target %v >= week0 %v", c.Params.Target, c.Params.Week0)
	}
	if c.Params.Target < 0 {
		t.Errorf("target %v below 0", c.Params.Target)
	}
}

func TestFit_ShockAbsorptionScenario(t *testing.T) {
	// Given: an improving history with one sharp dip on day 10
	e := newTestEngine(t)
	entries := dailyEntries(21, func(i int) types.CalibrationEntry {
		f := float64(i) / 20
		if i == 9 {
			return types.CalibrationEntry{Mood: 0, Stress: 10, SleepQuality: 5, Energy: 5}
		}
		return types.CalibrationEntry{Mood: 4 + 4*f, Stress: 6 - 4*f, SleepQuality: 5, Energy: 5}
	})
	shockDate := entries[9].Date

	// When: the curve is fitted
	result, err := e.Fit(anxietyBaseline(15), entries, entries[20].Date)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	c := findCurve(t, result, types.MetricAnxiety)

	// Then: the dip is detected as a negative anxiety shock
	if len(c.Shocks) != 1 {
		t.Fatalf("anxiety shocks = %d, want 1", len(c.Shocks))
	}
	if !c.Shocks[0].Date.Equal(shockDate) || c.Shocks[0].Direction != types.ShockNegative {
		t.Errorf("shock = %+v, want negative on %s", c.Shocks[0], shockDate)
	}
	if c.Trend.Direction != types.TrendImproving {
		t.Errorf("trend = %s, want improving despite the dip", c.Trend.Direction)
	}

	// And: the week after the shock is depressed relative to the unperturbed curve
	shockWeek := shockDate.Sub(baseDate).Hours() / 24 / 7
	next := int(math.Ceil(shockWeek))
	perturbed, err := e.PredictValue(c.Params, float64(next))
	if err != nil {
		t.Fatal(err)
	}
	if perturbed >= PredictExponentialValue(c.Params, float64(next)) {
		t.Errorf("week %d value %v not below unperturbed %v", next, perturbed, PredictExponentialValue(c.Params, float64(next)))
	}

	// And: two or more weeks after the shock the curve has recovered
	for week := next + 2; week <= 24; week++ {
		v, err := e.PredictValue(c.Params, float64(week))
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(v-PredictExponentialValue(c.Params, float64(week))) > 1e-9 {
			t.Errorf("week %d value %v differs from unperturbed trend", week, v)
		}
	}
}

func TestDetectShockEvents_IgnoresNoise(t *testing.T) {
	e := newTestEngine(t)
	entries := dailyEntries(14, func(i int) types.CalibrationEntry {
		jitter := float64(i%3) - 1 // -1, 0, 1
		return types.CalibrationEntry{Mood: 5 + jitter, Stress: 5 - jitter, SleepQuality: 6, Energy: 5}
	})
	if shocks := e.DetectShockEvents(entries); len(shocks) != 0 {
		t.Errorf("shocks = %+v, want none", shocks)
	}
}

func TestDetectShockEvents_ThresholdIsConfigurable(t *testing.T) {
	entries := dailyEntries(9, func(i int) types.CalibrationEntry {
		if i == 4 {
			return types.CalibrationEntry{Mood: 5, Stress: 5, SleepQuality: 3, Energy: 5}
		}
		return types.CalibrationEntry{Mood: 5, Stress: 5, SleepQuality: 5, Energy: 5}
	})

	loose := newTestEngine(t)
	if shocks := loose.DetectShockEvents(entries); len(shocks) != 0 {
		t.Errorf("default threshold flagged a 2-point dip: %+v", shocks)
	}

	cfg := DefaultConfig()
	cfg.ShockThreshold = 1.5
	tight, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	shocks := tight.DetectShockEvents(entries)
	if len(shocks) != 1 || shocks[0].Metric != types.MetricInsomnia {
		t.Errorf("shocks = %+v, want one insomnia shock", shocks)
	}
}

func TestDetectShockEvents_FlagsLatestEntry(t *testing.T) {
	e := newTestEngine(t)
	// Given a steady week ending in a bad night on the latest check-in
	entries := dailyEntries(7, func(i int) types.CalibrationEntry {
		if i == 6 {
			return types.CalibrationEntry{Mood: 5, Stress: 5, SleepQuality: 2, Energy: 5}
		}
		return types.CalibrationEntry{Mood: 5, Stress: 5, SleepQuality: 7, Energy: 5}
	})

	// When shocks are detected
	shocks := e.DetectShockEvents(entries)

	// Then the dip is a negative insomnia shock on the last date
	if len(shocks) != 1 {
		t.Fatalf("shocks = %+v, want one", shocks)
	}
	s := shocks[0]
	if s.Metric != types.MetricInsomnia || s.Direction != types.ShockNegative || !s.Date.Equal(entries[6].Date) {
		t.Errorf("shock = %+v, want negative insomnia shock on %v", s, entries[6].Date)
	}

	// And the dip does not bend the trend
	trend := e.ExtractTrendInputs(types.MetricInsomnia, entries, shocks, entries[6].Date)
	if trend.Direction != types.TrendFlat {
		t.Errorf("trend direction = %v, want flat", trend.Direction)
	}
}

func TestDetectShockEvents_IgnoresFirstEntry(t *testing.T) {
	e := newTestEngine(t)
	entries := dailyEntries(7, func(i int) types.CalibrationEntry {
		if i == 0 {
			return types.CalibrationEntry{Mood: 5, Stress: 5, SleepQuality: 2, Energy: 5}
		}
		return types.CalibrationEntry{Mood: 5, Stress: 5, SleepQuality: 7, Energy: 5}
	})
	if shocks := e.DetectShockEvents(entries); len(shocks) != 0 {
		t.Errorf("shocks = %+v, want none", shocks)
	}
}

func TestExtractTrendInputs_Recency(t *testing.T) {
	e := newTestEngine(t)
	entries := flatEntries(5)
	asOf := entries[4].Date.AddDate(0, 0, 6)
	trend := e.ExtractTrendInputs(types.MetricStress, entries, nil, asOf)
	if trend.RecencyDays != 6 {
		t.Errorf("RecencyDays = %v, want 6", trend.RecencyDays)
	}
	if trend.SampleCount != 5 {
		t.Errorf("SampleCount = %d, want 5", trend.SampleCount)
	}
}

func TestCalculateCurveParams_StaleHistorySlowsRate(t *testing.T) {
	e := newTestEngine(t)
	trend := types.TrendInputs{Metric: types.MetricAnxiety, Slope: 10, Direction: types.TrendImproving, SampleCount: 28}
	fresh, err := e.CalculateCurveParams(30, trend, nil, baseDate)
	if err != nil {
		t.Fatal(err)
	}
	trend.RecencyDays = 28
	stale, err := e.CalculateCurveParams(30, trend, nil, baseDate)
	if err != nil {
		t.Fatal(err)
	}
	if stale.Rate >= fresh.Rate {
		t.Errorf("stale rate %v >= fresh rate %v", stale.Rate, fresh.Rate)
	}
	if stale.Target != fresh.Target {
		t.Errorf("recency changed target: %v vs %v", stale.Target, fresh.Target)
	}
}

func TestCalculateConsistencyScore(t *testing.T) {
	daily := flatEntries(10)
	if got := CalculateConsistencyScore(daily); got != 100 {
		t.Errorf("daily score = %v, want 100", got)
	}

	var alternate []types.CalibrationEntry
	for i := 0; i < 10; i++ {
		alternate = append(alternate, types.CalibrationEntry{Date: baseDate.AddDate(0, 0, 2*i)})
	}
	alt := CalculateConsistencyScore(alternate)
	if alt >= 100 || alt <= 0 {
		t.Errorf("alternate-day score = %v, want between 0 and 100", alt)
	}

	gappy := []types.CalibrationEntry{
		{Date: baseDate},
		{Date: baseDate.AddDate(0, 0, 1)},
		{Date: baseDate.AddDate(0, 0, 2)},
		{Date: baseDate.AddDate(0, 0, 20)},
	}
	if got := CalculateConsistencyScore(gappy); got >= alt {
		t.Errorf("gappy score %v >= alternate-day score %v", got, alt)
	}

	if got := CalculateConsistencyScore(daily[:1]); got != 0 {
		t.Errorf("single entry score = %v, want 0", got)
	}
}

func TestCalculateDaysToFirstResult_NoImprovement(t *testing.T) {
	e := newTestEngine(t)
	flat := []types.CurveParams{{Metric: types.MetricAnxiety, Week0: 20, Target: 20}}
	if _, ok := e.CalculateDaysToFirstResult(flat, 24); ok {
		t.Error("flat curve reported a first result")
	}
}

func TestCalculateOverallImprovement_Empty(t *testing.T) {
	e := newTestEngine(t)
	if got := e.CalculateOverallImprovement(nil, 24); got != 0 {
		t.Errorf("empty improvement = %v, want 0", got)
	}
}

func TestFit_IsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	entries := improvingEntries(15)
	asOf := entries[14].Date.Add(12 * time.Hour)
	a, err := e.Fit(anxietyBaseline(16), entries, asOf)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Fit(anxietyBaseline(16), entries, asOf)
	if err != nil {
		t.Fatal(err)
	}
	if a.Curves[0].Params.Target != b.Curves[0].Params.Target || a.Curves[0].Params.Rate != b.Curves[0].Params.Rate {
		t.Error("identical inputs produced different parameters")
	}
}
