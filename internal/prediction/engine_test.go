package prediction

import (
	"errors"
	"testing"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/curve"
	"github.com/hyperengineering/digitaltwin/internal/types"
)

var baseDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := curve.DefaultConfig()
	cfg.Strict = true
	c, err := curve.NewEngine(cfg)
	if err != nil {
		t.Fatalf("curve.NewEngine: %v", err)
	}
	e, err := NewEngine(c, DefaultWeeks)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func baseline(scores map[types.Metric]float64) *types.BaselineData {
	ids := map[types.Metric]string{
		types.MetricAnxiety:    "GAD7",
		types.MetricDepression: "PHQ9",
		types.MetricInsomnia:   "ISI",
		types.MetricStress:     "PSS10",
	}
	b := &types.BaselineData{AssessmentID: "a-1", AssessedAt: baseDate, Scores: map[types.Metric]types.ScaleScore{}}
	for m, s := range scores {
		b.Scores[m] = types.ScaleScore{Scale: ids[m], Score: s, RecordedAt: baseDate}
	}
	return b
}

func improving(n int) []types.CalibrationEntry {
	out := make([]types.CalibrationEntry, n)
	for i := range out {
		f := float64(i) / float64(n-1)
		out[i] = types.CalibrationEntry{
			Date:         baseDate.AddDate(0, 0, i+1),
			Mood:         2 + 7*f,
			Stress:       8 - 6*f,
			SleepQuality: 3 + 5*f,
			Energy:       3 + 5*f,
		}
	}
	return out
}

func TestValidateWeeks(t *testing.T) {
	tests := []struct {
		name    string
		weeks   []int
		wantErr bool
	}{
		{"default", DefaultWeeks, false},
		{"single", []int{4}, false},
		{"empty", nil, true},
		{"zero", []int{0, 2}, true},
		{"negative", []int{-1}, true},
		{"descending", []int{4, 2}, true},
		{"duplicate", []int{2, 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeeks(tt.weeks)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWeeks(%v) error = %v, wantErr %v", tt.weeks, err, tt.wantErr)
			}
		})
	}
}

func TestNewEngine_RequiresCurveEngine(t *testing.T) {
	if _, err := NewEngine(nil, DefaultWeeks); err == nil {
		t.Error("expected error for nil curve engine")
	}
}

func TestNewEngine_CopiesWeeks(t *testing.T) {
	weeks := []int{2, 4}
	c, _ := curve.NewEngine(curve.DefaultConfig())
	e, err := NewEngine(c, weeks)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	weeks[0] = 99
	if got := e.Weeks()[0]; got != 2 {
		t.Errorf("Weeks()[0] = %d, want 2", got)
	}
	if e.Horizon() != 4 {
		t.Errorf("Horizon() = %d, want 4", e.Horizon())
	}
}

func TestGeneratePredictions_OneTimepointPerWeek(t *testing.T) {
	e := newTestEngine(t)
	b := baseline(map[types.Metric]float64{
		types.MetricAnxiety:    15,
		types.MetricDepression: 18,
		types.MetricInsomnia:   16,
		types.MetricStress:     28,
	})
	entries := improving(21)

	preds, err := e.GeneratePredictions(b, entries, entries[len(entries)-1].Date)
	if err != nil {
		t.Fatalf("GeneratePredictions: %v", err)
	}

	if len(preds.Metrics) != len(types.AllMetrics) {
		t.Fatalf("metrics = %v, want all four", preds.Metrics)
	}
	for i, m := range preds.Metrics {
		if m != types.AllMetrics[i] {
			t.Errorf("metric %d = %s, want %s", i, m, types.AllMetrics[i])
		}
		points := preds.Timepoint[m]
		if len(points) != len(DefaultWeeks) {
			t.Fatalf("%s has %d timepoints, want %d", m, len(points), len(DefaultWeeks))
		}
		for j, p := range points {
			if p.Week != DefaultWeeks[j] {
				t.Errorf("%s timepoint %d week = %d, want %d", m, j, p.Week, DefaultWeeks[j])
			}
			if p.ConfidenceLow > p.Value || p.Value > p.ConfidenceHigh {
				t.Errorf("%s week %d: value %v outside [%v,%v]", m, p.Week, p.Value, p.ConfidenceLow, p.ConfidenceHigh)
			}
		}
		if preds.Baseline[m].Week != 0 {
			t.Errorf("%s baseline week = %d, want 0", m, preds.Baseline[m].Week)
		}
	}
}

func TestGeneratePredictions_OnlyBaselineMetrics(t *testing.T) {
	e := newTestEngine(t)
	b := baseline(map[types.Metric]float64{types.MetricInsomnia: 20})

	preds, err := e.GeneratePredictions(b, improving(10), baseDate.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("GeneratePredictions: %v", err)
	}
	if len(preds.Metrics) != 1 || preds.Metrics[0] != types.MetricInsomnia {
		t.Errorf("metrics = %v, want [insomnia]", preds.Metrics)
	}
}

func TestGeneratePredictions_NilBaseline(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GeneratePredictions(nil, improving(10), baseDate)
	if !errors.Is(err, types.ErrInsufficientData) {
		t.Errorf("error = %v, want ErrInsufficientData", err)
	}
}

func TestGeneratePredictions_StrictRejectsOutOfRangeScore(t *testing.T) {
	e := newTestEngine(t)
	b := baseline(map[types.Metric]float64{types.MetricAnxiety: 30})
	_, err := e.GeneratePredictions(b, improving(10), baseDate)
	if types.KindOf(err) != types.KindInvariantViolation {
		t.Errorf("KindOf(%v) = %v, want InvariantViolation", err, types.KindOf(err))
	}
}

func TestCalculateMilestones_FirstImprovingWeekPerMetric(t *testing.T) {
	e := newTestEngine(t)
	b := baseline(map[types.Metric]float64{
		types.MetricAnxiety:    18,
		types.MetricDepression: 20,
	})
	entries := improving(20)

	preds, err := e.GeneratePredictions(b, entries, entries[len(entries)-1].Date)
	if err != nil {
		t.Fatalf("GeneratePredictions: %v", err)
	}
	milestones := CalculateMilestones(preds)
	if len(milestones) == 0 {
		t.Fatal("expected at least one milestone for an improving history")
	}
	if err := ValidateMilestones(milestones, preds); err != nil {
		t.Errorf("ValidateMilestones: %v", err)
	}

	for _, ms := range milestones {
		base := preds.Baseline[ms.Metric]
		if ms.FromLabel != base.Interpretation {
			t.Errorf("%s FromLabel = %q, want %q", ms.Metric, ms.FromLabel, base.Interpretation)
		}
		for _, p := range preds.Timepoint[ms.Metric] {
			if p.Week >= ms.Week {
				break
			}
			if p.SeverityLevel < base.SeverityLevel {
				t.Errorf("%s improved at week %d before milestone week %d", ms.Metric, p.Week, ms.Week)
			}
		}
	}
}

func TestCalculateMilestones_SortedByWeekThenMetric(t *testing.T) {
	preds := &types.LongitudinalPredictions{
		Weeks:   []int{2, 4},
		Metrics: []types.Metric{types.MetricAnxiety, types.MetricDepression, types.MetricInsomnia},
		Baseline: map[types.Metric]types.MetricPrediction{
			types.MetricAnxiety:    {SeverityLevel: 3, Interpretation: "severe"},
			types.MetricDepression: {SeverityLevel: 2, Interpretation: "moderate"},
			types.MetricInsomnia:   {SeverityLevel: 1, Interpretation: "subthreshold insomnia"},
		},
		Timepoint: map[types.Metric][]types.PredictionTimepoint{
			types.MetricAnxiety:    {{Week: 2, SeverityLevel: 3}, {Week: 4, SeverityLevel: 2, Interpretation: "moderate"}},
			types.MetricDepression: {{Week: 2, SeverityLevel: 1, Interpretation: "mild"}, {Week: 4, SeverityLevel: 0}},
			types.MetricInsomnia:   {{Week: 2, SeverityLevel: 1}, {Week: 4, SeverityLevel: 1}},
		},
	}

	got := CalculateMilestones(preds)
	want := []types.TreatmentMilestone{
		{Week: 2, Metric: types.MetricDepression, FromLabel: "moderate", ToLabel: "mild"},
		{Week: 4, Metric: types.MetricAnxiety, FromLabel: "severe", ToLabel: "moderate"},
	}
	if len(got) != len(want) {
		t.Fatalf("milestones = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("milestone %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCalculateMilestones_Nil(t *testing.T) {
	if got := CalculateMilestones(nil); got != nil {
		t.Errorf("CalculateMilestones(nil) = %v, want nil", got)
	}
}

func TestValidatePredictions_DetectsViolations(t *testing.T) {
	valid := func() *types.LongitudinalPredictions {
		return &types.LongitudinalPredictions{
			Weeks:   []int{2, 4},
			Metrics: []types.Metric{types.MetricAnxiety},
			Timepoint: map[types.Metric][]types.PredictionTimepoint{
				types.MetricAnxiety: {
					{Metric: types.MetricAnxiety, Week: 2, Value: 50, ConfidenceLow: 45, ConfidenceHigh: 55},
					{Metric: types.MetricAnxiety, Week: 4, Value: 60, ConfidenceLow: 50, ConfidenceHigh: 70},
				},
			},
		}
	}

	if err := ValidatePredictions(valid()); err != nil {
		t.Fatalf("valid predictions rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *types.LongitudinalPredictions)
	}{
		{"value above high", func(p *types.LongitudinalPredictions) { p.Timepoint[types.MetricAnxiety][0].Value = 56 }},
		{"value out of range", func(p *types.LongitudinalPredictions) {
			p.Timepoint[types.MetricAnxiety][1].ConfidenceHigh = 101
		}},
		{"missing week", func(p *types.LongitudinalPredictions) {
			p.Timepoint[types.MetricAnxiety] = p.Timepoint[types.MetricAnxiety][:1]
		}},
		{"wrong week", func(p *types.LongitudinalPredictions) { p.Timepoint[types.MetricAnxiety][1].Week = 8 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			err := ValidatePredictions(p)
			if !errors.Is(err, types.ErrInvariantViolation) {
				t.Errorf("error = %v, want ErrInvariantViolation", err)
			}
		})
	}
}

func TestValidateMilestones_DetectsViolations(t *testing.T) {
	preds := &types.LongitudinalPredictions{
		Weeks:   []int{2, 4},
		Metrics: []types.Metric{types.MetricAnxiety, types.MetricStress},
		Timepoint: map[types.Metric][]types.PredictionTimepoint{
			types.MetricAnxiety: {{Week: 2}, {Week: 4}},
			types.MetricStress:  {{Week: 2}, {Week: 4}},
		},
	}

	tests := []struct {
		name       string
		milestones []types.TreatmentMilestone
	}{
		{"unsorted", []types.TreatmentMilestone{{Week: 4, Metric: types.MetricAnxiety}, {Week: 2, Metric: types.MetricStress}}},
		{"duplicate", []types.TreatmentMilestone{{Week: 2, Metric: types.MetricAnxiety}, {Week: 4, Metric: types.MetricAnxiety}}},
		{"unpredicted week", []types.TreatmentMilestone{{Week: 3, Metric: types.MetricAnxiety}}},
		{"unpredicted metric", []types.TreatmentMilestone{{Week: 2, Metric: types.MetricInsomnia}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateMilestones(tt.milestones, preds); !errors.Is(err, types.ErrInvariantViolation) {
				t.Errorf("error = %v, want ErrInvariantViolation", err)
			}
		})
	}
}
