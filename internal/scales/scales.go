// Package scales holds the clinical questionnaire definitions: score ranges,
// published severity cutoffs, and the normalization onto the shared
// 0-100 "higher is better" axis.
package scales

import (
	"math"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

// Band is a severity bucket. Level 0 is the best (least severe) bucket.
type Band struct {
	Max   float64 `json:"max"` // inclusive upper raw score
	Label string  `json:"label"`
	Level int     `json:"level"`
}

// Scale describes one questionnaire.
type Scale struct {
	ID     string       `json:"id"`
	Metric types.Metric `json:"metric"`
	Min    float64      `json:"min"`
	Max    float64      `json:"max"`
	Bands  []Band       `json:"bands"` // ascending by Max
}

var (
	GAD7 = Scale{
		ID: "GAD7", Metric: types.MetricAnxiety, Min: 0, Max: 21,
		Bands: []Band{
			{Max: 4, Label: "minimal", Level: 0},
			{Max: 9, Label: "mild", Level: 1},
			{Max: 14, Label: "moderate", Level: 2},
			{Max: 21, Label: "severe", Level: 3},
		},
	}
	PHQ9 = Scale{
		ID: "PHQ9", Metric: types.MetricDepression, Min: 0, Max: 27,
		Bands: []Band{
			{Max: 4, Label: "minimal", Level: 0},
			{Max: 9, Label: "mild", Level: 1},
			{Max: 14, Label: "moderate", Level: 2},
			{Max: 19, Label: "moderately severe", Level: 3},
			{Max: 27, Label: "severe", Level: 4},
		},
	}
	ISI = Scale{
		ID: "ISI", Metric: types.MetricInsomnia, Min: 0, Max: 28,
		Bands: []Band{
			{Max: 7, Label: "no clinically significant insomnia", Level: 0},
			{Max: 14, Label: "subthreshold insomnia", Level: 1},
			{Max: 21, Label: "moderate insomnia", Level: 2},
			{Max: 28, Label: "severe insomnia", Level: 3},
		},
	}
	PSS10 = Scale{
		ID: "PSS10", Metric: types.MetricStress, Min: 0, Max: 40,
		Bands: []Band{
			{Max: 13, Label: "low stress", Level: 0},
			{Max: 26, Label: "moderate stress", Level: 1},
			{Max: 40, Label: "high stress", Level: 2},
		},
	}
)

// Table maps metrics to their scale.
type Table map[types.Metric]Scale

// DefaultTable returns the standard questionnaire for each metric.
func DefaultTable() Table {
	return Table{
		types.MetricAnxiety:    GAD7,
		types.MetricDepression: PHQ9,
		types.MetricInsomnia:   ISI,
		types.MetricStress:     PSS10,
	}
}

// ByID returns the scale in t whose ID matches id.
func (t Table) ByID(id string) (Scale, bool) {
	for _, m := range types.AllMetrics {
		if s, ok := t[m]; ok && s.ID == id {
			return s, true
		}
	}
	return Scale{}, false
}

// Contains reports whether raw lies within the scale's range.
func (s Scale) Contains(raw float64) bool {
	return !math.IsNaN(raw) && raw >= s.Min && raw <= s.Max
}

// Normalize maps a raw score onto the 0-100 axis.
func (s Scale) Normalize(raw float64) float64 {
	return AdaptiveNormalize(raw, s.Min, s.Max)
}

// Denormalize maps a 0-100 value back to a raw score within the scale.
func (s Scale) Denormalize(value float64) float64 {
	return Denormalize(value, s.Min, s.Max)
}

// Interpret returns the severity band for a raw score. Scores are rounded to
// the nearest integer first because published cutoffs are integral.
func (s Scale) Interpret(raw float64) Band {
	r := math.Round(clamp(raw, s.Min, s.Max))
	for _, b := range s.Bands {
		if r <= b.Max {
			return b
		}
	}
	return s.Bands[len(s.Bands)-1]
}

// InterpretValue interprets a normalized value.
func (s Scale) InterpretValue(value float64) Band {
	return s.Interpret(s.Denormalize(value))
}

// AdaptiveNormalize linearly rescales raw from [min,max] and inverts it so
// 100 is the best possible score and 0 the worst. Output is clamped to
// [0,100]; a degenerate range yields 100.
func AdaptiveNormalize(raw, min, max float64) float64 {
	if max <= min || math.IsNaN(raw) {
		return 100
	}
	return clamp(100*(max-raw)/(max-min), 0, 100)
}

// Denormalize is the inverse of AdaptiveNormalize, clamped to [min,max].
func Denormalize(value, min, max float64) float64 {
	if math.IsNaN(value) {
		value = 100
	}
	v := clamp(value, 0, 100)
	return clamp(max-v/100*(max-min), min, max)
}

// InterpretGAD7 returns the GAD-7 severity label for a raw score.
func InterpretGAD7(raw float64) string { return GAD7.Interpret(raw).Label }

// InterpretPHQ9 returns the PHQ-9 severity label for a raw score.
func InterpretPHQ9(raw float64) string { return PHQ9.Interpret(raw).Label }

// InterpretISI returns the ISI severity label for a raw score.
func InterpretISI(raw float64) string { return ISI.Interpret(raw).Label }

// InterpretPSS10 returns the PSS-10 severity label for a raw score.
func InterpretPSS10(raw float64) string { return PSS10.Interpret(raw).Label }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
