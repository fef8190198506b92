package validation

import (
	"fmt"

	"github.com/hyperengineering/digitaltwin/internal/scales"
	"github.com/hyperengineering/digitaltwin/internal/types"
)

// Field limits for stored free text.
const (
	MaxSummaryLength   = 4000
	MaxNarrativeLength = 2000
	MaxSignal          = 10.0
)

// ValidateCalibration checks one stored check-in. Every signal must be a
// finite number on the 0-10 scale and the date must be set.
func ValidateCalibration(index int, e types.CalibrationEntry) []ValidationError {
	var c Collector
	prefix := fmt.Sprintf("calibrations[%d]", index)

	if e.Date.IsZero() {
		c.Add(&ValidationError{Field: prefix + ".date", Message: "is required"})
	}
	c.Add(ValidateRange(prefix+".mood", e.Mood, 0, MaxSignal))
	c.Add(ValidateRange(prefix+".stress", e.Stress, 0, MaxSignal))
	c.Add(ValidateRange(prefix+".sleep_quality", e.SleepQuality, 0, MaxSignal))
	c.Add(ValidateRange(prefix+".energy", e.Energy, 0, MaxSignal))
	return c.Errors()
}

// ValidateScaleScore checks a baseline score against the scale it was
// recorded on. The scale must be known and must measure metric.
func ValidateScaleScore(table scales.Table, metric types.Metric, s types.ScaleScore) []ValidationError {
	var c Collector
	prefix := fmt.Sprintf("baseline.%s", metric)

	ids := make([]string, 0, len(types.AllMetrics))
	for _, m := range types.AllMetrics {
		if sc, ok := table[m]; ok {
			ids = append(ids, sc.ID)
		}
	}
	if err := ValidateEnum(prefix+".scale", s.Scale, ids); err != nil {
		c.Add(err)
		return c.Errors()
	}

	sc, ok := table.ByID(s.Scale)
	if !ok || sc.Metric != metric {
		c.Add(&ValidationError{Field: prefix + ".scale", Message: fmt.Sprintf("does not measure %s", metric)})
		return c.Errors()
	}
	c.Add(ValidateRange(prefix+".score", s.Score, sc.Min, sc.Max))
	return c.Errors()
}

// ValidateSummary checks one stored narrative summary.
func ValidateSummary(index int, s types.NarrativeSummary) []ValidationError {
	var c Collector
	field := fmt.Sprintf("summaries[%d].text", index)

	if err := ValidateRequired(field, s.Text); err != nil {
		c.Add(err)
		return c.Errors()
	}
	c.Add(ValidateUTF8(field, s.Text))
	c.Add(ValidateNoNullBytes(field, s.Text))
	c.Add(ValidateMaxLength(field, s.Text, MaxSummaryLength))
	return c.Errors()
}

// ValidateNarrative checks generated narrative text before it is attached
// to a report.
func ValidateNarrative(text string) []ValidationError {
	var c Collector
	if err := ValidateRequired("narrative.text", text); err != nil {
		c.Add(err)
		return c.Errors()
	}
	c.Add(ValidateUTF8("narrative.text", text))
	c.Add(ValidateNoNullBytes("narrative.text", text))
	c.Add(ValidateMaxLength("narrative.text", text, MaxNarrativeLength))
	return c.Errors()
}
