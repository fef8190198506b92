// Package curve is the numeric core of the digital twin: it turns a baseline
// assessment and daily calibration history into per-metric
// exponential-approach curves and samples them with confidence bounds.
//
// Every function here is pure. The Engine holds only immutable configuration
// and is safe for concurrent use.
package curve

import (
	"errors"
	"log/slog"
	"math"

	"github.com/hyperengineering/digitaltwin/internal/scales"
	"github.com/hyperengineering/digitaltwin/internal/types"
)

// Config tunes the curve model. All thresholds are injected here rather than
// read from package globals.
type Config struct {
	Scales scales.Table

	// ShockThreshold is the deviation, in 0-10 signal points, from the mean of
	// neighbouring entries that marks a calibration entry as a shock.
	ShockThreshold float64
	// ShockNeighbors is how many entries on each side form the local mean.
	ShockNeighbors int
	// ShockRecoveryWeeks is how long a shock's perturbation takes to vanish.
	ShockRecoveryWeeks float64
	// ShockWeight scales a shock's magnitude into a curve perturbation.
	ShockWeight float64

	// FlatSlope is the |slope| (normalized units per week) below which a
	// trend is considered flat.
	FlatSlope float64
	// TrendSaturation is the slope at which the target pull reaches ~76% of MaxPull.
	TrendSaturation float64
	// MaxPull bounds how far the target moves toward 0 or 100.
	MaxPull float64

	// BaseRate is the approach rate (per week) with dense, fresh history.
	BaseRate float64
	// DensityFullAt is the sample count that earns the full BaseRate.
	DensityFullAt int
	// MinRateFactor floors the density and recency multipliers.
	MinRateFactor float64
	// RecencyHalfLifeDays halves the rate for each such span of staleness.
	RecencyHalfLifeDays float64

	// Confidence band half-width bounds and growth, in normalized units.
	MinHalfWidth  float64
	MaxHalfWidth  float64
	GrowthPerWeek float64

	// Strict turns bound violations into InvariantErrors instead of
	// clamping them.
	Strict bool
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Scales:              scales.DefaultTable(),
		ShockThreshold:      3.0,
		ShockNeighbors:      3,
		ShockRecoveryWeeks:  2,
		ShockWeight:         0.5,
		FlatSlope:           0.5,
		TrendSaturation:     10,
		MaxPull:             0.85,
		BaseRate:            0.35,
		DensityFullAt:       28,
		MinRateFactor:       0.2,
		RecencyHalfLifeDays: 14,
		MinHalfWidth:        2,
		MaxHalfWidth:        25,
		GrowthPerWeek:       1.5,
	}
}

// Validate checks the configuration for values the model cannot use.
func (c Config) Validate() error {
	switch {
	case len(c.Scales) == 0:
		return errors.New("curve: at least one scale is required")
	case c.ShockThreshold <= 0:
		return errors.New("curve: shock threshold must be positive")
	case c.ShockNeighbors < 1:
		return errors.New("curve: shock neighbours must be at least 1")
	case c.ShockRecoveryWeeks <= 0:
		return errors.New("curve: shock recovery weeks must be positive")
	case c.TrendSaturation <= 0:
		return errors.New("curve: trend saturation must be positive")
	case c.MaxPull <= 0 || c.MaxPull > 1:
		return errors.New("curve: max pull must be in (0, 1]")
	case c.BaseRate < 0:
		return errors.New("curve: base rate must not be negative")
	case c.DensityFullAt < 1:
		return errors.New("curve: density full-at must be at least 1")
	case c.RecencyHalfLifeDays <= 0:
		return errors.New("curve: recency half-life must be positive")
	case c.MinHalfWidth < 0 || c.MaxHalfWidth < c.MinHalfWidth || c.MaxHalfWidth > 50:
		return errors.New("curve: half-widths must satisfy 0 <= min <= max <= 50")
	}
	return nil
}

// Engine evaluates curves under a fixed Config.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine. It returns an error for an unusable config.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Scale returns the questionnaire for metric m.
func (e *Engine) Scale(m types.Metric) (scales.Scale, bool) {
	s, ok := e.cfg.Scales[m]
	return s, ok
}

// Metrics returns the configured metrics in canonical order.
func (e *Engine) Metrics() []types.Metric {
	out := make([]types.Metric, 0, len(e.cfg.Scales))
	for _, m := range types.AllMetrics {
		if _, ok := e.cfg.Scales[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// guard enforces lo <= v <= hi. In strict mode a violation is returned as an
// InvariantError; otherwise it is logged and v is clamped.
func (e *Engine) guard(m types.Metric, field string, v, lo, hi float64) (float64, error) {
	if !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi {
		return v, nil
	}
	ierr := &types.InvariantError{Metric: m, Field: field, Value: v, Min: lo, Max: hi}
	if e.cfg.Strict {
		return 0, ierr
	}
	slog.Warn("invariant violation clamped",
		"component", "curve",
		"metric", string(m),
		"field", field,
		"value", v,
	)
	if math.IsNaN(v) {
		return lo, nil
	}
	return clamp(v, lo, hi), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
