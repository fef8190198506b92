// Package aggregator assembles the read-only per-request snapshot of a
// user's baseline, calibration history, and narrative summaries, and decides
// whether it is sufficient for analysis.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/scales"
	"github.com/hyperengineering/digitaltwin/internal/store"
	"github.com/hyperengineering/digitaltwin/internal/types"
	"github.com/hyperengineering/digitaltwin/internal/validation"
)

// Source is the read contract against the data store.
type Source interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	LatestAssessmentScores(ctx context.Context, userID string) ([]store.ScoreRecord, error)
	ListCalibrations(ctx context.Context, userID string, limit int) ([]store.CalibrationRecord, error)
	ListSummaries(ctx context.Context, userID string) ([]store.SummaryRecord, error)
}

// Config holds the sufficiency and history-window settings.
type Config struct {
	// MinCalibrations is the minimum number of valid check-ins required
	// for analysis.
	MinCalibrations int
	// MaxCalibrations caps how many of the most recent check-ins are read.
	MaxCalibrations int
}

// DefaultConfig returns the standard window: at least 7 and at most 90
// check-ins.
func DefaultConfig() Config {
	return Config{MinCalibrations: 7, MaxCalibrations: 90}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MinCalibrations < 1 {
		return errors.New("min calibrations must be at least 1")
	}
	if c.MaxCalibrations < c.MinCalibrations {
		return fmt.Errorf("max calibrations (%d) must be >= min calibrations (%d)", c.MaxCalibrations, c.MinCalibrations)
	}
	return nil
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the wall clock used to stamp AsOf.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithScales overrides the questionnaire table used to validate baseline
// scores.
func WithScales(t scales.Table) Option {
	return func(a *Aggregator) { a.scales = t }
}

// Aggregator reads and normalizes a user's stored records.
type Aggregator struct {
	src    Source
	cfg    Config
	scales scales.Table
	now    func() time.Time
}

// New creates an Aggregator over src.
func New(src Source, cfg Config, opts ...Option) (*Aggregator, error) {
	if src == nil {
		return nil, errors.New("source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Aggregator{
		src:    src,
		cfg:    cfg,
		scales: scales.DefaultTable(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the aggregator configuration.
func (a *Aggregator) Config() Config {
	return a.cfg
}

// AggregateUserData builds the snapshot for userID. A missing user fails with
// ErrNotFound; any other source failure fails with ErrUpstreamUnavailable.
// Malformed stored rows are skipped and counted, never fatal.
func (a *Aggregator) AggregateUserData(ctx context.Context, userID string) (*types.AggregatedUserData, error) {
	if err := validation.ValidateRequired("user_id", userID); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), types.ErrNotFound)
	}

	if _, err := a.src.GetUser(ctx, userID); err != nil {
		return nil, sourceError("get user", err)
	}

	scoreRows, err := a.src.LatestAssessmentScores(ctx, userID)
	if err != nil {
		return nil, sourceError("read baseline", err)
	}
	calRows, err := a.src.ListCalibrations(ctx, userID, a.cfg.MaxCalibrations)
	if err != nil {
		return nil, sourceError("read calibrations", err)
	}
	sumRows, err := a.src.ListSummaries(ctx, userID)
	if err != nil {
		return nil, sourceError("read summaries", err)
	}

	data := &types.AggregatedUserData{
		UserID: userID,
		AsOf:   a.now().UTC().Truncate(24 * time.Hour),
	}
	data.Baseline, data.Malformed.Baseline = a.buildBaseline(scoreRows)
	data.Calibrations, data.Malformed.Calibrations = buildCalibrations(calRows, data.AsOf)
	data.Summaries, data.Malformed.Summaries = buildSummaries(sumRows)
	_, data.Status = a.IsDataSufficientForAnalysis(data)

	if n := data.Malformed.Total(); n > 0 {
		slog.Warn("skipped malformed records",
			"component", "aggregator",
			"user_id", userID,
			"baseline", data.Malformed.Baseline,
			"calibrations", data.Malformed.Calibrations,
			"summaries", data.Malformed.Summaries,
		)
	}
	return data, nil
}

// IsDataSufficientForAnalysis reports whether data has a baseline and at
// least MinCalibrations check-ins, with every unmet requirement listed.
func (a *Aggregator) IsDataSufficientForAnalysis(data *types.AggregatedUserData) (bool, types.DataCollectionStatus) {
	status := CheckSufficiency(data, a.cfg.MinCalibrations)
	return status.Sufficient, status
}

// CheckSufficiency evaluates the sufficiency requirements against data.
func CheckSufficiency(data *types.AggregatedUserData, minCalibrations int) types.DataCollectionStatus {
	var missing []types.MissingRequirement
	if data == nil || data.Baseline == nil || len(data.Baseline.Scores) == 0 {
		missing = append(missing, types.MissingRequirement{
			Code:   types.RequirementBaseline,
			Detail: "no baseline assessment recorded",
		})
	}
	have := 0
	if data != nil {
		have = len(data.Calibrations)
	}
	if have < minCalibrations {
		missing = append(missing, types.MissingRequirement{
			Code:   types.RequirementCalibrations,
			Detail: fmt.Sprintf("need at least %d check-ins, have %d", minCalibrations, have),
			Have:   have,
			Need:   minCalibrations,
		})
	}
	return types.DataCollectionStatus{Sufficient: len(missing) == 0, Missing: missing}
}

func sourceError(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, types.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, types.ErrUpstreamUnavailable, err)
}

// buildBaseline keeps the first valid score per metric. Rows for unknown
// metrics, unknown scales, or out-of-range scores are counted as malformed.
func (a *Aggregator) buildBaseline(rows []store.ScoreRecord) (*types.BaselineData, int) {
	if len(rows) == 0 {
		return nil, 0
	}
	known := make(map[types.Metric]bool, len(types.AllMetrics))
	for _, m := range types.AllMetrics {
		known[m] = true
	}

	var b *types.BaselineData
	malformed := 0
	for _, r := range rows {
		m := types.Metric(r.Metric)
		if !known[m] || r.AssessedAt.IsZero() {
			malformed++
			continue
		}
		score := types.ScaleScore{Scale: r.Scale, Score: r.Score, RecordedAt: r.AssessedAt}
		if errs := validation.ValidateScaleScore(a.scales, m, score); len(errs) > 0 {
			malformed++
			continue
		}
		if b == nil {
			b = &types.BaselineData{
				AssessmentID: r.AssessmentID,
				AssessedAt:   r.AssessedAt.UTC(),
				Scores:       make(map[types.Metric]types.ScaleScore),
			}
		}
		if _, dup := b.Scores[m]; dup {
			continue
		}
		b.Scores[m] = score
	}
	return b, malformed
}

// buildCalibrations parses and validates rows, drops entries dated after
// asOf, and keeps the most recently updated row for each date. The result
// is sorted by date.
func buildCalibrations(rows []store.CalibrationRecord, asOf time.Time) ([]types.CalibrationEntry, int) {
	type candidate struct {
		entry   types.CalibrationEntry
		updated time.Time
	}
	byDate := make(map[string]candidate, len(rows))
	malformed := 0

	for i, r := range rows {
		if err := validation.ValidateDate("date", r.Date, types.DateLayout); err != nil {
			malformed++
			continue
		}
		date, _ := time.Parse(types.DateLayout, r.Date)
		e := types.CalibrationEntry{
			Date:         date,
			Mood:         r.Mood,
			Stress:       r.Stress,
			SleepQuality: r.SleepQuality,
			Energy:       r.Energy,
		}
		if errs := validation.ValidateCalibration(i, e); len(errs) > 0 || date.After(asOf) {
			malformed++
			continue
		}
		if prev, ok := byDate[r.Date]; ok && !r.UpdatedAt.After(prev.updated) {
			continue
		}
		byDate[r.Date] = candidate{entry: e, updated: r.UpdatedAt}
	}

	out := make([]types.CalibrationEntry, 0, len(byDate))
	for _, c := range byDate {
		out = append(out, c.entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, malformed
}

func buildSummaries(rows []store.SummaryRecord) ([]types.NarrativeSummary, int) {
	var out []types.NarrativeSummary
	malformed := 0
	for i, r := range rows {
		s := types.NarrativeSummary{ID: r.ID, Text: r.Text, CreatedAt: r.CreatedAt.UTC()}
		if errs := validation.ValidateSummary(i, s); len(errs) > 0 {
			malformed++
			continue
		}
		out = append(out, s)
	}
	return out, malformed
}
