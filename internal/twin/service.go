// Package twin ties aggregation, curve generation, narration, caching and
// archiving into the per-user operations served by the API, CLI and worker.
package twin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/archive"
	"github.com/hyperengineering/digitaltwin/internal/cache"
	"github.com/hyperengineering/digitaltwin/internal/dashboard"
	"github.com/hyperengineering/digitaltwin/internal/metrics"
	"github.com/hyperengineering/digitaltwin/internal/narrative"
	"github.com/hyperengineering/digitaltwin/internal/types"
)

// Aggregator builds the per-request data snapshot.
type Aggregator interface {
	AggregateUserData(ctx context.Context, userID string) (*types.AggregatedUserData, error)
}

// ReportGenerator turns a snapshot into a curve report.
type ReportGenerator interface {
	GenerateCurveOutput(data *types.AggregatedUserData) *types.DigitalTwinCurveOutput
}

// Option configures a Service.
type Option func(*Service)

// WithNarrator sets the narrator. The default is narrative.Noop.
func WithNarrator(n narrative.Narrator, timeout time.Duration) Option {
	return func(s *Service) {
		s.narrator = n
		s.narrativeTimeout = timeout
	}
}

// WithCache sets the report cache. The default never hits.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithArchiver sets the report archive. The default discards reports.
func WithArchiver(a archive.Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPrivacy applies f to every dashboard and served curve report.
func WithPrivacy(f *dashboard.PrivacyFilter) Option {
	return func(s *Service) { s.privacy = f }
}

// Service serves curve reports and dashboards for users. It is safe for
// concurrent use; every call works on its own snapshot.
type Service struct {
	agg       Aggregator
	gen       ReportGenerator
	dashboard *dashboard.Generator

	narrator         narrative.Narrator
	narrativeTimeout time.Duration
	cache            cache.Cache
	archive          archive.Archiver
	metrics          *metrics.Metrics
	privacy          *dashboard.PrivacyFilter
}

// NewService creates a Service.
func NewService(agg Aggregator, gen ReportGenerator, opts ...Option) *Service {
	s := &Service{
		agg:       agg,
		gen:       gen,
		dashboard: dashboard.NewGenerator(),
		narrator:  narrative.Noop{},
		cache:     cache.Noop{},
		archive:   archive.NoopArchiver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Curve returns the user's privacy-filtered report, from cache when the
// underlying data has not changed since it was generated.
func (s *Service) Curve(ctx context.Context, userID string) (*types.DigitalTwinCurveOutput, error) {
	out, err := s.report(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	if s.privacy != nil {
		out = s.privacy.ApplyReport(out)
	}
	return out, nil
}

// Refresh regenerates the user's report, ignoring any cached copy. The
// result is unfiltered; it feeds the cache and archive.
func (s *Service) Refresh(ctx context.Context, userID string) (*types.DigitalTwinCurveOutput, error) {
	return s.report(ctx, userID, false)
}

// Dashboard returns the privacy-filtered dashboard for the user.
func (s *Service) Dashboard(ctx context.Context, userID string) (*dashboard.Dashboard, error) {
	out, err := s.report(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	d := s.dashboard.Generate(userID, out)
	if s.privacy != nil {
		d = s.privacy.Apply(d)
	}
	return d, nil
}

func (s *Service) report(ctx context.Context, userID string, useCache bool) (*types.DigitalTwinCurveOutput, error) {
	start := time.Now()

	data, err := s.agg.AggregateUserData(ctx, userID)
	if err != nil {
		return nil, err
	}

	hash, err := cache.SnapshotHash(data)
	if err != nil {
		return nil, fmt.Errorf("hash snapshot: %w", err)
	}

	if useCache {
		cached, ok, err := s.cache.Get(ctx, userID, hash)
		switch {
		case err != nil:
			s.metrics.ObserveCache(metrics.CacheError)
			slog.Warn("cache lookup failed",
				"component", "twin",
				"user_id", userID,
				"error", err,
			)
		case ok:
			s.metrics.ObserveCache(metrics.CacheHit)
			return cached, nil
		default:
			s.metrics.ObserveCache(metrics.CacheMiss)
		}
	}

	out := s.gen.GenerateCurveOutput(data)
	out.Narrative = s.narrate(ctx, out, data.Summaries)
	s.metrics.ObserveGeneration(string(out.Meta.DataQuality.Level), time.Since(start))

	if err := s.cache.Set(ctx, userID, hash, out); err != nil {
		slog.Warn("cache store failed",
			"component", "twin",
			"user_id", userID,
			"error", err,
		)
	}
	if err := s.archive.Put(ctx, userID, hash, out); err != nil {
		slog.Warn("report archive failed",
			"component", "twin",
			"user_id", userID,
			"error", err,
		)
	}

	slog.Debug("curve generated",
		"component", "twin",
		"action", "generate",
		"user_id", userID,
		"quality", out.Meta.DataQuality.Level,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (s *Service) narrate(ctx context.Context, out *types.DigitalTwinCurveOutput, summaries []types.NarrativeSummary) types.Narrative {
	if s.narrativeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.narrativeTimeout)
		defer cancel()
	}
	n, outcome := narrative.Resolve(ctx, s.narrator, narrative.Request{Report: out, Summaries: summaries})
	s.metrics.ObserveNarrative(string(outcome))
	return n
}
