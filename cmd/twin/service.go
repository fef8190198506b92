package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/aggregator"
	"github.com/hyperengineering/digitaltwin/internal/archive"
	"github.com/hyperengineering/digitaltwin/internal/cache"
	"github.com/hyperengineering/digitaltwin/internal/config"
	"github.com/hyperengineering/digitaltwin/internal/curve"
	"github.com/hyperengineering/digitaltwin/internal/dashboard"
	"github.com/hyperengineering/digitaltwin/internal/metrics"
	"github.com/hyperengineering/digitaltwin/internal/narrative"
	"github.com/hyperengineering/digitaltwin/internal/output"
	"github.com/hyperengineering/digitaltwin/internal/store"
	"github.com/hyperengineering/digitaltwin/internal/twin"
)

// buildService wires the engines and optional collaborators from cfg. The
// returned func releases the cache connection.
func buildService(ctx context.Context, cfg *config.Config, db store.Store, m *metrics.Metrics) (*twin.Service, func(), error) {
	curves, err := curve.NewEngine(curveConfig(cfg.Engine))
	if err != nil {
		return nil, nil, fmt.Errorf("curve engine: %w", err)
	}

	agg, err := aggregator.New(db, aggregator.Config{
		MinCalibrations: cfg.Engine.MinCalibrations,
		MaxCalibrations: cfg.Engine.MaxCalibrations,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("aggregator: %w", err)
	}

	gen, err := output.New(curves, output.Config{
		PredictionWeeks:            cfg.Engine.PredictionWeeks,
		ChartHorizonWeeks:          cfg.Engine.ChartHorizonWeeks,
		MinCalibrations:            cfg.Engine.MinCalibrations,
		FullConfidenceCalibrations: cfg.Engine.FullConfidenceCalibrations,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("output generator: %w", err)
	}

	opts := []twin.Option{
		twin.WithMetrics(m),
		twin.WithPrivacy(dashboard.NewPrivacyFilter(cfg.Privacy.PseudonymSalt, cfg.Privacy.IncludeRawScores)),
	}

	if cfg.NarrativeActive() {
		n := narrative.NewOpenAI(cfg.Narrative.APIKey, cfg.Narrative.Model, cfg.Narrative.MaxTokens)
		opts = append(opts, twin.WithNarrator(n, time.Duration(cfg.Narrative.Timeout)))
		slog.Info("narrator initialized", "model", n.ModelName())
	}

	arch, err := archive.New(cfg.Archive)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, twin.WithArchiver(arch))

	cleanup := func() {}
	if cfg.Cache.Addr != "" {
		rc, err := cache.NewRedis(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, time.Duration(cfg.Cache.TTL))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, twin.WithCache(rc))
		cleanup = func() {
			if err := rc.Close(); err != nil {
				slog.Error("cache close error", "error", err)
			}
		}
	}

	return twin.NewService(agg, gen, opts...), cleanup, nil
}

// curveConfig overlays the configured engine settings on the default tuning.
func curveConfig(e config.EngineConfig) curve.Config {
	c := curve.DefaultConfig()
	c.ShockThreshold = e.ShockThreshold
	c.ShockRecoveryWeeks = e.ShockRecoveryWeeks
	c.Strict = e.Strict
	return c
}

// openStore opens the configured database for a CLI command.
func openStore() (*store.SQLiteStore, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return db, cfg, nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
