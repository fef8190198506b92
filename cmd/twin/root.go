package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/digitaltwin/internal/api"
	"github.com/hyperengineering/digitaltwin/internal/config"
	"github.com/hyperengineering/digitaltwin/internal/metrics"
	"github.com/hyperengineering/digitaltwin/internal/store"
	"github.com/hyperengineering/digitaltwin/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	dbPathOverride string
	jsonOutput     bool
)

var rootCmd = &cobra.Command{
	Use:          "twin",
	Short:        "Digital twin curve engine",
	Long:         "Serves projected recovery curves built from baseline assessments and daily check-ins. Without a subcommand, runs the HTTP server.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathOverride, "db", "",
		"Database path (overrides config and TWIN_DB_PATH)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(curveCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 1. Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 2. Initialize logger
	slog.SetDefault(slog.New(newLogHandler(os.Stdout, cfg.Log)))
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 3. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 4. Metrics and curve service
	m, err := metrics.NewMetrics()
	if err != nil {
		db.Close()
		return fmt.Errorf("register metrics: %w", err)
	}
	svc, closeService, err := buildService(ctx, cfg, db, m)
	if err != nil {
		db.Close()
		return err
	}
	slog.Info("service initialized",
		"narrative", cfg.NarrativeActive(),
		"cache", cfg.Cache.Addr != "",
		"archive", cfg.Archive.Bucket != "",
		"strict", cfg.Engine.Strict,
	)
	if cfg.Privacy.PseudonymSalt == "" {
		slog.Warn("TWIN_PSEUDONYM_SALT not set; dashboard pseudonyms are unsalted")
	}

	// 5. Initialize HTTP router
	router := api.NewRouter(api.NewHandler(svc, db, m, Version))
	slog.Info("router initialized")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 6. Background workers
	var wg sync.WaitGroup
	if interval := time.Duration(cfg.Worker.RefreshInterval); interval > 0 {
		refresher := worker.NewRefreshWorker(db, svc, m, interval)
		startWorker(ctx, &wg, "curve-refresh", refresher.Run)
	}

	// 7. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Wait for workers, then release the cache and store
	wg.Wait()
	closeService()
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// loadConfig loads configuration and applies the --db override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbPathOverride != "" {
		cfg.Database.Path = dbPathOverride
	}
	return cfg, nil
}

func newLogHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
