package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/config"
)

// TestStartWorker_LaunchesGoroutineAndTracksCompletion tests the startWorker helper
func TestStartWorker_LaunchesGoroutineAndTracksCompletion(t *testing.T) {
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran atomic.Bool
	startWorker(ctx, &wg, "test-worker", func(ctx context.Context) {
		ran.Store(true)
	})

	wg.Wait()
	if !ran.Load() {
		t.Error("worker function did not run")
	}
}

// TestStartWorker_RespectsContextCancellation verifies workers stop when context is cancelled
func TestStartWorker_RespectsContextCancellation(t *testing.T) {
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	startWorker(ctx, &wg, "cancel-test", func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})

	cancel()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("worker did not respond to context cancellation")
	}

	wg.Wait()
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newLogHandler(&buf, config.LogConfig{Level: "info", Format: "text"})).Info("hello", "component", "test")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	slog.New(newLogHandler(&buf, config.LogConfig{Level: "info", Format: "json"})).Info("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	slog.New(newLogHandler(&buf, config.LogConfig{Level: "warn"})).Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
}

func TestCurveConfig_OverlaysEngineSettings(t *testing.T) {
	c := curveConfig(config.EngineConfig{ShockThreshold: 4, ShockRecoveryWeeks: 3, Strict: true})
	if c.ShockThreshold != 4 || c.ShockRecoveryWeeks != 3 || !c.Strict {
		t.Errorf("curveConfig = %+v", c)
	}
	if c.MaxPull == 0 || c.Scales == nil {
		t.Error("curveConfig dropped default tuning")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
