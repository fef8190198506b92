package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/aggregator"
	"github.com/hyperengineering/digitaltwin/internal/api"
	"github.com/hyperengineering/digitaltwin/internal/curve"
	"github.com/hyperengineering/digitaltwin/internal/dashboard"
	"github.com/hyperengineering/digitaltwin/internal/metrics"
	"github.com/hyperengineering/digitaltwin/internal/narrative"
	"github.com/hyperengineering/digitaltwin/internal/output"
	"github.com/hyperengineering/digitaltwin/internal/store"
	"github.com/hyperengineering/digitaltwin/internal/twin"
	"github.com/hyperengineering/digitaltwin/internal/types"
)

// --- Test Environment Setup ---

// testEnv is a fully wired in-process server backed by a real SQLite store.
type testEnv struct {
	db      *store.SQLiteStore
	svc     *twin.Service
	metrics *metrics.Metrics
	router  http.Handler
}

func setupTestEnv(t *testing.T, opts ...twin.Option) *testEnv {
	t.Helper()

	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "twin.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	engine, err := curve.NewEngine(curve.DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	agg, err := aggregator.New(db, aggregator.DefaultConfig())
	if err != nil {
		t.Fatalf("aggregator.New() error = %v", err)
	}
	gen, err := output.New(engine, output.DefaultConfig())
	if err != nil {
		t.Fatalf("output.New() error = %v", err)
	}
	m, err := metrics.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	all := append([]twin.Option{
		twin.WithMetrics(m),
		twin.WithPrivacy(dashboard.NewPrivacyFilter("e2e-salt", false)),
	}, opts...)
	svc := twin.NewService(agg, gen, all...)

	return &testEnv{
		db:      db,
		svc:     svc,
		metrics: m,
		router:  api.NewRouter(api.NewHandler(svc, db, m, "1.0.0")),
	}
}

// --- Seeding ---

var baselineScores = []store.ScoreRecord{
	{Metric: string(types.MetricAnxiety), Scale: "GAD7", Score: 15},
	{Metric: string(types.MetricDepression), Scale: "PHQ9", Score: 18},
	{Metric: string(types.MetricInsomnia), Scale: "ISI", Score: 16},
	{Metric: string(types.MetricStress), Scale: "PSS10", Score: 28},
}

// seedUser creates a user with a full baseline and days improving daily
// check-ins ending yesterday.
func (e *testEnv) seedUser(t *testing.T, days int) string {
	t.Helper()
	ctx := context.Background()

	u, err := e.db.CreateUser(ctx, "e2e user")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	now := time.Now().UTC()
	if _, err := e.db.RecordAssessment(ctx, u.ID, now.AddDate(0, 0, -days-1), baselineScores); err != nil {
		t.Fatalf("RecordAssessment() error = %v", err)
	}
	for i := 0; i < days; i++ {
		e.addCheckin(t, u.ID, now.AddDate(0, 0, -days+i), 3+float64(i)*0.25)
	}
	return u.ID
}

// addCheckin records a check-in where every signal reflects wellbeing v.
func (e *testEnv) addCheckin(t *testing.T, userID string, day time.Time, v float64) {
	t.Helper()
	_, err := e.db.RecordCalibration(context.Background(), userID, store.CalibrationRecord{
		Date:         day.Format(types.DateLayout),
		Mood:         v,
		Stress:       10 - v,
		SleepQuality: v,
		Energy:       v,
	})
	if err != nil {
		t.Fatalf("RecordCalibration() error = %v", err)
	}
}

// --- HTTP Helpers ---

func doGet(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, router http.Handler, path string, v any) {
	t.Helper()
	rec := doGet(t, router, path)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status %d: %s", path, rec.Code, rec.Body.String())
	}
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("GET %s: decode: %v", path, err)
	}
}

// scrapeMetrics returns the Prometheus text exposition.
func scrapeMetrics(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := doGet(t, router, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics: status %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func assertMetricLine(t *testing.T, scrape, line string) {
	t.Helper()
	if !strings.Contains(scrape, line) {
		t.Errorf("metrics missing %q", line)
	}
}

// --- Collaborator Doubles ---

type stubNarrator struct {
	text string
	err  error
}

func (n stubNarrator) Narrate(_ context.Context, _ narrative.Request) (string, error) {
	return n.text, n.err
}

// blockingNarrator waits for its context to end.
type blockingNarrator struct{}

func (blockingNarrator) Narrate(ctx context.Context, _ narrative.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*types.DigitalTwinCurveOutput
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*types.DigitalTwinCurveOutput)}
}

func (c *memCache) Get(_ context.Context, userID, hash string) (*types.DigitalTwinCurveOutput, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.entries[userID+"/"+hash]
	return out, ok, nil
}

func (c *memCache) Set(_ context.Context, userID, hash string, out *types.DigitalTwinCurveOutput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID+"/"+hash] = out
	return nil
}

func (c *memCache) Close() error { return nil }

var errBackendDown = errors.New("backend down")

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string, string) (*types.DigitalTwinCurveOutput, bool, error) {
	return nil, false, errBackendDown
}

func (brokenCache) Set(context.Context, string, string, *types.DigitalTwinCurveOutput) error {
	return errBackendDown
}

func (brokenCache) Close() error { return nil }

// brokenArchiver fails every upload.
type brokenArchiver struct{}

func (brokenArchiver) Put(context.Context, string, string, *types.DigitalTwinCurveOutput) error {
	return errBackendDown
}
