package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/digitaltwin/internal/dashboard"
	"github.com/hyperengineering/digitaltwin/internal/types"
)

// CurveService serves per-user reports. Implemented by twin.Service.
type CurveService interface {
	Curve(ctx context.Context, userID string) (*types.DigitalTwinCurveOutput, error)
	Dashboard(ctx context.Context, userID string) (*dashboard.Dashboard, error)
}

// UserCounter reports the number of tracked users. Implemented by the store.
type UserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
}

// Instrumentation serves the metrics endpoint and observes requests.
// Implemented by metrics.Metrics.
type Instrumentation interface {
	RequestObserver
	Handler() http.Handler
}

// Handler implements the API handlers
type Handler struct {
	svc     CurveService
	users   UserCounter
	metrics Instrumentation
	version string
}

// NewHandler creates a new Handler. metrics may be nil to disable /metrics
// and request instrumentation.
func NewHandler(svc CurveService, users UserCounter, metrics Instrumentation, version string) *Handler {
	return &Handler{
		svc:     svc,
		users:   users,
		metrics: metrics,
		version: version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.users.CountUsers(r.Context())
	if err != nil {
		slog.Error("health check failed", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Data store unavailable")
		return
	}

	writeJSON(w, types.HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UserCount:     count,
		SchemaVersion: types.SchemaVersion,
	})
}

// Curve handles GET /api/v1/users/{userID}/curve. Insufficient data is not
// an error; the report carries quality "insufficient".
func (h *Handler) Curve(w http.ResponseWriter, r *http.Request) {
	userID := MustUserIDFromContext(r.Context())

	out, err := h.svc.Curve(r.Context(), userID)
	if err != nil {
		logFailure(r, userID, err)
		MapError(w, r, err)
		return
	}
	writeJSON(w, out)
}

// Dashboard handles GET /api/v1/users/{userID}/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID := MustUserIDFromContext(r.Context())

	d, err := h.svc.Dashboard(r.Context(), userID)
	if err != nil {
		logFailure(r, userID, err)
		MapError(w, r, err)
		return
	}
	writeJSON(w, d)
}

func logFailure(r *http.Request, userID string, err error) {
	kind := types.KindOf(err)
	if kind == types.KindNotFound {
		return
	}
	slog.Error("report request failed",
		"path", r.URL.Path,
		"user_id", userID,
		"error_kind", kind.String(),
		"error", err,
	)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
