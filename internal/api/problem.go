package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/digitaltwin/internal/types"
	"github.com/hyperengineering/digitaltwin/internal/validation"
)

const problemBaseURI = "https://digitaltwin.dev/errors/"

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// problemSlugs maps the statuses this API returns to type URI suffixes.
var problemSlugs = map[int]string{
	http.StatusBadRequest:          "bad-request",
	http.StatusNotFound:            "not-found",
	http.StatusInternalServerError: "internal-error",
	http.StatusServiceUnavailable:  "service-unavailable",
}

func newProblem(r *http.Request, status int, detail string) Problem {
	slug, ok := problemSlugs[status]
	if !ok {
		slug = "unknown"
	}
	return Problem{
		Type:     problemBaseURI + slug,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}
}

func encodeProblem(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "component", "api", "error", err)
	}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	encodeProblem(w, status, newProblem(r, status, detail))
}

// WriteProblemWithErrors writes a 400 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	encodeProblem(w, http.StatusBadRequest, ProblemWithErrors{
		Problem: newProblem(r, http.StatusBadRequest, detail),
		Errors:  errs,
	})
}

// MapError converts a classified service error to a Problem Details
// response. Internal details never reach the client.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	switch kind := types.KindOf(err); {
	case kind == types.KindNotFound:
		WriteProblem(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, context.DeadlineExceeded):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Report generation timed out")
	case kind == types.KindUpstreamUnavailable:
		WriteProblem(w, r, http.StatusServiceUnavailable, "Data store unavailable")
	case kind == types.KindInvariantViolation:
		WriteProblem(w, r, http.StatusInternalServerError, "Report failed consistency checks")
	default:
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
