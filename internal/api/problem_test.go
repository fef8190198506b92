package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperengineering/digitaltwin/internal/types"
	"github.com/hyperengineering/digitaltwin/internal/validation"
)

func TestWriteProblem_BodyFormat(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/users/x/curve", nil)

	WriteProblem(w, r, http.StatusNotFound, "User not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %v, want application/problem+json", ct)
	}

	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if p.Type != "https://digitaltwin.dev/errors/not-found" || p.Title != "Not Found" {
		t.Errorf("type/title = %q/%q", p.Type, p.Title)
	}
	if p.Status != 404 || p.Detail != "User not found" || p.Instance != "/api/v1/users/x/curve" {
		t.Errorf("problem = %+v", p)
	}
}

func TestWriteProblem_UnknownStatus(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteProblem(w, r, http.StatusTeapot, "short and stout")

	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if p.Type != "https://digitaltwin.dev/errors/unknown" {
		t.Errorf("type = %q", p.Type)
	}
	if p.Title != http.StatusText(http.StatusTeapot) {
		t.Errorf("title = %q", p.Title)
	}
}

func TestWriteProblemWithErrors(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/users/bad/curve", nil)

	WriteProblemWithErrors(w, r, "Invalid user id", []validation.ValidationError{
		{Field: "userID", Message: "must be a valid ULID (26 characters)"},
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	var p ProblemWithErrors
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(p.Errors) != 1 || p.Errors[0].Field != "userID" {
		t.Errorf("errors = %+v", p.Errors)
	}
	if p.Status != http.StatusBadRequest {
		t.Errorf("status field = %d", p.Status)
	}
}

func TestMapError_DetailsHideInternals(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantDetail string
	}{
		{fmt.Errorf("get user 01H: %w", types.ErrNotFound), http.StatusNotFound, "User not found"},
		{fmt.Errorf("narrate: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, "Report generation timed out"},
		{fmt.Errorf("query: %w: %w", types.ErrUpstreamUnavailable, errors.New("database is locked")), http.StatusServiceUnavailable, "Data store unavailable"},
		{&types.InvariantError{Metric: types.MetricStress, Field: "target", Value: -3, Max: 100}, http.StatusInternalServerError, "Report failed consistency checks"},
		{errors.New("secret internal state"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		MapError(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/x/curve", nil), tt.err)

		var p Problem
		if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if w.Code != tt.wantStatus || p.Detail != tt.wantDetail {
			t.Errorf("MapError(%v) = %d %q, want %d %q", tt.err, w.Code, p.Detail, tt.wantStatus, tt.wantDetail)
		}
		for _, leak := range []string{"locked", "secret", "01H"} {
			if strings.Contains(w.Body.String(), leak) {
				t.Errorf("MapError(%v) leaked %q", tt.err, leak)
			}
		}
	}
}
