package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// TestWithUserID_UserIDFromContext_RoundTrip verifies the id can be added and extracted.
func TestWithUserID_UserIDFromContext_RoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), testUserID)

	got, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("UserIDFromContext returned error: %v", err)
	}
	if got != testUserID {
		t.Errorf("got %q, want %q", got, testUserID)
	}
}

// TestUserIDFromContext_Missing verifies error when no id in context.
func TestUserIDFromContext_Missing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err != ErrNoUserInContext {
		t.Errorf("error = %v, want ErrNoUserInContext", err)
	}
	if _, err := UserIDFromContext(WithUserID(context.Background(), "")); err != ErrNoUserInContext {
		t.Errorf("empty id error = %v, want ErrNoUserInContext", err)
	}
}

// TestMustUserIDFromContext_Panics verifies panic when no id in context.
func TestMustUserIDFromContext_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustUserIDFromContext did not panic")
		}
	}()

	MustUserIDFromContext(context.Background())
}

func TestUserIDMiddleware(t *testing.T) {
	var seen string
	r := chi.NewRouter()
	r.With(UserIDMiddleware).Get("/users/{userID}", func(w http.ResponseWriter, r *http.Request) {
		seen = MustUserIDFromContext(r.Context())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/"+testUserID, nil))
	if w.Code != http.StatusOK || seen != testUserID {
		t.Errorf("valid id: status %d, seen %q", w.Code, seen)
	}

	seen = ""
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/bogus", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid id: status %d, want 400", w.Code)
	}
	if seen != "" {
		t.Error("handler ran for an invalid id")
	}
}
