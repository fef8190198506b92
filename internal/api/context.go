package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/digitaltwin/internal/validation"
)

// userIDContextKey is the context key for the validated user ID.
type userIDContextKey struct{}

// ErrNoUserInContext indicates no user ID was found in the context.
var ErrNoUserInContext = errors.New("no user id in context")

// WithUserID returns a new context with the user ID attached.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, id)
}

// UserIDFromContext extracts the user ID from the context.
// Returns ErrNoUserInContext if not present or empty.
func UserIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(userIDContextKey{}).(string)
	if !ok || id == "" {
		return "", ErrNoUserInContext
	}
	return id, nil
}

// MustUserIDFromContext extracts the user ID or panics.
// Use only when UserIDMiddleware guarantees presence.
func MustUserIDFromContext(ctx context.Context) string {
	id, err := UserIDFromContext(ctx)
	if err != nil {
		panic("user id not in context: middleware misconfiguration")
	}
	return id
}

// UserIDMiddleware validates the {userID} path parameter and attaches it to
// the request context. Malformed IDs get a 400 before any lookup.
func UserIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "userID")
		if verr := validation.ValidateULID("userID", id); verr != nil {
			WriteProblemWithErrors(w, r, "Invalid user id", []validation.ValidationError{*verr})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}
