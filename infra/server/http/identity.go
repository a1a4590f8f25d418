package http

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	// UserIDContextKey is the key used to store/retrieve the caller identity from context
	UserIDContextKey contextKey = "user_id"

	HeaderUserID = "X-User-ID"
	QueryUserID  = "userId"
)

// Identity resolves the caller from the X-User-ID header or the userId query parameter
// (browsers cannot set headers on websocket upgrades). Token validation belongs to the
// gateway in front of this service; requests without an identity pass through unchanged.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			id = strings.TrimSpace(r.URL.Query().Get(QueryUserID))
		}
		if id != "" {
			r = r.WithContext(context.WithValue(r.Context(), UserIDContextKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireIdentity rejects requests that carry no identity.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			http.Error(w, "user identity required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserIDFromContext is a helper to extract the identity from context safely.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDContextKey).(string)
	return id, ok && id != ""
}
