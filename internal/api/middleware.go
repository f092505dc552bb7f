package api

import (
	"context"
	"net/http"
	"strings"
)

// UserHeader names the acting user when the request body does not.
const UserHeader = "X-BookVersions-User"

type userKey struct{}

// UserMiddleware stores the user named by UserHeader (or the "user" query parameter) in
// the request context. Authentication is left to the proxy in front of the service.
func UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := extractUser(r); user != "" {
			r = r.WithContext(context.WithValue(r.Context(), userKey{}, user))
		}
		next.ServeHTTP(w, r)
	})
}

func extractUser(r *http.Request) string {
	if user := r.Header.Get(UserHeader); user != "" {
		return strings.TrimSpace(user)
	}
	return strings.TrimSpace(r.URL.Query().Get("user"))
}

// requestUser returns explicit when set, otherwise the user found by UserMiddleware.
func requestUser(r *http.Request, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	user, _ := r.Context().Value(userKey{}).(string)
	return user
}
