package auth

import (
	"net/http"
	"strings"

	"github.com/user/libcat-go/apperror"
)

// tokenScheme is the expected Authorization header scheme:
// "Authorization: Token <token>".
const tokenScheme = "token"

// TokenFromRequest extracts the bearer token from the Authorization header.
// It returns the empty string when the header is absent or malformed.
func TokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != tokenScheme {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// TokenMiddleware requires a valid token on every request it guards. The
// resolved user is placed in the request context for handlers downstream.
// Requests without a valid token are rejected with 401; role checks are
// left to the handlers, which report 403 via Authorize.
func TokenMiddleware(service *Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				WriteError(w, r, apperror.NewAuthError("authentication required", nil))
				return
			}
			user, err := service.Authenticate(token)
			if err != nil {
				WriteError(w, r, err)
				return
			}
			ctx := NewContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalTokenMiddleware resolves a user when a valid token is supplied but
// lets anonymous requests through untouched. Public read endpoints use it so
// that catalogue browsing needs no account while a presented token is still
// honoured.
func OptionalTokenMiddleware(service *Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token != "" {
				if user, err := service.Authenticate(token); err == nil {
					r = r.WithContext(NewContextWithUser(r.Context(), user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
