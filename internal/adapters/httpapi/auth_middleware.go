package httpapi

import (
	"context"
	"net/http"
	"strings"
)

const debugSubjectHeader = "X-Debug-Subject"

// TokenVerifier returns the subject of a valid bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// NewAuthMiddleware requires "Authorization: Bearer <token>" and stores the verified
// subject (a user id) in the request context.
func NewAuthMiddleware(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r.Header.Get("Authorization"))
			if problem != "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", problem, nil)
				return
			}
			sub, err := v.Verify(r.Context(), token)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sub)))
		})
	}
}

// bearerToken extracts the token, or describes what is wrong with the header.
func bearerToken(header string) (token, problem string) {
	if header == "" {
		return "", "missing Authorization header"
	}
	scheme, rest, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "malformed Authorization header"
	}
	if token = strings.TrimSpace(rest); token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

// NewDevAuthMiddleware trusts the X-Debug-Subject header, falling back to
// defaultSubject. Local development only.
func NewDevAuthMiddleware(defaultSubject string) func(http.Handler) http.Handler {
	defaultSubject = strings.TrimSpace(defaultSubject)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := strings.TrimSpace(r.Header.Get(debugSubjectHeader))
			if sub == "" {
				sub = defaultSubject
			}
			if sub == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject (set "+debugSubjectHeader+")", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sub)))
		})
	}
}
