package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/teamup/pkg/jwtx"
	"github.com/aussiebroadwan/teamup/pkg/slogx"
)

// tokenFromRequest reads the session token from the cookie, falling back to
// an Authorization bearer header for API clients.
func tokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}

// SessionMiddleware requires a valid session. A missing token is a 401, a
// token that fails verification is a 403.
func SessionMiddleware(v jwtx.Verifier, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := tokenFromRequest(r, cookieName)
			if raw == "" {
				WriteError(w, http.StatusUnauthorized, "Unauthorized access")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				log.Warn("session verify failed", "err", err)
				WriteError(w, http.StatusForbidden, "Invalid or expired session")
				return
			}

			ctx = contextWithSession(ctx, claims)
			ctx = slogx.With(ctx, "user_id", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSessionMiddleware attaches the caller when a valid session is
// present and otherwise lets the request through anonymously.
func OptionalSessionMiddleware(v jwtx.Verifier, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r, cookieName)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				slogx.FromContext(r.Context()).Debug("ignoring invalid optional session", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithSession(r.Context(), claims)))
		})
	}
}
