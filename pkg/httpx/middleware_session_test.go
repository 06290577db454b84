package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/teamup/pkg/httpx"
	"github.com/aussiebroadwan/teamup/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func signedToken(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwtx.NewHS256Signer(secret)
	require.NoError(t, err)
	tok, err := s.Sign(jwtx.NewSessionClaims(userID, "example.com", "teamup", time.Hour, time.Now()))
	require.NoError(t, err)
	return tok
}

// echoCaller writes the caller id seen by the handler.
func echoCaller() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"user":   httpx.UserIDFromContext(r.Context()),
			"domain": httpx.DomainFromContext(r.Context()),
		})
	})
}

func TestSessionMiddleware(t *testing.T) {
	v := jwtx.NewHS256Verifier(secret, "teamup", 0)
	h := httpx.SessionMiddleware(v, "token")(echoCaller())

	t.Run("missing token is 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		var env httpx.Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		require.False(t, env.Success)
	})

	t.Run("invalid token is 403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: "garbage"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("cookie token attaches caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: signedToken(t, "u1")})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"user":"u1","domain":"example.com"}`, rec.Body.String())
	})

	t.Run("bearer header attaches caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "u2"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"u2"`)
	})
}

func TestOptionalSessionMiddleware(t *testing.T) {
	v := jwtx.NewHS256Verifier(secret, "teamup", 0)
	h := httpx.OptionalSessionMiddleware(v, "token")(echoCaller())

	t.Run("anonymous passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"user":"","domain":""}`, rec.Body.String())
	})

	t.Run("invalid token never blocks", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: "garbage"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"user":"","domain":""}`, rec.Body.String())
	})

	t.Run("valid token attaches caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: signedToken(t, "u3")})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.JSONEq(t, `{"user":"u3","domain":"example.com"}`, rec.Body.String())
	})
}

func TestSessionCookie(t *testing.T) {
	t.Run("production is cross-site", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpx.NewSessionCookie("token", 7*24*time.Hour, true).Set(rec, "abc")

		c := rec.Result().Cookies()[0]
		require.Equal(t, "token", c.Name)
		require.Equal(t, "abc", c.Value)
		require.True(t, c.HttpOnly)
		require.True(t, c.Secure)
		require.Equal(t, http.SameSiteNoneMode, c.SameSite)
		require.Equal(t, 7*24*60*60, c.MaxAge)
	})

	t.Run("development is lax", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpx.NewSessionCookie("token", time.Hour, false).Set(rec, "abc")

		c := rec.Result().Cookies()[0]
		require.False(t, c.Secure)
		require.Equal(t, http.SameSiteLaxMode, c.SameSite)
	})

	t.Run("clear expires cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpx.NewSessionCookie("token", time.Hour, false).Clear(rec)

		c := rec.Result().Cookies()[0]
		require.Empty(t, c.Value)
		require.Negative(t, c.MaxAge)
	})
}

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler(), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestCORS(t *testing.T) {
	t.Run("reflects any origin when unrestricted", func(t *testing.T) {
		h := httpx.CORS(nil)(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("restricts to configured origin", func(t *testing.T) {
		h := httpx.CORS([]string{"https://teamup.example"})(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
