package teamsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorResponse(t *testing.T) {
	t.Parallel()

	resp := func(code int) *http.Response { return &http.Response{StatusCode: code} }

	t.Run("successful envelope", func(t *testing.T) {
		require.NoError(t, parseErrorResponse(resp(200), []byte(`{"success":true}`)))
	})

	t.Run("200 with success false", func(t *testing.T) {
		err := parseErrorResponse(resp(200), []byte(`{"success":false,"message":"User not found"}`))
		require.Error(t, err)
		require.Equal(t, 200, StatusOf(err))
		require.Equal(t, "User not found", MessageOf(err))
	})

	t.Run("conflict", func(t *testing.T) {
		err := parseErrorResponse(resp(409), []byte(`{"success":false,"message":"Team is full"}`))
		require.True(t, IsConflict(err))
		require.Equal(t, "Team is full", MessageOf(err))
	})

	t.Run("non json error", func(t *testing.T) {
		err := parseErrorResponse(resp(502), []byte(`bad gateway`))
		require.Equal(t, 502, StatusOf(err))
		require.Contains(t, MessageOf(err), "Bad Gateway")
	})
}

func TestLoginReadsCookie(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var req LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Password != "secret" {
				_ = json.NewEncoder(w).Encode(Envelope{Success: false, Message: "Invalid credentials"})
				return
			}
			http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "tok123", HttpOnly: true})
			_ = json.NewEncoder(w).Encode(Envelope{Success: true, Message: "Login successful"})
		case "/api/user/profile":
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(ProfileResponse{
				Envelope: Envelope{Success: true},
				UserData: &UserData{Name: "Alice", Email: "alice@example.com"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewSDKClient(srv.URL + "/")
	ctx := context.Background()

	_, err := client.Login(ctx, "alice@example.com", "wrong")
	require.Equal(t, "Invalid credentials", MessageOf(err))

	sess, err := client.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "tok123", sess.Token())

	profile, err := sess.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, "Alice", profile.Name)
	require.Equal(t, "Bearer tok123", gotAuth)
}

func TestSessionPaths(t *testing.T) {
	t.Parallel()

	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.RequestURI()
		_ = json.NewEncoder(w).Encode(RecruitingResponse{Envelope: Envelope{Success: true}, IsOpen: true})
	}))
	t.Cleanup(srv.Close)

	sess := NewSDKClient(srv.URL).NewSession("tok")
	ctx := context.Background()

	require.NoError(t, sess.Accept(ctx, "T1", "U1"))
	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "/api/team/T1/applicants/U1/accept", path)

	require.NoError(t, sess.Withdraw(ctx, "T1", "U1"))
	require.Equal(t, "/api/team/T1/applicants/U1/withdraw", path)

	open, err := sess.SetRecruiting(ctx, "T1", nil)
	require.NoError(t, err)
	require.True(t, open)
	require.Equal(t, http.MethodPatch, method)
	require.Equal(t, "/api/team/T1/recruiting", path)

	_, err = sess.ListAvailable(ctx, "web dev")
	require.NoError(t, err)
	require.Equal(t, "/api/team/available?domain=web+dev", path)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(HealthResponse{Status: "degraded", Checks: &HealthChecks{Database: "error: closed"}})
			return
		}
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Version: "v1"})
	}))
	t.Cleanup(srv.Close)

	client := NewSDKClient(srv.URL)

	live, err := client.Livez(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.Readyz(context.Background())
	require.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
	require.Equal(t, "degraded", ready.Status)
	require.Equal(t, "error: closed", ready.Checks.Database)
}
