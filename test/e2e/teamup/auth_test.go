package teamup_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/teamup/pkg/teamsdk"
)

func TestRegisterLoginAndProfile(t *testing.T) {
	client := setupContainer(t)
	ctx := t.Context()

	session := register(t, client, "alice")

	ok, err := session.IsAuthenticated(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	profile, err := session.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Name)
	require.Equal(t, "alice@example.com", profile.Email)
	require.False(t, profile.IsAccountVerified)

	_, err = client.Register(ctx, "alice", "alice@example.com", testPassword)
	require.Error(t, err, "duplicate registration")

	_, err = client.Login(ctx, "alice@example.com", "wrong-password")
	require.Error(t, err)

	again, err := client.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, again.Token())
}

func TestInvalidSessionIsRejected(t *testing.T) {
	client := setupContainer(t)

	_, err := client.NewSession("not-a-token").ListCreated(t.Context())
	require.Error(t, err)
	require.True(t, teamsdk.IsForbidden(err), "got %v", err)

	_, err = client.NewSession("").ListCreated(t.Context())
	require.Error(t, err)
	require.True(t, teamsdk.IsUnauthorized(err), "got %v", err)
}

func TestRateLimitLogin(t *testing.T) {
	client := setupContainerWithDefaultRateLimits(t)
	ctx := t.Context()

	// Strict budget is 5 per minute per IP.
	var lastErr error
	for i := range 6 {
		_, err := client.Login(ctx, "nobody@example.com", "wrong-password")
		require.Error(t, err)
		if i < 5 {
			require.False(t, teamsdk.IsRateLimited(err), "request %d limited too early", i+1)
		}
		lastErr = err
	}
	require.True(t, teamsdk.IsRateLimited(lastErr), "got %v", lastErr)
}
