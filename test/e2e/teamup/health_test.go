package teamup_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	client := setupContainer(t)

	health, err := client.Livez(t.Context())
	assertHealthy(t, health, err)

	health, err = client.Readyz(t.Context())
	assertHealthy(t, health, err)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
}
