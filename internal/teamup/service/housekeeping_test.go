package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/teamup/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingClearsExpiredOTPs(t *testing.T) {
	f := newAccountFixture(t)
	sess, err := f.svc.Register(f.ctx, "Alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	require.NoError(t, f.svc.SendVerifyOTP(f.ctx, sess.User.ID.String()))

	hk := NewHousekeepingService(f.svc.Store, slogx.Discard(), time.Hour)
	hk.Now = f.clock.Now

	n, err := hk.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	f.clock.Advance(DefaultOTPTTL + time.Minute)
	n, err = hk.RunOnce(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	u, err := f.svc.Store.Users().GetByID(context.Background(), sess.User.ID)
	require.NoError(t, err)
	require.Empty(t, u.VerifyOTP)
	require.Nil(t, u.VerifyOTPExpiresAt)
}

func TestHousekeepingStartStop(t *testing.T) {
	hk := NewHousekeepingService(newStore(t), slogx.Discard(), 0)
	require.Equal(t, time.Hour, hk.Interval)

	require.NoError(t, hk.Start())
	hk.Stop()
}
