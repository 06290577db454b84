package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/teamup/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewHS256Signer(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		_, err := jwtx.NewHS256Signer("short")
		require.Error(t, err)
	})

	t.Run("accepts long secret", func(t *testing.T) {
		s, err := jwtx.NewHS256Signer(testSecret)
		require.NoError(t, err)
		require.Equal(t, "HS256", s.Alg())
	})
}

func TestSignAndVerify(t *testing.T) {
	signer, err := jwtx.NewHS256Signer(testSecret)
	require.NoError(t, err)
	verifier := jwtx.NewHS256Verifier(testSecret, "teamup", 0)

	t.Run("round trip keeps subject and domain", func(t *testing.T) {
		claims := jwtx.NewSessionClaims("user-1", " Example.COM ", "teamup", time.Hour, time.Now().UTC())
		tok, err := signer.Sign(claims)
		require.NoError(t, err)

		got, err := verifier.Verify(tok)
		require.NoError(t, err)
		require.Equal(t, "user-1", got.Subject)
		require.Equal(t, "example.com", got.Domain)
		require.NotEmpty(t, got.ID)
	})

	t.Run("subject required", func(t *testing.T) {
		_, err := signer.Sign(jwtx.Claims{})
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := jwtx.NewSessionClaims("user-1", "", "teamup", time.Minute, time.Now().Add(-time.Hour))
		tok, err := signer.Sign(claims)
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := signer.Sign(jwtx.NewSessionClaims("user-1", "", "teamup", time.Hour, time.Now()))
		require.NoError(t, err)

		other := jwtx.NewHS256Verifier(strings.Repeat("x", 32), "teamup", 0)
		_, err = other.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		tok, err := signer.Sign(jwtx.NewSessionClaims("user-1", "", "someone-else", time.Hour, time.Now()))
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.Verify("not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("rejects other algorithms", func(t *testing.T) {
		c := jwtx.NewSessionClaims("user-1", "", "teamup", time.Hour, time.Now())
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, c).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		require.Error(t, err)
	})
}

func TestVerifyWithClock(t *testing.T) {
	signer, err := jwtx.NewHS256Signer(testSecret)
	require.NoError(t, err)

	issued := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	tok, err := signer.Sign(jwtx.NewSessionClaims("user-1", "", "teamup", jwtx.DefaultSessionTTL, issued))
	require.NoError(t, err)

	t.Run("fixed clock inside ttl", func(t *testing.T) {
		v := jwtx.NewHS256Verifier(testSecret, "teamup", 0).
			WithClock(func() time.Time { return issued.Add(time.Minute) })

		got, err := v.Verify(tok)
		require.NoError(t, err)
		require.Equal(t, "user-1", got.Subject)
	})

	t.Run("fixed clock past ttl", func(t *testing.T) {
		v := jwtx.NewHS256Verifier(testSecret, "teamup", 0).
			WithClock(func() time.Time { return issued.Add(jwtx.DefaultSessionTTL + time.Minute) })

		_, err := v.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("fixed clock before nbf", func(t *testing.T) {
		v := jwtx.NewHS256Verifier(testSecret, "teamup", 0).
			WithClock(func() time.Time { return issued.Add(-time.Hour) })

		_, err := v.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrNotYetValid)
	})

	t.Run("wall clock expires old token", func(t *testing.T) {
		_, err := jwtx.NewHS256Verifier(testSecret, "teamup", 0).Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}

func TestValidateExpiryWithLeeway(t *testing.T) {
	now := time.Now().UTC()

	t.Run("valid with leeway", func(t *testing.T) {
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(-10 * time.Second)),
			},
		}
		require.NoError(t, claims.ValidateExpiryWithLeeway(30*time.Second))
	})

	t.Run("expired beyond leeway", func(t *testing.T) {
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(-2 * time.Minute)),
			},
		}
		require.ErrorIs(t, claims.ValidateExpiryWithLeeway(30*time.Second), jwtx.ErrExpired)
	})

	t.Run("not yet valid", func(t *testing.T) {
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				NotBefore: jwt.NewNumericDate(now.Add(time.Minute)),
			},
		}
		require.ErrorIs(t, claims.ValidateExpiry(), jwtx.ErrNotYetValid)
	})

	t.Run("explicit time", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(at.Add(time.Hour)),
			},
		}
		require.NoError(t, claims.ValidateExpiryAt(at, 0))
		require.ErrorIs(t, claims.ValidateExpiryAt(at.Add(2*time.Hour), 0), jwtx.ErrExpired)
	})
}
