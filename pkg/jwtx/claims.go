package jwtx

import (
	"strings"
	"time"

	"github.com/aussiebroadwan/teamup/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL matches the lifetime of the session cookie.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Claims are the session claims carried by a teamup token. The subject is
// the user id.
type Claims struct {
	jwt.RegisteredClaims

	// Domain is the caller's interest domain, used to scope team listings.
	Domain string `json:"domain,omitempty"`
}

// NewSessionClaims builds claims for a freshly authenticated user.
func NewSessionClaims(userID, domain, issuer string, ttl time.Duration, now time.Time) Claims {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        idx.New().String(),
		},
		Domain: strings.ToLower(strings.TrimSpace(domain)),
	}
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryWithLeeway(0)
}

// ValidateExpiryWithLeeway adds a small grace period for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(leeway time.Duration) error {
	return c.ValidateExpiryAt(time.Now(), leeway)
}

// ValidateExpiryAt checks exp and nbf against now instead of the wall clock.
func (c *Claims) ValidateExpiryAt(now time.Time, leeway time.Duration) error {
	now = now.UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}
