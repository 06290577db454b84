package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret accepted by NewHS256Signer.
const MinSecretLength = 32

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
}

// HS256Signer signs session tokens with a shared HMAC secret.
type HS256Signer struct {
	secret []byte
}

// NewHS256Signer creates a signer from a shared secret.
func NewHS256Signer(secret string) (*HS256Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwtx: secret must be at least %d bytes", MinSecretLength)
	}
	return &HS256Signer{secret: []byte(secret)}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign serialises the claims into a compact JWS.
func (s *HS256Signer) Sign(c Claims) (string, error) {
	if c.Subject == "" {
		return "", errors.New("jwtx: subject required")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}
