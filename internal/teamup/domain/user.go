package domain

import (
	"strings"
	"time"

	"github.com/aussiebroadwan/teamup/pkg/idx"
)

type User struct {
	ID           idx.ID
	Name         string
	Email        string // stored lower-cased
	PasswordHash string // argon2id PHC string
	Domain       string
	Verified     bool

	// One-time codes are stored as fingerprints, never in plaintext. An
	// empty fingerprint means no code is outstanding.
	VerifyOTP          string
	VerifyOTPExpiresAt *time.Time
	ResetOTP           string
	ResetOTPExpiresAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserSummary is the public projection of a user attached to team views.
type UserSummary struct {
	ID    idx.ID
	Name  string
	Email string
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// DomainFromEmail returns the lower-cased part of email after the last '@',
// or "" when there is none.
func DomainFromEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// SessionDomain is the domain carried in the caller's session token: the
// user's own domain when set, otherwise the email domain.
func (u User) SessionDomain() string {
	if d := strings.TrimSpace(u.Domain); d != "" {
		return strings.ToLower(d)
	}
	return DomainFromEmail(u.Email)
}
