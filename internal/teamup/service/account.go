package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/aussiebroadwan/teamup/internal/teamup/domain"
	"github.com/aussiebroadwan/teamup/internal/teamup/notify"
	"github.com/aussiebroadwan/teamup/internal/teamup/store"
	"github.com/aussiebroadwan/teamup/pkg/cryptox"
	"github.com/aussiebroadwan/teamup/pkg/idx"
	"github.com/aussiebroadwan/teamup/pkg/jwtx"
	"github.com/aussiebroadwan/teamup/pkg/slogx"
)

// DefaultOTPTTL is how long emailed codes stay valid.
const DefaultOTPTTL = 15 * time.Minute

// AccountService handles registration, sign in and the emailed one-time
// code flows.
type AccountService struct {
	Store    store.Store
	Hasher   *cryptox.PasswordHasher
	Signer   jwtx.Signer
	Notifier notify.Notifier

	Issuer   string
	TokenTTL time.Duration
	OTPTTL   time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Session is a signed session token for a user.
type Session struct {
	Token     string
	User      domain.User
	ExpiresAt time.Time
}

// Profile is what a signed in user sees about themselves.
type Profile struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	IsAccountVerified bool   `json:"isAccountVerified"`
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AccountService) otpTTL() time.Duration {
	if s.OTPTTL > 0 {
		return s.OTPTTL
	}
	return DefaultOTPTTL
}

// Register creates a user and signs them in.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (Session, error) {
	log := slogx.FromContext(ctx)

	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return Session{}, ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil || domain.DomainFromEmail(email) == "" {
		return Session{}, ErrInvalidEmail
	}

	// 1. Fast path for the common duplicate. The unique index still decides.
	if _, err := s.Store.Users().GetByEmail(ctx, email); err == nil {
		return Session{}, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, s.failed(ctx, "lookup email", err)
	}

	// 2. Hash and store.
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return Session{}, s.failed(ctx, "hash password", err)
	}

	now := s.now()
	user := domain.User{
		ID:           idx.NewAt(now),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Domain:       domain.DomainFromEmail(email),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return Session{}, ErrUserExists
		}
		return Session{}, s.failed(ctx, "create user", err)
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))

	// 3. Sign in and greet.
	sess, err := s.issue(ctx, user)
	if err != nil {
		return Session{}, err
	}
	notify.Dispatch(ctx, s.Notifier, notify.Welcome(user.Email))
	return sess, nil
}

// Login checks credentials and issues a session.
func (s *AccountService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrMissingFields
	}

	user, err := s.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrUserNotFound
		}
		return Session{}, s.failed(ctx, "lookup email", err)
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			slogx.FromContext(ctx).Warn("stored password hash unreadable",
				slog.String("user_id", user.ID.String()),
				slog.Any("error", err),
			)
		}
		return Session{}, ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

func (s *AccountService) issue(ctx context.Context, u domain.User) (Session, error) {
	claims := jwtx.NewSessionClaims(u.ID.String(), u.SessionDomain(), s.Issuer, s.TokenTTL, s.now())
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return Session{}, s.failed(ctx, "sign session", err)
	}
	return Session{Token: token, User: u, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// SendVerifyOTP emails a fresh verification code to an unverified user.
// The code is stored before sending, so a failed send only means the user
// asks again.
func (s *AccountService) SendVerifyOTP(ctx context.Context, userID string) error {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	code, err := cryptox.GenerateOTP()
	if err != nil {
		return s.failed(ctx, "generate otp", err)
	}
	if err := s.Store.Users().SetVerifyOTP(ctx, user.ID, cryptox.FingerprintToken(code), s.now().Add(s.otpTTL())); err != nil {
		return s.failed(ctx, "store verify otp", err)
	}

	notify.Dispatch(ctx, s.Notifier, notify.VerifyOTP(user.Email, code))
	return nil
}

// VerifyAccount consumes the verification code and marks the user verified.
func (s *AccountService) VerifyAccount(ctx context.Context, userID, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrMissingFields
	}

	user, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}

	now := s.now()
	if err := checkOTP(code, user.VerifyOTP, user.VerifyOTPExpiresAt, now); err != nil {
		return err
	}

	if err := s.Store.Users().MarkVerified(ctx, user.ID, user.VerifyOTP, now); err != nil {
		if errors.Is(err, store.ErrGuardFailed) {
			return ErrInvalidOTP
		}
		return s.failed(ctx, "mark verified", err)
	}

	slogx.FromContext(ctx).Info("account verified", slog.String("user_id", user.ID.String()))
	return nil
}

// SendResetOTP emails a password reset code.
func (s *AccountService) SendResetOTP(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrMissingFields
	}

	user, err := s.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return s.failed(ctx, "lookup email", err)
	}

	code, err := cryptox.GenerateOTP()
	if err != nil {
		return s.failed(ctx, "generate otp", err)
	}
	if err := s.Store.Users().SetResetOTP(ctx, user.ID, cryptox.FingerprintToken(code), s.now().Add(s.otpTTL())); err != nil {
		return s.failed(ctx, "store reset otp", err)
	}

	notify.Dispatch(ctx, s.Notifier, notify.ResetOTP(user.Email, code))
	return nil
}

// ResetPassword consumes the reset code and replaces the password.
func (s *AccountService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" || newPassword == "" {
		return ErrMissingFields
	}

	user, err := s.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return s.failed(ctx, "lookup email", err)
	}

	now := s.now()
	if err := checkOTP(code, user.ResetOTP, user.ResetOTPExpiresAt, now); err != nil {
		return err
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return s.failed(ctx, "hash password", err)
	}
	if err := s.Store.Users().ResetPassword(ctx, user.ID, user.ResetOTP, hash, now); err != nil {
		if errors.Is(err, store.ErrGuardFailed) {
			return ErrInvalidOTP
		}
		return s.failed(ctx, "reset password", err)
	}

	slogx.FromContext(ctx).Info("password reset", slog.String("user_id", user.ID.String()))
	return nil
}

func (s *AccountService) Profile(ctx context.Context, userID string) (Profile, error) {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Name: user.Name, Email: user.Email, IsAccountVerified: user.Verified}, nil
}

func (s *AccountService) userByID(ctx context.Context, userID string) (domain.User, error) {
	id, err := callerIDOf(userID)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.Store.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, s.failed(ctx, "load user", err)
	}
	return user, nil
}

func (s *AccountService) failed(ctx context.Context, op string, err error) error {
	slogx.FromContext(ctx).Error("account operation failed",
		slog.String("op", op),
		slog.Any("error", err),
	)
	return fmt.Errorf("%s: %w", op, err)
}

// checkOTP validates code against a stored fingerprint. The code is checked
// before expiry so a wrong guess never learns whether a code is pending.
func checkOTP(code, fingerprint string, expiresAt *time.Time, now time.Time) error {
	if fingerprint == "" || !cryptox.MatchFingerprint(code, fingerprint) {
		return ErrInvalidOTP
	}
	if expiresAt == nil || now.After(*expiresAt) {
		return ErrOTPExpired
	}
	return nil
}
