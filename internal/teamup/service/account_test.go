package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/teamup/pkg/cryptox"
	"github.com/aussiebroadwan/teamup/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type accountFixture struct {
	svc   *AccountService
	box   *outbox
	clock *clock
	ctx   context.Context
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()

	signer, err := jwtx.NewHS256Signer(testSecret)
	require.NoError(t, err)

	box := &outbox{}
	c := newClock()
	return &accountFixture{
		svc: &AccountService{
			Store: newStore(t),
			Hasher: cryptox.NewPasswordHasher("pepper").WithParams(cryptox.Argon2Params{
				Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16,
			}),
			Signer:   signer,
			Notifier: box,
			Issuer:   "teamup-test",
			Now:      c.Now,
		},
		box:   box,
		clock: c,
		ctx:   context.Background(),
	}
}

// code extracts the one-time code from the last email.
func (f *accountFixture) code(t *testing.T) string {
	t.Helper()
	text := f.box.last(t).Text
	require.GreaterOrEqual(t, len(text), cryptox.OTPDigits.Length())
	return text[len(text)-cryptox.OTPDigits.Length():]
}

func TestRegister(t *testing.T) {
	f := newAccountFixture(t)

	sess, err := f.svc.Register(f.ctx, "Alice", "Alice@Example.com", "hunter22")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	require.Equal(t, "alice@example.com", sess.User.Email)
	require.Equal(t, "example.com", sess.User.Domain)
	require.False(t, sess.User.Verified)

	verifier := jwtx.NewHS256Verifier(testSecret, "teamup-test", time.Hour).WithClock(f.clock.Now)
	claims, err := verifier.Verify(sess.Token)
	require.NoError(t, err)
	require.Equal(t, sess.User.ID.String(), claims.Subject)
	require.Equal(t, "example.com", claims.Domain)

	welcome := f.box.last(t)
	require.Equal(t, "alice@example.com", welcome.To)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := f.svc.Register(f.ctx, "Alice2", "alice@example.com", "x")
		require.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := f.svc.Register(f.ctx, "Alice", "other@example.com", "x")
		require.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.svc.Register(f.ctx, "", "bob@example.com", "x")
		require.ErrorIs(t, err, ErrMissingFields)
		_, err = f.svc.Register(f.ctx, "Bob", "bob@example.com", "")
		require.ErrorIs(t, err, ErrMissingFields)
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := f.svc.Register(f.ctx, "Bob", "not-an-email", "x")
		require.ErrorIs(t, err, ErrInvalidEmail)
	})
}

func TestLogin(t *testing.T) {
	f := newAccountFixture(t)
	_, err := f.svc.Register(f.ctx, "Alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	sess, err := f.svc.Login(f.ctx, " ALICE@example.com", "hunter22")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	require.Equal(t, "Alice", sess.User.Name)

	_, err = f.svc.Login(f.ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(f.ctx, "nobody@example.com", "hunter22")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.svc.Login(f.ctx, "", "")
	require.ErrorIs(t, err, ErrMissingFields)
}

func TestVerifyAccount(t *testing.T) {
	f := newAccountFixture(t)
	sess, err := f.svc.Register(f.ctx, "Alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	userID := sess.User.ID.String()

	t.Run("no code outstanding", func(t *testing.T) {
		require.ErrorIs(t, f.svc.VerifyAccount(f.ctx, userID, "123456"), ErrInvalidOTP)
	})

	require.NoError(t, f.svc.SendVerifyOTP(f.ctx, userID))
	code := f.code(t)
	require.Equal(t, "alice@example.com", f.box.last(t).To)

	t.Run("wrong code", func(t *testing.T) {
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		require.ErrorIs(t, f.svc.VerifyAccount(f.ctx, userID, wrong), ErrInvalidOTP)
	})

	t.Run("empty code", func(t *testing.T) {
		require.ErrorIs(t, f.svc.VerifyAccount(f.ctx, userID, " "), ErrMissingFields)
	})

	t.Run("consumes code once", func(t *testing.T) {
		require.NoError(t, f.svc.VerifyAccount(f.ctx, userID, code))

		p, err := f.svc.Profile(f.ctx, userID)
		require.NoError(t, err)
		require.True(t, p.IsAccountVerified)

		require.ErrorIs(t, f.svc.VerifyAccount(f.ctx, userID, code), ErrInvalidOTP)
	})

	t.Run("already verified", func(t *testing.T) {
		require.ErrorIs(t, f.svc.SendVerifyOTP(f.ctx, userID), ErrAlreadyVerified)
	})
}

func TestVerifyAccount_Expired(t *testing.T) {
	f := newAccountFixture(t)
	sess, err := f.svc.Register(f.ctx, "Alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	userID := sess.User.ID.String()

	require.NoError(t, f.svc.SendVerifyOTP(f.ctx, userID))
	code := f.code(t)

	f.clock.Advance(DefaultOTPTTL + time.Minute)
	require.ErrorIs(t, f.svc.VerifyAccount(f.ctx, userID, code), ErrOTPExpired)
}

func TestResetPassword(t *testing.T) {
	f := newAccountFixture(t)
	_, err := f.svc.Register(f.ctx, "Alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.SendResetOTP(f.ctx, "nobody@example.com"), ErrUserNotFound)
	require.ErrorIs(t, f.svc.SendResetOTP(f.ctx, ""), ErrMissingFields)

	require.NoError(t, f.svc.SendResetOTP(f.ctx, "alice@example.com"))
	msg := f.box.last(t)
	require.True(t, strings.HasPrefix(msg.Text, "Your password reset OTP is "))
	code := f.code(t)

	require.ErrorIs(t, f.svc.ResetPassword(f.ctx, "alice@example.com", code, ""), ErrMissingFields)
	require.ErrorIs(t, f.svc.ResetPassword(f.ctx, "nobody@example.com", code, "new"), ErrUserNotFound)

	require.NoError(t, f.svc.ResetPassword(f.ctx, "alice@example.com", code, "correct horse"))
	require.ErrorIs(t, f.svc.ResetPassword(f.ctx, "alice@example.com", code, "again"), ErrInvalidOTP)

	_, err = f.svc.Login(f.ctx, "alice@example.com", "hunter22")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(f.ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
}

func TestProfile(t *testing.T) {
	f := newAccountFixture(t)
	sess, err := f.svc.Register(f.ctx, "Alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	p, err := f.svc.Profile(f.ctx, sess.User.ID.String())
	require.NoError(t, err)
	require.Equal(t, Profile{Name: "Alice", Email: "alice@example.com"}, p)

	_, err = f.svc.Profile(f.ctx, "")
	require.ErrorIs(t, err, ErrUnauthenticated)
}
