package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/teamup/internal/teamup/domain"
	"github.com/aussiebroadwan/teamup/internal/teamup/store"
	"github.com/aussiebroadwan/teamup/pkg/idx"
)

type userRow struct {
	ID                 idx.ID       `db:"id"`
	Name               string       `db:"name"`
	Email              string       `db:"email"`
	PasswordHash       string       `db:"password_hash"`
	Domain             string       `db:"domain"`
	Verified           bool         `db:"is_verified"`
	VerifyOTP          string       `db:"verify_otp"`
	VerifyOTPExpiresAt sql.NullTime `db:"verify_otp_expires_at"`
	ResetOTP           string       `db:"reset_otp"`
	ResetOTPExpiresAt  sql.NullTime `db:"reset_otp_expires_at"`
	CreatedAt          time.Time    `db:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at"`
}

const userColumns = `id, name, email, password_hash, domain, is_verified,
	verify_otp, verify_otp_expires_at, reset_otp, reset_otp_expires_at,
	created_at, updated_at`

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:                 r.ID,
		Name:               r.Name,
		Email:              r.Email,
		PasswordHash:       r.PasswordHash,
		Domain:             r.Domain,
		Verified:           r.Verified,
		VerifyOTP:          r.VerifyOTP,
		VerifyOTPExpiresAt: nullTimePtr(r.VerifyOTPExpiresAt),
		ResetOTP:           r.ResetOTP,
		ResetOTPExpiresAt:  nullTimePtr(r.ResetOTPExpiresAt),
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

type usersRepo struct {
	h Handler
	d Dialect
}

func (r *usersRepo) Create(ctx context.Context, u domain.User) error {
	_, err := r.h.ExecContext(ctx, r.h.Rebind(`
		INSERT INTO users (id, name, email, password_hash, domain, is_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Name, strings.ToLower(u.Email), u.PasswordHash, u.Domain, u.Verified,
		u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if err != nil && r.d.IsUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *usersRepo) GetByID(ctx context.Context, id idx.ID) (domain.User, error) {
	var row userRow
	err := r.h.GetContext(ctx, &row, r.h.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return row.toDomain(), nil
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var row userRow
	err := r.h.GetContext(ctx, &row, r.h.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`),
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return row.toDomain(), nil
}

func (r *usersRepo) SetVerifyOTP(ctx context.Context, id idx.ID, fingerprint string, expiresAt time.Time) error {
	res, err := r.h.ExecContext(ctx, r.h.Rebind(`
		UPDATE users SET verify_otp = ?, verify_otp_expires_at = ?, updated_at = ?
		WHERE id = ?`),
		fingerprint, expiresAt.UTC(), time.Now().UTC(), id,
	)
	return notFoundIfNone(res, err)
}

func (r *usersRepo) MarkVerified(ctx context.Context, id idx.ID, fingerprint string, now time.Time) error {
	return expectOne(r.h.ExecContext(ctx, r.h.Rebind(`
		UPDATE users SET is_verified = ?, verify_otp = '', verify_otp_expires_at = NULL, updated_at = ?
		WHERE id = ? AND verify_otp = ? AND verify_otp <> ''`),
		true, now.UTC(), id, fingerprint,
	))
}

func (r *usersRepo) SetResetOTP(ctx context.Context, id idx.ID, fingerprint string, expiresAt time.Time) error {
	res, err := r.h.ExecContext(ctx, r.h.Rebind(`
		UPDATE users SET reset_otp = ?, reset_otp_expires_at = ?, updated_at = ?
		WHERE id = ?`),
		fingerprint, expiresAt.UTC(), time.Now().UTC(), id,
	)
	return notFoundIfNone(res, err)
}

func (r *usersRepo) ResetPassword(ctx context.Context, id idx.ID, fingerprint, passwordHash string, now time.Time) error {
	return expectOne(r.h.ExecContext(ctx, r.h.Rebind(`
		UPDATE users SET password_hash = ?, reset_otp = '', reset_otp_expires_at = NULL, updated_at = ?
		WHERE id = ? AND reset_otp = ? AND reset_otp <> ''`),
		passwordHash, now.UTC(), id, fingerprint,
	))
}

func (r *usersRepo) ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, q := range []string{
		`UPDATE users SET verify_otp = '', verify_otp_expires_at = NULL WHERE verify_otp_expires_at < ?`,
		`UPDATE users SET reset_otp = '', reset_otp_expires_at = NULL WHERE reset_otp_expires_at < ?`,
	} {
		res, err := r.h.ExecContext(ctx, r.h.Rebind(q), now.UTC())
		if err != nil {
			return total, fmt.Errorf("clear expired otps: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func notFoundIfNone(res sql.Result, err error) error {
	err = expectOne(res, err)
	if errors.Is(err, store.ErrGuardFailed) {
		return store.ErrNotFound
	}
	return err
}
