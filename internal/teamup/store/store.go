package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/teamup/internal/teamup/domain"
	"github.com/aussiebroadwan/teamup/pkg/idx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrGuardFailed is returned when a conditional write matched no rows
	// because the row no longer satisfies its precondition.
	ErrGuardFailed = errors.New("store: precondition failed")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement it. Sub-repositories hang off the store so that a Tx
// hands out repos bound to the transaction and nothing else.
type Store interface {
	Users() Users
	Teams() Teams

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns
	// nil. fn must only use the tx it is given; the sqlite driver has a
	// single connection and using the outer store would deadlock.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Migrator is implemented by drivers that embed their schema.
type Migrator interface {
	ApplyMigrations() error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// Create inserts a new user. Duplicate name or email is ErrAlreadyExists.
	Create(ctx context.Context, u domain.User) error

	GetByID(ctx context.Context, id idx.ID) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	// SetVerifyOTP stores a verification code fingerprint and its expiry.
	SetVerifyOTP(ctx context.Context, id idx.ID, fingerprint string, expiresAt time.Time) error

	// MarkVerified consumes the verification code. It only succeeds while
	// the stored fingerprint still equals fingerprint, so a code cannot be
	// used twice; otherwise ErrGuardFailed.
	MarkVerified(ctx context.Context, id idx.ID, fingerprint string, now time.Time) error

	// SetResetOTP stores a password reset code fingerprint and its expiry.
	SetResetOTP(ctx context.Context, id idx.ID, fingerprint string, expiresAt time.Time) error

	// ResetPassword consumes the reset code and stores the new hash, with
	// the same single-use guard as MarkVerified.
	ResetPassword(ctx context.Context, id idx.ID, fingerprint, passwordHash string, now time.Time) error

	// ClearExpiredOTPs wipes codes whose expiry is before now and returns
	// the number of users touched.
	ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

// OpenFilter narrows ListOpen.
type OpenFilter struct {
	// Domain, when set, must equal the team domain.
	Domain string

	// ExcludeUser drops teams the user created or has any relation with.
	ExcludeUser idx.ID
}

// TeamRow is a team with its creator resolved.
type TeamRow struct {
	domain.Team
	Creator domain.UserSummary
}

type Teams interface {
	Create(ctx context.Context, t domain.Team) error
	Get(ctx context.Context, id idx.ID) (TeamRow, error)

	// Relation returns the user's relation with the team, or ErrNotFound.
	Relation(ctx context.Context, teamID, userID idx.ID) (domain.Relation, error)

	// Relations returns every relation of the given teams ordered by
	// application time.
	Relations(ctx context.Context, teamIDs ...idx.ID) ([]domain.Relation, error)

	// Listings are ordered newest first.
	ListByCreator(ctx context.Context, creatorID idx.ID) ([]TeamRow, error)
	ListOpen(ctx context.Context, f OpenFilter) ([]TeamRow, error)
	ListByParticipant(ctx context.Context, userID idx.ID) ([]TeamRow, error)

	// InsertApplication adds a pending application in one guarded write.
	// It returns ErrGuardFailed unless the team exists, is open, has a free
	// slot, is not owned by the applicant and has no relation with them.
	InsertApplication(ctx context.Context, r domain.Relation) error

	// ClaimSeat increments the member count, closing recruiting when the
	// last slot is taken. ErrGuardFailed when the team is already full.
	ClaimSeat(ctx context.Context, teamID idx.ID, now time.Time) error

	// Transition moves a relation from one status to another, stamping the
	// matching timestamp. ErrGuardFailed when no relation is in from.
	Transition(ctx context.Context, teamID, userID idx.ID, from, to domain.RelationStatus, at time.Time) error

	// DeleteApplication removes a pending application. ErrGuardFailed when
	// there is none.
	DeleteApplication(ctx context.Context, teamID, userID idx.ID) error

	// SetRecruiting flips is_open, or sets it when open is non-nil, and
	// returns the stored value.
	SetRecruiting(ctx context.Context, teamID idx.ID, open *bool, now time.Time) (bool, error)
}
