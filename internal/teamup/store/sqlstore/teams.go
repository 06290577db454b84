package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/teamup/internal/teamup/domain"
	"github.com/aussiebroadwan/teamup/internal/teamup/store"
	"github.com/aussiebroadwan/teamup/pkg/idx"
	"github.com/jmoiron/sqlx"
)

type teamRow struct {
	ID           idx.ID    `db:"id"`
	Name         string    `db:"name"`
	CreatorID    idx.ID    `db:"creator_id"`
	Domain       string    `db:"domain"`
	Description  string    `db:"description"`
	MaxMembers   int       `db:"max_members"`
	MemberCount  int       `db:"member_count"`
	IsOpen       bool      `db:"is_open"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	CreatorName  string    `db:"creator_name"`
	CreatorEmail string    `db:"creator_email"`
}

const teamSelect = `
	SELECT t.id, t.name, t.creator_id, t.domain, t.description, t.max_members,
		t.member_count, t.is_open, t.created_at, t.updated_at,
		c.name AS creator_name, c.email AS creator_email
	FROM teams t
	INNER JOIN users c ON c.id = t.creator_id`

const newestFirst = ` ORDER BY t.created_at DESC, t.id DESC`

func (r teamRow) toRow() store.TeamRow {
	return store.TeamRow{
		Team: domain.Team{
			ID:          r.ID,
			Name:        r.Name,
			CreatorID:   r.CreatorID,
			Domain:      r.Domain,
			Description: r.Description,
			MaxMembers:  r.MaxMembers,
			MemberCount: r.MemberCount,
			IsOpen:      r.IsOpen,
			CreatedAt:   r.CreatedAt.UTC(),
			UpdatedAt:   r.UpdatedAt.UTC(),
		},
		Creator: domain.UserSummary{ID: r.CreatorID, Name: r.CreatorName, Email: r.CreatorEmail},
	}
}

type relationRow struct {
	TeamID     idx.ID       `db:"team_id"`
	UserID     idx.ID       `db:"user_id"`
	Status     string       `db:"status"`
	LinkedIn   string       `db:"linkedin"`
	GitHub     string       `db:"github"`
	Resume     string       `db:"resume"`
	AppliedAt  time.Time    `db:"applied_at"`
	JoinedAt   sql.NullTime `db:"joined_at"`
	RejectedAt sql.NullTime `db:"rejected_at"`
	UserName   string       `db:"user_name"`
	UserEmail  string       `db:"user_email"`
}

const relationSelect = `
	SELECT r.team_id, r.user_id, r.status, r.linkedin, r.github, r.resume,
		r.applied_at, r.joined_at, r.rejected_at,
		u.name AS user_name, u.email AS user_email
	FROM team_relations r
	INNER JOIN users u ON u.id = r.user_id`

func (r relationRow) toDomain() domain.Relation {
	return domain.Relation{
		TeamID:     r.TeamID,
		User:       domain.UserSummary{ID: r.UserID, Name: r.UserName, Email: r.UserEmail},
		Status:     domain.RelationStatus(r.Status),
		Links:      domain.Links{LinkedIn: r.LinkedIn, GitHub: r.GitHub, Resume: r.Resume},
		AppliedAt:  r.AppliedAt.UTC(),
		JoinedAt:   nullTimePtr(r.JoinedAt),
		RejectedAt: nullTimePtr(r.RejectedAt),
	}
}

type teamsRepo struct {
	h Handler
	d Dialect
}

func (r *teamsRepo) Create(ctx context.Context, t domain.Team) error {
	_, err := r.h.ExecContext(ctx, r.h.Rebind(`
		INSERT INTO teams (id, name, creator_id, domain, description, max_members, member_count, is_open, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`),
		t.ID, t.Name, t.CreatorID, t.Domain, t.Description, t.MaxMembers, t.IsOpen,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil && r.d.IsUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert team: %w", err)
	}
	return nil
}

func (r *teamsRepo) Get(ctx context.Context, id idx.ID) (store.TeamRow, error) {
	var row teamRow
	if err := r.h.GetContext(ctx, &row, r.h.Rebind(teamSelect+` WHERE t.id = ?`), id); err != nil {
		return store.TeamRow{}, mapNotFound(err)
	}
	return row.toRow(), nil
}

func (r *teamsRepo) Relation(ctx context.Context, teamID, userID idx.ID) (domain.Relation, error) {
	var row relationRow
	err := r.h.GetContext(ctx, &row, r.h.Rebind(relationSelect+` WHERE r.team_id = ? AND r.user_id = ?`), teamID, userID)
	if err != nil {
		return domain.Relation{}, mapNotFound(err)
	}
	return row.toDomain(), nil
}

func (r *teamsRepo) Relations(ctx context.Context, teamIDs ...idx.ID) ([]domain.Relation, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(relationSelect+` WHERE r.team_id IN (?) ORDER BY r.applied_at, r.user_id`, teamIDs)
	if err != nil {
		return nil, fmt.Errorf("expand relations query: %w", err)
	}

	var rows []relationRow
	if err := r.h.SelectContext(ctx, &rows, r.h.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select relations: %w", err)
	}

	out := make([]domain.Relation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *teamsRepo) list(ctx context.Context, where []string, args ...any) ([]store.TeamRow, error) {
	query := teamSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += newestFirst

	var rows []teamRow
	if err := r.h.SelectContext(ctx, &rows, r.h.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select teams: %w", err)
	}

	out := make([]store.TeamRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRow())
	}
	return out, nil
}

func (r *teamsRepo) ListByCreator(ctx context.Context, creatorID idx.ID) ([]store.TeamRow, error) {
	return r.list(ctx, []string{`t.creator_id = ?`}, creatorID)
}

func (r *teamsRepo) ListOpen(ctx context.Context, f store.OpenFilter) ([]store.TeamRow, error) {
	where := []string{`t.is_open = ?`}
	args := []any{true}

	if d := strings.TrimSpace(f.Domain); d != "" {
		where = append(where, `t.domain = ?`)
		args = append(args, d)
	}

	if !f.ExcludeUser.IsZero() {
		where = append(where,
			`t.creator_id <> ?`,
			`NOT EXISTS (SELECT 1 FROM team_relations x WHERE x.team_id = t.id AND x.user_id = ?)`,
		)
		args = append(args, f.ExcludeUser, f.ExcludeUser)
	}

	return r.list(ctx, where, args...)
}

func (r *teamsRepo) ListByParticipant(ctx context.Context, userID idx.ID) ([]store.TeamRow, error) {
	return r.list(ctx,
		[]string{`EXISTS (SELECT 1 FROM team_relations x WHERE x.team_id = t.id AND x.user_id = ?)`},
		userID,
	)
}

func (r *teamsRepo) InsertApplication(ctx context.Context, rel domain.Relation) error {
	// Every precondition is re-checked inside the statement; the primary
	// key on (team_id, user_id) rejects a second relation.
	query := fmt.Sprintf(`
		INSERT INTO team_relations (team_id, user_id, status, linkedin, github, resume, applied_at)
		SELECT t.id, ?, ?, ?, ?, ?, ?%s
		FROM teams t
		WHERE t.id = ? AND t.creator_id <> ? AND t.is_open = ? AND t.member_count < t.max_members
		ON CONFLICT (team_id, user_id) DO NOTHING`, r.d.TimestampCast)

	return expectOne(r.h.ExecContext(ctx, r.h.Rebind(query),
		rel.User.ID, string(domain.RelationApplied),
		rel.Links.LinkedIn, rel.Links.GitHub, rel.Links.Resume, rel.AppliedAt.UTC(),
		rel.TeamID, rel.User.ID, true,
	))
}

func (r *teamsRepo) ClaimSeat(ctx context.Context, teamID idx.ID, now time.Time) error {
	return expectOne(r.h.ExecContext(ctx, r.h.Rebind(`
		UPDATE teams SET
			member_count = member_count + 1,
			is_open = CASE WHEN member_count + 1 >= max_members THEN ? ELSE is_open END,
			updated_at = ?
		WHERE id = ? AND member_count < max_members`),
		false, now.UTC(), teamID,
	))
}

func (r *teamsRepo) Transition(ctx context.Context, teamID, userID idx.ID, from, to domain.RelationStatus, at time.Time) error {
	var stamp string
	switch to {
	case domain.RelationMember:
		stamp = "joined_at"
	case domain.RelationRejected:
		stamp = "rejected_at"
	default:
		return fmt.Errorf("transition to %q not supported", to)
	}

	return expectOne(r.h.ExecContext(ctx, r.h.Rebind(`
		UPDATE team_relations SET status = ?, `+stamp+` = ?
		WHERE team_id = ? AND user_id = ? AND status = ?`),
		string(to), at.UTC(), teamID, userID, string(from),
	))
}

func (r *teamsRepo) DeleteApplication(ctx context.Context, teamID, userID idx.ID) error {
	return expectOne(r.h.ExecContext(ctx, r.h.Rebind(`
		DELETE FROM team_relations WHERE team_id = ? AND user_id = ? AND status = ?`),
		teamID, userID, string(domain.RelationApplied),
	))
}

func (r *teamsRepo) SetRecruiting(ctx context.Context, teamID idx.ID, open *bool, now time.Time) (bool, error) {
	var (
		query string
		args  []any
	)
	if open == nil {
		query = `UPDATE teams SET is_open = NOT is_open, updated_at = ? WHERE id = ? RETURNING is_open`
		args = []any{now.UTC(), teamID}
	} else {
		query = `UPDATE teams SET is_open = ?, updated_at = ? WHERE id = ? RETURNING is_open`
		args = []any{*open, now.UTC(), teamID}
	}

	var isOpen bool
	if err := r.h.QueryRowxContext(ctx, r.h.Rebind(query), args...).Scan(&isOpen); err != nil {
		return false, mapNotFound(err)
	}
	return isOpen, nil
}
