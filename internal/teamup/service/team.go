package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/teamup/internal/teamup/domain"
	"github.com/aussiebroadwan/teamup/internal/teamup/notify"
	"github.com/aussiebroadwan/teamup/internal/teamup/store"
	"github.com/aussiebroadwan/teamup/pkg/idx"
	"github.com/aussiebroadwan/teamup/pkg/slogx"
)

// ErrStateChanged is returned when a guarded write lost a race and the
// fresh state does not explain why.
var ErrStateChanged = newError(KindConflict, "Team changed, please retry")

// TeamService runs the applicant lifecycle of teams. Every mutation is a
// single guarded write, or one transaction for accept, so concurrent
// requests cannot break membership or capacity rules.
type TeamService struct {
	Store    store.Store
	Notifier notify.Notifier

	// Now defaults to time.Now.
	Now func() time.Time
}

type CreateTeamInput struct {
	Name        string
	Domain      string
	Description string

	// MaxMembers defaults to domain.DefaultMaxMembers when nil.
	MaxMembers *int
}

func (s *TeamService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateTeam creates an open team owned by the caller.
func (s *TeamService) CreateTeam(ctx context.Context, callerID string, in CreateTeamInput) (domain.TeamView, error) {
	log := slogx.FromContext(ctx)

	creator, err := s.caller(ctx, callerID)
	if err != nil {
		return domain.TeamView{}, err
	}

	name := strings.TrimSpace(in.Name)
	domainName := strings.TrimSpace(in.Domain)
	if name == "" || domainName == "" {
		return domain.TeamView{}, ErrNameDomainRequired
	}

	maxMembers := domain.DefaultMaxMembers
	if in.MaxMembers != nil {
		maxMembers = *in.MaxMembers
	}
	if maxMembers < 1 {
		return domain.TeamView{}, ErrInvalidMaxMembers
	}

	now := s.now()
	team := domain.Team{
		ID:          idx.NewAt(now),
		Name:        name,
		CreatorID:   creator.ID,
		Domain:      domainName,
		Description: strings.TrimSpace(in.Description),
		MaxMembers:  maxMembers,
		IsOpen:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.Teams().Create(ctx, team); err != nil {
		log.Error("failed to create team", slog.Any("error", err))
		return domain.TeamView{}, fmt.Errorf("create team: %w", err)
	}

	transitionsTotal.WithLabelValues("create").Inc()
	log.Info("team created",
		slog.String("team_id", team.ID.String()),
		slog.Int("max_members", maxMembers),
	)
	return domain.NewTeamView(team, creator.Summary(), nil), nil
}

// Apply submits the caller's application to a team.
func (s *TeamService) Apply(ctx context.Context, teamID, callerID string, links domain.Links) error {
	log := slogx.FromContext(ctx)

	// 1. Resolve the caller and validate input before touching the team.
	applicant, err := s.caller(ctx, callerID)
	if err != nil {
		return err
	}
	tid, err := idx.Parse(teamID)
	if err != nil {
		return ErrInvalidTeamID
	}
	links, err = validateLinks(links)
	if err != nil {
		return err
	}

	// 2. Check preconditions against current state for a precise error.
	team, err := s.team(ctx, tid)
	if err != nil {
		return err
	}
	if err := s.canApply(ctx, team.Team, applicant.ID); err != nil {
		return observe(err)
	}

	// 3. Guarded insert. A failure here means a concurrent request changed
	// the team between the check and the write.
	rel := domain.Relation{
		TeamID:    tid,
		User:      applicant.Summary(),
		Status:    domain.RelationApplied,
		Links:     links,
		AppliedAt: s.now(),
	}
	if err := s.Store.Teams().InsertApplication(ctx, rel); err != nil {
		if errors.Is(err, store.ErrGuardFailed) {
			return observe(s.reclassifyApply(ctx, tid, applicant.ID))
		}
		log.Error("failed to insert application", slog.Any("error", err))
		return fmt.Errorf("insert application: %w", err)
	}

	transitionsTotal.WithLabelValues("apply").Inc()
	log.Info("application submitted", slog.String("team_id", tid.String()))

	notify.Dispatch(ctx, s.Notifier,
		notify.NewApplication(team.Creator.Email, team.Name, applicant.Name, applicant.ID.String()))
	return nil
}

// canApply reports why userID may not apply to team, or nil.
func (s *TeamService) canApply(ctx context.Context, team domain.Team, userID idx.ID) error {
	if team.CreatorID == userID {
		return ErrOwnTeam
	}

	rel, err := s.Store.Teams().Relation(ctx, team.ID, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load relation: %w", err)
	default:
		switch rel.Status {
		case domain.RelationMember:
			return ErrAlreadyMember
		case domain.RelationApplied:
			return ErrAlreadyApplied
		case domain.RelationRejected:
			return ErrPreviouslyRejected
		}
	}

	// Capacity is reported before recruiting status.
	if team.Full() {
		return ErrTeamFull
	}
	if !team.IsOpen {
		return ErrNotRecruiting
	}
	return nil
}

func (s *TeamService) reclassifyApply(ctx context.Context, teamID, userID idx.ID) error {
	team, err := s.team(ctx, teamID)
	if err != nil {
		return err
	}
	if err := s.canApply(ctx, team.Team, userID); err != nil {
		return err
	}
	return ErrStateChanged
}

// AcceptApplicant moves a pending applicant into the team. Only the creator
// may accept. The seat claim and the status change commit together.
func (s *TeamService) AcceptApplicant(ctx context.Context, teamID, callerID, applicantID string) error {
	log := slogx.FromContext(ctx)

	team, rel, err := s.pendingApplication(ctx, teamID, callerID, applicantID)
	if err != nil {
		return err
	}
	if team.Full() {
		return observe(ErrTeamAlreadyFull)
	}

	now := s.now()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Teams().ClaimSeat(ctx, team.ID, now); err != nil {
			if errors.Is(err, store.ErrGuardFailed) {
				return ErrTeamAlreadyFull
			}
			return fmt.Errorf("claim seat: %w", err)
		}

		err := tx.Teams().Transition(ctx, team.ID, rel.User.ID, domain.RelationApplied, domain.RelationMember, now)
		if err != nil {
			if errors.Is(err, store.ErrGuardFailed) {
				return ErrApplicantNotFound
			}
			return fmt.Errorf("transition: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.failed(ctx, "accept applicant", err)
	}

	transitionsTotal.WithLabelValues("accept").Inc()
	log.Info("applicant accepted",
		slog.String("team_id", team.ID.String()),
		slog.String("applicant_id", rel.User.ID.String()),
	)

	notify.Dispatch(ctx, s.Notifier, notify.Accepted(rel.User.Email, rel.User.Name, team.Name))
	return nil
}

// RejectApplicant closes a pending application for good. The applicant can
// never apply to the team again.
func (s *TeamService) RejectApplicant(ctx context.Context, teamID, callerID, applicantID string) error {
	log := slogx.FromContext(ctx)

	team, rel, err := s.pendingApplication(ctx, teamID, callerID, applicantID)
	if err != nil {
		return err
	}

	err = s.Store.Teams().Transition(ctx, team.ID, rel.User.ID, domain.RelationApplied, domain.RelationRejected, s.now())
	if err != nil {
		if errors.Is(err, store.ErrGuardFailed) {
			return ErrApplicantNotFound
		}
		return s.failed(ctx, "reject applicant", err)
	}

	transitionsTotal.WithLabelValues("reject").Inc()
	log.Info("applicant rejected",
		slog.String("team_id", team.ID.String()),
		slog.String("applicant_id", rel.User.ID.String()),
	)

	notify.Dispatch(ctx, s.Notifier, notify.Rejected(rel.User.Email, rel.User.Name, team.Name))
	return nil
}

// pendingApplication loads the team and the applicant's pending relation
// after checking the caller created the team.
func (s *TeamService) pendingApplication(ctx context.Context, teamID, callerID, applicantID string) (store.TeamRow, domain.Relation, error) {
	caller, err := callerIDOf(callerID)
	if err != nil {
		return store.TeamRow{}, domain.Relation{}, err
	}
	tid, aid, err := parseIDs(teamID, applicantID)
	if err != nil {
		return store.TeamRow{}, domain.Relation{}, err
	}

	team, err := s.team(ctx, tid)
	if err != nil {
		return store.TeamRow{}, domain.Relation{}, err
	}
	if team.CreatorID != caller {
		return store.TeamRow{}, domain.Relation{}, ErrForbidden
	}

	rel, err := s.Store.Teams().Relation(ctx, tid, aid)
	if errors.Is(err, store.ErrNotFound) || (err == nil && rel.Status != domain.RelationApplied) {
		return store.TeamRow{}, domain.Relation{}, ErrApplicantNotFound
	}
	if err != nil {
		return store.TeamRow{}, domain.Relation{}, s.failed(ctx, "load relation", err)
	}
	return team, rel, nil
}

// WithdrawApplication removes the caller's own pending application.
func (s *TeamService) WithdrawApplication(ctx context.Context, teamID, callerID, applicantID string) error {
	log := slogx.FromContext(ctx)

	caller, err := callerIDOf(callerID)
	if err != nil {
		return err
	}
	tid, aid, err := parseIDs(teamID, applicantID)
	if err != nil {
		return err
	}
	if caller != aid {
		return ErrWithdrawOthers
	}

	if _, err := s.team(ctx, tid); err != nil {
		return err
	}

	if err := s.Store.Teams().DeleteApplication(ctx, tid, aid); err != nil {
		if errors.Is(err, store.ErrGuardFailed) {
			return ErrApplicationNotFound
		}
		return s.failed(ctx, "delete application", err)
	}

	transitionsTotal.WithLabelValues("withdraw").Inc()
	log.Info("application withdrawn", slog.String("team_id", tid.String()))
	return nil
}

// ToggleRecruiting sets the team's recruiting flag, or flips it when open is
// nil, and returns the new value. Reopening a full team is allowed; accepts
// stay guarded by capacity.
func (s *TeamService) ToggleRecruiting(ctx context.Context, teamID, callerID string, open *bool) (bool, error) {
	caller, err := callerIDOf(callerID)
	if err != nil {
		return false, err
	}
	tid, err := idx.Parse(teamID)
	if err != nil {
		return false, ErrInvalidTeamID
	}

	team, err := s.team(ctx, tid)
	if err != nil {
		return false, err
	}
	if team.CreatorID != caller {
		return false, ErrForbidden
	}

	isOpen, err := s.Store.Teams().SetRecruiting(ctx, tid, open, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrTeamNotFound
		}
		return false, s.failed(ctx, "set recruiting", err)
	}

	transitionsTotal.WithLabelValues("recruiting").Inc()
	slogx.FromContext(ctx).Info("recruiting changed",
		slog.String("team_id", tid.String()),
		slog.Bool("is_open", isOpen),
	)
	return isOpen, nil
}

// RecruitingMessage describes the outcome of ToggleRecruiting.
func RecruitingMessage(open bool) string {
	if open {
		return "Recruiting opened"
	}
	return "Recruiting stopped"
}

func (s *TeamService) GetTeam(ctx context.Context, teamID string) (domain.TeamView, error) {
	tid, err := idx.Parse(teamID)
	if err != nil {
		return domain.TeamView{}, ErrInvalidTeamID
	}

	team, err := s.team(ctx, tid)
	if err != nil {
		return domain.TeamView{}, err
	}

	views, err := s.views(ctx, []store.TeamRow{team})
	if err != nil {
		return domain.TeamView{}, err
	}
	return views[0], nil
}

// ListCreated returns the caller's own teams, newest first.
func (s *TeamService) ListCreated(ctx context.Context, callerID string) ([]domain.TeamView, error) {
	caller, err := callerIDOf(callerID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Store.Teams().ListByCreator(ctx, caller)
	if err != nil {
		return nil, s.failed(ctx, "list created teams", err)
	}
	return s.views(ctx, rows)
}

// ListAvailable returns open teams, optionally limited to one domain. A
// signed in caller does not see teams they created or already have any
// relation with. An empty or unparseable callerID is treated as anonymous.
func (s *TeamService) ListAvailable(ctx context.Context, callerID, domainName string) ([]domain.TeamView, error) {
	f := store.OpenFilter{Domain: strings.TrimSpace(domainName)}
	if id, err := idx.Parse(callerID); err == nil {
		f.ExcludeUser = id
	}

	rows, err := s.Store.Teams().ListOpen(ctx, f)
	if err != nil {
		return nil, s.failed(ctx, "list open teams", err)
	}
	return s.views(ctx, rows)
}

// ListApplied returns every team the caller applied to, joined or was
// rejected from.
func (s *TeamService) ListApplied(ctx context.Context, callerID string) ([]domain.TeamView, error) {
	caller, err := callerIDOf(callerID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Store.Teams().ListByParticipant(ctx, caller)
	if err != nil {
		return nil, s.failed(ctx, "list applied teams", err)
	}
	return s.views(ctx, rows)
}

// views resolves the people of each team with one relations query.
func (s *TeamService) views(ctx context.Context, rows []store.TeamRow) ([]domain.TeamView, error) {
	out := make([]domain.TeamView, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]idx.ID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	rels, err := s.Store.Teams().Relations(ctx, ids...)
	if err != nil {
		return nil, s.failed(ctx, "load relations", err)
	}

	byTeam := make(map[idx.ID][]domain.Relation, len(rows))
	for _, r := range rels {
		byTeam[r.TeamID] = append(byTeam[r.TeamID], r)
	}
	for _, r := range rows {
		out = append(out, domain.NewTeamView(r.Team, r.Creator, byTeam[r.ID]))
	}
	return out, nil
}

func (s *TeamService) team(ctx context.Context, id idx.ID) (store.TeamRow, error) {
	team, err := s.Store.Teams().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.TeamRow{}, ErrTeamNotFound
		}
		return store.TeamRow{}, s.failed(ctx, "load team", err)
	}
	return team, nil
}

// caller loads the signed in user. A session for a user that no longer
// exists is treated as no session.
func (s *TeamService) caller(ctx context.Context, callerID string) (domain.User, error) {
	id, err := callerIDOf(callerID)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.Store.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUnauthenticated
		}
		return domain.User{}, s.failed(ctx, "load caller", err)
	}
	return u, nil
}

// failed passes service errors through and wraps anything else as internal
// after logging it.
func (s *TeamService) failed(ctx context.Context, op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return observe(se)
	}
	slogx.FromContext(ctx).Error("team operation failed",
		slog.String("op", op),
		slog.Any("error", err),
	)
	return fmt.Errorf("%s: %w", op, err)
}

func callerIDOf(callerID string) (idx.ID, error) {
	if callerID == "" {
		return idx.Zero, ErrUnauthenticated
	}
	id, err := idx.Parse(callerID)
	if err != nil {
		return idx.Zero, ErrUnauthenticated
	}
	return id, nil
}

func parseIDs(teamID, userID string) (idx.ID, idx.ID, error) {
	tid, err := idx.Parse(teamID)
	if err != nil {
		return idx.Zero, idx.Zero, ErrInvalidIDs
	}
	uid, err := idx.Parse(userID)
	if err != nil {
		return idx.Zero, idx.Zero, ErrInvalidIDs
	}
	return tid, uid, nil
}

// validateLinks trims the links and requires each to be an absolute http or
// https URL.
func validateLinks(l domain.Links) (domain.Links, error) {
	l = domain.Links{
		LinkedIn: strings.TrimSpace(l.LinkedIn),
		GitHub:   strings.TrimSpace(l.GitHub),
		Resume:   strings.TrimSpace(l.Resume),
	}
	if l.LinkedIn == "" || l.GitHub == "" || l.Resume == "" {
		return l, ErrLinksRequired
	}

	var problems []string
	for _, f := range []struct{ name, value string }{
		{"linkedin", l.LinkedIn},
		{"github", l.GitHub},
		{"resume", l.Resume},
	} {
		if !isWebURL(f.value) {
			problems = append(problems, f.name+" must be an http(s) URL")
		}
	}
	if len(problems) > 0 {
		return l, validationError(problems)
	}
	return l, nil
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
