package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aussiebroadwan/teamup/internal/teamup/domain"
	"github.com/aussiebroadwan/teamup/internal/teamup/store"
	"github.com/aussiebroadwan/teamup/internal/teamup/store/storetest"
	"github.com/aussiebroadwan/teamup/pkg/idx"
	"github.com/stretchr/testify/require"
)

var validLinks = domain.Links{
	LinkedIn: "https://linkedin.com/in/someone",
	GitHub:   "https://github.com/someone",
	Resume:   "https://example.com/cv.pdf",
}

type teamFixture struct {
	svc   *TeamService
	store store.Store
	box   *outbox
	ctx   context.Context
}

func newTeamFixture(t *testing.T) *teamFixture {
	t.Helper()
	s := newStore(t)
	box := &outbox{}
	return &teamFixture{
		svc:   &TeamService{Store: s, Notifier: box, Now: newClock().Now},
		store: s,
		box:   box,
		ctx:   context.Background(),
	}
}

func (f *teamFixture) user(t *testing.T, name string) string {
	t.Helper()
	return storetest.MustUser(t, f.store, name).ID.String()
}

func (f *teamFixture) team(t *testing.T, creator string, maxMembers int) string {
	t.Helper()
	v, err := f.svc.CreateTeam(f.ctx, creator, CreateTeamInput{Name: "Rocket", Domain: "web", MaxMembers: &maxMembers})
	require.NoError(t, err)
	return v.ID.String()
}

func (f *teamFixture) view(t *testing.T, teamID string) domain.TeamView {
	t.Helper()
	v, err := f.svc.GetTeam(f.ctx, teamID)
	require.NoError(t, err)
	return v
}

// requireSingleRelation checks no user sits in more than one list.
func requireSingleRelation(t *testing.T, v domain.TeamView) {
	t.Helper()
	seen := map[idx.ID]int{}
	for _, m := range v.Members {
		seen[m.User.ID]++
	}
	for _, a := range v.Applicants {
		seen[a.User.ID]++
	}
	for _, r := range v.Rejected {
		seen[r.User.ID]++
	}
	for id, n := range seen {
		require.Equalf(t, 1, n, "user %s appears %d times", id, n)
		require.NotEqual(t, v.CreatorID, id)
	}
	require.LessOrEqual(t, len(v.Members), v.MaxMembers)
}

func TestCreateTeam(t *testing.T) {
	f := newTeamFixture(t)
	owner := f.user(t, "owner")

	t.Run("defaults", func(t *testing.T) {
		v, err := f.svc.CreateTeam(f.ctx, owner, CreateTeamInput{Name: " Rocket ", Domain: " web "})
		require.NoError(t, err)
		require.Equal(t, "Rocket", v.Name)
		require.Equal(t, "web", v.Domain)
		require.Equal(t, domain.DefaultMaxMembers, v.MaxMembers)
		require.True(t, v.IsOpen)
		require.Equal(t, "owner", v.Creator.Name)
		require.Empty(t, v.Members)
		require.Empty(t, v.Applicants)
		require.Empty(t, v.Rejected)
	})

	t.Run("name and domain required", func(t *testing.T) {
		_, err := f.svc.CreateTeam(f.ctx, owner, CreateTeamInput{Name: "x"})
		require.ErrorIs(t, err, ErrNameDomainRequired)
		require.Equal(t, KindInvalidArgument, KindOf(err))
	})

	t.Run("max members must be positive", func(t *testing.T) {
		zero := 0
		_, err := f.svc.CreateTeam(f.ctx, owner, CreateTeamInput{Name: "x", Domain: "y", MaxMembers: &zero})
		require.ErrorIs(t, err, ErrInvalidMaxMembers)
	})

	t.Run("requires a caller", func(t *testing.T) {
		_, err := f.svc.CreateTeam(f.ctx, "", CreateTeamInput{Name: "x", Domain: "y"})
		require.ErrorIs(t, err, ErrUnauthenticated)

		_, err = f.svc.CreateTeam(f.ctx, idx.New().String(), CreateTeamInput{Name: "x", Domain: "y"})
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestApply(t *testing.T) {
	f := newTeamFixture(t)
	owner := f.user(t, "owner")
	alice := f.user(t, "alice")
	teamID := f.team(t, owner, 3)

	t.Run("creator cannot apply", func(t *testing.T) {
		err := f.svc.Apply(f.ctx, teamID, owner, validLinks)
		require.ErrorIs(t, err, ErrOwnTeam)
		require.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("missing link", func(t *testing.T) {
		links := validLinks
		links.Resume = ""
		err := f.svc.Apply(f.ctx, teamID, alice, links)
		require.ErrorIs(t, err, ErrLinksRequired)
		require.Empty(t, f.view(t, teamID).Applicants)
	})

	t.Run("links must be web urls", func(t *testing.T) {
		links := validLinks
		links.GitHub = "github.com/alice"
		links.Resume = "ftp://example.com/cv"
		err := f.svc.Apply(f.ctx, teamID, alice, links)
		require.Equal(t, KindInvalidArgument, KindOf(err))
		require.Equal(t, "Validation error: github must be an http(s) URL, resume must be an http(s) URL", err.Error())
	})

	t.Run("bad ids", func(t *testing.T) {
		require.ErrorIs(t, f.svc.Apply(f.ctx, "nope", alice, validLinks), ErrInvalidTeamID)
		require.ErrorIs(t, f.svc.Apply(f.ctx, idx.New().String(), alice, validLinks), ErrTeamNotFound)
		require.ErrorIs(t, f.svc.Apply(f.ctx, teamID, "", validLinks), ErrUnauthenticated)
	})

	t.Run("applies and notifies creator", func(t *testing.T) {
		require.NoError(t, f.svc.Apply(f.ctx, teamID, alice, validLinks))

		v := f.view(t, teamID)
		require.Len(t, v.Applicants, 1)
		require.Equal(t, "alice", v.Applicants[0].User.Name)
		require.Equal(t, validLinks, v.Applicants[0].Links)
		require.False(t, v.Applicants[0].AppliedAt.IsZero())

		msg := f.box.last(t)
		require.Equal(t, "owner@example.com", msg.To)
		require.Contains(t, msg.Subject, "Rocket")
	})

	t.Run("second application is a conflict", func(t *testing.T) {
		require.ErrorIs(t, f.svc.Apply(f.ctx, teamID, alice, validLinks), ErrAlreadyApplied)
	})

	t.Run("closed team is not recruiting", func(t *testing.T) {
		bob := f.user(t, "bob")
		closed := false
		_, err := f.svc.ToggleRecruiting(f.ctx, teamID, owner, &closed)
		require.NoError(t, err)

		require.ErrorIs(t, f.svc.Apply(f.ctx, teamID, bob, validLinks), ErrNotRecruiting)
	})
}

func TestAcceptFillsTeamAndBlocksApply(t *testing.T) {
	f := newTeamFixture(t)
	owner := f.user(t, "owner")
	a := f.user(t, "a")
	b := f.user(t, "b")
	teamID := f.team(t, owner, 1)

	require.NoError(t, f.svc.Apply(f.ctx, teamID, a, validLinks))
	require.NoError(t, f.svc.AcceptApplicant(f.ctx, teamID, owner, a))

	v := f.view(t, teamID)
	require.Len(t, v.Members, 1)
	require.Equal(t, "a", v.Members[0].User.Name)
	require.False(t, v.IsOpen)
	require.Empty(t, v.Applicants)

	msg := f.box.last(t)
	require.Equal(t, "a@example.com", msg.To)
	require.Contains(t, msg.Subject, "Accepted")

	// Capacity is reported ahead of recruiting status.
	require.ErrorIs(t, f.svc.Apply(f.ctx, teamID, b, validLinks), ErrTeamFull)
	require.Empty(t, f.view(t, teamID).Applicants)

	require.ErrorIs(t, f.svc.Apply(f.ctx, teamID, a, validLinks), ErrAlreadyMember)
}

func TestAcceptLastSeat(t *testing.T) {
	f := newTeamFixture(t)
	owner := f.user(t, "owner")
	a := f.user(t, "a")
	b := f.user(t, "b")
	c := f.user(t, "c")
	teamID := f.team(t, owner, 2)

	for _, u := range []string{a, b, c} {
		require.NoError(t, f.svc.Apply(f.ctx, teamID, u, validLinks))
	}

	require.NoError(t, f.svc.AcceptApplicant(f.ctx, teamID, owner, a))
	require.True(t, f.view(t, teamID).IsOpen)

	require.NoError(t, f.svc.AcceptApplicant(f.ctx, teamID, owner, b))
	v := f.view(t, teamID)
	require.Len(t, v.Members, 2)
	require.False(t, v.IsOpen)

	err := f.svc.AcceptApplicant(f.ctx, teamID, owner, c)
	require.ErrorIs(t, err, ErrTeamAlreadyFull)
	require.Equal(t, KindConflict, KindOf(err))

	// Reopening a full team is allowed, capacity still holds.
	open := true
	isOpen, err := f.svc.ToggleRecruiting(f.ctx, teamID, owner, &open)
	require.NoError(t, err)
	require.True(t, isOpen)
	require.ErrorIs(t, f.svc.AcceptApplicant(f.ctx, teamID, owner, c), ErrTeamAlreadyFull)

	v = f.view(t, teamID)
	require.Len(t, v.Members, 2)
	require.Len(t, v.Applicants, 1)
	requireSingleRelation(t, v)
}

func TestAcceptAuthorization(t *testing.T) {
	f := newTeamFixture(t)
	owner := f.user(t, "owner")
	a := f.user(t, "a")
	mallory := f.user(t, "mallory")
	teamID := f.team(t, owner, 2)
	require.NoError(t, f.svc.Apply(f.ctx, teamID, a, validLinks))

	require.ErrorIs(t, f.svc.AcceptApplicant(f.ctx, teamID, mallory, a), ErrForbidden)
	require.ErrorIs(t, f.svc.RejectApplicant(f.ctx, teamID, mallory, a), ErrForbidden)
	require.ErrorIs(t, f.svc.AcceptApplicant(f.ctx, teamID, owner, mallory), ErrApplicantNotFound)
	require.ErrorIs(t, f.svc.AcceptApplicant(f.ctx, teamID, owner, "bad"), ErrInvalidIDs)
	require.ErrorIs(t, f.svc.AcceptApplicant(f.ctx, idx.New().String(), owner, a), ErrTeamNotFound)

	require.Len(t, f.view(t, teamID).Applicants, 1)
}

func TestReject(t *testing.T) {
	f := newTeamFixture(t)
	owner := f.user(t, "owner")
	a := f.user(t, "a")
	teamID := f.team(t, owner, 2)

	require.NoError(t, f.svc.Apply(f.ctx, teamID, a, validLinks))
	before := f.view(t, teamID).Applicants[0]

	require.NoError(t, f.svc.RejectApplicant(f.ctx, teamID, owner, a))

	v := f.view(t, teamID)
	require.Empty(t, v.Applicants)
	require.Len(t, v.Rejected, 1)
	rejected := v.Rejected[0]
	require.Equal(t, before.Links, rejected.Links)
	require.True(t, before.AppliedAt.Equal(rejected.AppliedAt))
	require.True(t, rejected.RejectedAt.After(rejected.AppliedAt))

	msg := f.box.last(t)
	require.Equal(t, "a@example.com", msg.To)
	require.Contains(t, msg.Subject, "Update on your application")

	// Rejection is permanent.
	require.ErrorIs(t, f.svc.Apply(f.ctx, teamID, a, validLinks), ErrPreviouslyRejected)
	require.ErrorIs(t, f.svc.WithdrawApplication(f.ctx, teamID, a, a), ErrApplicationNotFound)
	require.ErrorIs(t, f.svc.Apply(f.ctx, teamID, a, validLinks), ErrPreviouslyRejected)
	require.ErrorIs(t, f.svc.RejectApplicant(f.ctx, teamID, owner, a), ErrApplicantNotFound)
	requireSingleRelation(t, f.view(t, teamID))
}

func TestWithdraw(t *testing.T) {
	f := newTeamFixture(t)
	owner := f.user(t, "owner")
	a := f.user(t, "a")
	b := f.user(t, "b")
	teamID := f.team(t, owner, 2)

	require.NoError(t, f.svc.Apply(f.ctx, teamID, a, validLinks))

	t.Run("only for yourself", func(t *testing.T) {
		require.ErrorIs(t, f.svc.WithdrawApplication(f.ctx, teamID, b, a), ErrWithdrawOthers)
		require.ErrorIs(t, f.svc.WithdrawApplication(f.ctx, teamID, owner, a), ErrWithdrawOthers)
	})

	t.Run("nothing pending", func(t *testing.T) {
		require.ErrorIs(t, f.svc.WithdrawApplication(f.ctx, teamID, b, b), ErrApplicationNotFound)
	})

	t.Run("leaves no trace and allows reapplying", func(t *testing.T) {
		require.NoError(t, f.svc.WithdrawApplication(f.ctx, teamID, a, a))

		v := f.view(t, teamID)
		require.Empty(t, v.Applicants)
		require.Empty(t, v.Rejected)

		require.NoError(t, f.svc.Apply(f.ctx, teamID, a, validLinks))
		require.Len(t, f.view(t, teamID).Applicants, 1)
	})
}

func TestToggleRecruiting(t *testing.T) {
	f := newTeamFixture(t)
	owner := f.user(t, "owner")
	other := f.user(t, "other")
	teamID := f.team(t, owner, 2)

	isOpen, err := f.svc.ToggleRecruiting(f.ctx, teamID, owner, nil)
	require.NoError(t, err)
	require.False(t, isOpen)
	require.Equal(t, "Recruiting stopped", RecruitingMessage(isOpen))

	isOpen, err = f.svc.ToggleRecruiting(f.ctx, teamID, owner, nil)
	require.NoError(t, err)
	require.True(t, isOpen)
	require.Equal(t, "Recruiting opened", RecruitingMessage(isOpen))

	open := true
	isOpen, err = f.svc.ToggleRecruiting(f.ctx, teamID, owner, &open)
	require.NoError(t, err)
	require.True(t, isOpen)

	_, err = f.svc.ToggleRecruiting(f.ctx, teamID, other, nil)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ToggleRecruiting(f.ctx, "x", owner, nil)
	require.ErrorIs(t, err, ErrInvalidTeamID)
}

func TestListings(t *testing.T) {
	f := newTeamFixture(t)
	owner := f.user(t, "owner")
	a := f.user(t, "a")
	b := f.user(t, "b")

	web := f.team(t, owner, 2)
	ml, err := f.svc.CreateTeam(f.ctx, owner, CreateTeamInput{Name: "Model", Domain: "ml"})
	require.NoError(t, err)
	mine := f.team(t, a, 2)

	require.NoError(t, f.svc.Apply(f.ctx, web, a, validLinks))

	t.Run("created newest first", func(t *testing.T) {
		teams, err := f.svc.ListCreated(f.ctx, owner)
		require.NoError(t, err)
		require.Len(t, teams, 2)
		require.Equal(t, ml.ID, teams[0].ID)
		require.Equal(t, web, teams[1].ID.String())
		require.Len(t, teams[1].Applicants, 1)
	})

	t.Run("available excludes own and related teams", func(t *testing.T) {
		teams, err := f.svc.ListAvailable(f.ctx, a, "")
		require.NoError(t, err)
		require.Len(t, teams, 1)
		require.Equal(t, ml.ID, teams[0].ID)
	})

	t.Run("anonymous sees every open team", func(t *testing.T) {
		teams, err := f.svc.ListAvailable(f.ctx, "", "")
		require.NoError(t, err)
		require.Len(t, teams, 3)
	})

	t.Run("domain filter is trimmed", func(t *testing.T) {
		teams, err := f.svc.ListAvailable(f.ctx, b, "  ml ")
		require.NoError(t, err)
		require.Len(t, teams, 1)
		require.Equal(t, "ml", teams[0].Domain)
	})

	t.Run("closed teams are hidden", func(t *testing.T) {
		closed := false
		_, err := f.svc.ToggleRecruiting(f.ctx, mine, a, &closed)
		require.NoError(t, err)

		teams, err := f.svc.ListAvailable(f.ctx, b, "web")
		require.NoError(t, err)
		require.Len(t, teams, 1)
		require.Equal(t, web, teams[0].ID.String())
	})

	t.Run("applied covers every relation", func(t *testing.T) {
		require.NoError(t, f.svc.Apply(f.ctx, ml.ID.String(), a, validLinks))
		require.NoError(t, f.svc.RejectApplicant(f.ctx, ml.ID.String(), owner, a))

		teams, err := f.svc.ListApplied(f.ctx, a)
		require.NoError(t, err)
		require.Len(t, teams, 2)
		require.Equal(t, domain.RelationRejected, teams[0].StatusOf(idx.MustParse(a)))
		require.Equal(t, domain.RelationApplied, teams[1].StatusOf(idx.MustParse(a)))

		teams, err = f.svc.ListApplied(f.ctx, b)
		require.NoError(t, err)
		require.Empty(t, teams)
	})
}

func TestConcurrentAcceptLastSeat(t *testing.T) {
	f := newTeamFixture(t)
	owner := f.user(t, "owner")
	a := f.user(t, "a")
	b := f.user(t, "b")
	c := f.user(t, "c")
	teamID := f.team(t, owner, 2)

	for _, u := range []string{a, b, c} {
		require.NoError(t, f.svc.Apply(f.ctx, teamID, u, validLinks))
	}
	require.NoError(t, f.svc.AcceptApplicant(f.ctx, teamID, owner, a))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []string{b, c} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.svc.AcceptApplicant(f.ctx, teamID, owner, u)
		}()
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrTeamAlreadyFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, full)

	v := f.view(t, teamID)
	require.Len(t, v.Members, v.MaxMembers)
	require.Len(t, v.Applicants, 1)
	require.False(t, v.IsOpen)
	requireSingleRelation(t, v)
}

func TestConcurrentApplySameUser(t *testing.T) {
	f := newTeamFixture(t)
	owner := f.user(t, "owner")
	a := f.user(t, "a")
	teamID := f.team(t, owner, 2)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.svc.Apply(f.ctx, teamID, a, validLinks)
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyApplied)
	}
	require.Equal(t, 1, ok)
	require.Len(t, f.view(t, teamID).Applicants, 1)
}
