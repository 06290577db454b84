// Package storetest is a conformance suite run against every store driver.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/teamup/internal/teamup/domain"
	"github.com/aussiebroadwan/teamup/internal/teamup/store"
	"github.com/aussiebroadwan/teamup/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated store.
type Factory func(t *testing.T) store.Store

// Run executes the suite. Each subtest gets its own store.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("otp", func(t *testing.T) { testOTP(t, newStore(t)) })
	t.Run("teams", func(t *testing.T) { testTeams(t, newStore(t)) })
	t.Run("listings", func(t *testing.T) { testListings(t, newStore(t)) })
	t.Run("apply guard", func(t *testing.T) { testApplyGuard(t, newStore(t)) })
	t.Run("claim seat", func(t *testing.T) { testClaimSeat(t, newStore(t)) })
	t.Run("transitions", func(t *testing.T) { testTransitions(t, newStore(t)) })
	t.Run("recruiting", func(t *testing.T) { testRecruiting(t, newStore(t)) })
	t.Run("tx rollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("concurrent accept", func(t *testing.T) { testConcurrentAccept(t, newStore(t)) })
}

var clock = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func tick() time.Time {
	clock = clock.Add(time.Second)
	return clock
}

// MustUser inserts a user named name.
func MustUser(t *testing.T, s store.Store, name string) domain.User {
	t.Helper()
	now := tick()
	u := domain.User{
		ID:           idx.New(),
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Domain:       "web",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

// MustTeam inserts an open team owned by creator.
func MustTeam(t *testing.T, s store.Store, creator idx.ID, domainName string, maxMembers int) domain.Team {
	t.Helper()
	now := tick()
	team := domain.Team{
		ID:         idx.New(),
		Name:       "team-" + domainName,
		CreatorID:  creator,
		Domain:     domainName,
		MaxMembers: maxMembers,
		IsOpen:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, s.Teams().Create(context.Background(), team))
	return team
}

var links = domain.Links{
	LinkedIn: "https://linkedin.com/in/x",
	GitHub:   "https://github.com/x",
	Resume:   "https://example.com/cv.pdf",
}

func application(teamID idx.ID, u domain.User) domain.Relation {
	return domain.Relation{TeamID: teamID, User: u.Summary(), Links: links, AppliedAt: tick()}
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := MustUser(t, s, "alice")

	got, err := s.Users().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, alice.Name, got.Name)
	require.Equal(t, "alice@example.com", got.Email)
	require.False(t, got.Verified)
	require.WithinDuration(t, alice.CreatedAt, got.CreatedAt, time.Millisecond)

	got, err = s.Users().GetByEmail(ctx, " ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)

	_, err = s.Users().GetByID(ctx, idx.New())
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := alice
	dup.ID = idx.New()
	dup.Name = "other"
	require.ErrorIs(t, s.Users().Create(ctx, dup), store.ErrAlreadyExists, "email is unique")

	dup.Email = "other@example.com"
	dup.Name = "alice"
	require.ErrorIs(t, s.Users().Create(ctx, dup), store.ErrAlreadyExists, "name is unique")
}

func testOTP(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := MustUser(t, s, "otp")
	now := tick()

	require.ErrorIs(t, s.Users().SetVerifyOTP(ctx, idx.New(), "fp", now), store.ErrNotFound)

	require.NoError(t, s.Users().SetVerifyOTP(ctx, u.ID, "fp1", now.Add(15*time.Minute)))
	got, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "fp1", got.VerifyOTP)
	require.NotNil(t, got.VerifyOTPExpiresAt)
	require.WithinDuration(t, now.Add(15*time.Minute), *got.VerifyOTPExpiresAt, time.Millisecond)

	require.ErrorIs(t, s.Users().MarkVerified(ctx, u.ID, "wrong", now), store.ErrGuardFailed)
	require.NoError(t, s.Users().MarkVerified(ctx, u.ID, "fp1", now))
	require.ErrorIs(t, s.Users().MarkVerified(ctx, u.ID, "fp1", now), store.ErrGuardFailed, "single use")

	got, err = s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.Verified)
	require.Empty(t, got.VerifyOTP)
	require.Nil(t, got.VerifyOTPExpiresAt)

	require.NoError(t, s.Users().SetResetOTP(ctx, u.ID, "r1", now.Add(time.Minute)))
	require.NoError(t, s.Users().ResetPassword(ctx, u.ID, "r1", "newhash", now))
	require.ErrorIs(t, s.Users().ResetPassword(ctx, u.ID, "r1", "again", now), store.ErrGuardFailed)

	got, err = s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "newhash", got.PasswordHash)
	require.Empty(t, got.ResetOTP)

	// Expired codes are swept, live ones stay.
	other := MustUser(t, s, "otp2")
	require.NoError(t, s.Users().SetVerifyOTP(ctx, u.ID, "old", now.Add(-time.Minute)))
	require.NoError(t, s.Users().SetResetOTP(ctx, other.ID, "live", now.Add(time.Hour)))

	n, err := s.Users().ClearExpiredOTPs(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err = s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, got.VerifyOTP)

	got, err = s.Users().GetByID(ctx, other.ID)
	require.NoError(t, err)
	require.Equal(t, "live", got.ResetOTP)
}

func testTeams(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := MustUser(t, s, "owner")
	team := MustTeam(t, s, owner.ID, "ml", 3)

	got, err := s.Teams().Get(ctx, team.ID)
	require.NoError(t, err)
	require.Equal(t, team.Name, got.Name)
	require.Equal(t, 3, got.MaxMembers)
	require.Zero(t, got.MemberCount)
	require.True(t, got.IsOpen)
	require.Equal(t, owner.Summary(), got.Creator)

	_, err = s.Teams().Get(ctx, idx.New())
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Teams().Relation(ctx, team.ID, owner.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	rels, err := s.Teams().Relations(ctx)
	require.NoError(t, err)
	require.Empty(t, rels)
}

func testListings(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := MustUser(t, s, "lister")
	viewer := MustUser(t, s, "viewer")

	web1 := MustTeam(t, s, owner.ID, "web", 2)
	ml := MustTeam(t, s, owner.ID, "ml", 2)
	web2 := MustTeam(t, s, owner.ID, "web", 2)
	own := MustTeam(t, s, viewer.ID, "web", 2)
	applied := MustTeam(t, s, owner.ID, "web", 2)
	require.NoError(t, s.Teams().InsertApplication(ctx, application(applied.ID, viewer)))

	closed := MustTeam(t, s, owner.ID, "web", 2)
	open := false
	_, err := s.Teams().SetRecruiting(ctx, closed.ID, &open, tick())
	require.NoError(t, err)

	ids := func(rows []store.TeamRow) []idx.ID {
		out := make([]idx.ID, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.ID)
		}
		return out
	}

	created, err := s.Teams().ListByCreator(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, []idx.ID{closed.ID, applied.ID, web2.ID, ml.ID, web1.ID}, ids(created), "newest first")

	anon, err := s.Teams().ListOpen(ctx, store.OpenFilter{})
	require.NoError(t, err)
	require.Equal(t, []idx.ID{applied.ID, own.ID, web2.ID, ml.ID, web1.ID}, ids(anon))

	webOnly, err := s.Teams().ListOpen(ctx, store.OpenFilter{Domain: " web "})
	require.NoError(t, err)
	require.Equal(t, []idx.ID{applied.ID, own.ID, web2.ID, web1.ID}, ids(webOnly))

	forViewer, err := s.Teams().ListOpen(ctx, store.OpenFilter{Domain: "web", ExcludeUser: viewer.ID})
	require.NoError(t, err)
	require.Equal(t, []idx.ID{web2.ID, web1.ID}, ids(forViewer), "own and applied teams are hidden")

	participating, err := s.Teams().ListByParticipant(ctx, viewer.ID)
	require.NoError(t, err)
	require.Equal(t, []idx.ID{applied.ID}, ids(participating))
}

func testApplyGuard(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := MustUser(t, s, "guard-owner")
	bob := MustUser(t, s, "bob")
	team := MustTeam(t, s, owner.ID, "web", 2)

	require.NoError(t, s.Teams().InsertApplication(ctx, application(team.ID, bob)))
	require.ErrorIs(t, s.Teams().InsertApplication(ctx, application(team.ID, bob)), store.ErrGuardFailed, "duplicate")
	require.ErrorIs(t, s.Teams().InsertApplication(ctx, application(team.ID, owner)), store.ErrGuardFailed, "creator")
	require.ErrorIs(t, s.Teams().InsertApplication(ctx, application(idx.New(), bob)), store.ErrGuardFailed, "missing team")

	rel, err := s.Teams().Relation(ctx, team.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RelationApplied, rel.Status)
	require.Equal(t, links, rel.Links)
	require.Equal(t, bob.Summary(), rel.User)

	closed := false
	_, err = s.Teams().SetRecruiting(ctx, team.ID, &closed, tick())
	require.NoError(t, err)
	carol := MustUser(t, s, "carol")
	require.ErrorIs(t, s.Teams().InsertApplication(ctx, application(team.ID, carol)), store.ErrGuardFailed, "closed")
}

func testClaimSeat(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := MustUser(t, s, "seat-owner")
	team := MustTeam(t, s, owner.ID, "web", 2)

	require.NoError(t, s.Teams().ClaimSeat(ctx, team.ID, tick()))
	got, err := s.Teams().Get(ctx, team.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.MemberCount)
	require.True(t, got.IsOpen)

	require.NoError(t, s.Teams().ClaimSeat(ctx, team.ID, tick()))
	got, err = s.Teams().Get(ctx, team.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.MemberCount)
	require.False(t, got.IsOpen, "filling the last seat closes recruiting")

	require.ErrorIs(t, s.Teams().ClaimSeat(ctx, team.ID, tick()), store.ErrGuardFailed)
}

func testTransitions(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := MustUser(t, s, "tr-owner")
	dave := MustUser(t, s, "dave")
	erin := MustUser(t, s, "erin")
	fred := MustUser(t, s, "fred")
	team := MustTeam(t, s, owner.ID, "web", 5)

	for _, u := range []domain.User{dave, erin, fred} {
		require.NoError(t, s.Teams().InsertApplication(ctx, application(team.ID, u)))
	}

	at := tick()
	require.NoError(t, s.Teams().Transition(ctx, team.ID, dave.ID, domain.RelationApplied, domain.RelationMember, at))
	require.ErrorIs(t, s.Teams().Transition(ctx, team.ID, dave.ID, domain.RelationApplied, domain.RelationRejected, at),
		store.ErrGuardFailed, "members cannot be rejected")

	require.NoError(t, s.Teams().Transition(ctx, team.ID, erin.ID, domain.RelationApplied, domain.RelationRejected, at))
	rel, err := s.Teams().Relation(ctx, team.ID, erin.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RelationRejected, rel.Status)
	require.Equal(t, links, rel.Links)
	require.NotNil(t, rel.RejectedAt)
	require.WithinDuration(t, at, *rel.RejectedAt, time.Millisecond)

	require.ErrorIs(t, s.Teams().DeleteApplication(ctx, team.ID, erin.ID), store.ErrGuardFailed, "rejections stay")
	require.NoError(t, s.Teams().DeleteApplication(ctx, team.ID, fred.ID))
	_, err = s.Teams().Relation(ctx, team.ID, fred.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	rels, err := s.Teams().Relations(ctx, team.ID)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	require.Equal(t, dave.ID, rels[0].User.ID)
	require.NotNil(t, rels[0].JoinedAt)
}

func testRecruiting(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := MustUser(t, s, "rec-owner")
	team := MustTeam(t, s, owner.ID, "web", 2)

	open, err := s.Teams().SetRecruiting(ctx, team.ID, nil, tick())
	require.NoError(t, err)
	require.False(t, open)

	open, err = s.Teams().SetRecruiting(ctx, team.ID, nil, tick())
	require.NoError(t, err)
	require.True(t, open)

	want := true
	open, err = s.Teams().SetRecruiting(ctx, team.ID, &want, tick())
	require.NoError(t, err)
	require.True(t, open, "explicit set is idempotent")

	_, err = s.Teams().SetRecruiting(ctx, idx.New(), nil, tick())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := MustUser(t, s, "tx-owner")
	team := MustTeam(t, s, owner.ID, "web", 2)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Teams().ClaimSeat(ctx, team.ID, tick()))
		return store.ErrGuardFailed
	})
	require.ErrorIs(t, err, store.ErrGuardFailed)

	got, err := s.Teams().Get(ctx, team.ID)
	require.NoError(t, err)
	require.Zero(t, got.MemberCount, "rolled back")
}

// testConcurrentAccept races accepts for more applicants than there are seats.
func testConcurrentAccept(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := MustUser(t, s, "race-owner")
	team := MustTeam(t, s, owner.ID, "web", 2)

	const applicants = 6
	users := make([]domain.User, applicants)
	for i := range users {
		users[i] = MustUser(t, s, "racer"+string(rune('a'+i)))
		require.NoError(t, s.Teams().InsertApplication(ctx, application(team.ID, users[i])))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, u := range users {
		wg.Add(1)
		go func(u domain.User) {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Tx) error {
				if err := tx.Teams().ClaimSeat(ctx, team.ID, time.Now()); err != nil {
					return err
				}
				return tx.Teams().Transition(ctx, team.ID, u.ID, domain.RelationApplied, domain.RelationMember, time.Now())
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()

	require.Equal(t, 2, accepted)

	got, err := s.Teams().Get(ctx, team.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.MemberCount)
	require.False(t, got.IsOpen)

	rels, err := s.Teams().Relations(ctx, team.ID)
	require.NoError(t, err)
	members := 0
	for _, r := range rels {
		if r.Status == domain.RelationMember {
			members++
		}
	}
	require.Equal(t, 2, members)
}
