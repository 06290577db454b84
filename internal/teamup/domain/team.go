package domain

import (
	"time"

	"github.com/aussiebroadwan/teamup/pkg/idx"
)

// DefaultMaxMembers applies when a team is created without a cap.
const DefaultMaxMembers = 2

type Team struct {
	ID          idx.ID
	Name        string
	CreatorID   idx.ID
	Domain      string
	Description string
	MaxMembers  int
	MemberCount int
	IsOpen      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Full reports whether every member slot is taken.
func (t Team) Full() bool { return t.MemberCount >= t.MaxMembers }

// RelationStatus is where a user sits in a team's applicant lifecycle.
//
//	none -> applied -> member
//	             \---> rejected
//	applied -> none (withdraw)
type RelationStatus string

const (
	RelationNone     RelationStatus = ""
	RelationApplied  RelationStatus = "applied"
	RelationMember   RelationStatus = "member"
	RelationRejected RelationStatus = "rejected"
)

func (s RelationStatus) Valid() bool {
	switch s {
	case RelationApplied, RelationMember, RelationRejected:
		return true
	}
	return false
}

// Links are the profile links submitted with an application.
type Links struct {
	LinkedIn string
	GitHub   string
	Resume   string
}

// Relation is the single row tying a user to a team. A user has at most one
// relation per team, so membership, pending applications and rejections are
// mutually exclusive.
type Relation struct {
	TeamID     idx.ID
	User       UserSummary
	Status     RelationStatus
	Links      Links
	AppliedAt  time.Time
	JoinedAt   *time.Time
	RejectedAt *time.Time
}

type Member struct {
	User     UserSummary
	JoinedAt time.Time
}

type Applicant struct {
	User      UserSummary
	Links     Links
	AppliedAt time.Time
}

type RejectedApplicant struct {
	Applicant
	RejectedAt time.Time
}

// TeamView is a team with its people resolved, as returned by reads.
type TeamView struct {
	Team
	Creator    UserSummary
	Members    []Member
	Applicants []Applicant
	Rejected   []RejectedApplicant
}

// NewTeamView groups relations by status. Relations are expected in
// chronological order.
func NewTeamView(t Team, creator UserSummary, rels []Relation) TeamView {
	v := TeamView{
		Team:       t,
		Creator:    creator,
		Members:    []Member{},
		Applicants: []Applicant{},
		Rejected:   []RejectedApplicant{},
	}

	for _, r := range rels {
		app := Applicant{User: r.User, Links: r.Links, AppliedAt: r.AppliedAt}
		switch r.Status {
		case RelationApplied:
			v.Applicants = append(v.Applicants, app)
		case RelationMember:
			joined := r.AppliedAt
			if r.JoinedAt != nil {
				joined = *r.JoinedAt
			}
			v.Members = append(v.Members, Member{User: r.User, JoinedAt: joined})
		case RelationRejected:
			rejected := r.AppliedAt
			if r.RejectedAt != nil {
				rejected = *r.RejectedAt
			}
			v.Rejected = append(v.Rejected, RejectedApplicant{Applicant: app, RejectedAt: rejected})
		}
	}
	return v
}

// StatusOf returns userID's relation status in the view.
func (v TeamView) StatusOf(userID idx.ID) RelationStatus {
	for _, m := range v.Members {
		if m.User.ID == userID {
			return RelationMember
		}
	}
	for _, a := range v.Applicants {
		if a.User.ID == userID {
			return RelationApplied
		}
	}
	for _, r := range v.Rejected {
		if r.User.ID == userID {
			return RelationRejected
		}
	}
	return RelationNone
}
