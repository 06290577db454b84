package http

import (
	"github.com/aussiebroadwan/teamup/internal/teamup/domain"
	"github.com/aussiebroadwan/teamup/pkg/teamsdk"
)

func toUserSummary(u domain.UserSummary) teamsdk.UserSummary {
	return teamsdk.UserSummary{ID: u.ID.String(), Name: u.Name, Email: u.Email}
}

func toApplicant(a domain.Applicant) teamsdk.Applicant {
	return teamsdk.Applicant{
		User:      toUserSummary(a.User),
		LinkedIn:  a.Links.LinkedIn,
		GitHub:    a.Links.GitHub,
		Resume:    a.Links.Resume,
		AppliedAt: a.AppliedAt,
	}
}

func toTeam(v domain.TeamView) teamsdk.Team {
	t := teamsdk.Team{
		ID:                 v.ID.String(),
		Name:               v.Name,
		Creator:            toUserSummary(v.Creator),
		Domain:             v.Domain,
		Description:        v.Description,
		MaxMembers:         v.MaxMembers,
		IsOpen:             v.IsOpen,
		Members:            make([]teamsdk.Member, len(v.Members)),
		Applicants:         make([]teamsdk.Applicant, len(v.Applicants)),
		RejectedApplicants: make([]teamsdk.RejectedApplicant, len(v.Rejected)),
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
	}
	for i, m := range v.Members {
		t.Members[i] = teamsdk.Member{UserSummary: toUserSummary(m.User), JoinedAt: m.JoinedAt}
	}
	for i, a := range v.Applicants {
		t.Applicants[i] = toApplicant(a)
	}
	for i, r := range v.Rejected {
		t.RejectedApplicants[i] = teamsdk.RejectedApplicant{Applicant: toApplicant(r.Applicant), RejectedAt: r.RejectedAt}
	}
	return t
}

func toTeams(views []domain.TeamView) []teamsdk.Team {
	out := make([]teamsdk.Team, len(views))
	for i, v := range views {
		out[i] = toTeam(v)
	}
	return out
}
