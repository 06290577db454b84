package http

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/teamup/internal/teamup/domain"
	"github.com/aussiebroadwan/teamup/internal/teamup/service"
	"github.com/aussiebroadwan/teamup/pkg/httpx"
	"github.com/aussiebroadwan/teamup/pkg/teamsdk"
)

// TeamHandler serves /api/team.
type TeamHandler struct {
	TeamService *service.TeamService
}

// HandleCreate handles POST /api/team
//
//	@Summary		Create team
//	@Description	Creates a team owned by the caller. maxMembers defaults to 2.
//	@Tags			Teams
//	@Security		CookieAuth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		teamsdk.CreateTeamRequest	true	"Team details"
//	@Success		201		{object}	teamsdk.TeamResponse
//	@Failure		400		{object}	teamsdk.Envelope	"Name and domain required"
//	@Failure		401		{object}	teamsdk.Envelope	"Missing session"
//	@Router			/api/team [post].
func (h *TeamHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req teamsdk.CreateTeamRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.TeamService.CreateTeam(r.Context(), httpx.UserIDFromContext(r.Context()), service.CreateTeamInput{
		Name:        req.Name,
		Domain:      req.Domain,
		Description: req.Description,
		MaxMembers:  req.MaxMembers,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeTeam(w, http.StatusCreated, view)
}

// HandleGet handles GET /api/team/{teamId}
//
//	@Summary	Get team
//	@Tags		Teams
//	@Security	CookieAuth
//	@Security	BearerAuth
//	@Produce	json
//	@Param		teamId	path		string	true	"Team ID"
//	@Success	200		{object}	teamsdk.TeamResponse
//	@Failure	400		{object}	teamsdk.Envelope	"Invalid teamId"
//	@Failure	404		{object}	teamsdk.Envelope	"Team not found"
//	@Router		/api/team/{teamId} [get].
func (h *TeamHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.TeamService.GetTeam(r.Context(), r.PathValue("teamId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeTeam(w, http.StatusOK, view)
}

// HandleListCreated handles GET /api/team/created
//
//	@Summary	Teams I created
//	@Tags		Teams
//	@Security	CookieAuth
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	teamsdk.TeamsResponse
//	@Router		/api/team/created [get].
func (h *TeamHandler) HandleListCreated(w http.ResponseWriter, r *http.Request) {
	views, err := h.TeamService.ListCreated(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeTeams(w, views)
}

// HandleListApplied handles GET /api/team/applied
//
//	@Summary	Teams I applied to
//	@Tags		Teams
//	@Security	CookieAuth
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	teamsdk.TeamsResponse
//	@Router		/api/team/applied [get].
func (h *TeamHandler) HandleListApplied(w http.ResponseWriter, r *http.Request) {
	views, err := h.TeamService.ListApplied(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeTeams(w, views)
}

// HandleListAvailable handles GET /api/team/available
//
//	@Summary		Browse open teams
//	@Description	Open teams, optionally filtered by domain. Signed in callers do not see teams they own or already relate to.
//	@Tags			Teams
//	@Produce		json
//	@Param			domain	query		string	false	"Exact domain"
//	@Success		200		{object}	teamsdk.TeamsResponse
//	@Router			/api/team/available [get].
func (h *TeamHandler) HandleListAvailable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	views, err := h.TeamService.ListAvailable(ctx, httpx.UserIDFromContext(ctx), r.URL.Query().Get("domain"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeTeams(w, views)
}

// HandleApply handles POST /api/team/{teamId}/apply
//
//	@Summary	Apply to team
//	@Tags		Teams
//	@Security	CookieAuth
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		teamId	path		string					true	"Team ID"
//	@Param		request	body		teamsdk.ApplyRequest	true	"Profile links"
//	@Success	200		{object}	teamsdk.Envelope
//	@Failure	400		{object}	teamsdk.Envelope	"Validation error"
//	@Failure	404		{object}	teamsdk.Envelope	"Team not found"
//	@Failure	409		{object}	teamsdk.Envelope	"Team is full, not recruiting, or already related"
//	@Router		/api/team/{teamId}/apply [post].
func (h *TeamHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	var req teamsdk.ApplyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.TeamService.Apply(r.Context(), r.PathValue("teamId"), httpx.UserIDFromContext(r.Context()), domain.Links{
		LinkedIn: req.LinkedIn,
		GitHub:   req.GitHub,
		Resume:   req.Resume,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "Applied successfully")
}

// HandleAccept handles POST /api/team/{teamId}/applicants/{applicantId}/accept
//
//	@Summary	Accept applicant
//	@Tags		Teams
//	@Security	CookieAuth
//	@Security	BearerAuth
//	@Produce	json
//	@Param		teamId		path		string	true	"Team ID"
//	@Param		applicantId	path		string	true	"Applicant user ID"
//	@Success	200			{object}	teamsdk.Envelope
//	@Failure	403			{object}	teamsdk.Envelope	"Not the creator"
//	@Failure	404			{object}	teamsdk.Envelope	"Team or applicant not found"
//	@Failure	409			{object}	teamsdk.Envelope	"Team is already full"
//	@Router		/api/team/{teamId}/applicants/{applicantId}/accept [post].
func (h *TeamHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.applicantAction(w, r, h.TeamService.AcceptApplicant, "Applicant accepted")
}

// HandleReject handles POST /api/team/{teamId}/applicants/{applicantId}/reject
//
//	@Summary	Reject applicant
//	@Tags		Teams
//	@Security	CookieAuth
//	@Security	BearerAuth
//	@Produce	json
//	@Param		teamId		path		string	true	"Team ID"
//	@Param		applicantId	path		string	true	"Applicant user ID"
//	@Success	200			{object}	teamsdk.Envelope
//	@Failure	403			{object}	teamsdk.Envelope	"Not the creator"
//	@Failure	404			{object}	teamsdk.Envelope	"Team or applicant not found"
//	@Router		/api/team/{teamId}/applicants/{applicantId}/reject [post].
func (h *TeamHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.applicantAction(w, r, h.TeamService.RejectApplicant, "Applicant rejected")
}

// HandleWithdraw handles POST /api/team/{teamId}/applicants/{applicantId}/withdraw
//
//	@Summary	Withdraw application
//	@Tags		Teams
//	@Security	CookieAuth
//	@Security	BearerAuth
//	@Produce	json
//	@Param		teamId		path		string	true	"Team ID"
//	@Param		applicantId	path		string	true	"Caller's own user ID"
//	@Success	200			{object}	teamsdk.Envelope
//	@Failure	403			{object}	teamsdk.Envelope	"Withdrawing someone else's application"
//	@Failure	404			{object}	teamsdk.Envelope	"Application not found"
//	@Router		/api/team/{teamId}/applicants/{applicantId}/withdraw [post].
func (h *TeamHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.applicantAction(w, r, h.TeamService.WithdrawApplication, "Application withdrawn")
}

func (h *TeamHandler) applicantAction(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, teamID, callerID, applicantID string) error,
	okMsg string,
) {
	ctx := r.Context()
	if err := fn(ctx, r.PathValue("teamId"), httpx.UserIDFromContext(ctx), r.PathValue("applicantId")); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, okMsg)
}

// HandleRecruiting handles PATCH /api/team/{teamId}/recruiting
//
//	@Summary		Set recruiting
//	@Description	Sets isOpen when given, otherwise flips it.
//	@Tags			Teams
//	@Security		CookieAuth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			teamId	path		string						true	"Team ID"
//	@Param			request	body		teamsdk.RecruitingRequest	false	"Desired state"
//	@Success		200		{object}	teamsdk.RecruitingResponse
//	@Failure		403		{object}	teamsdk.Envelope	"Not the creator"
//	@Failure		404		{object}	teamsdk.Envelope	"Team not found"
//	@Router			/api/team/{teamId}/recruiting [patch].
func (h *TeamHandler) HandleRecruiting(w http.ResponseWriter, r *http.Request) {
	var req teamsdk.RecruitingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	open, err := h.TeamService.ToggleRecruiting(r.Context(), r.PathValue("teamId"), httpx.UserIDFromContext(r.Context()), req.IsOpen)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, teamsdk.RecruitingResponse{
		Envelope: teamsdk.Envelope{Success: true, Message: service.RecruitingMessage(open)},
		IsOpen:   open,
	})
}

func writeTeam(w http.ResponseWriter, code int, v domain.TeamView) {
	t := toTeam(v)
	httpx.WriteJSON(w, code, teamsdk.TeamResponse{Envelope: teamsdk.Envelope{Success: true}, Team: &t})
}

func writeTeams(w http.ResponseWriter, views []domain.TeamView) {
	httpx.WriteJSON(w, http.StatusOK, teamsdk.TeamsResponse{Envelope: teamsdk.Envelope{Success: true}, Teams: toTeams(views)})
}
