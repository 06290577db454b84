package http

import (
	"net/http"

	"github.com/aussiebroadwan/teamup/internal/teamup/service"
	"github.com/aussiebroadwan/teamup/pkg/httpx"
	"github.com/aussiebroadwan/teamup/pkg/teamsdk"
)

type UserHandler struct {
	AccountService *service.AccountService
}

// HandleProfile handles GET /api/user/profile
//
//	@Summary	Current user
//	@Tags		User
//	@Security	CookieAuth
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	teamsdk.ProfileResponse
//	@Failure	401	{object}	teamsdk.Envelope	"Missing session"
//	@Router		/api/user/profile [get].
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.AccountService.Profile(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, teamsdk.ProfileResponse{
		Envelope: teamsdk.Envelope{Success: true},
		UserData: &teamsdk.UserData{
			Name:              p.Name,
			Email:             p.Email,
			IsAccountVerified: p.IsAccountVerified,
		},
	})
}
