package teamsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Session is a signed-in client. Sessions are safe for concurrent use.
type Session struct {
	client *SDKClient
	token  string
}

// Token returns the session token.
func (s *Session) Token() string { return s.token }

func (s *Session) call(ctx context.Context, method, path string, in, out any) error {
	_, err := s.client.call(ctx, method, path, s.token, in, out)
	return err
}

// IsAuthenticated reports whether the server still accepts the session.
func (s *Session) IsAuthenticated(ctx context.Context) (bool, error) {
	err := s.call(ctx, http.MethodPost, "/api/auth/isAuthenticated", nil, nil)
	if IsUnauthorized(err) || IsForbidden(err) {
		return false, nil
	}
	return err == nil, err
}

// Logout clears the server cookie. The token itself stays valid until it
// expires.
func (s *Session) Logout(ctx context.Context) error {
	return s.call(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (s *Session) SendVerifyOTP(ctx context.Context) error {
	return s.call(ctx, http.MethodPost, "/api/auth/sendVerifyOtp", nil, nil)
}

func (s *Session) VerifyAccount(ctx context.Context, otp string) error {
	return s.call(ctx, http.MethodPost, "/api/auth/verifyAccount", VerifyAccountRequest{OTP: otp}, nil)
}

func (s *Session) Profile(ctx context.Context) (*UserData, error) {
	var out ProfileResponse
	if err := s.call(ctx, http.MethodGet, "/api/user/profile", nil, &out); err != nil {
		return nil, err
	}
	return out.UserData, nil
}

// ============================================================================
// Teams
// ============================================================================

func (s *Session) CreateTeam(ctx context.Context, req CreateTeamRequest) (*Team, error) {
	var out TeamResponse
	if err := s.call(ctx, http.MethodPost, "/api/team", req, &out); err != nil {
		return nil, err
	}
	return out.Team, nil
}

func (s *Session) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	var out TeamResponse
	if err := s.call(ctx, http.MethodGet, "/api/team/"+url.PathEscape(teamID), nil, &out); err != nil {
		return nil, err
	}
	return out.Team, nil
}

func (s *Session) ListCreated(ctx context.Context) ([]Team, error) {
	return s.list(ctx, "/api/team/created")
}

func (s *Session) ListApplied(ctx context.Context) ([]Team, error) {
	return s.list(ctx, "/api/team/applied")
}

// ListAvailable lists open teams the caller has no part in yet.
func (s *Session) ListAvailable(ctx context.Context, domain string) ([]Team, error) {
	return listAvailable(ctx, s.client, s.token, domain)
}

func (s *Session) list(ctx context.Context, path string) ([]Team, error) {
	var out TeamsResponse
	if err := s.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Teams, nil
}

func (s *Session) Apply(ctx context.Context, teamID string, req ApplyRequest) error {
	return s.call(ctx, http.MethodPost, teamPath(teamID)+"/apply", req, nil)
}

func (s *Session) Accept(ctx context.Context, teamID, applicantID string) error {
	return s.call(ctx, http.MethodPost, applicantPath(teamID, applicantID)+"/accept", nil, nil)
}

func (s *Session) Reject(ctx context.Context, teamID, applicantID string) error {
	return s.call(ctx, http.MethodPost, applicantPath(teamID, applicantID)+"/reject", nil, nil)
}

func (s *Session) Withdraw(ctx context.Context, teamID, applicantID string) error {
	return s.call(ctx, http.MethodPost, applicantPath(teamID, applicantID)+"/withdraw", nil, nil)
}

// SetRecruiting opens or closes recruiting; a nil open flips it. It returns
// the new state.
func (s *Session) SetRecruiting(ctx context.Context, teamID string, open *bool) (bool, error) {
	var out RecruitingResponse
	if err := s.call(ctx, http.MethodPatch, teamPath(teamID)+"/recruiting", RecruitingRequest{IsOpen: open}, &out); err != nil {
		return false, err
	}
	return out.IsOpen, nil
}

func teamPath(teamID string) string {
	return "/api/team/" + url.PathEscape(teamID)
}

func applicantPath(teamID, applicantID string) string {
	return teamPath(teamID) + "/applicants/" + url.PathEscape(applicantID)
}
