package teamsdk

import "time"

// Envelope is embedded in every response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ============================================================================
// Health
// ============================================================================

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`

	// Cache is only reported when a shared rate limit store is configured.
	Cache string `json:"cache,omitempty"`
}

// ============================================================================
// Accounts
// ============================================================================

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyAccountRequest struct {
	OTP string `json:"otp"`
}

type SendResetOTPRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type UserData struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	IsAccountVerified bool   `json:"isAccountVerified"`
}

type ProfileResponse struct {
	Envelope
	UserData *UserData `json:"userdata,omitempty"`
}

// ============================================================================
// Teams
// ============================================================================

type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Member struct {
	UserSummary
	JoinedAt time.Time `json:"joinedAt"`
}

type Applicant struct {
	User      UserSummary `json:"user"`
	LinkedIn  string      `json:"linkedin"`
	GitHub    string      `json:"github"`
	Resume    string      `json:"resume"`
	AppliedAt time.Time   `json:"appliedAt"`
}

type RejectedApplicant struct {
	Applicant
	RejectedAt time.Time `json:"rejectedAt"`
}

type Team struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Creator            UserSummary         `json:"creator"`
	Domain             string              `json:"domain"`
	Description        string              `json:"description"`
	MaxMembers         int                 `json:"maxMembers"`
	IsOpen             bool                `json:"isOpen"`
	Members            []Member            `json:"members"`
	Applicants         []Applicant         `json:"applicants"`
	RejectedApplicants []RejectedApplicant `json:"rejectedApplicants"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

type CreateTeamRequest struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Description string `json:"description,omitempty"`

	// MaxMembers defaults to 2 when omitted.
	MaxMembers *int `json:"maxMembers,omitempty"`
}

type ApplyRequest struct {
	LinkedIn string `json:"linkedin"`
	GitHub   string `json:"github"`
	Resume   string `json:"resume"`
}

// RecruitingRequest sets the recruiting flag. A nil IsOpen flips it.
type RecruitingRequest struct {
	IsOpen *bool `json:"isOpen,omitempty"`
}

type TeamResponse struct {
	Envelope
	Team *Team `json:"team,omitempty"`
}

type TeamsResponse struct {
	Envelope
	Teams []Team `json:"teams"`
}

type RecruitingResponse struct {
	Envelope
	IsOpen bool `json:"isOpen"`
}
