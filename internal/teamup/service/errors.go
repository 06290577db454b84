package service

import (
	"errors"
	"strings"
)

// Kind classifies a service error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a failure the caller can act on. Message is safe to show to
// clients.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// KindOf returns the kind of err, KindInternal for anything that is not an
// *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// validationError joins field problems into a single InvalidArgument.
func validationError(problems []string) *Error {
	return newError(KindInvalidArgument, "Validation error: "+strings.Join(problems, ", "))
}

var (
	ErrUnauthenticated = newError(KindUnauthorized, "Unauthorized")
	ErrForbidden       = newError(KindForbidden, "Forbidden")
	ErrInternal        = newError(KindInternal, "Internal server error")

	ErrNameDomainRequired = newError(KindInvalidArgument, "Name and domain required")
	ErrInvalidMaxMembers  = newError(KindInvalidArgument, "maxMembers must be at least 1")
	ErrInvalidTeamID      = newError(KindInvalidArgument, "Invalid teamId")
	ErrInvalidIDs         = newError(KindInvalidArgument, "Invalid id(s)")
	ErrLinksRequired      = newError(KindInvalidArgument, "LinkedIn, GitHub, and Resume links are required")

	ErrTeamNotFound        = newError(KindNotFound, "Team not found")
	ErrApplicantNotFound   = newError(KindNotFound, "Applicant not found")
	ErrApplicationNotFound = newError(KindNotFound, "Application not found")

	ErrOwnTeam            = newError(KindConflict, "Cannot apply to your own team")
	ErrAlreadyMember      = newError(KindConflict, "Already a member")
	ErrAlreadyApplied     = newError(KindConflict, "Already applied")
	ErrPreviouslyRejected = newError(KindConflict, "Application previously rejected")
	ErrTeamFull           = newError(KindConflict, "Team is full")
	ErrTeamAlreadyFull    = newError(KindConflict, "Team is already full")
	ErrNotRecruiting      = newError(KindConflict, "Team is not recruiting")

	ErrWithdrawOthers = newError(KindForbidden, "Can only withdraw your own application")
)

// Account errors. The messages are what the auth routes return.
var (
	ErrMissingFields      = newError(KindInvalidArgument, "Please fill all the fields")
	ErrInvalidEmail       = newError(KindInvalidArgument, "Invalid email address")
	ErrUserExists         = newError(KindConflict, "User already exists")
	ErrUserNotFound       = newError(KindNotFound, "User not found")
	ErrInvalidCredentials = newError(KindUnauthorized, "Invalid credentials")
	ErrAlreadyVerified    = newError(KindConflict, "Account already verified")
	ErrInvalidOTP         = newError(KindInvalidArgument, "Invalid OTP")
	ErrOTPExpired         = newError(KindInvalidArgument, "OTP expired")
)
