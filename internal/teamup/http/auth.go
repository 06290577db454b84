package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/teamup/internal/teamup/service"
	"github.com/aussiebroadwan/teamup/pkg/httpx"
	"github.com/aussiebroadwan/teamup/pkg/slogx"
	"github.com/aussiebroadwan/teamup/pkg/teamsdk"
)

// AuthHandler serves /api/auth. Outcomes other than internal failures are
// reported with a 200 and the success flag.
type AuthHandler struct {
	AccountService *service.AccountService
	Cookie         httpx.SessionCookie
}

// HandleRegister handles POST /api/auth/register
//
//	@Summary		Register
//	@Description	Creates an account, signs the user in and sends a welcome email.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		teamsdk.RegisterRequest	true	"Account details"
//	@Success		200		{object}	teamsdk.Envelope		"Session cookie set on success"
//	@Failure		500		{object}	teamsdk.Envelope		"Internal server error"
//	@Router			/api/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req teamsdk.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := h.AccountService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	h.Cookie.Set(w, sess.Token)
	httpx.WriteMessage(w, http.StatusOK, "User created successfully")
}

// HandleLogin handles POST /api/auth/login
//
//	@Summary		Login
//	@Description	Verifies credentials and sets the session cookie.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		teamsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	teamsdk.Envelope
//	@Failure		500		{object}	teamsdk.Envelope	"Internal server error"
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req teamsdk.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := h.AccountService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	h.Cookie.Set(w, sess.Token)
	httpx.WriteMessage(w, http.StatusOK, "Login successful")
}

// HandleLogout handles POST /api/auth/logout
//
//	@Summary	Logout
//	@Tags		Auth
//	@Produce	json
//	@Success	200	{object}	teamsdk.Envelope
//	@Router		/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Cookie.Clear(w)
	httpx.WriteMessage(w, http.StatusOK, "Logout successful")
}

// HandleIsAuthenticated handles POST /api/auth/isAuthenticated
//
//	@Summary	Session check
//	@Tags		Auth
//	@Security	CookieAuth
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	teamsdk.Envelope
//	@Failure	401	{object}	teamsdk.Envelope	"Missing session"
//	@Failure	403	{object}	teamsdk.Envelope	"Invalid or expired session"
//	@Router		/api/auth/isAuthenticated [post].
func (h *AuthHandler) HandleIsAuthenticated(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, teamsdk.Envelope{Success: true})
}

// HandleSendVerifyOTP handles POST /api/auth/sendVerifyOtp
//
//	@Summary		Send verification code
//	@Description	Emails a one-time code that verifies the signed in account.
//	@Tags			Auth
//	@Security		CookieAuth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	teamsdk.Envelope
//	@Failure		404	{object}	teamsdk.Envelope	"User not found"
//	@Failure		500	{object}	teamsdk.Envelope	"Internal server error"
//	@Router			/api/auth/sendVerifyOtp [post].
func (h *AuthHandler) HandleSendVerifyOTP(w http.ResponseWriter, r *http.Request) {
	err := h.AccountService.SendVerifyOTP(r.Context(), httpx.UserIDFromContext(r.Context()))
	if errors.Is(err, service.ErrUserNotFound) {
		httpx.WriteError(w, http.StatusNotFound, service.ErrUserNotFound.Message)
		return
	}
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "OTP sent successfully")
}

// HandleVerifyAccount handles POST /api/auth/verifyAccount
//
//	@Summary	Verify account
//	@Tags		Auth
//	@Security	CookieAuth
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		teamsdk.VerifyAccountRequest	true	"Emailed code"
//	@Success	200		{object}	teamsdk.Envelope
//	@Router		/api/auth/verifyAccount [post].
func (h *AuthHandler) HandleVerifyAccount(w http.ResponseWriter, r *http.Request) {
	var req teamsdk.VerifyAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userID := httpx.UserIDFromContext(r.Context())
	if err := h.AccountService.VerifyAccount(r.Context(), userID, req.OTP); err != nil {
		writeAuthError(w, r, err)
		return
	}

	slogx.FromContext(r.Context()).Info("account verified", "user_id", userID)
	httpx.WriteMessage(w, http.StatusOK, "Email verified successfully")
}

// HandleSendResetOTP handles POST /api/auth/sendResetOtp
//
//	@Summary	Send password reset code
//	@Tags		Auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		teamsdk.SendResetOTPRequest	true	"Account email"
//	@Success	200		{object}	teamsdk.Envelope
//	@Failure	500		{object}	teamsdk.Envelope	"Internal server error"
//	@Router		/api/auth/sendResetOtp [post].
func (h *AuthHandler) HandleSendResetOTP(w http.ResponseWriter, r *http.Request) {
	var req teamsdk.SendResetOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.AccountService.SendResetOTP(r.Context(), req.Email); err != nil {
		writeAuthError(w, r, err)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "OTP sent successfully")
}

// HandleResetPassword handles POST /api/auth/resetPassword
//
//	@Summary	Reset password
//	@Tags		Auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		teamsdk.ResetPasswordRequest	true	"Email, code and new password"
//	@Success	200		{object}	teamsdk.Envelope
//	@Router		/api/auth/resetPassword [post].
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req teamsdk.ResetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.AccountService.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		writeAuthError(w, r, err)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "Password reset successfully")
}
