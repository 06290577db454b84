package teamsdk

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CookieName is the cookie the server stores the session token in.
const CookieName = "token"

// ErrNoSessionToken is returned when a sign-in response carries no token
// cookie.
var ErrNoSessionToken = errors.New("teamup: response did not set a session token")

// SDKClient is a client for the teamup API. It performs anonymous calls and
// creates Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client for the API at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an account and returns a signed-in session.
func (c *SDKClient) Register(ctx context.Context, name, email, password string) (*Session, error) {
	return c.signIn(ctx, "/api/auth/register", RegisterRequest{Name: name, Email: email, Password: password})
}

// Login signs in with email and password.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*Session, error) {
	return c.signIn(ctx, "/api/auth/login", LoginRequest{Email: email, Password: password})
}

func (c *SDKClient) signIn(ctx context.Context, path string, in any) (*Session, error) {
	resp, err := c.call(ctx, http.MethodPost, path, "", in, nil)
	if err != nil {
		return nil, err
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == CookieName && ck.Value != "" {
			return c.NewSession(ck.Value), nil
		}
	}
	return nil, ErrNoSessionToken
}

// NewSession wraps an existing session token.
func (c *SDKClient) NewSession(token string) *Session {
	return &Session{client: c, token: token}
}

// SendResetOTP asks the server to email a password reset code.
func (c *SDKClient) SendResetOTP(ctx context.Context, email string) error {
	_, err := c.call(ctx, http.MethodPost, "/api/auth/sendResetOtp", "", SendResetOTPRequest{Email: email}, nil)
	return err
}

// ResetPassword sets a new password using an emailed reset code.
func (c *SDKClient) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	_, err := c.call(ctx, http.MethodPost, "/api/auth/resetPassword", "",
		ResetPasswordRequest{Email: email, OTP: otp, NewPassword: newPassword}, nil)
	return err
}

// ListAvailable lists open teams without signing in, optionally limited to
// one domain.
func (c *SDKClient) ListAvailable(ctx context.Context, domain string) ([]Team, error) {
	return listAvailable(ctx, c, "", domain)
}

func listAvailable(ctx context.Context, c *SDKClient, token, domain string) ([]Team, error) {
	path := "/api/team/available"
	if domain != "" {
		path += "?" + url.Values{"domain": {domain}}.Encode()
	}

	var out TeamsResponse
	if _, err := c.call(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Teams, nil
}
