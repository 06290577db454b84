package teamsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a failed call. Auth endpoints report most failures with a 200
// status and success=false, so StatusCode alone does not identify an error.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("teamup: %d: %s", e.StatusCode, e.Message)
}

// StatusOf returns the HTTP status of an *APIError, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// MessageOf returns the server message of an *APIError, or "".
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }
func IsForbidden(err error) bool    { return StatusOf(err) == http.StatusForbidden }
func IsNotFound(err error) bool     { return StatusOf(err) == http.StatusNotFound }
func IsConflict(err error) bool     { return StatusOf(err) == http.StatusConflict }
func IsRateLimited(err error) bool  { return StatusOf(err) == http.StatusTooManyRequests }

// parseErrorResponse returns nil for a 2xx response whose envelope reports
// success, and an *APIError otherwise.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var env Envelope
	jsonErr := json.Unmarshal(body, &env)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if jsonErr != nil || env.Success {
			return nil
		}
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if jsonErr == nil && env.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
