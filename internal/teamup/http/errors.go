package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/teamup/internal/teamup/service"
	"github.com/aussiebroadwan/teamup/pkg/httpx"
	"github.com/aussiebroadwan/teamup/pkg/slogx"
)

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindInvalidArgument:
		return http.StatusBadRequest
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error onto a status and envelope. Internal
// errors are logged and their detail withheld.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var se *service.Error
	if errors.As(err, &se) && se.Kind != service.KindInternal {
		httpx.WriteError(w, statusFor(se.Kind), se.Message)
		return
	}

	slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
	httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
}

// writeAuthError reports account failures with a 200 and success=false,
// which is what the web client expects. Internal errors are still 500s.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var se *service.Error
	if errors.As(err, &se) && se.Kind != service.KindInternal {
		httpx.WriteError(w, http.StatusOK, se.Message)
		return
	}
	writeError(w, r, err)
}

// decodeBody reads a JSON body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
