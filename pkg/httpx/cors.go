package httpx

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
)

// CORS allows credentialed requests from origins. An empty list reflects any
// origin, which is only meant for local development.
func CORS(origins []string) Middleware {
	opts := []handlers.CORSOption{
		handlers.AllowCredentials(),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID"}),
		handlers.ExposedHeaders([]string{"X-Request-ID", "Retry-After"}),
	}

	if len(origins) == 0 {
		opts = append(opts, handlers.AllowedOriginValidator(func(string) bool { return true }))
	} else {
		opts = append(opts, handlers.AllowedOrigins(origins))
	}

	return handlers.CORS(opts...)
}

// Recover converts handler panics into 500 responses and logs them.
func Recover(logger *slog.Logger) Middleware {
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{logger}), handlers.PrintRecoveryStack(true))
}

type recoveryLogger struct{ l *slog.Logger }

func (r recoveryLogger) Println(v ...any) {
	r.l.Error("panic recovered", "panic", fmt.Sprint(v...))
}
