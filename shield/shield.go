// Package shield holds the HTTP middleware stack of the cartfinder API.
package shield

import (
	"log/slog"
	"net/http"
)

type ctxKey string

// LoggerKey holds the per-request *slog.Logger.
const LoggerKey ctxKey = "shield_logger"

// DefaultAPIStack returns the standard middleware stack for the JSON API.
// Order: HeadToGet → SecurityHeaders → MaxBody → TraceID. Request loggers
// derive from logger.
func DefaultAPIStack(logger *slog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(1 << 20),
		TraceID(logger),
	}
}
