// Package middleware holds the HTTP middleware applied by the server.
package middleware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealroom/api/internal/config"
	"github.com/dealroom/api/pkg/apierror"
	"github.com/dealroom/api/pkg/logger"
)

// Context keys shared with the logger package.
const (
	RequestIDKey = logger.ContextKeyRequestID
	ActorIDKey   = logger.ContextKeyActorID
)

// HeaderActorID names the caller performing an admin action.
const HeaderActorID = "X-Actor-ID"

const maxActorIDLength = 128

// RequestID adds a unique request ID to each request.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.New().String()
			}

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// Actor stores the X-Actor-ID header in the request context. The header is
// informational and only used to attribute audit events.
func Actor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(HeaderActorID))
			if actor == "" || len(actor) > maxActorIDLength {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ActorIDKey, actor)))
		})
	}
}

// GetActorID extracts the actor ID from context.
func GetActorID(ctx context.Context) string {
	if id, ok := ctx.Value(ActorIDKey).(string); ok {
		return id
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the change stream upgrade through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		rw.statusCode = http.StatusSwitchingProtocols
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("responseWriter: underlying ResponseWriter does not implement http.Hijacker")
}

// LoggerConfig configures HTTP request logging.
type LoggerConfig struct {
	// SkipPaths are not logged.
	SkipPaths []string
	// SlowRequestThreshold logs slower requests as warnings. Zero disables it.
	SlowRequestThreshold time.Duration
}

// DefaultLoggerConfig returns the default logging configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		SkipPaths:            []string{"/health", "/ready", "/metrics", "/api/v1/ws"},
		SlowRequestThreshold: 5 * time.Second,
	}
}

// Logger logs HTTP requests.
func Logger(log *logger.Logger, cfg LoggerConfig) func(http.Handler) http.Handler {
	skipPaths := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", duration,
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			if actor := GetActorID(r.Context()); actor != "" {
				attrs = append(attrs, "actor_id", actor)
			}

			switch {
			case wrapped.statusCode >= 500:
				log.Error("http request", attrs...)
			case wrapped.statusCode >= 400:
				log.Warn("http request", attrs...)
			case cfg.SlowRequestThreshold > 0 && duration > cfg.SlowRequestThreshold:
				log.Warn("slow http request", attrs...)
			default:
				log.Info("http request", attrs...)
			}
		})
	}
}

// Recovery recovers from panics and returns a 500 error.
// Stack traces are only logged outside production.
func Recovery(log *logger.Logger, isProduction bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					attrs := []any{"error", err, "request_id", GetRequestID(r.Context())}
					if !isProduction {
						attrs = append(attrs, "stack", string(debug.Stack()))
					}
					log.Error("panic recovered", attrs...)

					apierror.New(http.StatusInternalServerError, apierror.CodeInternalError, "An unexpected error occurred").
						WriteJSONWithRequestID(w, GetRequestID(r.Context()))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CORS adds CORS headers based on configuration.
func CORS(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool)
	allowAllOrigins := false
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			allowAllOrigins = true
		}
		allowedOrigins[origin] = true
	}

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case allowAllOrigins:
				// no credentials with a wildcard origin
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowedOrigins[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Set("Access-Control-Max-Age", maxAge)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
