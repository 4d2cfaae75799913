package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsecal/scheduling/internal/appointment"
	"github.com/pulsecal/scheduling/internal/directory"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs each request with method, path, status, latency
// and request ID.
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info().
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("latency", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("request")
		})
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

var errMissingActor = errors.New("missing or invalid actor headers")

// actorFromRequest reads the identity tuple injected by the fronting
// identity layer. The core trusts it without re-validating credentials.
func actorFromRequest(r *http.Request) (appointment.Actor, error) {
	id, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		return appointment.Actor{}, errMissingActor
	}

	role := directory.Role(r.Header.Get("X-User-Role"))
	switch role {
	case directory.RolePatient, directory.RoleDoctor, directory.RoleReceptionist, directory.RoleAdmin:
	default:
		return appointment.Actor{}, errMissingActor
	}

	actor := appointment.Actor{ID: id, Role: role}

	if raw := r.Header.Get("X-Org-ID"); raw != "" {
		orgID, err := uuid.Parse(raw)
		if err != nil {
			return appointment.Actor{}, errMissingActor
		}
		actor.OrganizationID = &orgID
	}

	return actor, nil
}
