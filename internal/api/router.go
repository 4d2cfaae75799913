package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pulsecal/scheduling/internal/appointment"
	"github.com/pulsecal/scheduling/internal/notify"
)

type RouterConfig struct {
	Service       *appointment.Service
	Normalizer    *appointment.Normalizer
	Notifications notify.Store
	WSHandler     http.Handler
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Env           string
	Version       string
	Logger        zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints
	r.Post("/appointments", createAppointmentHandler(cfg.Service, cfg.Normalizer))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/status", transitionHandler(cfg.Service))
	r.Post("/appointments/{id}/patient-status", patientStatusHandler(cfg.Service))
	r.Post("/appointments/{id}/reschedule", rescheduleHandler(cfg.Service, cfg.Normalizer))
	r.Post("/appointments/{id}/notes", notesHandler(cfg.Service))

	// Notifications
	r.Get("/notifications", listNotificationsHandler(cfg.Notifications))

	// Real-time delivery
	if cfg.WSHandler != nil {
		r.Handle("/ws", cfg.WSHandler)
	}

	return r
}
