package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-booking/internal/identity"
	"github.com/hackgods/telehealth-booking/internal/metrics"
)

type RouterConfig struct {
	Scheduling SchedulingService
	Reviews    ReviewService
	Identity   identity.Provider
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	Log        *zap.Logger
	Metrics    *metrics.Metrics
	Env        string
	Version    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(MetricsMiddleware(cfg.Metrics))

	// Health and metrics stay outside actor auth
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware(cfg.Identity))

		r.Post("/appointments", bookAppointmentHandler(cfg.Scheduling))
		r.Get("/appointments", listAppointmentsHandler(cfg.Scheduling))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Scheduling))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Scheduling))
		r.Post("/appointments/{id}/decline", declineAppointmentHandler(cfg.Scheduling))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Scheduling))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Scheduling))
		r.Post("/appointments/{id}/review", submitReviewHandler(cfg.Reviews))

		r.Get("/therapists/{id}", getTherapistHandler(cfg.Scheduling))
		r.Get("/therapists/{id}/availability", availabilityHandler(cfg.Scheduling))
		r.Get("/therapists/{id}/reviews", listReviewsHandler(cfg.Reviews))
	})

	return r
}
