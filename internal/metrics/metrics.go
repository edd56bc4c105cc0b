package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus collectors for the booking service.
type Metrics struct {
	Registry *prometheus.Registry

	BookingsTotal      *prometheus.CounterVec
	TransitionsTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		BookingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_requests_total",
			Help: "Booking attempts by outcome (created, conflict, error).",
		}, []string{"result"}),

		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "appointment_transitions_total",
			Help: "Successful appointment status transitions by target status.",
		}, []string{"to"}),

		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notification dispatch attempts by kind and outcome.",
		}, []string{"kind", "result"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}
