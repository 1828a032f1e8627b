package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing, which keeps call sites free of nil checks in tests.
type Metrics struct {
	HTTPDuration       *prometheus.HistogramVec
	BookingsCreated    prometheus.Counter
	BookingTransitions *prometheus.CounterVec
	SubscriptionEvents *prometheus.CounterVec
	JobsProcessed      *prometheus.CounterVec
}

// New registers the collectors with reg (prometheus.DefaultRegisterer in the
// server, a fresh registry in tests).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nannygo_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route template and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
		BookingsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "nannygo_bookings_created_total",
			Help: "Total number of booking requests created",
		}),
		BookingTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nannygo_booking_transitions_total",
			Help: "Booking status transitions by source and target status",
		}, []string{"from", "to"}),
		SubscriptionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nannygo_subscription_events_total",
			Help: "Payment provider subscription events by type and outcome",
		}, []string{"type", "outcome"}),
		JobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nannygo_jobs_processed_total",
			Help: "Background jobs processed by type and outcome",
		}, []string{"type", "outcome"}),
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, statusClass(status)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncBookingCreated() {
	if m == nil {
		return
	}
	m.BookingsCreated.Inc()
}

func (m *Metrics) IncBookingTransition(from, to string) {
	if m == nil {
		return
	}
	m.BookingTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncSubscriptionEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.SubscriptionEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) IncJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(jobType, outcome).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
