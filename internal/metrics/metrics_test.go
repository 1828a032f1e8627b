package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/VYBRANDMEDIA/nannygo/internal/metrics"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.IncBookingCreated()
	m.IncBookingTransition("pending", "accepted")
	m.IncBookingTransition("pending", "accepted")
	m.IncSubscriptionEvent("customer.subscription.deleted", "applied")
	m.IncJob("notify.booking", "done")
	m.ObserveHTTP("GET", "/v1/nannies", 200, time.Now())

	if got := testutil.ToFloat64(m.BookingsCreated); got != 1 {
		t.Fatalf("bookings created = %v", got)
	}
	if got := testutil.ToFloat64(m.BookingTransitions.WithLabelValues("pending", "accepted")); got != 2 {
		t.Fatalf("transitions = %v", got)
	}
	if got := testutil.CollectAndCount(m.HTTPDuration); got != 1 {
		t.Fatalf("expected one http series, got %d", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics.Metrics
	m.IncBookingCreated()
	m.IncBookingTransition("a", "b")
	m.IncSubscriptionEvent("x", "y")
	m.IncJob("x", "y")
	m.ObserveHTTP("GET", "/", 500, time.Now())
}
