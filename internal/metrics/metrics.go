// Package metrics exposes Prometheus counters for booking allocation.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "freight"

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings committed, by pricing mode.",
		},
		[]string{"mode"},
	)

	bookingsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_rejected_total",
			Help:      "Booking attempts that did not commit, by error kind.",
		},
		[]string{"reason"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions, by target status.",
		},
		[]string{"status"},
	)

	capacityReservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_reservations_total",
			Help:      "Capacity reservation attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	capacityReleases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_releases_total",
			Help:      "Capacity releases, by outcome.",
		},
		[]string{"outcome"},
	)

	compensationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensation_failures_total",
			Help:      "Reservations that could not be released after a failed booking.",
		},
	)

	negotiationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiation_outcomes_total",
			Help:      "Counter-offer resolutions, by result.",
		},
		[]string{"result"},
	)

	bookingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_create_duration_seconds",
			Help:      "Time spent in booking creation, including compensation.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingsCreated,
			bookingsRejected,
			bookingTransitions,
			capacityReservations,
			capacityReleases,
			compensationFailures,
			negotiationOutcomes,
			bookingDuration,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncBookingCreated(mode string) {
	bookingsCreated.WithLabelValues(mode).Inc()
}

func IncBookingRejected(reason string) {
	bookingsRejected.WithLabelValues(reason).Inc()
}

func IncBookingTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

func IncReservation(outcome string) {
	capacityReservations.WithLabelValues(outcome).Inc()
}

func IncRelease(outcome string) {
	capacityReleases.WithLabelValues(outcome).Inc()
}

func IncCompensationFailure() {
	compensationFailures.Inc()
}

func IncNegotiation(accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	negotiationOutcomes.WithLabelValues(result).Inc()
}

func ObserveBookingDuration(seconds float64) {
	bookingDuration.Observe(seconds)
}
