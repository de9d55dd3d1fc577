// Package metrics exposes the booking counters scraped on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Booking outcomes.
const (
	OutcomeBooked        = "booked"
	OutcomeSeatTaken     = "seat_already_booked"
	OutcomeSoldOut       = "sold_out"
	OutcomeRejected      = "rejected"
	OutcomeFailed        = "failed"
	OutcomeInconsistent  = "inconsistent"
	CompensationDeleted  = "deleted"
	CompensationFailed   = "failed"
	ReconcileRepaired    = "repaired"
	ReconcileUnchanged   = "unchanged"
	ReconcileErrored     = "error"
	ReconcileDeferred    = "deferred"
)

var (
	bookingAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_attempts_total",
			Help: "Ticket booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	bookingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_duration_seconds",
			Help:    "Time spent in the booking protocol",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	compensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_compensations_total",
			Help: "Compensating ticket deletes by result",
		},
		[]string{"result"},
	)

	cancellations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_cancellations_total",
			Help: "Tickets cancelled and returned to capacity",
		},
	)

	reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_counter_reconciliations_total",
			Help: "Out-of-band available_seats repairs by result",
		},
		[]string{"result"},
	)
)

// ObserveBooking records one finished booking attempt.
func ObserveBooking(outcome string, took time.Duration) {
	bookingAttempts.WithLabelValues(outcome).Inc()
	bookingDuration.WithLabelValues(outcome).Observe(took.Seconds())
}

// ObserveCompensation records the result of a compensating delete.
func ObserveCompensation(result string) { compensations.WithLabelValues(result).Inc() }

// ObserveCancellation records a cancelled ticket.
func ObserveCancellation() { cancellations.Inc() }

// ObserveReconcile records one counter repair attempt.
func ObserveReconcile(result string) { reconciliations.WithLabelValues(result).Inc() }
