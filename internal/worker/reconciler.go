// Package worker runs background jobs that repair event seat counters.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/metrics"
	"github.com/iliyamo/event-ticket-booking/internal/queue"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

const (
	// DefaultGrace outlasts a booking request plus its compensating delete.
	DefaultGrace = time.Minute
	// DefaultRetries bounds how often a queued repair waits out a grace
	// period before giving up.
	DefaultRetries = 3
)

// CounterRepairer recomputes available_seats from the active tickets of an
// event.  Reconcile returns repository.ErrReconcileDeferred while a ticket
// booked after settledBefore exists.
type CounterRepairer interface {
	Reconcile(ctx context.Context, eventID uint64, settledBefore time.Time) (before, after int, err error)
	ListDrifted(ctx context.Context) ([]uint64, error)
}

// Reconciler repairs counters reported through the booking.inconsistent
// queue and, when the interval is positive, sweeps all events periodically.
// Events with bookings younger than Grace are left alone.
type Reconciler struct {
	Grace   time.Duration
	Retries int
	Now     func() time.Time

	repo     CounterRepairer
	interval time.Duration
}

func NewReconciler(repo CounterRepairer, interval time.Duration) *Reconciler {
	if repo == nil {
		panic("worker: nil counter repairer")
	}
	return &Reconciler{Grace: DefaultGrace, Retries: DefaultRetries, repo: repo, interval: interval}
}

func (w *Reconciler) settledBefore() time.Time {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	return now().Add(-w.Grace)
}

// Start blocks until ctx is done.  It returns immediately when the sweep
// interval is not positive.
func (w *Reconciler) Start(ctx context.Context) {
	if w.interval <= 0 {
		logrus.Info("Counter reconciler sweep disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.WithField("interval", w.interval.String()).Info("Counter reconciler started")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Counter reconciler stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep repairs every event whose counter disagrees with its active
// tickets and returns how many were repaired.
func (w *Reconciler) Sweep(ctx context.Context) int {
	ids, err := w.repo.ListDrifted(ctx)
	if err != nil {
		logrus.WithError(err).Error("reconciler: list drifted events failed")
		metrics.ObserveReconcile(metrics.ReconcileErrored)
		return 0
	}
	if len(ids) == 0 {
		logrus.Debug("reconciler: no drifted counters")
		return 0
	}

	repaired, deferred, failed := 0, 0, 0
	for _, id := range ids {
		if ctx.Err() != nil {
			logrus.Info("reconciler: sweep interrupted")
			break
		}
		changed, err := w.Repair(ctx, id)
		switch {
		case errors.Is(err, repository.ErrReconcileDeferred):
			deferred++
		case err != nil:
			failed++
		case changed:
			repaired++
		}
	}
	logrus.Infof("reconciler: sweep completed: %d repaired, %d deferred, %d failed", repaired, deferred, failed)
	return repaired
}

// Repair reconciles a single event.  A vanished event is not an error;
// an event with bookings still settling returns
// repository.ErrReconcileDeferred untouched.
func (w *Reconciler) Repair(ctx context.Context, eventID uint64) (bool, error) {
	log := logrus.WithField("event_id", eventID)
	before, after, err := w.repo.Reconcile(ctx, eventID, w.settledBefore())
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		log.Warn("reconciler: event no longer exists")
		metrics.ObserveReconcile(metrics.ReconcileUnchanged)
		return false, nil
	case errors.Is(err, repository.ErrReconcileDeferred):
		log.Debug("reconciler: recent bookings, repair deferred")
		metrics.ObserveReconcile(metrics.ReconcileDeferred)
		return false, err
	case err != nil:
		log.WithError(err).Error("reconciler: reconcile failed")
		metrics.ObserveReconcile(metrics.ReconcileErrored)
		return false, err
	}
	if before == after {
		metrics.ObserveReconcile(metrics.ReconcileUnchanged)
		return false, nil
	}
	log.WithFields(logrus.Fields{"before": before, "after": after}).Warn("reconciler: available seats repaired")
	metrics.ObserveReconcile(metrics.ReconcileRepaired)
	return true, nil
}

// HandleMessage is the queue handler for booking.inconsistent.  The
// orphaned ticket behind such a message is itself recent, so a deferred
// repair is retried after each grace period.
func (w *Reconciler) HandleMessage(ctx context.Context, body []byte) error {
	var ev queue.TicketEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.EventID == 0 {
		return errors.New("message without event_id")
	}
	for attempt := 0; ; attempt++ {
		_, err := w.Repair(ctx, ev.EventID)
		if !errors.Is(err, repository.ErrReconcileDeferred) || attempt >= w.Retries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.Grace):
		}
	}
}
