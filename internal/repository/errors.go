// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking service and handlers to distinguish between failure scenarios
// without inspecting driver errors.
package repository

import (
    "errors"
    "strings"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/event-ticket-booking/internal/database"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrEventNotFound indicates that an event was not located in the DB.
var ErrEventNotFound = errors.New("event not found")

// ErrTicketNotFound indicates that a ticket was not located in the DB.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrDuplicateSeat is returned when inserting a ticket violates the
// one-active-ticket-per-seat unique index.
var ErrDuplicateSeat = errors.New("seat already held by an active ticket")

// ErrInvalidTransition is returned when a ticket status change is not
// allowed from the ticket's current state (e.g. cancelling a used ticket).
var ErrInvalidTransition = errors.New("invalid ticket status transition")

// ErrReconcileDeferred is returned by Reconcile when the event has tickets
// booked too recently to tell whether their decrement has landed.
var ErrReconcileDeferred = errors.New("reconcile deferred: bookings still settling")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a unique key violation, optionally
// restricted to the named index.
func isDuplicateKey(err error, index string) bool {
    var me *mysql.MySQLError
    if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
        return false
    }
    return index == "" || strings.Contains(me.Message, index)
}

// isActiveSeatConflict reports whether err came from the active seat index.
func isActiveSeatConflict(err error) bool {
    return isDuplicateKey(err, database.ActiveSeatIndex)
}
