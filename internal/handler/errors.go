package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/event-ticket-booking/internal/booking"
)

// bookingStatus maps a booking or lifecycle error to its HTTP status and
// machine-readable code.  Inconsistent state is checked before booking
// failure because the former wraps the latter.
func bookingStatus(err error) (int, string) {
    switch {
    case errors.Is(err, booking.ErrInconsistentState):
        return http.StatusInternalServerError, "inconsistent_state"
    case errors.Is(err, booking.ErrBookingFailed):
        return http.StatusServiceUnavailable, "booking_failed"
    case errors.Is(err, booking.ErrSeatAlreadyBooked):
        return http.StatusConflict, "seat_already_booked"
    case errors.Is(err, booking.ErrSoldOut):
        return http.StatusConflict, "sold_out"
    case errors.Is(err, booking.ErrEventClosed):
        return http.StatusConflict, "event_closed"
    case errors.Is(err, booking.ErrInvalidTransition):
        return http.StatusConflict, "invalid_transition"
    case errors.Is(err, booking.ErrInvalidSeat),
        errors.Is(err, booking.ErrSeatRequired),
        errors.Is(err, booking.ErrInvalidPrice):
        return http.StatusBadRequest, "invalid_request"
    case errors.Is(err, booking.ErrEventNotFound):
        return http.StatusNotFound, "event_not_found"
    case errors.Is(err, booking.ErrTicketNotFound):
        return http.StatusNotFound, "ticket_not_found"
    case errors.Is(err, booking.ErrForbidden):
        return http.StatusForbidden, "forbidden"
    case errors.Is(err, booking.ErrUnauthenticated):
        return http.StatusUnauthorized, "unauthorized"
    }
    return http.StatusInternalServerError, "internal_error"
}

// bookingError writes err as JSON.  When seats is non-nil and eventID is
// known the current booked seats are attached so clients refresh their
// seat map before retrying.
func bookingError(c echo.Context, err error, seats SeatReader, eventID uint64) error {
    status, code := bookingStatus(err)
    msg := err.Error()
    if status == http.StatusInternalServerError && code == "internal_error" {
        logrus.WithError(err).WithField("path", c.Request().URL.Path).Error("unexpected error")
        msg = "internal error"
    }
    body := echo.Map{"error": code, "message": msg}
    if seats != nil && eventID > 0 {
        // the request context may already be done when storage failed
        if booked, e := seats.BookedSeats(context.WithoutCancel(c.Request().Context()), eventID); e == nil {
            body["booked_seats"] = booked.Sorted()
        }
    }
    return c.JSON(status, body)
}
