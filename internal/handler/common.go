package handler // handler defines the echo handlers of the ticketing API

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/event-ticket-booking/internal/seatmap"
)

// SeatReader answers which seats of an event are held by active tickets.
type SeatReader interface {
    BookedSeats(ctx context.Context, eventID uint64) (seatmap.SeatSet, error)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func notFound(c echo.Context, msg string) error {
    return c.JSON(http.StatusNotFound, echo.Map{"error": msg})
}

func internalError(c echo.Context, err error, msg string) error {
    logrus.WithError(err).WithField("path", c.Request().URL.Path).Error(msg)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}
