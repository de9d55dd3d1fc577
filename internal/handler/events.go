package handler

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/event-ticket-booking/internal/middleware"
    "github.com/iliyamo/event-ticket-booking/internal/model"
    "github.com/iliyamo/event-ticket-booking/internal/repository"
    "github.com/iliyamo/event-ticket-booking/internal/seatmap"
)

// EventStore is the event persistence used by EventHandler.
type EventStore interface {
    Create(ctx context.Context, e *model.Event) error
    GetByID(ctx context.Context, id uint64) (*model.Event, error)
}

// EventHandler serves event details, seat availability and the organizer's
// event creation.
type EventHandler struct {
    Events EventStore
    Seats  SeatReader
    Layout seatmap.Layout
    Now    func() time.Time
}

// NewEventHandler constructs an EventHandler and panics if a dependency is nil.
func NewEventHandler(events EventStore, seats SeatReader, layout seatmap.Layout) *EventHandler {
    if events == nil || seats == nil {
        panic("nil dependency passed to NewEventHandler")
    }
    return &EventHandler{Events: events, Seats: seats, Layout: layout, Now: time.Now}
}

type createEventRequest struct {
    Title       string          `json:"title"`
    Description string          `json:"description"`
    Venue       string          `json:"venue"`
    EventDate   time.Time       `json:"event_date"`
    Price       decimal.Decimal `json:"price"`
    TotalSeats  int             `json:"total_seats"`
    Status      string          `json:"status"`
}

// CreateEvent handles POST /v1/events.  The authenticated organizer becomes
// the owner.  Invalid fields are reported together with 400.
func (h *EventHandler) CreateEvent(c echo.Context) error {
    ownerID, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    var body createEventRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }

    e := &model.Event{
        Title:       body.Title,
        Description: body.Description,
        Venue:       body.Venue,
        EventDate:   body.EventDate,
        Price:       body.Price,
        TotalSeats:  body.TotalSeats,
        Status:      body.Status,
        CreatedBy:   ownerID,
    }
    fields := e.Validate(h.Now())
    if capacity := h.Layout.Capacity(); capacity > 0 && e.TotalSeats > capacity {
        fields = append(fields, model.FieldError{
            Field:   "total_seats",
            Message: fmt.Sprintf("total seats cannot exceed the %d seats of the seat map", capacity),
        })
    }
    if len(fields) > 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields})
    }

    if err := h.Events.Create(c.Request().Context(), e); err != nil {
        return internalError(c, err, "failed to create event")
    }
    logrus.WithFields(logrus.Fields{"event_id": e.ID, "user_id": ownerID, "total_seats": e.TotalSeats}).
        Info("event created")
    return c.JSON(http.StatusCreated, e)
}

// GetEvent handles GET /v1/events/:id.
func (h *EventHandler) GetEvent(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    e, err := h.Events.GetByID(c.Request().Context(), id)
    if errors.Is(err, repository.ErrEventNotFound) {
        return notFound(c, "event not found")
    }
    if err != nil {
        return internalError(c, err, "database error")
    }
    return c.JSON(http.StatusOK, e)
}

// BookedSeats handles GET /v1/events/:id/booked-seats.  The list is
// advisory: a seat missing from it can still be taken by the time a
// booking is attempted.
func (h *EventHandler) BookedSeats(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    booked, err := h.Seats.BookedSeats(c.Request().Context(), id)
    if err != nil {
        return internalError(c, err, "failed to load booked seats")
    }
    return c.JSON(http.StatusOK, echo.Map{"event_id": id, "booked_seats": booked.Sorted()})
}

// SeatMap handles GET /v1/events/:id/seats.  It returns the layout grid with
// every seat marked available or booked, plus the event's counters.
func (h *EventHandler) SeatMap(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    ctx := c.Request().Context()
    e, err := h.Events.GetByID(ctx, id)
    if errors.Is(err, repository.ErrEventNotFound) {
        return notFound(c, "event not found")
    }
    if err != nil {
        return internalError(c, err, "database error")
    }
    booked, err := h.Seats.BookedSeats(ctx, id)
    if err != nil {
        return internalError(c, err, "failed to load booked seats")
    }
    return c.JSON(http.StatusOK, echo.Map{
        "event_id":        id,
        "status":          e.Status,
        "total_seats":     e.TotalSeats,
        "available_seats": e.AvailableSeats,
        "rows":            h.Layout.View(booked, ""),
    })
}
