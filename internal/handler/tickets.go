package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    qrcode "github.com/skip2/go-qrcode"

    "github.com/iliyamo/event-ticket-booking/internal/booking"
    "github.com/iliyamo/event-ticket-booking/internal/middleware"
)

// qrSize is the edge length in pixels of rendered ticket codes.
const qrSize = 256

// TicketHandler exposes booking, cancellation and the ticket lifecycle.
// All routes require JWTAuth; role checks happen in the router.
type TicketHandler struct {
    Svc   *booking.Service
    Seats SeatReader
}

// NewTicketHandler constructs a TicketHandler and panics if a dependency is nil.
func NewTicketHandler(svc *booking.Service, seats SeatReader) *TicketHandler {
    if svc == nil || seats == nil {
        panic("nil dependency passed to NewTicketHandler")
    }
    return &TicketHandler{Svc: svc, Seats: seats}
}

// Book handles POST /v1/events/:id/tickets with {"seat_number": "A1"}.  The
// ticket price is the event's current price.  On success it returns 201
// with the ticket and the remaining capacity.
func (h *TicketHandler) Book(c echo.Context) error {
    userID, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    eventID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    var body struct {
        SeatNumber string `json:"seat_number"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }

    ctx := c.Request().Context()
    ev, err := h.Svc.Events.GetByID(ctx, eventID)
    if err != nil {
        return bookingError(c, err, nil, 0)
    }
    b, err := h.Svc.BookTicket(ctx, booking.BookingRequest{
        EventID:    eventID,
        UserID:     userID,
        SeatNumber: body.SeatNumber,
        Price:      ev.Price,
    })
    if err != nil {
        return bookingError(c, err, h.Seats, eventID)
    }
    return c.JSON(http.StatusCreated, b)
}

// Cancel handles DELETE /v1/tickets/:id for the ticket's owner.
func (h *TicketHandler) Cancel(c echo.Context) error {
    userID, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    ticketID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid ticket id")
    }
    res, err := h.Svc.CancelTicket(c.Request().Context(), ticketID, userID)
    if err != nil {
        return bookingError(c, err, nil, 0)
    }
    return c.JSON(http.StatusOK, res)
}

// MyTickets handles GET /v1/my-tickets.
func (h *TicketHandler) MyTickets(c echo.Context) error {
    userID, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    list, err := h.Svc.ListUserTickets(c.Request().Context(), userID)
    if err != nil {
        return bookingError(c, err, nil, 0)
    }
    return c.JSON(http.StatusOK, echo.Map{"tickets": list})
}

// EventTickets handles GET /v1/events/:id/tickets for the event's organizer.
func (h *TicketHandler) EventTickets(c echo.Context) error {
    userID, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    eventID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    list, err := h.Svc.ListEventTickets(c.Request().Context(), eventID, userID)
    if err != nil {
        return bookingError(c, err, nil, 0)
    }
    return c.JSON(http.StatusOK, echo.Map{"event_id": eventID, "tickets": list})
}

// Verify handles GET /v1/tickets/verify/:code.  A known code always
// answers 200; "valid" tells whether the holder may still enter.
func (h *TicketHandler) Verify(c echo.Context) error {
    userID, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    v, err := h.Svc.VerifyTicket(c.Request().Context(), c.Param("code"), userID)
    if err != nil {
        return bookingError(c, err, nil, 0)
    }
    return c.JSON(http.StatusOK, v)
}

// Use handles POST /v1/tickets/verify/:code/use.
func (h *TicketHandler) Use(c echo.Context) error {
    userID, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    t, err := h.Svc.UseTicket(c.Request().Context(), c.Param("code"), userID)
    if err != nil {
        return bookingError(c, err, nil, 0)
    }
    return c.JSON(http.StatusOK, t)
}

// QRCode handles GET /v1/tickets/:id/qr.png.  Only the ticket's owner may
// fetch the image of its verification code.
func (h *TicketHandler) QRCode(c echo.Context) error {
    userID, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    ticketID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid ticket id")
    }
    t, err := h.Svc.TicketFor(c.Request().Context(), ticketID, userID)
    if err != nil {
        return bookingError(c, err, nil, 0)
    }
    if t.QRCode == "" {
        return bookingError(c, errors.New("ticket has no verification code"), nil, 0)
    }
    png, err := qrcode.Encode(t.QRCode, qrcode.Medium, qrSize)
    if err != nil {
        return internalError(c, err, "failed to render qr code")
    }
    c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=3600")
    return c.Blob(http.StatusOK, "image/png", png)
}
