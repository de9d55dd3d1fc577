package router // package router defines how HTTP routes are registered for the API

import (
    "fmt"

    "github.com/labstack/echo/v4"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/iliyamo/event-ticket-booking/internal/handler"
    "github.com/iliyamo/event-ticket-booking/internal/middleware"
)

// Deps are the handlers and settings the routes are built from.
type Deps struct {
    Health    *handler.HealthHandler
    Events    *handler.EventHandler
    Tickets   *handler.TicketHandler
    JWTSecret string
    // Cache is applied to slow-moving public reads; nil disables it.
    Cache echo.MiddlewareFunc
}

// RegisterRoutes registers liveness, metrics and every API route.
func RegisterRoutes(e *echo.Echo, d Deps) {
    e.GET("/healthz", d.Health.Health)
    e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

    RegisterPublic(e, d)
    RegisterProtected(e, d)
}

// EventPath is the URL of an event's public read.
func EventPath(eventID uint64) string { return fmt.Sprintf("/v1/events/%d", eventID) }

// RegisterPublic registers unauthenticated event and availability reads.
// The event read may be served from the response cache, which the main
// package clears on ticket changes.  Booked seats are never served from it
// because the availability query keeps its own invalidated cache.
func RegisterPublic(e *echo.Echo, d Deps) {
    var cached []echo.MiddlewareFunc
    if d.Cache != nil {
        cached = append(cached, d.Cache)
    }
    e.GET("/v1/events/:id", d.Events.GetEvent, cached...)
    e.GET("/v1/events/:id/booked-seats", d.Events.BookedSeats)
    e.GET("/v1/events/:id/seats", d.Events.SeatMap)
}

// RegisterProtected registers every route that needs a valid access token.
// Roles are enforced per route so customer and owner endpoints can share
// the /v1 prefix.
func RegisterProtected(e *echo.Echo, d Deps) {
    g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))

    customer := middleware.RequireRole(middleware.RoleCustomer)
    owner := middleware.RequireRole(middleware.RoleOwner)
    anyone := middleware.RequireRole(middleware.RoleCustomer, middleware.RoleOwner)

    // ---- Customers ----
    g.POST("/events/:id/tickets", d.Tickets.Book, customer)
    g.DELETE("/tickets/:id", d.Tickets.Cancel, customer)

    // ---- Ticket holders ----
    g.GET("/my-tickets", d.Tickets.MyTickets, anyone)
    g.GET("/tickets/:id/qr.png", d.Tickets.QRCode, anyone)

    // ---- Organizers ----
    g.POST("/events", d.Events.CreateEvent, owner)
    g.GET("/events/:id/tickets", d.Tickets.EventTickets, owner)
    g.GET("/tickets/verify/:code", d.Tickets.Verify, owner)
    g.POST("/tickets/verify/:code/use", d.Tickets.Use, owner)
}
