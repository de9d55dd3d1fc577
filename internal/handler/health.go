package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// HealthHandler reports liveness of the service and its MySQL connection.
// Redis is optional and reported only for information.
type HealthHandler struct {
    DB    Pinger
    Redis func(ctx context.Context) error
}

// Health handles GET /healthz.  It returns 503 when the database does not
// answer within a second.
func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
    defer cancel()

    out := echo.Map{"status": "ok", "db": "ok", "redis": "disabled"}
    status := http.StatusOK
    if h.DB != nil {
        if err := h.DB.PingContext(ctx); err != nil {
            out["status"], out["db"] = "degraded", err.Error()
            status = http.StatusServiceUnavailable
        }
    }
    if h.Redis != nil {
        out["redis"] = "ok"
        if err := h.Redis(ctx); err != nil {
            out["redis"] = err.Error()
        }
    }
    return c.JSON(status, out)
}
