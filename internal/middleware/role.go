package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Roles understood by the API.
const (
    RoleOwner    = "OWNER"
    RoleCustomer = "CUSTOMER"
)

// RequireRole returns a middleware that aborts with 403 unless the
// authenticated user's role is one of roles.  It must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !allowed[Role(c)] {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
