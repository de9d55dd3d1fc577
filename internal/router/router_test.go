package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-booking/internal/availability"
	"github.com/iliyamo/event-ticket-booking/internal/booking"
	"github.com/iliyamo/event-ticket-booking/internal/booking/memstore"
	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/seatmap"
)

const secret = "router-secret"

func newServer(t *testing.T) (*echo.Echo, uint64) {
	t.Helper()
	st := memstore.New()
	id := st.AddEvent(model.Event{Title: "Opera", Venue: "House", Price: decimal.NewFromInt(40),
		TotalSeats: 10, CreatedBy: 9})
	svc := booking.NewService(st.Tickets(), st.Events())
	svc.Layout = seatmap.DefaultLayout
	seats := availability.NewQuery(st.Tickets(), nil, 0)

	e := echo.New()
	RegisterRoutes(e, Deps{
		Health:    &handler.HealthHandler{},
		Events:    handler.NewEventHandler(st.Events(), seats, seatmap.DefaultLayout),
		Tickets:   handler.NewTicketHandler(svc, seats),
		JWTSecret: secret,
	})
	return e, id
}

func call(t *testing.T, e *echo.Echo, method, path, role, body string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "5", "role": role, "exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(secret))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoutes(t *testing.T) {
	e, id := newServer(t)
	ev := EventPath(id)

	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/healthz", "", ""))
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/metrics", "", ""))
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, ev, "", ""))
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, ev+"/booked-seats", "", ""))
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, ev+"/seats", "", ""))

	book := `{"seat_number":"A1"}`
	assert.Equal(t, http.StatusUnauthorized, call(t, e, http.MethodPost, ev+"/tickets", "", book))
	assert.Equal(t, http.StatusForbidden, call(t, e, http.MethodPost, ev+"/tickets", middleware.RoleOwner, book))
	assert.Equal(t, http.StatusCreated, call(t, e, http.MethodPost, ev+"/tickets", middleware.RoleCustomer, book))

	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/v1/my-tickets", middleware.RoleOwner, ""))
	assert.Equal(t, http.StatusForbidden, call(t, e, http.MethodGet, ev+"/tickets", middleware.RoleCustomer, ""))
	// authenticated owner, but not the organizer of this event
	assert.Equal(t, http.StatusForbidden, call(t, e, http.MethodGet, ev+"/tickets", middleware.RoleOwner, ""))
	assert.Equal(t, http.StatusForbidden, call(t, e, http.MethodPost, "/v1/events", middleware.RoleCustomer, `{}`))
	assert.Equal(t, http.StatusBadRequest, call(t, e, http.MethodPost, "/v1/events", middleware.RoleOwner, `{}`))
}
