package handler

import (
	"encoding/json"
	"errors"
	"fmt"
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
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/seatmap"
)

const (
	testSecret = "handler-secret"
	owner      = uint64(100)
	alice      = uint64(1)
	bob        = uint64(2)
)

type fixture struct {
	e       *echo.Echo
	store   *memstore.Store
	eventID uint64
}

func newFixture(t *testing.T, total int) *fixture {
	t.Helper()
	st := memstore.New()
	id := st.AddEvent(model.Event{
		Title: "Concert", Venue: "Hall", EventDate: time.Now().Add(48 * time.Hour),
		Price: decimal.RequireFromString("25.00"), TotalSeats: total, CreatedBy: owner,
	})

	svc := booking.NewService(st.Tickets(), st.Events())
	svc.Layout = seatmap.DefaultLayout
	seats := availability.NewQuery(st.Tickets(), nil, 0)
	events := NewEventHandler(st.Events(), seats, seatmap.DefaultLayout)
	tickets := NewTicketHandler(svc, seats)

	e := echo.New()
	e.GET("/v1/events/:id", events.GetEvent)
	e.GET("/v1/events/:id/booked-seats", events.BookedSeats)
	e.GET("/v1/events/:id/seats", events.SeatMap)

	auth := e.Group("/v1", middleware.JWTAuth(testSecret))
	auth.POST("/events", events.CreateEvent)
	auth.POST("/events/:id/tickets", tickets.Book)
	auth.DELETE("/tickets/:id", tickets.Cancel)
	auth.GET("/my-tickets", tickets.MyTickets)
	auth.GET("/tickets/:id/qr.png", tickets.QRCode)
	auth.GET("/events/:id/tickets", tickets.EventTickets)
	auth.GET("/tickets/verify/:code", tickets.Verify)
	auth.POST("/tickets/verify/:code/use", tickets.Use)

	return &fixture{e: e, store: st, eventID: id}
}

func bearer(t *testing.T, userID uint64, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": fmt.Sprint(userID), "role": role, "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (f *fixture) do(t *testing.T, method, path string, user uint64, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != 0 {
		role := middleware.RoleCustomer
		if user == owner {
			role = middleware.RoleOwner
		}
		req.Header.Set("Authorization", "Bearer "+bearer(t, user, role))
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) book(t *testing.T, user uint64, seat string) *httptest.ResponseRecorder {
	return f.do(t, http.MethodPost, fmt.Sprintf("/v1/events/%d/tickets", f.eventID), user,
		fmt.Sprintf(`{"seat_number":%q}`, seat))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestBook_SuccessThenConflict(t *testing.T) {
	f := newFixture(t, 32)

	rec := f.book(t, alice, "a1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 31, body["available_seats"])
	ticket := body["ticket"].(map[string]any)
	assert.Equal(t, "A1", ticket["seat_number"])
	assert.Equal(t, "25", ticket["price"])

	rec = f.book(t, bob, "A1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "seat_already_booked", body["error"])
	assert.NotEmpty(t, body["message"])
	assert.Equal(t, []any{"A1"}, body["booked_seats"])
}

func TestBook_ErrorMapping(t *testing.T) {
	f := newFixture(t, 1)
	require.Equal(t, http.StatusCreated, f.book(t, alice, "A1").Code)

	rec := f.book(t, bob, "A2")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "sold_out", decode(t, rec)["error"])

	rec = f.do(t, http.MethodPost, "/v1/events/999/tickets", bob, `{"seat_number":"A2"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v1/events/%d/tickets", f.eventID), 0, `{"seat_number":"A2"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/events/abc/tickets", bob, `{"seat_number":"A2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBook_InvalidSeatAndFailure(t *testing.T) {
	f := newFixture(t, 10)

	rec := f.book(t, alice, "Z9")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.book(t, alice, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.store.DecrementErr = errors.New("deadlock")
	rec = f.book(t, alice, "B2")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "booking_failed", decode(t, rec)["error"])
	assert.Equal(t, 0, f.store.TicketCount(f.eventID))

	f.store.DeleteErr = errors.New("connection lost")
	rec = f.book(t, alice, "B3")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "inconsistent_state", decode(t, rec)["error"])
}

func TestBook_ClosedEvent(t *testing.T) {
	f := newFixture(t, 10)
	id := f.store.AddEvent(model.Event{Title: "Past", Venue: "Hall", Price: decimal.NewFromInt(5),
		TotalSeats: 10, Status: model.EventClosed, CreatedBy: owner})

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/v1/events/%d/tickets", id), alice, `{"seat_number":"A1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "event_closed", decode(t, rec)["error"])
}

func TestAvailabilityEndpoints(t *testing.T) {
	f := newFixture(t, 32)
	require.Equal(t, http.StatusCreated, f.book(t, alice, "B2").Code)
	require.Equal(t, http.StatusCreated, f.book(t, bob, "A3").Code)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/events/%d/booked-seats", f.eventID), 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"A3", "B2"}, decode(t, rec)["booked_seats"])

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/events/%d/seats", f.eventID), 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 30, body["available_seats"])
	rows := body["rows"].([]any)
	require.Len(t, rows, 4)
	first := rows[0].(map[string]any)
	assert.Equal(t, "A", first["label"])
	cells := first["seats"].([]any)
	assert.Equal(t, "booked", cells[2].(map[string]any)["state"])
	assert.Equal(t, "available", cells[0].(map[string]any)["state"])

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/events/%d", f.eventID), 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 30, decode(t, rec)["available_seats"])

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/events/404", 0, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/events/404/seats", 0, "").Code)
}

func TestCreateEvent(t *testing.T) {
	f := newFixture(t, 1)
	date := time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339)

	rec := f.do(t, http.MethodPost, "/v1/events", owner,
		`{"title":"Jazz Night","venue":"Blue Room","event_date":"`+date+`","price":"12.50","total_seats":20}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 20, body["available_seats"])
	assert.Equal(t, model.EventUpcoming, body["status"])
	assert.EqualValues(t, owner, body["created_by"])

	rec = f.do(t, http.MethodPost, "/v1/events", owner,
		`{"title":"Jz","venue":"","event_date":"2001-01-01T00:00:00Z","price":"-1","total_seats":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["fields"].([]any)
	assert.Len(t, fields, 5)

	rec = f.do(t, http.MethodPost, "/v1/events", owner,
		`{"title":"Stadium","venue":"Field","event_date":"`+date+`","price":"1","total_seats":500}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAndMyTickets(t *testing.T) {
	f := newFixture(t, 2)
	rec := f.book(t, alice, "C4")
	require.Equal(t, http.StatusCreated, rec.Code)
	ticketID := uint64(decode(t, rec)["ticket"].(map[string]any)["id"].(float64))

	rec = f.do(t, http.MethodGet, "/v1/my-tickets", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["tickets"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "Concert", list[0].(map[string]any)["event_title"])

	path := fmt.Sprintf("/v1/tickets/%d", ticketID)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, path, bob, "").Code)

	rec = f.do(t, http.MethodDelete, path, alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["available_seats"])

	rec = f.do(t, http.MethodDelete, path, alice, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode(t, rec)["error"])

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/v1/tickets/999", alice, "").Code)
	assert.Equal(t, http.StatusCreated, f.book(t, bob, "C4").Code)
}

func TestQRCode(t *testing.T) {
	f := newFixture(t, 2)
	rec := f.book(t, alice, "A1")
	require.Equal(t, http.StatusCreated, rec.Code)
	ticketID := uint64(decode(t, rec)["ticket"].(map[string]any)["id"].(float64))
	path := fmt.Sprintf("/v1/tickets/%d/qr.png", ticketID)

	rec = f.do(t, http.MethodGet, path, alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "\x89PNG", rec.Body.String()[:4])

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, path, bob, "").Code)
}

func TestVerifyAndUse(t *testing.T) {
	f := newFixture(t, 2)
	rec := f.book(t, alice, "A1")
	require.Equal(t, http.StatusCreated, rec.Code)
	code := decode(t, rec)["ticket"].(map[string]any)["qr_code"].(string)

	rec = f.do(t, http.MethodGet, "/v1/tickets/verify/"+code, owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["valid"])

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/v1/tickets/verify/"+code, bob, "").Code)

	rec = f.do(t, http.MethodPost, "/v1/tickets/verify/"+code+"/use", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TicketUsed, decode(t, rec)["status"])

	rec = f.do(t, http.MethodPost, "/v1/tickets/verify/"+code+"/use", owner, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/events/%d/tickets", f.eventID), owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["tickets"], 1)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/tickets/verify/NOPE", owner, "").Code)
}

func TestBookingStatus(t *testing.T) {
	failed := &booking.BookingFailedError{Step: booking.StepDecrement, Cause: errors.New("x")}
	inconsistent := &booking.InconsistentStateError{Cause: failed, CompensationErr: errors.New("y")}

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{inconsistent, http.StatusInternalServerError, "inconsistent_state"},
		{failed, http.StatusServiceUnavailable, "booking_failed"},
		{booking.ErrSeatAlreadyBooked, http.StatusConflict, "seat_already_booked"},
		{booking.ErrSoldOut, http.StatusConflict, "sold_out"},
		{booking.ErrEventClosed, http.StatusConflict, "event_closed"},
		{booking.ErrInvalidSeat, http.StatusBadRequest, "invalid_request"},
		{booking.ErrInvalidPrice, http.StatusBadRequest, "invalid_request"},
		{fmt.Errorf("lookup: %w", booking.ErrEventNotFound), http.StatusNotFound, "event_not_found"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := bookingStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
