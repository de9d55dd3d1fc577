// Package apiclient is a small HTTP client for the ticketing API used by
// the seatpicker terminal client.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/booking"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/seatmap"
)

// Client talks to one API server.  Token is sent as a bearer token when set.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a Client with a 10 second request timeout.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError is a non-2xx answer.  It unwraps to the matching booking error
// so callers can use errors.Is(err, booking.ErrSeatAlreadyBooked).
type APIError struct {
	Status      int      `json:"-"`
	Code        string   `json:"error"`
	Message     string   `json:"message"`
	BookedSeats []string `json:"booked_seats"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Code)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "seat_already_booked":
		return booking.ErrSeatAlreadyBooked
	case "sold_out":
		return booking.ErrSoldOut
	case "event_closed":
		return booking.ErrEventClosed
	case "booking_failed":
		return booking.ErrBookingFailed
	case "inconsistent_state":
		return booking.ErrInconsistentState
	case "event_not_found":
		return booking.ErrEventNotFound
	case "ticket_not_found":
		return booking.ErrTicketNotFound
	case "invalid_transition":
		return booking.ErrInvalidTransition
	case "forbidden":
		return booking.ErrForbidden
	}
	return nil
}

// BookedSeats fetches the advisory booked set of an event.
func (c *Client) BookedSeats(ctx context.Context, eventID uint64) (seatmap.SeatSet, error) {
	var out struct {
		BookedSeats []string `json:"booked_seats"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/events/%d/booked-seats", eventID), nil, &out); err != nil {
		return nil, err
	}
	return seatmap.NewSeatSet(out.BookedSeats...), nil
}

// Event fetches an event with its counters.
func (c *Client) Event(ctx context.Context, eventID uint64) (*model.Event, error) {
	var e model.Event
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/events/%d", eventID), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Book books seat for the token's user.
func (c *Client) Book(ctx context.Context, eventID uint64, seat string) (*booking.Booking, error) {
	var b booking.Booking
	body := map[string]string{"seat_number": seat}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/events/%d/tickets", eventID), body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Cancel cancels one of the token user's tickets.
func (c *Client) Cancel(ctx context.Context, ticketID uint64) (*booking.Cancellation, error) {
	var res booking.Cancellation
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/tickets/%d", ticketID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
