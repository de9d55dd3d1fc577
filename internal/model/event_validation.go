package model

import (
    "strings"
    "time"
)

// FieldError describes one invalid input field.
type FieldError struct {
    Field   string `json:"field"`
    Message string `json:"message"`
}

// Validate checks the organizer-supplied fields of a new event against the
// current time.  An empty result means the event may be stored.
func (e *Event) Validate(now time.Time) []FieldError {
    var errs []FieldError
    add := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

    title := strings.TrimSpace(e.Title)
    switch {
    case title == "":
        add("title", "title is required")
    case len([]rune(title)) < 3:
        add("title", "title must be at least 3 characters")
    }
    if strings.TrimSpace(e.Venue) == "" {
        add("venue", "venue is required")
    }
    if e.EventDate.IsZero() {
        add("event_date", "event date is required")
    } else if !e.EventDate.After(now) {
        add("event_date", "event date must be in the future")
    }
    if e.Price.IsNegative() {
        add("price", "price must be a positive number")
    }
    if e.TotalSeats < 1 {
        add("total_seats", "total seats must be at least 1")
    }
    if e.Status != "" && !ValidEventStatus(e.Status) {
        add("status", "status must be one of upcoming, active, closed")
    }
    if e.CreatedBy == 0 {
        add("created_by", "owner is required")
    }
    return errs
}
