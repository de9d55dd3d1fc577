package database

import (
	"context"
	"database/sql"
	"fmt"
)

// ActiveSeatIndex is the unique index that allows at most one booked or used
// ticket per (event, seat).  Cancelled tickets have a NULL active_seat and
// therefore never collide.
const ActiveSeatIndex = "uq_tickets_active_seat"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		title           VARCHAR(255)    NOT NULL,
		description     TEXT            NULL,
		venue           VARCHAR(255)    NOT NULL,
		event_date      DATETIME        NOT NULL,
		price           DECIMAL(10,2)   NOT NULL DEFAULT 0,
		total_seats     INT             NOT NULL,
		available_seats INT             NOT NULL,
		status          ENUM('upcoming','active','closed') NOT NULL DEFAULT 'upcoming',
		created_by      BIGINT UNSIGNED NOT NULL,
		created_at      DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_events_owner (created_by),
		CONSTRAINT chk_events_capacity CHECK (total_seats >= 1),
		CONSTRAINT chk_events_available CHECK (available_seats >= 0 AND available_seats <= total_seats)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tickets (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		event_id      BIGINT UNSIGNED NOT NULL,
		user_id       BIGINT UNSIGNED NOT NULL,
		seat_number   VARCHAR(16)     NULL,
		status        ENUM('booked','used','cancelled') NOT NULL DEFAULT 'booked',
		ticket_number VARCHAR(64)     NOT NULL,
		qr_code       VARCHAR(128)    NOT NULL,
		price         DECIMAL(10,2)   NOT NULL,
		booking_date  DATETIME(3)     NOT NULL,
		active_seat   VARCHAR(16) GENERATED ALWAYS AS (IF(status IN ('booked','used'), seat_number, NULL)) STORED,
		PRIMARY KEY (id),
		UNIQUE KEY uq_tickets_ticket_number (ticket_number),
		UNIQUE KEY uq_tickets_qr_code (qr_code),
		UNIQUE KEY ` + ActiveSeatIndex + ` (event_id, active_seat),
		KEY idx_tickets_user (user_id, booking_date),
		CONSTRAINT fk_tickets_event FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the events and tickets tables when they are missing.
// Statements are idempotent so it is safe to run on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
