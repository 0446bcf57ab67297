package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the tables used by repository.MySQLStore in dependency
// order.  Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id                    BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name                  VARCHAR(255)    NOT NULL,
		price_per_night_cents INT UNSIGNED    NOT NULL DEFAULT 0,
		version               BIGINT UNSIGNED NOT NULL DEFAULT 0,
		created_at            DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at            DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS room_blocked_dates (
		room_id BIGINT UNSIGNED NOT NULL,
		marker  CHAR(24)        NOT NULL,
		PRIMARY KEY (room_id, marker),
		CONSTRAINT fk_blocked_room FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email      VARCHAR(255)    NOT NULL,
		role       VARCHAR(16)     NOT NULL DEFAULT 'Customer',
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id                 BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		room_id            BIGINT UNSIGNED NOT NULL,
		user_id            BIGINT UNSIGNED NOT NULL,
		user_email         VARCHAR(255)    NOT NULL,
		guest_name         VARCHAR(255)    NOT NULL,
		check_in           DATE            NOT NULL,
		check_out          DATE            NOT NULL,
		total_amount_cents INT UNSIGNED    NOT NULL DEFAULT 0,
		is_check_in        BOOLEAN         NOT NULL DEFAULT FALSE,
		is_check_out       BOOLEAN         NOT NULL DEFAULT FALSE,
		reservation_time   DATETIME(3)     NOT NULL,
		KEY idx_reservations_room (room_id),
		KEY idx_reservations_check_in (check_in),
		KEY idx_reservations_check_out (check_out)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS user_bookings (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id        BIGINT UNSIGNED NOT NULL,
		reservation_id BIGINT UNSIGNED NOT NULL,
		UNIQUE KEY uq_user_booking (user_id, reservation_id),
		CONSTRAINT fk_booking_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS cancellations (
		id                  BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		reservation_id      BIGINT UNSIGNED NOT NULL,
		room_id             BIGINT UNSIGNED NOT NULL,
		user_id             BIGINT UNSIGNED NOT NULL,
		user_email          VARCHAR(255)    NOT NULL,
		guest_name          VARCHAR(255)    NOT NULL,
		check_in            DATE            NOT NULL,
		check_out           DATE            NOT NULL,
		total_amount_cents  INT UNSIGNED    NOT NULL DEFAULT 0,
		is_check_in         BOOLEAN         NOT NULL DEFAULT FALSE,
		is_check_out        BOOLEAN         NOT NULL DEFAULT FALSE,
		reservation_time    DATETIME(3)     NOT NULL,
		refund              BOOLEAN         NOT NULL DEFAULT FALSE,
		cancelled_at        DATETIME(3)     NOT NULL,
		refund_processed_at DATETIME(3)     NULL,
		KEY idx_cancellations_refund (refund, cancelled_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
