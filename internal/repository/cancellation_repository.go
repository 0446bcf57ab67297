package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/dates"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

// CancellationRepo persists cancellation records.  A record is written once
// when a reservation is cancelled and afterwards only its refund columns
// change.
type CancellationRepo struct {
	db *sql.DB
}

// NewCancellationRepo returns a new CancellationRepo bound to the given database.
func NewCancellationRepo(db *sql.DB) *CancellationRepo { return &CancellationRepo{db: db} }

const cancellationColumns = `id, reservation_id, room_id, user_id, user_email, guest_name, check_in, check_out,
       total_amount_cents, is_check_in, is_check_out, reservation_time,
       refund, cancelled_at, refund_processed_at`

func scanCancellation(s rowScanner) (model.Cancellation, error) {
	var c model.Cancellation
	var checkIn, checkOut time.Time
	var processed sql.NullTime
	err := s.Scan(
		&c.ID, &c.ReservationID, &c.RoomID, &c.UserID, &c.UserEmail, &c.GuestName, &checkIn, &checkOut,
		&c.TotalAmountCents, &c.IsCheckIn, &c.IsCheckOut, &c.ReservationTime,
		&c.Refund, &c.CancelledAt, &processed,
	)
	if err != nil {
		return model.Cancellation{}, err
	}
	c.CheckIn = dates.FormatDay(checkIn)
	c.CheckOut = dates.FormatDay(checkOut)
	if processed.Valid {
		t := processed.Time
		c.RefundProcessedAt = &t
	}
	return c, nil
}

// InsertTx stores a cancellation snapshot and populates its generated ID.
func (r *CancellationRepo) InsertTx(ctx context.Context, tx *sql.Tx, c *model.Cancellation) error {
	const q = `INSERT INTO cancellations
	           (reservation_id, room_id, user_id, user_email, guest_name, check_in, check_out,
	            total_amount_cents, is_check_in, is_check_out, reservation_time,
	            refund, cancelled_at, refund_processed_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var processed sql.NullTime
	if c.RefundProcessedAt != nil {
		processed = sql.NullTime{Time: c.RefundProcessedAt.UTC(), Valid: true}
	}
	result, err := tx.ExecContext(ctx, q,
		c.ReservationID, c.RoomID, c.UserID, c.UserEmail, c.GuestName, c.CheckIn, c.CheckOut,
		c.TotalAmountCents, c.IsCheckIn, c.IsCheckOut, c.ReservationTime.UTC(),
		c.Refund, c.CancelledAt.UTC(), processed,
	)
	if err != nil {
		return classify(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetTx returns a single cancellation record or ErrNotFound.
func (r *CancellationRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Cancellation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+cancellationColumns+` FROM cancellations WHERE id = ?`, id)
	c, err := scanCancellation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Cancellation{}, ErrNotFound
		}
		return model.Cancellation{}, classify(err)
	}
	return c, nil
}

// SetRefundTx writes the refund flag and its processing timestamp.  A nil
// processedAt clears the column.
func (r *CancellationRepo) SetRefundTx(ctx context.Context, tx *sql.Tx, id uint64, refund bool, processedAt *time.Time) error {
	var processed sql.NullTime
	if processedAt != nil {
		processed = sql.NullTime{Time: processedAt.UTC(), Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE cancellations SET refund = ?, refund_processed_at = ? WHERE id = ?`,
		refund, processed, id)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingRefundsTx returns cancellations whose refund has not been
// processed, most recent cancellation first.
func (r *CancellationRepo) ListPendingRefundsTx(ctx context.Context, tx *sql.Tx) ([]model.Cancellation, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+cancellationColumns+` FROM cancellations WHERE refund = FALSE ORDER BY cancelled_at DESC, id DESC`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make([]model.Cancellation, 0)
	for rows.Next() {
		c, err := scanCancellation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
