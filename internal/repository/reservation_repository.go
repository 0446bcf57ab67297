package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/dates"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

// ReservationRepo provides CRUD operations for active reservations.
// check_in and check_out are DATE columns; they are exchanged with the
// rest of the service as canonical day strings (dates.DayLayout).  All
// timestamp fields are assumed to be stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, room_id, user_id, user_email, guest_name, check_in, check_out,
       total_amount_cents, is_check_in, is_check_out, reservation_time`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var res model.Reservation
	var checkIn, checkOut time.Time
	err := s.Scan(
		&res.ID, &res.RoomID, &res.UserID, &res.UserEmail, &res.GuestName, &checkIn, &checkOut,
		&res.TotalAmountCents, &res.IsCheckIn, &res.IsCheckOut, &res.ReservationTime,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	res.CheckIn = dates.FormatDay(checkIn)
	res.CheckOut = dates.FormatDay(checkOut)
	return res, nil
}

// InsertTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID on the provided record.  The
// caller must commit or rollback the transaction.
func (r *ReservationRepo) InsertTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
	           (room_id, user_id, user_email, guest_name, check_in, check_out,
	            total_amount_cents, is_check_in, is_check_out, reservation_time)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.RoomID, res.UserID, res.UserEmail, res.GuestName, res.CheckIn, res.CheckOut,
		res.TotalAmountCents, res.IsCheckIn, res.IsCheckOut, res.ReservationTime.UTC(),
	)
	if err != nil {
		return classify(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetTx returns a single reservation or ErrNotFound.
func (r *ReservationRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, classify(err)
	}
	return res, nil
}

// DeleteTx removes a reservation.  It returns ErrNotFound when no row was
// deleted.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
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

// ListByRoomTx returns every active reservation of a room ordered by
// reservation time.  The booking service derives the room ledger from
// this list.
func (r *ReservationRepo) ListByRoomTx(ctx context.Context, tx *sql.Tx, roomID uint64) ([]model.Reservation, error) {
	return r.listTx(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations WHERE room_id = ? ORDER BY reservation_time ASC, id ASC`,
		roomID)
}

// ListByCheckInTx returns reservations arriving on the given canonical day,
// newest first.
func (r *ReservationRepo) ListByCheckInTx(ctx context.Context, tx *sql.Tx, day string) ([]model.Reservation, error) {
	return r.listTx(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations WHERE check_in = ? ORDER BY reservation_time DESC, id DESC`,
		day)
}

// ListByCheckOutTx returns reservations departing on the given canonical
// day, newest first.
func (r *ReservationRepo) ListByCheckOutTx(ctx context.Context, tx *sql.Tx, day string) ([]model.Reservation, error) {
	return r.listTx(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations WHERE check_out = ? ORDER BY reservation_time DESC, id DESC`,
		day)
}

// SetCheckInTx updates the is_check_in flag.  It returns ErrNotFound when
// the reservation does not exist.
func (r *ReservationRepo) SetCheckInTx(ctx context.Context, tx *sql.Tx, id uint64, value bool) error {
	return r.setFlagTx(ctx, tx, `UPDATE reservations SET is_check_in = ? WHERE id = ?`, id, value)
}

// SetCheckOutTx updates the is_check_out flag.  It returns ErrNotFound when
// the reservation does not exist.
func (r *ReservationRepo) SetCheckOutTx(ctx context.Context, tx *sql.Tx, id uint64, value bool) error {
	return r.setFlagTx(ctx, tx, `UPDATE reservations SET is_check_out = ? WHERE id = ?`, id, value)
}

func (r *ReservationRepo) setFlagTx(ctx context.Context, tx *sql.Tx, q string, id uint64, value bool) error {
	res, err := tx.ExecContext(ctx, q, value, id)
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

func (r *ReservationRepo) listTx(ctx context.Context, tx *sql.Tx, q string, args ...interface{}) ([]model.Reservation, error) {
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
