package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// UserRepo reads the users table and maintains each user's booking index
// in user_bookings.  The index keeps insertion order through its
// auto-increment id.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// InsertTx inserts a user and populates its ID.  Emails are normalized to
// lower case.
func (r *UserRepo) InsertTx(ctx context.Context, tx *sql.Tx, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (email, role) VALUES (?,?)",
		u.Email, u.Role)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetTx(ctx, tx, uint64(id))
	if err != nil {
		return err
	}
	*u = stored
	return nil
}

// GetTx fetches a user by id together with its booking index.
func (r *UserRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.User, error) {
	return r.getTx(ctx, tx,
		"SELECT id,email,role,created_at FROM users WHERE id=? LIMIT 1", id)
}

// GetByEmailTx fetches a user by normalized email.
func (r *UserRepo) GetByEmailTx(ctx context.Context, tx *sql.Tx, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getTx(ctx, tx,
		"SELECT id,email,role,created_at FROM users WHERE email=? LIMIT 1", email)
}

// ListTx returns every user with its booking index.
func (r *UserRepo) ListTx(ctx context.Context, tx *sql.Tx) ([]model.User, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id,email,role,created_at FROM users ORDER BY id")
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range users {
		ids, err := r.bookingIDsTx(ctx, tx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].BookingIDs = ids
	}
	return users, nil
}

// AppendBookingTx adds a reservation id to the end of a user's booking
// index.  Appending an id that is already present is a no-op.
func (r *UserRepo) AppendBookingTx(ctx context.Context, tx *sql.Tx, userID, reservationID uint64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT IGNORE INTO user_bookings (user_id, reservation_id) VALUES (?,?)",
		userID, reservationID)
	return classify(err)
}

// RemoveBookingTx removes a reservation id from a user's booking index.
// Removing an absent id is a no-op.
func (r *UserRepo) RemoveBookingTx(ctx context.Context, tx *sql.Tx, userID, reservationID uint64) error {
	_, err := tx.ExecContext(ctx,
		"DELETE FROM user_bookings WHERE user_id=? AND reservation_id=?",
		userID, reservationID)
	return classify(err)
}

func (r *UserRepo) getTx(ctx context.Context, tx *sql.Tx, q string, arg interface{}) (model.User, error) {
	var u model.User
	err := tx.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, classify(err)
	}
	ids, err := r.bookingIDsTx(ctx, tx, u.ID)
	if err != nil {
		return model.User{}, err
	}
	u.BookingIDs = ids
	return u, nil
}

func (r *UserRepo) bookingIDsTx(ctx context.Context, tx *sql.Tx, userID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT reservation_id FROM user_bookings WHERE user_id=? ORDER BY id", userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
