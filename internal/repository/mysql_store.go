package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// MySQLStore implements Store on top of a MySQL connection pool.  Each
// Update runs in one InnoDB transaction; rows locked with FOR UPDATE stay
// locked until commit or rollback.
type MySQLStore struct {
	db            *sql.DB
	rooms         *RoomRepo
	reservations  *ReservationRepo
	cancellations *CancellationRepo
	users         *UserRepo
}

// NewMySQLStore wires the per-entity repositories around db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		db:            db,
		rooms:         NewRoomRepo(db),
		reservations:  NewReservationRepo(db),
		cancellations: NewCancellationRepo(db),
		users:         NewUserRepo(db),
	}
}

// DB exposes the underlying pool for health checks and migrations.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// Update runs fn inside a read-write transaction.  The transaction is
// rolled back when fn or the commit fails.
func (s *MySQLStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, nil, fn)
}

// View runs fn inside a read-only transaction.
func (s *MySQLStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

// Close closes the connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) run(ctx context.Context, opts *sql.TxOptions, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&mysqlTx{store: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &CommitError{Err: classify(err)}
	}
	committed = true
	return nil
}

// CommitError wraps a failed COMMIT.  The outcome of the transaction is
// unknown to the client when it is returned.
type CommitError struct{ Err error }

func (e *CommitError) Error() string { return "commit: " + e.Err.Error() }
func (e *CommitError) Unwrap() error { return e.Err }

// mysqlTx adapts the repositories to the Tx interface for one transaction.
type mysqlTx struct {
	store *MySQLStore
	tx    *sql.Tx
}

func (t *mysqlTx) InsertRoom(ctx context.Context, room *model.Room) error {
	return t.store.rooms.InsertTx(ctx, t.tx, room)
}

func (t *mysqlTx) Room(ctx context.Context, id uint64) (model.Room, error) {
	return t.store.rooms.GetTx(ctx, t.tx, id, false)
}

func (t *mysqlTx) LockRoom(ctx context.Context, id uint64) (model.Room, error) {
	return t.store.rooms.GetTx(ctx, t.tx, id, true)
}

func (t *mysqlTx) ListRooms(ctx context.Context, order RoomOrder) ([]model.Room, error) {
	return t.store.rooms.ListTx(ctx, t.tx, order)
}

func (t *mysqlTx) PutRoomLedger(ctx context.Context, roomID, expectVersion uint64, markers []string) error {
	return t.store.rooms.PutLedgerTx(ctx, t.tx, roomID, expectVersion, markers)
}

func (t *mysqlTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	return t.store.reservations.InsertTx(ctx, t.tx, res)
}

func (t *mysqlTx) Reservation(ctx context.Context, id uint64) (model.Reservation, error) {
	return t.store.reservations.GetTx(ctx, t.tx, id)
}

func (t *mysqlTx) DeleteReservation(ctx context.Context, id uint64) error {
	return t.store.reservations.DeleteTx(ctx, t.tx, id)
}

func (t *mysqlTx) ReservationsByRoom(ctx context.Context, roomID uint64) ([]model.Reservation, error) {
	return t.store.reservations.ListByRoomTx(ctx, t.tx, roomID)
}

func (t *mysqlTx) ReservationsByCheckIn(ctx context.Context, day string) ([]model.Reservation, error) {
	return t.store.reservations.ListByCheckInTx(ctx, t.tx, day)
}

func (t *mysqlTx) ReservationsByCheckOut(ctx context.Context, day string) ([]model.Reservation, error) {
	return t.store.reservations.ListByCheckOutTx(ctx, t.tx, day)
}

func (t *mysqlTx) SetCheckIn(ctx context.Context, id uint64, value bool) error {
	return t.store.reservations.SetCheckInTx(ctx, t.tx, id, value)
}

func (t *mysqlTx) SetCheckOut(ctx context.Context, id uint64, value bool) error {
	return t.store.reservations.SetCheckOutTx(ctx, t.tx, id, value)
}

func (t *mysqlTx) InsertCancellation(ctx context.Context, c *model.Cancellation) error {
	return t.store.cancellations.InsertTx(ctx, t.tx, c)
}

func (t *mysqlTx) Cancellation(ctx context.Context, id uint64) (model.Cancellation, error) {
	return t.store.cancellations.GetTx(ctx, t.tx, id)
}

func (t *mysqlTx) SetRefund(ctx context.Context, id uint64, refund bool, processedAt *time.Time) error {
	return t.store.cancellations.SetRefundTx(ctx, t.tx, id, refund, processedAt)
}

func (t *mysqlTx) PendingRefunds(ctx context.Context) ([]model.Cancellation, error) {
	return t.store.cancellations.ListPendingRefundsTx(ctx, t.tx)
}

func (t *mysqlTx) InsertUser(ctx context.Context, u *model.User) error {
	return t.store.users.InsertTx(ctx, t.tx, u)
}

func (t *mysqlTx) User(ctx context.Context, id uint64) (model.User, error) {
	return t.store.users.GetTx(ctx, t.tx, id)
}

func (t *mysqlTx) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return t.store.users.GetByEmailTx(ctx, t.tx, email)
}

func (t *mysqlTx) ListUsers(ctx context.Context) ([]model.User, error) {
	return t.store.users.ListTx(ctx, t.tx)
}

func (t *mysqlTx) AppendUserBooking(ctx context.Context, userID, reservationID uint64) error {
	return t.store.users.AppendBookingTx(ctx, t.tx, userID, reservationID)
}

func (t *mysqlTx) RemoveUserBooking(ctx context.Context, userID, reservationID uint64) error {
	return t.store.users.RemoveBookingTx(ctx, t.tx, userID, reservationID)
}
