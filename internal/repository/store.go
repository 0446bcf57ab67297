package repository

import (
	"context"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// Store opens transactions against a storage engine.  Update runs fn in a
// read-write transaction that is committed only when fn returns nil; View
// runs fn in a read-only transaction.  Both engines shipped with the service
// (MySQL and Bolt) provide real atomic transactions, so a multi-record flow
// executed inside a single Update either lands completely or not at all.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// RoomOrder selects the ordering of ListRooms.
type RoomOrder string

const (
	RoomOrderNone      RoomOrder = ""
	RoomOrderPriceAsc  RoomOrder = "asc"
	RoomOrderPriceDesc RoomOrder = "desc"
)

// Tx is the set of per-entity operations available inside a transaction.
// Lookups return ErrNotFound when the id does not exist.  Writes issued
// from a View transaction fail.
type Tx interface {
	// Rooms and the availability ledger.
	InsertRoom(ctx context.Context, room *model.Room) error
	Room(ctx context.Context, id uint64) (model.Room, error)
	// LockRoom loads a room and holds a write lock on it until the
	// transaction ends.
	LockRoom(ctx context.Context, id uint64) (model.Room, error)
	ListRooms(ctx context.Context, order RoomOrder) ([]model.Room, error)
	// PutRoomLedger replaces the room's blocked-date markers.  It fails
	// with ErrConflict when the stored version differs from expectVersion
	// and bumps the version on success.
	PutRoomLedger(ctx context.Context, roomID, expectVersion uint64, markers []string) error

	// Reservations.
	InsertReservation(ctx context.Context, res *model.Reservation) error
	Reservation(ctx context.Context, id uint64) (model.Reservation, error)
	DeleteReservation(ctx context.Context, id uint64) error
	ReservationsByRoom(ctx context.Context, roomID uint64) ([]model.Reservation, error)
	ReservationsByCheckIn(ctx context.Context, day string) ([]model.Reservation, error)
	ReservationsByCheckOut(ctx context.Context, day string) ([]model.Reservation, error)
	SetCheckIn(ctx context.Context, id uint64, value bool) error
	SetCheckOut(ctx context.Context, id uint64, value bool) error

	// Cancellations.
	InsertCancellation(ctx context.Context, c *model.Cancellation) error
	Cancellation(ctx context.Context, id uint64) (model.Cancellation, error)
	SetRefund(ctx context.Context, id uint64, refund bool, processedAt *time.Time) error
	PendingRefunds(ctx context.Context) ([]model.Cancellation, error)

	// Users and their booking index.
	InsertUser(ctx context.Context, u *model.User) error
	User(ctx context.Context, id uint64) (model.User, error)
	UserByEmail(ctx context.Context, email string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	AppendUserBooking(ctx context.Context, userID, reservationID uint64) error
	RemoveUserBooking(ctx context.Context, userID, reservationID uint64) error
}
