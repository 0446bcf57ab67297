package boltstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

type boltTx struct {
	tx  *bolt.Tx
	now func() time.Time
}

// rooms

func (t *boltTx) InsertRoom(_ context.Context, room *model.Room) error {
	b := t.tx.Bucket(bucketRooms)
	id, err := b.NextSequence()
	if err != nil {
		return err
	}
	now := t.now()
	room.ID = id
	room.Version = 0
	room.Unavailable = []string{}
	room.CreatedAt = now
	room.UpdatedAt = now
	return put(b, id, room)
}

func (t *boltTx) Room(_ context.Context, id uint64) (model.Room, error) {
	var room model.Room
	if err := get(t.tx.Bucket(bucketRooms), id, &room); err != nil {
		return model.Room{}, err
	}
	if room.Unavailable == nil {
		room.Unavailable = []string{}
	}
	return room, nil
}

// LockRoom is a plain read: Bolt holds a single writer for the whole
// transaction.
func (t *boltTx) LockRoom(ctx context.Context, id uint64) (model.Room, error) {
	return t.Room(ctx, id)
}

func (t *boltTx) ListRooms(_ context.Context, order repository.RoomOrder) ([]model.Room, error) {
	rooms := make([]model.Room, 0)
	err := t.tx.Bucket(bucketRooms).ForEach(func(_, v []byte) error {
		var room model.Room
		if err := json.Unmarshal(v, &room); err != nil {
			return err
		}
		if room.Unavailable == nil {
			room.Unavailable = []string{}
		}
		rooms = append(rooms, room)
		return nil
	})
	if err != nil {
		return nil, err
	}
	switch order {
	case repository.RoomOrderPriceAsc:
		sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].PricePerNightCents < rooms[j].PricePerNightCents })
	case repository.RoomOrderPriceDesc:
		sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].PricePerNightCents > rooms[j].PricePerNightCents })
	}
	return rooms, nil
}

func (t *boltTx) PutRoomLedger(_ context.Context, roomID, expectVersion uint64, markers []string) error {
	b := t.tx.Bucket(bucketRooms)
	var room model.Room
	if err := get(b, roomID, &room); err != nil {
		return err
	}
	if room.Version != expectVersion {
		return repository.ErrConflict
	}
	room.Unavailable = append([]string{}, markers...)
	room.Version++
	room.UpdatedAt = t.now()
	return put(b, roomID, &room)
}

// reservations

func (t *boltTx) InsertReservation(_ context.Context, res *model.Reservation) error {
	b := t.tx.Bucket(bucketReservations)
	id, err := b.NextSequence()
	if err != nil {
		return err
	}
	res.ID = id
	return put(b, id, res)
}

func (t *boltTx) Reservation(_ context.Context, id uint64) (model.Reservation, error) {
	var res model.Reservation
	if err := get(t.tx.Bucket(bucketReservations), id, &res); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

func (t *boltTx) DeleteReservation(_ context.Context, id uint64) error {
	b := t.tx.Bucket(bucketReservations)
	if b.Get(itob(id)) == nil {
		return repository.ErrNotFound
	}
	return b.Delete(itob(id))
}

func (t *boltTx) ReservationsByRoom(_ context.Context, roomID uint64) ([]model.Reservation, error) {
	out, err := t.scanReservations(func(r model.Reservation) bool { return r.RoomID == roomID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReservationTime.Before(out[j].ReservationTime) })
	return out, nil
}

func (t *boltTx) ReservationsByCheckIn(_ context.Context, day string) ([]model.Reservation, error) {
	out, err := t.scanReservations(func(r model.Reservation) bool { return r.CheckIn == day })
	if err != nil {
		return nil, err
	}
	newestFirst(out)
	return out, nil
}

func (t *boltTx) ReservationsByCheckOut(_ context.Context, day string) ([]model.Reservation, error) {
	out, err := t.scanReservations(func(r model.Reservation) bool { return r.CheckOut == day })
	if err != nil {
		return nil, err
	}
	newestFirst(out)
	return out, nil
}

func (t *boltTx) SetCheckIn(_ context.Context, id uint64, value bool) error {
	return t.updateReservation(id, func(r *model.Reservation) { r.IsCheckIn = value })
}

func (t *boltTx) SetCheckOut(_ context.Context, id uint64, value bool) error {
	return t.updateReservation(id, func(r *model.Reservation) { r.IsCheckOut = value })
}

func (t *boltTx) updateReservation(id uint64, mutate func(*model.Reservation)) error {
	b := t.tx.Bucket(bucketReservations)
	var res model.Reservation
	if err := get(b, id, &res); err != nil {
		return err
	}
	mutate(&res)
	return put(b, id, &res)
}

// scanReservations walks the bucket in id order and keeps the records
// accepted by keep.
func (t *boltTx) scanReservations(keep func(model.Reservation) bool) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0)
	err := t.tx.Bucket(bucketReservations).ForEach(func(_, v []byte) error {
		var res model.Reservation
		if err := json.Unmarshal(v, &res); err != nil {
			return err
		}
		if keep(res) {
			out = append(out, res)
		}
		return nil
	})
	return out, err
}

func newestFirst(rs []model.Reservation) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].ReservationTime.Equal(rs[j].ReservationTime) {
			return rs[i].ReservationTime.After(rs[j].ReservationTime)
		}
		return rs[i].ID > rs[j].ID
	})
}

// cancellations

func (t *boltTx) InsertCancellation(_ context.Context, c *model.Cancellation) error {
	b := t.tx.Bucket(bucketCancellations)
	id, err := b.NextSequence()
	if err != nil {
		return err
	}
	c.ID = id
	return put(b, id, c)
}

func (t *boltTx) Cancellation(_ context.Context, id uint64) (model.Cancellation, error) {
	var c model.Cancellation
	if err := get(t.tx.Bucket(bucketCancellations), id, &c); err != nil {
		return model.Cancellation{}, err
	}
	return c, nil
}

func (t *boltTx) SetRefund(_ context.Context, id uint64, refund bool, processedAt *time.Time) error {
	b := t.tx.Bucket(bucketCancellations)
	var c model.Cancellation
	if err := get(b, id, &c); err != nil {
		return err
	}
	c.Refund = refund
	c.RefundProcessedAt = processedAt
	return put(b, id, &c)
}

func (t *boltTx) PendingRefunds(_ context.Context) ([]model.Cancellation, error) {
	out := make([]model.Cancellation, 0)
	err := t.tx.Bucket(bucketCancellations).ForEach(func(_, v []byte) error {
		var c model.Cancellation
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		if !c.Refund {
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CancelledAt.Equal(out[j].CancelledAt) {
			return out[i].CancelledAt.After(out[j].CancelledAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// users

func (t *boltTx) InsertUser(_ context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	emails := t.tx.Bucket(bucketUserEmails)
	if emails.Get([]byte(u.Email)) != nil {
		return repository.ErrEmailExists
	}
	b := t.tx.Bucket(bucketUsers)
	id, err := b.NextSequence()
	if err != nil {
		return err
	}
	u.ID = id
	u.BookingIDs = []uint64{}
	u.CreatedAt = t.now()
	if err := emails.Put([]byte(u.Email), itob(id)); err != nil {
		return err
	}
	return put(b, id, u)
}

func (t *boltTx) User(_ context.Context, id uint64) (model.User, error) {
	var u model.User
	if err := get(t.tx.Bucket(bucketUsers), id, &u); err != nil {
		return model.User{}, err
	}
	if u.BookingIDs == nil {
		u.BookingIDs = []uint64{}
	}
	return u, nil
}

func (t *boltTx) UserByEmail(ctx context.Context, email string) (model.User, error) {
	key := t.tx.Bucket(bucketUserEmails).Get([]byte(strings.ToLower(strings.TrimSpace(email))))
	if key == nil {
		return model.User{}, repository.ErrNotFound
	}
	return t.User(ctx, btoi(key))
}

func (t *boltTx) ListUsers(_ context.Context) ([]model.User, error) {
	users := make([]model.User, 0)
	err := t.tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
		var u model.User
		if err := json.Unmarshal(v, &u); err != nil {
			return err
		}
		if u.BookingIDs == nil {
			u.BookingIDs = []uint64{}
		}
		users = append(users, u)
		return nil
	})
	return users, err
}

func (t *boltTx) AppendUserBooking(_ context.Context, userID, reservationID uint64) error {
	return t.updateUser(userID, func(u *model.User) {
		for _, id := range u.BookingIDs {
			if id == reservationID {
				return
			}
		}
		u.BookingIDs = append(u.BookingIDs, reservationID)
	})
}

func (t *boltTx) RemoveUserBooking(_ context.Context, userID, reservationID uint64) error {
	return t.updateUser(userID, func(u *model.User) {
		kept := make([]uint64, 0, len(u.BookingIDs))
		for _, id := range u.BookingIDs {
			if id != reservationID {
				kept = append(kept, id)
			}
		}
		u.BookingIDs = kept
	})
}

func (t *boltTx) updateUser(id uint64, mutate func(*model.User)) error {
	b := t.tx.Bucket(bucketUsers)
	var u model.User
	if err := get(b, id, &u); err != nil {
		return err
	}
	mutate(&u)
	return put(b, id, &u)
}
