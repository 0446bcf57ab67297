package booking

import (
	"context"
	"errors"
	"slices"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// ReconcileReport summarizes a Reconcile run.
type ReconcileReport struct {
	RoomsChecked      int      `json:"rooms_checked"`
	RoomsRepaired     []uint64 `json:"rooms_repaired"`
	UsersChecked      int      `json:"users_checked"`
	BookingIDsDropped int      `json:"booking_ids_dropped"`
}

// Reconcile rebuilds every room ledger from the active reservations and
// drops booking index entries that point at no reservation.  It repairs
// the state left behind by a commit whose outcome was unknown and is safe
// to run at any time: each room is fixed under its own lock.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	rep := ReconcileReport{RoomsRepaired: []uint64{}}

	var rooms []model.Room
	var users []model.User
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		if rooms, err = tx.ListRooms(ctx, repository.RoomOrderNone); err != nil {
			return at("list_rooms", err)
		}
		if users, err = tx.ListUsers(ctx); err != nil {
			return at("list_users", err)
		}
		return nil
	})
	if err != nil {
		return rep, s.finish("reconcile", log.JSON{}, err)
	}

	for _, room := range rooms {
		repaired, err := s.reconcileRoom(ctx, room.ID)
		if err != nil {
			return rep, s.finish("reconcile", log.JSON{"room_id": room.ID}, err)
		}
		rep.RoomsChecked++
		if repaired {
			rep.RoomsRepaired = append(rep.RoomsRepaired, room.ID)
		}
	}

	for _, u := range users {
		dropped, err := s.reconcileUser(ctx, u.ID)
		if err != nil {
			return rep, s.finish("reconcile", log.JSON{"user_id": u.ID}, err)
		}
		rep.UsersChecked++
		rep.BookingIDsDropped += dropped
	}

	s.logger.Infoj(log.JSON{
		"flow":                "reconcile",
		"rooms_checked":       rep.RoomsChecked,
		"rooms_repaired":      len(rep.RoomsRepaired),
		"users_checked":       rep.UsersChecked,
		"booking_ids_dropped": rep.BookingIDsDropped,
	})
	return rep, nil
}

func (s *Service) reconcileRoom(ctx context.Context, roomID uint64) (bool, error) {
	repaired := false
	err := s.withRoom(ctx, "reconcile", roomID, func(ctx context.Context) error {
		return s.store.Update(ctx, func(tx repository.Tx) error {
			repaired = false
			room, err := tx.LockRoom(ctx, roomID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			if err != nil {
				return at("load_room", err)
			}
			active, err := tx.ReservationsByRoom(ctx, roomID)
			if err != nil {
				return at("load_reservations", err)
			}
			ledger, err := activeMarkers(active)
			if err != nil {
				return at("derive_ledger", err)
			}
			if slices.Equal(ledger, room.Unavailable) {
				return nil
			}
			if err := tx.PutRoomLedger(ctx, roomID, room.Version, ledger); err != nil {
				return at("ledger", err)
			}
			repaired = true
			return nil
		})
	})
	return repaired, err
}

func (s *Service) reconcileUser(ctx context.Context, userID uint64) (int, error) {
	dropped := 0
	err := s.retry(ctx, "reconcile", func(ctx context.Context) error {
		return s.store.Update(ctx, func(tx repository.Tx) error {
			dropped = 0
			u, err := tx.User(ctx, userID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			if err != nil {
				return at("load_user", err)
			}
			for _, id := range u.BookingIDs {
				_, err := tx.Reservation(ctx, id)
				if err == nil {
					continue
				}
				if !errors.Is(err, repository.ErrNotFound) {
					return at("load_reservation", err)
				}
				if err := tx.RemoveUserBooking(ctx, userID, id); err != nil {
					return at("booking_index", err)
				}
				dropped++
			}
			return nil
		})
	})
	return dropped, err
}
