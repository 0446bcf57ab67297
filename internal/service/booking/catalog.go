package booking

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// Reservation returns one active reservation.  Customers may only read
// their own.
func (s *Service) Reservation(ctx context.Context, id uint64) (model.Reservation, error) {
	var r model.Reservation
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		r, err = tx.Reservation(ctx, id)
		if err != nil {
			return mapNotFound(err, "reservation", id)
		}
		return authorizeOwner(ctx, r.UserID)
	})
	if err != nil {
		return model.Reservation{}, s.finish("get_reservation", log.JSON{"reservation_id": id}, err)
	}
	return r, nil
}

// UserReservations returns the active reservations in a user's booking
// index, newest first.  Ids whose reservation no longer exists are skipped
// and left for Reconcile.
func (s *Service) UserReservations(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	if err := authorizeOwner(ctx, userID); err != nil {
		return nil, err
	}
	out := make([]model.Reservation, 0)
	err := s.store.View(ctx, func(tx repository.Tx) error {
		u, err := tx.User(ctx, userID)
		if err != nil {
			return mapNotFound(err, "user", userID)
		}
		for _, id := range u.BookingIDs {
			r, err := tx.Reservation(ctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				s.logger.Warnf("user %d: booking %d has no reservation", userID, id)
				continue
			}
			if err != nil {
				return at("load_reservation", err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, s.finish("user_reservations", log.JSON{"user_id": userID}, err)
	}
	slices.Reverse(out)
	return out, nil
}

// Room returns a room with its ledger.
func (s *Service) Room(ctx context.Context, id uint64) (model.Room, error) {
	var room model.Room
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		room, err = tx.Room(ctx, id)
		return mapNotFound(err, "room", id)
	})
	if err != nil {
		return model.Room{}, s.finish("get_room", log.JSON{"room_id": id}, err)
	}
	return room, nil
}

// Rooms lists rooms, optionally ordered by nightly price ("asc" or
// "desc").
func (s *Service) Rooms(ctx context.Context, order string) ([]model.Room, error) {
	o := repository.RoomOrder(strings.ToLower(strings.TrimSpace(order)))
	switch o {
	case repository.RoomOrderNone, repository.RoomOrderPriceAsc, repository.RoomOrderPriceDesc:
	default:
		return nil, invalid("order must be asc or desc")
	}
	var rooms []model.Room
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		rooms, err = tx.ListRooms(ctx, o)
		return err
	})
	if err != nil {
		return nil, s.finish("list_rooms", log.JSON{"order": string(o)}, err)
	}
	return rooms, nil
}

// RoomInput is the input of CreateRoom.
type RoomInput struct {
	Name               string `json:"name"`
	PricePerNightCents uint32 `json:"price_per_night_cents"`
}

// CreateRoom adds a room with an empty ledger.
func (s *Service) CreateRoom(ctx context.Context, in RoomInput) (model.Room, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Room{}, invalid("room name is required")
	}
	room := model.Room{Name: name, PricePerNightCents: in.PricePerNightCents}
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		return at("room", tx.InsertRoom(ctx, &room))
	})
	if err != nil {
		return model.Room{}, s.finish("create_room", log.JSON{"name": name}, err)
	}
	return room, nil
}

// EnsureUser returns the user with email, inserting it with role when it
// does not exist yet.  created reports whether an insert happened.  An
// empty role means Customer.
func (s *Service) EnsureUser(ctx context.Context, email, role string) (user model.User, created bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return model.User{}, false, invalid("a valid email is required")
	}
	if role == "" {
		role = model.RoleCustomer
	}
	if !model.IsValidRole(role) {
		return model.User{}, false, invalid("unknown role %q", role)
	}
	err = s.retry(ctx, "ensure_user", func(ctx context.Context) error {
		return s.store.Update(ctx, func(tx repository.Tx) error {
			created = false
			u, err := tx.UserByEmail(ctx, email)
			if err == nil {
				user = u
				return nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return at("load_user", err)
			}
			user = model.User{Email: email, Role: role}
			if err := tx.InsertUser(ctx, &user); err != nil {
				if errors.Is(err, repository.ErrEmailExists) {
					// Lost the insert race; the next attempt reads the winner.
					return repository.ErrConflict
				}
				return at("user", err)
			}
			created = true
			return nil
		})
	})
	if err != nil {
		return model.User{}, false, s.finish("ensure_user", log.JSON{"email": email}, err)
	}
	return user, created, nil
}
