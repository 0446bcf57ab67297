package booking

import (
	"context"
	"math"
	"strings"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/hotel-reservation/internal/dates"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// ReservationData is the reservation part of a create request.
type ReservationData struct {
	RoomID    uint64 `json:"room_id"`
	UserID    uint64 `json:"user_id"`
	UserEmail string `json:"user_email"`
	GuestName string `json:"guest_name"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
}

// RoomData identifies the room being booked.  Unavailable is accepted for
// compatibility with older clients and ignored: the ledger is always
// derived server-side.
type RoomData struct {
	ID          uint64   `json:"id"`
	Unavailable []string `json:"unavailable,omitempty"`
}

// UserData identifies the owning user.
type UserData struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
}

// CreateRequest is the input of Service.Create.
type CreateRequest struct {
	Reservation ReservationData `json:"reservation"`
	Room        RoomData        `json:"room"`
	User        UserData        `json:"user"`
}

// CreateResult describes a new reservation.
//
// Fields:
//  Reservation  – the stored record, including its generated id.
//  BlockedDates – markers of the booked nights.
//  Ledger       – the room's full ledger after the write.
type CreateResult struct {
	Reservation  model.Reservation `json:"reservation"`
	BlockedDates []string          `json:"blocked_dates"`
	Ledger       []string          `json:"ledger"`
}

type createInput struct {
	roomID, userID    uint64
	email, guest      string
	checkIn, checkOut string
	markers           []string
}

// validateCreate checks everything that can be checked without the store.
// Stays longer than maxNights are rejected before any marker is built.
func validateCreate(req CreateRequest, maxNights int) (createInput, error) {
	in := createInput{
		roomID: req.Reservation.RoomID,
		userID: req.Reservation.UserID,
		email:  strings.TrimSpace(req.Reservation.UserEmail),
		guest:  strings.TrimSpace(req.Reservation.GuestName),
	}
	if in.roomID == 0 {
		in.roomID = req.Room.ID
	}
	if in.userID == 0 {
		in.userID = req.User.ID
	}
	if in.roomID == 0 {
		return createInput{}, invalid("room id is required")
	}
	if in.userID == 0 {
		return createInput{}, invalid("user id is required")
	}
	if req.Room.ID != 0 && req.Room.ID != in.roomID {
		return createInput{}, invalid("room id mismatch: %d vs %d", req.Room.ID, in.roomID)
	}
	if req.User.ID != 0 && req.User.ID != in.userID {
		return createInput{}, invalid("user id mismatch: %d vs %d", req.User.ID, in.userID)
	}
	if in.email == "" {
		in.email = strings.TrimSpace(req.User.Email)
	}
	if req.User.Email != "" && !strings.EqualFold(strings.TrimSpace(req.User.Email), in.email) {
		return createInput{}, invalid("user email mismatch")
	}

	checkIn, err := dates.ParseDay(req.Reservation.CheckIn)
	if err != nil {
		return createInput{}, invalid("check_in %q: %v", req.Reservation.CheckIn, err)
	}
	checkOut, err := dates.ParseDay(req.Reservation.CheckOut)
	if err != nil {
		return createInput{}, invalid("check_out %q: %v", req.Reservation.CheckOut, err)
	}
	if !checkOut.After(checkIn) {
		return createInput{}, invalid("check_out must be after check_in")
	}
	if n := dates.Nights(checkIn, checkOut); n > maxNights {
		return createInput{}, invalid("stay of %d nights exceeds the maximum of %d", n, maxNights)
	}
	in.checkIn = dates.FormatDay(checkIn)
	in.checkOut = dates.FormatDay(checkOut)
	in.markers, err = dates.Range(checkIn, checkOut)
	if err != nil {
		return createInput{}, invalid("%v", err)
	}
	return in, nil
}

// Create books a room for [check_in, check_out).  Under the room lock and
// inside one transaction it rewrites the room ledger as the union of all
// active ranges plus the new one, inserts the reservation and appends its
// id to the owner's booking index.  Nothing is written when any step
// fails.
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	in, err := validateCreate(req, s.cfg.MaxNights)
	if err != nil {
		return CreateResult{}, err
	}
	if err := authorizeOwner(ctx, in.userID); err != nil {
		return CreateResult{}, err
	}

	var res CreateResult
	err = s.withRoom(ctx, "create", in.roomID, func(ctx context.Context) error {
		return s.store.Update(ctx, func(tx repository.Tx) error {
			room, err := tx.LockRoom(ctx, in.roomID)
			if err != nil {
				return at("load_room", mapNotFound(err, "room", in.roomID))
			}
			user, err := tx.User(ctx, in.userID)
			if err != nil {
				return at("load_user", mapNotFound(err, "user", in.userID))
			}
			if in.email != "" && !strings.EqualFold(in.email, user.Email) {
				return invalid("user email does not match user %d", user.ID)
			}

			active, err := tx.ReservationsByRoom(ctx, room.ID)
			if err != nil {
				return at("load_reservations", err)
			}
			blocked, err := activeMarkers(active)
			if err != nil {
				return at("derive_ledger", err)
			}
			if s.cfg.StrictAvailability {
				if taken := dates.Overlap(in.markers, blocked); len(taken) > 0 {
					return roomUnavailable(room.ID, taken)
				}
			}

			total := uint64(len(in.markers)) * uint64(room.PricePerNightCents)
			if total > math.MaxUint32 {
				return invalid("total amount overflows")
			}

			ledger := dates.Union(blocked, in.markers)
			if err := tx.PutRoomLedger(ctx, room.ID, room.Version, ledger); err != nil {
				return at("ledger", err)
			}

			r := model.Reservation{
				RoomID:           room.ID,
				UserID:           user.ID,
				UserEmail:        user.Email,
				GuestName:        in.guest,
				CheckIn:          in.checkIn,
				CheckOut:         in.checkOut,
				TotalAmountCents: uint32(total),
				ReservationTime:  s.now(),
			}
			if err := tx.InsertReservation(ctx, &r); err != nil {
				return at("reservation", err)
			}
			if err := tx.AppendUserBooking(ctx, user.ID, r.ID); err != nil {
				return at("booking_index", err)
			}

			res = CreateResult{Reservation: r, BlockedDates: in.markers, Ledger: ledger}
			return nil
		})
	})
	if err != nil {
		return CreateResult{}, s.finish("create", log.JSON{"room_id": in.roomID, "user_id": in.userID, "check_in": in.checkIn, "check_out": in.checkOut}, err)
	}

	ev := queue.NewBookingEvent(queue.EventReservationCreated, s.now())
	ev.ReservationID = res.Reservation.ID
	ev.RoomID = res.Reservation.RoomID
	ev.UserID = res.Reservation.UserID
	ev.CheckIn = res.Reservation.CheckIn
	ev.CheckOut = res.Reservation.CheckOut
	ev.Dates = res.BlockedDates
	ev.TotalAmountCents = res.Reservation.TotalAmountCents
	s.publish(ctx, ev)
	return res, nil
}
