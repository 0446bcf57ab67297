package booking

import (
	"context"
	"errors"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/hotel-reservation/internal/dates"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// CancelResult describes a completed cancellation.
//
// Fields:
//  Cancellation – the stored snapshot with its generated id.
//  RemovedDates – markers that became free; nights still covered by
//                 another active reservation of the room are not listed.
//  Ledger       – the room's full ledger after the write.
type CancelResult struct {
	Cancellation model.Cancellation `json:"cancellation"`
	RemovedDates []string           `json:"removed_dates"`
	Ledger       []string           `json:"ledger"`
}

// Cancel moves a reservation to the cancellation store.  In one
// transaction under the room lock it snapshots the reservation, deletes
// it, drops it from the owner's booking index and rederives the room
// ledger from the reservations that remain.  A missing owner or room is
// logged and skipped; a checked-out stay cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id uint64) (CancelResult, error) {
	if id == 0 {
		return CancelResult{}, invalid("reservation id is required")
	}

	var roomID uint64
	err := s.store.View(ctx, func(tx repository.Tx) error {
		r, err := tx.Reservation(ctx, id)
		if err != nil {
			return at("load_reservation", mapNotFound(err, "reservation", id))
		}
		if err := authorizeOwner(ctx, r.UserID); err != nil {
			return err
		}
		roomID = r.RoomID
		return nil
	})
	if err != nil {
		return CancelResult{}, s.finish("cancel", log.JSON{"reservation_id": id}, err)
	}

	var res CancelResult
	err = s.withRoom(ctx, "cancel", roomID, func(ctx context.Context) error {
		return s.store.Update(ctx, func(tx repository.Tx) error {
			res = CancelResult{}
			room, err := tx.LockRoom(ctx, roomID)
			roomMissing := errors.Is(err, repository.ErrNotFound)
			if err != nil && !roomMissing {
				return at("load_room", err)
			}

			r, err := tx.Reservation(ctx, id)
			if err != nil {
				return at("load_reservation", mapNotFound(err, "reservation", id))
			}
			if r.IsCheckOut {
				return invalid("reservation %d is already checked out", id)
			}

			c := model.NewCancellation(r, s.now())
			if err := tx.InsertCancellation(ctx, &c); err != nil {
				return at("cancellation", err)
			}
			if err := tx.DeleteReservation(ctx, r.ID); err != nil {
				return at("reservation", err)
			}
			if err := tx.RemoveUserBooking(ctx, r.UserID, r.ID); err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					return at("booking_index", err)
				}
				s.logger.Warnj(log.JSON{"flow": "cancel", "reservation_id": r.ID, "user_id": r.UserID, "msg": "owner not found, booking index skipped"})
			}

			res.Cancellation = c
			res.RemovedDates = []string{}
			if roomMissing {
				s.logger.Warnj(log.JSON{"flow": "cancel", "reservation_id": r.ID, "room_id": roomID, "msg": "room not found, ledger skipped"})
				res.Ledger = []string{}
				return nil
			}

			remaining, err := tx.ReservationsByRoom(ctx, room.ID)
			if err != nil {
				return at("load_reservations", err)
			}
			ledger, err := activeMarkers(remaining)
			if err != nil {
				return at("derive_ledger", err)
			}
			if err := tx.PutRoomLedger(ctx, room.ID, room.Version, ledger); err != nil {
				return at("ledger", err)
			}
			res.RemovedDates = dates.Diff(room.Unavailable, ledger)
			res.Ledger = ledger
			return nil
		})
	})
	if err != nil {
		return CancelResult{}, s.finish("cancel", log.JSON{"reservation_id": id, "room_id": roomID}, err)
	}

	c := res.Cancellation
	ev := queue.NewBookingEvent(queue.EventReservationCancelled, s.now())
	ev.ReservationID = c.ReservationID
	ev.CancellationID = c.ID
	ev.RoomID = c.RoomID
	ev.UserID = c.UserID
	ev.CheckIn = c.CheckIn
	ev.CheckOut = c.CheckOut
	ev.Dates = res.RemovedDates
	ev.TotalAmountCents = c.TotalAmountCents
	s.publish(ctx, ev)
	return res, nil
}
