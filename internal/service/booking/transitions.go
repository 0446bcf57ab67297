package booking

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// TransitionResult is returned by SetCheckIn and SetCheckOut.  Changed is
// false when the flag already had the requested value.
type TransitionResult struct {
	Reservation model.Reservation `json:"reservation"`
	Status      string            `json:"status"`
	Changed     bool              `json:"changed"`
}

// RefundResult is returned by SetRefund.
type RefundResult struct {
	CancellationID    uint64     `json:"cancellation_id"`
	Refund            bool       `json:"refund"`
	RefundProcessedAt *time.Time `json:"refund_processed_at"`
	Changed           bool       `json:"changed"`
}

// SetCheckIn sets the arrival flag.  Reapplying the current value is a
// successful no-op.
func (s *Service) SetCheckIn(ctx context.Context, id uint64, value bool) (TransitionResult, error) {
	return s.setFlag(ctx, "check_in", id, value,
		func(r model.Reservation) bool { return r.IsCheckIn },
		func(r *model.Reservation) { r.IsCheckIn = value },
		func(tx repository.Tx) error { return tx.SetCheckIn(ctx, id, value) },
		queue.EventCheckInUpdated)
}

// SetCheckOut sets the departure flag; nil means true.  Reapplying the
// current value is a successful no-op.
func (s *Service) SetCheckOut(ctx context.Context, id uint64, value *bool) (TransitionResult, error) {
	v := true
	if value != nil {
		v = *value
	}
	return s.setFlag(ctx, "check_out", id, v,
		func(r model.Reservation) bool { return r.IsCheckOut },
		func(r *model.Reservation) { r.IsCheckOut = v },
		func(tx repository.Tx) error { return tx.SetCheckOut(ctx, id, v) },
		queue.EventCheckOutUpdated)
}

func (s *Service) setFlag(
	ctx context.Context,
	flow string,
	id uint64,
	value bool,
	current func(model.Reservation) bool,
	apply func(*model.Reservation),
	write func(repository.Tx) error,
	eventType string,
) (TransitionResult, error) {
	if id == 0 {
		return TransitionResult{}, invalid("reservation id is required")
	}
	var res TransitionResult
	err := s.retry(ctx, flow, func(ctx context.Context) error {
		return s.store.Update(ctx, func(tx repository.Tx) error {
			r, err := tx.Reservation(ctx, id)
			if err != nil {
				return at("load_reservation", mapNotFound(err, "reservation", id))
			}
			res = TransitionResult{Reservation: r}
			if current(r) == value {
				return nil
			}
			if err := write(tx); err != nil {
				return at("reservation", mapNotFound(err, "reservation", id))
			}
			apply(&res.Reservation)
			res.Changed = true
			return nil
		})
	})
	if err != nil {
		return TransitionResult{}, s.finish(flow, log.JSON{"reservation_id": id}, err)
	}
	res.Status = string(res.Reservation.Status())

	if res.Changed {
		ev := queue.NewBookingEvent(eventType, s.now())
		ev.ReservationID = id
		ev.RoomID = res.Reservation.RoomID
		ev.UserID = res.Reservation.UserID
		ev.Value = &value
		s.publish(ctx, ev)
	}
	return res, nil
}

// SetRefund sets the refund flag of a cancellation, or toggles it when
// refund is nil.  RefundProcessedAt is stamped when the flag becomes true,
// kept while it stays true and cleared when it is false.
func (s *Service) SetRefund(ctx context.Context, cancellationID uint64, refund *bool) (RefundResult, error) {
	if cancellationID == 0 {
		return RefundResult{}, invalid("cancellation id is required")
	}
	var res RefundResult
	var reservationID uint64
	err := s.retry(ctx, "refund", func(ctx context.Context) error {
		return s.store.Update(ctx, func(tx repository.Tx) error {
			c, err := tx.Cancellation(ctx, cancellationID)
			if err != nil {
				return at("load_cancellation", mapNotFound(err, "cancellation", cancellationID))
			}
			reservationID = c.ReservationID
			next := !c.Refund
			if refund != nil {
				next = *refund
			}
			var processed *time.Time
			switch {
			case next && c.Refund && c.RefundProcessedAt != nil:
				processed = c.RefundProcessedAt
			case next:
				now := s.now()
				processed = &now
			}
			res = RefundResult{CancellationID: c.ID, Refund: next, RefundProcessedAt: processed}
			if next == c.Refund && processed == c.RefundProcessedAt {
				return nil
			}
			if err := tx.SetRefund(ctx, c.ID, next, processed); err != nil {
				return at("cancellation", err)
			}
			res.Changed = true
			return nil
		})
	})
	if err != nil {
		return RefundResult{}, s.finish("refund", log.JSON{"cancellation_id": cancellationID}, err)
	}
	if res.Changed {
		ev := queue.NewBookingEvent(queue.EventRefundUpdated, s.now())
		ev.CancellationID = res.CancellationID
		ev.ReservationID = reservationID
		v := res.Refund
		ev.Value = &v
		s.publish(ctx, ev)
	}
	return res, nil
}
