package booking

import (
	"context"
	"strings"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/hotel-reservation/internal/dates"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// StatusReport is the front-desk view of one day.
type StatusReport struct {
	Day            string               `json:"day"`
	CheckIns       []model.Reservation  `json:"check_ins"`
	CheckOuts      []model.Reservation  `json:"check_outs"`
	PendingRefunds []model.Cancellation `json:"pending_refunds"`
}

// Status lists the reservations arriving and departing on day and every
// cancellation still awaiting its refund.  An empty day means today in the
// hotel time zone.  The report is computed on every call.
func (s *Service) Status(ctx context.Context, day string) (StatusReport, error) {
	if strings.TrimSpace(day) == "" {
		day = dates.Today(s.now(), s.cfg.Location)
	} else {
		d, err := dates.NormalizeDay(day)
		if err != nil {
			return StatusReport{}, invalid("date %q: %v", day, err)
		}
		day = d
	}

	rep := StatusReport{Day: day}
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		if rep.CheckIns, err = tx.ReservationsByCheckIn(ctx, day); err != nil {
			return at("check_ins", err)
		}
		if rep.CheckOuts, err = tx.ReservationsByCheckOut(ctx, day); err != nil {
			return at("check_outs", err)
		}
		if rep.PendingRefunds, err = tx.PendingRefunds(ctx); err != nil {
			return at("pending_refunds", err)
		}
		return nil
	})
	if err != nil {
		return StatusReport{}, s.finish("status", log.JSON{"day": day}, err)
	}
	return rep, nil
}
