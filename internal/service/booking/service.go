// Package booking is the reservation lifecycle orchestrator.  It is the
// only component that touches more than one record per operation: every
// create and cancel runs the room ledger, reservation, cancellation and
// booking index writes inside one store transaction, serialized per room.
//
// A room's ledger is never patched.  It is rederived on every mutation as
// the union of the marker ranges of the room's active reservations and
// written with a version check, so overlapping bookings and lost updates
// cannot leave a night marked free while it is still booked.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/dates"
	"github.com/iliyamo/hotel-reservation/internal/lock"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

// EventPublisher delivers booking events after a flow has committed.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.BookingEvent) error
}

// Service runs the booking flows against a repository.Store.
type Service struct {
	store     repository.Store
	locker    lock.Locker
	publisher EventPublisher
	cfg       config.BookingConfig
	now       func() time.Time
	logger    *log.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger replaces the default "booking" logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires a Service.  A nil locker falls back to an in-process
// LocalLocker and a nil publisher disables events.
func NewService(store repository.Store, locker lock.Locker, publisher EventPublisher, cfg config.BookingConfig, opts ...Option) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxNights <= 0 {
		cfg.MaxNights = config.DefaultMaxNights
	}
	s := &Service{
		store:     store,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    log.New("booking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// retryable reports whether err is a lost race worth another attempt.
// A strict-mode rejection is final, and so is an expired or cancelled
// request.
func retryable(err error) bool {
	if errors.Is(err, ErrRoomUnavailable) || ctxDone(err) {
		return false
	}
	return errors.Is(err, repository.ErrConflict) || errors.Is(err, lock.ErrNotAcquired)
}

// retry runs fn with bounded exponential backoff on lost races.
func (s *Service) retry(ctx context.Context, flow string, fn func(ctx context.Context) error) error {
	r := utils.NewRetrier[struct{}](
		utils.NewExponentialBackoffStrategy(s.cfg.MaxRetries, s.cfg.RetryInitialDelay, 0.2, s.cfg.RetryMaxDelay),
		utils.WithRetryable[struct{}](retryable),
		utils.WithOnRetry[struct{}](func(attempt int, err error, wait time.Duration) {
			s.logger.Debugf("%s: attempt %d lost a race (%v), retrying in %s", flow, attempt, err, wait)
		}),
	)
	_, err := r.DoWithReturn(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// withRoom runs fn while holding the room's lock, retrying lost races.
// The lock is taken before the store transaction begins and released
// after it ends.
func (s *Service) withRoom(ctx context.Context, flow string, roomID uint64, fn func(ctx context.Context) error) error {
	return s.retry(ctx, flow, func(ctx context.Context) error {
		unlock, err := s.locker.Lock(ctx, lock.RoomKey(roomID))
		if err != nil {
			return err
		}
		defer unlock()
		return fn(ctx)
	})
}

func ctxDone(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// finish maps a flow error onto the caller-facing taxonomy and logs
// internal failures with enough context to reconcile by hand.
func (s *Service) finish(flow string, fields log.JSON, err error) error {
	if err == nil {
		return nil
	}
	if isDomain(err) {
		return err
	}
	var ce *repository.CommitError
	if ctxDone(err) && !errors.As(err, &ce) {
		return fmt.Errorf("%s: %w", flow, err)
	}
	if retryable(err) {
		return fmt.Errorf("%w: %s: %v", ErrConflict, flow, err)
	}
	step := "transaction"
	var sf *stepFailure
	if errors.As(err, &sf) {
		step = sf.step
	}
	needs := errors.As(err, &ce)
	if needs {
		step = "commit"
	}
	entry := log.JSON{"flow": flow, "step": step, "error": err.Error(), "needs_reconcile": needs}
	for k, v := range fields {
		entry[k] = v
	}
	s.logger.Errorj(entry)
	return &StepError{Flow: flow, Step: step, Err: err, NeedsReconcile: needs}
}

// publish emits ev after commit.  Delivery failures are logged only: the
// data is already durable and the event is informational.
func (s *Service) publish(ctx context.Context, ev queue.BookingEvent) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pctx, ev); err != nil {
		s.logger.Warnj(log.JSON{"event": ev.Type, "event_id": ev.EventID, "reservation_id": ev.ReservationID, "error": err.Error()})
	}
}

// activeMarkers is the union of the marker ranges of rs.
func activeMarkers(rs []model.Reservation) ([]string, error) {
	sets := make([][]string, 0, len(rs))
	for _, r := range rs {
		m, err := dates.Markers(r.CheckIn, r.CheckOut)
		if err != nil {
			return nil, fmt.Errorf("reservation %d: %w", r.ID, err)
		}
		sets = append(sets, m)
	}
	return dates.Union(sets...), nil
}

func mapNotFound(err error, entity string, id uint64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(entity, id)
	}
	return err
}
