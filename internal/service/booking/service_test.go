package booking

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/lock"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/repository/boltstore"
)

var testNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc    *Service
	store  repository.Store
	locker *lock.LocalLocker
	pub   *recordingPublisher
	room  model.Room
	user  model.User
}

func testConfig() config.BookingConfig {
	return config.BookingConfig{
		MaxRetries:        3,
		RetryInitialDelay: time.Millisecond,
		RetryMaxDelay:     4 * time.Millisecond,
		Location:          time.UTC,
	}
}

func quietLogger() *log.Logger {
	l := log.New("booking-test")
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T, cfg config.BookingConfig) *fixture {
	t.Helper()
	st, err := boltstore.Open(filepath.Join(t.TempDir(), "booking.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return newFixtureOn(t, st, st, cfg)
}

// newFixtureOn seeds through seed and runs the service on store, so tests
// can wrap the store without affecting setup.
func newFixtureOn(t *testing.T, seed, store repository.Store, cfg config.BookingConfig) *fixture {
	t.Helper()
	ctx := context.Background()
	seeder := NewService(seed, lock.NewLocalLocker(), nil, cfg, WithClock(func() time.Time { return testNow }), WithLogger(quietLogger()))
	room, err := seeder.CreateRoom(ctx, RoomInput{Name: "101", PricePerNightCents: 9000})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	user, _, err := seeder.EnsureUser(ctx, "guest@example.com", model.RoleCustomer)
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	pub := &recordingPublisher{}
	locker := lock.NewLocalLocker()
	svc := NewService(store, locker, pub, cfg, WithClock(func() time.Time { return testNow }), WithLogger(quietLogger()))
	return &fixture{svc: svc, store: seed, locker: locker, pub: pub, room: room, user: user}
}

func (f *fixture) book(t *testing.T, in, out string) CreateResult {
	t.Helper()
	res, err := f.svc.Create(context.Background(), CreateRequest{
		Reservation: ReservationData{CheckIn: in, CheckOut: out, GuestName: "Ada"},
		Room:        RoomData{ID: f.room.ID},
		User:        UserData{ID: f.user.ID, Email: f.user.Email},
	})
	if err != nil {
		t.Fatalf("create %s..%s: %v", in, out, err)
	}
	return res
}

func (f *fixture) ledger(t *testing.T) []string {
	t.Helper()
	room, err := f.svc.Room(context.Background(), f.room.ID)
	if err != nil {
		t.Fatalf("load room: %v", err)
	}
	return room.Unavailable
}

func (f *fixture) bookings(t *testing.T) []uint64 {
	t.Helper()
	var ids []uint64
	err := f.store.View(context.Background(), func(tx repository.Tx) error {
		u, err := tx.User(context.Background(), f.user.ID)
		ids = u.BookingIDs
		return err
	})
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	return ids
}

func TestCreateBlocksStayNights(t *testing.T) {
	f := newFixture(t, testConfig())
	res := f.book(t, "2024-06-01", "2024-06-03")

	want := []string{"2024-06-01T18:00:00.000Z", "2024-06-02T18:00:00.000Z"}
	if !slices.Equal(res.BlockedDates, want) {
		t.Fatalf("blocked dates: expected %v, got %v", want, res.BlockedDates)
	}
	if got := f.ledger(t); !slices.Equal(got, want) {
		t.Fatalf("ledger: expected %v, got %v", want, got)
	}
	if res.Reservation.ID == 0 || res.Reservation.TotalAmountCents != 18000 {
		t.Fatalf("unexpected reservation: %+v", res.Reservation)
	}
	if res.Reservation.UserEmail != "guest@example.com" || !res.Reservation.ReservationTime.Equal(testNow) {
		t.Fatalf("unexpected owner fields: %+v", res.Reservation)
	}
	if got := f.bookings(t); !slices.Equal(got, []uint64{res.Reservation.ID}) {
		t.Fatalf("booking index: got %v", got)
	}
	if got := f.pub.types(); !slices.Equal(got, []string{queue.EventReservationCreated}) {
		t.Fatalf("events: got %v", got)
	}
}

func TestCreateLedgerIsSupersetOfEveryStay(t *testing.T) {
	f := newFixture(t, testConfig())
	a := f.book(t, "2024-06-01", "2024-06-04")
	b := f.book(t, "2024-06-10", "2024-06-12")
	ledger := f.ledger(t)
	for _, m := range append(a.BlockedDates, b.BlockedDates...) {
		if !slices.Contains(ledger, m) {
			t.Fatalf("ledger %v missing %s", ledger, m)
		}
	}
	if len(ledger) != 5 {
		t.Fatalf("expected 5 blocked nights, got %v", ledger)
	}
}

func TestCreateIgnoresClientLedger(t *testing.T) {
	f := newFixture(t, testConfig())
	_, err := f.svc.Create(context.Background(), CreateRequest{
		Reservation: ReservationData{CheckIn: "2024-06-01", CheckOut: "2024-06-02"},
		Room:        RoomData{ID: f.room.ID, Unavailable: []string{"1999-01-01T18:00:00.000Z"}},
		User:        UserData{ID: f.user.ID},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := f.ledger(t); !slices.Equal(got, []string{"2024-06-01T18:00:00.000Z"}) {
		t.Fatalf("client markers must be ignored, ledger %v", got)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, testConfig())
	cases := []struct {
		name string
		req  CreateRequest
	}{
		{"same day", CreateRequest{
			Reservation: ReservationData{CheckIn: "2024-06-01", CheckOut: "2024-06-01"},
			Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
		}},
		{"inverted", CreateRequest{
			Reservation: ReservationData{CheckIn: "2024-06-03", CheckOut: "2024-06-01"},
			Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
		}},
		{"bad date", CreateRequest{
			Reservation: ReservationData{CheckIn: "soon", CheckOut: "2024-06-01"},
			Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
		}},
		{"missing room", CreateRequest{
			Reservation: ReservationData{CheckIn: "2024-06-01", CheckOut: "2024-06-02"},
			User:        UserData{ID: f.user.ID},
		}},
		{"room mismatch", CreateRequest{
			Reservation: ReservationData{RoomID: f.room.ID + 1, CheckIn: "2024-06-01", CheckOut: "2024-06-02"},
			Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
		}},
		{"email mismatch", CreateRequest{
			Reservation: ReservationData{CheckIn: "2024-06-01", CheckOut: "2024-06-02"},
			Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID, Email: "other@example.com"},
		}},
	}
	for _, tc := range cases {
		if _, err := f.svc.Create(context.Background(), tc.req); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
	room, err := f.svc.Room(context.Background(), f.room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if room.Version != 0 || len(room.Unavailable) != 0 || len(f.bookings(t)) != 0 {
		t.Fatalf("rejected requests must not write: %+v", room)
	}
}

func TestCreateRejectsOverlongStay(t *testing.T) {
	f := newFixture(t, testConfig())
	_, err := f.svc.Create(context.Background(), CreateRequest{
		Reservation: ReservationData{CheckIn: "1900-01-01", CheckOut: "2900-01-01"},
		Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got := f.ledger(t); len(got) != 0 {
		t.Fatalf("rejected stay wrote %d markers", len(got))
	}
}

func TestCreateMaxNightsBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.MaxNights = 7
	f := newFixture(t, cfg)
	_, err := f.svc.Create(context.Background(), CreateRequest{
		Reservation: ReservationData{CheckIn: "2024-06-01", CheckOut: "2024-06-09"},
		Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("8 nights: expected ErrInvalidInput, got %v", err)
	}
	res := f.book(t, "2024-06-01", "2024-06-08")
	if len(res.BlockedDates) != 7 {
		t.Fatalf("7 nights: expected 7 markers, got %d", len(res.BlockedDates))
	}
}

func TestLockWaitTimeoutIsNotConflict(t *testing.T) {
	f := newFixture(t, testConfig())
	unlock, err := f.locker.Lock(context.Background(), lock.RoomKey(f.room.ID))
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.svc.Create(ctx, CreateRequest{
		Reservation: ReservationData{CheckIn: "2024-06-01", CheckOut: "2024-06-02"},
		Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the deadline, got %v", err)
	}
	if errors.Is(err, ErrConflict) {
		t.Fatalf("a timed out wait must not be reported as a conflict: %v", err)
	}
	var step *StepError
	if errors.As(err, &step) {
		t.Fatalf("a timed out wait is not an internal failure: %v", err)
	}
}

func TestCreateUnknownRoomOrUser(t *testing.T) {
	f := newFixture(t, testConfig())
	_, err := f.svc.Create(context.Background(), CreateRequest{
		Reservation: ReservationData{CheckIn: "2024-06-01", CheckOut: "2024-06-02"},
		Room:        RoomData{ID: 999}, User: UserData{ID: f.user.ID},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown room: expected ErrNotFound, got %v", err)
	}
	_, err = f.svc.Create(context.Background(), CreateRequest{
		Reservation: ReservationData{CheckIn: "2024-06-01", CheckOut: "2024-06-02"},
		Room:        RoomData{ID: f.room.ID}, User: UserData{ID: 999},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}
	if got := f.ledger(t); len(got) != 0 {
		t.Fatalf("ledger must stay empty, got %v", got)
	}
}

func TestStrictAvailability(t *testing.T) {
	cfg := testConfig()
	cfg.StrictAvailability = true
	f := newFixture(t, cfg)
	f.book(t, "2024-06-01", "2024-06-03")
	_, err := f.svc.Create(context.Background(), CreateRequest{
		Reservation: ReservationData{CheckIn: "2024-06-02", CheckOut: "2024-06-04"},
		Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
	})
	if !errors.Is(err, ErrRoomUnavailable) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrRoomUnavailable, got %v", err)
	}
	// Back-to-back stays share no night.
	f.book(t, "2024-06-03", "2024-06-05")
}

func TestCancelKeepsNightsOfOverlappingStay(t *testing.T) {
	f := newFixture(t, testConfig())
	first := f.book(t, "2024-06-01", "2024-06-03")
	second := f.book(t, "2024-06-02", "2024-06-04")

	res, err := f.svc.Cancel(context.Background(), first.Reservation.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	wantLedger := []string{"2024-06-02T18:00:00.000Z", "2024-06-03T18:00:00.000Z"}
	if got := f.ledger(t); !slices.Equal(got, wantLedger) {
		t.Fatalf("ledger: expected %v, got %v", wantLedger, got)
	}
	if !slices.Equal(res.RemovedDates, []string{"2024-06-01T18:00:00.000Z"}) {
		t.Fatalf("removed dates: got %v", res.RemovedDates)
	}
	if got := f.bookings(t); !slices.Equal(got, []uint64{second.Reservation.ID}) {
		t.Fatalf("booking index: got %v", got)
	}
}

func TestCreateCancelRoundTrip(t *testing.T) {
	f := newFixture(t, testConfig())
	before := f.ledger(t)
	created := f.book(t, "2024-06-01", "2024-06-03")

	res, err := f.svc.Cancel(context.Background(), created.Reservation.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.ledger(t); !slices.Equal(got, before) {
		t.Fatalf("ledger not restored: before %v, after %v", before, got)
	}
	if got := f.bookings(t); len(got) != 0 {
		t.Fatalf("booking index not emptied: %v", got)
	}
	c := res.Cancellation
	if c.ID == 0 || c.ReservationID != created.Reservation.ID || c.Refund || c.RefundProcessedAt != nil {
		t.Fatalf("unexpected cancellation: %+v", c)
	}
	if !c.CancelledAt.Equal(testNow) || c.CheckIn != "2024-06-01" || c.TotalAmountCents != 18000 {
		t.Fatalf("snapshot fields not copied: %+v", c)
	}
	if _, err := f.svc.Reservation(context.Background(), created.Reservation.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reservation must no longer be active, got %v", err)
	}
	if got := f.pub.types(); !slices.Equal(got, []string{queue.EventReservationCreated, queue.EventReservationCancelled}) {
		t.Fatalf("events: got %v", got)
	}
}

func TestCancelMissingReservation(t *testing.T) {
	f := newFixture(t, testConfig())
	f.book(t, "2024-06-01", "2024-06-03")
	before := f.ledger(t)

	if _, err := f.svc.Cancel(context.Background(), 4242); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := f.ledger(t); !slices.Equal(got, before) {
		t.Fatalf("ledger changed: %v -> %v", before, got)
	}
	rep, err := f.svc.Status(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.PendingRefunds) != 0 {
		t.Fatalf("no cancellation may be recorded, got %+v", rep.PendingRefunds)
	}
	if len(f.pub.types()) != 1 {
		t.Fatalf("no event may be published, got %v", f.pub.types())
	}
}

func TestCancelCheckedOutIsRejected(t *testing.T) {
	f := newFixture(t, testConfig())
	res := f.book(t, "2024-06-01", "2024-06-03")
	if _, err := f.svc.SetCheckOut(context.Background(), res.Reservation.ID, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Cancel(context.Background(), res.Reservation.ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got := f.ledger(t); len(got) != 2 {
		t.Fatalf("ledger must be untouched, got %v", got)
	}
}

func TestCancelToleratesMissingOwner(t *testing.T) {
	f := newFixture(t, testConfig())
	var id uint64
	err := f.store.Update(context.Background(), func(tx repository.Tx) error {
		r := model.Reservation{RoomID: f.room.ID, UserID: 777, CheckIn: "2024-06-05", CheckOut: "2024-06-06"}
		if err := tx.InsertReservation(context.Background(), &r); err != nil {
			return err
		}
		id = r.ID
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel with missing owner: %v", err)
	}
}

func TestSetCheckInIsIdempotent(t *testing.T) {
	f := newFixture(t, testConfig())
	res := f.book(t, "2024-06-01", "2024-06-03")
	ctx := context.Background()

	first, err := f.svc.SetCheckIn(ctx, res.Reservation.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.SetCheckIn(ctx, res.Reservation.ID, true)
	if err != nil {
		t.Fatalf("second check-in: %v", err)
	}
	if !first.Changed || second.Changed {
		t.Fatalf("expected change then no-op, got %v then %v", first.Changed, second.Changed)
	}
	if !second.Reservation.IsCheckIn || second.Reservation.ID != first.Reservation.ID || second.Status != string(model.StatusCheckedIn) {
		t.Fatalf("state differs after replay: %+v vs %+v", first, second)
	}
	if got := f.pub.types(); len(got) != 2 {
		t.Fatalf("expected create + one check-in event, got %v", got)
	}
	if _, err := f.svc.SetCheckIn(ctx, 999, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetCheckOutDefaultsToTrue(t *testing.T) {
	f := newFixture(t, testConfig())
	res := f.book(t, "2024-06-01", "2024-06-03")
	ctx := context.Background()

	out, err := f.svc.SetCheckOut(ctx, res.Reservation.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Reservation.IsCheckOut || out.Status != string(model.StatusCheckedOut) {
		t.Fatalf("expected checked out, got %+v", out)
	}
	off := false
	back, err := f.svc.SetCheckOut(ctx, res.Reservation.ID, &off)
	if err != nil {
		t.Fatal(err)
	}
	if back.Reservation.IsCheckOut || !back.Changed {
		t.Fatalf("expected flag cleared, got %+v", back)
	}
	if _, err := f.svc.SetCheckOut(ctx, 999, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefundToggleLaw(t *testing.T) {
	f := newFixture(t, testConfig())
	created := f.book(t, "2024-06-01", "2024-06-03")
	cancelled, err := f.svc.Cancel(context.Background(), created.Reservation.ID)
	if err != nil {
		t.Fatal(err)
	}
	id := cancelled.Cancellation.ID
	ctx := context.Background()

	on, err := f.svc.SetRefund(ctx, id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !on.Refund || on.RefundProcessedAt == nil || !on.RefundProcessedAt.Equal(testNow) {
		t.Fatalf("first toggle: %+v", on)
	}
	off, err := f.svc.SetRefund(ctx, id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if off.Refund || off.RefundProcessedAt != nil {
		t.Fatalf("second toggle: %+v", off)
	}

	yes := true
	first, err := f.svc.SetRefund(ctx, id, &yes)
	if err != nil {
		t.Fatal(err)
	}
	f.svc.now = func() time.Time { return testNow.Add(time.Hour) }
	again, err := f.svc.SetRefund(ctx, id, &yes)
	if err != nil {
		t.Fatal(err)
	}
	if again.Changed || !again.RefundProcessedAt.Equal(*first.RefundProcessedAt) {
		t.Fatalf("explicit true must keep the first timestamp: %+v vs %+v", first, again)
	}
	if _, err := f.svc.SetRefund(ctx, 999, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusReport(t *testing.T) {
	f := newFixture(t, testConfig())
	arriving := f.book(t, "2024-06-01", "2024-06-03")
	departing := f.book(t, "2024-05-28", "2024-06-01")
	other := f.book(t, "2024-06-10", "2024-06-11")
	if _, err := f.svc.Cancel(context.Background(), other.Reservation.ID); err != nil {
		t.Fatal(err)
	}

	rep, err := f.svc.Status(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Day != "2024-06-01" {
		t.Fatalf("expected today from clock, got %s", rep.Day)
	}
	if len(rep.CheckIns) != 1 || rep.CheckIns[0].ID != arriving.Reservation.ID {
		t.Fatalf("check-ins: %+v", rep.CheckIns)
	}
	if len(rep.CheckOuts) != 1 || rep.CheckOuts[0].ID != departing.Reservation.ID {
		t.Fatalf("check-outs: %+v", rep.CheckOuts)
	}
	if len(rep.PendingRefunds) != 1 || rep.PendingRefunds[0].ReservationID != other.Reservation.ID {
		t.Fatalf("pending refunds: %+v", rep.PendingRefunds)
	}

	legacy, err := f.svc.Status(context.Background(), "6/3/2024")
	if err != nil {
		t.Fatal(err)
	}
	if legacy.Day != "2024-06-03" || len(legacy.CheckOuts) != 1 {
		t.Fatalf("explicit day: %+v", legacy)
	}
	if _, err := f.svc.Status(context.Background(), "someday"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCustomerScope(t *testing.T) {
	f := newFixture(t, testConfig())
	res := f.book(t, "2024-06-01", "2024-06-03")
	stranger := WithActor(context.Background(), Actor{UserID: f.user.ID + 1, Role: model.RoleCustomer})
	owner := WithActor(context.Background(), Actor{UserID: f.user.ID, Role: model.RoleCustomer})
	staff := WithActor(context.Background(), Actor{UserID: 99, Role: model.RoleStaff})

	if _, err := f.svc.Reservation(stranger, res.Reservation.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger read: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Cancel(stranger, res.Reservation.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger cancel: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Create(stranger, CreateRequest{
		Reservation: ReservationData{CheckIn: "2024-07-01", CheckOut: "2024-07-02"},
		Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger create: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Reservation(owner, res.Reservation.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	mine, err := f.svc.UserReservations(owner, f.user.ID)
	if err != nil || len(mine) != 1 {
		t.Fatalf("owner list: %v %+v", err, mine)
	}
	if _, err := f.svc.Cancel(staff, res.Reservation.ID); err != nil {
		t.Fatalf("staff cancel: %v", err)
	}
}

func TestConcurrentCreatesKeepLedgerComplete(t *testing.T) {
	f := newFixture(t, testConfig())
	days := []string{"2024-07-01", "2024-07-02", "2024-07-03", "2024-07-04", "2024-07-05", "2024-07-06", "2024-07-07", "2024-07-08"}
	var wg sync.WaitGroup
	errs := make(chan error, len(days)-1)
	for i := 0; i < len(days)-1; i++ {
		wg.Add(1)
		go func(in, out string) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), CreateRequest{
				Reservation: ReservationData{CheckIn: in, CheckOut: out},
				Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
			})
			errs <- err
		}(days[i], days[i+1])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if got := f.ledger(t); len(got) != len(days)-1 {
		t.Fatalf("expected %d nights blocked, got %v", len(days)-1, got)
	}
	if got := f.bookings(t); len(got) != len(days)-1 {
		t.Fatalf("expected %d booking ids, got %v", len(days)-1, got)
	}
}

// conflictingStore fails the first n Update calls with a lost race.
type conflictingStore struct {
	repository.Store
	mu sync.Mutex
	n  int
}

func (s *conflictingStore) Update(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	fail := s.n > 0
	if fail {
		s.n--
	}
	s.mu.Unlock()
	if fail {
		return repository.ErrConflict
	}
	return s.Store.Update(ctx, fn)
}

func TestConflictsAreRetried(t *testing.T) {
	st, err := boltstore.Open(filepath.Join(t.TempDir(), "booking.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	flaky := &conflictingStore{Store: st, n: 2}
	f := newFixtureOn(t, st, flaky, testConfig())
	f.book(t, "2024-06-01", "2024-06-02")

	flaky.n = 10
	_, err = f.svc.Create(context.Background(), CreateRequest{
		Reservation: ReservationData{CheckIn: "2024-06-05", CheckOut: "2024-06-06"},
		Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict after retries, got %v", err)
	}
	if got := f.ledger(t); len(got) != 1 {
		t.Fatalf("failed create must not write, ledger %v", got)
	}
}

// commitFailingStore runs fn and then reports a failed commit.
type commitFailingStore struct {
	repository.Store
}

func (s *commitFailingStore) Update(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := s.Store.Update(ctx, fn); err != nil {
		return err
	}
	return &repository.CommitError{Err: errors.New("connection reset")}
}

func TestCommitFailureAsksForReconcile(t *testing.T) {
	st, err := boltstore.Open(filepath.Join(t.TempDir(), "booking.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	f := newFixtureOn(t, st, &commitFailingStore{Store: st}, testConfig())

	_, err = f.svc.Create(context.Background(), CreateRequest{
		Reservation: ReservationData{CheckIn: "2024-06-01", CheckOut: "2024-06-02"},
		Room:        RoomData{ID: f.room.ID}, User: UserData{ID: f.user.ID},
	})
	var se *StepError
	if !errors.As(err, &se) || !errors.Is(err, ErrInternal) {
		t.Fatalf("expected StepError wrapping ErrInternal, got %v", err)
	}
	if se.Flow != "create" || se.Step != "commit" || !se.NeedsReconcile {
		t.Fatalf("unexpected step error: %+v", se)
	}
	if len(f.pub.types()) != 0 {
		t.Fatalf("no event may follow a failed commit, got %v", f.pub.types())
	}
}

func TestReconcileRepairsDrift(t *testing.T) {
	f := newFixture(t, testConfig())
	res := f.book(t, "2024-06-01", "2024-06-03")
	ctx := context.Background()

	err := f.store.Update(ctx, func(tx repository.Tx) error {
		room, err := tx.Room(ctx, f.room.ID)
		if err != nil {
			return err
		}
		// A stale marker with no reservation behind it, and a dangling id.
		drifted := append([]string{"2024-05-20T18:00:00.000Z"}, room.Unavailable...)
		if err := tx.PutRoomLedger(ctx, room.ID, room.Version, drifted); err != nil {
			return err
		}
		return tx.AppendUserBooking(ctx, f.user.ID, 4242)
	})
	if err != nil {
		t.Fatal(err)
	}

	rep, err := f.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !slices.Equal(rep.RoomsRepaired, []uint64{f.room.ID}) || rep.BookingIDsDropped != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if got := f.ledger(t); !slices.Equal(got, res.BlockedDates) {
		t.Fatalf("ledger not rebuilt: %v", got)
	}
	if got := f.bookings(t); !slices.Equal(got, []uint64{res.Reservation.ID}) {
		t.Fatalf("booking index not cleaned: %v", got)
	}

	again, err := f.svc.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.RoomsRepaired) != 0 || again.BookingIDsDropped != 0 {
		t.Fatalf("second run must be a no-op: %+v", again)
	}
}

func TestEnsureUserAndRooms(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	u, created, err := f.svc.EnsureUser(ctx, "GUEST@example.com ", "")
	if err != nil || created || u.ID != f.user.ID {
		t.Fatalf("existing user: created=%v err=%v user=%+v", created, err, u)
	}
	if _, _, err := f.svc.EnsureUser(ctx, "nobody", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := f.svc.EnsureUser(ctx, "x@example.com", "Owner"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for role, got %v", err)
	}

	if _, err := f.svc.CreateRoom(ctx, RoomInput{Name: "Suite", PricePerNightCents: 30000}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateRoom(ctx, RoomInput{Name: "Single", PricePerNightCents: 5000}); err != nil {
		t.Fatal(err)
	}
	rooms, err := f.svc.Rooms(ctx, "desc")
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 3 || rooms[0].Name != "Suite" || rooms[2].Name != "Single" {
		t.Fatalf("unexpected order: %+v", rooms)
	}
	if _, err := f.svc.Rooms(ctx, "sideways"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.Room(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
