package model

import "time"

// ReservationStatus is the lifecycle state derived from a reservation's
// check-in/check-out flags.  Cancelled reservations no longer exist as
// reservations; they live on as Cancellation records.
type ReservationStatus string

const (
	StatusPending    ReservationStatus = "PENDING"
	StatusCheckedIn  ReservationStatus = "CHECKED_IN"
	StatusCheckedOut ReservationStatus = "CHECKED_OUT"
	StatusCancelled  ReservationStatus = "CANCELLED"
)

// Reservation records a guest's booking of one room for a half-open
// range of nights [CheckIn, CheckOut).
//
// Fields:
//  ID               – primary key identifier, assigned at creation.
//  RoomID           – room being reserved (weak reference).
//  UserID           – owning user (weak reference).
//  UserEmail        – owner's email at booking time.
//  GuestName        – optional name of the guest staying.
//  CheckIn          – first night, canonical day (YYYY-MM-DD).
//  CheckOut         – departure day, canonical day, exclusive.
//  TotalAmountCents – nights × room price at booking time.
//  IsCheckIn        – guest has arrived.
//  IsCheckOut       – guest has departed.
//  ReservationTime  – creation timestamp, default ordering key.
type Reservation struct {
	ID               uint64    `json:"id"`                 // reservations.id
	RoomID           uint64    `json:"room_id"`            // reservations.room_id
	UserID           uint64    `json:"user_id"`            // reservations.user_id
	UserEmail        string    `json:"user_email"`         // reservations.user_email
	GuestName        string    `json:"guest_name"`         // reservations.guest_name
	CheckIn          string    `json:"check_in"`           // reservations.check_in
	CheckOut         string    `json:"check_out"`          // reservations.check_out
	TotalAmountCents uint32    `json:"total_amount_cents"` // reservations.total_amount_cents
	IsCheckIn        bool      `json:"is_check_in"`        // reservations.is_check_in
	IsCheckOut       bool      `json:"is_check_out"`       // reservations.is_check_out
	ReservationTime  time.Time `json:"reservation_time"`   // reservations.reservation_time
}

// Status derives the lifecycle state from the flags.
func (r Reservation) Status() ReservationStatus {
	switch {
	case r.IsCheckOut:
		return StatusCheckedOut
	case r.IsCheckIn:
		return StatusCheckedIn
	default:
		return StatusPending
	}
}

// Cancellation is the snapshot of a reservation taken when it was
// cancelled, plus the refund bookkeeping staff maintain afterwards.
//
// Fields:
//  ID                – primary key of the cancellation record.
//  ReservationID     – id the reservation had while it was active.
//  Refund            – whether the refund has been processed.
//  CancelledAt       – when the cancellation happened.
//  RefundProcessedAt – when the refund was marked processed (nil otherwise).
// The remaining fields are copied verbatim from the reservation.
type Cancellation struct {
	ID                uint64     `json:"id"`
	ReservationID     uint64     `json:"reservation_id"`
	RoomID            uint64     `json:"room_id"`
	UserID            uint64     `json:"user_id"`
	UserEmail         string     `json:"user_email"`
	GuestName         string     `json:"guest_name"`
	CheckIn           string     `json:"check_in"`
	CheckOut          string     `json:"check_out"`
	TotalAmountCents  uint32     `json:"total_amount_cents"`
	IsCheckIn         bool       `json:"is_check_in"`
	IsCheckOut        bool       `json:"is_check_out"`
	ReservationTime   time.Time  `json:"reservation_time"`
	Refund            bool       `json:"refund"`
	CancelledAt       time.Time  `json:"cancelled_at"`
	RefundProcessedAt *time.Time `json:"refund_processed_at"`
}

// NewCancellation snapshots r into a cancellation record with no refund.
func NewCancellation(r Reservation, cancelledAt time.Time) Cancellation {
	return Cancellation{
		ReservationID:    r.ID,
		RoomID:           r.RoomID,
		UserID:           r.UserID,
		UserEmail:        r.UserEmail,
		GuestName:        r.GuestName,
		CheckIn:          r.CheckIn,
		CheckOut:         r.CheckOut,
		TotalAmountCents: r.TotalAmountCents,
		IsCheckIn:        r.IsCheckIn,
		IsCheckOut:       r.IsCheckOut,
		ReservationTime:  r.ReservationTime,
		Refund:           false,
		CancelledAt:      cancelledAt,
	}
}
