// Package queue defines the booking events exchanged over the message
// broker and the background consumer that appends them to the booking log.
package queue

import (
    "time"

    "github.com/google/uuid"
)

// Event types published by the booking service.
const (
    EventReservationCreated   = "reservation.created"
    EventReservationCancelled = "reservation.cancelled"
    EventCheckInUpdated       = "reservation.check_in_updated"
    EventCheckOutUpdated      = "reservation.check_out_updated"
    EventRefundUpdated        = "cancellation.refund_updated"
)

// BookingEvent is published after a booking flow has committed.  It carries
// enough information for downstream consumers to log, notify or trigger
// analytics without querying the primary store.  Fields that do not apply
// to a given Type are left empty.
type BookingEvent struct {
    EventID          string   `json:"event_id"`
    Type             string   `json:"type"`
    ReservationID    uint64   `json:"reservation_id"`
    CancellationID   uint64   `json:"cancellation_id,omitempty"`
    RoomID           uint64   `json:"room_id,omitempty"`
    UserID           uint64   `json:"user_id,omitempty"`
    CheckIn          string   `json:"check_in,omitempty"`
    CheckOut         string   `json:"check_out,omitempty"`
    Dates            []string `json:"dates,omitempty"`
    TotalAmountCents uint32   `json:"total_amount_cents,omitempty"`
    Value            *bool    `json:"value,omitempty"`
    OccurredAt       string   `json:"occurred_at"`
}

// NewBookingEvent stamps a fresh event id and the occurrence time.
func NewBookingEvent(typ string, at time.Time) BookingEvent {
    return BookingEvent{
        EventID:    uuid.NewString(),
        Type:       typ,
        OccurredAt: at.UTC().Format(time.RFC3339),
    }
}
