package model

import "time"

// Room is a bookable hotel room together with its availability ledger.
//
// Fields:
//  ID                 – primary key identifier.
//  Name               – display name or number of the room.
//  PricePerNightCents – nightly price in cents.
//  Unavailable        – sorted blocked-date markers; always the union of
//                       the marker ranges of the room's active reservations.
//  Version            – incremented on every ledger write; used as the
//                       compare-and-swap token for concurrent writers.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Room struct {
	ID                 uint64    `json:"id"`                    // rooms.id
	Name               string    `json:"name"`                  // rooms.name
	PricePerNightCents uint32    `json:"price_per_night_cents"` // rooms.price_per_night_cents
	Unavailable        []string  `json:"unavailable"`           // room_blocked_dates.marker
	Version            uint64    `json:"version"`               // rooms.version
	CreatedAt          time.Time `json:"created_at"`            // rooms.created_at
	UpdatedAt          time.Time `json:"updated_at"`            // rooms.updated_at
}
