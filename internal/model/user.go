package model

import "time"

// Roles recognised by the booking service.
const (
	RoleCustomer = "Customer"
	RoleAdmin    = "Admin"
	RoleStaff    = "Staff"
)

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleAdmin, RoleStaff:
		return true
	}
	return false
}

// User is the owner of reservations.  Account management lives outside
// this service; only the fields the booking flows need are kept here.
//
// Fields:
//  ID         – primary key identifier of the user.
//  Email      – unique email address.
//  Role       – Customer, Admin or Staff.
//  BookingIDs – ids of the user's active reservations, in booking order.
//  CreatedAt  – timestamp of creation.
type User struct {
	ID         uint64    `json:"id"`          // users.id
	Email      string    `json:"email"`       // users.email
	Role       string    `json:"role"`        // users.role
	BookingIDs []uint64  `json:"booking_ids"` // user_bookings.reservation_id
	CreatedAt  time.Time `json:"created_at"`  // users.created_at
}
