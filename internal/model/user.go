package model

import "time"

// User roles understood by the HTTP layer.  Administrators confirm
// issues and create outages; customers manage their own bookings.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// User represents an application user record as stored in the `users`
// table.  The engine itself never inspects users; it only carries the
// numeric owner id on bookings.  Handlers use this type for
// registration and login.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
}
