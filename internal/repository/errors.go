// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a booking owned by someone
// else, while ErrConflict signals that an operation cannot proceed
// due to existing dependent records (e.g. deleting a resource that
// still has active bookings).
package repository

import "errors"

// ErrNotFound is returned when a requested record does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a record they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete a resource that still has active bookings. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
