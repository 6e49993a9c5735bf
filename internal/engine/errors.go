// Package engine implements the resource availability and
// conflict-resolution core: capacity math over outages and bookings,
// best-fit allocation, extension negotiation and outage-driven
// redistribution.  It is persistence-agnostic; callers inject stores,
// a resource locker and a notifier.
package engine

import (
	"errors"
	"fmt"
)

// Validation errors are rejected before any state is touched.
var (
	// ErrInvalidInterval is returned when an interval has end <= start
	// or an hourly interval is off the 15-minute grid.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrOutsideWorkingHours is returned when an interval starts before
	// 06:00 or ends after 23:00.
	ErrOutsideWorkingHours = errors.New("outside working hours")

	// ErrInvalidRequest is returned for malformed inputs such as a zero
	// quantity or a duplicated equipment type in one request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTypeNotFound is returned when a referenced resource type does
	// not exist.
	ErrTypeNotFound = errors.New("resource type not found")
)

// Availability and conflict errors.  No partial state is ever created
// when one of these is returned.
var (
	// ErrNoResourceAvailable is returned when no resource of the
	// requested pool has free capacity over the window.
	ErrNoResourceAvailable = errors.New("no resource available")

	// ErrResourceUnavailable is returned when an explicitly chosen
	// replacement resource cannot take the remaining period, or when a
	// concurrent request claimed the last free slot first.
	ErrResourceUnavailable = errors.New("resource unavailable for period")

	// ErrNotLaterThanCurrentEnd is returned when an extension does not
	// move the booking end forward.
	ErrNotLaterThanCurrentEnd = errors.New("new end is not later than current end")

	// ErrNoRoomLeft is returned by a split when the cut time falls at or
	// after the booking end, leaving nothing to move.
	ErrNoRoomLeft = errors.New("no remaining period to move")
)

// InsufficientEquipmentError reports a shortage for one equipment type
// during batch validation.  It carries enough detail for the caller to
// shrink the request.  The batch fails as a whole: no bookings exist
// when this error is returned.
type InsufficientEquipmentError struct {
	TypeID    uint64
	TypeName  string
	Requested int
	Available int
}

func (e *InsufficientEquipmentError) Error() string {
	return fmt.Sprintf("insufficient equipment of type %q (id=%d): requested %d, available %d",
		e.TypeName, e.TypeID, e.Requested, e.Available)
}

// AsInsufficientEquipment unwraps err into an
// InsufficientEquipmentError when it is one.
func AsInsufficientEquipment(err error) (*InsufficientEquipmentError, bool) {
	var ie *InsufficientEquipmentError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
