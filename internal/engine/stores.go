package engine

import (
	"context"
	"time"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

// Catalog is the read-only reference data the engine consults for
// resources, their types and categories.  Implementations must return
// resource lists in ascending id order: list order is the documented
// tie-break whenever several resources fit equally well.
type Catalog interface {
	// ResourceByID loads one resource regardless of status.
	ResourceByID(ctx context.Context, id uint64) (*model.Resource, error)
	// TypeByID loads a resource type or ErrTypeNotFound.
	TypeByID(ctx context.Context, id uint64) (*model.ResourceType, error)
	// ActiveByType lists active resources of a type, ascending id.
	ActiveByType(ctx context.Context, typeID uint64) ([]model.Resource, error)
	// ActiveByCategory lists active resources across all types of a
	// category, ascending id.
	ActiveByCategory(ctx context.Context, categoryID uint64) ([]model.Resource, error)
}

// BookingStore is the booking overlap index plus its mutation surface.
// Read methods only consider capacity-holding bookings (status active
// or conflicted) unless stated otherwise.  excludeID, when non-zero,
// removes that booking from the result; pass zero to exclude nothing.
type BookingStore interface {
	// ByID loads a booking of any status.
	ByID(ctx context.Context, id uint64) (*model.Booking, error)
	// Overlapping lists active/conflicted bookings on a resource whose
	// interval intersects win, ascending id.
	Overlapping(ctx context.Context, resourceID uint64, win Interval, excludeID uint64) ([]model.Booking, error)
	// NextAfter returns the earliest active/conflicted booking on the
	// resource with Start >= from, or nil when there is none.
	NextAfter(ctx context.Context, resourceID uint64, from time.Time, excludeID uint64) (*model.Booking, error)
	// LastEndingBefore returns the latest active/conflicted booking on
	// the resource with End <= before and End > after, or nil.
	LastEndingBefore(ctx context.Context, resourceID uint64, before, after time.Time) (*model.Booking, error)
	// FutureOnResource lists active/conflicted bookings on the resource
	// overlapping win with Start >= from, ordered by start time.
	FutureOnResource(ctx context.Context, resourceID uint64, win Interval, from time.Time) ([]model.Booking, error)
	// ChildEquipment lists active/conflicted equipment bookings whose
	// parent is the given booking, ascending id.
	ChildEquipment(ctx context.Context, parentID uint64) ([]model.Booking, error)

	// SetStatus transitions one booking and commits immediately.  Used
	// by redistribution, where each decision stands on its own.
	SetStatus(ctx context.Context, id uint64, status string) error
	// Reassign moves a booking onto another resource and forces the
	// given status, committing immediately.
	Reassign(ctx context.Context, id uint64, resourceID uint64, status string) error

	// Begin opens a transaction for multi-row mutations that must be
	// all-or-nothing.  The caller commits or rolls back.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the transactional mutation surface.  Everything performed
// through a Tx becomes visible atomically at Commit; Rollback discards
// it all.  Mirrors how repository ...Tx methods wrap *sql.Tx.
type Tx interface {
	// Create inserts a booking and populates its ID.
	Create(ctx context.Context, b *model.Booking) error
	// SetStatus transitions a booking inside the transaction.
	SetStatus(ctx context.Context, id uint64, status string) error
	// TruncateEnd shortens a booking to end and sets its status.
	TruncateEnd(ctx context.Context, id uint64, end time.Time, status string) error
	// UpdateEnd moves a booking end forward.
	UpdateEnd(ctx context.Context, id uint64, end time.Time) error
	// Reparent attaches a child booking to a new parent.
	Reparent(ctx context.Context, id uint64, parentID uint64) error
	// AppendChange writes one change-log entry.
	AppendChange(ctx context.Context, cl *model.BookingChangeLog) error

	Commit() error
	Rollback() error
}

// OutageStore records and queries capacity withdrawals.
type OutageStore interface {
	// Overlapping lists outages on a resource intersecting win.
	Overlapping(ctx context.Context, resourceID uint64, win Interval) ([]model.Outage, error)
	// Create inserts an outage and populates its ID.  The row must be
	// visible before any subsequent availability read.
	Create(ctx context.Context, o *model.Outage) error
}

// IssueStore gives the engine the one issue lookup it needs: the most
// recent issue raised against a booking, whose creation time is the
// split cut point.
type IssueStore interface {
	// LatestForBooking returns the newest issue for the booking, or nil
	// when none was ever raised.
	LatestForBooking(ctx context.Context, bookingID uint64) (*model.Issue, error)
}

// Notifier delivers user-facing notifications.  Calls happen after the
// state mutation committed; implementations must swallow their own
// failures, which never roll the mutation back.
type Notifier interface {
	Notify(ctx context.Context, event string, userID uint64, title, message string)
}

// ResourceLocker serializes check-then-write spans per resource.  Lock
// acquires every id (implementations sort to a canonical order to stay
// deadlock-free) and returns the release function.  Availability reads
// and the writes they justify must happen inside one held span.
type ResourceLocker interface {
	Lock(ctx context.Context, ids []uint64) (func(), error)
}
