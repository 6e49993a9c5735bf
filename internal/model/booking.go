package model

import "time"

// Booking type values describing what kind of resource is booked.
const (
	BookingWorkspace = "workspace"
	BookingEquipment = "equipment"
	BookingService   = "service"
	BookingParking   = "parking"
	BookingLocker    = "locker"
)

// Time format values controlling interval granularity rules.  Hourly
// bookings must align both endpoints to a 15-minute grid.
const (
	FormatHour  = "hour"
	FormatDay   = "day"
	FormatMonth = "month"
)

// Booking status values.  Cancelled, finished and completed are
// terminal.  Conflicted bookings lost their resource to an outage and
// wait for reassignment or an explicit split.
const (
	StatusActive     = "active"
	StatusCancelled  = "cancelled"
	StatusFinished   = "finished"
	StatusConflicted = "conflicted"
	StatusCompleted  = "completed"
)

// ParentRelationEquipment marks a child booking created for equipment
// attached to a workspace booking.
const ParentRelationEquipment = "equipment"

// Booking reserves one resource for a half-open interval [Start, End).
// Equipment booked together with a workspace is stored as child
// bookings referencing the workspace booking through ParentBookingID.
//
// Fields:
//  ID                 – primary key identifier.
//  UserID             – owning user.
//  ResourceID         – resource backing the booking.
//  BookingType        – workspace, equipment, service, parking, locker.
//  TimeFormat         – hour, day or month granularity.
//  Start, End         – half-open interval; End is exclusive.
//  Status             – lifecycle state, see Status constants.
//  ParentBookingID    – optional workspace booking this one belongs to.
//  ParentRelationType – relation kind, currently only "equipment".
//  CreatedAt          – creation timestamp.
type Booking struct {
	ID                 uint64    // bookings.id
	UserID             uint64    // bookings.user_id
	ResourceID         uint64    // bookings.resource_id
	BookingType        string    // bookings.booking_type
	TimeFormat         string    // bookings.time_format
	Start              time.Time // bookings.start_datetime
	End                time.Time // bookings.end_datetime
	Status             string    // bookings.status
	ParentBookingID    *uint64   // bookings.parent_booking_id (nullable)
	ParentRelationType *string   // bookings.parent_relation_type (nullable)
	CreatedAt          time.Time // bookings.created_at
}

// Occupies reports whether the booking counts against resource
// capacity.  Both active and conflicted bookings hold their slot so a
// conflicted occupant is never silently double-booked away.
func (b *Booking) Occupies() bool {
	return b.Status == StatusActive || b.Status == StatusConflicted
}

// Change type values recorded in the booking change log.
const (
	ChangeExtend = "extend"
	ChangeCancel = "cancel"
	ChangeMove   = "move"
	ChangeUpdate = "update"
)

// BookingChangeLog is an append-only audit record written alongside
// every extend, move or cancel mutation.  Entries are never updated or
// deleted.
type BookingChangeLog struct {
	ID         uint64     // booking_change_logs.id
	BookingID  uint64     // booking_change_logs.booking_id
	ChangeType string     // booking_change_logs.change_type
	OldStart   *time.Time // booking_change_logs.old_start (nullable)
	OldEnd     *time.Time // booking_change_logs.old_end (nullable)
	NewStart   *time.Time // booking_change_logs.new_start (nullable)
	NewEnd     *time.Time // booking_change_logs.new_end (nullable)
	CreatedAt  time.Time  // booking_change_logs.created_at
}
