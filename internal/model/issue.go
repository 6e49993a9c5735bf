package model

import "time"

// Issue status values.  Confirming a new issue creates outages and
// triggers redistribution of affected bookings.
const (
	IssueNew       = "new"
	IssueConfirmed = "confirmed"
	IssueRejected  = "rejected"
	IssueResolved  = "resolved"
)

// Issue type values.
const (
	IssueWorkspace = "workspace"
	IssueEquipment = "equipment"
)

// Issue is a user-reported problem with a resource, optionally raised
// in the context of a booking.  Its creation time doubles as the cut
// point when a broken booking is later split onto a replacement
// resource.
type Issue struct {
	ID          uint64    // issues.id
	UserID      uint64    // issues.user_id
	BookingID   *uint64   // issues.booking_id (nullable)
	ResourceID  *uint64   // issues.resource_id (nullable)
	IssueType   string    // issues.issue_type
	Description string    // issues.description
	Status      string    // issues.status
	CreatedAt   time.Time // issues.created_at
	UpdatedAt   time.Time // issues.updated_at
}
