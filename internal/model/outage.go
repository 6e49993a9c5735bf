package model

import "time"

// Outage reason values.
const (
	OutageReasonIssue       = "issue"
	OutageReasonMaintenance = "maintenance"
	OutageReasonBroken      = "broken"
)

// Outage withdraws part or all of a resource's capacity over a
// half-open interval.  A full withdrawal carries a reduction equal to
// the resource's base capacity.  Outages created from a confirmed issue
// keep a reference to it.
//
// Fields:
//  ID                – primary key identifier.
//  ResourceID        – resource losing capacity.
//  Start, End        – half-open unavailability interval.
//  Reason            – issue, maintenance or broken.
//  IssueID           – triggering issue, when there is one.
//  CapacityReduction – units of capacity withdrawn (>= 0).
//  CreatedAt         – creation timestamp.
type Outage struct {
	ID                uint64    // resource_outages.id
	ResourceID        uint64    // resource_outages.resource_id
	Start             time.Time // resource_outages.start_datetime
	End               time.Time // resource_outages.end_datetime
	Reason            string    // resource_outages.reason
	IssueID           *uint64   // resource_outages.issue_id (nullable)
	CapacityReduction int       // resource_outages.capacity_reduction
	CreatedAt         time.Time // resource_outages.created_at
}
