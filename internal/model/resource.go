package model

// Resource status values.  Only active resources may be offered to new
// bookings; broken and maintenance resources are invisible to allocation.
const (
	ResourceActive      = "active"
	ResourceBroken      = "broken"
	ResourceMaintenance = "maintenance"
)

// ResourceCategory groups resource types into broad families such as
// workspaces, equipment, parking or lockers.  The code is a stable
// machine-readable key; the name is for display.
//
// Fields:
//  ID   – primary key identifier.
//  Code – unique machine-readable code (e.g. "workspace").
//  Name – human-readable category name.
type ResourceCategory struct {
	ID   uint64 // resource_categories.id
	Code string // resource_categories.code
	Name string // resource_categories.name
}

// ResourceType describes one bookable kind of resource within a
// category, for example "fixed desk" or "HDMI projector".  All
// resources of a type are interchangeable for allocation purposes.
//
// Fields:
//  ID          – primary key identifier.
//  CategoryID  – owning category.
//  Name        – display name of the type.
//  Description – optional free-form description.
type ResourceType struct {
	ID          uint64  // resource_types.id
	CategoryID  uint64  // resource_types.category_id
	Name        string  // resource_types.name
	Description *string // resource_types.description (nullable)
}

// Resource is a single physical unit that bookings attach to: a desk, a
// meeting room, one projector, a parking slot.  Capacity is nil for
// exclusive single-occupant resources and set for shared ones (open
// halls); the engine treats nil as a capacity of one.
//
// Fields:
//  ID       – primary key identifier.
//  TypeID   – resource type this unit belongs to.
//  Name     – display name (e.g. "Desk 12").
//  Zone     – optional floor/zone label.
//  Capacity – nil for exclusive resources, otherwise concurrent slots.
//  Status   – active, broken or maintenance.
type Resource struct {
	ID       uint64  // resources.id
	TypeID   uint64  // resources.type_id
	Name     string  // resources.name
	Zone     *string // resources.zone (nullable)
	Capacity *int    // resources.capacity (nullable; nil = exclusive)
	Status   string  // resources.status
}

// BaseCapacity returns the capacity used in availability math: the
// stored capacity when present, otherwise 1 for exclusive resources.
func (r *Resource) BaseCapacity() int {
	if r.Capacity != nil {
		return *r.Capacity
	}
	return 1
}

// Shared reports whether the resource admits more than one concurrent
// booking.  Shared resources stay in the replacement candidate pool
// even when they back the booking being changed.
func (r *Resource) Shared() bool { return r.BaseCapacity() > 1 }
