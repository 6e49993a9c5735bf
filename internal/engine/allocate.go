package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

// EquipmentItem asks for a quantity of interchangeable units of one
// equipment type.  A type may appear at most once per request.
type EquipmentItem struct {
	ResourceTypeID uint64 `json:"resource_type_id"`
	Quantity       int    `json:"quantity"`
}

// CreateBookingRequest describes a workspace booking to allocate.  The
// caller names a resource type, never a concrete desk; the engine
// picks the best-fitting one.  Equipment, when present, is validated
// in full before anything is written.
type CreateBookingRequest struct {
	UserID         uint64
	ResourceTypeID uint64
	TimeFormat     string
	Window         Interval
	Equipment      []EquipmentItem
}

// equipmentPick is one validated equipment allocation: the resolved
// type and the concrete units that will be booked.
type equipmentPick struct {
	typ       *model.ResourceType
	resources []model.Resource
}

// CreateBooking allocates a workspace booking with optional equipment.
// The desk is chosen best-fit: among free candidates, the one whose
// idle span around the requested window within the 06:00-23:00 workday
// is smallest, ties going to the lowest id.  Equipment validation for
// every requested type completes before any row is written; the desk
// and all equipment bookings are committed in one transaction.
//
// Errors: ErrInvalidInterval, ErrOutsideWorkingHours, ErrTypeNotFound,
// ErrNoResourceAvailable, ErrInvalidRequest and
// *InsufficientEquipmentError.
func (e *Engine) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	timeFormat := req.TimeFormat
	if timeFormat == "" {
		timeFormat = model.FormatHour
	}
	if err := ValidateWindow(req.Window, timeFormat); err != nil {
		return nil, err
	}
	if _, err := e.catalog.TypeByID(ctx, req.ResourceTypeID); err != nil {
		return nil, err
	}
	candidates, err := e.catalog.ActiveByType(ctx, req.ResourceTypeID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoResourceAvailable
	}

	// Gather every resource the decision may touch, then take the locks
	// before reading availability.  The whole check-and-create span runs
	// under them, so two racing requests serialize per resource.
	lockIDs := make([]uint64, 0, len(candidates))
	for _, r := range candidates {
		lockIDs = append(lockIDs, r.ID)
	}
	equipmentPools, err := e.equipmentCandidates(ctx, req.Equipment)
	if err != nil {
		return nil, err
	}
	for _, pool := range equipmentPools {
		for _, r := range pool {
			lockIDs = append(lockIDs, r.ID)
		}
	}
	unlock, err := e.locker.Lock(ctx, lockIDs)
	if err != nil {
		return nil, err
	}
	defer unlock()

	best, err := e.pickBestFit(ctx, candidates, req.Window)
	if err != nil {
		return nil, err
	}
	picks, err := e.allocateEquipment(ctx, req.Window, req.Equipment, equipmentPools)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		UserID:      req.UserID,
		ResourceID:  best.ID,
		BookingType: model.BookingWorkspace,
		TimeFormat:  timeFormat,
		Start:       req.Window.Start,
		End:         req.Window.End,
		Status:      model.StatusActive,
	}
	tx, err := e.bookings.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := tx.Create(ctx, booking); err != nil {
		return nil, err
	}
	if err := e.createEquipmentChildren(ctx, tx, booking, picks, req.Window, timeFormat); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	e.notify(ctx, "booking_created", req.UserID, "Booking created",
		fmt.Sprintf("Your booking of %q from %s to %s was created.",
			best.Name, formatDT(booking.Start), formatDT(booking.End)))
	return booking, nil
}

// pickBestFit selects the free candidate with the tightest idle window
// around win.  Candidates with zero free capacity are discarded first;
// ErrNoResourceAvailable when nothing survives.
func (e *Engine) pickBestFit(ctx context.Context, candidates []model.Resource, win Interval) (*model.Resource, error) {
	var best *model.Resource
	bestWindow := time.Duration(-1)
	for i := range candidates {
		res := &candidates[i]
		free, err := e.FreeCapacity(ctx, res, win, 0)
		if err != nil {
			return nil, err
		}
		if free == 0 {
			continue
		}
		span, ok, err := e.freeWindowAround(ctx, res, win)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if best == nil || span < bestWindow {
			best = res
			bestWindow = span
		}
	}
	if best == nil {
		return nil, ErrNoResourceAvailable
	}
	return best, nil
}

// freeWindowAround measures the idle span a booking at win would sit
// in on the resource: from the end of the nearest prior booking (or
// the workday start) to the start of the nearest following one (or the
// workday end).  ok is false when the span collapses, which callers
// treat as an unusable candidate.
func (e *Engine) freeWindowAround(ctx context.Context, res *model.Resource, win Interval) (time.Duration, bool, error) {
	workStart, workEnd := workdayBounds(win.Start)

	prev, err := e.bookings.LastEndingBefore(ctx, res.ID, win.Start, workStart)
	if err != nil {
		return 0, false, err
	}
	next, err := e.bookings.NextAfter(ctx, res.ID, win.End, 0)
	if err != nil {
		return 0, false, err
	}

	windowStart := workStart
	if prev != nil && prev.End.After(windowStart) {
		windowStart = prev.End
	}
	windowEnd := workEnd
	if next != nil && next.Start.Before(windowEnd) {
		windowEnd = next.Start
	}
	if !windowEnd.After(windowStart) {
		return 0, false, nil
	}
	return windowEnd.Sub(windowStart), true, nil
}

// equipmentCandidates resolves the active candidate pool per requested
// item, validating quantities, duplicates and type existence.  Pools
// come back in request order.
func (e *Engine) equipmentCandidates(ctx context.Context, items []EquipmentItem) ([][]model.Resource, error) {
	if len(items) == 0 {
		return nil, nil
	}
	seen := make(map[uint64]struct{}, len(items))
	pools := make([][]model.Resource, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidRequest
		}
		if _, dup := seen[item.ResourceTypeID]; dup {
			return nil, ErrInvalidRequest
		}
		seen[item.ResourceTypeID] = struct{}{}
		if _, err := e.catalog.TypeByID(ctx, item.ResourceTypeID); err != nil {
			return nil, err
		}
		pool, err := e.catalog.ActiveByType(ctx, item.ResourceTypeID)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

// allocateEquipment validates every requested type against its pool
// and returns the concrete picks.  A unit is busy when an active or
// conflicted booking overlaps the window, or when outages withdraw its
// whole capacity.  Validation across all types completes before the
// caller writes anything: a shortage in the last type fails the whole
// batch with zero bookings created.
func (e *Engine) allocateEquipment(ctx context.Context, win Interval, items []EquipmentItem, pools [][]model.Resource) ([]equipmentPick, error) {
	if len(items) == 0 {
		return nil, nil
	}
	picks := make([]equipmentPick, 0, len(items))
	for i, item := range items {
		typ, err := e.catalog.TypeByID(ctx, item.ResourceTypeID)
		if err != nil {
			return nil, err
		}
		pool := pools[i]
		free := make([]model.Resource, 0, len(pool))
		for j := range pool {
			res := &pool[j]
			overlapping, err := e.bookings.Overlapping(ctx, res.ID, win, 0)
			if err != nil {
				return nil, err
			}
			if len(overlapping) > 0 {
				continue
			}
			effective, err := e.EffectiveCapacity(ctx, res, win)
			if err != nil {
				return nil, err
			}
			if effective <= 0 {
				continue
			}
			free = append(free, *res)
		}
		if len(free) < item.Quantity {
			return nil, &InsufficientEquipmentError{
				TypeID:    typ.ID,
				TypeName:  typ.Name,
				Requested: item.Quantity,
				Available: len(free),
			}
		}
		picks = append(picks, equipmentPick{typ: typ, resources: free[:item.Quantity]})
	}
	return picks, nil
}

// createEquipmentChildren inserts one child booking per picked unit
// inside the caller's transaction.
func (e *Engine) createEquipmentChildren(ctx context.Context, tx Tx, parent *model.Booking, picks []equipmentPick, win Interval, timeFormat string) error {
	relation := model.ParentRelationEquipment
	for _, pick := range picks {
		for _, res := range pick.resources {
			child := &model.Booking{
				UserID:             parent.UserID,
				ResourceID:         res.ID,
				BookingType:        model.BookingEquipment,
				TimeFormat:         timeFormat,
				Start:              win.Start,
				End:                win.End,
				Status:             model.StatusActive,
				ParentBookingID:    &parent.ID,
				ParentRelationType: &relation,
			}
			if err := tx.Create(ctx, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckEquipment is the read-only dry run of an equipment batch: it
// validates the full request against current availability and returns
// the first shortage, creating nothing.  The answer is a snapshot and
// may be stale by the time a booking follows.
func (e *Engine) CheckEquipment(ctx context.Context, win Interval, items []EquipmentItem) error {
	if !win.End.After(win.Start) {
		return ErrInvalidInterval
	}
	pools, err := e.equipmentCandidates(ctx, items)
	if err != nil {
		return err
	}
	_, err = e.allocateEquipment(ctx, win, items, pools)
	return err
}

// AddEquipment books extra equipment under an existing workspace
// booking.  With a nil window the equipment spans the whole parent
// interval in the parent's time format; an explicit window must be a
// sub-interval of the parent's and is treated as hourly.  The batch is
// all-or-nothing like any other equipment allocation.
func (e *Engine) AddEquipment(ctx context.Context, parentID uint64, items []EquipmentItem, win *Interval) ([]model.Booking, error) {
	if len(items) == 0 {
		return nil, ErrInvalidRequest
	}
	parent, err := e.bookings.ByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.Status != model.StatusActive || parent.BookingType != model.BookingWorkspace {
		return nil, ErrInvalidRequest
	}

	window := Interval{Start: parent.Start, End: parent.End}
	timeFormat := parent.TimeFormat
	if win != nil {
		parentWin := Interval{Start: parent.Start, End: parent.End}
		if !parentWin.Contains(*win) {
			return nil, ErrInvalidRequest
		}
		timeFormat = model.FormatHour
		if err := ValidateWindow(*win, timeFormat); err != nil {
			return nil, err
		}
		window = *win
	}

	pools, err := e.equipmentCandidates(ctx, items)
	if err != nil {
		return nil, err
	}
	lockIDs := make([]uint64, 0)
	for _, pool := range pools {
		for _, r := range pool {
			lockIDs = append(lockIDs, r.ID)
		}
	}
	unlock, err := e.locker.Lock(ctx, lockIDs)
	if err != nil {
		return nil, err
	}
	defer unlock()

	picks, err := e.allocateEquipment(ctx, window, items, pools)
	if err != nil {
		return nil, err
	}

	tx, err := e.bookings.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	created := make([]model.Booking, 0)
	relation := model.ParentRelationEquipment
	for _, pick := range picks {
		for _, res := range pick.resources {
			child := &model.Booking{
				UserID:             parent.UserID,
				ResourceID:         res.ID,
				BookingType:        model.BookingEquipment,
				TimeFormat:         timeFormat,
				Start:              window.Start,
				End:                window.End,
				Status:             model.StatusActive,
				ParentBookingID:    &parent.ID,
				ParentRelationType: &relation,
			}
			if err := tx.Create(ctx, child); err != nil {
				return nil, err
			}
			created = append(created, *child)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return created, nil
}

// formatDT renders timestamps for notification text.
func formatDT(t time.Time) string { return t.Format("2006-01-02 15:04") }
