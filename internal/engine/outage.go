package engine

import (
	"context"
	"fmt"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

// ConfirmOutageRequest withdraws one or more resources over a window.
// Issue, when set, is the confirmed problem report that triggered the
// outage; its booking is treated specially during redistribution.
type ConfirmOutageRequest struct {
	ResourceIDs []uint64
	Window      Interval
	Reason      string
	Issue       *model.Issue
}

// ReassignedBooking records one booking that redistribution moved onto
// another resource of the same type.
type ReassignedBooking struct {
	Booking        model.Booking `json:"booking"`
	FromResourceID uint64        `json:"from_resource_id"`
	ToResourceID   uint64        `json:"to_resource_id"`
}

// RedistributionReport summarizes an outage confirmation: the outages
// written and, per affected booking, whether it was moved or left
// conflicted for manual resolution.
type RedistributionReport struct {
	Outages    []model.Outage      `json:"outages"`
	Reassigned []ReassignedBooking `json:"reassigned"`
	Conflicted []model.Booking     `json:"conflicted"`
}

// ConfirmOutage records a full capacity withdrawal for every named
// resource and redistributes the bookings it strands.  The booking the
// triggering issue points at is marked conflicted without any
// reassignment attempt, so its occupant decides the resolution.  Every
// other stranded booking that has not started yet is moved to the
// first same-type resource with free capacity over its exact interval,
// or marked conflicted when none exists.  A booking left conflicted is
// a normal outcome here, not an error.
//
// Each booking's decision commits on its own; a failure mid-way leaves
// earlier decisions in place, and the outage rows are always written
// before the first decision is evaluated.
func (e *Engine) ConfirmOutage(ctx context.Context, req ConfirmOutageRequest) (*RedistributionReport, error) {
	if len(req.ResourceIDs) == 0 || !req.Window.End.After(req.Window.Start) {
		return nil, ErrInvalidRequest
	}
	report := &RedistributionReport{
		Outages:    make([]model.Outage, 0, len(req.ResourceIDs)),
		Reassigned: make([]ReassignedBooking, 0),
		Conflicted: make([]model.Booking, 0),
	}
	protected, err := e.issueBookings(ctx, req.Issue)
	if err != nil {
		return nil, err
	}
	for _, resourceID := range req.ResourceIDs {
		res, err := e.catalog.ResourceByID(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		outage := model.Outage{
			ResourceID:        res.ID,
			Start:             req.Window.Start,
			End:               req.Window.End,
			Reason:            req.Reason,
			CapacityReduction: res.BaseCapacity(),
		}
		if req.Issue != nil {
			issueID := req.Issue.ID
			outage.IssueID = &issueID
		}
		if err := e.outages.Create(ctx, &outage); err != nil {
			return nil, err
		}
		report.Outages = append(report.Outages, outage)
		if err := e.redistribute(ctx, res, req.Window, protected, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// issueBookings collects the booking the issue was raised against plus
// its equipment children, keyed by id.  These are conflicted in place
// rather than reassigned.
func (e *Engine) issueBookings(ctx context.Context, issue *model.Issue) (map[uint64]model.Booking, error) {
	protected := make(map[uint64]model.Booking)
	if issue == nil || issue.BookingID == nil {
		return protected, nil
	}
	booking, err := e.bookings.ByID(ctx, *issue.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Occupies() {
		protected[booking.ID] = *booking
	}
	children, err := e.bookings.ChildEquipment(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		protected[child.ID] = child
	}
	return protected, nil
}

// redistribute walks the bookings an outage strands on one resource.
// The same-type candidate pool is locked for the whole pass so the
// free-capacity checks and the reassignments they justify cannot race
// with concurrent creates on those resources.
func (e *Engine) redistribute(ctx context.Context, res *model.Resource, win Interval, protected map[uint64]model.Booking, report *RedistributionReport) error {
	candidates, err := e.catalog.ActiveByType(ctx, res.TypeID)
	if err != nil {
		return err
	}
	pool := make([]model.Resource, 0, len(candidates))
	lockIDs := []uint64{res.ID}
	for _, c := range candidates {
		if c.ID == res.ID {
			continue
		}
		pool = append(pool, c)
		lockIDs = append(lockIDs, c.ID)
	}
	unlock, err := e.locker.Lock(ctx, lockIDs)
	if err != nil {
		return err
	}
	defer unlock()

	// The occupant the issue was raised by keeps its slot but turns
	// conflicted; reassignment would silently move someone who already
	// sits at the broken desk.  Only bookings the outage window actually
	// touches are affected, and a booking that is already conflicted is
	// left alone.
	for id, b := range protected {
		if b.ResourceID != res.ID {
			continue
		}
		if !(Interval{Start: b.Start, End: b.End}).Overlaps(win) {
			continue
		}
		if b.Status == model.StatusConflicted {
			continue
		}
		if err := e.bookings.SetStatus(ctx, id, model.StatusConflicted); err != nil {
			return err
		}
		b.Status = model.StatusConflicted
		report.Conflicted = append(report.Conflicted, b)
		e.notify(ctx, "booking_conflicted", b.UserID, "Booking affected by outage",
			fmt.Sprintf("Your booking from %s to %s is affected by a resource outage. Please choose how to proceed.",
				formatDT(b.Start), formatDT(b.End)))
	}

	decisionPoint := e.now()
	if win.Start.After(decisionPoint) {
		decisionPoint = win.Start
	}
	stranded, err := e.bookings.FutureOnResource(ctx, res.ID, win, decisionPoint)
	if err != nil {
		return err
	}
	for _, b := range stranded {
		if _, isProtected := protected[b.ID]; isProtected {
			continue
		}
		target, err := e.firstWithRoom(ctx, pool, Interval{Start: b.Start, End: b.End}, b.ID)
		if err != nil {
			return err
		}
		if target != nil {
			if err := e.bookings.Reassign(ctx, b.ID, target.ID, model.StatusActive); err != nil {
				return err
			}
			moved := b
			moved.ResourceID = target.ID
			moved.Status = model.StatusActive
			report.Reassigned = append(report.Reassigned, ReassignedBooking{
				Booking:        moved,
				FromResourceID: res.ID,
				ToResourceID:   target.ID,
			})
			e.notify(ctx, "booking_reassigned", b.UserID, "Booking moved",
				fmt.Sprintf("Due to an outage your booking from %s to %s was moved to %q.",
					formatDT(b.Start), formatDT(b.End), target.Name))
			continue
		}
		if err := e.bookings.SetStatus(ctx, b.ID, model.StatusConflicted); err != nil {
			return err
		}
		b.Status = model.StatusConflicted
		report.Conflicted = append(report.Conflicted, b)
		e.notify(ctx, "booking_conflicted", b.UserID, "Booking affected by outage",
			fmt.Sprintf("No replacement was found for your booking from %s to %s. Please choose how to proceed.",
				formatDT(b.Start), formatDT(b.End)))
	}
	return nil
}

// firstWithRoom returns the first pool resource with free capacity over
// win, excluding the booking being moved from the count, or nil.
func (e *Engine) firstWithRoom(ctx context.Context, pool []model.Resource, win Interval, excludeBookingID uint64) (*model.Resource, error) {
	for i := range pool {
		free, err := e.FreeCapacity(ctx, &pool[i], win, excludeBookingID)
		if err != nil {
			return nil, err
		}
		if free > 0 {
			return &pool[i], nil
		}
	}
	return nil, nil
}

// SplitResult is the outcome of ApplyChange: the truncated original and
// the continuation created on the replacement resource.
type SplitResult struct {
	ClosedBooking *model.Booking `json:"closed_booking"`
	NewBooking    *model.Booking `json:"new_booking"`
}

// ApplyChange resolves a booking hit by an outage by splitting it: the
// original is truncated at the cut time and completed, and the unserved
// remainder continues on a replacement resource as a fresh active
// booking.  The cut time is the triggering issue's creation time, or
// now when no issue was raised, clamped into the booking interval.
//
// The replacement may be chosen by the caller, in which case it must
// sit in the booking's candidate pool and have room over the remainder
// (ErrResourceUnavailable otherwise), or the engine scans the pool and
// takes the first fit (ErrNoResourceAvailable when there is none).  The
// pool is the booking's category for workspaces and its exact type for
// equipment; the original resource stays in the pool only when it is
// shared.  Truncation, continuation and the reparenting of every
// equipment child commit in one transaction.
func (e *Engine) ApplyChange(ctx context.Context, bookingID uint64, chosenResourceID *uint64) (*SplitResult, error) {
	booking, err := e.bookings.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.Occupies() {
		return nil, ErrInvalidRequest
	}

	cut := e.now()
	if e.issues != nil {
		issue, err := e.issues.LatestForBooking(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		if issue != nil {
			cut = issue.CreatedAt
		}
	}
	if cut.Before(booking.Start) {
		cut = booking.Start
	}
	if !cut.Before(booking.End) {
		return nil, ErrNoRoomLeft
	}
	remainder := Interval{Start: cut, End: booking.End}

	original, err := e.catalog.ResourceByID(ctx, booking.ResourceID)
	if err != nil {
		return nil, err
	}
	pool, err := e.replacementPool(ctx, booking, original)
	if err != nil {
		return nil, err
	}

	lockIDs := make([]uint64, 0, len(pool)+1)
	lockIDs = append(lockIDs, original.ID)
	for _, r := range pool {
		lockIDs = append(lockIDs, r.ID)
	}
	unlock, err := e.locker.Lock(ctx, lockIDs)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var replacement *model.Resource
	if chosenResourceID != nil {
		for i := range pool {
			if pool[i].ID == *chosenResourceID {
				replacement = &pool[i]
				break
			}
		}
		if replacement == nil {
			return nil, ErrResourceUnavailable
		}
		free, err := e.FreeCapacity(ctx, replacement, remainder, booking.ID)
		if err != nil {
			return nil, err
		}
		if free == 0 {
			return nil, ErrResourceUnavailable
		}
	} else {
		replacement, err = e.firstWithRoom(ctx, pool, remainder, booking.ID)
		if err != nil {
			return nil, err
		}
		if replacement == nil {
			return nil, ErrNoResourceAvailable
		}
	}

	children, err := e.bookings.ChildEquipment(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	continuation := &model.Booking{
		UserID:      booking.UserID,
		ResourceID:  replacement.ID,
		BookingType: booking.BookingType,
		TimeFormat:  booking.TimeFormat,
		Start:       cut,
		End:         booking.End,
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
	if err := tx.TruncateEnd(ctx, booking.ID, cut, model.StatusCompleted); err != nil {
		return nil, err
	}
	if err := tx.Create(ctx, continuation); err != nil {
		return nil, err
	}
	for _, child := range children {
		if err := tx.Reparent(ctx, child.ID, continuation.ID); err != nil {
			return nil, err
		}
	}
	oldStart, oldEnd := booking.Start, booking.End
	if err := tx.AppendChange(ctx, &model.BookingChangeLog{
		BookingID:  booking.ID,
		ChangeType: model.ChangeMove,
		OldStart:   &oldStart,
		OldEnd:     &oldEnd,
		NewStart:   &continuation.Start,
		NewEnd:     &continuation.End,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	closed := *booking
	closed.End = cut
	closed.Status = model.StatusCompleted
	e.notify(ctx, "booking_split", booking.UserID, "Booking moved to another resource",
		fmt.Sprintf("Your booking was closed at %s and continues on %q until %s.",
			formatDT(cut), replacement.Name, formatDT(booking.End)))
	return &SplitResult{ClosedBooking: &closed, NewBooking: continuation}, nil
}

// replacementPool lists the resources a split may continue on, in
// ascending id order.  Workspace bookings may land anywhere in their
// category; equipment stays within its exact type.  The original
// resource qualifies only when shared, where another free slot on the
// same resource is a legitimate continuation.
func (e *Engine) replacementPool(ctx context.Context, booking *model.Booking, original *model.Resource) ([]model.Resource, error) {
	var candidates []model.Resource
	if booking.BookingType == model.BookingWorkspace {
		typ, err := e.catalog.TypeByID(ctx, original.TypeID)
		if err != nil {
			return nil, err
		}
		candidates, err = e.catalog.ActiveByCategory(ctx, typ.CategoryID)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		candidates, err = e.catalog.ActiveByType(ctx, original.TypeID)
		if err != nil {
			return nil, err
		}
	}
	pool := make([]model.Resource, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == original.ID && !original.Shared() {
			continue
		}
		pool = append(pool, c)
	}
	return pool, nil
}
