package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

// Extension option sources, naming which candidate pool an option came
// from in a preview answer.
const (
	SourceSameResource  = "same_resource"
	SourceSameType      = "same_type_other_resource"
	SourceOtherCategory = "other_category_resource"
)

// ExtensionOption is one pool's answer to "how far can this booking be
// extended here".  Full means the desired end is reachable in full;
// Possible means at least some extension beyond the current end exists.
type ExtensionOption struct {
	ResourceID   uint64    `json:"resource_id"`
	ResourceName string    `json:"resource_name"`
	MaxEnd       time.Time `json:"max_end"`
	Full         bool      `json:"full"`
	Possible     bool      `json:"possible"`
}

// PartialExtension is the overall best achievable option across all
// pools, tagged with its source.
type PartialExtension struct {
	Source string          `json:"source"`
	Option ExtensionOption `json:"option"`
}

// ExtendPreviewResult aggregates the three candidate pools.  Nil pool
// entries mean the pool is empty (no other resource of the type, no
// other type in the category).
type ExtendPreviewResult struct {
	SameResource  *ExtensionOption  `json:"same_resource"`
	SameType      *ExtensionOption  `json:"same_type"`
	OtherCategory *ExtensionOption  `json:"other_category"`
	BestPartial   *PartialExtension `json:"best_partial"`
}

// computeExtension finds how far an extension starting at baseStart can
// run on one resource before hitting the next capacity-holding booking.
// When nothing blocks before desiredEnd the full extension is
// achievable; when the blocker starts at or before baseStart no
// extension is possible and MaxEnd collapses to baseStart.
func (e *Engine) computeExtension(ctx context.Context, res *model.Resource, baseStart, desiredEnd time.Time, excludeID uint64) (ExtensionOption, error) {
	opt := ExtensionOption{ResourceID: res.ID, ResourceName: res.Name}
	next, err := e.bookings.NextAfter(ctx, res.ID, baseStart, excludeID)
	if err != nil {
		return opt, err
	}
	switch {
	case next == nil || !next.Start.Before(desiredEnd):
		opt.MaxEnd = desiredEnd
		opt.Full = true
		opt.Possible = true
	case !next.Start.After(baseStart):
		opt.MaxEnd = baseStart
	default:
		opt.MaxEnd = next.Start
		opt.Possible = true
	}
	return opt, nil
}

// bestInPool evaluates every candidate and keeps the greatest MaxEnd,
// first candidate winning ties.  Returns nil for an empty pool.
func (e *Engine) bestInPool(ctx context.Context, pool []model.Resource, baseStart, desiredEnd time.Time, excludeID uint64) (*ExtensionOption, error) {
	var best *ExtensionOption
	for i := range pool {
		opt, err := e.computeExtension(ctx, &pool[i], baseStart, desiredEnd, excludeID)
		if err != nil {
			return nil, err
		}
		if best == nil || opt.MaxEnd.After(best.MaxEnd) {
			o := opt
			best = &o
		}
	}
	return best, nil
}

// ExtendPreview answers how far a booking can be extended towards
// desiredEnd: on its own resource, on the best other resource of the
// same type, and on the best resource of another type in the same
// category.  BestPartial picks the overall winner among options that
// actually move past the current end.  Read-only; availability can
// change before a confirm.
func (e *Engine) ExtendPreview(ctx context.Context, bookingID uint64, desiredEnd time.Time) (*ExtendPreviewResult, error) {
	booking, err := e.bookings.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.Occupies() {
		return nil, ErrInvalidRequest
	}
	if !desiredEnd.After(booking.End) {
		return nil, ErrNotLaterThanCurrentEnd
	}
	res, err := e.catalog.ResourceByID(ctx, booking.ResourceID)
	if err != nil {
		return nil, err
	}
	typ, err := e.catalog.TypeByID(ctx, res.TypeID)
	if err != nil {
		return nil, err
	}
	baseStart := booking.End

	same, err := e.computeExtension(ctx, res, baseStart, desiredEnd, booking.ID)
	if err != nil {
		return nil, err
	}
	result := &ExtendPreviewResult{SameResource: &same}

	sameType, err := e.catalog.ActiveByType(ctx, res.TypeID)
	if err != nil {
		return nil, err
	}
	typePool := make([]model.Resource, 0, len(sameType))
	for _, r := range sameType {
		if r.ID != res.ID {
			typePool = append(typePool, r)
		}
	}
	result.SameType, err = e.bestInPool(ctx, typePool, baseStart, desiredEnd, booking.ID)
	if err != nil {
		return nil, err
	}

	category, err := e.catalog.ActiveByCategory(ctx, typ.CategoryID)
	if err != nil {
		return nil, err
	}
	categoryPool := make([]model.Resource, 0, len(category))
	for _, r := range category {
		if r.TypeID != res.TypeID {
			categoryPool = append(categoryPool, r)
		}
	}
	result.OtherCategory, err = e.bestInPool(ctx, categoryPool, baseStart, desiredEnd, booking.ID)
	if err != nil {
		return nil, err
	}

	consider := func(source string, opt *ExtensionOption) {
		if opt == nil || !opt.MaxEnd.After(baseStart) {
			return
		}
		if result.BestPartial == nil || opt.MaxEnd.After(result.BestPartial.Option.MaxEnd) {
			result.BestPartial = &PartialExtension{Source: source, Option: *opt}
		}
	}
	consider(SourceSameResource, result.SameResource)
	consider(SourceSameType, result.SameType)
	consider(SourceOtherCategory, result.OtherCategory)
	return result, nil
}

// ExtendConfirm moves a booking's end forward to newEnd on its current
// resource.  The extended interval is re-validated under the resource
// lock, so a preview that was achievable can still fail here when a
// racing booking took the span first; that surfaces as
// ErrResourceUnavailable and the caller re-queries.  The old and new
// bounds are written to the change log in the same transaction.
func (e *Engine) ExtendConfirm(ctx context.Context, bookingID uint64, newEnd time.Time) (*model.Booking, error) {
	booking, err := e.bookings.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.StatusActive {
		return nil, ErrInvalidRequest
	}
	if !newEnd.After(booking.End) {
		return nil, ErrNotLaterThanCurrentEnd
	}
	extended := Interval{Start: booking.Start, End: newEnd}
	if err := ValidateWindow(extended, booking.TimeFormat); err != nil {
		return nil, err
	}
	res, err := e.catalog.ResourceByID(ctx, booking.ResourceID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, []uint64{res.ID})
	if err != nil {
		return nil, err
	}
	defer unlock()

	tail := Interval{Start: booking.End, End: newEnd}
	free, err := e.FreeCapacity(ctx, res, tail, booking.ID)
	if err != nil {
		return nil, err
	}
	if free == 0 {
		return nil, ErrResourceUnavailable
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
	if err := tx.UpdateEnd(ctx, booking.ID, newEnd); err != nil {
		return nil, err
	}
	oldStart, oldEnd := booking.Start, booking.End
	if err := tx.AppendChange(ctx, &model.BookingChangeLog{
		BookingID:  booking.ID,
		ChangeType: model.ChangeExtend,
		OldStart:   &oldStart,
		OldEnd:     &oldEnd,
		NewStart:   &booking.Start,
		NewEnd:     &newEnd,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	booking.End = newEnd
	e.notify(ctx, "booking_extended", booking.UserID, "Booking extended",
		fmt.Sprintf("Your booking of %q now ends at %s.", res.Name, formatDT(newEnd)))
	return booking, nil
}
