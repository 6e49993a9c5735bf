package engine

import (
	"context"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

// EffectiveCapacity computes the capacity a resource actually offers
// over a window: base capacity minus every overlapping outage
// reduction.  The result may be zero or negative, which means the
// resource is fully withdrawn for some part of the window.  The
// function is a pure read and its result is a point-in-time snapshot,
// not a lock.
func (e *Engine) EffectiveCapacity(ctx context.Context, res *model.Resource, win Interval) (int, error) {
	outages, err := e.outages.Overlapping(ctx, res.ID, win)
	if err != nil {
		return 0, err
	}
	capacity := res.BaseCapacity()
	for _, o := range outages {
		capacity -= o.CapacityReduction
	}
	return capacity, nil
}

// FreeCapacity computes how many more bookings the resource can take
// over the window: effective capacity minus overlapping active and
// conflicted bookings, floored at zero.  excludeBookingID removes one
// booking from the count, which callers use when re-checking the
// booking they are about to move or extend.
func (e *Engine) FreeCapacity(ctx context.Context, res *model.Resource, win Interval, excludeBookingID uint64) (int, error) {
	effective, err := e.EffectiveCapacity(ctx, res, win)
	if err != nil {
		return 0, err
	}
	if effective <= 0 {
		return 0, nil
	}
	overlapping, err := e.bookings.Overlapping(ctx, res.ID, win, excludeBookingID)
	if err != nil {
		return 0, err
	}
	free := effective - len(overlapping)
	if free < 0 {
		free = 0
	}
	return free, nil
}

// ResourceAvailability is one row of a CheckAvailability answer.
type ResourceAvailability struct {
	Resource          model.Resource
	EffectiveCapacity int
	FreeCapacity      int
}

// CheckAvailability reports effective and free capacity for every
// active resource of a type over the window.  Read-only; rows come
// back in ascending resource id order.
func (e *Engine) CheckAvailability(ctx context.Context, resourceTypeID uint64, win Interval) ([]ResourceAvailability, error) {
	if !win.End.After(win.Start) {
		return nil, ErrInvalidInterval
	}
	if _, err := e.catalog.TypeByID(ctx, resourceTypeID); err != nil {
		return nil, err
	}
	resources, err := e.catalog.ActiveByType(ctx, resourceTypeID)
	if err != nil {
		return nil, err
	}
	out := make([]ResourceAvailability, 0, len(resources))
	for i := range resources {
		res := &resources[i]
		effective, err := e.EffectiveCapacity(ctx, res, win)
		if err != nil {
			return nil, err
		}
		free, err := e.FreeCapacity(ctx, res, win, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, ResourceAvailability{
			Resource:          *res,
			EffectiveCapacity: effective,
			FreeCapacity:      free,
		})
	}
	return out, nil
}
