package engine

import (
	"context"
	"fmt"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

// CancelBooking cancels a booking and cascades to its active and
// conflicted equipment children in the same transaction.  Terminal
// bookings cannot be cancelled again.
func (e *Engine) CancelBooking(ctx context.Context, bookingID uint64) error {
	booking, err := e.bookings.ByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if !booking.Occupies() {
		return ErrInvalidRequest
	}
	children, err := e.bookings.ChildEquipment(ctx, booking.ID)
	if err != nil {
		return err
	}

	tx, err := e.bookings.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := tx.SetStatus(ctx, booking.ID, model.StatusCancelled); err != nil {
		return err
	}
	for _, child := range children {
		if err := tx.SetStatus(ctx, child.ID, model.StatusCancelled); err != nil {
			return err
		}
	}
	oldStart, oldEnd := booking.Start, booking.End
	if err := tx.AppendChange(ctx, &model.BookingChangeLog{
		BookingID:  booking.ID,
		ChangeType: model.ChangeCancel,
		OldStart:   &oldStart,
		OldEnd:     &oldEnd,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	e.notify(ctx, "booking_cancelled", booking.UserID, "Booking cancelled",
		fmt.Sprintf("Your booking from %s to %s was cancelled.",
			formatDT(booking.Start), formatDT(booking.End)))
	return nil
}
