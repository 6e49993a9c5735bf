package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

// extendFixture builds one desk category with two desks of the same
// type and one meeting room of another type, plus a booking on desk 1
// ending at 12:00 owned by user 1.
func extendFixture() (*memStore, uint64) {
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addType(2, 1, "meeting room")
	s.addResource(1, 1, "Desk 1", nil)
	s.addResource(2, 1, "Desk 2", nil)
	s.addResource(3, 2, "Room 1", nil)
	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(9, 0), End: at(12, 0),
	})
	return s, id
}

func TestExtendPreviewFullOnOwnResource(t *testing.T) {
	s, id := extendFixture()
	eng := newTestEngine(s)

	res, err := eng.ExtendPreview(context.Background(), id, at(14, 0))
	require.NoError(t, err)
	require.NotNil(t, res.SameResource)
	assert.True(t, res.SameResource.Full)
	assert.Equal(t, at(14, 0), res.SameResource.MaxEnd)
	require.NotNil(t, res.BestPartial)
	assert.Equal(t, SourceSameResource, res.BestPartial.Source)
	assert.Equal(t, at(14, 0), res.BestPartial.Option.MaxEnd)
}

func TestExtendPreviewPartialStopsAtNextBooking(t *testing.T) {
	s, id := extendFixture()
	// A follow-up booking on the same desk caps the extension at 13:00.
	s.addBooking(model.Booking{
		UserID: 2, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(13, 0), End: at(15, 0),
	})
	eng := newTestEngine(s)

	res, err := eng.ExtendPreview(context.Background(), id, at(16, 0))
	require.NoError(t, err)
	assert.False(t, res.SameResource.Full)
	assert.True(t, res.SameResource.Possible)
	assert.Equal(t, at(13, 0), res.SameResource.MaxEnd)
}

func TestExtendPreviewFallsBackToOtherPools(t *testing.T) {
	s, id := extendFixture()
	// Own desk blocked immediately from the current end.
	s.addBooking(model.Booking{
		UserID: 2, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(12, 0), End: at(16, 0),
	})
	eng := newTestEngine(s)

	res, err := eng.ExtendPreview(context.Background(), id, at(16, 0))
	require.NoError(t, err)
	assert.False(t, res.SameResource.Possible)
	assert.Equal(t, at(12, 0), res.SameResource.MaxEnd)

	require.NotNil(t, res.SameType)
	assert.Equal(t, uint64(2), res.SameType.ResourceID)
	assert.True(t, res.SameType.Full)

	require.NotNil(t, res.OtherCategory)
	assert.Equal(t, uint64(3), res.OtherCategory.ResourceID)

	require.NotNil(t, res.BestPartial)
	assert.Equal(t, SourceSameType, res.BestPartial.Source)
	assert.Equal(t, at(16, 0), res.BestPartial.Option.MaxEnd)
}

func TestExtendPreviewKeepsGreatestMaxEndPerPool(t *testing.T) {
	s, id := extendFixture()
	s.addResource(4, 1, "Desk 4", nil)
	// Desk 2 blocked at 13:00, desk 4 free: desk 4 must win the pool.
	s.addBooking(model.Booking{
		UserID: 2, ResourceID: 2, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(13, 0), End: at(15, 0),
	})
	eng := newTestEngine(s)

	res, err := eng.ExtendPreview(context.Background(), id, at(16, 0))
	require.NoError(t, err)
	require.NotNil(t, res.SameType)
	assert.Equal(t, uint64(4), res.SameType.ResourceID)
	assert.True(t, res.SameType.Full)
}

func TestExtendPreviewRejectsNonForwardTarget(t *testing.T) {
	s, id := extendFixture()
	eng := newTestEngine(s)

	_, err := eng.ExtendPreview(context.Background(), id, at(12, 0))
	assert.ErrorIs(t, err, ErrNotLaterThanCurrentEnd)
}

func TestExtendPreviewRejectsTerminalBooking(t *testing.T) {
	s, id := extendFixture()
	eng := newTestEngine(s)
	ctx := context.Background()

	require.NoError(t, s.SetStatus(ctx, id, model.StatusCancelled))
	_, err := eng.ExtendPreview(ctx, id, at(14, 0))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	require.NoError(t, s.SetStatus(ctx, id, model.StatusCompleted))
	_, err = eng.ExtendPreview(ctx, id, at(14, 0))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestExtendConfirmMovesEndForward(t *testing.T) {
	s, id := extendFixture()
	notifier := &memNotifier{}
	eng := newTestEngine(s, WithNotifier(notifier))

	updated, err := eng.ExtendConfirm(context.Background(), id, at(14, 0))
	require.NoError(t, err)
	assert.Equal(t, at(14, 0), updated.End)
	assert.Equal(t, at(14, 0), s.booking(id).End)

	require.Len(t, s.changes, 1)
	cl := s.changes[0]
	assert.Equal(t, model.ChangeExtend, cl.ChangeType)
	assert.Equal(t, at(12, 0), *cl.OldEnd)
	assert.Equal(t, at(14, 0), *cl.NewEnd)
	assert.True(t, notifier.seen("booking_extended"))
}

func TestExtendConfirmNeverShrinks(t *testing.T) {
	s, id := extendFixture()
	eng := newTestEngine(s)
	ctx := context.Background()

	_, err := eng.ExtendConfirm(ctx, id, at(11, 0))
	assert.ErrorIs(t, err, ErrNotLaterThanCurrentEnd)
	_, err = eng.ExtendConfirm(ctx, id, at(12, 0))
	assert.ErrorIs(t, err, ErrNotLaterThanCurrentEnd)
	assert.Equal(t, at(12, 0), s.booking(id).End)
}

func TestExtendConfirmRevalidatesAvailability(t *testing.T) {
	s, id := extendFixture()
	// Another booking claimed 13:00-14:00 after the preview.
	s.addBooking(model.Booking{
		UserID: 2, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(13, 0), End: at(14, 0),
	})
	eng := newTestEngine(s)

	_, err := eng.ExtendConfirm(context.Background(), id, at(15, 0))
	assert.ErrorIs(t, err, ErrResourceUnavailable)
	assert.Equal(t, at(12, 0), s.booking(id).End, "failed extension must not change the booking")

	// Extending only up to the blocker works: the tail [12:00,13:00)
	// does not overlap a booking that starts at 13:00.
	updated, err := eng.ExtendConfirm(context.Background(), id, at(13, 0))
	require.NoError(t, err)
	assert.Equal(t, at(13, 0), updated.End)
}

func TestExtendConfirmEnforcesWorkingHours(t *testing.T) {
	s, id := extendFixture()
	eng := newTestEngine(s)

	_, err := eng.ExtendConfirm(context.Background(), id, at(23, 30))
	assert.ErrorIs(t, err, ErrOutsideWorkingHours)

	_, err = eng.ExtendConfirm(context.Background(), id, at(14, 10))
	assert.ErrorIs(t, err, ErrInvalidInterval)
}
