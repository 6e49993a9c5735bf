package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

func TestEffectiveCapacitySubtractsOutages(t *testing.T) {
	s := newMemStore()
	s.addType(1, 1, "open space desk")
	s.addResource(1, 1, "Hall A", intp(10))
	eng := newTestEngine(s)
	ctx := context.Background()

	res, err := s.ResourceByID(ctx, 1)
	require.NoError(t, err)

	got, err := eng.EffectiveCapacity(ctx, res, span(9, 0, 17, 0))
	require.NoError(t, err)
	assert.Equal(t, 10, got)

	require.NoError(t, s.Create(ctx, &model.Outage{
		ResourceID: 1, Start: at(12, 0), End: at(14, 0),
		Reason: model.OutageReasonMaintenance, CapacityReduction: 4,
	}))

	got, err = eng.EffectiveCapacity(ctx, res, span(9, 0, 17, 0))
	require.NoError(t, err)
	assert.Equal(t, 6, got)

	// An outage that only touches the window does not reduce it.
	got, err = eng.EffectiveCapacity(ctx, res, span(14, 0, 17, 0))
	require.NoError(t, err)
	assert.Equal(t, 10, got)
}

func TestEffectiveCapacityNilMeansExclusive(t *testing.T) {
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	eng := newTestEngine(s)
	ctx := context.Background()

	res, _ := s.ResourceByID(ctx, 1)
	got, err := eng.EffectiveCapacity(ctx, res, span(9, 0, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestFreeCapacityCountsOverlappingBookings(t *testing.T) {
	s := newMemStore()
	s.addType(1, 1, "meeting room")
	s.addResource(1, 1, "Room 1", intp(2))
	eng := newTestEngine(s)
	ctx := context.Background()

	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(9, 0), End: at(10, 0),
	})

	res, _ := s.ResourceByID(ctx, 1)
	free, err := eng.FreeCapacity(ctx, res, span(9, 30, 10, 30), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, free)

	// Excluding the booking restores its slot.
	free, err = eng.FreeCapacity(ctx, res, span(9, 30, 10, 30), id)
	require.NoError(t, err)
	assert.Equal(t, 2, free)

	// A touching booking does not consume the window.
	free, err = eng.FreeCapacity(ctx, res, span(10, 0, 11, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, free)
}

func TestFreeCapacityFloorsAtZero(t *testing.T) {
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	eng := newTestEngine(s)
	ctx := context.Background()

	// Full withdrawal makes free capacity zero even with no bookings.
	require.NoError(t, s.Create(ctx, &model.Outage{
		ResourceID: 1, Start: at(9, 0), End: at(17, 0),
		Reason: model.OutageReasonBroken, CapacityReduction: 1,
	}))
	res, _ := s.ResourceByID(ctx, 1)
	free, err := eng.FreeCapacity(ctx, res, span(9, 0, 10, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, free)
}

func TestCheckAvailabilityReportsPerResource(t *testing.T) {
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	s.addResource(2, 1, "Desk 2", nil)
	eng := newTestEngine(s)
	ctx := context.Background()

	s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(9, 0), End: at(11, 0),
	})

	rows, err := eng.CheckAvailability(ctx, 1, span(10, 0, 12, 0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(1), rows[0].Resource.ID)
	assert.Equal(t, 0, rows[0].FreeCapacity)
	assert.Equal(t, 1, rows[0].EffectiveCapacity)
	assert.Equal(t, uint64(2), rows[1].Resource.ID)
	assert.Equal(t, 1, rows[1].FreeCapacity)
}

func TestCheckAvailabilityRejectsBadInput(t *testing.T) {
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	eng := newTestEngine(s)
	ctx := context.Background()

	_, err := eng.CheckAvailability(ctx, 1, Interval{Start: at(12, 0), End: at(12, 0)})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = eng.CheckAvailability(ctx, 99, span(9, 0, 10, 0))
	assert.ErrorIs(t, err, ErrTypeNotFound)
}
