package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

func TestConfirmOutageReassignsFutureBookings(t *testing.T) {
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	s.addResource(2, 1, "Desk 2", nil)
	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(10, 0), End: at(12, 0),
	})
	notifier := &memNotifier{}
	eng := newTestEngine(s, WithNotifier(notifier))

	report, err := eng.ConfirmOutage(context.Background(), ConfirmOutageRequest{
		ResourceIDs: []uint64{1},
		Window:      span(9, 0, 17, 0),
		Reason:      model.OutageReasonBroken,
	})
	require.NoError(t, err)

	require.Len(t, report.Outages, 1)
	assert.Equal(t, 1, report.Outages[0].CapacityReduction, "full withdrawal of base capacity")
	require.Len(t, report.Reassigned, 1)
	assert.Empty(t, report.Conflicted)
	assert.Equal(t, uint64(1), report.Reassigned[0].FromResourceID)
	assert.Equal(t, uint64(2), report.Reassigned[0].ToResourceID)

	moved := s.booking(id)
	assert.Equal(t, uint64(2), moved.ResourceID)
	assert.Equal(t, model.StatusActive, moved.Status)
	assert.True(t, notifier.seen("booking_reassigned"))
}

func TestConfirmOutageConflictsWhenNoRoomElsewhere(t *testing.T) {
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	s.addResource(2, 1, "Desk 2", nil)
	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(10, 0), End: at(12, 0),
	})
	// Desk 2 is occupied over the same span.
	s.addBooking(model.Booking{
		UserID: 2, ResourceID: 2, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(9, 0), End: at(13, 0),
	})
	notifier := &memNotifier{}
	eng := newTestEngine(s, WithNotifier(notifier))

	report, err := eng.ConfirmOutage(context.Background(), ConfirmOutageRequest{
		ResourceIDs: []uint64{1},
		Window:      span(9, 0, 17, 0),
		Reason:      model.OutageReasonBroken,
	})
	require.NoError(t, err)
	assert.Empty(t, report.Reassigned)
	require.Len(t, report.Conflicted, 1)
	assert.Equal(t, model.StatusConflicted, s.booking(id).Status)
	assert.True(t, notifier.seen("booking_conflicted"))
}

func TestConfirmOutageProtectsIssueBooking(t *testing.T) {
	// The booking the issue was raised against is conflicted without a
	// reassignment attempt even though a free desk exists.
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	s.addResource(2, 1, "Desk 2", nil)
	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(10, 0), End: at(12, 0),
	})
	issue := s.addIssue(model.Issue{
		UserID: 1, BookingID: &id, IssueType: model.IssueWorkspace,
		Status: model.IssueNew, CreatedAt: at(7, 0),
	})
	eng := newTestEngine(s)

	report, err := eng.ConfirmOutage(context.Background(), ConfirmOutageRequest{
		ResourceIDs: []uint64{1},
		Window:      span(9, 0, 17, 0),
		Reason:      model.OutageReasonIssue,
		Issue:       &issue,
	})
	require.NoError(t, err)
	assert.Empty(t, report.Reassigned)
	require.Len(t, report.Conflicted, 1)
	assert.Equal(t, id, report.Conflicted[0].ID)
	assert.Equal(t, model.StatusConflicted, s.booking(id).Status)
	require.NotNil(t, report.Outages[0].IssueID)
	assert.Equal(t, issue.ID, *report.Outages[0].IssueID)
}

func TestConfirmOutageLeavesDisjointIssueBookingAlone(t *testing.T) {
	// An evening outage confirmed for a morning issue must not conflict
	// the booking the issue was raised on: their intervals never touch.
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(9, 0), End: at(10, 0),
	})
	issue := s.addIssue(model.Issue{
		UserID: 1, BookingID: &id, IssueType: model.IssueWorkspace,
		Status: model.IssueNew, CreatedAt: at(9, 30),
	})
	notifier := &memNotifier{}
	eng := newTestEngine(s, WithNotifier(notifier))

	report, err := eng.ConfirmOutage(context.Background(), ConfirmOutageRequest{
		ResourceIDs: []uint64{1},
		Window:      span(18, 0, 19, 0),
		Reason:      model.OutageReasonIssue,
		Issue:       &issue,
	})
	require.NoError(t, err)
	assert.Empty(t, report.Conflicted)
	assert.Equal(t, model.StatusActive, s.booking(id).Status)
	assert.False(t, notifier.seen("booking_conflicted"))
}

func TestConfirmOutageDoesNotReconflictIssueBooking(t *testing.T) {
	// A protected booking that is already conflicted keeps its status
	// silently: no duplicate report entry and no second notification.
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(10, 0), End: at(12, 0),
		Status: model.StatusConflicted,
	})
	issue := s.addIssue(model.Issue{
		UserID: 1, BookingID: &id, IssueType: model.IssueWorkspace,
		Status: model.IssueNew, CreatedAt: at(7, 0),
	})
	notifier := &memNotifier{}
	eng := newTestEngine(s, WithNotifier(notifier))

	report, err := eng.ConfirmOutage(context.Background(), ConfirmOutageRequest{
		ResourceIDs: []uint64{1},
		Window:      span(9, 0, 17, 0),
		Reason:      model.OutageReasonIssue,
		Issue:       &issue,
	})
	require.NoError(t, err)
	assert.Empty(t, report.Conflicted)
	assert.Equal(t, model.StatusConflicted, s.booking(id).Status)
	assert.False(t, notifier.seen("booking_conflicted"))
}

func TestConfirmOutageSkipsAlreadyStartedBookings(t *testing.T) {
	// The clock is pinned at 08:00; a booking that started at 07:00 is
	// in progress and not part of the automatic redistribution.
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	s.addResource(2, 1, "Desk 2", nil)
	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(7, 0), End: at(12, 0),
	})
	eng := newTestEngine(s)

	report, err := eng.ConfirmOutage(context.Background(), ConfirmOutageRequest{
		ResourceIDs: []uint64{1},
		Window:      span(7, 0, 17, 0),
		Reason:      model.OutageReasonBroken,
	})
	require.NoError(t, err)
	assert.Empty(t, report.Reassigned)
	assert.Empty(t, report.Conflicted)
	assert.Equal(t, model.StatusActive, s.booking(id).Status)
}

func TestConfirmOutageVisibleBeforeDecisions(t *testing.T) {
	// With both desks of the type withdrawn in one confirmation, the
	// second desk cannot absorb bookings from the first: its outage row
	// is already written when the reassignment scan runs.
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	s.addResource(2, 1, "Desk 2", nil)
	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(10, 0), End: at(12, 0),
	})
	eng := newTestEngine(s)

	report, err := eng.ConfirmOutage(context.Background(), ConfirmOutageRequest{
		ResourceIDs: []uint64{2, 1},
		Window:      span(9, 0, 17, 0),
		Reason:      model.OutageReasonMaintenance,
	})
	require.NoError(t, err)
	assert.Empty(t, report.Reassigned)
	require.Len(t, report.Conflicted, 1)
	assert.Equal(t, model.StatusConflicted, s.booking(id).Status)
}

func TestBookingAfterOutageWindowSucceeds(t *testing.T) {
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	eng := newTestEngine(s)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &model.Outage{
		ResourceID: 1, Start: at(9, 0), End: at(17, 0),
		Reason: model.OutageReasonBroken, CapacityReduction: 1,
	}))

	_, err := eng.CreateBooking(ctx, workspaceReq(1, span(10, 0, 11, 0)))
	assert.ErrorIs(t, err, ErrNoResourceAvailable)

	b, err := eng.CreateBooking(ctx, workspaceReq(1, span(18, 0, 19, 0)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.ResourceID)
}

// splitFixture: desk 1 holds a conflicted booking 09:00-15:00 with one
// equipment child, desk 2 is free, and the triggering issue was filed
// at 11:00.
func splitFixture(t *testing.T) (*memStore, uint64, uint64) {
	t.Helper()
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addType(2, 2, "HDMI projector")
	s.addResource(1, 1, "Desk 1", nil)
	s.addResource(2, 1, "Desk 2", nil)
	s.addResource(3, 2, "Projector 1", nil)
	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(9, 0), End: at(15, 0),
		Status: model.StatusConflicted,
	})
	rel := model.ParentRelationEquipment
	childID := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 3, BookingType: model.BookingEquipment,
		TimeFormat: model.FormatHour, Start: at(9, 0), End: at(15, 0),
		ParentBookingID: &id, ParentRelationType: &rel,
	})
	s.addIssue(model.Issue{
		UserID: 1, BookingID: &id, IssueType: model.IssueWorkspace,
		Status: model.IssueConfirmed, CreatedAt: at(11, 0),
	})
	return s, id, childID
}

func TestApplyChangeSplitsAtIssueTime(t *testing.T) {
	s, id, childID := splitFixture(t)
	notifier := &memNotifier{}
	eng := newTestEngine(s, WithNotifier(notifier))

	result, err := eng.ApplyChange(context.Background(), id, nil)
	require.NoError(t, err)

	assert.Equal(t, at(11, 0), result.ClosedBooking.End)
	assert.Equal(t, model.StatusCompleted, result.ClosedBooking.Status)
	assert.Equal(t, at(11, 0), result.NewBooking.Start)
	assert.Equal(t, at(15, 0), result.NewBooking.End)
	assert.Equal(t, model.StatusActive, result.NewBooking.Status)
	assert.Equal(t, uint64(2), result.NewBooking.ResourceID)

	// Store agrees with the returned values.
	closed := s.booking(id)
	assert.Equal(t, at(11, 0), closed.End)
	assert.Equal(t, model.StatusCompleted, closed.Status)

	// The equipment child now hangs off the continuation.
	child := s.booking(childID)
	require.NotNil(t, child.ParentBookingID)
	assert.Equal(t, result.NewBooking.ID, *child.ParentBookingID)

	require.Len(t, s.changes, 1)
	assert.Equal(t, model.ChangeMove, s.changes[0].ChangeType)
	assert.True(t, notifier.seen("booking_split"))
}

func TestApplyChangeHonorsChosenResource(t *testing.T) {
	s, id, _ := splitFixture(t)
	eng := newTestEngine(s)

	chosen := uint64(2)
	result, err := eng.ApplyChange(context.Background(), id, &chosen)
	require.NoError(t, err)
	assert.Equal(t, chosen, result.NewBooking.ResourceID)
}

func TestApplyChangeRejectsBusyChosenResource(t *testing.T) {
	s, id, _ := splitFixture(t)
	// Desk 2 is taken over the remainder.
	s.addBooking(model.Booking{
		UserID: 2, ResourceID: 2, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(11, 0), End: at(16, 0),
	})
	eng := newTestEngine(s)

	chosen := uint64(2)
	_, err := eng.ApplyChange(context.Background(), id, &chosen)
	assert.ErrorIs(t, err, ErrResourceUnavailable)

	// A resource outside the booking's category is rejected the same way.
	outsider := uint64(3)
	_, err = eng.ApplyChange(context.Background(), id, &outsider)
	assert.ErrorIs(t, err, ErrResourceUnavailable)
}

func TestApplyChangeNoCandidateLeftConflicts(t *testing.T) {
	s, id, _ := splitFixture(t)
	s.addBooking(model.Booking{
		UserID: 2, ResourceID: 2, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(11, 0), End: at(16, 0),
	})
	eng := newTestEngine(s)

	_, err := eng.ApplyChange(context.Background(), id, nil)
	assert.ErrorIs(t, err, ErrNoResourceAvailable)
	assert.Equal(t, model.StatusConflicted, s.booking(id).Status, "failed split leaves the booking untouched")
}

func TestApplyChangeNoRoomLeft(t *testing.T) {
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	s.addResource(2, 1, "Desk 2", nil)
	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(9, 0), End: at(12, 0),
		Status: model.StatusConflicted,
	})
	// Issue filed after the booking ended: nothing remains to move.
	s.addIssue(model.Issue{
		UserID: 1, BookingID: &id, IssueType: model.IssueWorkspace,
		Status: model.IssueConfirmed, CreatedAt: at(12, 0),
	})
	eng := newTestEngine(s)

	_, err := eng.ApplyChange(context.Background(), id, nil)
	assert.ErrorIs(t, err, ErrNoRoomLeft)
}

func TestApplyChangeClampsEarlyIssueToStart(t *testing.T) {
	s, id, _ := splitFixture(t)
	// Replace the issue history with one created before the booking
	// started; the cut clamps to the booking start.
	s.issues = nil
	s.addIssue(model.Issue{
		UserID: 1, BookingID: &id, IssueType: model.IssueWorkspace,
		Status: model.IssueConfirmed, CreatedAt: at(6, 0),
	})
	eng := newTestEngine(s)

	result, err := eng.ApplyChange(context.Background(), id, nil)
	require.NoError(t, err)
	assert.Equal(t, at(9, 0), result.ClosedBooking.End)
	assert.Equal(t, at(9, 0), result.NewBooking.Start)
}

func TestApplyChangeWithoutIssueCutsAtNow(t *testing.T) {
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	s.addResource(2, 1, "Desk 2", nil)
	id := s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(9, 0), End: at(15, 0),
	})
	eng := newTestEngine(s, WithClock(func() time.Time { return at(10, 30) }))

	result, err := eng.ApplyChange(context.Background(), id, nil)
	require.NoError(t, err)
	assert.Equal(t, at(10, 30), result.ClosedBooking.End)
	assert.Equal(t, at(10, 30), result.NewBooking.Start)
}

func TestCancelCascadesToEquipmentChildren(t *testing.T) {
	s, id, childID := splitFixture(t)
	notifier := &memNotifier{}
	eng := newTestEngine(s, WithNotifier(notifier))

	require.NoError(t, eng.CancelBooking(context.Background(), id))
	assert.Equal(t, model.StatusCancelled, s.booking(id).Status)
	assert.Equal(t, model.StatusCancelled, s.booking(childID).Status)
	assert.True(t, notifier.seen("booking_cancelled"))

	require.Len(t, s.changes, 1)
	assert.Equal(t, model.ChangeCancel, s.changes[0].ChangeType)

	// A second cancel is rejected.
	assert.ErrorIs(t, eng.CancelBooking(context.Background(), id), ErrInvalidRequest)
}

func TestCapacityInvariantAfterRedistribution(t *testing.T) {
	// After confirming an outage and creating follow-up bookings, the
	// active bookings at any instant never exceed the effective
	// capacity.  Conflicted bookings are excluded: they keep their slot
	// on the withdrawn resource until their owner resolves them.
	s := newMemStore()
	s.addType(1, 1, "fixed desk")
	s.addResource(1, 1, "Desk 1", nil)
	s.addResource(2, 1, "Desk 2", nil)
	s.addBooking(model.Booking{
		UserID: 1, ResourceID: 1, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(10, 0), End: at(12, 0),
	})
	s.addBooking(model.Booking{
		UserID: 2, ResourceID: 2, BookingType: model.BookingWorkspace,
		TimeFormat: model.FormatHour, Start: at(11, 0), End: at(13, 0),
	})
	eng := newTestEngine(s)
	ctx := context.Background()

	_, err := eng.ConfirmOutage(ctx, ConfirmOutageRequest{
		ResourceIDs: []uint64{1},
		Window:      span(9, 0, 17, 0),
		Reason:      model.OutageReasonBroken,
	})
	require.NoError(t, err)

	_, _ = eng.CreateBooking(ctx, workspaceReq(1, span(13, 0, 14, 0)))

	for resID := uint64(1); resID <= 2; resID++ {
		res, err := s.ResourceByID(ctx, resID)
		require.NoError(t, err)
		for hour := 6; hour < 23; hour++ {
			win := span(hour, 0, hour+1, 0)
			effective, err := eng.EffectiveCapacity(ctx, res, win)
			require.NoError(t, err)
			overlapping, err := s.Overlapping(ctx, resID, win, 0)
			require.NoError(t, err)
			active := 0
			for _, b := range overlapping {
				if b.Status == model.StatusActive {
					active++
				}
			}
			if effective < 0 {
				effective = 0
			}
			assert.LessOrEqual(t, active, effective,
				"resource %d over %v", resID, win)
		}
	}
}
