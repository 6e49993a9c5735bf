package engine

import (
	"time"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

// Coworking working hours.  Bookings may start no earlier than 06:00
// and must end by 23:00; an end of exactly 23:00 is allowed.
const (
	WorkdayStartHour = 6
	WorkdayEndHour   = 23
)

// Interval is a half-open time span [Start, End).  All engine math
// uses strict half-open overlap, so intervals that merely touch do not
// overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether i and o intersect.  The test is strict on
// both sides: [10:00,11:00) and [11:00,12:00) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Duration returns the span length.
func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// ValidateWindow enforces the working-hours and granularity gate.  The
// checks run in order: a degenerate interval is ErrInvalidInterval; a
// start before 06:00 or an end past 23:00 is ErrOutsideWorkingHours;
// hourly intervals must have both endpoints on a 15-minute grid with
// zero seconds, violations surface as ErrInvalidInterval.  Every
// mutating operation calls this before touching allocation state.
func ValidateWindow(win Interval, timeFormat string) error {
	if !win.End.After(win.Start) {
		return ErrInvalidInterval
	}
	if win.Start.Hour() < WorkdayStartHour {
		return ErrOutsideWorkingHours
	}
	endH := win.End.Hour()
	if endH > WorkdayEndHour ||
		(endH == WorkdayEndHour && (win.End.Minute() > 0 || win.End.Second() > 0 || win.End.Nanosecond() > 0)) {
		return ErrOutsideWorkingHours
	}
	if timeFormat == model.FormatHour {
		if !onQuarterGrid(win.Start) || !onQuarterGrid(win.End) {
			return ErrInvalidInterval
		}
	}
	return nil
}

func onQuarterGrid(t time.Time) bool {
	return t.Minute()%15 == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// workdayBounds returns the 06:00 and 23:00 instants on the calendar
// day that contains t, in t's location.  Best-fit free windows are
// clipped to these bounds.
func workdayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	loc := t.Location()
	start := time.Date(y, m, d, WorkdayStartHour, 0, 0, 0, loc)
	end := time.Date(y, m, d, WorkdayEndHour, 0, 0, 0, loc)
	return start, end
}
