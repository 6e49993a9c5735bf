package engine

import (
	"context"
	"time"
)

// Engine wires the stores, the locker and the notifier into the
// availability and conflict-resolution operations.  All dependencies
// except the issue store and notifier are required; a nil notifier
// drops notifications and a nil issue store makes splits cut at the
// current time.
type Engine struct {
	catalog  Catalog
	bookings BookingStore
	outages  OutageStore
	issues   IssueStore
	locker   ResourceLocker
	notifier Notifier

	// now is the clock used for "future" decisions during
	// redistribution and for split cut points.  Tests pin it.
	now func() time.Time
}

// Option customizes an Engine at construction time.
type Option func(*Engine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIssues attaches the issue lookup used to derive split cut times.
func WithIssues(s IssueStore) Option {
	return func(e *Engine) { e.issues = s }
}

// WithNotifier attaches the notification sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// New constructs an Engine.  catalog, bookings and outages must be
// non-nil; locker may be nil, in which case an in-process keyed mutex
// is used.
func New(catalog Catalog, bookings BookingStore, outages OutageStore, locker ResourceLocker, opts ...Option) *Engine {
	if catalog == nil || bookings == nil || outages == nil {
		panic("nil store passed to engine.New")
	}
	if locker == nil {
		locker = NewKeyedMutex()
	}
	e := &Engine{
		catalog:  catalog,
		bookings: bookings,
		outages:  outages,
		locker:   locker,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// notify forwards to the configured notifier, if any.  Notification is
// a post-commit side effect; there is nothing to do on failure.
func (e *Engine) notify(ctx context.Context, event string, userID uint64, title, message string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(ctx, event, userID, title, message)
}
