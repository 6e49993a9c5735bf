package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

// memStore is an in-memory implementation of every store interface the
// engine needs.  Tests run the full allocation logic against it
// without a database.
type memStore struct {
	mu        sync.Mutex
	types     map[uint64]model.ResourceType
	resources map[uint64]model.Resource
	bookings  map[uint64]*model.Booking
	outages   []model.Outage
	issues    []model.Issue
	changes   []model.BookingChangeLog

	nextBookingID uint64
	nextOutageID  uint64
}

var errMemNotFound = errors.New("record not found")

func newMemStore() *memStore {
	return &memStore{
		types:         make(map[uint64]model.ResourceType),
		resources:     make(map[uint64]model.Resource),
		bookings:      make(map[uint64]*model.Booking),
		nextBookingID: 1,
		nextOutageID:  1,
	}
}

func (s *memStore) addType(id, categoryID uint64, name string) {
	s.types[id] = model.ResourceType{ID: id, CategoryID: categoryID, Name: name}
}

func (s *memStore) addResource(id, typeID uint64, name string, capacity *int) {
	s.resources[id] = model.Resource{ID: id, TypeID: typeID, Name: name, Capacity: capacity, Status: model.ResourceActive}
}

func (s *memStore) addBooking(b model.Booking) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.nextBookingID
	s.nextBookingID++
	if b.Status == "" {
		b.Status = model.StatusActive
	}
	copied := b
	s.bookings[copied.ID] = &copied
	return copied.ID
}

func (s *memStore) addIssue(i model.Issue) model.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	i.ID = uint64(len(s.issues) + 1)
	s.issues = append(s.issues, i)
	return i
}

func (s *memStore) booking(id uint64) model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bookings[id]
}

func (s *memStore) bookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

// ----- Catalog -----

func (s *memStore) ResourceByID(_ context.Context, id uint64) (*model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return nil, errMemNotFound
	}
	copied := r
	return &copied, nil
}

func (s *memStore) TypeByID(_ context.Context, id uint64) (*model.ResourceType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[id]
	if !ok {
		return nil, ErrTypeNotFound
	}
	copied := t
	return &copied, nil
}

func (s *memStore) ActiveByType(_ context.Context, typeID uint64) ([]model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Resource, 0)
	for _, r := range s.resources {
		if r.TypeID == typeID && r.Status == model.ResourceActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ActiveByCategory(_ context.Context, categoryID uint64) ([]model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Resource, 0)
	for _, r := range s.resources {
		t, ok := s.types[r.TypeID]
		if ok && t.CategoryID == categoryID && r.Status == model.ResourceActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ----- BookingStore -----

func (s *memStore) ByID(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, errMemNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *memStore) Overlapping(_ context.Context, resourceID uint64, win Interval, excludeID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.ResourceID != resourceID || !b.Occupies() || b.ID == excludeID {
			continue
		}
		if (Interval{Start: b.Start, End: b.End}).Overlaps(win) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) NextAfter(_ context.Context, resourceID uint64, from time.Time, excludeID uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.Booking
	for _, b := range s.bookings {
		if b.ResourceID != resourceID || !b.Occupies() || b.ID == excludeID || b.Start.Before(from) {
			continue
		}
		if best == nil || b.Start.Before(best.Start) || (b.Start.Equal(best.Start) && b.ID < best.ID) {
			best = b
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (s *memStore) LastEndingBefore(_ context.Context, resourceID uint64, before, after time.Time) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.Booking
	for _, b := range s.bookings {
		if b.ResourceID != resourceID || !b.Occupies() {
			continue
		}
		if b.End.After(before) || !b.End.After(after) {
			continue
		}
		if best == nil || b.End.After(best.End) {
			best = b
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (s *memStore) FutureOnResource(_ context.Context, resourceID uint64, win Interval, from time.Time) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.ResourceID != resourceID || !b.Occupies() || b.Start.Before(from) {
			continue
		}
		if (Interval{Start: b.Start, End: b.End}).Overlaps(win) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (s *memStore) ChildEquipment(_ context.Context, parentID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.ParentBookingID != nil && *b.ParentBookingID == parentID && b.Occupies() {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) SetStatus(_ context.Context, id uint64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return errMemNotFound
	}
	b.Status = status
	return nil
}

func (s *memStore) Reassign(_ context.Context, id uint64, resourceID uint64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return errMemNotFound
	}
	b.ResourceID = resourceID
	b.Status = status
	return nil
}

func (s *memStore) Begin(_ context.Context) (Tx, error) {
	return &memTx{store: s}, nil
}

// memTx stages mutations and applies them at Commit, mirroring the
// visibility rules of a real transaction.  Created bookings get their
// ids immediately so the engine can link children to parents before
// committing.
type memTx struct {
	store  *memStore
	staged []func()
}

func (t *memTx) Create(_ context.Context, b *model.Booking) error {
	t.store.mu.Lock()
	b.ID = t.store.nextBookingID
	t.store.nextBookingID++
	t.store.mu.Unlock()
	copied := *b
	t.staged = append(t.staged, func() {
		row := copied
		t.store.bookings[row.ID] = &row
	})
	return nil
}

func (t *memTx) SetStatus(_ context.Context, id uint64, status string) error {
	t.staged = append(t.staged, func() {
		if b, ok := t.store.bookings[id]; ok {
			b.Status = status
		}
	})
	return nil
}

func (t *memTx) TruncateEnd(_ context.Context, id uint64, end time.Time, status string) error {
	t.staged = append(t.staged, func() {
		if b, ok := t.store.bookings[id]; ok {
			b.End = end
			b.Status = status
		}
	})
	return nil
}

func (t *memTx) UpdateEnd(_ context.Context, id uint64, end time.Time) error {
	t.staged = append(t.staged, func() {
		if b, ok := t.store.bookings[id]; ok {
			b.End = end
		}
	})
	return nil
}

func (t *memTx) Reparent(_ context.Context, id uint64, parentID uint64) error {
	t.staged = append(t.staged, func() {
		if b, ok := t.store.bookings[id]; ok {
			pid := parentID
			b.ParentBookingID = &pid
		}
	})
	return nil
}

func (t *memTx) AppendChange(_ context.Context, cl *model.BookingChangeLog) error {
	copied := *cl
	t.staged = append(t.staged, func() {
		copied.ID = uint64(len(t.store.changes) + 1)
		t.store.changes = append(t.store.changes, copied)
	})
	return nil
}

func (t *memTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, apply := range t.staged {
		apply()
	}
	t.staged = nil
	return nil
}

func (t *memTx) Rollback() error {
	t.staged = nil
	return nil
}

// ----- OutageStore -----

func (s *memStore) OverlappingOutages(_ context.Context, resourceID uint64, win Interval) ([]model.Outage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Outage, 0)
	for _, o := range s.outages {
		if o.ResourceID == resourceID && (Interval{Start: o.Start, End: o.End}).Overlaps(win) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, o *model.Outage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.nextOutageID
	s.nextOutageID++
	s.outages = append(s.outages, *o)
	return nil
}

// ----- IssueStore -----

func (s *memStore) LatestForBooking(_ context.Context, bookingID uint64) (*model.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.Issue
	for i := range s.issues {
		iss := &s.issues[i]
		if iss.BookingID == nil || *iss.BookingID != bookingID {
			continue
		}
		if best == nil || iss.CreatedAt.After(best.CreatedAt) {
			best = iss
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

// memOutages adapts memStore to the OutageStore interface.  The method
// set clashes with BookingStore's Overlapping, so the adapter renames.
type memOutages struct{ s *memStore }

func (m memOutages) Overlapping(ctx context.Context, resourceID uint64, win Interval) ([]model.Outage, error) {
	return m.s.OverlappingOutages(ctx, resourceID, win)
}

func (m memOutages) Create(ctx context.Context, o *model.Outage) error {
	return m.s.Create(ctx, o)
}

// memNotifier records notifications for assertions.
type memNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *memNotifier) Notify(_ context.Context, event string, _ uint64, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *memNotifier) seen(event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

// ----- helpers -----

// testDay is an arbitrary weekday all interval tests build on.
var testDay = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func span(h0, m0, h1, m1 int) Interval {
	return Interval{Start: at(h0, m0), End: at(h1, m1)}
}

func intp(v int) *int { return &v }

func newTestEngine(s *memStore, opts ...Option) *Engine {
	base := []Option{
		WithIssues(s),
		WithClock(func() time.Time { return at(8, 0) }),
	}
	return New(s, s, memOutages{s}, nil, append(base, opts...)...)
}
