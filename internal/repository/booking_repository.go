package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/coworking-reservation/internal/engine"
	"github.com/iliyamo/coworking-reservation/internal/model"
)

// BookingRepo provides the overlap index and mutation surface for
// bookings. Intervals are half-open [start, end); every overlap
// predicate below is the strict form start < ? AND end > ?, so
// bookings that merely touch do not collide. All timestamps are
// stored as UTC DATETIME columns and scanned back as time.Time via
// parseTime=true on the connection.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// dbtx is the intersection of *sql.DB and *sql.Tx the query helpers
// need, so the same scan code serves both paths.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const bookingColumns = `id, user_id, resource_id, booking_type, time_format,
	start_datetime, end_datetime, status, parent_booking_id, parent_relation_type, created_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (*model.Booking, error) {
	var b model.Booking
	var parentID sql.NullInt64
	var relation sql.NullString
	if err := row.Scan(
		&b.ID, &b.UserID, &b.ResourceID, &b.BookingType, &b.TimeFormat,
		&b.Start, &b.End, &b.Status, &parentID, &relation, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	if parentID.Valid {
		pid := uint64(parentID.Int64)
		b.ParentBookingID = &pid
	}
	if relation.Valid {
		rel := relation.String
		b.ParentRelationType = &rel
	}
	return &b, nil
}

func queryBookings(ctx context.Context, db dbtx, q string, args ...interface{}) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ByID loads a booking of any status. Returns ErrNotFound when no
// such booking exists.
func (r *BookingRepo) ByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return b, err
}

// Overlapping lists capacity-holding bookings on a resource whose
// interval intersects win, ascending id. excludeID removes one booking
// from the answer; id values start at 1, so passing 0 excludes nothing.
func (r *BookingRepo) Overlapping(ctx context.Context, resourceID uint64, win engine.Interval, excludeID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
	           WHERE resource_id = ? AND status IN ('active','conflicted')
	             AND start_datetime < ? AND end_datetime > ?
	             AND id <> ?
	           ORDER BY id ASC`
	return queryBookings(ctx, r.db, q, resourceID, win.End, win.Start, excludeID)
}

// NextAfter returns the earliest capacity-holding booking on the
// resource starting at or after from, or nil when there is none.
func (r *BookingRepo) NextAfter(ctx context.Context, resourceID uint64, from time.Time, excludeID uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
	           WHERE resource_id = ? AND status IN ('active','conflicted')
	             AND start_datetime >= ?
	             AND id <> ?
	           ORDER BY start_datetime ASC, id ASC
	           LIMIT 1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, resourceID, from, excludeID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// LastEndingBefore returns the latest capacity-holding booking on the
// resource with end <= before and end > after, or nil.
func (r *BookingRepo) LastEndingBefore(ctx context.Context, resourceID uint64, before, after time.Time) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
	           WHERE resource_id = ? AND status IN ('active','conflicted')
	             AND end_datetime <= ? AND end_datetime > ?
	           ORDER BY end_datetime DESC, id DESC
	           LIMIT 1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, resourceID, before, after))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// FutureOnResource lists capacity-holding bookings on the resource
// overlapping win with start >= from, ordered by start time. This is
// the redistribution working set after an outage.
func (r *BookingRepo) FutureOnResource(ctx context.Context, resourceID uint64, win engine.Interval, from time.Time) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
	           WHERE resource_id = ? AND status IN ('active','conflicted')
	             AND start_datetime < ? AND end_datetime > ?
	             AND start_datetime >= ?
	           ORDER BY start_datetime ASC, id ASC`
	return queryBookings(ctx, r.db, q, resourceID, win.End, win.Start, from)
}

// ChildEquipment lists capacity-holding equipment bookings parented to
// the given booking, ascending id.
func (r *BookingRepo) ChildEquipment(ctx context.Context, parentID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
	           WHERE parent_booking_id = ? AND status IN ('active','conflicted')
	           ORDER BY id ASC`
	return queryBookings(ctx, r.db, q, parentID)
}

// ListByUser returns every booking owned by the user, newest first.
// Terminal bookings are included so users can see their history.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
	           WHERE user_id = ?
	           ORDER BY created_at DESC, id DESC`
	return queryBookings(ctx, r.db, q, userID)
}

// SetStatus transitions one booking and commits immediately. Used by
// redistribution where each decision stands on its own.
func (r *BookingRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	return setStatus(ctx, r.db, id, status)
}

// Reassign moves a booking onto another resource and forces the given
// status, committing immediately.
func (r *BookingRepo) Reassign(ctx context.Context, id uint64, resourceID uint64, status string) error {
	const q = `UPDATE bookings SET resource_id = ?, status = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, resourceID, status, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// Begin opens a transaction for multi-row mutations that must be
// all-or-nothing. The caller commits or rolls back.
func (r *BookingRepo) Begin(ctx context.Context) (engine.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &bookingTx{tx: tx}, nil
}

func setStatus(ctx context.Context, db dbtx, id uint64, status string) error {
	const q = `UPDATE bookings SET status = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// bookingTx wraps one *sql.Tx behind the engine's transactional
// surface. Everything written through it becomes visible at Commit.
type bookingTx struct {
	tx *sql.Tx
}

// Create inserts a booking and populates its ID and CreatedAt.
func (t *bookingTx) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings
	           (user_id, resource_id, booking_type, time_format, start_datetime, end_datetime,
	            status, parent_booking_id, parent_relation_type)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var parentID interface{}
	var relation interface{}
	if b.ParentBookingID != nil {
		parentID = *b.ParentBookingID
	}
	if b.ParentRelationType != nil {
		relation = *b.ParentRelationType
	}
	res, err := t.tx.ExecContext(ctx, q,
		b.UserID, b.ResourceID, b.BookingType, b.TimeFormat, b.Start, b.End,
		b.Status, parentID, relation)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	// Query back created_at to pick up the database default.
	const sel = `SELECT created_at FROM bookings WHERE id = ?`
	return t.tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt)
}

// SetStatus transitions a booking inside the transaction.
func (t *bookingTx) SetStatus(ctx context.Context, id uint64, status string) error {
	return setStatus(ctx, t.tx, id, status)
}

// TruncateEnd shortens a booking to end and sets its status. Splits
// use this to close the served part of a broken booking.
func (t *bookingTx) TruncateEnd(ctx context.Context, id uint64, end time.Time, status string) error {
	const q = `UPDATE bookings SET end_datetime = ?, status = ? WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, q, end, status, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// UpdateEnd moves a booking end forward.
func (t *bookingTx) UpdateEnd(ctx context.Context, id uint64, end time.Time) error {
	const q = `UPDATE bookings SET end_datetime = ? WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, q, end, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// Reparent attaches a child booking to a new parent.
func (t *bookingTx) Reparent(ctx context.Context, id uint64, parentID uint64) error {
	const q = `UPDATE bookings SET parent_booking_id = ? WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, q, parentID, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// AppendChange writes one change-log entry. The log is append-only;
// there is no update or delete path.
func (t *bookingTx) AppendChange(ctx context.Context, cl *model.BookingChangeLog) error {
	const q = `INSERT INTO booking_change_logs
	           (booking_id, change_type, old_start, old_end, new_start, new_end)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q,
		cl.BookingID, cl.ChangeType,
		nullTime(cl.OldStart), nullTime(cl.OldEnd),
		nullTime(cl.NewStart), nullTime(cl.NewEnd))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	cl.ID = uint64(id)
	return nil
}

func (t *bookingTx) Commit() error   { return t.tx.Commit() }
func (t *bookingTx) Rollback() error { return t.tx.Rollback() }

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// ListChanges returns the change log for one booking, oldest first.
func (r *BookingRepo) ListChanges(ctx context.Context, bookingID uint64) ([]model.BookingChangeLog, error) {
	const q = `SELECT id, booking_id, change_type, old_start, old_end, new_start, new_end, created_at
	           FROM booking_change_logs
	           WHERE booking_id = ?
	           ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BookingChangeLog, 0)
	for rows.Next() {
		var cl model.BookingChangeLog
		var oldStart, oldEnd, newStart, newEnd sql.NullTime
		if err := rows.Scan(&cl.ID, &cl.BookingID, &cl.ChangeType,
			&oldStart, &oldEnd, &newStart, &newEnd, &cl.CreatedAt); err != nil {
			return nil, err
		}
		if oldStart.Valid {
			v := oldStart.Time
			cl.OldStart = &v
		}
		if oldEnd.Valid {
			v := oldEnd.Time
			cl.OldEnd = &v
		}
		if newStart.Valid {
			v := newStart.Time
			cl.NewStart = &v
		}
		if newEnd.Valid {
			v := newEnd.Time
			cl.NewEnd = &v
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}
