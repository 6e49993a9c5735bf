package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/coworking-reservation/internal/model"
)

// IssueRepo stores user-reported problems. Issue creation time matters
// beyond audit: it becomes the cut point when a broken booking is
// later split onto a replacement resource.
type IssueRepo struct {
	db *sql.DB
}

// NewIssueRepo returns a new IssueRepo bound to the given database.
func NewIssueRepo(db *sql.DB) *IssueRepo { return &IssueRepo{db: db} }

const issueColumns = `id, user_id, booking_id, resource_id, issue_type, description, status, created_at, updated_at`

func scanIssue(row interface{ Scan(...interface{}) error }) (*model.Issue, error) {
	var i model.Issue
	var bookingID, resourceID sql.NullInt64
	if err := row.Scan(&i.ID, &i.UserID, &bookingID, &resourceID,
		&i.IssueType, &i.Description, &i.Status, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		i.BookingID = &id
	}
	if resourceID.Valid {
		id := uint64(resourceID.Int64)
		i.ResourceID = &id
	}
	return &i, nil
}

// Create inserts a new issue with status 'new' and populates its ID
// and timestamps.
func (r *IssueRepo) Create(ctx context.Context, i *model.Issue) error {
	const q = `INSERT INTO issues (user_id, booking_id, resource_id, issue_type, description, status)
	           VALUES (?, ?, ?, ?, ?, 'new')`
	var bookingID, resourceID interface{}
	if i.BookingID != nil {
		bookingID = *i.BookingID
	}
	if i.ResourceID != nil {
		resourceID = *i.ResourceID
	}
	res, err := r.db.ExecContext(ctx, q, i.UserID, bookingID, resourceID, i.IssueType, i.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	i.ID = uint64(id)
	i.Status = model.IssueNew
	const sel = `SELECT created_at, updated_at FROM issues WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, i.ID).Scan(&i.CreatedAt, &i.UpdatedAt)
}

// ByID loads one issue or ErrNotFound.
func (r *IssueRepo) ByID(ctx context.Context, id uint64) (*model.Issue, error) {
	const q = `SELECT ` + issueColumns + ` FROM issues WHERE id = ?`
	i, err := scanIssue(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return i, err
}

// LatestForBooking returns the newest issue raised against the
// booking, or nil when none exists.
func (r *IssueRepo) LatestForBooking(ctx context.Context, bookingID uint64) (*model.Issue, error) {
	const q = `SELECT ` + issueColumns + ` FROM issues
	           WHERE booking_id = ?
	           ORDER BY created_at DESC, id DESC
	           LIMIT 1`
	i, err := scanIssue(r.db.QueryRowContext(ctx, q, bookingID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return i, err
}

// SetStatus transitions an issue (new -> confirmed|rejected, or to
// resolved once the conflict is settled).
func (r *IssueRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	const q = `UPDATE issues SET status = ?, updated_at = NOW() WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// ListByStatus returns issues in one state, oldest first so the admin
// queue is processed in arrival order. Pass an empty status for all.
func (r *IssueRepo) ListByStatus(ctx context.Context, status string) ([]model.Issue, error) {
	q := `SELECT ` + issueColumns + ` FROM issues`
	args := []interface{}{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Issue, 0)
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// ListByUser returns issues reported by one user, newest first.
func (r *IssueRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Issue, error) {
	const q = `SELECT ` + issueColumns + ` FROM issues
	           WHERE user_id = ?
	           ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Issue, 0)
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}
