package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/coworking-reservation/internal/engine"
	"github.com/iliyamo/coworking-reservation/internal/model"
)

// OutageRepo stores capacity withdrawals on the resource timeline.
// Outage rows feed every effective-capacity computation, so Create
// commits immediately: the engine requires the row to be visible
// before redistribution decisions read availability.
type OutageRepo struct {
	db *sql.DB
}

// NewOutageRepo returns a new OutageRepo bound to the given database.
func NewOutageRepo(db *sql.DB) *OutageRepo { return &OutageRepo{db: db} }

const outageColumns = `id, resource_id, start_datetime, end_datetime, reason, issue_id, capacity_reduction, created_at`

func scanOutage(row interface{ Scan(...interface{}) error }) (*model.Outage, error) {
	var o model.Outage
	var issueID sql.NullInt64
	if err := row.Scan(&o.ID, &o.ResourceID, &o.Start, &o.End, &o.Reason,
		&issueID, &o.CapacityReduction, &o.CreatedAt); err != nil {
		return nil, err
	}
	if issueID.Valid {
		id := uint64(issueID.Int64)
		o.IssueID = &id
	}
	return &o, nil
}

// Overlapping lists outages on a resource intersecting win. Same
// half-open overlap predicate as bookings: touching does not count.
func (r *OutageRepo) Overlapping(ctx context.Context, resourceID uint64, win engine.Interval) ([]model.Outage, error) {
	const q = `SELECT ` + outageColumns + ` FROM resource_outages
	           WHERE resource_id = ?
	             AND start_datetime < ? AND end_datetime > ?
	           ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q, resourceID, win.End, win.Start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Outage, 0)
	for rows.Next() {
		o, err := scanOutage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Create inserts an outage and populates its ID and CreatedAt.
func (r *OutageRepo) Create(ctx context.Context, o *model.Outage) error {
	const q = `INSERT INTO resource_outages
	           (resource_id, start_datetime, end_datetime, reason, issue_id, capacity_reduction)
	           VALUES (?, ?, ?, ?, ?, ?)`
	var issueID interface{}
	if o.IssueID != nil {
		issueID = *o.IssueID
	}
	res, err := r.db.ExecContext(ctx, q,
		o.ResourceID, o.Start, o.End, o.Reason, issueID, o.CapacityReduction)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	const sel = `SELECT created_at FROM resource_outages WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, o.ID).Scan(&o.CreatedAt)
}

// ListForResource returns every outage recorded for a resource,
// newest first. Used by admin timeline views.
func (r *OutageRepo) ListForResource(ctx context.Context, resourceID uint64) ([]model.Outage, error) {
	const q = `SELECT ` + outageColumns + ` FROM resource_outages
	           WHERE resource_id = ?
	           ORDER BY start_datetime DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Outage, 0)
	for rows.Next() {
		o, err := scanOutage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
