package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/coworking-reservation/internal/engine"
	"github.com/iliyamo/coworking-reservation/internal/model"
)

// ResourceRepo provides read access to the resource catalog: categories,
// types and the physical resources themselves. The catalog is reference
// data; resources are created and retired by administrators, so the
// engine only ever reads it. List methods return rows in ascending id
// order, which the allocation tie-break relies on.
type ResourceRepo struct {
	db *sql.DB
}

// NewResourceRepo returns a new ResourceRepo bound to the given database.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

const resourceColumns = `id, type_id, name, zone, capacity, status`

func scanResource(row interface{ Scan(...interface{}) error }) (*model.Resource, error) {
	var res model.Resource
	var zone sql.NullString
	var capacity sql.NullInt64
	if err := row.Scan(&res.ID, &res.TypeID, &res.Name, &zone, &capacity, &res.Status); err != nil {
		return nil, err
	}
	if zone.Valid {
		z := zone.String
		res.Zone = &z
	}
	if capacity.Valid {
		c := int(capacity.Int64)
		res.Capacity = &c
	}
	return &res, nil
}

// ResourceByID loads one resource regardless of status. Returns
// ErrNotFound when no such resource exists.
func (r *ResourceRepo) ResourceByID(ctx context.Context, id uint64) (*model.Resource, error) {
	const q = `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`
	res, err := scanResource(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return res, err
}

// TypeByID loads a resource type. The engine contract maps a missing
// row to engine.ErrTypeNotFound so callers can reject the request as a
// validation failure rather than a lookup error.
func (r *ResourceRepo) TypeByID(ctx context.Context, id uint64) (*model.ResourceType, error) {
	const q = `SELECT id, category_id, name, description FROM resource_types WHERE id = ?`
	var t model.ResourceType
	var desc sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.CategoryID, &t.Name, &desc)
	if err == sql.ErrNoRows {
		return nil, engine.ErrTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		d := desc.String
		t.Description = &d
	}
	return &t, nil
}

// ActiveByType lists active resources of one type, ascending id.
func (r *ResourceRepo) ActiveByType(ctx context.Context, typeID uint64) ([]model.Resource, error) {
	const q = `SELECT ` + resourceColumns + ` FROM resources
	           WHERE type_id = ? AND status = 'active'
	           ORDER BY id ASC`
	return r.queryResources(ctx, q, typeID)
}

// ActiveByCategory lists active resources across every type of a
// category, ascending id.
func (r *ResourceRepo) ActiveByCategory(ctx context.Context, categoryID uint64) ([]model.Resource, error) {
	const q = `SELECT r.id, r.type_id, r.name, r.zone, r.capacity, r.status
	           FROM resources r
	           JOIN resource_types t ON t.id = r.type_id
	           WHERE t.category_id = ? AND r.status = 'active'
	           ORDER BY r.id ASC`
	return r.queryResources(ctx, q, categoryID)
}

func (r *ResourceRepo) queryResources(ctx context.Context, q string, args ...interface{}) ([]model.Resource, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Resource, 0)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// ListTypes returns every resource type, optionally filtered by
// category (pass 0 for all), ascending id. Used by catalog endpoints.
func (r *ResourceRepo) ListTypes(ctx context.Context, categoryID uint64) ([]model.ResourceType, error) {
	q := `SELECT id, category_id, name, description FROM resource_types`
	args := []interface{}{}
	if categoryID != 0 {
		q += ` WHERE category_id = ?`
		args = append(args, categoryID)
	}
	q += ` ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ResourceType, 0)
	for rows.Next() {
		var t model.ResourceType
		var desc sql.NullString
		if err := rows.Scan(&t.ID, &t.CategoryID, &t.Name, &desc); err != nil {
			return nil, err
		}
		if desc.Valid {
			d := desc.String
			t.Description = &d
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListCategories returns every resource category, ascending id.
func (r *ResourceRepo) ListCategories(ctx context.Context) ([]model.ResourceCategory, error) {
	const q = `SELECT id, code, name FROM resource_categories ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ResourceCategory, 0)
	for rows.Next() {
		var c model.ResourceCategory
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetStatus updates a resource's status (active, broken, maintenance).
// Confirming an issue marks the affected resources broken through this.
func (r *ResourceRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	const q = `UPDATE resources SET status = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
