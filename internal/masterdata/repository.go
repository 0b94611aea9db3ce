package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxRepository persists master data in PostgreSQL.
type PgxRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgxRepository.
func NewRepository(pool *pgxpool.Pool) *PgxRepository {
	return &PgxRepository{pool: pool}
}

func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCode
	}
	return err
}

// CreateItem inserts an item.
func (r *PgxRepository) CreateItem(ctx context.Context, item Item) (Item, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO items (code, name, uom, category, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		item.Code, item.Name, string(item.UoM), item.Category, item.Active, item.CreatedAt, item.UpdatedAt).Scan(&item.ID)
	if err != nil {
		return Item{}, translateUnique(err)
	}
	return item, nil
}

// UpdateItem writes mutable item fields.
func (r *PgxRepository) UpdateItem(ctx context.Context, item Item) error {
	tag, err := r.pool.Exec(ctx, `UPDATE items SET name=$2, uom=$3, category=$4, active=$5, updated_at=$6 WHERE id=$1`,
		item.ID, item.Name, string(item.UoM), item.Category, item.Active, item.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItem loads an item.
func (r *PgxRepository) GetItem(ctx context.Context, id int64) (Item, error) {
	var item Item
	var uom string
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, uom, COALESCE(category,''), active, created_at, updated_at FROM items WHERE id=$1`, id).
		Scan(&item.ID, &item.Code, &item.Name, &uom, &item.Category, &item.Active, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	item.UoM = UoM(uom)
	return item, nil
}

// ListItems returns filtered items ordered by code.
func (r *PgxRepository) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, uom, COALESCE(category,''), active, created_at, updated_at
FROM items
WHERE ($1 = '' OR code ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')
  AND (NOT $2 OR active)
ORDER BY code
LIMIT $3 OFFSET $4`, filter.Search, filter.ActiveOnly, normalizeLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		var uom string
		if err := rows.Scan(&item.ID, &item.Code, &item.Name, &uom, &item.Category, &item.Active, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.UoM = UoM(uom)
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateLocation inserts a location.
func (r *PgxRepository) CreateLocation(ctx context.Context, loc Location) (Location, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO locations (code, name, location_type, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		loc.Code, loc.Name, string(loc.Type), loc.Active, loc.CreatedAt, loc.UpdatedAt).Scan(&loc.ID)
	if err != nil {
		return Location{}, translateUnique(err)
	}
	return loc, nil
}

// UpdateLocation writes mutable location fields.
func (r *PgxRepository) UpdateLocation(ctx context.Context, loc Location) error {
	tag, err := r.pool.Exec(ctx, `UPDATE locations SET name=$2, location_type=$3, active=$4, updated_at=$5 WHERE id=$1`,
		loc.ID, loc.Name, string(loc.Type), loc.Active, loc.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetLocation loads a location.
func (r *PgxRepository) GetLocation(ctx context.Context, id int64) (Location, error) {
	var loc Location
	var typ string
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, location_type, active, created_at, updated_at FROM locations WHERE id=$1`, id).
		Scan(&loc.ID, &loc.Code, &loc.Name, &typ, &loc.Active, &loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrNotFound
		}
		return Location{}, err
	}
	loc.Type = LocationType(typ)
	return loc, nil
}

// ListLocations returns filtered locations ordered by code.
func (r *PgxRepository) ListLocations(ctx context.Context, filter ListFilter) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, location_type, active, created_at, updated_at
FROM locations
WHERE ($1 = '' OR code ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')
  AND (NOT $2 OR active)
ORDER BY code
LIMIT $3 OFFSET $4`, filter.Search, filter.ActiveOnly, normalizeLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	locations := []Location{}
	for rows.Next() {
		var loc Location
		var typ string
		if err := rows.Scan(&loc.ID, &loc.Code, &loc.Name, &typ, &loc.Active, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
			return nil, err
		}
		loc.Type = LocationType(typ)
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// CreateSupplier inserts a supplier.
func (r *PgxRepository) CreateSupplier(ctx context.Context, sup Supplier) (Supplier, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers (code, name, contact, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		sup.Code, sup.Name, sup.Contact, sup.Active, sup.CreatedAt, sup.UpdatedAt).Scan(&sup.ID)
	if err != nil {
		return Supplier{}, translateUnique(err)
	}
	return sup, nil
}

// UpdateSupplier writes mutable supplier fields.
func (r *PgxRepository) UpdateSupplier(ctx context.Context, sup Supplier) error {
	tag, err := r.pool.Exec(ctx, `UPDATE suppliers SET name=$2, contact=$3, active=$4, updated_at=$5 WHERE id=$1`,
		sup.ID, sup.Name, sup.Contact, sup.Active, sup.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSupplier loads a supplier.
func (r *PgxRepository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var sup Supplier
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, COALESCE(contact,''), active, created_at, updated_at FROM suppliers WHERE id=$1`, id).
		Scan(&sup.ID, &sup.Code, &sup.Name, &sup.Contact, &sup.Active, &sup.CreatedAt, &sup.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrNotFound
		}
		return Supplier{}, err
	}
	return sup, nil
}

// ListSuppliers returns filtered suppliers ordered by code.
func (r *PgxRepository) ListSuppliers(ctx context.Context, filter ListFilter) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, COALESCE(contact,''), active, created_at, updated_at
FROM suppliers
WHERE ($1 = '' OR code ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')
  AND (NOT $2 OR active)
ORDER BY code
LIMIT $3 OFFSET $4`, filter.Search, filter.ActiveOnly, normalizeLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	suppliers := []Supplier{}
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.Code, &sup.Name, &sup.Contact, &sup.Active, &sup.CreatedAt, &sup.UpdatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
