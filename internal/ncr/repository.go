package ncr

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists NCRs in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InsertTx writes a report using the given transaction so auto-generated
// reports commit or roll back together with their delivery.
func InsertTx(ctx context.Context, tx pgx.Tx, report NCR) (NCR, error) {
	return insert(ctx, tx, report)
}

func insert(ctx context.Context, q execer, report NCR) (NCR, error) {
	err := q.QueryRow(ctx, `INSERT INTO ncrs (ncr_type, status, location_id, supplier_id, delivery_line_id, value, reason, auto_generated, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10) RETURNING id`,
		string(report.Type), string(report.Status), report.LocationID, nullInt(report.SupplierID),
		report.DeliveryLineID, report.Value.String(), report.Reason, report.AutoGenerated,
		nullInt(report.CreatedBy), report.CreatedAt).Scan(&report.ID)
	return report, err
}

// Insert writes a manual report.
func (r *Repository) Insert(ctx context.Context, report NCR) (NCR, error) {
	return insert(ctx, r.pool, report)
}

// Get loads a report.
func (r *Repository) Get(ctx context.Context, id int64) (NCR, error) {
	var report NCR
	var typ, status, value string
	err := r.pool.QueryRow(ctx, `SELECT id, ncr_type, status, location_id, COALESCE(supplier_id,0), delivery_line_id, value::text, reason, auto_generated, COALESCE(created_by,0), created_at, updated_at
FROM ncrs WHERE id=$1`, id).
		Scan(&report.ID, &typ, &status, &report.LocationID, &report.SupplierID, &report.DeliveryLineID,
			&value, &report.Reason, &report.AutoGenerated, &report.CreatedBy, &report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NCR{}, ErrNotFound
		}
		return NCR{}, err
	}
	report.Type = Type(typ)
	report.Status = Status(status)
	if report.Value, err = decimal.NewFromString(value); err != nil {
		return NCR{}, err
	}
	return report, nil
}

// UpdateStatus writes a workflow transition.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ncrs SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns filtered reports, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]NCR, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, ncr_type, status, location_id, COALESCE(supplier_id,0), delivery_line_id, value::text, reason, auto_generated, COALESCE(created_by,0), created_at, updated_at
FROM ncrs
WHERE ($1 = 0 OR location_id = $1)
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR ncr_type = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4`, filter.LocationID, string(filter.Status), string(filter.Type), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	reports := []NCR{}
	for rows.Next() {
		var report NCR
		var typ, status, value string
		if err := rows.Scan(&report.ID, &typ, &status, &report.LocationID, &report.SupplierID, &report.DeliveryLineID,
			&value, &report.Reason, &report.AutoGenerated, &report.CreatedBy, &report.CreatedAt, &report.UpdatedAt); err != nil {
			return nil, err
		}
		report.Type = Type(typ)
		report.Status = Status(status)
		if report.Value, err = decimal.NewFromString(value); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
