package delivery

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/ledger"
	"github.com/galley-erp/galley-erp/internal/ncr"
	"github.com/galley-erp/galley-erp/internal/platform/db"
)

// Repository persists deliveries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
	*ledger.PgxStore
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, PgxStore: ledger.NewPgxStore(tx)})
	})
}

func (t *txRepository) InsertDelivery(ctx context.Context, d Delivery) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO deliveries (id, location_id, supplier_id, period_id, reference, note, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.LocationID, d.SupplierID, d.PeriodID, d.Reference, nullString(d.Note), d.PostedBy, d.PostedAt)
	return err
}

func (t *txRepository) InsertLine(ctx context.Context, line Line) (Line, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO delivery_lines (delivery_id, item_id, qty, unit_price, line_value, period_price, variance_delta, variance_pct)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		line.DeliveryID, line.ItemID, line.Qty.String(), line.UnitPrice.String(), line.LineValue.String(),
		nullDecimal(line.PeriodPrice), nullDecimal(line.VarianceDelta), nullDecimal(line.VariancePct)).Scan(&line.ID)
	return line, err
}

func (t *txRepository) InsertNCR(ctx context.Context, report ncr.NCR) (ncr.NCR, error) {
	return ncr.InsertTx(ctx, t.tx, report)
}

// Get loads a delivery with its lines.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Delivery, error) {
	var d Delivery
	err := r.pool.QueryRow(ctx, `SELECT id, location_id, supplier_id, period_id, reference, COALESCE(note,''), posted_by, posted_at
FROM deliveries WHERE id=$1`, id).
		Scan(&d.ID, &d.LocationID, &d.SupplierID, &d.PeriodID, &d.Reference, &d.Note, &d.PostedBy, &d.PostedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, ErrNotFound
		}
		return Delivery{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, delivery_id, item_id, qty::text, unit_price::text, line_value::text, period_price::text, variance_delta::text, variance_pct::text
FROM delivery_lines WHERE delivery_id=$1 ORDER BY id`, id)
	if err != nil {
		return Delivery{}, err
	}
	defer rows.Close()
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return Delivery{}, err
		}
		d.Lines = append(d.Lines, line)
	}
	return d, rows.Err()
}

// List returns delivery headers, newest first. Lines are loaded on Get.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Delivery, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, location_id, supplier_id, period_id, reference, COALESCE(note,''), posted_by, posted_at
FROM deliveries
WHERE ($1 = 0 OR location_id = $1)
  AND ($2 = 0 OR supplier_id = $2)
  AND ($3 = 0 OR period_id = $3)
ORDER BY posted_at DESC, id DESC
LIMIT $4`, filter.LocationID, filter.SupplierID, filter.PeriodID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	deliveries := []Delivery{}
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.LocationID, &d.SupplierID, &d.PeriodID, &d.Reference, &d.Note, &d.PostedBy, &d.PostedAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func scanLine(rows pgx.Rows) (Line, error) {
	var line Line
	var qty, unitPrice, lineValue string
	var periodPrice, varianceDelta, variancePct *string
	if err := rows.Scan(&line.ID, &line.DeliveryID, &line.ItemID, &qty, &unitPrice, &lineValue,
		&periodPrice, &varianceDelta, &variancePct); err != nil {
		return Line{}, err
	}
	var err error
	if line.Qty, err = decimal.NewFromString(qty); err != nil {
		return Line{}, err
	}
	if line.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return Line{}, err
	}
	if line.LineValue, err = decimal.NewFromString(lineValue); err != nil {
		return Line{}, err
	}
	if line.PeriodPrice, err = parseDecimal(periodPrice); err != nil {
		return Line{}, err
	}
	if line.VarianceDelta, err = parseDecimal(varianceDelta); err != nil {
		return Line{}, err
	}
	if line.VariancePct, err = parseDecimal(variancePct); err != nil {
		return Line{}, err
	}
	return line, nil
}

func parseDecimal(value *string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullDecimal(value *decimal.Decimal) any {
	if value == nil {
		return nil
	}
	return value.String()
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
