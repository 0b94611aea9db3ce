package issue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/ledger"
	"github.com/galley-erp/galley-erp/internal/platform/db"
)

// Repository persists issues in PostgreSQL.
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

func (t *txRepository) InsertIssue(ctx context.Context, iss Issue) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO issues (id, location_id, cost_centre, period_id, note, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		iss.ID, iss.LocationID, iss.CostCentre, iss.PeriodID, nullString(iss.Note), iss.PostedBy, iss.PostedAt)
	return err
}

func (t *txRepository) InsertLine(ctx context.Context, line Line) (Line, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO issue_lines (issue_id, item_id, qty, unit_cost, value)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		line.IssueID, line.ItemID, line.Qty.String(), line.UnitCost.String(), line.Value.String()).Scan(&line.ID)
	return line, err
}

// Get loads an issue with its lines.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Issue, error) {
	var iss Issue
	err := r.pool.QueryRow(ctx, `SELECT id, location_id, cost_centre, period_id, COALESCE(note,''), posted_by, posted_at
FROM issues WHERE id=$1`, id).
		Scan(&iss.ID, &iss.LocationID, &iss.CostCentre, &iss.PeriodID, &iss.Note, &iss.PostedBy, &iss.PostedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Issue{}, ErrNotFound
		}
		return Issue{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, issue_id, item_id, qty::text, unit_cost::text, value::text
FROM issue_lines WHERE issue_id=$1 ORDER BY id`, id)
	if err != nil {
		return Issue{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		var qty, unitCost, value string
		if err := rows.Scan(&line.ID, &line.IssueID, &line.ItemID, &qty, &unitCost, &value); err != nil {
			return Issue{}, err
		}
		if line.Qty, err = decimal.NewFromString(qty); err != nil {
			return Issue{}, err
		}
		if line.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
			return Issue{}, err
		}
		if line.Value, err = decimal.NewFromString(value); err != nil {
			return Issue{}, err
		}
		iss.Lines = append(iss.Lines, line)
	}
	return iss, rows.Err()
}

// List returns issue headers, newest first. Lines are loaded on Get.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Issue, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, location_id, cost_centre, period_id, COALESCE(note,''), posted_by, posted_at
FROM issues
WHERE ($1 = 0 OR location_id = $1)
  AND ($2 = 0 OR period_id = $2)
  AND ($3 = '' OR cost_centre = $3)
ORDER BY posted_at DESC, id DESC
LIMIT $4`, filter.LocationID, filter.PeriodID, filter.CostCentre, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	issues := []Issue{}
	for rows.Next() {
		var iss Issue
		if err := rows.Scan(&iss.ID, &iss.LocationID, &iss.CostCentre, &iss.PeriodID, &iss.Note, &iss.PostedBy, &iss.PostedAt); err != nil {
			return nil, err
		}
		issues = append(issues, iss)
	}
	return issues, rows.Err()
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
