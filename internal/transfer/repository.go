package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/ledger"
	"github.com/galley-erp/galley-erp/internal/platform/db"
)

// Repository persists transfers in PostgreSQL.
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

func (t *txRepository) InsertTransfer(ctx context.Context, tr Transfer) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO transfers (id, source_id, destination_id, status, note, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)`,
		tr.ID, tr.SourceID, tr.DestinationID, string(tr.Status), nullString(tr.Note), tr.CreatedBy, tr.CreatedAt)
	return err
}

func (t *txRepository) InsertLine(ctx context.Context, line Line) (Line, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO transfer_lines (transfer_id, item_id, qty, unit_cost)
VALUES ($1,$2,$3,$4) RETURNING id`,
		line.TransferID, line.ItemID, line.Qty.String(), line.UnitCost.String()).Scan(&line.ID)
	return line, err
}

func (t *txRepository) GetTransferForUpdate(ctx context.Context, id uuid.UUID) (Transfer, error) {
	var tr Transfer
	var status string
	err := t.tx.QueryRow(ctx, `SELECT id, source_id, destination_id, status, COALESCE(period_id,0), COALESCE(note,''), COALESCE(reject_reason,''), created_by, COALESCE(approved_by,0), created_at, updated_at
FROM transfers WHERE id=$1 FOR UPDATE`, id).
		Scan(&tr.ID, &tr.SourceID, &tr.DestinationID, &status, &tr.PeriodID, &tr.Note, &tr.RejectReason, &tr.CreatedBy, &tr.ApprovedBy, &tr.CreatedAt, &tr.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, ErrNotFound
		}
		return Transfer{}, err
	}
	tr.Status = Status(status)
	tr.Lines, err = loadLines(ctx, t.tx, id)
	return tr, err
}

func (t *txRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, actorID, periodID int64, reason string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE transfers
SET status=$2,
    approved_by=CASE WHEN $3::bigint = 0 THEN approved_by ELSE $3 END,
    period_id=CASE WHEN $4::bigint = 0 THEN period_id ELSE $4 END,
    reject_reason=NULLIF($5, ''),
    updated_at=$6
WHERE id=$1`, id, string(status), actorID, periodID, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) SetLineUnitCost(ctx context.Context, lineID int64, cost decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE transfer_lines SET unit_cost=$2 WHERE id=$1`, lineID, cost.String())
	return err
}

// Get loads a transfer with its lines.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Transfer, error) {
	var tr Transfer
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, source_id, destination_id, status, COALESCE(period_id,0), COALESCE(note,''), COALESCE(reject_reason,''), created_by, COALESCE(approved_by,0), created_at, updated_at
FROM transfers WHERE id=$1`, id).
		Scan(&tr.ID, &tr.SourceID, &tr.DestinationID, &status, &tr.PeriodID, &tr.Note, &tr.RejectReason, &tr.CreatedBy, &tr.ApprovedBy, &tr.CreatedAt, &tr.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, ErrNotFound
		}
		return Transfer{}, err
	}
	tr.Status = Status(status)
	tr.Lines, err = loadLines(ctx, r.pool, id)
	return tr, err
}

// List returns transfer headers touching the location (as source or
// destination), newest first. Lines are loaded on Get.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, source_id, destination_id, status, COALESCE(period_id,0), COALESCE(note,''), COALESCE(reject_reason,''), created_by, COALESCE(approved_by,0), created_at, updated_at
FROM transfers
WHERE ($1 = 0 OR source_id = $1 OR destination_id = $1)
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3`, filter.LocationID, string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	transfers := []Transfer{}
	for rows.Next() {
		var tr Transfer
		var status string
		if err := rows.Scan(&tr.ID, &tr.SourceID, &tr.DestinationID, &status, &tr.PeriodID, &tr.Note, &tr.RejectReason, &tr.CreatedBy, &tr.ApprovedBy, &tr.CreatedAt, &tr.UpdatedAt); err != nil {
			return nil, err
		}
		tr.Status = Status(status)
		transfers = append(transfers, tr)
	}
	return transfers, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q querier, transferID uuid.UUID) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, transfer_id, item_id, qty::text, unit_cost::text
FROM transfer_lines WHERE transfer_id=$1 ORDER BY id`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		var qty, unitCost string
		if err := rows.Scan(&line.ID, &line.TransferID, &line.ItemID, &qty, &unitCost); err != nil {
			return nil, err
		}
		if line.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if line.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
