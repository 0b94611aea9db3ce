package period

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/platform/db"
)

// Repository persists periods, readiness marks, and snapshots in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const periodColumns = `id, name, start_date, end_date, status, opened_by, opened_at, closed_by, closed_at, created_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	var status string
	err := row.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &status, &p.OpenedBy, &p.OpenedAt, &p.ClosedBy, &p.ClosedAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNotFound
		}
		return Period{}, err
	}
	p.Status = Status(status)
	return p, nil
}

// GetPeriod loads a period by id.
func (r *Repository) GetPeriod(ctx context.Context, id int64) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id=$1`, id))
}

// ListPeriods returns periods ordered newest first.
func (r *Repository) ListPeriods(ctx context.Context, limit, offset int) ([]Period, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM periods ORDER BY start_date DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	periods := []Period{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// FindActiveByDate returns the OPEN or PENDING_CLOSE period covering date.
func (r *Repository) FindActiveByDate(ctx context.Context, date time.Time) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods
WHERE status IN ('OPEN','PENDING_CLOSE') AND start_date <= $1 AND end_date >= $1
LIMIT 1`, date))
}

// RangeConflict reports whether the range overlaps an existing period.
func (r *Repository) RangeConflict(ctx context.Context, start, end time.Time) (bool, error) {
	var conflict bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM periods WHERE start_date <= $2 AND end_date >= $1)`, start, end).Scan(&conflict)
	return conflict, err
}

// ListSnapshots returns snapshot rows for a period and kind.
func (r *Repository) ListSnapshots(ctx context.Context, periodID int64, kind SnapshotKind) ([]Snapshot, error) {
	rows, err := r.pool.Query(ctx, `SELECT period_id, location_id, item_id, kind, qty::text, wac::text, taken_at
FROM period_snapshots WHERE period_id=$1 AND kind=$2 ORDER BY location_id, item_id`, periodID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	snapshots := []Snapshot{}
	for rows.Next() {
		var s Snapshot
		var kindStr, qty, wac string
		if err := rows.Scan(&s.PeriodID, &s.LocationID, &s.ItemID, &kindStr, &qty, &wac, &s.TakenAt); err != nil {
			return nil, err
		}
		s.Kind = SnapshotKind(kindStr)
		if s.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if s.WAC, err = decimal.NewFromString(wac); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func (r *txRepository) InsertPeriod(ctx context.Context, in CreateInput) (Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `INSERT INTO periods (name, start_date, end_date, status, created_at)
VALUES ($1, $2, $3, 'DRAFT', NOW())
RETURNING `+periodColumns, in.Name, in.StartDate, in.EndDate))
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, id int64) (Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) HasActivePeriod(ctx context.Context, excludeID int64) (bool, error) {
	var active bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM periods WHERE status IN ('OPEN','PENDING_CLOSE') AND id <> $1)`, excludeID).Scan(&active)
	return active, err
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) error {
	var err error
	switch status {
	case StatusOpen:
		_, err = r.tx.Exec(ctx, `UPDATE periods SET status=$2, opened_by=$3, opened_at=$4 WHERE id=$1`, id, string(status), actorID, at)
	case StatusClosed:
		_, err = r.tx.Exec(ctx, `UPDATE periods SET status=$2, closed_by=$3, closed_at=$4 WHERE id=$1`, id, string(status), actorID, at)
	default:
		_, err = r.tx.Exec(ctx, `UPDATE periods SET status=$2 WHERE id=$1`, id, string(status))
	}
	return err
}

func (r *txRepository) UpsertReadiness(ctx context.Context, m Readiness) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO period_readiness (period_id, location_id, ready_by, ready_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (period_id, location_id) DO UPDATE SET ready_by=EXCLUDED.ready_by, ready_at=EXCLUDED.ready_at`,
		m.PeriodID, m.LocationID, m.ReadyBy, m.ReadyAt)
	return err
}

// PendingLocations lists active location codes that have not confirmed
// reconciliation for the period.
func (r *txRepository) PendingLocations(ctx context.Context, periodID int64) ([]string, error) {
	rows, err := r.tx.Query(ctx, `SELECT l.code FROM locations l
WHERE l.active AND NOT EXISTS (
  SELECT 1 FROM period_readiness pr WHERE pr.period_id=$1 AND pr.location_id=l.id)
ORDER BY l.code`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// WriteSnapshots copies every stock ledger row into period_snapshots in one
// statement, keeping the copy consistent with the transaction's view.
func (r *txRepository) WriteSnapshots(ctx context.Context, periodID int64, kind SnapshotKind, at time.Time) (int, error) {
	tag, err := r.tx.Exec(ctx, `INSERT INTO period_snapshots (period_id, location_id, item_id, kind, qty, wac, taken_at)
SELECT $1, location_id, item_id, $2, on_hand, wac, $3 FROM stock_ledger`, periodID, string(kind), at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
