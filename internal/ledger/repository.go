package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists ledger entries and movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PgxStore adapts a pgx transaction to the TxStore interface so orchestrator
// packages can run ledger mutations inside their own transactions.
type PgxStore struct {
	tx pgx.Tx
}

// NewPgxStore wraps an open transaction.
func NewPgxStore(tx pgx.Tx) *PgxStore {
	return &PgxStore{tx: tx}
}

// GetEntryForUpdate loads and locks the (location, item) row. The FOR UPDATE
// lock serializes concurrent mutators of the same pair until commit.
func (s *PgxStore) GetEntryForUpdate(ctx context.Context, locationID, itemID int64) (Entry, error) {
	var entry Entry
	var onHand, wac string
	err := s.tx.QueryRow(ctx, `SELECT location_id, item_id, on_hand::text, wac::text, updated_at
FROM stock_ledger WHERE location_id=$1 AND item_id=$2 FOR UPDATE`, locationID, itemID).
		Scan(&entry.LocationID, &entry.ItemID, &onHand, &wac, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{LocationID: locationID, ItemID: itemID}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	if entry.OnHand, err = decimal.NewFromString(onHand); err != nil {
		return Entry{}, err
	}
	if entry.WAC, err = decimal.NewFromString(wac); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// UpsertEntry writes both balance fields atomically.
func (s *PgxStore) UpsertEntry(ctx context.Context, entry Entry) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_ledger (location_id, item_id, on_hand, wac, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (location_id, item_id) DO UPDATE SET on_hand=EXCLUDED.on_hand, wac=EXCLUDED.wac, updated_at=NOW()`,
		entry.LocationID, entry.ItemID, entry.OnHand.String(), entry.WAC.String())
	return err
}

// InsertMovement journals the mutation.
func (s *PgxStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO stock_movements
(location_id, item_id, movement_type, qty, unit_cost, balance_qty, balance_wac, ref_module, ref_id, note, posted_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		m.LocationID, m.ItemID, string(m.Type), m.Qty.String(), m.UnitCost.String(),
		m.BalanceQty.String(), m.BalanceWAC.String(), m.RefModule, nullString(m.RefID), m.Note, m.PostedAt, nullInt(m.CreatedBy)).Scan(&id)
	return id, err
}

// GetEntry returns the current balance without locking.
func (r *Repository) GetEntry(ctx context.Context, locationID, itemID int64) (Entry, error) {
	var entry Entry
	var onHand, wac string
	err := r.pool.QueryRow(ctx, `SELECT location_id, item_id, on_hand::text, wac::text, updated_at
FROM stock_ledger WHERE location_id=$1 AND item_id=$2`, locationID, itemID).
		Scan(&entry.LocationID, &entry.ItemID, &onHand, &wac, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	if entry.OnHand, err = decimal.NewFromString(onHand); err != nil {
		return Entry{}, err
	}
	if entry.WAC, err = decimal.NewFromString(wac); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ListEntries returns every entry for a location ordered by item.
func (r *Repository) ListEntries(ctx context.Context, locationID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT location_id, item_id, on_hand::text, wac::text, updated_at
FROM stock_ledger WHERE location_id=$1 ORDER BY item_id ASC`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// GetMovements lists journal entries for reporting.
func (r *Repository) GetMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, location_id, item_id, movement_type, qty::text, unit_cost::text, balance_qty::text, balance_wac::text, ref_module, COALESCE(ref_id::text,''), note, posted_at, COALESCE(created_by,0)
FROM stock_movements
WHERE location_id=$1 AND item_id=$2 AND posted_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY posted_at ASC, id ASC
LIMIT $5`, filter.LocationID, filter.ItemID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var typ, qty, unitCost, balQty, balWAC string
		if err := rows.Scan(&m.ID, &m.LocationID, &m.ItemID, &typ, &qty, &unitCost, &balQty, &balWAC, &m.RefModule, &m.RefID, &m.Note, &m.PostedAt, &m.CreatedBy); err != nil {
			return nil, err
		}
		m.Type = MovementType(typ)
		if m.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if m.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
			return nil, err
		}
		if m.BalanceQty, err = decimal.NewFromString(balQty); err != nil {
			return nil, err
		}
		if m.BalanceWAC, err = decimal.NewFromString(balWAC); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var onHand, wac string
		if err := rows.Scan(&entry.LocationID, &entry.ItemID, &onHand, &wac, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		var err error
		if entry.OnHand, err = decimal.NewFromString(onHand); err != nil {
			return nil, err
		}
		if entry.WAC, err = decimal.NewFromString(wac); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
