package pricebook

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists price points in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes the price for (item, period).
func (r *Repository) Upsert(ctx context.Context, point PricePoint) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO price_points (item_id, period_id, price, currency, set_by, set_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (item_id, period_id) DO UPDATE SET price=EXCLUDED.price, currency=EXCLUDED.currency, set_by=EXCLUDED.set_by, set_at=EXCLUDED.set_at`,
		point.ItemID, point.PeriodID, point.Price.String(), point.Currency, point.SetBy, point.SetAt)
	return err
}

// Get loads the price for (item, period).
func (r *Repository) Get(ctx context.Context, itemID, periodID int64) (PricePoint, error) {
	var point PricePoint
	var price string
	err := r.pool.QueryRow(ctx, `SELECT item_id, period_id, price::text, currency, set_by, set_at
FROM price_points WHERE item_id=$1 AND period_id=$2`, itemID, periodID).
		Scan(&point.ItemID, &point.PeriodID, &price, &point.Currency, &point.SetBy, &point.SetAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PricePoint{}, ErrNotFound
		}
		return PricePoint{}, err
	}
	if point.Price, err = decimal.NewFromString(price); err != nil {
		return PricePoint{}, err
	}
	return point, nil
}

// ListByPeriod returns every price point for a period ordered by item.
func (r *Repository) ListByPeriod(ctx context.Context, periodID int64) ([]PricePoint, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_id, period_id, price::text, currency, set_by, set_at
FROM price_points WHERE period_id=$1 ORDER BY item_id ASC`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	points := []PricePoint{}
	for rows.Next() {
		var point PricePoint
		var price string
		if err := rows.Scan(&point.ItemID, &point.PeriodID, &price, &point.Currency, &point.SetBy, &point.SetAt); err != nil {
			return nil, err
		}
		if point.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, rows.Err()
}
