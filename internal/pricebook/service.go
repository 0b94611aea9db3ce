package pricebook

import (
	"context"
	"time"

	"github.com/galley-erp/galley-erp/internal/period"
)

// RepositoryPort abstracts price point persistence.
type RepositoryPort interface {
	Upsert(ctx context.Context, point PricePoint) error
	Get(ctx context.Context, itemID, periodID int64) (PricePoint, error)
	ListByPeriod(ctx context.Context, periodID int64) ([]PricePoint, error)
}

// PeriodPort exposes the period lookup needed for the lock check.
type PeriodPort interface {
	Get(ctx context.Context, id int64) (period.Period, error)
}

// Service guards the draft-only write window around the price book.
type Service struct {
	repo    RepositoryPort
	periods PeriodPort
	now     func() time.Time
}

// NewService constructs the price book service.
func NewService(repo RepositoryPort, periods PeriodPort) *Service {
	return &Service{repo: repo, periods: periods, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Set upserts a price point. Writes are rejected once the owning period has
// opened: the stored price stays untouched.
func (s *Service) Set(ctx context.Context, in SetInput) (PricePoint, error) {
	if err := in.Validate(); err != nil {
		return PricePoint{}, err
	}
	p, err := s.periods.Get(ctx, in.PeriodID)
	if err != nil {
		return PricePoint{}, err
	}
	if p.Status != period.StatusDraft {
		return PricePoint{}, ErrLocked
	}
	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}
	point := PricePoint{
		ItemID:   in.ItemID,
		PeriodID: in.PeriodID,
		Price:    in.Price,
		Currency: currency,
		SetBy:    in.ActorID,
		SetAt:    s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, point); err != nil {
		return PricePoint{}, err
	}
	return point, nil
}

// Get returns the locked price for (item, period).
func (s *Service) Get(ctx context.Context, itemID, periodID int64) (PricePoint, error) {
	return s.repo.Get(ctx, itemID, periodID)
}

// ListByPeriod returns every price point locked for a period.
func (s *Service) ListByPeriod(ctx context.Context, periodID int64) ([]PricePoint, error) {
	return s.repo.ListByPeriod(ctx, periodID)
}
