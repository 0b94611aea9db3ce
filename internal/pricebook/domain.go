package pricebook

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/shared"
)

// PricePoint is the locked expected unit price for an (item, period) pair.
// Upsert-only while the owning period is DRAFT; immutable from OPEN onwards.
type PricePoint struct {
	ItemID   int64           `json:"item_id"`
	PeriodID int64           `json:"period_id"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	SetBy    int64           `json:"set_by"`
	SetAt    time.Time       `json:"set_at"`
}

// SetInput captures a price upsert request.
type SetInput struct {
	ItemID   int64
	PeriodID int64
	Price    decimal.Decimal
	Currency string
	ActorID  int64
}

// Validate ensures the input is coherent.
func (in SetInput) Validate() error {
	if in.ItemID == 0 || in.PeriodID == 0 {
		return shared.Invalid("pricebook: item and period required")
	}
	if in.Price.Sign() < 0 {
		return shared.Invalid("pricebook: price must be >= 0")
	}
	if in.ActorID == 0 {
		return shared.Invalid("pricebook: actor required")
	}
	return nil
}

// ErrNotFound indicates no price point exists for the pair. Delivery flows
// treat this as "no variance check possible", not a failure.
var ErrNotFound = errors.New("pricebook: price point not found")

// ErrLocked indicates a write against a period that is OPEN or later.
var ErrLocked = errors.New("pricebook: prices are locked once the period opens")
