package delivery

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/shared"
)

// Delivery is a posted goods receipt from a supplier. Posting is final: there
// is no draft state and no amendment, corrections go through manual NCRs.
type Delivery struct {
	ID         uuid.UUID `json:"id"`
	LocationID int64     `json:"location_id"`
	SupplierID int64     `json:"supplier_id"`
	PeriodID   int64     `json:"period_id"`
	Reference  string    `json:"reference"`
	Note       string    `json:"note,omitempty"`
	PostedBy   int64     `json:"posted_by"`
	PostedAt   time.Time `json:"posted_at"`
	Lines      []Line    `json:"lines,omitempty"`
}

// Line is one received item on a delivery.
type Line struct {
	ID         int64           `json:"id"`
	DeliveryID uuid.UUID       `json:"delivery_id"`
	ItemID     int64           `json:"item_id"`
	Qty        decimal.Decimal `json:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineValue  decimal.Decimal `json:"line_value"`

	// Variance fields are nil when the period carries no price point for the
	// item. Delta fields are nil when the billed price matches the book.
	PeriodPrice   *decimal.Decimal `json:"period_price,omitempty"`
	VarianceDelta *decimal.Decimal `json:"variance_delta,omitempty"`
	VariancePct   *decimal.Decimal `json:"variance_pct,omitempty"`
}

// LineInput captures one line of a posting request.
type LineInput struct {
	ItemID    int64
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
}

// PostInput captures a delivery posting request. Date is the document date
// the period is resolved from; zero means "posted now".
type PostInput struct {
	LocationID     int64
	SupplierID     int64
	Reference      string
	Note           string
	Date           time.Time
	IdempotencyKey string
	ActorID        int64
	Lines          []LineInput
}

// Validate ensures the posting request is coherent.
func (in PostInput) Validate() error {
	if in.LocationID == 0 {
		return shared.Invalid("delivery: location required")
	}
	if in.SupplierID == 0 {
		return shared.Invalid("delivery: supplier required")
	}
	if in.ActorID == 0 {
		return shared.Invalid("delivery: actor required")
	}
	if strings.TrimSpace(in.Reference) == "" {
		return shared.Invalid("delivery: supplier reference required")
	}
	if len(in.Lines) == 0 {
		return shared.Invalid("delivery: at least one line required")
	}
	for _, line := range in.Lines {
		if line.ItemID == 0 {
			return shared.Invalid("delivery: line item required")
		}
		if line.Qty.Sign() <= 0 {
			return shared.Invalid("delivery: line qty must be > 0")
		}
		if line.UnitPrice.Sign() < 0 {
			return shared.Invalid("delivery: line unit price must be >= 0")
		}
	}
	return nil
}

// ListFilter filters posted deliveries.
type ListFilter struct {
	LocationID int64
	SupplierID int64
	PeriodID   int64
	Limit      int
}

// ErrNotFound indicates a missing delivery.
var ErrNotFound = errors.New("delivery: not found")
