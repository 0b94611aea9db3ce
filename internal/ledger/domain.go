package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementReceipt represents goods received from a supplier.
	MovementReceipt MovementType = "RECEIPT"
	// MovementIssue represents consumption against a cost centre.
	MovementIssue MovementType = "ISSUE"
	// MovementTransferOut debits the source location of a transfer.
	MovementTransferOut MovementType = "TRANSFER_OUT"
	// MovementTransferIn credits the destination location of a transfer.
	MovementTransferIn MovementType = "TRANSFER_IN"
)

// Entry is the durable (location, item) stock record. OnHand is never
// negative; WAC is zero whenever OnHand is zero.
type Entry struct {
	LocationID int64           `json:"location_id"`
	ItemID     int64           `json:"item_id"`
	OnHand     decimal.Decimal `json:"on_hand"`
	WAC        decimal.Decimal `json:"wac"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Movement journals a single ledger mutation together with the resulting
// balance, stock-card style.
type Movement struct {
	ID         int64           `json:"id"`
	LocationID int64           `json:"location_id"`
	ItemID     int64           `json:"item_id"`
	Type       MovementType    `json:"type"`
	Qty        decimal.Decimal `json:"qty"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	BalanceQty decimal.Decimal `json:"balance_qty"`
	BalanceWAC decimal.Decimal `json:"balance_wac"`
	RefModule  string          `json:"ref_module"`
	RefID      string          `json:"ref_id,omitempty"`
	Note       string          `json:"note,omitempty"`
	PostedAt   time.Time       `json:"posted_at"`
	CreatedBy  int64           `json:"created_by,omitempty"`
}

// MovementFilter filters journal entries for reporting.
type MovementFilter struct {
	LocationID int64
	ItemID     int64
	From       time.Time
	To         time.Time
	Limit      int
}

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")

// ErrInvalidUnitCost indicates a negative unit cost.
var ErrInvalidUnitCost = errors.New("ledger: unit cost must be >= 0")

// ErrNegativeState indicates the stored entry violates ledger invariants.
// This is a programming or data-corruption error, never a business condition.
var ErrNegativeState = errors.New("ledger: stored entry has negative quantity or cost")

// ErrEntryNotFound indicates a missing ledger row.
var ErrEntryNotFound = errors.New("ledger: entry not found")

// InsufficientStockError reports an issue or transfer-out exceeding the
// on-hand quantity. It carries structured data so callers can render an
// actionable message.
type InsufficientStockError struct {
	LocationID int64
	ItemID     int64
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock for item %d at location %d: requested %s, available %s",
		e.ItemID, e.LocationID, e.Requested.String(), e.Available.String())
}
