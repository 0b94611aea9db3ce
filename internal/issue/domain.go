package issue

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/shared"
)

// Issue is a posted consumption document: stock leaves a location for a cost
// centre (kitchen, wastage, events). Immutable once posted.
type Issue struct {
	ID         uuid.UUID `json:"id"`
	LocationID int64     `json:"location_id"`
	CostCentre string    `json:"cost_centre"`
	PeriodID   int64     `json:"period_id"`
	Note       string    `json:"note,omitempty"`
	PostedBy   int64     `json:"posted_by"`
	PostedAt   time.Time `json:"posted_at"`
	Lines      []Line    `json:"lines,omitempty"`
}

// Line is one consumed item. UnitCost is the WAC the stock was carried at
// when the issue posted; the issue itself never changes WAC.
type Line struct {
	ID       int64           `json:"id"`
	IssueID  uuid.UUID       `json:"issue_id"`
	ItemID   int64           `json:"item_id"`
	Qty      decimal.Decimal `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Value    decimal.Decimal `json:"value"`
}

// LineInput captures one line of a posting request.
type LineInput struct {
	ItemID int64
	Qty    decimal.Decimal
}

// PostInput captures an issue posting request. Date is the document date the
// period is resolved from; zero means "posted now".
type PostInput struct {
	LocationID     int64
	CostCentre     string
	Note           string
	Date           time.Time
	IdempotencyKey string
	ActorID        int64
	Lines          []LineInput
}

// Validate ensures the posting request is coherent.
func (in PostInput) Validate() error {
	if in.LocationID == 0 {
		return shared.Invalid("issue: location required")
	}
	if strings.TrimSpace(in.CostCentre) == "" {
		return shared.Invalid("issue: cost centre required")
	}
	if in.ActorID == 0 {
		return shared.Invalid("issue: actor required")
	}
	if len(in.Lines) == 0 {
		return shared.Invalid("issue: at least one line required")
	}
	for _, line := range in.Lines {
		if line.ItemID == 0 {
			return shared.Invalid("issue: line item required")
		}
		if line.Qty.Sign() <= 0 {
			return shared.Invalid("issue: line qty must be > 0")
		}
	}
	return nil
}

// ListFilter filters posted issues.
type ListFilter struct {
	LocationID int64
	PeriodID   int64
	CostCentre string
	Limit      int
}

// ErrNotFound indicates a missing issue.
var ErrNotFound = errors.New("issue: not found")
