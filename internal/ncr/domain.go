package ncr

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/shared"
)

// Type distinguishes manually raised reports from auto-generated price
// variance reports.
type Type string

const (
	TypeManual        Type = "MANUAL"
	TypePriceVariance Type = "PRICE_VARIANCE"
)

// Status tracks the report workflow.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusSent     Status = "SENT"
	StatusCredited Status = "CREDITED"
	StatusRejected Status = "REJECTED"
	StatusClosed   Status = "CLOSED"
)

// ValidTransition reports whether the status change follows the workflow:
// OPEN -> SENT -> CREDITED|REJECTED -> CLOSED.
func ValidTransition(current, target Status) bool {
	switch current {
	case StatusOpen:
		return target == StatusSent
	case StatusSent:
		return target == StatusCredited || target == StatusRejected
	case StatusCredited, StatusRejected:
		return target == StatusClosed
	default:
		return false
	}
}

// NCR records a quality or pricing exception. PRICE_VARIANCE reports link
// back to the delivery line that triggered them and are only ever created
// inside the delivery transaction.
type NCR struct {
	ID             int64           `json:"id"`
	Type           Type            `json:"type"`
	Status         Status          `json:"status"`
	LocationID     int64           `json:"location_id"`
	SupplierID     int64           `json:"supplier_id,omitempty"`
	DeliveryLineID *int64          `json:"delivery_line_id,omitempty"`
	Value          decimal.Decimal `json:"value"`
	Reason         string          `json:"reason"`
	AutoGenerated  bool            `json:"auto_generated"`
	CreatedBy      int64           `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CreateManualInput captures a supervisor-raised report.
type CreateManualInput struct {
	LocationID int64
	SupplierID int64
	Value      decimal.Decimal
	Reason     string
	ActorID    int64
}

// Validate ensures the input is coherent.
func (in CreateManualInput) Validate() error {
	if in.LocationID == 0 {
		return shared.Invalid("ncr: location required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return shared.Invalid("ncr: reason required")
	}
	if in.ActorID == 0 {
		return shared.Invalid("ncr: actor required")
	}
	return nil
}

// ListFilter filters reports.
type ListFilter struct {
	LocationID int64
	Status     Status
	Type       Type
	Limit      int
}

var (
	// ErrNotFound indicates a missing report.
	ErrNotFound = errors.New("ncr: not found")
	// ErrInvalidTransition indicates a status change outside the workflow.
	ErrInvalidTransition = errors.New("ncr: invalid status transition")
)
