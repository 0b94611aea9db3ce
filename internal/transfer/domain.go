package transfer

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/shared"
)

// Status tracks the transfer approval workflow.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusCompleted       Status = "COMPLETED"
	StatusRejected        Status = "REJECTED"
)

// ValidTransition reports whether the status change follows the workflow:
// DRAFT -> PENDING_APPROVAL -> COMPLETED | REJECTED.
func ValidTransition(current, target Status) bool {
	switch current {
	case StatusDraft:
		return target == StatusPendingApproval
	case StatusPendingApproval:
		return target == StatusCompleted || target == StatusRejected
	default:
		return false
	}
}

// Transfer moves stock between two locations. Stock only ever moves when a
// PENDING_APPROVAL transfer is approved; DRAFT and REJECTED transfers never
// touch the ledger.
type Transfer struct {
	ID            uuid.UUID `json:"id"`
	SourceID      int64     `json:"source_id"`
	DestinationID int64     `json:"destination_id"`
	Status        Status    `json:"status"`
	PeriodID      int64     `json:"period_id,omitempty"`
	Note          string    `json:"note,omitempty"`
	RejectReason  string    `json:"reject_reason,omitempty"`
	CreatedBy     int64     `json:"created_by"`
	ApprovedBy    int64     `json:"approved_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Lines         []Line    `json:"lines,omitempty"`
}

// Line is one transferred item. UnitCost is the source WAC captured at
// completion; zero until then.
type Line struct {
	ID         int64           `json:"id"`
	TransferID uuid.UUID       `json:"transfer_id"`
	ItemID     int64           `json:"item_id"`
	Qty        decimal.Decimal `json:"qty"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

// LineInput captures one requested line.
type LineInput struct {
	ItemID int64
	Qty    decimal.Decimal
}

// CreateInput captures a transfer request.
type CreateInput struct {
	SourceID      int64
	DestinationID int64
	Note          string
	ActorID       int64
	Lines         []LineInput
}

// Validate ensures the request is coherent.
func (in CreateInput) Validate() error {
	if in.SourceID == 0 || in.DestinationID == 0 {
		return shared.Invalid("transfer: source and destination required")
	}
	if in.SourceID == in.DestinationID {
		return ErrSameLocation
	}
	if in.ActorID == 0 {
		return shared.Invalid("transfer: actor required")
	}
	if len(in.Lines) == 0 {
		return shared.Invalid("transfer: at least one line required")
	}
	seen := make(map[int64]struct{}, len(in.Lines))
	for _, line := range in.Lines {
		if line.ItemID == 0 {
			return shared.Invalid("transfer: line item required")
		}
		if line.Qty.Sign() <= 0 {
			return shared.Invalid("transfer: line qty must be > 0")
		}
		if _, dup := seen[line.ItemID]; dup {
			return shared.Invalid("transfer: duplicate item on transfer")
		}
		seen[line.ItemID] = struct{}{}
	}
	return nil
}

// ListFilter filters transfers.
type ListFilter struct {
	LocationID int64
	Status     Status
	Limit      int
}

var (
	// ErrNotFound indicates a missing transfer.
	ErrNotFound = errors.New("transfer: not found")
	// ErrInvalidTransition indicates a status change outside the workflow.
	ErrInvalidTransition = errors.New("transfer: invalid status transition")
	// ErrSameLocation indicates source and destination are identical.
	ErrSameLocation = errors.New("transfer: source and destination must differ")
	// ErrSelfApproval indicates the creator tried to approve their own transfer.
	ErrSelfApproval = errors.New("transfer: approver must differ from creator")
	// ErrReasonRequired indicates a rejection without a reason.
	ErrReasonRequired = errors.New("transfer: rejection reason required")
)
