package period

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/shared"
)

// Status enumerates the period lifecycle. Transitions are forward-only; a
// closed period is permanently immutable.
type Status string

const (
	StatusDraft        Status = "DRAFT"
	StatusOpen         Status = "OPEN"
	StatusPendingClose Status = "PENDING_CLOSE"
	StatusClosed       Status = "CLOSED"
)

// ValidTransition reports whether a status change follows the lifecycle.
func ValidTransition(current, target Status) bool {
	switch current {
	case StatusDraft:
		return target == StatusOpen
	case StatusOpen:
		return target == StatusPendingClose
	case StatusPendingClose:
		return target == StatusClosed
	default:
		return false
	}
}

// Period is an accounting time window. At most one period is OPEN (or
// PENDING_CLOSE) system-wide.
type Period struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	Status    Status     `json:"status"`
	OpenedBy  *int64     `json:"opened_by,omitempty"`
	OpenedAt  *time.Time `json:"opened_at,omitempty"`
	ClosedBy  *int64     `json:"closed_by,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// SnapshotKind distinguishes the close-time copy from the carried-forward
// opening copy of the next period.
type SnapshotKind string

const (
	SnapshotOpening SnapshotKind = "OPENING"
	SnapshotClosing SnapshotKind = "CLOSING"
)

// Snapshot is an immutable point-in-time copy of one stock ledger entry.
type Snapshot struct {
	PeriodID   int64           `json:"period_id"`
	LocationID int64           `json:"location_id"`
	ItemID     int64           `json:"item_id"`
	Kind       SnapshotKind    `json:"kind"`
	Qty        decimal.Decimal `json:"qty"`
	WAC        decimal.Decimal `json:"wac"`
	TakenAt    time.Time       `json:"taken_at"`
}

// Readiness records a location's reconciliation-complete confirmation.
type Readiness struct {
	PeriodID   int64     `json:"period_id"`
	LocationID int64     `json:"location_id"`
	ReadyBy    int64     `json:"ready_by"`
	ReadyAt    time.Time `json:"ready_at"`
}

// CreateInput captures validation rules for new periods.
type CreateInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	ActorID   int64
}

// Validate ensures the create input is coherent.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.Invalid("period: name required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return shared.Invalid("period: start and end date required")
	}
	if in.StartDate.After(in.EndDate) {
		return shared.Invalid("period: start date cannot be after end date")
	}
	if in.ActorID == 0 {
		return shared.Invalid("period: actor required")
	}
	return nil
}

var (
	// ErrNotFound indicates a missing period.
	ErrNotFound = errors.New("period: not found")
	// ErrNoOpenPeriod indicates no period accepts postings for the date.
	ErrNoOpenPeriod = errors.New("period: no open period for date")
	// ErrClosed indicates a mutation against a non-postable period.
	ErrClosed = errors.New("period: period is closed for posting")
	// ErrInvalidTransition indicates a backward or skipped lifecycle step.
	ErrInvalidTransition = errors.New("period: invalid status transition")
	// ErrAnotherOpen indicates a second period cannot open while one is active.
	ErrAnotherOpen = errors.New("period: another period is already open")
	// ErrOverlap indicates the requested range conflicts with an existing period.
	ErrOverlap = errors.New("period: date range overlaps existing period")
)

// NotReadyError reports a close attempt while locations are still
// reconciling. Pending carries the location codes so the caller can name
// them.
type NotReadyError struct {
	Pending []string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("period: locations not ready for close: %s", strings.Join(e.Pending, ", "))
}
