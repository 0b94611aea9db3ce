package transfer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/ledger"
	"github.com/galley-erp/galley-erp/internal/period"
	"github.com/galley-erp/galley-erp/internal/shared"
)

// TxRepository is the transactional surface approvals run against.
type TxRepository interface {
	ledger.TxStore
	InsertTransfer(ctx context.Context, tr Transfer) error
	InsertLine(ctx context.Context, line Line) (Line, error)
	GetTransferForUpdate(ctx context.Context, id uuid.UUID) (Transfer, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, actorID, periodID int64, reason string, at time.Time) error
	SetLineUnitCost(ctx context.Context, lineID int64, cost decimal.Decimal) error
}

// RepositoryPort abstracts transfer persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Transfer, error)
	List(ctx context.Context, filter ListFilter) ([]Transfer, error)
}

// StockPort reads live ledger entries for the submit-time soft check.
type StockPort interface {
	GetEntry(ctx context.Context, locationID, itemID int64) (ledger.Entry, error)
}

// PeriodPort gates approvals on the period lifecycle.
type PeriodPort interface {
	ResolveForPosting(ctx context.Context, date time.Time) (period.Period, error)
}

// ApprovalPort records approval history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the transfer workflow. Stock moves exactly once, inside the
// approval transaction; every earlier check is advisory.
type Service struct {
	repo      RepositoryPort
	stock     StockPort
	periods   PeriodPort
	keeper    *ledger.Keeper
	approvals ApprovalPort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the transfer service.
func NewService(repo RepositoryPort, stock StockPort, periods PeriodPort, keeper *ledger.Keeper, approvals ApprovalPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if keeper == nil {
		keeper = ledger.NewKeeper()
	}
	return &Service{repo: repo, stock: stock, periods: periods, keeper: keeper, approvals: approvals, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create inserts a DRAFT transfer. No stock check happens here.
func (s *Service) Create(ctx context.Context, in CreateInput) (Transfer, error) {
	if err := in.Validate(); err != nil {
		return Transfer{}, err
	}
	actor := shared.ActorFromContext(ctx)
	if !actor.CanAccessLocation(in.SourceID) {
		return Transfer{}, shared.ErrLocationForbidden
	}
	now := s.now().UTC()
	tr := Transfer{
		ID:            uuid.New(),
		SourceID:      in.SourceID,
		DestinationID: in.DestinationID,
		Status:        StatusDraft,
		Note:          in.Note,
		CreatedBy:     in.ActorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertTransfer(ctx, tr); err != nil {
			return err
		}
		for _, lineIn := range in.Lines {
			line, err := tx.InsertLine(ctx, Line{TransferID: tr.ID, ItemID: lineIn.ItemID, Qty: lineIn.Qty})
			if err != nil {
				return err
			}
			tr.Lines = append(tr.Lines, line)
		}
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	return tr, nil
}

// Submit moves a DRAFT to PENDING_APPROVAL after a soft stock check. The
// check reads live balances without locking; approval re-validates
// authoritatively, so a pass here is advice for the requester, not a
// reservation.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, actorID int64) (Transfer, error) {
	tr, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transfer{}, err
	}
	if !ValidTransition(tr.Status, StatusPendingApproval) {
		return Transfer{}, ErrInvalidTransition
	}
	for _, line := range tr.Lines {
		entry, err := s.stock.GetEntry(ctx, tr.SourceID, line.ItemID)
		if err != nil && !errors.Is(err, ledger.ErrEntryNotFound) {
			return Transfer{}, err
		}
		if line.Qty.GreaterThan(entry.OnHand) {
			return Transfer{}, &ledger.InsufficientStockError{
				LocationID: tr.SourceID,
				ItemID:     line.ItemID,
				Requested:  line.Qty,
				Available:  entry.OnHand,
			}
		}
	}
	now := s.now().UTC()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !ValidTransition(locked.Status, StatusPendingApproval) {
			return ErrInvalidTransition
		}
		return tx.UpdateStatus(ctx, id, StatusPendingApproval, actorID, 0, "", now)
	})
	if err != nil {
		return Transfer{}, err
	}
	s.recordApproval(ctx, id, actorID, shared.ApprovalSubmit, "")
	return s.repo.Get(ctx, id)
}

// Approve re-validates stock and moves it, all in one transaction. Each line
// is debited from the source against the locked row and credited to the
// destination at the source WAC returned by the debit. The approver must not
// be the creator.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actorID int64) (Transfer, error) {
	if actorID == 0 {
		return Transfer{}, ErrSelfApproval
	}
	now := s.now().UTC()
	p, err := s.periods.ResolveForPosting(ctx, now)
	if err != nil {
		return Transfer{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tr, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !ValidTransition(tr.Status, StatusCompleted) {
			return ErrInvalidTransition
		}
		if tr.CreatedBy == actorID {
			return ErrSelfApproval
		}
		actor := shared.ActorFromContext(ctx)
		if !actor.CanAccessLocation(tr.SourceID) || !actor.CanAccessLocation(tr.DestinationID) {
			return shared.ErrLocationForbidden
		}
		ref := ledger.Ref{Module: "transfer", ID: tr.ID.String(), Note: tr.Note, ActorID: actorID}
		for _, line := range tr.Lines {
			_, unitCost, err := s.keeper.TransferOut(ctx, tx, tr.SourceID, line.ItemID, line.Qty, ref)
			if err != nil {
				return err
			}
			if _, err := s.keeper.TransferIn(ctx, tx, tr.DestinationID, line.ItemID, line.Qty, unitCost, ref); err != nil {
				return err
			}
			if err := tx.SetLineUnitCost(ctx, line.ID, unitCost); err != nil {
				return err
			}
		}
		return tx.UpdateStatus(ctx, id, StatusCompleted, actorID, p.ID, "", now)
	})
	if err != nil {
		return Transfer{}, err
	}
	s.recordApproval(ctx, id, actorID, shared.ApprovalApprove, "")
	s.recordAudit(ctx, actorID, id, "transfer:approve")
	return s.repo.Get(ctx, id)
}

// Reject closes a PENDING_APPROVAL transfer without moving stock. A reason
// is mandatory.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actorID int64, reason string) (Transfer, error) {
	if reason == "" {
		return Transfer{}, ErrReasonRequired
	}
	now := s.now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tr, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !ValidTransition(tr.Status, StatusRejected) {
			return ErrInvalidTransition
		}
		return tx.UpdateStatus(ctx, id, StatusRejected, actorID, 0, reason, now)
	})
	if err != nil {
		return Transfer{}, err
	}
	s.recordApproval(ctx, id, actorID, shared.ApprovalReject, reason)
	s.recordAudit(ctx, actorID, id, "transfer:reject")
	return s.repo.Get(ctx, id)
}

// Get returns a transfer with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Transfer, error) {
	return s.repo.Get(ctx, id)
}

// List returns filtered transfers, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) recordApproval(ctx context.Context, id uuid.UUID, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{Module: "transfer", RefID: id, ActorID: actorID, Action: action, Note: note}); err != nil {
		s.logger.Warn("record approval", slog.String("transfer_id", id.String()), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, id uuid.UUID, action string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "transfer", EntityID: id.String()})
}
