package issue

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/galley-erp/galley-erp/internal/ledger"
	"github.com/galley-erp/galley-erp/internal/period"
	"github.com/galley-erp/galley-erp/internal/shared"
)

// TxRepository is the transactional surface a posting runs against.
type TxRepository interface {
	ledger.TxStore
	InsertIssue(ctx context.Context, iss Issue) error
	InsertLine(ctx context.Context, line Line) (Line, error)
}

// RepositoryPort abstracts issue persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Issue, error)
	List(ctx context.Context, filter ListFilter) ([]Issue, error)
}

// PeriodPort gates postings on the period lifecycle.
type PeriodPort interface {
	ResolveForPosting(ctx context.Context, date time.Time) (period.Period, error)
}

// IdempotencyPort guards against duplicate postings on retried requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service posts consumption issues.
type Service struct {
	repo    RepositoryPort
	periods PeriodPort
	keeper  *ledger.Keeper
	idem    IdempotencyPort
	audit   AuditPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the issue service.
func NewService(repo RepositoryPort, periods PeriodPort, keeper *ledger.Keeper, idem IdempotencyPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if keeper == nil {
		keeper = ledger.NewKeeper()
	}
	return &Service{repo: repo, periods: periods, keeper: keeper, idem: idem, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post debits every line in one transaction. Any shortfall aborts the whole
// posting with the ledger's typed error naming item, requested and available.
// Lines are valued at the WAC in force before the debit; WAC is untouched.
func (s *Service) Post(ctx context.Context, in PostInput) (Issue, error) {
	if err := in.Validate(); err != nil {
		return Issue{}, err
	}
	actor := shared.ActorFromContext(ctx)
	if !actor.CanAccessLocation(in.LocationID) {
		return Issue{}, shared.ErrLocationForbidden
	}
	now := s.now().UTC()
	date := in.Date.UTC()
	if in.Date.IsZero() {
		date = now
	}
	p, err := s.periods.ResolveForPosting(ctx, date)
	if err != nil {
		return Issue{}, err
	}
	if in.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, in.IdempotencyKey, "issue"); err != nil {
			return Issue{}, err
		}
	}

	iss := Issue{
		ID:         uuid.New(),
		LocationID: in.LocationID,
		CostCentre: in.CostCentre,
		PeriodID:   p.ID,
		Note:       in.Note,
		PostedBy:   in.ActorID,
		PostedAt:   now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertIssue(ctx, iss); err != nil {
			return err
		}
		for _, lineIn := range in.Lines {
			_, unitCost, err := s.keeper.Issue(ctx, tx, in.LocationID, lineIn.ItemID, lineIn.Qty, ledger.Ref{
				Module:  "issue",
				ID:      iss.ID.String(),
				Note:    in.CostCentre,
				ActorID: in.ActorID,
			})
			if err != nil {
				return err
			}
			line, err := tx.InsertLine(ctx, Line{
				IssueID:  iss.ID,
				ItemID:   lineIn.ItemID,
				Qty:      lineIn.Qty,
				UnitCost: unitCost,
				Value:    lineIn.Qty.Mul(unitCost).Round(2),
			})
			if err != nil {
				return err
			}
			iss.Lines = append(iss.Lines, line)
		}
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, in.IdempotencyKey)
		return Issue{}, err
	}

	s.recordAudit(ctx, in.ActorID, iss)
	return iss, nil
}

// Get returns a posted issue with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Issue, error) {
	return s.repo.Get(ctx, id)
}

// List returns filtered issues, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Issue, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idem == nil {
		return
	}
	if err := s.idem.Delete(ctx, key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, iss Issue) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "issue:post",
		Entity:   "issue",
		EntityID: iss.ID.String(),
		Meta:     map[string]any{"location_id": iss.LocationID, "cost_centre": iss.CostCentre, "lines": len(iss.Lines)},
	})
}
