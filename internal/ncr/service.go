package ncr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/galley-erp/galley-erp/internal/shared"
)

// RepositoryPort abstracts NCR persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, report NCR) (NCR, error)
	Get(ctx context.Context, id int64) (NCR, error)
	UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error
	List(ctx context.Context, filter ListFilter) ([]NCR, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Notifier publishes NCR creation for external delivery (email).
type Notifier interface {
	NCRCreated(ctx context.Context, report NCR) error
}

// Service manages manual reports and the status workflow. Auto-generated
// price variance reports are inserted by the delivery orchestrator inside
// its own transaction; this service handles everything after that.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the NCR service.
func NewService(repo RepositoryPort, audit AuditPort, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger, now: time.Now}
}

// CreateManual raises a supervisor-initiated report.
func (s *Service) CreateManual(ctx context.Context, in CreateManualInput) (NCR, error) {
	if err := in.Validate(); err != nil {
		return NCR{}, err
	}
	now := s.now().UTC()
	report, err := s.repo.Insert(ctx, NCR{
		Type:       TypeManual,
		Status:     StatusOpen,
		LocationID: in.LocationID,
		SupplierID: in.SupplierID,
		Value:      in.Value,
		Reason:     in.Reason,
		CreatedBy:  in.ActorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return NCR{}, err
	}
	s.recordAudit(ctx, in.ActorID, "ncr:create", report.ID)
	s.notify(ctx, report)
	return report, nil
}

// Transition moves a report along the workflow.
func (s *Service) Transition(ctx context.Context, id int64, target Status, actorID int64) (NCR, error) {
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return NCR{}, err
	}
	if !ValidTransition(report.Status, target) {
		return NCR{}, ErrInvalidTransition
	}
	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, target, now); err != nil {
		return NCR{}, err
	}
	report.Status = target
	report.UpdatedAt = now
	s.recordAudit(ctx, actorID, fmt.Sprintf("ncr:%s", target), id)
	return report, nil
}

// Get returns a report by id.
func (s *Service) Get(ctx context.Context, id int64) (NCR, error) {
	return s.repo.Get(ctx, id)
}

// List returns filtered reports.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]NCR, error) {
	return s.repo.List(ctx, filter)
}

// Notify publishes a creation event for a report inserted elsewhere (the
// delivery orchestrator calls this after its transaction commits).
func (s *Service) Notify(ctx context.Context, report NCR) {
	s.notify(ctx, report)
}

func (s *Service) notify(ctx context.Context, report NCR) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NCRCreated(ctx, report); err != nil {
		s.logger.Warn("ncr notification", slog.Int64("ncr_id", report.ID), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "ncr",
		EntityID: fmt.Sprintf("%d", id),
	})
}
