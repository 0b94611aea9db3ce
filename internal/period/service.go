package period

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/galley-erp/galley-erp/internal/shared"
)

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertPeriod(ctx context.Context, in CreateInput) (Period, error)
	GetPeriodForUpdate(ctx context.Context, id int64) (Period, error)
	HasActivePeriod(ctx context.Context, excludeID int64) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) error
	UpsertReadiness(ctx context.Context, r Readiness) error
	PendingLocations(ctx context.Context, periodID int64) ([]string, error)
	WriteSnapshots(ctx context.Context, periodID int64, kind SnapshotKind, at time.Time) (int, error)
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPeriod(ctx context.Context, id int64) (Period, error)
	ListPeriods(ctx context.Context, limit, offset int) ([]Period, error)
	FindActiveByDate(ctx context.Context, date time.Time) (Period, error)
	RangeConflict(ctx context.Context, start, end time.Time) (bool, error)
	ListSnapshots(ctx context.Context, periodID int64, kind SnapshotKind) ([]Snapshot, error)
}

// Notifier publishes period lifecycle events for external delivery (email).
type Notifier interface {
	PeriodClosed(ctx context.Context, periodName string, snapshotCount int) error
}

// OpenLookupCache caches the currently postable period between lifecycle
// changes. Implementations may be nil-safe no-ops.
type OpenLookupCache interface {
	Get(ctx context.Context, date time.Time) (Period, bool)
	Set(ctx context.Context, p Period)
	Invalidate(ctx context.Context)
}

// ServiceConfig groups policy knobs.
type ServiceConfig struct {
	// AllowPostingPendingClose keeps Delivery/Issue/Transfer postable while a
	// period waits for the admin close. When false the gate hard-blocks them.
	AllowPostingPendingClose bool
}

// Service owns the period lifecycle and coordinates the close.
type Service struct {
	repo     RepositoryPort
	cache    OpenLookupCache
	notifier Notifier
	logger   *slog.Logger
	cfg      ServiceConfig
	now      func() time.Time
}

// NewService constructs the period service.
func NewService(repo RepositoryPort, cache OpenLookupCache, notifier Notifier, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, notifier: notifier, logger: logger, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create inserts a new DRAFT period after validating range overlap.
func (s *Service) Create(ctx context.Context, in CreateInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	conflict, err := s.repo.RangeConflict(ctx, in.StartDate, in.EndDate)
	if err != nil {
		return Period{}, err
	}
	if conflict {
		return Period{}, ErrOverlap
	}
	var created Period
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var e error
		created, e = tx.InsertPeriod(ctx, in)
		return e
	})
	if err != nil {
		return Period{}, err
	}
	return created, nil
}

// Get returns a period by id.
func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.GetPeriod(ctx, id)
}

// List returns paginated periods, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Period, error) {
	return s.repo.ListPeriods(ctx, limit, offset)
}

// Open flips a DRAFT period to OPEN. Prices lock at this moment. Opening
// balances are snapshotted from the live ledger: no posting is possible
// without an open period, so the ledger still equals the prior period's
// closing snapshot.
func (s *Service) Open(ctx context.Context, periodID, actorID int64) (Period, error) {
	if actorID == 0 {
		return Period{}, shared.Invalid("period: actor required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if !ValidTransition(p.Status, StatusOpen) {
			return ErrInvalidTransition
		}
		active, err := tx.HasActivePeriod(ctx, periodID)
		if err != nil {
			return err
		}
		if active {
			return ErrAnotherOpen
		}
		now := s.now().UTC()
		if _, err := tx.WriteSnapshots(ctx, periodID, SnapshotOpening, now); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, periodID, StatusOpen, actorID, now)
	})
	if err != nil {
		return Period{}, err
	}
	s.invalidateCache(ctx)
	return s.repo.GetPeriod(ctx, periodID)
}

// MarkLocationReady records a location's reconciliation confirmation and
// flips the period to PENDING_CLOSE once every active location has reported.
func (s *Service) MarkLocationReady(ctx context.Context, periodID, locationID, actorID int64) (Period, error) {
	if locationID == 0 || actorID == 0 {
		return Period{}, shared.Invalid("period: location and actor required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != StatusOpen && p.Status != StatusPendingClose {
			return ErrClosed
		}
		now := s.now().UTC()
		if err := tx.UpsertReadiness(ctx, Readiness{PeriodID: periodID, LocationID: locationID, ReadyBy: actorID, ReadyAt: now}); err != nil {
			return err
		}
		if p.Status != StatusOpen {
			return nil
		}
		pending, err := tx.PendingLocations(ctx, periodID)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return tx.UpdateStatus(ctx, periodID, StatusPendingClose, actorID, now)
		}
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.invalidateCache(ctx)
	return s.repo.GetPeriod(ctx, periodID)
}

// Close snapshots every ledger entry and flips the period to CLOSED, in one
// transaction. It fails with NotReadyError naming the locations that have
// not confirmed reconciliation; nothing is partially closed.
func (s *Service) Close(ctx context.Context, periodID, actorID int64) (Period, error) {
	if actorID == 0 {
		return Period{}, shared.Invalid("period: actor required")
	}
	var name string
	var snapshotCount int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != StatusOpen && p.Status != StatusPendingClose {
			return ErrInvalidTransition
		}
		pending, err := tx.PendingLocations(ctx, periodID)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return &NotReadyError{Pending: pending}
		}
		now := s.now().UTC()
		if p.Status == StatusOpen {
			// Zero active locations: the roll call is vacuously satisfied and
			// MarkLocationReady never ran. Step through PENDING_CLOSE so the
			// lifecycle stays linear.
			if err := tx.UpdateStatus(ctx, periodID, StatusPendingClose, actorID, now); err != nil {
				return err
			}
		}
		snapshotCount, err = tx.WriteSnapshots(ctx, periodID, SnapshotClosing, now)
		if err != nil {
			return err
		}
		name = p.Name
		return tx.UpdateStatus(ctx, periodID, StatusClosed, actorID, now)
	})
	if err != nil {
		return Period{}, err
	}
	s.invalidateCache(ctx)
	if s.notifier != nil {
		if err := s.notifier.PeriodClosed(ctx, name, snapshotCount); err != nil {
			s.logger.Warn("period close notification", slog.Any("error", err))
		}
	}
	return s.repo.GetPeriod(ctx, periodID)
}

// Snapshots lists the immutable copies taken for a period.
func (s *Service) Snapshots(ctx context.Context, periodID int64, kind SnapshotKind) ([]Snapshot, error) {
	return s.repo.ListSnapshots(ctx, periodID, kind)
}

// ResolveForPosting returns the period accepting postings on the given date.
// It is the gate every orchestrator calls before mutating stock.
func (s *Service) ResolveForPosting(ctx context.Context, date time.Time) (Period, error) {
	if s.cache != nil {
		if p, ok := s.cache.Get(ctx, date); ok {
			return s.gate(p)
		}
	}
	p, err := s.repo.FindActiveByDate(ctx, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Period{}, ErrNoOpenPeriod
		}
		return Period{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, p)
	}
	return s.gate(p)
}

func (s *Service) gate(p Period) (Period, error) {
	switch p.Status {
	case StatusOpen:
		return p, nil
	case StatusPendingClose:
		if s.cfg.AllowPostingPendingClose {
			return p, nil
		}
		return Period{}, ErrClosed
	default:
		return Period{}, ErrClosed
	}
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
