package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/galley-erp/galley-erp/internal/ledger"
	"github.com/galley-erp/galley-erp/internal/ncr"
	"github.com/galley-erp/galley-erp/internal/period"
	"github.com/galley-erp/galley-erp/internal/pricebook"
	"github.com/galley-erp/galley-erp/internal/shared"
	"github.com/galley-erp/galley-erp/internal/variance"
)

// TxRepository is the transactional surface a posting runs against. It embeds
// the ledger store so stock mutations, the document rows and any auto NCRs
// share one transaction.
type TxRepository interface {
	ledger.TxStore
	InsertDelivery(ctx context.Context, d Delivery) error
	InsertLine(ctx context.Context, line Line) (Line, error)
	InsertNCR(ctx context.Context, report ncr.NCR) (ncr.NCR, error)
}

// RepositoryPort abstracts delivery persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Delivery, error)
	List(ctx context.Context, filter ListFilter) ([]Delivery, error)
}

// PeriodPort gates postings on the period lifecycle.
type PeriodPort interface {
	ResolveForPosting(ctx context.Context, date time.Time) (period.Period, error)
}

// PricePort looks up locked period prices for variance detection.
type PricePort interface {
	Get(ctx context.Context, itemID, periodID int64) (pricebook.PricePoint, error)
}

// IdempotencyPort guards against duplicate postings on retried requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// NCRPort publishes auto-generated reports after the posting has committed.
type NCRPort interface {
	Notify(ctx context.Context, report ncr.NCR)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service posts supplier deliveries.
type Service struct {
	repo     RepositoryPort
	periods  PeriodPort
	prices   PricePort
	keeper   *ledger.Keeper
	detector variance.Detector
	idem     IdempotencyPort
	ncrs     NCRPort
	audit    AuditPort
	logger   *slog.Logger
	printer  *message.Printer
	now      func() time.Time
}

// NewService constructs the delivery service.
func NewService(repo RepositoryPort, periods PeriodPort, prices PricePort, keeper *ledger.Keeper, detector variance.Detector, idem IdempotencyPort, ncrs NCRPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if keeper == nil {
		keeper = ledger.NewKeeper()
	}
	return &Service{
		repo:     repo,
		periods:  periods,
		prices:   prices,
		keeper:   keeper,
		detector: detector,
		idem:     idem,
		ncrs:     ncrs,
		audit:    audit,
		logger:   logger,
		printer:  message.NewPrinter(language.English),
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post receives every line into stock, values lines at the billed price,
// checks each against the locked period price and raises PRICE_VARIANCE NCRs,
// all inside one transaction. A failure on any line rolls the whole posting
// back.
func (s *Service) Post(ctx context.Context, in PostInput) (Delivery, error) {
	if err := in.Validate(); err != nil {
		return Delivery{}, err
	}
	actor := shared.ActorFromContext(ctx)
	if !actor.CanAccessLocation(in.LocationID) {
		return Delivery{}, shared.ErrLocationForbidden
	}
	now := s.now().UTC()
	date := in.Date.UTC()
	if in.Date.IsZero() {
		date = now
	}
	p, err := s.periods.ResolveForPosting(ctx, date)
	if err != nil {
		return Delivery{}, err
	}
	if in.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, in.IdempotencyKey, "delivery"); err != nil {
			return Delivery{}, err
		}
	}

	d := Delivery{
		ID:         uuid.New(),
		LocationID: in.LocationID,
		SupplierID: in.SupplierID,
		PeriodID:   p.ID,
		Reference:  in.Reference,
		Note:       in.Note,
		PostedBy:   in.ActorID,
		PostedAt:   now,
	}
	var created []ncr.NCR
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertDelivery(ctx, d); err != nil {
			return err
		}
		for _, lineIn := range in.Lines {
			if _, err := s.keeper.Receive(ctx, tx, in.LocationID, lineIn.ItemID, lineIn.Qty, lineIn.UnitPrice, ledger.Ref{
				Module:  "delivery",
				ID:      d.ID.String(),
				Note:    in.Reference,
				ActorID: in.ActorID,
			}); err != nil {
				return err
			}
			periodPrice, res, err := s.checkPrice(ctx, p.ID, lineIn)
			if err != nil {
				return err
			}
			line := Line{
				DeliveryID:  d.ID,
				ItemID:      lineIn.ItemID,
				Qty:         lineIn.Qty,
				UnitPrice:   lineIn.UnitPrice,
				LineValue:   lineIn.Qty.Mul(lineIn.UnitPrice).Round(2),
				PeriodPrice: periodPrice,
			}
			if res != nil {
				line.VarianceDelta = &res.AbsoluteDelta
				line.VariancePct = &res.PercentDelta
			}
			if line, err = tx.InsertLine(ctx, line); err != nil {
				return err
			}
			d.Lines = append(d.Lines, line)

			if res == nil {
				continue
			}
			report, err := tx.InsertNCR(ctx, ncr.NCR{
				Type:           ncr.TypePriceVariance,
				Status:         ncr.StatusOpen,
				LocationID:     in.LocationID,
				SupplierID:     in.SupplierID,
				DeliveryLineID: &line.ID,
				Value:          res.TotalImpact.Abs(),
				Reason:         s.varianceReason(line, res),
				AutoGenerated:  true,
				CreatedBy:      in.ActorID,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
			if err != nil {
				return err
			}
			created = append(created, report)
		}
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, in.IdempotencyKey)
		return Delivery{}, err
	}

	s.recordAudit(ctx, in.ActorID, d)
	for _, report := range created {
		if s.ncrs != nil {
			s.ncrs.Notify(ctx, report)
		}
	}
	return d, nil
}

// Get returns a posted delivery with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Delivery, error) {
	return s.repo.Get(ctx, id)
}

// List returns filtered deliveries, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Delivery, error) {
	return s.repo.List(ctx, filter)
}

// checkPrice looks up the locked period price and runs variance detection. A
// missing price point yields (nil, nil, nil): no baseline means no check.
func (s *Service) checkPrice(ctx context.Context, periodID int64, line LineInput) (*decimal.Decimal, *variance.Result, error) {
	point, err := s.prices.Get(ctx, line.ItemID, periodID)
	if err != nil {
		if errors.Is(err, pricebook.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return &point.Price, s.detector.Detect(&point.Price, line.Qty, line.UnitPrice), nil
}

func (s *Service) varianceReason(line Line, res *variance.Result) string {
	direction := "over"
	if res.AbsoluteDelta.Sign() < 0 {
		direction = "under"
	}
	return s.printer.Sprintf("billed %s period price on item %d: expected %s, billed %s (%s%%), impact %s",
		direction, line.ItemID, res.PeriodPrice.StringFixed(4), res.ActualPrice.StringFixed(4),
		res.PercentDelta.String(), res.TotalImpact.StringFixed(2))
}

func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idem == nil {
		return
	}
	if err := s.idem.Delete(ctx, key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, d Delivery) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "delivery:post",
		Entity:   "delivery",
		EntityID: d.ID.String(),
		Meta:     map[string]any{"location_id": d.LocationID, "supplier_id": d.SupplierID, "lines": len(d.Lines), "reference": d.Reference},
	})
}
