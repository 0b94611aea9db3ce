package delivery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/galley-erp/galley-erp/internal/ledger"
	"github.com/galley-erp/galley-erp/internal/ncr"
	"github.com/galley-erp/galley-erp/internal/period"
	"github.com/galley-erp/galley-erp/internal/pricebook"
	"github.com/galley-erp/galley-erp/internal/shared"
	"github.com/galley-erp/galley-erp/internal/variance"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type memoryState struct {
	entries    map[string]ledger.Entry
	movements  []ledger.Movement
	deliveries map[uuid.UUID]Delivery
	lines      []Line
	ncrs       []ncr.NCR
	nextLineID int64
	nextNCRID  int64
}

func newMemoryState() *memoryState {
	return &memoryState{entries: make(map[string]ledger.Entry), deliveries: make(map[uuid.UUID]Delivery)}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.deliveries {
		c.deliveries[k] = v
	}
	c.movements = append(c.movements, s.movements...)
	c.lines = append(c.lines, s.lines...)
	c.ncrs = append(c.ncrs, s.ncrs...)
	c.nextLineID = s.nextLineID
	c.nextNCRID = s.nextNCRID
	return c
}

func entryKey(locationID, itemID int64) string {
	return fmt.Sprintf("%d/%d", locationID, itemID)
}

type memoryTx struct {
	state      *memoryState
	failLineAt int
	lineCalls  int
}

func (t *memoryTx) GetEntryForUpdate(ctx context.Context, locationID, itemID int64) (ledger.Entry, error) {
	entry, ok := t.state.entries[entryKey(locationID, itemID)]
	if !ok {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return entry, nil
}

func (t *memoryTx) UpsertEntry(ctx context.Context, entry ledger.Entry) error {
	t.state.entries[entryKey(entry.LocationID, entry.ItemID)] = entry
	return nil
}

func (t *memoryTx) InsertMovement(ctx context.Context, movement ledger.Movement) (int64, error) {
	t.state.movements = append(t.state.movements, movement)
	return int64(len(t.state.movements)), nil
}

func (t *memoryTx) InsertDelivery(ctx context.Context, del Delivery) error {
	t.state.deliveries[del.ID] = del
	return nil
}

func (t *memoryTx) InsertLine(ctx context.Context, line Line) (Line, error) {
	t.lineCalls++
	if t.failLineAt > 0 && t.lineCalls >= t.failLineAt {
		return Line{}, errors.New("insert line failed")
	}
	t.state.nextLineID++
	line.ID = t.state.nextLineID
	t.state.lines = append(t.state.lines, line)
	return line, nil
}

func (t *memoryTx) InsertNCR(ctx context.Context, report ncr.NCR) (ncr.NCR, error) {
	t.state.nextNCRID++
	report.ID = t.state.nextNCRID
	t.state.ncrs = append(t.state.ncrs, report)
	return report, nil
}

type memoryRepo struct {
	state      *memoryState
	failLineAt int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: newMemoryState()}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{state: r.state.clone(), failLineAt: r.failLineAt}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Delivery, error) {
	if del, ok := r.state.deliveries[id]; ok {
		return del, nil
	}
	return Delivery{}, ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Delivery, error) {
	var out []Delivery
	for _, del := range r.state.deliveries {
		out = append(out, del)
	}
	return out, nil
}

type fakePeriods struct {
	p   period.Period
	err error
}

func (f fakePeriods) ResolveForPosting(ctx context.Context, date time.Time) (period.Period, error) {
	if f.err != nil {
		return period.Period{}, f.err
	}
	return f.p, nil
}

type fakePrices struct {
	prices map[int64]decimal.Decimal
}

func (f fakePrices) Get(ctx context.Context, itemID, periodID int64) (pricebook.PricePoint, error) {
	price, ok := f.prices[itemID]
	if !ok {
		return pricebook.PricePoint{}, pricebook.ErrNotFound
	}
	return pricebook.PricePoint{ItemID: itemID, PeriodID: periodID, Price: price}, nil
}

type fakeIdem struct {
	keys map[string]bool
}

func newFakeIdem() *fakeIdem { return &fakeIdem{keys: make(map[string]bool)} }

func (f *fakeIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdem) Delete(ctx context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

type captureNCRs struct {
	published []ncr.NCR
}

func (c *captureNCRs) Notify(ctx context.Context, report ncr.NCR) {
	c.published = append(c.published, report)
}

func openPeriod() fakePeriods {
	return fakePeriods{p: period.Period{ID: 42, Name: "2026-08", Status: period.StatusOpen}}
}

func TestPostReceivesAndRaisesVarianceNCR(t *testing.T) {
	repo := newMemoryRepo()
	prices := fakePrices{prices: map[int64]decimal.Decimal{1: d("5.00"), 2: d("3.25")}}
	notifier := &captureNCRs{}
	svc := NewService(repo, openPeriod(), prices, nil, variance.Detector{}, newFakeIdem(), notifier, nil, nil)

	posted, err := svc.Post(context.Background(), PostInput{
		LocationID:     1,
		SupplierID:     9,
		Reference:      "INV-1001",
		IdempotencyKey: "post-1",
		ActorID:        7,
		Lines: []LineInput{
			{ItemID: 1, Qty: d("10"), UnitPrice: d("6.00")},
			{ItemID: 2, Qty: d("4"), UnitPrice: d("3.25")},
		},
	})
	require.NoError(t, err)
	require.Len(t, posted.Lines, 2)
	require.Equal(t, int64(42), posted.PeriodID)

	over, clean := posted.Lines[0], posted.Lines[1]
	require.NotNil(t, over.PeriodPrice)
	require.True(t, over.PeriodPrice.Equal(d("5.00")))
	require.NotNil(t, over.VarianceDelta)
	require.True(t, over.VarianceDelta.Equal(d("1.00")))
	require.NotNil(t, clean.PeriodPrice)
	require.Nil(t, clean.VarianceDelta, "matching price leaves no delta")

	entry := repo.state.entries[entryKey(1, 1)]
	require.True(t, entry.OnHand.Equal(d("10")))
	require.True(t, entry.WAC.Equal(d("6.0000")), "WAC %s", entry.WAC)

	// Only the overrun line raises a report.
	require.Len(t, repo.state.ncrs, 1)
	report := repo.state.ncrs[0]
	require.Equal(t, ncr.TypePriceVariance, report.Type)
	require.Equal(t, ncr.StatusOpen, report.Status)
	require.True(t, report.AutoGenerated)
	require.NotNil(t, report.DeliveryLineID)
	require.True(t, report.Value.Equal(d("10.00")), "impact %s", report.Value)
	require.Contains(t, report.Reason, "billed over period price")

	require.Len(t, notifier.published, 1)
	require.Equal(t, report.ID, notifier.published[0].ID)
}

func TestPostSameItemLinesAccumulate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, openPeriod(), fakePrices{}, nil, variance.Detector{}, nil, nil, nil, nil)

	posted, err := svc.Post(context.Background(), PostInput{
		LocationID: 1, SupplierID: 9, Reference: "INV-1007", ActorID: 7,
		Lines: []LineInput{
			{ItemID: 1, Qty: d("100"), UnitPrice: d("5.00")},
			{ItemID: 1, Qty: d("50"), UnitPrice: d("6.00")},
		},
	})
	require.NoError(t, err)
	require.Len(t, posted.Lines, 2)

	// Both lines blend into the same row, in input order.
	entry := repo.state.entries[entryKey(1, 1)]
	require.True(t, entry.OnHand.Equal(d("150")))
	require.True(t, entry.WAC.Equal(d("5.3333")), "WAC %s", entry.WAC)
	require.Len(t, repo.state.movements, 2)
}

type capturePeriods struct {
	p    period.Period
	date time.Time
}

func (f *capturePeriods) ResolveForPosting(ctx context.Context, date time.Time) (period.Period, error) {
	f.date = date
	return f.p, nil
}

func TestPostResolvesPeriodFromDocumentDate(t *testing.T) {
	repo := newMemoryRepo()
	periods := &capturePeriods{p: period.Period{ID: 42, Name: "2026-08", Status: period.StatusOpen}}
	svc := NewService(repo, periods, fakePrices{}, nil, variance.Detector{}, nil, nil, nil, nil)

	docDate := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	_, err := svc.Post(context.Background(), PostInput{
		LocationID: 1, SupplierID: 9, Reference: "INV-1008", ActorID: 7, Date: docDate,
		Lines: []LineInput{{ItemID: 1, Qty: d("1"), UnitPrice: d("1.00")}},
	})
	require.NoError(t, err)
	require.True(t, periods.date.Equal(docDate), "period resolved from %s", periods.date)

	// No document date falls back to the posting clock.
	_, err = svc.Post(context.Background(), PostInput{
		LocationID: 1, SupplierID: 9, Reference: "INV-1009", ActorID: 7,
		Lines: []LineInput{{ItemID: 1, Qty: d("1"), UnitPrice: d("1.00")}},
	})
	require.NoError(t, err)
	require.False(t, periods.date.IsZero())
	require.False(t, periods.date.Equal(docDate))
}

func TestPostWithoutPricePointSkipsVariance(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, openPeriod(), fakePrices{}, nil, variance.Detector{}, nil, nil, nil, nil)

	_, err := svc.Post(context.Background(), PostInput{
		LocationID: 1, SupplierID: 9, Reference: "INV-1002", ActorID: 7,
		Lines: []LineInput{{ItemID: 1, Qty: d("10"), UnitPrice: d("99.99")}},
	})
	require.NoError(t, err)
	require.Empty(t, repo.state.ncrs)
	require.Nil(t, repo.state.lines[0].PeriodPrice)
}

func TestPostRollsBackWholeDelivery(t *testing.T) {
	repo := newMemoryRepo()
	repo.failLineAt = 2
	idem := newFakeIdem()
	svc := NewService(repo, openPeriod(), fakePrices{}, nil, variance.Detector{}, idem, nil, nil, nil)

	_, err := svc.Post(context.Background(), PostInput{
		LocationID: 1, SupplierID: 9, Reference: "INV-1003", IdempotencyKey: "post-3", ActorID: 7,
		Lines: []LineInput{
			{ItemID: 1, Qty: d("10"), UnitPrice: d("6.00")},
			{ItemID: 2, Qty: d("4"), UnitPrice: d("3.25")},
		},
	})
	require.Error(t, err)
	require.Empty(t, repo.state.deliveries)
	require.Empty(t, repo.state.lines)
	require.Empty(t, repo.state.movements)
	require.Empty(t, repo.state.entries)
	require.False(t, idem.keys["post-3"], "key is released so the client can retry")
}

func TestPostRequiresPostablePeriod(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fakePeriods{err: period.ErrClosed}, fakePrices{}, nil, variance.Detector{}, nil, nil, nil, nil)

	_, err := svc.Post(context.Background(), PostInput{
		LocationID: 1, SupplierID: 9, Reference: "INV-1004", ActorID: 7,
		Lines: []LineInput{{ItemID: 1, Qty: d("1"), UnitPrice: d("1.00")}},
	})
	require.ErrorIs(t, err, period.ErrClosed)
	require.Empty(t, repo.state.deliveries)
}

func TestPostDuplicateIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo()
	idem := newFakeIdem()
	svc := NewService(repo, openPeriod(), fakePrices{}, nil, variance.Detector{}, idem, nil, nil, nil)

	in := PostInput{
		LocationID: 1, SupplierID: 9, Reference: "INV-1005", IdempotencyKey: "post-5", ActorID: 7,
		Lines: []LineInput{{ItemID: 1, Qty: d("2"), UnitPrice: d("4.00")}},
	}
	_, err := svc.Post(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.state.deliveries, 1)
}

func TestPostChecksLocationAccess(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, openPeriod(), fakePrices{}, nil, variance.Detector{}, nil, nil, nil, nil)

	ctx := shared.ContextWithActor(context.Background(), shared.Actor{UserID: 7, LocationAccess: []int64{2}})
	_, err := svc.Post(ctx, PostInput{
		LocationID: 1, SupplierID: 9, Reference: "INV-1006", ActorID: 7,
		Lines: []LineInput{{ItemID: 1, Qty: d("1"), UnitPrice: d("1.00")}},
	})
	require.ErrorIs(t, err, shared.ErrLocationForbidden)
	require.Empty(t, repo.state.deliveries)
}
