package period

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type ledgerRow struct {
	locationID, itemID int64
	qty, wac           decimal.Decimal
}

type memoryRepo struct {
	periods   map[int64]Period
	readiness map[int64]map[int64]Readiness
	snapshots []Snapshot
	locations map[int64]string // id -> code, all active
	ledger    []ledgerRow
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		periods:   make(map[int64]Period),
		readiness: make(map[int64]map[int64]Readiness),
		locations: make(map[int64]string),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetPeriod(ctx context.Context, id int64) (Period, error) {
	if p, ok := r.periods[id]; ok {
		return p, nil
	}
	return Period{}, ErrNotFound
}

func (r *memoryRepo) ListPeriods(ctx context.Context, limit, offset int) ([]Period, error) {
	var out []Period
	for _, p := range r.periods {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) FindActiveByDate(ctx context.Context, date time.Time) (Period, error) {
	for _, p := range r.periods {
		if (p.Status == StatusOpen || p.Status == StatusPendingClose) && !date.Before(p.StartDate) && !date.After(p.EndDate) {
			return p, nil
		}
	}
	return Period{}, ErrNotFound
}

func (r *memoryRepo) RangeConflict(ctx context.Context, start, end time.Time) (bool, error) {
	for _, p := range r.periods {
		if !start.After(p.EndDate) && !end.Before(p.StartDate) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) ListSnapshots(ctx context.Context, periodID int64, kind SnapshotKind) ([]Snapshot, error) {
	var out []Snapshot
	for _, s := range r.snapshots {
		if s.PeriodID == periodID && s.Kind == kind {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertPeriod(ctx context.Context, in CreateInput) (Period, error) {
	r.nextID++
	p := Period{ID: r.nextID, Name: in.Name, StartDate: in.StartDate, EndDate: in.EndDate, Status: StatusDraft}
	r.periods[p.ID] = p
	return p, nil
}

func (r *memoryRepo) GetPeriodForUpdate(ctx context.Context, id int64) (Period, error) {
	return r.GetPeriod(ctx, id)
}

func (r *memoryRepo) HasActivePeriod(ctx context.Context, excludeID int64) (bool, error) {
	for _, p := range r.periods {
		if p.ID != excludeID && (p.Status == StatusOpen || p.Status == StatusPendingClose) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) error {
	p := r.periods[id]
	p.Status = status
	r.periods[id] = p
	return nil
}

func (r *memoryRepo) UpsertReadiness(ctx context.Context, m Readiness) error {
	if r.readiness[m.PeriodID] == nil {
		r.readiness[m.PeriodID] = make(map[int64]Readiness)
	}
	r.readiness[m.PeriodID][m.LocationID] = m
	return nil
}

func (r *memoryRepo) PendingLocations(ctx context.Context, periodID int64) ([]string, error) {
	var pending []string
	for id, code := range r.locations {
		if _, ok := r.readiness[periodID][id]; !ok {
			pending = append(pending, code)
		}
	}
	return pending, nil
}

func (r *memoryRepo) WriteSnapshots(ctx context.Context, periodID int64, kind SnapshotKind, at time.Time) (int, error) {
	for _, row := range r.ledger {
		r.snapshots = append(r.snapshots, Snapshot{
			PeriodID:   periodID,
			LocationID: row.locationID,
			ItemID:     row.itemID,
			Kind:       kind,
			Qty:        row.qty,
			WAC:        row.wac,
			TakenAt:    at,
		})
	}
	return len(r.ledger), nil
}

type captureNotifier struct {
	closedName  string
	closedCount int
}

func (n *captureNotifier) PeriodClosed(ctx context.Context, name string, count int) error {
	n.closedName = name
	n.closedCount = count
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(repo *memoryRepo, allowPending bool) *Service {
	return NewService(repo, nil, nil, nil, ServiceConfig{AllowPostingPendingClose: allowPending})
}

func TestLifecycleForwardOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, true)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "2026-01", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 31), ActorID: 1})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, p.Status)

	// Cannot close a draft.
	_, err = svc.Close(ctx, p.ID, 1)
	require.ErrorIs(t, err, ErrInvalidTransition)

	p, err = svc.Open(ctx, p.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, p.Status)

	// Cannot reopen.
	_, err = svc.Open(ctx, p.ID, 1)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// CLOSED is only reachable through PENDING_CLOSE.
	require.False(t, ValidTransition(StatusOpen, StatusClosed))
	require.True(t, ValidTransition(StatusOpen, StatusPendingClose))
	require.True(t, ValidTransition(StatusPendingClose, StatusClosed))
}

func TestCloseStepsThroughPendingClose(t *testing.T) {
	repo := newMemoryRepo()
	repo.ledger = []ledgerRow{
		{locationID: 1, itemID: 10, qty: decimal.RequireFromString("40"), wac: decimal.RequireFromString("3.00")},
	}
	svc := newTestService(repo, true)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "2026-01", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 31), ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Open(ctx, p.ID, 1)
	require.NoError(t, err)

	// No active locations, so the roll call is empty and close proceeds
	// straight from OPEN.
	p, err = svc.Close(ctx, p.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, p.Status)

	closing, err := svc.Snapshots(ctx, p.ID, SnapshotClosing)
	require.NoError(t, err)
	require.Len(t, closing, 1)
}

func TestCreateRejectsOverlap(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, true)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "2026-01", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 31), ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "overlap", StartDate: date(2026, 1, 20), EndDate: date(2026, 2, 19), ActorID: 1})
	require.ErrorIs(t, err, ErrOverlap)
}

func TestOnlyOnePeriodOpen(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, true)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{Name: "2026-01", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 31), ActorID: 1})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateInput{Name: "2026-02", StartDate: date(2026, 2, 1), EndDate: date(2026, 2, 28), ActorID: 1})
	require.NoError(t, err)

	_, err = svc.Open(ctx, first.ID, 1)
	require.NoError(t, err)
	_, err = svc.Open(ctx, second.ID, 1)
	require.ErrorIs(t, err, ErrAnotherOpen)
}

func TestCloseRequiresAllLocationsReady(t *testing.T) {
	repo := newMemoryRepo()
	repo.locations[1] = "KITCHEN-A"
	repo.locations[2] = "STORE-B"
	svc := newTestService(repo, true)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "2026-01", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 31), ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Open(ctx, p.ID, 1)
	require.NoError(t, err)

	_, err = svc.MarkLocationReady(ctx, p.ID, 1, 5)
	require.NoError(t, err)

	_, err = svc.Close(ctx, p.ID, 1)
	var notReady *NotReadyError
	require.ErrorAs(t, err, &notReady)
	require.Equal(t, []string{"STORE-B"}, notReady.Pending)

	// Period untouched by the failed close.
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, got.Status)
}

func TestAllReadyFlipsPendingCloseThenCloses(t *testing.T) {
	repo := newMemoryRepo()
	repo.locations[1] = "KITCHEN-A"
	repo.ledger = []ledgerRow{
		{locationID: 1, itemID: 10, qty: decimal.RequireFromString("150"), wac: decimal.RequireFromString("5.3333")},
		{locationID: 1, itemID: 11, qty: decimal.RequireFromString("20"), wac: decimal.RequireFromString("2.00")},
	}
	notifier := &captureNotifier{}
	svc := NewService(repo, nil, notifier, nil, ServiceConfig{AllowPostingPendingClose: true})
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "2026-01", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 31), ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Open(ctx, p.ID, 1)
	require.NoError(t, err)

	p, err = svc.MarkLocationReady(ctx, p.ID, 1, 5)
	require.NoError(t, err)
	require.Equal(t, StatusPendingClose, p.Status)

	p, err = svc.Close(ctx, p.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, p.Status)
	require.Equal(t, "2026-01", notifier.closedName)
	require.Equal(t, 2, notifier.closedCount)

	closing, err := svc.Snapshots(ctx, p.ID, SnapshotClosing)
	require.NoError(t, err)
	require.Len(t, closing, 2)
}

func TestValueConservationAcrossBoundary(t *testing.T) {
	repo := newMemoryRepo()
	repo.locations[1] = "KITCHEN-A"
	repo.ledger = []ledgerRow{
		{locationID: 1, itemID: 10, qty: decimal.RequireFromString("90"), wac: decimal.RequireFromString("5.3333")},
	}
	svc := newTestService(repo, true)
	ctx := context.Background()

	jan, err := svc.Create(ctx, CreateInput{Name: "2026-01", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 31), ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Open(ctx, jan.ID, 1)
	require.NoError(t, err)
	_, err = svc.MarkLocationReady(ctx, jan.ID, 1, 1)
	require.NoError(t, err)
	_, err = svc.Close(ctx, jan.ID, 1)
	require.NoError(t, err)

	feb, err := svc.Create(ctx, CreateInput{Name: "2026-02", StartDate: date(2026, 2, 1), EndDate: date(2026, 2, 28), ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Open(ctx, feb.ID, 1)
	require.NoError(t, err)

	closing, err := svc.Snapshots(ctx, jan.ID, SnapshotClosing)
	require.NoError(t, err)
	opening, err := svc.Snapshots(ctx, feb.ID, SnapshotOpening)
	require.NoError(t, err)
	require.Len(t, opening, len(closing))

	closingValue := decimal.Zero
	for _, s := range closing {
		closingValue = closingValue.Add(s.Qty.Mul(s.WAC))
	}
	openingValue := decimal.Zero
	for _, s := range opening {
		openingValue = openingValue.Add(s.Qty.Mul(s.WAC))
	}
	require.True(t, closingValue.Equal(openingValue), "closing=%s opening=%s", closingValue, openingValue)
}

func TestResolveForPostingGate(t *testing.T) {
	repo := newMemoryRepo()
	repo.locations[1] = "KITCHEN-A"
	svc := newTestService(repo, true)
	blocking := newTestService(repo, false)
	ctx := context.Background()

	_, err := svc.ResolveForPosting(ctx, date(2026, 1, 15))
	require.ErrorIs(t, err, ErrNoOpenPeriod)

	p, err := svc.Create(ctx, CreateInput{Name: "2026-01", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 31), ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Open(ctx, p.ID, 1)
	require.NoError(t, err)

	got, err := svc.ResolveForPosting(ctx, date(2026, 1, 15))
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	_, err = svc.MarkLocationReady(ctx, p.ID, 1, 1)
	require.NoError(t, err)

	// PENDING_CLOSE honours the configured policy.
	_, err = svc.ResolveForPosting(ctx, date(2026, 1, 15))
	require.NoError(t, err)
	_, err = blocking.ResolveForPosting(ctx, date(2026, 1, 15))
	require.ErrorIs(t, err, ErrClosed)

	_, err = svc.Close(ctx, p.ID, 1)
	require.NoError(t, err)
	_, err = svc.ResolveForPosting(ctx, date(2026, 1, 15))
	require.ErrorIs(t, err, ErrNoOpenPeriod)
}
