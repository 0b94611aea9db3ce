package transfer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/galley-erp/galley-erp/internal/ledger"
	"github.com/galley-erp/galley-erp/internal/period"
	"github.com/galley-erp/galley-erp/internal/shared"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type memoryState struct {
	entries   map[string]ledger.Entry
	movements []ledger.Movement
	transfers map[uuid.UUID]Transfer
	nextLine  int64
}

func newMemoryState() *memoryState {
	return &memoryState{entries: make(map[string]ledger.Entry), transfers: make(map[uuid.UUID]Transfer)}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.transfers {
		lines := make([]Line, len(v.Lines))
		copy(lines, v.Lines)
		v.Lines = lines
		c.transfers[k] = v
	}
	c.movements = append(c.movements, s.movements...)
	c.nextLine = s.nextLine
	return c
}

func entryKey(locationID, itemID int64) string {
	return fmt.Sprintf("%d/%d", locationID, itemID)
}

type memoryTx struct {
	state *memoryState
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

func (t *memoryTx) InsertTransfer(ctx context.Context, tr Transfer) error {
	t.state.transfers[tr.ID] = tr
	return nil
}

func (t *memoryTx) InsertLine(ctx context.Context, line Line) (Line, error) {
	t.state.nextLine++
	line.ID = t.state.nextLine
	tr := t.state.transfers[line.TransferID]
	tr.Lines = append(tr.Lines, line)
	t.state.transfers[line.TransferID] = tr
	return line, nil
}

func (t *memoryTx) GetTransferForUpdate(ctx context.Context, id uuid.UUID) (Transfer, error) {
	tr, ok := t.state.transfers[id]
	if !ok {
		return Transfer{}, ErrNotFound
	}
	return tr, nil
}

func (t *memoryTx) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, actorID, periodID int64, reason string, at time.Time) error {
	tr, ok := t.state.transfers[id]
	if !ok {
		return ErrNotFound
	}
	tr.Status = status
	tr.UpdatedAt = at
	if actorID != 0 && (status == StatusCompleted || status == StatusRejected) {
		tr.ApprovedBy = actorID
	}
	if periodID != 0 {
		tr.PeriodID = periodID
	}
	tr.RejectReason = reason
	t.state.transfers[id] = tr
	return nil
}

func (t *memoryTx) SetLineUnitCost(ctx context.Context, lineID int64, cost decimal.Decimal) error {
	for id, tr := range t.state.transfers {
		for i, line := range tr.Lines {
			if line.ID == lineID {
				tr.Lines[i].UnitCost = cost
				t.state.transfers[id] = tr
				return nil
			}
		}
	}
	return ErrNotFound
}

type memoryRepo struct {
	state *memoryState
}

func newMemoryRepo() *memoryRepo { return &memoryRepo{state: newMemoryState()} }

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{state: r.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Transfer, error) {
	if tr, ok := r.state.transfers[id]; ok {
		return tr, nil
	}
	return Transfer{}, ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	var out []Transfer
	for _, tr := range r.state.transfers {
		out = append(out, tr)
	}
	return out, nil
}

// GetEntry makes the repo double as the submit-time stock reader.
func (r *memoryRepo) GetEntry(ctx context.Context, locationID, itemID int64) (ledger.Entry, error) {
	entry, ok := r.state.entries[entryKey(locationID, itemID)]
	if !ok {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return entry, nil
}

func (r *memoryRepo) seed(locationID, itemID int64, onHand, wac string) {
	r.state.entries[entryKey(locationID, itemID)] = ledger.Entry{
		LocationID: locationID, ItemID: itemID, OnHand: d(onHand), WAC: d(wac),
	}
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

func openPeriod() fakePeriods {
	return fakePeriods{p: period.Period{ID: 42, Name: "2026-08", Status: period.StatusOpen}}
}

type captureApprovals struct {
	logs []shared.ApprovalLog
}

func (c *captureApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	c.logs = append(c.logs, log)
	return nil
}

func newTransfer(t *testing.T, svc *Service, repo *memoryRepo, qty string) Transfer {
	t.Helper()
	tr, err := svc.Create(context.Background(), CreateInput{
		SourceID: 1, DestinationID: 2, ActorID: 7,
		Lines: []LineInput{{ItemID: 10, Qty: d(qty)}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, tr.Status)
	return tr
}

func TestApproveCarriesSourceWAC(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, "150", "5.3333")
	approvals := &captureApprovals{}
	svc := NewService(repo, repo, openPeriod(), nil, approvals, nil, nil)

	tr := newTransfer(t, svc, repo, "20")
	tr, err := svc.Submit(context.Background(), tr.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, tr.Status)

	tr, err = svc.Approve(context.Background(), tr.ID, 8)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, tr.Status)
	require.Equal(t, int64(8), tr.ApprovedBy)
	require.Equal(t, int64(42), tr.PeriodID)
	require.True(t, tr.Lines[0].UnitCost.Equal(d("5.3333")))

	source := repo.state.entries[entryKey(1, 10)]
	require.True(t, source.OnHand.Equal(d("130")))
	require.True(t, source.WAC.Equal(d("5.3333")), "source WAC unchanged")

	dest := repo.state.entries[entryKey(2, 10)]
	require.True(t, dest.OnHand.Equal(d("20")))
	require.True(t, dest.WAC.Equal(d("5.3333")), "source WAC carried forward exactly")

	require.Len(t, approvals.logs, 2)
	require.Equal(t, shared.ApprovalSubmit, approvals.logs[0].Action)
	require.Equal(t, shared.ApprovalApprove, approvals.logs[1].Action)
}

func TestApproveRevalidatesStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, "20", "5.0000")
	svc := NewService(repo, repo, openPeriod(), nil, nil, nil, nil)

	tr := newTransfer(t, svc, repo, "20")
	_, err := svc.Submit(context.Background(), tr.ID, 7)
	require.NoError(t, err, "soft check passes at submit time")

	// Stock drains between submit and approval.
	repo.seed(1, 10, "5", "5.0000")

	_, err = svc.Approve(context.Background(), tr.ID, 8)
	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Available.Equal(d("5")))

	// Nothing moved anywhere.
	got, err := svc.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, got.Status)
	_, ok := repo.state.entries[entryKey(2, 10)]
	require.False(t, ok)
}

func TestSubmitSoftCheckRejectsShortfall(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, "3", "5.0000")
	svc := NewService(repo, repo, openPeriod(), nil, nil, nil, nil)

	tr := newTransfer(t, svc, repo, "20")
	_, err := svc.Submit(context.Background(), tr.ID, 7)
	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	got, err := svc.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, got.Status)
}

func TestApproveRejectsCreator(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, "50", "5.0000")
	svc := NewService(repo, repo, openPeriod(), nil, nil, nil, nil)

	tr := newTransfer(t, svc, repo, "10")
	_, err := svc.Submit(context.Background(), tr.ID, 7)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), tr.ID, 7)
	require.ErrorIs(t, err, ErrSelfApproval)
}

func TestRejectRequiresReasonAndMovesNoStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, "50", "5.0000")
	svc := NewService(repo, repo, openPeriod(), nil, nil, nil, nil)

	tr := newTransfer(t, svc, repo, "10")
	_, err := svc.Submit(context.Background(), tr.ID, 7)
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), tr.ID, 8, "")
	require.ErrorIs(t, err, ErrReasonRequired)

	tr, err = svc.Reject(context.Background(), tr.ID, 8, "wrong destination")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, tr.Status)
	require.Equal(t, "wrong destination", tr.RejectReason)
	require.True(t, repo.state.entries[entryKey(1, 10)].OnHand.Equal(d("50")))
	require.Empty(t, repo.state.movements)

	// Terminal.
	_, err = svc.Approve(context.Background(), tr.ID, 9)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApproveRequiresPostablePeriod(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, "50", "5.0000")
	svc := NewService(repo, repo, openPeriod(), nil, nil, nil, nil)

	tr := newTransfer(t, svc, repo, "10")
	_, err := svc.Submit(context.Background(), tr.ID, 7)
	require.NoError(t, err)

	closed := NewService(repo, repo, fakePeriods{err: period.ErrClosed}, nil, nil, nil, nil)
	_, err = closed.Approve(context.Background(), tr.ID, 8)
	require.ErrorIs(t, err, period.ErrClosed)
}

func TestSameLocationRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, repo, openPeriod(), nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		SourceID: 1, DestinationID: 1, ActorID: 7,
		Lines: []LineInput{{ItemID: 10, Qty: d("1")}},
	})
	require.ErrorIs(t, err, ErrSameLocation)
}
