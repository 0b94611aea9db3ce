package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TxStore is the row-locked persistence surface the Keeper mutates. Every
// implementation must serialize GetEntryForUpdate per (location, item), e.g.
// via SELECT ... FOR UPDATE inside the surrounding transaction.
type TxStore interface {
	GetEntryForUpdate(ctx context.Context, locationID, itemID int64) (Entry, error)
	UpsertEntry(ctx context.Context, entry Entry) error
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
}

// Ref identifies the business document behind a movement.
type Ref struct {
	Module  string
	ID      string
	Note    string
	ActorID int64
}

// Keeper applies stock mutations to a TxStore. It holds no state of its own;
// all four operations run inside the caller's transaction so a multi-line
// posting commits or rolls back as a whole.
type Keeper struct {
	now func() time.Time
}

// NewKeeper constructs a Keeper.
func NewKeeper() *Keeper {
	return &Keeper{now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (k *Keeper) WithNow(now func() time.Time) {
	if now != nil {
		k.now = now
	}
}

// Receive blends qty units at unitPrice into the (location, item) entry.
func (k *Keeper) Receive(ctx context.Context, store TxStore, locationID, itemID int64, qty, unitPrice decimal.Decimal, ref Ref) (Entry, error) {
	return k.credit(ctx, store, locationID, itemID, qty, unitPrice, MovementReceipt, ref)
}

// Issue debits qty units. The on-hand check runs against the locked row, so
// two concurrent issues cannot both spend the same stock. WAC is untouched;
// the returned unit cost is the WAC the consumption is valued at.
func (k *Keeper) Issue(ctx context.Context, store TxStore, locationID, itemID int64, qty decimal.Decimal, ref Ref) (Entry, decimal.Decimal, error) {
	return k.debit(ctx, store, locationID, itemID, qty, MovementIssue, ref)
}

// TransferOut debits qty units from the source location and returns the
// source WAC so the destination can price the matching TransferIn.
func (k *Keeper) TransferOut(ctx context.Context, store TxStore, locationID, itemID int64, qty decimal.Decimal, ref Ref) (Entry, decimal.Decimal, error) {
	return k.debit(ctx, store, locationID, itemID, qty, MovementTransferOut, ref)
}

// TransferIn credits qty units priced at the source location's WAC. It never
// participates in variance detection.
func (k *Keeper) TransferIn(ctx context.Context, store TxStore, locationID, itemID int64, qty, unitValue decimal.Decimal, ref Ref) (Entry, error) {
	return k.credit(ctx, store, locationID, itemID, qty, unitValue, MovementTransferIn, ref)
}

func (k *Keeper) credit(ctx context.Context, store TxStore, locationID, itemID int64, qty, unitPrice decimal.Decimal, typ MovementType, ref Ref) (Entry, error) {
	if qty.Sign() <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	if unitPrice.Sign() < 0 {
		return Entry{}, ErrInvalidUnitCost
	}
	entry, err := k.lockEntry(ctx, store, locationID, itemID)
	if err != nil {
		return Entry{}, err
	}
	newWAC, err := Blend(entry.OnHand, entry.WAC, qty, unitPrice)
	if err != nil {
		return Entry{}, err
	}
	entry.OnHand = entry.OnHand.Add(qty)
	entry.WAC = newWAC
	entry.UpdatedAt = k.now().UTC()
	if err := store.UpsertEntry(ctx, entry); err != nil {
		return Entry{}, err
	}
	if err := k.journal(ctx, store, entry, typ, qty, unitPrice, ref); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (k *Keeper) debit(ctx context.Context, store TxStore, locationID, itemID int64, qty decimal.Decimal, typ MovementType, ref Ref) (Entry, decimal.Decimal, error) {
	if qty.Sign() <= 0 {
		return Entry{}, decimal.Zero, ErrInvalidQuantity
	}
	entry, err := k.lockEntry(ctx, store, locationID, itemID)
	if err != nil {
		return Entry{}, decimal.Zero, err
	}
	if qty.GreaterThan(entry.OnHand) {
		return Entry{}, decimal.Zero, &InsufficientStockError{
			LocationID: locationID,
			ItemID:     itemID,
			Requested:  qty,
			Available:  entry.OnHand,
		}
	}
	unitCost := entry.WAC
	entry.OnHand = entry.OnHand.Sub(qty)
	if entry.OnHand.IsZero() {
		entry.WAC = decimal.Zero
	}
	entry.UpdatedAt = k.now().UTC()
	if err := store.UpsertEntry(ctx, entry); err != nil {
		return Entry{}, decimal.Zero, err
	}
	if err := k.journal(ctx, store, entry, typ, qty.Neg(), unitCost, ref); err != nil {
		return Entry{}, decimal.Zero, err
	}
	return entry, unitCost, nil
}

func (k *Keeper) lockEntry(ctx context.Context, store TxStore, locationID, itemID int64) (Entry, error) {
	entry, err := store.GetEntryForUpdate(ctx, locationID, itemID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return Entry{LocationID: locationID, ItemID: itemID, OnHand: decimal.Zero, WAC: decimal.Zero}, nil
		}
		return Entry{}, err
	}
	if entry.OnHand.Sign() < 0 || entry.WAC.Sign() < 0 {
		return Entry{}, ErrNegativeState
	}
	return entry, nil
}

func (k *Keeper) journal(ctx context.Context, store TxStore, entry Entry, typ MovementType, qty, unitCost decimal.Decimal, ref Ref) error {
	_, err := store.InsertMovement(ctx, Movement{
		LocationID: entry.LocationID,
		ItemID:     entry.ItemID,
		Type:       typ,
		Qty:        qty,
		UnitCost:   unitCost,
		BalanceQty: entry.OnHand,
		BalanceWAC: entry.WAC,
		RefModule:  ref.Module,
		RefID:      ref.ID,
		Note:       ref.Note,
		PostedAt:   entry.UpdatedAt,
		CreatedBy:  ref.ActorID,
	})
	return err
}
