package masterdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items     map[int64]Item
	locations map[int64]Location
	suppliers map[int64]Supplier
	codes     map[string]bool
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:     make(map[int64]Item),
		locations: make(map[int64]Location),
		suppliers: make(map[int64]Supplier),
		codes:     make(map[string]bool),
	}
}

func (r *memoryRepo) CreateItem(ctx context.Context, item Item) (Item, error) {
	if r.codes["item:"+item.Code] {
		return Item{}, ErrDuplicateCode
	}
	r.codes["item:"+item.Code] = true
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) UpdateItem(ctx context.Context, item Item) error {
	if _, ok := r.items[item.ID]; !ok {
		return ErrNotFound
	}
	r.items[item.ID] = item
	return nil
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	if item, ok := r.items[id]; ok {
		return item, nil
	}
	return Item{}, ErrNotFound
}

func (r *memoryRepo) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	var out []Item
	for _, item := range r.items {
		if filter.ActiveOnly && !item.Active {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *memoryRepo) CreateLocation(ctx context.Context, loc Location) (Location, error) {
	if r.codes["loc:"+loc.Code] {
		return Location{}, ErrDuplicateCode
	}
	r.codes["loc:"+loc.Code] = true
	r.nextID++
	loc.ID = r.nextID
	r.locations[loc.ID] = loc
	return loc, nil
}

func (r *memoryRepo) UpdateLocation(ctx context.Context, loc Location) error {
	if _, ok := r.locations[loc.ID]; !ok {
		return ErrNotFound
	}
	r.locations[loc.ID] = loc
	return nil
}

func (r *memoryRepo) GetLocation(ctx context.Context, id int64) (Location, error) {
	if loc, ok := r.locations[id]; ok {
		return loc, nil
	}
	return Location{}, ErrNotFound
}

func (r *memoryRepo) ListLocations(ctx context.Context, filter ListFilter) ([]Location, error) {
	var out []Location
	for _, loc := range r.locations {
		out = append(out, loc)
	}
	return out, nil
}

func (r *memoryRepo) CreateSupplier(ctx context.Context, sup Supplier) (Supplier, error) {
	if r.codes["sup:"+sup.Code] {
		return Supplier{}, ErrDuplicateCode
	}
	r.codes["sup:"+sup.Code] = true
	r.nextID++
	sup.ID = r.nextID
	r.suppliers[sup.ID] = sup
	return sup, nil
}

func (r *memoryRepo) UpdateSupplier(ctx context.Context, sup Supplier) error {
	if _, ok := r.suppliers[sup.ID]; !ok {
		return ErrNotFound
	}
	r.suppliers[sup.ID] = sup
	return nil
}

func (r *memoryRepo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	if sup, ok := r.suppliers[id]; ok {
		return sup, nil
	}
	return Supplier{}, ErrNotFound
}

func (r *memoryRepo) ListSuppliers(ctx context.Context, filter ListFilter) ([]Supplier, error) {
	var out []Supplier
	for _, sup := range r.suppliers {
		out = append(out, sup)
	}
	return out, nil
}

func TestCreateItemNormalizesAndValidates(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, Item{Code: " tomato ", Name: "Tomatoes", UoM: UoMMass, Category: "produce"})
	require.NoError(t, err)
	require.Equal(t, "TOMATO", item.Code)
	require.True(t, item.Active)

	_, err = svc.CreateItem(ctx, Item{Code: "FLOUR", Name: "Flour", UoM: UoM("BUSHEL")})
	require.ErrorIs(t, err, ErrInvalidUoM)

	_, err = svc.CreateItem(ctx, Item{Name: "No code", UoM: UoMCount})
	require.Error(t, err)
}

func TestItemCodeIsImmutable(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, Item{Code: "TOMATO", Name: "Tomatoes", UoM: UoMMass})
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, Item{ID: item.ID, Code: "TOMATO2", Name: "Plum tomatoes", UoM: UoMMass})
	require.ErrorIs(t, err, ErrCodeImmutable)

	updated, err := svc.UpdateItem(ctx, Item{ID: item.ID, Name: "Plum tomatoes", UoM: UoMMass})
	require.NoError(t, err)
	require.Equal(t, "TOMATO", updated.Code)
	require.Equal(t, "Plum tomatoes", updated.Name)
}

func TestDuplicateCode(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, Item{Code: "TOMATO", Name: "Tomatoes", UoM: UoMMass})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, Item{Code: "TOMATO", Name: "Other tomatoes", UoM: UoMMass})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestDeactivateIsSoft(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, Item{Code: "TOMATO", Name: "Tomatoes", UoM: UoMMass})
	require.NoError(t, err)

	deactivated, err := svc.DeactivateItem(ctx, item.ID)
	require.NoError(t, err)
	require.False(t, deactivated.Active)

	// Still retrievable for historical references.
	got, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "TOMATO", got.Code)

	active, err := svc.ListItems(ctx, ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestCreateLocationValidatesType(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, Location{Code: "main-kitchen", Name: "Main Kitchen", Type: LocationKitchen})
	require.NoError(t, err)
	require.Equal(t, "MAIN-KITCHEN", loc.Code)

	_, err = svc.CreateLocation(ctx, Location{Code: "X", Name: "X", Type: LocationType("GARAGE")})
	require.ErrorIs(t, err, ErrInvalidLocationType)
}

func TestSupplierLifecycle(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	sup, err := svc.CreateSupplier(ctx, Supplier{Code: "ACME", Name: "Acme Foods", Contact: "orders@acme.test"})
	require.NoError(t, err)

	updated, err := svc.UpdateSupplier(ctx, Supplier{ID: sup.ID, Name: "Acme Foods Ltd", Contact: "sales@acme.test"})
	require.NoError(t, err)
	require.Equal(t, "ACME", updated.Code)

	deactivated, err := svc.DeactivateSupplier(ctx, sup.ID)
	require.NoError(t, err)
	require.False(t, deactivated.Active)
}
