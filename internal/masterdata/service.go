package masterdata

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Repository abstracts master data persistence.
type Repository interface {
	CreateItem(ctx context.Context, item Item) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, filter ListFilter) ([]Item, error)

	CreateLocation(ctx context.Context, loc Location) (Location, error)
	UpdateLocation(ctx context.Context, loc Location) error
	GetLocation(ctx context.Context, id int64) (Location, error)
	ListLocations(ctx context.Context, filter ListFilter) ([]Location, error)

	CreateSupplier(ctx context.Context, sup Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, sup Supplier) error
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context, filter ListFilter) ([]Supplier, error)
}

// Service owns master data rules: codes are unique and immutable, records
// deactivate instead of deleting.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs the master data service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New(), now: time.Now}
}

// CreateItem inserts a new active item.
func (s *Service) CreateItem(ctx context.Context, item Item) (Item, error) {
	item.Code = strings.ToUpper(strings.TrimSpace(item.Code))
	if err := s.validate.Struct(item); err != nil {
		return Item{}, err
	}
	if !item.UoM.Valid() {
		return Item{}, ErrInvalidUoM
	}
	now := s.now().UTC()
	item.Active = true
	item.CreatedAt = now
	item.UpdatedAt = now
	return s.repo.CreateItem(ctx, item)
}

// UpdateItem changes mutable item fields. The code never changes.
func (s *Service) UpdateItem(ctx context.Context, item Item) (Item, error) {
	current, err := s.repo.GetItem(ctx, item.ID)
	if err != nil {
		return Item{}, err
	}
	if item.Code != "" && item.Code != current.Code {
		return Item{}, ErrCodeImmutable
	}
	item.Code = current.Code
	if err := s.validate.Struct(item); err != nil {
		return Item{}, err
	}
	if !item.UoM.Valid() {
		return Item{}, ErrInvalidUoM
	}
	item.CreatedAt = current.CreatedAt
	item.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// DeactivateItem soft-deletes an item.
func (s *Service) DeactivateItem(ctx context.Context, id int64) (Item, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	item.Active = false
	item.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// GetItem returns an item by id.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns filtered items.
func (s *Service) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	return s.repo.ListItems(ctx, filter)
}

// CreateLocation inserts a new active location.
func (s *Service) CreateLocation(ctx context.Context, loc Location) (Location, error) {
	loc.Code = strings.ToUpper(strings.TrimSpace(loc.Code))
	if err := s.validate.Struct(loc); err != nil {
		return Location{}, err
	}
	if !loc.Type.Valid() {
		return Location{}, ErrInvalidLocationType
	}
	now := s.now().UTC()
	loc.Active = true
	loc.CreatedAt = now
	loc.UpdatedAt = now
	return s.repo.CreateLocation(ctx, loc)
}

// UpdateLocation changes mutable location fields. The code never changes.
func (s *Service) UpdateLocation(ctx context.Context, loc Location) (Location, error) {
	current, err := s.repo.GetLocation(ctx, loc.ID)
	if err != nil {
		return Location{}, err
	}
	if loc.Code != "" && loc.Code != current.Code {
		return Location{}, ErrCodeImmutable
	}
	loc.Code = current.Code
	if err := s.validate.Struct(loc); err != nil {
		return Location{}, err
	}
	if !loc.Type.Valid() {
		return Location{}, ErrInvalidLocationType
	}
	loc.CreatedAt = current.CreatedAt
	loc.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateLocation(ctx, loc); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// DeactivateLocation soft-deletes a location. Deactivated locations drop out
// of the period close readiness roll call.
func (s *Service) DeactivateLocation(ctx context.Context, id int64) (Location, error) {
	loc, err := s.repo.GetLocation(ctx, id)
	if err != nil {
		return Location{}, err
	}
	loc.Active = false
	loc.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateLocation(ctx, loc); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// GetLocation returns a location by id.
func (s *Service) GetLocation(ctx context.Context, id int64) (Location, error) {
	return s.repo.GetLocation(ctx, id)
}

// ListLocations returns filtered locations.
func (s *Service) ListLocations(ctx context.Context, filter ListFilter) ([]Location, error) {
	return s.repo.ListLocations(ctx, filter)
}

// CreateSupplier inserts a new active supplier.
func (s *Service) CreateSupplier(ctx context.Context, sup Supplier) (Supplier, error) {
	sup.Code = strings.ToUpper(strings.TrimSpace(sup.Code))
	if err := s.validate.Struct(sup); err != nil {
		return Supplier{}, err
	}
	now := s.now().UTC()
	sup.Active = true
	sup.CreatedAt = now
	sup.UpdatedAt = now
	return s.repo.CreateSupplier(ctx, sup)
}

// UpdateSupplier changes mutable supplier fields. The code never changes.
func (s *Service) UpdateSupplier(ctx context.Context, sup Supplier) (Supplier, error) {
	current, err := s.repo.GetSupplier(ctx, sup.ID)
	if err != nil {
		return Supplier{}, err
	}
	if sup.Code != "" && sup.Code != current.Code {
		return Supplier{}, ErrCodeImmutable
	}
	sup.Code = current.Code
	if err := s.validate.Struct(sup); err != nil {
		return Supplier{}, err
	}
	sup.CreatedAt = current.CreatedAt
	sup.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateSupplier(ctx, sup); err != nil {
		return Supplier{}, err
	}
	return sup, nil
}

// DeactivateSupplier soft-deletes a supplier.
func (s *Service) DeactivateSupplier(ctx context.Context, id int64) (Supplier, error) {
	sup, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	sup.Active = false
	sup.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateSupplier(ctx, sup); err != nil {
		return Supplier{}, err
	}
	return sup, nil
}

// GetSupplier returns a supplier by id.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// ListSuppliers returns filtered suppliers.
func (s *Service) ListSuppliers(ctx context.Context, filter ListFilter) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, filter)
}
