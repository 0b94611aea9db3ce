package masterdata

import (
	"errors"
	"time"
)

// UoM is an item's unit of measure.
type UoM string

const (
	UoMMass   UoM = "MASS"
	UoMCount  UoM = "COUNT"
	UoMVolume UoM = "VOLUME"
	UoMBox    UoM = "BOX"
	UoMCase   UoM = "CASE"
	UoMPack   UoM = "PACK"
)

// Valid reports whether the unit of measure is known.
func (u UoM) Valid() bool {
	switch u {
	case UoMMass, UoMCount, UoMVolume, UoMBox, UoMCase, UoMPack:
		return true
	}
	return false
}

// LocationType classifies a stock-holding location.
type LocationType string

const (
	LocationKitchen   LocationType = "KITCHEN"
	LocationStore     LocationType = "STORE"
	LocationCentral   LocationType = "CENTRAL"
	LocationWarehouse LocationType = "WAREHOUSE"
)

// Valid reports whether the location type is known.
func (t LocationType) Valid() bool {
	switch t {
	case LocationKitchen, LocationStore, LocationCentral, LocationWarehouse:
		return true
	}
	return false
}

// Item is a global product definition. Code is unique and immutable; items
// are soft-deactivated, never deleted, so historical transactions keep their
// references.
type Item struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code" validate:"required,max=32"`
	Name      string    `json:"name" validate:"required,max=128"`
	UoM       UoM       `json:"uom" validate:"required"`
	Category  string    `json:"category" validate:"max=64"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location is a stock-holding site.
type Location struct {
	ID        int64        `json:"id"`
	Code      string       `json:"code" validate:"required,max=32"`
	Name      string       `json:"name" validate:"required,max=128"`
	Type      LocationType `json:"type" validate:"required"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Supplier is a goods vendor.
type Supplier struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code" validate:"required,max=32"`
	Name      string    `json:"name" validate:"required,max=128"`
	Contact   string    `json:"contact" validate:"max=256"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilter narrows list queries.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("masterdata: not found")
	// ErrDuplicateCode indicates a unique code collision.
	ErrDuplicateCode = errors.New("masterdata: code already exists")
	// ErrInvalidUoM indicates an unknown unit of measure.
	ErrInvalidUoM = errors.New("masterdata: invalid unit of measure")
	// ErrInvalidLocationType indicates an unknown location type.
	ErrInvalidLocationType = errors.New("masterdata: invalid location type")
	// ErrCodeImmutable indicates an attempt to change a code after creation.
	ErrCodeImmutable = errors.New("masterdata: code is immutable")
)
