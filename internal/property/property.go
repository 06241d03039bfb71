// Package property holds the building master data the engine allocates
// against: apartments and their renters over time.
package property

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApartmentID identifies an apartment.
type ApartmentID string

// RenterID identifies a renter.
type RenterID string

// Apartment is one unit of a building. CompareGroup names the pool the
// apartment's consumption statistics are compared within; empty means the
// whole building.
type Apartment struct {
	ID           ApartmentID
	BuildingID   string
	Number       string
	Name         string
	SizeM2       decimal.Decimal
	CompareGroup string
}

// Validate checks the apartment record.
func (a Apartment) Validate() error {
	if a.ID == "" {
		return ErrEmptyApartmentID
	}
	if a.SizeM2.Sign() <= 0 {
		return ErrInvalidSize
	}
	return nil
}

// Renter occupies an apartment from MoveIn until MoveOut.
// A nil MoveOut means the tenancy is still active.
type Renter struct {
	ID          RenterID
	ApartmentID ApartmentID
	FirstName   string
	LastName    string
	MoveIn      time.Time
	MoveOut     *time.Time
}
