// Package metering resolves physical meter consumption for billing periods:
// boundary readings with interpolation, main/sub meter reconciliation and
// meter succession at a metering place.
package metering

import (
	"time"

	"github.com/shopspring/decimal"

	"tenancy-billing/internal/property"
)

// MeterID identifies a physical meter.
type MeterID string

// PlaceID identifies a metering place (a location meters are installed at,
// possibly several in succession).
type PlaceID string

// MeterType classifies what a meter measures.
type MeterType string

const (
	TypeElectricity MeterType = "EL"
	TypeGas         MeterType = "GA"
	TypeColdWater   MeterType = "KW"
	TypeWarmWater   MeterType = "WW"
	TypeHeat        MeterType = "HE"
	TypeOil         MeterType = "OI"
)

// ReadingScale is the decimal precision of stored readings and deltas.
const ReadingScale = 2

// MeterPlace is a metering point. ApartmentID is empty for building-level
// places.
type MeterPlace struct {
	ID          PlaceID
	Type        MeterType
	Name        string
	ApartmentID property.ApartmentID
}

// Meter is one physical device. ParentID links a sub-meter to its main
// meter; the hierarchy must form a tree. A meter belongs to an apartment
// either directly or through its place.
type Meter struct {
	ID          MeterID
	PlaceID     PlaceID
	ParentID    MeterID
	ApartmentID property.ApartmentID
	Number      string
	BuildIn     time.Time
	OutOfOrder  *time.Time
}

// Reading is one counter value at a date. Values are cumulative and
// non-decreasing under normal operation; a decrease signals replacement or
// rollover.
type Reading struct {
	MeterID MeterID
	Date    time.Time
	Value   decimal.Decimal
}

// ApartmentFor returns the apartment a meter's consumption belongs to,
// preferring the direct link over the place link. Empty means building-level.
func ApartmentFor(m Meter, places map[PlaceID]MeterPlace) property.ApartmentID {
	if m.ApartmentID != "" {
		return m.ApartmentID
	}
	if place, ok := places[m.PlaceID]; ok {
		return place.ApartmentID
	}
	return ""
}
