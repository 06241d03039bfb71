package application

import (
	"context"

	"tenancy-billing/internal/allocation"
	billing "tenancy-billing/internal/billing/domain"
	"tenancy-billing/internal/metering"
	"tenancy-billing/internal/property"
)

// Snapshot is the fully materialized input of one billing run: everything
// the engine needs, loaded up front, so the computation itself never touches
// a datastore.
type Snapshot struct {
	BuildingID    string
	Period        billing.AccountPeriod
	Apartments    []property.Apartment
	Renters       []property.Renter
	CostCenters   []allocation.CostCenter
	Contributions []allocation.Contribution
	Bookings      []billing.Booking
	Places        []metering.MeterPlace
	Meters        []metering.Meter
	Readings      []metering.Reading
	Advances      []billing.AdvancePayment
	Adjustments   []billing.Adjustment
}

// SnapshotSource loads the run input for a building and period. Readings
// include a lookback buffer outside the period for boundary interpolation.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, buildingID string, periodID billing.PeriodID) (*Snapshot, error)
}

// ResultSink persists a finished run.
type ResultSink interface {
	SaveRun(ctx context.Context, result *RunResult) error
}
