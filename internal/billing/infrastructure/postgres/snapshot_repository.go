// Package postgres loads run snapshots and persists run results.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tenancy-billing/internal/allocation"
	"tenancy-billing/internal/billing/application"
	billing "tenancy-billing/internal/billing/domain"
	"tenancy-billing/internal/metering"
	"tenancy-billing/internal/property"
)

// SnapshotRepository materializes the run input from the database.
type SnapshotRepository struct {
	db           *sql.DB
	lookbackDays int
}

// Option configures the repository.
type Option func(*SnapshotRepository)

// WithReadingLookback widens the reading window around the period so
// boundary values can be interpolated.
func WithReadingLookback(days int) Option {
	return func(r *SnapshotRepository) {
		if days > 0 {
			r.lookbackDays = days
		}
	}
}

// NewSnapshotRepository constructs a repository.
func NewSnapshotRepository(db *sql.DB, opts ...Option) *SnapshotRepository {
	r := &SnapshotRepository{db: db, lookbackDays: 90}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadSnapshot implements application.SnapshotSource.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, buildingID string, periodID billing.PeriodID) (*application.Snapshot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("snapshot repo: nil db")
	}
	snap := &application.Snapshot{BuildingID: buildingID}

	row := r.db.QueryRowContext(ctx, `
SELECT id, start_date, end_date, topic
FROM account_periods
WHERE id = $1`, string(periodID))
	var topic string
	if err := row.Scan(&snap.Period.ID, &snap.Period.Start, &snap.Period.End, &topic); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, billing.ErrPeriodNotFound
		}
		return nil, err
	}
	snap.Period.Topic = billing.Topic(topic)

	if err := r.loadApartments(ctx, buildingID, snap); err != nil {
		return nil, err
	}
	if err := r.loadRenters(ctx, buildingID, snap); err != nil {
		return nil, err
	}
	if err := r.loadCostCenters(ctx, buildingID, snap); err != nil {
		return nil, err
	}
	if err := r.loadBookings(ctx, periodID, snap); err != nil {
		return nil, err
	}
	if err := r.loadMetering(ctx, buildingID, snap); err != nil {
		return nil, err
	}
	if err := r.loadPayments(ctx, periodID, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *SnapshotRepository) loadApartments(ctx context.Context, buildingID string, snap *application.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, building_id, number, name, size_m2, compare_group
FROM apartments
WHERE building_id = $1
ORDER BY id`, buildingID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var apt property.Apartment
		var group sql.NullString
		if err := rows.Scan(&apt.ID, &apt.BuildingID, &apt.Number, &apt.Name, &apt.SizeM2, &group); err != nil {
			return err
		}
		apt.CompareGroup = group.String
		snap.Apartments = append(snap.Apartments, apt)
	}
	return rows.Err()
}

func (r *SnapshotRepository) loadRenters(ctx context.Context, buildingID string, snap *application.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT r.id, r.apartment_id, r.first_name, r.last_name, r.move_in_date, r.move_out_date
FROM renters r
JOIN apartments a ON a.id = r.apartment_id
WHERE a.building_id = $1
ORDER BY r.id`, buildingID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var renter property.Renter
		var moveOut sql.NullTime
		if err := rows.Scan(&renter.ID, &renter.ApartmentID, &renter.FirstName, &renter.LastName, &renter.MoveIn, &moveOut); err != nil {
			return err
		}
		if moveOut.Valid {
			out := moveOut.Time
			renter.MoveOut = &out
		}
		snap.Renters = append(snap.Renters, renter)
	}
	return rows.Err()
}

func (r *SnapshotRepository) loadCostCenters(ctx context.Context, buildingID string, snap *application.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, distribution_type, area_percentage, meter_type
FROM cost_centers
WHERE building_id = $1
ORDER BY id`, buildingID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cc allocation.CostCenter
		var meterType sql.NullString
		if err := rows.Scan(&cc.ID, &cc.Name, &cc.Type, &cc.AreaPercent, &meterType); err != nil {
			return err
		}
		if meterType.Valid {
			cc.MeterType = metering.MeterType(meterType.String)
		}
		snap.CostCenters = append(snap.CostCenters, cc)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	contribRows, err := r.db.QueryContext(ctx, `
SELECT c.cost_center_id, c.apartment_id, c.designation, c.weight
FROM cost_center_contributions c
JOIN cost_centers cc ON cc.id = c.cost_center_id
WHERE cc.building_id = $1
ORDER BY c.cost_center_id, c.apartment_id, c.designation`, buildingID)
	if err != nil {
		return err
	}
	defer contribRows.Close()
	for contribRows.Next() {
		var contrib allocation.Contribution
		var designation sql.NullString
		var weight decimal.NullDecimal
		if err := contribRows.Scan(&contrib.CostCenterID, &contrib.ApartmentID, &designation, &weight); err != nil {
			return err
		}
		contrib.Designation = designation.String
		if weight.Valid {
			w := weight.Decimal
			contrib.Weight = &w
		}
		snap.Contributions = append(snap.Contributions, contrib)
	}
	return contribRows.Err()
}

func (r *SnapshotRepository) loadBookings(ctx context.Context, periodID billing.PeriodID, snap *application.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, account_period_id, cost_center_id, amount, description
FROM bookings
WHERE account_period_id = $1
ORDER BY id`, string(periodID))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var b billing.Booking
		if err := rows.Scan(&b.ID, &b.PeriodID, &b.CostCenterID, &b.Amount, &b.Description); err != nil {
			return err
		}
		snap.Bookings = append(snap.Bookings, b)
	}
	return rows.Err()
}

func (r *SnapshotRepository) loadMetering(ctx context.Context, buildingID string, snap *application.Snapshot) error {
	placeRows, err := r.db.QueryContext(ctx, `
SELECT id, meter_type, name, apartment_id
FROM meter_places
WHERE building_id = $1
ORDER BY id`, buildingID)
	if err != nil {
		return err
	}
	defer placeRows.Close()
	for placeRows.Next() {
		var place metering.MeterPlace
		var apartmentID sql.NullString
		if err := placeRows.Scan(&place.ID, &place.Type, &place.Name, &apartmentID); err != nil {
			return err
		}
		place.ApartmentID = property.ApartmentID(apartmentID.String)
		snap.Places = append(snap.Places, place)
	}
	if err := placeRows.Err(); err != nil {
		return err
	}

	meterRows, err := r.db.QueryContext(ctx, `
SELECT m.id, m.place_id, m.parent_meter_id, m.apartment_id, m.number, m.build_in_date, m.out_of_order_date
FROM meters m
JOIN meter_places p ON p.id = m.place_id
WHERE p.building_id = $1
ORDER BY m.id`, buildingID)
	if err != nil {
		return err
	}
	defer meterRows.Close()
	for meterRows.Next() {
		var m metering.Meter
		var parent, apartment sql.NullString
		var outOfOrder sql.NullTime
		if err := meterRows.Scan(&m.ID, &m.PlaceID, &parent, &apartment, &m.Number, &m.BuildIn, &outOfOrder); err != nil {
			return err
		}
		m.ParentID = metering.MeterID(parent.String)
		m.ApartmentID = property.ApartmentID(apartment.String)
		if outOfOrder.Valid {
			out := outOfOrder.Time
			m.OutOfOrder = &out
		}
		snap.Meters = append(snap.Meters, m)
	}
	if err := meterRows.Err(); err != nil {
		return err
	}

	lookback := time.Duration(r.lookbackDays) * 24 * time.Hour
	readingRows, err := r.db.QueryContext(ctx, `
SELECT r.meter_id, r.reading_date, r.value
FROM meter_readings r
JOIN meters m ON m.id = r.meter_id
JOIN meter_places p ON p.id = m.place_id
WHERE p.building_id = $1 AND r.reading_date BETWEEN $2 AND $3
ORDER BY r.meter_id, r.reading_date`,
		buildingID, snap.Period.Start.Add(-lookback), snap.Period.End.Add(lookback))
	if err != nil {
		return err
	}
	defer readingRows.Close()
	for readingRows.Next() {
		var reading metering.Reading
		if err := readingRows.Scan(&reading.MeterID, &reading.Date, &reading.Value); err != nil {
			return err
		}
		snap.Readings = append(snap.Readings, reading)
	}
	return readingRows.Err()
}

func (r *SnapshotRepository) loadPayments(ctx context.Context, periodID billing.PeriodID, snap *application.Snapshot) error {
	advRows, err := r.db.QueryContext(ctx, `
SELECT renter_id, payment_date, amount
FROM advance_payments
WHERE account_period_id = $1
ORDER BY renter_id, payment_date`, string(periodID))
	if err != nil {
		return err
	}
	defer advRows.Close()
	for advRows.Next() {
		var adv billing.AdvancePayment
		if err := advRows.Scan(&adv.RenterID, &adv.Date, &adv.Amount); err != nil {
			return err
		}
		snap.Advances = append(snap.Advances, adv)
	}
	if err := advRows.Err(); err != nil {
		return err
	}

	adjRows, err := r.db.QueryContext(ctx, `
SELECT renter_id, description, amount
FROM adjustments
WHERE account_period_id = $1
ORDER BY renter_id, description`, string(periodID))
	if err != nil {
		return err
	}
	defer adjRows.Close()
	for adjRows.Next() {
		var adj billing.Adjustment
		if err := adjRows.Scan(&adj.RenterID, &adj.Description, &adj.Amount); err != nil {
			return err
		}
		snap.Adjustments = append(snap.Adjustments, adj)
	}
	return adjRows.Err()
}
