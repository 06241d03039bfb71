package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenancy-billing/internal/billing/application"
)

// RunRepository persists finished billing runs. A re-run of the same period
// replaces the previous result in one transaction.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository constructs a repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveRun implements application.ResultSink.
func (r *RunRepository) SaveRun(ctx context.Context, result *application.RunResult) error {
	if r == nil || r.db == nil {
		return errors.New("run repo: nil db")
	}
	if result == nil {
		return errors.New("run repo: nil result")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	for _, table := range []string{"bill_lines", "bills", "consumption_calcs", "heating_infos", "run_anomalies"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE building_id = $1 AND account_period_id = $2`,
			result.BuildingID, string(result.Period.ID)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	for _, bill := range result.Bills {
		_, err := tx.ExecContext(ctx, `
INSERT INTO bills (
	id, building_id, account_period_id, apartment_id, renter_id,
	total_amount, advances, adjustments, balance, currency, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			bill.ID, result.BuildingID, string(result.Period.ID), string(bill.ApartmentID), string(bill.RenterID),
			bill.Total, bill.Advances, bill.Adjustments, bill.Balance, result.Currency, now)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		for _, line := range bill.Lines {
			_, err := tx.ExecContext(ctx, `
INSERT INTO bill_lines (
	bill_id, building_id, account_period_id, booking_id, cost_center_id,
	description, designation, amount
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				bill.ID, result.BuildingID, string(result.Period.ID), string(line.BookingID), string(line.CostCenterID),
				line.Description, line.Designation, line.Amount)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}

	for _, calc := range result.ConsumptionCalcs {
		_, err := tx.ExecContext(ctx, `
INSERT INTO consumption_calcs (
	building_id, account_period_id, booking_id, cost_center_id, apartment_id,
	method, units, share_percent, recon_factor
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			result.BuildingID, string(result.Period.ID), string(calc.BookingID), string(calc.CostCenterID),
			string(calc.ApartmentID), string(calc.Method), calc.Units, calc.SharePercent, calc.ReconFactor)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	for _, info := range result.HeatingInfos {
		_, err := tx.ExecContext(ctx, `
INSERT INTO heating_infos (
	building_id, account_period_id, apartment_id, compare_group, basis, unit, own_value, compare_value
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			result.BuildingID, string(result.Period.ID), string(info.ApartmentID),
			info.Group, string(info.Basis), info.Unit, info.OwnValue, info.CompareValue)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	for _, record := range result.Anomalies {
		_, err := tx.ExecContext(ctx, `
INSERT INTO run_anomalies (
	building_id, account_period_id, code, subject, detail, created_at
) VALUES ($1,$2,$3,$4,$5,$6)`,
			result.BuildingID, string(result.Period.ID), string(record.Code), record.Subject, record.Detail, now)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}
