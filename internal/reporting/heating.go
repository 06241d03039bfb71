// Package reporting derives tenant-facing comparison figures from allocated
// consumption: own value against the building average, per square meter or
// per unit.
package reporting

import (
	"sort"

	"github.com/shopspring/decimal"

	billing "tenancy-billing/internal/billing/domain"
	"tenancy-billing/internal/property"
)

// ComparisonMode controls whether an apartment's own value takes part in the
// building average it is compared against.
type ComparisonMode string

const (
	ModeIncludeSelf ComparisonMode = "include_self"
	ModeExcludeSelf ComparisonMode = "exclude_self"
)

// Basis selects how the comparison value is normalized.
type Basis string

const (
	// BasisPerSquareMeter projects the group's per-m2 intensity onto the
	// apartment's own size.
	BasisPerSquareMeter Basis = "m2"
	// BasisPerUnit compares against the plain mean over apartments.
	BasisPerUnit Basis = "unit"
)

// HeatingInfo is one comparison row for the report layer. Group names the
// comparison pool the row was computed in.
type HeatingInfo struct {
	ApartmentID  property.ApartmentID
	PeriodID     billing.PeriodID
	Group        string
	Basis        Basis
	Unit         string
	OwnValue     decimal.Decimal
	CompareValue decimal.Decimal
}

// Compare builds one HeatingInfo per apartment with a value, all compared
// within the named group. The comparison value is what the apartment would
// show at the group's average intensity: size_m2 times the group's value per
// m2, or the plain per-apartment mean. With ModeExcludeSelf the apartment's
// own value and size leave the group first; a group that empties out compares
// against zero.
func Compare(periodID billing.PeriodID, group string, values map[property.ApartmentID]decimal.Decimal, areas map[property.ApartmentID]decimal.Decimal, basis Basis, mode ComparisonMode, unit string, scale int32) []HeatingInfo {
	ids := make([]property.ApartmentID, 0, len(values))
	groupSum := decimal.Zero
	groupM2 := decimal.Zero
	for id, v := range values {
		ids = append(ids, id)
		groupSum = groupSum.Add(v)
		groupM2 = groupM2.Add(areas[id])
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	infos := make([]HeatingInfo, 0, len(ids))
	for _, id := range ids {
		own := values[id]
		sum := groupSum
		m2 := groupM2
		count := int64(len(ids))
		if mode == ModeExcludeSelf {
			sum = sum.Sub(own)
			m2 = m2.Sub(areas[id])
			count--
		}

		compare := decimal.Zero
		switch basis {
		case BasisPerSquareMeter:
			if m2.IsPositive() {
				compare = areas[id].Mul(sum).Div(m2)
			}
		case BasisPerUnit:
			if count > 0 {
				compare = sum.Div(decimal.NewFromInt(count))
			}
		}

		infos = append(infos, HeatingInfo{
			ApartmentID:  id,
			PeriodID:     periodID,
			Group:        group,
			Basis:        basis,
			Unit:         unit,
			OwnValue:     own.Round(scale),
			CompareValue: compare.Round(scale),
		})
	}
	return infos
}

// WarmWaterEnergy converts warm water volumes in m3 into heating energy in
// kWh using the configured conversion factor.
func WarmWaterEnergy(volumes map[property.ApartmentID]decimal.Decimal, kwhPerM3 decimal.Decimal) map[property.ApartmentID]decimal.Decimal {
	energy := make(map[property.ApartmentID]decimal.Decimal, len(volumes))
	for id, v := range volumes {
		energy[id] = v.Mul(kwhPerM3)
	}
	return energy
}
