// Package allocation distributes booking amounts across apartments according
// to a cost center's distribution rule, conserving the total exactly.
package allocation

import (
	"github.com/shopspring/decimal"

	"tenancy-billing/internal/metering"
	"tenancy-billing/internal/property"
)

// DistributionType selects the weight basis of a cost center. The set is
// closed; every type has its own allocation path.
type DistributionType string

const (
	DistTime         DistributionType = "TIME"
	DistArea         DistributionType = "AREA"
	DistDirect       DistributionType = "DIRECT"
	DistConsumption  DistributionType = "CONSUMPTION"
	DistHeatingMixed DistributionType = "HEATING_MIXED"
)

// CostCenterID identifies a cost center.
type CostCenterID string

// CostCenter is one distribution rule. AreaPercent is only read for
// HEATING_MIXED; MeterType is required for CONSUMPTION and HEATING_MIXED.
type CostCenter struct {
	ID          CostCenterID
	Name        string
	Type        DistributionType
	AreaPercent decimal.Decimal
	MeterType   metering.MeterType
}

// Validate checks the rule's internal consistency.
func (c CostCenter) Validate() error {
	switch c.Type {
	case DistTime, DistArea, DistDirect:
	case DistConsumption:
		if c.MeterType == "" {
			return ErrMissingMeterRef
		}
	case DistHeatingMixed:
		if c.MeterType == "" {
			return ErrMissingMeterRef
		}
		if c.AreaPercent.IsNegative() || c.AreaPercent.GreaterThan(decimal.NewFromInt(100)) {
			return ErrInvalidAreaPercent
		}
	default:
		return ErrUnknownDistribution
	}
	return nil
}

// Contribution ties an apartment to a cost center. Weight carries a DIRECT
// weight or an override replacing the computed basis weight of that
// apartment. Designation labels special shares (for example vacancy) that
// appear as their own bill line.
type Contribution struct {
	CostCenterID CostCenterID
	ApartmentID  property.ApartmentID
	Designation  string
	Weight       *decimal.Decimal
}
