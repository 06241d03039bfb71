package billing

import (
	"github.com/shopspring/decimal"

	"tenancy-billing/internal/allocation"
	"tenancy-billing/internal/property"
)

// ConsumptionCalc is the audit record behind a consumption-based share: the
// units an apartment consumed, its percentage of the cost center total and
// the reconciliation factor the meter tree applied, if any.
type ConsumptionCalc struct {
	CostCenterID allocation.CostCenterID
	BookingID    BookingID
	ApartmentID  property.ApartmentID
	Method       allocation.DistributionType
	Units        decimal.Decimal
	SharePercent decimal.Decimal
	ReconFactor  decimal.Decimal
}
