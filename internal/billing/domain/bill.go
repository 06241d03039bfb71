package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"tenancy-billing/internal/allocation"
	"tenancy-billing/internal/property"
)

// LineItem is one booking share on a bill. Designation marks special shares
// such as vacancy, carried through from the cost center contribution.
type LineItem struct {
	BookingID    BookingID
	CostCenterID allocation.CostCenterID
	Description  string
	Designation  string
	Amount       decimal.Decimal
}

// AdvancePayment is a prepayment a renter made during the period.
type AdvancePayment struct {
	RenterID property.RenterID
	Date     time.Time
	Amount   decimal.Decimal
}

// Adjustment is a manual correction applied on top of the allocated costs.
type Adjustment struct {
	RenterID    property.RenterID
	Description string
	Amount      decimal.Decimal
}

// Bill is the settled statement of one apartment (and, when occupancy is
// known, one renter) for an account period. Balance is what remains after
// advance payments and adjustments: positive means a refund to the renter,
// negative a demand.
type Bill struct {
	ID          string
	ApartmentID property.ApartmentID
	RenterID    property.RenterID
	PeriodID    PeriodID
	Lines       []LineItem
	Total       decimal.Decimal
	Advances    decimal.Decimal
	Adjustments decimal.Decimal
	Balance     decimal.Decimal
}

// Settle recomputes Total and Balance from the line items and payments.
func (b *Bill) Settle() {
	total := decimal.Zero
	for _, line := range b.Lines {
		total = total.Add(line.Amount)
	}
	b.Total = total
	b.Balance = b.Advances.Sub(total).Add(b.Adjustments)
}
