package billing

import (
	"github.com/shopspring/decimal"

	"tenancy-billing/internal/allocation"
)

// BookingID identifies a cost booking.
type BookingID string

// Booking is one cost position billed against an account period. Amount is
// positive for costs passed on to the apartments; a negative amount credits
// them.
type Booking struct {
	ID           BookingID
	PeriodID     PeriodID
	CostCenterID allocation.CostCenterID
	Amount       decimal.Decimal
	Description  string
}

// Validate checks the booking's references.
func (b Booking) Validate() error {
	if b.ID == "" {
		return ErrEmptyBookingID
	}
	if b.PeriodID == "" {
		return ErrEmptyPeriodID
	}
	if b.CostCenterID == "" {
		return ErrUnknownCostCenter
	}
	return nil
}
