package billing

import "errors"

var (
	// ErrEmptyPeriodID is returned when a period id is empty.
	ErrEmptyPeriodID = errors.New("billing: empty period id")
	// ErrInvalidPeriod is returned when period boundaries are missing or reversed.
	ErrInvalidPeriod = errors.New("billing: invalid period")
	// ErrEmptyBookingID is returned when a booking id is empty.
	ErrEmptyBookingID = errors.New("billing: empty booking id")
	// ErrUnknownCostCenter is returned when a booking references no known cost center.
	ErrUnknownCostCenter = errors.New("billing: unknown cost center")
	// ErrNilSnapshot is returned when a run is started without input data.
	ErrNilSnapshot = errors.New("billing: nil snapshot")
	// ErrPeriodNotFound is returned when the requested period is not in the snapshot.
	ErrPeriodNotFound = errors.New("billing: period not found")
)
