package property

import "errors"

var (
	// ErrEmptyApartmentID is returned when an apartment id is empty.
	ErrEmptyApartmentID = errors.New("property: empty apartment id")
	// ErrInvalidSize is returned when an apartment size is not positive.
	ErrInvalidSize = errors.New("property: apartment size must be positive")
	// ErrInvalidPeriod is returned when a period start is after its end.
	ErrInvalidPeriod = errors.New("property: period start after end")
)
