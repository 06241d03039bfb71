package allocation

import "errors"

var (
	// ErrUnknownDistribution reports a distribution type outside the closed set.
	ErrUnknownDistribution = errors.New("allocation: unknown distribution type")
	// ErrMissingMeterRef reports a consumption-based cost center without a meter reference.
	ErrMissingMeterRef = errors.New("allocation: cost center requires a meter reference")
	// ErrInvalidAreaPercent reports an area percentage outside 0..100.
	ErrInvalidAreaPercent = errors.New("allocation: area percentage out of range")
	// ErrNoParticipants reports a booking with no apartment to allocate to.
	ErrNoParticipants = errors.New("allocation: no participating apartments")
	// ErrMissingWeight reports a direct contribution without a weight value.
	ErrMissingWeight = errors.New("allocation: direct contribution without weight")
	// ErrConservation reports allocated shares not summing to the booking amount.
	ErrConservation = errors.New("allocation: shares do not sum to booking amount")
)
