package metering

import "errors"

var (
	// ErrEmptyMeterID is returned when a meter id is empty.
	ErrEmptyMeterID = errors.New("metering: empty meter id")
	// ErrUnknownMeter is returned when a referenced meter does not exist.
	ErrUnknownMeter = errors.New("metering: unknown meter")
	// ErrUnknownParent is returned when a meter references a missing parent.
	ErrUnknownParent = errors.New("metering: unknown parent meter")
	// ErrCyclicHierarchy is returned when the parent links do not form a tree.
	ErrCyclicHierarchy = errors.New("metering: cyclic meter hierarchy")
	// ErrInsufficientReadings is returned when a meter has no bracketing
	// readings for a period boundary. Per-meter condition, not fatal to a run.
	ErrInsufficientReadings = errors.New("metering: insufficient readings")
	// ErrInvalidPeriod is returned when a period start is after its end.
	ErrInvalidPeriod = errors.New("metering: period start after end")
	// ErrNoActiveMeter is returned when a place has no meter covering the
	// period.
	ErrNoActiveMeter = errors.New("metering: no active meter at place")
)
