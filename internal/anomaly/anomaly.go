package anomaly

// Code classifies a data-quality condition detected during a billing run.
type Code string

const (
	// CodeMeterRollover marks a negative consumption delta (meter replaced or
	// rolled over); the delta was forced to zero.
	CodeMeterRollover Code = "meter_rollover"
	// CodeReconciliationApplied marks sub-meter deltas scaled to match their
	// main meter's measured delta.
	CodeReconciliationApplied Code = "reconciliation_applied"
	// CodeParentDeltaEstimated marks a main meter whose own delta could not be
	// resolved and was estimated from the sum of its sub-meters.
	CodeParentDeltaEstimated Code = "parent_delta_estimated"
	// CodeInsufficientReadings marks a meter skipped for lack of bracketing
	// readings.
	CodeInsufficientReadings Code = "insufficient_readings"
	// CodeZeroWeightFallback marks a booking split equally because every
	// weight in its distribution basis was zero.
	CodeZeroWeightFallback Code = "zero_weight_fallback"
	// CodeOccupancyClamped marks overlapping tenancies clamped to 100%
	// occupancy for one apartment.
	CodeOccupancyClamped Code = "occupancy_clamped"
)

// Record is a non-fatal finding surfaced to the caller for logging/display.
// The engine recovers with a deterministic fallback wherever one is recorded.
type Record struct {
	Code    Code
	Subject string
	Detail  string
}

// New builds a record.
func New(code Code, subject, detail string) Record {
	return Record{Code: code, Subject: subject, Detail: detail}
}
