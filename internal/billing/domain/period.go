// Package billing holds the account period, booking and bill aggregates of
// the cost settlement context.
package billing

import "time"

// Topic classifies what an account period settles.
type Topic string

const (
	TopicRent        Topic = "RENT"
	TopicHeating     Topic = "HEATING"
	TopicElectricity Topic = "ELECTRICITY"
	TopicWater       Topic = "WATER"
	TopicOperating   Topic = "OPERATING"
)

// PeriodID identifies an account period.
type PeriodID string

// AccountPeriod is one closed billing span. Dates are inclusive at day
// granularity.
type AccountPeriod struct {
	ID    PeriodID
	Start time.Time
	End   time.Time
	Topic Topic
}

// Validate checks the period boundaries.
func (p AccountPeriod) Validate() error {
	if p.ID == "" {
		return ErrEmptyPeriodID
	}
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Days returns the inclusive day count of the period.
func (p AccountPeriod) Days() int {
	start := time.Date(p.Start.Year(), p.Start.Month(), p.Start.Day(), 0, 0, 0, 0, p.Start.Location())
	end := time.Date(p.End.Year(), p.End.Month(), p.End.Day(), 0, 0, 0, 0, p.End.Location())
	return int(end.Sub(start).Hours()/24) + 1
}
