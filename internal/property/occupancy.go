package property

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tenancy-billing/internal/anomaly"
)

// Window is one renter's overlap with a billing period.
type Window struct {
	RenterID RenterID
	Start    time.Time
	End      time.Time
	Days     int
	Fraction decimal.Decimal
}

// Occupancy is the resolved occupancy of one apartment for a period.
// TotalFraction never exceeds 1; an empty Windows slice is a valid result
// (vacant apartment).
type Occupancy struct {
	ApartmentID   ApartmentID
	PeriodDays    int
	Windows       []Window
	TotalFraction decimal.Decimal
}

// ResolveOccupancy computes the day-weighted overlap of every tenancy of one
// apartment with [periodStart, periodEnd] (dates inclusive). A renter without
// a move-out date occupies through period end. Overlapping tenancies are
// summed and clamped so the apartment total never exceeds 100%, recorded as
// an anomaly rather than failing the run.
func ResolveOccupancy(apartmentID ApartmentID, renters []Renter, periodStart, periodEnd time.Time) (Occupancy, []anomaly.Record, error) {
	periodStart = truncateToDay(periodStart)
	periodEnd = truncateToDay(periodEnd)
	if periodStart.After(periodEnd) {
		return Occupancy{}, nil, ErrInvalidPeriod
	}

	occ := Occupancy{
		ApartmentID:   apartmentID,
		PeriodDays:    dayCount(periodStart, periodEnd),
		TotalFraction: decimal.Zero,
	}
	periodDays := decimal.NewFromInt(int64(occ.PeriodDays))

	for _, renter := range renters {
		if renter.ApartmentID != apartmentID {
			continue
		}
		start := truncateToDay(renter.MoveIn)
		if start.Before(periodStart) {
			start = periodStart
		}
		end := periodEnd
		if renter.MoveOut != nil {
			moveOut := truncateToDay(*renter.MoveOut)
			if moveOut.Before(end) {
				end = moveOut
			}
		}
		if start.After(end) {
			continue
		}
		days := dayCount(start, end)
		occ.Windows = append(occ.Windows, Window{
			RenterID: renter.ID,
			Start:    start,
			End:      end,
			Days:     days,
			Fraction: decimal.NewFromInt(int64(days)).Div(periodDays),
		})
	}

	sort.Slice(occ.Windows, func(i, j int) bool {
		a, b := occ.Windows[i], occ.Windows[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.RenterID < b.RenterID
	})

	for _, window := range occ.Windows {
		occ.TotalFraction = occ.TotalFraction.Add(window.Fraction)
	}

	one := decimal.NewFromInt(1)
	var anomalies []anomaly.Record
	if occ.TotalFraction.GreaterThan(one) {
		// Overlapping tenancies; keep the relative day counts but cap the
		// apartment at full occupancy.
		excess := occ.TotalFraction
		for i := range occ.Windows {
			occ.Windows[i].Fraction = occ.Windows[i].Fraction.Div(excess)
		}
		occ.TotalFraction = one
		anomalies = append(anomalies, anomaly.New(
			anomaly.CodeOccupancyClamped,
			string(apartmentID),
			fmt.Sprintf("tenancy overlap of %s clamped to 1", excess),
		))
	}

	return occ, anomalies, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dayCount(from, to time.Time) int {
	return int(to.Sub(from).Hours()/24) + 1
}
