package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"tenancy-billing/internal/anomaly"
	"tenancy-billing/internal/metering"
	"tenancy-billing/internal/property"
	"tenancy-billing/internal/rounding"
)

// PeriodContext is the resolved state of one billing period an allocation
// draws weights from: occupancy fractions, apartment areas and per-type
// metered consumption.
type PeriodContext struct {
	Occupancy   map[property.ApartmentID]decimal.Decimal
	Areas       map[property.ApartmentID]decimal.Decimal
	Consumption map[metering.MeterType]metering.Consumption
}

// Line is one apartment's share of a booking. Weight is the raw strategy
// weight the amount was derived from; for blended allocations it is zero
// since two bases contribute.
type Line struct {
	ApartmentID property.ApartmentID
	Designation string
	Weight      decimal.Decimal
	Amount      decimal.Decimal
}

// Result is a fully distributed booking.
type Result struct {
	BookingID    string
	CostCenterID CostCenterID
	Type         DistributionType
	Lines        []Line
	Anomalies    []anomaly.Record
}

type target struct {
	apartment   property.ApartmentID
	designation string
	weight      decimal.Decimal
}

func (t target) key() string {
	if t.designation == "" {
		return string(t.apartment)
	}
	return string(t.apartment) + "/" + t.designation
}

// Allocate distributes a booking amount across the cost center's apartments.
// The returned line amounts always sum to amount exactly; failing that is a
// defect and reported as ErrConservation.
func Allocate(bookingID string, amount decimal.Decimal, cc CostCenter, contribs []Contribution, ctx PeriodContext, scale int32) (Result, error) {
	if err := cc.Validate(); err != nil {
		return Result{}, err
	}
	result := Result{BookingID: bookingID, CostCenterID: cc.ID, Type: cc.Type}

	var err error
	switch cc.Type {
	case DistHeatingMixed:
		err = allocateMixed(amount, cc, contribs, ctx, scale, &result)
	default:
		var targets []target
		targets, err = targetsFor(cc, contribs, ctx)
		if err == nil {
			err = allocateTargets(amount, targets, scale, &result)
		}
	}
	if err != nil {
		return Result{}, err
	}

	sort.Slice(result.Lines, func(i, j int) bool {
		if result.Lines[i].ApartmentID != result.Lines[j].ApartmentID {
			return result.Lines[i].ApartmentID < result.Lines[j].ApartmentID
		}
		return result.Lines[i].Designation < result.Lines[j].Designation
	})

	sum := decimal.Zero
	for _, line := range result.Lines {
		sum = sum.Add(line.Amount)
	}
	if !sum.Equal(amount.Round(scale)) {
		return Result{}, ErrConservation
	}
	return result, nil
}

// targetsFor builds the weighted participant set for a single-basis
// distribution. Contributions restrict participation when present; without
// them every known apartment participates.
func targetsFor(cc CostCenter, contribs []Contribution, ctx PeriodContext) ([]target, error) {
	own := make([]Contribution, 0, len(contribs))
	for _, c := range contribs {
		if c.CostCenterID == cc.ID {
			own = append(own, c)
		}
	}

	if cc.Type == DistDirect {
		if len(own) == 0 {
			return nil, ErrNoParticipants
		}
		targets := make([]target, 0, len(own))
		for _, c := range own {
			if c.Weight == nil {
				return nil, ErrMissingWeight
			}
			targets = append(targets, target{apartment: c.ApartmentID, designation: c.Designation, weight: *c.Weight})
		}
		return targets, nil
	}

	basis := func(id property.ApartmentID) decimal.Decimal {
		switch cc.Type {
		case DistTime:
			return ctx.Occupancy[id]
		case DistArea:
			return ctx.Areas[id]
		default:
			return ctx.Consumption[cc.MeterType].ByApartment[id]
		}
	}

	if len(own) > 0 {
		targets := make([]target, 0, len(own))
		for _, c := range own {
			w := basis(c.ApartmentID)
			if c.Weight != nil {
				w = *c.Weight
			}
			targets = append(targets, target{apartment: c.ApartmentID, designation: c.Designation, weight: w})
		}
		return targets, nil
	}

	var ids []property.ApartmentID
	if cc.Type == DistConsumption {
		ids = ctx.Consumption[cc.MeterType].Apartments()
	} else {
		for id := range ctx.Areas {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	if len(ids) == 0 {
		return nil, ErrNoParticipants
	}
	targets := make([]target, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, target{apartment: id, weight: basis(id)})
	}
	return targets, nil
}

// allocateTargets distributes amount over the targets, falling back to an
// equal split with an anomaly when every weight is zero.
func allocateTargets(amount decimal.Decimal, targets []target, scale int32, result *Result) error {
	if len(targets) == 0 {
		return ErrNoParticipants
	}
	keys := make([]string, len(targets))
	shares := make([]rounding.Share, len(targets))
	allZero := true
	for i, t := range targets {
		keys[i] = t.key()
		shares[i] = rounding.Share{Key: t.key(), Weight: t.weight}
		if !t.weight.IsZero() {
			allZero = false
		}
	}

	var amounts []decimal.Decimal
	var err error
	if allZero {
		amounts, err = rounding.Equal(amount, keys, scale)
		if err != nil {
			return err
		}
		result.Anomalies = append(result.Anomalies,
			anomaly.New(anomaly.CodeZeroWeightFallback, string(result.CostCenterID),
				"all weights zero, booking split equally"))
	} else {
		amounts, err = rounding.Distribute(amount, shares, scale)
		if err != nil {
			return err
		}
	}

	for i, t := range targets {
		result.addAmount(t.apartment, t.designation, t.weight, amounts[i])
	}
	return nil
}

// allocateMixed splits the booking into an area part and a consumption part,
// distributes each with its own basis and merges the lines per target.
func allocateMixed(amount decimal.Decimal, cc CostCenter, contribs []Contribution, ctx PeriodContext, scale int32, result *Result) error {
	areaAmount := amount.Mul(cc.AreaPercent).Div(decimal.NewFromInt(100)).Round(scale)
	consAmount := amount.Round(scale).Sub(areaAmount)

	// Weight overrides replace metered units only; the area part always
	// follows the apartment areas.
	areaContribs := make([]Contribution, len(contribs))
	copy(areaContribs, contribs)
	for i := range areaContribs {
		areaContribs[i].Weight = nil
	}

	areaCC := cc
	areaCC.Type = DistArea
	areaTargets, err := targetsFor(areaCC, areaContribs, ctx)
	if err != nil {
		return err
	}
	consCC := cc
	consCC.Type = DistConsumption
	consTargets, err := targetsFor(consCC, contribs, ctx)
	if err != nil {
		return err
	}

	if err := allocateTargets(areaAmount, areaTargets, scale, result); err != nil {
		return err
	}
	if err := allocateTargets(consAmount, consTargets, scale, result); err != nil {
		return err
	}
	// Merged lines carry no single strategy weight.
	for i := range result.Lines {
		result.Lines[i].Weight = decimal.Zero
	}
	return nil
}

// addAmount merges an amount into an existing line for the same target or
// appends a new one.
func (r *Result) addAmount(apartment property.ApartmentID, designation string, weight, amount decimal.Decimal) {
	for i := range r.Lines {
		if r.Lines[i].ApartmentID == apartment && r.Lines[i].Designation == designation {
			r.Lines[i].Amount = r.Lines[i].Amount.Add(amount)
			return
		}
	}
	r.Lines = append(r.Lines, Line{ApartmentID: apartment, Designation: designation, Weight: weight, Amount: amount})
}
