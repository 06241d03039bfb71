package metering

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tenancy-billing/internal/anomaly"
	"tenancy-billing/internal/rounding"
)

// Delta is the resolved consumption of one meter over a period.
// ReconFactor records the scaling applied when the sub-meter sum was
// reconciled against a main meter; it stays 1 otherwise.
type Delta struct {
	MeterID      MeterID
	StartValue   decimal.Decimal
	EndValue     decimal.Decimal
	Value        decimal.Decimal
	Interpolated bool
	Estimated    bool
	ReconFactor  decimal.Decimal
}

// Resolver answers boundary values and period deltas from a reading set.
// ReconTolerance is the absolute deviation between a parent delta and its
// sub-meter sum below which no rescaling happens; zero means exact matching.
type Resolver struct {
	readings       map[MeterID][]Reading
	chained        map[MeterID]Delta
	ReconTolerance decimal.Decimal
}

// NewResolver indexes the readings per meter, sorted by date.
func NewResolver(readings []Reading) *Resolver {
	byMeter := make(map[MeterID][]Reading)
	for _, r := range readings {
		byMeter[r.MeterID] = append(byMeter[r.MeterID], r)
	}
	for id := range byMeter {
		rs := byMeter[id]
		sort.Slice(rs, func(i, j int) bool { return rs[i].Date.Before(rs[j].Date) })
	}
	return &Resolver{readings: byMeter}
}

// ValueAt returns the meter value at the given date. An exact reading wins;
// otherwise the value is interpolated linearly between the nearest readings
// before and after. Without a bracketing pair the meter cannot be resolved.
func (r *Resolver) ValueAt(id MeterID, date time.Time) (decimal.Decimal, bool, error) {
	rs := r.readings[id]
	date = truncateToDay(date)

	var before, after *Reading
	for i := range rs {
		d := truncateToDay(rs[i].Date)
		if d.Equal(date) {
			return rs[i].Value, false, nil
		}
		if d.Before(date) {
			before = &rs[i]
		} else if after == nil {
			after = &rs[i]
		}
	}
	if before == nil || after == nil {
		return decimal.Zero, false, ErrInsufficientReadings
	}

	span := decimal.NewFromInt(daysBetween(before.Date, after.Date))
	offset := decimal.NewFromInt(daysBetween(before.Date, date))
	value := before.Value.Add(after.Value.Sub(before.Value).Mul(offset).Div(span))
	return value.Round(ReadingScale), true, nil
}

// UseChainedDelta pins the resolved delta of a meter, taking precedence over
// its readings. The value of a succession chain resolved through ResolvePlace
// enters tree resolution this way, attached to the chain's current meter.
func (r *Resolver) UseChainedDelta(d Delta) {
	if r.chained == nil {
		r.chained = make(map[MeterID]Delta)
	}
	r.chained[d.MeterID] = d
}

// ResolveMeter computes the consumption of a single meter between start and
// end. A negative delta is treated as a rollover and reported as zero with an
// anomaly, since the pre-rollover capacity of the register is unknown.
func (r *Resolver) ResolveMeter(id MeterID, start, end time.Time) (Delta, []anomaly.Record, error) {
	if end.Before(start) {
		return Delta{}, nil, ErrInvalidPeriod
	}
	if d, ok := r.chained[id]; ok {
		return d, nil, nil
	}
	startValue, startInterp, err := r.ValueAt(id, start)
	if err != nil {
		return Delta{}, nil, err
	}
	endValue, endInterp, err := r.ValueAt(id, end)
	if err != nil {
		return Delta{}, nil, err
	}

	d := Delta{
		MeterID:      id,
		StartValue:   startValue,
		EndValue:     endValue,
		Value:        endValue.Sub(startValue),
		Interpolated: startInterp || endInterp,
		ReconFactor:  decimal.NewFromInt(1),
	}
	var records []anomaly.Record
	if d.Value.IsNegative() {
		records = append(records, anomaly.New(anomaly.CodeMeterRollover, string(id),
			"negative delta "+d.Value.String()+" replaced by zero"))
		d.Value = decimal.Zero
	}
	return d, records, nil
}

// TreeResult holds the reconciled deltas of one meter subtree.
type TreeResult struct {
	Deltas    map[MeterID]Delta
	Anomalies []anomaly.Record
}

// ResolveTree resolves the subtree rooted at root and reconciles each parent
// against the sum of its direct sub-meters. When the parent reads more or
// less than its children, the children are rescaled so their sum matches the
// parent exactly; the common factor is recorded on every child. A parent
// without enough readings is estimated as the sum of its children. A child
// without enough readings is dropped from the tree with an anomaly.
func (r *Resolver) ResolveTree(h *Hierarchy, root MeterID, start, end time.Time) (TreeResult, error) {
	if _, ok := h.Meter(root); !ok {
		return TreeResult{}, ErrUnknownMeter
	}
	result := TreeResult{Deltas: make(map[MeterID]Delta)}
	if err := r.resolveNode(h, root, start, end, &result); err != nil {
		return TreeResult{}, err
	}
	return result, nil
}

func (r *Resolver) resolveNode(h *Hierarchy, id MeterID, start, end time.Time, result *TreeResult) error {
	children := h.Children(id)
	resolvedChildren := make([]MeterID, 0, len(children))
	for _, child := range children {
		if err := r.resolveNode(h, child, start, end, result); err != nil {
			return err
		}
		if _, ok := result.Deltas[child]; ok {
			resolvedChildren = append(resolvedChildren, child)
		}
	}

	own, records, err := r.ResolveMeter(id, start, end)
	result.Anomalies = append(result.Anomalies, records...)
	if err == ErrInsufficientReadings {
		if len(resolvedChildren) == 0 {
			// Leaf without readings: excluded, the parent reconciles without it.
			result.Anomalies = append(result.Anomalies,
				anomaly.New(anomaly.CodeInsufficientReadings, string(id), "meter excluded from period"))
			return nil
		}
		sum := decimal.Zero
		for _, child := range resolvedChildren {
			sum = sum.Add(result.Deltas[child].Value)
		}
		result.Deltas[id] = Delta{
			MeterID:     id,
			Value:       sum,
			Estimated:   true,
			ReconFactor: decimal.NewFromInt(1),
		}
		result.Anomalies = append(result.Anomalies,
			anomaly.New(anomaly.CodeParentDeltaEstimated, string(id), "delta taken from sub-meter sum"))
		return nil
	}
	if err != nil {
		return err
	}
	result.Deltas[id] = own

	if len(resolvedChildren) == 0 {
		return nil
	}
	return r.reconcile(id, own.Value, resolvedChildren, result)
}

// reconcile rescales the direct children of parent so they sum to
// parentValue. A zero child sum is left untouched.
func (r *Resolver) reconcile(parent MeterID, parentValue decimal.Decimal, children []MeterID, result *TreeResult) error {
	sum := decimal.Zero
	for _, child := range children {
		sum = sum.Add(result.Deltas[child].Value)
	}
	if sum.IsZero() || parentValue.Sub(sum).Abs().LessThanOrEqual(r.ReconTolerance) {
		return nil
	}

	factor := parentValue.Div(sum)
	shares := make([]rounding.Share, len(children))
	for i, child := range children {
		shares[i] = rounding.Share{Key: string(child), Weight: result.Deltas[child].Value}
	}
	scaled, err := rounding.Distribute(parentValue, shares, ReadingScale)
	if err != nil {
		return err
	}
	for i, child := range children {
		d := result.Deltas[child]
		d.Value = scaled[i]
		d.ReconFactor = factor
		result.Deltas[child] = d
	}
	result.Anomalies = append(result.Anomalies,
		anomaly.New(anomaly.CodeReconciliationApplied, string(parent),
			"sub-meter sum "+sum.String()+" scaled by "+factor.StringFixed(6)))
	return nil
}

// ResolvePlace resolves the consumption recorded at a meter place, chaining
// successive meters at their exchange dates. Each meter contributes the
// sub-period from its build-in to its out-of-order date, clipped to the
// requested period.
func (r *Resolver) ResolvePlace(place MeterPlace, meters []Meter, start, end time.Time) (decimal.Decimal, []Delta, []anomaly.Record, error) {
	if end.Before(start) {
		return decimal.Zero, nil, nil, ErrInvalidPeriod
	}
	active := make([]Meter, 0, len(meters))
	for _, m := range meters {
		if m.PlaceID != place.ID {
			continue
		}
		if m.BuildIn.After(end) {
			continue
		}
		if m.OutOfOrder != nil && m.OutOfOrder.Before(start) {
			continue
		}
		active = append(active, m)
	}
	if len(active) == 0 {
		return decimal.Zero, nil, nil, ErrNoActiveMeter
	}
	sort.Slice(active, func(i, j int) bool { return active[i].BuildIn.Before(active[j].BuildIn) })

	total := decimal.Zero
	var deltas []Delta
	var records []anomaly.Record
	for _, m := range active {
		subStart := start
		if m.BuildIn.After(subStart) {
			subStart = m.BuildIn
		}
		subEnd := end
		if m.OutOfOrder != nil && m.OutOfOrder.Before(subEnd) {
			subEnd = *m.OutOfOrder
		}
		d, rs, err := r.ResolveMeter(m.ID, subStart, subEnd)
		records = append(records, rs...)
		if err == ErrInsufficientReadings {
			records = append(records,
				anomaly.New(anomaly.CodeInsufficientReadings, string(m.ID), "meter skipped in succession chain"))
			continue
		}
		if err != nil {
			return decimal.Zero, nil, nil, err
		}
		deltas = append(deltas, d)
		total = total.Add(d.Value)
	}
	if len(deltas) == 0 {
		return decimal.Zero, nil, records, ErrInsufficientReadings
	}
	return total, deltas, records, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int64 {
	return int64(truncateToDay(to).Sub(truncateToDay(from)).Hours() / 24)
}
