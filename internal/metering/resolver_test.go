package metering

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tenancy-billing/internal/anomaly"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewHierarchyRejectsUnknownParent(t *testing.T) {
	_, err := NewHierarchy([]Meter{{ID: "m1", ParentID: "missing"}})
	if !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("expected ErrUnknownParent, got %v", err)
	}
}

func TestNewHierarchyRejectsCycle(t *testing.T) {
	_, err := NewHierarchy([]Meter{
		{ID: "m1", ParentID: "m2"},
		{ID: "m2", ParentID: "m1"},
	})
	if !errors.Is(err, ErrCyclicHierarchy) {
		t.Fatalf("expected ErrCyclicHierarchy, got %v", err)
	}
}

func TestResolveMeterExactReadings(t *testing.T) {
	r := NewResolver([]Reading{
		{MeterID: "m1", Date: day(0), Value: dec("120.50")},
		{MeterID: "m1", Date: day(30), Value: dec("150.75")},
	})
	d, records, err := r.ResolveMeter("m1", day(0), day(30))
	if err != nil {
		t.Fatalf("ResolveMeter: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no anomalies, got %v", records)
	}
	if !d.Value.Equal(dec("30.25")) {
		t.Fatalf("expected delta 30.25, got %s", d.Value)
	}
	if d.Interpolated {
		t.Fatal("exact readings must not be flagged interpolated")
	}
	if !d.ReconFactor.Equal(dec("1")) {
		t.Fatalf("expected factor 1, got %s", d.ReconFactor)
	}
}

func TestResolveMeterInterpolates(t *testing.T) {
	r := NewResolver([]Reading{
		{MeterID: "m1", Date: day(0), Value: dec("0")},
		{MeterID: "m1", Date: day(10), Value: dec("100")},
	})
	d, _, err := r.ResolveMeter("m1", day(2), day(7))
	if err != nil {
		t.Fatalf("ResolveMeter: %v", err)
	}
	if !d.StartValue.Equal(dec("20")) || !d.EndValue.Equal(dec("70")) {
		t.Fatalf("expected boundaries 20/70, got %s/%s", d.StartValue, d.EndValue)
	}
	if !d.Value.Equal(dec("50")) {
		t.Fatalf("expected delta 50, got %s", d.Value)
	}
	if !d.Interpolated {
		t.Fatal("interpolated boundaries must be flagged")
	}
}

func TestResolveMeterRollover(t *testing.T) {
	r := NewResolver([]Reading{
		{MeterID: "m1", Date: day(0), Value: dec("100")},
		{MeterID: "m1", Date: day(30), Value: dec("20")},
	})
	d, records, err := r.ResolveMeter("m1", day(0), day(30))
	if err != nil {
		t.Fatalf("ResolveMeter: %v", err)
	}
	if !d.Value.IsZero() {
		t.Fatalf("expected zero delta after rollover, got %s", d.Value)
	}
	if len(records) != 1 || records[0].Code != anomaly.CodeMeterRollover {
		t.Fatalf("expected rollover anomaly, got %v", records)
	}
}

func TestResolveMeterInsufficientReadings(t *testing.T) {
	r := NewResolver([]Reading{
		{MeterID: "m1", Date: day(5), Value: dec("10")},
	})
	_, _, err := r.ResolveMeter("m1", day(0), day(30))
	if !errors.Is(err, ErrInsufficientReadings) {
		t.Fatalf("expected ErrInsufficientReadings, got %v", err)
	}
}

func treeFixture(t *testing.T) *Hierarchy {
	t.Helper()
	h, err := NewHierarchy([]Meter{
		{ID: "main"},
		{ID: "sub-a", ParentID: "main", ApartmentID: "apt-1"},
		{ID: "sub-b", ParentID: "main", ApartmentID: "apt-2"},
	})
	if err != nil {
		t.Fatalf("NewHierarchy: %v", err)
	}
	return h
}

func TestResolveTreeReconcilesChildren(t *testing.T) {
	h := treeFixture(t)
	r := NewResolver([]Reading{
		{MeterID: "main", Date: day(0), Value: dec("0")},
		{MeterID: "main", Date: day(30), Value: dec("100")},
		{MeterID: "sub-a", Date: day(0), Value: dec("0")},
		{MeterID: "sub-a", Date: day(30), Value: dec("30")},
		{MeterID: "sub-b", Date: day(0), Value: dec("0")},
		{MeterID: "sub-b", Date: day(30), Value: dec("30")},
	})
	result, err := r.ResolveTree(h, "main", day(0), day(30))
	if err != nil {
		t.Fatalf("ResolveTree: %v", err)
	}
	a := result.Deltas["sub-a"]
	b := result.Deltas["sub-b"]
	if !a.Value.Equal(dec("50")) || !b.Value.Equal(dec("50")) {
		t.Fatalf("expected scaled 50/50, got %s/%s", a.Value, b.Value)
	}
	if !a.Value.Add(b.Value).Equal(result.Deltas["main"].Value) {
		t.Fatal("reconciled children must sum to parent")
	}
	if a.ReconFactor.Equal(dec("1")) {
		t.Fatalf("expected scaling factor recorded, got %s", a.ReconFactor)
	}
	found := false
	for _, rec := range result.Anomalies {
		if rec.Code == anomaly.CodeReconciliationApplied {
			found = true
		}
	}
	if !found {
		t.Fatal("expected reconciliation anomaly")
	}
}

func TestResolveTreeMatchingSumUnscaled(t *testing.T) {
	h := treeFixture(t)
	r := NewResolver([]Reading{
		{MeterID: "main", Date: day(0), Value: dec("0")},
		{MeterID: "main", Date: day(30), Value: dec("60")},
		{MeterID: "sub-a", Date: day(0), Value: dec("0")},
		{MeterID: "sub-a", Date: day(30), Value: dec("25")},
		{MeterID: "sub-b", Date: day(0), Value: dec("0")},
		{MeterID: "sub-b", Date: day(30), Value: dec("35")},
	})
	result, err := r.ResolveTree(h, "main", day(0), day(30))
	if err != nil {
		t.Fatalf("ResolveTree: %v", err)
	}
	if !result.Deltas["sub-a"].Value.Equal(dec("25")) {
		t.Fatalf("matching sum must not change children, got %s", result.Deltas["sub-a"].Value)
	}
	if len(result.Anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %v", result.Anomalies)
	}
}

func TestResolveTreeEstimatesParent(t *testing.T) {
	h := treeFixture(t)
	r := NewResolver([]Reading{
		{MeterID: "sub-a", Date: day(0), Value: dec("0")},
		{MeterID: "sub-a", Date: day(30), Value: dec("25")},
		{MeterID: "sub-b", Date: day(0), Value: dec("0")},
		{MeterID: "sub-b", Date: day(30), Value: dec("35")},
	})
	result, err := r.ResolveTree(h, "main", day(0), day(30))
	if err != nil {
		t.Fatalf("ResolveTree: %v", err)
	}
	main := result.Deltas["main"]
	if !main.Value.Equal(dec("60")) || !main.Estimated {
		t.Fatalf("expected estimated parent 60, got %s estimated=%v", main.Value, main.Estimated)
	}
	found := false
	for _, rec := range result.Anomalies {
		if rec.Code == anomaly.CodeParentDeltaEstimated {
			found = true
		}
	}
	if !found {
		t.Fatal("expected parent estimate anomaly")
	}
}

func TestResolveTreeDropsUnresolvableChild(t *testing.T) {
	h := treeFixture(t)
	r := NewResolver([]Reading{
		{MeterID: "main", Date: day(0), Value: dec("0")},
		{MeterID: "main", Date: day(30), Value: dec("40")},
		{MeterID: "sub-a", Date: day(0), Value: dec("0")},
		{MeterID: "sub-a", Date: day(30), Value: dec("20")},
	})
	result, err := r.ResolveTree(h, "main", day(0), day(30))
	if err != nil {
		t.Fatalf("ResolveTree: %v", err)
	}
	if _, ok := result.Deltas["sub-b"]; ok {
		t.Fatal("unresolvable child must be dropped")
	}
	if !result.Deltas["sub-a"].Value.Equal(dec("40")) {
		t.Fatalf("remaining child reconciles to parent, got %s", result.Deltas["sub-a"].Value)
	}
}

func TestResolvePlaceChainsSuccessors(t *testing.T) {
	swap := day(15)
	place := MeterPlace{ID: "p1", Type: TypeColdWater}
	meters := []Meter{
		{ID: "old", PlaceID: "p1", BuildIn: day(-100), OutOfOrder: &swap},
		{ID: "new", PlaceID: "p1", BuildIn: day(15)},
	}
	r := NewResolver([]Reading{
		{MeterID: "old", Date: day(0), Value: dec("500")},
		{MeterID: "old", Date: day(15), Value: dec("512")},
		{MeterID: "new", Date: day(15), Value: dec("0")},
		{MeterID: "new", Date: day(30), Value: dec("8")},
	})
	total, deltas, _, err := r.ResolvePlace(place, meters, day(0), day(30))
	if err != nil {
		t.Fatalf("ResolvePlace: %v", err)
	}
	if !total.Equal(dec("20")) {
		t.Fatalf("expected chained total 20, got %s", total)
	}
	if len(deltas) != 2 {
		t.Fatalf("expected 2 sub-periods, got %d", len(deltas))
	}
}

func TestResolveMeterPrefersChainedDelta(t *testing.T) {
	r := NewResolver(nil)
	r.UseChainedDelta(Delta{MeterID: "m1", Value: dec("12.50"), ReconFactor: decimal.NewFromInt(1)})
	d, records, err := r.ResolveMeter("m1", day(0), day(30))
	if err != nil {
		t.Fatalf("ResolveMeter: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("unexpected anomalies: %v", records)
	}
	if !d.Value.Equal(dec("12.50")) {
		t.Fatalf("expected chained 12.50, got %s", d.Value)
	}
}

func TestResolvePlaceNoActiveMeter(t *testing.T) {
	place := MeterPlace{ID: "p1"}
	out := day(-50)
	meters := []Meter{{ID: "old", PlaceID: "p1", BuildIn: day(-100), OutOfOrder: &out}}
	r := NewResolver(nil)
	_, _, _, err := r.ResolvePlace(place, meters, day(0), day(30))
	if !errors.Is(err, ErrNoActiveMeter) {
		t.Fatalf("expected ErrNoActiveMeter, got %v", err)
	}
}

func TestAttributeConsumptionLeavesOnly(t *testing.T) {
	h := treeFixture(t)
	r := NewResolver([]Reading{
		{MeterID: "main", Date: day(0), Value: dec("0")},
		{MeterID: "main", Date: day(30), Value: dec("60")},
		{MeterID: "sub-a", Date: day(0), Value: dec("0")},
		{MeterID: "sub-a", Date: day(30), Value: dec("25")},
		{MeterID: "sub-b", Date: day(0), Value: dec("0")},
		{MeterID: "sub-b", Date: day(30), Value: dec("35")},
	})
	result, err := r.ResolveTree(h, "main", day(0), day(30))
	if err != nil {
		t.Fatalf("ResolveTree: %v", err)
	}
	c := AttributeConsumption(h, "main", result, nil, TypeColdWater)
	if !c.Total.Equal(dec("60")) {
		t.Fatalf("expected total 60, got %s", c.Total)
	}
	if !c.ByApartment["apt-1"].Equal(dec("25")) || !c.ByApartment["apt-2"].Equal(dec("35")) {
		t.Fatalf("unexpected attribution: %v", c.ByApartment)
	}
	if !c.Unattributed.IsZero() {
		t.Fatalf("expected no unattributed share, got %s", c.Unattributed)
	}
}
