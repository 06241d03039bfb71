package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"tenancy-billing/internal/allocation"
	"tenancy-billing/internal/anomaly"
	billing "tenancy-billing/internal/billing/domain"
	"tenancy-billing/internal/metering"
	"tenancy-billing/internal/observability/metrics"
	"tenancy-billing/internal/property"
	"tenancy-billing/internal/reporting"
)

// BookingFailure reports a booking whose allocation was aborted. The rest of
// the run is unaffected.
type BookingFailure struct {
	BookingID billing.BookingID
	Err       error
}

// RunResult is the complete output of one billing run. Given the same
// snapshot and config, two runs produce identical results.
type RunResult struct {
	BuildingID       string
	Period           billing.AccountPeriod
	Currency         string
	Bills            []billing.Bill
	Allocations      []allocation.Result
	ConsumptionCalcs []billing.ConsumptionCalc
	HeatingInfos     []reporting.HeatingInfo
	Anomalies        []anomaly.Record
	Failures         []BookingFailure
}

// RunService executes billing runs over loaded snapshots.
type RunService struct {
	source SnapshotSource
	sink   ResultSink
	cfg    Config
}

// NewRunService constructs the service. The sink may be nil for dry runs.
func NewRunService(source SnapshotSource, sink ResultSink, cfg Config) (*RunService, error) {
	if source == nil {
		return nil, errors.New("run service: nil snapshot source")
	}
	return &RunService{source: source, sink: sink, cfg: cfg}, nil
}

// Run loads the snapshot for a building and period, computes the run and
// persists the result when a sink is configured.
func (s *RunService) Run(ctx context.Context, buildingID string, periodID billing.PeriodID) (*RunResult, error) {
	snap, err := s.source.LoadSnapshot(ctx, buildingID, periodID)
	if err != nil {
		return nil, err
	}
	result, err := ComputeRun(snap, s.cfg)
	if err != nil {
		return nil, err
	}
	if s.sink != nil {
		if err := s.sink.SaveRun(ctx, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ComputeRun is the pure billing computation: occupancy, meter resolution,
// per-booking allocation, comparison figures and bill aggregation. Bookings
// that fail validation are collected as failures; a conservation violation
// aborts the run.
func ComputeRun(snap *Snapshot, cfg Config) (*RunResult, error) {
	if snap == nil {
		return nil, billing.ErrNilSnapshot
	}
	if err := snap.Period.Validate(); err != nil {
		return nil, err
	}
	scale := int32(cfg.MoneyScale)

	result := &RunResult{
		BuildingID: snap.BuildingID,
		Period:     snap.Period,
		Currency:   cfg.Currency,
	}

	apartments := append([]property.Apartment(nil), snap.Apartments...)
	sort.Slice(apartments, func(i, j int) bool { return apartments[i].ID < apartments[j].ID })

	occupancy := make(map[property.ApartmentID]decimal.Decimal, len(apartments))
	areas := make(map[property.ApartmentID]decimal.Decimal, len(apartments))
	windows := make(map[property.ApartmentID][]property.Window, len(apartments))
	for _, apt := range apartments {
		if err := apt.Validate(); err != nil {
			return nil, err
		}
		occ, records, err := property.ResolveOccupancy(apt.ID, snap.Renters, snap.Period.Start, snap.Period.End)
		if err != nil {
			return nil, err
		}
		result.Anomalies = append(result.Anomalies, records...)
		occupancy[apt.ID] = occ.TotalFraction
		windows[apt.ID] = occ.Windows
		areas[apt.ID] = apt.SizeM2
	}

	consumption, reconFactors, err := resolveConsumption(snap, cfg, result)
	if err != nil {
		return nil, err
	}

	periodCtx := allocation.PeriodContext{
		Occupancy:   occupancy,
		Areas:       areas,
		Consumption: consumption,
	}
	contribs := append([]allocation.Contribution(nil), snap.Contributions...)
	if cfg.VacancyToOwner {
		contribs = append(contribs, vacancyContributions(snap.CostCenters, contribs, apartments, occupancy)...)
	}

	ccByID := make(map[allocation.CostCenterID]allocation.CostCenter, len(snap.CostCenters))
	for _, cc := range snap.CostCenters {
		ccByID[cc.ID] = cc
	}
	bookings := append([]billing.Booking(nil), snap.Bookings...)
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })

	// Allocations are independent per booking; indexed slices keep the
	// output order deterministic regardless of scheduling.
	allocations := make([]*allocation.Result, len(bookings))
	allocErrs := make([]error, len(bookings))
	var wg sync.WaitGroup
	for i := range bookings {
		wg.Add(1)
		go func(i int, b billing.Booking) {
			defer wg.Done()
			if err := b.Validate(); err != nil {
				allocErrs[i] = err
				return
			}
			cc, ok := ccByID[b.CostCenterID]
			if !ok {
				allocErrs[i] = billing.ErrUnknownCostCenter
				return
			}
			r, err := allocation.Allocate(string(b.ID), b.Amount, cc, contribs, periodCtx, scale)
			if err != nil {
				allocErrs[i] = err
				return
			}
			allocations[i] = &r
		}(i, bookings[i])
	}
	wg.Wait()

	descriptions := make(map[billing.BookingID]string, len(bookings))
	for i, b := range bookings {
		descriptions[b.ID] = b.Description
		if allocErrs[i] != nil {
			if errors.Is(allocErrs[i], allocation.ErrConservation) {
				metrics.CountAllocation("unknown", metrics.ResultError)
				return nil, allocErrs[i]
			}
			metrics.CountAllocation("unknown", metrics.ResultError)
			result.Failures = append(result.Failures, BookingFailure{BookingID: b.ID, Err: allocErrs[i]})
			continue
		}
		r := allocations[i]
		metrics.CountAllocation(string(r.Type), metrics.ResultSuccess)
		result.Allocations = append(result.Allocations, *r)
		result.Anomalies = append(result.Anomalies, r.Anomalies...)
		result.ConsumptionCalcs = append(result.ConsumptionCalcs,
			consumptionCalcs(*r, ccByID[r.CostCenterID], consumption, reconFactors)...)
	}

	buildBills(snap, result, windows, descriptions)
	buildHeatingInfos(snap, cfg, consumption, areas, result, scale)

	for _, record := range result.Anomalies {
		metrics.CountAnomaly(string(record.Code))
	}
	return result, nil
}

// resolveConsumption collapses meter succession per place, walks every meter
// tree root, reconciles it and folds the leaves into per-type apartment
// consumption. Factors applied during reconciliation are kept per meter type
// and apartment for the audit records.
func resolveConsumption(snap *Snapshot, cfg Config, result *RunResult) (map[metering.MeterType]metering.Consumption, map[metering.MeterType]map[property.ApartmentID]decimal.Decimal, error) {
	resolver := metering.NewResolver(snap.Readings)
	resolver.ReconTolerance = decimal.NewFromFloat(cfg.ReconTolerance)

	places := make(map[metering.PlaceID]metering.MeterPlace, len(snap.Places))
	for _, p := range snap.Places {
		places[p.ID] = p
	}

	meters, err := collapseSuccession(snap, resolver, places, result)
	if err != nil {
		return nil, nil, err
	}
	hierarchy, err := metering.NewHierarchy(meters)
	if err != nil {
		return nil, nil, err
	}

	roots := make([]metering.Meter, 0)
	for _, m := range meters {
		if m.ParentID == "" {
			roots = append(roots, m)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].ID < roots[j].ID })

	consumption := make(map[metering.MeterType]metering.Consumption)
	reconFactors := make(map[metering.MeterType]map[property.ApartmentID]decimal.Decimal)
	for _, root := range roots {
		place, ok := places[root.PlaceID]
		if !ok || place.Type == "" {
			result.Anomalies = append(result.Anomalies,
				anomaly.New(anomaly.CodeInsufficientReadings, string(root.ID), "meter without typed place skipped"))
			continue
		}
		tree, err := resolver.ResolveTree(hierarchy, root.ID, snap.Period.Start, snap.Period.End)
		if err != nil {
			return nil, nil, err
		}
		result.Anomalies = append(result.Anomalies, tree.Anomalies...)

		c := metering.AttributeConsumption(hierarchy, root.ID, tree, places, place.Type)
		consumption[place.Type] = mergeConsumption(consumption[place.Type], c, place.Type)

		for _, leaf := range hierarchy.Leaves(root.ID) {
			d, ok := tree.Deltas[leaf]
			if !ok || d.ReconFactor.Equal(decimal.NewFromInt(1)) {
				continue
			}
			m, _ := hierarchy.Meter(leaf)
			if apt := metering.ApartmentFor(m, places); apt != "" {
				if reconFactors[place.Type] == nil {
					reconFactors[place.Type] = make(map[property.ApartmentID]decimal.Decimal)
				}
				reconFactors[place.Type][apt] = d.ReconFactor
			}
		}
	}
	return consumption, reconFactors, nil
}

// collapseSuccession reduces every meter place to one meter. A place that saw
// a replacement is resolved through its succession chain, the retired meters
// leave the tree and the chained delta is pinned on the current meter.
func collapseSuccession(snap *Snapshot, resolver *metering.Resolver, places map[metering.PlaceID]metering.MeterPlace, result *RunResult) ([]metering.Meter, error) {
	byPlace := make(map[metering.PlaceID][]metering.Meter)
	for _, m := range snap.Meters {
		byPlace[m.PlaceID] = append(byPlace[m.PlaceID], m)
	}

	meters := make([]metering.Meter, 0, len(snap.Meters))
	for _, m := range snap.Meters {
		chain := byPlace[m.PlaceID]
		if len(chain) == 1 {
			meters = append(meters, m)
			continue
		}
		current := currentMeter(chain)
		if m.ID != current.ID {
			continue
		}
		place, ok := places[m.PlaceID]
		if !ok {
			place = metering.MeterPlace{ID: m.PlaceID}
		}
		total, deltas, records, err := resolver.ResolvePlace(place, chain, snap.Period.Start, snap.Period.End)
		result.Anomalies = append(result.Anomalies, records...)
		if errors.Is(err, metering.ErrInsufficientReadings) || errors.Is(err, metering.ErrNoActiveMeter) {
			result.Anomalies = append(result.Anomalies,
				anomaly.New(anomaly.CodeInsufficientReadings, string(place.ID), "no resolvable meter at place"))
			continue
		}
		if err != nil {
			return nil, err
		}
		d := metering.Delta{MeterID: current.ID, Value: total, ReconFactor: decimal.NewFromInt(1)}
		for _, sub := range deltas {
			if sub.Interpolated {
				d.Interpolated = true
			}
		}
		resolver.UseChainedDelta(d)
		meters = append(meters, current)
	}
	return meters, nil
}

// currentMeter picks the chain member installed last, the higher id on equal
// build-in dates.
func currentMeter(chain []metering.Meter) metering.Meter {
	current := chain[0]
	for _, m := range chain[1:] {
		if m.BuildIn.After(current.BuildIn) || (m.BuildIn.Equal(current.BuildIn) && m.ID > current.ID) {
			current = m
		}
	}
	return current
}

func mergeConsumption(base, add metering.Consumption, meterType metering.MeterType) metering.Consumption {
	if base.ByApartment == nil {
		base = metering.Consumption{
			Type:         meterType,
			ByApartment:  make(map[property.ApartmentID]decimal.Decimal),
			Unattributed: decimal.Zero,
			Total:        decimal.Zero,
		}
	}
	for id, v := range add.ByApartment {
		base.ByApartment[id] = base.ByApartment[id].Add(v)
	}
	base.Unattributed = base.Unattributed.Add(add.Unattributed)
	base.Total = base.Total.Add(add.Total)
	return base
}

// vacancyContributions adds owner-borne vacancy shares to every TIME cost
// center without explicit contributions: each apartment participates with its
// occupancy fraction, and the unoccupied remainder becomes a labeled share.
func vacancyContributions(centers []allocation.CostCenter, existing []allocation.Contribution, apartments []property.Apartment, occupancy map[property.ApartmentID]decimal.Decimal) []allocation.Contribution {
	configured := make(map[allocation.CostCenterID]bool, len(existing))
	for _, c := range existing {
		configured[c.CostCenterID] = true
	}
	one := decimal.NewFromInt(1)
	var extra []allocation.Contribution
	for _, cc := range centers {
		if cc.Type != allocation.DistTime || configured[cc.ID] {
			continue
		}
		for _, apt := range apartments {
			extra = append(extra, allocation.Contribution{CostCenterID: cc.ID, ApartmentID: apt.ID})
			if gap := one.Sub(occupancy[apt.ID]); gap.IsPositive() {
				w := gap
				extra = append(extra, allocation.Contribution{
					CostCenterID: cc.ID,
					ApartmentID:  apt.ID,
					Designation:  "vacancy",
					Weight:       &w,
				})
			}
		}
	}
	return extra
}

// consumptionCalcs derives the audit records behind consumption-based shares.
func consumptionCalcs(r allocation.Result, cc allocation.CostCenter, consumption map[metering.MeterType]metering.Consumption, reconFactors map[metering.MeterType]map[property.ApartmentID]decimal.Decimal) []billing.ConsumptionCalc {
	if cc.Type != allocation.DistConsumption && cc.Type != allocation.DistHeatingMixed {
		return nil
	}
	cons := consumption[cc.MeterType]
	factors := reconFactors[cc.MeterType]
	hundred := decimal.NewFromInt(100)
	one := decimal.NewFromInt(1)

	calcs := make([]billing.ConsumptionCalc, 0, len(r.Lines))
	for _, line := range r.Lines {
		if line.Designation != "" {
			continue
		}
		units := cons.ByApartment[line.ApartmentID]
		pct := decimal.Zero
		if cons.Total.IsPositive() {
			pct = units.Mul(hundred).Div(cons.Total).Round(2)
		}
		factor := one
		if f, ok := factors[line.ApartmentID]; ok {
			factor = f
		}
		calcs = append(calcs, billing.ConsumptionCalc{
			CostCenterID: r.CostCenterID,
			BookingID:    billing.BookingID(r.BookingID),
			ApartmentID:  line.ApartmentID,
			Method:       r.Type,
			Units:        units,
			SharePercent: pct,
			ReconFactor:  factor,
		})
	}
	return calcs
}

// buildBills folds every allocation line into per-apartment bills, applies
// advance payments and adjustments through the renter link and settles the
// balances.
func buildBills(snap *Snapshot, result *RunResult, windows map[property.ApartmentID][]property.Window, descriptions map[billing.BookingID]string) {
	apartmentOf := make(map[property.RenterID]property.ApartmentID, len(snap.Renters))
	for _, r := range snap.Renters {
		apartmentOf[r.ID] = r.ApartmentID
	}

	bills := make(map[property.ApartmentID]*billing.Bill)
	ensure := func(id property.ApartmentID) *billing.Bill {
		if b, ok := bills[id]; ok {
			return b
		}
		b := &billing.Bill{
			ID:          buildBillID(snap.Period.ID, id),
			ApartmentID: id,
			RenterID:    dominantRenter(windows[id]),
			PeriodID:    snap.Period.ID,
			Advances:    decimal.Zero,
			Adjustments: decimal.Zero,
		}
		bills[id] = b
		return b
	}

	for _, alloc := range result.Allocations {
		for _, line := range alloc.Lines {
			// Non-apartment sinks stay on the allocation under their
			// designation; nobody is billed for them.
			if line.ApartmentID == "" {
				continue
			}
			b := ensure(line.ApartmentID)
			b.Lines = append(b.Lines, billing.LineItem{
				BookingID:    billing.BookingID(alloc.BookingID),
				CostCenterID: alloc.CostCenterID,
				Description:  descriptions[billing.BookingID(alloc.BookingID)],
				Designation:  line.Designation,
				Amount:       line.Amount,
			})
		}
	}
	for _, adv := range snap.Advances {
		if apt, ok := apartmentOf[adv.RenterID]; ok {
			b := ensure(apt)
			b.Advances = b.Advances.Add(adv.Amount)
		}
	}
	for _, adj := range snap.Adjustments {
		if apt, ok := apartmentOf[adj.RenterID]; ok {
			b := ensure(apt)
			b.Adjustments = b.Adjustments.Add(adj.Amount)
		}
	}

	ids := make([]property.ApartmentID, 0, len(bills))
	for id := range bills {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		b := bills[id]
		b.Settle()
		result.Bills = append(result.Bills, *b)
	}
}

// buildHeatingInfos emits comparison rows within each compare group: heating
// energy per square meter, with warm water counted as energy through the
// configured factor, and warm water per unit both as m3 and as derived kWh.
func buildHeatingInfos(snap *Snapshot, cfg Config, consumption map[metering.MeterType]metering.Consumption, areas map[property.ApartmentID]decimal.Decimal, result *RunResult, scale int32) {
	groups := make(map[string][]property.ApartmentID)
	for _, apt := range snap.Apartments {
		g := apt.CompareGroup
		if g == "" {
			g = "building"
		}
		groups[g] = append(groups[g], apt.ID)
	}

	heat := consumption[metering.TypeHeat].ByApartment
	warmWater := consumption[metering.TypeWarmWater].ByApartment
	warmWaterKWh := reporting.WarmWaterEnergy(warmWater, decimal.NewFromFloat(cfg.KWhPerM3))

	energy := make(map[property.ApartmentID]decimal.Decimal)
	for id, v := range heat {
		energy[id] = v
	}
	for id, v := range warmWaterKWh {
		energy[id] = energy[id].Add(v)
	}

	mode := reporting.ModeIncludeSelf
	if cfg.ComparisonMode == string(reporting.ModeExcludeSelf) {
		mode = reporting.ModeExcludeSelf
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		members := groups[name]
		if energyG := subset(energy, members); len(energyG) > 0 {
			result.HeatingInfos = append(result.HeatingInfos,
				reporting.Compare(snap.Period.ID, name, energyG, subset(areas, members), reporting.BasisPerSquareMeter, mode, "kWh", scale)...)
		}
		if volumesG := subset(warmWater, members); len(volumesG) > 0 {
			result.HeatingInfos = append(result.HeatingInfos,
				reporting.Compare(snap.Period.ID, name, volumesG, nil, reporting.BasisPerUnit, mode, "m3", scale)...)
			result.HeatingInfos = append(result.HeatingInfos,
				reporting.Compare(snap.Period.ID, name, subset(warmWaterKWh, members), nil, reporting.BasisPerUnit, mode, "kWh", scale)...)
		}
	}
}

func subset(values map[property.ApartmentID]decimal.Decimal, ids []property.ApartmentID) map[property.ApartmentID]decimal.Decimal {
	out := make(map[property.ApartmentID]decimal.Decimal, len(ids))
	for _, id := range ids {
		if v, ok := values[id]; ok {
			out[id] = v
		}
	}
	return out
}

// dominantRenter returns the renter covering the most days of the period,
// the earlier id on ties. Empty when the apartment was vacant.
func dominantRenter(windows []property.Window) property.RenterID {
	var best property.RenterID
	bestDays := 0
	for _, w := range windows {
		if w.Days > bestDays || (w.Days == bestDays && best != "" && w.RenterID < best) {
			best = w.RenterID
			bestDays = w.Days
		}
	}
	return best
}

func buildBillID(periodID billing.PeriodID, apartmentID property.ApartmentID) string {
	sum := sha256.Sum256([]byte(string(periodID) + "|" + string(apartmentID)))
	return "bill-" + hex.EncodeToString(sum[:])[:16]
}
