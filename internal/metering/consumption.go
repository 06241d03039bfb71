package metering

import (
	"sort"

	"github.com/shopspring/decimal"

	"tenancy-billing/internal/property"
)

// Consumption is the per-apartment sum of leaf meter deltas for one meter
// type. Only leaves count so a value never enters twice through a main meter.
type Consumption struct {
	Type         MeterType
	ByApartment  map[property.ApartmentID]decimal.Decimal
	Unattributed decimal.Decimal
	Total        decimal.Decimal
}

// AttributeConsumption folds a reconciled tree into apartment consumption.
// A leaf meter maps to an apartment directly or through its place; leaves
// without either link accumulate as unattributed building consumption.
func AttributeConsumption(h *Hierarchy, root MeterID, result TreeResult, places map[PlaceID]MeterPlace, meterType MeterType) Consumption {
	c := Consumption{
		Type:         meterType,
		ByApartment:  make(map[property.ApartmentID]decimal.Decimal),
		Unattributed: decimal.Zero,
		Total:        decimal.Zero,
	}
	for _, leaf := range h.Leaves(root) {
		d, ok := result.Deltas[leaf]
		if !ok {
			continue
		}
		m, _ := h.Meter(leaf)
		apartment := ApartmentFor(m, places)
		if apartment == "" {
			c.Unattributed = c.Unattributed.Add(d.Value)
		} else {
			c.ByApartment[apartment] = c.ByApartment[apartment].Add(d.Value)
		}
		c.Total = c.Total.Add(d.Value)
	}
	return c
}

// Apartments returns the sorted apartment ids with recorded consumption.
func (c Consumption) Apartments() []property.ApartmentID {
	ids := make([]property.ApartmentID, 0, len(c.ByApartment))
	for id := range c.ByApartment {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
