// Package rounding implements proportional distribution with exact
// conservation. Every allocation strategy and the meter reconciliation use
// this single utility so the conservation invariant holds uniformly.
package rounding

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoShares is returned when there is nothing to distribute over.
	ErrNoShares = errors.New("rounding: no shares")
	// ErrZeroWeights is returned when every weight is zero.
	ErrZeroWeights = errors.New("rounding: all weights zero")
	// ErrNegativeWeight is returned when a weight is negative.
	ErrNegativeWeight = errors.New("rounding: negative weight")
	// ErrScale is returned when the total is not representable at the
	// requested scale.
	ErrScale = errors.New("rounding: total not representable at scale")
)

// Share is one participant in a proportional distribution.
type Share struct {
	Key    string
	Weight decimal.Decimal
}

// Distribute splits total across shares proportionally to their weights,
// with every part rounded to the given scale (number of decimal places).
// The parts sum to total exactly: whole minor units are assigned first by
// truncation, then leftover units by largest fractional remainder, ties
// broken by ascending key.
func Distribute(total decimal.Decimal, shares []Share, scale int32) ([]decimal.Decimal, error) {
	if len(shares) == 0 {
		return nil, ErrNoShares
	}
	if !total.Equal(total.Round(scale)) {
		return nil, ErrScale
	}

	negative := total.Sign() < 0
	work := total.Abs()

	weightSum := decimal.Zero
	for _, share := range shares {
		if share.Weight.Sign() < 0 {
			return nil, ErrNegativeWeight
		}
		weightSum = weightSum.Add(share.Weight)
	}
	if weightSum.IsZero() {
		return nil, ErrZeroWeights
	}

	units := work.Shift(scale)

	floors := make([]decimal.Decimal, len(shares))
	remainders := make([]decimal.Decimal, len(shares))
	assigned := decimal.Zero
	for i, share := range shares {
		rawUnits := work.Mul(share.Weight).Div(weightSum).Shift(scale)
		floors[i] = rawUnits.Floor()
		remainders[i] = rawUnits.Sub(floors[i])
		assigned = assigned.Add(floors[i])
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ra, rb := remainders[order[a]], remainders[order[b]]
		if !ra.Equal(rb) {
			return ra.GreaterThan(rb)
		}
		return shares[order[a]].Key < shares[order[b]].Key
	})

	leftover := units.Sub(assigned).IntPart()
	one := decimal.NewFromInt(1)
	for leftover > 0 {
		for _, idx := range order {
			if leftover == 0 {
				break
			}
			floors[idx] = floors[idx].Add(one)
			leftover--
		}
	}
	// Division precision can, in principle, push the truncated sum past the
	// target; strip units from the smallest remainders in that case.
	for leftover < 0 {
		for i := len(order) - 1; i >= 0 && leftover < 0; i-- {
			idx := order[i]
			if floors[idx].Sign() > 0 {
				floors[idx] = floors[idx].Sub(one)
				leftover++
			}
		}
	}

	result := make([]decimal.Decimal, len(shares))
	for i := range shares {
		part := floors[i].Shift(-scale)
		if negative {
			part = part.Neg()
		}
		result[i] = part
	}
	return result, nil
}

// Equal splits total into len(keys) equal parts at the given scale,
// conserving total exactly. Used as the zero-weight fallback.
func Equal(total decimal.Decimal, keys []string, scale int32) ([]decimal.Decimal, error) {
	shares := make([]Share, len(keys))
	one := decimal.NewFromInt(1)
	for i, key := range keys {
		shares[i] = Share{Key: key, Weight: one}
	}
	return Distribute(total, shares, scale)
}
