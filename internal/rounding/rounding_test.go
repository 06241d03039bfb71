package rounding

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sum(parts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range parts {
		total = total.Add(p)
	}
	return total
}

func TestDistributeConservesTotal(t *testing.T) {
	shares := []Share{
		{Key: "a", Weight: dec("1")},
		{Key: "b", Weight: dec("1")},
		{Key: "c", Weight: dec("1")},
	}
	total := dec("100.00")
	parts, err := Distribute(total, shares, 2)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if !sum(parts).Equal(total) {
		t.Fatalf("parts sum %s, want %s", sum(parts), total)
	}
	// 100.00 / 3 leaves one cent; ascending key wins the tie.
	if !parts[0].Equal(dec("33.34")) {
		t.Fatalf("share a = %s, want 33.34", parts[0])
	}
	if !parts[1].Equal(dec("33.33")) || !parts[2].Equal(dec("33.33")) {
		t.Fatalf("shares b,c = %s,%s, want 33.33 each", parts[1], parts[2])
	}
}

func TestDistributeProportional(t *testing.T) {
	shares := []Share{
		{Key: "full", Weight: dec("1.0")},
		{Key: "half", Weight: dec("0.5")},
	}
	parts, err := Distribute(dec("300.00"), shares, 2)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if !parts[0].Equal(dec("200.00")) || !parts[1].Equal(dec("100.00")) {
		t.Fatalf("parts = %s,%s, want 200.00,100.00", parts[0], parts[1])
	}
}

func TestDistributeTieBreakByKey(t *testing.T) {
	shares := []Share{
		{Key: "apt-2", Weight: dec("1")},
		{Key: "apt-1", Weight: dec("1")},
	}
	parts, err := Distribute(dec("0.01"), shares, 2)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if !parts[1].Equal(dec("0.01")) {
		t.Fatalf("apt-1 = %s, want 0.01 (ascending key wins tie)", parts[1])
	}
	if !parts[0].IsZero() {
		t.Fatalf("apt-2 = %s, want 0", parts[0])
	}
}

func TestDistributeNegativeTotal(t *testing.T) {
	shares := []Share{
		{Key: "a", Weight: dec("2")},
		{Key: "b", Weight: dec("1")},
	}
	total := dec("-90.00")
	parts, err := Distribute(total, shares, 2)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if !sum(parts).Equal(total) {
		t.Fatalf("parts sum %s, want %s", sum(parts), total)
	}
	if !parts[0].Equal(dec("-60.00")) {
		t.Fatalf("a = %s, want -60.00", parts[0])
	}
}

func TestDistributeZeroWeights(t *testing.T) {
	shares := []Share{
		{Key: "a", Weight: decimal.Zero},
		{Key: "b", Weight: decimal.Zero},
	}
	if _, err := Distribute(dec("10.00"), shares, 2); !errors.Is(err, ErrZeroWeights) {
		t.Fatalf("err = %v, want ErrZeroWeights", err)
	}
}

func TestDistributeRejectsScaleMismatch(t *testing.T) {
	shares := []Share{{Key: "a", Weight: dec("1")}}
	if _, err := Distribute(dec("10.005"), shares, 2); !errors.Is(err, ErrScale) {
		t.Fatalf("err = %v, want ErrScale", err)
	}
}

func TestEqualSplit(t *testing.T) {
	total := dec("10.00")
	parts, err := Equal(total, []string{"a", "b", "c"}, 2)
	if err != nil {
		t.Fatalf("equal: %v", err)
	}
	if !sum(parts).Equal(total) {
		t.Fatalf("parts sum %s, want %s", sum(parts), total)
	}
	if !parts[0].Equal(dec("3.34")) {
		t.Fatalf("first part = %s, want 3.34", parts[0])
	}
}
