package interfaces

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tenancy-billing/internal/billing/application"
	billing "tenancy-billing/internal/billing/domain"
)

func sampleBill() *billing.Bill {
	b := &billing.Bill{
		ID:          "bill-1",
		ApartmentID: "apt-1",
		RenterID:    "rent-1",
		PeriodID:    "per-2024",
		Lines: []billing.LineItem{
			{BookingID: "bk-1", CostCenterID: "cc-1", Description: "cold water", Amount: decimal.RequireFromString("120.00")},
			{BookingID: "bk-2", CostCenterID: "cc-2", Description: "caretaker", Designation: "vacancy", Amount: decimal.RequireFromString("10.50")},
		},
		Advances:    decimal.RequireFromString("100.00"),
		Adjustments: decimal.Zero,
	}
	b.Settle()
	return b
}

func TestBuildBillPDF(t *testing.T) {
	period := billing.AccountPeriod{
		ID:    "per-2024",
		Start: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
		Topic: billing.TopicOperating,
	}
	data, err := BuildBillPDF(sampleBill(), period, "EUR")
	if err != nil {
		t.Fatalf("BuildBillPDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("expected a PDF document")
	}
}

func TestBuildRunXLSX(t *testing.T) {
	result := &application.RunResult{
		BuildingID: "bld-1",
		Period:     billing.AccountPeriod{ID: "per-2024"},
		Currency:   "EUR",
		Bills:      []billing.Bill{*sampleBill()},
	}
	data, err := BuildRunXLSX(result)
	if err != nil {
		t.Fatalf("BuildRunXLSX: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected xlsx bytes")
	}
}
