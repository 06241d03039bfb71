package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"tenancy-billing/internal/billing/application"
	billing "tenancy-billing/internal/billing/domain"
)

// BuildBillPDF renders a minimal PDF for one bill.
func BuildBillPDF(bill *billing.Bill, period billing.AccountPeriod, currency string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Utility Cost Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Apartment: %s", bill.ApartmentID))
	pdf.Ln(5)
	if bill.RenterID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Renter: %s", bill.RenterID))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s", period.Start.Format("2006-01-02"), period.End.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Topic: %s", period.Topic))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Cost Position", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, "Designation", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 6, fmt.Sprintf("Amount (%s)", currency), "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, line := range bill.Lines {
		pdf.CellFormat(60, 6, line.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, line.Designation, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, line.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Total: %s %s", bill.Total.StringFixed(2), currency))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Advance payments: %s %s", bill.Advances.StringFixed(2), currency))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Adjustments: %s %s", bill.Adjustments.StringFixed(2), currency))
	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Balance: %s %s", bill.Balance.StringFixed(2), currency))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRunXLSX renders a minimal XLSX for a whole run.
func BuildRunXLSX(result *application.RunResult) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	billsSheet := "bills"
	heatingSheet := "heating"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(billsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(heatingSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Billing Run")
	_ = f.SetCellValue(summarySheet, "A3", "Building")
	_ = f.SetCellValue(summarySheet, "B3", result.BuildingID)
	_ = f.SetCellValue(summarySheet, "A4", "Period")
	_ = f.SetCellValue(summarySheet, "B4", string(result.Period.ID))
	_ = f.SetCellValue(summarySheet, "A5", "Currency")
	_ = f.SetCellValue(summarySheet, "B5", result.Currency)
	_ = f.SetCellValue(summarySheet, "A6", "Bills")
	_ = f.SetCellValue(summarySheet, "B6", len(result.Bills))
	_ = f.SetCellValue(summarySheet, "A7", "Anomalies")
	_ = f.SetCellValue(summarySheet, "B7", len(result.Anomalies))

	_ = f.SetCellValue(billsSheet, "A1", "Apartment")
	_ = f.SetCellValue(billsSheet, "B1", "Renter")
	_ = f.SetCellValue(billsSheet, "C1", "Total")
	_ = f.SetCellValue(billsSheet, "D1", "Advances")
	_ = f.SetCellValue(billsSheet, "E1", "Adjustments")
	_ = f.SetCellValue(billsSheet, "F1", "Balance")
	for i, bill := range result.Bills {
		row := i + 2
		_ = f.SetCellValue(billsSheet, fmt.Sprintf("A%d", row), string(bill.ApartmentID))
		_ = f.SetCellValue(billsSheet, fmt.Sprintf("B%d", row), string(bill.RenterID))
		_ = f.SetCellValue(billsSheet, fmt.Sprintf("C%d", row), bill.Total.StringFixed(2))
		_ = f.SetCellValue(billsSheet, fmt.Sprintf("D%d", row), bill.Advances.StringFixed(2))
		_ = f.SetCellValue(billsSheet, fmt.Sprintf("E%d", row), bill.Adjustments.StringFixed(2))
		_ = f.SetCellValue(billsSheet, fmt.Sprintf("F%d", row), bill.Balance.StringFixed(2))
	}

	_ = f.SetCellValue(heatingSheet, "A1", "Apartment")
	_ = f.SetCellValue(heatingSheet, "B1", "Group")
	_ = f.SetCellValue(heatingSheet, "C1", "Basis")
	_ = f.SetCellValue(heatingSheet, "D1", "Unit")
	_ = f.SetCellValue(heatingSheet, "E1", "Own")
	_ = f.SetCellValue(heatingSheet, "F1", "Average")
	for i, info := range result.HeatingInfos {
		row := i + 2
		_ = f.SetCellValue(heatingSheet, fmt.Sprintf("A%d", row), string(info.ApartmentID))
		_ = f.SetCellValue(heatingSheet, fmt.Sprintf("B%d", row), info.Group)
		_ = f.SetCellValue(heatingSheet, fmt.Sprintf("C%d", row), string(info.Basis))
		_ = f.SetCellValue(heatingSheet, fmt.Sprintf("D%d", row), info.Unit)
		_ = f.SetCellValue(heatingSheet, fmt.Sprintf("E%d", row), info.OwnValue.StringFixed(2))
		_ = f.SetCellValue(heatingSheet, fmt.Sprintf("F%d", row), info.CompareValue.StringFixed(2))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
