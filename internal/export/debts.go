// Package export renders ledger lists as spreadsheets.
package export

import (
	"fmt"
	"io"

	"trade-ledger/internal/core"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the workbooks produced here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	debtSheet    = "Debts"
	summarySheet = "Summary"
)

var debtHeadings = []string{
	"Invoice", "Sale Invoice", "Customer", "Date", "Face Value", "Paid", "Remaining", "Status",
}

// DebtWorkbook builds a two-sheet workbook: one row per debt, then the summary.
// Money cells are written as numbers so the sheet can be summed.
func DebtWorkbook(debts []core.Debt, summary *core.DebtSummary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", debtSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	if err != nil {
		return nil, fmt.Errorf("failed to create money style: %w", err)
	}

	for i, h := range debtHeadings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(debtSheet, cell, h); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(debtSheet, "A1", "H1", header); err != nil {
		return nil, err
	}

	for i, d := range debts {
		row := i + 2
		values := []any{
			d.InvoiceNumber,
			d.SaleInvoice,
			d.CustomerName,
			d.DebtDate,
			d.FaceValue.InexactFloat64(),
			d.AmountPaid.InexactFloat64(),
			d.Remaining.InexactFloat64(),
			string(d.Status),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(debtSheet, start, &values); err != nil {
			return nil, fmt.Errorf("failed to write debt %s: %w", d.InvoiceNumber, err)
		}
	}
	if len(debts) > 0 {
		last := fmt.Sprintf("G%d", len(debts)+1)
		if err := f.SetCellStyle(debtSheet, "E2", last, money); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(debtSheet, "A", "C", 22)
	_ = f.SetColWidth(debtSheet, "D", "H", 14)

	if summary != nil {
		if _, err := f.NewSheet(summarySheet); err != nil {
			return nil, fmt.Errorf("failed to add summary sheet: %w", err)
		}
		rows := [][]any{
			{"Total remaining", summary.TotalRemaining.InexactFloat64()},
			{"Unpaid debts", summary.UnpaidCount},
			{"Unpaid value", summary.UnpaidValue.InexactFloat64()},
			{"Paid debts", summary.PaidCount},
		}
		for i, r := range rows {
			cell := fmt.Sprintf("A%d", i+1)
			if err := f.SetSheetRow(summarySheet, cell, &r); err != nil {
				return nil, err
			}
		}
		_ = f.SetCellStyle(summarySheet, "A1", "A4", header)
		_ = f.SetColWidth(summarySheet, "A", "A", 18)
	}

	return f, nil
}

// WriteDebts streams the debt workbook to w.
func WriteDebts(w io.Writer, debts []core.Debt, summary *core.DebtSummary) error {
	f, err := DebtWorkbook(debts, summary)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
