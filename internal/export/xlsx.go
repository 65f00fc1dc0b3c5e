// Package export renders account ledgers as spreadsheets.
package export

import (
	"fmt"
	"io"
	"slices"

	"github.com/xuri/excelize/v2"

	"conti/internal/core"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ledgerSheet     = "Ledger"
	dateLayout      = "2006-01-02 15:04:05"
)

var (
	ledgerHeaders = []string{"Date", "Type", "Description", "Value", "ID"}
	ledgerWidths  = []float64{20, 14, 36, 12, 38}
)

// WriteLedgerXLSX writes the ledger of a, most recent first, followed by a
// balance row.
func WriteLedgerXLSX(w io.Writer, a core.Account) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(ledgerHeaders))
	for i, h := range ledgerHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(ledgerSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	txs := slices.Clone(a.Transactions)
	slices.SortStableFunc(txs, func(x, y core.Transaction) int { return y.CreatedAt.Compare(x.CreatedAt) })

	for i, tx := range txs {
		typ := tx.Type
		if typ == "" {
			typ = core.UntypedKey
		}
		row := []any{tx.CreatedAt.UTC().Format(dateLayout), typ, tx.Description, tx.Value.InexactFloat64(), tx.ID}
		if err := f.SetSheetRow(ledgerSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	totalRow := len(txs) + 3
	if err := f.SetCellValue(ledgerSheet, fmt.Sprintf("C%d", totalRow), "Balance"); err != nil {
		return fmt.Errorf("write balance label: %w", err)
	}
	if err := f.SetCellValue(ledgerSheet, fmt.Sprintf("D%d", totalRow), a.CurrentBalance.InexactFloat64()); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}

	for i, width := range ledgerWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column %d: %w", i+1, err)
		}
		if err := f.SetColWidth(ledgerSheet, col, col, width); err != nil {
			return fmt.Errorf("set width of %s: %w", col, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// LedgerFilename names the download of an account ledger.
func LedgerFilename(a core.Account) string {
	return fmt.Sprintf("ledger_%s.xlsx", a.ID)
}
