// Package statement renders a customer's credit history as an Excel workbook.
package statement

import (
	"bytes"
	"fmt"
	"time"

	"github.com/richardliu001/pharmacy-credit/internal/model"
	"github.com/xuri/excelize/v2"
)

const sheet = "Statement"

var header = []interface{}{"Date", "Type", "Description", "Amount", "Balance", "Recorded by"}

// Render writes the customer's transactions, oldest first, followed by the
// current balance. When truncated is set, earlier rows were left out and a
// brought-forward line carries the balance before the first listed row.
func Render(c *model.Customer, txs []model.CreditTransaction, truncated bool, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	rows := [][]interface{}{
		{"Customer", c.Name},
		{"Customer ID", c.ID.String()},
		{"Generated", generatedAt.UTC().Format(time.RFC3339)},
		{},
		header,
	}
	if truncated && len(txs) > 0 {
		opening, _ := txs[0].BalanceAfter.Sub(txs[0].Amount).Round(2).Float64()
		rows = append(rows, []interface{}{"Brought forward", nil, "Earlier transactions not listed", nil, opening})
	}
	for _, t := range txs {
		by := ""
		if t.CreatedBy != nil {
			by = *t.CreatedBy
		}
		amount, _ := t.Amount.Round(2).Float64()
		balance, _ := t.BalanceAfter.Round(2).Float64()
		rows = append(rows, []interface{}{
			t.CreatedAt.UTC().Format("2006-01-02 15:04"),
			string(t.Type),
			t.Description,
			amount,
			balance,
			by,
		})
	}
	current, _ := c.CreditBalance.Round(2).Float64()
	rows = append(rows, []interface{}{}, []interface{}{"Outstanding balance", nil, nil, nil, current})

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	numFmt := "#,##0.00"
	style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, err
	}
	if err := f.SetColStyle(sheet, "D:E", style); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "A", "A", 18); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "C", "C", 36); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
