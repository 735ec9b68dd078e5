/*
Package export renders payout line items as an Excel workbook.

LAYOUT:
  Sheet "Payouts"
    Row 1:  title (schedule @ business date), merged across all columns
    Row 2:  header
    Row 3+: one row per line item, contributors first, then by name
    Last:   totals row
  Amount cells are numeric with a 0.00 format so the sheet sums correctly.
*/
package export

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"github.com/warp/payout-engine/payout"
)

var ErrNoItems = errors.New("no line items to export")

const sheetName = "Payouts"

var columns = []struct {
	title string
	width float64
}{
	{"Employee", 24},
	{"Job title", 18},
	{"Contributor", 12},
	{"Receiver ID", 16},
	{"Payout %", 11},
	{"Tips", 12},
	{"Gratuity", 12},
	{"Payout tips", 13},
	{"Payout gratuity", 15},
	{"Net payout", 13},
}

// LineItems writes the workbook and returns it with a suggested filename.
func LineItems(key payout.Key, items []payout.PayoutLineItem) (*bytes.Buffer, string, error) {
	if len(items) == 0 {
		return nil, "", ErrNoItems
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, "", fmt.Errorf("name sheet: %w", err)
	}

	for i, c := range columns {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, c.width)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 2})
	totalStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 2})

	last := colName(len(columns) - 1)
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s payouts for %s", key.ScheduleID, key.BusinessDate))
	f.MergeCell(sheetName, "A1", last+"1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	for i, c := range columns {
		f.SetCellValue(sheetName, cell(colName(i), 2), c.title)
	}
	f.SetCellStyle(sheetName, "A2", last+"2", headerStyle)

	var totals [5]decimal.Decimal
	row := 3
	for _, it := range payout.SortForPresentation(items) {
		name := it.EmployeeName
		if name == "" {
			name = string(it.EmployeeGUID)
		}
		f.SetCellValue(sheetName, cell("A", row), name)
		f.SetCellValue(sheetName, cell("B", row), it.JobTitle)
		f.SetCellValue(sheetName, cell("C", row), string(it.IsContributor))
		f.SetCellValue(sheetName, cell("D", row), it.PayoutReceiverID)
		f.SetCellValue(sheetName, cell("E", row), it.PayoutPercentage.InexactFloat64())

		amounts := []decimal.Decimal{it.TotalTips, it.TotalGratuity, it.PayoutTips, it.PayoutGratuity, it.NetPayout}
		for i, a := range amounts {
			f.SetCellValue(sheetName, cell(colName(5+i), row), a.InexactFloat64())
			totals[i] = totals[i].Add(a)
		}
		f.SetCellStyle(sheetName, cell("F", row), cell(last, row), moneyStyle)
		row++
	}

	f.SetCellValue(sheetName, cell("A", row), "Total")
	for i, t := range totals {
		f.SetCellValue(sheetName, cell(colName(5+i), row), t.InexactFloat64())
	}
	f.SetCellStyle(sheetName, cell("A", row), cell(last, row), totalStyle)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}
	filename := fmt.Sprintf("payouts_%s_%s.xlsx", key.ScheduleID, key.BusinessDate)
	return buf, filename, nil
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

