package exporter

import (
	"fmt"

	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
	"github.com/xuri/excelize/v2"
)

// ExcelRenderer renders TB and RS entries as single-sheet XLSX workbooks.
type ExcelRenderer struct{}

func (ExcelRenderer) FileExtension() string { return "xlsx" }

type sheetRow struct {
	label string
	value interface{}
}

func timeCell(t *models.TimeOfDay) interface{} {
	if t == nil {
		return ""
	}
	return t.String()
}

func intCell(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func writeKeyValueSheet(f *excelize.File, sheetName string, rows []sheetRow) error {
	for i, r := range rows {
		if err := f.SetCellValue(sheetName, "A"+fmt.Sprint(i+1), r.label); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, "B"+fmt.Sprint(i+1), r.value); err != nil {
			return err
		}
	}
	return nil
}

func newWorkbook(sheetName string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func workbookBytes(f *excelize.File) ([]byte, error) {
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (ExcelRenderer) RenderTb(workday models.Workday, entry models.TbEntry, employee models.Employee) ([]byte, error) {
	f, err := newWorkbook("TB")
	if err != nil {
		return nil, err
	}
	worked, _ := entry.WorkedMinutes()
	rows := []sheetRow{
		{"Employee", employee.DisplayName()},
		{"Date", workday.WorkDate},
		{"Start", timeCell(entry.StartTime)},
		{"End", timeCell(entry.EndTime)},
		{"Break (min)", intCell(entry.BreakMinutes)},
		{"Travel (min)", intCell(entry.TravelMinutes)},
		{"Worked (min)", worked},
		{"License plate", entry.LicensePlate},
		{"Department", entry.Department},
		{"Overnight", utils.DereferencePtr(entry.Overnight)},
		{"Km start", intCell(entry.KmStart)},
		{"Km end", intCell(entry.KmEnd)},
		{"Comment", entry.Comment},
		{"Version", entry.Version},
	}
	if err := writeKeyValueSheet(f, "TB", rows); err != nil {
		_ = f.Close()
		return nil, err
	}
	return workbookBytes(f)
}

func (ExcelRenderer) RenderRs(workday models.Workday, entry models.RsEntry, employee models.Employee) ([]byte, error) {
	sheet := "RS"
	f, err := newWorkbook(sheet)
	if err != nil {
		return nil, err
	}
	rows := []sheetRow{
		{"Employee", employee.DisplayName()},
		{"Date", workday.WorkDate},
		{"Customer", entry.CustomerName},
		{"Customer id", entry.CustomerId},
		{"Start", timeCell(entry.StartTime)},
		{"End", timeCell(entry.EndTime)},
		{"Break (min)", intCell(entry.BreakMinutes)},
	}
	if err := writeKeyValueSheet(f, sheet, rows); err != nil {
		_ = f.Close()
		return nil, err
	}

	headerRow := len(rows) + 2
	headings := []string{"Code", "Description", "Hours", "Quantity", "Unit", "Price", "Amount"}
	col := 'A'
	for _, h := range headings {
		f.SetCellValue(sheet, string(col)+fmt.Sprint(headerRow), h)
		col++
	}
	rowNo := headerRow + 1
	for _, p := range entry.Positions {
		values := []interface{}{
			p.Code,
			p.Description,
			p.Hours.String(),
			p.Quantity.String(),
			p.Unit,
			p.PricePerUnit.StringFixed(2),
			p.Amount().StringFixed(2),
		}
		col := 'A'
		for _, v := range values {
			f.SetCellValue(sheet, string(col)+fmt.Sprint(rowNo), v)
			col++
		}
		rowNo++
	}
	f.SetCellValue(sheet, "F"+fmt.Sprint(rowNo), "Total")
	f.SetCellValue(sheet, "G"+fmt.Sprint(rowNo), entry.TotalAmount().StringFixed(2))
	return workbookBytes(f)
}
