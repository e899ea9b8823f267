package ingest

import (
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// readXLSX reads the first sheet of a modern workbook.
func readXLSX(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open workbook: %v", ErrUnsupportedFileType, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rows[0], rows[1:], nil
}

// readXLS reads the first sheet of a legacy BIFF workbook.
func readXLS(path string) (headers []string, records [][]string, err error) {
	// The BIFF decoder panics on some truncated files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: corrupt workbook: %v", ErrUnsupportedFileType, r)
		}
	}()

	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open workbook: %v", ErrUnsupportedFileType, err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil, nil
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rows[0], rows[1:], nil
}

// sheetRow returns row i, or nil when the sheet has no record for it.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
