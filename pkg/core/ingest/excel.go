package ingest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"portfolio_ingest/pkg/core/diag"
	"portfolio_ingest/pkg/models"
)

// ExcelCell represents a value at a specific coordinate
type ExcelCell struct {
	Sheet string
	Row   int
	Col   int
	Value string
}

// ParseXLSX reads the first sheet of an Office Open XML workbook. The first
// row is the header; blank cells are left out of each row.
func ParseXLSX(r io.Reader, d *diag.Collector) ([]models.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []models.RawRow{}, nil
	}

	grid, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return gridToRows(trimLeadingBlankRows(grid), true, d), nil
}

// ParseXLS reads the first sheet of a legacy BIFF (.xls) workbook with the
// same semantics as ParseXLSX.
func ParseXLS(r io.Reader, d *diag.Collector) (rows []models.RawRow, err error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, readErr := io.ReadAll(r)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read xls: %w", readErr)
		}
		rs = bytes.NewReader(data)
	}

	// the BIFF reader panics on some truncated workbooks
	defer func() {
		if rec := recover(); rec != nil {
			rows = nil
			err = fmt.Errorf("corrupt xls workbook: %v", rec)
		}
	}()

	wb, err := xls.OpenReader(rs, "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return []models.RawRow{}, nil
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return []models.RawRow{}, nil
	}

	cells := make([]ExcelCell, 0)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			if v := row.Col(j); v != "" {
				cells = append(cells, ExcelCell{Sheet: sheet.Name, Row: i, Col: j, Value: v})
			}
		}
	}
	return gridToRows(trimLeadingBlankRows(cellsToGrid(cells)), true, d), nil
}

// cellsToGrid lays sparse cells out as a dense row-major grid.
func cellsToGrid(cells []ExcelCell) [][]string {
	maxRow, maxCol := -1, -1
	for _, c := range cells {
		if c.Row > maxRow {
			maxRow = c.Row
		}
		if c.Col > maxCol {
			maxCol = c.Col
		}
	}
	grid := make([][]string, maxRow+1)
	for i := range grid {
		grid[i] = make([]string, maxCol+1)
	}
	for _, c := range cells {
		grid[c.Row][c.Col] = c.Value
	}
	return grid
}

// trimLeadingBlankRows drops blank rows above the header so the first
// populated row is used as the header.
func trimLeadingBlankRows(grid [][]string) [][]string {
	for len(grid) > 0 && isBlankRecord(grid[0]) {
		grid = grid[1:]
	}
	return grid
}
