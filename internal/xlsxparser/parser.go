// =============================================================================
// LDCC1 Processor - Excel Parser
// =============================================================================
//
// This module reads benefits spreadsheets saved from Excel into a types.Table.
//
// SUPPORTED WORKBOOKS:
//   - .xlsx (Office Open XML) via excelize
//   - .xls  (BIFF8, Excel 97-2003) via extrame/xls
//
// SHEET SELECTION:
//   The sheet named by the caller is used when present; otherwise the first
//   sheet in the workbook. The first non-blank row is the header row.
//
// =============================================================================

package xlsxparser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// ErrNoData is returned when the selected sheet has no data rows.
var ErrNoData = errors.New("sheet has no data rows")

// =============================================================================
// XLSX
// =============================================================================

// Parse reads an .xlsx workbook.
//
// PARAMETERS:
//   - path: The path to the workbook.
//   - sheet: The worksheet name, or "" for the first sheet.
//
// RETURNS:
//   - The sheet as a table.
//   - An error if the workbook cannot be opened or the sheet holds no data.
func Parse(path, sheet string) (*types.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName, err := pickSheet(f.GetSheetList(), sheet)
	if err != nil {
		return nil, err
	}

	// GetRows returns formatted cell values, the same text the user sees.
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from %q: %w", sheetName, err)
	}

	rowNumbers := make([]int, len(rows))
	for i := range rows {
		rowNumbers[i] = i + 1
	}

	table, err := buildTable(rows, rowNumbers)
	if err != nil {
		return nil, err
	}
	table.SourceFile = path
	table.Format = "xlsx"
	return table, nil
}

// =============================================================================
// LEGACY XLS
// =============================================================================

// ParseXLS reads a legacy BIFF .xls workbook.
func ParseXLS(path, sheet string) (*types.Table, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	names := make([]string, wb.NumSheets())
	for i := range names {
		if ws := wb.GetSheet(i); ws != nil {
			names[i] = ws.Name
		}
	}
	sheetName, err := pickSheet(names, sheet)
	if err != nil {
		return nil, err
	}

	var ws *xls.WorkSheet
	for i, name := range names {
		if name == sheetName {
			ws = wb.GetSheet(i)
			break
		}
	}
	if ws == nil {
		return nil, ErrNoSheets
	}

	var (
		rows       [][]string
		rowNumbers []int
	)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, 0, row.LastCol()+1)
		for c := 0; c <= row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		rows = append(rows, cells)
		rowNumbers = append(rowNumbers, i+1)
	}

	table, err := buildTable(rows, rowNumbers)
	if err != nil {
		return nil, err
	}
	table.SourceFile = path
	table.Format = "xls"
	return table, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// pickSheet returns the requested sheet name, matched case-insensitively,
// or the first sheet when none was requested.
func pickSheet(names []string, want string) (string, error) {
	if len(names) == 0 {
		return "", ErrNoSheets
	}
	if want == "" {
		return names[0], nil
	}
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(want)) {
			return name, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found (available: %s)", want, strings.Join(names, ", "))
}

// buildTable turns raw sheet rows into a table. The first non-blank row is
// the header; remaining non-blank rows are data, padded to the header width.
func buildTable(rows [][]string, rowNumbers []int) (*types.Table, error) {
	table := &types.Table{}
	headerFound := false

	for i, row := range rows {
		if isRowEmpty(row) {
			continue
		}
		if !headerFound {
			table.Headers = cleanHeaders(row)
			headerFound = true
			continue
		}

		cells := make([]string, len(table.Headers))
		for c := 0; c < len(cells) && c < len(row); c++ {
			cells[c] = strings.TrimSpace(row[c])
		}
		table.Rows = append(table.Rows, cells)
		table.RowNumbers = append(table.RowNumbers, rowNumbers[i])
	}

	if !headerFound || len(table.Rows) == 0 {
		return nil, ErrNoData
	}
	return table, nil
}

func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
