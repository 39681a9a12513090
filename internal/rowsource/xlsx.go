package rowsource

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readXLSX returns every row of the selected worksheet with raw cell
// values, so date cells arrive as serial numbers instead of text in the
// workbook's display format.
func readXLSX(path, sheet string) ([][]string, error) {
	// Open the XLSX file.
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	// Default to the first sheet.
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", path)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	return rows, nil
}
