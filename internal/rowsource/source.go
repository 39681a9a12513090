// =============================================================================
// Invoice Mailer - Row Source
// =============================================================================
//
// This module exposes the order records of a tabular input file. Each data
// row is coerced into a typed Record: strings, calendar dates, an integer
// quantity and currency amounts.
//
// INPUT STRUCTURE (fixed column order, header on row 1):
//
//   | A          | B           | C            | D            | E        | F       |
//   |------------|-------------|--------------|--------------|----------|---------|
//   | invoice_id | client_name | client_email | invoice_date | due_date | product |
//
//   | G        | H    | I            | J               | K                | L               | M                 |
//   |----------|------|--------------|-----------------|------------------|-----------------|-------------------|
//   | quantity | rate | payment_mode | billing_address | shipping_address | shipping_amount | shipped_to_client |
//
//   Columns L and M are optional. Older sheets without them are valid.
//
// LOADING:
//   The whole sheet is read once when the Source is opened and the file
//   handle is released before Open returns, so repeated reads of the same
//   index are stable for the run.
//
// =============================================================================

package rowsource

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/apperr"
	"github.com/shopspring/decimal"
)

// =============================================================================
// COLUMN LAYOUT
// =============================================================================

// Column positions (0-based) in the input sheet.
const (
	ColInvoiceID = iota
	ColClientName
	ColClientEmail
	ColInvoiceDate
	ColDueDate
	ColProduct
	ColQuantity
	ColRate
	ColPaymentMode
	ColBillingAddress
	ColShippingAddress
	ColShippingAmount
	ColShippedTo
)

// ColumnNames holds the column names in sheet order. They are used in
// MalformedRecordError and match the header of the sample spreadsheet.
var ColumnNames = []string{
	"invoice_id",
	"client_name",
	"client_email",
	"invoice_date",
	"due_date",
	"product",
	"quantity",
	"rate",
	"payment_mode",
	"billing_address",
	"shipping_address",
	"shipping_amount",
	"shipped_to_client",
}

// =============================================================================
// RECORD
// =============================================================================

// Record is one typed data row.
type Record struct {
	// Row is the 1-based row number in the source sheet.
	Row int

	InvoiceID   string
	ClientName  string
	ClientEmail string
	InvoiceDate time.Time
	DueDate     time.Time

	Product  string
	Quantity int64
	Rate     decimal.Decimal

	PaymentMode     string
	BillingAddress  string
	ShippingAddress string

	// ShippingAmount is zero when the column is absent or empty.
	ShippingAmount decimal.Decimal

	// ShippedTo is empty when the column is absent.
	ShippedTo string
}

// =============================================================================
// SOURCE
// =============================================================================

// Source exposes the ordered records of a tabular input.
type Source interface {
	// TotalRecordCount returns the number of data rows after the header.
	TotalRecordCount() int

	// Read returns the record at the 0-based data row index. The boolean
	// is false when the index is out of range. A cell that cannot be
	// coerced fails with *apperr.MalformedRecordError.
	Read(index int) (Record, bool, error)

	// Path returns the backing file path.
	Path() string
}

// Options controls how the input file is read.
type Options struct {
	// Sheet is the worksheet to read from an xlsx workbook.
	// Default: the first sheet.
	Sheet string

	// Delimiter is the field separator for csv input. Default: ",".
	Delimiter string

	// DateLayouts are tried, in order, before the built-in layouts when a
	// date cell holds text instead of a spreadsheet serial number.
	DateLayouts []string
}

// Open loads the input file at path. The reader is chosen by extension:
// .xlsx and .xlsm use excelize, .csv uses encoding/csv.
func Open(path string, opts Options) (Source, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path, opts.Sheet)
	case ".csv":
		rows, err = readCSV(path, opts.Delimiter)
	default:
		return nil, fmt.Errorf("unsupported input file type: %s", path)
	}
	if err != nil {
		return nil, err
	}

	return newTable(path, rows, append(append([]string{}, opts.DateLayouts...), defaultDateLayouts...)), nil
}

// =============================================================================
// IN-MEMORY TABLE
// =============================================================================

// table is the Source implementation shared by the xlsx and csv readers.
type table struct {
	path       string
	rows       [][]string
	rowNumbers []int
	layouts    []string
}

// newTable drops the header row and empty rows, remembering the original
// row number of every kept row for error reporting.
func newTable(path string, all [][]string, layouts []string) *table {
	t := &table{path: path, layouts: layouts}
	for i, row := range all {
		if i == 0 {
			continue // Header row.
		}
		if isRowEmpty(row) {
			continue
		}
		t.rows = append(t.rows, row)
		t.rowNumbers = append(t.rowNumbers, i+1)
	}
	return t
}

func (t *table) Path() string { return t.path }

func (t *table) TotalRecordCount() int { return len(t.rows) }

func (t *table) Read(index int) (Record, bool, error) {
	if index < 0 || index >= len(t.rows) {
		return Record{}, false, nil
	}
	rec, err := parseRecord(t.rows[index], t.rowNumbers[index], t.layouts)
	if err != nil {
		return Record{}, true, err
	}
	return rec, true, nil
}

// parseRecord coerces one raw row into a Record.
func parseRecord(row []string, rowNumber int, layouts []string) (Record, error) {
	// Helper function to safely get a cell value.
	cell := func(index int) string {
		if index < len(row) {
			return strings.TrimSpace(row[index])
		}
		return ""
	}

	malformed := func(col int, reason string, err error) error {
		return &apperr.MalformedRecordError{
			Row:    rowNumber,
			Column: ColumnNames[col],
			Value:  cell(col),
			Reason: reason,
			Err:    err,
		}
	}

	rec := Record{
		Row:             rowNumber,
		InvoiceID:       cell(ColInvoiceID),
		ClientName:      cell(ColClientName),
		ClientEmail:     cell(ColClientEmail),
		Product:         cell(ColProduct),
		PaymentMode:     cell(ColPaymentMode),
		BillingAddress:  cell(ColBillingAddress),
		ShippingAddress: cell(ColShippingAddress),
		ShippedTo:       cell(ColShippedTo),
	}

	if rec.InvoiceID == "" {
		return Record{}, malformed(ColInvoiceID, "invoice id is empty", nil)
	}

	var err error
	if rec.InvoiceDate, err = parseDate(cell(ColInvoiceDate), layouts); err != nil {
		return Record{}, malformed(ColInvoiceDate, "not a valid date", err)
	}
	if rec.DueDate, err = parseDate(cell(ColDueDate), layouts); err != nil {
		return Record{}, malformed(ColDueDate, "not a valid date", err)
	}
	if rec.Quantity, err = parseQuantity(cell(ColQuantity)); err != nil {
		return Record{}, malformed(ColQuantity, "not a valid integer", err)
	}
	if rec.Rate, err = parseCurrency(cell(ColRate)); err != nil {
		return Record{}, malformed(ColRate, "not a valid amount", err)
	}

	rec.ShippingAmount = decimal.Zero
	if raw := cell(ColShippingAmount); raw != "" {
		if rec.ShippingAmount, err = parseCurrency(raw); err != nil {
			return Record{}, malformed(ColShippingAmount, "not a valid amount", err)
		}
	}

	return rec, nil
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
