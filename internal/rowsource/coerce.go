package rowsource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// defaultDateLayouts are tried after any configured layouts.
var defaultDateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"01/02/2006",
	"1/2/2006",
	"2/1/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

var errEmpty = errors.New("value is empty")

// parseDate accepts a spreadsheet serial number or one of the layouts.
func parseDate(value string, layouts []string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errEmpty
	}

	// Raw xlsx date cells carry the serial day number, e.g. "45306", with
	// the time of day as a fraction ("45306.25"). Eight bare digits are a
	// compact yyyymmdd date, not a serial.
	if serial, err := strconv.ParseFloat(value, 64); err == nil && !isCompactDate(value) {
		if serial <= 0 {
			return time.Time{}, fmt.Errorf("serial date %q out of range", value)
		}
		return excelize.ExcelDateToTime(serial, false)
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no date layout matches %q", value)
}

func isCompactDate(value string) bool {
	if len(value) != 8 {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}

// parseQuantity accepts integers, including decimals with a zero
// fraction such as "2.0" which spreadsheets produce for numeric cells.
func parseQuantity(value string) (int64, error) {
	if value == "" {
		return 0, errEmpty
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%q has a fractional part", value)
	}
	return d.IntPart(), nil
}

// parseCurrency parses an amount, ignoring a leading currency symbol,
// thousands separators and surrounding spaces.
func parseCurrency(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, errEmpty
	}
	return decimal.NewFromString(cleaned)
}
