package document

import (
	"strings"
)

// =============================================================================
// STRUCTURAL ROLES
// =============================================================================

// ItemsHeader is the first header cell of the line-items table.
const ItemsHeader = "DESCRIPTION"

// ItemsColumns is the column count of the line-items table.
const ItemsColumns = 4

// Totals row labels.
const (
	LabelSubtotal   = "SUBTOTAL"
	LabelTax        = "TAX"
	LabelShipping   = "SHIPPING & HANDLING"
	LabelDiscount   = "DISCOUNT"
	LabelGrandTotal = "GRAND TOTAL"
)

var totalsLabels = map[string]bool{
	LabelSubtotal:   true,
	LabelTax:        true,
	LabelShipping:   true,
	LabelDiscount:   true,
	LabelGrandTotal: true,
}

// CellRef addresses one table cell.
type CellRef struct {
	Block int
	Row   int
	Cell  int
}

// Layout maps structural roles of a document to positions.
type Layout struct {
	// ItemsTable is the block index of the line-items table, or -1.
	ItemsTable int

	// AnchorRow is the template row of the line-items table that item
	// rows are cloned from, or -1 when the table only has a header.
	AnchorRow int

	// Totals maps a totals label to the value cells of every row
	// carrying it.
	Totals map[string][]CellRef
}

// HasItemsTable reports whether a line-items table was found.
func (l Layout) HasItemsTable() bool { return l.ItemsTable >= 0 }

// normalizeLabel trims, upper-cases and drops a trailing colon.
func normalizeLabel(text string) string {
	text = strings.ToUpper(strings.TrimSpace(text))
	return strings.TrimSpace(strings.TrimSuffix(text, ":"))
}

// =============================================================================
// INDEXER
// =============================================================================

// Index scans the document once and records where the line-items table
// and the totals rows are. The first 4-column table headed DESCRIPTION is
// the line-items table.
func Index(doc *Document) Layout {
	layout := Layout{
		ItemsTable: -1,
		AnchorRow:  -1,
		Totals:     make(map[string][]CellRef),
	}

	for b, block := range doc.Blocks {
		if block.Table == nil {
			continue
		}
		rows := block.Table.Rows

		isItems := false
		if layout.ItemsTable < 0 && len(rows) > 0 && isItemsHeader(rows[0]) {
			isItems = true
			layout.ItemsTable = b
			if len(rows) > 1 && totalsLabel(rows[1]) == "" {
				layout.AnchorRow = 1
			}
		}

		for r, row := range rows {
			if isItems && (r == 0 || r == layout.AnchorRow) {
				continue
			}
			if label := totalsLabel(row); label != "" {
				layout.Totals[label] = append(layout.Totals[label], CellRef{
					Block: b,
					Row:   r,
					Cell:  len(row.Cells) - 1,
				})
			}
		}
	}

	return layout
}

func isItemsHeader(row Row) bool {
	return len(row.Cells) == ItemsColumns && normalizeLabel(row.Cells[0].Text()) == ItemsHeader
}

// totalsLabel returns the totals label of a row, looking at every cell
// but the last, which receives the value.
func totalsLabel(row Row) string {
	for c := 0; c < len(row.Cells)-1; c++ {
		label := normalizeLabel(row.Cells[c].Text())
		if totalsLabels[label] {
			return label
		}
	}
	return ""
}

// =============================================================================
// FILLING
// =============================================================================

// SetCellText writes text into the referenced cell.
func (d *Document) SetCellText(ref CellRef, text string) {
	d.Blocks[ref.Block].Table.Rows[ref.Row].Cells[ref.Cell].SetText(text)
}

// ExpandItems writes one row per entry of items into the line-items
// table. Each row is cloned from the anchor row and inserted right after
// the previously inserted one; the anchor row is removed afterwards.
// Positions recorded in layout are stale once this returns.
func (d *Document) ExpandItems(layout Layout, items [][]string) int {
	if !layout.HasItemsTable() {
		return 0
	}
	table := d.Blocks[layout.ItemsTable].Table

	anchor := Row{}
	insertAt := 1
	if layout.AnchorRow >= 0 {
		anchor = table.Rows[layout.AnchorRow]
		insertAt = layout.AnchorRow + 1
	}

	inserted := make([]Row, 0, len(items))
	for _, values := range items {
		row := anchor.clone()
		for len(row.Cells) < ItemsColumns {
			row.Cells = append(row.Cells, NewTextCell(""))
		}
		for c := 0; c < ItemsColumns; c++ {
			text := ""
			if c < len(values) {
				text = values[c]
			}
			row.Cells[c].SetText(text)
		}
		inserted = append(inserted, row)
	}

	rows := make([]Row, 0, len(table.Rows)+len(inserted))
	rows = append(rows, table.Rows[:insertAt]...)
	rows = append(rows, inserted...)
	rows = append(rows, table.Rows[insertAt:]...)
	if layout.AnchorRow >= 0 {
		rows = append(rows[:layout.AnchorRow], rows[layout.AnchorRow+1:]...)
	}
	table.Rows = rows

	return len(inserted)
}
