// =============================================================================
// Invoice Mailer - Template Document Model
// =============================================================================
//
// This module defines the rich-text document tree the renderer fills in.
// A document is an ordered list of blocks. Each block is either a
// paragraph or a table; table cells hold paragraphs; paragraphs hold runs
// of text sharing one style.
//
// TEMPLATE FILE (YAML):
//
//   blocks:
//     - paragraph:
//         runs:
//           - text: "[company_name]"
//             bold: true
//             size: 18
//     - table:
//         rows:
//           - cells: [{paragraphs: [{runs: [{text: DESCRIPTION}]}]}, ...]
//
// =============================================================================

package document

import (
	"strings"
)

// Document is a template or a rendered invoice.
type Document struct {
	// Blocks are rendered top to bottom.
	Blocks []Block `yaml:"blocks"`
}

// Block holds exactly one of Paragraph or Table.
type Block struct {
	Paragraph *Paragraph `yaml:"paragraph,omitempty"`
	Table     *Table     `yaml:"table,omitempty"`
}

// Table is a grid of cells.
type Table struct {
	Rows []Row `yaml:"rows"`
}

// Row is one table row.
type Row struct {
	Cells []Cell `yaml:"cells"`
}

// Cell holds one or more paragraphs.
type Cell struct {
	Paragraphs []Paragraph `yaml:"paragraphs"`
}

// Paragraph is a sequence of styled runs.
type Paragraph struct {
	Runs []Run `yaml:"runs"`

	// Align is "left" (default), "center" or "right".
	Align string `yaml:"align,omitempty"`
}

// Run is a span of text with one style.
type Run struct {
	Text string  `yaml:"text"`
	Bold bool    `yaml:"bold,omitempty"`
	Size float64 `yaml:"size,omitempty"`
}

// =============================================================================
// TEXT ACCESSORS
// =============================================================================

// Text returns the concatenated run text.
func (p Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// Text returns the cell's paragraphs joined by newlines.
func (c Cell) Text() string {
	parts := make([]string, len(c.Paragraphs))
	for i, p := range c.Paragraphs {
		parts[i] = p.Text()
	}
	return strings.Join(parts, "\n")
}

// SetText replaces the cell content with a single run, keeping the style
// of the cell's first run so cloned template rows look like the template.
func (c *Cell) SetText(text string) {
	style := Run{}
	align := ""
	if len(c.Paragraphs) > 0 {
		align = c.Paragraphs[0].Align
		if len(c.Paragraphs[0].Runs) > 0 {
			style = c.Paragraphs[0].Runs[0]
		}
	}
	style.Text = text
	c.Paragraphs = []Paragraph{{Runs: []Run{style}, Align: align}}
}

// NewTextCell returns a cell with one plain run.
func NewTextCell(text string) Cell {
	return Cell{Paragraphs: []Paragraph{{Runs: []Run{{Text: text}}}}}
}

// =============================================================================
// COPYING
// =============================================================================

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{Blocks: make([]Block, len(d.Blocks))}
	for i, b := range d.Blocks {
		if b.Paragraph != nil {
			p := b.Paragraph.clone()
			out.Blocks[i].Paragraph = &p
		}
		if b.Table != nil {
			t := b.Table.clone()
			out.Blocks[i].Table = &t
		}
	}
	return out
}

func (t Table) clone() Table {
	out := Table{Rows: make([]Row, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = r.clone()
	}
	return out
}

func (r Row) clone() Row {
	out := Row{Cells: make([]Cell, len(r.Cells))}
	for i, c := range r.Cells {
		out.Cells[i] = Cell{Paragraphs: make([]Paragraph, len(c.Paragraphs))}
		for j, p := range c.Paragraphs {
			out.Cells[i].Paragraphs[j] = p.clone()
		}
	}
	return out
}

func (p Paragraph) clone() Paragraph {
	return Paragraph{Runs: append([]Run(nil), p.Runs...), Align: p.Align}
}

// =============================================================================
// TRAVERSAL
// =============================================================================

// eachParagraph calls fn for every paragraph in the document, including
// paragraphs inside table cells, in document order.
func (d *Document) eachParagraph(fn func(p *Paragraph)) {
	for i := range d.Blocks {
		b := &d.Blocks[i]
		if b.Paragraph != nil {
			fn(b.Paragraph)
		}
		if b.Table != nil {
			for r := range b.Table.Rows {
				for c := range b.Table.Rows[r].Cells {
					cell := &b.Table.Rows[r].Cells[c]
					for p := range cell.Paragraphs {
						fn(&cell.Paragraphs[p])
					}
				}
			}
		}
	}
}
