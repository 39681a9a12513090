package document

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/apperr"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// =============================================================================
// PDF CONVERTER
// =============================================================================

const (
	gridColumns     = 12
	defaultFontSize = 10.0
	rowPadding      = 2.0
)

// PDFConverter turns a document file into a PDF with maroto. Paragraphs
// become full-width rows, tables become rows of equal-width columns.
type PDFConverter struct {
	// PageNumbers prints "Page n of m" in the footer.
	PageNumbers bool
}

// NewPDFConverter returns a converter with page numbers enabled.
func NewPDFConverter() *PDFConverter {
	return &PDFConverter{PageNumbers: true}
}

// Convert reads the document at src and writes the PDF to dst. Failures
// are reported as *apperr.TransportError with stage "convert".
func (c *PDFConverter) Convert(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return &apperr.TransportError{Stage: "convert", Err: err}
	}

	doc, err := Load(src)
	if err != nil {
		return &apperr.TransportError{Stage: "convert", Err: err}
	}

	data, err := c.Render(doc)
	if err != nil {
		return &apperr.TransportError{Stage: "convert", Err: err}
	}

	if err := os.WriteFile(dst, data, 0644); err != nil {
		return &apperr.TransportError{Stage: "convert", Err: fmt.Errorf("failed to write PDF: %w", err)}
	}
	return nil
}

// Render lays the document out and returns the PDF bytes.
func (c *PDFConverter) Render(doc *Document) ([]byte, error) {
	builder := config.NewBuilder()
	if c.PageNumbers {
		builder = builder.WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		})
	}
	m := maroto.New(builder.Build())

	for _, block := range doc.Blocks {
		switch {
		case block.Paragraph != nil:
			height, component := paragraphColumn(gridColumns, []Paragraph{*block.Paragraph})
			m.AddRow(height, component)
		case block.Table != nil:
			for _, row := range block.Table.Rows {
				if height, cols := tableRow(row); len(cols) > 0 {
					m.AddRow(height, cols...)
				}
			}
		}
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return out.GetBytes(), nil
}

// tableRow lays a table row out on the 12-column grid.
func tableRow(row Row) (float64, []core.Col) {
	cells := row.Cells
	if len(cells) > gridColumns {
		cells = cells[:gridColumns]
	}
	if len(cells) == 0 {
		return 0, nil
	}

	width := gridColumns / len(cells)
	height := 0.0
	cols := make([]core.Col, 0, len(cells))
	for i, cell := range cells {
		size := width
		if i == len(cells)-1 {
			size = gridColumns - width*(len(cells)-1)
		}
		h, column := paragraphColumn(size, cell.Paragraphs)
		if h > height {
			height = h
		}
		cols = append(cols, column)
	}
	return height, cols
}

// paragraphColumn stacks the lines of the paragraphs in one column and
// returns the row height they need.
func paragraphColumn(size int, paragraphs []Paragraph) (float64, core.Col) {
	column := col.New(size)
	top := 0.0
	for _, p := range paragraphs {
		style := paragraphStyle(p)
		lineHeight := style.Size * 0.5
		for _, line := range strings.Split(p.Text(), "\n") {
			style.Top = top
			column.Add(text.New(line, style))
			top += lineHeight
		}
	}
	if top == 0 {
		top = defaultFontSize * 0.5
	}
	return top + rowPadding, column
}

// paragraphStyle derives text props from the first run with text.
func paragraphStyle(p Paragraph) props.Text {
	style := props.Text{
		Size:  defaultFontSize,
		Style: fontstyle.Normal,
		Align: align.Left,
	}
	for _, r := range p.Runs {
		if r.Text == "" {
			continue
		}
		if r.Size > 0 {
			style.Size = r.Size
		}
		if r.Bold {
			style.Style = fontstyle.Bold
		}
		break
	}
	switch strings.ToLower(p.Align) {
	case "center":
		style.Align = align.Center
	case "right":
		style.Align = align.Right
	}
	return style
}
