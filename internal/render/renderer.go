// =============================================================================
// Invoice Mailer - Renderer
// =============================================================================
//
// This module turns one invoice aggregate plus a template document into a
// distributable PDF:
//   1. Load the template document
//   2. Substitute [field] placeholders across the whole document
//   3. Index the line-items table and totals rows
//   4. Write totals into each totals row's value cell
//   5. Expand the line-items table, one row per item
//   6. Persist the populated document, convert it to PDF, and remove the
//      intermediate file
//
// Totals are written before the items table grows, since indexed row
// positions shift once rows are inserted.
//
// =============================================================================

package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/apperr"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/document"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/invoice"
	"github.com/ginjaninja78/xlsx-invoice-mailer/pkg/utils"
	"go.uber.org/zap"
)

// Converter turns a populated document file into the distributable
// format.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// Options configures a Renderer.
type Options struct {
	// OutputDir receives rendered invoices.
	OutputDir string

	Company invoice.Company
	Policy  invoice.PricingPolicy

	// DateLayout formats invoice and due dates. Empty uses
	// invoice.DefaultDateLayout.
	DateLayout string

	// EmphasisSize is the minimum font size of emphasized fields.
	EmphasisSize float64

	// StrictItemsTable fails the render when the template has no
	// line-items table instead of logging a warning.
	StrictItemsTable bool
}

// emphasized lists the fields shown bold and enlarged.
var emphasized = map[string]bool{
	invoice.FieldCompanyName:   true,
	invoice.FieldClientName:    true,
	invoice.FieldInvoiceNumber: true,
	invoice.FieldShippedTo:     true,
}

// Renderer renders invoices from a template. Output names are unique
// per Renderer, so one Renderer should serve one run.
type Renderer struct {
	opts      Options
	converter Converter
	names     *utils.OutputNames
	logger    *zap.Logger
}

// New creates a Renderer. A nil logger disables logging.
func New(opts Options, converter Converter, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DateLayout == "" {
		opts.DateLayout = invoice.DefaultDateLayout
	}
	return &Renderer{
		opts:      opts,
		converter: converter,
		names:     utils.NewOutputNames(),
		logger:    logger,
	}
}

// Render produces the PDF for inv and returns its path.
func (r *Renderer) Render(ctx context.Context, inv *invoice.Invoice, templatePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, err := document.Load(templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to load template: %w", err)
	}

	if err := r.populate(doc, inv, templatePath); err != nil {
		return "", err
	}

	base := filepath.Join(r.opts.OutputDir, r.names.Reserve(inv.InvoiceID))
	intermediate := base + ".yaml"
	output := base + ".pdf"

	if err := document.Save(doc, intermediate); err != nil {
		return "", fmt.Errorf("failed to save populated template: %w", err)
	}
	defer func() {
		if err := os.Remove(intermediate); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("failed to remove intermediate document",
				zap.String("invoice_id", inv.InvoiceID),
				zap.String("path", intermediate),
				zap.Error(err))
		}
	}()

	if err := r.converter.Convert(ctx, intermediate, output); err != nil {
		_ = os.Remove(output)
		var te *apperr.TransportError
		if errors.As(err, &te) {
			if te.InvoiceID == "" {
				te.InvoiceID = inv.InvoiceID
			}
			return "", te
		}
		return "", &apperr.TransportError{Stage: "convert", InvoiceID: inv.InvoiceID, Err: err}
	}

	r.logger.Debug("rendered invoice",
		zap.String("invoice_id", inv.InvoiceID),
		zap.Int("items", len(inv.Items)),
		zap.String("output", output))

	return output, nil
}

// populate runs the substitution, totals and items steps on doc.
func (r *Renderer) populate(doc *document.Document, inv *invoice.Invoice, templatePath string) error {
	fields := invoice.Fields(inv, r.opts.Company, r.opts.Policy, r.opts.DateLayout)
	document.Substitute(doc, fields, document.Emphasis{
		Fields: emphasized,
		Size:   r.opts.EmphasisSize,
	})

	layout := document.Index(doc)

	for label, value := range totalsValues(inv) {
		for _, ref := range layout.Totals[label] {
			doc.SetCellText(ref, value)
		}
	}

	if !layout.HasItemsTable() {
		err := &apperr.TemplateStructureError{
			Template: templatePath,
			Region:   "line items",
			Reason:   fmt.Sprintf("no %d-column table headed %s", document.ItemsColumns, document.ItemsHeader),
		}
		if r.opts.StrictItemsTable {
			return err
		}
		r.logger.Warn("template has no line-items table, items not written",
			zap.String("invoice_id", inv.InvoiceID),
			zap.Error(err))
		return nil
	}

	doc.ExpandItems(layout, itemRows(inv))
	return nil
}

// totalsValues maps each totals label to its formatted amount.
func totalsValues(inv *invoice.Invoice) map[string]string {
	return map[string]string{
		document.LabelSubtotal:   invoice.FormatMoney(inv.Subtotal),
		document.LabelTax:        invoice.FormatMoney(inv.TotalTax),
		document.LabelShipping:   invoice.FormatMoney(inv.ShippingCharges),
		document.LabelDiscount:   invoice.FormatMoney(inv.Discount),
		document.LabelGrandTotal: invoice.FormatMoney(inv.Total),
	}
}

// itemRows returns [product, quantity, rate, amount] per line item.
func itemRows(inv *invoice.Invoice) [][]string {
	rows := make([][]string, 0, len(inv.Items))
	for _, item := range inv.Items {
		rows = append(rows, []string{
			item.Product,
			invoice.FormatQuantity(item.Quantity),
			invoice.FormatMoney(item.Rate),
			invoice.FormatMoney(item.Amount()),
		})
	}
	return rows
}
