package render

import (
	"fmt"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/apperr"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/document"
)

var requiredTotals = []string{
	document.LabelSubtotal,
	document.LabelTax,
	document.LabelShipping,
	document.LabelDiscount,
	document.LabelGrandTotal,
}

// Report describes the structure found in a template.
type Report struct {
	Template string
	Layout   document.Layout

	// Problems lists every expected region that is missing.
	Problems []*apperr.TemplateStructureError
}

// OK reports whether the template has every expected region.
func (r Report) OK() bool { return len(r.Problems) == 0 }

// Inspect loads a template and checks it for the line-items table and
// every totals row.
func Inspect(templatePath string) (Report, error) {
	doc, err := document.Load(templatePath)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load template: %w", err)
	}

	report := Report{Template: templatePath, Layout: document.Index(doc)}
	problem := func(region, reason string) {
		report.Problems = append(report.Problems, &apperr.TemplateStructureError{
			Template: templatePath,
			Region:   region,
			Reason:   reason,
		})
	}

	if !report.Layout.HasItemsTable() {
		problem("line items", fmt.Sprintf("no %d-column table headed %s", document.ItemsColumns, document.ItemsHeader))
	}

	for _, label := range requiredTotals {
		if len(report.Layout.Totals[label]) == 0 {
			problem("totals", fmt.Sprintf("no row labelled %s", label))
		}
	}

	return report, nil
}
