package invoice

import (
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/apperr"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/rowsource"
	"github.com/shopspring/decimal"
)

// =============================================================================
// INGESTION STEP
// =============================================================================

// Ingest folds one record into the aggregate for its invoice id and
// returns the updated aggregate. prev is nil for the first row of an
// invoice; it is never modified.
//
// The first row seeds the per-invoice fields (client, dates, addresses,
// payment mode, shipping). Later rows append a line item and add their
// shipping amount. Totals are recomputed from the full item list after
// either branch, so the result is consistent at every step.
func Ingest(prev *Invoice, rec rowsource.Record, policy PricingPolicy) (*Invoice, error) {
	if err := checkNegative(rec, policy); err != nil {
		return nil, err
	}

	item := LineItem{
		Product:  rec.Product,
		Quantity: rec.Quantity,
		Rate:     rec.Rate,
	}

	var next *Invoice
	if prev == nil {
		next = &Invoice{
			InvoiceID:       rec.InvoiceID,
			ClientName:      rec.ClientName,
			ClientEmail:     rec.ClientEmail,
			InvoiceDate:     rec.InvoiceDate,
			DueDate:         rec.DueDate,
			PaymentMode:     rec.PaymentMode,
			BillingAddress:  rec.BillingAddress,
			ShippingAddress: rec.ShippingAddress,
			ShippedTo:       rec.ShippedTo,
			ShippingCharges: rec.ShippingAmount,
			Items:           []LineItem{item},
			SourceRows:      []int{rec.Row},
		}
	} else {
		next = prev.clone()
		next.Items = append(next.Items, item)
		next.SourceRows = append(next.SourceRows, rec.Row)
		next.ShippingCharges = next.ShippingCharges.Add(rec.ShippingAmount)
	}

	finalize(next, policy)
	return next, nil
}

// finalize recomputes every derived amount from the item list.
func finalize(inv *Invoice, policy PricingPolicy) {
	subtotal := decimal.Zero
	for _, item := range inv.Items {
		subtotal = subtotal.Add(item.Amount())
	}

	inv.Subtotal = subtotal
	inv.TotalTax = subtotal.Mul(policy.TaxRate)
	inv.Discount = policy.DiscountFor(inv.PreDiscountTotal())
	inv.Total = inv.PreDiscountTotal().Sub(inv.Discount)
}

// checkNegative applies the negative line policy to a record.
func checkNegative(rec rowsource.Record, policy PricingPolicy) error {
	if policy.Negative == NegativeAllow {
		return nil
	}
	switch {
	case rec.Quantity < 0:
		return &apperr.MalformedRecordError{
			Row:    rec.Row,
			Column: rowsource.ColumnNames[rowsource.ColQuantity],
			Value:  decimal.NewFromInt(rec.Quantity).String(),
			Reason: "negative quantity rejected by pricing policy",
		}
	case rec.Rate.IsNegative():
		return &apperr.MalformedRecordError{
			Row:    rec.Row,
			Column: rowsource.ColumnNames[rowsource.ColRate],
			Value:  rec.Rate.String(),
			Reason: "negative rate rejected by pricing policy",
		}
	case rec.ShippingAmount.IsNegative():
		return &apperr.MalformedRecordError{
			Row:    rec.Row,
			Column: rowsource.ColumnNames[rowsource.ColShippingAmount],
			Value:  rec.ShippingAmount.String(),
			Reason: "negative shipping amount rejected by pricing policy",
		}
	}
	return nil
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator groups records by invoice id, keeping first-seen order.
type Aggregator struct {
	policy   PricingPolicy
	invoices []*Invoice
	index    map[string]int
}

// NewAggregator returns an empty Aggregator for the policy.
func NewAggregator(policy PricingPolicy) *Aggregator {
	return &Aggregator{
		policy: policy,
		index:  make(map[string]int),
	}
}

// Ingest folds the record into its invoice. A rejected record leaves the
// aggregator unchanged.
func (a *Aggregator) Ingest(rec rowsource.Record) error {
	pos, seen := a.index[rec.InvoiceID]

	var prev *Invoice
	if seen {
		prev = a.invoices[pos]
	}

	next, err := Ingest(prev, rec, a.policy)
	if err != nil {
		return err
	}

	if seen {
		a.invoices[pos] = next
		return nil
	}
	a.index[rec.InvoiceID] = len(a.invoices)
	a.invoices = append(a.invoices, next)
	return nil
}

// FinishedInvoices returns the aggregates in first-seen order.
func (a *Aggregator) FinishedInvoices() []*Invoice {
	return append([]*Invoice(nil), a.invoices...)
}

// Get returns the aggregate for an invoice id.
func (a *Aggregator) Get(invoiceID string) (*Invoice, bool) {
	pos, ok := a.index[invoiceID]
	if !ok {
		return nil, false
	}
	return a.invoices[pos], true
}

// Len returns the number of distinct invoices.
func (a *Aggregator) Len() int { return len(a.invoices) }

// LineItemCount returns the number of line items across all invoices.
func (a *Aggregator) LineItemCount() int {
	n := 0
	for _, inv := range a.invoices {
		n += len(inv.Items)
	}
	return n
}
