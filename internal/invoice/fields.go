package invoice

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// DefaultDateLayout prints dates as day-month-year.
const DefaultDateLayout = "02-01-2006"

// Placeholder field names that the renderer may emphasize.
const (
	FieldCompanyName   = "company_name"
	FieldClientName    = "client_name"
	FieldInvoiceNumber = "invoice_number"
	FieldShippedTo     = "shipped_to"
)

// FormatMoney renders an amount with two decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatQuantity renders a line item quantity.
func FormatQuantity(q int64) string {
	return strconv.FormatInt(q, 10)
}

// Fields returns the placeholder values of an invoice, keyed by the name
// used inside brackets in the template, e.g. "[client_name]".
func Fields(inv *Invoice, company Company, policy PricingPolicy, dateLayout string) map[string]string {
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}

	shippedTo := inv.ShippedTo
	if shippedTo == "" {
		shippedTo = inv.ClientName
	}

	return map[string]string{
		FieldCompanyName:    company.Name,
		"company_address":   company.Address,
		"company_contact":   company.Contact,
		FieldInvoiceNumber:  inv.InvoiceID,
		FieldClientName:     inv.ClientName,
		"client_email":      inv.ClientEmail,
		"invoice_date":      inv.InvoiceDate.Format(dateLayout),
		"due_date":          inv.DueDate.Format(dateLayout),
		"payment_mode":      inv.PaymentMode,
		"billing_address":   inv.BillingAddress,
		"shipping_address":  inv.ShippingAddress,
		FieldShippedTo:      shippedTo,
		"subtotal":          FormatMoney(inv.Subtotal),
		"total_tax":         FormatMoney(inv.TotalTax),
		"tax_percent":       policy.TaxPercent().String(),
		"shipping_charges":  FormatMoney(inv.ShippingCharges),
		"discount":          FormatMoney(inv.Discount),
		"total":             FormatMoney(inv.Total),
		"item_count":        strconv.Itoa(len(inv.Items)),
	}
}
