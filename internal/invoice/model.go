// =============================================================================
// Invoice Mailer - Invoice Domain Model
// =============================================================================
//
// This module defines the invoice aggregate built from spreadsheet rows:
//   - LineItem      : one product/quantity/rate entry
//   - Invoice       : all rows sharing an invoice id, with running totals
//   - PricingPolicy : tax rate, discount rate and discount threshold
//   - Company       : the issuing company profile shown on every invoice
//
// INVARIANTS (hold after every ingested row, not only at the end):
//   subtotal  = sum(item.quantity * item.rate)
//   total_tax = subtotal * tax_rate
//   discount  = pre_discount * discount_rate  if pre_discount >= threshold
//             = 0                             otherwise
//   total     = subtotal + total_tax + shipping_charges - discount
//   where pre_discount = subtotal + total_tax + shipping_charges.
//
// Amounts are exact decimals. Rounding happens only when formatting.
//
// =============================================================================

package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// LINE ITEM
// =============================================================================

// LineItem is one product entry of an invoice. It is never modified after
// creation.
type LineItem struct {
	Product  string
	Quantity int64
	Rate     decimal.Decimal
}

// Amount returns quantity * rate.
func (li LineItem) Amount() decimal.Decimal {
	return li.Rate.Mul(decimal.NewFromInt(li.Quantity))
}

// =============================================================================
// INVOICE AGGREGATE
// =============================================================================

// Invoice is the accumulated record for one invoice id.
type Invoice struct {
	InvoiceID   string
	ClientName  string
	ClientEmail string
	InvoiceDate time.Time
	DueDate     time.Time

	// Items keeps the row order of the source sheet.
	Items []LineItem

	PaymentMode     string
	BillingAddress  string
	ShippingAddress string
	ShippedTo       string

	ShippingCharges decimal.Decimal
	Subtotal        decimal.Decimal
	TotalTax        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal

	// SourceRows lists the sheet row numbers that contributed to this
	// invoice, for logs and error reports.
	SourceRows []int
}

// PreDiscountTotal returns subtotal + tax + shipping.
func (inv *Invoice) PreDiscountTotal() decimal.Decimal {
	return inv.Subtotal.Add(inv.TotalTax).Add(inv.ShippingCharges)
}

// clone returns a copy whose slices do not alias the receiver's.
func (inv *Invoice) clone() *Invoice {
	out := *inv
	out.Items = append(make([]LineItem, 0, len(inv.Items)+1), inv.Items...)
	out.SourceRows = append(make([]int, 0, len(inv.SourceRows)+1), inv.SourceRows...)
	return &out
}

// =============================================================================
// PRICING POLICY
// =============================================================================

// NegativePolicy decides how negative quantities and rates are treated.
type NegativePolicy string

const (
	// NegativeAllow accepts negative lines arithmetically (credit or
	// return lines).
	NegativeAllow NegativePolicy = "allow"

	// NegativeReject fails the row as malformed.
	NegativeReject NegativePolicy = "reject"
)

// ParseNegativePolicy normalizes a configuration value.
func ParseNegativePolicy(value string) (NegativePolicy, error) {
	switch NegativePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case NegativeAllow:
		return NegativeAllow, nil
	case NegativeReject, "":
		return NegativeReject, nil
	default:
		return "", fmt.Errorf("unknown negative line policy %q (want allow or reject)", value)
	}
}

// PricingPolicy holds the rates applied uniformly to a run.
type PricingPolicy struct {
	// TaxRate is a fraction, e.g. 0.10 for 10%.
	TaxRate decimal.Decimal

	// DiscountRate is a fraction, e.g. 0.05 for 5%.
	DiscountRate decimal.Decimal

	// MinDiscountThreshold is the inclusive pre-discount total from which
	// the discount applies.
	MinDiscountThreshold decimal.Decimal

	Negative NegativePolicy
}

// NewPricingPolicy builds a policy from percentages as they appear in
// configuration.
func NewPricingPolicy(taxPercent, discountPercent, minDiscount float64, negative NegativePolicy) PricingPolicy {
	if negative == "" {
		negative = NegativeReject
	}
	return PricingPolicy{
		TaxRate:              decimal.NewFromFloat(taxPercent).Div(hundred),
		DiscountRate:         decimal.NewFromFloat(discountPercent).Div(hundred),
		MinDiscountThreshold: decimal.NewFromFloat(minDiscount),
		Negative:             negative,
	}
}

// TaxPercent returns the tax rate as a percentage.
func (p PricingPolicy) TaxPercent() decimal.Decimal {
	return p.TaxRate.Mul(hundred)
}

// DiscountFor returns the discount for a pre-discount total.
func (p PricingPolicy) DiscountFor(preDiscount decimal.Decimal) decimal.Decimal {
	if preDiscount.GreaterThanOrEqual(p.MinDiscountThreshold) {
		return preDiscount.Mul(p.DiscountRate)
	}
	return decimal.Zero
}

// =============================================================================
// COMPANY PROFILE
// =============================================================================

// Company is the issuing company, shared by every rendered invoice.
type Company struct {
	Name string

	// Address may span several lines separated by "\n".
	Address string

	Contact string
}
