package invoice

import (
	"testing"
	"time"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/apperr"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/rowsource"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func record(id string, qty int64, rate, shipping string) rowsource.Record {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return rowsource.Record{
		Row:            2,
		InvoiceID:      id,
		ClientName:     "Acme",
		ClientEmail:    "ap@acme.test",
		InvoiceDate:    day,
		DueDate:        day.AddDate(0, 0, 30),
		Product:        "Widget",
		Quantity:       qty,
		Rate:           dec(rate),
		PaymentMode:    "Bank transfer",
		ShippingAmount: dec(shipping),
	}
}

func assertConsistent(t *testing.T, inv *Invoice, policy PricingPolicy) {
	t.Helper()

	subtotal := decimal.Zero
	for _, item := range inv.Items {
		subtotal = subtotal.Add(item.Amount())
	}
	assert.True(t, inv.Subtotal.Equal(subtotal), "subtotal %s != %s", inv.Subtotal, subtotal)
	assert.True(t, inv.TotalTax.Equal(subtotal.Mul(policy.TaxRate)))

	pre := inv.Subtotal.Add(inv.TotalTax).Add(inv.ShippingCharges)
	if pre.GreaterThanOrEqual(policy.MinDiscountThreshold) {
		assert.True(t, inv.Discount.Equal(pre.Mul(policy.DiscountRate)))
	} else {
		assert.True(t, inv.Discount.IsZero())
	}
	assert.True(t, inv.Total.Equal(pre.Sub(inv.Discount)))
}

func TestAggregator_TwoRowsBelowThreshold(t *testing.T) {
	policy := NewPricingPolicy(10, 5, 2000, NegativeReject)
	agg := NewAggregator(policy)

	require.NoError(t, agg.Ingest(record("INV-1", 2, "100", "0")))
	require.NoError(t, agg.Ingest(record("INV-1", 3, "50", "0")))

	invoices := agg.FinishedInvoices()
	require.Len(t, invoices, 1)
	inv := invoices[0]

	assert.Len(t, inv.Items, 2)
	assert.Equal(t, "350.00", FormatMoney(inv.Subtotal))
	assert.Equal(t, "35.00", FormatMoney(inv.TotalTax))
	assert.Equal(t, "385.00", FormatMoney(inv.PreDiscountTotal()))
	assert.True(t, inv.Discount.IsZero())
	assert.Equal(t, "385.00", FormatMoney(inv.Total))
}

func TestAggregator_DiscountApplied(t *testing.T) {
	policy := NewPricingPolicy(10, 5, 2000, NegativeReject)
	agg := NewAggregator(policy)

	require.NoError(t, agg.Ingest(record("INV-2", 10, "500", "100")))

	inv, ok := agg.Get("INV-2")
	require.True(t, ok)
	assert.True(t, inv.Subtotal.Equal(dec("5000")))
	assert.True(t, inv.TotalTax.Equal(dec("500")))
	assert.True(t, inv.PreDiscountTotal().Equal(dec("5600")))
	assert.True(t, inv.Discount.Equal(dec("280")))
	assert.True(t, inv.Total.Equal(dec("5320")))
}

func TestAggregator_ThresholdIsInclusive(t *testing.T) {
	// 1000 * 1 + 0% tax + 1000 shipping = 2000, exactly the threshold.
	policy := NewPricingPolicy(0, 10, 2000, NegativeReject)
	inv, err := Ingest(nil, record("INV-3", 1, "1000", "1000"), policy)
	require.NoError(t, err)
	assert.True(t, inv.Discount.Equal(dec("200")))
	assert.True(t, inv.Total.Equal(dec("1800")))

	inv, err = Ingest(nil, record("INV-4", 1, "999.99", "1000"), policy)
	require.NoError(t, err)
	assert.True(t, inv.Discount.IsZero())
}

func TestAggregator_ShippingAccumulatesAndFirstSeenOrder(t *testing.T) {
	policy := NewPricingPolicy(10, 5, 2000, NegativeReject)
	agg := NewAggregator(policy)

	require.NoError(t, agg.Ingest(record("B", 1, "10", "5")))
	require.NoError(t, agg.Ingest(record("A", 1, "10", "0")))
	require.NoError(t, agg.Ingest(record("B", 2, "10", "7.5")))

	invoices := agg.FinishedInvoices()
	require.Len(t, invoices, 2)
	assert.Equal(t, "B", invoices[0].InvoiceID)
	assert.Equal(t, "A", invoices[1].InvoiceID)
	assert.True(t, invoices[0].ShippingCharges.Equal(dec("12.5")))
	assert.Equal(t, 3, agg.LineItemCount())
}

func TestIngest_ConsistentAfterEveryStep(t *testing.T) {
	policy := NewPricingPolicy(18, 5, 500, NegativeReject)
	rows := []rowsource.Record{
		record("INV-5", 3, "19.99", "4.50"),
		record("INV-5", 0, "250", "0"),
		record("INV-5", 7, "0", "0"),
		record("INV-5", 12, "33.33", "10"),
	}

	var inv *Invoice
	for _, rec := range rows {
		var err error
		inv, err = Ingest(inv, rec, policy)
		require.NoError(t, err)
		assertConsistent(t, inv, policy)
	}
	assert.Len(t, inv.Items, 4)
}

func TestIngest_SubtotalIndependentOfOrder(t *testing.T) {
	policy := NewPricingPolicy(10, 5, 2000, NegativeReject)
	rows := []rowsource.Record{
		record("X", 2, "100", "0"),
		record("X", 3, "50", "0"),
		record("X", 1, "0.35", "0"),
	}
	reversed := []rowsource.Record{rows[2], rows[1], rows[0]}

	fold := func(recs []rowsource.Record) *Invoice {
		var inv *Invoice
		for _, rec := range recs {
			var err error
			inv, err = Ingest(inv, rec, policy)
			require.NoError(t, err)
		}
		return inv
	}

	assert.True(t, fold(rows).Subtotal.Equal(fold(reversed).Subtotal))
	assert.True(t, fold(rows).Total.Equal(fold(reversed).Total))
}

func TestIngest_DoesNotMutatePrevious(t *testing.T) {
	policy := NewPricingPolicy(10, 5, 2000, NegativeReject)
	first, err := Ingest(nil, record("INV-6", 1, "10", "0"), policy)
	require.NoError(t, err)

	second, err := Ingest(first, record("INV-6", 1, "20", "0"), policy)
	require.NoError(t, err)

	assert.Len(t, first.Items, 1)
	assert.True(t, first.Subtotal.Equal(dec("10")))
	assert.Len(t, second.Items, 2)
	assert.True(t, second.Subtotal.Equal(dec("30")))
}

func TestIngest_NegativePolicy(t *testing.T) {
	reject := NewPricingPolicy(10, 5, 2000, NegativeReject)
	_, err := Ingest(nil, record("INV-7", -1, "10", "0"), reject)
	var malformed *apperr.MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "quantity", malformed.Column)

	_, err = Ingest(nil, record("INV-7", 1, "-10", "0"), reject)
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "rate", malformed.Column)

	allow := NewPricingPolicy(10, 5, 2000, NegativeAllow)
	inv, err := Ingest(nil, record("INV-7", -2, "10", "0"), allow)
	require.NoError(t, err)
	assert.True(t, inv.Subtotal.Equal(dec("-20")))
	assert.True(t, inv.Total.Equal(dec("-22")))
}

func TestAggregator_RejectedRecordLeavesStateUnchanged(t *testing.T) {
	agg := NewAggregator(NewPricingPolicy(10, 5, 2000, NegativeReject))
	require.NoError(t, agg.Ingest(record("INV-8", 1, "10", "0")))
	assert.Error(t, agg.Ingest(record("INV-8", -1, "10", "0")))
	assert.Error(t, agg.Ingest(record("INV-9", -1, "10", "0")))

	assert.Equal(t, 1, agg.Len())
	inv, _ := agg.Get("INV-8")
	assert.Len(t, inv.Items, 1)
}

func TestParseNegativePolicy(t *testing.T) {
	p, err := ParseNegativePolicy(" Allow ")
	require.NoError(t, err)
	assert.Equal(t, NegativeAllow, p)

	p, err = ParseNegativePolicy("")
	require.NoError(t, err)
	assert.Equal(t, NegativeReject, p)

	_, err = ParseNegativePolicy("ignore")
	assert.Error(t, err)
}

func TestFields(t *testing.T) {
	policy := NewPricingPolicy(10, 5, 2000, NegativeReject)
	inv, err := Ingest(nil, record("INV-10", 2, "100", "0"), policy)
	require.NoError(t, err)

	fields := Fields(inv, Company{Name: "Anushka Traders", Address: "12 Park St\nKolkata"}, policy, "")
	assert.Equal(t, "INV-10", fields[FieldInvoiceNumber])
	assert.Equal(t, "Anushka Traders", fields[FieldCompanyName])
	assert.Equal(t, "15-01-2024", fields["invoice_date"])
	assert.Equal(t, "200.00", fields["subtotal"])
	assert.Equal(t, "10", fields["tax_percent"])
	assert.Equal(t, "Acme", fields[FieldShippedTo])
	assert.Equal(t, "1", fields["item_count"])
}
