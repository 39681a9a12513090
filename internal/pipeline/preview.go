package pipeline

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/invoice"
)

const billRule = "-----------------------------------------------------------"

// Preview writes a plain-text bill for each invoice.
func Preview(w io.Writer, invoices []*invoice.Invoice, company invoice.Company, policy invoice.PricingPolicy, dateLayout string) error {
	if dateLayout == "" {
		dateLayout = invoice.DefaultDateLayout
	}
	for _, inv := range invoices {
		if err := writeBill(w, inv, company, policy, dateLayout); err != nil {
			return fmt.Errorf("failed to write bill for %s: %w", inv.InvoiceID, err)
		}
	}
	return nil
}

func writeBill(w io.Writer, inv *invoice.Invoice, company invoice.Company, policy invoice.PricingPolicy, dateLayout string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	line := func(format string, args ...any) {
		fmt.Fprintf(tw, format+"\n", args...)
	}

	line(billRule)
	if company.Name != "" {
		line("%s", company.Name)
	}
	line("Invoice Number:\t%s", inv.InvoiceID)
	line("Invoice Date:\t%s", inv.InvoiceDate.Format(dateLayout))
	line("Client Name:\t%s", inv.ClientName)
	line("Client Email:\t%s", inv.ClientEmail)
	line("Billing Address:\t%s", oneLine(inv.BillingAddress))
	line("Shipping Address:\t%s", oneLine(inv.ShippingAddress))
	line("")
	line(billRule)
	line("Product\tQuantity\tRate\tAmount")
	line(billRule)
	for _, item := range inv.Items {
		line("%s\t%s\t%s\t%s",
			item.Product,
			invoice.FormatQuantity(item.Quantity),
			invoice.FormatMoney(item.Rate),
			invoice.FormatMoney(item.Amount()))
	}
	line(billRule)
	line("Subtotal:\t%s", invoice.FormatMoney(inv.Subtotal))
	line("Tax (%s%%):\t%s", policy.TaxPercent().String(), invoice.FormatMoney(inv.TotalTax))
	line("Shipping:\t%s", invoice.FormatMoney(inv.ShippingCharges))
	line("Discount:\t%s", invoice.FormatMoney(inv.Discount))
	line(billRule)
	line("Grand Total:\t%s", invoice.FormatMoney(inv.Total))
	line(billRule)
	line("Due Date:\t%s", inv.DueDate.Format(dateLayout))
	line("Payment Mode:\t%s", inv.PaymentMode)
	line(billRule)
	line("")

	return tw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
