package repl

import (
	"fmt"
	"io"
	"strings"

	"trade-ledger/internal/app"
)

func printDraft(out io.Writer, r *app.InterpretResult) {
	d := r.Draft
	fmt.Fprintf(out, "\nCUSTOMER:   %s\n", d.CustomerCode)
	fmt.Fprintf(out, "PRODUCT:    %s\n", d.ProductCode)
	fmt.Fprintf(out, "QUANTITY:   %s @ %s\n", r.Sale.Quantity.String(), d.UnitPrice.StringFixed(2))
	if r.Sale.PaymentAmount != nil {
		fmt.Fprintf(out, "PAID NOW:   %s\n", r.Sale.PaymentAmount.StringFixed(2))
	}
	fmt.Fprintf(out, "DATE:       %s\n", r.Sale.SaleDate)
	if d.Notes != "" {
		fmt.Fprintf(out, "NOTES:      %s\n", d.Notes)
	}
	fmt.Fprintf(out, "REASONING:  %s\n", d.Reasoning)
	fmt.Fprintf(out, "CONFIDENCE: %.2f\n", d.Confidence)
}

func printProducts(out io.Writer, result *app.ProductListResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintln(out, "  PRODUCTS")
	fmt.Fprintln(out, strings.Repeat("=", 70))
	if len(result.Products) == 0 {
		fmt.Fprintln(out, "  No products found.")
		fmt.Fprintln(out, strings.Repeat("=", 70))
		return
	}
	fmt.Fprintf(out, "  %-8s %-30s %-6s %14s\n", "CODE", "NAME", "UNIT", "UNIT PRICE")
	fmt.Fprintln(out, strings.Repeat("-", 70))
	for _, p := range result.Products {
		fmt.Fprintf(out, "  %-8s %-30s %-6s %14s\n", p.Code, p.Name, p.Unit, p.UnitPrice.StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("=", 70))
}

func printCustomers(out io.Writer, result *app.CustomerListResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintln(out, "  CUSTOMERS")
	fmt.Fprintln(out, strings.Repeat("=", 70))
	if len(result.Customers) == 0 {
		fmt.Fprintln(out, "  No customers found.")
		fmt.Fprintln(out, strings.Repeat("=", 70))
		return
	}
	fmt.Fprintf(out, "  %-8s %-25s %-18s %6s  %s\n", "CODE", "NAME", "LOCATION", "KM", "PHONE")
	fmt.Fprintln(out, strings.Repeat("-", 70))
	for _, c := range result.Customers {
		fmt.Fprintf(out, "  %-8s %-25s %-18s %6d  %s\n", c.Code, c.Name, c.Location, c.DistanceKm, c.Phone)
	}
	fmt.Fprintln(out, strings.Repeat("=", 70))
}

func printLevels(out io.Writer, result *app.StockLevelsResult) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-8s %-30s %12s %-6s %s\n", "CODE", "NAME", "CLOSING", "UNIT", "AS OF")
	fmt.Fprintln(out, strings.Repeat("-", 70))
	for _, l := range result.Levels {
		asOf := l.EntryDate
		if asOf == "" {
			asOf = "no entries"
		}
		fmt.Fprintf(out, "  %-8s %-30s %12s %-6s %s\n", l.ProductCode, l.ProductName, l.Closing.StringFixed(2), l.Unit, asOf)
	}
}

func printDebts(out io.Writer, result *app.DebtListResult) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-5s %-16s %-22s %-10s %12s %12s\n", "ID", "INVOICE", "CUSTOMER", "DATE", "FACE", "REMAINING")
	fmt.Fprintln(out, strings.Repeat("-", 84))
	for _, d := range result.Debts {
		customer := d.CustomerName
		if customer == "" {
			customer = "(sale deleted)"
		}
		fmt.Fprintf(out, "  %-5d %-16s %-22s %-10s %12s %12s\n",
			d.ID, d.InvoiceNumber, customer, d.DebtDate, d.FaceValue.StringFixed(2), d.Remaining.StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("-", 84))
	if s := result.Summary; s != nil {
		fmt.Fprintf(out, "  Unpaid: %d (%s)   Paid: %d   Outstanding: %s\n",
			s.UnpaidCount, s.UnpaidValue.StringFixed(2), s.PaidCount, s.TotalRemaining.StringFixed(2))
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  /products                 active products with list prices")
	fmt.Fprintln(out, "  /customers                active customers")
	fmt.Fprintln(out, "  /levels [by-date]         current stock per product")
	fmt.Fprintln(out, "  /debts [all]              unpaid debts, or every debt")
	fmt.Fprintln(out, "  /pay <debt-id> <amount>   record a payment against a debt")
	fmt.Fprintln(out, "  /sale                     enter a sale field by field")
	fmt.Fprintln(out, "  /reconcile                compare every debt with its sale")
	fmt.Fprintln(out, "  /help, /exit")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Anything else is read as an order note and drafted into a sale for approval.")
}
