package repl

import (
	"fmt"
	"strings"
	"time"

	"trade-ledger/internal/app"

	"github.com/shopspring/decimal"
)

// saleWizard collects a sale field by field. Codes are resolved against the
// active registry; a blank price takes the product's current price.
func (d *desk) saleWizard() {
	customers, err := d.svc.ListCustomers(d.ctx, true)
	if err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
		return
	}
	products, err := d.svc.ListProducts(d.ctx, true)
	if err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
		return
	}

	fmt.Fprintln(d.out, "New sale. Type 'cancel' at any prompt to abort.")

	var req app.SaleRequest
	for req.CustomerID == 0 {
		code := d.readLine("Customer code: ")
		if strings.EqualFold(code, "cancel") {
			fmt.Fprintln(d.out, "Sale cancelled.")
			return
		}
		for _, c := range customers.Customers {
			if strings.EqualFold(c.Code, code) {
				req.CustomerID = c.ID
			}
		}
		if req.CustomerID == 0 {
			fmt.Fprintf(d.out, "  Unknown customer %q.\n", code)
		}
	}
	for req.ProductID == 0 {
		code := d.readLine("Product code: ")
		if strings.EqualFold(code, "cancel") {
			fmt.Fprintln(d.out, "Sale cancelled.")
			return
		}
		for _, p := range products.Products {
			if strings.EqualFold(p.Code, code) {
				req.ProductID = p.ID
			}
		}
		if req.ProductID == 0 {
			fmt.Fprintf(d.out, "  Unknown product %q.\n", code)
		}
	}

	qty, ok := d.readDecimal("Quantity: ", false)
	if !ok {
		return
	}
	req.Quantity = *qty

	if req.UnitPrice, ok = d.readDecimal("Unit price (blank for list price): ", true); !ok {
		return
	}
	if req.PaymentAmount, ok = d.readDecimal("Paid now (blank for none): ", true); !ok {
		return
	}

	req.SaleDate = d.readLine("Sale date (YYYY-MM-DD, blank for today): ")
	if req.SaleDate == "" {
		req.SaleDate = time.Now().Format("2006-01-02")
	}
	req.Notes = d.readLine("Notes (optional): ")

	d.record(req)
}

// readDecimal prompts until it gets a non-negative decimal. A blank answer
// yields nil when optional. ok is false when the user cancels.
func (d *desk) readDecimal(prompt string, optional bool) (*decimal.Decimal, bool) {
	for {
		raw := d.readLine(prompt)
		switch {
		case strings.EqualFold(raw, "cancel"):
			fmt.Fprintln(d.out, "Sale cancelled.")
			return nil, false
		case raw == "" && optional:
			return nil, true
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			fmt.Fprintln(d.out, "  Enter a non-negative number.")
			continue
		}
		return &v, true
	}
}
