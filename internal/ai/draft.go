package ai

import (
	"fmt"
	"strings"

	"trade-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// SaleDraft is the model's proposal for one sale. It is never written on its
// own: the caller shows it and submits it through CreateSale once confirmed.
type SaleDraft struct {
	CustomerCode  string  `json:"customer_code" jsonschema_description:"Code of the buying customer, from the customer list"`
	ProductCode   string  `json:"product_code" jsonschema_description:"Code of the product sold, from the product list"`
	Quantity      string  `json:"quantity" jsonschema_description:"Quantity sold as a decimal string"`
	PaymentAmount string  `json:"payment_amount" jsonschema_description:"Amount paid up front as a decimal string"`
	SaleDate      string  `json:"sale_date" jsonschema_description:"YYYY-MM-DD or empty"`
	Notes         string  `json:"notes"`
	Confidence    float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	Reasoning     string  `json:"reasoning"`

	// Resolved against the catalog; not part of the model output.
	CustomerID int             `json:"-"`
	ProductID  int             `json:"-"`
	UnitPrice  decimal.Decimal `json:"-"`
}

// Catalog is the registry snapshot the model may choose from.
type Catalog struct {
	Customers []core.Customer
	Products  []core.Product
}

func (c Catalog) String() string {
	var b strings.Builder
	b.WriteString("Customers (code | name | location):\n")
	for _, cu := range c.Customers {
		fmt.Fprintf(&b, "%s | %s | %s\n", cu.Code, cu.Name, cu.Location)
	}
	b.WriteString("\nProducts (code | name | unit price | unit):\n")
	for _, p := range c.Products {
		fmt.Fprintf(&b, "%s | %s | %s | %s\n", p.Code, p.Name, p.UnitPrice.String(), p.Unit)
	}
	return b.String()
}

func (d *SaleDraft) Normalize() {
	d.CustomerCode = strings.ToUpper(strings.TrimSpace(d.CustomerCode))
	d.ProductCode = strings.ToUpper(strings.TrimSpace(d.ProductCode))
	d.Quantity = strings.TrimSpace(d.Quantity)
	d.PaymentAmount = strings.TrimSpace(d.PaymentAmount)
	if d.PaymentAmount == "" {
		d.PaymentAmount = "0"
	}
	d.SaleDate = strings.TrimSpace(d.SaleDate)
	d.Notes = strings.TrimSpace(d.Notes)
}

// Resolve maps codes to catalog IDs and checks the amounts.
func (d *SaleDraft) Resolve(c Catalog) error {
	found := false
	for _, cu := range c.Customers {
		if strings.EqualFold(cu.Code, d.CustomerCode) {
			d.CustomerID, found = cu.ID, true
			break
		}
	}
	if !found {
		return &core.ValidationError{Field: "customer_code", Message: fmt.Sprintf("unknown customer %q", d.CustomerCode)}
	}

	found = false
	for _, p := range c.Products {
		if strings.EqualFold(p.Code, d.ProductCode) {
			d.ProductID, d.UnitPrice, found = p.ID, p.UnitPrice, true
			break
		}
	}
	if !found {
		return &core.ValidationError{Field: "product_code", Message: fmt.Sprintf("unknown product %q", d.ProductCode)}
	}

	qty, err := decimal.NewFromString(d.Quantity)
	if err != nil || !qty.IsPositive() {
		return &core.ValidationError{Field: "quantity", Message: fmt.Sprintf("must be a positive number, got %q", d.Quantity)}
	}
	paid, err := decimal.NewFromString(d.PaymentAmount)
	if err != nil || paid.IsNegative() {
		return &core.ValidationError{Field: "payment_amount", Message: fmt.Sprintf("must be a non-negative number, got %q", d.PaymentAmount)}
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return &core.ValidationError{Field: "confidence", Message: "must be between 0 and 1"}
	}
	return nil
}

// SaleInput converts a resolved draft into the input CreateSale expects.
// An unpaid balance opens a debt. today fills a missing sale date.
func (d *SaleDraft) SaleInput(today string) core.SaleInput {
	qty, _ := decimal.NewFromString(d.Quantity)
	paid, _ := decimal.NewFromString(d.PaymentAmount)
	date := d.SaleDate
	if date == "" {
		date = today
	}
	return core.SaleInput{
		CustomerID:    d.CustomerID,
		ProductID:     d.ProductID,
		SaleDate:      date,
		Quantity:      qty,
		UnitPrice:     d.UnitPrice,
		PaymentAmount: &paid,
		Notes:         d.Notes,
		AutoDebt:      true,
	}
}
