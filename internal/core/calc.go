package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Prefixes for generated invoice numbers.
const (
	DebtInvoicePrefix         = "HTG"
	SaleInvoicePrefix         = "PJ"
	DistributionInvoicePrefix = "DST"
)

// SaleAmounts is the financial snapshot stored on a sale.
type SaleAmounts struct {
	Total     decimal.Decimal
	Debt      decimal.Decimal
	Payment   decimal.Decimal
	Remaining decimal.Decimal
	Status    Status
}

// PaymentAmounts is the result of applying one payment to a debt.
type PaymentAmounts struct {
	Paid      decimal.Decimal
	Remaining decimal.Decimal
	Status    Status
}

// DistributionCosts is the itemized cost of a delivery.
type DistributionCosts struct {
	Fuel  decimal.Decimal
	Labor decimal.Decimal
	Extra decimal.Decimal
	Total decimal.Decimal
}

// DeriveStatus returns paid iff remaining <= 0.
func DeriveStatus(remaining decimal.Decimal) Status {
	if remaining.LessThanOrEqual(decimal.Zero) {
		return StatusPaid
	}
	return StatusUnpaid
}

// ComputeSale derives a sale's snapshot. A nil debt defaults to the total
// (fully financed), a nil payment to zero. Remaining is floored at zero.
func ComputeSale(qty, unitPrice decimal.Decimal, debt, payment *decimal.Decimal) (SaleAmounts, error) {
	if qty.IsNegative() {
		return SaleAmounts{}, validationErr("quantity", "cannot be negative, got %s", qty)
	}
	if unitPrice.IsNegative() {
		return SaleAmounts{}, validationErr("unit_price", "cannot be negative, got %s", unitPrice)
	}

	total := qty.Mul(unitPrice).Round(2)

	d := total
	if debt != nil {
		if debt.IsNegative() {
			return SaleAmounts{}, validationErr("debt_amount", "cannot be negative, got %s", *debt)
		}
		d = debt.Round(2)
	}
	p := decimal.Zero
	if payment != nil {
		if payment.IsNegative() {
			return SaleAmounts{}, validationErr("payment_amount", "cannot be negative, got %s", *payment)
		}
		p = payment.Round(2)
	}

	remaining := decimal.Max(decimal.Zero, d.Sub(p))
	return SaleAmounts{
		Total:     total,
		Debt:      d,
		Payment:   p,
		Remaining: remaining,
		Status:    DeriveStatus(remaining),
	}, nil
}

// ApplyPaymentAmounts validates 0 < amount <= remaining and returns the new
// paid, remaining and status. remaining must be the value read under lock.
// The balance is reduced from remaining, not recomputed from the face value:
// a partly financed sale carries remaining < face - paid.
func ApplyPaymentAmounts(paid, remaining, amount decimal.Decimal) (PaymentAmounts, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return PaymentAmounts{}, validationErr("amount", "must be greater than zero")
	}
	if amount.GreaterThan(remaining) {
		return PaymentAmounts{}, validationErr("amount", "exceeds remaining balance %s", remaining.StringFixed(2))
	}

	newPaid := paid.Add(amount)
	newRemaining := decimal.Max(decimal.Zero, remaining.Sub(amount))
	return PaymentAmounts{
		Paid:      newPaid,
		Remaining: newRemaining,
		Status:    DeriveStatus(newRemaining),
	}, nil
}

// StockClosing returns opening + inbound - outbound. Inputs must be
// non-negative; the result is not clamped and may be negative.
func StockClosing(opening, inbound, outbound decimal.Decimal) (decimal.Decimal, error) {
	if opening.IsNegative() {
		return decimal.Zero, validationErr("opening", "cannot be negative, got %s", opening)
	}
	if inbound.IsNegative() {
		return decimal.Zero, validationErr("inbound", "cannot be negative, got %s", inbound)
	}
	if outbound.IsNegative() {
		return decimal.Zero, validationErr("outbound", "cannot be negative, got %s", outbound)
	}
	return opening.Add(inbound).Sub(outbound).Round(2), nil
}

// DistributionTotal sums the cost components; nil components count as zero.
func DistributionTotal(fuel, labor, extra *decimal.Decimal) (DistributionCosts, error) {
	var c DistributionCosts
	parts := []struct {
		field string
		in    *decimal.Decimal
		out   *decimal.Decimal
	}{
		{"fuel_cost", fuel, &c.Fuel},
		{"labor_cost", labor, &c.Labor},
		{"extra_cost", extra, &c.Extra},
	}
	for _, p := range parts {
		if p.in == nil {
			*p.out = decimal.Zero
			continue
		}
		if p.in.IsNegative() {
			return DistributionCosts{}, validationErr(p.field, "cannot be negative, got %s", *p.in)
		}
		*p.out = p.in.Round(2)
	}
	c.Total = c.Fuel.Add(c.Labor).Add(c.Extra)
	return c, nil
}

// FormatInvoiceNumber renders PREFIX-YYYYMMDD-NNNN.
func FormatInvoiceNumber(prefix string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, date.Format("20060102"), seq)
}

// FormatDebtInvoice renders HTG-YYYYMMDD-NNNN.
func FormatDebtInvoice(date time.Time, seq int64) string {
	return FormatInvoiceNumber(DebtInvoicePrefix, date, seq)
}

// parseDate parses YYYY-MM-DD, reporting failures against field.
func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, validationErr(field, "invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}
