package core_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"trade-ledger/internal/core"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestComputeSale_ScenarioA(t *testing.T) {
	got, err := core.ComputeSale(dec("10"), dec("1000"), nil, nil)
	if err != nil {
		t.Fatalf("ComputeSale failed: %v", err)
	}
	if !got.Total.Equal(dec("10000")) {
		t.Errorf("total: want 10000, got %s", got.Total)
	}
	if !got.Debt.Equal(dec("10000")) {
		t.Errorf("debt should default to total, got %s", got.Debt)
	}
	if !got.Payment.IsZero() {
		t.Errorf("payment should default to 0, got %s", got.Payment)
	}
	if !got.Remaining.Equal(dec("10000")) {
		t.Errorf("remaining: want 10000, got %s", got.Remaining)
	}
	if got.Status != core.StatusUnpaid {
		t.Errorf("status: want unpaid, got %s", got.Status)
	}
}

func TestComputeSale(t *testing.T) {
	tests := []struct {
		name          string
		qty, price    string
		debt, payment *decimal.Decimal
		wantTotal     string
		wantRemaining string
		wantStatus    core.Status
		wantField     string // non-empty means a ValidationError on that field
	}{
		{name: "fractional kg rounds to cents", qty: "2.5", price: "1333.33", wantTotal: "3333.33", wantRemaining: "3333.33", wantStatus: core.StatusUnpaid},
		{name: "cash sale", qty: "4", price: "250", debt: decPtr("1000"), payment: decPtr("1000"), wantTotal: "1000", wantRemaining: "0", wantStatus: core.StatusPaid},
		{name: "partial down payment", qty: "4", price: "250", payment: decPtr("400"), wantTotal: "1000", wantRemaining: "600", wantStatus: core.StatusUnpaid},
		{name: "zero debt is paid", qty: "4", price: "250", debt: decPtr("0"), wantTotal: "1000", wantRemaining: "0", wantStatus: core.StatusPaid},
		{name: "overpayment floors remaining", qty: "1", price: "100", payment: decPtr("150"), wantTotal: "100", wantRemaining: "0", wantStatus: core.StatusPaid},
		{name: "zero quantity", qty: "0", price: "100", wantTotal: "0", wantRemaining: "0", wantStatus: core.StatusPaid},
		{name: "negative quantity", qty: "-1", price: "100", wantField: "quantity"},
		{name: "negative price", qty: "1", price: "-100", wantField: "unit_price"},
		{name: "negative debt", qty: "1", price: "100", debt: decPtr("-1"), wantField: "debt_amount"},
		{name: "negative payment", qty: "1", price: "100", payment: decPtr("-1"), wantField: "payment_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := core.ComputeSale(dec(tt.qty), dec(tt.price), tt.debt, tt.payment)
			if tt.wantField != "" {
				var ve *core.ValidationError
				if !errors.As(err, &ve) || ve.Field != tt.wantField {
					t.Fatalf("want ValidationError on %s, got %v", tt.wantField, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Total.Equal(dec(tt.wantTotal)) {
				t.Errorf("total: want %s, got %s", tt.wantTotal, got.Total)
			}
			if !got.Remaining.Equal(dec(tt.wantRemaining)) {
				t.Errorf("remaining: want %s, got %s", tt.wantRemaining, got.Remaining)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status: want %s, got %s", tt.wantStatus, got.Status)
			}
		})
	}
}

// Sale total is exactly qty × price at two places for arbitrary non-negative inputs.
func TestComputeSale_TotalProperty(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		qty := decimal.New(r.Int63n(1_000_000), -2)
		price := decimal.New(r.Int63n(10_000_000), -2)
		got, err := core.ComputeSale(qty, price, nil, nil)
		if err != nil {
			t.Fatalf("ComputeSale(%s, %s) failed: %v", qty, price, err)
		}
		want := qty.Mul(price).Round(2)
		if !got.Total.Equal(want) {
			t.Fatalf("ComputeSale(%s, %s): want total %s, got %s", qty, price, want, got.Total)
		}
		if got.Status != core.DeriveStatus(got.Remaining) {
			t.Fatalf("status %s inconsistent with remaining %s", got.Status, got.Remaining)
		}
	}
}

func TestApplyPaymentAmounts_ScenarioBC(t *testing.T) {
	paid, remaining := dec("0"), dec("10000")

	got, err := core.ApplyPaymentAmounts(paid, remaining, dec("10000"))
	if err != nil {
		t.Fatalf("full payment failed: %v", err)
	}
	if !got.Paid.Equal(dec("10000")) || !got.Remaining.IsZero() || got.Status != core.StatusPaid {
		t.Errorf("want paid=10000 remaining=0 status=paid, got %+v", got)
	}

	_, err = core.ApplyPaymentAmounts(paid, remaining, dec("10001"))
	if !core.IsValidation(err) {
		t.Errorf("want ValidationError for overpayment, got %v", err)
	}
}

func TestApplyPaymentAmounts_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"zero", "0", true},
		{"negative", "-5", true},
		{"rounds to zero", "0.001", true},
		{"one cent", "0.01", false},
		{"exact remaining", "600", false},
		{"one cent over", "600.01", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := core.ApplyPaymentAmounts(dec("400"), dec("600"), dec(tt.amount))
			if tt.wantErr && !core.IsValidation(err) {
				t.Errorf("want ValidationError, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// Every valid payment strictly lowers remaining to max(0, remaining - amount)
// and status tracks remaining, including partly financed debts where
// remaining is below face - paid.
func TestApplyPaymentAmounts_MonotonicProperty(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		face := decimal.New(r.Int63n(10_000_000)+1, -2)
		paid := decimal.New(r.Int63n(face.Shift(2).IntPart()), -2)
		remaining := face.Sub(paid)
		if i%2 == 1 {
			// partly financed: only part of the unpaid total became debt
			remaining = decimal.New(r.Int63n(remaining.Shift(2).IntPart())+1, -2)
		}
		amount := decimal.New(r.Int63n(remaining.Shift(2).IntPart())+1, -2)

		got, err := core.ApplyPaymentAmounts(paid, remaining, amount)
		if err != nil {
			t.Fatalf("paid=%s remaining=%s amount=%s: %v", paid, remaining, amount, err)
		}
		want := decimal.Max(decimal.Zero, remaining.Sub(amount))
		if !got.Remaining.Equal(want) {
			t.Fatalf("remaining: want %s, got %s", want, got.Remaining)
		}
		if !got.Remaining.LessThan(remaining) {
			t.Fatalf("remaining did not decrease: %s -> %s", remaining, got.Remaining)
		}
		if (got.Status == core.StatusPaid) != got.Remaining.LessThanOrEqual(decimal.Zero) {
			t.Fatalf("status %s inconsistent with remaining %s", got.Status, got.Remaining)
		}
	}
}

func TestStockClosing(t *testing.T) {
	tests := []struct {
		name                       string
		opening, inbound, outbound string
		want                       string
		wantErr                    bool
	}{
		{name: "scenario D", opening: "50", inbound: "20", outbound: "10", want: "60"},
		{name: "oversold goes negative", opening: "5", inbound: "0", outbound: "8", want: "-3"},
		{name: "all zero", opening: "0", inbound: "0", outbound: "0", want: "0"},
		{name: "negative opening", opening: "-1", inbound: "0", outbound: "0", wantErr: true},
		{name: "negative inbound", opening: "1", inbound: "-1", outbound: "0", wantErr: true},
		{name: "negative outbound", opening: "1", inbound: "0", outbound: "-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := core.StockClosing(dec(tt.opening), dec(tt.inbound), dec(tt.outbound))
			if tt.wantErr {
				if !core.IsValidation(err) {
					t.Fatalf("want ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(dec(tt.want)) {
				t.Errorf("closing: want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDistributionTotal(t *testing.T) {
	got, err := core.DistributionTotal(decPtr("5000"), decPtr("3000"), decPtr("0"))
	if err != nil {
		t.Fatalf("DistributionTotal failed: %v", err)
	}
	if !got.Total.Equal(dec("8000")) {
		t.Errorf("scenario E total: want 8000, got %s", got.Total)
	}

	got, err = core.DistributionTotal(nil, decPtr("1250.50"), nil)
	if err != nil {
		t.Fatalf("DistributionTotal with nil components failed: %v", err)
	}
	if !got.Fuel.IsZero() || !got.Extra.IsZero() || !got.Total.Equal(dec("1250.50")) {
		t.Errorf("nil components should default to zero, got %+v", got)
	}

	if _, err := core.DistributionTotal(decPtr("-1"), nil, nil); !core.IsValidation(err) {
		t.Errorf("want ValidationError for negative fuel, got %v", err)
	}
}

func TestFormatDebtInvoice(t *testing.T) {
	d := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	if got := core.FormatDebtInvoice(d, 7); got != "HTG-20251201-0007" {
		t.Errorf("want HTG-20251201-0007, got %s", got)
	}
	if got := core.FormatDebtInvoice(d, 12345); got != "HTG-20251201-12345" {
		t.Errorf("want HTG-20251201-12345, got %s", got)
	}
}

func TestVehicleClass_Valid(t *testing.T) {
	for _, v := range core.VehicleClasses {
		if !v.Valid() {
			t.Errorf("%s should be valid", v)
		}
	}
	if core.VehicleClass("truck").Valid() {
		t.Errorf("unknown class should be invalid")
	}
}
