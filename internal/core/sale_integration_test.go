package core_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"trade-ledger/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed test DB. RESTART IDENTITY keeps seeded ids at 1, 2, ...
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE reconciliation_reports, invoice_sequences, distributions, debts, sales,
		               stock_entries, employees, customers, users, products RESTART IDENTITY CASCADE;

		INSERT INTO products (code, name, unit_price, unit) VALUES
		('BRS', 'Beras Premium', 12000.00, 'kg'),
		('GLA', 'Gula Pasir', 15000.00, 'kg');

		INSERT INTO users (username, email, password_hash, role) VALUES
		('owner', 'owner@example.com', 'x', 'operator'),
		('budi', 'budi@example.com', 'x', 'customer'),
		('sari', 'sari@example.com', 'x', 'customer'),
		('nolink', 'nolink@example.com', 'x', 'customer');

		INSERT INTO customers (code, name, distance_km, user_id) VALUES
		('C001', 'Toko Budi', 12, 2),
		('C002', 'Warung Sari', 30, 3);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func newSaleServices(pool *pgxpool.Pool) (core.SaleService, core.DebtService) {
	seq := core.NewInvoiceSequencer(pool)
	return core.NewSaleService(pool, seq), core.NewDebtService(pool, seq)
}

func TestSale_CreateWithAutoDebt(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	sales, debts := newSaleServices(pool)
	ctx := context.Background()

	sale, err := sales.CreateSale(ctx, core.SaleInput{
		CustomerID: 1, ProductID: 1, SaleDate: "2026-03-05",
		Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(1000),
		AutoDebt: true,
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	// Scenario A
	if !sale.Total.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("total: want 10000, got %s", sale.Total)
	}
	if !sale.Remaining.Equal(decimal.NewFromInt(10000)) || sale.Status != core.StatusUnpaid {
		t.Errorf("want remaining 10000 unpaid, got %s %s", sale.Remaining, sale.Status)
	}
	if sale.InvoiceNumber != "PJ-20260305-0001" {
		t.Errorf("generated sale invoice: got %q", sale.InvoiceNumber)
	}
	if sale.DebtID == nil {
		t.Fatalf("expected auto-created debt to be linked")
	}

	debt, err := debts.GetDebt(ctx, *sale.DebtID)
	if err != nil {
		t.Fatalf("GetDebt failed: %v", err)
	}
	if debt.InvoiceNumber != "HTG-20260305-0001" {
		t.Errorf("debt invoice: got %q", debt.InvoiceNumber)
	}
	if debt.SaleInvoice != sale.InvoiceNumber {
		t.Errorf("debt sale_invoice: want %q, got %q", sale.InvoiceNumber, debt.SaleInvoice)
	}
	if !debt.FaceValue.Equal(sale.Total) || !debt.AmountPaid.IsZero() || !debt.Remaining.Equal(sale.Remaining) {
		t.Errorf("debt snapshot mismatch: face=%s paid=%s remaining=%s", debt.FaceValue, debt.AmountPaid, debt.Remaining)
	}
}

func TestSale_FullyPaidSkipsAutoDebt(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	sales, _ := newSaleServices(pool)
	ctx := context.Background()

	paid := decimal.NewFromInt(5000)
	sale, err := sales.CreateSale(ctx, core.SaleInput{
		InvoiceNumber: "INV-1", CustomerID: 1, ProductID: 1, SaleDate: "2026-03-05",
		Quantity: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(1000),
		PaymentAmount: &paid, AutoDebt: true,
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	if sale.Status != core.StatusPaid || sale.DebtID != nil {
		t.Errorf("want paid sale with no debt, got status=%s debt=%v", sale.Status, sale.DebtID)
	}
}

func TestSale_Validation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	sales, _ := newSaleServices(pool)
	ctx := context.Background()

	base := core.SaleInput{
		InvoiceNumber: "INV-DUP", CustomerID: 1, ProductID: 1, SaleDate: "2026-03-05",
		Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1),
	}
	if _, err := sales.CreateSale(ctx, base); err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	tests := []struct {
		name  string
		mod   func(in *core.SaleInput)
		field string
	}{
		{"duplicate invoice", func(in *core.SaleInput) {}, "invoice_number"},
		{"missing customer", func(in *core.SaleInput) { in.InvoiceNumber = "A"; in.CustomerID = 999 }, "customer_id"},
		{"missing product", func(in *core.SaleInput) { in.InvoiceNumber = "B"; in.ProductID = 999 }, "product_id"},
		{"bad date", func(in *core.SaleInput) { in.InvoiceNumber = "C"; in.SaleDate = "05/03/2026" }, "sale_date"},
		{"negative qty", func(in *core.SaleInput) { in.InvoiceNumber = "D"; in.Quantity = decimal.NewFromInt(-1) }, "quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mod(&in)
			_, err := sales.CreateSale(ctx, in)
			var ve *core.ValidationError
			if !asValidation(err, &ve) {
				t.Fatalf("want ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field: want %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestDebt_ApplyPayment_MirrorsSale(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	sales, debts := newSaleServices(pool)
	ctx := context.Background()

	sale, err := sales.CreateSale(ctx, core.SaleInput{
		InvoiceNumber: "INV-B", CustomerID: 1, ProductID: 1, SaleDate: "2026-03-05",
		Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(1000), AutoDebt: true,
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	debtID := *sale.DebtID

	t.Run("overpayment leaves both records unchanged", func(t *testing.T) {
		_, err := debts.ApplyPayment(ctx, debtID, decimal.NewFromInt(10001))
		if !core.IsValidation(err) {
			t.Fatalf("want ValidationError, got %v", err)
		}
		d, _ := debts.GetDebt(ctx, debtID)
		s, _ := sales.GetSale(ctx, sale.ID)
		if !d.Remaining.Equal(decimal.NewFromInt(10000)) || !s.Remaining.Equal(decimal.NewFromInt(10000)) {
			t.Errorf("state changed: debt remaining=%s sale remaining=%s", d.Remaining, s.Remaining)
		}
	})

	t.Run("zero payment rejected", func(t *testing.T) {
		if _, err := debts.ApplyPayment(ctx, debtID, decimal.Zero); !core.IsValidation(err) {
			t.Fatalf("want ValidationError, got %v", err)
		}
	})

	t.Run("partial then full payment", func(t *testing.T) {
		d, err := debts.ApplyPayment(ctx, debtID, decimal.NewFromInt(4000))
		if err != nil {
			t.Fatalf("ApplyPayment failed: %v", err)
		}
		if !d.Remaining.Equal(decimal.NewFromInt(6000)) || d.Status != core.StatusUnpaid {
			t.Errorf("after partial: remaining=%s status=%s", d.Remaining, d.Status)
		}

		d, err = debts.ApplyPayment(ctx, debtID, decimal.NewFromInt(6000))
		if err != nil {
			t.Fatalf("ApplyPayment failed: %v", err)
		}
		if !d.AmountPaid.Equal(decimal.NewFromInt(10000)) || !d.Remaining.IsZero() || d.Status != core.StatusPaid {
			t.Errorf("after full: paid=%s remaining=%s status=%s", d.AmountPaid, d.Remaining, d.Status)
		}

		s, err := sales.GetSale(ctx, sale.ID)
		if err != nil {
			t.Fatalf("GetSale failed: %v", err)
		}
		if !s.PaymentAmount.Equal(d.AmountPaid) || !s.Remaining.Equal(d.Remaining) || s.Status != d.Status {
			t.Errorf("sale does not mirror debt: payment=%s remaining=%s status=%s", s.PaymentAmount, s.Remaining, s.Status)
		}
	})

	t.Run("missing debt", func(t *testing.T) {
		if _, err := debts.ApplyPayment(ctx, 9999, decimal.NewFromInt(1)); !core.IsNotFound(err) {
			t.Fatalf("want NotFoundError, got %v", err)
		}
	})
}

func TestDebt_ApplyPayment_PartlyFinancedSale(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	sales, debts := newSaleServices(pool)
	ctx := context.Background()

	financed := decimal.NewFromInt(5000)
	sale, err := sales.CreateSale(ctx, core.SaleInput{
		InvoiceNumber: "INV-P", CustomerID: 1, ProductID: 1, SaleDate: "2026-03-05",
		Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(1000),
		DebtAmount: &financed, AutoDebt: true,
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	if !sale.Remaining.Equal(financed) || sale.DebtID == nil {
		t.Fatalf("want remaining 5000 with a debt, got %s debt=%v", sale.Remaining, sale.DebtID)
	}

	d, err := debts.ApplyPayment(ctx, *sale.DebtID, decimal.NewFromInt(5000))
	if err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}
	if !d.Remaining.IsZero() || d.Status != core.StatusPaid || !d.AmountPaid.Equal(financed) {
		t.Errorf("after full payment: paid=%s remaining=%s status=%s", d.AmountPaid, d.Remaining, d.Status)
	}

	s, err := sales.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if !s.Remaining.IsZero() || s.Status != core.StatusPaid {
		t.Errorf("sale not settled: remaining=%s status=%s", s.Remaining, s.Status)
	}

	if _, err := debts.ApplyPayment(ctx, *sale.DebtID, decimal.NewFromInt(5000)); !core.IsValidation(err) {
		t.Errorf("second payment on a settled debt: want ValidationError, got %v", err)
	}
}

func TestDebt_ConcurrentPaymentsNeverOverpay(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	sales, debts := newSaleServices(pool)
	ctx := context.Background()

	sale, err := sales.CreateSale(ctx, core.SaleInput{
		InvoiceNumber: "INV-RACE", CustomerID: 1, ProductID: 1, SaleDate: "2026-03-05",
		Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1000), AutoDebt: true,
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	// Two payments of 600 against 1000 remaining: exactly one may succeed.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = debts.ApplyPayment(ctx, *sale.DebtID, decimal.NewFromInt(600))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !core.IsValidation(err) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("want exactly one successful payment, got %d", succeeded)
	}

	d, _ := debts.GetDebt(ctx, *sale.DebtID)
	if !d.Remaining.Equal(decimal.NewFromInt(400)) {
		t.Errorf("remaining: want 400, got %s", d.Remaining)
	}
}

func TestDebt_CreateFromSale(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	sales, debts := newSaleServices(pool)
	ctx := context.Background()

	payment := decimal.NewFromInt(300)
	sale, err := sales.CreateSale(ctx, core.SaleInput{
		InvoiceNumber: "INV-M", CustomerID: 2, ProductID: 2, SaleDate: "2026-04-01",
		Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(500), PaymentAmount: &payment,
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	candidates, err := sales.DebtCandidates(ctx, nil)
	if err != nil {
		t.Fatalf("DebtCandidates failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != sale.ID {
		t.Fatalf("want sale %d as only candidate, got %+v", sale.ID, candidates)
	}

	debt, err := debts.CreateDebtFromSale(ctx, core.DebtInput{SaleID: sale.ID})
	if err != nil {
		t.Fatalf("CreateDebtFromSale failed: %v", err)
	}
	if !strings.HasPrefix(debt.InvoiceNumber, "HTG-20260401-") {
		t.Errorf("debt invoice: got %q", debt.InvoiceNumber)
	}
	if !debt.AmountPaid.Equal(payment) || !debt.Remaining.Equal(decimal.NewFromInt(700)) {
		t.Errorf("snapshot: paid=%s remaining=%s", debt.AmountPaid, debt.Remaining)
	}

	if _, err := debts.CreateDebtFromSale(ctx, core.DebtInput{SaleID: sale.ID}); !core.IsValidation(err) {
		t.Errorf("second debt for same sale: want ValidationError, got %v", err)
	}
	if _, err := debts.CreateDebtFromSale(ctx, core.DebtInput{SaleID: 9999}); !core.IsNotFound(err) {
		t.Errorf("missing sale: want NotFoundError, got %v", err)
	}

	candidates, _ = sales.DebtCandidates(ctx, nil)
	if len(candidates) != 0 {
		t.Errorf("sale with debt should no longer be a candidate, got %d", len(candidates))
	}
	candidates, _ = sales.DebtCandidates(ctx, &sale.ID)
	if len(candidates) != 1 {
		t.Errorf("included sale should be listed when editing, got %d", len(candidates))
	}

	sum, err := debts.Summary(ctx, core.DebtFilter{})
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if sum.UnpaidCount != 1 || !sum.TotalRemaining.Equal(decimal.NewFromInt(700)) {
		t.Errorf("summary: %+v", sum)
	}
}

func TestReconciler_FlagsSaleEditAndOrphan(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	sales, _ := newSaleServices(pool)
	rec := core.NewReconciler(pool, quietLogger())
	ctx := context.Background()

	in := core.SaleInput{
		InvoiceNumber: "INV-R", CustomerID: 1, ProductID: 1, SaleDate: "2026-03-05",
		Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(100), AutoDebt: true,
	}
	sale, err := sales.CreateSale(ctx, in)
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	reports, err := rec.CheckSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("CheckSale failed: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("fresh sale should reconcile, got %+v", reports)
	}

	// Editing the sale does not touch the debt.
	in.Quantity = decimal.NewFromInt(12)
	if _, err := sales.UpdateSale(ctx, sale.ID, in); err != nil {
		t.Fatalf("UpdateSale failed: %v", err)
	}
	reports, err = rec.CheckSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("CheckSale failed: %v", err)
	}
	if len(reports) != 1 || reports[0].CheckType != core.CheckDebtDivergence {
		t.Fatalf("want one divergence, got %+v", reports)
	}

	// Repeated checks of an unchanged divergence return the recorded row.
	again, err := rec.CheckSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("CheckSale failed: %v", err)
	}
	if len(again) != 1 || again[0].ID != reports[0].ID {
		t.Errorf("unchanged divergence was recorded again: %+v", again)
	}
	var rows int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM reconciliation_reports WHERE entity_id = $1`, *sale.DebtID).Scan(&rows); err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if rows != 1 {
		t.Errorf("want 1 stored finding, got %d", rows)
	}

	// A different divergence is a new finding.
	in.Quantity = decimal.NewFromInt(15)
	if _, err := sales.UpdateSale(ctx, sale.ID, in); err != nil {
		t.Fatalf("UpdateSale failed: %v", err)
	}
	changed, err := rec.CheckSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("CheckSale failed: %v", err)
	}
	if len(changed) != 1 || changed[0].ID == reports[0].ID {
		t.Errorf("changed divergence should be recorded: %+v", changed)
	}

	if err := sales.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("DeleteSale failed: %v", err)
	}
	correlationID, reports, err := rec.RunChecks(ctx)
	if err != nil {
		t.Fatalf("RunChecks failed: %v", err)
	}
	if len(reports) != 1 || reports[0].CheckType != core.CheckOrphanDebt {
		t.Fatalf("want one orphan finding, got %+v", reports)
	}

	stored, err := rec.Reports(ctx, correlationID)
	if err != nil {
		t.Fatalf("Reports failed: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != reports[0].ID {
		t.Errorf("stored reports mismatch: %+v", stored)
	}
}
