package core_test

import (
	"context"
	"testing"
	"time"

	"trade-ledger/internal/core"

	"github.com/shopspring/decimal"
)

func seedProjectionData(t *testing.T, ctx context.Context, sales core.SaleService) (budiSale, sariSale *core.Sale) {
	t.Helper()
	var err error
	budiSale, err = sales.CreateSale(ctx, core.SaleInput{
		InvoiceNumber: "INV-BUDI", CustomerID: 1, ProductID: 1, SaleDate: "2026-06-03",
		Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(1000), AutoDebt: true,
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	sariSale, err = sales.CreateSale(ctx, core.SaleInput{
		InvoiceNumber: "INV-SARI", CustomerID: 2, ProductID: 2, SaleDate: "2026-06-03",
		Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(5000), AutoDebt: true,
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	return budiSale, sariSale
}

func customerIdentity(userID int, customerID *int) core.Identity {
	return core.Identity{UserID: userID, Role: core.CustomerRole{LinkedCustomerID: customerID}}
}

func TestProjection_CustomerIsolation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	sales, _ := newSaleServices(pool)
	proj := core.NewProjectionService(pool)
	ctx := context.Background()
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	budiSale, sariSale := seedProjectionData(t, ctx, sales)
	budiID := 1
	budi := customerIdentity(2, &budiID)

	dash, err := proj.Dashboard(ctx, budi, now)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if dash.Customer == nil || dash.Operator != nil || dash.Staff != nil {
		t.Fatalf("customer dashboard must carry only the customer section: %+v", dash)
	}
	c := dash.Customer
	if c.Purchases.Count != 1 || !c.Purchases.Sum.Equal(budiSale.Total) {
		t.Errorf("purchases: %+v", c.Purchases)
	}
	for _, s := range c.RecentPurchases {
		if s.CustomerID != budiID {
			t.Errorf("leaked sale %s of customer %d", s.InvoiceNumber, s.CustomerID)
		}
	}
	for _, d := range c.UnpaidDebts {
		if d.CustomerID == nil || *d.CustomerID != budiID {
			t.Errorf("leaked debt %s", d.InvoiceNumber)
		}
	}

	listed, err := proj.CustomerDebts(ctx, budi, core.DebtFilter{CustomerID: &sariSale.CustomerID})
	if err != nil {
		t.Fatalf("CustomerDebts failed: %v", err)
	}
	if len(listed.Debts) != 1 || *listed.Debts[0].SaleID != budiSale.ID {
		t.Errorf("filter override must not widen scope: %+v", listed.Debts)
	}

	if _, err := proj.CustomerDebt(ctx, budi, *budiSale.DebtID); err != nil {
		t.Errorf("own debt: unexpected error %v", err)
	}
	if _, err := proj.CustomerDebt(ctx, budi, *sariSale.DebtID); !core.IsForbidden(err) {
		t.Errorf("other customer's debt: want ForbiddenError, got %v", err)
	}
	if _, err := proj.CustomerDebt(ctx, budi, 9999); !core.IsNotFound(err) {
		t.Errorf("missing debt: want NotFoundError, got %v", err)
	}

	purchases, err := proj.CustomerSales(ctx, budi, core.SaleFilter{})
	if err != nil {
		t.Fatalf("CustomerSales failed: %v", err)
	}
	if len(purchases.Sales) != 1 || purchases.Sales[0].ID != budiSale.ID {
		t.Errorf("purchases: %+v", purchases.Sales)
	}
}

func TestProjection_UnlinkedAndNonCustomer(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	proj := core.NewProjectionService(pool)
	ctx := context.Background()
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	unlinked := customerIdentity(4, nil)
	dash, err := proj.Dashboard(ctx, unlinked, now)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if dash.Customer == nil || !dash.Customer.NotLinked {
		t.Errorf("want NotLinked dashboard, got %+v", dash.Customer)
	}
	debts, err := proj.CustomerDebts(ctx, unlinked, core.DebtFilter{})
	if err != nil || !debts.NotLinked {
		t.Errorf("want NotLinked debts, got %+v, %v", debts, err)
	}

	operator := core.Identity{UserID: 1, Role: core.OperatorRole{}}
	if _, err := proj.CustomerDebt(ctx, operator, 1); !core.IsForbidden(err) {
		t.Errorf("operator on customer route: want ForbiddenError, got %v", err)
	}
}

func TestProjection_OperatorAndStaff(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	sales, _ := newSaleServices(pool)
	proj := core.NewProjectionService(pool)
	ctx := context.Background()
	now := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)

	budiSale, sariSale := seedProjectionData(t, ctx, sales)
	monthTotal := budiSale.Total.Add(sariSale.Total)

	dash, err := proj.Dashboard(ctx, core.Identity{UserID: 1, Role: core.OperatorRole{}}, now)
	if err != nil {
		t.Fatalf("operator Dashboard failed: %v", err)
	}
	op := dash.Operator
	if op == nil {
		t.Fatalf("missing operator section")
	}
	if op.ActiveProducts != 2 || op.ActiveCustomers != 2 {
		t.Errorf("counts: products=%d customers=%d", op.ActiveProducts, op.ActiveCustomers)
	}
	if op.MonthSales.Count != 2 || !op.MonthSales.Sum.Equal(monthTotal) {
		t.Errorf("month sales: %+v", op.MonthSales)
	}
	if op.UnpaidDebts.Count != 2 {
		t.Errorf("unpaid debts: %+v", op.UnpaidDebts)
	}
	if len(op.TopDebtors) != 2 || op.TopDebtors[0].CustomerID != 2 {
		t.Errorf("top debtors should rank Sari first: %+v", op.TopDebtors)
	}
	if len(op.SalesSeries) != 6 || op.SalesSeries[5].Month != "2026-06" || op.SalesSeries[5].Count != 2 {
		t.Errorf("sales series: %+v", op.SalesSeries)
	}

	dash, err = proj.Dashboard(ctx, core.Identity{UserID: 1, Role: core.StaffRole{}}, now)
	if err != nil {
		t.Fatalf("staff Dashboard failed: %v", err)
	}
	if dash.Staff == nil || dash.Staff.TodaySales.Count != 2 || !dash.Staff.TodaySales.Sum.Equal(monthTotal) {
		t.Errorf("staff today sales: %+v", dash.Staff)
	}
}
