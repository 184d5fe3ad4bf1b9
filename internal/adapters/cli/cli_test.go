package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"trade-ledger/internal/app"
	"trade-ledger/internal/core"

	"github.com/shopspring/decimal"
)

type fakeService struct {
	app.ApplicationService
	gotBy core.LatestBy
	gotID core.Identity
}

func (f *fakeService) LatestBalance(_ context.Context, productID int, by core.LatestBy) (*core.StockEntry, error) {
	f.gotBy = by
	if productID != 3 {
		return nil, &core.NotFoundError{Entity: "stock entry", Key: productID}
	}
	return &core.StockEntry{ProductCode: "RICE", ProductName: "Rice", EntryDate: "2026-03-02", Closing: decimal.NewFromInt(450)}, nil
}

func (f *fakeService) RunReconciliation(context.Context) (*app.ReconciliationResult, error) {
	return &app.ReconciliationResult{
		CorrelationID: "run-1",
		Reports:       []core.ReconciliationReport{{CheckType: "debt_remaining", EntityType: "debt", EntityID: 4, Details: "sale 300, debt 200"}},
	}, nil
}

func (f *fakeService) Dashboard(_ context.Context, id core.Identity) (*core.Dashboard, error) {
	f.gotID = id
	return &core.Dashboard{Role: id.Role.Name()}, nil
}

func TestRunStock(t *testing.T) {
	svc := &fakeService{}
	var out bytes.Buffer

	if err := run(context.Background(), svc, &out, []string{"stock", "3", "--by-date"}); err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	if svc.gotBy != core.LatestByDate {
		t.Errorf("--by-date not honoured: %v", svc.gotBy)
	}
	if !strings.Contains(out.String(), "closing 450.00 on 2026-03-02") {
		t.Errorf("unexpected output: %q", out.String())
	}

	if err := run(context.Background(), svc, &out, []string{"stock", "9"}); !core.IsNotFound(err) {
		t.Errorf("want not found, got %v", err)
	}
	if err := run(context.Background(), svc, &out, []string{"stock", "abc"}); err == nil {
		t.Error("non-numeric product id should fail")
	}
}

func TestRunReconcile(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), &fakeService{}, &out, []string{"reconcile"}); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !strings.Contains(out.String(), "run-1") || !strings.Contains(out.String(), "sale 300, debt 200") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestRunDashboard(t *testing.T) {
	svc := &fakeService{}
	var out bytes.Buffer
	if err := run(context.Background(), svc, &out, []string{"dashboard", "customer", "7"}); err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	cr, ok := svc.gotID.Role.(core.CustomerRole)
	if !ok || cr.LinkedCustomerID == nil || *cr.LinkedCustomerID != 7 {
		t.Errorf("identity not built from args: %+v", svc.gotID)
	}
	if err := run(context.Background(), svc, &out, []string{"dashboard", "admin"}); err == nil {
		t.Error("unknown role should fail")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), &fakeService{}, &out, []string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("want unknown command error, got %v", err)
	}
}

func TestSplitFlags(t *testing.T) {
	pos, flags := splitFlags([]string{"out.xlsx", "--status=unpaid", "--by-date"})
	if len(pos) != 1 || pos[0] != "out.xlsx" {
		t.Errorf("positional: %v", pos)
	}
	if flags["status"] != "unpaid" || flags["by-date"] != "true" {
		t.Errorf("flags: %v", flags)
	}
}
