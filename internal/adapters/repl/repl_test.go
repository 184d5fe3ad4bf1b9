package repl

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"trade-ledger/internal/ai"
	"trade-ledger/internal/app"
	"trade-ledger/internal/core"

	"github.com/shopspring/decimal"
)

type fakeService struct {
	app.ApplicationService
	created []app.SaleRequest
	paid    map[int]decimal.Decimal
}

func (f *fakeService) ListCustomers(context.Context, bool) (*app.CustomerListResult, error) {
	return &app.CustomerListResult{Customers: []core.Customer{{ID: 4, Code: "C001", Name: "Toko Makmur"}}}, nil
}

func (f *fakeService) ListProducts(context.Context, bool) (*app.ProductListResult, error) {
	return &app.ProductListResult{Products: []core.Product{{ID: 9, Code: "RICE", Name: "Rice", Unit: "kg", UnitPrice: decimal.NewFromInt(12000)}}}, nil
}

func (f *fakeService) InterpretSale(_ context.Context, req app.InterpretRequest) (*app.InterpretResult, error) {
	paid := decimal.NewFromInt(100000)
	auto := true
	return &app.InterpretResult{
		Draft: &ai.SaleDraft{CustomerCode: "C001", ProductCode: "RICE", Confidence: 0.4, Reasoning: req.Text, UnitPrice: decimal.NewFromInt(12000)},
		Sale:  app.SaleRequest{CustomerID: 4, ProductID: 9, SaleDate: "2026-03-05", Quantity: decimal.NewFromInt(25), PaymentAmount: &paid, AutoDebt: &auto},
	}, nil
}

func (f *fakeService) CreateSale(_ context.Context, req app.SaleRequest) (*app.SaleResult, error) {
	f.created = append(f.created, req)
	return &app.SaleResult{Sale: &core.Sale{InvoiceNumber: "INV-20260305-0001", Total: decimal.NewFromInt(300000), Remaining: decimal.NewFromInt(200000), Status: core.StatusUnpaid}}, nil
}

func (f *fakeService) ApplyPayment(_ context.Context, id int, req app.PaymentRequest) (*core.Debt, error) {
	if f.paid == nil {
		f.paid = map[int]decimal.Decimal{}
	}
	f.paid[id] = req.Amount
	return &core.Debt{ID: id, InvoiceNumber: "DEBT-1", Remaining: decimal.NewFromInt(50), Status: core.StatusUnpaid}, nil
}

func runDesk(svc app.ApplicationService, input string) string {
	var out bytes.Buffer
	Run(context.Background(), svc, bufio.NewReader(strings.NewReader(input)), &out)
	return out.String()
}

func TestInterpretedSaleNeedsApproval(t *testing.T) {
	svc := &fakeService{}
	out := runDesk(svc, "Makmur took 25 kg rice\nn\n/exit\n")
	if len(svc.created) != 0 {
		t.Fatalf("declined draft must not be recorded, got %d sales", len(svc.created))
	}
	if !strings.Contains(out, "Low confidence") || !strings.Contains(out, "Sale cancelled.") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out = runDesk(svc, "Makmur took 25 kg rice\ny\n/exit\n")
	if len(svc.created) != 1 || svc.created[0].CustomerID != 4 {
		t.Fatalf("approved draft not recorded: %+v", svc.created)
	}
	if !strings.Contains(out, "Sale RECORDED: INV-20260305-0001") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSaleWizard(t *testing.T) {
	svc := &fakeService{}
	input := strings.Join([]string{"/sale", "X99", "c001", "rice", "-1", "25", "", "100000", "2026-03-05", "", "/exit"}, "\n") + "\n"
	out := runDesk(svc, input)

	if len(svc.created) != 1 {
		t.Fatalf("want one sale, got %d\n%s", len(svc.created), out)
	}
	req := svc.created[0]
	if req.CustomerID != 4 || req.ProductID != 9 || !req.Quantity.Equal(decimal.NewFromInt(25)) {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.UnitPrice != nil {
		t.Errorf("blank price should defer to the list price, got %v", req.UnitPrice)
	}
	if req.PaymentAmount == nil || !req.PaymentAmount.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("payment: %v", req.PaymentAmount)
	}
	if !strings.Contains(out, `Unknown customer "X99"`) || !strings.Contains(out, "Enter a non-negative number") {
		t.Errorf("wizard should reject bad input:\n%s", out)
	}
}

func TestWizardStopsAtEndOfInput(t *testing.T) {
	svc := &fakeService{}
	out := runDesk(svc, "/sale\nC001\n")
	if len(svc.created) != 0 || !strings.Contains(out, "Sale cancelled.") {
		t.Errorf("truncated input should cancel the wizard:\n%s", out)
	}
}

func TestPayCommand(t *testing.T) {
	svc := &fakeService{}
	out := runDesk(svc, "/pay 3 150.50\n/pay x 1\n/exit\n")
	if got := svc.paid[3]; !got.Equal(decimal.RequireFromString("150.50")) {
		t.Errorf("payment amount: %v", got)
	}
	if !strings.Contains(out, "Remaining 50.00") || !strings.Contains(out, "Invalid debt id: x") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
