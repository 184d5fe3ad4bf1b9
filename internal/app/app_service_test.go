package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"trade-ledger/internal/ai"
	"trade-ledger/internal/core"
	"trade-ledger/internal/forecast"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ── Fakes ─────────────────────────────────────────────────────────────────────
// Each fake embeds its interface so unused methods panic if reached.

type fakeRegistry struct {
	core.RegistryService
	products map[int]core.Product
}

func (f *fakeRegistry) GetProduct(_ context.Context, id int) (*core.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "product", Key: fmt.Sprint(id)}
	}
	return &p, nil
}

func (f *fakeRegistry) ListProducts(context.Context, bool) ([]core.Product, error) {
	var out []core.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRegistry) ListCustomers(context.Context, bool) ([]core.Customer, error) {
	return []core.Customer{{ID: 1, Code: "C001", Name: "Toko Budi"}}, nil
}

type fakeSales struct {
	core.SaleService
	created []core.SaleInput
}

func (f *fakeSales) CreateSale(_ context.Context, in core.SaleInput) (*core.Sale, error) {
	f.created = append(f.created, in)
	return &core.Sale{ID: len(f.created), CustomerID: in.CustomerID, UnitPrice: in.UnitPrice}, nil
}

func (f *fakeSales) UpdateSale(_ context.Context, id int, in core.SaleInput) (*core.Sale, error) {
	return &core.Sale{ID: id, UnitPrice: in.UnitPrice}, nil
}

type fakeReconciler struct {
	core.Reconciler
	checked []int
}

func (f *fakeReconciler) CheckSale(_ context.Context, saleID int) ([]core.ReconciliationReport, error) {
	f.checked = append(f.checked, saleID)
	return []core.ReconciliationReport{{CheckType: core.CheckDebtDivergence, EntityType: "debt", EntityID: 7}}, nil
}

type fakeStock struct {
	core.StockService
	history []core.HistoryPoint
}

func (f *fakeStock) History(context.Context, int) ([]core.HistoryPoint, error) {
	return f.history, nil
}

type fakeDistributions struct {
	core.DistributionService
}

func (fakeDistributions) TrainingRows(context.Context) ([]core.TrainingRow, error) {
	return make([]core.TrainingRow, 12), nil
}

type fakeProjections struct {
	core.ProjectionService
	calls int
}

func (f *fakeProjections) Dashboard(_ context.Context, id core.Identity, _ time.Time) (*core.Dashboard, error) {
	f.calls++
	return &core.Dashboard{Role: id.Role.Name()}, nil
}

type fakeForecast struct {
	forecast.Service
	err error
}

func (f fakeForecast) ForecastStock(context.Context, []core.HistoryPoint, int) (*forecast.StockForecast, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &forecast.StockForecast{Predictions: []forecast.Prediction{{Date: "2026-03-06"}}}, nil
}

func (f fakeForecast) TrainDistribution(_ context.Context, rows []core.TrainingRow) (*forecast.TrainResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &forecast.TrainResult{Status: "success"}, nil
}

type fakeAgent struct{}

func (fakeAgent) InterpretSale(_ context.Context, _ string, c ai.Catalog) (*ai.SaleDraft, error) {
	return ai.ParseDraft(`{"customer_code":"C001","product_code":"BRS","quantity":"3","payment_amount":"1000","sale_date":"","notes":"","confidence":0.8,"reasoning":""}`, c)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(d Deps) *appService {
	if d.Registry == nil {
		d.Registry = &fakeRegistry{products: map[int]core.Product{
			1: {ID: 1, Code: "BRS", UnitPrice: decimal.NewFromInt(12000)},
		}}
	}
	d.Logger = quietLogger()
	d.Now = func() time.Time { return time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC) }
	return NewAppService(d).(*appService)
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestCreateSale_DefaultsFromProduct(t *testing.T) {
	sales := &fakeSales{}
	svc := newTestService(Deps{Sales: sales})

	_, err := svc.CreateSale(context.Background(), SaleRequest{
		CustomerID: 1, ProductID: 1, SaleDate: "2026-03-05", Quantity: decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	in := sales.created[0]
	if !in.UnitPrice.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("unit price should default to the product price, got %s", in.UnitPrice)
	}
	if !in.AutoDebt {
		t.Error("AutoDebt should default to true")
	}

	off := false
	price := decimal.NewFromInt(11000)
	if _, err := svc.CreateSale(context.Background(), SaleRequest{
		CustomerID: 1, ProductID: 1, SaleDate: "2026-03-05", Quantity: decimal.NewFromInt(1), UnitPrice: &price, AutoDebt: &off,
	}); err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	if in := sales.created[1]; in.AutoDebt || !in.UnitPrice.Equal(price) {
		t.Errorf("explicit values must win: %+v", in)
	}

	_, err = svc.CreateSale(context.Background(), SaleRequest{CustomerID: 1, ProductID: 42, SaleDate: "2026-03-05"})
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "product_id" {
		t.Errorf("unknown product: want ValidationError on product_id, got %v", err)
	}
}

func TestCreateSale_RequestValidation(t *testing.T) {
	svc := newTestService(Deps{Sales: &fakeSales{}})
	_, err := svc.CreateSale(context.Background(), SaleRequest{ProductID: 1, SaleDate: "05/03/2026"})
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("want RequestError, got %v", err)
	}
	if re.Fields["customer_id"] != "required" || re.Fields["sale_date"] != "datetime" {
		t.Errorf("fields should use JSON names: %v", re.Fields)
	}
}

func TestUpdateSale_ReportsDivergence(t *testing.T) {
	rec := &fakeReconciler{}
	svc := newTestService(Deps{Sales: &fakeSales{}, Reconciler: rec})

	res, err := svc.UpdateSale(context.Background(), 5, SaleRequest{
		CustomerID: 1, ProductID: 1, SaleDate: "2026-03-05", Quantity: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("UpdateSale failed: %v", err)
	}
	if len(rec.checked) != 1 || rec.checked[0] != 5 {
		t.Errorf("sale should be checked after update: %v", rec.checked)
	}
	if len(res.Divergences) != 1 {
		t.Errorf("divergences: %+v", res.Divergences)
	}
}

func TestForecastStock_EmbedsCollaboratorFailure(t *testing.T) {
	stock := &fakeStock{history: make([]core.HistoryPoint, 12)}
	req := ForecastRequest{ProductID: 1, Periods: 7}

	svc := newTestService(Deps{Stock: stock, Forecast: fakeForecast{}})
	res, err := svc.ForecastStock(context.Background(), req)
	if err != nil || res.Forecast == nil || res.Error != "" {
		t.Fatalf("success path: %+v, %v", res, err)
	}

	down := &core.ExternalServiceError{Op: "forecast", Err: errors.New("connection refused")}
	svc = newTestService(Deps{Stock: stock, Forecast: fakeForecast{err: down}})
	res, err = svc.ForecastStock(context.Background(), req)
	if err != nil {
		t.Fatalf("collaborator failure must not be a Go error: %v", err)
	}
	if res.Forecast != nil || res.Error == "" || len(res.History) != 12 {
		t.Errorf("want embedded error with history, got %+v", res)
	}

	tooFew := &core.ValidationError{Field: "history", Message: "too few"}
	svc = newTestService(Deps{Stock: stock, Forecast: fakeForecast{err: tooFew}})
	if _, err := svc.ForecastStock(context.Background(), req); !core.IsValidation(err) {
		t.Errorf("validation failures still surface as errors, got %v", err)
	}

	svc = newTestService(Deps{Stock: stock})
	if res, err := svc.ForecastStock(context.Background(), req); err != nil || res.Error == "" {
		t.Errorf("unconfigured forecast: %+v, %v", res, err)
	}
}

func TestTrainDistribution_WithoutCache(t *testing.T) {
	svc := newTestService(Deps{Distributions: fakeDistributions{}, Forecast: fakeForecast{}})
	res, err := svc.TrainDistribution(context.Background())
	if err != nil {
		t.Fatalf("TrainDistribution failed: %v", err)
	}
	if res.Rows != 12 || res.Result == nil || res.Result.Status != "success" {
		t.Errorf("train result: %+v", res)
	}
}

func TestDashboard_NoCacheComputesEveryCall(t *testing.T) {
	proj := &fakeProjections{}
	svc := newTestService(Deps{Projections: proj})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := svc.Dashboard(ctx, core.Identity{UserID: 1, Role: core.OperatorRole{}})
		if err != nil || d.Role != "operator" {
			t.Fatalf("Dashboard: %+v, %v", d, err)
		}
	}
	if proj.calls != 2 {
		t.Errorf("want 2 projection calls without a cache, got %d", proj.calls)
	}

	if _, err := svc.Dashboard(ctx, core.Identity{UserID: 1}); !core.IsForbidden(err) {
		t.Errorf("missing role: want ForbiddenError, got %v", err)
	}
}

func TestInterpretSale(t *testing.T) {
	svc := newTestService(Deps{})
	if _, err := svc.InterpretSale(context.Background(), InterpretRequest{Text: "3 karung beras untuk Budi"}); !core.IsExternal(err) {
		t.Fatalf("no agent: want ExternalServiceError, got %v", err)
	}

	svc = newTestService(Deps{Agent: fakeAgent{}})
	res, err := svc.InterpretSale(context.Background(), InterpretRequest{Text: "3 karung beras untuk Budi, bayar 1000"})
	if err != nil {
		t.Fatalf("InterpretSale failed: %v", err)
	}
	s := res.Sale
	if s.CustomerID != 1 || s.ProductID != 1 || s.SaleDate != "2026-03-05" {
		t.Errorf("draft request: %+v", s)
	}
	if s.UnitPrice == nil || !s.UnitPrice.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("unit price should come from the catalog: %v", s.UnitPrice)
	}
	if s.PaymentAmount == nil || !s.PaymentAmount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("payment: %v", s.PaymentAmount)
	}

	if _, err := svc.InterpretSale(context.Background(), InterpretRequest{}); err == nil {
		t.Error("empty text must be rejected")
	}
}

func TestProcessValidationErrors_NonValidatorError(t *testing.T) {
	if got := ProcessValidationErrors(errors.New("boom")); got != nil {
		t.Errorf("want nil for foreign errors, got %v", got)
	}
}
