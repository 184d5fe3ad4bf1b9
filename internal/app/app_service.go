package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"trade-ledger/internal/ai"
	"trade-ledger/internal/cache"
	"trade-ledger/internal/core"
	"trade-ledger/internal/export"
	"trade-ledger/internal/forecast"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const trainLock = "distribution-train"

// Deps are the collaborators of the application service. Forecast, Agent and
// Cache may be nil: forecasting and interpretation then report themselves as
// unavailable and dashboards are computed on every call.
type Deps struct {
	Users         core.UserService
	Registry      core.RegistryService
	Sales         core.SaleService
	Debts         core.DebtService
	Stock         core.StockService
	Distributions core.DistributionService
	Projections   core.ProjectionService
	Reconciler    core.Reconciler

	Forecast     forecast.Service
	Agent        ai.SaleInterpreter
	Cache        *cache.Cache
	DashboardTTL time.Duration
	TrainTimeout time.Duration
	Logger       *logrus.Logger

	// Now is the clock used for dashboards and draft dates. Defaults to time.Now.
	Now func() time.Time
}

type appService struct {
	Deps
	validator *validator.Validate
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(d Deps) ApplicationService {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.TrainTimeout == 0 {
		d.TrainTimeout = 2 * time.Minute
	}
	return &appService{Deps: d, validator: newValidator()}
}

var errForecastUnavailable = errors.New("forecasting service not configured")

// ── Session ───────────────────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, req LoginRequest) (*SessionResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	user, err := s.Users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	return sessionFor(user)
}

func (s *appService) GetUser(ctx context.Context, userID int) (*SessionResult, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sessionFor(user)
}

func sessionFor(user *core.User) (*SessionResult, error) {
	id, err := user.Identity()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity of user %d: %w", user.ID, err)
	}
	return &SessionResult{User: user, Identity: id}, nil
}

// ── Registry ──────────────────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context, activeOnly bool) (*ProductListResult, error) {
	products, err := s.Registry.ListProducts(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) GetProduct(ctx context.Context, id int) (*core.Product, error) {
	return s.Registry.GetProduct(ctx, id)
}

func (s *appService) CreateProduct(ctx context.Context, req ProductRequest) (*core.Product, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	p, err := s.Registry.CreateProduct(ctx, productInput(req))
	return written(ctx, s, p, err)
}

func (s *appService) UpdateProduct(ctx context.Context, id int, req ProductRequest) (*core.Product, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	p, err := s.Registry.UpdateProduct(ctx, id, productInput(req))
	return written(ctx, s, p, err)
}

func (s *appService) DeleteProduct(ctx context.Context, id int) error {
	return s.afterWrite(ctx, s.Registry.DeleteProduct(ctx, id))
}

func (s *appService) ListCustomers(ctx context.Context, activeOnly bool) (*CustomerListResult, error) {
	customers, err := s.Registry.ListCustomers(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return &CustomerListResult{Customers: customers}, nil
}

func (s *appService) GetCustomer(ctx context.Context, id int) (*core.Customer, error) {
	return s.Registry.GetCustomer(ctx, id)
}

func (s *appService) CreateCustomer(ctx context.Context, req CustomerRequest) (*core.Customer, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	c, err := s.Registry.CreateCustomer(ctx, customerInput(req))
	return written(ctx, s, c, err)
}

func (s *appService) UpdateCustomer(ctx context.Context, id int, req CustomerRequest) (*core.Customer, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	c, err := s.Registry.UpdateCustomer(ctx, id, customerInput(req))
	return written(ctx, s, c, err)
}

func (s *appService) SetCustomerActive(ctx context.Context, id int, active bool) error {
	return s.afterWrite(ctx, s.Registry.SetCustomerActive(ctx, id, active))
}

func (s *appService) DeleteCustomer(ctx context.Context, id int) error {
	return s.afterWrite(ctx, s.Registry.DeleteCustomer(ctx, id))
}

func (s *appService) ListEmployees(ctx context.Context) (*EmployeeListResult, error) {
	employees, err := s.Registry.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	return &EmployeeListResult{Employees: employees}, nil
}

func (s *appService) CreateEmployee(ctx context.Context, req EmployeeRequest) (*core.Employee, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	e, err := s.Registry.CreateEmployee(ctx, employeeInput(req))
	return written(ctx, s, e, err)
}

func (s *appService) UpdateEmployee(ctx context.Context, id int, req EmployeeRequest) (*core.Employee, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	e, err := s.Registry.UpdateEmployee(ctx, id, employeeInput(req))
	return written(ctx, s, e, err)
}

func (s *appService) SetEmployeeActive(ctx context.Context, id int, active bool) error {
	return s.afterWrite(ctx, s.Registry.SetEmployeeActive(ctx, id, active))
}

func (s *appService) DeleteEmployee(ctx context.Context, id int) error {
	return s.afterWrite(ctx, s.Registry.DeleteEmployee(ctx, id))
}

// ── Sales and debts ───────────────────────────────────────────────────────────

func (s *appService) CreateSale(ctx context.Context, req SaleRequest) (*SaleResult, error) {
	in, err := s.saleInput(ctx, req)
	if err != nil {
		return nil, err
	}
	sale, err := s.Sales.CreateSale(ctx, in)
	if err := s.afterWrite(ctx, err); err != nil {
		return nil, err
	}
	return &SaleResult{Sale: sale}, nil
}

func (s *appService) UpdateSale(ctx context.Context, id int, req SaleRequest) (*SaleResult, error) {
	in, err := s.saleInput(ctx, req)
	if err != nil {
		return nil, err
	}
	sale, err := s.Sales.UpdateSale(ctx, id, in)
	if err := s.afterWrite(ctx, err); err != nil {
		return nil, err
	}

	// The debt is deliberately not rewritten; surface the gap instead.
	reports, err := s.Reconciler.CheckSale(ctx, sale.ID)
	if err != nil {
		s.Logger.WithError(err).WithField("sale_id", sale.ID).Warn("post-update reconciliation check failed")
	}
	return &SaleResult{Sale: sale, Divergences: reports}, nil
}

func (s *appService) DeleteSale(ctx context.Context, id int) error {
	return s.afterWrite(ctx, s.Sales.DeleteSale(ctx, id))
}

func (s *appService) GetSale(ctx context.Context, id int) (*core.Sale, error) {
	return s.Sales.GetSale(ctx, id)
}

func (s *appService) ListSales(ctx context.Context, f core.SaleFilter) (*SaleListResult, error) {
	sales, err := s.Sales.ListSales(ctx, f)
	if err != nil {
		return nil, err
	}
	return &SaleListResult{Sales: sales}, nil
}

func (s *appService) DebtCandidates(ctx context.Context, includeSaleID *int) (*SaleListResult, error) {
	sales, err := s.Sales.DebtCandidates(ctx, includeSaleID)
	if err != nil {
		return nil, err
	}
	return &SaleListResult{Sales: sales}, nil
}

func (s *appService) CreateDebt(ctx context.Context, req DebtRequest) (*core.Debt, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	d, err := s.Debts.CreateDebtFromSale(ctx, debtInput(req))
	return written(ctx, s, d, err)
}

func (s *appService) UpdateDebt(ctx context.Context, id int, req DebtRequest) (*core.Debt, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	d, err := s.Debts.UpdateDebt(ctx, id, debtInput(req))
	return written(ctx, s, d, err)
}

func (s *appService) DeleteDebt(ctx context.Context, id int) error {
	return s.afterWrite(ctx, s.Debts.DeleteDebt(ctx, id))
}

func (s *appService) GetDebt(ctx context.Context, id int) (*DebtResult, error) {
	debt, err := s.Debts.GetDebt(ctx, id)
	if err != nil {
		return nil, err
	}
	result := &DebtResult{Debt: debt}
	if debt.SaleID != nil {
		reports, err := s.Reconciler.CheckSale(ctx, *debt.SaleID)
		if err != nil {
			s.Logger.WithError(err).WithField("debt_id", id).Warn("on-read reconciliation check failed")
		}
		result.Divergences = reports
	}
	return result, nil
}

func (s *appService) ListDebts(ctx context.Context, f core.DebtFilter) (*DebtListResult, error) {
	debts, err := s.Debts.ListDebts(ctx, f)
	if err != nil {
		return nil, err
	}
	summary, err := s.Debts.Summary(ctx, f)
	if err != nil {
		return nil, err
	}
	return &DebtListResult{Debts: debts, Summary: summary}, nil
}

func (s *appService) ApplyPayment(ctx context.Context, debtID int, req PaymentRequest) (*core.Debt, error) {
	d, err := s.Debts.ApplyPayment(ctx, debtID, req.Amount)
	return written(ctx, s, d, err)
}

func (s *appService) ExportDebts(ctx context.Context, f core.DebtFilter, w io.Writer) error {
	list, err := s.ListDebts(ctx, f)
	if err != nil {
		return err
	}
	return export.WriteDebts(w, list.Debts, list.Summary)
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *appService) RecordStock(ctx context.Context, req StockRequest) (*core.StockEntry, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	e, err := s.Stock.RecordEntry(ctx, stockInput(req))
	return written(ctx, s, e, err)
}

func (s *appService) UpdateStock(ctx context.Context, id int, req StockRequest) (*core.StockEntry, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	e, err := s.Stock.UpdateEntry(ctx, id, stockInput(req))
	return written(ctx, s, e, err)
}

func (s *appService) DeleteStock(ctx context.Context, id int) error {
	return s.afterWrite(ctx, s.Stock.DeleteEntry(ctx, id))
}

func (s *appService) GetStock(ctx context.Context, id int) (*core.StockEntry, error) {
	return s.Stock.GetEntry(ctx, id)
}

func (s *appService) ListStock(ctx context.Context, f core.StockFilter) (*StockListResult, error) {
	entries, err := s.Stock.ListEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	return &StockListResult{Entries: entries}, nil
}

func (s *appService) LatestBalance(ctx context.Context, productID int, by core.LatestBy) (*core.StockEntry, error) {
	if by == core.LatestByDate {
		return s.Stock.LatestBalanceByDate(ctx, productID)
	}
	return s.Stock.LatestBalance(ctx, productID)
}

func (s *appService) StockLevels(ctx context.Context, by core.LatestBy) (*StockLevelsResult, error) {
	levels, err := s.Stock.StockLevels(ctx, by)
	if err != nil {
		return nil, err
	}
	return &StockLevelsResult{Levels: levels}, nil
}

// ── Distributions ─────────────────────────────────────────────────────────────

func (s *appService) CreateDistribution(ctx context.Context, req DistributionRequest) (*core.Distribution, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	d, err := s.Distributions.CreateDistribution(ctx, distributionInput(req))
	return written(ctx, s, d, err)
}

func (s *appService) UpdateDistribution(ctx context.Context, id int, req DistributionRequest) (*core.Distribution, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	d, err := s.Distributions.UpdateDistribution(ctx, id, distributionInput(req))
	return written(ctx, s, d, err)
}

func (s *appService) DeleteDistribution(ctx context.Context, id int) error {
	return s.afterWrite(ctx, s.Distributions.DeleteDistribution(ctx, id))
}

func (s *appService) GetDistribution(ctx context.Context, id int) (*core.Distribution, error) {
	return s.Distributions.GetDistribution(ctx, id)
}

func (s *appService) ListDistributions(ctx context.Context, f core.DistributionFilter) (*DistributionListResult, error) {
	list, err := s.Distributions.ListDistributions(ctx, f)
	if err != nil {
		return nil, err
	}
	return &DistributionListResult{Distributions: list}, nil
}

func (s *appService) CostByVehicle(ctx context.Context, from, to string) (*VehicleCostResult, error) {
	costs, err := s.Distributions.CostByVehicle(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &VehicleCostResult{Vehicles: costs}, nil
}

// ── Projections ───────────────────────────────────────────────────────────────

func (s *appService) Dashboard(ctx context.Context, id core.Identity) (*core.Dashboard, error) {
	if id.Role == nil {
		return nil, &core.ForbiddenError{Reason: "no role"}
	}
	_, isCustomer := id.Role.(core.CustomerRole)
	key := cache.DashboardKey(id.Role.Name())

	if !isCustomer {
		var cached core.Dashboard
		hit, err := s.Cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.Logger.WithError(err).WithField("key", key).Warn("dashboard cache read failed")
		}
		if hit {
			return &cached, nil
		}
	}

	dash, err := s.Projections.Dashboard(ctx, id, s.Now())
	if err != nil {
		return nil, err
	}
	if !isCustomer {
		if err := s.Cache.SetJSON(ctx, key, dash, s.DashboardTTL); err != nil {
			s.Logger.WithError(err).WithField("key", key).Warn("dashboard cache write failed")
		}
	}
	return dash, nil
}

func (s *appService) MyDebts(ctx context.Context, id core.Identity, f core.DebtFilter) (*core.CustomerDebts, error) {
	return s.Projections.CustomerDebts(ctx, id, f)
}

func (s *appService) MyDebt(ctx context.Context, id core.Identity, debtID int) (*core.Debt, error) {
	return s.Projections.CustomerDebt(ctx, id, debtID)
}

func (s *appService) MyPurchases(ctx context.Context, id core.Identity, f core.SaleFilter) (*core.CustomerSales, error) {
	return s.Projections.CustomerSales(ctx, id, f)
}

// ── Forecasting ───────────────────────────────────────────────────────────────

func (s *appService) ForecastStock(ctx context.Context, req ForecastRequest) (*ForecastResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if _, err := s.Registry.GetProduct(ctx, req.ProductID); err != nil {
		return nil, err
	}
	history, err := s.Stock.History(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	result := &ForecastResult{ProductID: req.ProductID, History: history}
	if s.Forecast == nil {
		result.Error = errForecastUnavailable.Error()
		return result, nil
	}
	fc, err := s.Forecast.ForecastStock(ctx, history, req.Periods)
	if err != nil {
		if !core.IsExternal(err) {
			return nil, err
		}
		s.Logger.WithError(err).WithField("product_id", req.ProductID).Warn("stock forecast failed")
		result.Error = err.Error()
		return result, nil
	}
	result.Forecast = fc
	return result, nil
}

func (s *appService) PredictDistributionCost(ctx context.Context, req CostPredictionRequest) (*CostPredictionResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if s.Forecast == nil {
		return &CostPredictionResult{Error: errForecastUnavailable.Error()}, nil
	}
	p, err := s.Forecast.PredictDistributionCost(ctx, forecast.Features{
		DistanceKm:   req.DistanceKm,
		Quantity:     req.Quantity,
		VehicleClass: req.VehicleClass,
	})
	if err != nil {
		if !core.IsExternal(err) {
			return nil, err
		}
		s.Logger.WithError(err).Warn("distribution cost prediction failed")
		return &CostPredictionResult{Error: err.Error()}, nil
	}
	return &CostPredictionResult{Prediction: p}, nil
}

func (s *appService) TrainDistribution(ctx context.Context) (*TrainResult, error) {
	if s.Forecast == nil {
		return &TrainResult{Error: errForecastUnavailable.Error()}, nil
	}
	var result *TrainResult
	err := s.Cache.WithLock(ctx, trainLock, s.TrainTimeout, func(ctx context.Context) error {
		rows, err := s.Distributions.TrainingRows(ctx)
		if err != nil {
			return err
		}
		result = &TrainResult{Rows: len(rows)}
		tr, err := s.Forecast.TrainDistribution(ctx, rows)
		if err != nil {
			if !core.IsExternal(err) {
				return err
			}
			s.Logger.WithError(err).WithField("rows", len(rows)).Warn("distribution model training failed")
			result.Error = err.Error()
			return nil
		}
		result.Result = tr
		s.Logger.WithFields(logrus.Fields{"rows": len(rows), "status": tr.Status}).Info("distribution model trained")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *appService) ForecastHealth(ctx context.Context) bool {
	if s.Forecast == nil {
		return false
	}
	return s.Forecast.Health(ctx)
}

// ── Reconciliation and AI ─────────────────────────────────────────────────────

func (s *appService) RunReconciliation(ctx context.Context) (*ReconciliationResult, error) {
	corrID, reports, err := s.Reconciler.RunChecks(ctx)
	if err != nil {
		return nil, err
	}
	return &ReconciliationResult{CorrelationID: corrID, Reports: reports}, nil
}

func (s *appService) ReconciliationReports(ctx context.Context, correlationID string) (*ReconciliationResult, error) {
	if correlationID == "" {
		return nil, &core.ValidationError{Field: "correlation_id", Message: "is required"}
	}
	reports, err := s.Reconciler.Reports(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	return &ReconciliationResult{CorrelationID: correlationID, Reports: reports}, nil
}

func (s *appService) InterpretSale(ctx context.Context, req InterpretRequest) (*InterpretResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if s.Agent == nil {
		return nil, &core.ExternalServiceError{Op: "interpret", Err: errors.New("AI agent not configured")}
	}

	products, err := s.Registry.ListProducts(ctx, true)
	if err != nil {
		return nil, err
	}
	customers, err := s.Registry.ListCustomers(ctx, true)
	if err != nil {
		return nil, err
	}

	draft, err := s.Agent.InterpretSale(ctx, req.Text, ai.Catalog{Customers: customers, Products: products})
	if err != nil {
		return nil, err
	}
	in := draft.SaleInput(s.Now().Format("2006-01-02"))
	return &InterpretResult{Draft: draft, Sale: saleRequestFrom(in)}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// afterWrite drops cached dashboards once a write has succeeded. A cache
// failure is logged and never fails the write.
func (s *appService) afterWrite(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	if cerr := s.Cache.Invalidate(ctx, cache.DashboardPrefix); cerr != nil {
		s.Logger.WithError(cerr).Warn("dashboard cache invalidation failed")
	}
	return nil
}

func written[T any](ctx context.Context, s *appService, v *T, err error) (*T, error) {
	if err := s.afterWrite(ctx, err); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *appService) saleInput(ctx context.Context, req SaleRequest) (core.SaleInput, error) {
	if err := s.validate(req); err != nil {
		return core.SaleInput{}, err
	}
	in := core.SaleInput{
		InvoiceNumber: req.InvoiceNumber,
		CustomerID:    req.CustomerID,
		ProductID:     req.ProductID,
		SaleDate:      req.SaleDate,
		Quantity:      req.Quantity,
		DebtAmount:    req.DebtAmount,
		PaymentAmount: req.PaymentAmount,
		Notes:         req.Notes,
		AutoDebt:      req.AutoDebt == nil || *req.AutoDebt,
	}
	if req.UnitPrice != nil {
		in.UnitPrice = *req.UnitPrice
		return in, nil
	}
	p, err := s.Registry.GetProduct(ctx, req.ProductID)
	if core.IsNotFound(err) {
		return in, &core.ValidationError{Field: "product_id", Message: fmt.Sprintf("product %d does not exist", req.ProductID)}
	}
	if err != nil {
		return in, err
	}
	in.UnitPrice = p.UnitPrice
	return in, nil
}

func saleRequestFrom(in core.SaleInput) SaleRequest {
	price := in.UnitPrice
	auto := in.AutoDebt
	return SaleRequest{
		CustomerID:    in.CustomerID,
		ProductID:     in.ProductID,
		SaleDate:      in.SaleDate,
		Quantity:      in.Quantity,
		UnitPrice:     &price,
		PaymentAmount: in.PaymentAmount,
		Notes:         in.Notes,
		AutoDebt:      &auto,
	}
}

func activeOrDefault(b *bool) bool {
	return b == nil || *b
}

func productInput(r ProductRequest) core.ProductInput {
	return core.ProductInput{
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		UnitPrice:   r.UnitPrice,
		Unit:        r.Unit,
		IsActive:    activeOrDefault(r.IsActive),
	}
}

func customerInput(r CustomerRequest) core.CustomerInput {
	return core.CustomerInput{
		Code:       r.Code,
		Name:       r.Name,
		Location:   r.Location,
		Address:    r.Address,
		Phone:      r.Phone,
		Email:      r.Email,
		DistanceKm: r.DistanceKm,
		IsActive:   activeOrDefault(r.IsActive),
		UserID:     r.UserID,
	}
}

func employeeInput(r EmployeeRequest) core.EmployeeInput {
	return core.EmployeeInput{
		Name:     r.Name,
		Position: r.Position,
		Contact:  r.Contact,
		Address:  r.Address,
		IsActive: activeOrDefault(r.IsActive),
		UserID:   r.UserID,
	}
}

func debtInput(r DebtRequest) core.DebtInput {
	return core.DebtInput{InvoiceNumber: r.InvoiceNumber, SaleID: r.SaleID, DebtDate: r.DebtDate}
}

func stockInput(r StockRequest) core.StockInput {
	return core.StockInput{
		ProductID: r.ProductID,
		EntryDate: r.EntryDate,
		Opening:   r.Opening,
		Inbound:   r.Inbound,
		Outbound:  r.Outbound,
		Notes:     r.Notes,
	}
}

func distributionInput(r DistributionRequest) core.DistributionInput {
	return core.DistributionInput{
		InvoiceNumber:    r.InvoiceNumber,
		SaleInvoice:      r.SaleInvoice,
		CustomerID:       r.CustomerID,
		ProductID:        r.ProductID,
		DistributionDate: r.DistributionDate,
		DistanceKm:       r.DistanceKm,
		Quantity:         r.Quantity,
		VehicleClass:     r.VehicleClass,
		FuelLiters:       r.FuelLiters,
		FuelCost:         r.FuelCost,
		LaborCost:        r.LaborCost,
		ExtraCost:        r.ExtraCost,
		Notes:            r.Notes,
	}
}
