package app

import (
	"context"
	"io"

	"trade-ledger/internal/core"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println and no display logic of any kind.
type ApplicationService interface {
	// ── Session ──────────────────────────────────────────────────────────────

	// AuthenticateUser checks credentials and returns the user with its identity.
	// Unknown users and wrong passwords both return core.ErrInvalidCredentials.
	AuthenticateUser(ctx context.Context, req LoginRequest) (*SessionResult, error)

	// GetUser reloads the user behind an existing session.
	GetUser(ctx context.Context, userID int) (*SessionResult, error)

	// ── Registry ─────────────────────────────────────────────────────────────

	ListProducts(ctx context.Context, activeOnly bool) (*ProductListResult, error)
	GetProduct(ctx context.Context, id int) (*core.Product, error)
	CreateProduct(ctx context.Context, req ProductRequest) (*core.Product, error)
	UpdateProduct(ctx context.Context, id int, req ProductRequest) (*core.Product, error)
	DeleteProduct(ctx context.Context, id int) error

	ListCustomers(ctx context.Context, activeOnly bool) (*CustomerListResult, error)
	GetCustomer(ctx context.Context, id int) (*core.Customer, error)
	CreateCustomer(ctx context.Context, req CustomerRequest) (*core.Customer, error)
	UpdateCustomer(ctx context.Context, id int, req CustomerRequest) (*core.Customer, error)
	SetCustomerActive(ctx context.Context, id int, active bool) error
	DeleteCustomer(ctx context.Context, id int) error

	ListEmployees(ctx context.Context) (*EmployeeListResult, error)
	CreateEmployee(ctx context.Context, req EmployeeRequest) (*core.Employee, error)
	UpdateEmployee(ctx context.Context, id int, req EmployeeRequest) (*core.Employee, error)
	SetEmployeeActive(ctx context.Context, id int, active bool) error
	DeleteEmployee(ctx context.Context, id int) error

	// ── Sales and debts ──────────────────────────────────────────────────────

	// CreateSale records a sale. A missing unit price defaults to the product's
	// current price; AutoDebt defaults to true.
	CreateSale(ctx context.Context, req SaleRequest) (*SaleResult, error)

	// UpdateSale replaces a sale and then checks it against its debt. Divergences
	// are recorded and returned; the debt itself is left unchanged.
	UpdateSale(ctx context.Context, id int, req SaleRequest) (*SaleResult, error)

	DeleteSale(ctx context.Context, id int) error
	GetSale(ctx context.Context, id int) (*core.Sale, error)
	ListSales(ctx context.Context, f core.SaleFilter) (*SaleListResult, error)

	// DebtCandidates lists sales that may receive a manual debt.
	DebtCandidates(ctx context.Context, includeSaleID *int) (*SaleListResult, error)

	CreateDebt(ctx context.Context, req DebtRequest) (*core.Debt, error)
	UpdateDebt(ctx context.Context, id int, req DebtRequest) (*core.Debt, error)
	DeleteDebt(ctx context.Context, id int) error

	// GetDebt returns a debt with the on-read divergence check of its sale.
	GetDebt(ctx context.Context, id int) (*DebtResult, error)

	// ListDebts returns the filtered debts together with their summary.
	ListDebts(ctx context.Context, f core.DebtFilter) (*DebtListResult, error)

	// ApplyPayment pays down a debt and mirrors the result onto its sale.
	ApplyPayment(ctx context.Context, debtID int, req PaymentRequest) (*core.Debt, error)

	// ExportDebts writes the filtered debt ledger as an xlsx workbook.
	ExportDebts(ctx context.Context, f core.DebtFilter, w io.Writer) error

	// ── Stock ────────────────────────────────────────────────────────────────

	RecordStock(ctx context.Context, req StockRequest) (*core.StockEntry, error)
	UpdateStock(ctx context.Context, id int, req StockRequest) (*core.StockEntry, error)
	DeleteStock(ctx context.Context, id int) error
	GetStock(ctx context.Context, id int) (*core.StockEntry, error)
	ListStock(ctx context.Context, f core.StockFilter) (*StockListResult, error)
	LatestBalance(ctx context.Context, productID int, by core.LatestBy) (*core.StockEntry, error)
	StockLevels(ctx context.Context, by core.LatestBy) (*StockLevelsResult, error)

	// ── Distributions ────────────────────────────────────────────────────────

	CreateDistribution(ctx context.Context, req DistributionRequest) (*core.Distribution, error)
	UpdateDistribution(ctx context.Context, id int, req DistributionRequest) (*core.Distribution, error)
	DeleteDistribution(ctx context.Context, id int) error
	GetDistribution(ctx context.Context, id int) (*core.Distribution, error)
	ListDistributions(ctx context.Context, f core.DistributionFilter) (*DistributionListResult, error)
	CostByVehicle(ctx context.Context, from, to string) (*VehicleCostResult, error)

	// ── Projections ──────────────────────────────────────────────────────────

	// Dashboard returns the caller's role-specific dashboard. Operator and staff
	// dashboards are cached and invalidated on every write.
	Dashboard(ctx context.Context, id core.Identity) (*core.Dashboard, error)
	MyDebts(ctx context.Context, id core.Identity, f core.DebtFilter) (*core.CustomerDebts, error)
	MyDebt(ctx context.Context, id core.Identity, debtID int) (*core.Debt, error)
	MyPurchases(ctx context.Context, id core.Identity, f core.SaleFilter) (*core.CustomerSales, error)

	// ── Forecasting ──────────────────────────────────────────────────────────

	// ForecastStock forecasts a product's closing balance. A collaborator
	// failure is reported in ForecastResult.Error, not as a Go error.
	ForecastStock(ctx context.Context, req ForecastRequest) (*ForecastResult, error)

	// PredictDistributionCost asks the cost model for a breakdown. A collaborator
	// failure is reported in CostPredictionResult.Error.
	PredictDistributionCost(ctx context.Context, req CostPredictionRequest) (*CostPredictionResult, error)

	// TrainDistribution sends every recorded delivery to the cost model. Only
	// one training run may be in flight; a concurrent call gets cache.ErrBusy.
	TrainDistribution(ctx context.Context) (*TrainResult, error)

	// ForecastHealth reports whether the forecasting service is reachable.
	ForecastHealth(ctx context.Context) bool

	// ── Reconciliation and AI ────────────────────────────────────────────────

	// RunReconciliation checks every debt against its sale and records findings.
	RunReconciliation(ctx context.Context) (*ReconciliationResult, error)

	// ReconciliationReports returns the findings recorded under one correlation id.
	ReconciliationReports(ctx context.Context, correlationID string) (*ReconciliationResult, error)

	// InterpretSale turns a free-text order note into a sale draft. Nothing is
	// written; the caller confirms by submitting the draft to CreateSale.
	InterpretSale(ctx context.Context, req InterpretRequest) (*InterpretResult, error)
}
