package app

import (
	"trade-ledger/internal/ai"
	"trade-ledger/internal/core"
	"trade-ledger/internal/forecast"
)

// SessionResult is returned by AuthenticateUser and GetUser.
type SessionResult struct {
	User     *core.User
	Identity core.Identity
}

type ProductListResult struct {
	Products []core.Product `json:"products"`
}

type CustomerListResult struct {
	Customers []core.Customer `json:"customers"`
}

type EmployeeListResult struct {
	Employees []core.Employee `json:"employees"`
}

// SaleResult carries the sale plus any divergence found against its debt.
type SaleResult struct {
	Sale        *core.Sale                  `json:"sale"`
	Divergences []core.ReconciliationReport `json:"divergences,omitempty"`
}

type SaleListResult struct {
	Sales []core.Sale `json:"sales"`
}

// DebtResult is a debt with the on-read check of its originating sale.
type DebtResult struct {
	Debt        *core.Debt                  `json:"debt"`
	Divergences []core.ReconciliationReport `json:"divergences,omitempty"`
}

type DebtListResult struct {
	Debts   []core.Debt       `json:"debts"`
	Summary *core.DebtSummary `json:"summary"`
}

type StockListResult struct {
	Entries []core.StockEntry `json:"entries"`
}

type StockLevelsResult struct {
	Levels []core.StockLevel `json:"levels"`
}

type DistributionListResult struct {
	Distributions []core.Distribution `json:"distributions"`
}

type VehicleCostResult struct {
	Vehicles []core.VehicleCost `json:"vehicles"`
}

// ForecastResult embeds a collaborator failure in Error rather than failing the call.
type ForecastResult struct {
	ProductID int                     `json:"product_id"`
	History   []core.HistoryPoint     `json:"history"`
	Forecast  *forecast.StockForecast `json:"forecast,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

type CostPredictionResult struct {
	Prediction *forecast.CostPrediction `json:"prediction,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

type TrainResult struct {
	Rows   int                   `json:"rows"`
	Result *forecast.TrainResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

type ReconciliationResult struct {
	CorrelationID string                      `json:"correlation_id"`
	Reports       []core.ReconciliationReport `json:"reports"`
}

// InterpretResult is a draft awaiting confirmation. Sale is the request the
// caller submits to CreateSale once the user accepts it.
type InterpretResult struct {
	Draft *ai.SaleDraft `json:"draft"`
	Sale  SaleRequest   `json:"sale"`
}
