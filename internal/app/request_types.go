package app

import (
	"trade-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// Request types are decoded straight from JSON bodies and checked with
// validator tags before reaching the core services. Amounts are decimals and
// are range-checked by core.

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=128"`
}

type ProductRequest struct {
	Code        string          `json:"code" validate:"required,max=20"`
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=500"`
	Category    string          `json:"category" validate:"max=50"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Unit        string          `json:"unit" validate:"max=20"`
	IsActive    *bool           `json:"is_active"` // nil means active
}

type CustomerRequest struct {
	Code       string `json:"code" validate:"required,max=20"`
	Name       string `json:"name" validate:"required,max=100"`
	Location   string `json:"location" validate:"max=100"`
	Address    string `json:"address" validate:"max=255"`
	Phone      string `json:"phone" validate:"max=30"`
	Email      string `json:"email" validate:"omitempty,email,max=100"`
	DistanceKm int    `json:"distance_km" validate:"min=0"`
	IsActive   *bool  `json:"is_active"`
	UserID     *int   `json:"user_id" validate:"omitempty,min=1"`
}

type EmployeeRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Position string `json:"position" validate:"required,max=50"`
	Contact  string `json:"contact" validate:"max=50"`
	Address  string `json:"address" validate:"max=255"`
	IsActive *bool  `json:"is_active"`
	UserID   *int   `json:"user_id" validate:"omitempty,min=1"`
}

// SaleRequest creates or replaces a sale. UnitPrice nil takes the product's
// current price. DebtAmount nil means fully financed. AutoDebt nil means true.
type SaleRequest struct {
	InvoiceNumber string           `json:"invoice_number" validate:"max=50"`
	CustomerID    int              `json:"customer_id" validate:"required,min=1"`
	ProductID     int              `json:"product_id" validate:"required,min=1"`
	SaleDate      string           `json:"sale_date" validate:"required,datetime=2006-01-02"`
	Quantity      decimal.Decimal  `json:"quantity"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	DebtAmount    *decimal.Decimal `json:"debt_amount"`
	PaymentAmount *decimal.Decimal `json:"payment_amount"`
	Notes         string           `json:"notes" validate:"max=500"`
	AutoDebt      *bool            `json:"auto_debt"`
}

type DebtRequest struct {
	InvoiceNumber string `json:"invoice_number" validate:"max=50"`
	SaleID        int    `json:"sale_id" validate:"required,min=1"`
	DebtDate      string `json:"debt_date" validate:"omitempty,datetime=2006-01-02"`
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type StockRequest struct {
	ProductID int             `json:"product_id" validate:"required,min=1"`
	EntryDate string          `json:"entry_date" validate:"required,datetime=2006-01-02"`
	Opening   decimal.Decimal `json:"opening"`
	Inbound   decimal.Decimal `json:"inbound"`
	Outbound  decimal.Decimal `json:"outbound"`
	Notes     string          `json:"notes" validate:"max=500"`
}

type DistributionRequest struct {
	InvoiceNumber    string            `json:"invoice_number" validate:"max=50"`
	SaleInvoice      string            `json:"sale_invoice" validate:"max=50"`
	CustomerID       int               `json:"customer_id" validate:"required,min=1"`
	ProductID        int               `json:"product_id" validate:"required,min=1"`
	DistributionDate string            `json:"distribution_date" validate:"required,datetime=2006-01-02"`
	DistanceKm       int               `json:"distance_km" validate:"min=0"`
	Quantity         decimal.Decimal   `json:"quantity"`
	VehicleClass     core.VehicleClass `json:"vehicle_class" validate:"required,oneof=small medium large"`
	FuelLiters       *decimal.Decimal  `json:"fuel_liters"`
	FuelCost         *decimal.Decimal  `json:"fuel_cost"`
	LaborCost        *decimal.Decimal  `json:"labor_cost"`
	ExtraCost        *decimal.Decimal  `json:"extra_cost"`
	Notes            string            `json:"notes" validate:"max=500"`
}

type ForecastRequest struct {
	ProductID int `json:"product_id" validate:"required,min=1"`
	Periods   int `json:"periods" validate:"required,min=1,max=30"`
}

type CostPredictionRequest struct {
	DistanceKm   int               `json:"distance_km" validate:"min=0"`
	Quantity     decimal.Decimal   `json:"qty"`
	VehicleClass core.VehicleClass `json:"vehicle_class" validate:"required,oneof=small medium large"`
}

type InterpretRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}
