package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the settlement state shared by Sale and Debt.
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
)

// VehicleClass is the delivery vehicle size used on a distribution.
type VehicleClass string

const (
	VehicleSmall  VehicleClass = "small"
	VehicleMedium VehicleClass = "medium"
	VehicleLarge  VehicleClass = "large"
)

// VehicleClasses lists every valid class in display order.
var VehicleClasses = []VehicleClass{VehicleSmall, VehicleMedium, VehicleLarge}

func (v VehicleClass) Valid() bool {
	switch v {
	case VehicleSmall, VehicleMedium, VehicleLarge:
		return true
	}
	return false
}

// Product is a traded good. Sales snapshot UnitPrice at creation, so later
// price changes never touch existing sales.
type Product struct {
	ID          int             `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Unit        string          `json:"unit"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Customer is a buyer. DistanceKm feeds distribution cost training.
// UserID links the customer to a self-service account.
type Customer struct {
	ID         int       `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Location   string    `json:"location"`
	Address    string    `json:"address"`
	Phone      string    `json:"phone"` // E.164
	Email      string    `json:"email"`
	DistanceKm int       `json:"distance_km"`
	IsActive   bool      `json:"is_active"`
	UserID     *int      `json:"user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Employee struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Position  string    `json:"position"`
	Contact   string    `json:"contact"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	UserID    *int      `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StockEntry is the balance of one product on one day.
// Closing = Opening + Inbound - Outbound at write time.
type StockEntry struct {
	ID          int             `json:"id"`
	ProductID   int             `json:"product_id"`
	ProductCode string          `json:"product_code"` // joined from products
	ProductName string          `json:"product_name"` // joined from products
	EntryDate   string          `json:"entry_date"`   // YYYY-MM-DD
	Opening     decimal.Decimal `json:"opening"`
	Inbound     decimal.Decimal `json:"inbound"`
	Outbound    decimal.Decimal `json:"outbound"`
	Closing     decimal.Decimal `json:"closing"`
	Notes       string          `json:"notes"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Sale records one product sold to one customer together with its own
// debt/payment snapshot. The snapshot is mirrored by a Debt record when one exists.
type Sale struct {
	ID            int             `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    int             `json:"customer_id"`
	CustomerName  string          `json:"customer_name"` // joined from customers
	ProductID     int             `json:"product_id"`
	ProductName   string          `json:"product_name"` // joined from products
	SaleDate      string          `json:"sale_date"`    // YYYY-MM-DD
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Total         decimal.Decimal `json:"total"`
	DebtAmount    decimal.Decimal `json:"debt_amount"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	Remaining     decimal.Decimal `json:"remaining"`
	Status        Status          `json:"status"`
	Notes         string          `json:"notes"`
	DebtID        *int            `json:"debt_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Debt is the independently payable mirror of a sale's financial state.
// SaleInvoice is the loose string reference; SaleID is the enforced link and
// is nil once the originating sale has been deleted.
type Debt struct {
	ID            int             `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	SaleInvoice   string          `json:"sale_invoice"`
	SaleID        *int            `json:"sale_id,omitempty"`
	CustomerID    *int            `json:"customer_id,omitempty"`   // via sale
	CustomerName  string          `json:"customer_name,omitempty"` // via sale
	DebtDate      string          `json:"debt_date"`               // YYYY-MM-DD
	FaceValue     decimal.Decimal `json:"face_value"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Remaining     decimal.Decimal `json:"remaining"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Distribution is one delivery with its cost breakdown.
type Distribution struct {
	ID               int              `json:"id"`
	InvoiceNumber    string           `json:"invoice_number"`
	SaleInvoice      string           `json:"sale_invoice"`
	CustomerID       int              `json:"customer_id"`
	CustomerName     string           `json:"customer_name"` // joined from customers
	ProductID        int              `json:"product_id"`
	ProductName      string           `json:"product_name"` // joined from products
	DistributionDate string           `json:"distribution_date"`
	DistanceKm       int              `json:"distance_km"`
	Quantity         decimal.Decimal  `json:"quantity"`
	VehicleClass     VehicleClass     `json:"vehicle_class"`
	FuelLiters       *decimal.Decimal `json:"fuel_liters,omitempty"`
	FuelCost         decimal.Decimal  `json:"fuel_cost"`
	LaborCost        decimal.Decimal  `json:"labor_cost"`
	ExtraCost        decimal.Decimal  `json:"extra_cost"`
	TotalCost        decimal.Decimal  `json:"total_cost"`
	Notes            string           `json:"notes"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ReconciliationReport is one divergence finding between a sale and its debt.
type ReconciliationReport struct {
	ID            int       `json:"id"`
	CheckType     string    `json:"check_type"`
	EntityType    string    `json:"entity_type"`
	EntityID      int       `json:"entity_id"`
	Details       string    `json:"details"`
	CorrelationID string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// ── Inputs ────────────────────────────────────────────────────────────────────
// Inputs arrive already sanitized by the application layer; services only
// enforce business invariants.

type ProductInput struct {
	Code        string
	Name        string
	Description string
	Category    string
	UnitPrice   decimal.Decimal
	Unit        string
	IsActive    bool
}

type CustomerInput struct {
	Code       string
	Name       string
	Location   string
	Address    string
	Phone      string
	Email      string
	DistanceKm int
	IsActive   bool
	UserID     *int
}

type EmployeeInput struct {
	Name     string
	Position string
	Contact  string
	Address  string
	IsActive bool
	UserID   *int
}

// SaleInput creates or fully replaces a sale. DebtAmount nil means fully
// financed (debt = total); PaymentAmount nil means nothing paid yet.
type SaleInput struct {
	InvoiceNumber string
	CustomerID    int
	ProductID     int
	SaleDate      string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	DebtAmount    *decimal.Decimal
	PaymentAmount *decimal.Decimal
	Notes         string
	// AutoDebt creates the mirrored Debt in the same transaction when the
	// sale has a positive remaining balance. Ignored on update.
	AutoDebt bool
}

// DebtInput is used for manual debt entry and full debt edits.
// An empty InvoiceNumber is generated from DebtDate.
type DebtInput struct {
	InvoiceNumber string
	SaleID        int
	DebtDate      string
}

type StockInput struct {
	ProductID int
	EntryDate string
	Opening   decimal.Decimal
	Inbound   decimal.Decimal
	Outbound  decimal.Decimal
	Notes     string
}

// DistributionInput: nil cost components default to zero.
type DistributionInput struct {
	InvoiceNumber    string
	SaleInvoice      string
	CustomerID       int
	ProductID        int
	DistributionDate string
	DistanceKm       int
	Quantity         decimal.Decimal
	VehicleClass     VehicleClass
	FuelLiters       *decimal.Decimal
	FuelCost         *decimal.Decimal
	LaborCost        *decimal.Decimal
	ExtraCost        *decimal.Decimal
	Notes            string
}

// ── Filters ───────────────────────────────────────────────────────────────────

// SaleFilter narrows sale listings. Empty fields are ignored.
type SaleFilter struct {
	From       string
	To         string
	Search     string // invoice number or customer name
	CustomerID *int
	Limit      int
}

// DebtFilter narrows debt listings. Empty fields are ignored.
type DebtFilter struct {
	Status     Status
	Search     string // debt invoice, sale invoice or customer name
	From       string
	To         string
	CustomerID *int
}

// DebtSummary aggregates a debt listing.
type DebtSummary struct {
	TotalRemaining decimal.Decimal `json:"total_remaining"`
	UnpaidCount    int             `json:"unpaid_count"`
	PaidCount      int             `json:"paid_count"`
	UnpaidValue    decimal.Decimal `json:"unpaid_value"`
}
