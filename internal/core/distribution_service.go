package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DistributionFilter narrows distribution listings. Empty fields are ignored.
type DistributionFilter struct {
	From         string
	To           string
	CustomerID   *int
	VehicleClass VehicleClass
	Limit        int
}

// TrainingRow is one historical delivery used to fit the cost model.
type TrainingRow struct {
	DistanceKm   int              `json:"distance_km"`
	Quantity     decimal.Decimal  `json:"quantity"`
	VehicleClass VehicleClass     `json:"vehicle_type"`
	FuelLiters   *decimal.Decimal `json:"fuel_liters,omitempty"`
	FuelCost     decimal.Decimal  `json:"fuel_cost"`
	LaborCost    decimal.Decimal  `json:"labor_cost"`
	ExtraCost    decimal.Decimal  `json:"extra_cost"`
	TotalCost    decimal.Decimal  `json:"total_cost"`
}

// VehicleCost aggregates distribution cost for one vehicle class.
type VehicleCost struct {
	VehicleClass VehicleClass    `json:"vehicle_class"`
	Count        int             `json:"count"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

// DistributionService records deliveries and their itemized cost.
type DistributionService interface {
	// CreateDistribution stores a delivery with total_cost = fuel + labor + extra.
	// An empty invoice number is generated as DST-YYYYMMDD-NNNN.
	CreateDistribution(ctx context.Context, in DistributionInput) (*Distribution, error)
	UpdateDistribution(ctx context.Context, id int, in DistributionInput) (*Distribution, error)
	DeleteDistribution(ctx context.Context, id int) error
	GetDistribution(ctx context.Context, id int) (*Distribution, error)
	ListDistributions(ctx context.Context, f DistributionFilter) ([]Distribution, error)
	// TrainingRows returns every recorded delivery in the cost model's feature shape.
	TrainingRows(ctx context.Context) ([]TrainingRow, error)
	// CostByVehicle sums cost per vehicle class over an optional date range.
	CostByVehicle(ctx context.Context, from, to string) ([]VehicleCost, error)
}

type distributionService struct {
	pool      *pgxpool.Pool
	sequencer InvoiceSequencer
}

func NewDistributionService(pool *pgxpool.Pool, sequencer InvoiceSequencer) DistributionService {
	return &distributionService{pool: pool, sequencer: sequencer}
}

const distributionSelect = `
	SELECT dt.id, dt.invoice_number, dt.sale_invoice, dt.customer_id, c.name, dt.product_id, p.name,
	       dt.distribution_date::text, dt.distance_km, dt.quantity, dt.vehicle_class, dt.fuel_liters,
	       dt.fuel_cost, dt.labor_cost, dt.extra_cost, dt.total_cost, dt.notes, dt.created_at
	FROM distributions dt
	JOIN customers c ON c.id = dt.customer_id
	JOIN products p  ON p.id = dt.product_id
`

func scanDistribution(row pgx.Row) (*Distribution, error) {
	var d Distribution
	err := row.Scan(&d.ID, &d.InvoiceNumber, &d.SaleInvoice, &d.CustomerID, &d.CustomerName, &d.ProductID, &d.ProductName,
		&d.DistributionDate, &d.DistanceKm, &d.Quantity, &d.VehicleClass, &d.FuelLiters,
		&d.FuelCost, &d.LaborCost, &d.ExtraCost, &d.TotalCost, &d.Notes, &d.CreatedAt)
	return &d, err
}

// prepareDistribution validates the input, checks references and computes costs.
func prepareDistribution(ctx context.Context, q pgxQuerier, in DistributionInput) (DistributionCosts, error) {
	if _, err := parseDate("distribution_date", in.DistributionDate); err != nil {
		return DistributionCosts{}, err
	}
	if !in.VehicleClass.Valid() {
		return DistributionCosts{}, validationErr("vehicle_class", "must be one of small, medium, large; got %q", in.VehicleClass)
	}
	if in.DistanceKm < 0 {
		return DistributionCosts{}, validationErr("distance_km", "cannot be negative, got %d", in.DistanceKm)
	}
	if in.Quantity.IsNegative() {
		return DistributionCosts{}, validationErr("quantity", "cannot be negative, got %s", in.Quantity)
	}
	if in.FuelLiters != nil && in.FuelLiters.IsNegative() {
		return DistributionCosts{}, validationErr("fuel_liters", "cannot be negative, got %s", *in.FuelLiters)
	}
	costs, err := DistributionTotal(in.FuelCost, in.LaborCost, in.ExtraCost)
	if err != nil {
		return DistributionCosts{}, err
	}
	if err := checkSaleReferences(ctx, q, SaleInput{CustomerID: in.CustomerID, ProductID: in.ProductID}); err != nil {
		return DistributionCosts{}, err
	}
	return costs, nil
}

func (s *distributionService) CreateDistribution(ctx context.Context, in DistributionInput) (*Distribution, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	costs, err := prepareDistribution(ctx, tx, in)
	if err != nil {
		return nil, err
	}

	invoice := strings.TrimSpace(in.InvoiceNumber)
	if invoice == "" {
		date, _ := parseDate("distribution_date", in.DistributionDate)
		invoice, err = s.sequencer.NextTx(ctx, tx, DistributionInvoicePrefix, date)
		if err != nil {
			return nil, err
		}
	}

	var id int
	err = tx.QueryRow(ctx, `
		INSERT INTO distributions (invoice_number, sale_invoice, customer_id, product_id, distribution_date,
		                           distance_km, quantity, vehicle_class, fuel_liters,
		                           fuel_cost, labor_cost, extra_cost, total_cost, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, invoice, strings.TrimSpace(in.SaleInvoice), in.CustomerID, in.ProductID, in.DistributionDate,
		in.DistanceKm, in.Quantity, string(in.VehicleClass), in.FuelLiters,
		costs.Fuel, costs.Labor, costs.Extra, costs.Total, in.Notes,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create distribution: %w", uniqueViolation(err, "invoice_number", invoice))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit distribution: %w", err)
	}
	return s.GetDistribution(ctx, id)
}

func (s *distributionService) UpdateDistribution(ctx context.Context, id int, in DistributionInput) (*Distribution, error) {
	if strings.TrimSpace(in.InvoiceNumber) == "" {
		return nil, validationErr("invoice_number", "is required")
	}
	costs, err := prepareDistribution(ctx, s.pool, in)
	if err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE distributions
		SET invoice_number = $1, sale_invoice = $2, customer_id = $3, product_id = $4, distribution_date = $5,
		    distance_km = $6, quantity = $7, vehicle_class = $8, fuel_liters = $9,
		    fuel_cost = $10, labor_cost = $11, extra_cost = $12, total_cost = $13, notes = $14, updated_at = NOW()
		WHERE id = $15
	`, strings.TrimSpace(in.InvoiceNumber), strings.TrimSpace(in.SaleInvoice), in.CustomerID, in.ProductID, in.DistributionDate,
		in.DistanceKm, in.Quantity, string(in.VehicleClass), in.FuelLiters,
		costs.Fuel, costs.Labor, costs.Extra, costs.Total, in.Notes, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update distribution: %w", uniqueViolation(err, "invoice_number", in.InvoiceNumber))
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound("distribution", id)
	}
	return s.GetDistribution(ctx, id)
}

func (s *distributionService) DeleteDistribution(ctx context.Context, id int) error {
	return deleteByID(ctx, s.pool, "distributions", "distribution", id)
}

func (s *distributionService) GetDistribution(ctx context.Context, id int) (*Distribution, error) {
	d, err := scanDistribution(s.pool.QueryRow(ctx, distributionSelect+` WHERE dt.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("distribution", id)
		}
		return nil, fmt.Errorf("failed to fetch distribution: %w", err)
	}
	return d, nil
}

func (s *distributionService) ListDistributions(ctx context.Context, f DistributionFilter) ([]Distribution, error) {
	return listDistributions(ctx, s.pool, f)
}

func listDistributions(ctx context.Context, q pgxQuerier, f DistributionFilter) ([]Distribution, error) {
	var w whereBuilder
	if f.CustomerID != nil {
		w.add("dt.customer_id = $%d", *f.CustomerID)
	}
	if f.VehicleClass != "" {
		w.add("dt.vehicle_class = $%d", string(f.VehicleClass))
	}
	if f.From != "" {
		w.add("dt.distribution_date >= $%d", f.From)
	}
	if f.To != "" {
		w.add("dt.distribution_date <= $%d", f.To)
	}

	query := distributionSelect + w.clause() + ` ORDER BY dt.distribution_date DESC, dt.id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distributions: %w", err)
	}
	defer rows.Close()

	var out []Distribution
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan distribution: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *distributionService) TrainingRows(ctx context.Context) ([]TrainingRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT distance_km, quantity, vehicle_class, fuel_liters, fuel_cost, labor_cost, extra_cost, total_cost
		FROM distributions
		ORDER BY distribution_date, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query training rows: %w", err)
	}
	defer rows.Close()

	var out []TrainingRow
	for rows.Next() {
		var r TrainingRow
		if err := rows.Scan(&r.DistanceKm, &r.Quantity, &r.VehicleClass, &r.FuelLiters,
			&r.FuelCost, &r.LaborCost, &r.ExtraCost, &r.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan training row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *distributionService) CostByVehicle(ctx context.Context, from, to string) ([]VehicleCost, error) {
	return costByVehicle(ctx, s.pool, from, to)
}

func costByVehicle(ctx context.Context, q pgxQuerier, from, to string) ([]VehicleCost, error) {
	var w whereBuilder
	if from != "" {
		w.add("distribution_date >= $%d", from)
	}
	if to != "" {
		w.add("distribution_date <= $%d", to)
	}

	rows, err := q.Query(ctx, `
		SELECT vehicle_class, COUNT(*), COALESCE(SUM(total_cost), 0)
		FROM distributions`+w.clause()+`
		GROUP BY vehicle_class
		ORDER BY vehicle_class
	`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost by vehicle: %w", err)
	}
	defer rows.Close()

	var out []VehicleCost
	for rows.Next() {
		var vc VehicleCost
		if err := rows.Scan(&vc.VehicleClass, &vc.Count, &vc.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle cost: %w", err)
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}
