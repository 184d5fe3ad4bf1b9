package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SaleService owns the Sale record and its embedded debt/payment snapshot.
type SaleService interface {
	// CreateSale computes total/debt/payment/remaining, inserts the sale and,
	// when in.AutoDebt is set and remaining > 0, creates the mirrored Debt in
	// the same transaction. An empty invoice number is generated.
	CreateSale(ctx context.Context, in SaleInput) (*Sale, error)
	// UpdateSale replaces the sale and recomputes its own snapshot. The linked
	// Debt is NOT touched; callers should run a reconciliation check afterwards.
	UpdateSale(ctx context.Context, id int, in SaleInput) (*Sale, error)
	DeleteSale(ctx context.Context, id int) error
	GetSale(ctx context.Context, id int) (*Sale, error)
	ListSales(ctx context.Context, f SaleFilter) ([]Sale, error)
	// DebtCandidates lists sales with remaining > 0 and no debt record.
	// includeSaleID, if non-nil, is always included (editing an existing debt).
	DebtCandidates(ctx context.Context, includeSaleID *int) ([]Sale, error)
}

type saleService struct {
	pool      *pgxpool.Pool
	sequencer InvoiceSequencer
}

func NewSaleService(pool *pgxpool.Pool, sequencer InvoiceSequencer) SaleService {
	return &saleService{pool: pool, sequencer: sequencer}
}

const saleSelect = `
	SELECT s.id, s.invoice_number, s.customer_id, c.name, s.product_id, p.name,
	       s.sale_date::text, s.quantity, s.unit_price, s.total,
	       s.debt_amount, s.payment_amount, s.remaining, s.status, s.notes,
	       d.id, s.created_at
	FROM sales s
	JOIN customers c ON c.id = s.customer_id
	JOIN products p  ON p.id = s.product_id
	LEFT JOIN debts d ON d.sale_id = s.id
`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.InvoiceNumber, &s.CustomerID, &s.CustomerName, &s.ProductID, &s.ProductName,
		&s.SaleDate, &s.Quantity, &s.UnitPrice, &s.Total,
		&s.DebtAmount, &s.PaymentAmount, &s.Remaining, &s.Status, &s.Notes,
		&s.DebtID, &s.CreatedAt)
	return &s, err
}

func (s *saleService) CreateSale(ctx context.Context, in SaleInput) (*Sale, error) {
	saleDate, err := parseDate("sale_date", in.SaleDate)
	if err != nil {
		return nil, err
	}
	amounts, err := ComputeSale(in.Quantity, in.UnitPrice, in.DebtAmount, in.PaymentAmount)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := checkSaleReferences(ctx, tx, in); err != nil {
		return nil, err
	}

	invoice := strings.TrimSpace(in.InvoiceNumber)
	if invoice == "" {
		invoice, err = s.sequencer.NextTx(ctx, tx, SaleInvoicePrefix, saleDate)
		if err != nil {
			return nil, err
		}
	}

	var saleID int
	err = tx.QueryRow(ctx, `
		INSERT INTO sales (invoice_number, customer_id, product_id, sale_date, quantity, unit_price,
		                   total, debt_amount, payment_amount, remaining, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, invoice, in.CustomerID, in.ProductID, in.SaleDate, in.Quantity, in.UnitPrice,
		amounts.Total, amounts.Debt, amounts.Payment, amounts.Remaining, string(amounts.Status), in.Notes,
	).Scan(&saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to create sale: %w", uniqueViolation(err, "invoice_number", invoice))
	}

	if in.AutoDebt && amounts.Remaining.IsPositive() {
		if _, err := createDebtWithTx(ctx, tx, s.sequencer, DebtInput{SaleID: saleID, DebtDate: in.SaleDate}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale: %w", err)
	}
	return s.GetSale(ctx, saleID)
}

func (s *saleService) UpdateSale(ctx context.Context, id int, in SaleInput) (*Sale, error) {
	if _, err := parseDate("sale_date", in.SaleDate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.InvoiceNumber) == "" {
		return nil, validationErr("invoice_number", "is required")
	}
	amounts, err := ComputeSale(in.Quantity, in.UnitPrice, in.DebtAmount, in.PaymentAmount)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := checkSaleReferences(ctx, tx, in); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE sales
		SET invoice_number = $1, customer_id = $2, product_id = $3, sale_date = $4,
		    quantity = $5, unit_price = $6, total = $7, debt_amount = $8,
		    payment_amount = $9, remaining = $10, status = $11, notes = $12, updated_at = NOW()
		WHERE id = $13
	`, strings.TrimSpace(in.InvoiceNumber), in.CustomerID, in.ProductID, in.SaleDate,
		in.Quantity, in.UnitPrice, amounts.Total, amounts.Debt,
		amounts.Payment, amounts.Remaining, string(amounts.Status), in.Notes, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update sale: %w", uniqueViolation(err, "invoice_number", in.InvoiceNumber))
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound("sale", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale update: %w", err)
	}
	return s.GetSale(ctx, id)
}

// checkSaleReferences reports a missing customer or product against the
// input field that referenced it.
func checkSaleReferences(ctx context.Context, q pgxQuerier, in SaleInput) error {
	if _, err := getCustomer(ctx, q, in.CustomerID); err != nil {
		if IsNotFound(err) {
			return validationErr("customer_id", "customer %d does not exist", in.CustomerID)
		}
		return err
	}
	if _, err := getProduct(ctx, q, in.ProductID); err != nil {
		if IsNotFound(err) {
			return validationErr("product_id", "product %d does not exist", in.ProductID)
		}
		return err
	}
	return nil
}

// DeleteSale hard-deletes the sale. A linked debt survives with its sale link
// cleared and keeps the sale invoice string.
func (s *saleService) DeleteSale(ctx context.Context, id int) error {
	return deleteByID(ctx, s.pool, "sales", "sale", id)
}

func (s *saleService) GetSale(ctx context.Context, id int) (*Sale, error) {
	return getSale(ctx, s.pool, id)
}

func getSale(ctx context.Context, q pgxQuerier, id int) (*Sale, error) {
	sale, err := scanSale(q.QueryRow(ctx, saleSelect+` WHERE s.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("sale", id)
		}
		return nil, fmt.Errorf("failed to fetch sale: %w", err)
	}
	return sale, nil
}

func (s *saleService) ListSales(ctx context.Context, f SaleFilter) ([]Sale, error) {
	return listSales(ctx, s.pool, f)
}

func listSales(ctx context.Context, q pgxQuerier, f SaleFilter) ([]Sale, error) {
	var w whereBuilder
	if f.CustomerID != nil {
		w.add("s.customer_id = $%d", *f.CustomerID)
	}
	if f.From != "" {
		w.add("s.sale_date >= $%d", f.From)
	}
	if f.To != "" {
		w.add("s.sale_date <= $%d", f.To)
	}
	if f.Search != "" {
		w.add("(s.invoice_number ILIKE $%[1]d OR c.name ILIKE $%[1]d)", "%"+f.Search+"%")
	}

	query := saleSelect + w.clause() + ` ORDER BY s.sale_date DESC, s.id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	return collectSales(ctx, q, query, w.args...)
}

func (s *saleService) DebtCandidates(ctx context.Context, includeSaleID *int) ([]Sale, error) {
	return collectSales(ctx, s.pool, saleSelect+`
		WHERE (d.id IS NULL AND s.remaining > 0) OR s.id = $1
		ORDER BY s.sale_date DESC, s.id DESC
	`, includeSaleID)
}

func collectSales(ctx context.Context, q pgxQuerier, query string, args ...any) ([]Sale, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

// whereBuilder accumulates positional SQL conditions. Each condition carries
// a single %d verb (or %[1]d when the placeholder repeats).
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
