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

// DebtService owns the Debt record: the independently payable mirror of a
// sale's financial snapshot.
type DebtService interface {
	// CreateDebtFromSale copies the sale's total, payment and remaining into a
	// new debt. The sale must exist, have remaining > 0 and no debt yet.
	// An empty invoice number is generated as HTG-YYYYMMDD-NNNN.
	CreateDebtFromSale(ctx context.Context, in DebtInput) (*Debt, error)
	// ApplyPayment pays down a debt and mirrors the new paid/remaining/status
	// onto the linked sale, atomically. The debt row is locked and remaining
	// re-read before the amount is validated.
	ApplyPayment(ctx context.Context, debtID int, amount decimal.Decimal) (*Debt, error)
	// UpdateDebt re-links a debt to a sale and re-copies that sale's snapshot.
	UpdateDebt(ctx context.Context, id int, in DebtInput) (*Debt, error)
	DeleteDebt(ctx context.Context, id int) error
	GetDebt(ctx context.Context, id int) (*Debt, error)
	ListDebts(ctx context.Context, f DebtFilter) ([]Debt, error)
	Summary(ctx context.Context, f DebtFilter) (*DebtSummary, error)
}

type debtService struct {
	pool      *pgxpool.Pool
	sequencer InvoiceSequencer
}

func NewDebtService(pool *pgxpool.Pool, sequencer InvoiceSequencer) DebtService {
	return &debtService{pool: pool, sequencer: sequencer}
}

const debtSelect = `
	SELECT d.id, d.invoice_number, d.sale_invoice, d.sale_id, s.customer_id, COALESCE(c.name, ''),
	       d.debt_date::text, d.face_value, d.amount_paid, d.remaining, d.status, d.created_at
	FROM debts d
	LEFT JOIN sales s     ON s.id = d.sale_id
	LEFT JOIN customers c ON c.id = s.customer_id
`

func scanDebt(row pgx.Row) (*Debt, error) {
	var d Debt
	err := row.Scan(&d.ID, &d.InvoiceNumber, &d.SaleInvoice, &d.SaleID, &d.CustomerID, &d.CustomerName,
		&d.DebtDate, &d.FaceValue, &d.AmountPaid, &d.Remaining, &d.Status, &d.CreatedAt)
	return &d, err
}

// saleSnapshot is the part of a sale a debt mirrors.
type saleSnapshot struct {
	invoice   string
	saleDate  string
	total     decimal.Decimal
	payment   decimal.Decimal
	remaining decimal.Decimal
	debtID    *int
}

// lockSaleSnapshot reads and row-locks the sale a debt is about to mirror.
func lockSaleSnapshot(ctx context.Context, tx pgx.Tx, saleID int) (*saleSnapshot, error) {
	var snap saleSnapshot
	err := tx.QueryRow(ctx, `
		SELECT s.invoice_number, s.sale_date::text, s.total, s.payment_amount, s.remaining,
		       (SELECT d.id FROM debts d WHERE d.sale_id = s.id)
		FROM sales s
		WHERE s.id = $1
		FOR UPDATE
	`, saleID).Scan(&snap.invoice, &snap.saleDate, &snap.total, &snap.payment, &snap.remaining, &snap.debtID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("sale", saleID)
		}
		return nil, fmt.Errorf("failed to read sale for debt: %w", err)
	}
	return &snap, nil
}

func (s *debtService) CreateDebtFromSale(ctx context.Context, in DebtInput) (*Debt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := createDebtWithTx(ctx, tx, s.sequencer, in)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit debt: %w", err)
	}
	return s.GetDebt(ctx, id)
}

// createDebtWithTx contains the debt creation logic and runs within a provided transaction.
func createDebtWithTx(ctx context.Context, tx pgx.Tx, sequencer InvoiceSequencer, in DebtInput) (int, error) {
	snap, err := lockSaleSnapshot(ctx, tx, in.SaleID)
	if err != nil {
		return 0, err
	}
	if snap.debtID != nil {
		return 0, validationErr("sale_id", "sale %s already has debt record %d", snap.invoice, *snap.debtID)
	}
	if !snap.remaining.IsPositive() {
		return 0, validationErr("sale_id", "sale %s has no remaining balance", snap.invoice)
	}

	debtDate := in.DebtDate
	if debtDate == "" {
		debtDate = snap.saleDate
	}
	date, err := parseDate("debt_date", debtDate)
	if err != nil {
		return 0, err
	}

	invoice := strings.TrimSpace(in.InvoiceNumber)
	if invoice == "" {
		invoice, err = sequencer.NextTx(ctx, tx, DebtInvoicePrefix, date)
		if err != nil {
			return 0, err
		}
	}

	var id int
	err = tx.QueryRow(ctx, `
		INSERT INTO debts (invoice_number, sale_invoice, sale_id, debt_date, face_value, amount_paid, remaining, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, invoice, snap.invoice, in.SaleID, debtDate, snap.total, snap.payment, snap.remaining,
		string(DeriveStatus(snap.remaining)),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create debt: %w", uniqueViolation(err, "invoice_number", invoice))
	}
	return id, nil
}

func (s *debtService) ApplyPayment(ctx context.Context, debtID int, amount decimal.Decimal) (*Debt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The row lock makes a concurrent payment on the same debt wait here and
	// then validate against the remaining balance this one commits.
	var paid, remaining decimal.Decimal
	var saleID *int
	err = tx.QueryRow(ctx, `
		SELECT amount_paid, remaining, sale_id
		FROM debts
		WHERE id = $1
		FOR UPDATE
	`, debtID).Scan(&paid, &remaining, &saleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("debt", debtID)
		}
		return nil, fmt.Errorf("failed to lock debt: %w", err)
	}

	result, err := ApplyPaymentAmounts(paid, remaining, amount)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE debts
		SET amount_paid = $1, remaining = $2, status = $3, updated_at = NOW()
		WHERE id = $4
	`, result.Paid, result.Remaining, string(result.Status), debtID)
	if err != nil {
		return nil, fmt.Errorf("failed to update debt: %w", err)
	}

	if saleID != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE sales
			SET payment_amount = $1, remaining = $2, status = $3, updated_at = NOW()
			WHERE id = $4
		`, result.Paid, result.Remaining, string(result.Status), *saleID)
		if err != nil {
			return nil, fmt.Errorf("failed to mirror payment onto sale: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return nil, fmt.Errorf("failed to mirror payment onto sale %d: sale row missing", *saleID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return s.GetDebt(ctx, debtID)
}

func (s *debtService) UpdateDebt(ctx context.Context, id int, in DebtInput) (*Debt, error) {
	if strings.TrimSpace(in.InvoiceNumber) == "" {
		return nil, validationErr("invoice_number", "is required")
	}
	if _, err := parseDate("debt_date", in.DebtDate); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT true FROM debts WHERE id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("debt", id)
		}
		return nil, fmt.Errorf("failed to lock debt: %w", err)
	}

	snap, err := lockSaleSnapshot(ctx, tx, in.SaleID)
	if err != nil {
		return nil, err
	}
	if snap.debtID != nil && *snap.debtID != id {
		return nil, validationErr("sale_id", "sale %s already has debt record %d", snap.invoice, *snap.debtID)
	}

	_, err = tx.Exec(ctx, `
		UPDATE debts
		SET invoice_number = $1, sale_invoice = $2, sale_id = $3, debt_date = $4,
		    face_value = $5, amount_paid = $6, remaining = $7, status = $8, updated_at = NOW()
		WHERE id = $9
	`, strings.TrimSpace(in.InvoiceNumber), snap.invoice, in.SaleID, in.DebtDate,
		snap.total, snap.payment, snap.remaining, string(DeriveStatus(snap.remaining)), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update debt: %w", uniqueViolation(err, "invoice_number", in.InvoiceNumber))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit debt update: %w", err)
	}
	return s.GetDebt(ctx, id)
}

func (s *debtService) DeleteDebt(ctx context.Context, id int) error {
	return deleteByID(ctx, s.pool, "debts", "debt", id)
}

func (s *debtService) GetDebt(ctx context.Context, id int) (*Debt, error) {
	return getDebt(ctx, s.pool, id)
}

func getDebt(ctx context.Context, q pgxQuerier, id int) (*Debt, error) {
	d, err := scanDebt(q.QueryRow(ctx, debtSelect+` WHERE d.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("debt", id)
		}
		return nil, fmt.Errorf("failed to fetch debt: %w", err)
	}
	return d, nil
}

func (s *debtService) ListDebts(ctx context.Context, f DebtFilter) ([]Debt, error) {
	return listDebts(ctx, s.pool, f, 0)
}

func debtWhere(f DebtFilter) whereBuilder {
	var w whereBuilder
	if f.CustomerID != nil {
		w.add("s.customer_id = $%d", *f.CustomerID)
	}
	if f.Status != "" {
		w.add("d.status = $%d", string(f.Status))
	}
	if f.From != "" {
		w.add("d.debt_date >= $%d", f.From)
	}
	if f.To != "" {
		w.add("d.debt_date <= $%d", f.To)
	}
	if f.Search != "" {
		w.add("(d.invoice_number ILIKE $%[1]d OR d.sale_invoice ILIKE $%[1]d OR c.name ILIKE $%[1]d)", "%"+f.Search+"%")
	}
	return w
}

func listDebts(ctx context.Context, q pgxQuerier, f DebtFilter, limit int) ([]Debt, error) {
	w := debtWhere(f)
	query := debtSelect + w.clause() + ` ORDER BY d.debt_date DESC, d.id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query debts: %w", err)
	}
	defer rows.Close()

	var debts []Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debt: %w", err)
		}
		debts = append(debts, *d)
	}
	return debts, rows.Err()
}

func (s *debtService) Summary(ctx context.Context, f DebtFilter) (*DebtSummary, error) {
	return debtSummary(ctx, s.pool, f)
}

func debtSummary(ctx context.Context, q pgxQuerier, f DebtFilter) (*DebtSummary, error) {
	w := debtWhere(f)
	var sum DebtSummary
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(d.remaining), 0),
		       COUNT(*) FILTER (WHERE d.status = 'unpaid'),
		       COUNT(*) FILTER (WHERE d.status = 'paid'),
		       COALESCE(SUM(d.remaining) FILTER (WHERE d.status = 'unpaid'), 0)
		FROM debts d
		LEFT JOIN sales s     ON s.id = d.sale_id
		LEFT JOIN customers c ON c.id = s.customer_id
	`+w.clause(), w.args...).Scan(&sum.TotalRemaining, &sum.UnpaidCount, &sum.PaidCount, &sum.UnpaidValue)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize debts: %w", err)
	}
	return &sum, nil
}
