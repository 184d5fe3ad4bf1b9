package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Check types written to reconciliation_reports.
const (
	CheckDebtDivergence = "debt_divergence"
	CheckOrphanDebt     = "orphan_debt"
)

// Reconciler compares each sale's embedded snapshot with its Debt record
// and records every divergence it finds.
type Reconciler interface {
	// RunChecks scans all debts. Every finding of one run shares a correlation id.
	RunChecks(ctx context.Context) (string, []ReconciliationReport, error)
	// CheckSale checks a single sale. No debt, or a matching debt, yields no reports.
	// A divergence identical to the last one recorded for the debt is returned
	// from the existing row rather than written again.
	CheckSale(ctx context.Context, saleID int) ([]ReconciliationReport, error)
	// Reports returns the findings recorded under a correlation id.
	Reports(ctx context.Context, correlationID string) ([]ReconciliationReport, error)
}

type reconciler struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

func NewReconciler(pool *pgxpool.Pool, logger *logrus.Logger) Reconciler {
	return &reconciler{pool: pool, logger: logger}
}

type debtPair struct {
	debtID        int
	debtInvoice   string
	saleID        *int
	saleInvoice   string
	face          decimal.Decimal
	paid          decimal.Decimal
	remaining     decimal.Decimal
	status        string
	saleTotal     decimal.Decimal
	salePayment   decimal.Decimal
	saleRemaining decimal.Decimal
	saleStatus    string
}

// divergence describes how a debt differs from its sale, or "" when it matches.
func (p debtPair) divergence() (checkType, details string) {
	if p.saleID == nil {
		return CheckOrphanDebt, fmt.Sprintf("debt %s references deleted sale %s", p.debtInvoice, p.saleInvoice)
	}
	var diffs []string
	if !p.face.Equal(p.saleTotal) {
		diffs = append(diffs, fmt.Sprintf("face_value %s != sale total %s", p.face, p.saleTotal))
	}
	if !p.paid.Equal(p.salePayment) {
		diffs = append(diffs, fmt.Sprintf("amount_paid %s != sale payment_amount %s", p.paid, p.salePayment))
	}
	if !p.remaining.Equal(p.saleRemaining) {
		diffs = append(diffs, fmt.Sprintf("remaining %s != sale remaining %s", p.remaining, p.saleRemaining))
	}
	if p.status != p.saleStatus {
		diffs = append(diffs, fmt.Sprintf("status %s != sale status %s", p.status, p.saleStatus))
	}
	if len(diffs) == 0 {
		return "", ""
	}
	return CheckDebtDivergence, fmt.Sprintf("debt %s vs sale %s: %s", p.debtInvoice, p.saleInvoice, strings.Join(diffs, "; "))
}

const debtPairSelect = `
	SELECT d.id, d.invoice_number, d.sale_id, d.sale_invoice,
	       d.face_value, d.amount_paid, d.remaining, d.status,
	       COALESCE(s.total, 0), COALESCE(s.payment_amount, 0), COALESCE(s.remaining, 0), COALESCE(s.status, '')
	FROM debts d
	LEFT JOIN sales s ON s.id = d.sale_id
`

func (r *reconciler) RunChecks(ctx context.Context) (string, []ReconciliationReport, error) {
	correlationID := uuid.New().String()
	reports, err := r.check(ctx, correlationID, false, debtPairSelect+` ORDER BY d.id`)
	return correlationID, reports, err
}

func (r *reconciler) CheckSale(ctx context.Context, saleID int) ([]ReconciliationReport, error) {
	return r.check(ctx, uuid.New().String(), true, debtPairSelect+` WHERE d.sale_id = $1`, saleID)
}

func (r *reconciler) check(ctx context.Context, correlationID string, dedupe bool, query string, args ...any) ([]ReconciliationReport, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query debt pairs: %w", err)
	}
	var pairs []debtPair
	for rows.Next() {
		var p debtPair
		if err := rows.Scan(&p.debtID, &p.debtInvoice, &p.saleID, &p.saleInvoice,
			&p.face, &p.paid, &p.remaining, &p.status,
			&p.saleTotal, &p.salePayment, &p.saleRemaining, &p.saleStatus); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan debt pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read debt pairs: %w", err)
	}

	var reports []ReconciliationReport
	for _, p := range pairs {
		checkType, details := p.divergence()
		if checkType == "" {
			continue
		}
		rep := ReconciliationReport{
			CheckType:     checkType,
			EntityType:    "debt",
			EntityID:      p.debtID,
			Details:       details,
			CorrelationID: correlationID,
		}
		if dedupe {
			last, err := r.lastReport(ctx, rep.EntityType, rep.EntityID)
			if err != nil {
				return nil, err
			}
			if last != nil && last.CheckType == rep.CheckType && last.Details == rep.Details {
				reports = append(reports, *last)
				continue
			}
		}

		err := r.pool.QueryRow(ctx, `
			INSERT INTO reconciliation_reports (check_type, entity_type, entity_id, details, correlation_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, rep.CheckType, rep.EntityType, rep.EntityID, rep.Details, rep.CorrelationID).Scan(&rep.ID, &rep.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to record reconciliation report: %w", err)
		}

		r.logger.WithFields(logrus.Fields{
			"correlation_id": correlationID,
			"check_type":     checkType,
			"debt_id":        p.debtID,
		}).Warn(details)
		reports = append(reports, rep)
	}

	r.logger.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"checked":        len(pairs),
		"divergences":    len(reports),
	}).Info("reconciliation check complete")
	return reports, nil
}

// lastReport returns the most recent finding for an entity, or nil.
func (r *reconciler) lastReport(ctx context.Context, entityType string, entityID int) (*ReconciliationReport, error) {
	var rep ReconciliationReport
	err := r.pool.QueryRow(ctx, `
		SELECT id, check_type, entity_type, entity_id, details, correlation_id, created_at
		FROM reconciliation_reports
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY id DESC
		LIMIT 1
	`, entityType, entityID).Scan(&rep.ID, &rep.CheckType, &rep.EntityType, &rep.EntityID,
		&rep.Details, &rep.CorrelationID, &rep.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last reconciliation report: %w", err)
	}
	return &rep, nil
}

func (r *reconciler) Reports(ctx context.Context, correlationID string) ([]ReconciliationReport, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, check_type, entity_type, entity_id, details, correlation_id, created_at
		FROM reconciliation_reports
		WHERE correlation_id = $1
		ORDER BY id
	`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation reports: %w", err)
	}
	defer rows.Close()

	var reports []ReconciliationReport
	for rows.Next() {
		var rep ReconciliationReport
		if err := rows.Scan(&rep.ID, &rep.CheckType, &rep.EntityType, &rep.EntityID,
			&rep.Details, &rep.CorrelationID, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation report: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}
