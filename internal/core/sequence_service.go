package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvoiceSequencer hands out gapless per-day invoice numbers.
type InvoiceSequencer interface {
	// Next allocates a number in its own transaction.
	Next(ctx context.Context, prefix string, date time.Time) (string, error)
	// NextTx allocates a number inside the caller's transaction, so a rollback
	// of the surrounding write also releases the number.
	NextTx(ctx context.Context, tx pgx.Tx, prefix string, date time.Time) (string, error)
}

type invoiceSequencer struct {
	pool *pgxpool.Pool
}

func NewInvoiceSequencer(pool *pgxpool.Pool) InvoiceSequencer {
	return &invoiceSequencer{pool: pool}
}

func (s *invoiceSequencer) Next(ctx context.Context, prefix string, date time.Time) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	number, err := nextInvoiceWithTx(ctx, tx, prefix, date)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return number, nil
}

func (s *invoiceSequencer) NextTx(ctx context.Context, tx pgx.Tx, prefix string, date time.Time) (string, error) {
	return nextInvoiceWithTx(ctx, tx, prefix, date)
}

func nextInvoiceWithTx(ctx context.Context, tx pgx.Tx, prefix string, date time.Time) (string, error) {
	// Concurrency-safe gapless sequence: the row lock taken by ON CONFLICT
	// serializes allocations for the same (prefix, day).
	var lastNumber int64
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (prefix, seq_date, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, seq_date)
		DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, prefix, date.Format(dateLayout)).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("failed to generate invoice sequence number: %w", err)
	}

	return FormatInvoiceNumber(prefix, date, lastNumber), nil
}
