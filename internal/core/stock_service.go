package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LatestBy selects which entry counts as a product's current balance.
type LatestBy int

const (
	// LatestByID takes the most recently inserted entry regardless of its date.
	LatestByID LatestBy = iota
	// LatestByDate takes the entry with the latest date, ties broken by id.
	LatestByDate
)

// StockLevel is a read view of a product's current closing balance.
// EntryDate is empty and Closing zero when the product has no entries.
type StockLevel struct {
	ProductID   int             `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Unit        string          `json:"unit"`
	EntryDate   string          `json:"entry_date,omitempty"`
	Closing     decimal.Decimal `json:"closing"`
}

// HistoryPoint is one (date, closing) observation fed to stock forecasting.
type HistoryPoint struct {
	Date    string          `json:"date"`
	Closing decimal.Decimal `json:"closing"`
}

// StockFilter narrows entry listings. Zero fields are ignored.
type StockFilter struct {
	ProductID int
	From      string
	To        string
}

// StockService manages the per-product daily stock ledger. Each day is
// independent: a day's opening is entered, never carried from the previous close.
type StockService interface {
	// RecordEntry creates the (product, date) entry or overwrites it if one exists.
	RecordEntry(ctx context.Context, in StockInput) (*StockEntry, error)
	UpdateEntry(ctx context.Context, id int, in StockInput) (*StockEntry, error)
	DeleteEntry(ctx context.Context, id int) error
	GetEntry(ctx context.Context, id int) (*StockEntry, error)
	ListEntries(ctx context.Context, f StockFilter) ([]StockEntry, error)
	// LatestBalance returns the most recently inserted entry for the product.
	LatestBalance(ctx context.Context, productID int) (*StockEntry, error)
	// LatestBalanceByDate returns the entry with the latest date for the product.
	LatestBalanceByDate(ctx context.Context, productID int) (*StockEntry, error)
	// StockLevels lists the current balance of every active product.
	StockLevels(ctx context.Context, by LatestBy) ([]StockLevel, error)
	// History returns the product's closing balances in date order.
	History(ctx context.Context, productID int) ([]HistoryPoint, error)
}

type stockService struct {
	pool *pgxpool.Pool
}

func NewStockService(pool *pgxpool.Pool) StockService {
	return &stockService{pool: pool}
}

const stockSelect = `
	SELECT se.id, se.product_id, p.code, p.name, se.entry_date::text,
	       se.opening, se.inbound, se.outbound, se.closing, se.notes, se.created_at
	FROM stock_entries se
	JOIN products p ON p.id = se.product_id
`

func scanStockEntry(row pgx.Row) (*StockEntry, error) {
	var e StockEntry
	err := row.Scan(&e.ID, &e.ProductID, &e.ProductCode, &e.ProductName, &e.EntryDate,
		&e.Opening, &e.Inbound, &e.Outbound, &e.Closing, &e.Notes, &e.CreatedAt)
	return &e, err
}

// prepareStock validates the input and returns the computed closing balance.
func prepareStock(ctx context.Context, q pgxQuerier, in StockInput) (decimal.Decimal, error) {
	if _, err := parseDate("entry_date", in.EntryDate); err != nil {
		return decimal.Zero, err
	}
	closing, err := StockClosing(in.Opening, in.Inbound, in.Outbound)
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := getProduct(ctx, q, in.ProductID); err != nil {
		if IsNotFound(err) {
			return decimal.Zero, validationErr("product_id", "product %d does not exist", in.ProductID)
		}
		return decimal.Zero, err
	}
	return closing, nil
}

func (s *stockService) RecordEntry(ctx context.Context, in StockInput) (*StockEntry, error) {
	closing, err := prepareStock(ctx, s.pool, in)
	if err != nil {
		return nil, err
	}

	// Upsert keeps exactly one entry per (product, day).
	var id int
	err = s.pool.QueryRow(ctx, `
		INSERT INTO stock_entries (product_id, entry_date, opening, inbound, outbound, closing, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (product_id, entry_date) DO UPDATE
		SET opening = EXCLUDED.opening,
		    inbound = EXCLUDED.inbound,
		    outbound = EXCLUDED.outbound,
		    closing = EXCLUDED.closing,
		    notes = EXCLUDED.notes,
		    updated_at = NOW()
		RETURNING id
	`, in.ProductID, in.EntryDate, in.Opening.Round(2), in.Inbound.Round(2), in.Outbound.Round(2), closing, in.Notes).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to record stock entry: %w", err)
	}
	return s.GetEntry(ctx, id)
}

func (s *stockService) UpdateEntry(ctx context.Context, id int, in StockInput) (*StockEntry, error) {
	closing, err := prepareStock(ctx, s.pool, in)
	if err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE stock_entries
		SET product_id = $1, entry_date = $2, opening = $3, inbound = $4, outbound = $5,
		    closing = $6, notes = $7, updated_at = NOW()
		WHERE id = $8
	`, in.ProductID, in.EntryDate, in.Opening.Round(2), in.Inbound.Round(2), in.Outbound.Round(2), closing, in.Notes, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update stock entry: %w",
			uniqueViolation(err, "entry_date", fmt.Sprintf("entry for product %d on %s", in.ProductID, in.EntryDate)))
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound("stock entry", id)
	}
	return s.GetEntry(ctx, id)
}

func (s *stockService) DeleteEntry(ctx context.Context, id int) error {
	return deleteByID(ctx, s.pool, "stock_entries", "stock entry", id)
}

func (s *stockService) GetEntry(ctx context.Context, id int) (*StockEntry, error) {
	e, err := scanStockEntry(s.pool.QueryRow(ctx, stockSelect+` WHERE se.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("stock entry", id)
		}
		return nil, fmt.Errorf("failed to fetch stock entry: %w", err)
	}
	return e, nil
}

func (s *stockService) ListEntries(ctx context.Context, f StockFilter) ([]StockEntry, error) {
	var w whereBuilder
	if f.ProductID != 0 {
		w.add("se.product_id = $%d", f.ProductID)
	}
	if f.From != "" {
		w.add("se.entry_date >= $%d", f.From)
	}
	if f.To != "" {
		w.add("se.entry_date <= $%d", f.To)
	}

	rows, err := s.pool.Query(ctx, stockSelect+w.clause()+` ORDER BY se.entry_date DESC, se.id DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock entries: %w", err)
	}
	defer rows.Close()

	var entries []StockEntry
	for rows.Next() {
		e, err := scanStockEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *stockService) LatestBalance(ctx context.Context, productID int) (*StockEntry, error) {
	return s.latest(ctx, productID, `se.id DESC`)
}

func (s *stockService) LatestBalanceByDate(ctx context.Context, productID int) (*StockEntry, error) {
	return s.latest(ctx, productID, `se.entry_date DESC, se.id DESC`)
}

func (s *stockService) latest(ctx context.Context, productID int, order string) (*StockEntry, error) {
	e, err := scanStockEntry(s.pool.QueryRow(ctx,
		stockSelect+` WHERE se.product_id = $1 ORDER BY `+order+` LIMIT 1`, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("stock entry for product", productID)
		}
		return nil, fmt.Errorf("failed to fetch latest stock entry: %w", err)
	}
	return e, nil
}

func (s *stockService) StockLevels(ctx context.Context, by LatestBy) ([]StockLevel, error) {
	return stockLevels(ctx, s.pool, by)
}

func stockLevels(ctx context.Context, q pgxQuerier, by LatestBy) ([]StockLevel, error) {
	order := `se.id DESC`
	if by == LatestByDate {
		order = `se.entry_date DESC, se.id DESC`
	}

	rows, err := q.Query(ctx, `
		SELECT p.id, p.code, p.name, p.unit, COALESCE(l.entry_date::text, ''), COALESCE(l.closing, 0)
		FROM products p
		LEFT JOIN LATERAL (
			SELECT se.entry_date, se.closing
			FROM stock_entries se
			WHERE se.product_id = p.id
			ORDER BY `+order+`
			LIMIT 1
		) l ON true
		WHERE p.is_active = true
		ORDER BY p.code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ProductID, &sl.ProductCode, &sl.ProductName, &sl.Unit, &sl.EntryDate, &sl.Closing); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

func (s *stockService) History(ctx context.Context, productID int) ([]HistoryPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entry_date::text, closing
		FROM stock_entries
		WHERE product_id = $1
		ORDER BY entry_date, id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock history: %w", err)
	}
	defer rows.Close()

	var points []HistoryPoint
	for rows.Next() {
		var p HistoryPoint
		if err := rows.Scan(&p.Date, &p.Closing); err != nil {
			return nil, fmt.Errorf("failed to scan stock history: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

