// restore-seed restores the demo accounts, reference data and two weeks of
// stock history. Run it on a fresh database or after the reference data has
// been wiped; existing rows are updated in place.
//
// Usage: go run ./cmd/restore-seed
package main

import (
	"context"
	"fmt"
	"time"

	"trade-ledger/internal/config"
	"trade-ledger/internal/core"
	"trade-ledger/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const seedPassword = "changeme123"

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect")
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	steps := []struct {
		name string
		fn   func(context.Context, pgx.Tx) error
	}{
		{"users", seedUsers},
		{"products", seedProducts},
		{"customers", seedCustomers},
		{"employees", seedEmployees},
		{"stock history", seedStock},
	}
	for _, s := range steps {
		log.WithField("step", s.name).Info("restoring")
		if err := s.fn(ctx, tx); err != nil {
			log.WithError(err).WithField("step", s.name).Fatal("seed failed")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Fatal("Failed to commit")
	}

	registry := core.NewRegistryService(pool)
	sales := core.NewSaleService(pool, core.NewInvoiceSequencer(pool))
	if err := seedSales(ctx, registry, sales, log); err != nil {
		log.WithError(err).Fatal("seed sales failed")
	}
	log.WithField("password", seedPassword).Info("seed data restored; demo users are owner, clerk and makmur")
}

func seedUsers(ctx context.Context, tx pgx.Tx) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ('owner',  'owner@example.com',  $1, 'operator'),
		       ('clerk',  'clerk@example.com',  $1, 'staff'),
		       ('makmur', 'makmur@example.com', $1, 'customer')
		ON CONFLICT (username) DO UPDATE
		  SET password_hash = EXCLUDED.password_hash,
		      role = EXCLUDED.role,
		      is_active = true`, string(hash))
	return err
}

func seedProducts(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO products (code, name, category, unit_price, unit)
		VALUES ('RICE',  'Rice',        'grain',  12000, 'kg'),
		       ('SUGAR', 'Sugar',       'staple', 15000, 'kg'),
		       ('OIL',   'Cooking Oil', 'staple', 18000, 'liter')
		ON CONFLICT (code) DO UPDATE
		  SET name = EXCLUDED.name,
		      category = EXCLUDED.category,
		      unit_price = EXCLUDED.unit_price,
		      unit = EXCLUDED.unit`)
	return err
}

func seedCustomers(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO customers (code, name, location, phone, distance_km, user_id)
		VALUES ('C001', 'Toko Makmur', 'Pasar Baru', '+6281234567890', 12,
		        (SELECT id FROM users WHERE username = 'makmur')),
		       ('C002', 'Warung Sejahtera', 'Cibubur', '+6281298765432', 35, NULL)
		ON CONFLICT (code) DO UPDATE
		  SET name = EXCLUDED.name,
		      location = EXCLUDED.location,
		      phone = EXCLUDED.phone,
		      distance_km = EXCLUDED.distance_km,
		      user_id = EXCLUDED.user_id`)
	return err
}

func seedEmployees(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO employees (name, position, contact, user_id)
		SELECT 'Budi Santoso', 'clerk', '+6281211112222', u.id
		FROM users u WHERE u.username = 'clerk'
		ON CONFLICT (user_id) DO NOTHING`)
	return err
}

// seedStock writes fourteen daily entries per product so forecasting has
// enough history. Each day opens at the previous closing.
func seedStock(ctx context.Context, tx pgx.Tx) error {
	rows, err := tx.Query(ctx, `SELECT id FROM products WHERE code IN ('RICE', 'SUGAR', 'OIL') ORDER BY id`)
	if err != nil {
		return err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return err
	}

	start := time.Now().AddDate(0, 0, -14)
	for _, id := range ids {
		opening := decimal.NewFromInt(500)
		for day := 0; day < 14; day++ {
			inbound := decimal.Zero
			if day%5 == 0 {
				inbound = decimal.NewFromInt(120)
			}
			outbound := decimal.NewFromInt(int64(25 + (day*7)%20))
			closing, err := core.StockClosing(opening, inbound, outbound)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO stock_entries (product_id, entry_date, opening, inbound, outbound, closing, notes)
				VALUES ($1, $2, $3, $4, $5, $6, 'seed')
				ON CONFLICT (product_id, entry_date) DO UPDATE
				  SET opening = EXCLUDED.opening,
				      inbound = EXCLUDED.inbound,
				      outbound = EXCLUDED.outbound,
				      closing = EXCLUDED.closing`,
				id, start.AddDate(0, 0, day).Format("2006-01-02"), opening, inbound, outbound, closing)
			if err != nil {
				return fmt.Errorf("failed to seed stock for product %d: %w", id, err)
			}
			opening = closing
		}
	}
	return nil
}

// seedSales records two demo sales through the service so the sale and its
// debt agree. It does nothing when sales already exist.
func seedSales(ctx context.Context, registry core.RegistryService, sales core.SaleService, log *logrus.Logger) error {
	existing, err := sales.ListSales(ctx, core.SaleFilter{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Info("sales present, skipping demo sales")
		return nil
	}

	customers, err := registry.ListCustomers(ctx, true)
	if err != nil {
		return err
	}
	products, err := registry.ListProducts(ctx, true)
	if err != nil {
		return err
	}
	customerID := map[string]int{}
	for _, c := range customers {
		customerID[c.Code] = c.ID
	}
	productID := map[string]int{}
	for _, p := range products {
		productID[p.Code] = p.ID
	}

	today := time.Now().Format("2006-01-02")
	paid := decimal.NewFromInt(100000)
	full := decimal.NewFromInt(360000)
	inputs := []core.SaleInput{
		{CustomerID: customerID["C001"], ProductID: productID["RICE"], SaleDate: today, Quantity: decimal.NewFromInt(25), UnitPrice: decimal.NewFromInt(12000), PaymentAmount: &paid, AutoDebt: true, Notes: "seed"},
		{CustomerID: customerID["C002"], ProductID: productID["SUGAR"], SaleDate: today, Quantity: decimal.NewFromInt(24), UnitPrice: decimal.NewFromInt(15000), PaymentAmount: &full, AutoDebt: true, Notes: "seed"},
	}
	for _, in := range inputs {
		sale, err := sales.CreateSale(ctx, in)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"invoice": sale.InvoiceNumber, "status": sale.Status}).Info("demo sale recorded")
	}
	return nil
}
