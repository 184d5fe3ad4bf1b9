//go:build ignore

// apply_patch runs a single migration file outside the tracked sequence, for
// hotfixing a database that verify-db cannot reach yet.
//
// Usage: go run migrations/apply_patch.go migrations/002_reconciliation_reports.sql
package main

import (
	"context"
	"os"

	"trade-ledger/internal/config"
	"trade-ledger/internal/db"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel)

	if len(os.Args) < 2 {
		log.Fatal("usage: go run migrations/apply_patch.go <file.sql>")
	}
	path := os.Args[1]

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to DB")
	}
	defer pool.Close()

	sql, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("file", path).Fatal("Failed to read sql file")
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		log.WithError(err).WithField("file", path).Fatal("Patch failed")
	}
	log.WithField("file", path).Info("Patch applied")
}
