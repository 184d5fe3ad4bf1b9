package main

import (
	"bufio"
	"context"
	"os"

	"trade-ledger/internal/adapters/cli"
	"trade-ledger/internal/adapters/repl"
	"trade-ledger/internal/app"
	"trade-ledger/internal/config"
	"trade-ledger/internal/db"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns, SlowQuery: cfg.SlowQuery, Logger: log})
	if err != nil {
		log.WithError(err).Fatal("Unable to connect to database")
	}

	svc, cache, err := app.Wire(ctx, cfg, pool, log)
	if err != nil {
		pool.Close()
		log.WithError(err).Fatal("wiring services")
	}

	code := 0
	if len(os.Args) > 1 {
		code = cli.Run(ctx, svc, log, os.Args[1:])
	} else {
		repl.Run(ctx, svc, bufio.NewReader(os.Stdin), os.Stdout)
	}
	cache.Close()
	pool.Close()
	os.Exit(code)
}
