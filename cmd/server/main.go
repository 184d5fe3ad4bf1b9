package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "trade-ledger/internal/adapters/web"
	"trade-ledger/internal/app"
	"trade-ledger/internal/config"
	"trade-ledger/internal/db"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns, SlowQuery: cfg.SlowQuery, Logger: log})
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	defer pool.Close()

	svc, cache, err := app.Wire(ctx, cfg, pool, log)
	if err != nil {
		log.WithError(err).Fatal("wiring services")
	}
	defer cache.Close()

	handler, err := webAdapter.NewHandler(svc, webAdapter.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      cfg.JWTSecret,
		LoginRate:      cfg.LoginRateLimit,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Logger:         log,
	})
	if err != nil {
		log.WithError(err).Fatal("building handler")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("server shutdown")
		}
	}()

	log.WithField("port", cfg.ServerPort).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server")
	}
	log.Info("server stopped")
}
