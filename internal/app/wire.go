package app

import (
	"context"

	"trade-ledger/internal/ai"
	"trade-ledger/internal/cache"
	"trade-ledger/internal/config"
	"trade-ledger/internal/core"
	"trade-ledger/internal/forecast"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Wire builds the full service graph over pool. The returned cache must be
// closed by the caller; it is disabled when no Redis address is configured.
func Wire(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, log *logrus.Logger) (ApplicationService, *cache.Cache, error) {
	c, err := cache.New(ctx, cfg.Redis, log)
	if err != nil {
		return nil, nil, err
	}

	sequencer := core.NewInvoiceSequencer(pool)
	deps := Deps{
		Users:         core.NewUserService(pool),
		Registry:      core.NewRegistryService(pool),
		Sales:         core.NewSaleService(pool, sequencer),
		Debts:         core.NewDebtService(pool, sequencer),
		Stock:         core.NewStockService(pool),
		Distributions: core.NewDistributionService(pool, sequencer),
		Projections:   core.NewProjectionService(pool),
		Reconciler:    core.NewReconciler(pool, log),
		Cache:         c,
		DashboardTTL:  cfg.Redis.DashboardTTL,
		TrainTimeout:  cfg.Forecast.TrainTimeout,
		Logger:        log,
	}
	if cfg.Forecast.BaseURL != "" {
		deps.Forecast = forecast.NewClient(cfg.Forecast)
	}
	if cfg.OpenAI.APIKey != "" {
		deps.Agent = ai.NewAgent(cfg.OpenAI.APIKey)
	} else {
		log.Warn("OPENAI_API_KEY is not set; sale interpretation is disabled")
	}
	return NewAppService(deps), c, nil
}
