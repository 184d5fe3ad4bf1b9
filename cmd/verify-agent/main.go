// verify-agent checks the two external collaborators: the forecasting service
// and the sale interpreter. It needs no database.
//
// Usage: go run ./cmd/verify-agent ["order note"]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"trade-ledger/internal/ai"
	"trade-ledger/internal/config"
	"trade-ledger/internal/core"
	"trade-ledger/internal/forecast"

	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel)
	ctx := context.Background()

	client := forecast.NewClient(cfg.Forecast)
	healthy := client.Health(ctx)
	log.WithField("url", cfg.Forecast.BaseURL).WithField("healthy", healthy).Info("forecasting service")

	if healthy {
		history := make([]core.HistoryPoint, forecast.MinHistoryPoints)
		start := time.Now().AddDate(0, 0, -forecast.MinHistoryPoints)
		for i := range history {
			history[i] = core.HistoryPoint{Date: start.AddDate(0, 0, i).Format("2006-01-02"), Closing: decimal.NewFromInt(int64(500 - 10*i))}
		}
		fc, err := client.ForecastStock(ctx, history, 3)
		if err != nil {
			log.WithError(err).Error("stock forecast failed")
		} else {
			for _, p := range fc.Predictions {
				fmt.Printf("  %s  %10s  [%s, %s]\n", p.Date, p.Value.StringFixed(2), p.LowerBound.StringFixed(2), p.UpperBound.StringFixed(2))
			}
		}
	}

	if cfg.OpenAI.APIKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}

	note := "Toko Makmur took 25 kg of rice today, paid 100000 cash, rest on credit."
	if len(os.Args) > 1 {
		note = os.Args[1]
	}
	catalog := ai.Catalog{
		Customers: []core.Customer{{ID: 1, Code: "C001", Name: "Toko Makmur", Location: "Pasar Baru"}},
		Products:  []core.Product{{ID: 1, Code: "RICE", Name: "Rice", Unit: "kg", UnitPrice: decimal.NewFromInt(12000)}},
	}

	fmt.Printf("INTERPRETING: %s\n", note)
	draft, err := ai.NewAgent(cfg.OpenAI.APIKey).InterpretSale(ctx, note, catalog)
	if err != nil {
		log.WithError(err).Fatal("interpretation failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(draft.SaleInput(time.Now().Format("2006-01-02")))
	fmt.Printf("Confidence: %.2f\nReasoning: %s\n", draft.Confidence, draft.Reasoning)
}
