// Package forecast is the HTTP client for the external forecasting service:
// ARIMA stock forecasts and the distribution cost model.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trade-ledger/internal/config"
	"trade-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// MinHistoryPoints is the fewest observations the service can fit a model on.
// The same floor applies to training rows.
const MinHistoryPoints = 10

// MaxForecastPeriods bounds the forecast horizon in days.
const MaxForecastPeriods = 30

// ── Wire types ────────────────────────────────────────────────────────────────

type Point struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

type Prediction struct {
	Date       string          `json:"date"`
	Value      decimal.Decimal `json:"value"`
	LowerBound decimal.Decimal `json:"lower_bound"`
	UpperBound decimal.Decimal `json:"upper_bound"`
}

type Metrics struct {
	MAPE float64 `json:"mape"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// StockForecast is the service's answer to a stock forecast request.
type StockForecast struct {
	Predictions []Prediction `json:"predictions"`
	Metrics     *Metrics     `json:"metrics,omitempty"`
}

// Features are the inputs to a single distribution cost prediction.
type Features struct {
	DistanceKm   int               `json:"distance_km"`
	Quantity     decimal.Decimal   `json:"qty"`
	VehicleClass core.VehicleClass `json:"vehicle_class"`
}

type CostBreakdown struct {
	Fuel  decimal.Decimal `json:"fuel"`
	Labor decimal.Decimal `json:"labor"`
	Extra decimal.Decimal `json:"extra"`
	Total decimal.Decimal `json:"total"`
}

// CostPrediction is the predicted cost breakdown with the model's confidence in [0, 1].
type CostPrediction struct {
	Prediction      CostBreakdown `json:"prediction"`
	ConfidenceScore float64       `json:"confidence_score"`
}

// TrainResult acknowledges a training run.
type TrainResult struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// ── Client ────────────────────────────────────────────────────────────────────

// Service is the forecasting collaborator as seen by the application layer.
type Service interface {
	ForecastStock(ctx context.Context, history []core.HistoryPoint, periods int) (*StockForecast, error)
	PredictDistributionCost(ctx context.Context, f Features) (*CostPrediction, error)
	TrainDistribution(ctx context.Context, rows []core.TrainingRow) (*TrainResult, error)
	Health(ctx context.Context) bool
}

// Client calls the service synchronously. Each operation has its own timeout
// and nothing is retried: a failure is reported once as an ExternalServiceError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cfg        config.ForecastConfig
}

func NewClient(cfg config.ForecastConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
		cfg:        cfg,
	}
}

func (c *Client) ForecastStock(ctx context.Context, history []core.HistoryPoint, periods int) (*StockForecast, error) {
	if len(history) < MinHistoryPoints {
		return nil, &core.ValidationError{
			Field:   "history",
			Message: fmt.Sprintf("at least %d stock entries are required to forecast, got %d", MinHistoryPoints, len(history)),
		}
	}
	if periods < 1 || periods > MaxForecastPeriods {
		return nil, &core.ValidationError{
			Field:   "periods",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxForecastPeriods, periods),
		}
	}

	data := make([]Point, len(history))
	for i, h := range history {
		data[i] = Point{Date: h.Date, Value: h.Closing}
	}
	req := struct {
		Data    []Point `json:"data"`
		Periods int     `json:"periods"`
	}{Data: data, Periods: periods}

	var out StockForecast
	if err := c.post(ctx, "forecast", "/api/forecast/predict", c.cfg.ForecastTimeout, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PredictDistributionCost(ctx context.Context, f Features) (*CostPrediction, error) {
	if !f.VehicleClass.Valid() {
		return nil, &core.ValidationError{Field: "vehicle_class", Message: fmt.Sprintf("unknown vehicle class %q", f.VehicleClass)}
	}
	if f.DistanceKm < 0 || f.Quantity.IsNegative() {
		return nil, &core.ValidationError{Field: "features", Message: "distance and quantity cannot be negative"}
	}

	req := struct {
		Features Features `json:"features"`
	}{Features: f}

	var out CostPrediction
	if err := c.post(ctx, "predict", "/api/distribution/predict", c.cfg.PredictTimeout, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TrainDistribution(ctx context.Context, rows []core.TrainingRow) (*TrainResult, error) {
	if len(rows) < MinHistoryPoints {
		return nil, &core.ValidationError{
			Field:   "data",
			Message: fmt.Sprintf("at least %d distributions are required to train, got %d", MinHistoryPoints, len(rows)),
		}
	}

	req := struct {
		Data []core.TrainingRow `json:"data"`
	}{Data: rows}

	var out TrainResult
	if err := c.post(ctx, "train", "/api/distribution/train", c.cfg.TrainTimeout, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reports whether the service answers on its health endpoint. Errors are
// swallowed to false.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) post(ctx context.Context, op, path string, timeout time.Duration, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &core.ExternalServiceError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.ExternalServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &core.ExternalServiceError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &core.ExternalServiceError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, detail(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &core.ExternalServiceError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// detail extracts FastAPI's {"detail": ...} message, or a trimmed body.
func detail(raw []byte) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != nil {
		return fmt.Sprint(body.Detail)
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
