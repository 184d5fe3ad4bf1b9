package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("FORECAST_TIMEOUT", "")
	t.Setenv("REDIS_ADDRESS", "")

	cfg := Load()
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort: want 8080, got %q", cfg.ServerPort)
	}
	if cfg.Forecast.ForecastTimeout != 60*time.Second {
		t.Errorf("ForecastTimeout: want 60s, got %s", cfg.Forecast.ForecastTimeout)
	}
	if cfg.Forecast.PredictTimeout != 30*time.Second {
		t.Errorf("PredictTimeout: want 30s, got %s", cfg.Forecast.PredictTimeout)
	}
	if cfg.Forecast.TrainTimeout != 120*time.Second {
		t.Errorf("TrainTimeout: want 120s, got %s", cfg.Forecast.TrainTimeout)
	}
	if cfg.Forecast.HealthTimeout != 5*time.Second {
		t.Errorf("HealthTimeout: want 5s, got %s", cfg.Forecast.HealthTimeout)
	}
	if cfg.Redis.Address != "" {
		t.Errorf("Redis address should default to empty (cache disabled), got %q", cfg.Redis.Address)
	}
}

func TestGetDuration(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{"go duration", "45s", 45 * time.Second},
		{"bare seconds", "12", 12 * time.Second},
		{"garbage falls back", "soon", 7 * time.Second},
		{"empty falls back", "", 7 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.raw)
			if got := getDuration("TEST_DURATION", 7*time.Second); got != tt.want {
				t.Errorf("want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLogError_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("debug")
	logger.SetOutput(&buf)

	LogError(logger, "core", "ApplyPayment", "debt 7", map[string]string{"amount": "10.00"}, errors.New("boom"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["module"] != "core" || entry["funcName"] != "ApplyPayment" || entry["msg"] != "boom" {
		t.Errorf("unexpected log entry: %v", entry)
	}
	if entry["level"] != logrus.ErrorLevel.String() {
		t.Errorf("level: want error, got %v", entry["level"])
	}
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	if got := NewLogger("loud").GetLevel(); got != logrus.InfoLevel {
		t.Errorf("want info level fallback, got %s", got)
	}
}
