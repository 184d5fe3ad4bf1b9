package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting the binaries need.
type Config struct {
	DatabaseURL    string
	DBMaxConns     int32
	SlowQuery      time.Duration // queries slower than this are logged; 0 disables
	ServerPort     string
	JWTSecret      string
	AllowedOrigins string
	LogLevel       string
	LoginRateLimit string // ulule formatted rate, e.g. "10-M"
	MaxBodyBytes   int64

	Forecast ForecastConfig
	Redis    RedisConfig
	OpenAI   OpenAIConfig
}

// ForecastConfig points at the external forecasting service.
type ForecastConfig struct {
	BaseURL         string
	ForecastTimeout time.Duration
	PredictTimeout  time.Duration
	TrainTimeout    time.Duration
	HealthTimeout   time.Duration
}

// RedisConfig configures the projection cache. An empty Address disables it.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	DashboardTTL time.Duration
}

type OpenAIConfig struct {
	APIKey string
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	maxConns, _ := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	maxBody, _ := strconv.ParseInt(getEnv("MAX_BODY_BYTES", "1048576"), 10, 64)

	return Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBMaxConns:     int32(maxConns),
		SlowQuery:      getDuration("DB_SLOW_QUERY", 500*time.Millisecond),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LoginRateLimit: getEnv("LOGIN_RATE_LIMIT", "10-M"),
		MaxBodyBytes:   maxBody,
		Forecast: ForecastConfig{
			BaseURL:         getEnv("FORECAST_BASE_URL", "http://localhost:8000"),
			ForecastTimeout: getDuration("FORECAST_TIMEOUT", 60*time.Second),
			PredictTimeout:  getDuration("PREDICT_TIMEOUT", 30*time.Second),
			TrainTimeout:    getDuration("TRAIN_TIMEOUT", 120*time.Second),
			HealthTimeout:   getDuration("HEALTH_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Address:      getEnv("REDIS_ADDRESS", ""),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           redisDB,
			DashboardTTL: getDuration("DASHBOARD_CACHE_TTL", 60*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go duration strings ("45s") or a bare number of seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("invalid duration for %s=%q, using %s", key, raw, defaultValue)
	return defaultValue
}
