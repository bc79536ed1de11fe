package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string // env key: DB_NAME
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
		ViewTTL  time.Duration
	}
	Services struct {
		MarketplaceServicePort int
		MetricsPort            int
	}
	JWT struct {
		SecretKey string
	}
	Marketplace struct {
		// TaxRateBps is applied on top of the accepted bid price,
		// in basis points (250 = 2.5%).
		TaxRateBps int64
		// AllowLateBids lets drivers keep submitting bids after a bid
		// was accepted. Late bids sit pending until the request closes;
		// they are never acceptable.
		AllowLateBids bool
		Currency      string
	}
	Stripe struct {
		APIKey string
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present (it never overrides variables
// already set in the real environment).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config

	cfg.Database.Host = envStr("DB_HOST", "")
	cfg.Database.Port = envInt("DB_PORT", 0)
	cfg.Database.User = envStr("DB_USER", "")
	cfg.Database.Password = envStr("DB_PASSWORD", "")
	cfg.Database.Name = envStr("DB_NAME", "")

	cfg.RabbitMQ.Host = envStr("RABBITMQ_HOST", "")
	cfg.RabbitMQ.Port = envInt("RABBITMQ_PORT", 0)
	cfg.RabbitMQ.User = envStr("RABBITMQ_USER", "")
	cfg.RabbitMQ.Password = envStr("RABBITMQ_PASSWORD", "")

	cfg.Redis.Addr = envStr("REDIS_ADDR", "")
	cfg.Redis.Password = envStr("REDIS_PASSWORD", "")
	cfg.Redis.DB = envInt("REDIS_DB", 0)
	cfg.Redis.ViewTTL = envDuration("REDIS_VIEW_TTL", 0)

	cfg.Services.MarketplaceServicePort = envInt("MARKETPLACE_SERVICE_PORT", 0)
	cfg.Services.MetricsPort = envInt("METRICS_PORT", 0)

	cfg.JWT.SecretKey = envStr("JWT_SECRET_KEY", "")

	cfg.Marketplace.TaxRateBps = int64(envInt("MARKET_TAX_RATE_BPS", -1))
	cfg.Marketplace.AllowLateBids = envBool("MARKET_ALLOW_LATE_BIDS", false)
	cfg.Marketplace.Currency = envStr("MARKET_CURRENCY", "")

	cfg.Stripe.APIKey = envStr("STRIPE_API_KEY", "")

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.ViewTTL == 0 {
		cfg.Redis.ViewTTL = 30 * time.Second
	}

	// Services
	if cfg.Services.MarketplaceServicePort == 0 {
		cfg.Services.MarketplaceServicePort = 3000
	}
	if cfg.Services.MetricsPort == 0 {
		cfg.Services.MetricsPort = 9090
	}

	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}

	// Marketplace
	if cfg.Marketplace.TaxRateBps < 0 {
		cfg.Marketplace.TaxRateBps = 0
	}
	if cfg.Marketplace.Currency == "" {
		cfg.Marketplace.Currency = "USD"
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "DB_PORT must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "DB_USER is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "DB_PASSWORD is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "DB_NAME is required")
	}

	// RabbitMQ
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "RABBITMQ_PORT must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "RABBITMQ_USER is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "RABBITMQ_PASSWORD is required")
	}

	// Services
	if c.Services.MarketplaceServicePort <= 0 || c.Services.MarketplaceServicePort > 65535 {
		problems = append(problems, "MARKETPLACE_SERVICE_PORT must be in 1..65535")
	}
	if c.Services.MetricsPort <= 0 || c.Services.MetricsPort > 65535 {
		problems = append(problems, "METRICS_PORT must be in 1..65535")
	}

	// Marketplace
	if c.Marketplace.TaxRateBps > 10000 {
		problems = append(problems, "MARKET_TAX_RATE_BPS must be in 0..10000")
	}
	if len(c.Marketplace.Currency) != 3 {
		problems = append(problems, "MARKET_CURRENCY must be a 3-letter code")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}
