package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	scanerr "sjsage522/pricewatch/pkg/errors"

	"github.com/shopspring/decimal"
)

// Worker count bounds accepted by Validate
const (
	MinWorkers = 1
	MaxWorkers = 5
)

// Config represents the application configuration
type Config struct {
	// Scan configuration
	BaseURL                string
	MaxPrice               decimal.Decimal
	CheckInterval          time.Duration
	ParallelWorkers        int
	ExcludedURLPatterns    []string
	RequestDelay           time.Duration
	MaxProductsPerCategory int
	MaxPagesPerCategory    int
	SortQuery              string

	// Ledger configuration
	LedgerBackend string
	LedgerPath    string
	LedgerKey     string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration; empty uses the in-process cache
	MemcacheAddr string
	BlockTime    time.Duration

	// Environment
	Environment string

	// parse errors collected by LoadConfig, reported by Validate
	problems []string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	c := &Config{}

	c.BaseURL = strings.TrimSpace(getEnv("BASE_URL", ""))
	c.MaxPrice = c.decimalEnv("MAX_PRICE", "10.0")
	c.CheckInterval = time.Duration(c.intEnv("CHECK_INTERVAL_SECONDS", 60)) * time.Second
	c.ParallelWorkers = c.intEnv("PARALLEL_WORKERS", 3)
	c.ExcludedURLPatterns = splitList(getEnv("EXCLUDED_URL_PATTERNS", "gift-card,voucher,gift-certificate"))
	c.RequestDelay = time.Duration(c.intEnv("REQUEST_DELAY_MS", 400)) * time.Millisecond
	c.MaxProductsPerCategory = c.intEnv("MAX_PRODUCTS_PER_CATEGORY", 50)
	c.MaxPagesPerCategory = c.intEnv("MAX_PAGES_PER_CATEGORY", 5)
	c.SortQuery = getEnv("SORT_QUERY", "sort_by=price_asc")

	c.LedgerBackend = strings.ToLower(getEnv("LEDGER_BACKEND", "file"))
	c.LedgerPath = getEnv("LEDGER_PATH", defaultLedgerPath(c.LedgerBackend))
	c.LedgerKey = getEnv("LEDGER_KEY", "pricewatch:seen")

	c.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	c.RedisDB = c.intEnv("REDIS_DB", 0)
	c.RedisStream = getEnv("REDIS_STREAM", "pricewatch")
	c.RedisStreamCount = c.intEnv("REDIS_STREAM_COUNT", 1)
	c.RedisStreamMaxLength = c.intEnv("REDIS_STREAM_MAX_LENGTH", 1000)

	c.MemcacheAddr = getEnv("MEMCACHE_ADDR", "localhost:11211")
	c.BlockTime = time.Duration(c.intEnv("BLOCK_TIME_SECONDS", 60)) * time.Second

	c.Environment = getEnv("PRICEWATCH_ENVIRONMENT", "development")
	return c
}

// Validate checks the configuration before a run starts
func (c *Config) Validate() error {
	problems := append([]string(nil), c.problems...)

	if c.BaseURL == "" {
		problems = append(problems, "BASE_URL is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		problems = append(problems, fmt.Sprintf("BASE_URL %q must be an absolute http(s) URL", c.BaseURL))
	}
	if c.MaxPrice.IsNegative() {
		problems = append(problems, "MAX_PRICE must not be negative")
	}
	if c.CheckInterval <= 0 {
		problems = append(problems, "CHECK_INTERVAL_SECONDS must be positive")
	}
	if c.ParallelWorkers < MinWorkers || c.ParallelWorkers > MaxWorkers {
		problems = append(problems, fmt.Sprintf("PARALLEL_WORKERS must be between %d and %d", MinWorkers, MaxWorkers))
	}
	if c.RequestDelay < 0 {
		problems = append(problems, "REQUEST_DELAY_MS must not be negative")
	}
	if c.MaxProductsPerCategory < 0 {
		problems = append(problems, "MAX_PRODUCTS_PER_CATEGORY must not be negative")
	}
	if c.MaxPagesPerCategory < 1 {
		problems = append(problems, "MAX_PAGES_PER_CATEGORY must be at least 1")
	}
	if _, err := url.ParseQuery(c.SortQuery); err != nil {
		problems = append(problems, fmt.Sprintf("SORT_QUERY %q is not a query string", c.SortQuery))
	}
	switch c.LedgerBackend {
	case "file", "sqlite":
		if c.LedgerPath == "" {
			problems = append(problems, "LEDGER_PATH is required for the "+c.LedgerBackend+" ledger")
		}
	case "redis":
		if c.LedgerKey == "" {
			problems = append(problems, "LEDGER_KEY is required for the redis ledger")
		}
	default:
		problems = append(problems, fmt.Sprintf("LEDGER_BACKEND %q must be file, redis or sqlite", c.LedgerBackend))
	}
	if c.RedisStreamCount < 1 {
		problems = append(problems, "REDIS_STREAM_COUNT must be at least 1")
	}
	if c.BlockTime <= 0 {
		problems = append(problems, "BLOCK_TIME_SECONDS must be positive")
	}

	if len(problems) > 0 {
		return scanerr.NewConfiguration("invalid configuration", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func defaultLedgerPath(backend string) string {
	if backend == "sqlite" {
		return "data/seen_products.db"
	}
	return "data/seen_products.json"
}

func (c *Config) intEnv(key string, defaultValue int) int {
	raw := getEnv(key, strconv.Itoa(defaultValue))
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s=%q is not an integer", key, raw))
		return defaultValue
	}
	return v
}

func (c *Config) decimalEnv(key, defaultValue string) decimal.Decimal {
	raw := getEnv(key, defaultValue)
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s=%q is not a number", key, raw))
		return decimal.RequireFromString(defaultValue)
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
