// Package config loads the engine configuration from the environment.
//
// An optional .env file in the working directory is loaded first; variables
// already set in the process environment take precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/atmx/liquidation-engine/internal/contract"
	"github.com/atmx/liquidation-engine/internal/model"
)

// ErrInvalidConfig wraps every validation and parse failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all runtime settings of the liquidation engine.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Engine   EngineConfig
	LogLevel slog.Level
	Seed     Seed
}

// ServerConfig - HTTP listener settings.
type ServerConfig struct {
	Port int
}

// StorageConfig selects the liquidation history backend.
type StorageConfig struct {
	DatabaseURL string // empty → in-memory store
	RedisURL    string // optional cache in front of PostgreSQL
	CacheTTL    time.Duration
}

// EngineConfig - loop periods and shared resource sizing.
type EngineConfig struct {
	OracleInterval   time.Duration
	MonitorInterval  time.Duration
	ExecutorInterval time.Duration
	InsuranceFund    int64
	EventBuffer      int
}

// SeedPrice is one oracle feed: a starting mark and a per-refresh drift,
// both scaled by model.PriceScale.
type SeedPrice struct {
	Symbol string `json:"symbol"`
	Price  int64  `json:"price"`
	Drift  int64  `json:"drift"`
}

// Seed is the starting state loaded into the oracle and the position book
// before the loops begin.
type Seed struct {
	Prices    []SeedPrice      `json:"prices"`
	Positions []model.Position `json:"positions"`
}

// DefaultSeed is used when no seed file is configured. The BTC feed drifts
// down fast enough to liquidate the long positions within a few minutes.
func DefaultSeed() Seed {
	const s = model.PriceScale
	return Seed{
		Prices: []SeedPrice{
			{Symbol: "BTC-USD", Price: 50_000 * s, Drift: -500_000},
			{Symbol: "ETH-USD", Price: 2_800 * s, Drift: -20_000},
		},
		Positions: []model.Position{
			{Owner: "alice", Symbol: "BTC-USD", Side: model.Long, Size: 100, EntryPrice: 65_000 * s, Margin: 5_000, Leverage: 100},
			{Owner: "bob", Symbol: "ETH-USD", Side: model.Short, Size: 200, EntryPrice: 3_000 * s, Margin: 3_000, Leverage: 50},
			{Owner: "demo-user", Symbol: "BTC-USD", Side: model.Long, Size: 5_000, EntryPrice: 50_000 * s, Margin: 1_000, Leverage: 100},
		},
	}
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "err", err)
	}

	var p parser
	cfg := &Config{
		Server: ServerConfig{
			Port: p.int("PORT", 8080),
		},
		Storage: StorageConfig{
			DatabaseURL: getEnv("DATABASE_URL", ""),
			RedisURL:    getEnv("REDIS_URL", ""),
			CacheTTL:    p.duration("CACHE_TTL", 30*time.Second),
		},
		Engine: EngineConfig{
			OracleInterval:   p.duration("ORACLE_INTERVAL", 1500*time.Millisecond),
			MonitorInterval:  p.duration("MONITOR_INTERVAL", 1000*time.Millisecond),
			ExecutorInterval: p.duration("EXECUTOR_INTERVAL", 1200*time.Millisecond),
			InsuranceFund:    p.int64("INSURANCE_FUND_BALANCE", 1_000_000),
			EventBuffer:      p.int("EVENT_BUFFER", 256),
		},
		LogLevel: p.level("LOG_LEVEL", slog.LevelInfo),
	}
	if p.err != nil {
		return nil, p.err
	}

	if path := getEnv("SEED_FILE", ""); path != "" {
		seed, err := LoadSeed(path)
		if err != nil {
			return nil, err
		}
		cfg.Seed = seed
	} else {
		cfg.Seed = DefaultSeed()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks numeric ranges and seed price symbols.
func (c *Config) Validate() error {
	e := c.Engine
	switch {
	case c.Server.Port < 1 || c.Server.Port > 65535:
		return fmt.Errorf("%w: PORT must be between 1 and 65535, got %d", ErrInvalidConfig, c.Server.Port)
	case c.Storage.CacheTTL <= 0:
		return fmt.Errorf("%w: CACHE_TTL must be positive, got %v", ErrInvalidConfig, c.Storage.CacheTTL)
	case e.OracleInterval <= 0:
		return fmt.Errorf("%w: ORACLE_INTERVAL must be positive, got %v", ErrInvalidConfig, e.OracleInterval)
	case e.MonitorInterval <= 0:
		return fmt.Errorf("%w: MONITOR_INTERVAL must be positive, got %v", ErrInvalidConfig, e.MonitorInterval)
	case e.ExecutorInterval <= 0:
		return fmt.Errorf("%w: EXECUTOR_INTERVAL must be positive, got %v", ErrInvalidConfig, e.ExecutorInterval)
	case e.InsuranceFund < 0:
		return fmt.Errorf("%w: INSURANCE_FUND_BALANCE cannot be negative, got %d", ErrInvalidConfig, e.InsuranceFund)
	case e.EventBuffer <= 0:
		return fmt.Errorf("%w: EVENT_BUFFER must be positive, got %d", ErrInvalidConfig, e.EventBuffer)
	}
	for _, sp := range c.Seed.Prices {
		if err := contract.Validate(sp.Symbol); err != nil {
			return fmt.Errorf("%w: seed price: %w", ErrInvalidConfig, err)
		}
		if sp.Price < 0 {
			return fmt.Errorf("%w: seed price for %s cannot be negative, got %d", ErrInvalidConfig, sp.Symbol, sp.Price)
		}
	}
	return nil
}

// LoadSeed reads a JSON seed file. Positions are validated later, when the
// book is seeded.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("%w: read seed file: %w", ErrInvalidConfig, err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("%w: parse seed file %s: %w", ErrInvalidConfig, path, err)
	}
	return seed, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser reads typed variables and keeps the first parse error.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, key, value, err)
	}
}

func (p *parser) int(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		p.fail(key, valueStr, err)
		return defaultValue
	}
	return value
}

func (p *parser) int64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		p.fail(key, valueStr, err)
		return defaultValue
	}
	return value
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		p.fail(key, valueStr, err)
		return defaultValue
	}
	return value
}

func (p *parser) level(key string, defaultValue slog.Level) slog.Level {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(valueStr))); err != nil {
		p.fail(key, valueStr, err)
		return defaultValue
	}
	return level
}
