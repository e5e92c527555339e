package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/liquidation-engine/internal/model"
)

var allKeys = []string{
	"PORT", "DATABASE_URL", "REDIS_URL", "CACHE_TTL", "LOG_LEVEL",
	"ORACLE_INTERVAL", "MONITOR_INTERVAL", "EXECUTOR_INTERVAL",
	"INSURANCE_FUND_BALANCE", "EVENT_BUFFER", "SEED_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Storage.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.Storage.CacheTTL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Engine.OracleInterval)
	assert.Equal(t, time.Second, cfg.Engine.MonitorInterval)
	assert.Equal(t, 1200*time.Millisecond, cfg.Engine.ExecutorInterval)
	assert.Equal(t, int64(1_000_000), cfg.Engine.InsuranceFund)
	assert.Equal(t, 256, cfg.Engine.EventBuffer)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, DefaultSeed(), cfg.Seed)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/liq")
	t.Setenv("EXECUTOR_INTERVAL", "250ms")
	t.Setenv("INSURANCE_FUND_BALANCE", "42")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/liq", cfg.Storage.DatabaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.ExecutorInterval)
	assert.Equal(t, int64(42), cfg.Engine.InsuranceFund)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"PORT":                   "70000",
		"MONITOR_INTERVAL":       "0s",
		"ORACLE_INTERVAL":        "soon",
		"INSURANCE_FUND_BALANCE": "-1",
		"EVENT_BUFFER":           "0",
		"LOG_LEVEL":              "loud",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load()
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLoad_SeedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "seed.json")
	body := `{
		"prices": [{"symbol": "SOL-USD", "price": 150000000, "drift": -1000}],
		"positions": [{
			"owner": "carol", "symbol": "SOL-USD", "side": "short",
			"size": 10, "entry_price": 140000000, "margin": 500000, "leverage": 20
		}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("SEED_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Seed.Prices, 1)
	assert.Equal(t, SeedPrice{Symbol: "SOL-USD", Price: 150 * model.PriceScale, Drift: -1000}, cfg.Seed.Prices[0])
	require.Len(t, cfg.Seed.Positions, 1)
	pos := cfg.Seed.Positions[0]
	assert.Equal(t, "carol", pos.Owner)
	assert.Equal(t, model.Short, pos.Side)
	assert.Equal(t, uint16(20), pos.Leverage)
}

func TestLoadSeed_Errors(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = LoadSeed(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_SeedPrice(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 8080},
		Storage: StorageConfig{CacheTTL: time.Second},
		Engine: EngineConfig{
			OracleInterval:   time.Second,
			MonitorInterval:  time.Second,
			ExecutorInterval: time.Second,
			EventBuffer:      1,
		},
		Seed: Seed{Prices: []SeedPrice{{Symbol: "BTC-USD", Price: -1}}},
	}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg.Seed.Prices[0] = SeedPrice{Symbol: "bitcoin", Price: 1}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg.Seed.Prices[0] = SeedPrice{Symbol: "BTC-USD", Price: 1}
	assert.NoError(t, cfg.Validate())
}
