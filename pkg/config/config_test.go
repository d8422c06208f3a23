package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/storage"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TONPAIRS_TELEGRAM_TOKEN", "token")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "token", cfg.Telegram.Token)
	require.Equal(t, time.Minute, cfg.Scheduler.Interval)
	require.Equal(t, 30*time.Minute, cfg.TrialTTL)
	require.Equal(t, time.Second, cfg.Accounts.Delay)
	require.Equal(t, core.DefaultAccountDefaults.TradingLimits, cfg.Accounts.TradingLimits)
	require.Equal(t, core.ExchangeDeDust, cfg.Accounts.Exchange)
	require.Equal(t, storage.DriverBuntDB, cfg.Storage.Driver)
	require.False(t, cfg.Vault.Enabled)
	require.Empty(t, cfg.Admins)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("TONPAIRS_TELEGRAM_TOKEN", "token")
	t.Setenv("TONPAIRS_TRADE_INTERVAL", "1d")
	t.Setenv("TONPAIRS_TRIAL_DURATION", "2h")
	t.Setenv("TONPAIRS_TRADE_EXCHANGE", "STONFI")
	t.Setenv("TONPAIRS_STORAGE_DRIVER", "sqlite")
	t.Setenv("TONPAIRS_ADMINS", "1, 2,3")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	require.Equal(t, 2*time.Hour, cfg.TrialTTL)
	require.Equal(t, core.ExchangeStonFi, cfg.Accounts.Exchange)
	require.Equal(t, storage.DriverSQLite, cfg.Storage.Driver)
	require.Equal(t, []int64{1, 2, 3}, cfg.Admins)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tonpairs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: file-token
trade:
  min: 2
  max: 5
admins: [7, 8]
`), 0o600))

	// environment wins over the file
	t.Setenv("TONPAIRS_TRADE_MAX", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "file-token", cfg.Telegram.Token)
	require.Equal(t, core.TradingLimits{Min: 2, Max: 9}, cfg.Accounts.TradingLimits)
	require.Equal(t, []int64{7, 8}, cfg.Admins)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("TONPAIRS_TRADE_INTERVAL", "soon")
		_, err := Load("")
		require.ErrorContains(t, err, "trade.interval")
	})

	t.Run("bad admin", func(t *testing.T) {
		t.Setenv("TONPAIRS_ADMINS", "root")
		_, err := Load("")
		require.ErrorContains(t, err, "invalid admin id")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Setenv("TONPAIRS_TELEGRAM_TOKEN", "token")
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"token", func(c *Config) { c.Telegram.Token = "" }, "telegram token"},
		{"interval", func(c *Config) { c.Scheduler.Interval = 0 }, "trade interval"},
		{"driver", func(c *Config) { c.Storage.Driver = "postgres" }, "storage driver"},
		{"limits", func(c *Config) { c.Accounts.TradingLimits = core.TradingLimits{Min: 5, Max: 1} }, "trade limits"},
		{"vault", func(c *Config) { c.Vault.Enabled = true }, "vault address"},
		{"exchange", func(c *Config) { c.Accounts.Exchange = "uniswap" }, "trade exchange"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			var validation *core.ValidationError
			require.ErrorAs(t, err, &validation)
			require.Equal(t, tt.field, validation.Field)
		})
	}
}
