// Package config loads the bot settings from a .env file, an optional config
// file and TONPAIRS_* environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/exchange"
	"github.com/raykavin/tonpairs/pkg/secrets"
	"github.com/raykavin/tonpairs/pkg/storage"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "TONPAIRS"

// Config is the complete configuration of a bot process
type Config struct {
	core.Settings
	Storage  StorageConfig
	Wallet   WalletConfig
	Exchange ExchangeConfig
	Vault    secrets.Config
	Log      LogConfig
}

// StorageConfig selects the persistence driver
type StorageConfig struct {
	Driver string
	Path   string
}

// WalletConfig points at the wallet service broadcasting signed messages
type WalletConfig struct {
	URL    string
	APIKey string
}

// ExchangeConfig holds the DEX API endpoints
type ExchangeConfig struct {
	StonFiURL string
	DeDustURL string
	Slippage  float64
	Attempts  int
	Timeout   time.Duration
}

// LogConfig mirrors the logger settings
type LogConfig struct {
	Level      string
	TimeFormat string
	Colored    bool
	JSON       bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.poll_timeout", "10s")
	v.SetDefault("telegram.rate_limit", 2.0)
	v.SetDefault("telegram.rate_limit_burst", 5)

	v.SetDefault("trade.interval", "1m")
	v.SetDefault("trade.workers", 8)
	v.SetDefault("trade.min", core.DefaultAccountDefaults.TradingLimits.Min)
	v.SetDefault("trade.max", core.DefaultAccountDefaults.TradingLimits.Max)
	v.SetDefault("trade.delay", "1s")
	v.SetDefault("trade.exchange", string(core.DefaultAccountDefaults.Exchange))

	v.SetDefault("transfer.sweep_amount", 10.0)
	v.SetDefault("trial.duration", "30m")

	v.SetDefault("storage.driver", storage.DriverBuntDB)
	v.SetDefault("storage.path", "tonpairs.db")

	v.SetDefault("exchange.stonfi_url", exchange.StonFiAPI)
	v.SetDefault("exchange.dedust_url", exchange.DeDustAPI)
	v.SetDefault("exchange.slippage", 0.01)
	v.SetDefault("exchange.attempts", 3)
	v.SetDefault("exchange.timeout", "15s")

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.prefix", "tonpairs")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.time_format", "2006-01-02 15:04:05")
	v.SetDefault("log.color", true)
	v.SetDefault("log.json", false)
}

// Load reads the configuration. A .env file in the working directory is
// loaded first when present; path, when not empty, names a config file read
// by viper. Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var err error

	cfg := &Config{
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("storage.driver")),
			Path:   v.GetString("storage.path"),
		},
		Wallet: WalletConfig{
			URL:    v.GetString("wallet.url"),
			APIKey: v.GetString("wallet.api_key"),
		},
		Exchange: ExchangeConfig{
			StonFiURL: v.GetString("exchange.stonfi_url"),
			DeDustURL: v.GetString("exchange.dedust_url"),
			Slippage:  v.GetFloat64("exchange.slippage"),
			Attempts:  v.GetInt("exchange.attempts"),
		},
		Vault: secrets.Config{
			Enabled:   v.GetBool("vault.enabled"),
			Address:   v.GetString("vault.address"),
			Token:     v.GetString("vault.token"),
			MountPath: v.GetString("vault.mount_path"),
			Prefix:    v.GetString("vault.prefix"),
			CACert:    v.GetString("vault.ca_cert"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			TimeFormat: v.GetString("log.time_format"),
			Colored:    v.GetBool("log.color"),
			JSON:       v.GetBool("log.json"),
		},
	}

	cfg.Telegram = core.TelegramSettings{
		Token:          v.GetString("telegram.token"),
		RateLimit:      v.GetFloat64("telegram.rate_limit"),
		RateLimitBurst: v.GetInt("telegram.rate_limit_burst"),
	}
	cfg.Scheduler.Workers = v.GetInt("trade.workers")
	cfg.Accounts = core.AccountDefaults{
		TradingLimits: core.TradingLimits{
			Min: v.GetFloat64("trade.min"),
			Max: v.GetFloat64("trade.max"),
		},
		Exchange: core.ExchangeName(strings.ToLower(v.GetString("trade.exchange"))),
	}
	cfg.Transfer.SweepAmount = v.GetFloat64("transfer.sweep_amount")

	for key, target := range map[string]*time.Duration{
		"telegram.poll_timeout": &cfg.Telegram.PollTimeout,
		"trade.interval":        &cfg.Scheduler.Interval,
		"trade.delay":           &cfg.Accounts.Delay,
		"trial.duration":        &cfg.TrialTTL,
		"exchange.timeout":      &cfg.Exchange.Timeout,
	} {
		if *target, err = str2duration.ParseDuration(v.GetString(key)); err != nil {
			return nil, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	}

	if cfg.Admins, err = parseAdmins(v.GetStringSlice("admins")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseAdmins accepts a list or a comma separated string of user ids
func parseAdmins(values []string) ([]int64, error) {
	var admins []int64
	for _, value := range values {
		for _, field := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
			id, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid admin id %q: %w", field, err)
			}
			admins = append(admins, id)
		}
	}
	return admins, nil
}

// Validate reports the first setting that prevents the bot from starting
func (c *Config) Validate() error {
	switch {
	case c.Telegram.Token == "":
		return &core.ValidationError{Field: "telegram token", Message: "is required"}
	case c.Scheduler.Interval <= 0:
		return &core.ValidationError{Field: "trade interval", Message: "must be positive"}
	case c.Storage.Driver != storage.DriverBuntDB && c.Storage.Driver != storage.DriverSQLite:
		return &core.ValidationError{Field: "storage driver", Message: fmt.Sprintf("unknown driver %q", c.Storage.Driver)}
	case c.Accounts.TradingLimits.Min < 0 || c.Accounts.TradingLimits.Min > c.Accounts.TradingLimits.Max:
		return &core.ValidationError{Field: "trade limits", Message: "min must be between 0 and max"}
	case c.Vault.Enabled && c.Vault.Address == "":
		return &core.ValidationError{Field: "vault address", Message: "is required when vault is enabled"}
	}

	if _, err := core.ParseExchange(string(c.Accounts.Exchange)); err != nil {
		return &core.ValidationError{Field: "trade exchange", Message: err.Error()}
	}
	return nil
}
