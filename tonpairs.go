// Package tonpairs assembles the trading bot: storage, registry, DEX
// adapters, the trading scheduler and the Telegram transport.
package tonpairs

import (
	"context"
	"fmt"
	"net/http"

	"github.com/raykavin/tonpairs/pkg/config"
	"github.com/raykavin/tonpairs/pkg/conversation"
	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/exchange"
	"github.com/raykavin/tonpairs/pkg/logger"
	"github.com/raykavin/tonpairs/pkg/logger/zerolog"
	"github.com/raykavin/tonpairs/pkg/notification"
	"github.com/raykavin/tonpairs/pkg/registry"
	"github.com/raykavin/tonpairs/pkg/rest"
	"github.com/raykavin/tonpairs/pkg/scheduler"
	"github.com/raykavin/tonpairs/pkg/secrets"
	"github.com/raykavin/tonpairs/pkg/storage"
	"github.com/raykavin/tonpairs/pkg/ton"
)

// Bot represents the running chat trading bot
type Bot struct {
	config    *config.Config
	storage   storage.Storage
	secrets   core.SecretStore
	wallets   core.WalletService
	exchanges *exchange.Exchanges
	notifier  core.NotifierWithStart
	log       logger.Logger

	registry   *registry.Registry
	machine    *conversation.Machine
	controller *scheduler.Controller
}

// NewLogger creates a logger from the log section of the configuration
func NewLogger(cfg config.LogConfig) (logger.Logger, error) {
	log, err := zerolog.New(zerolog.Config{
		Level:      cfg.Level,
		TimeFormat: cfg.TimeFormat,
		Colored:    cfg.Colored,
		JSON:       cfg.JSON,
	})
	if err != nil {
		return nil, err
	}
	return zerolog.NewAdapter(log), nil
}

// NewBot creates a bot from the configuration. Components not replaced by
// options are built from the configuration.
func NewBot(ctx context.Context, cfg *config.Config, options ...Option) (*Bot, error) {
	bot := &Bot{
		config:    cfg,
		exchanges: exchange.NewExchanges(),
		log:       DefaultLog,
	}

	// Apply custom options
	for _, option := range options {
		option(bot)
	}

	if err := bot.initializeStorage(); err != nil {
		return nil, err
	}

	if err := bot.initializeWallets(); err != nil {
		return nil, err
	}

	bot.initializeExchanges()

	bot.registry = registry.New(bot.storage, bot.log.WithField("component", "registry"),
		registry.WithDefaults(cfg.Accounts),
		registry.WithWallets(bot.wallets, bot.secrets),
		registry.WithSweepAmount(cfg.Transfer.SweepAmount),
		registry.WithTrial(cfg.TrialTTL),
		registry.WithAdmins(cfg.Admins...),
	)

	bot.machine = conversation.NewMachine(bot.registry, bot.log.WithField("component", "conversation"),
		conversation.WithTrades(bot.storage),
	)

	if err := bot.initializeNotifications(); err != nil {
		return nil, err
	}

	tradeScheduler := scheduler.New(bot.storage, bot.exchanges, bot.log.WithField("component", "scheduler"),
		scheduler.WithWorkers(cfg.Scheduler.Workers),
		scheduler.WithTradeStorage(bot.storage),
		scheduler.WithNotifier(bot.notifier),
		scheduler.WithLocker(bot.registry.Locker()),
	)
	bot.controller = scheduler.NewController(tradeScheduler, cfg.Scheduler.Interval, bot.log)

	return bot, nil
}

// initializeStorage opens the configured store
func (b *Bot) initializeStorage() error {
	if b.storage != nil {
		return nil
	}

	store, err := storage.Open(b.config.Storage.Driver, b.config.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	b.storage = store
	return nil
}

// initializeWallets sets up the secret store and the wallet service client
func (b *Bot) initializeWallets() error {
	if b.secrets == nil {
		vault, err := secrets.NewVault(b.config.Vault)
		if err != nil {
			return err
		}
		if !b.config.Vault.Enabled {
			b.log.Warn("Vault is disabled, signing material is kept in memory only.")
		}
		b.secrets = vault
	}

	if b.wallets == nil {
		if b.config.Wallet.URL == "" {
			b.log.Warn("No wallet service configured, wallet commands are unavailable.")
			return nil
		}

		options := []rest.Option{
			rest.WithAttempts(b.config.Exchange.Attempts),
			rest.WithLogger(b.log.WithField("component", "wallet")),
		}
		if b.config.Wallet.APIKey != "" {
			options = append(options, rest.WithHeader("X-API-Key", b.config.Wallet.APIKey))
		}
		b.wallets = ton.NewClient(rest.New(b.config.Wallet.URL, options...))
	}

	return nil
}

// initializeExchanges registers the DEX adapters not given as options. Quoted
// swaps are executed by the wallet service when it can sign them.
func (b *Bot) initializeExchanges() {
	cfg := b.config.Exchange
	httpClient := &http.Client{Timeout: cfg.Timeout}

	newClient := func(baseURL, name string) *rest.Client {
		return rest.New(baseURL,
			rest.WithHTTPClient(httpClient),
			rest.WithAttempts(cfg.Attempts),
			rest.WithLogger(b.log.WithField("exchange", name)),
		)
	}

	options := []exchange.Option{
		exchange.WithSlippage(cfg.Slippage),
		exchange.WithLogger(b.log.WithField("component", "exchange")),
	}
	if executor, ok := b.wallets.(exchange.Executor); ok {
		options = append(options, exchange.WithExecutor(executor))
	}

	if _, err := b.exchanges.Get(core.ExchangeStonFi); err != nil {
		b.exchanges.Register(core.ExchangeStonFi, exchange.NewStonFi(newClient(cfg.StonFiURL, "stonfi"), options...))
	}
	if _, err := b.exchanges.Get(core.ExchangeDeDust); err != nil {
		b.exchanges.Register(core.ExchangeDeDust, exchange.NewDeDust(newClient(cfg.DeDustURL, "dedust"), options...))
	}
}

// initializeNotifications sets up the Telegram transport
func (b *Bot) initializeNotifications() error {
	if b.notifier != nil {
		return nil
	}

	telegram, err := notification.NewTelegram(b.machine, b.config.Telegram, b.log.WithField("component", "telegram"))
	if err != nil {
		return err
	}
	b.notifier = telegram
	return nil
}

// Registry returns the account registry
func (b *Bot) Registry() *registry.Registry {
	return b.registry
}

// Machine returns the conversation machine
func (b *Bot) Machine() *conversation.Machine {
	return b.machine
}

// Run starts the transport and the trading scheduler and blocks until the
// context is cancelled. In-flight orders finish before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	b.notifier.Start()
	b.controller.Start(ctx)

	b.log.Info("Bot is running.")
	<-ctx.Done()

	b.controller.Stop()
	b.notifier.Stop()

	if err := b.storage.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	b.log.Info("Bot stopped.")
	return nil
}
