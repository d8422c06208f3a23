package tonpairs

import (
	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/logger"
	"github.com/raykavin/tonpairs/pkg/storage"
)

// Option is a functional option for configuring a Bot instance
type Option func(*Bot)

// WithStorage sets the storage for the bot, by default the configured driver is opened
func WithStorage(storage storage.Storage) Option {
	return func(bot *Bot) {
		bot.storage = storage
	}
}

// WithNotifier replaces the Telegram transport
func WithNotifier(notifier core.NotifierWithStart) Option {
	return func(bot *Bot) {
		bot.notifier = notifier
	}
}

// WithExchange registers or replaces the adapter used for the named exchange
func WithExchange(name core.ExchangeName, exchange core.Exchange) Option {
	return func(bot *Bot) {
		bot.exchanges.Register(name, exchange)
	}
}

// WithSecrets replaces the Vault secret store
func WithSecrets(secrets core.SecretStore) Option {
	return func(bot *Bot) {
		bot.secrets = secrets
	}
}

// WithWallets replaces the wallet service client
func WithWallets(wallets core.WalletService) Option {
	return func(bot *Bot) {
		bot.wallets = wallets
	}
}

// WithLogger sets the logger, DefaultLog otherwise
func WithLogger(log logger.Logger) Option {
	return func(bot *Bot) {
		bot.log = log
	}
}
