// Package exchange implements core.Exchange for the TON DEXes supported by
// the bot. Adapters quote the swap on the DEX public API and hand the quoted
// order to an Executor, which signs and broadcasts it.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/logger"
	"github.com/raykavin/tonpairs/pkg/ton"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNoRoute       = errors.New("no swap route")
)

// Executor signs and broadcasts a quoted swap, returning the transaction hash
type Executor interface {
	ExecuteSwap(ctx context.Context, order ton.SwapOrder) (string, error)
}

// OrderError wraps a failed order with its context
type OrderError struct {
	Err    error
	Wallet string
	Token  string
	Amount float64
}

func (o *OrderError) Error() string {
	return fmt.Sprintf("order error for %s on %s (%.4f): %v", o.Wallet, o.Token, o.Amount, o.Err)
}

func (o *OrderError) Unwrap() error {
	return o.Err
}

type config struct {
	executor Executor
	slippage float64
	log      logger.Logger
}

// Option configures an adapter
type Option func(*config)

// WithExecutor forwards quoted swaps to the executor. Without one the
// adapter only quotes and the order carries no transaction hash.
func WithExecutor(executor Executor) Option {
	return func(c *config) {
		c.executor = executor
	}
}

// WithSlippage sets the tolerated slippage as a fraction, 0.01 by default
func WithSlippage(slippage float64) Option {
	return func(c *config) {
		if slippage >= 0 && slippage < 1 {
			c.slippage = slippage
		}
	}
}

// WithLogger sets the adapter logger
func WithLogger(log logger.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

func newConfig(options []Option) config {
	cfg := config{slippage: 0.01}
	for _, option := range options {
		option(&cfg)
	}
	return cfg
}

// execute hands the order to the executor when one is configured
func (c config) execute(ctx context.Context, order ton.SwapOrder) (core.OrderResult, error) {
	if c.log != nil {
		c.log.WithFields(logger.Fields{
			"exchange": order.Exchange,
			"wallet":   order.Wallet,
			"offer":    order.OfferUnits,
			"min_ask":  order.MinAskUnits,
		}).Debug("swap quoted")
	}

	if c.executor == nil {
		return core.OrderResult{}, nil
	}

	hash, err := c.executor.ExecuteSwap(ctx, order)
	if err != nil {
		return core.OrderResult{}, err
	}
	return core.OrderResult{TransactionHash: hash}, nil
}

// minAsk applies the slippage tolerance to an integer amount of nano units
func (c config) minAsk(units string) (string, error) {
	value, err := decimal.NewFromString(units)
	if err != nil {
		return "", fmt.Errorf("invalid ask units %q: %w", units, err)
	}
	return value.Mul(decimal.NewFromFloat(1 - c.slippage)).Truncate(0).String(), nil
}

func validateOrder(wallet, token string, amount float64) error {
	if amount <= 0 {
		return core.NewValidationError("amount", "%v: %.4f", ErrInvalidAmount, amount)
	}
	if err := ton.ValidateAddress(token); err != nil {
		return err
	}
	if wallet == "" {
		return core.NewValidationError("wallet", "must not be empty")
	}
	return nil
}

// Exchanges resolves an adapter by exchange name
type Exchanges struct {
	mu       sync.RWMutex
	adapters map[core.ExchangeName]core.Exchange
}

// NewExchanges creates an empty adapter set
func NewExchanges() *Exchanges {
	return &Exchanges{adapters: make(map[core.ExchangeName]core.Exchange)}
}

// Register binds an adapter to a name, replacing any previous one
func (e *Exchanges) Register(name core.ExchangeName, exchange core.Exchange) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adapters[name] = exchange
}

// Get returns the adapter registered for name
func (e *Exchanges) Get(name core.ExchangeName) (core.Exchange, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	exchange, ok := e.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedExchange, name)
	}
	return exchange, nil
}
