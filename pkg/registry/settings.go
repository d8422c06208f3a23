package registry

import (
	"context"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/logger"
)

// SetExchange selects the DEX used for the user's trades
func (r *Registry) SetExchange(ctx context.Context, userID int64, exchange core.ExchangeName) error {
	if _, err := core.ParseExchange(string(exchange)); err != nil {
		return core.NewValidationError("exchange", "%q is not one of dedust, stonfi", exchange)
	}

	_, err := r.update(ctx, userID, true, func(account *core.UserAccount) error {
		account.Exchange = exchange
		return nil
	})
	return err
}

// SetLimits changes trade-size bounds. Without a wallet the limits become the
// account default and apply to every pair; with a wallet only that pair
// changes.
func (r *Registry) SetLimits(ctx context.Context, userID int64, limits core.TradingLimits, wallet string) error {
	switch {
	case limits.Min < 0:
		return core.NewValidationError("limits", "minimum must not be negative")
	case limits.Max <= 0:
		return core.NewValidationError("limits", "maximum must be positive")
	case limits.Min > limits.Max:
		return core.NewValidationError("limits", "minimum %.4f is above maximum %.4f", limits.Min, limits.Max)
	}

	_, err := r.update(ctx, userID, wallet == "", func(account *core.UserAccount) error {
		if wallet != "" {
			pair, ok := account.Pairs[wallet]
			if !ok {
				return pairNotFound(wallet)
			}
			pair.MinAmount, pair.MaxAmount = limits.Min, limits.Max
			account.Pairs[wallet] = pair
			return nil
		}

		account.TradingLimits = limits
		for key, pair := range account.Pairs {
			pair.MinAmount, pair.MaxAmount = limits.Min, limits.Max
			account.Pairs[key] = pair
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.WithFields(logger.Fields{"user_id": userID, "min": limits.Min, "max": limits.Max}).Debug("limits updated")
	return nil
}

// SetDelay sets the pause between two dispatches of the user, in milliseconds
func (r *Registry) SetDelay(ctx context.Context, userID int64, delay int64) error {
	if delay < 0 {
		return core.NewValidationError("delay", "must not be negative")
	}

	_, err := r.update(ctx, userID, true, func(account *core.UserAccount) error {
		account.Delay = delay
		return nil
	})
	return err
}
