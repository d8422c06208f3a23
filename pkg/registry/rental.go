package registry

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/ton"
)

// ErrTrialUsed is returned when the account or device already had a trial
var ErrTrialUsed = errors.New("free trial already used")

// SetRentalStatus enables or disables the rental of the user
func (r *Registry) SetRentalStatus(ctx context.Context, userID int64, enabled bool) error {
	_, err := r.update(ctx, userID, false, func(account *core.UserAccount) error {
		account.Rental.Enabled = enabled
		return nil
	})
	return err
}

// SetRentalExpiry sets the rental expiry of target. When admins are
// configured only they may change it.
func (r *Registry) SetRentalExpiry(ctx context.Context, actorID, targetID int64, expiry time.Time) error {
	if len(r.admins) > 0 && !slices.Contains(r.admins, actorID) {
		return core.NewValidationError("user", "only administrators can set the rental time")
	}

	_, err := r.update(ctx, targetID, false, func(account *core.UserAccount) error {
		account.Rental.Expiry = &expiry
		return nil
	})
	return err
}

// SetRentalAmount sets the rental price in USDT
func (r *Registry) SetRentalAmount(ctx context.Context, userID int64, amount float64) error {
	if amount < 0 {
		return core.NewValidationError("amount", "must not be negative")
	}

	_, err := r.update(ctx, userID, false, func(account *core.UserAccount) error {
		account.Rental.PaymentAmount = &amount
		return nil
	})
	return err
}

// SetRentalWallet sets the address rental payments are sent to
func (r *Registry) SetRentalWallet(ctx context.Context, userID int64, address string) error {
	if err := ton.ValidateAddress(address); err != nil {
		return err
	}

	_, err := r.update(ctx, userID, false, func(account *core.UserAccount) error {
		account.Rental.WalletAddress = address
		return nil
	})
	return err
}

// StartTrial opens the free trial window once per account and per device
func (r *Registry) StartTrial(ctx context.Context, userID int64, deviceID string) (time.Time, error) {
	users, err := r.store.Users(ctx)
	if err != nil {
		return time.Time{}, err
	}

	for _, user := range users {
		if user.UserID != userID && user.Trial.DeviceID == deviceID {
			return time.Time{}, ErrTrialUsed
		}
	}

	expiry := r.now().Add(r.trialTTL)
	_, err = r.update(ctx, userID, false, func(account *core.UserAccount) error {
		if account.Trial.DeviceID != "" {
			return ErrTrialUsed
		}
		account.Trial = core.Trial{DeviceID: deviceID, Expiry: &expiry}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	return expiry, nil
}
