// Package registry owns every mutation of user accounts. Each operation runs
// a load, mutate, save cycle while holding the user's lock, so chat commands
// and the scheduler never observe a half-applied change.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/StudioSol/set"
	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/logger"
	"github.com/raykavin/tonpairs/pkg/ton"
	"github.com/samber/lo"
)

const saveAttempts = 3

// PairView is the read projection of a configured pair
type PairView struct {
	Wallet    string
	Contract  string
	MinAmount float64
	MaxAmount float64
	Active    bool
	Generated bool
}

// Registry owns the user accounts: pairs, settings, wallets and rental state.
// Every change runs under the per-user lock.
type Registry struct {
	store    core.UserStore
	locks    *Locker
	defaults core.AccountDefaults
	log      logger.Logger
	now      func() time.Time

	wallets     core.WalletService
	secrets     core.SecretStore
	sweepAmount float64
	trialTTL    time.Duration
	admins      []int64
}

// Option is a function that configures a Registry
type Option func(*Registry)

// WithDefaults sets the values of newly created accounts
func WithDefaults(defaults core.AccountDefaults) Option {
	return func(r *Registry) {
		r.defaults = defaults
	}
}

// WithWallets enables wallet creation, connection and transfers
func WithWallets(wallets core.WalletService, secrets core.SecretStore) Option {
	return func(r *Registry) {
		r.wallets = wallets
		r.secrets = secrets
	}
}

// WithSweepAmount sets the amount moved from each wallet by TransferFunds
func WithSweepAmount(amount float64) Option {
	return func(r *Registry) {
		r.sweepAmount = amount
	}
}

// WithTrial sets the free trial length
func WithTrial(ttl time.Duration) Option {
	return func(r *Registry) {
		r.trialTTL = ttl
	}
}

// WithAdmins restricts cross-user rental changes to the given users
func WithAdmins(admins ...int64) Option {
	return func(r *Registry) {
		r.admins = admins
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a registry on top of the given store
func New(store core.UserStore, log logger.Logger, options ...Option) *Registry {
	registry := &Registry{
		store:       store,
		locks:       NewLocker(),
		defaults:    core.DefaultAccountDefaults,
		log:         log,
		now:         time.Now,
		sweepAmount: 10,
		trialTTL:    30 * time.Minute,
	}

	for _, option := range options {
		option(registry)
	}

	return registry
}

// Locker exposes the per-user locks so other components can read consistent
// snapshots
func (r *Registry) Locker() *Locker {
	return r.locks
}

func accountNotFound(userID int64) error {
	return &core.NotFoundError{Resource: "account", Key: strconv.FormatInt(userID, 10), Err: core.ErrUserNotFound}
}

func pairNotFound(wallet string) error {
	return &core.NotFoundError{Resource: "pair", Key: wallet, Err: core.ErrPairNotFound}
}

// update applies fn to the user's account and saves it. A missing account is
// created when create is set, otherwise a NotFoundError is returned. Version
// conflicts from a concurrent writer outside this process are retried on a
// fresh copy.
func (r *Registry) update(ctx context.Context, userID int64, create bool, fn func(*core.UserAccount) error) (*core.UserAccount, error) {
	unlock := r.locks.Lock(userID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		account, err := r.store.FindUser(ctx, userID)
		switch {
		case errors.Is(err, core.ErrUserNotFound):
			if !create {
				return nil, accountNotFound(userID)
			}
			account = core.NewUserAccount(userID, r.defaults)
		case err != nil:
			return nil, fmt.Errorf("failed to load account: %w", err)
		}

		if err := fn(account); err != nil {
			return nil, err
		}

		err = r.store.SaveUser(ctx, account)
		if errors.Is(err, core.ErrVersionConflict) && attempt < saveAttempts {
			r.log.WithField("user_id", userID).Warn("version conflict, retrying update")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save account: %w", err)
		}

		return account.Clone(), nil
	}
}

// view loads a snapshot of the account under the user's lock
func (r *Registry) view(ctx context.Context, userID int64) (*core.UserAccount, error) {
	unlock := r.locks.Lock(userID)
	defer unlock()

	account, err := r.store.FindUser(ctx, userID)
	if errors.Is(err, core.ErrUserNotFound) {
		return nil, accountNotFound(userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return account, nil
}

// Ensure returns the user's account, creating it on first contact
func (r *Registry) Ensure(ctx context.Context, userID int64) (*core.UserAccount, bool, error) {
	account, err := r.view(ctx, userID)
	if err == nil {
		return account, false, nil
	}
	if !core.IsNotFound(err) {
		return nil, false, err
	}

	created := false
	account, err = r.update(ctx, userID, true, func(account *core.UserAccount) error {
		created = account.Version == 0
		return nil
	})
	return account, created, err
}

// Account returns a snapshot of the user's account
func (r *Registry) Account(ctx context.Context, userID int64) (*core.UserAccount, error) {
	return r.view(ctx, userID)
}

// AddPair upserts the pair keyed by wallet. An empty wallet means the
// contract address itself is the key. Bounds default to the account's
// trading limits.
func (r *Registry) AddPair(ctx context.Context, userID int64, wallet, contract string) (PairView, error) {
	if err := ton.ValidatePairAddress(contract); err != nil {
		return PairView{}, err
	}

	if wallet == "" {
		wallet = contract
	} else if err := ton.ValidateAddress(wallet); err != nil {
		return PairView{}, err
	}

	account, err := r.update(ctx, userID, true, func(account *core.UserAccount) error {
		pair := account.Pairs[wallet]
		pair.ContractAddress = contract
		if !pair.HasBounds() {
			pair.MinAmount = account.TradingLimits.Min
			pair.MaxAmount = account.TradingLimits.Max
		}
		account.Pairs[wallet] = pair
		return nil
	})
	if err != nil {
		return PairView{}, err
	}

	r.log.WithFields(logger.Fields{"user_id": userID, "wallet": wallet}).Info("pair added")
	return newPairView(account, wallet), nil
}

// RemovePair deletes the pair and drops it from the active set
func (r *Registry) RemovePair(ctx context.Context, userID int64, wallet string) error {
	_, err := r.update(ctx, userID, false, func(account *core.UserAccount) error {
		if _, ok := account.Pairs[wallet]; !ok {
			return pairNotFound(wallet)
		}
		delete(account.Pairs, wallet)
		account.ActivePairs = lo.Without(account.ActivePairs, wallet)
		return nil
	})
	return err
}

// StartPair adds the wallet to the active set. Starting an active pair is a
// no-op.
func (r *Registry) StartPair(ctx context.Context, userID int64, wallet string) error {
	_, err := r.update(ctx, userID, false, func(account *core.UserAccount) error {
		if _, ok := account.Pairs[wallet]; !ok {
			return pairNotFound(wallet)
		}

		active := set.NewLinkedHashSetString(account.ActivePairs...)
		active.Add(wallet)
		account.ActivePairs = toSlice(active)
		return nil
	})
	return err
}

// StopPair removes every occurrence of the wallet from the active set
func (r *Registry) StopPair(ctx context.Context, userID int64, wallet string) error {
	_, err := r.update(ctx, userID, false, func(account *core.UserAccount) error {
		if _, ok := account.Pairs[wallet]; !ok && !account.IsActive(wallet) {
			return pairNotFound(wallet)
		}
		account.ActivePairs = lo.Without(account.ActivePairs, wallet)
		return nil
	})
	return err
}

// ListPairs returns every configured pair sorted by wallet. An unknown user
// has no pairs.
func (r *Registry) ListPairs(ctx context.Context, userID int64) ([]PairView, error) {
	account, err := r.view(ctx, userID)
	if core.IsNotFound(err) {
		return []PairView{}, nil
	}
	if err != nil {
		return nil, err
	}

	wallets := lo.Keys(account.Pairs)
	sort.Strings(wallets)

	return lo.Map(wallets, func(wallet string, _ int) PairView {
		return newPairView(account, wallet)
	}), nil
}

// StatusPairs returns the active pairs in activation order
func (r *Registry) StatusPairs(ctx context.Context, userID int64) ([]PairView, error) {
	account, err := r.view(ctx, userID)
	if core.IsNotFound(err) {
		return []PairView{}, nil
	}
	if err != nil {
		return nil, err
	}

	return lo.Map(ActiveWallets(account), func(wallet string, _ int) PairView {
		return newPairView(account, wallet)
	}), nil
}

// Wallets returns the wallet keys of the user sorted alphabetically
func (r *Registry) Wallets(ctx context.Context, userID int64) ([]string, error) {
	pairs, err := r.ListPairs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(pairs, func(pair PairView, _ int) string { return pair.Wallet }), nil
}

// ActiveWallets returns the deduplicated active wallets that still have a
// pair, in activation order
func ActiveWallets(account *core.UserAccount) []string {
	active := set.NewLinkedHashSetString(account.ActivePairs...)
	return lo.Filter(toSlice(active), func(wallet string, _ int) bool {
		_, ok := account.Pairs[wallet]
		return ok
	})
}

func toSlice(values *set.LinkedHashSetString) []string {
	out := make([]string, 0)
	for value := range values.Iter() {
		out = append(out, value)
	}
	return out
}

func newPairView(account *core.UserAccount, wallet string) PairView {
	pair := account.Pairs[wallet]
	return PairView{
		Wallet:    wallet,
		Contract:  pair.ContractAddress,
		MinAmount: pair.MinAmount,
		MaxAmount: pair.MaxAmount,
		Active:    account.IsActive(wallet),
		Generated: pair.PrivateKey != "",
	}
}
