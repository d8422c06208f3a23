package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/logger"
	"github.com/raykavin/tonpairs/pkg/secrets"
	"github.com/raykavin/tonpairs/pkg/ton"
	"github.com/samber/lo"
)

// MaxWallets bounds a single CreateWallets call
const MaxWallets = 50

var errWalletsDisabled = errors.New("wallet service is not configured")

// TransferResult is the outcome of one wallet transfer
type TransferResult struct {
	Wallet string
	TxHash string
	Err    error
}

// TransferReport groups the per-wallet outcomes of a bulk transfer
type TransferReport struct {
	Succeeded []TransferResult
	Failed    []TransferResult
	Skipped   []string
}

// CreateWallets derives count wallets from the mnemonic and stores them as
// pairs holding their private key
func (r *Registry) CreateWallets(ctx context.Context, userID int64, mnemonic []string, count int) ([]core.Wallet, error) {
	if r.wallets == nil {
		return nil, errWalletsDisabled
	}
	if count < 1 || count > MaxWallets {
		return nil, core.NewValidationError("count", "must be between 1 and %d", MaxWallets)
	}

	wallets, err := r.wallets.Derive(mnemonic, count)
	if err != nil {
		return nil, err
	}

	_, err = r.update(ctx, userID, true, func(account *core.UserAccount) error {
		for _, wallet := range wallets {
			pair := account.Pairs[wallet.Address]
			pair.PrivateKey = wallet.PrivateKey
			if !pair.HasBounds() {
				pair.MinAmount = account.TradingLimits.Min
				pair.MaxAmount = account.TradingLimits.Max
			}
			account.Pairs[wallet.Address] = pair
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.WithFields(logger.Fields{"user_id": userID, "count": count}).Info("wallets created")

	return lo.Map(wallets, func(wallet core.Wallet, _ int) core.Wallet {
		return core.Wallet{Address: wallet.Address}
	}), nil
}

// ConnectWallet registers the user's main wallet. The mnemonic is written to
// the secret store, only the address is kept on the account.
func (r *Registry) ConnectWallet(ctx context.Context, userID int64, mnemonic []string) (string, error) {
	if r.wallets == nil || r.secrets == nil {
		return "", errWalletsDisabled
	}

	wallet, err := r.wallets.Connect(mnemonic)
	if err != nil {
		return "", err
	}

	err = r.secrets.Put(ctx, secrets.MainWalletPath(userID), map[string]string{
		secrets.MnemonicKey: strings.Join(mnemonic, " "),
	})
	if err != nil {
		return "", err
	}

	_, err = r.update(ctx, userID, true, func(account *core.UserAccount) error {
		account.MainWallet = wallet.Address
		return nil
	})
	if err != nil {
		return "", err
	}

	return wallet.Address, nil
}

// TransferFunds sweeps the configured amount from every generated wallet to
// the destination. A failing wallet never stops the others.
func (r *Registry) TransferFunds(ctx context.Context, userID int64, destination string) (TransferReport, error) {
	if r.wallets == nil {
		return TransferReport{}, errWalletsDisabled
	}
	if err := ton.ValidateAddress(destination); err != nil {
		return TransferReport{}, err
	}

	account, err := r.pairedAccount(ctx, userID)
	if err != nil {
		return TransferReport{}, err
	}

	var report TransferReport
	for _, wallet := range sortedWallets(account) {
		key := account.Pairs[wallet].PrivateKey
		if key == "" {
			report.Skipped = append(report.Skipped, wallet)
			continue
		}

		hash, err := r.wallets.Transfer(ctx, core.TransferRequest{
			PrivateKey: key,
			To:         destination,
			Amount:     r.sweepAmount,
		})
		report.add(r.log.WithFields(logger.Fields{"user_id": userID, "wallet": wallet}), wallet, hash, err)
	}

	return report, nil
}

// FundWallets sends amount to every wallet of the user from the funding
// wallet, whose mnemonic is read from the secret store
func (r *Registry) FundWallets(ctx context.Context, userID int64, fundingAddress string, amount float64) (TransferReport, error) {
	if r.wallets == nil || r.secrets == nil {
		return TransferReport{}, errWalletsDisabled
	}
	if err := ton.ValidateAddress(fundingAddress); err != nil {
		return TransferReport{}, err
	}
	if amount <= 0 {
		return TransferReport{}, core.NewValidationError("amount", "must be positive")
	}

	account, err := r.pairedAccount(ctx, userID)
	if err != nil {
		return TransferReport{}, err
	}

	secret, err := r.secrets.Get(ctx, secrets.FundingPath(fundingAddress))
	if errors.Is(err, core.ErrSecretNotFound) || (err == nil && secret[secrets.MnemonicKey] == "") {
		return TransferReport{}, &core.NotFoundError{Resource: "signing material for funding wallet", Key: fundingAddress, Err: core.ErrSecretNotFound}
	}
	if err != nil {
		return TransferReport{}, err
	}

	funding, err := r.wallets.Connect(ton.SplitMnemonic(secret[secrets.MnemonicKey]))
	if err != nil {
		return TransferReport{}, fmt.Errorf("funding mnemonic for %s is invalid: %w", fundingAddress, err)
	}

	var report TransferReport
	for _, wallet := range sortedWallets(account) {
		if err := ton.ValidateAddress(wallet); err != nil {
			report.Skipped = append(report.Skipped, wallet)
			continue
		}

		hash, err := r.wallets.Transfer(ctx, core.TransferRequest{
			PrivateKey: funding.PrivateKey,
			To:         wallet,
			Amount:     amount,
		})
		report.add(r.log.WithFields(logger.Fields{"user_id": userID, "wallet": wallet}), wallet, hash, err)
	}

	return report, nil
}

func (r *Registry) pairedAccount(ctx context.Context, userID int64) (*core.UserAccount, error) {
	account, err := r.view(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(account.Pairs) == 0 {
		return nil, &core.NotFoundError{Resource: "pairs of user", Key: fmt.Sprint(userID), Err: core.ErrPairNotFound}
	}
	return account, nil
}

func (t *TransferReport) add(log logger.Logger, wallet, hash string, err error) {
	if err != nil {
		log.WithError(err).Error("transfer failed")
		t.Failed = append(t.Failed, TransferResult{Wallet: wallet, Err: err})
		return
	}
	t.Succeeded = append(t.Succeeded, TransferResult{Wallet: wallet, TxHash: hash})
}

func sortedWallets(account *core.UserAccount) []string {
	wallets := lo.Keys(account.Pairs)
	sort.Strings(wallets)
	return wallets
}
