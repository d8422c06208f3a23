package core

import (
	"context"
)

// UserStore persists user accounts. FindUser returns ErrUserNotFound for an
// unknown user and SaveUser returns ErrVersionConflict when the stored
// version differs from the saved one.
type UserStore interface {
	FindUser(ctx context.Context, userID int64) (*UserAccount, error)
	SaveUser(ctx context.Context, account *UserAccount) error
	Users(ctx context.Context) ([]*UserAccount, error)
}

// Exchange places a single order for a wallet on a DEX
type Exchange interface {
	PlaceOrder(ctx context.Context, wallet, token string, amount float64, side SideType) (OrderResult, error)
}

// Notifier delivers a text message to a user, best effort
type Notifier interface {
	SendMessage(ctx context.Context, userID int64, text string) error
}

// NotifierWithStart is a Notifier with a lifecycle, such as a chat transport
type NotifierWithStart interface {
	Notifier
	Start()
	Stop()
}

// Wallet is a derived TON wallet
type Wallet struct {
	Address    string
	PrivateKey string
}

// TransferRequest moves TON from the wallet owning PrivateKey to To
type TransferRequest struct {
	PrivateKey string
	To         string
	Amount     float64
	Comment    string
}

// WalletService derives wallets from mnemonics and signs transfers
type WalletService interface {
	Derive(mnemonic []string, count int) ([]Wallet, error)
	Connect(mnemonic []string) (Wallet, error)
	Transfer(ctx context.Context, request TransferRequest) (string, error)
}

// SecretStore holds signing material outside of the user records
type SecretStore interface {
	Get(ctx context.Context, path string) (map[string]string, error)
	Put(ctx context.Context, path string, data map[string]string) error
}
