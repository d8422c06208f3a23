package core

import (
	"time"
)

// ExchangeName identifies the DEX a user trades on
type ExchangeName string

const (
	ExchangeDeDust ExchangeName = "dedust"
	ExchangeStonFi ExchangeName = "stonfi"
)

// Exchanges lists the supported exchange names in display order
var Exchanges = []ExchangeName{ExchangeDeDust, ExchangeStonFi}

// ParseExchange converts user input into a supported ExchangeName
func ParseExchange(name string) (ExchangeName, error) {
	for _, exchange := range Exchanges {
		if string(exchange) == name {
			return exchange, nil
		}
	}
	return "", ErrUnsupportedExchange
}

// TradingLimits holds the default trade-size bounds applied to new pairs
type TradingLimits struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PairConfig is the configuration of one wallet inside UserAccount.Pairs
type PairConfig struct {
	ContractAddress string  `json:"contract_address"`
	MinAmount       float64 `json:"min_amount"`
	MaxAmount       float64 `json:"max_amount"`
	// PrivateKey is only set for wallets generated by the bot
	PrivateKey string `json:"private_key,omitempty"`
}

// HasBounds reports whether the pair can be sized by the scheduler
func (p PairConfig) HasBounds() bool {
	return p.MaxAmount > 0 && p.MinAmount >= 0 && p.MinAmount <= p.MaxAmount
}

// Rental is the access-grant metadata of an account
type Rental struct {
	Enabled       bool       `json:"enabled"`
	Expiry        *time.Time `json:"expiry,omitempty"`
	PaymentAmount *float64   `json:"payment_amount,omitempty"`
	WalletAddress string     `json:"wallet_address,omitempty"`
}

// Trial marks the one-shot free usage window of an account
type Trial struct {
	DeviceID string     `json:"device_id,omitempty"`
	Expiry   *time.Time `json:"expiry,omitempty"`
}

// Active reports whether the trial window is still open at the given time
func (t Trial) Active(now time.Time) bool {
	return t.Expiry != nil && now.Before(*t.Expiry)
}

// UserAccount is the persisted trading configuration of one chat user
type UserAccount struct {
	UserID        int64                 `json:"user_id"`
	Pairs         map[string]PairConfig `json:"pairs"`
	ActivePairs   []string              `json:"active_pairs"`
	TradingLimits TradingLimits         `json:"trading_limits"`
	Delay         int64                 `json:"delay"`
	Exchange      ExchangeName          `json:"exchange"`
	Rental        Rental                `json:"rental"`
	Trial         Trial                 `json:"trial"`
	MainWallet    string                `json:"main_wallet,omitempty"`
	Version       int64                 `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// AccountDefaults are the values assigned to accounts on creation
type AccountDefaults struct {
	TradingLimits TradingLimits
	Delay         time.Duration
	Exchange      ExchangeName
}

// DefaultAccountDefaults mirrors the values of a freshly created account
var DefaultAccountDefaults = AccountDefaults{
	TradingLimits: TradingLimits{Min: 1, Max: 100},
	Delay:         time.Second,
	Exchange:      ExchangeDeDust,
}

// NewUserAccount creates an empty account for the given user
func NewUserAccount(userID int64, defaults AccountDefaults) *UserAccount {
	now := time.Now()
	return &UserAccount{
		UserID:        userID,
		Pairs:         make(map[string]PairConfig),
		ActivePairs:   make([]string, 0),
		TradingLimits: defaults.TradingLimits,
		Delay:         defaults.Delay.Milliseconds(),
		Exchange:      defaults.Exchange,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// DelayDuration returns the configured inter-trade delay
func (u *UserAccount) DelayDuration() time.Duration {
	if u.Delay <= 0 {
		return 0
	}
	return time.Duration(u.Delay) * time.Millisecond
}

// IsActive reports whether the wallet is part of the active set
func (u *UserAccount) IsActive(wallet string) bool {
	for _, active := range u.ActivePairs {
		if active == wallet {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the account
func (u *UserAccount) Clone() *UserAccount {
	clone := *u
	clone.Pairs = make(map[string]PairConfig, len(u.Pairs))
	for wallet, pair := range u.Pairs {
		clone.Pairs[wallet] = pair
	}
	clone.ActivePairs = append(make([]string, 0, len(u.ActivePairs)), u.ActivePairs...)
	if u.Rental.Expiry != nil {
		expiry := *u.Rental.Expiry
		clone.Rental.Expiry = &expiry
	}
	if u.Rental.PaymentAmount != nil {
		amount := *u.Rental.PaymentAmount
		clone.Rental.PaymentAmount = &amount
	}
	if u.Trial.Expiry != nil {
		expiry := *u.Trial.Expiry
		clone.Trial.Expiry = &expiry
	}
	return &clone
}

// Normalize fills nil collections left by decoding older records
func (u *UserAccount) Normalize() {
	if u.Pairs == nil {
		u.Pairs = make(map[string]PairConfig)
	}
	if u.ActivePairs == nil {
		u.ActivePairs = make([]string, 0)
	}
}
