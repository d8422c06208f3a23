package core

import (
	"fmt"
	"time"
)

// TradeFilter defines a function type for filtering trades
type TradeFilter func(trade Trade) bool

// SideType represents the direction of a trade (buy or sell)
type SideType string

// TradeStatusType represents the outcome of a dispatched trade
type TradeStatusType string

// Trade side constants
const (
	SideTypeBuy  SideType = "buy"
	SideTypeSell SideType = "sell"
)

// Trade status constants
const (
	TradeStatusFilled TradeStatusType = "filled"
	TradeStatusFailed TradeStatusType = "failed"
)

// OrderResult is what an exchange returns for a placed order
type OrderResult struct {
	// TransactionHash is empty when the exchange gives no reference
	TransactionHash string
}

// Trade is the journal entry of one scheduler dispatch
type Trade struct {
	ID              string          `json:"id" gorm:"primaryKey"`
	UserID          int64           `json:"user_id" gorm:"index"`
	Wallet          string          `json:"wallet"`
	Contract        string          `json:"contract"`
	Exchange        ExchangeName    `json:"exchange"`
	Side            SideType        `json:"side"`
	Amount          float64         `json:"amount"`
	TransactionHash string          `json:"transaction_hash"`
	Status          TradeStatusType `json:"status"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at" gorm:"index"`
}

func (t Trade) String() string {
	return fmt.Sprintf("[%s] %s %s %.4f %s via %s", t.Status, t.Wallet, t.Side, t.Amount, t.Contract, t.Exchange)
}

// TransactionRef returns the transaction hash or "N/A"
func (r OrderResult) TransactionRef() string {
	if r.TransactionHash == "" {
		return "N/A"
	}
	return r.TransactionHash
}
