package core

import (
	"context"
	"slices"
	"time"
)

// TradeStorage defines the interface for the trade journal
type TradeStorage interface {
	// CreateTrade stores a new trade
	CreateTrade(ctx context.Context, trade *Trade) error

	// Trades retrieves trades ordered by creation time based on provided filters
	Trades(ctx context.Context, filters ...TradeFilter) ([]*Trade, error)
}

func WithUser(userID int64) TradeFilter {
	return func(trade Trade) bool {
		return trade.UserID == userID
	}
}

func WithWallet(wallet string) TradeFilter {
	return func(trade Trade) bool {
		return trade.Wallet == wallet
	}
}

func WithStatusIn(status ...TradeStatusType) TradeFilter {
	return func(trade Trade) bool {
		return slices.Contains(status, trade.Status)
	}
}

func WithCreatedAfter(t time.Time) TradeFilter {
	return func(trade Trade) bool {
		return trade.CreatedAt.After(t)
	}
}
