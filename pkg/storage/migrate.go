package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/samber/lo"
)

// MigrationReport counts the records copied by Migrate
type MigrationReport struct {
	Users  int
	Trades int
}

// Migrate copies every account and trade from one store to another.
// Accounts already present in the target are overwritten; trades already
// present are kept. progress, when set, is called once per copied record.
func Migrate(ctx context.Context, from, to Storage, progress func()) (MigrationReport, error) {
	var report MigrationReport

	users, err := from.Users(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list users: %w", err)
	}

	for _, user := range users {
		existing, err := to.FindUser(ctx, user.UserID)
		switch {
		case errors.Is(err, core.ErrUserNotFound):
			user.Version = 0
		case err != nil:
			return report, fmt.Errorf("failed to load user %d: %w", user.UserID, err)
		default:
			user.Version = existing.Version
		}

		if err := to.SaveUser(ctx, user); err != nil {
			return report, fmt.Errorf("failed to save user %d: %w", user.UserID, err)
		}

		report.Users++
		if progress != nil {
			progress()
		}
	}

	trades, err := from.Trades(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list trades: %w", err)
	}

	current, err := to.Trades(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list target trades: %w", err)
	}
	known := lo.KeyBy(current, func(trade *core.Trade) string { return trade.ID })

	for _, trade := range trades {
		if _, ok := known[trade.ID]; !ok {
			if err := to.CreateTrade(ctx, trade); err != nil {
				return report, fmt.Errorf("failed to copy trade %s: %w", trade.ID, err)
			}
			report.Trades++
		}
		if progress != nil {
			progress()
		}
	}

	return report, nil
}

// Count returns the number of records Migrate will visit
func Count(ctx context.Context, store Storage) (int, error) {
	users, err := store.Users(ctx)
	if err != nil {
		return 0, err
	}
	trades, err := store.Trades(ctx)
	if err != nil {
		return 0, err
	}
	return len(users) + len(trades), nil
}
