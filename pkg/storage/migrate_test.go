package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	ctx := context.Background()

	from, err := FromMemory()
	require.NoError(t, err)
	to, err := FromSQLite(filepath.Join(t.TempDir(), "target.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = from.Close()
		_ = to.Close()
	})

	for id := int64(1); id <= 3; id++ {
		account := core.NewUserAccount(id, core.DefaultAccountDefaults)
		account.Pairs["EQwallet"] = core.PairConfig{ContractAddress: "EQtoken", MinAmount: 1, MaxAmount: 2}
		require.NoError(t, from.SaveUser(ctx, account))
		// bump the version so it differs from the target
		require.NoError(t, from.SaveUser(ctx, account))
	}

	trade := &core.Trade{
		ID:        uuid.NewString(),
		UserID:    1,
		Wallet:    "EQwallet",
		Side:      core.SideTypeSell,
		Amount:    1.5,
		Status:    core.TradeStatusFilled,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, from.CreateTrade(ctx, trade))

	// user 2 already exists in the target and is overwritten
	require.NoError(t, to.SaveUser(ctx, core.NewUserAccount(2, core.DefaultAccountDefaults)))

	total, err := Count(ctx, from)
	require.NoError(t, err)
	require.Equal(t, 4, total)

	visited := 0
	report, err := Migrate(ctx, from, to, func() { visited++ })
	require.NoError(t, err)
	require.Equal(t, MigrationReport{Users: 3, Trades: 1}, report)
	require.Equal(t, total, visited)

	users, err := to.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	for _, user := range users {
		require.Contains(t, user.Pairs, "EQwallet")
	}

	// a second run copies no trade twice
	report, err = Migrate(ctx, from, to, nil)
	require.NoError(t, err)
	require.Equal(t, 0, report.Trades)

	trades, err := to.Trades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, trade.ID, trades[0].ID)
}
