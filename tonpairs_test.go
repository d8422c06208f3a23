package tonpairs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raykavin/tonpairs/pkg/config"
	"github.com/raykavin/tonpairs/pkg/conversation"
	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/logger/zerolog"
	"github.com/raykavin/tonpairs/pkg/storage"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (f *fakeNotifier) SendMessage(context.Context, int64, string) error { return nil }
func (f *fakeNotifier) Start()                                          { f.started.Store(true) }
func (f *fakeNotifier) Stop()                                           { f.stopped.Store(true) }

type fakeExchange struct{}

func (fakeExchange) PlaceOrder(context.Context, string, string, float64, core.SideType) (core.OrderResult, error) {
	return core.OrderResult{}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Exchange: config.ExchangeConfig{
			StonFiURL: "http://127.0.0.1:1",
			DeDustURL: "http://127.0.0.1:1",
			Slippage:  0.01,
			Attempts:  1,
			Timeout:   time.Second,
		},
	}
	cfg.Accounts = core.DefaultAccountDefaults
	cfg.Scheduler.Interval = time.Hour
	cfg.TrialTTL = time.Minute
	return cfg
}

func TestNewBot(t *testing.T) {
	store, err := storage.FromMemory()
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	bot, err := NewBot(context.Background(), testConfig(),
		WithStorage(store),
		WithNotifier(notifier),
		WithExchange(core.ExchangeStonFi, fakeExchange{}),
		WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)

	stonfi, err := bot.exchanges.Get(core.ExchangeStonFi)
	require.NoError(t, err)
	require.Equal(t, fakeExchange{}, stonfi)

	_, err = bot.exchanges.Get(core.ExchangeDeDust)
	require.NoError(t, err)

	ctx := context.Background()
	reply := bot.Machine().Start(ctx, 42)
	require.Equal(t, conversation.MenuMain, reply.Menu)

	account, err := bot.Registry().Account(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, core.ExchangeDeDust, account.Exchange)
}

func TestBot_Run(t *testing.T) {
	store, err := storage.FromMemory()
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	bot, err := NewBot(context.Background(), testConfig(),
		WithStorage(store),
		WithNotifier(notifier),
		WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	require.Eventually(t, notifier.started.Load, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.True(t, notifier.stopped.Load())
}
