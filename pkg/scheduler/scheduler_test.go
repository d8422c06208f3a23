package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/logger/zerolog"
	"github.com/raykavin/tonpairs/pkg/registry"
	"github.com/raykavin/tonpairs/pkg/storage"
	"github.com/stretchr/testify/require"
)

type order struct {
	wallet string
	token  string
	amount float64
	side   core.SideType
}

type fakeExchange struct {
	mu      sync.Mutex
	orders  []order
	fail    map[string]error
	panics  bool
	entered chan struct{}
	release chan struct{}
}

func (f *fakeExchange) PlaceOrder(_ context.Context, wallet, token string, amount float64, side core.SideType) (core.OrderResult, error) {
	f.mu.Lock()
	f.orders = append(f.orders, order{wallet: wallet, token: token, amount: amount, side: side})
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.panics {
		panic("adapter bug")
	}
	if err := f.fail[wallet]; err != nil {
		return core.OrderResult{}, err
	}
	return core.OrderResult{TransactionHash: "tx-" + wallet}, nil
}

func (f *fakeExchange) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeExchange) wallets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	wallets := make([]string, 0, len(f.orders))
	for _, placed := range f.orders {
		wallets = append(wallets, placed.wallet)
	}
	return wallets
}

type resolver map[core.ExchangeName]core.Exchange

func (r resolver) Get(name core.ExchangeName) (core.Exchange, error) {
	exchange, ok := r[name]
	if !ok {
		return nil, core.ErrUnsupportedExchange
	}
	return exchange, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages map[int64][]string
}

func (f *fakeNotifier) SendMessage(_ context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messages == nil {
		f.messages = make(map[int64][]string)
	}
	f.messages[userID] = append(f.messages[userID], text)
	return nil
}

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration

	// when set, waits block until hold is closed or the context is done
	hold    chan struct{}
	waiting chan struct{}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Wait(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	hold, waiting := c.hold, c.waiting
	c.mu.Unlock()

	if hold == nil {
		return nil
	}

	waiting <- struct{}{}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-hold:
		return nil
	}
}

func (c *fakeClock) Hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hold = make(chan struct{})
	c.waiting = make(chan struct{})
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

type fixture struct {
	store     *storage.BuntStorage
	exchange  *fakeExchange
	notifier  *fakeNotifier
	clock     *fakeClock
	scheduler *Scheduler
}

func newFixture(t *testing.T, exchange *fakeExchange, options ...Option) *fixture {
	t.Helper()

	store, err := storage.FromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		store:    store,
		exchange: exchange,
		notifier: &fakeNotifier{},
		clock:    &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}

	f.scheduler = New(store, resolver{core.ExchangeDeDust: exchange}, zerolog.Nop(),
		WithTradeStorage(store),
		WithNotifier(f.notifier),
		WithLocker(registry.NewLocker()),
		WithRandom(func() float64 { return 0.25 }),
		WithClock(f.clock.Now, f.clock.Wait),
	)
	for _, option := range options {
		option(f.scheduler)
	}
	return f
}

func (f *fixture) seed(t *testing.T, userID int64, delay int64, active []string, pairs map[string]core.PairConfig) {
	t.Helper()

	account := core.NewUserAccount(userID, core.DefaultAccountDefaults)
	account.Delay = delay
	account.Pairs = pairs
	account.ActivePairs = active
	require.NoError(t, f.store.SaveUser(context.Background(), account))
}

func bounded(contract string) core.PairConfig {
	return core.PairConfig{ContractAddress: contract, MinAmount: 5, MaxAmount: 10}
}

func TestRandomAmount(t *testing.T) {
	for _, draw := range []float64{0, 0.25, 0.5, 0.999999} {
		amount := randomAmount(5.0, 10.0, func() float64 { return draw })
		require.GreaterOrEqual(t, amount, 5.0)
		require.Less(t, amount, 10.0)
	}

	for i := 0; i < 1000; i++ {
		amount := randomAmount(float32(5), float32(10), rand.Float64)
		require.GreaterOrEqual(t, amount, float32(5))
		require.LessOrEqual(t, amount, float32(10))
	}

	require.Equal(t, 7.0, randomAmount(7.0, 7.0, rand.Float64))
}

func TestTick_EmptyActiveSet(t *testing.T) {
	f := newFixture(t, &fakeExchange{})
	f.seed(t, 1, 1000, nil, map[string]core.PairConfig{"wallet-a": bounded("token-a")})

	report := f.scheduler.Tick(context.Background())
	require.Equal(t, TickReport{}, report)
	require.Zero(t, f.exchange.calls())
	require.Empty(t, f.clock.waits)
}

func TestTick_DispatchesActivePairs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeExchange{})
	f.seed(t, 1, 1000, []string{"wallet-a", "wallet-b"}, map[string]core.PairConfig{
		"wallet-a": bounded("token-a"),
		"wallet-b": bounded("token-b"),
		"wallet-c": bounded("token-c"),
	})

	report := f.scheduler.Tick(ctx)
	require.Equal(t, TickReport{Users: 1, Dispatched: 2}, report)

	require.Equal(t, 2, f.exchange.calls())
	for _, placed := range f.exchange.orders {
		require.Equal(t, 6.25, placed.amount)
		require.Equal(t, core.SideTypeBuy, placed.side)
		require.NotEqual(t, "wallet-c", placed.wallet)
	}

	// the second pair of the user waits for the delay
	require.Equal(t, []time.Duration{time.Second}, f.clock.waits)

	trades, err := f.store.Trades(ctx, core.WithUser(1))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	for _, trade := range trades {
		require.Equal(t, core.TradeStatusFilled, trade.Status)
		require.NotEmpty(t, trade.ID)
	}

	messages := f.notifier.messages[1]
	require.Len(t, messages, 2)
	require.Contains(t, messages[0], "🟢 Buy")
	require.Contains(t, messages[0], "🔗 Transaction Hash: tx-wallet-")
}

func TestTick_PacingAcrossTicks(t *testing.T) {
	f := newFixture(t, &fakeExchange{})
	f.seed(t, 1, 2000, []string{"wallet-a"}, map[string]core.PairConfig{"wallet-a": bounded("token-a")})

	f.scheduler.Tick(context.Background())
	f.scheduler.Tick(context.Background())

	require.Equal(t, []time.Duration{2 * time.Second}, f.clock.waits)
}

func TestTick_PacingDoesNotHoldWorkers(t *testing.T) {
	f := newFixture(t, &fakeExchange{}, WithWorkers(1))
	f.seed(t, 1, 60000, []string{"wallet-a1", "wallet-a2"}, map[string]core.PairConfig{
		"wallet-a1": bounded("token-a1"),
		"wallet-a2": bounded("token-a2"),
	})
	f.seed(t, 2, 0, []string{"wallet-b"}, map[string]core.PairConfig{"wallet-b": bounded("token-b")})
	f.clock.Hold()

	done := make(chan TickReport)
	go func() {
		done <- f.scheduler.Tick(context.Background())
	}()

	// the second pair of user 1 waits for its slot while user 2 trades
	<-f.clock.waiting
	require.Eventually(t, func() bool {
		return f.exchange.calls() == 2
	}, time.Second, 5*time.Millisecond)
	require.ElementsMatch(t, []string{"wallet-a1", "wallet-b"}, f.exchange.wallets())

	close(f.clock.hold)
	require.Equal(t, TickReport{Users: 2, Dispatched: 3}, <-done)
	require.Equal(t, []time.Duration{time.Minute}, f.clock.Waits())
}

func TestTick_SkipsPairsStoppedWhileWaiting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeExchange{})
	f.seed(t, 1, 1000, []string{"wallet-a", "wallet-b", "wallet-c"}, map[string]core.PairConfig{
		"wallet-a": bounded("token-a"),
		"wallet-b": bounded("token-b"),
		"wallet-c": bounded("token-c"),
	})
	f.clock.Hold()

	done := make(chan TickReport)
	go func() {
		done <- f.scheduler.Tick(ctx)
	}()

	<-f.clock.waiting
	<-f.clock.waiting

	// wallet-b is stopped and wallet-c removed before their slots
	account, err := f.store.FindUser(ctx, 1)
	require.NoError(t, err)
	account.ActivePairs = []string{"wallet-a"}
	delete(account.Pairs, "wallet-c")
	require.NoError(t, f.store.SaveUser(ctx, account))

	close(f.clock.hold)
	require.Equal(t, TickReport{Users: 1, Dispatched: 1, Skipped: 2}, <-done)
	require.Equal(t, []string{"wallet-a"}, f.exchange.wallets())

	trades, err := f.store.Trades(ctx, core.WithUser(1))
	require.NoError(t, err)
	require.Len(t, trades, 1)
}

func TestTick_CancelledWaitReleasesSlot(t *testing.T) {
	f := newFixture(t, &fakeExchange{})
	f.seed(t, 1, 1000, []string{"wallet-a", "wallet-b"}, map[string]core.PairConfig{
		"wallet-a": bounded("token-a"),
		"wallet-b": bounded("token-b"),
	})
	f.clock.Hold()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan TickReport)
	go func() {
		done <- f.scheduler.Tick(ctx)
	}()

	<-f.clock.waiting
	require.Eventually(t, func() bool { return f.exchange.calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.Equal(t, TickReport{Users: 1, Dispatched: 1, Skipped: 1}, <-done)

	// pacing resumes from the placed order, not from the cancelled slot
	f.clock.mu.Lock()
	f.clock.hold = nil
	f.clock.waits = nil
	f.clock.mu.Unlock()
	f.clock.Advance(time.Second)

	report := f.scheduler.Tick(context.Background())
	require.Equal(t, TickReport{Users: 1, Dispatched: 2}, report)
	require.Equal(t, []time.Duration{time.Second}, f.clock.Waits())
}

func TestTick_NoOverlappingDispatch(t *testing.T) {
	exchange := &fakeExchange{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, exchange)
	f.seed(t, 1, 0, []string{"wallet-a"}, map[string]core.PairConfig{"wallet-a": bounded("token-a")})

	first := make(chan TickReport)
	go func() {
		first <- f.scheduler.Tick(context.Background())
	}()

	<-exchange.entered

	second := f.scheduler.Tick(context.Background())
	require.Equal(t, TickReport{Users: 1, Skipped: 1}, second)
	require.Equal(t, 1, exchange.calls())

	close(exchange.release)
	require.Equal(t, TickReport{Users: 1, Dispatched: 1}, <-first)

	// the pair is released once its dispatch finished
	exchange.entered = nil
	third := f.scheduler.Tick(context.Background())
	require.Equal(t, 1, third.Dispatched)
}

func TestTick_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	exchange := &fakeExchange{fail: map[string]error{
		"wallet-a": core.NewExternalError("dedust", errors.New("pool not found")),
	}}
	f := newFixture(t, exchange)
	f.seed(t, 1, 0, []string{"wallet-a", "wallet-b"}, map[string]core.PairConfig{
		"wallet-a": bounded("token-a"),
		"wallet-b": bounded("token-b"),
	})
	f.seed(t, 2, 0, []string{"wallet-c"}, map[string]core.PairConfig{"wallet-c": bounded("token-c")})

	report := f.scheduler.Tick(ctx)
	require.Equal(t, TickReport{Users: 2, Dispatched: 2, Failed: 1}, report)

	failed, err := f.store.Trades(ctx, core.WithStatusIn(core.TradeStatusFailed))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "wallet-a", failed[0].Wallet)

	var warned bool
	for _, message := range f.notifier.messages[1] {
		if message == "⚠️ Trade for wallet wallet-a failed: dedust is unavailable. It will be retried on the next cycle." {
			warned = true
		}
	}
	require.True(t, warned)
	require.Len(t, f.notifier.messages[2], 1)
}

func TestTick_RecoversPanics(t *testing.T) {
	f := newFixture(t, &fakeExchange{panics: true})
	f.seed(t, 1, 0, []string{"wallet-a"}, map[string]core.PairConfig{"wallet-a": bounded("token-a")})

	report := f.scheduler.Tick(context.Background())
	require.Equal(t, TickReport{Users: 1, Failed: 1}, report)
}

func TestTick_SkipsIncompletePairs(t *testing.T) {
	f := newFixture(t, &fakeExchange{})
	f.seed(t, 1, 0, []string{"wallet-a", "wallet-b", "wallet-c"}, map[string]core.PairConfig{
		"wallet-a": {MinAmount: 1, MaxAmount: 2},
		"wallet-b": {ContractAddress: "token-b"},
		"wallet-c": bounded("token-c"),
	})

	report := f.scheduler.Tick(context.Background())
	require.Equal(t, TickReport{Users: 1, Dispatched: 1, Skipped: 2}, report)
}

func TestTick_UnknownExchange(t *testing.T) {
	f := newFixture(t, &fakeExchange{})
	account := core.NewUserAccount(1, core.DefaultAccountDefaults)
	account.Exchange = core.ExchangeStonFi
	account.Pairs["wallet-a"] = bounded("token-a")
	account.ActivePairs = []string{"wallet-a"}
	require.NoError(t, f.store.SaveUser(context.Background(), account))

	report := f.scheduler.Tick(context.Background())
	require.Equal(t, TickReport{Users: 1, Skipped: 1}, report)
	require.Zero(t, f.exchange.calls())
}

func TestController_StartStop(t *testing.T) {
	f := newFixture(t, &fakeExchange{})
	f.seed(t, 1, 0, []string{"wallet-a"}, map[string]core.PairConfig{"wallet-a": bounded("token-a")})

	controller := NewController(f.scheduler, 10*time.Millisecond, zerolog.Nop())
	require.Equal(t, StatusStopped, controller.Status())

	controller.Start(context.Background())
	controller.Start(context.Background())
	require.Equal(t, StatusRunning, controller.Status())

	require.Eventually(t, func() bool { return f.exchange.calls() > 0 }, time.Second, 5*time.Millisecond)

	controller.Stop()
	require.Equal(t, StatusStopped, controller.Status())

	calls := f.exchange.calls()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, calls, f.exchange.calls())
}
