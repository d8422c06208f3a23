// Package scheduler dispatches the periodic trades of every active pair.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/logger"
	"github.com/raykavin/tonpairs/pkg/registry"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers bounds the orders placed at the same time
const DefaultWorkers = 8

// errSkipped marks a job dropped before its order was placed
var errSkipped = errors.New("dispatch skipped")

// ExchangeResolver returns the adapter of an exchange name
type ExchangeResolver interface {
	Get(name core.ExchangeName) (core.Exchange, error)
}

// TickReport summarizes one pass over the active pairs
type TickReport struct {
	Users      int
	Dispatched int
	Failed     int
	Skipped    int
}

type job struct {
	account  *core.UserAccount
	wallet   string
	pair     core.PairConfig
	exchange core.Exchange
	at       time.Time
}

// Scheduler places one order per active pair on every tick, pacing the
// orders of a user by its delay
type Scheduler struct {
	store     core.UserStore
	exchanges ExchangeResolver
	trades    core.TradeStorage
	notifier  core.Notifier
	locker    *registry.Locker
	log       logger.Logger

	pool *semaphore.Weighted
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
	draw func() float64

	mu       sync.Mutex
	inFlight map[string]struct{}
	slots    map[int64]time.Time
	placed   map[int64]time.Time
}

// Option is a function that configures a Scheduler
type Option func(*Scheduler)

// WithWorkers bounds the number of orders placed at the same time. Jobs
// waiting for their pacing slot do not hold a worker.
func WithWorkers(workers int) Option {
	return func(s *Scheduler) {
		if workers > 0 {
			s.pool = semaphore.NewWeighted(int64(workers))
		}
	}
}

// WithTradeStorage records every dispatch in the trade journal
func WithTradeStorage(trades core.TradeStorage) Option {
	return func(s *Scheduler) {
		s.trades = trades
	}
}

// WithNotifier reports dispatches to the pair owner
func WithNotifier(notifier core.Notifier) Option {
	return func(s *Scheduler) {
		s.notifier = notifier
	}
}

// WithLocker snapshots accounts under the registry's per-user locks
func WithLocker(locker *registry.Locker) Option {
	return func(s *Scheduler) {
		s.locker = locker
	}
}

// WithRandom replaces the source of amounts and sides. draw must return
// values in [0, 1).
func WithRandom(draw func() float64) Option {
	return func(s *Scheduler) {
		s.draw = draw
	}
}

// WithClock replaces time.Now and the pacing wait
func WithClock(now func() time.Time, wait func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) {
		s.now = now
		s.wait = wait
	}
}

// New creates a scheduler reading accounts from store
func New(store core.UserStore, exchanges ExchangeResolver, log logger.Logger, options ...Option) *Scheduler {
	scheduler := &Scheduler{
		store:     store,
		exchanges: exchanges,
		log:       log,
		pool:      semaphore.NewWeighted(DefaultWorkers),
		now:       time.Now,
		wait:      sleep,
		draw:      rand.Float64,
		inFlight:  make(map[string]struct{}),
		slots:     make(map[int64]time.Time),
		placed:    make(map[int64]time.Time),
	}

	for _, option := range options {
		option(scheduler)
	}

	return scheduler
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Tick dispatches one trade for every active pair of every user and blocks
// until all of them finished. Pairs still running from an earlier tick are
// skipped, as are pairs stopped or removed while waiting for their slot.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	var report TickReport

	users, err := s.store.Users(ctx)
	if err != nil {
		s.log.WithError(err).Error("failed to list users")
		return report
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	count := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case errors.Is(err, errSkipped):
			report.Skipped++
		case err != nil:
			report.Failed++
		default:
			report.Dispatched++
		}
	}

	for _, user := range users {
		account, err := s.load(ctx, user)
		if err != nil {
			s.log.WithError(err).WithField("user_id", user.UserID).Error("failed to load account")
			continue
		}

		wallets := registry.ActiveWallets(account)
		if len(wallets) == 0 {
			continue
		}
		report.Users++

		log := s.log.WithField("user_id", account.UserID)
		exchange, err := s.exchanges.Get(account.Exchange)
		if err != nil {
			log.WithError(err).Warn("skipping user without exchange")
			report.Skipped += len(wallets)
			continue
		}

		for _, wallet := range wallets {
			pair := account.Pairs[wallet]
			if !tradable(pair) {
				log.WithField("wallet", wallet).Warn("skipping pair without contract or bounds")
				report.Skipped++
				continue
			}

			key := pairKey(account.UserID, wallet)
			if !s.claim(key) {
				log.WithField("wallet", wallet).Debug("previous dispatch still running")
				report.Skipped++
				continue
			}

			work := job{
				account:  account,
				wallet:   wallet,
				pair:     pair,
				exchange: exchange,
				at:       s.reserve(account.UserID, account.DelayDuration()),
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer s.unclaim(key)
				count(s.run(ctx, work))
			}()
		}
	}

	wg.Wait()
	return report
}

// run waits for the job slot, checks the pair is still active and places the
// order holding a worker
func (s *Scheduler) run(ctx context.Context, work job) error {
	if wait := work.at.Sub(s.now()); wait > 0 {
		if err := s.wait(ctx, wait); err != nil {
			s.release(work.account.UserID, work.at)
			return errSkipped
		}
	}

	pair, err := s.current(ctx, work.account, work.wallet)
	if err != nil {
		s.log.WithError(err).WithFields(logger.Fields{"user_id": work.account.UserID, "wallet": work.wallet}).
			Debug("pair no longer active")
		return errSkipped
	}
	work.pair = pair

	if err := s.pool.Acquire(ctx, 1); err != nil {
		s.release(work.account.UserID, work.at)
		return errSkipped
	}
	defer s.pool.Release(1)

	s.mark(work.account.UserID, work.at)
	return s.dispatch(ctx, work)
}

func tradable(pair core.PairConfig) bool {
	return pair.ContractAddress != "" && pair.HasBounds()
}

func (s *Scheduler) load(ctx context.Context, user *core.UserAccount) (*core.UserAccount, error) {
	if s.locker == nil {
		return user, nil
	}

	unlock := s.locker.Lock(user.UserID)
	defer unlock()

	return s.store.FindUser(ctx, user.UserID)
}

// current re-reads the pair of the job, which may have been stopped, removed
// or changed since the tick listed it
func (s *Scheduler) current(ctx context.Context, account *core.UserAccount, wallet string) (core.PairConfig, error) {
	if s.locker != nil {
		unlock := s.locker.Lock(account.UserID)
		defer unlock()
	}

	fresh, err := s.store.FindUser(ctx, account.UserID)
	if err != nil {
		return core.PairConfig{}, err
	}

	if !slices.Contains(registry.ActiveWallets(fresh), wallet) {
		return core.PairConfig{}, core.ErrPairNotFound
	}

	pair := fresh.Pairs[wallet]
	if !tradable(pair) {
		return core.PairConfig{}, core.ErrPairNotFound
	}
	return pair, nil
}

func pairKey(userID int64, wallet string) string {
	return strconv.FormatInt(userID, 10) + "/" + wallet
}

func (s *Scheduler) claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inFlight[key]; ok {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *Scheduler) unclaim(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

// reserve books the next dispatch slot of the user, delay after the
// previous one
func (s *Scheduler) reserve(userID int64, delay time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.now()
	if last, ok := s.slots[userID]; ok && last.Add(delay).After(slot) {
		slot = last.Add(delay)
	}
	s.slots[userID] = slot
	return slot
}

// mark records the slot of a placed order
func (s *Scheduler) mark(userID int64, slot time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot.After(s.placed[userID]) {
		s.placed[userID] = slot
	}
}

// release gives back the reservations made from slot on, so pacing restarts
// from the last placed order
func (s *Scheduler) release(userID int64, slot time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.slots[userID]; !ok || last.Before(slot) {
		return
	}

	if placed, ok := s.placed[userID]; ok {
		s.slots[userID] = placed
		return
	}
	delete(s.slots, userID)
}

func (s *Scheduler) dispatch(ctx context.Context, work job) (err error) {
	log := s.log.WithFields(logger.Fields{"user_id": work.account.UserID, "wallet": work.wallet})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panicked: %v", r)
			log.WithError(err).Error("recovered from panic")
		}
	}()

	amount := randomAmount(work.pair.MinAmount, work.pair.MaxAmount, s.draw)
	side := core.SideTypeSell
	if s.draw() < 0.5 {
		side = core.SideTypeBuy
	}

	// a started order is completed even when the scheduler is stopping
	orderCtx := context.WithoutCancel(ctx)
	result, err := work.exchange.PlaceOrder(orderCtx, work.wallet, work.pair.ContractAddress, amount, side)

	trade := &core.Trade{
		ID:              uuid.NewString(),
		UserID:          work.account.UserID,
		Wallet:          work.wallet,
		Contract:        work.pair.ContractAddress,
		Exchange:        work.account.Exchange,
		Side:            side,
		Amount:          amount,
		TransactionHash: result.TransactionHash,
		Status:          core.TradeStatusFilled,
		CreatedAt:       s.now().UTC(),
	}
	if err != nil {
		trade.Status = core.TradeStatusFailed
		trade.Error = err.Error()
	}

	if s.trades != nil {
		if journalErr := s.trades.CreateTrade(orderCtx, trade); journalErr != nil {
			log.WithError(journalErr).Warn("failed to record trade")
		}
	}

	if err != nil {
		log.WithError(err).Error("order failed")
		s.notify(orderCtx, work.account.UserID, failureMessage(work, err))
		return err
	}

	log.WithFields(logger.Fields{"side": side, "amount": amount}).Info("order placed")
	s.notify(orderCtx, work.account.UserID, tradeMessage(trade, result))
	return nil
}

func (s *Scheduler) notify(ctx context.Context, userID int64, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendMessage(ctx, userID, text); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to notify user")
	}
}

func tradeMessage(trade *core.Trade, result core.OrderResult) string {
	side := "🔴 Sell"
	if trade.Side == core.SideTypeBuy {
		side = "🟢 Buy"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💼 Wallet: %s\n", trade.Wallet)
	fmt.Fprintf(&b, "💰 Token: %s\n", trade.Contract)
	fmt.Fprintf(&b, "🔄 Type: %s\n", side)
	fmt.Fprintf(&b, "💵 Amount: %s\n", strconv.FormatFloat(trade.Amount, 'f', 4, 64))
	fmt.Fprintf(&b, "🔗 Transaction Hash: %s", result.TransactionRef())
	return b.String()
}

func failureMessage(work job, err error) string {
	reason := "unexpected error"
	var external *core.ExternalServiceError
	if errors.As(err, &external) {
		reason = external.Service + " is unavailable"
	}
	return fmt.Sprintf("⚠️ Trade for wallet %s failed: %s. It will be retried on the next cycle.", work.wallet, reason)
}
