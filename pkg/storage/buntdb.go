package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/tidwall/buntdb"
)

const (
	userPrefix  = "user:"
	tradePrefix = "trade:"

	tradeIndex = "trade_created_index"
)

// BuntConfig holds BuntDB tuning options
type BuntConfig struct {
	SyncPolicy buntdb.SyncPolicy
}

// DefaultBuntConfig syncs to disk once per second, as BuntDB does by default
var DefaultBuntConfig = BuntConfig{SyncPolicy: buntdb.EverySecond}

// BuntStorage implements core.UserStore and core.TradeStorage using BuntDB.
// Accounts and trades are stored as JSON documents.
type BuntStorage struct {
	db *buntdb.DB
}

// FromMemory creates an in-memory storage
func FromMemory() (*BuntStorage, error) {
	return NewBuntStorage(":memory:", DefaultBuntConfig)
}

// FromFile creates a file-based storage
func FromFile(file string) (*BuntStorage, error) {
	return NewBuntStorage(file, DefaultBuntConfig)
}

// NewBuntStorage creates a new BuntDB storage instance
func NewBuntStorage(sourceFile string, cfg BuntConfig) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	var dbConfig buntdb.Config
	if err := db.ReadConfig(&dbConfig); err != nil {
		return nil, fmt.Errorf("failed to read buntdb config: %w", err)
	}
	dbConfig.SyncPolicy = cfg.SyncPolicy
	if err := db.SetConfig(dbConfig); err != nil {
		return nil, fmt.Errorf("failed to set buntdb config: %w", err)
	}

	err = db.CreateIndex(tradeIndex, tradePrefix+"*", buntdb.IndexJSON("created_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BuntStorage{db: db}, nil
}

func userKey(userID int64) string {
	return userPrefix + strconv.FormatInt(userID, 10)
}

// FindUser loads an account by user id
func (b *BuntStorage) FindUser(_ context.Context, userID int64) (*core.UserAccount, error) {
	var account core.UserAccount

	err := b.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(userKey(userID))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(value), &account)
	})

	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	account.Normalize()
	return &account, nil
}

// SaveUser stores the account if its version matches the stored one and
// bumps the version
func (b *BuntStorage) SaveUser(_ context.Context, account *core.UserAccount) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		key := userKey(account.UserID)

		current, err := tx.Get(key)
		switch {
		case errors.Is(err, buntdb.ErrNotFound):
			if account.Version != 0 {
				return core.ErrVersionConflict
			}
		case err != nil:
			return fmt.Errorf("failed to load user %d: %w", account.UserID, err)
		default:
			var stored struct {
				Version int64 `json:"version"`
			}
			if err := json.Unmarshal([]byte(current), &stored); err != nil {
				return fmt.Errorf("failed to decode user %d: %w", account.UserID, err)
			}
			if stored.Version != account.Version {
				return core.ErrVersionConflict
			}
		}

		next := *account
		next.Version++
		next.UpdatedAt = time.Now()

		content, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}

		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store user: %w", err)
		}

		account.Version = next.Version
		account.UpdatedAt = next.UpdatedAt
		return nil
	})
}

// Users loads every account ordered by user key
func (b *BuntStorage) Users(_ context.Context) ([]*core.UserAccount, error) {
	accounts := make([]*core.UserAccount, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.AscendKeys(userPrefix+"*", func(key, value string) bool {
			var account core.UserAccount
			if err := json.Unmarshal([]byte(value), &account); err != nil {
				decodeErr = fmt.Errorf("failed to decode %s: %w", key, err)
				return false
			}
			account.Normalize()
			accounts = append(accounts, &account)
			return true
		})
		if err != nil {
			return err
		}
		return decodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate over users: %w", err)
	}

	return accounts, nil
}

// CreateTrade stores a new trade in the journal
func (b *BuntStorage) CreateTrade(_ context.Context, trade *core.Trade) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		content, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("failed to marshal trade: %w", err)
		}

		_, _, err = tx.Set(tradePrefix+trade.ID, string(content), nil)
		if err != nil {
			return fmt.Errorf("failed to store trade: %w", err)
		}

		return nil
	})
}

// Trades retrieves trades in creation order based on provided filters
func (b *BuntStorage) Trades(_ context.Context, filters ...core.TradeFilter) ([]*core.Trade, error) {
	trades := make([]*core.Trade, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(tradeIndex, func(key, value string) bool {
			if !strings.HasPrefix(key, tradePrefix) {
				return true
			}

			var trade core.Trade
			if err := json.Unmarshal([]byte(value), &trade); err != nil {
				return true // Continue iteration
			}

			for _, filter := range filters {
				if !filter(trade) {
					return true
				}
			}

			trades = append(trades, &trade)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate over trades: %w", err)
	}

	// the index compares RFC3339 strings, which misorders fractional seconds
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].CreatedAt.Before(trades[j].CreatedAt)
	})

	return trades, nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
