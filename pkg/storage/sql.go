package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLConfig holds connection pool options
type SQLConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultSQLConfig is tuned for a single SQLite file
var DefaultSQLConfig = SQLConfig{
	MaxIdleConns:    2,
	MaxOpenConns:    1,
	ConnMaxLifetime: time.Hour,
}

// userRecord keeps the account document next to its indexed columns
type userRecord struct {
	UserID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Version   int64  `gorm:"not null"`
	Document  string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (userRecord) TableName() string {
	return "users"
}

// SQLStorage implements core.UserStore and core.TradeStorage using a SQL
// database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// FromSQLite opens (or creates) a SQLite database file
func FromSQLite(path string) (*SQLStorage, error) {
	return FromSQL(sqlite.Open(path), DefaultSQLConfig, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// FromSQL creates a new SQL storage instance
func FromSQL(dialect gorm.Dialector, cfg SQLConfig, opts ...gorm.Option) (*SQLStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(&userRecord{}, &core.Trade{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// FindUser loads an account by user id
func (s *SQLStorage) FindUser(ctx context.Context, userID int64) (*core.UserAccount, error) {
	var record userRecord
	result := s.db.WithContext(ctx).First(&record, "user_id = ?", userID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, core.ErrUserNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, result.Error)
	}

	return decodeRecord(record)
}

// SaveUser inserts or updates the account guarded by its version
func (s *SQLStorage) SaveUser(ctx context.Context, account *core.UserAccount) error {
	next := *account
	next.Version++
	next.UpdatedAt = time.Now()

	content, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	record := userRecord{
		UserID:    next.UserID,
		Version:   next.Version,
		Document:  string(content),
		UpdatedAt: next.UpdatedAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if account.Version == 0 {
			var count int64
			if err := tx.Model(&userRecord{}).Where("user_id = ?", account.UserID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return core.ErrVersionConflict
			}
			return tx.Create(&record).Error
		}

		result := tx.Model(&userRecord{}).
			Where("user_id = ? AND version = ?", account.UserID, account.Version).
			Updates(map[string]any{
				"version":    record.Version,
				"document":   record.Document,
				"updated_at": record.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return core.ErrVersionConflict
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("failed to store user %d: %w", account.UserID, err)
	}

	account.Version = next.Version
	account.UpdatedAt = next.UpdatedAt
	return nil
}

// Users loads every account ordered by user id
func (s *SQLStorage) Users(ctx context.Context) ([]*core.UserAccount, error) {
	var records []userRecord
	if err := s.db.WithContext(ctx).Order("user_id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}

	accounts := make([]*core.UserAccount, 0, len(records))
	for _, record := range records {
		account, err := decodeRecord(record)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

func decodeRecord(record userRecord) (*core.UserAccount, error) {
	var account core.UserAccount
	if err := json.Unmarshal([]byte(record.Document), &account); err != nil {
		return nil, fmt.Errorf("failed to decode user %d: %w", record.UserID, err)
	}
	account.Version = record.Version
	account.Normalize()
	return &account, nil
}

// CreateTrade stores a new trade in the journal
func (s *SQLStorage) CreateTrade(ctx context.Context, trade *core.Trade) error {
	if err := s.db.WithContext(ctx).Create(trade).Error; err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	return nil
}

// Trades retrieves trades in creation order based on provided filters
func (s *SQLStorage) Trades(ctx context.Context, filters ...core.TradeFilter) ([]*core.Trade, error) {
	var trades []*core.Trade

	result := s.db.WithContext(ctx).Order("created_at").Find(&trades)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch trades: %w", result.Error)
	}

	// Apply filters in memory
	return lo.Filter(trades, func(trade *core.Trade, _ int) bool {
		for _, filter := range filters {
			if !filter(*trade) {
				return false
			}
		}
		return true
	}), nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
