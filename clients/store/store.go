// Package store provides a durable key/value store for module state
// (alert rules, offline queue, failed-trade records) backed by sqlite.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	glogger "gorm.io/gorm/logger"

	"tradewatch/config"
)

// Storage is the persistence contract components depend on. A disabled
// store reports IsEnabled false and callers skip load/save work.
type Storage interface {
	IsEnabled() bool
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	LoadJSON(ctx context.Context, key string, dest interface{}) error
	SaveJSON(ctx context.Context, key string, data interface{}) error
}

// Entry is one persisted key/value row.
type Entry struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "tradewatch_kv"
}

// Client implements Storage on a local sqlite database.
type Client struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewClient opens (or creates) the sqlite database at the configured path.
// An empty path yields a disabled client; persistence calls become no-ops.
func NewClient(logger *zap.Logger, cfg *config.Config) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Store.Path == "" {
		logger.Warn("STORE_PATH not set, persistence disabled")
		return &Client{logger: logger}, nil
	}

	db, err := gorm.Open(sqlite.Open(cfg.Store.Path), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", cfg.Store.Path, err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate store schema: %w", err)
	}

	logger.Info("store opened", zap.String("path", cfg.Store.Path))
	return &Client{logger: logger, db: db}, nil
}

func (c *Client) IsEnabled() bool {
	return c.db != nil
}

// Get returns the value for key, or "" when the key has never been set.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.db == nil {
		return "", nil
	}
	var entry Entry
	err := c.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return entry.Value, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	if c.db == nil {
		return nil
	}
	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// LoadJSON unmarshals the stored value for key into dest. A missing key
// leaves dest untouched.
func (c *Client) LoadJSON(ctx context.Context, key string, dest interface{}) error {
	content, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if content == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(content), dest); err != nil {
		return fmt.Errorf("failed to parse stored JSON for key %s: %w", key, err)
	}
	return nil
}

func (c *Client) SaveJSON(ctx context.Context, key string, data interface{}) error {
	content, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON for key %s: %w", key, err)
	}
	return c.Set(ctx, key, string(content))
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
