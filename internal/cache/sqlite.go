// Package cache provides durable stores for enrichment responses.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"etfkpis/internal/fetcher"
)

// ResponseModel is one cached response body, keyed by request signature.
type ResponseModel struct {
	Signature string `gorm:"primaryKey;size:512"`
	Body      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name stable regardless of gorm naming strategy.
func (ResponseModel) TableName() string { return "responses" }

// SQLite is a fetcher.Cache backed by a local sqlite file. Entries never expire.
type SQLite struct {
	db *gorm.DB
}

var _ fetcher.Cache = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the sqlite cache at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite cache %s: %w", path, err)
	}
	return NewSQLite(db)
}

// NewSQLite wraps an existing gorm database, migrating the cache table.
func NewSQLite(db *gorm.DB) (*SQLite, error) {
	if err := db.AutoMigrate(&ResponseModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache table: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Get implements fetcher.Cache
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var m ResponseModel
	err := s.db.WithContext(ctx).Where("signature = ?", key).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return m.Body, true, nil
}

// Set implements fetcher.Cache
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	m := ResponseModel{Signature: key, Body: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "signature"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&m).Error
}

// Clear removes every cached response and returns how many were removed.
func (s *SQLite) Clear(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&ResponseModel{})
	return res.RowsAffected, res.Error
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
