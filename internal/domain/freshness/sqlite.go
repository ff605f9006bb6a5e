package freshness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"poap-og-server/internal/platform/storage"
)

type sqliteBackend struct {
	db *gorm.DB
}

// NewSQLite stores values in the freshness_entries table. The schema comes from storage.Migrate.
func NewSQLite(db *gorm.DB) (Backend, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite backend requires database handle")
	}
	return &sqliteBackend{db: db}, nil
}

func (s *sqliteBackend) Get(ctx context.Context, key string) (string, error) {
	var record storage.FreshnessRecord
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return record.Value, nil
}

func (s *sqliteBackend) Set(ctx context.Context, key, value string) error {
	record := storage.FreshnessRecord{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
}

// Close leaves the shared database open; bootstrap owns it.
func (s *sqliteBackend) Close() error { return nil }
