package storage

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	platformerrors "poap-og-server/internal/platform/errors"
	"poap-og-server/internal/platform/storage/migrations"
)

// Open opens the sqlite database at dsn and applies pending migrations.
// ":memory:" and "file:" DSNs are passed through untouched.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, platformerrors.New(platformerrors.KindStorage, "storage.open", "empty dsn")
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindStorage, "storage.open", "create data directory", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "storage.open", "open database", err)
	}

	// sqlite serialises writers; one connection avoids "database is locked" under concurrent sets
	// and keeps ":memory:" databases shared.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate applies the service schema.
func Migrate(db *gorm.DB) error {
	return NewMigrationManager(db,
		&migrations.Migration001FreshnessEntries{},
	).RunMigrations()
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
