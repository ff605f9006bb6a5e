package migrations

import (
	"gorm.io/gorm"
)

// Migration001FreshnessEntries creates the key/value table behind the sqlite cache driver.
type Migration001FreshnessEntries struct{}

func (m *Migration001FreshnessEntries) Version() string {
	return "001_freshness_entries"
}

func (m *Migration001FreshnessEntries) Description() string {
	return "Create freshness_entries key/value table"
}

func (m *Migration001FreshnessEntries) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS freshness_entries (
			cache_key VARCHAR(255) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_freshness_entries_updated_at ON freshness_entries(updated_at)`).Error
}

func (m *Migration001FreshnessEntries) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS freshness_entries`).Error
}
