package storage

import "time"

// FreshnessRecord is one raw key/value pair of the sqlite freshness backend.
type FreshnessRecord struct {
	Key       string    `gorm:"column:cache_key;primaryKey;type:varchar(255)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (FreshnessRecord) TableName() string {
	return "freshness_entries"
}
