package storage

import "poap-og-server/internal/platform/storage/migrations"

func migrationsUnderTest() []Migration {
	return []Migration{&migrations.Migration001FreshnessEntries{}}
}
