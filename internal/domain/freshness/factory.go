package freshness

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Driver identifiers accepted by New.
const (
	DriverMemory     = "memory"
	DriverSQLite     = "sqlite"
	DriverRedis      = "redis"
	DriverCloudflare = "cloudflare"
)

type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

type CloudflareConfig struct {
	BaseURL     string
	AccountID   string
	NamespaceID string
	APIToken    string
	Timeout     time.Duration
}

// Config selects and configures a backend driver.
type Config struct {
	Driver     string
	Prefix     string
	Redis      RedisConfig
	Cloudflare CloudflareConfig
}

// Dependencies carries handles owned elsewhere.
type Dependencies struct {
	SQLiteDB *gorm.DB
}

// New builds the backend named by cfg.Driver. An empty driver means memory.
func New(cfg Config, deps Dependencies) (Backend, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if deps.SQLiteDB == nil {
			return nil, fmt.Errorf("sqlite driver requires database handle")
		}
		return NewSQLite(deps.SQLiteDB)
	case DriverRedis:
		return NewRedis(cfg.Redis, cfg.Prefix)
	case DriverCloudflare:
		return NewCloudflare(cfg.Cloudflare, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unsupported freshness driver: %s", cfg.Driver)
	}
}
