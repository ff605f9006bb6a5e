package config

import (
	"time"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Badge   BadgeConfig   `yaml:"badge"`
	Image   ImageConfig   `yaml:"image"`
	Assets  AssetsConfig  `yaml:"assets"`
	Cache   CacheConfig   `yaml:"cache"`
	Upload  UploadConfig  `yaml:"upload"`
	Preview PreviewConfig `yaml:"preview"`
	Refresh RefreshConfig `yaml:"refresh"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	IP              string        `yaml:"ip"`
	Port            int           `yaml:"port"`
	Mode            string        `yaml:"mode"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// BadgeConfig configures the badge provider lookup API.
type BadgeConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// ImageConfig bounds badge image downloads.
type ImageConfig struct {
	MaxBadgeBytes int64         `yaml:"max_badge_bytes"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
}

// AssetsConfig points at the static layers. Missing files fall back to built-in assets.
type AssetsConfig struct {
	Dir          string `yaml:"dir"`
	Background   string `yaml:"background"`
	Foreground   string `yaml:"foreground"`
	DefaultBadge string `yaml:"default_badge"`
	Font         string `yaml:"font"`
}

type CacheConfig struct {
	Driver     string             `yaml:"driver"`
	Window     time.Duration      `yaml:"window"`
	Prefix     string             `yaml:"prefix"`
	Redis      CacheRedisConfig   `yaml:"redis"`
	Cloudflare CloudflareKVConfig `yaml:"cloudflare"`
	SQLite     CacheSQLiteConfig  `yaml:"sqlite"`
}

type CacheRedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

type CloudflareKVConfig struct {
	BaseURL     string        `yaml:"base_url"`
	AccountID   string        `yaml:"account_id"`
	NamespaceID string        `yaml:"namespace_id"`
	APIToken    string        `yaml:"api_token"`
	Timeout     time.Duration `yaml:"timeout"`
}

type CacheSQLiteConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

type UploadConfig struct {
	Driver      string                 `yaml:"driver"`
	Workers     int                    `yaml:"workers"`
	QueueSize   int                    `yaml:"queue_size"`
	Timeout     time.Duration          `yaml:"timeout"`
	JPEGQuality int                    `yaml:"jpeg_quality"`
	Cloudflare  CloudflareImagesConfig `yaml:"cloudflare"`
	S3          S3Config               `yaml:"s3"`
}

type CloudflareImagesConfig struct {
	BaseURL   string `yaml:"base_url"`
	AccountID string `yaml:"account_id"`
	APIToken  string `yaml:"api_token"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	Prefix          string `yaml:"prefix"`
}

// PreviewConfig governs the trusted POST path.
type PreviewConfig struct {
	SharedKey    string `yaml:"shared_key"`
	MaxPostBytes int64  `yaml:"max_post_bytes"`
}

type RefreshConfig struct {
	Enabled          bool          `yaml:"enabled"`
	CronSecret       string        `yaml:"cron_secret"`
	GraphQLURL       string        `yaml:"graphql_url"`
	WatermarkKey     string        `yaml:"watermark_key"`
	DefaultWatermark time.Time     `yaml:"default_watermark"`
	Timeout          time.Duration `yaml:"timeout"`
	Workers          int           `yaml:"workers"`
	BufferSize       int           `yaml:"buffer_size"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}
