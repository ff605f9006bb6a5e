package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "poap-og-server/internal/platform/errors"
)

// DefaultPath is used when POAP_OG_CONFIG is not set.
const DefaultPath = "config.yaml"

var (
	knownCacheDrivers  = map[string]bool{"memory": true, "sqlite": true, "redis": true, "cloudflare": true}
	knownUploadDrivers = map[string]bool{"cloudflare": true, "s3": true}
)

// Loader reads the YAML file on top of DefaultConfig and applies environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
	lookupEnv func(string) (string, bool)
}

func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the config file path, bypassing POAP_OG_CONFIG.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv overrides the environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
	// FromFile is false when no config file existed and defaults were used.
	FromFile bool
}

func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// A missing .env is normal in container deployments.
		_ = godotenv.Load()
	}

	path := l.path
	if path == "" {
		if p, ok := l.lookupEnv("POAP_OG_CONFIG"); ok && p != "" {
			path = p
		} else {
			path = DefaultPath
		}
	}

	cfg := DefaultConfig()
	fromFile := false
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "parse "+path, err)
		}
		fromFile = true
	case os.IsNotExist(err):
	default:
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "read "+path, err)
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path, FromFile: fromFile}, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"POAP_API_KEY":               &cfg.Badge.APIKey,
		"POAP_OG_SHARED_KEY":         &cfg.Preview.SharedKey,
		"CRON_SECRET":                &cfg.Refresh.CronSecret,
		"CLOUDFLARE_ACCOUNT_ID":      &cfg.Upload.Cloudflare.AccountID,
		"CLOUDFLARE_API_TOKEN":       &cfg.Upload.Cloudflare.APIToken,
		"CLOUDFLARE_KV_NAMESPACE_ID": &cfg.Cache.Cloudflare.NamespaceID,
		"CLOUDFLARE_KV_API_TOKEN":    &cfg.Cache.Cloudflare.APIToken,
		"REDIS_ADDR":                 &cfg.Cache.Redis.Addr,
		"REDIS_PASSWORD":             &cfg.Cache.Redis.Password,
		"S3_ACCESS_KEY_ID":           &cfg.Upload.S3.AccessKeyID,
		"S3_SECRET_ACCESS_KEY":       &cfg.Upload.S3.SecretAccessKey,
		"LOG_LEVEL":                  &cfg.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	// The KV namespace lives in the same account as the image store unless set separately.
	if cfg.Cache.Cloudflare.AccountID == "" {
		cfg.Cache.Cloudflare.AccountID = cfg.Upload.Cloudflare.AccountID
	}

	if v, ok := l.lookupEnv("PORT"); ok && v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindConfig, "config.env", "PORT must be an integer", err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return platformerrors.New(platformerrors.KindConfig, "config.validate",
			fmt.Sprintf("invalid server port %d", cfg.Server.Port))
	}
	if !knownCacheDrivers[strings.ToLower(cfg.Cache.Driver)] {
		return platformerrors.New(platformerrors.KindConfig, "config.validate",
			fmt.Sprintf("unknown cache driver %q", cfg.Cache.Driver))
	}
	if !knownUploadDrivers[strings.ToLower(cfg.Upload.Driver)] {
		return platformerrors.New(platformerrors.KindConfig, "config.validate",
			fmt.Sprintf("unknown upload driver %q", cfg.Upload.Driver))
	}
	if cfg.Cache.Window <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", "cache window must be positive")
	}
	if cfg.Upload.Workers <= 0 || cfg.Upload.QueueSize <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", "upload workers and queue_size must be positive")
	}
	if cfg.Upload.JPEGQuality < 1 || cfg.Upload.JPEGQuality > 100 {
		return platformerrors.New(platformerrors.KindConfig, "config.validate",
			fmt.Sprintf("jpeg_quality %d out of range 1-100", cfg.Upload.JPEGQuality))
	}
	if cfg.Image.MaxBadgeBytes <= 0 || cfg.Preview.MaxPostBytes <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", "byte limits must be positive")
	}
	return nil
}
