package config

import "time"

// DefaultConfig returns a configuration with every field populated.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:              "0.0.0.0",
			Port:            3000,
			Mode:            "release",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Badge: BadgeConfig{
			BaseURL: "https://api.poap.tech",
			Timeout: 10 * time.Second,
		},
		Image: ImageConfig{
			MaxBadgeBytes: 5 << 20,
			FetchTimeout:  10 * time.Second,
		},
		Assets: AssetsConfig{
			Dir:          "assets",
			Background:   "layer0.jpg",
			Foreground:   "layer1.png",
			DefaultBadge: "default-poap.png",
			Font:         "MonaspaceXenon-WideMediumItalic.otf",
		},
		Cache: CacheConfig{
			Driver: "memory",
			Window: 24 * time.Hour,
			Prefix: "poap-og:",
			Redis: CacheRedisConfig{
				Addr: "127.0.0.1:6379",
			},
			Cloudflare: CloudflareKVConfig{
				BaseURL: "https://api.cloudflare.com/client/v4",
				Timeout: 5 * time.Second,
			},
			SQLite: CacheSQLiteConfig{},
		},
		Upload: UploadConfig{
			Driver:      "cloudflare",
			Workers:     4,
			QueueSize:   64,
			Timeout:     30 * time.Second,
			JPEGQuality: 85,
			Cloudflare: CloudflareImagesConfig{
				BaseURL: "https://api.cloudflare.com/client/v4",
			},
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "og/",
			},
		},
		Preview: PreviewConfig{
			MaxPostBytes: 1 << 20,
		},
		Refresh: RefreshConfig{
			Enabled:          true,
			GraphQLURL:       "https://public.compass.poap.tech/v1/graphql",
			WatermarkKey:     "lastUpdateTimestampOfPOAP",
			DefaultWatermark: time.Date(2024, 5, 14, 2, 0, 0, 0, time.UTC),
			Timeout:          30 * time.Second,
			Workers:          2,
			BufferSize:       256,
		},
		Storage: StorageConfig{
			DSN: "data/poap-og.db",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
