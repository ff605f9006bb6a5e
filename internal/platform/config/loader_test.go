package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 8080
log:
  log_level: "DEBUG"
  log_dir: "/tmp/logs"
  log_file: "test.log"
cache:
  driver: redis
  window: 12h
upload:
  driver: s3
  jpeg_quality: 70
`
	if err := os.WriteFile(configFile, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	res, err := NewLoader().WithDotEnv(false).WithEnv(envFrom(map[string]string{
		"POAP_OG_CONFIG": configFile,
		"POAP_API_KEY":   "api-key",
	})).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg := res.Config

	if !res.FromFile || res.Path != configFile {
		t.Errorf("expected config from %s, got %+v", configFile, res)
	}
	if cfg.Server.IP != "127.0.0.1" {
		t.Errorf("expected server IP 127.0.0.1, got %s", cfg.Server.IP)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("expected log level DEBUG, got %s", cfg.Log.Level)
	}
	if cfg.Cache.Driver != "redis" || cfg.Cache.Window != 12*time.Hour {
		t.Errorf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Upload.JPEGQuality != 70 {
		t.Errorf("expected jpeg quality 70, got %d", cfg.Upload.JPEGQuality)
	}
	if cfg.Badge.APIKey != "api-key" {
		t.Errorf("expected api key from env, got %q", cfg.Badge.APIKey)
	}
	// untouched sections keep defaults
	if cfg.Refresh.WatermarkKey != "lastUpdateTimestampOfPOAP" {
		t.Errorf("expected default watermark key, got %q", cfg.Refresh.WatermarkKey)
	}
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	res, err := NewLoader().WithDotEnv(false).
		WithPath(filepath.Join(t.TempDir(), "absent.yaml")).
		WithEnv(envFrom(map[string]string{"PORT": "9090"})).
		Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FromFile {
		t.Error("expected defaults when file is absent")
	}
	if res.Config.Server.Port != 9090 {
		t.Errorf("expected PORT override 9090, got %d", res.Config.Server.Port)
	}
	if res.Config.Cache.Window != 24*time.Hour {
		t.Errorf("expected 24h window, got %s", res.Config.Cache.Window)
	}
}

func TestLoader_BadPortEnv(t *testing.T) {
	_, err := NewLoader().WithDotEnv(false).
		WithPath(filepath.Join(t.TempDir(), "absent.yaml")).
		WithEnv(envFrom(map[string]string{"PORT": "eighty"})).
		Load()
	if err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "invalid server port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "unknown cache driver", mutate: func(c *Config) { c.Cache.Driver = "etcd" }, wantErr: true},
		{name: "unknown upload driver", mutate: func(c *Config) { c.Upload.Driver = "ftp" }, wantErr: true},
		{name: "zero window", mutate: func(c *Config) { c.Cache.Window = 0 }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Upload.Workers = 0 }, wantErr: true},
		{name: "jpeg quality out of range", mutate: func(c *Config) { c.Upload.JPEGQuality = 101 }, wantErr: true},
		{name: "zero post cap", mutate: func(c *Config) { c.Preview.MaxPostBytes = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := loader.validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
