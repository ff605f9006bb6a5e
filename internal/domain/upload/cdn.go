// Package upload compresses rendered cards, pushes them to a CDN, and records the result.
package upload

import (
	"context"
	"fmt"
	"strings"

	platformerrors "poap-og-server/internal/platform/errors"
)

// CDN stores a named file and returns its public URL.
type CDN interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Driver identifiers accepted by NewCDN.
const (
	DriverCloudflare = "cloudflare"
	DriverS3         = "s3"
)

// CDNConfig selects and configures a CDN driver.
type CDNConfig struct {
	Driver     string
	Cloudflare CloudflareConfig
	S3         S3Config
}

func NewCDN(ctx context.Context, cfg CDNConfig) (CDN, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverCloudflare:
		return NewCloudflareImages(cfg.Cloudflare)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported cdn driver: %s", cfg.Driver)
	}
}

// Disabled is a CDN that rejects every upload, used when no CDN is configured.
type Disabled struct {
	Reason string
}

func (d Disabled) Put(context.Context, string, []byte, string) (string, error) {
	return "", platformerrors.New(platformerrors.KindUpload, "upload.cdn", "uploads disabled: "+d.Reason)
}
