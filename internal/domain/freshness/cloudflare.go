package freshness

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

type cloudflareBackend struct {
	client *resty.Client
	prefix string
}

// NewCloudflare talks to a Workers KV namespace through the REST API.
func NewCloudflare(cfg CloudflareConfig, prefix string) (Backend, error) {
	if cfg.AccountID == "" || cfg.NamespaceID == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("cloudflare kv requires account id, namespace id and api token")
	}
	base := fmt.Sprintf("%s/accounts/%s/storage/kv/namespaces/%s",
		strings.TrimRight(cfg.BaseURL, "/"), cfg.AccountID, cfg.NamespaceID)
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIToken)
	return &cloudflareBackend{client: client, prefix: prefix}, nil
}

func (c *cloudflareBackend) path(key string) string {
	return "/values/" + url.PathEscape(c.prefix+key)
}

func (c *cloudflareBackend) Get(ctx context.Context, key string) (string, error) {
	resp, err := c.client.R().SetContext(ctx).Get(c.path(key))
	if err != nil {
		return "", err
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return "", ErrNotFound
	case !resp.IsSuccess():
		return "", fmt.Errorf("kv get %s: status %d", key, resp.StatusCode())
	}
	body := resp.String()
	if body == "" {
		return "", ErrNotFound
	}
	return body, nil
}

func (c *cloudflareBackend) Set(ctx context.Context, key, value string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(value).
		Put(c.path(key))
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("kv put %s: status %d", key, resp.StatusCode())
	}
	return nil
}

func (c *cloudflareBackend) Close() error { return nil }
