package badge

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	platformerrors "poap-og-server/internal/platform/errors"
)

const opScan = "badge.scan"

// Source returns the badges held by an address.
type Source interface {
	BadgesOf(ctx context.Context, address string) ([]Record, error)
}

// Client queries GET {base}/actions/scan/{address} with an x-api-key header.
type Client struct {
	http   *resty.Client
	apiKey string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetJSONUnmarshaler(sonic.Unmarshal)
	return &Client{http: client, apiKey: apiKey}
}

// BadgesOf fails with an upstream error when no API key is configured or the API answers non-2xx.
func (c *Client) BadgesOf(ctx context.Context, address string) ([]Record, error) {
	if c.apiKey == "" {
		return nil, platformerrors.New(platformerrors.KindUpstream, opScan, "badge API key not configured")
	}

	var records []Record
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetResult(&records).
		Get("/actions/scan/" + url.PathEscape(address))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindUpstream, opScan, "request badges", err)
	}
	if !resp.IsSuccess() {
		return nil, platformerrors.New(platformerrors.KindUpstream, opScan,
			fmt.Sprintf("failed to fetch badges: status %d", resp.StatusCode()))
	}
	return records, nil
}
