package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

type CloudflareConfig struct {
	BaseURL   string
	AccountID string
	APIToken  string
}

// CloudflareImages uploads through the Images v1 API. The first returned variant is the card URL.
type CloudflareImages struct {
	client *resty.Client
}

type imagesResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result struct {
		ID       string   `json:"id"`
		Variants []string `json:"variants"`
	} `json:"result"`
}

func NewCloudflareImages(cfg CloudflareConfig) (*CloudflareImages, error) {
	if cfg.AccountID == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("cloudflare images requires account id and api token")
	}
	base := fmt.Sprintf("%s/accounts/%s/images/v1", strings.TrimRight(cfg.BaseURL, "/"), cfg.AccountID)
	client := resty.New().
		SetBaseURL(base).
		SetAuthToken(cfg.APIToken).
		SetJSONUnmarshaler(sonic.Unmarshal)
	return &CloudflareImages{client: client}, nil
}

func (c *CloudflareImages) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	var body imagesResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("file", name, bytes.NewReader(data)).
		SetResult(&body).
		SetError(&body).
		Post("")
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("cloudflare images: status %d%s", resp.StatusCode(), describe(body))
	}
	if !body.Success || len(body.Result.Variants) == 0 {
		return "", fmt.Errorf("cloudflare images: unsuccessful response%s", describe(body))
	}
	return body.Result.Variants[0], nil
}

func describe(body imagesResponse) string {
	if len(body.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf(": %d %s", body.Errors[0].Code, body.Errors[0].Message)
}
