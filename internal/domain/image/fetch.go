package image

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads raw image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher downloads over HTTP with a hard cap on body size.
type HTTPFetcher struct {
	client   *resty.Client
	maxBytes int64
}

func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "image/*").
		SetHeader("User-Agent", "poap-og-server")
	return &HTTPFetcher{client: client, maxBytes: maxBytes}
}

// Fetch returns a FetchError for transport failures, non-2xx statuses, and bodies over the cap.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fetchError("request "+url, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
		return nil, fetchError(fmt.Sprintf("fetch %s: status %d", url, resp.StatusCode()), nil)
	}

	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, fetchError("read "+url, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fetchError(fmt.Sprintf("fetch %s: body exceeds %d bytes", url, f.maxBytes), nil)
	}
	return data, nil
}
