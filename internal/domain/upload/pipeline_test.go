package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poap-og-server/internal/domain/freshness"
	"poap-og-server/internal/platform/observability"
)

type fakeCDN struct {
	mu    sync.Mutex
	url   string
	err   error
	names []string
	data  [][]byte
}

func (f *fakeCDN) Put(_ context.Context, name string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	f.data = append(f.data, data)
	return f.url, f.err
}

func renderedPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.Set(3, 3, color.RGBA{R: 0xFF, A: 0xFF})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadWritesCacheOnSuccess(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cdn := &fakeCDN{url: "https://cdn/0xabc.jpg"}
	cache := freshness.NewCache(freshness.NewMemory(), nil)
	metrics := observability.NewMetrics(false)

	p := NewPipeline(Options{CDN: cdn, Cache: cache, Metrics: metrics, Now: func() time.Time { return now }})
	require.NoError(t, p.Upload(ctx, renderedPNG(t), "0xabc"))

	require.Equal(t, []string{"0xabc.jpg"}, cdn.names)
	_, err := jpeg.DecodeConfig(bytes.NewReader(cdn.data[0]))
	assert.NoError(t, err, "payload must be jpeg")

	entry := cache.Get(ctx, "0xabc")
	require.NotNil(t, entry)
	assert.Equal(t, "https://cdn/0xabc.jpg", entry.URL)
	assert.True(t, now.Equal(entry.LastUpdated))

	assert.Equal(t, float64(len(cdn.data[0])), testutil.ToFloat64(metrics.ImageSize.WithLabelValues("0xabc")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.UploadDuration))
}

func TestUploadFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	cache := freshness.NewCache(freshness.NewMemory(), nil)
	old := freshness.Entry{URL: "https://cdn/old.jpg", LastUpdated: time.UnixMilli(1000)}
	require.NoError(t, cache.Set(ctx, "0xabc", old))

	cdn := &fakeCDN{err: errors.New("503")}
	err := NewPipeline(Options{CDN: cdn, Cache: cache}).Upload(ctx, renderedPNG(t), "0xabc")

	require.Error(t, err)
	assert.True(t, IsUploadError(err))
	assert.Equal(t, "https://cdn/old.jpg", cache.Get(ctx, "0xabc").URL)
	assert.Len(t, cdn.names, 1, "no retry")
}

func TestUploadRejectsUndecodableInput(t *testing.T) {
	cdn := &fakeCDN{url: "u"}
	err := NewPipeline(Options{CDN: cdn, Cache: freshness.NewCache(freshness.NewMemory(), nil)}).
		Upload(context.Background(), []byte("nope"), "0xabc")
	assert.True(t, IsUploadError(err))
	assert.Empty(t, cdn.names)
}

func TestCloudflareImagesPut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct/images/v1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "0xabc.jpg", header.Filename)
		body, _ := io.ReadAll(file)
		assert.Equal(t, []byte("jpeg-bytes"), body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"result":{"id":"x","variants":["https://imagedelivery.net/h/x/public","https://imagedelivery.net/h/x/thumb"]}}`))
	}))
	defer srv.Close()

	cdn, err := NewCloudflareImages(CloudflareConfig{BaseURL: srv.URL, AccountID: "acct", APIToken: "tok"})
	require.NoError(t, err)

	url, err := cdn.Put(context.Background(), "0xabc.jpg", []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://imagedelivery.net/h/x/public", url)
}

func TestCloudflareImagesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":5400,"message":"bad image"}]}`))
	}))
	defer srv.Close()

	cdn, err := NewCloudflareImages(CloudflareConfig{BaseURL: srv.URL, AccountID: "a", APIToken: "t"})
	require.NoError(t, err)

	_, err = cdn.Put(context.Background(), "x.jpg", []byte("x"), "image/jpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad image")
}

func TestCloudflareImagesUnsuccessfulBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"result":{"variants":[]}}`))
	}))
	defer srv.Close()

	cdn, err := NewCloudflareImages(CloudflareConfig{BaseURL: srv.URL, AccountID: "a", APIToken: "t"})
	require.NoError(t, err)
	_, err = cdn.Put(context.Background(), "x.jpg", []byte("x"), "image/jpeg")
	assert.Error(t, err)
}

func TestS3Put(t *testing.T) {
	var gotPath, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cdn, err := NewS3(context.Background(), S3Config{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "cards",
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		PublicBaseURL:   "https://cdn.example.com/",
		UsePathStyle:    true,
		Prefix:          "og",
	})
	require.NoError(t, err)

	url, err := cdn.Put(context.Background(), "0xabc.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)

	assert.Regexp(t, `^/cards/og/0xabc-[0-9a-f-]{36}\.jpg$`, gotPath)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, []byte("jpeg"), gotBody)
	assert.Regexp(t, `^https://cdn\.example\.com/og/0xabc-[0-9a-f-]{36}\.jpg$`, url)
}

func TestNewCDN(t *testing.T) {
	_, err := NewCDN(context.Background(), CDNConfig{Driver: "ftp"})
	assert.Error(t, err)

	_, err = NewCDN(context.Background(), CDNConfig{Driver: DriverCloudflare})
	assert.Error(t, err, "missing credentials")

	cdn, err := NewCDN(context.Background(), CDNConfig{Cloudflare: CloudflareConfig{AccountID: "a", APIToken: "t"}})
	require.NoError(t, err)
	assert.IsType(t, &CloudflareImages{}, cdn)
}

func TestDisabledCDNFailsUploads(t *testing.T) {
	cache := freshness.NewCache(freshness.NewMemory(), nil)
	err := NewPipeline(Options{CDN: Disabled{Reason: "no credentials"}, Cache: cache}).
		Upload(context.Background(), renderedPNG(t), "0xabc")

	assert.True(t, IsUploadError(err))
	assert.Contains(t, err.Error(), "no credentials")
	assert.Nil(t, cache.Get(context.Background(), "0xabc"))
}
