package image

import (
	"bytes"
	"context"
	stdimage "image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newValidator() *Validator {
	return NewValidator(Options{Fetcher: NewHTTPFetcher(5*time.Second, 1<<20)})
}

func TestWebpConversionIsCoalesced(t *testing.T) {
	webp, err := os.ReadFile("testdata/badge.webp")
	require.NoError(t, err)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write(webp)
	}))
	defer srv.Close()

	v := newValidator()
	url := srv.URL + "/badge.webp"

	const callers = 10
	results := make([]ValidatedImage, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = v.ValidateAndProcess(context.Background(), url)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), v.Conversions())
	assert.Equal(t, int32(1), hits.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, strings.HasPrefix(results[i].URL, "data:image/png;base64,"))
		assert.Equal(t, results[0].URL, results[i].URL)
	}
	assert.Equal(t, Dimensions{Width: 16, Height: 16}, results[0].Dimensions)
	assert.Equal(t, "webp", results[0].Format)
	assert.True(t, results[0].Converted)
}

func TestPNGKeepsOriginalURL(t *testing.T) {
	body := pngBytes(t, 40, 30)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	v := newValidator()
	got, err := v.ValidateAndProcess(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/a.png", got.URL)
	assert.Equal(t, Dimensions{Width: 40, Height: 30}, got.Dimensions)
	assert.False(t, got.Converted)
	assert.Equal(t, stdimage.Rect(0, 0, BadgeSize, BadgeSize), got.Thumbnail.Bounds())
	assert.Zero(t, v.Conversions())
}

func TestResultsAreCachedForProcessLifetime(t *testing.T) {
	body := pngBytes(t, 8, 8)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	v := newValidator()
	for i := 0; i < 3; i++ {
		_, err := v.ValidateAndProcess(context.Background(), srv.URL+"/same.png")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, v.Cached())
}

func TestFetchErrorOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newValidator().ValidateAndProcess(context.Background(), srv.URL+"/missing.png")
	require.Error(t, err)
	assert.True(t, IsFetchError(err))
	assert.False(t, IsDecodeError(err))
}

func TestFetchErrorWhenBodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	v := NewValidator(Options{Fetcher: NewHTTPFetcher(time.Second, 1024)})
	_, err := v.ValidateAndProcess(context.Background(), srv.URL+"/huge.png")
	assert.True(t, IsFetchError(err))
}

func TestDecodeErrorOnGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not an image"))
	}))
	defer srv.Close()

	_, err := newValidator().ValidateAndProcess(context.Background(), srv.URL+"/bad.png")
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
}

func TestFailuresAreNotCached(t *testing.T) {
	body := pngBytes(t, 8, 8)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	v := newValidator()
	_, err := v.ValidateAndProcess(context.Background(), srv.URL+"/flaky.png")
	require.Error(t, err)

	_, err = v.ValidateAndProcess(context.Background(), srv.URL+"/flaky.png")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Cached())
}

func TestOnConvertHook(t *testing.T) {
	webp, err := os.ReadFile("testdata/badge.webp")
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(webp)
	}))
	defer srv.Close()

	var called atomic.Int32
	v := NewValidator(Options{
		Fetcher:   NewHTTPFetcher(time.Second, 1<<20),
		OnConvert: func() { called.Add(1) },
	})
	_, err = v.ValidateAndProcess(context.Background(), srv.URL+"/b.webp")
	require.NoError(t, err)
	assert.Equal(t, int32(1), called.Load())
}

func TestLoadDecodesWithoutCaching(t *testing.T) {
	body := pngBytes(t, 12, 6)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	v := newValidator()
	img, err := v.Load(context.Background(), srv.URL+"/bg.png")
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Zero(t, v.Cached())
}

func TestThumbnailCropsToCentredSquare(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	wide := stdimage.NewRGBA(stdimage.Rect(0, 0, 320, 160))
	for y := 0; y < 160; y++ {
		for x := 0; x < 320; x++ {
			switch {
			case x < 80:
				wide.Set(x, y, red)
			case x >= 240:
				wide.Set(x, y, blue)
			default:
				wide.Set(x, y, green)
			}
		}
	}

	thumb := Thumbnail(wide, BadgeSize)
	require.Equal(t, stdimage.Rect(0, 0, BadgeSize, BadgeSize), thumb.Bounds())
	for _, p := range []stdimage.Point{{0, 0}, {0, 159}, {80, 80}, {159, 0}, {159, 159}} {
		assert.Equal(t, green, color.RGBAModel.Convert(thumb.At(p.X, p.Y)), "pixel %v", p)
	}
}

func TestCenterSquare(t *testing.T) {
	assert.Equal(t, stdimage.Rect(80, 0, 240, 160), centerSquare(stdimage.Rect(0, 0, 320, 160)))
	assert.Equal(t, stdimage.Rect(0, 20, 40, 60), centerSquare(stdimage.Rect(0, 0, 40, 80)))
	assert.Equal(t, stdimage.Rect(5, 5, 15, 15), centerSquare(stdimage.Rect(5, 5, 15, 15)))
}
