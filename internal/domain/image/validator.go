// Package image validates badge artwork and normalises it for the compositor.
package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	stdimage "image"
	"image/png"
	"sync"
	"sync/atomic"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"poap-og-server/internal/platform/logging"
)

// BadgeSize is the edge length of badge thumbnails, matching the compositor's badge circle.
const BadgeSize = 160

// Validator fetches badge images, caches validated results for the life of the
// process, and coalesces concurrent work on the same URL.
type Validator struct {
	fetcher   Fetcher
	logger    *logging.Logger
	thumbSize int
	onConvert func()

	mu    sync.RWMutex
	cache map[string]ValidatedImage

	inflight    singleflight.Group
	conversions atomic.Int64
}

// Options configures a Validator.
type Options struct {
	Fetcher Fetcher
	Logger  *logging.Logger
	// ThumbnailSize defaults to BadgeSize.
	ThumbnailSize int
	// OnConvert runs once per webp conversion.
	OnConvert func()
}

func NewValidator(opts Options) *Validator {
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = BadgeSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Validator{
		fetcher:   opts.Fetcher,
		logger:    opts.Logger,
		thumbSize: opts.ThumbnailSize,
		onConvert: opts.OnConvert,
		cache:     make(map[string]ValidatedImage),
	}
}

// ValidateAndProcess returns the validated form of url. Concurrent callers for the same
// url share one fetch and conversion. Failures are not cached.
func (v *Validator) ValidateAndProcess(ctx context.Context, url string) (ValidatedImage, error) {
	if cached, ok := v.lookup(url); ok {
		return cached, nil
	}

	// The shared call outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	result, err, _ := v.inflight.Do(url, func() (interface{}, error) {
		if cached, ok := v.lookup(url); ok {
			return cached, nil
		}
		validated, err := v.process(shared, url)
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		v.cache[url] = validated
		v.mu.Unlock()
		return validated, nil
	})
	if err != nil {
		v.logger.WarnTag("BADGE", "validate %s failed: %v", url, err)
		return ValidatedImage{}, err
	}
	return result.(ValidatedImage), nil
}

// Load fetches and decodes an arbitrary image without caching. Used for per-request backgrounds.
func (v *Validator) Load(ctx context.Context, url string) (stdimage.Image, error) {
	raw, err := v.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	img, _, err := stdimage.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, decodeError("decode "+url, err)
	}
	return img, nil
}

// Conversions reports how many webp conversions ran.
func (v *Validator) Conversions() int64 {
	return v.conversions.Load()
}

// Cached reports the number of validated URLs held in memory.
func (v *Validator) Cached() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.cache)
}

func (v *Validator) lookup(url string) (ValidatedImage, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	cached, ok := v.cache[url]
	return cached, ok
}

func (v *Validator) process(ctx context.Context, url string) (ValidatedImage, error) {
	raw, err := v.fetcher.Fetch(ctx, url)
	if err != nil {
		return ValidatedImage{}, err
	}

	cfg, format, err := stdimage.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return ValidatedImage{}, decodeError("read metadata of "+url, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ValidatedImage{}, decodeError(fmt.Sprintf("%s has no dimensions", url), nil)
	}

	img, _, err := stdimage.Decode(bytes.NewReader(raw))
	if err != nil {
		return ValidatedImage{}, decodeError("decode "+url, err)
	}

	validated := ValidatedImage{
		URL:        url,
		Dimensions: Dimensions{Width: cfg.Width, Height: cfg.Height},
		Format:     format,
		Thumbnail:  Thumbnail(img, v.thumbSize),
	}

	if format == "webp" {
		dataURL, err := encodePNGDataURL(img)
		if err != nil {
			return ValidatedImage{}, decodeError("convert "+url, err)
		}
		validated.URL = dataURL
		validated.Converted = true
		v.conversions.Add(1)
		if v.onConvert != nil {
			v.onConvert()
		}
		v.logger.DebugTag("BADGE", "converted webp %s (%dx%d)", url, cfg.Width, cfg.Height)
	}
	return validated, nil
}

// Thumbnail crops img to its centred square and scales that to size×size, so
// non-square artwork is cropped rather than stretched.
func Thumbnail(img stdimage.Image, size int) stdimage.Image {
	dst := stdimage.NewRGBA(stdimage.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, centerSquare(img.Bounds()), draw.Over, nil)
	return dst
}

func centerSquare(r stdimage.Rectangle) stdimage.Rectangle {
	w, h := r.Dx(), r.Dy()
	switch {
	case w > h:
		x := r.Min.X + (w-h)/2
		return stdimage.Rect(x, r.Min.Y, x+h, r.Max.Y)
	case h > w:
		y := r.Min.Y + (h-w)/2
		return stdimage.Rect(r.Min.X, y, r.Max.X, y+w)
	default:
		return r
	}
}

func encodePNGDataURL(img stdimage.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
