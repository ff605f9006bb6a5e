package upload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"time"

	"poap-og-server/internal/domain/freshness"
	"poap-og-server/internal/domain/perf"
	platformerrors "poap-og-server/internal/platform/errors"
	"poap-og-server/internal/platform/logging"
	"poap-og-server/internal/platform/observability"
)

const opUpload = "upload.pipeline"

// EntryWriter receives the CDN URL after a successful upload.
type EntryWriter interface {
	Set(ctx context.Context, key string, entry freshness.Entry) error
}

// Pipeline compresses a rendered card, uploads it, and writes the URL back to the cache.
type Pipeline struct {
	cdn     CDN
	cache   EntryWriter
	quality int
	metrics *observability.Metrics
	logger  *logging.Logger
	now     func() time.Time
}

type Options struct {
	CDN         CDN
	Cache       EntryWriter
	JPEGQuality int
	Metrics     *observability.Metrics
	Logger      *logging.Logger
	Now         func() time.Time
}

func NewPipeline(opts Options) *Pipeline {
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 85
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		cdn:     opts.CDN,
		cache:   opts.Cache,
		quality: opts.JPEGQuality,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

// IsUploadError reports whether err came from the CDN step.
func IsUploadError(err error) bool {
	return platformerrors.IsKind(err, platformerrors.KindUpload)
}

// Upload runs to completion with its own monitor. It never retries; on failure the
// existing cache entry, if any, is left untouched.
func (p *Pipeline) Upload(ctx context.Context, rendered []byte, address string) (err error) {
	monitor := perf.New(address, false, p.observer())
	monitor.Start(perf.StageTotal)
	defer func() {
		if err != nil {
			monitor.SetStatus(perf.StatusError)
		}
		monitor.End(perf.StageTotal)
		p.logger.DebugTag("TIMING", "upload %s%s", address, monitor.Summary())
	}()

	monitor.Start(perf.StageCompress)
	compressed, err := p.compress(rendered)
	monitor.End(perf.StageCompress)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindUpload, opUpload, "compress card", err)
	}
	if p.metrics != nil {
		p.metrics.ImageSize.WithLabelValues(address).Set(float64(len(compressed)))
	}

	monitor.Start(perf.StageUpload)
	started := p.now()
	spanCtx, endSpan := observability.StartSpan(ctx, "upload", "cdn.put")
	url, err := p.cdn.Put(spanCtx, address+".jpg", compressed, "image/jpeg")
	endSpan(err)
	monitor.End(perf.StageUpload)
	p.observeUpload(address, started, err)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindUpload, opUpload, "put "+address, err)
	}

	monitor.Start(perf.StageCacheSet)
	err = p.cache.Set(ctx, address, freshness.Entry{URL: url, LastUpdated: p.now()})
	monitor.End(perf.StageCacheSet)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, opUpload, "write cache for "+address, err)
	}

	p.logger.InfoTag("UPLOAD", "uploaded %s -> %s (%d bytes)", address, url, len(compressed))
	return nil
}

func (p *Pipeline) observer() perf.Observer {
	if p.metrics == nil {
		return nil
	}
	return perf.HistogramObserver{Vec: p.metrics.GenerationDuration}
}

func (p *Pipeline) observeUpload(address string, started time.Time, err error) {
	if p.metrics == nil {
		return
	}
	status := perf.StatusSuccess
	if err != nil {
		status = perf.StatusError
	}
	p.metrics.UploadDuration.WithLabelValues(status, address).Observe(p.now().Sub(started).Seconds())
}

func (p *Pipeline) compress(rendered []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(rendered))
	if err != nil {
		return nil, fmt.Errorf("decode rendered card: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
