package preview

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	stdimage "image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"poap-og-server/internal/domain/badge"
	"poap-og-server/internal/domain/compose"
	"poap-og-server/internal/domain/freshness"
	"poap-og-server/internal/domain/perf"
	platformerrors "poap-og-server/internal/platform/errors"
	"poap-og-server/internal/platform/logging"
	"poap-og-server/internal/platform/observability"
	"poap-og-server/internal/util/work"
)

const (
	opHandle = "preview.handle"
	opWarm   = "preview.warm"

	// DefaultMaxPostBytes caps trusted caller bodies.
	DefaultMaxPostBytes int64 = 1 << 20
)

type Options struct {
	Cache     EntryReader
	Window    time.Duration
	Badges    badge.Source
	Validator BadgeValidator
	Assets    *compose.Assets
	// Render defaults to compose.Render.
	Render  RenderFunc
	Uploads UploadQueue

	SharedKey    string
	MaxPostBytes int64

	Metrics *observability.Metrics
	Logger  *logging.Logger
	Now     func() time.Time
}

// Orchestrator runs the preview state machine for one request at a time; it is safe
// for concurrent use.
type Orchestrator struct {
	cache     EntryReader
	window    time.Duration
	badges    badge.Source
	validator BadgeValidator
	assets    *compose.Assets
	render    RenderFunc
	uploads   UploadQueue

	sharedKey    []byte
	maxPostBytes int64

	metrics *observability.Metrics
	logger  *logging.Logger
	now     func() time.Time
}

func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Cache == nil:
		return nil, platformerrors.New(platformerrors.KindConfig, "preview.new", "cache is required")
	case opts.Validator == nil:
		return nil, platformerrors.New(platformerrors.KindConfig, "preview.new", "validator is required")
	case opts.Assets == nil || opts.Assets.Font == nil:
		return nil, platformerrors.New(platformerrors.KindConfig, "preview.new", "assets with a font are required")
	case opts.Uploads == nil:
		return nil, platformerrors.New(platformerrors.KindConfig, "preview.new", "upload queue is required")
	}
	if opts.Window <= 0 {
		opts.Window = freshness.DefaultWindow
	}
	if opts.Render == nil {
		opts.Render = compose.Render
	}
	if opts.MaxPostBytes <= 0 {
		opts.MaxPostBytes = DefaultMaxPostBytes
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		cache:        opts.Cache,
		window:       opts.Window,
		badges:       opts.Badges,
		validator:    opts.Validator,
		assets:       opts.Assets,
		render:       opts.Render,
		uploads:      opts.Uploads,
		sharedKey:    []byte(opts.SharedKey),
		maxPostBytes: opts.MaxPostBytes,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		now:          opts.Now,
	}, nil
}

// Handle drives one request to exactly one Responder call.
func (o *Orchestrator) Handle(ctx context.Context, req Request, w Responder) {
	address, err := singleAddress(req.Addresses)

	// Rejected addresses are observed under an empty address label.
	monitor := perf.New(address, false, o.observer())
	monitor.Start(perf.StageTotal)
	ctx, endSpan := observability.StartSpan(ctx, "preview", "handle")

	var cacheHit bool
	if err == nil {
		cacheHit, err = o.run(ctx, monitor, address, req, w)
	}
	if err != nil {
		monitor.SetStatus(perf.StatusError)
		w.Fail(err)
		o.logFailure(address, err)
	}
	monitor.End(perf.StageTotal)
	endSpan(err)
	o.countRequest(monitor.Status(), cacheHit)
	o.logger.DebugTag("TIMING", "%s %s", address, monitor.Summary())
}

// Warm renders address through the GET path and discards the image. A fresh cache
// entry makes it a no-op.
func (o *Orchestrator) Warm(ctx context.Context, address string) error {
	sink := &discardResponder{}
	o.Handle(ctx, Request{Method: http.MethodGet, Addresses: []string{address}}, sink)
	if sink.err != nil {
		return platformerrors.Wrap(platformerrors.KindUnknown, opWarm, "warm "+address, sink.err)
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, monitor *perf.Monitor, address string, req Request, w Responder) (bool, error) {
	// Method and caller checks run before the cache lookup.
	payload, err := o.admit(req)
	if err != nil {
		return false, err
	}

	monitor.Start(perf.StageCache)
	entry := o.cache.Get(ctx, address)
	hit := entry != nil && entry.Fresh(o.now(), o.window)
	monitor.SetCacheHit(hit)
	monitor.End(perf.StageCache)
	if hit {
		o.logger.DebugTag("CACHE", "hit for %s, redirecting to %s", address, entry.URL)
		w.Redirect(entry.URL)
		return true, nil
	}

	monitor.Start(perf.StageBadges)
	records, moments, err := o.badgeData(ctx, address, payload)
	monitor.End(perf.StageBadges)
	if err != nil {
		return false, err
	}

	monitor.Start(perf.StageValidate)
	badges, background := o.prepareImages(ctx, badge.SelectBadges(records), badge.BackgroundURL(moments))
	monitor.End(perf.StageValidate)

	monitor.Start(perf.StageRender)
	rendered, err := o.render(compose.Input{
		Background: background,
		Foreground: o.assets.Foreground,
		Badges:     badges,
		Address:    address,
		Font:       o.assets.Font,
	})
	monitor.End(perf.StageRender)
	if err != nil {
		return false, platformerrors.Wrap(platformerrors.KindRender, opHandle, "render card", err)
	}

	monitor.Start(perf.StageRespond)
	err = w.Image(rendered)
	monitor.End(perf.StageRespond)
	if err != nil {
		return false, platformerrors.Wrap(platformerrors.KindTransport, opHandle, "write image", err)
	}

	o.spawnUpload(address, rendered)
	return false, nil
}

// admit rejects unsupported methods and, for POST, decodes and authorizes the caller's
// payload. A nil payload means the GET path.
func (o *Orchestrator) admit(req Request) (*Payload, error) {
	switch req.Method {
	case http.MethodGet:
		return nil, nil
	case http.MethodPost:
		payload, err := o.decodePayload(req.Body)
		if err != nil {
			return nil, err
		}
		if !o.authorized(payload.Key) {
			return nil, platformerrors.New(platformerrors.KindAuth, opHandle, "invalid api key")
		}
		if payload.Poaps == nil {
			return nil, platformerrors.New(platformerrors.KindInput, opHandle, "poaps is required")
		}
		return &payload, nil
	default:
		return nil, platformerrors.New(platformerrors.KindMethod, opHandle,
			fmt.Sprintf("method %s not allowed", req.Method))
	}
}

// badgeData resolves the records to draw: the caller's payload for POST, the badge
// provider for GET.
func (o *Orchestrator) badgeData(ctx context.Context, address string, payload *Payload) ([]badge.Record, []badge.Moment, error) {
	if payload != nil {
		return payload.Poaps, payload.LatestMoments, nil
	}
	if o.badges == nil {
		return nil, nil, platformerrors.New(platformerrors.KindUpstream, opHandle, "no badge provider configured")
	}
	records, err := o.badges.BadgesOf(ctx, address)
	if err != nil {
		return nil, nil, platformerrors.Wrap(platformerrors.KindUpstream, opHandle, "fetch badges", err)
	}
	return records, nil, nil
}

func (o *Orchestrator) decodePayload(body io.Reader) (Payload, error) {
	var payload Payload
	if body == nil {
		return payload, platformerrors.New(platformerrors.KindInput, opHandle, "empty body")
	}
	data, err := io.ReadAll(io.LimitReader(body, o.maxPostBytes+1))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || int64(len(data)) > o.maxPostBytes {
		return payload, platformerrors.New(platformerrors.KindPayload, opHandle,
			"body exceeds "+strconv.FormatInt(o.maxPostBytes, 10)+" bytes")
	}
	if err != nil {
		return payload, platformerrors.Wrap(platformerrors.KindInput, opHandle, "read body", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return payload, platformerrors.New(platformerrors.KindInput, opHandle, "empty body")
	}
	if err := sonic.Unmarshal(data, &payload); err != nil {
		return payload, platformerrors.Wrap(platformerrors.KindInput, opHandle, "decode body", err)
	}
	return payload, nil
}

// authorized compares in constant time. An unset shared key rejects every caller.
func (o *Orchestrator) authorized(key string) bool {
	if len(o.sharedKey) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(o.sharedKey, []byte(key)) == 1
}

// prepareImages never fails: a badge that cannot be validated is drawn as the default
// badge and a background that cannot be loaded falls back to the static layer.
func (o *Orchestrator) prepareImages(ctx context.Context, records []badge.Record, backgroundURL string) ([]stdimage.Image, stdimage.Image) {
	badges := make([]stdimage.Image, len(records))
	background := o.assets.Background

	var g errgroup.Group
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			badges[i] = o.badgeImage(ctx, rec)
			return nil
		})
	}
	if backgroundURL != "" {
		g.Go(func() error {
			img, err := o.validator.Load(ctx, backgroundURL)
			if err != nil {
				o.logger.WarnTag("BADGE", "moment background %s unusable, keeping default: %v", backgroundURL, err)
				return nil
			}
			background = img
			return nil
		})
	}
	_ = g.Wait()
	return badges, background
}

func (o *Orchestrator) badgeImage(ctx context.Context, rec badge.Record) stdimage.Image {
	if rec.Event.ImageURL == "" {
		o.logger.WarnTag("BADGE", "badge %s (%s) has no image, using default", rec.ID, rec.Event.Name)
		return o.assets.DefaultBadge
	}
	validated, err := o.validator.ValidateAndProcess(ctx, rec.Event.ImageURL)
	if err != nil || validated.Thumbnail == nil {
		o.logger.WarnTag("BADGE", "badge %s (%s) failed validation, using default: %v", rec.ID, rec.Event.Name, err)
		return o.assets.DefaultBadge
	}
	return validated.Thumbnail
}

func (o *Orchestrator) spawnUpload(address string, rendered []byte) {
	err := o.uploads.Submit(UploadJob{Address: address, PNG: rendered})
	switch {
	case err == nil:
	case errors.Is(err, work.ErrQueueFull):
		if o.metrics != nil {
			o.metrics.UploadsDropped.Inc()
		}
		o.logger.WarnTag("UPLOAD", "queue full, dropping upload for %s", address)
	default:
		o.logger.ErrorTag("UPLOAD", "could not schedule upload for %s: %v", address, err)
	}
}

func (o *Orchestrator) observer() perf.Observer {
	if o.metrics == nil {
		return nil
	}
	return perf.HistogramObserver{Vec: o.metrics.GenerationDuration}
}

func (o *Orchestrator) countRequest(status string, cacheHit bool) {
	if o.metrics == nil {
		return
	}
	o.metrics.Requests.WithLabelValues(status, strconv.FormatBool(cacheHit)).Inc()
}

func (o *Orchestrator) logFailure(address string, err error) {
	switch platformerrors.KindOf(err) {
	case platformerrors.KindInput, platformerrors.KindAuth, platformerrors.KindMethod, platformerrors.KindPayload:
		o.logger.InfoTag("PREVIEW", "rejected request for %s: %v", address, err)
	default:
		o.logger.ErrorTag("PREVIEW", "preview for %s failed: %v", address, err)
	}
}

func singleAddress(values []string) (string, error) {
	switch len(values) {
	case 0:
		return "", platformerrors.New(platformerrors.KindInput, opHandle, "invalid address")
	case 1:
	default:
		return "", platformerrors.New(platformerrors.KindInput, opHandle, "address must be a single value")
	}
	address := strings.TrimSpace(values[0])
	if address == "" || strings.ContainsAny(address, "/?# \t\r\n") {
		return "", platformerrors.New(platformerrors.KindInput, opHandle, "invalid address")
	}
	return address, nil
}

type discardResponder struct {
	err error
}

func (d *discardResponder) Redirect(string) {}

func (d *discardResponder) Image([]byte) error { return nil }

func (d *discardResponder) Fail(err error) { d.err = err }
