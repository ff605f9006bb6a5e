package refresh

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"

	"poap-og-server/internal/domain/eventbus"
	"poap-og-server/internal/domain/freshness"
	platformerrors "poap-og-server/internal/platform/errors"
	"poap-og-server/internal/platform/logging"
)

const (
	opRun = "refresh.run"

	DefaultWatermarkKey = "lastUpdateTimestampOfPOAP"
)

// DefaultWatermark is where the first run starts.
var DefaultWatermark = time.Date(2024, 5, 14, 2, 0, 0, 0, time.UTC)

// WatermarkStore holds the end of the last processed range.
type WatermarkStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Publisher queues events without blocking.
type Publisher interface {
	PublishAsync(topic string, args ...interface{}) error
}

type Options struct {
	Mints        MintSource
	Store        WatermarkStore
	Publisher    Publisher
	CronSecret   string
	WatermarkKey string
	// DefaultWatermark is used when the store has no watermark yet.
	DefaultWatermark time.Time
	Logger           *logging.Logger
	Now              func() time.Time
}

// Job is one warm-up pass. Run is safe to call repeatedly.
type Job struct {
	mints     MintSource
	store     WatermarkStore
	publisher Publisher
	secret    string
	key       string
	initial   time.Time
	logger    *logging.Logger
	now       func() time.Time
}

// Result summarises a run.
type Result struct {
	From      time.Time
	To        time.Time
	Mints     int
	Addresses int
	Dropped   int
}

func NewJob(opts Options) *Job {
	if opts.WatermarkKey == "" {
		opts.WatermarkKey = DefaultWatermarkKey
	}
	if opts.DefaultWatermark.IsZero() {
		opts.DefaultWatermark = DefaultWatermark
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Job{
		mints:     opts.Mints,
		store:     opts.Store,
		publisher: opts.Publisher,
		secret:    opts.CronSecret,
		key:       opts.WatermarkKey,
		initial:   opts.DefaultWatermark,
		logger:    opts.Logger,
		now:       opts.Now,
	}
}

// Authorized checks an Authorization header against "Bearer <secret>". An unset
// secret rejects every caller.
func (j *Job) Authorized(header string) bool {
	if j.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte("Bearer "+j.secret)) == 1
}

// Run publishes one warm event per distinct collector that minted since the watermark,
// then advances the watermark to now.
func (j *Job) Run(ctx context.Context) (Result, error) {
	from, err := j.watermark(ctx)
	if err != nil {
		return Result{}, err
	}
	to := j.now().UTC().Truncate(time.Second)
	res := Result{From: from, To: to}

	mints, err := j.mints.MintsBetween(ctx, from, to)
	if err != nil {
		return res, platformerrors.Wrap(platformerrors.KindUpstream, opRun, "list mints", err)
	}
	res.Mints = len(mints)

	addresses := UniqueCollectors(mints)
	res.Addresses = len(addresses)
	for _, address := range addresses {
		err := j.publisher.PublishAsync(eventbus.EventPreviewWarm, eventbus.WarmEventData{
			Address:     address,
			Source:      "cron",
			RequestedAt: to,
		})
		if err != nil {
			res.Dropped++
			j.logger.WarnTag("REFRESH", "could not queue warm-up for %s: %v", address, err)
		}
	}

	if err := j.store.Set(ctx, j.key, strconv.FormatInt(to.Unix(), 10)); err != nil {
		return res, platformerrors.Wrap(platformerrors.KindStorage, opRun, "store watermark", err)
	}
	j.logger.InfoTag("REFRESH", "queued %d of %d addresses from %d mints between %s and %s",
		res.Addresses-res.Dropped, res.Addresses, res.Mints, from.Format(time.RFC3339), to.Format(time.RFC3339))
	return res, nil
}

func (j *Job) watermark(ctx context.Context) (time.Time, error) {
	raw, err := j.store.Get(ctx, j.key)
	if errors.Is(err, freshness.ErrNotFound) {
		return j.initial, nil
	}
	if err != nil {
		return time.Time{}, platformerrors.Wrap(platformerrors.KindStorage, opRun, "read watermark", err)
	}
	ts, err := ParseWatermark(raw)
	if err != nil {
		j.logger.WarnTag("REFRESH", "watermark %q unreadable, restarting from %s: %v", raw, j.initial.Format(time.RFC3339), err)
		return j.initial, nil
	}
	return ts, nil
}

// ParseWatermark reads unix seconds, bare or JSON-quoted.
func ParseWatermark(raw string) (time.Time, error) {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}

// UniqueCollectors returns collector addresses in first-seen order, skipping blanks.
func UniqueCollectors(mints []Mint) []string {
	seen := make(map[string]struct{}, len(mints))
	out := make([]string, 0, len(mints))
	for _, m := range mints {
		addr := strings.TrimSpace(m.CollectorAddress)
		if addr == "" {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
