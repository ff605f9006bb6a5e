// Package perf times the stages of a single preview request.
package perf

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage labels shared by the orchestrator and the upload pipeline.
const (
	StageTotal    = "total"
	StageCache    = "cache_check"
	StageBadges   = "fetch_badges"
	StageValidate = "validate_images"
	StageRender   = "render"
	StageRespond  = "respond"
	StageUpload   = "upload"
	StageCompress = "compress"
	StageCacheSet = "cache_write"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Observer receives one observation per finished stage. A *prometheus.HistogramVec
// labelled step, address, cache_hit, status satisfies it via HistogramObserver.
type Observer interface {
	Observe(step, address string, cacheHit bool, status string, seconds float64)
}

// HistogramObserver adapts a histogram vector to Observer.
type HistogramObserver struct {
	Vec *prometheus.HistogramVec
}

func (h HistogramObserver) Observe(step, address string, cacheHit bool, status string, seconds float64) {
	if h.Vec == nil {
		return
	}
	h.Vec.WithLabelValues(step, address, strconv.FormatBool(cacheHit), status).Observe(seconds)
}

// Monitor records per-stage durations for one request or one background job.
type Monitor struct {
	address  string
	cacheHit bool
	observer Observer
	now      func() time.Time

	mu        sync.Mutex
	status    string
	starts    map[string]time.Time
	durations map[string]time.Duration
	order     []string
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func New(address string, cacheHit bool, observer Observer, opts ...Option) *Monitor {
	m := &Monitor{
		address:   address,
		cacheHit:  cacheHit,
		observer:  observer,
		now:       time.Now,
		status:    StatusSuccess,
		starts:    make(map[string]time.Time),
		durations: make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) Start(label string) {
	m.mu.Lock()
	m.starts[label] = m.now()
	m.mu.Unlock()
}

// End records the elapsed time since Start(label) and emits it to the observer.
// End without a matching Start is silently ignored.
func (m *Monitor) End(label string) {
	m.mu.Lock()
	started, ok := m.starts[label]
	if !ok {
		m.mu.Unlock()
		return
	}
	elapsed := m.now().Sub(started)
	if _, seen := m.durations[label]; !seen {
		m.order = append(m.order, label)
	}
	m.durations[label] = elapsed
	status, hit := m.status, m.cacheHit
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.Observe(label, m.address, hit, status, elapsed.Seconds())
	}
}

// Duration returns the recorded duration of label, or zero if it never ended.
func (m *Monitor) Duration(label string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.durations[label]
}

// SetCacheHit sets the cache_hit label for subsequent observations.
func (m *Monitor) SetCacheHit(hit bool) {
	m.mu.Lock()
	m.cacheHit = hit
	m.mu.Unlock()
}

// SetStatus overrides the status attached to subsequent observations.
func (m *Monitor) SetStatus(status string) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Summary renders every non-total stage in the order it ended followed by the total.
// When "total" was never recorded the sum of the stages is reported instead.
func (m *Monitor) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	b.WriteString("\nPerformance Summary:\n")
	var sum time.Duration
	for _, label := range m.order {
		if label == StageTotal {
			continue
		}
		d := m.durations[label]
		sum += d
		fmt.Fprintf(&b, "%s: %dms\n", label, d.Milliseconds())
	}
	total, ok := m.durations[StageTotal]
	if !ok {
		total = sum
	}
	fmt.Fprintf(&b, "Total Time: %dms\n", total.Milliseconds())
	return b.String()
}
