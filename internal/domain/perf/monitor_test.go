package perf

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	step, address, status string
	cacheHit              bool
	seconds               float64
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (r *recordingObserver) Observe(step, address string, cacheHit bool, status string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observation{step, address, status, cacheHit, seconds})
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestEndEmitsOneObservation(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	obs := &recordingObserver{}
	m := New("0xabc", false, obs, WithClock(clock.now))

	m.Start(StageRender)
	clock.advance(250 * time.Millisecond)
	m.End(StageRender)

	require.Len(t, obs.seen, 1)
	assert.Equal(t, observation{StageRender, "0xabc", StatusSuccess, false, 0.25}, obs.seen[0])
	assert.Equal(t, 250*time.Millisecond, m.Duration(StageRender))
}

func TestEndWithoutStartIsIgnored(t *testing.T) {
	obs := &recordingObserver{}
	m := New("0xabc", false, obs)

	assert.NotPanics(t, func() { m.End("never-started") })
	assert.Empty(t, obs.seen)
	assert.Zero(t, m.Duration("never-started"))
}

func TestSetStatusAppliesToLaterObservations(t *testing.T) {
	obs := &recordingObserver{}
	m := New("0xabc", true, obs)

	m.Start(StageTotal)
	m.Start(StageBadges)
	m.End(StageBadges)
	m.SetStatus(StatusError)
	m.End(StageTotal)

	require.Len(t, obs.seen, 2)
	assert.Equal(t, StatusSuccess, obs.seen[0].status)
	assert.Equal(t, StatusError, obs.seen[1].status)
	assert.True(t, obs.seen[1].cacheHit)
}

func TestSetCacheHit(t *testing.T) {
	obs := &recordingObserver{}
	m := New("0xabc", false, obs)

	m.Start(StageCache)
	m.SetCacheHit(true)
	m.End(StageCache)

	require.Len(t, obs.seen, 1)
	assert.True(t, obs.seen[0].cacheHit)
}

func TestSummary(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := New("0xabc", false, nil, WithClock(clock.now))

	m.Start(StageTotal)
	m.Start(StageBadges)
	clock.advance(120 * time.Millisecond)
	m.End(StageBadges)
	m.Start(StageRender)
	clock.advance(80 * time.Millisecond)
	m.End(StageRender)
	clock.advance(5 * time.Millisecond)
	m.End(StageTotal)

	want := "\nPerformance Summary:\nfetch_badges: 120ms\nrender: 80ms\nTotal Time: 205ms\n"
	assert.Equal(t, want, m.Summary())
}

func TestSummaryFallsBackToSumOfStages(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := New("0xabc", false, nil, WithClock(clock.now))

	m.Start(StageCompress)
	clock.advance(30 * time.Millisecond)
	m.End(StageCompress)
	m.Start(StageUpload)
	clock.advance(70 * time.Millisecond)
	m.End(StageUpload)

	assert.Contains(t, m.Summary(), "Total Time: 100ms")
}

func TestHistogramObserver(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_duration_seconds",
	}, []string{"step", "address", "cache_hit", "status"})
	m := New("0xabc", false, HistogramObserver{Vec: vec})

	m.Start(StageRender)
	m.End(StageRender)

	assert.Equal(t, 1, testutil.CollectAndCount(vec))
}
