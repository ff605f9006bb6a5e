package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersCollectors(t *testing.T) {
	m := NewMetrics(false)

	m.Requests.WithLabelValues("success", "false").Inc()
	m.GenerationDuration.WithLabelValues("total", "0xabc", "false", "success").Observe(0.3)
	m.ImageSize.WithLabelValues("0xabc").Set(1234)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues("success", "false")))
	assert.Equal(t, float64(1234), testutil.ToFloat64(m.ImageSize.WithLabelValues("0xabc")))

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["og_image_requests_total"])
	assert.True(t, names["og_image_generation_duration_seconds"])
	assert.True(t, names["og_image_size_bytes"])
}

func TestMetricsAreIndependentPerRegistry(t *testing.T) {
	a := NewMetrics(false)
	b := NewMetrics(false)
	a.UploadsDropped.Inc()
	assert.Equal(t, float64(0), testutil.ToFloat64(b.UploadsDropped))
}

func TestStartSpanWithoutLogger(t *testing.T) {
	ctx, end := StartSpan(context.Background(), "upload", "cdn")
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() { end(nil) })
}
