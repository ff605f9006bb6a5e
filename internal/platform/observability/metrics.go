package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// GenerationBuckets are the per-stage duration buckets in seconds.
	GenerationBuckets = []float64{0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 0.8, 1, 2, 3, 4, 5, 10}
	// UploadBuckets are the CDN upload duration buckets in seconds.
	UploadBuckets = []float64{0.1, 0.5, 1, 2, 5, 10}
)

// Metrics holds the collectors shared by every request. It is process-wide.
type Metrics struct {
	Registry *prometheus.Registry

	GenerationDuration *prometheus.HistogramVec
	Requests           *prometheus.CounterVec
	ImageSize          *prometheus.GaugeVec
	UploadDuration     *prometheus.HistogramVec
	UploadsDropped     prometheus.Counter
	BadgeConversions   prometheus.Counter
	WarmEvents         *prometheus.CounterVec
}

// NewMetrics creates a registry with the preview collectors. Runtime collectors are added when withRuntime is set.
func NewMetrics(withRuntime bool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "og_image_generation_duration_seconds",
			Help:    "Duration of OG image generation steps in seconds",
			Buckets: GenerationBuckets,
		}, []string{"step", "address", "cache_hit", "status"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "og_image_requests_total",
			Help: "Total number of OG image requests",
		}, []string{"status", "cache_hit"}),
		ImageSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "og_image_size_bytes",
			Help: "Size of generated OG images in bytes",
		}, []string{"address"}),
		UploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cloudflare_upload_duration_seconds",
			Help:    "Duration of image uploads to the CDN in seconds",
			Buckets: UploadBuckets,
		}, []string{"status", "address"}),
		UploadsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "og_image_uploads_dropped_total",
			Help: "Upload jobs rejected because the background queue was full",
		}),
		BadgeConversions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "og_badge_conversions_total",
			Help: "Badge images converted from webp to png",
		}),
		WarmEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "og_image_warm_total",
			Help: "Addresses re-rendered by the warm-up job",
		}, []string{"status"}),
	}

	m.Registry.MustRegister(
		m.GenerationDuration,
		m.Requests,
		m.ImageSize,
		m.UploadDuration,
		m.UploadsDropped,
		m.BadgeConversions,
		m.WarmEvents,
	)
	if withRuntime {
		m.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}
