// Package metrics provides Prometheus metrics for the conversion service
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Conversion outcomes
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_conversions_total",
			Help: "Total number of conversion requests by outcome",
		},
		[]string{"format", "outcome"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cad_conversion_duration_seconds",
			Help:    "Time spent per pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"stage"},
	)

	ConversionTriangles = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cad_conversion_triangles",
			Help:    "Triangle count of finished meshes",
			Buckets: []float64{10, 100, 1000, 10000, 100000, 1000000, 10000000},
		},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cad_upload_bytes",
			Help:    "Size of uploaded exchange files",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	ActiveConversions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cad_active_conversions",
			Help: "Conversions currently in the pipeline",
		},
	)

	// Cache effectiveness
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cad_artifact_cache_hits_total",
			Help: "Conversions served from the artifact cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cad_artifact_cache_misses_total",
			Help: "Conversions that had to run the pipeline",
		},
	)
)

// Recorder provides a convenient interface for recording conversion metrics
type Recorder struct{}

// NewRecorder creates a metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ConversionStarted marks a conversion entering the pipeline.
func (r *Recorder) ConversionStarted(uploadBytes int) {
	ActiveConversions.Inc()
	UploadBytes.Observe(float64(uploadBytes))
}

// ConversionFinished records the outcome of a conversion.
func (r *Recorder) ConversionFinished(format, outcome string, triangles int, duration time.Duration) {
	ActiveConversions.Dec()
	ConversionsTotal.WithLabelValues(format, outcome).Inc()
	if triangles > 0 {
		ConversionTriangles.Observe(float64(triangles))
	}
	ConversionDuration.WithLabelValues("total").Observe(duration.Seconds())
}

// StageObserved records one stage duration.
func (r *Recorder) StageObserved(stage string, duration time.Duration) {
	ConversionDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// CacheHit records a conversion served from cache.
func (r *Recorder) CacheHit() {
	CacheHits.Inc()
}

// CacheMiss records a conversion that missed the cache.
func (r *Recorder) CacheMiss() {
	CacheMisses.Inc()
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
