package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the scan pipeline and the product import
var (
	ScansSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scans_submitted_total",
			Help: "Scan submissions by result (recorded, duplicate, invalid, failed)",
		},
		[]string{"result"},
	)

	ImportRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Product import rows by outcome (inserted, updated, skipped)",
		},
		[]string{"outcome"},
	)

	ImportChunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_chunks_total",
			Help: "Product import chunks by result (ok, failed)",
		},
		[]string{"result"},
	)

	ImportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "import_run_duration_seconds",
			Help:    "Duration of a whole product import run",
			Buckets: prometheus.DefBuckets,
		},
	)

	CaptureSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "capture_sessions_active",
			Help: "Capture sessions currently open",
		},
	)

	CaptureFramesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "capture_frames_dropped_total",
			Help: "Frames overwritten before the OCR sampler read them",
		},
	)

	OCRRecognitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_recognitions_total",
			Help: "OCR recognitions by result (match, no_match, error, discarded)",
		},
		[]string{"result"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

// Register registers all metrics with reg. Call once from main.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ScansSubmitted,
		ImportRows,
		ImportChunks,
		ImportDuration,
		CaptureSessionsActive,
		CaptureFramesDropped,
		OCRRecognitions,
		HTTPRequests,
		HTTPRequestDuration,
	)
}
