package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the article intake service.
// Metrics are organized by subsystem: sessions, uploads, processing status
// tracking, submissions, drafts, and upstream backend requests. All counters
// and histograms are registered via promauto for automatic registration with
// the default Prometheus registry.
type Metrics struct {
	// SessionsCreated counts the total number of wizard sessions created.
	SessionsCreated prometheus.Counter

	// SessionsAbandoned counts the total number of sessions deleted before submission.
	SessionsAbandoned prometheus.Counter

	// SessionsSubmitted counts the total number of sessions submitted successfully.
	SessionsSubmitted prometheus.Counter

	// SessionsActive tracks the number of live in-memory sessions.
	SessionsActive prometheus.Gauge

	// UploadsStarted counts content file uploads initiated.
	UploadsStarted prometheus.Counter

	// UploadsCompleted counts content file uploads that finished successfully.
	UploadsCompleted prometheus.Counter

	// UploadsFailed counts content file uploads that failed, labeled by stage
	// (negotiate, transfer).
	UploadsFailed *prometheus.CounterVec

	// UploadsRejected counts files rejected before upload, labeled by reason
	// (mime_type, size).
	UploadsRejected *prometheus.CounterVec

	// UploadDuration observes per-file upload duration in seconds.
	UploadDuration prometheus.Histogram

	// PollsTotal counts processing-status polls issued.
	PollsTotal prometheus.Counter

	// PollsFailed counts processing-status polls that returned an error.
	PollsFailed prometheus.Counter

	// FilesTracked tracks the number of files with an active polling loop.
	FilesTracked prometheus.Gauge

	// ProcessingCompleted counts files whose backend processing completed.
	ProcessingCompleted prometheus.Counter

	// ProcessingFailed counts files whose backend processing failed, labeled by
	// reason (backend, retry_ceiling).
	ProcessingFailed *prometheus.CounterVec

	// ArticlesSubmitted counts individual article records submitted.
	ArticlesSubmitted prometheus.Counter

	// SubmissionDuration observes end-to-end submission duration in seconds.
	SubmissionDuration prometheus.Histogram

	// SubmissionsFailed counts submissions that failed, labeled by reason
	// (incomplete, backend).
	SubmissionsFailed *prometheus.CounterVec

	// DraftSaves counts session draft snapshots persisted.
	DraftSaves prometheus.Counter

	// DraftSaveFailures counts draft snapshot persistence failures.
	DraftSaveFailures prometheus.Counter

	// UpstreamRequestsTotal counts HTTP requests to the content backend,
	// labeled by endpoint.
	UpstreamRequestsTotal *prometheus.CounterVec

	// UpstreamRequestsFailed counts failed HTTP requests to the content
	// backend, labeled by endpoint and error type.
	UpstreamRequestsFailed *prometheus.CounterVec

	// UpstreamRequestDuration observes HTTP request duration to the content
	// backend in seconds.
	UpstreamRequestDuration *prometheus.HistogramVec

	// UpstreamRateLimited counts rate-limited responses from the content backend.
	UpstreamRateLimited prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Sessions
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of wizard sessions created",
		}),
		SessionsAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_abandoned_total",
			Help:      "Total number of wizard sessions deleted before submission",
		}),
		SessionsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_submitted_total",
			Help:      "Total number of wizard sessions submitted",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live in-memory wizard sessions",
		}),

		// Uploads
		UploadsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_started_total",
			Help:      "Total number of content file uploads started",
		}),
		UploadsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_completed_total",
			Help:      "Total number of content file uploads completed",
		}),
		UploadsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_failed_total",
			Help:      "Total number of content file uploads that failed by stage",
		}, []string{"stage"}),
		UploadsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Total number of files rejected before upload by reason",
		}, []string{"reason"}),
		UploadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Duration of per-file uploads in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		// Processing status tracking
		PollsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_polls_total",
			Help:      "Total number of processing-status polls issued",
		}),
		PollsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_polls_failed_total",
			Help:      "Total number of processing-status polls that failed",
		}),
		FilesTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_tracked",
			Help:      "Number of files with an active status polling loop",
		}),
		ProcessingCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processing_completed_total",
			Help:      "Total number of files whose backend processing completed",
		}),
		ProcessingFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processing_failed_total",
			Help:      "Total number of files whose backend processing failed by reason",
		}, []string{"reason"}),

		// Submissions
		ArticlesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_submitted_total",
			Help:      "Total number of article records submitted",
		}),
		SubmissionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Duration of submission assembly and delivery in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		SubmissionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_failed_total",
			Help:      "Total number of failed submissions by reason",
		}, []string{"reason"}),

		// Drafts
		DraftSaves: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_saves_total",
			Help:      "Total number of session draft snapshots persisted",
		}),
		DraftSaveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_save_failures_total",
			Help:      "Total number of draft snapshot persistence failures",
		}),

		// Upstream backend
		UpstreamRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of requests to the content backend",
		}, []string{"endpoint"}),
		UpstreamRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_failed_total",
			Help:      "Total number of failed requests to the content backend",
		}, []string{"endpoint", "error_type"}),
		UpstreamRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of requests to the content backend in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		UpstreamRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_rate_limited_total",
			Help:      "Total number of rate limit responses from the content backend",
		}),
	}
}

// RecordSessionCreated records that a wizard session has been created.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionAbandoned records that a session was deleted before submission.
func (m *Metrics) RecordSessionAbandoned() {
	m.SessionsAbandoned.Inc()
	m.SessionsActive.Dec()
}

// RecordSessionSubmitted records that a session was submitted.
func (m *Metrics) RecordSessionSubmitted(articleCount int, durationSeconds float64) {
	m.SessionsSubmitted.Inc()
	m.SessionsActive.Dec()
	m.ArticlesSubmitted.Add(float64(articleCount))
	m.SubmissionDuration.Observe(durationSeconds)
}

// RecordSubmissionFailed records a failed submission.
func (m *Metrics) RecordSubmissionFailed(reason string) {
	m.SubmissionsFailed.WithLabelValues(reason).Inc()
}

// RecordUploadStarted records that a file upload has started.
func (m *Metrics) RecordUploadStarted() {
	m.UploadsStarted.Inc()
}

// RecordUploadCompleted records that a file upload has completed.
func (m *Metrics) RecordUploadCompleted(durationSeconds float64) {
	m.UploadsCompleted.Inc()
	m.UploadDuration.Observe(durationSeconds)
}

// RecordUploadFailed records a failed upload at the given stage.
func (m *Metrics) RecordUploadFailed(stage string) {
	m.UploadsFailed.WithLabelValues(stage).Inc()
}

// RecordUploadRejected records a file rejected before upload.
func (m *Metrics) RecordUploadRejected(reason string) {
	m.UploadsRejected.WithLabelValues(reason).Inc()
}

// RecordPoll records a processing-status poll.
func (m *Metrics) RecordPoll() {
	m.PollsTotal.Inc()
}

// RecordPollFailed records a processing-status poll that returned an error.
func (m *Metrics) RecordPollFailed() {
	m.PollsFailed.Inc()
}

// RecordTrackingStarted records that a file polling loop has started.
func (m *Metrics) RecordTrackingStarted() {
	m.FilesTracked.Inc()
}

// RecordTrackingStopped records that a file polling loop has stopped.
func (m *Metrics) RecordTrackingStopped() {
	m.FilesTracked.Dec()
}

// RecordProcessingCompleted records that backend processing for a file completed.
func (m *Metrics) RecordProcessingCompleted() {
	m.ProcessingCompleted.Inc()
}

// RecordProcessingFailed records that backend processing for a file failed.
func (m *Metrics) RecordProcessingFailed(reason string) {
	m.ProcessingFailed.WithLabelValues(reason).Inc()
}

// RecordDraftSave records a persisted draft snapshot.
func (m *Metrics) RecordDraftSave() {
	m.DraftSaves.Inc()
}

// RecordDraftSaveFailure records a failed draft snapshot save.
func (m *Metrics) RecordDraftSaveFailure() {
	m.DraftSaveFailures.Inc()
}

// RecordUpstreamRequest records a request to the content backend.
func (m *Metrics) RecordUpstreamRequest(endpoint string, durationSeconds float64) {
	m.UpstreamRequestsTotal.WithLabelValues(endpoint).Inc()
	m.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordUpstreamRequestFailed records a failed request to the content backend.
func (m *Metrics) RecordUpstreamRequestFailed(endpoint, errorType string) {
	m.UpstreamRequestsFailed.WithLabelValues(endpoint, errorType).Inc()
}

// RecordUpstreamRateLimited records a rate limit response from the backend.
func (m *Metrics) RecordUpstreamRateLimited() {
	m.UpstreamRateLimited.Inc()
}
