package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
)

var (
	jobsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_jobs_submitted_total",
			Help: "Total number of automation jobs accepted for dispatch.",
		},
	)
	marketplacesSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_marketplaces_submitted_total",
			Help: "Total number of accepted (job, marketplace) rows.",
		},
	)
	submissionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_submissions_rejected_total",
			Help: "Per-marketplace submission rejections by reason.",
		},
		[]string{"reason"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_webhook_events_total",
			Help: "Webhook events received from the worker by type.",
		},
		[]string{"type"},
	)
	webhookNoops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_webhook_noops_total",
			Help: "Stale or duplicate webhook deliveries dropped by the absorbing-state rules.",
		},
	)
	webhookRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_webhook_rejected_total",
			Help: "Webhook payloads rejected as unrecognized or malformed.",
		},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "automation_queue_depth",
			Help: "Result rows by lifecycle stage within the stats window.",
		},
		[]string{"stage"},
	)

	sweptJobs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_swept_jobs_total",
			Help: "Jobs bulk-failed by the stuck-processing sweep.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		jobsSubmitted,
		marketplacesSubmitted,
		submissionsRejected,
		webhookEvents,
		webhookNoops,
		webhookRejected,
		queueDepth,
		sweptJobs,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// JobSubmitted records one accepted job covering n marketplaces.
func JobSubmitted(marketplaces int) {
	jobsSubmitted.Inc()
	marketplacesSubmitted.Add(float64(marketplaces))
}

// SubmissionRejected records one per-marketplace rejection.
func SubmissionRejected(reason string) {
	submissionsRejected.WithLabelValues(reason).Inc()
}

// WebhookEvent records one received event of the given type.
func WebhookEvent(eventType string) {
	webhookEvents.WithLabelValues(eventType).Inc()
}

// WebhookNoop records a stale/duplicate delivery dropped by design.
func WebhookNoop() {
	webhookNoops.Inc()
}

// WebhookRejected records an unrecognized or malformed payload.
func WebhookRejected() {
	webhookRejected.Inc()
}

// SetQueueDepth refreshes the lifecycle gauges from derived stats.
func SetQueueDepth(stats domain.QueueStats) {
	queueDepth.WithLabelValues("waiting").Set(float64(stats.Waiting))
	queueDepth.WithLabelValues("active").Set(float64(stats.Active))
	queueDepth.WithLabelValues("completed").Set(float64(stats.Completed))
	queueDepth.WithLabelValues("failed").Set(float64(stats.Failed))
	queueDepth.WithLabelValues("delayed").Set(float64(stats.Delayed))
}

// JobSwept records one job resolved by the stuck-processing sweep.
func JobSwept() {
	sweptJobs.Inc()
}
