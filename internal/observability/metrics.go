package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tutor_notifier"

// Send outcome labels.
const (
	OutcomeDelivered  = "delivered"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
	OutcomeSoftFailed = "soft_failed"
)

// Reconcile result labels.
const (
	ReconcileSent         = "sent"
	ReconcileStillPending = "still_pending"
	ReconcileError        = "error"
)

// Metrics stores Prometheus collectors used by the API, worker and jobs.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDuration           *prometheus.HistogramVec
	notificationsDispatchedTotal  *prometheus.CounterVec
	notificationsFailedTotal      *prometheus.CounterVec
	notificationSendDuration      *prometheus.HistogramVec
	notificationsEnqueuedTotal    *prometheus.CounterVec
	workerInflight                *prometheus.GaugeVec
	reconcileRecordsTotal         *prometheus.CounterVec
	subscriptionsDeactivatedTotal prometheus.Counter
	jobRunsTotal                  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		notificationsDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_dispatched_total",
				Help:      "Send attempts grouped by channel and outcome.",
			},
			[]string{"channel", "outcome"},
		),
		notificationsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_failed_total",
				Help:      "Failed send attempts grouped by channel and failure reason.",
			},
			[]string{"channel", "reason"},
		),
		notificationSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		notificationsEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_enqueued_total",
				Help:      "Dispatch requests published to the work queues.",
			},
			[]string{"channel"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_inflight",
				Help:      "Current number of in-flight worker operations grouped by channel.",
			},
			[]string{"channel"},
		),
		reconcileRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_records_total",
				Help:      "Pending records processed by the reconciler grouped by result.",
			},
			[]string{"result"},
		),
		subscriptionsDeactivatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscriptions_deactivated_total",
				Help:      "Subscriptions deactivated by the expiry sweep.",
			},
		),
		jobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Batch job runs grouped by job and final status.",
			},
			[]string{"job", "status"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.notificationsDispatchedTotal,
		m.notificationsFailedTotal,
		m.notificationSendDuration,
		m.notificationsEnqueuedTotal,
		m.workerInflight,
		m.reconcileRecordsTotal,
		m.subscriptionsDeactivatedTotal,
		m.jobRunsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

// ObserveSend records one provider call and its outcome.
func (m *Metrics) ObserveSend(channel domain.Channel, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	label := normalizeChannel(channel)
	m.notificationsDispatchedTotal.WithLabelValues(label, normalizeLabel(outcome)).Inc()
	m.notificationSendDuration.WithLabelValues(label).Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) IncNotificationFailed(channel domain.Channel, reason string) {
	if m == nil {
		return
	}
	m.notificationsFailedTotal.WithLabelValues(normalizeChannel(channel), normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncEnqueued(channel domain.Channel) {
	if m == nil {
		return
	}
	m.notificationsEnqueuedTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncWorkerInFlight(channel domain.Channel) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) DecWorkerInFlight(channel domain.Channel) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeChannel(channel)).Dec()
}

func (m *Metrics) IncReconciled(result string) {
	if m == nil {
		return
	}
	m.reconcileRecordsTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) AddSubscriptionsDeactivated(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.subscriptionsDeactivatedTotal.Add(float64(n))
}

func (m *Metrics) IncJobRun(job string, status domain.JobRunStatus) {
	if m == nil {
		return
	}
	m.jobRunsTotal.WithLabelValues(normalizeLabel(job), normalizeLabel(status.String())).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeChannel(channel domain.Channel) string {
	return normalizeLabel(channel.String())
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
