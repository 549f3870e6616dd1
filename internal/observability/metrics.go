package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds sample metrics:
// - API calls: latency, traffic and errors per service/method
// - DLP job waits: poll attempts, ignored notifications, wait time, outcome
type Metrics struct {
	meter metric.Meter

	APICallDuration metric.Float64Histogram
	APICallsTotal   metric.Int64Counter
	APIErrorsTotal  metric.Int64Counter

	JobPollAttempts      metric.Int64Counter
	NotificationsIgnored metric.Int64Counter
	JobWaitDuration      metric.Float64Histogram
	JobOutcomesTotal     metric.Int64Counter
}

// NewMetrics creates all metrics on a private Prometheus registry and returns
// the handler serving it.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("cloudsamples")
	m := &Metrics{meter: meter}

	m.APICallDuration, err = meter.Float64Histogram(
		"api_call_duration_seconds",
		metric.WithDescription("Remote API call latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, nil, err
	}

	m.APICallsTotal, err = meter.Int64Counter(
		"api_calls_total",
		metric.WithDescription("Total number of remote API calls"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.APIErrorsTotal, err = meter.Int64Counter(
		"api_errors_total",
		metric.WithDescription("Total number of failed remote API calls"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobPollAttempts, err = meter.Int64Counter(
		"dlp_job_poll_attempts_total",
		metric.WithDescription("Total notification pulls while waiting for DLP jobs"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotificationsIgnored, err = meter.Int64Counter(
		"dlp_notifications_ignored_total",
		metric.WithDescription("Notifications left unacknowledged because they belong to another job"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobWaitDuration, err = meter.Float64Histogram(
		"dlp_job_wait_seconds",
		metric.WithDescription("Time spent waiting for a DLP job to finish"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 900),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobOutcomesTotal, err = meter.Int64Counter(
		"dlp_job_outcomes_total",
		metric.WithDescription("DLP job waits by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// RecordAPICall records a remote API call.
func (m *Metrics) RecordAPICall(ctx context.Context, service, method string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		serviceAttr(service),
		methodAttr(method),
		successAttr(success),
	)

	m.APICallDuration.Record(ctx, duration.Seconds(), attrs)
	m.APICallsTotal.Add(ctx, 1, attrs)

	if !success {
		m.APIErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordPollAttempt records one pull of the notification subscription.
func (m *Metrics) RecordPollAttempt(ctx context.Context) {
	m.JobPollAttempts.Add(ctx, 1)
}

// RecordNotificationIgnored records a notification that did not match the awaited job.
func (m *Metrics) RecordNotificationIgnored(ctx context.Context) {
	m.NotificationsIgnored.Add(ctx, 1)
}

// RecordJobWait records the end of a job wait.
func (m *Metrics) RecordJobWait(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(outcomeAttr(outcome))
	m.JobWaitDuration.Record(ctx, duration.Seconds(), attrs)
	m.JobOutcomesTotal.Add(ctx, 1, attrs)
}
