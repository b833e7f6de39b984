package observability

import (
	"context"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the job orchestrator's instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter

	JobsSubmittedTotal  metric.Int64Counter
	JobTransitionsTotal metric.Int64Counter
	JobDuration         metric.Float64Histogram
	CallbacksTotal      metric.Int64Counter

	ProviderRequestDuration metric.Float64Histogram

	SweepRunsTotal   metric.Int64Counter
	SweepJobsChecked metric.Int64Counter
}

// NewMetrics creates every instrument on a private Prometheus registry and
// returns the handler that serves it.
func NewMetrics(_ context.Context) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("photon")
	m := &Metrics{}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsSubmittedTotal, err = meter.Int64Counter(
		"ai_jobs_submitted_total",
		metric.WithDescription("Jobs handed to the provider, by model and outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobTransitionsTotal, err = meter.Int64Counter(
		"ai_job_terminal_transitions_total",
		metric.WithDescription("Applied terminal transitions, by status and resolving path"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobDuration, err = meter.Float64Histogram(
		"ai_job_duration_seconds",
		metric.WithDescription("Time from job creation to terminal status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(5, 10, 20, 30, 45, 60, 90, 120, 300, 600, 900),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CallbacksTotal, err = meter.Int64Counter(
		"ai_job_callbacks_total",
		metric.WithDescription("Provider callbacks received, by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProviderRequestDuration, err = meter.Float64Histogram(
		"provider_request_duration_seconds",
		metric.WithDescription("Provider API latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SweepRunsTotal, err = meter.Int64Counter(
		"reconcile_sweeps_total",
		metric.WithDescription("Reconciliation sweep runs"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SweepJobsChecked, err = meter.Int64Counter(
		"reconcile_jobs_checked_total",
		metric.WithDescription("Jobs examined by the reconciliation sweep, by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(methodAttr(method), routeAttr(route), statusAttr(statusCode))
	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
}

// RecordSubmission records the result of handing a job to the provider.
// outcome is "submitted" or "failed".
func (m *Metrics) RecordSubmission(ctx context.Context, model, outcome string) {
	if m == nil {
		return
	}
	m.JobsSubmittedTotal.Add(ctx, 1, metric.WithAttributes(modelAttr(model), outcomeAttr(outcome)))
}

// RecordTerminal records an applied terminal transition.
func (m *Metrics) RecordTerminal(ctx context.Context, model, status, path string, ageSeconds float64) {
	if m == nil {
		return
	}
	m.JobTransitionsTotal.Add(ctx, 1, metric.WithAttributes(jobStatusAttr(status), pathAttr(path)))
	m.JobDuration.Record(ctx, ageSeconds, metric.WithAttributes(modelAttr(model), jobStatusAttr(status)))
}

// RecordCallback records how a provider callback was handled.
func (m *Metrics) RecordCallback(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.CallbacksTotal.Add(ctx, 1, metric.WithAttributes(outcomeAttr(outcome)))
}

// RecordProviderRequest records one provider API call. operation is
// "submit" or "status".
func (m *Metrics) RecordProviderRequest(ctx context.Context, operation string, ok bool, durationSeconds float64) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.ProviderRequestDuration.Record(ctx, durationSeconds, metric.WithAttributes(operationAttr(operation), outcomeAttr(outcome)))
}

// RecordSweep records one sweep run and the outcome of each job it checked.
func (m *Metrics) RecordSweep(ctx context.Context, outcomes []string) {
	if m == nil {
		return
	}
	m.SweepRunsTotal.Add(ctx, 1)
	for _, o := range outcomes {
		m.SweepJobsChecked.Add(ctx, 1, metric.WithAttributes(outcomeAttr(o)))
	}
}
