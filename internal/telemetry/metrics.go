package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/marketdata-harvester/internal/model"
)

// Metrics holds every Prometheus series this harvester exports, one entry
// per PollStats field, all labeled by venue so venues remain independently
// observable.
type Metrics struct {
	activeCount      *prometheus.GaugeVec
	submittedTotal   *prometheus.CounterVec
	succeededTotal   *prometheus.CounterVec
	failedTotal      *prometheus.CounterVec
	http4xxTotal     *prometheus.CounterVec
	http5xxTotal     *prometheus.CounterVec
	http429Total     *prometheus.CounterVec
	timeoutsTotal    *prometheus.CounterVec
	p50LatencyMs     *prometheus.GaugeVec
	p95LatencyMs     *prometheus.GaugeVec
	cooldownRemainMs *prometheus.GaugeVec
	inflightLimit    *prometheus.GaugeVec
	maxWorkers       *prometheus.GaugeVec
}

// NewMetrics registers every series on reg and returns the Metrics handle.
// Pass prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to use the global one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	const namespace = "harvester"
	labels := []string{"venue"}

	return &Metrics{
		activeCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_instruments", Help: "Instruments currently in this venue's ActiveSet.",
		}, labels),
		submittedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "submitted_total", Help: "Fetches dispatched to the worker pool.",
		}, labels),
		succeededTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "succeeded_total", Help: "Fetches that produced an OrderbookRecord.",
		}, labels),
		failedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "failed_total", Help: "Fetches that ended in a categorized error.",
		}, labels),
		http4xxTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_4xx_total", Help: "Non-429 4xx responses.",
		}, labels),
		http5xxTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_5xx_total", Help: "5xx responses.",
		}, labels),
		http429Total: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_429_total", Help: "Rate-limit responses observed.",
		}, labels),
		timeoutsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "timeouts_total", Help: "Fetches that exceeded the per-request timeout.",
		}, labels),
		p50LatencyMs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fetch_latency_p50_ms", Help: "Rolling p50 fetch latency in milliseconds.",
		}, labels),
		p95LatencyMs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fetch_latency_p95_ms", Help: "Rolling p95 fetch latency in milliseconds.",
		}, labels),
		cooldownRemainMs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cooldown_remaining_ms", Help: "Time left in this venue's AIMD cooldown, 0 when not cooling down.",
		}, labels),
		inflightLimit: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "inflight_limit", Help: "Current AIMD-controlled concurrent-request ceiling.",
		}, labels),
		maxWorkers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "max_workers", Help: "Static worker pool size configured for this venue.",
		}, labels),
	}
}

// Observe implements scheduler.StatsObserver: it applies one PollStats
// record's deltas/gauges to the registered series. Counters are
// incremented by the record's delta-since-last-emission; gauges are set to
// the record's instantaneous value.
func (m *Metrics) Observe(stats model.PollStats) {
	venue := stats.Venue

	m.activeCount.WithLabelValues(venue).Set(float64(stats.ActiveCount))
	m.submittedTotal.WithLabelValues(venue).Add(float64(stats.Submitted))
	m.succeededTotal.WithLabelValues(venue).Add(float64(stats.Succeeded))
	m.failedTotal.WithLabelValues(venue).Add(float64(stats.Failed))
	m.http4xxTotal.WithLabelValues(venue).Add(float64(stats.HTTP4xx))
	m.http5xxTotal.WithLabelValues(venue).Add(float64(stats.HTTP5xx))
	m.http429Total.WithLabelValues(venue).Add(float64(stats.HTTP429))
	m.timeoutsTotal.WithLabelValues(venue).Add(float64(stats.Timeouts))
	m.p50LatencyMs.WithLabelValues(venue).Set(float64(stats.P50LatencyMs))
	m.p95LatencyMs.WithLabelValues(venue).Set(float64(stats.P95LatencyMs))
	m.cooldownRemainMs.WithLabelValues(venue).Set(float64(stats.CooldownRemainMs))
	m.inflightLimit.WithLabelValues(venue).Set(float64(stats.InflightLimit))
	m.maxWorkers.WithLabelValues(venue).Set(float64(stats.MaxWorkers))
}

// Handler returns the HTTP handler to mount at /metrics for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
