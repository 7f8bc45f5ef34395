package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	passes          *prometheus.CounterVec
	callsDispatched *prometheus.CounterVec
	callsFailed     *prometheus.CounterVec
	eventsEmitted   *prometheus.CounterVec
	pagesFetched    *prometheus.CounterVec
	checksumHits    prometheus.Counter
	checksumMisses  prometheus.Counter
	errors          prometheus.Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			passes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ibc_watch_passes_total",
				Help: "Total number of plugin passes over the queue",
			}, []string{"plugin"}),
			callsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ibc_watch_calls_dispatched_total",
				Help: "Total number of calls dispatched to plugins",
			}, []string{"plugin"}),
			callsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ibc_watch_call_failures_total",
				Help: "Total number of failed call dispatches",
			}, []string{"plugin", "kind"}),
			eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ibc_watch_events_emitted_total",
				Help: "Total number of canonical chain events emitted",
			}, []string{"chain_id", "event"}),
			pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ibc_watch_tx_pages_fetched_total",
				Help: "Total number of transaction pages fetched",
			}, []string{"chain_id"}),
			checksumHits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ibc_watch_checksum_cache_hits_total",
				Help: "Total number of wasm checksum cache hits",
			}),
			checksumMisses: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ibc_watch_checksum_cache_misses_total",
				Help: "Total number of wasm checksum cache misses",
			}),
			errors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ibc_watch_errors_total",
				Help: "Total number of errors encountered",
			}),
		}
		prometheus.MustRegister(
			metrics.passes,
			metrics.callsDispatched,
			metrics.callsFailed,
			metrics.eventsEmitted,
			metrics.pagesFetched,
			metrics.checksumHits,
			metrics.checksumMisses,
			metrics.errors,
		)
	})
	return metrics
}

// Pass counts one pass of plugin over the queue.
func (m *Metrics) Pass(plugin string) {
	if m != nil {
		m.passes.WithLabelValues(plugin).Inc()
	}
}

// CallsDispatched adds n dispatched calls for plugin.
func (m *Metrics) CallsDispatched(plugin string, n int) {
	if m != nil && n > 0 {
		m.callsDispatched.WithLabelValues(plugin).Add(float64(n))
	}
}

// CallFailed counts a failed dispatch; kind is "error" or "defect".
func (m *Metrics) CallFailed(plugin, kind string) {
	if m != nil {
		m.callsFailed.WithLabelValues(plugin, kind).Inc()
	}
}

// EventEmitted counts a canonical event.
func (m *Metrics) EventEmitted(chainID, event string) {
	if m != nil {
		m.eventsEmitted.WithLabelValues(chainID, event).Inc()
	}
}

// PageFetched counts a transaction page read from a chain.
func (m *Metrics) PageFetched(chainID string) {
	if m != nil {
		m.pagesFetched.WithLabelValues(chainID).Inc()
	}
}

func (m *Metrics) ChecksumHit() {
	if m != nil {
		m.checksumHits.Inc()
	}
}

func (m *Metrics) ChecksumMiss() {
	if m != nil {
		m.checksumMisses.Inc()
	}
}

// Errors increments the errors counter.
func (m *Metrics) Errors() {
	if m != nil {
		m.errors.Inc()
	}
}

// Handler returns an HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
