package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"codebuddy-hq/relay/pkg/config"
)

// Collector owns all Prometheus metrics for the relay and registers them on
// its own registry so tests and embedders never collide with the global one.
//
// Metrics:
//   - <ns>_requests_total: requests by model, mode (stream/aggregate), status
//   - <ns>_request_duration_seconds: request duration histogram by model
//   - <ns>_request_tokens_total: tokens by model and type (prompt/completion)
//   - <ns>_stream_chunks_total: chunks relayed on the streaming path
//   - <ns>_credential_pool_size: usable credentials in rotation
//   - <ns>_credential_invalidations_total: credentials dropped after auth rejection
//   - <ns>_login_sessions_total: login sessions by terminal status
//   - <ns>_login_sessions_active: sessions currently tracked
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	streamChunks    prometheus.Counter

	credentialPoolSize      prometheus.Gauge
	credentialInvalidations prometheus.Counter

	loginSessionsTotal  *prometheus.CounterVec
	loginSessionsActive prometheus.Gauge
}

// NewCollector creates a collector using the configured namespace. If
// registry is nil a fresh one is created.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "relay"
	}

	c := &Collector{
		enabled:  cfg.IsEnabled(),
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "requests_total",
				Help:      "Total number of chat completion requests processed",
			},
			[]string{"model", "mode", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "request_duration_seconds",
				Help:      "Duration of chat completion requests in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
			[]string{"model"},
		),
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "request_tokens_total",
				Help:      "Total number of tokens processed",
			},
			[]string{"model", "type"},
		),
		streamChunks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "stream_chunks_total",
				Help:      "Total number of chunks relayed on the streaming path",
			},
		),
		credentialPoolSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "credential_pool_size",
				Help:      "Number of usable credentials currently in rotation",
			},
		),
		credentialInvalidations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "credential_invalidations_total",
				Help:      "Credentials removed from rotation after a backend auth rejection",
			},
		),
		loginSessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "login_sessions_total",
				Help:      "Login sessions by terminal status",
			},
			[]string{"status"},
		),
		loginSessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "login_sessions_active",
				Help:      "Login sessions currently tracked",
			},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.tokensTotal,
		c.streamChunks,
		c.credentialPoolSize,
		c.credentialInvalidations,
		c.loginSessionsTotal,
		c.loginSessionsActive,
	)

	return c
}

// RecordRequest records a completed chat completion request. mode is
// "stream" or "aggregate"; status is "success", "error", or "auth_error".
func (c *Collector) RecordRequest(model, mode, status string, duration time.Duration) {
	if !c.enabled {
		return
	}
	c.requestsTotal.WithLabelValues(model, mode, status).Inc()
	c.requestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordTokens records token counts when the backend reported usage.
func (c *Collector) RecordTokens(model string, promptTokens, completionTokens int) {
	if !c.enabled {
		return
	}
	if promptTokens > 0 {
		c.tokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.tokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordStreamChunk counts one relayed stream chunk.
func (c *Collector) RecordStreamChunk() {
	if !c.enabled {
		return
	}
	c.streamChunks.Inc()
}

// SetCredentialPoolSize updates the pool gauge.
func (c *Collector) SetCredentialPoolSize(n int) {
	if !c.enabled {
		return
	}
	c.credentialPoolSize.Set(float64(n))
}

// RecordCredentialInvalidation counts a credential dropped from rotation.
func (c *Collector) RecordCredentialInvalidation() {
	if !c.enabled {
		return
	}
	c.credentialInvalidations.Inc()
}

// RecordLoginSession counts a login session reaching a terminal status.
func (c *Collector) RecordLoginSession(status string) {
	if !c.enabled {
		return
	}
	c.loginSessionsTotal.WithLabelValues(status).Inc()
}

// SetActiveLoginSessions updates the tracked-session gauge.
func (c *Collector) SetActiveLoginSessions(n int) {
	if !c.enabled {
		return
	}
	c.loginSessionsActive.Set(float64(n))
}

// Registry returns the Prometheus registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Enabled reports whether metric recording is active.
func (c *Collector) Enabled() bool {
	return c.enabled
}
