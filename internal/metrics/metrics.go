// Package metrics exposes engine and HTTP counters on the default
// Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gpuf"

var (
	sessionLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Model session loads by result status",
		},
		[]string{"status"},
	)

	promptTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generate",
			Name:      "prompt_tokens_total",
			Help:      "Prompt tokens prefilled",
		},
	)

	generatedTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generate",
			Name:      "tokens_total",
			Help:      "Tokens generated",
		},
	)

	generateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generate",
			Name:      "duration_seconds",
			Help:      "Wall time of successful generate calls",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Engine errors by operation and kind",
		},
		[]string{"op", "kind"},
	)

	kvCacheBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "kv_cache_bytes",
			Help:      "KV cache bytes held by open sessions",
		},
	)

	offloadedLayers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "offloaded_layers",
			Help:      "Layers running on an accelerator across open sessions",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		sessionLoadsTotal,
		promptTokensTotal,
		generatedTokensTotal,
		generateDuration,
		errorsTotal,
		kvCacheBytes,
		offloadedLayers,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// SessionLoaded counts a session open attempt.
func SessionLoaded(status string) {
	sessionLoadsTotal.WithLabelValues(status).Inc()
}

// SessionOpened adds a session's resources to the gauges; SessionClosed
// removes them.
func SessionOpened(kvBytes int64, offloaded int) {
	kvCacheBytes.Add(float64(kvBytes))
	offloadedLayers.Add(float64(offloaded))
}

func SessionClosed(kvBytes int64, offloaded int) {
	kvCacheBytes.Sub(float64(kvBytes))
	offloadedLayers.Sub(float64(offloaded))
}

func Generated(prompt, generated int, took time.Duration) {
	promptTokensTotal.Add(float64(prompt))
	generatedTokensTotal.Add(float64(generated))
	generateDuration.Observe(took.Seconds())
}

func Error(op, kind string) {
	errorsTotal.WithLabelValues(op, kind).Inc()
}

// HTTPRequest records one served request. path should be the route pattern.
func HTTPRequest(path, method string, status int, took time.Duration) {
	httpRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(path, method).Observe(took.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
