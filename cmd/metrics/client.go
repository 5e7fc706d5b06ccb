package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nginx-proxxy/hello-server/cmd/config"
	"github.com/nginx-proxxy/hello-server/cmd/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client interface for request metrics collection
type Client interface {
	ObserveRequest(method, route string, statusCode int, duration time.Duration)
	Handler() http.Handler
	Enabled() bool
}

// PrometheusClient records request metrics into its own registry
type PrometheusClient struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NoOpClient is a no-op implementation of the Client interface
type NoOpClient struct{}

func (c *NoOpClient) ObserveRequest(method, route string, statusCode int, duration time.Duration) {}
func (c *NoOpClient) Handler() http.Handler { return http.NotFoundHandler() }
func (c *NoOpClient) Enabled() bool { return false }

// NewClient creates a new metrics client based on configuration
func NewClient(cfg *config.MetricsConfig) Client {
	if !cfg.Enabled {
		logger.Info("metrics collection disabled")
		return &NoOpClient{}
	}

	logger.Info("metrics collection enabled (Prometheus)", "namespace", cfg.Namespace, "listen_addr", cfg.ListenAddr)
	return NewPrometheusClient(cfg.Namespace)
}

// NewPrometheusClient creates a client backed by a fresh registry
func NewPrometheusClient(namespace string) *PrometheusClient {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &PrometheusClient{
		registry: registry,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Number of HTTP requests served, by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency, by method and route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (c *PrometheusClient) ObserveRequest(method, route string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.duration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (c *PrometheusClient) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *PrometheusClient) Enabled() bool {
	return true
}
