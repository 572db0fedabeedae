package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"unoc/core-go/internal/topology"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	devicesTotal        prometheus.Gauge
	devicesOnline       prometheus.Gauge
	linksTotal          prometheus.Gauge
	linksUp             prometheus.Gauge
	feedClients         prometheus.Gauge
	broadcastsTotal     *prometheus.CounterVec
}

// New creates a fresh Metrics registry with HTTP, topology and feed metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unoc",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by core-go",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "unoc",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by core-go",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	devicesTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "unoc",
		Name:      "topology_devices_total",
		Help:      "Number of devices in the current topology",
	})

	devicesOnline := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "unoc",
		Name:      "topology_devices_online",
		Help:      "Number of devices currently online",
	})

	linksTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "unoc",
		Name:      "topology_links_total",
		Help:      "Number of links in the current topology",
	})

	linksUp := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "unoc",
		Name:      "topology_links_up",
		Help:      "Number of links currently up",
	})

	feedClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "unoc",
		Name:      "feed_clients",
		Help:      "Number of websocket feed clients currently connected",
	})

	broadcastsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unoc",
		Name:      "feed_broadcasts_total",
		Help:      "Count of feed messages broadcast to clients, by message kind",
	}, []string{"kind"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		devicesTotal,
		devicesOnline,
		linksTotal,
		linksUp,
		feedClients,
		broadcastsTotal,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		devicesTotal:        devicesTotal,
		devicesOnline:       devicesOnline,
		linksTotal:          linksTotal,
		linksUp:             linksUp,
		feedClients:         feedClients,
		broadcastsTotal:     broadcastsTotal,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// SetTopologyStats publishes the HUD counters for the current topology.
func (m *Metrics) SetTopologyStats(stats topology.Stats) {
	if m == nil {
		return
	}
	m.devicesTotal.Set(float64(stats.DevicesTotal))
	m.devicesOnline.Set(float64(stats.DevicesOnline))
	m.linksTotal.Set(float64(stats.LinksTotal))
	m.linksUp.Set(float64(stats.LinksUp))
}

// AddFeedClient records a new websocket feed subscriber.
func (m *Metrics) AddFeedClient() {
	if m == nil {
		return
	}
	m.feedClients.Inc()
}

// RemoveFeedClient records a departed websocket feed subscriber.
func (m *Metrics) RemoveFeedClient() {
	if m == nil {
		return
	}
	m.feedClients.Dec()
}

// IncBroadcast counts one broadcast feed message of the given kind.
func (m *Metrics) IncBroadcast(kind string) {
	if m == nil {
		return
	}
	m.broadcastsTotal.With(prometheus.Labels{"kind": kind}).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
