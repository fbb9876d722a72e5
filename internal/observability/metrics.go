package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "poi_discovery"

// Metrics holds the Prometheus counters and histograms for the discovery pipeline.
type Metrics struct {
	// Discovery metrics.
	DiscoveryRequests   *prometheus.CounterVec   // labels: mode={text_query,coordinate}, outcome={success,empty,error}
	DiscoveryDuration   *prometheus.HistogramVec // labels: mode
	DiscoveryResultSize prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests     *prometheus.CounterVec // labels: outcome={success,empty,error}
	GeocodeCache        *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration  prometheus.Histogram
	GeocodeThrottleWait prometheus.Histogram

	// Upstream metrics.
	EndpointAttempts *prometheus.CounterVec   // labels: endpoint, outcome={success,transient,failure}
	UpstreamDuration *prometheus.HistogramVec // labels: source={overpass,serpapi}

	EventsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		DiscoveryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_requests_total",
			Help:      "Discovery requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		DiscoveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "End-to-end discovery duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"mode"}),
		DiscoveryResultSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_result_size",
			Help:      "Number of items returned per discovery.",
			Buckets:   []float64{0, 1, 2, 5, 10, 15, 20, 25},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Nominatim request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		GeocodeThrottleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_throttle_wait_seconds",
			Help:      "Time spent waiting for the geocoder courtesy interval.",
			Buckets:   []float64{0, 0.1, 0.25, 0.5, 1, 1.1, 2.5, 5},
		}),
		EndpointAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_attempts_total",
			Help:      "POI endpoint attempts by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Upstream search duration in seconds, including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"source"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Discovery events written to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.DiscoveryRequests,
		m.DiscoveryDuration,
		m.DiscoveryResultSize,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeThrottleWait,
		m.EndpointAttempts,
		m.UpstreamDuration,
		m.EventsPublished,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
