package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "price_locator"

// Metrics holds the Prometheus counters, histograms, and gauges for the price locator.
type Metrics struct {
	SearchRequests *prometheus.CounterVec // labels: outcome={success,invalid_location,invalid_weights,unsupported_product,invalid_volume,no_data,error}
	SearchDuration prometheus.Histogram

	// Aggregation metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,empty,error,timeout,cancelled}
	ProviderDuration *prometheus.HistogramVec // labels: provider
	QuoteCache       *prometheus.CounterVec   // labels: result={hit,miss,error}
	QuotesCollected  prometheus.Histogram
	InvalidQuotes    prometheus.Counter

	FreightFallbacks prometheus.Counter

	// Location metrics.
	PostalLookups     *prometheus.CounterVec // labels: source, outcome={success,empty,error}
	PostalCache       *prometheus.CounterVec // labels: result={hit,miss}
	MapboxAPIDuration prometheus.Histogram
	MapboxEnabled     prometheus.Gauge

	AuditMessages *prometheus.CounterVec // labels: outcome={published,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.SearchRequests,
		m.SearchDuration,
		m.ProviderRequests,
		m.ProviderDuration,
		m.QuoteCache,
		m.QuotesCollected,
		m.InvalidQuotes,
		m.FreightFallbacks,
		m.PostalLookups,
		m.PostalCache,
		m.MapboxAPIDuration,
		m.MapboxEnabled,
		m.AuditMessages,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Price searches by outcome.",
		}, []string{"outcome"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of a complete price search.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Source provider collections by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Source provider collection duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		QuoteCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_total",
			Help:      "Quote cache lookups by result.",
		}, []string{"result"}),
		QuotesCollected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quotes_collected",
			Help:      "Number of quotes returned by one provider fan-out.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		InvalidQuotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_quotes_total",
			Help:      "Quotes dropped because they broke price, quality or region invariants.",
		}),
		FreightFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "freight_fallbacks_total",
			Help:      "Freight estimates that fell back to defaults for an unknown region.",
		}),
		PostalLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postal_lookups_total",
			Help:      "CEP lookups by source and outcome.",
		}, []string{"source", "outcome"}),
		PostalCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postal_cache_total",
			Help:      "Postal lookup cache results.",
		}, []string{"result"}),
		MapboxAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mapbox_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		MapboxEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mapbox_enabled",
			Help:      "1 when Mapbox postal lookups are enabled, 0 otherwise.",
		}),
		AuditMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_messages_total",
			Help:      "Search results sent to the audit topic by outcome.",
		}, []string{"outcome"}),
	}
}
