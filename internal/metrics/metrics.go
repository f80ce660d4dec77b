package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the sponsor engine.
type Metrics struct {
	// Serving metrics
	ServeRequests *prometheus.CounterVec
	Served        *prometheus.CounterVec
	NoFill        *prometheus.CounterVec
	ServeLatency  *prometheus.HistogramVec

	// Engagement metrics
	Views     *prometheus.CounterVec
	Clicks    *prometheus.CounterVec
	StatTotal *prometheus.GaugeVec

	// Budget metrics
	BudgetUsed    *prometheus.GaugeVec
	BudgetDebits  *prometheus.CounterVec
	BudgetRefills *prometheus.CounterVec

	// System metrics
	EligibleCampaigns prometheus.Gauge
	StoreLatency      *prometheus.HistogramVec
	GeoLookupLatency  *prometheus.HistogramVec
	CacheRequests     *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		// Serving metrics
		ServeRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "serve_requests_total",
				Help:      "Total serve requests received",
			},
			[]string{"country"},
		),
		Served: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "served_total",
				Help:      "Total requests answered with a campaign",
			},
			[]string{"campaign"},
		),
		NoFill: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "no_fill_total",
				Help:      "Requests answered without a campaign, by reason",
			},
			[]string{"reason"},
		),
		ServeLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "serve_latency_seconds",
				Help:      "Serve request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
			[]string{"outcome"},
		),

		// Engagement metrics
		Views: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "views_total",
				Help:      "Total recorded views",
			},
			[]string{"campaign"},
		),
		Clicks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clicks_total",
				Help:      "Total recorded clicks",
			},
			[]string{"campaign"},
		),
		StatTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stat_total",
				Help:      "Current statistic counter per campaign",
			},
			[]string{"event", "campaign"},
		),

		// Budget metrics
		BudgetUsed: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "budget_used",
				Help:      "Spent budget per campaign",
			},
			[]string{"campaign"},
		),
		BudgetDebits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_debits_total",
				Help:      "Budget debits by charged event type",
			},
			[]string{"event"},
		),
		BudgetRefills: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_refills_total",
				Help:      "Operator budget top-ups per campaign",
			},
			[]string{"campaign"},
		),

		// System metrics
		EligibleCampaigns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "eligible_campaigns",
				Help:      "Campaigns that passed filters in the last draw",
			},
		),
		StoreLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_latency_seconds",
				Help:      "Campaign store operation latency",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"operation"},
		),
		GeoLookupLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "geo_lookup_latency_seconds",
				Help:      "GeoIP lookup latency",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01},
			},
			[]string{"cache_hit"},
		),
		CacheRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Campaign cache requests by result",
			},
			[]string{"result"},
		),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint"},
		),
	}

	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordServeRequest records an incoming serve request.
func (m *Metrics) RecordServeRequest(country string) {
	if m == nil {
		return
	}
	if country == "" {
		country = "unknown"
	}
	m.ServeRequests.WithLabelValues(country).Inc()
}

// RecordServed records a request answered with a campaign.
func (m *Metrics) RecordServed(campaign string, latency time.Duration) {
	if m == nil {
		return
	}
	m.Served.WithLabelValues(campaign).Inc()
	m.ServeLatency.WithLabelValues("served").Observe(latency.Seconds())
}

// RecordNoFill records a request answered without a campaign.
func (m *Metrics) RecordNoFill(reason string, latency time.Duration) {
	if m == nil {
		return
	}
	m.NoFill.WithLabelValues(reason).Inc()
	m.ServeLatency.WithLabelValues("no_fill").Observe(latency.Seconds())
}

// RecordEvent records a view or click against a campaign, with the
// counter's running total.
func (m *Metrics) RecordEvent(event, campaign string, total int64) {
	if m == nil {
		return
	}
	switch event {
	case "view":
		m.Views.WithLabelValues(campaign).Inc()
	case "click":
		m.Clicks.WithLabelValues(campaign).Inc()
	}
	m.StatTotal.WithLabelValues(event, campaign).Set(float64(total))
}

// RecordDebit records a budget debit.
func (m *Metrics) RecordDebit(event, campaign string, used float64) {
	if m == nil {
		return
	}
	m.BudgetDebits.WithLabelValues(event).Inc()
	m.BudgetUsed.WithLabelValues(campaign).Set(used)
}

// Emit mirrors a statistic increment with its running total. It satisfies
// the engine's statistics sink.
func (m *Metrics) Emit(event, campaign string, total int64) {
	m.RecordEvent(event, campaign, total)
}

// RecordRefill records an operator budget top-up.
func (m *Metrics) RecordRefill(campaign string) {
	if m == nil {
		return
	}
	m.BudgetRefills.WithLabelValues(campaign).Inc()
}

// RecordEligible records how many campaigns survived filtering.
func (m *Metrics) RecordEligible(count int) {
	if m == nil {
		return
	}
	m.EligibleCampaigns.Set(float64(count))
}

// RecordStoreOp records a campaign store operation latency.
func (m *Metrics) RecordStoreOp(operation string, latency time.Duration) {
	if m == nil {
		return
	}
	m.StoreLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordGeoLookup records a geo lookup.
func (m *Metrics) RecordGeoLookup(cacheHit bool, latency time.Duration) {
	if m == nil {
		return
	}
	hit := "false"
	if cacheHit {
		hit = "true"
	}
	m.GeoLookupLatency.WithLabelValues(hit).Observe(latency.Seconds())
}

// RecordCacheRequest records a campaign cache hit or miss.
func (m *Metrics) RecordCacheRequest(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

// RecordRateLimitHit records a rate limit rejection.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}
