// Package metrics provides Prometheus instrumentation for trendserver.
//
// Metrics exposed:
//   - trendlens_source_reads_total: physical reads per source (files, databases, remote queries)
//   - trendlens_source_retries_total: failed read attempts that were retried
//   - trendlens_query_seconds: HTTP query latency by route
//   - trendlens_remote_cache_requests_total: remote series cache lookups by result
//   - trendlens_trend_config_discarded_files: config files rejected at load
//   - trendlens_sources: registered sources by kind
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HatiCode/trendlens/pkg/storage"
)

// Metrics implements sources.Observer.
type Metrics struct {
	SourceReads      *prometheus.CounterVec
	SourceRetries    *prometheus.CounterVec
	QuerySeconds     *prometheus.HistogramVec
	CacheRequests    *prometheus.CounterVec
	DiscardedConfigs prometheus.Gauge
	Sources          *prometheus.GaugeVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SourceReads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trendlens_source_reads_total",
			Help: "Physical reads performed per source",
		}, []string{"source"}),

		SourceRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trendlens_source_retries_total",
			Help: "Failed read attempts per source",
		}, []string{"source"}),

		QuerySeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trendlens_query_seconds",
			Help:    "Time spent serving workspace queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trendlens_remote_cache_requests_total",
			Help: "Remote series cache lookups by result",
		}, []string{"result"}),

		DiscardedConfigs: f.NewGauge(prometheus.GaugeOpts{
			Name: "trendlens_trend_config_discarded_files",
			Help: "Trend configuration files discarded because of errors",
		}),

		Sources: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trendlens_sources",
			Help: "Registered sources by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) ObserveRead(source string) {
	m.SourceReads.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveRetry(source string, _ error) {
	m.SourceRetries.WithLabelValues(source).Inc()
}

// ObserveQuery records the latency of one HTTP query.
func (m *Metrics) ObserveQuery(route string, d time.Duration) {
	m.QuerySeconds.WithLabelValues(route).Observe(d.Seconds())
}

// SetDiscardedConfigs sets the number of rejected trend config files.
func (m *Metrics) SetDiscardedConfigs(n int) {
	m.DiscardedConfigs.Set(float64(n))
}

// AddSource counts one registered source of the given kind.
func (m *Metrics) AddSource(kind string) {
	m.Sources.WithLabelValues(kind).Inc()
}

// InstrumentStore wraps s so cache lookups are counted as hits, misses or
// errors.
func (m *Metrics) InstrumentStore(s storage.Store) storage.Store {
	return &instrumentedStore{Store: s, m: m}
}

type instrumentedStore struct {
	storage.Store
	m *Metrics
}

func (s *instrumentedStore) Get(ctx context.Context, key string) (storage.Snapshot, bool, error) {
	snap, found, err := s.Store.Get(ctx, key)
	switch {
	case err != nil:
		s.m.CacheRequests.WithLabelValues("error").Inc()
	case found:
		s.m.CacheRequests.WithLabelValues("hit").Inc()
	default:
		s.m.CacheRequests.WithLabelValues("miss").Inc()
	}
	return snap, found, err
}
