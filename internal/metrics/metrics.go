// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds every metric the daemon emits.
type Registry struct {
	DevicesByStatus *prometheus.GaugeVec

	SweepDuration    prometheus.Histogram
	SweepPeersFound  prometheus.Gauge
	ProbeSuccesses   prometheus.Counter
	ProbeTimeouts    prometheus.Counter

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	FetchOutcomes *prometheus.CounterVec

	SubscriberLagEvents prometheus.Counter
}

// Get returns the process-wide metrics registry, creating it on first use.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.DevicesByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dendrite_devices_by_status",
		Help: "Current device count by lifecycle and connectivity status",
	}, []string{"lifecycle", "connectivity"})

	r.SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dendrite_discovery_sweep_duration_seconds",
		Help:    "Time taken to complete one ARP sweep",
		Buckets: prometheus.DefBuckets,
	})

	r.SweepPeersFound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dendrite_discovery_sweep_peers",
		Help: "Number of peers that answered the most recent ARP sweep",
	})

	r.ProbeSuccesses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dendrite_mgmt_probe_success_total",
		Help: "Total number of successful os_info probes",
	})

	r.ProbeTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dendrite_mgmt_probe_timeout_total",
		Help: "Total number of os_info probes that timed out",
	})

	r.CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dendrite_cache_hits_total",
		Help: "Cache hits by asset kind",
	}, []string{"kind"})

	r.CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dendrite_cache_misses_total",
		Help: "Cache misses by asset kind",
	}, []string{"kind"})

	r.FetchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dendrite_resolve_outcomes_total",
		Help: "HDD resolution outcomes",
	}, []string{"outcome"}) // ok, stale, sha_mismatch, unresolved

	r.SubscriberLagEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dendrite_event_subscriber_lag_total",
		Help: "Total number of lag markers delivered to slow event subscribers",
	})

	return r
}
