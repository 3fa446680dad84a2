// Package metrics holds the Prometheus collectors of the feed pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "subfeed_fetch_duration_seconds",
		Help:    "Duration of upstream feed fetches including retries",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
	})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subfeed_fetch_errors_total",
		Help: "Upstream feed fetch failures by kind",
	}, []string{"kind"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subfeed_cache_lookups_total",
		Help: "Feed cache lookups by result (hit, miss, expired, stale, bypass)",
	}, []string{"result"})

	CacheStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subfeed_cache_store_errors_total",
		Help: "Cache backend failures by operation",
	}, []string{"op"})

	FilteredItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subfeed_filtered_items_total",
		Help: "Items dropped by the short-form filter by rule",
	}, []string{"rule"})

	PagesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subfeed_pages_served_total",
		Help: "Timeline pages produced",
	})
)

// Fetch error kinds
const (
	KindTransient = "transient"
	KindParse     = "parse"
)
