package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "linkgraph"

type metrics struct {
	pagesFetched  prometheus.Counter
	fetchFailures prometheus.Counter
	graphBuilds   *prometheus.CounterVec
	buildDuration prometheus.Histogram
}

// newMetrics registers the service collectors with reg. A nil reg keeps them
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		pagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "page_fetches_total",
			Help:      "Number of page content listings attempted.",
		}),
		fetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "page_fetch_failures_total",
			Help:      "Number of page content listings that failed and were treated as empty.",
		}),
		graphBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "graph_builds_total",
			Help:      "Number of link graph computations by result.",
		}, []string{"result"}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "graph_build_duration_seconds",
			Help:      "Duration of link graph computations.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
