// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package retrieval

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsRetrieval holds Prometheus metrics for the retrieval subsystem.
type metricsRetrieval struct {
	once sync.Once

	queries  prometheus.Counter
	partials prometheus.Counter
	results  prometheus.Histogram
	duration prometheus.Histogram
}

var retMetrics metricsRetrieval

func (m *metricsRetrieval) init() {
	m.once.Do(func() {
		m.queries = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ret_queries_total", Help: "Retrieval queries served"})
		m.partials = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ret_partial_total", Help: "Queries answered partially due to deadline"})
		m.results = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "pke_ret_results", Help: "Results returned per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		})
		m.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "pke_ret_query_seconds", Help: "Query duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		})
		prometheus.MustRegister(m.queries, m.partials, m.results, m.duration)
	})
}

func recordQuery()   { retMetrics.init(); retMetrics.queries.Inc() }
func recordPartial() { retMetrics.init(); retMetrics.partials.Inc() }

func recordQueryDone(results int, dur time.Duration) {
	retMetrics.init()
	retMetrics.results.Observe(float64(results))
	retMetrics.duration.Observe(dur.Seconds())
}
