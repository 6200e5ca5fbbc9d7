// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ingestion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngestion holds Prometheus metrics for the ingestion subsystem.
type metricsIngestion struct {
	once sync.Once

	// Files
	filesProcessed prometheus.Counter
	filesSkipped   prometheus.Counter
	parseErrors    prometheus.Counter

	// Chunks/Edges
	chunksProduced prometheus.Counter
	edgesProduced  prometheus.Counter
	edgesResolved  prometheus.Counter

	// Embeddings
	embedComputed prometheus.Counter
	embedReused   prometheus.Counter
	embedMissing  prometheus.Counter
	embedRetries  prometheus.Counter

	// Durations
	parseDuration prometheus.Histogram
	embedDuration prometheus.Histogram
	graphDuration prometheus.Histogram
	totalDuration prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.filesProcessed = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ing_files_processed_total", Help: "Files parsed into chunks"})
		m.filesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ing_files_skipped_total", Help: "Files skipped during ingestion"})
		m.parseErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ing_parse_errors_total", Help: "Files that failed to parse"})

		m.chunksProduced = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ing_chunks_produced_total", Help: "Chunks produced by parsing"})
		m.edgesProduced = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ing_edges_produced_total", Help: "Edges produced by graph build"})
		m.edgesResolved = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ing_edges_resolved_total", Help: "Edges resolved to a target chunk"})

		m.embedComputed = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ing_embeddings_computed_total", Help: "Embeddings computed from the provider"})
		m.embedReused = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ing_embeddings_reused_total", Help: "Embeddings reused from the previous snapshot"})
		m.embedMissing = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ing_embeddings_missing_total", Help: "Chunks left without an embedding after retries"})
		m.embedRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "pke_ing_embeddings_retries_total", Help: "Embedding batch retries"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "pke_ing_parse_seconds", Help: "Parse phase duration", Buckets: buckets})
		m.embedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "pke_ing_embed_seconds", Help: "Embedding phase duration", Buckets: buckets})
		m.graphDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "pke_ing_graph_seconds", Help: "Graph build duration", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "pke_ing_total_seconds", Help: "Total ingestion run duration", Buckets: buckets})

		prometheus.MustRegister(
			m.filesProcessed, m.filesSkipped, m.parseErrors,
			m.chunksProduced, m.edgesProduced, m.edgesResolved,
			m.embedComputed, m.embedReused, m.embedMissing, m.embedRetries,
			m.parseDuration, m.embedDuration, m.graphDuration, m.totalDuration,
		)
	})
}

// record helpers used by the pipeline
func recordEmbedRetry() { ingMetrics.init(); ingMetrics.embedRetries.Inc() }

func recordParseDone(processed, skipped, parseErrors, chunks int, dur time.Duration) {
	ingMetrics.init()
	ingMetrics.filesProcessed.Add(float64(processed))
	ingMetrics.filesSkipped.Add(float64(skipped))
	ingMetrics.parseErrors.Add(float64(parseErrors))
	ingMetrics.chunksProduced.Add(float64(chunks))
	ingMetrics.parseDuration.Observe(dur.Seconds())
}

func recordEmbedDone(computed, reused, missing int, dur time.Duration) {
	ingMetrics.init()
	ingMetrics.embedComputed.Add(float64(computed))
	ingMetrics.embedReused.Add(float64(reused))
	ingMetrics.embedMissing.Add(float64(missing))
	ingMetrics.embedDuration.Observe(dur.Seconds())
}

func recordGraphDone(edges, resolved int, dur time.Duration) {
	ingMetrics.init()
	ingMetrics.edgesProduced.Add(float64(edges))
	ingMetrics.edgesResolved.Add(float64(resolved))
	ingMetrics.graphDuration.Observe(dur.Seconds())
}

func recordRunDone(dur time.Duration) {
	ingMetrics.init()
	ingMetrics.totalDuration.Observe(dur.Seconds())
}
