// Package metrics holds the Prometheus collectors of the server. They are
// registered on a private registry that the gateway exposes on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "neurostore"

type Metrics struct {
	Registry *prometheus.Registry

	StoreOps      *prometheus.CounterVec
	StoreErrors   *prometheus.CounterVec
	StoreLatency  *prometheus.HistogramVec
	StoreBytes    *prometheus.CounterVec
	CacheLookups  *prometheus.CounterVec
	ChunksPlanned *prometheus.CounterVec

	UploadSessions  *prometheus.CounterVec
	DownloadChunks  *prometheus.CounterVec
	VersionsCreated prometheus.Counter
	VersionRetries  prometheus.Counter
}

// New creates and registers every collector, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chunkstore", Name: "operations_total",
			Help: "Chunk store operations by kind.",
		}, []string{"op"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chunkstore", Name: "errors_total",
			Help: "Failed chunk store operations by kind.",
		}, []string{"op"}),
		StoreLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "chunkstore", Name: "operation_seconds",
			Help:    "Chunk store operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		StoreBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chunkstore", Name: "bytes_total",
			Help: "Chunk bytes moved through the store.",
		}, []string{"direction"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chunkstore", Name: "cache_lookups_total",
			Help: "Existence cache lookups by result.",
		}, []string{"cache", "result"}),
		ChunksPlanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upload", Name: "planned_chunks_total",
			Help: "Chunks announced in upload plans, split into new and reused.",
		}, []string{"kind"}),
		UploadSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upload", Name: "sessions_total",
			Help: "Upload sessions by outcome.",
		}, []string{"outcome"}),
		DownloadChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "download", Name: "chunks_total",
			Help: "Chunks streamed to readers by outcome.",
		}, []string{"outcome"}),
		VersionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "versions_created_total",
			Help: "Versions committed.",
		}),
		VersionRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "version_conflict_retries_total",
			Help: "Version commits retried after a numbering conflict.",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.StoreOps, m.StoreErrors, m.StoreLatency, m.StoreBytes, m.CacheLookups, m.ChunksPlanned,
		m.UploadSessions, m.DownloadChunks, m.VersionsCreated, m.VersionRetries,
	)
	return m
}
