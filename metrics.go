package ober

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    documents prometheus.Counter
//	    export    prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordGraphExport(nodes, edges int, d time.Duration, err error) {
//	    p.export.Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordDocumentsAdded is called after each ingestion run with the number
	// of committed batches and documents.
	RecordDocumentsAdded(batches, documents int, duration time.Duration, err error)

	// RecordVectorsSave is called after each dictionary save.
	RecordVectorsSave(symbols int, duration time.Duration, err error)

	// RecordGraphExport is called after each graph export.
	RecordGraphExport(nodes, edges int, duration time.Duration, err error)

	// RecordSimilarity is called after each most-similar query.
	RecordSimilarity(k int, duration time.Duration, err error)

	// RecordClusterRun is called after each clusterer invocation.
	RecordClusterRun(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordDocumentsAdded(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordVectorsSave(int, time.Duration, error)         {}
func (NoopMetricsCollector) RecordGraphExport(int, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordSimilarity(int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordClusterRun(time.Duration, error)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IngestCount       atomic.Int64
	IngestErrors      atomic.Int64
	BatchesCommitted  atomic.Int64
	DocumentsAdded    atomic.Int64
	SaveCount         atomic.Int64
	SaveErrors        atomic.Int64
	SymbolsSaved      atomic.Int64
	ExportCount       atomic.Int64
	ExportErrors      atomic.Int64
	EdgesExported     atomic.Int64
	ExportTotalNanos  atomic.Int64
	SimilarCount      atomic.Int64
	SimilarErrors     atomic.Int64
	SimilarTotalNanos atomic.Int64
	ClusterRuns       atomic.Int64
	ClusterErrors     atomic.Int64
}

// RecordDocumentsAdded implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDocumentsAdded(batches, documents int, _ time.Duration, err error) {
	b.IngestCount.Add(1)
	b.BatchesCommitted.Add(int64(batches))
	b.DocumentsAdded.Add(int64(documents))
	if err != nil {
		b.IngestErrors.Add(1)
	}
}

// RecordVectorsSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordVectorsSave(symbols int, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	if err != nil {
		b.SaveErrors.Add(1)
		return
	}
	b.SymbolsSaved.Add(int64(symbols))
}

// RecordGraphExport implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGraphExport(_, edges int, duration time.Duration, err error) {
	b.ExportCount.Add(1)
	b.ExportTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ExportErrors.Add(1)
		return
	}
	b.EdgesExported.Add(int64(edges))
}

// RecordSimilarity implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSimilarity(_ int, duration time.Duration, err error) {
	b.SimilarCount.Add(1)
	b.SimilarTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SimilarErrors.Add(1)
	}
}

// RecordClusterRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClusterRun(_ time.Duration, err error) {
	b.ClusterRuns.Add(1)
	if err != nil {
		b.ClusterErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestCount:      b.IngestCount.Load(),
		IngestErrors:     b.IngestErrors.Load(),
		BatchesCommitted: b.BatchesCommitted.Load(),
		DocumentsAdded:   b.DocumentsAdded.Load(),
		SaveCount:        b.SaveCount.Load(),
		SaveErrors:       b.SaveErrors.Load(),
		SymbolsSaved:     b.SymbolsSaved.Load(),
		ExportCount:      b.ExportCount.Load(),
		ExportErrors:     b.ExportErrors.Load(),
		EdgesExported:    b.EdgesExported.Load(),
		ExportAvgNanos:   avg(b.ExportTotalNanos.Load(), b.ExportCount.Load()),
		SimilarCount:     b.SimilarCount.Load(),
		SimilarErrors:    b.SimilarErrors.Load(),
		SimilarAvgNanos:  avg(b.SimilarTotalNanos.Load(), b.SimilarCount.Load()),
		ClusterRuns:      b.ClusterRuns.Load(),
		ClusterErrors:    b.ClusterErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IngestCount      int64
	IngestErrors     int64
	BatchesCommitted int64
	DocumentsAdded   int64
	SaveCount        int64
	SaveErrors       int64
	SymbolsSaved     int64
	ExportCount      int64
	ExportErrors     int64
	EdgesExported    int64
	ExportAvgNanos   int64
	SimilarCount     int64
	SimilarErrors    int64
	SimilarAvgNanos  int64
	ClusterRuns      int64
	ClusterErrors    int64
}
