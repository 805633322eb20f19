package graph

import (
	"io"
	"log/slog"
	"runtime"

	"github.com/hupe1980/ober/internal/fs"
)

const (
	// DefaultNeighbors is the number of neighbors exported per node.
	DefaultNeighbors = 200
	// DefaultBatchSize is the number of nodes scored per batch.
	DefaultBatchSize = 250

	// GraphsDir holds the graph version axis inside a content version.
	GraphsDir = "graphs"
	// GraphFile is the graph name inside a graph version.
	GraphFile = "graph.dt"
)

type options struct {
	neighbors    int
	batchSize    int
	workers      int
	graphVersion int
	fs           fs.FileSystem
	logger       *slog.Logger
}

func defaultOptions() options {
	return options{
		neighbors: DefaultNeighbors,
		batchSize: DefaultBatchSize,
		workers:   runtime.GOMAXPROCS(0),
		fs:        fs.Default,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures an export.
type Option func(*options)

// WithNeighbors sets how many neighbors each node keeps.
func WithNeighbors(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.neighbors = n
		}
	}
}

// WithBatchSize sets how many nodes are scored before they are written.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithWorkers sets the number of scoring goroutines.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithGraphVersion makes ExportVersion write an explicit graph version
// instead of the next one.
func WithGraphVersion(v int) Option {
	return func(o *options) { o.graphVersion = v }
}

// WithFileSystem sets the filesystem used by ExportVersion.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
