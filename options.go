package ober

import (
	"math/rand/v2"

	"github.com/hupe1980/ober/codec"
	"github.com/hupe1980/ober/internal/compression"
	"github.com/hupe1980/ober/internal/fs"
)

const (
	// DefaultWidth is the vector width of a token dictionary created from
	// scratch.
	DefaultWidth = 300
	// DefaultMinCount drops tokens seen fewer times when updating tokens.
	DefaultMinCount = 5
)

type options struct {
	layout      Layout
	logger      *Logger
	metrics     MetricsCollector
	fs          fs.FileSystem
	codec       codec.Codec
	compression compression.Kind
	batchSize   int
	writeLimit  int64
	width       int
	minCount    int
	neighbors   int
	graphBatch  int
	workers     int
	mmap        bool
	rng         *rand.Rand
}

func defaultOptions() options {
	return options{
		logger:      NoopLogger(),
		metrics:     NoopMetricsCollector{},
		fs:          fs.Default,
		codec:       codec.Default,
		compression: compression.Zstd,
		width:       DefaultWidth,
		minCount:    DefaultMinCount,
		mmap:        true,
	}
}

// Option configures a Workspace.
type Option func(*options)

// WithLogger sets the logger handed to every tier.
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithFileSystem sets the filesystem used for all local I/O.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithCodec configures the codec of corpus records and sidecars.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression sets the payload compression of new corpus batches.
func WithCompression(k compression.Kind) Option {
	return func(o *options) { o.compression = k }
}

// WithBatchSize sets the number of documents per corpus batch.
// Non-positive values keep the corpus default.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithWriteLimit throttles corpus ingestion to bytesPerSec.
func WithWriteLimit(bytesPerSec int64) Option {
	return func(o *options) { o.writeLimit = bytesPerSec }
}

// WithWidth sets the vector width of a token dictionary created from scratch.
// Existing dictionaries keep their width.
func WithWidth(width int) Option {
	return func(o *options) {
		if width > 0 {
			o.width = width
		}
	}
}

// WithMinCount sets the frequency threshold of UpdateTokens.
func WithMinCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.minCount = n
		}
	}
}

// WithGraph configures graph exports: neighbors per node, nodes per batch
// and worker goroutines. Zero values keep the graph package defaults.
func WithGraph(neighbors, batchSize, workers int) Option {
	return func(o *options) {
		o.neighbors = neighbors
		o.graphBatch = batchSize
		o.workers = workers
	}
}

// WithMmap controls whether dictionary vectors are memory-mapped on load.
func WithMmap(enabled bool) Option {
	return func(o *options) { o.mmap = enabled }
}

// WithRand sets the random source for vector initialization and random batch
// selection.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// Layout overrides tier directories. Relative paths are resolved against the
// workspace directory; empty fields keep the conventional location.
type Layout struct {
	Documents string
	Tokens    string
	Senses    string
	Clusters  string
}

// WithLayout overrides the tier directories.
func WithLayout(l Layout) Option {
	return func(o *options) { o.layout = l }
}
