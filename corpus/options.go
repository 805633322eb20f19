package corpus

import (
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/hupe1980/ober/codec"
	"github.com/hupe1980/ober/internal/compression"
	"github.com/hupe1980/ober/internal/fs"
)

// DefaultBatchSize is the number of documents per committed batch.
const DefaultBatchSize = 500000

type options struct {
	documentSet       string
	contentVersion    int
	newContentVersion bool
	batchSize         int
	compression       compression.Kind
	codec             codec.Codec
	writeLimit        int64
	rng               *rand.Rand
	fs                fs.FileSystem
	logger            *slog.Logger
}

func defaultOptions() options {
	return options{
		batchSize:   DefaultBatchSize,
		compression: compression.Zstd,
		codec:       codec.Default,
		fs:          fs.Default,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures a Store.
type Option func(*options)

// WithDocumentSet stores the corpus under root/name.
func WithDocumentSet(name string) Option {
	return func(o *options) { o.documentSet = name }
}

// WithContentVersion selects a content version instead of the latest.
func WithContentVersion(v int) Option {
	return func(o *options) { o.contentVersion = v }
}

// WithNewContentVersion makes Open start a fresh content version.
func WithNewContentVersion() Option {
	return func(o *options) { o.newContentVersion = true }
}

// WithBatchSize sets the number of documents per batch.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithCompression sets the payload compression for new batches.
func WithCompression(k compression.Kind) Option {
	return func(o *options) { o.compression = k }
}

// WithCodec sets the record codec.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithWriteLimit throttles payload writes to bytesPerSec (compressed bytes).
func WithWriteLimit(bytesPerSec int64) Option {
	return func(o *options) { o.writeLimit = bytesPerSec }
}

// WithRand sets the source used by the Random selector.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithFileSystem sets the filesystem.
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
