package dictionary

import (
	"io"
	"log/slog"

	"github.com/hupe1980/ober/internal/fs"
)

type options struct {
	fs     fs.FileSystem
	logger *slog.Logger
	mmap   bool
}

// Option configures a Store.
type Option func(*options)

func defaultOptions() options {
	return options{
		fs:     fs.Default,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		mmap:   true,
	}
}

// WithFileSystem sets the filesystem used by Save and Load.
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

// WithMmap controls whether Load maps vector files into memory instead of
// reading them whole onto the heap before decoding. Mapping is on by default
// and only applies to the local filesystem; a store given another filesystem
// always reads through it.
func WithMmap(enabled bool) Option {
	return func(o *options) { o.mmap = enabled }
}
