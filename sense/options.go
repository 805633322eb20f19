package sense

import (
	"io"
	"log/slog"

	"github.com/hupe1980/ober/internal/fs"
)

// DefaultWorkers is the worker count passed to the clustering program.
const DefaultWorkers = 4

type options struct {
	fs             fs.FileSystem
	logger         *slog.Logger
	workers        int
	clusterVersion int
	env            []string
}

func defaultOptions() options {
	return options{
		fs:      fs.Default,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers: DefaultWorkers,
	}
}

// Option configures a ClusterStore or a Runner.
type Option func(*options)

// WithFileSystem sets the filesystem used for all I/O.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithLogger sets the logger. The runner logs the clustering program's
// output through it.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWorkers sets the --num_workers value passed to the clustering program.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithClusterVersion makes a run write an explicit cluster version instead of
// the next one.
func WithClusterVersion(v int) Option {
	return func(o *options) { o.clusterVersion = v }
}

// WithEnv adds KEY=VALUE pairs to the clustering program's environment.
func WithEnv(env ...string) Option {
	return func(o *options) { o.env = append(o.env, env...) }
}
