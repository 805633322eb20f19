package sense

import (
	"fmt"
	"path/filepath"

	"github.com/hupe1980/ober/internal/fs"
	"github.com/hupe1980/ober/version"
)

// ClustersFile is the cluster file name inside a cluster version.
const ClustersFile = "senses.clusters"

// ClusterStore is the version axis of cluster artifacts:
// <root>/<v:5>/senses.clusters.
type ClusterStore struct {
	versions *version.Store
	opts     options
}

// OpenClusters opens the cluster store at root, creating it if needed.
func OpenClusters(root string, opts ...Option) (*ClusterStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	vs, err := version.Open(root, version.ContentWidth,
		version.WithFileSystem(o.fs), version.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return &ClusterStore{versions: vs, opts: o}, nil
}

// Root returns the store directory.
func (c *ClusterStore) Root() string { return c.versions.Root() }

// Latest returns the highest version holding a committed cluster file, or 0.
func (c *ClusterStore) Latest() int { return c.versions.LatestWith(ClustersFile) }

// Resolve returns the version and path of a committed cluster file. Zero
// selects the latest.
func (c *ClusterStore) Resolve(v int) (int, string, error) {
	return c.versions.ResolveFile(v, ClustersFile)
}

// Path returns the cluster file path of version v. It does not check
// existence.
func (c *ClusterStore) Path(v int) string {
	return filepath.Join(c.versions.Path(v), ClustersFile)
}

// allocate creates the version a run writes into. An existing version may
// be reused only while it has no committed cluster file.
func (c *ClusterStore) allocate(v int) (int, error) {
	if v == 0 {
		return c.versions.CreateLatest()
	}
	if _, err := c.versions.Create(v); err != nil {
		return 0, err
	}
	ok, err := fs.Exists(c.opts.fs, c.Path(v))
	if err != nil {
		return 0, err
	}
	if ok {
		return 0, fmt.Errorf("%w: %s", ErrClustersExist, c.Path(v))
	}
	return v, nil
}

// commit renames a finished cluster file into version v.
func (c *ClusterStore) commit(v int, tmp string) (string, error) {
	path := c.Path(v)
	if err := c.opts.fs.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("sense: commit clusters %d: %w", v, err)
	}
	fs.SyncDir(c.opts.fs, filepath.Dir(path))
	return path, nil
}
