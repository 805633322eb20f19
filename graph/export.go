package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/hupe1980/ober/dictionary"
	"github.com/hupe1980/ober/internal/fs"
	"github.com/hupe1980/ober/internal/queue"
	"github.com/hupe1980/ober/version"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnsaved is returned by ExportVersion for a dictionary that has no
	// content version to export into, or has changed since it was saved.
	ErrUnsaved = errors.New("graph: dictionary is not saved")
	// ErrGraphExists is returned when an export targets a graph version that
	// already holds a committed graph.
	ErrGraphExists = errors.New("graph: graph version already committed")
)

// Stats summarizes an export.
type Stats struct {
	Nodes    int
	Edges    int
	Bytes    int64
	Duration time.Duration
}

// Export writes the similarity graph of store to w: one record per id in
// ascending order, each listing up to the configured number of neighbors by
// descending cosine similarity. Scoring runs on several goroutines one batch
// at a time; output order does not depend on scheduling.
func Export(ctx context.Context, store *dictionary.Store, w io.Writer, opts ...Option) (Stats, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return export(ctx, store, w, o)
}

func export(ctx context.Context, store *dictionary.Store, w io.Writer, o options) (Stats, error) {
	start := time.Now()
	norm, err := store.Normalized()
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	gw := NewWriter(w)
	n := norm.Rows()
	results := make([][]queue.Item, o.batchSize)

	for lo := 0; lo < n; lo += o.batchSize {
		hi := min(lo+o.batchSize, n)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)
		for id := lo; id < hi; id++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[id-lo] = dictionary.TopK(norm, id, o.neighbors)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return st, err
		}

		for id := lo; id < hi; id++ {
			items := results[id-lo]
			rec := Record{ID: int32(id), Marker: NoSense, Edges: make([]Edge, len(items))}
			for i, it := range items {
				rec.Edges[i] = Edge{Neighbor: int32(it.ID), Weight: it.Score}
			}
			if err := gw.Write(rec); err != nil {
				return st, fmt.Errorf("graph: write record %d: %w", id, err)
			}
			st.Nodes++
			st.Edges += len(items)
		}
		o.logger.Debug("graph batch exported", "from", lo, "to", hi, "nodes", n)
	}

	if err := gw.Flush(); err != nil {
		return st, err
	}
	st.Bytes = gw.Written()
	st.Duration = time.Since(start)
	return st, nil
}

// Location identifies a stored graph.
type Location struct {
	ContentVersion int
	GraphVersion   int
	Path           string
}

// ExportVersion exports the graph of a saved dictionary into
// <root>/<content>/graphs/<graph>/graph.dt, writing a temp file and renaming
// it into place. The graph version is the next free one unless
// WithGraphVersion is given.
func ExportVersion(ctx context.Context, store *dictionary.Store, opts ...Option) (Location, Stats, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	loc := store.Location()
	if loc.ContentVersion == 0 {
		return Location{}, Stats{}, ErrUnsaved
	}
	if store.Dirty() {
		return Location{}, Stats{}, fmt.Errorf("%w: content version %d has unsaved changes", ErrUnsaved, loc.ContentVersion)
	}

	vopts := []version.Option{version.WithFileSystem(o.fs), version.WithLogger(o.logger)}
	contents, err := version.OpenExisting(loc.Root, version.ContentWidth, vopts...)
	if err != nil {
		return Location{}, Stats{}, err
	}
	graphs, err := version.Open(filepath.Join(contents.Path(loc.ContentVersion), GraphsDir), version.SlotWidth, vopts...)
	if err != nil {
		return Location{}, Stats{}, err
	}

	gv, err := allocate(graphs, o.graphVersion, o.fs)
	if err != nil {
		return Location{}, Stats{}, err
	}

	path := filepath.Join(graphs.Path(gv), GraphFile)
	var st Stats
	err = fs.WriteAtomic(o.fs, path, func(w io.Writer) error {
		var err error
		st, err = export(ctx, store, w, o)
		return err
	})
	if err != nil {
		return Location{}, st, err
	}

	o.logger.Info("graph exported",
		"path", path,
		"content_version", loc.ContentVersion,
		"vectors_version", loc.VectorsVersion,
		"graph_version", gv,
		"nodes", st.Nodes,
		"edges", st.Edges,
		"duration", st.Duration,
	)
	return Location{ContentVersion: loc.ContentVersion, GraphVersion: gv, Path: path}, st, nil
}

// allocate creates the graph version an export writes into. A requested
// version may be reused only while it has no committed graph.
func allocate(graphs *version.Store, v int, fsys fs.FileSystem) (int, error) {
	if v == 0 {
		return graphs.CreateLatest()
	}
	if _, err := graphs.Create(v); err != nil {
		return 0, err
	}
	path := filepath.Join(graphs.Path(v), GraphFile)
	ok, err := fs.Exists(fsys, path)
	if err != nil {
		return 0, err
	}
	if ok {
		return 0, fmt.Errorf("%w: %s", ErrGraphExists, path)
	}
	return v, nil
}

// Resolve finds a stored graph under a dictionary root. Zero versions select
// the latest content version and the latest graph in it.
func Resolve(root string, contentVersion, graphVersion int, opts ...Option) (Location, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	vopts := []version.Option{version.WithFileSystem(o.fs), version.WithLogger(o.logger)}
	contents, err := version.OpenExisting(root, version.ContentWidth, vopts...)
	if err != nil {
		return Location{}, err
	}
	cv, err := contents.Resolve(contentVersion)
	if err != nil {
		return Location{}, err
	}
	graphs, err := version.OpenExisting(filepath.Join(contents.Path(cv), GraphsDir), version.SlotWidth, vopts...)
	if err != nil {
		return Location{}, err
	}
	gv, path, err := graphs.ResolveFile(graphVersion, GraphFile)
	if err != nil {
		return Location{}, err
	}
	return Location{ContentVersion: cv, GraphVersion: gv, Path: path}, nil
}
