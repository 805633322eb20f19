package sense

import "errors"

var (
	// ErrClustersExist is returned when a run targets a cluster version that
	// already holds a committed cluster file.
	ErrClustersExist = errors.New("sense: cluster version already committed")

	// ErrNoOutput is returned when the clustering program exits cleanly
	// without writing its output file.
	ErrNoOutput = errors.New("sense: clusterer wrote no output")
)
