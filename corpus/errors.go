package corpus

import (
	"errors"

	"github.com/hupe1980/ober/version"
)

var (
	// ErrBatchNotFound is returned when a selected batch is not committed.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrReadOnly is returned when writing to a store opened with Load.
	ErrReadOnly = errors.New("corpus opened read-only")

	// ErrCorruptArtifact aliases version.ErrCorruptArtifact for convenience.
	ErrCorruptArtifact = version.ErrCorruptArtifact
)
