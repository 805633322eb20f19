package ober

import (
	"github.com/hupe1980/ober/corpus"
	"github.com/hupe1980/ober/dictionary"
	"github.com/hupe1980/ober/graph"
	"github.com/hupe1980/ober/version"
)

// Error taxonomy shared by every tier. The values are the sentinels of the
// packages that return them, so errors.Is works against either name.
var (
	ErrInvalidVersion  = version.ErrInvalidVersion
	ErrVersionNotFound = version.ErrVersionNotFound
	ErrCorruptArtifact = version.ErrCorruptArtifact
	ErrBatchNotFound   = corpus.ErrBatchNotFound
	ErrShapeMismatch   = dictionary.ErrShapeMismatch
	ErrIndexOutOfRange = dictionary.ErrIndexOutOfRange
	ErrNoVectors       = dictionary.ErrNoVectors
	ErrUnsaved         = graph.ErrUnsaved
	ErrGraphExists     = graph.ErrGraphExists
)
