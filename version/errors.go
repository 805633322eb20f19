package version

import "errors"

var (
	// ErrInvalidVersion is returned when a version below 1 is created.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrVersionNotFound is returned when a requested version (or the store
	// itself, for read-side opens) does not exist.
	ErrVersionNotFound = errors.New("version not found")

	// ErrCorruptArtifact is returned when a committed version exists but a
	// required file in it is missing or cannot be parsed.
	ErrCorruptArtifact = errors.New("corrupt artifact")
)
