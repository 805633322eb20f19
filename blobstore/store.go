package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrInvalidName is returned for keys that are empty, absolute or escape
// their prefix.
var ErrInvalidName = errors.New("blobstore: invalid blob name")

// BlobStore is a flat store of immutable blobs. Implementations must be safe
// for concurrent use.
type BlobStore interface {
	// Put stores size bytes read from r under name, replacing any previous
	// blob. A negative size means unknown.
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// List returns the sorted names of all blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// Blob is a read-only handle to a blob.
type Blob interface {
	io.ReadCloser
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Join joins key elements with slashes.
func Join(elem ...string) string {
	return strings.TrimPrefix(path.Join(elem...), "/")
}

// ValidateName rejects names a store cannot map to a key under its root.
func ValidateName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || path.Clean(name) != name ||
		name == ".." || strings.HasPrefix(name, "../") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
