// Package blobstore publishes committed artifact versions to object storage.
//
// A BlobStore is a flat namespace of immutable, slash-separated keys. Publish
// uploads every file of a committed version directory under a key prefix and
// writes a manifest with sizes and CRC32C checksums last, so a consumer that
// finds the manifest finds a complete upload. Fetch reverses the hand-off and
// verifies every file against the manifest.
//
// # Built-in Implementations
//
//   - LocalStore: a local directory, written through temp files and renames
//   - MemoryStore: in-process, for tests
//   - minio.Store: MinIO and other S3-compatible servers
//   - s3.Store: Amazon S3 with multipart uploads
//
// Publishing is a one-way copy. The local version store stays the source of
// truth; nothing in a BlobStore is read back by the stores in this module.
package blobstore
